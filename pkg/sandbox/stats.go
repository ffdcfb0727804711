package sandbox

import (
	"fmt"
	"math"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// statsModule is a predeclared Starlark struct exposing
// mean/median/stdev/percentile over a list of numbers, backed by Go's
// math package.
func statsModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "stats",
		Members: starlark.StringDict{
			"mean":       starlark.NewBuiltin("stats.mean", statsMean),
			"median":     starlark.NewBuiltin("stats.median", statsMedian),
			"stdev":      starlark.NewBuiltin("stats.stdev", statsStdev),
			"percentile": starlark.NewBuiltin("stats.percentile", statsPercentile),
			"sum":        starlark.NewBuiltin("stats.sum", statsSum),
		},
	}
}

func floatsFromList(fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) ([]float64, error) {
	var list *starlark.List
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &list); err != nil {
		return nil, err
	}
	out := make([]float64, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		v := list.Index(i)
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func toFloat(v starlark.Value) (float64, error) {
	switch n := v.(type) {
	case starlark.Int:
		f, _ := starlark.AsFloat(n)
		return f, nil
	case starlark.Float:
		return float64(n), nil
	default:
		f, ok := starlark.AsFloat(v)
		if !ok {
			return 0, fmt.Errorf("expected a number, got %s", v.Type())
		}
		return f, nil
	}
}

func statsSum(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	nums, err := floatsFromList(fn, args, kwargs)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return starlark.Float(total), nil
}

func statsMean(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	nums, err := floatsFromList(fn, args, kwargs)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return starlark.Float(0), nil
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return starlark.Float(total / float64(len(nums))), nil
}

func statsMedian(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	nums, err := floatsFromList(fn, args, kwargs)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return starlark.Float(0), nil
	}
	sorted := append([]float64{}, nums...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return starlark.Float((sorted[mid-1] + sorted[mid]) / 2), nil
	}
	return starlark.Float(sorted[mid]), nil
}

func statsStdev(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	nums, err := floatsFromList(fn, args, kwargs)
	if err != nil {
		return nil, err
	}
	if len(nums) < 2 {
		return starlark.Float(0), nil
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	mean := total / float64(len(nums))
	var sumSq float64
	for _, n := range nums {
		sumSq += (n - mean) * (n - mean)
	}
	return starlark.Float(math.Sqrt(sumSq / float64(len(nums)-1))), nil
}

func statsPercentile(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var list *starlark.List
	var p starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &list, &p); err != nil {
		return nil, err
	}
	pf, err := toFloat(p)
	if err != nil {
		return nil, err
	}
	nums := make([]float64, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		f, err := toFloat(list.Index(i))
		if err != nil {
			return nil, err
		}
		nums = append(nums, f)
	}
	if len(nums) == 0 {
		return starlark.Float(0), nil
	}
	sort.Float64s(nums)
	rank := (pf / 100) * float64(len(nums)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return starlark.Float(nums[lower]), nil
	}
	frac := rank - float64(lower)
	return starlark.Float(nums[lower]*(1-frac) + nums[upper]*frac), nil
}
