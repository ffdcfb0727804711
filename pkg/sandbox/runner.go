package sandbox

import (
	"fmt"
	"strings"
	"time"

	"go.starlark.net/lib/json"
	mathlib "go.starlark.net/lib/math"
	timelib "go.starlark.net/lib/time"
	"go.starlark.net/starlark"

	"github.com/codeready-toolchain/deepresearch/pkg/metrics"
)

// Result is one sandbox execution's outcome, mapped directly onto
// research.CodeExecution by the Analyst.
type Result struct {
	Output  string
	Error   string
	Success bool
}

// Runner executes cleaned, prechecked analysis code inside a
// capability-restricted Starlark interpreter. Starlark has no ambient
// file/network/process access by design, so the allowed-module surface
// is simply what this runner chooses to predeclare.
type Runner struct {
	timeout time.Duration
}

// New constructs a Runner bounding each execution's wall-clock time.
func New(timeout time.Duration) *Runner {
	return &Runner{timeout: timeout}
}

// Run prechecks, cleans, and executes code. Output is the text written via
// the script's print() calls, unless run() returns a dict with a non-empty
// "summary" key, in which case Output is that summary. Scripts are expected to
// define a run() function returning a dict with at least a "summary" key
// and, optionally, a "chart" key holding an ECharts-style option dict
// (surfaced by the Analyst as Chart.EChartsOption).
func (r *Runner) Run(code string, dataJSON string) (Result, map[string]any) {
	if err := Precheck(code); err != nil {
		metrics.SandboxRuns.WithLabelValues("rejected").Inc()
		return Result{Success: false, Error: err.Error()}, nil
	}

	cleaned := Clean(code)

	var output strings.Builder
	predeclared := starlark.StringDict{
		"math": mathlib.Module,
		"json": json.Module,
		"time": timelib.Module,
		"stats": statsModule(),
		"input_data": starlark.String(dataJSON),
	}

	thread := &starlark.Thread{
		Name: "analysis",
		Print: func(_ *starlark.Thread, msg string) {
			output.WriteString(msg)
			output.WriteString("\n")
		},
	}

	done := make(chan struct {
		globals starlark.StringDict
		err     error
	}, 1)

	go func() {
		globals, err := starlark.ExecFile(thread, "analysis.star", cleaned, predeclared)
		done <- struct {
			globals starlark.StringDict
			err     error
		}{globals, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			metrics.SandboxRuns.WithLabelValues("error").Inc()
			return Result{Success: false, Error: res.err.Error(), Output: output.String()}, nil
		}
		result, out := r.callRun(thread, res.globals, output.String())
		if result.Success {
			metrics.SandboxRuns.WithLabelValues("ok").Inc()
		} else {
			metrics.SandboxRuns.WithLabelValues("error").Inc()
		}
		return result, out
	case <-time.After(r.timeout):
		metrics.SandboxRuns.WithLabelValues("timeout").Inc()
		return Result{Success: false, Error: "analysis code exceeded the execution time limit", Output: output.String()}, nil
	}
}

func (r *Runner) callRun(thread *starlark.Thread, globals starlark.StringDict, prefix string) (Result, map[string]any) {
	runFn, ok := globals["run"]
	if !ok {
		return Result{Success: true, Output: prefix}, nil
	}

	val, err := starlark.Call(thread, runFn, nil, nil)
	if err != nil {
		return Result{Success: false, Error: err.Error(), Output: prefix}, nil
	}

	dict, ok := val.(*starlark.Dict)
	if !ok {
		return Result{Success: true, Output: prefix + fmt.Sprint(val)}, nil
	}

	out := starlarkDictToMap(dict)
	summary, _ := out["summary"].(string)
	if summary == "" {
		summary = prefix
	}
	return Result{Success: true, Output: summary}, out
}

// starlarkDictToMap converts a *starlark.Dict into a plain Go map of basic
// JSON-representable values, used to surface the script's return value
// (including an "chart" ECharts option) to the Analyst.
func starlarkDictToMap(d *starlark.Dict) map[string]any {
	out := make(map[string]any, d.Len())
	for _, item := range d.Items() {
		k, ok := starlark.AsString(item[0])
		if !ok {
			continue
		}
		out[k] = starlarkValueToAny(item[1])
	}
	return out
}

func starlarkValueToAny(v starlark.Value) any {
	switch val := v.(type) {
	case starlark.String:
		return string(val)
	case starlark.Bool:
		return bool(val)
	case starlark.Int:
		i, _ := val.Int64()
		return i
	case starlark.Float:
		return float64(val)
	case *starlark.List:
		out := make([]any, 0, val.Len())
		for i := 0; i < val.Len(); i++ {
			out = append(out, starlarkValueToAny(val.Index(i)))
		}
		return out
	case *starlark.Dict:
		return starlarkDictToMap(val)
	case starlark.NoneType:
		return nil
	default:
		return v.String()
	}
}
