// Package sandbox implements the constrained analysis-code runner used by
// the Analyst. Analysis code runs inside go.starlark.net, a hermetic,
// side-effect-free language with no ambient file/network/os access by
// construction, and charts are emitted as ECharts-style option documents
// rather than rendered images. The interpreter is predeclared with a
// narrow builtin set and no http_get/read_file/write_file equivalents,
// which are exactly the capabilities this sandbox must not expose.
package sandbox

import (
	"fmt"
	"regexp"
)

// forbiddenPatterns is a regex-based precheck that rejects obviously
// unsafe code before it ever reaches the interpreter. Starlark itself
// has no os/subprocess/socket/file builtins, so this is redundant
// defense-in-depth, not the sandbox's only safeguard.
var forbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bimport\s+os\b`),
	regexp.MustCompile(`\bimport\s+sys\b`),
	regexp.MustCompile(`\bimport\s+subprocess\b`),
	regexp.MustCompile(`\bopen\s*\(`),
	regexp.MustCompile(`\bexec\s*\(`),
	regexp.MustCompile(`\beval\s*\(`),
	regexp.MustCompile(`__import__`),
	regexp.MustCompile(`\brequests\b`),
	regexp.MustCompile(`\burllib\b`),
	regexp.MustCompile(`\bsocket\b`),
	regexp.MustCompile(`\bshutil\b`),
	regexp.MustCompile(`\bpathlib\b`),
	regexp.MustCompile(`\bpickle\b`),
	regexp.MustCompile(`\bglob\b`),
	regexp.MustCompile(`\bcompile\s*\(`),
	regexp.MustCompile(`__builtins__`),
	regexp.MustCompile(`__globals__`),
	regexp.MustCompile(`__code__`),
}

// ErrForbiddenCode is the structured failure message returned when a
// precheck pattern matches.
const ErrForbiddenCode = "Code contains forbidden operations"

// Precheck rejects code matching any forbidden pattern before it ever
// reaches the interpreter. No retry is attempted on this failure path.
func Precheck(code string) error {
	for _, p := range forbiddenPatterns {
		if p.MatchString(code) {
			return fmt.Errorf(ErrForbiddenCode)
		}
	}
	return nil
}
