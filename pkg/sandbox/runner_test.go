package sandbox

import (
	"strings"
	"testing"
	"time"
)

func TestPrecheckRejectsForbiddenImport(t *testing.T) {
	err := Precheck("import os\nos.system('rm -rf /')")
	if err == nil {
		t.Fatalf("expected forbidden-pattern error")
	}
	if err.Error() != ErrForbiddenCode {
		t.Fatalf("expected %q, got %q", ErrForbiddenCode, err.Error())
	}
}

func TestPrecheckAllowsCleanCode(t *testing.T) {
	if err := Precheck("x = stats.mean([1, 2, 3])\nprint(x)"); err != nil {
		t.Fatalf("expected clean code to pass precheck, got %v", err)
	}
}

func TestCleanStripsFencesAndImports(t *testing.T) {
	raw := "```python\nimport os\nx = stats.mean([1,2,3])\nplt.rcParams['font.size'] = 12\n```"
	cleaned := Clean(raw)
	if strings.Contains(cleaned, "```") {
		t.Fatalf("expected fences stripped, got %q", cleaned)
	}
	if strings.Contains(cleaned, "import os") {
		t.Fatalf("expected disallowed import stripped, got %q", cleaned)
	}
	if strings.Contains(cleaned, "rcParams") {
		t.Fatalf("expected rcParams line stripped, got %q", cleaned)
	}
}

func TestRunnerExecutesCleanAnalysisScript(t *testing.T) {
	r := New(2 * time.Second)
	code := `
def run():
    values = [10, 20, 30, 40]
    m = stats.mean(values)
    print("computed mean")
    return {"summary": "mean is computed", "mean": m}
`
	result, out := r.Run(code, "{}")
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if !strings.Contains(result.Output, "mean is computed") {
		t.Fatalf("expected summary in output, got %q", result.Output)
	}
	if out["mean"].(float64) != 25 {
		t.Fatalf("expected mean=25, got %v", out["mean"])
	}
}

func TestRunnerRejectsForbiddenCodeBeforeExecution(t *testing.T) {
	r := New(time.Second)
	result, _ := r.Run("import subprocess\nsubprocess.run(['ls'])", "{}")
	if result.Success {
		t.Fatalf("expected forbidden code to fail")
	}
	if result.Error != ErrForbiddenCode {
		t.Fatalf("expected forbidden code error, got %q", result.Error)
	}
}
