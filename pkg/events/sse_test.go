package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestWriteSSEPreservesUnicode(t *testing.T) {
	var buf bytes.Buffer
	ev := Event{
		Type:      TypePhase,
		Agent:     "orchestrator",
		Timestamp: time.Unix(0, 0).UTC(),
		Payload:   map[string]any{"phase": "planning", "note": "中国新能源汽车"},
	}
	if err := WriteSSE(&buf, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "data: ") || !strings.HasSuffix(out, "\n\n") {
		t.Fatalf("unexpected frame shape: %q", out)
	}
	if !strings.Contains(out, "中国新能源汽车") {
		t.Fatalf("expected non-ASCII content preserved, got %q", out)
	}

	jsonPart := strings.TrimSuffix(strings.TrimPrefix(out, "data: "), "\n\n")
	var decoded map[string]any
	if err := json.Unmarshal([]byte(jsonPart), &decoded); err != nil {
		t.Fatalf("expected valid JSON payload: %v", err)
	}
	if decoded["type"] != "phase" {
		t.Fatalf("expected type=phase, got %v", decoded["type"])
	}
}

func TestWriteDone(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDone(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "data: [DONE]\n\n" {
		t.Fatalf("unexpected done frame: %q", buf.String())
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	b := New("s1", nil)
	for i := 0; i < defaultCapacity+10; i++ {
		b.Publish("searcher", TypeObservation, map[string]any{"i": i})
	}
	drained := b.DrainRemaining()
	if len(drained) != defaultCapacity {
		t.Fatalf("expected exactly capacity events retained, got %d", len(drained))
	}
}
