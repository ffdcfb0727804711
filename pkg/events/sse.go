package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// doneFrame is the terminal SSE marker.
const doneFrame = "data: [DONE]\n\n"

// WriteSSE renders one event as an SSE frame: "data: <json>\n\n".
// Non-ASCII content (e.g. Chinese query text) is written as raw UTF-8.
// The encoder's HTML escaping is off, but Event.MarshalJSON builds the
// body with json.Marshal, so <, > and & inside it are still escaped.
func WriteSSE(w io.Writer, ev Event) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return err
	}
	payload := bytes.TrimRight(buf.Bytes(), "\n")
	_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// WriteDone emits the terminal SSE marker.
func WriteDone(w io.Writer) error {
	_, err := io.WriteString(w, doneFrame)
	return err
}

// WriteErrorAndDone emits a structured error event followed by the
// terminal marker, matching "on server error inside the generator, emit
// data: {type:error,...} then [DONE]".
func WriteErrorAndDone(w io.Writer, content string) error {
	ev := Event{Type: TypeError, Payload: map[string]any{"content": content}}
	if err := WriteSSE(w, ev); err != nil {
		return err
	}
	return WriteDone(w)
}
