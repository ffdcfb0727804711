package events

import "encoding/json"

// marshalFlat produces {"type","agent","timestamp"} merged with the
// event's Payload map, so callers never see a nested "payload" key. Event
// JSON is UTF-8 with non-ASCII preserved, which json.Marshal does by
// default; it still HTML-escapes <, > and &, whatever the writer's
// SetEscapeHTML setting.
func marshalFlat(e Event) ([]byte, error) {
	out := make(map[string]any, len(e.Payload)+3)
	for k, v := range e.Payload {
		out[k] = v
	}
	out["type"] = string(e.Type)
	if e.Agent != "" {
		out["agent"] = e.Agent
	}
	out["timestamp"] = e.Timestamp
	return json.Marshal(out)
}
