package events

import (
	"log/slog"
	"time"
)

// defaultCapacity bounds the per-session FIFO; beyond this, Publish drops
// and logs rather than blocking the publishing agent indefinitely, per the
// spec's "non-blocking try-put threshold, otherwise logs and drops" rule.
const defaultCapacity = 256

// Bus is a bounded, per-session event queue. By contract, only the
// currently-scheduled agent publishes; only the orchestrator's drain
// goroutine consumes. It is MPMC-safe in principle (a buffered channel),
// but in practice single-producer/single-consumer.
type Bus struct {
	sessionID string
	ch        chan Event
	log       *slog.Logger
}

// New creates a bounded event bus for one session.
func New(sessionID string, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		sessionID: sessionID,
		ch:        make(chan Event, defaultCapacity),
		log:       log,
	}
}

// Publish enriches the event with {agent, timestamp} and enqueues it. If
// the queue is full, the publish is dropped and logged rather than
// blocking the agent.
func (b *Bus) Publish(agent string, typ Type, payload map[string]any) {
	ev := Event{
		Type:      typ,
		Agent:     agent,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	select {
	case b.ch <- ev:
	default:
		b.log.Warn("event bus full, dropping event",
			"session_id", b.sessionID, "type", typ, "agent", agent)
	}
}

// Channel exposes the underlying receive-only channel for the orchestrator
// drain loop's select statement.
func (b *Bus) Channel() <-chan Event {
	return b.ch
}

// DrainRemaining flushes any events left in the queue without blocking,
// used after an agent task completes to pick up trailing events before the
// next phase.
func (b *Bus) DrainRemaining() []Event {
	var out []Event
	for {
		select {
		case ev := <-b.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Close is a no-op placeholder kept for symmetry with other lifecycle
// methods; the channel itself is garbage collected once the session's
// Bus is dropped.
func (b *Bus) Close() {}
