// Package orchestrator drives the five agent roles through the research
// phase state machine, forwarding their event-bus traffic to the caller
// and checkpointing after every phase. One agent is active at a time; each
// phase step runs its agent in a background goroutine while the run loop
// drains that agent's events and polls for cancellation.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeready-toolchain/deepresearch/pkg/agent"
	"github.com/codeready-toolchain/deepresearch/pkg/cancel"
	"github.com/codeready-toolchain/deepresearch/pkg/checkpoint"
	"github.com/codeready-toolchain/deepresearch/pkg/events"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/metrics"
	"github.com/codeready-toolchain/deepresearch/pkg/research"
	"github.com/codeready-toolchain/deepresearch/pkg/sandbox"
	"github.com/codeready-toolchain/deepresearch/pkg/search"
)

// drainInterval is the coarse event-drain/cancellation poll period.
const drainInterval = 500 * time.Millisecond

// Deps bundles the shared, concurrency-safe clients the Orchestrator
// wires into a fresh set of agents for every session, plus the stores it
// drives directly. Agents themselves are NOT shared across sessions
// because each one binds a single per-session event bus at construction;
// the clients they wrap (LLM, Search, Runner) are safe to share since
// they hold no per-session state.
type Deps struct {
	LLM                   *llm.Adapter
	Search                *search.Adapter
	Runner                *sandbox.Runner
	MaxConcurrentSections int
	MaxSearchDepth        int
	MaxCodeRetries        int
	Checkpoints           checkpoint.Store
	Cancel                *cancel.Signal
	Log                   *slog.Logger
}

// agentSet is the five per-session agents, freshly constructed for one
// run and bound to that run's event bus.
type agentSet struct {
	planner  *agent.Planner
	searcher *agent.Searcher
	analyst  *agent.Analyst
	writer   *agent.Writer
	critic   *agent.Critic
}

func (o *Orchestrator) newAgentSet(bus *events.Bus) agentSet {
	d := o.deps
	return agentSet{
		planner:  agent.NewPlanner(d.LLM, bus, d.Log),
		searcher: agent.NewSearcher(d.LLM, d.Search, bus, d.MaxConcurrentSections, d.MaxSearchDepth, d.Log),
		analyst:  agent.NewAnalyst(d.LLM, d.Runner, bus, d.Log, d.MaxCodeRetries),
		writer:   agent.NewWriter(d.LLM, bus, d.Log),
		critic:   agent.NewCritic(d.LLM, bus, d.Log),
	}
}

// Orchestrator owns the phase state machine for one research run at a
// time; callers construct one per process and call Run per session.
type Orchestrator struct {
	deps   Deps
	tracer trace.Tracer
}

// New constructs an Orchestrator.
func New(deps Deps) *Orchestrator {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Orchestrator{deps: deps, tracer: otel.Tracer("deepresearch/orchestrator")}
}

// Run drives one research session to completion (or cancellation),
// returning the output event channel the facade turns into SSE frames.
// The channel is closed when the run terminates. If resume is true and a
// checkpoint exists for sessionID, the run continues from the saved
// phase instead of starting fresh.
func (o *Orchestrator) Run(ctx context.Context, sessionID, userID, query string, maxIterations int, resume bool) <-chan events.Event {
	out := make(chan events.Event, 256)
	go o.run(ctx, sessionID, userID, query, maxIterations, resume, out)
	return out
}

func (o *Orchestrator) run(ctx context.Context, sessionID, userID, query string, maxIterations int, resume bool, out chan<- events.Event) {
	defer close(out)

	ctx, span := o.tracer.Start(ctx, "research_session", trace.WithAttributes(
		attribute.String("session_id", sessionID), attribute.Int("max_iterations", maxIterations)))
	defer span.End()

	o.deps.Cancel.Clear(sessionID)

	state, resumed := o.loadOrCreate(sessionID, userID, query, maxIterations, resume)
	query = state.Query
	bus := events.New(sessionID, o.deps.Log)
	agents := o.newAgentSet(bus)

	if resumed {
		emit(out, events.Event{Type: events.TypeResearchResumed, Agent: "orchestrator", Timestamp: time.Now(),
			Payload: map[string]any{"phase": string(state.PhaseSnapshot())}})
	} else {
		emit(out, events.Event{Type: events.TypeResearchStart, Agent: "orchestrator", Timestamp: time.Now(),
			Payload: map[string]any{"query": query, "session_id": sessionID}})
		state.SetPhase(research.PhasePlanning)
	}

	for {
		phase := state.PhaseSnapshot()
		if phase == research.PhaseCompleted || phase == research.PhaseFailed {
			break
		}

		if o.deps.Cancel.IsCancelled(sessionID) {
			o.handleCancellation(sessionID, userID, query, state, out)
			return
		}

		emit(out, events.Event{Type: events.TypePhase, Agent: "orchestrator", Timestamp: time.Now(),
			Payload: map[string]any{"phase": string(phase)}})
		metrics.PhaseTransitions.WithLabelValues(string(phase)).Inc()

		ag := agentForPhase(phase, agents)
		if ag == nil {
			o.deps.Log.Error("no agent registered for phase, forcing failure", "phase", phase)
			state.SetPhase(research.PhaseFailed)
			break
		}

		stepStart := time.Now()
		emit(out, events.Event{Type: events.TypeResearchStep, Agent: string(ag.Role()), Timestamp: stepStart,
			Payload: map[string]any{"status": "start", "phase": string(phase)}})

		if cancelled := o.runPhaseStep(ctx, sessionID, ag, bus, state, out); cancelled {
			o.handleCancellation(sessionID, userID, query, state, out)
			return
		}

		emit(out, events.Event{Type: events.TypeResearchStep, Agent: string(ag.Role()), Timestamp: time.Now(),
			Payload: map[string]any{"status": "complete", "phase": string(phase), "duration_ms": time.Since(stepStart).Milliseconds()}})

		state.FlushMessages()
		o.checkpointAfterPhase(sessionID, userID, query, state, out)
	}

	o.finish(sessionID, userID, query, state, out)
}

// runPhaseStep dispatches one agent step in a goroutine and concurrently
// drains its event bus at drainInterval, also polling cancellation on
// that same cadence. Returns true if cancellation was observed mid-step.
func (o *Orchestrator) runPhaseStep(ctx context.Context, sessionID string, ag agent.Agent, bus *events.Bus, state *research.State, out chan<- events.Event) bool {
	stepCtx, span := o.tracer.Start(ctx, fmt.Sprintf("agent:%s", ag.Role()))
	defer span.End()

	done := make(chan error, 1)
	go func() {
		done <- ag.Process(stepCtx, state)
	}()

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-bus.Channel():
			emit(out, ev)
		case err := <-done:
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				state.AppendError(fmt.Sprintf("%s step failed: %v", ag.Role(), err))
			}
			for _, ev := range bus.DrainRemaining() {
				emit(out, ev)
			}
			return false
		case <-ticker.C:
			if o.deps.Cancel.IsCancelled(sessionID) {
				return true
			}
		}
	}
}

// agentForPhase maps the current phase to the agent contractually
// entered for it.
func agentForPhase(phase research.Phase, agents agentSet) agent.Agent {
	switch phase {
	case research.PhasePlanning:
		return agents.planner
	case research.PhaseResearching, research.PhaseReResearching:
		return agents.searcher
	case research.PhaseAnalyzing:
		return agents.analyst
	case research.PhaseWriting, research.PhaseRevising:
		return agents.writer
	case research.PhaseReviewing:
		return agents.critic
	default:
		return nil
	}
}

func (o *Orchestrator) loadOrCreate(sessionID, userID, query string, maxIterations int, resume bool) (*research.State, bool) {
	if resume {
		if loaded, err := o.deps.Checkpoints.Load(sessionID); err == nil && loaded != nil {
			return loaded, true
		}
	}
	return research.New(query, sessionID, maxIterations), false
}

func (o *Orchestrator) checkpointAfterPhase(sessionID, userID, query string, state *research.State, out chan<- events.Event) {
	start := time.Now()
	if _, err := o.deps.Checkpoints.Save(sessionID, userID, query, state, checkpoint.StatusRunning, ""); err != nil {
		o.deps.Log.Warn("checkpoint save failed, continuing", "session_id", sessionID, "error", err)
		return
	}
	metrics.CheckpointLatency.Observe(time.Since(start).Seconds())
	emit(out, events.Event{Type: events.TypeCheckpointSaved, Agent: "orchestrator", Timestamp: time.Now()})
}

func (o *Orchestrator) handleCancellation(sessionID, userID, query string, state *research.State, out chan<- events.Event) {
	if _, err := o.deps.Checkpoints.Save(sessionID, userID, query, state, checkpoint.StatusFailed, "cancelled"); err != nil {
		o.deps.Log.Warn("checkpoint save on cancellation failed", "session_id", sessionID, "error", err)
	}
	emit(out, events.Event{Type: events.TypeResearchCancelled, Agent: "orchestrator", Timestamp: time.Now()})
	metrics.SessionsCompleted.WithLabelValues("cancelled").Inc()
}

func (o *Orchestrator) finish(sessionID, userID, query string, state *research.State, out chan<- events.Event) {
	finalPhase := state.PhaseSnapshot()
	status := checkpoint.StatusCompleted
	if finalPhase == research.PhaseFailed {
		status = checkpoint.StatusFailed
	}
	if _, err := o.deps.Checkpoints.Save(sessionID, userID, query, state, status, ""); err != nil {
		o.deps.Log.Warn("final checkpoint save failed", "session_id", sessionID, "error", err)
	}

	state.Lock()
	qualityScore := state.QualityScore
	factsCount := len(state.Facts)
	state.Unlock()

	emit(out, events.Event{Type: events.TypeResearchComplete, Agent: "orchestrator", Timestamp: time.Now(),
		Payload: map[string]any{"quality_score": qualityScore, "facts_count": factsCount, "phase": string(finalPhase)}})
	metrics.SessionsCompleted.WithLabelValues(string(finalPhase)).Inc()
}

func emit(out chan<- events.Event, ev events.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	out <- ev
}
