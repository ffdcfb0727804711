// Package agent provides the five polymorphic research roles (Planner,
// Searcher, Analyst, Writer, Critic), each implementing one
// process(state) -> state step against the shared research state for
// one phase.
package agent

import (
	"context"

	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

// Role identifies one of the five agents for logging, event enrichment,
// and AgentLog entries.
type Role string

const (
	RolePlanner  Role = "planner"
	RoleSearcher Role = "searcher"
	RoleAnalyst  Role = "analyst"
	RoleWriter   Role = "writer"
	RoleCritic   Role = "critic"
)

// Agent is the uniform contract every role satisfies. Process receives a
// mutable reference to the shared research state for the duration of one
// call only; implementations must not retain the pointer afterward, and
// only one agent mutates the state at a time.
type Agent interface {
	Role() Role
	Process(ctx context.Context, state *research.State) error
}
