package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/deepresearch/pkg/agent"
	"github.com/codeready-toolchain/deepresearch/pkg/events"
	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

func testAgentSet() agentSet {
	bus := events.New("test-session", nil)
	return agentSet{
		planner:  agent.NewPlanner(nil, bus, nil),
		searcher: agent.NewSearcher(nil, nil, bus, 1, 1, nil),
		analyst:  agent.NewAnalyst(nil, nil, bus, nil, 3),
		writer:   agent.NewWriter(nil, bus, nil),
		critic:   agent.NewCritic(nil, bus, nil),
	}
}

func TestAgentForPhaseMapsEveryActivePhase(t *testing.T) {
	agents := testAgentSet()

	cases := []struct {
		phase research.Phase
		want  agent.Agent
	}{
		{research.PhasePlanning, agents.planner},
		{research.PhaseResearching, agents.searcher},
		{research.PhaseReResearching, agents.searcher},
		{research.PhaseAnalyzing, agents.analyst},
		{research.PhaseWriting, agents.writer},
		{research.PhaseRevising, agents.writer},
		{research.PhaseReviewing, agents.critic},
	}

	for _, tc := range cases {
		got := agentForPhase(tc.phase, agents)
		assert.Same(t, tc.want, got, "phase %s", tc.phase)
	}
}

func TestAgentForPhaseReturnsNilForInitAndTerminalPhases(t *testing.T) {
	agents := testAgentSet()

	assert.Nil(t, agentForPhase(research.PhaseInit, agents))
	assert.Nil(t, agentForPhase(research.PhaseCompleted, agents))
	assert.Nil(t, agentForPhase(research.PhaseFailed, agents))
}
