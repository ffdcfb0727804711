package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/deepresearch/pkg/events"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

// stubLLMServer returns an httptest server speaking the OpenAI chat
// completions wire format, always replying with the given assistant
// content, mirroring the wire shape pkg/llm/adapter.go issues requests
// against.
func stubLLMServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 10, "total_tokens": 20},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newCritic(t *testing.T, assistantContent string) (*Critic, *events.Bus) {
	srv := stubLLMServer(t, assistantContent)
	llmClient := llm.New(srv.URL, "", "test-model", 5*time.Second)
	bus := events.New("test-session", nil)
	return NewCritic(llmClient, bus, nil), bus
}

func baseState(maxIterations int) *research.State {
	s := research.New("test query", "sess-1", maxIterations)
	s.FinalReport = "# Report\nsome content"
	return s
}

func TestCriticMaxIterationsZeroForcesImmediateComplete(t *testing.T) {
	critic, _ := newCritic(t, `{"overall_assessment":{"quality_score":2,"verdict":"major_issues"}}`)
	state := baseState(0)

	err := critic.Process(t.Context(), state)
	require.NoError(t, err)
	assert.Equal(t, research.PhaseCompleted, state.PhaseSnapshot())
	assert.Equal(t, 0, state.Iteration)
}

func TestCriticPassRoutesToCompleted(t *testing.T) {
	critic, _ := newCritic(t, `{"overall_assessment":{"quality_score":8,"verdict":"pass","summary":"solid"}}`)
	state := baseState(3)

	err := critic.Process(t.Context(), state)
	require.NoError(t, err)
	assert.Equal(t, research.PhaseCompleted, state.PhaseSnapshot())
	assert.Equal(t, 1, state.Iteration)
}

func TestCriticRoutesToReResearchOnMissingSourceIssue(t *testing.T) {
	// One major missing_source issue with a search query and one minor
	// issue: researchIssueCount=1, criticalMajor=1, ratio=1 > 0.3.
	resp := `{
		"overall_assessment":{"quality_score":4,"verdict":"needs_revision"},
		"issues":[
			{"target_section":"sec-1","issue_type":"missing_source","severity":"major","description":"no 2024 figures","requires_new_search":true,"search_query":"NBS 2024 auto sales"},
			{"target_section":"sec-2","issue_type":"bias","severity":"minor","description":"tone"}
		]
	}`
	critic, _ := newCritic(t, resp)
	state := baseState(2)

	err := critic.Process(t.Context(), state)
	require.NoError(t, err)
	assert.Equal(t, research.PhaseReResearching, state.PhaseSnapshot())
	assert.Equal(t, []string{"NBS 2024 auto sales"}, state.PendingSearchQueries)
}

func TestCriticRoutesToRevisingWhenNoSearchQueries(t *testing.T) {
	resp := `{
		"overall_assessment":{"quality_score":5,"verdict":"needs_revision"},
		"issues":[
			{"target_section":"sec-1","issue_type":"logic_error","severity":"critical","description":"contradiction"}
		]
	}`
	critic, _ := newCritic(t, resp)
	state := baseState(2)

	err := critic.Process(t.Context(), state)
	require.NoError(t, err)
	assert.Equal(t, research.PhaseRevising, state.PhaseSnapshot())
}

func TestCriticRoutesToReResearchOnMissingAspectsAlone(t *testing.T) {
	// No issues carry a search query, but missing_aspects alone supplies
	// the query set and signals a research-flavored gap.
	resp := `{
		"overall_assessment":{"quality_score":4,"verdict":"needs_revision"},
		"issues":[{"target_section":"sec-1","issue_type":"bias","severity":"minor","description":"tone"}],
		"missing_aspects":["competitor pricing","regulatory timeline","supply chain risk","a fourth aspect"]
	}`
	critic, _ := newCritic(t, resp)
	state := baseState(2)

	err := critic.Process(t.Context(), state)
	require.NoError(t, err)
	assert.Equal(t, research.PhaseReResearching, state.PhaseSnapshot())
	assert.Equal(t, []string{"competitor pricing", "regulatory timeline", "supply chain risk"}, state.PendingSearchQueries)
}

func TestCriticForcesCompleteAtMaxIterations(t *testing.T) {
	resp := `{"overall_assessment":{"quality_score":3,"verdict":"major_issues"},
		"issues":[{"issue_type":"missing_source","severity":"major","requires_new_search":true,"search_query":"q"}]}`
	critic, _ := newCritic(t, resp)
	state := baseState(1)
	state.Iteration = 0 // about to become 1, which equals max_iterations

	err := critic.Process(t.Context(), state)
	require.NoError(t, err)
	assert.Equal(t, research.PhaseCompleted, state.PhaseSnapshot())
	assert.Equal(t, 1, state.Iteration)
}
