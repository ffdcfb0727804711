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
	"github.com/codeready-toolchain/deepresearch/pkg/search"
)

func TestDedupeStringsDropsEmptyAndRepeated(t *testing.T) {
	in := []string{"a", "", "b", "a", "c", "b"}
	out := dedupeStrings(in)
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func stubSearchServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"data": map[string]any{
				"webPages": map[string]any{
					"value": []map[string]any{
						{"url": "https://example.com/a", "name": "A", "snippet": "s1", "summary": "sum1", "siteName": "Example"},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearcherProcessResearchesOutlineAndAdvancesPhase(t *testing.T) {
	llmSrv := stubLLMServer(t, `{"facts":[{"content":"fact one","source_url":"https://example.com/a","source_name":"Example","source_type":"news","credibility_score":0.8}],
		"entities":["Acme Corp"],"insights":["insight one"],"follow_up_queries":[],"source_tracing_queries":[]}`)
	searchSrv := stubSearchServer(t)

	llmClient := llm.New(llmSrv.URL, "", "test-model", 5*time.Second)
	searchAdapter := search.New(searchSrv.URL, "", 5*time.Second, 16, time.Minute, nil)
	bus := events.New("test-session", nil)
	searcher := NewSearcher(llmClient, searchAdapter, bus, 3, 2, nil)

	state := research.New("test query", "sess-1", 3)
	state.Outline = []research.Section{
		{ID: "sec-1", Title: "Background", SearchQueries: []string{"background query"}},
	}

	err := searcher.Process(t.Context(), state)
	require.NoError(t, err)
	assert.Equal(t, research.PhaseAnalyzing, state.PhaseSnapshot())
	assert.Len(t, state.Facts, 1)
	assert.Equal(t, "fact one", state.Facts[0].Content)
	assert.Contains(t, state.KeyEntities, "Acme Corp")
}

func TestSearcherProcessReResearchingDrainsPendingQueriesAndCapsAtFive(t *testing.T) {
	llmSrv := stubLLMServer(t, `{"facts":[{"content":"supplemental fact","source_url":"https://example.com/a","source_name":"Example","source_type":"report","credibility_score":0.9}]}`)
	searchSrv := stubSearchServer(t)

	llmClient := llm.New(llmSrv.URL, "", "test-model", 5*time.Second)
	searchAdapter := search.New(searchSrv.URL, "", 5*time.Second, 16, time.Minute, nil)
	bus := events.New("test-session", nil)
	searcher := NewSearcher(llmClient, searchAdapter, bus, 3, 2, nil)

	state := research.New("test query", "sess-1", 3)
	state.SetPhase(research.PhaseReResearching)
	state.PendingSearchQueries = []string{"q1", "q2", "q3", "q4", "q5", "q6"}

	err := searcher.Process(t.Context(), state)
	require.NoError(t, err)
	assert.Equal(t, research.PhaseWriting, state.PhaseSnapshot())
	assert.Empty(t, state.PendingSearchQueries)
	require.Len(t, state.Facts, 1)
	assert.True(t, state.Facts[0].IsSupplementary)

	progress := 0
	for _, ev := range bus.DrainRemaining() {
		if ev.Type == events.TypeSearchProgress {
			progress++
		}
	}
	assert.Equal(t, 5, progress, "only the first five pending queries are searched")
}
