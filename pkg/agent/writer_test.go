package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/deepresearch/pkg/events"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

func TestFactsForSectionFiltersByRelatedSection(t *testing.T) {
	state := research.New("q", "sess-1", 1)
	state.Facts = []research.Fact{
		{Content: "fact about sec-1", SourceName: "Src A", RelatedSections: []string{"sec-1"}},
		{Content: "fact about sec-2", SourceName: "Src B", RelatedSections: []string{"sec-2"}},
		{Content: "fact about both", SourceName: "Src C", RelatedSections: []string{"sec-1", "sec-2"}},
	}

	out := factsForSection(state, "sec-1")
	assert.Contains(t, out, "fact about sec-1")
	assert.Contains(t, out, "fact about both")
	assert.NotContains(t, out, "fact about sec-2")
}

func TestReferencesSectionDedupesBySourceURL(t *testing.T) {
	state := research.New("q", "sess-1", 1)
	state.Facts = []research.Fact{
		{SourceName: "Src A", SourceURL: "https://a.example"},
		{SourceName: "Src A dup", SourceURL: "https://a.example"},
		{SourceName: "Src B", SourceURL: "https://b.example"},
		{SourceName: "No URL", SourceURL: ""},
	}

	out := referencesSection(state)
	assert.Contains(t, out, "1. Src A. https://a.example")
	assert.Contains(t, out, "2. Src B. https://b.example")
	assert.NotContains(t, out, "dup")
	assert.NotContains(t, out, "No URL")
}

func TestWriterProcessDraftsAndSynthesizesReport(t *testing.T) {
	srv := stubLLMServer(t, "synthesized prose")
	llmClient := llm.New(srv.URL, "", "test-model", 5*time.Second)
	bus := events.New("sess-1", nil)
	writer := NewWriter(llmClient, bus, nil)

	state := research.New("Electric vehicle adoption", "sess-1", 2)
	state.Outline = []research.Section{
		{ID: "sec-1", Title: "Market Overview", Status: research.SectionPending},
	}
	state.Facts = []research.Fact{
		{Content: "EV sales grew 40%", SourceName: "NBS", RelatedSections: []string{"sec-1"}, SourceURL: "https://nbs.example"},
	}

	err := writer.Process(t.Context(), state)
	require.NoError(t, err)
	assert.Equal(t, research.PhaseReviewing, state.PhaseSnapshot())
	assert.Equal(t, research.SectionDrafted, state.Outline[0].Status)
	assert.Contains(t, state.FinalReport, "Electric vehicle adoption")
	assert.Contains(t, state.FinalReport, "Market Overview")
	assert.Contains(t, state.FinalReport, "References")
}

func TestWriterReviseAddressesUnresolvedIssuesOnly(t *testing.T) {
	srv := stubLLMServer(t, `{"revised_report":"revised report body","addressed_issues":["iss-1"]}`)
	llmClient := llm.New(srv.URL, "", "test-model", 5*time.Second)
	bus := events.New("sess-1", nil)
	writer := NewWriter(llmClient, bus, nil)

	state := research.New("q", "sess-1", 2)
	state.SetPhase(research.PhaseRevising)
	state.FinalReport = "old report"
	state.CriticFeedback = []research.CriticFeedback{
		{ID: "iss-1", Severity: "major", IssueType: "missing_source", TargetSection: "sec-1", Description: "needs a source", Resolved: false},
		{ID: "iss-2", Severity: "minor", IssueType: "bias", TargetSection: "sec-2", Description: "still open", Resolved: false},
	}

	err := writer.Process(t.Context(), state)
	require.NoError(t, err)
	assert.Equal(t, research.PhaseReviewing, state.PhaseSnapshot())
	assert.Equal(t, "revised report body", state.FinalReport)
	assert.True(t, state.CriticFeedback[0].Resolved, "iss-1 was named in addressed_issues")
	assert.False(t, state.CriticFeedback[1].Resolved, "iss-2 was not named in addressed_issues")
	assert.Equal(t, 1, state.UnresolvedIssues)
}
