package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/codeready-toolchain/deepresearch/pkg/events"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/metrics"
	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

// Critic is the CriticMaster role: reviews the final report against the
// gathered facts, scores it on a 1-10 scale, and routes the run to
// Completed, Revising, or ReResearching; pass requires quality_score >= 7.
type Critic struct {
	llmClient *llm.Adapter
	bus       *events.Bus
	log       *slog.Logger
}

// NewCritic constructs the Critic agent.
func NewCritic(llmClient *llm.Adapter, bus *events.Bus, log *slog.Logger) *Critic {
	if log == nil {
		log = slog.Default()
	}
	return &Critic{llmClient: llmClient, bus: bus, log: log}
}

func (c *Critic) Role() Role { return RoleCritic }

const criticReviewPrompt = `You are the critic reviewing a research report. Given the report and the facts it is supposed to be grounded in, respond with JSON:
{"overall_assessment":{"quality_score":1-10,"verdict":"pass|needs_revision|major_issues","summary":""},
 "issues":[{"target_section","issue_type":"missing_source|logic_error|bias|hallucination|outdated|incomplete","severity":"critical|major|minor","description","suggestion","requires_new_search":bool,"search_query":""}],
 "fact_check_results":[string],
 "missing_aspects":[string]}
Respond with JSON only.`

type criticResponse struct {
	OverallAssessment struct {
		QualityScore float64 `mapstructure:"quality_score"`
		Verdict      string  `mapstructure:"verdict"`
		Summary      string  `mapstructure:"summary"`
	} `mapstructure:"overall_assessment"`
	Issues []struct {
		TargetSection     string `mapstructure:"target_section"`
		IssueType         string `mapstructure:"issue_type"`
		Severity          string `mapstructure:"severity"`
		Description       string `mapstructure:"description"`
		Suggestion        string `mapstructure:"suggestion"`
		RequiresNewSearch bool   `mapstructure:"requires_new_search"`
		SearchQuery       string `mapstructure:"search_query"`
	} `mapstructure:"issues"`
	FactCheckResults []string `mapstructure:"fact_check_results"`
	MissingAspects   []string `mapstructure:"missing_aspects"`
}

// Process runs one review cycle, incrementing iteration and routing the
// state machine. Iteration never exceeds max_iterations: at
// max_iterations=0 the review never runs at all, and the run transitions
// straight to Completed regardless of verdict.
func (c *Critic) Process(ctx context.Context, state *research.State) error {
	state.Lock()
	maxIterations := state.MaxIterations
	if maxIterations == 0 {
		state.Unlock()
		c.forceComplete(state, maxIterationsReason)
		return nil
	}
	state.Iteration++
	iteration := state.Iteration
	state.Unlock()

	resp, err := c.review(ctx, state)
	if err != nil {
		state.AppendError(fmt.Sprintf("critic review failed: %v", err))
		c.forceComplete(state, "critic review failed; completing without a passing review")
		return nil
	}

	c.applyReview(state, resp)
	metrics.CriticVerdicts.WithLabelValues(resp.OverallAssessment.Verdict).Inc()

	c.bus.Publish(string(RoleCritic), events.TypeReview, map[string]any{
		"quality_score": resp.OverallAssessment.QualityScore,
		"verdict":       resp.OverallAssessment.Verdict,
		"summary":       resp.OverallAssessment.Summary,
	})

	if resp.OverallAssessment.Verdict == "pass" && resp.OverallAssessment.QualityScore >= 7 {
		state.SetPhase(research.PhaseCompleted)
		return nil
	}

	if iteration >= maxIterations {
		c.forceComplete(state, maxIterationsReason)
		return nil
	}

	c.route(state, resp)
	return nil
}

func (c *Critic) review(ctx context.Context, state *research.State) (criticResponse, error) {
	raw, _, err := c.llmClient.Chat(ctx, criticReviewPrompt,
		fmt.Sprintf("Report:\n%s\n\nFacts available:\n%d facts, %d data points", state.FinalReport, len(state.Facts), len(state.DataPoints)),
		llm.ChatOptions{JSONMode: true, Temperature: 0.3, MaxTokens: 2048})
	if err != nil {
		return criticResponse{}, err
	}
	parsed, err := llm.ExtractJSON(raw)
	if err != nil {
		return criticResponse{}, err
	}
	var resp criticResponse
	if err := mapstructure.Decode(parsed, &resp); err != nil {
		return criticResponse{}, err
	}
	return resp, nil
}

// applyReview records quality_score and critic_feedback entries, and
// counts unresolved issues.
func (c *Critic) applyReview(state *research.State, resp criticResponse) {
	feedback := make([]research.CriticFeedback, 0, len(resp.Issues))
	for _, iss := range resp.Issues {
		issueType := research.IssueType(iss.IssueType)
		switch issueType {
		case research.IssueMissingSource, research.IssueLogicError, research.IssueBias, research.IssueHallucination, research.IssueOutdated, research.IssueIncomplete:
		default:
			issueType = research.IssueIncomplete
		}
		severity := research.IssueSeverity(iss.Severity)
		switch severity {
		case research.SeverityCritical, research.SeverityMajor, research.SeverityMinor:
		default:
			severity = research.SeverityMinor
		}
		feedback = append(feedback, research.CriticFeedback{
			ID:                uuid.NewString(),
			TargetSection:     iss.TargetSection,
			IssueType:         issueType,
			Severity:          severity,
			Description:       iss.Description,
			Suggestion:        iss.Suggestion,
			RequiresNewSearch: iss.RequiresNewSearch,
			SearchQuery:       iss.SearchQuery,
		})
	}

	state.Lock()
	state.CriticFeedback = append(state.CriticFeedback, feedback...)
	state.QualityScore = resp.OverallAssessment.QualityScore
	unresolved := 0
	for _, fb := range state.CriticFeedback {
		if !fb.Resolved {
			unresolved++
		}
	}
	state.UnresolvedIssues = unresolved
	state.Unlock()

	if len(resp.Issues) > 0 || len(resp.MissingAspects) > 0 {
		c.bus.Publish(string(RoleCritic), events.TypeCriticFeedback, map[string]any{
			"issues_count": len(resp.Issues), "missing_aspects": resp.MissingAspects,
		})
	}
}

// route decides between re-research and revise:
// research_issue_count is the number of critical/major issues whose type
// is missing_source/incomplete/outdated; critical_major is the count of
// all critical/major issues regardless of type. Re-research requires
// collected search queries, at least one research-flavored signal
// (research_issue_count>0 or a non-empty missing_aspects list), and
// either no critical/major issues at all or the research-issue share
// exceeding 0.3 of all critical/major issues.
func (c *Critic) route(state *research.State, resp criticResponse) {
	var searchQueries []string
	researchIssueCount := 0
	criticalMajor := 0

	for _, iss := range resp.Issues {
		severity := research.IssueSeverity(iss.Severity)
		isCriticalOrMajor := severity == research.SeverityCritical || severity == research.SeverityMajor
		if isCriticalOrMajor {
			criticalMajor++
			switch research.IssueType(iss.IssueType) {
			case research.IssueMissingSource, research.IssueIncomplete, research.IssueOutdated:
				researchIssueCount++
			}
		}
		if iss.RequiresNewSearch && iss.SearchQuery != "" {
			searchQueries = append(searchQueries, iss.SearchQuery)
		}
	}

	missingAspects := resp.MissingAspects
	if len(missingAspects) > 3 {
		missingAspects = missingAspects[:3]
	}
	searchQueries = append(searchQueries, missingAspects...)

	unique := dedupeStrings(searchQueries)
	if len(unique) > 5 {
		unique = unique[:5]
	}

	ratio := 0.0
	if criticalMajor > 0 {
		ratio = float64(researchIssueCount) / float64(criticalMajor)
	}

	needsResearch := researchIssueCount > 0 || len(resp.MissingAspects) > 0
	shareOK := criticalMajor == 0 || ratio > 0.3

	if len(unique) > 0 && needsResearch && shareOK {
		state.Lock()
		state.PendingSearchQueries = unique
		state.Unlock()
		state.SetPhase(research.PhaseReResearching)
		return
	}

	state.SetPhase(research.PhaseRevising)
}

const maxIterationsReason = "max_iterations reached without a passing review"

func (c *Critic) forceComplete(state *research.State, reason string) {
	c.bus.Publish(string(RoleCritic), events.TypeWarning, map[string]any{
		"reason": reason,
	})
	state.SetPhase(research.PhaseCompleted)
}
