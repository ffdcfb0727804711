package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/codeready-toolchain/deepresearch/pkg/events"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

// Writer is the LeadWriter role: drafts per-section prose from the
// gathered facts and data points, then synthesizes the executive summary
// and numbered sections into the final report; on a Revising pass it
// re-synthesizes addressing unresolved critic feedback.
type Writer struct {
	llmClient *llm.Adapter
	bus       *events.Bus
	log       *slog.Logger
}

// NewWriter constructs the Writer agent.
func NewWriter(llmClient *llm.Adapter, bus *events.Bus, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{llmClient: llmClient, bus: bus, log: log}
}

func (w *Writer) Role() Role { return RoleWriter }

func (w *Writer) Process(ctx context.Context, state *research.State) error {
	if state.PhaseSnapshot() == research.PhaseRevising {
		w.revise(ctx, state)
		state.SetPhase(research.PhaseReviewing)
		return nil
	}
	w.draftSections(ctx, state)
	w.synthesize(ctx, state)
	state.SetPhase(research.PhaseReviewing)
	return nil
}

const sectionDraftPrompt = `You are the lead writer of a research report. Write the prose content for one report section, grounded strictly in the facts provided. Cite sources inline as (Source Name). Do not fabricate facts not present in the material. Respond with the section's markdown content only, no heading.`

// draftSections writes prose for every section that is not yet final
// (sections the Searcher marked drafted are written too), streaming each
// section's content as it completes.
func (w *Writer) draftSections(ctx context.Context, state *research.State) {
	for i := range state.Outline {
		section := &state.Outline[i]
		if section.Status == research.SectionFinal {
			continue
		}
		facts := factsForSection(state, section.ID)
		content, _, err := w.llmClient.Chat(ctx, sectionDraftPrompt,
			fmt.Sprintf("Section: %s\n%s\n\nFacts:\n%s", section.Title, section.Description, facts),
			llm.ChatOptions{Temperature: 0.5, MaxTokens: 2048})
		if err != nil {
			state.AppendError(fmt.Sprintf("writer: section %s draft failed: %v", section.ID, err))
			continue
		}
		section.Content = content
		section.Status = research.SectionDrafted

		state.Lock()
		if state.DraftSections == nil {
			state.DraftSections = map[string]string{}
		}
		state.DraftSections[section.ID] = content
		state.Unlock()

		w.bus.Publish(string(RoleWriter), events.TypeSectionContent, map[string]any{
			"section_id": section.ID, "title": section.Title, "content": content,
		})
	}
}

func factsForSection(state *research.State, sectionID string) string {
	var sb strings.Builder
	for _, f := range state.Facts {
		for _, s := range f.RelatedSections {
			if s == sectionID {
				fmt.Fprintf(&sb, "- %s (%s)\n", f.Content, f.SourceName)
				break
			}
		}
	}
	return sb.String()
}

const executiveSummaryPrompt = `You write the executive summary for a research report, synthesizing the key findings across all sections into 2-4 paragraphs. Respond with markdown content only.`

// synthesize assembles the executive summary, numbered sections, and a
// references list into the final report.
func (w *Writer) synthesize(ctx context.Context, state *research.State) {
	var allContent strings.Builder
	for _, section := range state.Outline {
		fmt.Fprintf(&allContent, "## %s\n%s\n\n", section.Title, section.Content)
	}

	summary, _, err := w.llmClient.Chat(ctx, executiveSummaryPrompt, allContent.String(), llm.ChatOptions{Temperature: 0.4, MaxTokens: 1024})
	if err != nil {
		state.AppendError(fmt.Sprintf("writer: executive summary failed: %v", err))
		summary = ""
	}

	var report strings.Builder
	fmt.Fprintf(&report, "# %s\n\n", state.Query)
	if summary != "" {
		fmt.Fprintf(&report, "## Executive Summary\n\n%s\n\n", summary)
	}
	for i, section := range state.Outline {
		fmt.Fprintf(&report, "## %d. %s\n\n%s\n\n", i+1, section.Title, section.Content)
	}
	if refs := referencesSection(state); refs != "" {
		fmt.Fprintf(&report, "## References\n\n%s\n", refs)
	}

	state.Lock()
	state.FinalReport = report.String()
	state.Unlock()

	w.bus.Publish(string(RoleWriter), events.TypeReportDraft, map[string]any{"length": report.Len()})
}

func referencesSection(state *research.State) string {
	seen := map[string]bool{}
	var sb strings.Builder
	n := 1
	for _, f := range state.Facts {
		if f.SourceURL == "" || seen[f.SourceURL] {
			continue
		}
		seen[f.SourceURL] = true
		fmt.Fprintf(&sb, "%d. %s. %s\n", n, f.SourceName, f.SourceURL)
		n++
	}
	return sb.String()
}

const revisionPrompt = `You are revising a research report to address reviewer feedback. Given the current report and the list of unresolved issues, each tagged with an issue id, produce a corrected report and state exactly which issue ids you addressed. Respond with JSON:
{"revised_report":"","addressed_issues":[""]}
addressed_issues must contain only ids you actually fixed in revised_report. Respond with JSON only.`

type reviseResponse struct {
	RevisedReport   string   `mapstructure:"revised_report"`
	AddressedIssues []string `mapstructure:"addressed_issues"`
}

// revise re-synthesizes the final report addressing unresolved critic
// issues, then marks resolved only the issue ids the writer's own
// response names as addressed.
func (w *Writer) revise(ctx context.Context, state *research.State) {
	var issues strings.Builder
	var unresolved []int
	for i, fb := range state.CriticFeedback {
		if fb.Resolved {
			continue
		}
		unresolved = append(unresolved, i)
		fmt.Fprintf(&issues, "- id=%s [%s/%s] %s: %s (suggestion: %s)\n", fb.ID, fb.Severity, fb.IssueType, fb.TargetSection, fb.Description, fb.Suggestion)
	}
	if len(unresolved) == 0 {
		return
	}

	raw, _, err := w.llmClient.Chat(ctx, revisionPrompt,
		fmt.Sprintf("Current report:\n%s\n\nUnresolved issues:\n%s", state.FinalReport, issues.String()),
		llm.ChatOptions{JSONMode: true, Temperature: 0.4, MaxTokens: 4096})
	if err != nil {
		state.AppendError(fmt.Sprintf("writer: revision failed: %v", err))
		return
	}

	parsed, err := llm.ExtractJSON(raw)
	if err != nil {
		state.AppendError(fmt.Sprintf("writer: revision response parse failed: %v", err))
		return
	}
	var resp reviseResponse
	if err := mapstructure.Decode(parsed, &resp); err != nil {
		state.AppendError(fmt.Sprintf("writer: revision response decode failed: %v", err))
		return
	}
	if resp.RevisedReport == "" {
		state.AppendError("writer: revision response carried no revised_report")
		return
	}

	addressed := make(map[string]bool, len(resp.AddressedIssues))
	for _, id := range resp.AddressedIssues {
		addressed[id] = true
	}

	state.Lock()
	state.FinalReport = resp.RevisedReport
	resolvedCount := 0
	for _, i := range unresolved {
		if addressed[state.CriticFeedback[i].ID] {
			state.CriticFeedback[i].Resolved = true
			resolvedCount++
		}
	}
	unresolvedCount := 0
	for _, fb := range state.CriticFeedback {
		if !fb.Resolved {
			unresolvedCount++
		}
	}
	state.UnresolvedIssues = unresolvedCount
	state.Unlock()

	w.bus.Publish(string(RoleWriter), events.TypeRevisionComplete, map[string]any{"issues_addressed": resolvedCount})
}
