package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/codeready-toolchain/deepresearch/pkg/events"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/research"
	"github.com/codeready-toolchain/deepresearch/pkg/sandbox"
)

// defaultMaxCodeRetries is used when NewAnalyst is given a non-positive
// maxRetries, bounding the self-healing loop to the first attempt plus
// this many repair attempts.
const defaultMaxCodeRetries = 3

// Analyst is the combined CodeWizard/DataAnalyst role: it extracts
// structured insights from the facts and data points the Searcher
// gathered, then, when there is enough numeric material, generates and
// runs analysis code in the sandbox, self-healing on failure.
type Analyst struct {
	llmClient      *llm.Adapter
	runner         *sandbox.Runner
	bus            *events.Bus
	log            *slog.Logger
	maxCodeRetries int
}

// NewAnalyst constructs the Analyst agent. maxRetries bounds the
// self-healing repair loop (cfg.Sandbox.MaxRetries); a non-positive value
// falls back to defaultMaxCodeRetries.
func NewAnalyst(llmClient *llm.Adapter, runner *sandbox.Runner, bus *events.Bus, log *slog.Logger, maxRetries int) *Analyst {
	if log == nil {
		log = slog.Default()
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxCodeRetries
	}
	return &Analyst{llmClient: llmClient, runner: runner, bus: bus, log: log, maxCodeRetries: maxRetries}
}

func (a *Analyst) Role() Role { return RoleAnalyst }

// Process merges structured insights into state and, when enough data
// points have accumulated, runs a generated analysis script through the
// sandbox with self-healing retries.
func (a *Analyst) Process(ctx context.Context, state *research.State) error {
	if err := a.extractInsights(ctx, state); err != nil {
		state.AppendError(fmt.Sprintf("analyst insight extraction failed: %v", err))
	}

	if len(state.DataPoints) >= 3 {
		a.runAnalysis(ctx, state)
	}

	state.SetPhase(research.PhaseWriting)
	return nil
}

type analystExtraction struct {
	Entities []string `mapstructure:"entities"`
	Insights []string `mapstructure:"insights"`
	Edges    []struct {
		Source   string `mapstructure:"source"`
		Target   string `mapstructure:"target"`
		Relation string `mapstructure:"relation"`
	} `mapstructure:"edges"`
}

const analystExtractionPrompt = `You are a data analyst synthesizing research findings. Given the facts and data points collected so far, respond with JSON:
{"entities":[string], "insights":[string], "edges":[{"source","target","relation"}]}
Identify entity relationships (edges) only when directly supported by the facts. Respond with JSON only.`

// extractInsights asks the LLM to synthesize cross-cutting insights and
// knowledge-graph edges from the facts and data points gathered so far,
// and merges them into state.
func (a *Analyst) extractInsights(ctx context.Context, state *research.State) error {
	summary := summarizeForAnalysis(state)
	if summary == "" {
		return nil
	}

	raw, _, err := a.llmClient.Chat(ctx, analystExtractionPrompt, summary, llm.ChatOptions{JSONMode: true, Temperature: 0.3, MaxTokens: 2048})
	if err != nil {
		return err
	}
	parsed, err := llm.ExtractJSON(raw)
	if err != nil {
		return err
	}
	var extraction analystExtraction
	if err := mapstructure.Decode(parsed, &extraction); err != nil {
		return err
	}

	if len(extraction.Entities) > 0 {
		nodes := make([]research.Node, 0, len(extraction.Entities))
		for _, e := range extraction.Entities {
			nodes = append(nodes, research.Node{ID: e, Name: e, Type: "entity", Importance: 1})
		}
		edges := make([]research.Edge, 0, len(extraction.Edges))
		for _, e := range extraction.Edges {
			edges = append(edges, research.Edge{Source: e.Source, Target: e.Target, Relation: e.Relation})
		}
		state.MergeKnowledgeGraph(nodes, edges)
		a.bus.Publish(string(RoleAnalyst), events.TypeKnowledgeGraph, map[string]any{
			"nodes_added": len(extraction.Entities), "edges_added": len(extraction.Edges),
		})
	}

	if len(extraction.Insights) > 0 {
		state.Lock()
		state.Insights = append(state.Insights, extraction.Insights...)
		state.Unlock()
	}
	return nil
}

func summarizeForAnalysis(state *research.State) string {
	if len(state.DataPoints) == 0 && len(state.Facts) == 0 {
		return ""
	}
	var sb []byte
	sb = append(sb, []byte("Data points:\n")...)
	for _, dp := range state.DataPoints {
		sb = append(sb, []byte(fmt.Sprintf("- %s: %v %s (source: %s)\n", dp.Name, dp.Value, dp.Unit, dp.Source))...)
	}
	sb = append(sb, []byte("\nFacts:\n")...)
	for _, f := range state.Facts {
		sb = append(sb, []byte(fmt.Sprintf("- %s (source: %s)\n", f.Content, f.SourceName))...)
	}
	return string(sb)
}

const codeGenPrompt = `You write Starlark analysis scripts (Python-like syntax, no imports). You have access to a predeclared "stats" module (stats.mean, stats.median, stats.stdev, stats.percentile, stats.sum over a list), "math", "json", and "time" modules, and a predeclared "input_data" string holding a JSON-encoded array of data points. Write a script defining:

def run():
    data = json.decode(input_data)
    ...
    return {"summary": "...", "chart": {...an ECharts option dict...}}

Respond with the Starlark code only, no markdown fences, no prose.`

const codeFixPrompt = `The following Starlark analysis script failed. Given the code, the error, and any output, return a corrected version of the full script. Respond with the Starlark code only, no markdown fences, no prose.`

// runAnalysis generates analysis code from the current data points, runs
// it in the sandbox, and retries with an LLM-driven fix up to
// a.maxCodeRetries additional times on failure, recording every attempt
// as a research.CodeExecution audit entry.
func (a *Analyst) runAnalysis(ctx context.Context, state *research.State) {
	dataJSON, err := json.Marshal(state.DataPoints)
	if err != nil {
		state.AppendError(fmt.Sprintf("analyst: marshal data points: %v", err))
		return
	}

	code, _, err := a.llmClient.Chat(ctx, codeGenPrompt, string(dataJSON), llm.ChatOptions{Temperature: 0.2, MaxTokens: 1536})
	if err != nil {
		state.AppendError(fmt.Sprintf("analyst: code generation failed: %v", err))
		return
	}
	a.bus.Publish(string(RoleAnalyst), events.TypeCode, map[string]any{"code": code})

	var lastResult sandbox.Result
	var lastOut map[string]any
	retries := 0

	for attempt := 0; attempt <= a.maxCodeRetries; attempt++ {
		result, out := a.runner.Run(code, string(dataJSON))
		lastResult, lastOut = result, out

		state.Lock()
		state.CodeExecutions = append(state.CodeExecutions, research.CodeExecution{
			ID: uuid.NewString(), Code: code, Output: result.Output, Error: result.Error,
			Success: result.Success, Retries: attempt, Timestamp: time.Now(),
		})
		state.Unlock()

		a.bus.Publish(string(RoleAnalyst), events.TypeCodeResult, map[string]any{
			"success": result.Success, "output": result.Output, "error": result.Error,
		})

		if result.Success {
			break
		}
		retries = attempt
		if attempt == a.maxCodeRetries {
			break
		}

		fixed, _, err := a.llmClient.Chat(ctx, codeFixPrompt,
			fmt.Sprintf("Code:\n%s\n\nError:\n%s\n\nOutput so far:\n%s", code, result.Error, result.Output),
			llm.ChatOptions{Temperature: 0.2, MaxTokens: 1536})
		if err != nil {
			state.AppendError(fmt.Sprintf("analyst: code fix attempt %d failed: %v", attempt+1, err))
			break
		}
		code = fixed
		a.bus.Publish(string(RoleAnalyst), events.TypeCodeFix, map[string]any{"attempt": attempt + 1, "code": code})
	}

	if !lastResult.Success {
		state.AppendError(fmt.Sprintf("analyst: analysis code failed after %d retries: %s", retries, lastResult.Error))
		return
	}

	chartData, _ := lastOut["chart"].(map[string]any)
	if chartData == nil {
		return
	}
	chartType := research.ChartLine
	if ct, ok := chartData["type"].(string); ok {
		switch research.ChartType(ct) {
		case research.ChartLine, research.ChartBar, research.ChartPie, research.ChartScatter, research.ChartTable, research.ChartHeatmap:
			chartType = research.ChartType(ct)
		}
	}
	chart := research.Chart{
		ID:            uuid.NewString(),
		Title:         fmt.Sprint(lastOut["summary"]),
		ChartType:     chartType,
		Data:          lastOut,
		Code:          code,
		EChartsOption: chartData,
	}
	state.Lock()
	state.Charts = append(state.Charts, chart)
	state.Unlock()
	a.bus.Publish(string(RoleAnalyst), events.TypeChart, map[string]any{"chart_id": chart.ID, "title": chart.Title})
}
