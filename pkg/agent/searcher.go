package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/codeready-toolchain/deepresearch/pkg/events"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/research"
	"github.com/codeready-toolchain/deepresearch/pkg/search"
)

// tickerPattern matches a cashtag or exchange-qualified ticker symbol
// appearing among extracted entities (e.g. "$AAPL", "NASDAQ:AAPL").
var tickerPattern = regexp.MustCompile(`^(?:\$([A-Z]{1,5})|(?:NASDAQ|NYSE|LSE):([A-Z]{1,5}))$`)

// Searcher is the DeepScout role: concurrent per-section fan-out
// (bounded at maxConcurrentSections), fact fingerprint dedup,
// knowledge-graph merge, hypothesis-evidence scoring, and depth-bounded
// recursive source tracing.
type Searcher struct {
	llmClient             *llm.Adapter
	searchAdapter         *search.Adapter
	bus                   *events.Bus
	log                   *slog.Logger
	maxConcurrentSections int
	maxSearchDepth        int
}

// NewSearcher constructs the Searcher agent.
func NewSearcher(llmClient *llm.Adapter, searchAdapter *search.Adapter, bus *events.Bus, maxConcurrentSections, maxSearchDepth int, log *slog.Logger) *Searcher {
	if log == nil {
		log = slog.Default()
	}
	if maxConcurrentSections <= 0 {
		maxConcurrentSections = 3
	}
	if maxSearchDepth <= 0 {
		maxSearchDepth = 2
	}
	return &Searcher{
		llmClient:             llmClient,
		searchAdapter:         searchAdapter,
		bus:                   bus,
		log:                   log,
		maxConcurrentSections: maxConcurrentSections,
		maxSearchDepth:        maxSearchDepth,
	}
}

func (s *Searcher) Role() Role { return RoleSearcher }

// Process dispatches to the ReResearching drain mode or the ordinary
// per-section pipeline depending on the state's current phase.
func (s *Searcher) Process(ctx context.Context, state *research.State) error {
	if state.PhaseSnapshot() == research.PhaseReResearching {
		s.processReResearching(ctx, state)
		state.SetPhase(research.PhaseWriting)
		return nil
	}

	s.processOutline(ctx, state)
	state.SetPhase(research.PhaseAnalyzing)
	return nil
}

// processOutline fans out over up to maxConcurrentSections outline
// sections concurrently, bounded by a semaphore.
func (s *Searcher) processOutline(ctx context.Context, state *research.State) {
	sem := make(chan struct{}, s.maxConcurrentSections)
	var wg sync.WaitGroup

	for i := range state.Outline {
		section := &state.Outline[i]
		if len(section.SearchQueries) == 0 {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(sec *research.Section) {
			defer wg.Done()
			defer func() { <-sem }()
			s.researchSection(ctx, state, sec, 0)
		}(section)
	}
	wg.Wait()
}

// researchSection runs the search pipeline for one section at the given
// recursion depth: search each query, extract facts, then optionally
// recurse into follow-up/source-tracing queries up to maxSearchDepth.
func (s *Searcher) researchSection(ctx context.Context, state *research.State, section *research.Section, depth int) {
	section.Status = research.SectionResearching

	s.bus.Publish(string(RoleSearcher), events.TypeAction, map[string]any{
		"section_id": section.ID, "depth": depth, "queries": len(section.SearchQueries),
	})

	var combined []search.Result
	for _, query := range section.SearchQueries {
		s.bus.Publish(string(RoleSearcher), events.TypeSearchProgress, map[string]any{
			"section_id": section.ID, "query": query,
		})
		results := s.searchAdapter.Search(ctx, query, 8)
		combined = append(combined, results...)
		s.bus.Publish(string(RoleSearcher), events.TypeSearchResults, map[string]any{
			"section_id": section.ID, "query": query, "count": len(results),
		})
	}

	if len(combined) == 0 {
		section.Status = research.SectionDrafted
		return
	}

	extraction, err := s.extractFromResults(ctx, combined)
	if err != nil {
		state.AppendError(fmt.Sprintf("searcher extraction failed for section %s: %v", section.ID, err))
		section.Status = research.SectionDrafted
		return
	}
	s.storeExtraction(state, extraction, section.ID, depth, false)

	s.bus.Publish(string(RoleSearcher), events.TypeObservation, map[string]any{
		"section_id":  section.ID,
		"facts_found": len(extraction.Facts),
	})

	section.Status = research.SectionDrafted

	if depth >= s.maxSearchDepth || state.Iteration >= state.MaxIterations {
		return
	}
	followups := dedupeStrings(append(append([]string{}, extraction.FollowUpQueries...), extraction.SourceTracingQueries...))
	if len(followups) == 0 {
		return
	}
	if len(followups) > 2 {
		followups = followups[:2]
	}
	childSection := &research.Section{ID: section.ID, SearchQueries: followups}
	s.researchSection(ctx, state, childSection, depth+1)
}

// processReResearching drains pending_search_queries (set by the Critic),
// processes up to 5, and tags resulting facts is_supplementary.
func (s *Searcher) processReResearching(ctx context.Context, state *research.State) {
	queries := state.PendingSearchQueries
	if len(queries) > 5 {
		queries = queries[:5]
	}
	state.PendingSearchQueries = nil

	if len(queries) == 0 {
		return
	}

	s.bus.Publish(string(RoleSearcher), events.TypeAction, map[string]any{"mode": "re_research", "queries": len(queries)})

	var combined []search.Result
	for _, q := range queries {
		s.bus.Publish(string(RoleSearcher), events.TypeSearchProgress, map[string]any{"query": q, "mode": "re_research"})
		combined = append(combined, s.searchAdapter.Search(ctx, q, 8)...)
	}
	if len(combined) == 0 {
		return
	}

	extraction, err := s.extractFromResults(ctx, combined)
	if err != nil {
		state.AppendError(fmt.Sprintf("re-research extraction failed: %v", err))
		return
	}
	s.storeExtraction(state, extraction, "", 0, true)
}

type searcherExtraction struct {
	Facts []struct {
		Content           string  `mapstructure:"content"`
		SourceURL         string  `mapstructure:"source_url"`
		SourceName        string  `mapstructure:"source_name"`
		SourceType        string  `mapstructure:"source_type"`
		CredibilityScore  float64 `mapstructure:"credibility_score"`
		RelatedHypothesis string  `mapstructure:"related_hypothesis"`
		HypothesisSupport string  `mapstructure:"hypothesis_support"`
	} `mapstructure:"facts"`
	DataPoints []struct {
		Name       string  `mapstructure:"name"`
		Value      any     `mapstructure:"value"`
		Unit       string  `mapstructure:"unit"`
		Year       *int    `mapstructure:"year"`
		Source     string  `mapstructure:"source"`
		Confidence float64 `mapstructure:"confidence"`
	} `mapstructure:"data_points"`
	Entities             []string `mapstructure:"entities"`
	Insights             []string `mapstructure:"insights"`
	FollowUpQueries      []string `mapstructure:"follow_up_queries"`
	SourceTracingQueries []string `mapstructure:"source_tracing_queries"`
}

const searcherExtractionPrompt = `You analyze web search results for a research project. Given the combined search results, respond with JSON:
{"facts":[{"content","source_url","source_name","source_type":"official|academic|news|report|self_media","credibility_score":0-1,"related_hypothesis":"","hypothesis_support":"supports|refutes|neutral"}],
 "data_points":[{"name","value","unit","year","source","confidence":0-1}],
 "entities":[string], "insights":[string], "follow_up_queries":[string], "source_tracing_queries":[string]}
Respond with JSON only.`

func (s *Searcher) extractFromResults(ctx context.Context, results []search.Result) (searcherExtraction, error) {
	var sb []byte
	for _, r := range results {
		sb = append(sb, []byte(fmt.Sprintf("URL: %s\nTitle: %s\nSnippet: %s\nSummary: %s\n\n", r.URL, r.Title, r.Snippet, r.Summary))...)
	}

	raw, _, err := s.llmClient.Chat(ctx, searcherExtractionPrompt, string(sb), llm.ChatOptions{JSONMode: true, Temperature: 0.2, MaxTokens: 3072})
	if err != nil {
		return searcherExtraction{}, err
	}

	parsed, err := llm.ExtractJSON(raw)
	if err != nil {
		return searcherExtraction{}, err
	}

	var extraction searcherExtraction
	if err := mapstructure.Decode(parsed, &extraction); err != nil {
		return searcherExtraction{}, err
	}
	return extraction, nil
}

func (s *Searcher) storeExtraction(state *research.State, extraction searcherExtraction, sectionID string, depth int, isSupplementary bool) {
	for _, f := range extraction.Facts {
		sourceType := research.SourceType(f.SourceType)
		switch sourceType {
		case research.SourceOfficial, research.SourceAcademic, research.SourceNews, research.SourceReport, research.SourceSelfMedia:
		default:
			sourceType = research.SourceNews
		}
		fact := research.Fact{
			ID:               uuid.NewString(),
			Content:          f.Content,
			SourceURL:        f.SourceURL,
			SourceName:       f.SourceName,
			SourceType:       sourceType,
			CredibilityScore: f.CredibilityScore,
			ExtractedAt:      time.Now(),
			SearchDepth:      depth,
			IsSupplementary:  isSupplementary,
			Fingerprint:      research.Fingerprint(f.Content),
		}
		if sectionID != "" {
			fact.RelatedSections = []string{sectionID}
		}
		hasHypothesis := f.RelatedHypothesis != "" && state.HasHypothesis(f.RelatedHypothesis)
		if hasHypothesis {
			fact.RelatedHypothesis = f.RelatedHypothesis
			fact.HypothesisSupport = research.HypothesisSupport(f.HypothesisSupport)
		}
		state.AddFact(fact)

		if hasHypothesis && fact.HypothesisSupport != research.NeutralHypothesis {
			state.ApplyHypothesisEvidence(fact.RelatedHypothesis, fact.ID, fact.HypothesisSupport == research.SupportsHypothesis)
		}
	}

	for _, dp := range extraction.DataPoints {
		state.AddDataPoint(research.DataPoint{
			ID:         uuid.NewString(),
			Name:       dp.Name,
			Value:      dp.Value,
			Unit:       dp.Unit,
			Year:       dp.Year,
			Source:     dp.Source,
			Confidence: dp.Confidence,
		})
	}

	if len(extraction.Entities) > 0 {
		nodes := make([]research.Node, 0, len(extraction.Entities))
		for _, e := range extraction.Entities {
			nodes = append(nodes, research.Node{ID: e, Name: e, Type: "entity", Importance: 1})
		}
		state.MergeKnowledgeGraph(nodes, nil)
		state.Lock()
		state.KeyEntities = append(state.KeyEntities, extraction.Entities...)
		state.Unlock()

		s.publishStockQuotes(extraction.Entities)
	}

	if len(extraction.Insights) > 0 {
		state.Lock()
		state.Insights = append(state.Insights, extraction.Insights...)
		state.Unlock()
	}
}

// publishStockQuotes is a best-effort pattern matcher over extracted
// entities: any entity shaped like a cashtag or exchange-qualified
// ticker symbol is surfaced as a stock_quote event for the UI to enrich
// with realtime pricing. It never calls out to a quote provider itself.
func (s *Searcher) publishStockQuotes(entities []string) {
	for _, e := range entities {
		m := tickerPattern.FindStringSubmatch(e)
		if m == nil {
			continue
		}
		symbol := m[1]
		if symbol == "" {
			symbol = m[2]
		}
		s.bus.Publish(string(RoleSearcher), events.TypeStockQuote, map[string]any{"symbol": symbol, "entity": e})
	}
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
