package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/codeready-toolchain/deepresearch/pkg/events"
	"github.com/codeready-toolchain/deepresearch/pkg/llm"
	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

// Planner is the ChiefArchitect role: produces the outline, research
// questions, hypotheses, and key entities via one LLM call, retrying on
// parse failure or a too-short outline.
type Planner struct {
	llmClient *llm.Adapter
	bus       *events.Bus
	log       *slog.Logger
}

// NewPlanner constructs the Planner agent.
func NewPlanner(llmClient *llm.Adapter, bus *events.Bus, log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{llmClient: llmClient, bus: bus, log: log}
}

func (p *Planner) Role() Role { return RolePlanner }

const plannerSystemPrompt = `You are the chief architect of a deep research project. Given a research question, produce a JSON object with:
- "outline": array of >=3 sections, each {"id","title","description","section_type":"qualitative|quantitative|mixed","requires_data":bool,"requires_chart":bool,"search_queries":[string]}
- "research_questions": array of key sub-questions
- "hypotheses": array of 3-5 {"content": string} research hypotheses to verify
- "key_entities": array of key entity names
Respond with JSON only.`

// Process generates the outline, research questions, hypotheses, and key
// entities, retrying up to 2 times on parse failure or an outline shorter
// than 3 sections.
func (p *Planner) Process(ctx context.Context, state *research.State) error {
	p.bus.Publish(string(RolePlanner), events.TypeThought, map[string]any{"content": "drafting research outline"})

	var lastErr error
	for attempt := 0; attempt <= 2; attempt++ {
		raw, _, err := p.llmClient.Chat(ctx, plannerSystemPrompt, state.Query, llm.ChatOptions{JSONMode: true, Temperature: 0.4, MaxTokens: 2048})
		if err != nil {
			lastErr = err
			continue
		}

		parsed, err := llm.ExtractJSON(raw)
		if err != nil {
			lastErr = err
			continue
		}

		normalizeLegacyFlatShape(parsed)

		var resp plannerResponse
		if err := mapstructure.Decode(parsed, &resp); err != nil {
			lastErr = err
			continue
		}

		if len(resp.Outline) < 3 {
			lastErr = fmt.Errorf("planner outline too short: %d sections", len(resp.Outline))
			continue
		}

		applyPlannerResponse(state, resp)
		p.bus.Publish(string(RolePlanner), events.TypeOutline, map[string]any{"outline": state.Outline})
		state.SetPhase(research.PhaseResearching)
		return nil
	}

	state.AppendError(fmt.Sprintf("planner failed after retries: %v", lastErr))
	// Fall back to a single default stub section so downstream agents have
	// something to work with; planning always advances to Researching
	// once the Planner returns, whether the outline is real or a stub.
	state.Outline = []research.Section{{
		ID:          "sec-default",
		Title:       state.Query,
		Description: "Default section (planner failed to produce a structured outline)",
		SectionType: research.SectionMixed,
		Status:      research.SectionPending,
	}}
	state.SetPhase(research.PhaseResearching)
	return nil
}

type plannerSection struct {
	ID            string   `mapstructure:"id"`
	Title         string   `mapstructure:"title"`
	Description   string   `mapstructure:"description"`
	SectionType   string   `mapstructure:"section_type"`
	RequiresData  bool     `mapstructure:"requires_data"`
	RequiresChart bool     `mapstructure:"requires_chart"`
	SearchQueries []string `mapstructure:"search_queries"`
}

type plannerHypothesis struct {
	Content string `mapstructure:"content"`
}

type plannerResponse struct {
	Outline           []plannerSection    `mapstructure:"outline"`
	ResearchQuestions []string            `mapstructure:"research_questions"`
	Hypotheses        []plannerHypothesis `mapstructure:"hypotheses"`
	KeyEntities       []string            `mapstructure:"key_entities"`
}

func applyPlannerResponse(state *research.State, resp plannerResponse) {
	outline := make([]research.Section, 0, len(resp.Outline))
	for i, s := range resp.Outline {
		id := s.ID
		if id == "" {
			id = fmt.Sprintf("sec-%d", i+1)
		}
		sectionType := research.SectionType(s.SectionType)
		switch sectionType {
		case research.SectionQualitative, research.SectionQuantitative, research.SectionMixed:
		default:
			sectionType = research.SectionMixed
		}
		outline = append(outline, research.Section{
			ID:            id,
			Title:         s.Title,
			Description:   s.Description,
			SectionType:   sectionType,
			Status:        research.SectionPending,
			RequiresData:  s.RequiresData,
			RequiresChart: s.RequiresChart,
			SearchQueries: s.SearchQueries,
		})
	}
	state.Outline = outline
	state.ResearchQuestions = resp.ResearchQuestions
	state.KeyEntities = resp.KeyEntities

	hypotheses := make([]research.Hypothesis, 0, len(resp.Hypotheses))
	for _, h := range resp.Hypotheses {
		hypotheses = append(hypotheses, research.Hypothesis{
			ID:      uuid.NewString(),
			Content: h.Content,
			Status:  research.HypothesisUnverified,
		})
	}
	state.Hypotheses = hypotheses
}

var legacySectionKeyPattern = regexp.MustCompile(`^sec_(\d+)_(title|desc|description)$`)

// normalizeLegacyFlatShape detects the legacy flat JSON shape
// (sec_1_title, sec_1_desc, sec_2_title, ...) and regroups it into the
// structured "outline" array mapstructure.Decode expects.
func normalizeLegacyFlatShape(parsed map[string]any) {
	if _, hasOutline := parsed["outline"]; hasOutline {
		return
	}

	sections := map[int]map[string]any{}
	for k, v := range parsed {
		m := legacySectionKeyPattern.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if sections[idx] == nil {
			sections[idx] = map[string]any{"id": fmt.Sprintf("sec-%d", idx)}
		}
		field := m[2]
		if field == "desc" {
			field = "description"
		}
		sections[idx][field] = v
		delete(parsed, k)
	}
	if len(sections) == 0 {
		return
	}

	indices := make([]int, 0, len(sections))
	for idx := range sections {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	outline := make([]any, 0, len(indices))
	for _, idx := range indices {
		sec := sections[idx]
		if _, ok := sec["section_type"]; !ok {
			sec["section_type"] = string(research.SectionMixed)
		}
		outline = append(outline, sec)
	}
	parsed["outline"] = outline
}
