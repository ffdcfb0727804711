// Package checkpoint persists a serializable projection of the research
// state so long-running sessions can be paused, cancelled, and resumed.
// A Postgres-backed store and an in-memory store both satisfy Store.
package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

// Status is the checkpoint's lifecycle state, independent of the research
// state's own Phase.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Info is the checkpoint metadata projection returned by GetInfo/List:
// everything except the state blob itself.
type Info struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id,omitempty"`
	Query        string    `json:"query"`
	Phase        string    `json:"phase"`
	Iteration    int       `json:"iteration"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is the checkpoint persistence contract. Save performs a single
// upsert keyed by session_id. Load returns (nil, nil) when no checkpoint
// exists for the session: a missing checkpoint is not an error; resuming
// a session with none behaves as a fresh run.
type Store interface {
	Save(sessionID, userID, query string, state *research.State, status Status, errMsg string) (string, error)
	Load(sessionID string) (*research.State, error)
	GetInfo(sessionID string) (*Info, error)
	List(userID, status string, limit int) ([]Info, error)
	UpdateStatus(sessionID string, status Status, errMsg string) error
	Delete(sessionID string) (bool, error)
}

// projection is the serializable subset of research.State the checkpoint
// blob actually stores: the event queue (Messages), fingerprint index, and
// mutex are intentionally excluded, since they are transient in-memory
// bookkeeping with no resumable meaning across a process restart.
type projection struct {
	Query                string                    `json:"query"`
	SessionID            string                    `json:"session_id"`
	Phase                research.Phase            `json:"phase"`
	Iteration            int                       `json:"iteration"`
	MaxIterations        int                       `json:"max_iterations"`
	Outline              []research.Section        `json:"outline"`
	Hypotheses           []research.Hypothesis      `json:"hypotheses"`
	ResearchQuestions    []string                  `json:"research_questions"`
	KeyEntities          []string                  `json:"key_entities"`
	KnowledgeGraph       research.KnowledgeGraph    `json:"knowledge_graph"`
	Facts                []research.Fact            `json:"facts"`
	DataPoints           []research.DataPoint        `json:"data_points"`
	Charts               []research.Chart            `json:"charts"`
	CodeExecutions       []research.CodeExecution    `json:"code_executions"`
	Insights             []string                  `json:"insights,omitempty"`
	DraftSections        map[string]string          `json:"draft_sections"`
	FinalReport          string                    `json:"final_report"`
	References           []map[string]any          `json:"references"`
	CriticFeedback       []research.CriticFeedback  `json:"critic_feedback"`
	UnresolvedIssues     int                       `json:"unresolved_issues"`
	QualityScore         float64                   `json:"quality_score"`
	PendingSearchQueries []string                  `json:"pending_search_queries"`
	Logs                 []research.AgentLog        `json:"logs"`
	Errors               []string                  `json:"errors"`
}

// marshalState projects state into its persisted JSON blob.
func marshalState(state *research.State) ([]byte, error) {
	clone := state.Clone()
	p := projection{
		Query: clone.Query, SessionID: clone.SessionID, Phase: clone.Phase,
		Iteration: clone.Iteration, MaxIterations: clone.MaxIterations,
		Outline: clone.Outline, Hypotheses: clone.Hypotheses,
		ResearchQuestions: clone.ResearchQuestions, KeyEntities: clone.KeyEntities,
		KnowledgeGraph: clone.KnowledgeGraph, Facts: clone.Facts, DataPoints: clone.DataPoints,
		Charts: clone.Charts, CodeExecutions: clone.CodeExecutions, Insights: clone.Insights,
		DraftSections: clone.DraftSections, FinalReport: clone.FinalReport, References: clone.References,
		CriticFeedback: clone.CriticFeedback, UnresolvedIssues: clone.UnresolvedIssues,
		QualityScore: clone.QualityScore, PendingSearchQueries: clone.PendingSearchQueries,
		Logs: clone.Logs, Errors: clone.Errors,
	}
	return json.Marshal(p)
}

// unmarshalState reconstructs a research.State from a persisted blob.
func unmarshalState(blob []byte) (*research.State, error) {
	var p projection
	if err := json.Unmarshal(blob, &p); err != nil {
		return nil, err
	}
	state := research.New(p.Query, p.SessionID, p.MaxIterations)
	state.Phase = p.Phase
	state.Iteration = p.Iteration
	state.Outline = p.Outline
	state.Hypotheses = p.Hypotheses
	state.ResearchQuestions = p.ResearchQuestions
	state.KeyEntities = p.KeyEntities
	state.KnowledgeGraph = p.KnowledgeGraph
	state.DataPoints = p.DataPoints
	state.Charts = p.Charts
	state.CodeExecutions = p.CodeExecutions
	state.Insights = p.Insights
	state.DraftSections = p.DraftSections
	state.FinalReport = p.FinalReport
	state.References = p.References
	state.CriticFeedback = p.CriticFeedback
	state.UnresolvedIssues = p.UnresolvedIssues
	state.QualityScore = p.QualityScore
	state.PendingSearchQueries = p.PendingSearchQueries
	state.Logs = p.Logs
	state.Errors = p.Errors
	for _, f := range p.Facts {
		state.AddFact(f)
	}
	return state, nil
}
