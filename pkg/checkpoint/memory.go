package checkpoint

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

type memoryRecord struct {
	info Info
	blob []byte
}

// MemoryStore is an in-process Checkpoint Store, grounded on the
// teacher's pkg/session.Manager map+mutex shape. Useful for local
// development and tests that don't need a running Postgres instance.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

// NewMemoryStore constructs an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}}
}

func (m *MemoryStore) Save(sessionID, userID, query string, state *research.State, status Status, errMsg string) (string, error) {
	blob, err := marshalState(state)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	existing, ok := m.records[sessionID]
	id := uuid.NewString()
	createdAt := now
	if ok {
		id = existing.info.ID
		createdAt = existing.info.CreatedAt
	}

	m.records[sessionID] = memoryRecord{
		info: Info{
			ID: id, SessionID: sessionID, UserID: userID, Query: query,
			Phase: string(state.PhaseSnapshot()), Iteration: state.Iteration,
			Status: status, ErrorMessage: errMsg, CreatedAt: createdAt, UpdatedAt: now,
		},
		blob: blob,
	}
	return id, nil
}

func (m *MemoryStore) Load(sessionID string) (*research.State, error) {
	m.mu.RLock()
	rec, ok := m.records[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return unmarshalState(rec.blob)
}

func (m *MemoryStore) GetInfo(sessionID string) (*Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return nil, nil
	}
	info := rec.info
	return &info, nil
}

func (m *MemoryStore) List(userID, status string, limit int) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	out := make([]Info, 0, len(m.records))
	for _, rec := range m.records {
		if userID != "" && rec.info.UserID != userID {
			continue
		}
		if status != "" && string(rec.info.Status) != status {
			continue
		}
		out = append(out, rec.info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateStatus(sessionID string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return fmt.Errorf("checkpoint not found: %s", sessionID)
	}
	rec.info.Status = status
	rec.info.ErrorMessage = errMsg
	rec.info.UpdatedAt = time.Now()
	m.records[sessionID] = rec
	return nil
}

func (m *MemoryStore) Delete(sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[sessionID]; !ok {
		return false, nil
	}
	delete(m.records, sessionID)
	return true, nil
}
