package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

func TestMemoryStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	state := research.New("中国新能源汽车2024市场", "sess-1", 2)
	state.Phase = research.PhaseResearching
	state.Iteration = 1
	state.Outline = []research.Section{{ID: "sec-1", Title: "Overview"}}
	state.AddFact(research.Fact{ID: "f1", Content: "fact one", SourceURL: "https://a", Fingerprint: "abc"})

	id, err := store.Save("sess-1", "", state.Query, state, StatusRunning, "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	loaded, err := store.Load("sess-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, research.PhaseResearching, loaded.Phase)
	assert.Equal(t, 1, loaded.Iteration)
	assert.Len(t, loaded.Facts, 1)
	assert.Equal(t, "Overview", loaded.Outline[0].Title)
}

func TestMemoryStoreSaveTwiceUpserts(t *testing.T) {
	store := NewMemoryStore()
	state := research.New("q", "sess-2", 2)

	firstID, err := store.Save("sess-2", "", "q", state, StatusRunning, "")
	require.NoError(t, err)

	state.Iteration = 1
	secondID, err := store.Save("sess-2", "", "q", state, StatusRunning, "")
	require.NoError(t, err)

	assert.Equal(t, firstID, secondID, "upsert must keep the same checkpoint id")

	info, err := store.GetInfo("sess-2")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Iteration)
}

func TestMemoryStoreLoadMissingReturnsNilNotError(t *testing.T) {
	store := NewMemoryStore()
	loaded, err := store.Load("does-not-exist")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestMemoryStoreDeleteMissingReturnsFalseNotError(t *testing.T) {
	store := NewMemoryStore()
	existed, err := store.Delete("does-not-exist")
	assert.NoError(t, err)
	assert.False(t, existed)
}

func TestMemoryStoreListFiltersByStatus(t *testing.T) {
	store := NewMemoryStore()
	s1 := research.New("q1", "sess-a", 2)
	s2 := research.New("q2", "sess-b", 2)
	_, _ = store.Save("sess-a", "", "q1", s1, StatusRunning, "")
	_, _ = store.Save("sess-b", "", "q2", s2, StatusFailed, "cancelled")

	running, err := store.List("", string(StatusRunning), 10)
	require.NoError(t, err)
	assert.Len(t, running, 1)
	assert.Equal(t, "sess-a", running[0].SessionID)
}

func TestMemoryStoreUpdateStatusOnMissingReturnsError(t *testing.T) {
	store := NewMemoryStore()
	err := store.UpdateStatus("does-not-exist", StatusFailed, "cancelled")
	assert.Error(t, err)
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
