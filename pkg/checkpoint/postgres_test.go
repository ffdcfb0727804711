package checkpoint

import (
	"context"
	stdsql "database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

// newTestStore spins up a throwaway Postgres container and applies the
// embedded checkpoint migrations.
func newTestStore(t *testing.T) *PostgresStore {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("checkpoints_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStoreFromDB(db, "checkpoints_test")
	require.NoError(t, err)
	return store
}

func TestPostgresStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	state := research.New("中国新能源汽车2024市场", "pg-sess-1", 3)
	state.Phase = research.PhaseAnalyzing
	state.Iteration = 1
	state.Outline = []research.Section{{ID: "sec-1", Title: "Market size"}}
	state.AddFact(research.Fact{ID: "f1", Content: "fact", SourceURL: "https://a", Fingerprint: "abc"})

	id, err := store.Save("pg-sess-1", "", state.Query, state, StatusRunning, "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	loaded, err := store.Load("pg-sess-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, research.PhaseAnalyzing, loaded.Phase)
	assert.Len(t, loaded.Facts, 1)

	info, err := store.GetInfo("pg-sess-1")
	require.NoError(t, err)
	assert.Equal(t, string(research.PhaseAnalyzing), info.Phase)
	assert.Equal(t, StatusRunning, info.Status)
}

func TestPostgresStoreSaveUpsertsBySessionID(t *testing.T) {
	store := newTestStore(t)
	state := research.New("q", "pg-sess-2", 2)

	firstID, err := store.Save("pg-sess-2", "", "q", state, StatusRunning, "")
	require.NoError(t, err)

	state.Iteration = 2
	secondID, err := store.Save("pg-sess-2", "", "q", state, StatusRunning, "")
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)

	info, err := store.GetInfo("pg-sess-2")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Iteration)
}

func TestPostgresStoreDeleteMissingReturnsFalse(t *testing.T) {
	store := newTestStore(t)
	existed, err := store.Delete("does-not-exist")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestPostgresStoreUpdateStatusToFailedOnCancel(t *testing.T) {
	store := newTestStore(t)
	state := research.New("q", "pg-sess-3", 2)
	_, err := store.Save("pg-sess-3", "", "q", state, StatusRunning, "")
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus("pg-sess-3", StatusFailed, "cancelled"))

	info, err := store.GetInfo("pg-sess-3")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Equal(t, "cancelled", info.ErrorMessage)
}
