package checkpoint

import (
	stdsql "database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx driver for database/sql
	"github.com/google/uuid"

	"github.com/codeready-toolchain/deepresearch/pkg/research"
)

//go:embed migrations
var migrationsFS embed.FS

// PostgresStore is the relational Checkpoint Store, grounded on the
// teacher's pkg/database.Client connection+migration pattern, adapted
// from an Ent-backed client to a plain database/sql one since the
// checkpoint table has no generated-ORM schema in scope.
type PostgresStore struct {
	db *stdsql.DB
}

// Config is the Postgres connection-pool configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewPostgresStore opens a pooled connection and applies embedded
// migrations, mirroring database.NewClient's open-configure-ping-migrate
// sequence.
func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an already-open *sql.DB, useful for tests
// driven by testcontainers-go.
func NewPostgresStoreFromDB(db *stdsql.DB, databaseName string) (*PostgresStore, error) {
	if err := runMigrations(db, databaseName); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func runMigrations(db *stdsql.DB, databaseName string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migrate driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply checkpoint migrations: %w", err)
	}
	// Closing only the source driver keeps the shared *sql.DB open.
	return sourceDriver.Close()
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Save(sessionID, userID, query string, state *research.State, status Status, errMsg string) (string, error) {
	blob, err := marshalState(state)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint state: %w", err)
	}

	phase := state.PhaseSnapshot()
	id := uuid.NewString()
	var userIDArg any
	if userID != "" {
		userIDArg = userID
	}
	var errArg any
	if errMsg != "" {
		errArg = errMsg
	}

	const q = `
INSERT INTO checkpoints (id, session_id, user_id, query, phase, iteration, state_json, status, error_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
ON CONFLICT (session_id) DO UPDATE SET
  query = EXCLUDED.query, phase = EXCLUDED.phase, iteration = EXCLUDED.iteration,
  state_json = EXCLUDED.state_json, status = EXCLUDED.status, error_message = EXCLUDED.error_message,
  updated_at = now()
RETURNING id`

	var returnedID string
	if err := s.db.QueryRow(q, id, sessionID, userIDArg, query, string(phase), state.Iteration, blob, string(status), errArg).Scan(&returnedID); err != nil {
		return "", fmt.Errorf("upsert checkpoint: %w", err)
	}
	return returnedID, nil
}

func (s *PostgresStore) Load(sessionID string) (*research.State, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT state_json FROM checkpoints WHERE session_id = $1`, sessionID).Scan(&blob)
	if err == stdsql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return unmarshalState(blob)
}

func (s *PostgresStore) GetInfo(sessionID string) (*Info, error) {
	row := s.db.QueryRow(`SELECT id, session_id, COALESCE(user_id::text, ''), query, phase, iteration, status, COALESCE(error_message, ''), created_at, updated_at
FROM checkpoints WHERE session_id = $1`, sessionID)
	info, err := scanInfo(row)
	if err == stdsql.ErrNoRows {
		return nil, nil
	}
	return info, err
}

func (s *PostgresStore) List(userID, status string, limit int) ([]Info, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, session_id, COALESCE(user_id::text, ''), query, phase, iteration, status, COALESCE(error_message, ''), created_at, updated_at FROM checkpoints WHERE 1=1`
	args := []any{}
	n := 0
	if userID != "" {
		n++
		query += fmt.Sprintf(" AND user_id = $%d", n)
		args = append(args, userID)
	}
	if status != "" {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, status)
	}
	n++
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d", n)
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(sessionID string, status Status, errMsg string) error {
	var errArg any
	if errMsg != "" {
		errArg = errMsg
	}
	res, err := s.db.Exec(`UPDATE checkpoints SET status = $1, error_message = $2, updated_at = now() WHERE session_id = $3`, string(status), errArg, sessionID)
	if err != nil {
		return fmt.Errorf("update checkpoint status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("checkpoint not found: %s", sessionID)
	}
	return nil
}

func (s *PostgresStore) Delete(sessionID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM checkpoints WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete checkpoint: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInfo(row rowScanner) (*Info, error) {
	var info Info
	var phase, status string
	if err := row.Scan(&info.ID, &info.SessionID, &info.UserID, &info.Query, &phase, &info.Iteration, &status, &info.ErrorMessage, &info.CreatedAt, &info.UpdatedAt); err != nil {
		return nil, err
	}
	info.Phase = phase
	info.Status = Status(status)
	return &info, nil
}
