package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteConfig contains configuration for the SQLite history backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/history.db",
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens the database, creating its directory and schema
// when missing.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	logger := slog.Default().With("component", "automation.history.sqlite")

	if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, newStorageError("sqlite", "open", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}

	s := &SQLiteStore{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite history initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return newStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return newStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return newStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return newStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return newStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return newStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Record implements Store. An entry without an ID is given one.
func (s *SQLiteStore) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	actions, err := json.Marshal(entry.Actions)
	if err != nil {
		return newStorageError("sqlite", "encode_actions", err)
	}

	var trigger any
	if entry.Trigger != "" {
		trigger = entry.Trigger
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rule_runs (id, rule_id, rule_name, trigger_source, triggered_at, item_count, success, actions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.RuleID, entry.RuleName, trigger,
		entry.TriggeredAt.UTC().Format(timeLayout), entry.ItemCount, entry.Success, string(actions),
	)
	if err != nil {
		return newStorageError("sqlite", "record", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, ruleID string, limit int) ([]Entry, error) {
	query := `SELECT id, rule_id, rule_name, trigger_source, triggered_at, item_count, success, actions FROM rule_runs`
	var args []any
	if ruleID != "" {
		query += " WHERE rule_id = ?"
		args = append(args, ruleID)
	}
	query += " ORDER BY triggered_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			trigger    sql.NullString
			triggered  string
			rawActions string
		)
		if err := rows.Scan(&e.ID, &e.RuleID, &e.RuleName, &trigger, &triggered, &e.ItemCount, &e.Success, &rawActions); err != nil {
			return nil, newStorageError("sqlite", "scan", err)
		}
		e.Trigger = trigger.String
		if e.TriggeredAt, err = time.Parse(timeLayout, triggered); err != nil {
			return nil, newStorageError("sqlite", "parse_time", err)
		}
		if err := json.Unmarshal([]byte(rawActions), &e.Actions); err != nil {
			return nil, newStorageError("sqlite", "decode_actions", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "list", err)
	}
	return out, nil
}

// Prune implements Store.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rule_runs WHERE triggered_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, newStorageError("sqlite", "prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newStorageError("sqlite", "prune", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return newStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite history closed")
	return nil
}
