// Package store handles SQLite persistence of lock-screen history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/shadowshield/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed-width so lexical order in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for attempt history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			cycle_id TEXT NOT NULL,
			at TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			username TEXT NOT NULL,
			attempts_remaining INTEGER NOT NULL,
			vector_valid INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_at ON attempts(at);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_cycle ON attempts(cycle_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record stores one history entry.
func (s *Store) Record(ctx context.Context, rec model.AttemptRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("store: record without id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, cycle_id, at, kind, status, username, attempts_remaining, vector_valid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.CycleID,
		rec.At.UTC().Format(timeLayout),
		string(rec.Kind),
		string(rec.Status),
		rec.Username,
		rec.AttemptsRemaining,
		boolToInt(rec.VectorValid),
	)
	return err
}

// ListAttempts returns history entries filtered by cfg, oldest first.
func (s *Store) ListAttempts(ctx context.Context, cfg model.HistoryConfig) ([]model.AttemptRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Since != nil {
		clauses = append(clauses, "at >= ?")
		args = append(args, cfg.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT id, cycle_id, at, kind, status, username, attempts_remaining, vector_valid
		FROM attempts
		WHERE %s
		ORDER BY at ASC, rowid ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var records []model.AttemptRecord
	for rows.Next() {
		var rec model.AttemptRecord
		var at, kind, status string
		var valid int
		if err := rows.Scan(&rec.ID, &rec.CycleID, &at, &kind, &status, &rec.Username, &rec.AttemptsRemaining, &valid); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, at)
		if err != nil {
			return nil, err
		}
		rec.At = parsed
		rec.Kind = model.EventKind(kind)
		rec.Status = model.OutcomeStatus(status)
		rec.VectorValid = valid != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if cfg.Last > 0 && len(records) > cfg.Last {
		records = records[len(records)-cfg.Last:]
	}
	return records, nil
}

// CountOutcomes aggregates history entries by kind and status. It covers the
// same entries ListAttempts returns for cfg, so Last limits it too.
func (s *Store) CountOutcomes(ctx context.Context, cfg model.HistoryConfig) ([]model.OutcomeAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Since != nil {
		clauses = append(clauses, "at >= ?")
		args = append(args, cfg.Since.UTC().Format(timeLayout))
	}
	window := fmt.Sprintf(`SELECT kind, status FROM attempts
		WHERE %s
		ORDER BY at DESC, rowid DESC`, strings.Join(clauses, " AND "))
	if cfg.Last > 0 {
		window += " LIMIT ?"
		args = append(args, cfg.Last)
	}
	query := fmt.Sprintf(`SELECT kind, status, COUNT(*)
		FROM (%s)
		GROUP BY kind, status
		ORDER BY kind ASC, status ASC`, window)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.OutcomeAggregate
	for rows.Next() {
		var agg model.OutcomeAggregate
		var kind, status string
		if err := rows.Scan(&kind, &status, &agg.Count); err != nil {
			return nil, err
		}
		agg.Kind = model.EventKind(kind)
		agg.Status = model.OutcomeStatus(status)
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
