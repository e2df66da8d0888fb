// Package history keeps a sqlite log of synthesis requests and their diagnostics.
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
	_ "modernc.org/sqlite"

	"github.com/loqalabs/loqa-diphone/internal/config"
)

// Entry is one recorded synthesis request.
type Entry struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id,omitempty"`
	Phrase           string    `json:"phrase"`
	Diphones         []string  `json:"diphones,omitempty"`
	UnresolvedTokens []string  `json:"unresolved_tokens,omitempty"`
	MissingUnits     []string  `json:"missing_units,omitempty"`
	DateErrors       []string  `json:"date_errors,omitempty"`
	Samples          int       `json:"samples"`
	SampleRate       int       `json:"sample_rate"`
	Outcome          string    `json:"outcome"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store wraps the sqlite database. A Store opened in ephemeral mode records nothing.
type Store struct {
	db    *sql.DB
	cfg   config.HistoryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open prepares the history database according to cfg.
func Open(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("history vacuum failed", slog.String("error", err.Error()))
		}
	}
	if err := s.Prune(ctx); err != nil {
		log.Warn("history prune on start failed", slog.String("error", err.Error()))
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS requests (
    id TEXT PRIMARY KEY,
    session_id TEXT,
    phrase TEXT NOT NULL,
    diphones TEXT,
    unresolved TEXT,
    missing TEXT,
    date_errors TEXT,
    samples INTEGER NOT NULL,
    sample_rate INTEGER NOT NULL,
    outcome TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at);
`

// Enabled reports whether entries are persisted.
func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores e and returns its ID. Missing IDs and timestamps are filled in.
func (s *Store) Record(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if !s.Enabled() {
		return e.ID, nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests(id, session_id, phrase, diphones, unresolved, missing, date_errors, samples, sample_rate, outcome, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Phrase,
		encodeList(e.Diphones), encodeList(e.UnresolvedTokens), encodeList(e.MissingUnits), encodeList(e.DateErrors),
		e.Samples, e.SampleRate, e.Outcome, e.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("record request: %w", err)
	}
	return e.ID, nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, phrase, diphones, unresolved, missing, date_errors, samples, sample_rate, outcome, created_at
		 FROM requests ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                       Entry
			session, outcome                        sql.NullString
			diphones, unresolved, missing, dateErrs sql.NullString
			created                                 int64
		)
		if err := rows.Scan(&e.ID, &session, &e.Phrase, &diphones, &unresolved, &missing, &dateErrs,
			&e.Samples, &e.SampleRate, &outcome, &created); err != nil {
			return nil, err
		}
		e.SessionID = session.String
		e.Outcome = outcome.String
		e.Diphones = decodeList(diphones.String)
		e.UnresolvedTokens = decodeList(unresolved.String)
		e.MissingUnits = decodeList(missing.String)
		e.DateErrors = decodeList(dateErrs.String)
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune applies the configured retention window and entry cap.
func (s *Store) Prune(ctx context.Context) (err error) {
	if !s.Enabled() || s.cfg.RetentionMode != "persistent" {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM requests WHERE created_at < ?`, cutoff.UnixNano()); err != nil {
			return err
		}
	}
	if s.cfg.MaxEntries > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM requests WHERE id IN (
			SELECT id FROM requests ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxEntries)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	data, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
