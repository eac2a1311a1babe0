// Package store persists run history in SQLite (CGO-free driver).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/faiz-00/screenshot/models"
)

// ErrNotFound is returned when a namespace has no stored run.
var ErrNotFound = errors.New("store: run not found")

// Run is one stored analysis run.
type Run struct {
	Namespace    string    `json:"namespace"`
	URL          string    `json:"url"`
	FinalURL     string    `json:"final_url"`
	Host         string    `json:"host"`
	Title        string    `json:"title"`
	SectionCount int       `json:"section_count"`
	SkippedCount int       `json:"skipped_count"`
	ContentHash  string    `json:"content_hash"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`

	// Crops is populated by GetRun only.
	Crops []models.SectionImage `json:"crops,omitempty"`
}

// Store wraps the run-history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path with the
// production pragmas applied: WAL journaling, foreign keys, busy
// timeout, NORMAL synchronous.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory database for tests. A single open
// connection keeps the in-memory database alive for the store's whole
// lifetime.
func OpenMemory() (*Store, error) {
	s, err := Open(":memory:")
	if err != nil {
		return nil, err
	}
	s.db.SetMaxOpenConns(1)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertRun records a finished run and its crops in one transaction.
func (s *Store) InsertRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (namespace, url, final_url, host, title, section_count,
		skipped_count, content_hash, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Namespace, run.URL, run.FinalURL, run.Host, run.Title,
		run.SectionCount, run.SkippedCount, run.ContentHash,
		run.DurationMs, run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	for _, c := range run.Crops {
		var text any
		if c.Text != "" {
			text = c.Text
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO crops (namespace, idx, file, top_px, left_px, width_px, height_px, text)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.Namespace, c.Index, c.File,
			c.Rect.Top, c.Rect.Left, c.Rect.Width, c.Rect.Height, text,
		)
		if err != nil {
			return fmt.Errorf("store: insert crop %d: %w", c.Index, err)
		}
	}

	return tx.Commit()
}

// GetRun returns one run with its crops, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, namespace string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT namespace, url, final_url, host, title, section_count,
		skipped_count, content_hash, duration_ms, created_at
		FROM runs WHERE namespace = ?`, namespace))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, file, top_px, left_px, width_px, height_px, text
		FROM crops WHERE namespace = ? ORDER BY idx`, namespace)
	if err != nil {
		return nil, fmt.Errorf("store: query crops: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.SectionImage
		var text sql.NullString
		if err := rows.Scan(&c.Index, &c.File,
			&c.Rect.Top, &c.Rect.Left, &c.Rect.Width, &c.Rect.Height, &text); err != nil {
			return nil, fmt.Errorf("store: scan crop: %w", err)
		}
		c.Text = text.String
		run.Crops = append(run.Crops, c)
	}
	return run, rows.Err()
}

// ListRuns returns recent runs, newest first, without their crops.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT namespace, url, final_url, host, title, section_count,
		skipped_count, content_hash, duration_ms, created_at
		FROM runs ORDER BY created_at DESC, namespace DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var result []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

// LatestRunForHost returns the most recent run against a host, or
// ErrNotFound. Used for run-to-run change detection.
func (s *Store) LatestRunForHost(ctx context.Context, host string) (*Run, error) {
	return scanRun(s.db.QueryRowContext(ctx,
		`SELECT namespace, url, final_url, host, title, section_count,
		skipped_count, content_hash, duration_ms, created_at
		FROM runs WHERE host = ?
		ORDER BY created_at DESC, namespace DESC LIMIT 1`, host))
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var createdAt int64
	err := row.Scan(&run.Namespace, &run.URL, &run.FinalURL, &run.Host,
		&run.Title, &run.SectionCount, &run.SkippedCount,
		&run.ContentHash, &run.DurationMs, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan run: %w", err)
	}
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &run, nil
}
