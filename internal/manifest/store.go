package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages manifest persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the manifest database under dataDir and
// verifies the schema version.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "manifest.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the manifest database location.
func (s *Store) Path() string {
	return s.path
}

// Session wraps one SQL transaction covering one movie-processing run.
// All mutating operations are Session methods; exactly one Session should
// be active per movie at a time.
type Session struct {
	tx   *sql.Tx
	done bool
}

// Begin opens a manifest session.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin manifest session: %w", err)
	}
	return &Session{tx: tx}, nil
}

// Commit commits the session transaction.
func (sn *Session) Commit() error {
	if sn.done {
		return errors.New("manifest session already finished")
	}
	sn.done = true
	if err := sn.tx.Commit(); err != nil {
		return fmt.Errorf("commit manifest session: %w", err)
	}
	return nil
}

// Rollback aborts the session transaction. Safe to call after Commit.
func (sn *Session) Rollback() error {
	if sn.done {
		return nil
	}
	sn.done = true
	if err := sn.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback manifest session: %w", err)
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// Stats returns per-status stage counts across all videos, for the status command.
func (s *Store) Stats(ctx context.Context) (map[StageStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM video_stages GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("manifest stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[StageStatus]int)
	for rows.Next() {
		var status StageStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// MovieSummary is a status-command projection of one movie.
type MovieSummary struct {
	Code       string
	Title      string
	VideoCount int
	Completed  int
	Failed     int
}

// Summaries returns one row per movie with per-status video counts.
func (s *Store) Summaries(ctx context.Context) ([]MovieSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT m.label, m.number, COALESCE(m.title_jap, ''),
               COUNT(DISTINCT v.id),
               COUNT(DISTINCT CASE WHEN vs.stage = ? AND vs.status = ? THEN v.id END),
               COUNT(DISTINCT CASE WHEN vs.status = ? THEN v.id END)
        FROM movies m
        LEFT JOIN videos v ON v.movie_id = m.id
        LEFT JOIN video_stages vs ON vs.video_id = v.id
        GROUP BY m.id
        ORDER BY m.label, m.number`,
		TerminalStage, StatusSuccess, StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("manifest summaries: %w", err)
	}
	defer rows.Close()

	var summaries []MovieSummary
	for rows.Next() {
		var summary MovieSummary
		var label, number string
		if err := rows.Scan(&label, &number, &summary.Title, &summary.VideoCount, &summary.Completed, &summary.Failed); err != nil {
			return nil, err
		}
		summary.Code = label + "-" + number
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
