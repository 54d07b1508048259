package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is one completed scan session.
type SessionRecord struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	InputSource string
	Shortcut    string
	PageCount   int
	ToPDF       bool
	OutputPath  string
	Pages       []PageRecord
}

// PageRecord is one page of a recorded session.
type PageRecord struct {
	PageNumber int
	Path       string
	Width      int
	Height     int
}

// Store persists scan session records.
type Store struct {
	db *sql.DB
}

// NewStore creates a history store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts one completed session and its pages in one transaction.
func (s *Store) Record(ctx context.Context, rec SessionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, finished_at, input_source, shortcut, page_count, to_pdf, output_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.FinishedAt.UTC().Format(time.RFC3339),
		rec.InputSource,
		rec.Shortcut,
		rec.PageCount,
		boolToInt(rec.ToPDF),
		rec.OutputPath,
	)
	if err != nil {
		return fmt.Errorf("recording session: %w", err)
	}

	for _, p := range rec.Pages {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pages (session_id, page_number, path, width, height)
			VALUES (?, ?, ?, ?, ?)`,
			rec.ID, p.PageNumber, p.Path, p.Width, p.Height,
		)
		if err != nil {
			return fmt.Errorf("recording page %d: %w", p.PageNumber, err)
		}
	}

	return tx.Commit()
}

// SessionPages returns the recorded pages of one session in page order.
func (s *Store) SessionPages(ctx context.Context, sessionID string) ([]PageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT page_number, path, width, height
		FROM pages WHERE session_id = ? ORDER BY page_number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var pages []PageRecord
	for rows.Next() {
		var p PageRecord
		if err := rows.Scan(&p.PageNumber, &p.Path, &p.Width, &p.Height); err != nil {
			return nil, fmt.Errorf("scanning page row: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// Recent returns the most recent sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, input_source, shortcut, page_count, to_pdf, output_path
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var recs []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started, finished string
		var toPDF int
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.InputSource, &rec.Shortcut, &rec.PageCount, &toPDF, &rec.OutputPath); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		rec.ToPDF = toPDF != 0
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
