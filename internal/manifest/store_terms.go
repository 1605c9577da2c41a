package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func (sn *Session) loadTerms(ctx context.Context, movieID int64) ([]Term, error) {
	rows, err := sn.tx.QueryContext(ctx, `
        SELECT id, origin, recommended, COALESCE(description, '')
        FROM terms WHERE movie_id = ? ORDER BY id`, movieID)
	if err != nil {
		return nil, fmt.Errorf("load terms: %w", err)
	}
	defer rows.Close()

	var terms []Term
	for rows.Next() {
		term := Term{MovieID: movieID}
		if err := rows.Scan(&term.ID, &term.Origin, &term.Recommended, &term.Description); err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// ReplaceTerms rewrites the per-movie term list, deduplicated on origin.
func (sn *Session) ReplaceTerms(ctx context.Context, movieID int64, terms []Term) error {
	if _, err := sn.tx.ExecContext(ctx,
		`DELETE FROM terms WHERE movie_id = ?`, movieID); err != nil {
		return fmt.Errorf("clear terms: %w", err)
	}
	seen := make(map[string]struct{})
	for _, term := range terms {
		origin := strings.TrimSpace(term.Origin)
		if origin == "" {
			continue
		}
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		if _, err := sn.tx.ExecContext(ctx,
			`INSERT INTO terms (movie_id, origin, recommended, description) VALUES (?, ?, ?, ?)`,
			movieID, origin, term.Recommended, nullableString(term.Description)); err != nil {
			return fmt.Errorf("insert term %q: %w", origin, err)
		}
	}
	return nil
}

// GlossaryTerms returns the library-wide vocabulary seeded into every
// correction run.
func (sn *Session) GlossaryTerms(ctx context.Context) ([]Term, error) {
	rows, err := sn.tx.QueryContext(ctx,
		`SELECT id, origin, recommended, COALESCE(description, '') FROM glossary ORDER BY origin`)
	if err != nil {
		return nil, fmt.Errorf("load glossary: %w", err)
	}
	defer rows.Close()

	var terms []Term
	for rows.Next() {
		var term Term
		if err := rows.Scan(&term.ID, &term.Origin, &term.Recommended, &term.Description); err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// RecordGlossaryHit notes that a glossary entry was applied while processing
// a movie. Unknown origins are ignored.
func (sn *Session) RecordGlossaryHit(ctx context.Context, movieID int64, origin string) error {
	var glossaryID int64
	err := sn.tx.QueryRowContext(ctx,
		`SELECT id FROM glossary WHERE origin = ?`, origin).Scan(&glossaryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup glossary entry %q: %w", origin, err)
	}
	if _, err := sn.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO glossary_hits (glossary_id, movie_id, created_at) VALUES (?, ?, ?)`,
		glossaryID, movieID, timestamp()); err != nil {
		return fmt.Errorf("record glossary hit: %w", err)
	}
	return nil
}

// PromoteTerm copies a per-movie term into the shared glossary when absent.
func (sn *Session) PromoteTerm(ctx context.Context, term Term) error {
	if _, err := sn.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO glossary (origin, recommended, description) VALUES (?, ?, ?)`,
		strings.TrimSpace(term.Origin), term.Recommended, nullableString(term.Description)); err != nil {
		return fmt.Errorf("promote term %q: %w", term.Origin, err)
	}
	return nil
}
