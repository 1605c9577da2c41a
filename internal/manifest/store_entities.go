package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CachedTranslation looks up a previously stored translation for an original
// text in the given entity namespace. Returns ("", false) on a cache miss.
// Titles and synopses are movie-specific and never cached across movies.
func (sn *Session) CachedTranslation(ctx context.Context, kind EntityKind, original string) (string, bool, error) {
	var table string
	switch kind {
	case KindDirector:
		table = "directors"
	case KindStudio:
		table = "studios"
	case KindCategory:
		table = "categories"
	case KindActor:
		table = "actor_names"
	case KindTitle, KindSynopsis:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("unknown entity kind %q", kind)
	}

	var sch sql.NullString
	err := sn.tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT sch_text FROM %s WHERE jap_text = ?`, table), original).Scan(&sch)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("translation cache lookup: %w", err)
	}
	if !sch.Valid || sch.String == "" {
		return "", false, nil
	}
	return sch.String, true, nil
}
