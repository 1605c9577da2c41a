package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GetOrCreateMovie upserts a movie identity and returns the full aggregate.
// Calling it twice with the same identity returns the same movie. New movies
// are seeded with pending stage rows.
func (sn *Session) GetOrCreateMovie(ctx context.Context, label, number string) (*Movie, error) {
	label = strings.ToUpper(strings.TrimSpace(label))
	number = strings.TrimSpace(number)
	if label != AnonymousLabel {
		number = strings.ToUpper(number)
	}
	if !ValidCode(label, number) {
		return nil, fmt.Errorf("%w: %s-%s", ErrInvalidCode, label, number)
	}

	now := timestamp()
	var id int64
	err := sn.tx.QueryRowContext(ctx,
		`SELECT id FROM movies WHERE label = ? AND number = ?`, label, number).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result, insertErr := sn.tx.ExecContext(ctx,
			`INSERT INTO movies (label, number, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			label, number, now, now)
		if insertErr != nil {
			return nil, fmt.Errorf("insert movie %s-%s: %w", label, number, insertErr)
		}
		id, insertErr = result.LastInsertId()
		if insertErr != nil {
			return nil, insertErr
		}
		for _, stage := range MovieStageOrder {
			if _, seedErr := sn.tx.ExecContext(ctx,
				`INSERT INTO movie_stages (movie_id, stage, status, updated_at) VALUES (?, ?, ?, ?)`,
				id, stage, StatusPending, now); seedErr != nil {
				return nil, fmt.Errorf("seed movie stage %s: %w", stage, seedErr)
			}
		}
	case err != nil:
		return nil, fmt.Errorf("lookup movie %s-%s: %w", label, number, err)
	}

	return sn.LoadMovie(ctx, id)
}

// LoadMovie loads the complete movie aggregate: metadata, stages, entity
// links, terms, and all videos with their stage rows.
func (sn *Session) LoadMovie(ctx context.Context, id int64) (*Movie, error) {
	movie := &Movie{ID: id}
	var directorID, studioID sql.NullInt64
	var titleJap, titleSch, synopsisJap, synopsisSch, releaseDate sql.NullString
	err := sn.tx.QueryRowContext(ctx, `
        SELECT label, number, title_jap, title_sch, synopsis_jap, synopsis_sch,
               release_date, director_id, studio_id
        FROM movies WHERE id = ?`, id).
		Scan(&movie.Label, &movie.Number, &titleJap, &titleSch, &synopsisJap, &synopsisSch,
			&releaseDate, &directorID, &studioID)
	if err != nil {
		return nil, fmt.Errorf("load movie %d: %w", id, err)
	}
	movie.Title = BilingualText{Original: titleJap.String, Translated: titleSch.String}
	movie.Synopsis = BilingualText{Original: synopsisJap.String, Translated: synopsisSch.String}
	movie.ReleaseDate = releaseDate.String

	if directorID.Valid {
		if movie.Director, err = sn.loadNamedEntity(ctx, "directors", directorID.Int64); err != nil {
			return nil, err
		}
	}
	if studioID.Valid {
		if movie.Studio, err = sn.loadNamedEntity(ctx, "studios", studioID.Int64); err != nil {
			return nil, err
		}
	}
	if movie.Categories, err = sn.loadCategories(ctx, id); err != nil {
		return nil, err
	}
	if movie.Actors, err = sn.loadActors(ctx, id); err != nil {
		return nil, err
	}
	if movie.Terms, err = sn.loadTerms(ctx, id); err != nil {
		return nil, err
	}
	if movie.Stages, err = sn.loadMovieStages(ctx, id); err != nil {
		return nil, err
	}
	if movie.Videos, err = sn.loadVideos(ctx, id); err != nil {
		return nil, err
	}
	return movie, nil
}

// FindMovieByCode resolves a movie identity without creating it.
func (sn *Session) FindMovieByCode(ctx context.Context, label, number string) (*Movie, error) {
	var id int64
	err := sn.tx.QueryRowContext(ctx,
		`SELECT id FROM movies WHERE label = ? AND number = ?`,
		strings.ToUpper(strings.TrimSpace(label)), strings.TrimSpace(number)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find movie %s-%s: %w", label, number, err)
	}
	return sn.LoadMovie(ctx, id)
}

// SaveMovie flushes metadata, entity links, terms, and stage rows back to the
// database. Video rows and video stages are saved through SaveVideoStages.
func (sn *Session) SaveMovie(ctx context.Context, movie *Movie) error {
	directorID, err := sn.saveNamedEntity(ctx, "directors", movie.Director)
	if err != nil {
		return err
	}
	studioID, err := sn.saveNamedEntity(ctx, "studios", movie.Studio)
	if err != nil {
		return err
	}

	_, err = sn.tx.ExecContext(ctx, `
        UPDATE movies SET title_jap = ?, title_sch = ?, synopsis_jap = ?, synopsis_sch = ?,
               release_date = ?, director_id = ?, studio_id = ?, updated_at = ?
        WHERE id = ?`,
		nullableString(movie.Title.Original), nullableString(movie.Title.Translated),
		nullableString(movie.Synopsis.Original), nullableString(movie.Synopsis.Translated),
		nullableString(movie.ReleaseDate), directorID, studioID, timestamp(), movie.ID)
	if err != nil {
		return fmt.Errorf("update movie %s: %w", movie.Code(), err)
	}

	if err := sn.saveCategories(ctx, movie); err != nil {
		return err
	}
	if err := sn.saveActors(ctx, movie); err != nil {
		return err
	}
	if err := sn.ReplaceTerms(ctx, movie.ID, movie.Terms); err != nil {
		return err
	}
	return sn.saveMovieStages(ctx, movie)
}

func (sn *Session) loadNamedEntity(ctx context.Context, table string, id int64) (*BilingualText, error) {
	var text BilingualText
	var sch sql.NullString
	err := sn.tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT jap_text, sch_text FROM %s WHERE id = ?`, table), id).
		Scan(&text.Original, &sch)
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", table, id, err)
	}
	text.Translated = sch.String
	return &text, nil
}

// saveNamedEntity upserts into directors or studios keyed on the original
// text and returns the row id for the FK column. A translation seen here
// updates the shared cache row.
func (sn *Session) saveNamedEntity(ctx context.Context, table string, text *BilingualText) (any, error) {
	if text == nil || strings.TrimSpace(text.Original) == "" {
		return nil, nil
	}
	var id int64
	var sch sql.NullString
	err := sn.tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, sch_text FROM %s WHERE jap_text = ?`, table), text.Original).
		Scan(&id, &sch)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result, insertErr := sn.tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (jap_text, sch_text) VALUES (?, ?)`, table),
			text.Original, nullableString(text.Translated))
		if insertErr != nil {
			return nil, fmt.Errorf("insert %s: %w", table, insertErr)
		}
		return result.LastInsertId()
	case err != nil:
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}

	if text.Translated != "" && text.Translated != sch.String {
		if _, err := sn.tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET sch_text = ? WHERE id = ?`, table),
			text.Translated, id); err != nil {
			return nil, fmt.Errorf("update %s translation: %w", table, err)
		}
	} else if sch.Valid && text.Translated == "" {
		// Pull the cached translation into the in-memory view.
		text.Translated = sch.String
	}
	return id, nil
}

func (sn *Session) loadCategories(ctx context.Context, movieID int64) ([]BilingualText, error) {
	rows, err := sn.tx.QueryContext(ctx, `
        SELECT c.jap_text, COALESCE(c.sch_text, '')
        FROM categories c
        JOIN movie_categories mc ON mc.category_id = c.id
        WHERE mc.movie_id = ?
        ORDER BY c.jap_text`, movieID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()

	var categories []BilingualText
	for rows.Next() {
		var text BilingualText
		if err := rows.Scan(&text.Original, &text.Translated); err != nil {
			return nil, err
		}
		categories = append(categories, text)
	}
	return categories, rows.Err()
}

func (sn *Session) saveCategories(ctx context.Context, movie *Movie) error {
	if _, err := sn.tx.ExecContext(ctx,
		`DELETE FROM movie_categories WHERE movie_id = ?`, movie.ID); err != nil {
		return fmt.Errorf("clear category links: %w", err)
	}
	for i := range movie.Categories {
		id, err := sn.saveNamedEntity(ctx, "categories", &movie.Categories[i])
		if err != nil {
			return err
		}
		if id == nil {
			continue
		}
		if _, err := sn.tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO movie_categories (movie_id, category_id) VALUES (?, ?)`,
			movie.ID, id); err != nil {
			return fmt.Errorf("link category: %w", err)
		}
	}
	return nil
}

func (sn *Session) loadActors(ctx context.Context, movieID int64) ([]Actor, error) {
	rows, err := sn.tx.QueryContext(ctx, `
        SELECT a.id, a.current_name, a.female
        FROM actors a
        JOIN act_in ai ON ai.actor_id = a.id
        WHERE ai.movie_id = ?
        ORDER BY a.current_name`, movieID)
	if err != nil {
		return nil, fmt.Errorf("load actors: %w", err)
	}
	defer rows.Close()

	var actors []Actor
	for rows.Next() {
		var actor Actor
		var currentName string
		if err := rows.Scan(&actor.ID, &currentName, &actor.Female); err != nil {
			return nil, err
		}
		actor.CurrentName.Original = currentName
		actors = append(actors, actor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range actors {
		aliases, err := sn.loadActorAliases(ctx, actors[i].ID)
		if err != nil {
			return nil, err
		}
		for _, alias := range aliases {
			if alias.Original == actors[i].CurrentName.Original {
				actors[i].CurrentName.Translated = alias.Translated
			} else {
				actors[i].Aliases = append(actors[i].Aliases, alias)
			}
		}
	}
	return actors, nil
}

func (sn *Session) loadActorAliases(ctx context.Context, actorID string) ([]BilingualText, error) {
	rows, err := sn.tx.QueryContext(ctx,
		`SELECT jap_text, COALESCE(sch_text, '') FROM actor_names WHERE actor_id = ? ORDER BY id`,
		actorID)
	if err != nil {
		return nil, fmt.Errorf("load actor aliases: %w", err)
	}
	defer rows.Close()

	var aliases []BilingualText
	for rows.Next() {
		var alias BilingualText
		if err := rows.Scan(&alias.Original, &alias.Translated); err != nil {
			return nil, err
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

// saveActors consolidates performer identities. Every alias name is a global
// key: when two in-memory actors share aliases with distinct stored actors,
// the stored actors are merged and all name and appearance links re-pointed
// to the survivor.
func (sn *Session) saveActors(ctx context.Context, movie *Movie) error {
	if _, err := sn.tx.ExecContext(ctx,
		`DELETE FROM act_in WHERE movie_id = ?`, movie.ID); err != nil {
		return fmt.Errorf("clear actor links: %w", err)
	}

	for i := range movie.Actors {
		actor := &movie.Actors[i]
		names := actorNames(actor)
		if len(names) == 0 {
			continue
		}

		existing, err := sn.actorsForNames(ctx, names)
		if err != nil {
			return err
		}

		var actorID string
		switch len(existing) {
		case 0:
			actorID = uuid.NewString()
			if _, err := sn.tx.ExecContext(ctx,
				`INSERT INTO actors (id, current_name, female) VALUES (?, ?, ?)`,
				actorID, actor.CurrentName.Original, actor.Female); err != nil {
				return fmt.Errorf("insert actor: %w", err)
			}
		default:
			actorID = existing[0]
			for _, stale := range existing[1:] {
				if err := sn.mergeActor(ctx, actorID, stale); err != nil {
					return err
				}
			}
			if _, err := sn.tx.ExecContext(ctx,
				`UPDATE actors SET current_name = ?, female = ? WHERE id = ?`,
				actor.CurrentName.Original, actor.Female, actorID); err != nil {
				return fmt.Errorf("update actor: %w", err)
			}
		}
		actor.ID = actorID

		for _, name := range names {
			if err := sn.upsertActorName(ctx, actorID, name); err != nil {
				return err
			}
		}
		if _, err := sn.tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO act_in (movie_id, actor_id) VALUES (?, ?)`,
			movie.ID, actorID); err != nil {
			return fmt.Errorf("link actor: %w", err)
		}
	}
	return nil
}

func actorNames(actor *Actor) []BilingualText {
	var names []BilingualText
	seen := make(map[string]struct{})
	add := func(text BilingualText) {
		original := strings.TrimSpace(text.Original)
		if original == "" {
			return
		}
		if _, ok := seen[original]; ok {
			return
		}
		seen[original] = struct{}{}
		text.Original = original
		names = append(names, text)
	}
	add(actor.CurrentName)
	for _, alias := range actor.Aliases {
		add(alias)
	}
	return names
}

func (sn *Session) actorsForNames(ctx context.Context, names []BilingualText) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	for _, name := range names {
		var id string
		err := sn.tx.QueryRowContext(ctx,
			`SELECT actor_id FROM actor_names WHERE jap_text = ?`, name.Original).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup actor name %q: %w", name.Original, err)
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (sn *Session) mergeActor(ctx context.Context, survivor, stale string) error {
	if _, err := sn.tx.ExecContext(ctx,
		`UPDATE actor_names SET actor_id = ? WHERE actor_id = ?`, survivor, stale); err != nil {
		return fmt.Errorf("re-point actor names: %w", err)
	}
	if _, err := sn.tx.ExecContext(ctx,
		`UPDATE OR IGNORE act_in SET actor_id = ? WHERE actor_id = ?`, survivor, stale); err != nil {
		return fmt.Errorf("re-point actor appearances: %w", err)
	}
	if _, err := sn.tx.ExecContext(ctx,
		`DELETE FROM act_in WHERE actor_id = ?`, stale); err != nil {
		return fmt.Errorf("drop stale appearances: %w", err)
	}
	if _, err := sn.tx.ExecContext(ctx,
		`DELETE FROM actors WHERE id = ?`, stale); err != nil {
		return fmt.Errorf("drop merged actor: %w", err)
	}
	return nil
}

func (sn *Session) upsertActorName(ctx context.Context, actorID string, name BilingualText) error {
	var id int64
	var sch sql.NullString
	err := sn.tx.QueryRowContext(ctx,
		`SELECT id, sch_text FROM actor_names WHERE jap_text = ?`, name.Original).Scan(&id, &sch)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, insertErr := sn.tx.ExecContext(ctx,
			`INSERT INTO actor_names (actor_id, jap_text, sch_text) VALUES (?, ?, ?)`,
			actorID, name.Original, nullableString(name.Translated)); insertErr != nil {
			return fmt.Errorf("insert actor name %q: %w", name.Original, insertErr)
		}
		return nil
	case err != nil:
		return fmt.Errorf("lookup actor name %q: %w", name.Original, err)
	}

	if name.Translated != "" && name.Translated != sch.String {
		if _, err := sn.tx.ExecContext(ctx,
			`UPDATE actor_names SET sch_text = ? WHERE id = ?`, name.Translated, id); err != nil {
			return fmt.Errorf("update actor name translation: %w", err)
		}
	}
	return nil
}

func (sn *Session) loadMovieStages(ctx context.Context, movieID int64) ([]StageRow, error) {
	rows, err := sn.tx.QueryContext(ctx,
		`SELECT stage, status FROM movie_stages WHERE movie_id = ?`, movieID)
	if err != nil {
		return nil, fmt.Errorf("load movie stages: %w", err)
	}
	defer rows.Close()

	var stages []StageRow
	for rows.Next() {
		var row StageRow
		if err := rows.Scan(&row.Stage, &row.Status); err != nil {
			return nil, err
		}
		stages = append(stages, row)
	}
	return stages, rows.Err()
}

func (sn *Session) saveMovieStages(ctx context.Context, movie *Movie) error {
	now := timestamp()
	for _, row := range movie.Stages {
		if _, err := sn.tx.ExecContext(ctx, `
            INSERT INTO movie_stages (movie_id, stage, status, updated_at)
            VALUES (?, ?, ?, ?)
            ON CONFLICT (movie_id, stage) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
			movie.ID, row.Stage, row.Status, now); err != nil {
			return fmt.Errorf("save movie stage %s: %w", row.Stage, err)
		}
	}
	return nil
}
