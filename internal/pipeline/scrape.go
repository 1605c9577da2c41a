package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"yakusub/internal/avcode"
	"yakusub/internal/logging"
	"yakusub/internal/manifest"
	"yakusub/internal/scraper"
)

// scrape populates movie metadata from the catalog sites, then fills the
// missing translated fields from the entity cache or the translator.
// Translation failures are non-critical and leave fields untranslated;
// a fetch failure fails the stage so a later run can retry it.
func (r *movieRun) scrape(ctx context.Context) error {
	if r.movie.Anonymous() {
		r.movie.SetStage(manifest.StageScrape, manifest.StatusSkipped)
		return nil
	}

	if !r.movie.HasMetadata() {
		if err := r.fetchMetadata(ctx); err != nil {
			return err
		}
	}
	r.fillTranslations(ctx)
	return nil
}

func (r *movieRun) fetchMetadata(ctx context.Context) error {
	code := avcode.Code{Label: r.movie.Label, Number: r.movie.Number}

	var lastErr error
	for _, site := range r.engine.sites {
		if !site.Available() {
			continue
		}
		meta, err := site.FetchMetadata(ctx, code)
		if err != nil {
			if errors.Is(err, scraper.ErrNotFound) {
				r.logger.Info("code not found on site",
					logging.String("site", site.Name()))
			} else {
				r.logger.Warn("metadata fetch failed",
					logging.String("site", site.Name()), logging.Error(err))
			}
			lastErr = err
			continue
		}
		r.applyMetadata(meta)
		return nil
	}
	if lastErr == nil {
		lastErr = scraper.ErrUnavailable
	}
	return fmt.Errorf("fetch metadata for %s: %w", r.movie.Code(), lastErr)
}

func (r *movieRun) applyMetadata(meta *scraper.Metadata) {
	movie := r.movie
	movie.Title = meta.Title
	movie.Synopsis = meta.Synopsis
	movie.ReleaseDate = meta.ReleaseDate
	movie.Director = meta.Director
	movie.Studio = meta.Studio
	movie.Categories = meta.Categories
	movie.Actors = meta.Actors
}

// fillTranslations completes every missing translated field. Short entity
// names go first so the title and synopsis prompts can reference the
// finished performer roster.
func (r *movieRun) fillTranslations(ctx context.Context) {
	movie := r.movie

	r.translateEntity(ctx, manifest.KindDirector, "translate_director", movie.Director)
	r.translateEntity(ctx, manifest.KindStudio, "translate_studio", movie.Studio)
	for i := range movie.Categories {
		r.translateEntity(ctx, manifest.KindCategory, "translate_category", &movie.Categories[i])
	}
	for i := range movie.Actors {
		r.translateEntity(ctx, manifest.KindActor, "translate_actor", &movie.Actors[i].CurrentName)
	}

	actors, actresses := r.rosters()
	if needsTranslation(&movie.Title) {
		if result := r.engine.translator.TranslateTitle(ctx, movie.Title.Original, actors, actresses); result.Success {
			movie.Title.Translated = strings.TrimSpace(result.Content)
		} else {
			r.logger.Warn("title translation failed",
				logging.String("detail", result.ErrorDetail))
		}
	}
	if needsTranslation(&movie.Synopsis) {
		if result := r.engine.translator.TranslateSynopsis(ctx, movie.Synopsis.Original, actors, actresses); result.Success {
			movie.Synopsis.Translated = strings.TrimSpace(result.Content)
		} else {
			r.logger.Warn("synopsis translation failed",
				logging.String("detail", result.ErrorDetail))
		}
	}
}

// translateEntity resolves one short name: cache hit first, then one
// translator call. A miss that also fails to translate stays original-only.
func (r *movieRun) translateEntity(ctx context.Context, kind manifest.EntityKind, task string, text *manifest.BilingualText) {
	if !needsTranslation(text) {
		return
	}
	cached, ok, err := r.session.CachedTranslation(ctx, kind, text.Original)
	if err != nil {
		r.logger.Warn("entity cache lookup failed", logging.Error(err))
	} else if ok {
		text.Translated = cached
		return
	}

	result := r.engine.translator.TranslateMetadata(ctx, task, text.Original)
	if !result.Success {
		r.logger.Warn("entity translation failed",
			logging.String("task", task),
			logging.String("detail", result.ErrorDetail))
		return
	}
	text.Translated = strings.TrimSpace(result.Content)
}

func needsTranslation(text *manifest.BilingualText) bool {
	if text == nil {
		return false
	}
	return strings.TrimSpace(text.Original) != "" && strings.TrimSpace(text.Translated) == ""
}

// rosters returns performer display names split by gender, translated
// names preferred.
func (r *movieRun) rosters() (actors, actresses []string) {
	for _, actor := range r.movie.Actors {
		name := preferTranslated(actor.CurrentName)
		if name == "" {
			continue
		}
		if actor.Female {
			actresses = append(actresses, name)
		} else {
			actors = append(actors, name)
		}
	}
	return actors, actresses
}
