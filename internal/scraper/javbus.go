package scraper

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"yakusub/internal/avcode"
	"yakusub/internal/logging"
	"yakusub/internal/manifest"
)

// JavBus scrapes the javbus-style catalog layout: one detail page per code,
// language selected by path prefix, entity links carrying stable ids.
type JavBus struct {
	baseURL string
	client  *throttledClient
	logger  *slog.Logger
}

// NewJavBus builds the adapter. minInterval is clamped to at least two
// seconds between page fetches.
func NewJavBus(baseURL string, minInterval, timeout time.Duration, logger *slog.Logger) *JavBus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &JavBus{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newThrottledClient(minInterval, timeout),
		logger:  logging.NewComponentLogger(logger, "scraper.javbus"),
	}
}

func (j *JavBus) Name() string { return "javbus" }

func (j *JavBus) Available() bool { return j.client.Available() }

const notFoundMarker = "404 Page Not Found"

// ValidateCode checks the Chinese page for the code.
func (j *JavBus) ValidateCode(ctx context.Context, code avcode.Code) (bool, error) {
	body, status, err := j.client.get(ctx, j.pageURL(code, ""))
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound || strings.Contains(body, notFoundMarker) {
		return false, nil
	}
	return status == http.StatusOK, nil
}

// FetchMetadata performs the two-pass bilingual fetch: the Japanese page
// populates original fields, the Chinese page fills translations by entity
// id. A failed second pass logs and returns original-only metadata.
func (j *JavBus) FetchMetadata(ctx context.Context, code avcode.Code) (*Metadata, error) {
	source, err := j.fetchPage(ctx, code, "ja")
	if err != nil {
		return nil, fmt.Errorf("fetch source page for %s: %w", code, err)
	}

	meta := &Metadata{
		Title:       manifest.BilingualText{Original: source.title},
		ReleaseDate: source.releaseDate,
	}
	if source.director != nil {
		meta.Director = &manifest.BilingualText{Original: source.director.name}
	}
	if source.studio != nil {
		meta.Studio = &manifest.BilingualText{Original: source.studio.name}
	}
	for _, category := range source.categories {
		meta.Categories = append(meta.Categories, manifest.BilingualText{Original: category.name})
	}
	for _, star := range source.actors {
		meta.Actors = append(meta.Actors, manifest.Actor{
			CurrentName: manifest.BilingualText{Original: star.name},
			Female:      true,
		})
	}

	translated, err := j.fetchPage(ctx, code, "")
	if err != nil {
		j.logger.Warn("chinese page fetch failed, keeping originals",
			logging.String(logging.FieldMovieCode, code.String()), logging.Error(err))
		return meta, nil
	}
	mergeTranslations(meta, source, translated)
	return meta, nil
}

type entityRef struct {
	id   string
	name string
}

type page struct {
	title       string
	releaseDate string
	director    *entityRef
	studio      *entityRef
	categories  []entityRef
	actors      []entityRef
}

func (j *JavBus) pageURL(code avcode.Code, lang string) string {
	if lang == "" {
		return j.baseURL + "/" + code.String()
	}
	return j.baseURL + "/" + lang + "/" + code.String()
}

func (j *JavBus) fetchPage(ctx context.Context, code avcode.Code, lang string) (*page, error) {
	body, status, err := j.client.get(ctx, j.pageURL(code, lang))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || strings.Contains(body, notFoundMarker) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", status, code)
	}
	return parsePage(body), nil
}

var (
	titlePattern    = regexp.MustCompile(`<h3>\s*(?:[A-Z0-9-]+\s+)?(.+?)\s*</h3>`)
	datePattern     = regexp.MustCompile(`([0-9]{4}-[0-9]{2}-[0-9]{2})`)
	directorPattern = regexp.MustCompile(`href="[^"]*/director/([^"/]+)"[^>]*>([^<]+)</a>`)
	studioPattern   = regexp.MustCompile(`href="[^"]*/studio/([^"/]+)"[^>]*>([^<]+)</a>`)
	genrePattern    = regexp.MustCompile(`href="[^"]*/genre/([^"/]+)"[^>]*>([^<]+)</a>`)
	starPattern     = regexp.MustCompile(`href="[^"]*/star/([^"/]+)"[^>]*>([^<]+)</a>`)
)

func parsePage(body string) *page {
	p := &page{}
	if m := titlePattern.FindStringSubmatch(body); m != nil {
		p.title = html.UnescapeString(strings.TrimSpace(m[1]))
	}
	if m := datePattern.FindStringSubmatch(body); m != nil {
		p.releaseDate = m[1]
	}
	if m := directorPattern.FindStringSubmatch(body); m != nil {
		p.director = &entityRef{id: m[1], name: cleanText(m[2])}
	}
	if m := studioPattern.FindStringSubmatch(body); m != nil {
		p.studio = &entityRef{id: m[1], name: cleanText(m[2])}
	}
	for _, m := range genrePattern.FindAllStringSubmatch(body, -1) {
		p.categories = append(p.categories, entityRef{id: m[1], name: cleanText(m[2])})
	}
	seen := make(map[string]struct{})
	for _, m := range starPattern.FindAllStringSubmatch(body, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		p.actors = append(p.actors, entityRef{id: m[1], name: cleanText(m[2])})
	}
	return p
}

func cleanText(s string) string {
	return html.UnescapeString(strings.TrimSpace(s))
}

// mergeTranslations fills the Translated side of every field whose entity id
// appears on both language pages. Entities present on only one page stay
// original-only.
func mergeTranslations(meta *Metadata, source, translated *page) {
	if translated.title != "" && translated.title != source.title {
		meta.Title.Translated = translated.title
	}
	if meta.Director != nil && source.director != nil && translated.director != nil &&
		source.director.id == translated.director.id {
		meta.Director.Translated = translated.director.name
	}
	if meta.Studio != nil && source.studio != nil && translated.studio != nil &&
		source.studio.id == translated.studio.id {
		meta.Studio.Translated = translated.studio.name
	}

	genreByID := make(map[string]string, len(translated.categories))
	for _, category := range translated.categories {
		genreByID[category.id] = category.name
	}
	for i, category := range source.categories {
		if name, ok := genreByID[category.id]; ok {
			meta.Categories[i].Translated = name
		}
	}

	starByID := make(map[string]string, len(translated.actors))
	for _, star := range translated.actors {
		starByID[star.id] = star.name
	}
	for i, star := range source.actors {
		if name, ok := starByID[star.id]; ok {
			meta.Actors[i].CurrentName.Translated = name
		}
	}
}
