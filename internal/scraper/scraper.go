// Package scraper fetches bilingual movie metadata from catalog sites.
// Each site adapter fetches the source-language page first, then augments
// the result with translations from the Chinese page, matching entities on
// their stable detail-page identifiers.
package scraper

import (
	"context"
	"errors"

	"yakusub/internal/avcode"
	"yakusub/internal/manifest"
)

var (
	// ErrUnavailable indicates the site was disabled for the rest of the
	// run after a hard connection failure.
	ErrUnavailable = errors.New("scraper site unavailable")
	// ErrNotFound indicates the catalog has no page for the code.
	ErrNotFound = errors.New("movie code not found")
)

// Metadata is the merged bilingual result of a two-pass fetch. Fields the
// Chinese page lacks keep an empty Translated side.
type Metadata struct {
	Title       manifest.BilingualText
	Synopsis    manifest.BilingualText
	ReleaseDate string
	Director    *manifest.BilingualText
	Studio      *manifest.BilingualText
	Categories  []manifest.BilingualText
	Actors      []manifest.Actor
}

// Site is one catalog adapter.
type Site interface {
	Name() string
	// Available reports whether the site may still be used in this run.
	Available() bool
	// ValidateCode checks whether the catalog has a page for the code.
	ValidateCode(ctx context.Context, code avcode.Code) (bool, error)
	// FetchMetadata performs the two-pass bilingual fetch. A source-page
	// failure returns an error; a Chinese-page failure returns metadata
	// with translations left empty.
	FetchMetadata(ctx context.Context, code avcode.Code) (*Metadata, error)
}
