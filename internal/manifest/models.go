package manifest

import (
	"regexp"
	"strings"
)

// StageStatus represents the lifecycle of one stage of one entity.
type StageStatus string

const (
	StatusPending StageStatus = "pending"
	StatusSuccess StageStatus = "success"
	StatusFailed  StageStatus = "failed"
	StatusSkipped StageStatus = "skipped"
)

// ParseStageStatus converts a string into a known StageStatus.
func ParseStageStatus(value string) (StageStatus, bool) {
	normalized := StageStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StatusPending, StatusSuccess, StatusFailed, StatusSkipped:
		return normalized, true
	}
	return "", false
}

// Video stage names in execution order. The terminal stage produces the
// bilingual ASS asset.
const (
	StageExtract    = "extract"
	StageDenoise    = "denoise"
	StageTranscribe = "transcribe"
	StageCorrect    = "correct"
	StageTranslate  = "translate"
	StageBilingual  = "bilingual"
)

// StageScrape is the movie-level metadata stage.
const StageScrape = "scrape"

// VideoStageOrder is the fixed per-video stage sequence.
var VideoStageOrder = []string{
	StageExtract,
	StageDenoise,
	StageTranscribe,
	StageCorrect,
	StageTranslate,
	StageBilingual,
}

// TerminalStage is the last entry of VideoStageOrder.
const TerminalStage = StageBilingual

// MovieStageOrder is the fixed per-movie stage sequence.
var MovieStageOrder = []string{StageScrape}

// IsVideoStage reports whether name is a member of the fixed video-stage list.
func IsVideoStage(name string) bool {
	for _, stage := range VideoStageOrder {
		if stage == name {
			return true
		}
	}
	return false
}

// AnonymousLabel is the label assigned to movies without an extractable code.
// Anonymous movie numbers carry the SHA256 of the first discovered video.
const AnonymousLabel = "UNKNOWN"

// AllowedSuffixes is the accepted video file suffix set, lowercase without dot.
var AllowedSuffixes = map[string]struct{}{
	"mp4": {}, "mkv": {}, "avi": {}, "mov": {}, "wmv": {},
	"flv": {}, "webm": {}, "mpg": {}, "mpeg": {}, "3gp": {},
}

// SuffixAllowed reports whether the suffix (with or without leading dot,
// any case) is an accepted video container.
func SuffixAllowed(suffix string) bool {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(suffix), "."))
	_, ok := AllowedSuffixes[normalized]
	return ok
}

var (
	labelPattern  = regexp.MustCompile(`^[A-Z]{2,8}$`)
	numberPattern = regexp.MustCompile(`^[0-9]{2,7}$`)
	sha256Pattern = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// ValidCode reports whether (label, number) forms a valid movie identity:
// either a standard code (uppercase letters + digits) or an anonymous one
// (UNKNOWN + 64-hex fingerprint).
func ValidCode(label, number string) bool {
	if label == AnonymousLabel {
		return sha256Pattern.MatchString(number)
	}
	return labelPattern.MatchString(label) && numberPattern.MatchString(number)
}

// BilingualText pairs an original-language string with its translation.
type BilingualText struct {
	Original   string
	Translated string
}

// IsZero reports whether both sides are empty.
func (b BilingualText) IsZero() bool {
	return strings.TrimSpace(b.Original) == "" && strings.TrimSpace(b.Translated) == ""
}

// Actor groups one performer identity with all known name aliases.
type Actor struct {
	ID          string // UUID assigned by the store
	CurrentName BilingualText
	Aliases     []BilingualText
	Female      bool
}

// Term is translator vocabulary accumulated during subtitle correction.
type Term struct {
	ID          int64
	MovieID     int64
	Origin      string
	Recommended string
	Description string
}

// StageRow records the persisted status of one stage for one entity.
type StageRow struct {
	Stage     string
	Status    StageStatus
	ByProduct string
}

// Video is a content-addressed video file tracked by the manifest.
type Video struct {
	ID           int64
	SHA256       string
	AbsolutePath string
	Filename     string
	Suffix       string
	MovieID      int64
	Stages       []StageRow
}

// StageRowFor returns the row for the named stage, if present.
func (v *Video) StageRowFor(name string) (*StageRow, bool) {
	for i := range v.Stages {
		if v.Stages[i].Stage == name {
			return &v.Stages[i], true
		}
	}
	return nil, false
}

// SetStage records a status and by-product for a stage, creating the row
// when absent.
func (v *Video) SetStage(name string, status StageStatus, byProduct string) {
	if row, ok := v.StageRowFor(name); ok {
		row.Status = status
		row.ByProduct = byProduct
		return
	}
	v.Stages = append(v.Stages, StageRow{Stage: name, Status: status, ByProduct: byProduct})
}

// Movie is the aggregate the pipeline operates on.
type Movie struct {
	ID          int64
	Label       string
	Number      string
	Title       BilingualText
	Synopsis    BilingualText
	ReleaseDate string
	Director    *BilingualText
	Studio      *BilingualText
	Categories  []BilingualText
	Actors      []Actor
	Terms       []Term
	Videos      []*Video
	Stages      []StageRow
}

// Code returns the canonical code used for logs and the by-product layout.
func (m *Movie) Code() string {
	return m.Label + "-" + m.Number
}

// Anonymous reports whether the movie identity is a video fingerprint.
func (m *Movie) Anonymous() bool {
	return m.Label == AnonymousLabel
}

// HasMetadata reports whether the scrape stage has populated this movie.
func (m *Movie) HasMetadata() bool {
	return !m.Title.IsZero() || m.Director != nil || m.Studio != nil ||
		len(m.Categories) > 0 || len(m.Actors) > 0
}

// StageRowFor returns the movie-level row for the named stage, if present.
func (m *Movie) StageRowFor(name string) (*StageRow, bool) {
	for i := range m.Stages {
		if m.Stages[i].Stage == name {
			return &m.Stages[i], true
		}
	}
	return nil, false
}

// SetStage records a movie-level stage status.
func (m *Movie) SetStage(name string, status StageStatus) {
	if row, ok := m.StageRowFor(name); ok {
		row.Status = status
		return
	}
	m.Stages = append(m.Stages, StageRow{Stage: name, Status: status})
}

// MergeTerm appends a term unless a term with the same origin already exists.
func (m *Movie) MergeTerm(term Term) {
	origin := strings.TrimSpace(term.Origin)
	if origin == "" {
		return
	}
	for _, existing := range m.Terms {
		if existing.Origin == origin {
			return
		}
	}
	term.Origin = origin
	m.Terms = append(m.Terms, term)
}

// EntityKind identifies a translation-cache namespace.
type EntityKind string

const (
	KindDirector EntityKind = "director"
	KindStudio   EntityKind = "studio"
	KindCategory EntityKind = "category"
	KindActor    EntityKind = "actor"
	KindTitle    EntityKind = "title"
	KindSynopsis EntityKind = "synopsis"
)
