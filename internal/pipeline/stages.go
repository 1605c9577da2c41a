package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"yakusub/internal/manifest"
	"yakusub/internal/subtitle"
	"yakusub/internal/translate"
)

// artifactPath places a stage by-product under <output_dir>/<code>/ with
// the video's filename stem and the stage-specific suffix.
func (r *movieRun) artifactPath(video *manifest.Video, suffix string) string {
	stem := strings.TrimSuffix(video.Filename, filepath.Ext(video.Filename))
	return filepath.Join(r.engine.outputDir, r.movie.Code(), stem+suffix)
}

// byProductOf returns the recorded artifact of an earlier successful stage.
func (r *movieRun) byProductOf(video *manifest.Video, stage string) (string, error) {
	row, ok := video.StageRowFor(stage)
	if !ok || row.Status != manifest.StatusSuccess || row.ByProduct == "" {
		return "", fmt.Errorf("stage %s has no usable by-product", stage)
	}
	return row.ByProduct, nil
}

func (r *movieRun) extract(ctx context.Context, video *manifest.Video) (string, error) {
	dest := r.artifactPath(video, ".extract.wav")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	if err := r.engine.audio.ExtractAudio(ctx, video.AbsolutePath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (r *movieRun) denoise(ctx context.Context, video *manifest.Video) (string, error) {
	source, err := r.byProductOf(video, manifest.StageExtract)
	if err != nil {
		return "", err
	}
	dest := r.artifactPath(video, ".denoised.wav")
	if err := r.engine.vocals.Denoise(ctx, source, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (r *movieRun) transcribe(ctx context.Context, video *manifest.Video) (string, error) {
	source, err := r.byProductOf(video, manifest.StageDenoise)
	if err != nil {
		return "", err
	}
	dest := r.artifactPath(video, ".srt")
	if err := r.engine.recognizer.Run(ctx, source, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// correct proofreads the raw transcript and folds any returned glossary
// terms into the movie so later subtitle calls can see them.
func (r *movieRun) correct(ctx context.Context, video *manifest.Video) (string, error) {
	source, err := r.byProductOf(video, manifest.StageTranscribe)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(source)
	if err != nil {
		return "", err
	}

	result := r.engine.translator.CorrectSubtitle(ctx, string(content), r.correctionTerms())
	if !result.Success {
		return "", fmt.Errorf("correct subtitle: %s: %s", result.ErrorKind, result.ErrorDetail)
	}
	for _, term := range result.Terms {
		merged := manifest.Term{
			MovieID:     r.movie.ID,
			Origin:      term.Japanese,
			Recommended: term.RecommendedChinese,
			Description: term.Description,
		}
		r.movie.MergeTerm(merged)
		if err := r.recordTerm(ctx, merged); err != nil {
			return "", err
		}
	}

	dest := r.artifactPath(video, ".corrected.srt")
	if err := os.WriteFile(dest, []byte(result.Content), 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

func (r *movieRun) translate(ctx context.Context, video *manifest.Video) (string, error) {
	source, err := r.byProductOf(video, manifest.StageCorrect)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(source)
	if err != nil {
		return "", err
	}

	result := r.engine.translator.TranslateSubtitle(ctx, string(content), r.termEntries())
	if !result.Success {
		return "", fmt.Errorf("translate subtitle: %s: %s", result.ErrorKind, result.ErrorDetail)
	}

	dest := r.artifactPath(video, ".translated.srt")
	if err := os.WriteFile(dest, []byte(result.Content), 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

// bilingual pairs the corrected source cues with their translations and
// renders the final ASS asset with the metadata intro sequence.
func (r *movieRun) bilingual(_ context.Context, video *manifest.Video) (string, error) {
	sourcePath, err := r.byProductOf(video, manifest.StageCorrect)
	if err != nil {
		return "", err
	}
	translatedPath, err := r.byProductOf(video, manifest.StageTranslate)
	if err != nil {
		return "", err
	}

	source, err := subtitle.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("read corrected subtitle: %w", err)
	}
	translated, err := subtitle.ReadFile(translatedPath)
	if err != nil {
		return "", fmt.Errorf("read translated subtitle: %w", err)
	}

	dest := r.artifactPath(video, ".ass")
	if err := subtitle.WriteASSFile(dest, r.intro(), source, translated); err != nil {
		return "", err
	}
	return dest, nil
}

// intro builds the opening card content from whatever metadata is present,
// preferring translated text.
func (r *movieRun) intro() subtitle.Intro {
	movie := r.movie
	intro := subtitle.Intro{
		Title:       preferTranslated(movie.Title),
		ReleaseDate: movie.ReleaseDate,
	}
	for _, actor := range movie.Actors {
		intro.Actors = append(intro.Actors, preferTranslated(actor.CurrentName))
	}
	for _, category := range movie.Categories {
		intro.Categories = append(intro.Categories, preferTranslated(category))
	}
	if movie.Studio != nil {
		intro.Studio = preferTranslated(*movie.Studio)
	}
	if movie.Director != nil {
		intro.Director = preferTranslated(*movie.Director)
	}
	return intro
}

func preferTranslated(text manifest.BilingualText) string {
	if strings.TrimSpace(text.Translated) != "" {
		return text.Translated
	}
	return text.Original
}

func (r *movieRun) termEntries() []translate.TermEntry {
	entries := make([]translate.TermEntry, 0, len(r.movie.Terms))
	for _, term := range r.movie.Terms {
		entries = append(entries, translate.TermEntry{
			Japanese:           term.Origin,
			RecommendedChinese: term.Recommended,
			Description:        term.Description,
		})
	}
	return entries
}

// correctionTerms seeds the correction call with the shared glossary plus
// whatever this movie has already accumulated. Movie terms win on conflict.
func (r *movieRun) correctionTerms() []translate.TermEntry {
	entries := r.termEntries()
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		seen[entry.Japanese] = struct{}{}
	}
	for _, term := range r.glossary {
		if _, ok := seen[term.Origin]; ok {
			continue
		}
		entries = append(entries, translate.TermEntry{
			Japanese:           term.Origin,
			RecommendedChinese: term.Recommended,
			Description:        term.Description,
		})
	}
	return entries
}

// recordTerm tracks glossary usage: a known origin gets a hit row, a new
// one is promoted into the shared glossary.
func (r *movieRun) recordTerm(ctx context.Context, term manifest.Term) error {
	for _, known := range r.glossary {
		if known.Origin == term.Origin {
			return r.session.RecordGlossaryHit(ctx, r.movie.ID, term.Origin)
		}
	}
	if err := r.session.PromoteTerm(ctx, term); err != nil {
		return err
	}
	r.glossary = append(r.glossary, term)
	return nil
}
