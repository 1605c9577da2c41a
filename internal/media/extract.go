package media

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"yakusub/internal/logging"
)

// Maximum allowed drift between video duration and extracted audio duration
// before the extraction is rejected.
const durationTolerance = 180.0

// Extractor converts a video file into the mono 16 kHz WAV consumed by the
// transcriber, verifying the result against the source duration.
type Extractor struct {
	ffmpeg  string
	ffprobe string
	timeout time.Duration
	logger  *slog.Logger
}

// NewExtractor builds an Extractor. Empty binary names fall back to PATH
// lookup of the conventional tool names.
func NewExtractor(ffmpeg, ffprobe string, timeout time.Duration, logger *slog.Logger) *Extractor {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		ffmpeg:  ffmpeg,
		ffprobe: ffprobe,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "media.extract"),
	}
}

// ExtractAudio writes the full audio track of videoPath to destWAV as mono
// 16 kHz PCM. A duration mismatch beyond the tolerance deletes the partial
// output and fails.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath, destWAV string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		destWAV,
	}
	if output, err := runCommand(ctx, e.ffmpeg, args...); err != nil {
		_ = os.Remove(destWAV)
		return fmt.Errorf("ffmpeg extract: %w: %s", err, strings.TrimSpace(string(output)))
	}

	if err := e.verifyDuration(ctx, videoPath, destWAV); err != nil {
		_ = os.Remove(destWAV)
		return err
	}
	return nil
}

func (e *Extractor) verifyDuration(ctx context.Context, videoPath, destWAV string) error {
	source, err := Inspect(ctx, e.ffprobe, videoPath)
	if err != nil {
		return fmt.Errorf("probe source: %w", err)
	}
	extracted, err := Inspect(ctx, e.ffprobe, destWAV)
	if err != nil {
		return fmt.Errorf("probe extracted audio: %w", err)
	}

	drift := math.Abs(source.DurationSeconds() - extracted.DurationSeconds())
	if drift > durationTolerance {
		return fmt.Errorf("extracted audio drifts %.0fs from source, exceeds %.0fs", drift, durationTolerance)
	}
	e.logger.Debug("audio extracted",
		logging.String("video", videoPath),
		logging.Float64("drift_seconds", drift))
	return nil
}
