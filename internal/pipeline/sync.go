package pipeline

import (
	"log/slog"
	"os"

	"yakusub/internal/logging"
	"yakusub/internal/manifest"
)

// syncVideoStatus reconciles a video's persisted stage rows with the files
// on disk. When the terminal artifact is present and recorded as a success,
// nothing is touched even if intermediates were deleted. Otherwise every
// stage from the first broken one onward resets to pending and loses its
// by-product file, so the run restarts from the earliest unusable point.
func (e *Engine) syncVideoStatus(video *manifest.Video, logger *slog.Logger) {
	if terminal, ok := video.StageRowFor(manifest.TerminalStage); ok &&
		terminal.Status == manifest.StatusSuccess && fileExists(terminal.ByProduct) {
		return
	}

	breakIndex := -1
	for i, stage := range manifest.VideoStageOrder {
		row, ok := video.StageRowFor(stage)
		if !ok {
			breakIndex = i
			break
		}
		if row.Status != manifest.StatusSuccess {
			breakIndex = i
			break
		}
		if !fileExists(row.ByProduct) {
			breakIndex = i
			break
		}
	}
	if breakIndex < 0 {
		return
	}

	changed := false
	for _, stage := range manifest.VideoStageOrder[breakIndex:] {
		row, ok := video.StageRowFor(stage)
		if ok && row.ByProduct != "" {
			if err := os.Remove(row.ByProduct); err != nil && !os.IsNotExist(err) {
				logger.Warn("could not remove stale by-product",
					logging.String("path", row.ByProduct), logging.Error(err))
			}
		}
		if !ok || row.Status != manifest.StatusPending || row.ByProduct != "" {
			changed = true
		}
		video.SetStage(stage, manifest.StatusPending, "")
	}
	if changed {
		logger.Info("reset stages from break point",
			logging.String(logging.FieldVideo, video.Filename),
			logging.String(logging.FieldStage, manifest.VideoStageOrder[breakIndex]))
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
