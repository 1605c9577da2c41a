package media

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yakusub/internal/logging"
)

// Denoiser separates the vocal track from an extracted WAV using demucs,
// producing the cleaner input the transcriber works best with.
type Denoiser struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewDenoiser builds a Denoiser around the demucs CLI.
func NewDenoiser(binary string, timeout time.Duration, logger *slog.Logger) *Denoiser {
	if binary == "" {
		binary = "demucs"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Denoiser{
		binary:  binary,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "media.denoise"),
	}
}

// Denoise writes the vocals-only track of sourceWAV to destWAV. Demucs
// chooses its own nested output layout, so the separated file is located
// by name and moved into place afterwards.
func (d *Denoiser) Denoise(ctx context.Context, sourceWAV, destWAV string) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	workDir, err := os.MkdirTemp(filepath.Dir(destWAV), "demucs-*")
	if err != nil {
		return fmt.Errorf("create demucs work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	args := []string{
		"--two-stems", "vocals",
		"-o", workDir,
		sourceWAV,
	}
	if output, err := runCommand(ctx, d.binary, args...); err != nil {
		return fmt.Errorf("demucs: %w: %s", err, strings.TrimSpace(string(output)))
	}

	vocals, err := findVocals(workDir)
	if err != nil {
		return err
	}
	if err := os.Rename(vocals, destWAV); err != nil {
		// Rename can fail across filesystems; fall back to copy.
		data, readErr := os.ReadFile(vocals)
		if readErr != nil {
			return fmt.Errorf("collect vocals track: %w", readErr)
		}
		if writeErr := os.WriteFile(destWAV, data, 0o644); writeErr != nil {
			return fmt.Errorf("write vocals track: %w", writeErr)
		}
	}
	d.logger.Debug("vocals separated", logging.String("source", sourceWAV))
	return nil
}

func findVocals(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && entry.Name() == "vocals.wav" {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan demucs output: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("demucs produced no vocals track under %s", root)
	}
	return found, nil
}
