// Package transcribe turns denoised audio into source-language SRT via an
// external whisper-style CLI, gated by a three-stage quality check: format,
// cue-gap rule, and an LLM judge.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"yakusub/internal/logging"
)

// runCommand executes an external binary and returns its combined output.
// Swapped out in tests.
var runCommand = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.CombinedOutput()
}

// WhisperCLI shells out to a whisper-compatible binary that writes SRT.
type WhisperCLI struct {
	binary   string
	model    string
	language string
	logger   *slog.Logger
}

// NewWhisperCLI builds the adapter. Empty fields fall back to the
// conventional binary name and Japanese audio.
func NewWhisperCLI(binary, model, language string, logger *slog.Logger) *WhisperCLI {
	if binary == "" {
		binary = "whisper"
	}
	if language == "" {
		language = "ja"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WhisperCLI{
		binary:   binary,
		model:    model,
		language: language,
		logger:   logging.NewComponentLogger(logger, "transcribe.whisper"),
	}
}

// Transcribe writes the SRT for wavPath to destSRT. The CLI names its own
// output after the input track, so it runs against a scratch directory and
// the result is moved into place.
func (w *WhisperCLI) Transcribe(ctx context.Context, wavPath, destSRT string) error {
	outDir, err := os.MkdirTemp(filepath.Dir(destSRT), "whisper-*")
	if err != nil {
		return fmt.Errorf("create whisper work dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{
		wavPath,
		"--task", "transcribe",
		"--language", w.language,
		"--output_format", "srt",
		"--output_dir", outDir,
	}
	if w.model != "" {
		args = append(args, "--model", w.model)
	}
	if output, err := runCommand(ctx, w.binary, args...); err != nil {
		return fmt.Errorf("whisper: %w: %s", err, strings.TrimSpace(string(output)))
	}

	base := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))
	produced := filepath.Join(outDir, base+".srt")
	data, err := os.ReadFile(produced)
	if err != nil {
		return fmt.Errorf("collect whisper output: %w", err)
	}
	if err := os.WriteFile(destSRT, data, 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}
