package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"yakusub/internal/config"
	"yakusub/internal/logging"
	"yakusub/internal/translate"
)

// Transcriber produces an SRT file from a WAV file.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, destSRT string) error
}

// Service wraps a Transcriber with the quality-gated retry loop: each
// attempt is re-transcribed from scratch and must pass every gate.
type Service struct {
	transcriber Transcriber
	checker     *QualityChecker
	maxRetries  int
	logger      *slog.Logger
}

// NewService wires the transcriber and quality checker from config.
func NewService(cfg config.Transcriber, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	var providers []*translate.Provider
	for _, providerCfg := range cfg.QualityChecker.Providers {
		providers = append(providers, translate.NewProvider(providerCfg, logger))
	}
	maxRetries := cfg.QualityChecker.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	return &Service{
		transcriber: NewWhisperCLI(cfg.Binary, cfg.Model, cfg.Language, logger),
		checker:     NewQualityChecker(cfg.QualityChecker.IntervalSeconds, providers, cfg.Language, logger),
		maxRetries:  maxRetries,
		logger:      logging.NewComponentLogger(logger, "transcribe"),
	}
}

// NewServiceWith builds a Service from explicit parts, used in tests.
func NewServiceWith(transcriber Transcriber, checker *QualityChecker, maxRetries int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 2
	}
	return &Service{
		transcriber: transcriber,
		checker:     checker,
		maxRetries:  maxRetries,
		logger:      logging.NewComponentLogger(logger, "transcribe"),
	}
}

// Run transcribes wavPath to destSRT, retrying a fresh transcription when
// any quality gate rejects the result. The last gate error is returned when
// every attempt fails.
func (s *Service) Run(ctx context.Context, wavPath, destSRT string) error {
	attempts := s.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := s.transcriber.Transcribe(ctx, wavPath, destSRT); err != nil {
			lastErr = err
			s.logger.Warn("transcription attempt failed",
				logging.Int("attempt", attempt), logging.Error(err))
			continue
		}

		content, err := os.ReadFile(destSRT)
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		if err := s.checker.Check(ctx, string(content)); err != nil {
			lastErr = err
			s.logger.Warn("transcript rejected by quality gate",
				logging.Int("attempt", attempt), logging.Error(err))
			_ = os.Remove(destSRT)
			continue
		}
		return nil
	}
	return fmt.Errorf("transcription failed after %d attempts: %w", attempts, lastErr)
}
