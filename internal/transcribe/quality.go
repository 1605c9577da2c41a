package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"yakusub/internal/logging"
	"yakusub/internal/prompts"
	"yakusub/internal/subtitle"
	"yakusub/internal/translate"
)

// Judgement is the JSON verdict schema of the LLM gate.
type Judgement struct {
	Qualified bool   `json:"qualified"`
	Reason    string `json:"reason,omitempty"`
}

// How many cues of the transcript the LLM judge sees.
const judgeSampleSize = 40

// QualityChecker validates a transcription with three gates that must all
// pass: the SRT parses, no inter-cue gap exceeds the configured maximum,
// and a low-cost model judges a sample as plausible speech.
type QualityChecker struct {
	maxGap    time.Duration
	providers []*translate.Provider
	language  string
	logger    *slog.Logger
}

// NewQualityChecker builds the gate set. maxGapSeconds at or below zero
// disables the gap rule; an empty provider list disables the LLM gate.
func NewQualityChecker(maxGapSeconds float64, providers []*translate.Provider, language string, logger *slog.Logger) *QualityChecker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &QualityChecker{
		maxGap:    time.Duration(maxGapSeconds * float64(time.Second)),
		providers: providers,
		language:  language,
		logger:    logging.NewComponentLogger(logger, "transcribe.quality"),
	}
}

// Check runs all gates over the SRT content. A nil return means the
// transcript passed.
func (q *QualityChecker) Check(ctx context.Context, srt string) error {
	cues, err := subtitle.ParseString(srt)
	if err != nil {
		return fmt.Errorf("format gate: %w", err)
	}
	if len(cues) == 0 {
		return fmt.Errorf("format gate: transcript has no cues")
	}

	if q.maxGap > 0 {
		if gap := subtitle.MaxGap(cues); gap > q.maxGap {
			return fmt.Errorf("gap gate: %.1fs silence exceeds %.1fs limit",
				gap.Seconds(), q.maxGap.Seconds())
		}
	}

	if q.language != "" {
		if detected := subtitle.DominantLanguage(cues); detected != "" && detected != q.language {
			// Advisory only; whisper language drift is worth a log line
			// but not a rejection.
			q.logger.Warn("transcript language differs from configured audio language",
				logging.String("detected", detected),
				logging.String("expected", q.language))
		}
	}

	return q.judgeSample(ctx, cues)
}

// judgeSample asks the first available provider for a verdict. An
// unparseable verdict defaults to qualified.
func (q *QualityChecker) judgeSample(ctx context.Context, cues []subtitle.Cue) error {
	if len(q.providers) == 0 {
		return nil
	}
	sample := cues
	if len(sample) > judgeSampleSize {
		start := (len(sample) - judgeSampleSize) / 2
		sample = sample[start : start+judgeSampleSize]
	}

	system, err := prompts.Render("quality_check", prompts.Vars{})
	if err != nil {
		return nil
	}
	messages := []translate.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: subtitle.Render(sample)},
	}

	for _, provider := range q.providers {
		if !provider.Available() {
			continue
		}
		result := provider.Chat(ctx, messages, translate.ChatOptions{JSONFormat: true})
		if !result.Success {
			q.logger.Warn("quality judge call failed",
				logging.String("provider", provider.Name()),
				logging.String("detail", result.ErrorDetail))
			continue
		}
		var verdict Judgement
		if err := translate.DecodeJSON(result.Content, &verdict); err != nil {
			q.logger.Warn("quality judge returned malformed verdict, accepting transcript",
				logging.Error(err))
			return nil
		}
		if !verdict.Qualified {
			return fmt.Errorf("llm gate: %s", verdict.Reason)
		}
		return nil
	}
	return nil
}
