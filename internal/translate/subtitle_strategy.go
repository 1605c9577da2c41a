package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"yakusub/internal/logging"
	"yakusub/internal/prompts"
	"yakusub/internal/subtitle"
)

// Minimum cue count for a failed batch to be worth splitting; smaller
// failures are recorded and skipped.
const splitThreshold = 10

// SubtitleStrategy is the best-effort subtitle processor shared by the
// correct and translate tasks. Input cues are pre-split into balanced
// batches; each batch is one provider call. A failed batch of at least ten
// cues is split into thirds and retried in place, so one stubborn span
// cannot sink the whole file.
type SubtitleStrategy struct {
	slice     bool
	sliceSize int
	logger    *slog.Logger
}

// NewSubtitleStrategy builds the strategy. With slice disabled the whole
// file is one batch; it still splits on failure.
func NewSubtitleStrategy(slice bool, sliceSize int, logger *slog.Logger) *SubtitleStrategy {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SubtitleStrategy{
		slice:     slice,
		sliceSize: sliceSize,
		logger:    logging.NewComponentLogger(logger, "strategy.subtitle"),
	}
}

// node is one batch in the traversal list. Links are arena indices, not
// pointers; splitting replaces one index with three rewired ones.
type node struct {
	cues      []subtitle.Cue
	next      int
	processed bool
	ok        bool
	payload   SubtitlePayload
}

const nilNode = -1

func (s *SubtitleStrategy) Process(ctx context.Context, provider *Provider, tc *TaskContext) ProcessResult {
	if !provider.Available() {
		return failure(ErrOther, "provider circuit open")
	}

	cues, err := subtitle.ParseString(tc.Text)
	if err != nil {
		return failure(ErrOther, fmt.Sprintf("parse input srt: %v", err))
	}
	if len(cues) == 0 {
		return failure(ErrOther, "input srt has no cues")
	}

	var batches [][]subtitle.Cue
	if s.slice {
		batches = subtitle.SplitBalanced(cues, s.sliceSize)
	} else {
		batches = [][]subtitle.Cue{cues}
	}

	arena := make([]node, 0, len(batches)+4)
	for i, batch := range batches {
		next := i + 1
		if next == len(batches) {
			next = nilNode
		}
		arena = append(arena, node{cues: batch, next: next})
	}
	head := 0

	current := head
	for current != nilNode {
		if arena[current].processed {
			current = arena[current].next
			continue
		}

		payload, kind, detail := s.processBatch(ctx, provider, tc, arena[current].cues)
		if kind == "" {
			arena[current].processed = true
			arena[current].ok = true
			arena[current].payload = payload
			mergeTerms(tc, payload.Terms)
			current = arena[current].next
			continue
		}

		if kind.ProviderFatal() {
			return failure(kind, detail)
		}

		if len(arena[current].cues) >= splitThreshold {
			s.logger.Debug("splitting failed batch",
				logging.Int("cues", len(arena[current].cues)),
				logging.String("kind", string(kind)))
			current = splitNode(&arena, current)
			continue
		}

		s.logger.Warn("batch failed below split threshold, skipping",
			logging.Int("cues", len(arena[current].cues)),
			logging.String("kind", string(kind)),
			logging.String("detail", detail))
		arena[current].processed = true
		current = arena[current].next
	}

	return aggregate(arena, head)
}

func (s *SubtitleStrategy) processBatch(ctx context.Context, provider *Provider, tc *TaskContext, cues []subtitle.Cue) (SubtitlePayload, ErrorKind, string) {
	template := "translate_subtitle"
	if tc.Task == "correct_subtitle" {
		template = "correct_subtitle"
	}
	system, err := prompts.Render(template, prompts.Vars{Terms: promptTerms(tc.Terms)})
	if err != nil {
		return SubtitlePayload{}, ErrOther, err.Error()
	}

	messages := []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: subtitle.Render(cues)},
	}
	result := provider.Chat(ctx, messages, ChatOptions{
		Temperature: tc.Temperature,
		Stream:      tc.Stream,
		JSONFormat:  true,
		Timeout:     tc.Timeout,
	})
	if !result.Success {
		return SubtitlePayload{}, result.ErrorKind, result.ErrorDetail
	}

	var payload SubtitlePayload
	if err := DecodeJSON(result.Content, &payload); err != nil {
		return SubtitlePayload{}, ErrOther, err.Error()
	}
	if !payload.Success || strings.TrimSpace(payload.Content) == "" {
		detail := payload.Error
		if detail == "" {
			detail = "model reported failure"
		}
		return SubtitlePayload{}, ErrOther, detail
	}
	return payload, "", ""
}

// splitNode replaces arena[index] with three nodes covering thirds of its
// cues and returns the index of the first third.
func splitNode(arena *[]node, index int) int {
	parts := subtitle.SplitThirds((*arena)[index].cues)
	tail := (*arena)[index].next

	first := index
	(*arena)[first].cues = parts[0]
	prev := first
	for _, part := range parts[1:] {
		*arena = append(*arena, node{cues: part, next: nilNode})
		idx := len(*arena) - 1
		(*arena)[prev].next = idx
		prev = idx
	}
	(*arena)[prev].next = tail
	return first
}

func mergeTerms(tc *TaskContext, newTerms []TermEntry) {
	for _, term := range newTerms {
		japanese := strings.TrimSpace(term.Japanese)
		if japanese == "" {
			continue
		}
		exists := false
		for _, existing := range tc.Terms {
			if existing.Japanese == japanese {
				exists = true
				break
			}
		}
		if !exists {
			term.Japanese = japanese
			tc.Terms = append(tc.Terms, term)
		}
	}
}

// aggregate walks the final list, concatenates successful batch contents,
// and renumbers the combined cues from 1.
func aggregate(arena []node, head int) ProcessResult {
	result := ProcessResult{}
	var combined []subtitle.Cue

	for current := head; current != nilNode; current = arena[current].next {
		if !arena[current].ok {
			continue
		}
		payload := arena[current].payload
		cues, err := subtitle.ParseString(payload.Content)
		if err != nil || len(cues) == 0 {
			continue
		}
		combined = append(combined, cues...)
		result.Differences = append(result.Differences, payload.Differences...)
		result.Terms = append(result.Terms, payload.Terms...)
	}

	if len(combined) == 0 {
		result.ErrorKind = ErrOther
		result.ErrorDetail = "no batch produced content"
		return result
	}
	result.Success = true
	result.Content = subtitle.Render(subtitle.Renumber(combined))
	return result
}
