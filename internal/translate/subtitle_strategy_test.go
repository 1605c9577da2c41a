package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yakusub/internal/subtitle"
)

func buildSRT(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d\n00:%02d:%02d,000 --> 00:%02d:%02d,500\nセリフ%d\n\n",
			i, i/60, i%60, i/60, i%60, i)
	}
	return b.String()
}

// echoHandler answers every batch by wrapping the incoming SRT in a
// successful payload, optionally failing batches matched by failWhen.
func echoHandler(t *testing.T, failWhen func(cueCount, call int) string) http.HandlerFunc {
	var calls int
	return func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		userSRT := req.Messages[len(req.Messages)-1].Content
		cues, err := subtitle.ParseString(userSRT)
		require.NoError(t, err)

		if failWhen != nil {
			if reason := failWhen(len(cues), calls); reason != "" {
				fmt.Fprintf(w, `{"choices":[{"message":{"content":""},"finish_reason":%q}]}`, reason)
				return
			}
		}
		payload, _ := json.Marshal(SubtitlePayload{Content: userSRT, Success: true})
		fmt.Fprint(w, completionBody(string(payload)))
	}
}

func TestSubtitleStrategySingleBatch(t *testing.T) {
	provider := newTestProvider(t, echoHandler(t, nil))
	strategy := NewSubtitleStrategy(false, 0, nil)

	tc := &TaskContext{Task: "correct_subtitle", Text: buildSRT(5), Timeout: time.Minute}
	result := strategy.Process(context.Background(), provider, tc)
	require.True(t, result.Success)

	cues, err := subtitle.ParseString(result.Content)
	require.NoError(t, err)
	assert.Len(t, cues, 5)
}

func TestSubtitleStrategyLengthLimitSplitsIntoThirds(t *testing.T) {
	var batchSizes []int
	handler := echoHandler(t, func(cueCount, _ int) string {
		batchSizes = append(batchSizes, cueCount)
		if cueCount == 30 {
			return "length"
		}
		return ""
	})
	provider := newTestProvider(t, handler)
	strategy := NewSubtitleStrategy(true, 30, nil)

	tc := &TaskContext{Task: "translate_subtitle", Text: buildSRT(30)}
	result := strategy.Process(context.Background(), provider, tc)
	require.True(t, result.Success)

	assert.Equal(t, []int{30, 10, 10, 10}, batchSizes)

	cues, err := subtitle.ParseString(result.Content)
	require.NoError(t, err)
	require.Len(t, cues, 30)
	for i, cue := range cues {
		assert.Equal(t, i+1, cue.Index)
	}
}

func TestSubtitleStrategySmallFailureSkippedNotSplit(t *testing.T) {
	handler := echoHandler(t, func(cueCount, _ int) string {
		if cueCount == 5 {
			return "content_filter"
		}
		return ""
	})
	provider := newTestProvider(t, handler)
	// 15 cues sliced at 10 gives two batches: 8 and 7... use sizes that
	// produce one failing batch under the split threshold.
	strategy := NewSubtitleStrategy(true, 5, nil)

	tc := &TaskContext{Task: "correct_subtitle", Text: buildSRT(10)}
	result := strategy.Process(context.Background(), provider, tc)

	// Both batches are 5 cues and both fail; nothing is produced.
	require.False(t, result.Success)
	assert.Equal(t, ErrOther, result.ErrorKind)
}

func TestSubtitleStrategyPartialSuccess(t *testing.T) {
	var calls int
	handler := echoHandler(t, func(cueCount, _ int) string {
		calls++
		if calls == 1 {
			return "content_filter"
		}
		return ""
	})
	provider := newTestProvider(t, handler)
	strategy := NewSubtitleStrategy(true, 5, nil)

	tc := &TaskContext{Task: "correct_subtitle", Text: buildSRT(10)}
	result := strategy.Process(context.Background(), provider, tc)

	require.True(t, result.Success, "one failed batch must not sink the run")
	cues, err := subtitle.ParseString(result.Content)
	require.NoError(t, err)
	require.Len(t, cues, 5)
	// Renumbered from 1 despite the missing first batch.
	assert.Equal(t, 1, cues[0].Index)
}

func TestSubtitleStrategyTermsAccumulateAcrossBatches(t *testing.T) {
	var sawTermInPrompt bool
	var calls int
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		system := req.Messages[0].Content
		userSRT := req.Messages[len(req.Messages)-1].Content
		if calls > 1 && strings.Contains(system, "先輩 => 前辈") {
			sawTermInPrompt = true
		}
		payload, _ := json.Marshal(SubtitlePayload{
			Content: userSRT,
			Success: true,
			Terms:   []TermEntry{{Japanese: "先輩", RecommendedChinese: "前辈"}},
		})
		fmt.Fprint(w, completionBody(string(payload)))
	}
	provider := newTestProvider(t, handler)
	strategy := NewSubtitleStrategy(true, 5, nil)

	tc := &TaskContext{Task: "correct_subtitle", Text: buildSRT(10)}
	result := strategy.Process(context.Background(), provider, tc)
	require.True(t, result.Success)
	assert.True(t, sawTermInPrompt, "terms from batch one must reach batch two's prompt")
	// The accumulator deduplicates on the Japanese key.
	require.Len(t, tc.Terms, 1)
}

func TestSubtitleStrategyProviderFatalAborts(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	strategy := NewSubtitleStrategy(true, 5, nil)

	tc := &TaskContext{Task: "correct_subtitle", Text: buildSRT(10)}
	result := strategy.Process(context.Background(), provider, tc)
	require.False(t, result.Success)
	assert.Equal(t, ErrAuthentication, result.ErrorKind)
	assert.False(t, provider.Available())

	// Fast-fail path once the circuit is open.
	again := strategy.Process(context.Background(), provider, tc)
	require.False(t, again.Success)
}

func TestSubtitleStrategyEmptyInput(t *testing.T) {
	provider := newTestProvider(t, echoHandler(t, nil))
	strategy := NewSubtitleStrategy(true, 5, nil)

	result := strategy.Process(context.Background(), provider, &TaskContext{Task: "correct_subtitle", Text: ""})
	require.False(t, result.Success)
}

func TestSplitNodeRelinksList(t *testing.T) {
	cues := make([]subtitle.Cue, 12)
	for i := range cues {
		cues[i].Index = i + 1
	}
	arena := []node{
		{cues: cues[:6], next: 1},
		{cues: cues[6:], next: nilNode},
	}

	first := splitNode(&arena, 0)
	assert.Equal(t, 0, first)

	var order []int
	var total int
	for current := first; current != nilNode; current = arena[current].next {
		order = append(order, current)
		total += len(arena[current].cues)
	}
	assert.Equal(t, []int{0, 2, 3, 1}, order)
	assert.Equal(t, 12, total)
}
