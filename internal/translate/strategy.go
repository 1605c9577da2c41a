package translate

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"yakusub/internal/prompts"
)

// TaskContext carries everything a strategy needs for one task invocation.
// Terms is an accumulator: subtitle strategies append newly discovered
// vocabulary so later batches and tasks see it.
type TaskContext struct {
	Task        string
	Text        string
	Terms       []TermEntry
	Actors      []string
	Actresses   []string
	Temperature *float64
	Stream      bool
	Timeout     time.Duration
}

// ProcessResult is the outcome of one strategy run against one provider.
type ProcessResult struct {
	Success     bool
	Content     string
	Differences []Difference
	Terms       []TermEntry
	ErrorKind   ErrorKind
	ErrorDetail string
}

// Strategy converts a task context into one or more provider calls.
type Strategy interface {
	Process(ctx context.Context, provider *Provider, tc *TaskContext) ProcessResult
}

func failure(kind ErrorKind, detail string) ProcessResult {
	return ProcessResult{ErrorKind: kind, ErrorDetail: detail}
}

func promptTerms(terms []TermEntry) []prompts.Term {
	out := make([]prompts.Term, 0, len(terms))
	for _, term := range terms {
		out = append(out, prompts.Term{
			Japanese:    term.Japanese,
			Chinese:     term.RecommendedChinese,
			Description: term.Description,
		})
	}
	return out
}

// SimpleMetadataStrategy translates short entity names (director, studio,
// category, actor) with one plain-text provider call. A fresh UUID prefixes
// the user message so per-prompt caches never alias distinct requests.
type SimpleMetadataStrategy struct{}

func (SimpleMetadataStrategy) Process(ctx context.Context, provider *Provider, tc *TaskContext) ProcessResult {
	if !provider.Available() {
		return failure(ErrOther, "provider circuit open")
	}
	system, err := prompts.Render("translate_metadata", prompts.Vars{Kind: tc.Task})
	if err != nil {
		return failure(ErrOther, err.Error())
	}
	messages := []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: uuid.NewString() + "\n" + tc.Text},
	}
	result := provider.Chat(ctx, messages, ChatOptions{
		Temperature: tc.Temperature,
		Stream:      tc.Stream,
		Timeout:     tc.Timeout,
	})
	if !result.Success {
		return failure(result.ErrorKind, result.ErrorDetail)
	}
	content := strings.TrimSpace(result.Content)
	if content == "" {
		return failure(ErrOther, "empty translation")
	}
	return ProcessResult{Success: true, Content: content}
}

// ContextualMetadataStrategy translates titles and synopses, injecting the
// performer roster into the prompt so names survive translation intact.
type ContextualMetadataStrategy struct{}

func (ContextualMetadataStrategy) Process(ctx context.Context, provider *Provider, tc *TaskContext) ProcessResult {
	if !provider.Available() {
		return failure(ErrOther, "provider circuit open")
	}
	template := "translate_synopsis"
	if tc.Task == "translate_title" {
		template = "translate_title"
	}
	system, err := prompts.Render(template, prompts.Vars{
		Kind:      tc.Task,
		Actors:    tc.Actors,
		Actresses: tc.Actresses,
	})
	if err != nil {
		return failure(ErrOther, err.Error())
	}
	messages := []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: uuid.NewString() + "\n" + tc.Text},
	}
	result := provider.Chat(ctx, messages, ChatOptions{
		Temperature: tc.Temperature,
		Stream:      tc.Stream,
		Timeout:     tc.Timeout,
	})
	if !result.Success {
		return failure(result.ErrorKind, result.ErrorDetail)
	}
	content := strings.TrimSpace(result.Content)
	if content == "" {
		return failure(ErrOther, "empty translation")
	}
	return ProcessResult{Success: true, Content: content}
}
