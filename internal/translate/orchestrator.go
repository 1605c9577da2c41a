package translate

import (
	"context"
	"log/slog"
	"time"

	"yakusub/internal/config"
	"yakusub/internal/logging"
)

// Orchestrator routes translation tasks to their configured provider chains.
// Providers are tried strictly in order; the first successful strategy run
// wins. All providers failing yields an unsuccessful result, never an error.
type Orchestrator struct {
	cfg       config.Translator
	providers map[string][]*Provider
	logger    *slog.Logger
}

// NewOrchestrator constructs providers for every configured task. Provider
// instances are per-task, so a circuit tripped for one task does not disable
// the same endpoint elsewhere.
func NewOrchestrator(cfg config.Translator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		cfg:       cfg,
		providers: make(map[string][]*Provider),
		logger:    logging.NewComponentLogger(logger, "orchestrator"),
	}
	for task, taskCfg := range cfg.Tasks {
		for _, providerCfg := range taskCfg.Providers {
			o.providers[task] = append(o.providers[task], NewProvider(providerCfg, logger))
		}
	}
	return o
}

// CorrectSubtitle runs the transcription-correction task over an SRT text.
func (o *Orchestrator) CorrectSubtitle(ctx context.Context, srt string, terms []TermEntry) ProcessResult {
	return o.processTask(ctx, "correct_subtitle", &TaskContext{Text: srt, Terms: terms})
}

// TranslateSubtitle translates a corrected SRT into Chinese.
func (o *Orchestrator) TranslateSubtitle(ctx context.Context, srt string, terms []TermEntry) ProcessResult {
	return o.processTask(ctx, "translate_subtitle", &TaskContext{Text: srt, Terms: terms})
}

// TranslateTitle translates a movie title with the performer roster in
// context.
func (o *Orchestrator) TranslateTitle(ctx context.Context, title string, actors, actresses []string) ProcessResult {
	return o.processTask(ctx, "translate_title", &TaskContext{
		Text: title, Actors: actors, Actresses: actresses,
	})
}

// TranslateSynopsis translates a synopsis with the performer roster in
// context.
func (o *Orchestrator) TranslateSynopsis(ctx context.Context, synopsis string, actors, actresses []string) ProcessResult {
	return o.processTask(ctx, "translate_synopsis", &TaskContext{
		Text: synopsis, Actors: actors, Actresses: actresses,
	})
}

// TranslateMetadata translates a short entity name under the given task
// (translate_director, translate_studio, translate_category,
// translate_actor).
func (o *Orchestrator) TranslateMetadata(ctx context.Context, task, text string) ProcessResult {
	return o.processTask(ctx, task, &TaskContext{Text: text})
}

func (o *Orchestrator) processTask(ctx context.Context, task string, tc *TaskContext) ProcessResult {
	tc.Task = task
	taskCfg, ok := o.cfg.Tasks[task]
	providers := o.providers[task]
	if !ok || len(providers) == 0 {
		return failure(ErrOther, "no providers configured for task "+task)
	}
	tc.Temperature = taskCfg.Temperature
	tc.Timeout = time.Duration(config.DefaultTaskTimeout(task)) * time.Second

	last := failure(ErrOther, "no provider attempted")
	for _, provider := range providers {
		tc.Stream = o.streamEnabled(taskCfg, provider)
		strategy := o.selectStrategy(task, taskCfg)

		result := strategy.Process(ctx, provider, tc)
		if result.Success {
			return result
		}
		o.logger.Warn("provider failed for task",
			logging.String("task", task),
			logging.String("provider", provider.Name()),
			logging.String("kind", string(result.ErrorKind)),
			logging.String("detail", result.ErrorDetail))
		last = result
	}
	return last
}

// selectStrategy maps a task onto its strategy. Subtitle tasks slice by
// default with per-task size overrides; slice: false degrades to a
// single-batch run that still splits on failure.
func (o *Orchestrator) selectStrategy(task string, taskCfg config.Task) Strategy {
	switch task {
	case "correct_subtitle", "translate_subtitle":
		slice := true
		if taskCfg.Strategy.Slice != nil {
			slice = *taskCfg.Strategy.Slice
		}
		size := taskCfg.Strategy.Size
		if size <= 0 {
			size = config.DefaultSliceSize(task)
		}
		return NewSubtitleStrategy(slice, size, o.logger)
	case "translate_title", "translate_synopsis":
		return ContextualMetadataStrategy{}
	default:
		return SimpleMetadataStrategy{}
	}
}

// streamEnabled resolves the streaming flag: per-task override wins, else
// membership of the provider's model in the global streaming set.
func (o *Orchestrator) streamEnabled(taskCfg config.Task, provider *Provider) bool {
	if taskCfg.Stream != nil {
		return *taskCfg.Stream
	}
	for _, model := range o.cfg.StreamingModels {
		if model == provider.Model() {
			return true
		}
	}
	return false
}
