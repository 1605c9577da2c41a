// Package pipeline sequences per-movie and per-video stages, reconciles
// persisted stage state with on-disk artifacts, and drives the adapters
// that produce the bilingual subtitle asset.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"yakusub/internal/avcode"
	"yakusub/internal/config"
	"yakusub/internal/logging"
	"yakusub/internal/manifest"
	"yakusub/internal/media"
	"yakusub/internal/scanner"
	"yakusub/internal/scraper"
	"yakusub/internal/transcribe"
	"yakusub/internal/translate"
)

// AudioExtractor converts a video file into a mono 16 kHz WAV.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, destWAV string) error
}

// VocalIsolator separates the vocal track from a WAV.
type VocalIsolator interface {
	Denoise(ctx context.Context, sourceWAV, destWAV string) error
}

// SpeechRecognizer produces a quality-gated SRT from a WAV.
type SpeechRecognizer interface {
	Run(ctx context.Context, wavPath, destSRT string) error
}

// Translator is the task-typed translation facade the stages call.
type Translator interface {
	CorrectSubtitle(ctx context.Context, srt string, terms []translate.TermEntry) translate.ProcessResult
	TranslateSubtitle(ctx context.Context, srt string, terms []translate.TermEntry) translate.ProcessResult
	TranslateTitle(ctx context.Context, title string, actors, actresses []string) translate.ProcessResult
	TranslateSynopsis(ctx context.Context, synopsis string, actors, actresses []string) translate.ProcessResult
	TranslateMetadata(ctx context.Context, task, text string) translate.ProcessResult
}

// Engine runs the staged pipeline over a library root.
type Engine struct {
	outputDir  string
	store      *manifest.Store
	scanner    *scanner.Scanner
	sites      []scraper.Site
	audio      AudioExtractor
	vocals     VocalIsolator
	recognizer SpeechRecognizer
	translator Translator
	logger     *slog.Logger
}

// New wires an Engine from configuration. The scrapers double as online
// code validators for the extractor.
func New(cfg *config.Config, store *manifest.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}

	var sites []scraper.Site
	var validators []avcode.Validator
	for name, siteCfg := range cfg.Scrapers {
		if !siteCfg.Enabled {
			continue
		}
		switch name {
		case "javbus":
			site := scraper.NewJavBus(siteCfg.BaseURL,
				time.Duration(siteCfg.MinRequestIntervalSecs*float64(time.Second)),
				time.Duration(siteCfg.TimeoutSeconds)*time.Second, logger)
			sites = append(sites, site)
			validators = append(validators, site)
		default:
			logger.Warn("unknown scraper in config", logging.String("site", name))
		}
	}

	extractor := avcode.New(cfg.Extractor.NoiseWordsFile, cfg.Extractor.KnownPrefixesFile, validators, logger)

	return &Engine{
		outputDir: cfg.Paths.OutputDir,
		store:     store,
		scanner:   scanner.New(extractor, cfg.Scanner.HashWorkers, logger),
		sites:     sites,
		audio: media.NewExtractor(cfg.Media.FFmpegBinary, cfg.Media.FFprobeBinary,
			time.Duration(cfg.Media.ExtractTimeoutSeconds)*time.Second, logger),
		vocals: media.NewDenoiser(cfg.Media.DemucsBinary,
			time.Duration(cfg.Media.DenoiseTimeoutSeconds)*time.Second, logger),
		recognizer: transcribe.NewService(cfg.Transcriber, logger),
		translator: translate.NewOrchestrator(cfg.Translator, logger),
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run scans root and processes every movie in the manifest. Each movie runs
// inside its own transaction; one movie failing never stops the others.
// Every log line of a run carries the same correlation id.
func (e *Engine) Run(ctx context.Context, root string) error {
	ctx = logging.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, e.logger)

	touched, err := e.scanner.Scan(ctx, e.store, root)
	if err != nil {
		return fmt.Errorf("scan %s: %w", root, err)
	}
	logger.Info("scan touched movies", logging.Int("count", len(touched)))

	ids, err := e.movieIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.processMovie(ctx, id); err != nil {
			logger.Error("movie processing failed",
				logging.Int64("movie_id", id), logging.Error(err))
		}
	}
	return nil
}

func (e *Engine) movieIDs(ctx context.Context) ([]int64, error) {
	session, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = session.Rollback() }()
	return session.MovieIDs(ctx)
}

// processMovie opens one transaction, reconciles stage state against disk,
// and runs the movie and video stages in order.
func (e *Engine) processMovie(ctx context.Context, id int64) error {
	session, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = session.Rollback() }()

	movie, err := session.LoadMovie(ctx, id)
	if err != nil {
		return err
	}
	ctx = logging.WithMovieCode(ctx, movie.Code())
	logger := logging.WithContext(ctx, e.logger)

	glossary, err := session.GlossaryTerms(ctx)
	if err != nil {
		return err
	}

	run := &movieRun{engine: e, session: session, movie: movie, logger: logger, glossary: glossary}

	for _, video := range movie.Videos {
		e.syncVideoStatus(video, logger)
		if err := session.SaveVideoStages(ctx, video); err != nil {
			return err
		}
	}

	if err := run.runMovieStages(ctx); err != nil {
		return err
	}
	for _, video := range movie.Videos {
		if err := run.runVideoStages(ctx, video); err != nil {
			return err
		}
	}

	if err := session.SaveMovie(ctx, movie); err != nil {
		return err
	}
	return session.Commit()
}

// movieRun carries the per-transaction state stages operate on.
type movieRun struct {
	engine   *Engine
	session  *manifest.Session
	movie    *manifest.Movie
	logger   *slog.Logger
	glossary []manifest.Term
}

func (r *movieRun) runMovieStages(ctx context.Context) error {
	for _, stage := range manifest.MovieStageOrder {
		row, ok := r.movie.StageRowFor(stage)
		if ok && (row.Status == manifest.StatusSuccess || row.Status == manifest.StatusSkipped) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r.executeMovieStage(ctx, stage)
	}
	return nil
}

func (r *movieRun) executeMovieStage(ctx context.Context, stage string) {
	ctx = logging.WithStage(ctx, stage)
	logger := logging.WithContext(ctx, r.engine.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	var err error
	switch stage {
	case manifest.StageScrape:
		err = r.scrape(ctx)
	default:
		err = fmt.Errorf("unknown movie stage %q", stage)
	}
	if err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failed"), logging.Error(err))
		r.movie.SetStage(stage, manifest.StatusFailed)
		return
	}
	if row, ok := r.movie.StageRowFor(stage); ok && row.Status == manifest.StatusSkipped {
		logger.Info("stage skipped")
		return
	}
	logger.Info("stage finished", logging.String(logging.FieldEventType, "stage_complete"))
	r.movie.SetStage(stage, manifest.StatusSuccess)
}

// runVideoStages walks the fixed stage order. SUCCESS and SKIPPED rows are
// passed over; a FAILED row aborts the remainder of the video.
func (r *movieRun) runVideoStages(ctx context.Context, video *manifest.Video) error {
	ctx = logging.WithVideo(ctx, video.Filename)
	logger := logging.WithContext(ctx, r.engine.logger)

	for _, stage := range manifest.VideoStageOrder {
		row, _ := video.StageRowFor(stage)
		status := manifest.StatusPending
		if row != nil {
			status = row.Status
		}
		switch status {
		case manifest.StatusSuccess, manifest.StatusSkipped:
			continue
		case manifest.StatusFailed:
			logger.Warn("aborting video after failed stage",
				logging.String(logging.FieldStage, stage))
			return r.session.SaveVideoStages(ctx, video)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.executeVideoStage(ctx, video, stage) {
			logger.Warn("aborting video after failed stage",
				logging.String(logging.FieldStage, stage))
			break
		}
	}
	return r.session.SaveVideoStages(ctx, video)
}

func (r *movieRun) executeVideoStage(ctx context.Context, video *manifest.Video, stage string) bool {
	ctx = logging.WithStage(ctx, stage)
	logger := logging.WithContext(ctx, r.engine.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	byProduct, err := r.dispatch(ctx, video, stage)
	if err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failed"), logging.Error(err))
		video.SetStage(stage, manifest.StatusFailed, byProduct)
		return false
	}
	logger.Info("stage finished",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("by_product", byProduct))
	video.SetStage(stage, manifest.StatusSuccess, byProduct)
	return true
}

func (r *movieRun) dispatch(ctx context.Context, video *manifest.Video, stage string) (string, error) {
	switch stage {
	case manifest.StageExtract:
		return r.extract(ctx, video)
	case manifest.StageDenoise:
		return r.denoise(ctx, video)
	case manifest.StageTranscribe:
		return r.transcribe(ctx, video)
	case manifest.StageCorrect:
		return r.correct(ctx, video)
	case manifest.StageTranslate:
		return r.translate(ctx, video)
	case manifest.StageBilingual:
		return r.bilingual(ctx, video)
	}
	return "", fmt.Errorf("unknown video stage %q", stage)
}
