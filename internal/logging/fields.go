package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldMovieCode is the standardized structured logging key for canonical AV codes.
	FieldMovieCode = "movie_code"
	// FieldVideo is the standardized structured logging key for video filenames.
	FieldVideo = "video"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags lifecycle events (stage_start, stage_complete, stage_failed).
	FieldEventType = "event_type"
)

type contextKey string

const (
	movieCodeKey contextKey = "movie_code"
	videoKey     contextKey = "video"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithMovieCode returns a context carrying the canonical movie code.
func WithMovieCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, movieCodeKey, code)
}

// WithVideo returns a context carrying the video filename.
func WithVideo(ctx context.Context, filename string) context.Context {
	return context.WithValue(ctx, videoKey, filename)
}

// WithStage returns a context carrying the active stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// WithRequestID returns a context carrying a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if code, ok := stringFromContext(ctx, movieCodeKey); ok {
		fields = append(fields, slog.String(FieldMovieCode, code))
	}
	if video, ok := stringFromContext(ctx, videoKey); ok {
		fields = append(fields, slog.String(FieldVideo, video))
	}
	if stage, ok := stringFromContext(ctx, stageKey); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := stringFromContext(ctx, requestIDKey); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
