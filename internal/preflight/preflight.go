// Package preflight provides readiness checks for the directories,
// binaries, and provider endpoints a pipeline run depends on.
//
// The run command executes RunAll before starting the engine so a doomed
// run fails in seconds instead of hours into a transcription; the status
// command reuses the individual checks for its health display.
package preflight

import (
	"context"

	"yakusub/internal/config"
	"yakusub/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Passed reports whether every result in the set passed.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// RunAll executes every applicable check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, minFreeBytes))

	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: status.Detail}
		if result.Passed && result.Detail == "" {
			result.Detail = status.Command
		}
		results = append(results, result)
	}

	results = append(results, CheckProviders(ctx, cfg)...)
	return results
}

// CheckSystemDeps evaluates the external binaries the stages shell out to.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Media.FFmpegBinary,
			Description: "Required for audio extraction",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Media.FFprobeBinary,
			Description: "Required for duration verification",
		},
		{
			Name:        "Demucs",
			Command:     cfg.Media.DemucsBinary,
			Description: "Required for vocal isolation",
		},
		{
			Name:        "Whisper",
			Command:     cfg.Transcriber.Binary,
			Description: "Required for transcription",
		},
	}
	return deps.CheckBinaries(requirements)
}
