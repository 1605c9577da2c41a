package config

const (
	defaultOutputDir             = "~/.local/share/yakusub/output"
	defaultDataDir               = "~/.local/share/yakusub/data"
	defaultLogDir                = "~/.local/share/yakusub/logs"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultHashWorkers           = 4
	defaultScraperMinInterval    = 2.0
	defaultScraperTimeoutSecs    = 20
	defaultExtractTimeoutSecs    = 3600
	defaultDenoiseTimeoutSecs    = 7200
	defaultTranscriberType       = "whisper"
	defaultTranscriberModel      = "large-v3"
	defaultTranscriberLanguage   = "ja"
	defaultQualityCheckInterval  = 30.0
	defaultQualityCheckRetries   = 3
	defaultWatchDebounceSeconds  = 10
	defaultSubtitleTaskTimeout   = 500
	defaultMetadataTaskTimeout   = 60
	defaultCorrectSliceSize      = 500
	defaultTranslateSliceSize    = 550
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultDemucsBinary          = "demucs"
	defaultNoiseWordsFileName    = "noise_words.txt"
	defaultKnownPrefixesFileName = "known_prefixes.txt"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
		},
		Scanner: Scanner{
			HashWorkers: defaultHashWorkers,
		},
		Media: Media{
			FFmpegBinary:          defaultFFmpegBinary,
			FFprobeBinary:         defaultFFprobeBinary,
			DemucsBinary:          defaultDemucsBinary,
			ExtractTimeoutSeconds: defaultExtractTimeoutSecs,
			DenoiseTimeoutSeconds: defaultDenoiseTimeoutSecs,
		},
		Transcriber: Transcriber{
			Type:     defaultTranscriberType,
			Model:    defaultTranscriberModel,
			Language: defaultTranscriberLanguage,
			QualityChecker: QualityChecker{
				IntervalSeconds: defaultQualityCheckInterval,
				MaxRetries:      defaultQualityCheckRetries,
			},
		},
		Workflow: Workflow{
			WatchDebounceSeconds: defaultWatchDebounceSeconds,
		},
		Logging: Logging{
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// DefaultSliceSize returns the default adaptive slice size for a subtitle task.
func DefaultSliceSize(task string) int {
	if task == "translate_subtitle" {
		return defaultTranslateSliceSize
	}
	return defaultCorrectSliceSize
}

// DefaultTaskTimeout returns the default per-call timeout in seconds for a task.
func DefaultTaskTimeout(task string) int {
	switch task {
	case "correct_subtitle", "translate_subtitle":
		return defaultSubtitleTaskTimeout
	default:
		return defaultMetadataTaskTimeout
	}
}
