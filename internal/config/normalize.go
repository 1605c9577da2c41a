package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// envRefPrefix marks a config string value that should be read from the
// environment at load time, e.g. api_key = "ENV_DEEPSEEK_API_KEY".
const envRefPrefix = "ENV_"

func (c *Config) normalize() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(valueOr(c.Paths.OutputDir, defaultOutputDir)); err != nil {
		return err
	}
	if c.Paths.DataDir, err = expandPath(valueOr(c.Paths.DataDir, defaultDataDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(valueOr(c.Paths.LogDir, defaultLogDir)); err != nil {
		return err
	}

	if c.Extractor.NoiseWordsFile == "" {
		c.Extractor.NoiseWordsFile = filepath.Join(c.Paths.DataDir, defaultNoiseWordsFileName)
	} else if c.Extractor.NoiseWordsFile, err = expandPath(c.Extractor.NoiseWordsFile); err != nil {
		return err
	}
	if c.Extractor.KnownPrefixesFile == "" {
		c.Extractor.KnownPrefixesFile = filepath.Join(c.Paths.DataDir, defaultKnownPrefixesFileName)
	} else if c.Extractor.KnownPrefixesFile, err = expandPath(c.Extractor.KnownPrefixesFile); err != nil {
		return err
	}

	if c.Scanner.HashWorkers <= 0 {
		c.Scanner.HashWorkers = defaultHashWorkers
	}
	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Media.DemucsBinary == "" {
		c.Media.DemucsBinary = defaultDemucsBinary
	}
	if c.Media.ExtractTimeoutSeconds <= 0 {
		c.Media.ExtractTimeoutSeconds = defaultExtractTimeoutSecs
	}
	if c.Media.DenoiseTimeoutSeconds <= 0 {
		c.Media.DenoiseTimeoutSeconds = defaultDenoiseTimeoutSecs
	}

	for name, scraper := range c.Scrapers {
		if scraper.MinRequestIntervalSecs <= 0 {
			scraper.MinRequestIntervalSecs = defaultScraperMinInterval
		}
		if scraper.TimeoutSeconds <= 0 {
			scraper.TimeoutSeconds = defaultScraperTimeoutSecs
		}
		c.Scrapers[name] = scraper
	}

	if c.Transcriber.Type == "" {
		c.Transcriber.Type = defaultTranscriberType
	}
	if c.Transcriber.Model == "" {
		c.Transcriber.Model = defaultTranscriberModel
	}
	if c.Transcriber.Language == "" {
		c.Transcriber.Language = defaultTranscriberLanguage
	}
	if c.Transcriber.QualityChecker.IntervalSeconds <= 0 {
		c.Transcriber.QualityChecker.IntervalSeconds = defaultQualityCheckInterval
	}
	if c.Transcriber.QualityChecker.MaxRetries <= 0 {
		c.Transcriber.QualityChecker.MaxRetries = defaultQualityCheckRetries
	}

	if c.Workflow.WatchDebounceSeconds <= 0 {
		c.Workflow.WatchDebounceSeconds = defaultWatchDebounceSeconds
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}

	if err := c.resolveSecrets(); err != nil {
		return err
	}
	return nil
}

// resolveSecrets replaces ENV_ references in provider credentials with the
// value of the named environment variable.
func (c *Config) resolveSecrets() error {
	resolveProviders := func(owner string, providers []Provider) error {
		for i := range providers {
			resolved, err := resolveEnvRef(providers[i].APIKey)
			if err != nil {
				return fmt.Errorf("%s provider %q: %w", owner, providers[i].Model, err)
			}
			providers[i].APIKey = resolved
		}
		return nil
	}

	for task, taskCfg := range c.Translator.Tasks {
		if err := resolveProviders("translator."+task, taskCfg.Providers); err != nil {
			return err
		}
		c.Translator.Tasks[task] = taskCfg
	}
	return resolveProviders("transcriber.quality_checker", c.Transcriber.QualityChecker.Providers)
}

func resolveEnvRef(value string) (string, error) {
	if !strings.HasPrefix(value, envRefPrefix) {
		return value, nil
	}
	name := strings.TrimPrefix(value, envRefPrefix)
	resolved, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return resolved, nil
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
