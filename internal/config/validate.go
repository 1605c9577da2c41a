package config

import (
	"errors"
	"fmt"
	"strings"
)

// KnownTasks lists the translation task names the orchestrator routes.
var KnownTasks = []string{
	"correct_subtitle",
	"translate_subtitle",
	"translate_title",
	"translate_synopsis",
	"translate_director",
	"translate_studio",
	"translate_category",
	"translate_actor",
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScrapers(); err != nil {
		return err
	}
	if err := c.validateTranslator(); err != nil {
		return err
	}
	if err := c.validateTranscriber(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateScrapers() error {
	for name, scraper := range c.Scrapers {
		if !scraper.Enabled {
			continue
		}
		if strings.TrimSpace(scraper.BaseURL) == "" {
			return fmt.Errorf("scrapers.%s.base_url must be set when enabled", name)
		}
	}
	return nil
}

func (c *Config) validateTranslator() error {
	known := make(map[string]struct{}, len(KnownTasks))
	for _, task := range KnownTasks {
		known[task] = struct{}{}
	}
	for task, taskCfg := range c.Translator.Tasks {
		if _, ok := known[task]; !ok {
			return fmt.Errorf("translator.tasks.%s: unknown task name", task)
		}
		for i, provider := range taskCfg.Providers {
			if err := validateProvider(fmt.Sprintf("translator.tasks.%s.providers[%d]", task, i), provider); err != nil {
				return err
			}
		}
		if taskCfg.Strategy.Size < 0 {
			return fmt.Errorf("translator.tasks.%s.strategy.size must not be negative", task)
		}
	}
	return nil
}

func (c *Config) validateTranscriber() error {
	switch c.Transcriber.Type {
	case "whisper", "whisperx":
	default:
		return fmt.Errorf("transcriber.type: unsupported value %q", c.Transcriber.Type)
	}
	for i, provider := range c.Transcriber.QualityChecker.Providers {
		if err := validateProvider(fmt.Sprintf("transcriber.quality_checker.providers[%d]", i), provider); err != nil {
			return err
		}
	}
	return nil
}

func validateProvider(owner string, provider Provider) error {
	if strings.TrimSpace(provider.Model) == "" {
		return fmt.Errorf("%s: model must be set", owner)
	}
	if strings.TrimSpace(provider.BaseURL) == "" {
		return fmt.Errorf("%s: base_url must be set", owner)
	}
	if strings.TrimSpace(provider.APIKey) == "" {
		return fmt.Errorf("%s: api_key must be set", owner)
	}
	return nil
}
