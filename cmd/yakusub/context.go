package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"yakusub/internal/config"
	"yakusub/internal/logging"
)

var timeNow = time.Now

// commandContext lazily loads configuration once per invocation. A .env file
// in the working directory is loaded first so ENV_ secret references in the
// config resolve.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		_ = godotenv.Load()

		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// newLogger builds the run logger with the daily file sink and sweeps
// expired log files.
func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		LogDir: cfg.Paths.LogDir,
	})
	if err != nil {
		return nil, err
	}
	logging.SweepRetention(cfg.Paths.LogDir, cfg.Logging.RetentionDays, timeNow(), logger)
	return logger, nil
}
