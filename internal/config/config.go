package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
}

// Extractor contains configuration for the AV code extractor.
type Extractor struct {
	NoiseWordsFile    string `toml:"noise_words_file"`
	KnownPrefixesFile string `toml:"known_prefixes_file"`
}

// Scanner contains configuration for filesystem scanning.
type Scanner struct {
	HashWorkers int `toml:"hash_workers"`
}

// Scraper contains per-site scraper configuration.
type Scraper struct {
	Enabled                bool    `toml:"enabled"`
	BaseURL                string  `toml:"base_url"`
	MinRequestIntervalSecs float64 `toml:"min_request_interval_seconds"`
	TimeoutSeconds         int     `toml:"timeout_seconds"`
}

// Media contains external media tool configuration.
type Media struct {
	FFmpegBinary          string `toml:"ffmpeg_binary"`
	FFprobeBinary         string `toml:"ffprobe_binary"`
	DemucsBinary          string `toml:"demucs_binary"`
	ExtractTimeoutSeconds int    `toml:"extract_timeout_seconds"`
	DenoiseTimeoutSeconds int    `toml:"denoise_timeout_seconds"`
}

// Provider describes one LLM chat endpoint.
type Provider struct {
	Service        string `toml:"service"`
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout"`
}

// Strategy contains per-task strategy tuning.
type Strategy struct {
	Slice *bool `toml:"slice"`
	Size  int   `toml:"size"`
}

// Task describes how one translation task is routed.
type Task struct {
	Providers   []Provider `toml:"providers"`
	Stream      *bool      `toml:"stream"`
	Temperature *float64   `toml:"temperature"`
	Strategy    Strategy   `toml:"strategy"`
}

// Translator contains the translation orchestrator configuration.
type Translator struct {
	StreamingModels []string        `toml:"streaming_models"`
	Tasks           map[string]Task `toml:"tasks"`
}

// QualityChecker contains the transcription quality gate configuration.
type QualityChecker struct {
	Providers       []Provider `toml:"providers"`
	IntervalSeconds float64    `toml:"interval"`
	MaxRetries      int        `toml:"max_retries"`
}

// Transcriber contains speech-to-text configuration.
type Transcriber struct {
	Type           string         `toml:"type"`
	Binary         string         `toml:"binary"`
	Model          string         `toml:"model"`
	Language       string         `toml:"language"`
	QualityChecker QualityChecker `toml:"quality_checker"`
}

// Workflow contains pipeline timing configuration.
type Workflow struct {
	WatchDebounceSeconds int `toml:"watch_debounce_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for yakusub.
type Config struct {
	Paths       Paths              `toml:"paths"`
	Scanner     Scanner            `toml:"scanner"`
	Extractor   Extractor          `toml:"extractor"`
	Scrapers    map[string]Scraper `toml:"scrapers"`
	Media       Media              `toml:"media"`
	Transcriber Transcriber        `toml:"transcriber"`
	Translator  Translator         `toml:"translator"`
	Workflow    Workflow           `toml:"workflow"`
	Logging     Logging            `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/yakusub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and every ENV_ secret reference resolved.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("yakusub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// TaskConfig returns the configuration for a translation task, or an empty
// Task when the task is not configured.
func (c *Config) TaskConfig(task string) (Task, bool) {
	if c.Translator.Tasks == nil {
		return Task{}, false
	}
	cfg, ok := c.Translator.Tasks[strings.ToLower(strings.TrimSpace(task))]
	return cfg, ok
}
