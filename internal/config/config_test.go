package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Scanner.HashWorkers != defaultHashWorkers {
		t.Fatalf("hash workers = %d, want %d", cfg.Scanner.HashWorkers, defaultHashWorkers)
	}
	if cfg.Transcriber.QualityChecker.IntervalSeconds != defaultQualityCheckInterval {
		t.Fatalf("quality interval = %v", cfg.Transcriber.QualityChecker.IntervalSeconds)
	}
	if !filepath.IsAbs(cfg.Paths.OutputDir) {
		t.Fatalf("output dir not expanded: %s", cfg.Paths.OutputDir)
	}
	if filepath.Dir(cfg.Extractor.KnownPrefixesFile) != cfg.Paths.DataDir {
		t.Fatalf("known prefixes file %q not under data dir %q", cfg.Extractor.KnownPrefixesFile, cfg.Paths.DataDir)
	}
}

func TestLoadResolvesEnvReferences(t *testing.T) {
	t.Setenv("YAKUSUB_TEST_KEY", "secret-value")
	path := writeConfig(t, `
[translator.tasks.translate_title]
providers = [
    { service = "deepseek", model = "deepseek-chat", api_key = "ENV_YAKUSUB_TEST_KEY", base_url = "https://api.deepseek.com/v1", timeout = 60 },
]
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	task, ok := cfg.TaskConfig("translate_title")
	if !ok {
		t.Fatal("task translate_title not found")
	}
	if got := task.Providers[0].APIKey; got != "secret-value" {
		t.Fatalf("api key = %q, want resolved secret", got)
	}
}

func TestLoadFailsOnMissingEnvReference(t *testing.T) {
	path := writeConfig(t, `
[translator.tasks.translate_title]
providers = [
    { service = "deepseek", model = "deepseek-chat", api_key = "ENV_YAKUSUB_DOES_NOT_EXIST", base_url = "https://api.deepseek.com/v1", timeout = 60 },
]
`)
	_, _, _, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unresolved env reference")
	}
	if !strings.Contains(err.Error(), "YAKUSUB_DOES_NOT_EXIST") {
		t.Fatalf("error should name the variable: %v", err)
	}
}

func TestLoadRejectsUnknownTask(t *testing.T) {
	path := writeConfig(t, `
[translator.tasks.translate_everything]
providers = []
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown task name")
	}
}

func TestLoadRejectsEnabledScraperWithoutBaseURL(t *testing.T) {
	path := writeConfig(t, `
[scrapers.javbus]
enabled = true
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for enabled scraper without base_url")
	}
}

func TestScraperDefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
[scrapers.javbus]
enabled = true
base_url = "https://example.test"
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	scraper := cfg.Scrapers["javbus"]
	if scraper.MinRequestIntervalSecs != defaultScraperMinInterval {
		t.Fatalf("min interval = %v, want %v", scraper.MinRequestIntervalSecs, defaultScraperMinInterval)
	}
	if scraper.TimeoutSeconds != defaultScraperTimeoutSecs {
		t.Fatalf("timeout = %d, want %d", scraper.TimeoutSeconds, defaultScraperTimeoutSecs)
	}
}

func TestDefaultSliceSize(t *testing.T) {
	if got := DefaultSliceSize("correct_subtitle"); got != defaultCorrectSliceSize {
		t.Fatalf("correct slice size = %d", got)
	}
	if got := DefaultSliceSize("translate_subtitle"); got != defaultTranslateSliceSize {
		t.Fatalf("translate slice size = %d", got)
	}
}
