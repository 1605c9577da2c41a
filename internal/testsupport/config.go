// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"yakusub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test,
// plus extractor word files so the code extractor can run offline.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Extractor.NoiseWordsFile = filepath.Join(base, "noise.txt")
	cfg.Extractor.KnownPrefixesFile = filepath.Join(base, "prefixes.txt")

	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	for _, file := range []string{cfg.Extractor.NoiseWordsFile, cfg.Extractor.KnownPrefixesFile} {
		if err := os.WriteFile(file, nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", file, err)
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}
