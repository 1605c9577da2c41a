package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"yakusub/internal/config"
)

func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %s", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("second init without --overwrite must fail")
	}
	if _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}); err != nil {
		t.Fatalf("init with --overwrite: %v", err)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"Code", "Videos"},
		[][]string{{"ABC-123", "2"}, {"XYZ-001"}},
		[]columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "ABC-123") || !strings.Contains(out, "Code") {
		t.Fatalf("table output missing content:\n%s", out)
	}
	if !strings.Contains(out, "XYZ-001") {
		t.Fatalf("short row dropped:\n%s", out)
	}
	if got := renderTable(nil, nil, nil); got != "" {
		t.Fatalf("headerless table = %q, want empty", got)
	}
}

func TestRedactedMasksKeys(t *testing.T) {
	cfg := &config.Config{}
	cfg.Translator.Tasks = map[string]config.Task{
		"correct_subtitle": {Providers: []config.Provider{{Service: "svc", APIKey: "secret"}}},
	}
	cfg.Transcriber.QualityChecker.Providers = []config.Provider{{Service: "judge", APIKey: "secret2"}}

	clone := redacted(cfg)
	if got := clone.Translator.Tasks["correct_subtitle"].Providers[0].APIKey; got != "********" {
		t.Fatalf("task key = %q", got)
	}
	if got := clone.Transcriber.QualityChecker.Providers[0].APIKey; got != "********" {
		t.Fatalf("quality key = %q", got)
	}
	if cfg.Translator.Tasks["correct_subtitle"].Providers[0].APIKey != "secret" {
		t.Fatal("redaction must not mutate the source config")
	}
}
