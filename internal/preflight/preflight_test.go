package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"yakusub/internal/config"
	"yakusub/internal/testsupport"
)

func TestCheckSystemDepsCoversStageBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 4 {
		t.Fatalf("statuses = %d, want 4", len(statuses))
	}
	names := map[string]bool{}
	for _, status := range statuses {
		names[status.Name] = true
	}
	for _, want := range []string{"FFmpeg", "FFprobe", "Demucs", "Whisper"} {
		if !names[want] {
			t.Fatalf("missing dependency check %q", want)
		}
	}
}

func TestCheckDirectoryAccessOK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccessNotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccessNotDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", file); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	if result := CheckFreeSpace("space", t.TempDir(), 1); !result.Passed {
		t.Fatalf("expected pass for 1-byte requirement, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", t.TempDir(), 1<<62); result.Passed {
		t.Fatal("expected failure for absurd requirement")
	}
}

func TestCheckProviderOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	result := CheckProvider(context.Background(), config.Provider{
		Service: "test", Model: "m", APIKey: "good-key", BaseURL: server.URL,
	})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckProviderBadKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	result := CheckProvider(context.Background(), config.Provider{
		Service: "test", Model: "m", APIKey: "bad-key", BaseURL: server.URL,
	})
	if result.Passed {
		t.Fatal("expected failure for rejected key")
	}
}

func TestCheckProviderMissingKey(t *testing.T) {
	result := CheckProvider(context.Background(), config.Provider{Service: "test"})
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCheckProvidersDeduplicatesEndpoints(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	shared := config.Provider{Service: "shared", Model: "m", APIKey: "k", BaseURL: server.URL}
	cfg := &config.Config{
		Translator: config.Translator{Tasks: map[string]config.Task{
			"correct_subtitle":   {Providers: []config.Provider{shared}},
			"translate_subtitle": {Providers: []config.Provider{shared}},
		}},
	}
	cfg.Transcriber.QualityChecker.Providers = []config.Provider{shared}

	results := CheckProviders(context.Background(), cfg)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if calls != 1 {
		t.Fatalf("endpoint probed %d times, want 1", calls)
	}
}

func TestPassed(t *testing.T) {
	if !Passed([]Result{{Passed: true}, {Passed: true}}) {
		t.Fatal("all-pass set must pass")
	}
	if Passed([]Result{{Passed: true}, {}}) {
		t.Fatal("one failure must fail the set")
	}
}
