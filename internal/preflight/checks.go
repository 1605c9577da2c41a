package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"yakusub/internal/config"
	"yakusub/internal/translate"
)

// minFreeBytes is the least free space the output volume must have before
// a run starts. Intermediate WAVs are large.
const minFreeBytes = 2 << 30

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the volume holding path has at least min bytes
// available.
func CheckFreeSpace(name, path string, min uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%.1f GiB available", float64(free)/(1<<30))
	if free < min {
		return Result{Name: name, Detail: detail + fmt.Sprintf(" (need %.1f GiB)", float64(min)/(1<<30))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckProviders health-checks every distinct provider endpoint configured
// across the translation tasks and the transcription quality gate. Each
// endpoint is probed once regardless of how many tasks reference it.
func CheckProviders(ctx context.Context, cfg *config.Config) []Result {
	var results []Result
	seen := make(map[string]struct{})

	check := func(providerCfg config.Provider) {
		key := providerCfg.BaseURL + "|" + providerCfg.APIKey
		if _, done := seen[key]; done {
			return
		}
		seen[key] = struct{}{}
		results = append(results, CheckProvider(ctx, providerCfg))
	}

	for _, task := range cfg.Translator.Tasks {
		for _, providerCfg := range task.Providers {
			check(providerCfg)
		}
	}
	for _, providerCfg := range cfg.Transcriber.QualityChecker.Providers {
		check(providerCfg)
	}
	return results
}

// CheckProvider verifies one chat endpoint is reachable and the key valid.
// A 30-second cap keeps a dead endpoint from stalling startup.
func CheckProvider(ctx context.Context, providerCfg config.Provider) Result {
	name := "Provider " + providerCfg.Service
	if providerCfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	provider := translate.NewProvider(providerCfg, nil)
	if err := provider.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeProviderError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

func summarizeProviderError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
