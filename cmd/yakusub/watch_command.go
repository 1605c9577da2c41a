package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"yakusub/internal/config"
	"yakusub/internal/logging"
	"yakusub/internal/manifest"
	"yakusub/internal/pipeline"
)

// watch runs the pipeline whenever the library root changes, with a
// debounce so a batch copy triggers one run instead of one per file.
func newWatchCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <library-root>",
		Short: "Watch a library root and run the pipeline on changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			root, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			logger, err := cmdCtx.newLogger()
			if err != nil {
				return err
			}

			unlock, err := acquireRunLock(cfg)
			if err != nil {
				return err
			}
			defer unlock()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := manifest.Open(cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			engine := pipeline.New(cfg, store, logger)
			return watchLoop(ctx, engine, root, cfg.Workflow.WatchDebounceSeconds, logger)
		},
	}
}

type runner interface {
	Run(ctx context.Context, root string) error
}

func watchLoop(ctx context.Context, engine runner, root string, debounceSeconds int, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watchTree(watcher, root); err != nil {
		return err
	}

	debounce := time.Duration(debounceSeconds) * time.Second
	if debounce <= 0 {
		debounce = 10 * time.Second
	}

	// Process whatever is already there before waiting for events.
	if err := engine.Run(ctx, root); err != nil {
		logger.Error("initial run failed", logging.Error(err))
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, statErr := statDir(event.Name); statErr == nil && info {
					_ = watchTree(watcher, event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", logging.Error(watchErr))
		case <-timerC:
			timer = nil
			timerC = nil
			if err := engine.Run(ctx, root); err != nil {
				logger.Error("pipeline run failed", logging.Error(err))
			}
		}
	}
}

func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
