package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"yakusub/internal/config"
	"yakusub/internal/manifest"
	"yakusub/internal/pipeline"
	"yakusub/internal/preflight"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run <library-root>",
		Short: "Scan a library root and process every movie to its bilingual subtitle",
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

			if !skipPreflight {
				results := preflight.RunAll(ctx, cfg)
				printPreflight(cmd, results)
				if !preflight.Passed(results) {
					return fmt.Errorf("preflight checks failed")
				}
			}

			store, err := manifest.Open(cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			engine := pipeline.New(cfg, store, logger)
			return engine.Run(ctx, root)
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip readiness checks before the run")
	return cmd
}

// acquireRunLock takes the single-instance lock. Two concurrent runs would
// race on the manifest and the by-product tree.
func acquireRunLock(cfg *config.Config) (func(), error) {
	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "yakusub.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another yakusub run holds the lock at %s", lock.Path())
	}
	return func() { _ = lock.Unlock() }, nil
}

func printPreflight(cmd *cobra.Command, results []preflight.Result) {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		state := "FAIL"
		if result.Passed {
			state = "OK"
		}
		rows = append(rows, []string{result.Name, state, result.Detail})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Check", "State", "Detail"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft}))
}
