package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"yakusub/internal/avcode"
	"yakusub/internal/config"
	"yakusub/internal/manifest"
	"yakusub/internal/scanner"
)

// scan registers videos without running any processing stages. Code
// validation is offline only here; ambiguous filenames resolve on the next
// full run.
func newScanCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <library-root>",
		Short: "Register video files in the manifest without processing them",
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

			store, err := manifest.Open(cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			extractor := avcode.New(cfg.Extractor.NoiseWordsFile, cfg.Extractor.KnownPrefixesFile, nil, logger)
			ids, err := scanner.New(extractor, cfg.Scanner.HashWorkers, logger).Scan(cmd.Context(), store, root)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scan touched %d movie(s)\n", len(ids))
			return nil
		},
	}
}
