package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/samwillis/solidtype-core/internal/config"
	"github.com/samwillis/solidtype-core/internal/doc"
	"github.com/samwillis/solidtype-core/internal/rebuild"
	"go.uber.org/zap"
)

func newRebuildCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <document.json>",
		Short: "Rebuild a document once and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			result, err := rebuildFile(args[0], cfg, logger)
			if err != nil {
				return err
			}
			printResult(cmd, result)
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d feature(s) failed", len(result.Errors))
			}
			return nil
		},
	}
}

func rebuildFile(path string, cfg *config.Config, logger *zap.Logger) (*rebuild.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	d, err := doc.ImportJSON("cli", data)
	if err != nil {
		return nil, err
	}
	orch := rebuild.New(rebuild.Options{Config: cfg, Logger: logger.Named("rebuild")})
	return orch.Rebuild(d, nil), nil
}

func printResult(cmd *cobra.Command, result *rebuild.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "bodies: %d\n", len(result.Bodies))
	for _, b := range result.Bodies {
		fmt.Fprintf(out, "  %s  %-20s %d faces  %s\n", b.Feature, b.Name, b.FaceCount, b.Color)
	}
	counts := map[rebuild.Status]int{}
	for _, s := range result.Status {
		counts[s]++
	}
	fmt.Fprintf(out, "features: %d computed, %d error, %d suppressed, %d gated\n",
		counts[rebuild.StatusComputed], counts[rebuild.StatusError],
		counts[rebuild.StatusSuppressed], counts[rebuild.StatusGated])
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  error %s [%s]: %s\n", e.FeatureID, e.Code, e.Message)
	}
}
