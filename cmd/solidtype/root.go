package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/samwillis/solidtype-core/internal/config"
	"github.com/samwillis/solidtype-core/internal/logging"
)

type rootFlags struct {
	configPath string
	logLevel   string
	dev        bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "solidtype",
		Short:         "Parametric CAD rebuild engine",
		Long:          "solidtype rebuilds parametric feature documents into solid bodies and meshes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "engine config file (yaml)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override configured log level")
	cmd.PersistentFlags().BoolVar(&flags.dev, "dev", false, "development logging")

	cmd.AddCommand(newRebuildCmd(flags))
	cmd.AddCommand(newWatchCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newExportCmd(flags))
	return cmd
}

// setup loads config and builds the logger from the persistent flags.
func (f *rootFlags) setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if f.logLevel != "" {
		level = f.logLevel
	}
	logger, err := logging.New(level, f.dev || cfg.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
