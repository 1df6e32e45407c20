package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samwillis/solidtype-core/internal/export"
	"github.com/samwillis/solidtype-core/internal/worker"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the rebuild domain over websocket",
		Long: "Serve exposes the rebuild domain at ws://<addr>/ws. An authoring host " +
			"connects, streams document updates, and receives rebuild results, " +
			"solved sketches and transferable mesh buffers.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return worker.Serve(ctx, addr, worker.Options{
				Config:   cfg,
				Logger:   logger.Named("worker"),
				Exporter: export.New(),
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8700", "listen address")
	return cmd
}
