package main

import (
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <document.json>",
		Short: "Rebuild on every save of a document file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			path := args[0]
			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()
			// Watch the directory: editors replace files on save, which
			// drops a direct file watch.
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			run := func() {
				result, err := rebuildFile(path, cfg, logger)
				if err != nil {
					logger.Warn("rebuild failed", zap.Error(err))
					return
				}
				printResult(cmd, result)
			}
			run()

			debounce := time.Duration(cfg.DebounceMillis) * time.Millisecond
			var timer *time.Timer
			var timerC <-chan time.Time

			target := filepath.Clean(path)
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(ev.Name) != target {
						continue
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}
					if timer == nil {
						timer = time.NewTimer(debounce)
						timerC = timer.C
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.Warn("watch error", zap.Error(err))
				case <-timerC:
					timer, timerC = nil, nil
					run()
				}
			}
		},
	}
}
