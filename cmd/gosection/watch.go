package main

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/philipparndt/gosection/internal/loader"
	"github.com/philipparndt/gosection/internal/logging"
	"github.com/philipparndt/gosection/internal/script"
	"github.com/philipparndt/gosection/pkg/watcher"
)

var watchScript string

var watchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Keep a cutting session in sync with a changing model",
	Long: `Load an STL or OpenSCAD model into a cutting session and reload it whenever
the file, or any file it uses or includes, changes. Each reload switches the
session's model, which updates the bounding box and empties the sections.
With --script the script's steps are applied again after every load.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchScript, "script", "", "Session script applied after every load")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := configFrom(ctx)
	logger := logging.FromContext(ctx)
	out := cmd.OutOrStdout()
	ld := loader.New(cfg.OpenSCAD.Binary, logger)

	var sc *script.Script
	if watchScript != "" {
		var err error
		if sc, err = script.Load(watchScript); err != nil {
			return err
		}
		// the watched file is the model
		sc.Model = ""
		sc.Box = nil
	}

	res, err := ld.Load(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { res.Close() }()

	session, err := script.NewSession(cfg, logger)
	if err != nil {
		return err
	}
	session.Start(ctx)
	defer session.Close()

	runner := script.NewRunner(session, ld, out, logger)
	defer runner.Close()

	apply := func(ctx context.Context, res *loader.Result) error {
		if err := session.Load(ctx, res.Model); err != nil {
			return err
		}
		if sc != nil {
			if err := runner.Run(ctx, sc); err != nil {
				logger.Warn("script failed", "script", watchScript, "error", err)
			}
		}
		script.Print(out, session.Mirror.Snapshot())
		return nil
	}
	if err := apply(ctx, res); err != nil {
		return err
	}

	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return err
	}
	defer fw.Close()

	changed := make(chan string, 1)
	callback := func(path string) {
		select {
		case changed <- path:
		default:
		}
	}
	if err := fw.Watch(res.Watch, callback); err != nil {
		return err
	}
	fw.Start(ctx)
	logger.Info("watching for changes", "file", res.Source, "files", len(res.Watch))

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopped watching")
			return nil

		case path := <-changed:
			logger.Info("file changed, reloading", "file", path)
			next, err := ld.Load(ctx, args[0])
			if err != nil {
				logger.Error("reload failed", "error", err)
				continue
			}
			if err := apply(ctx, next); err != nil {
				logger.Error("reload failed", "error", err)
				next.Close()
				continue
			}

			if !slices.Equal(next.Watch, res.Watch) {
				if err := fw.RemoveAll(); err != nil {
					logger.Warn("failed to reset watched files", "error", err)
				}
				if err := fw.Watch(next.Watch, callback); err != nil {
					logger.Warn("failed to watch files", "error", err)
				}
			}
			res.Close()
			res = next
		}
	}
}
