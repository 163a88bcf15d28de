package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rgonek/markdown-editor/transform"
	"github.com/spf13/cobra"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	flags := &previewFlags{}
	var preview bool
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-convert a file every time it changes",
		Long:  `watch prints the round-tripped markup of a file, or its preview with --preview, and repeats on every write until interrupted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if preview {
				cfg, err := flags.apply(root.cfg)
				if err != nil {
					return err
				}
				root.cfg = cfg
			}
			path := args[0]
			out := cmd.OutOrStdout()
			render := func(text string) error {
				if preview {
					rendered, err := renderPreview(cmd.Context(), root, text)
					if err != nil {
						return err
					}
					fmt.Fprint(out, rendered)
					return nil
				}
				return roundtripTo(cmd, root, text)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchFile(ctx, path, root.logger, func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				return render(string(data))
			})
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "Render the preview instead of markup")
	addPreviewFlags(cmd, flags)
	return cmd
}

func roundtripTo(cmd *cobra.Command, root *rootOptions, text string) error {
	e, err := root.session(text)
	if err != nil {
		return err
	}
	defer e.Dispose()

	doc, err := e.Document(cmd.Context())
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}
	result, err := e.Engine().SerializeWithContext(cmd.Context(), doc, transform.CallOptions{})
	if err != nil {
		return fmt.Errorf("serialize failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Markup)
	return nil
}

// watchFile runs onChange once and again after every write to path until ctx is done. The
// parent directory is watched so editors that replace the file on save keep being followed.
// Failures of onChange are logged and do not stop the watch.
func watchFile(ctx context.Context, path string, logger *slog.Logger, onChange func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	run := func() {
		if err := onChange(); err != nil {
			logger.Error("watch update failed", "file", path, "error", err)
		}
	}
	run()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				logger.Debug("file changed", "file", path, "op", event.Op.String())
				run()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
