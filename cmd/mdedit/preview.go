package main

import (
	"context"
	"fmt"

	"github.com/rgonek/markdown-editor/config"
	"github.com/spf13/cobra"
)

type previewFlags struct {
	renderer string
	style    string
	width    int
}

func addPreviewFlags(cmd *cobra.Command, f *previewFlags) {
	cmd.Flags().StringVarP(&f.renderer, "renderer", "r", "", "Preview renderer: html|terminal (default from config)")
	cmd.Flags().StringVar(&f.style, "style", "", "Terminal style: auto|dark|light|notty|ascii")
	cmd.Flags().IntVar(&f.width, "width", 0, "Terminal word wrap width")
}

// apply overrides the preview section of the config with the flags that were set.
func (f previewFlags) apply(cfg config.Config) (config.Config, error) {
	if f.renderer != "" {
		cfg.Preview.Renderer = config.RendererKind(f.renderer)
	}
	if f.style != "" {
		cfg.Preview.Style = f.style
	}
	if f.width != 0 {
		cfg.Preview.WordWrap = f.width
	}
	if cfg.Preview.Renderer == config.RendererNone {
		return cfg, fmt.Errorf("preview requires a renderer")
	}
	return cfg, cfg.Validate()
}

func newPreviewCmd(root *rootOptions) *cobra.Command {
	flags := &previewFlags{}
	cmd := &cobra.Command{
		Use:   "preview [file]",
		Short: "Render markup the way the preview pane shows it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.apply(root.cfg)
			if err != nil {
				return err
			}
			root.cfg = cfg
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			out, err := renderPreview(cmd.Context(), root, text)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	addPreviewFlags(cmd, flags)
	return cmd
}

// renderPreview opens a markup session, shows the preview pane and renders it.
func renderPreview(ctx context.Context, root *rootOptions, text string) (string, error) {
	e, err := root.session(text)
	if err != nil {
		return "", err
	}
	defer e.Dispose()

	if err := e.ChangePreviewVisible(true); err != nil {
		return "", err
	}
	return e.RenderPreview(ctx)
}
