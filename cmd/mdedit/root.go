package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rgonek/markdown-editor/config"
	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/editor"
	"github.com/rgonek/markdown-editor/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	preset     string
	directive  string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "mdedit",
		Short:         "Convert, inspect and preview markdown editor documents",
		Long:          `mdedit runs the editor core from the command line: it converts markup to document trees and back, prints resolved toolbars and renders previews.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Session config file (YAML)")
	flags.StringVarP(&opts.preset, "preset", "p", "", "Extension preset: zero|commonmark|default|yfm|full")
	flags.StringVar(&opts.directive, "directive", "", "Directive syntax: option or option,extension=option,...")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")

	cmd.AddCommand(
		newParseCmd(opts),
		newSerializeCmd(opts),
		newRoundtripCmd(opts),
		newToolbarCmd(opts),
		newPreviewCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

// load reads the config file and applies flag overrides.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.preset != "" {
		cfg.Preset = o.preset
	}
	if o.directive != "" {
		parsed, err := directive.ParseConfig(o.directive)
		if err != nil {
			return err
		}
		cfg.DirectiveSyntax = parsed
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logging.NewWithWriter(cmd.ErrOrStderr(), level)
	return nil
}

// session starts an editor in markup mode holding text.
func (o *rootOptions) session(text string) (*editor.Editor, error) {
	opts, err := o.cfg.ToEditorOptions(o.logger)
	if err != nil {
		return nil, err
	}
	opts.Initial.Mode = editor.ModeMarkup
	opts.Initial.Markup = text
	opts.Scheduler = &editor.TickScheduler{}
	e, err := editor.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start editor session: %w", err)
	}
	return e, nil
}

// readInput reads the named file, or stdin when the name is empty or "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}

func trimFinalNewline(text string) string {
	return strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r")
}
