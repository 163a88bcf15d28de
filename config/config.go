// Package config loads editor session settings from YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/editor"
	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/extensions"
	"github.com/rgonek/markdown-editor/internal/logging"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/preview"
	"github.com/rgonek/markdown-editor/toolbar"
	"github.com/rgonek/markdown-editor/transform"
	"gopkg.in/yaml.v3"
)

// RendererKind selects the preview renderer.
type RendererKind string

const (
	RendererNone     RendererKind = "none"
	RendererHTML     RendererKind = "html"
	RendererTerminal RendererKind = "terminal"
)

// Config is the YAML form of editor.Options.
type Config struct {
	Preset           string                       `yaml:"preset"`
	Mode             editor.Mode                  `yaml:"mode"`
	Markup           string                       `yaml:"markup,omitempty"`
	ToolbarVisible   *bool                        `yaml:"toolbarVisible,omitempty"`
	SplitMode        editor.SplitMode             `yaml:"splitMode"`
	DisableSplitMode bool                         `yaml:"disableSplitMode,omitempty"`
	DirectiveSyntax  directive.Config             `yaml:"directiveSyntax"`
	Escape           EscapeConfig                 `yaml:"escape,omitempty"`
	Preserve         PreserveConfig               `yaml:"preserve,omitempty"`
	Toolbar          ToolbarConfig                `yaml:"toolbar,omitempty"`
	Preview          PreviewConfig                `yaml:"preview"`
	Units            map[string]extension.Options `yaml:"units,omitempty"`
	LogLevel         string                       `yaml:"logLevel,omitempty"`
}

// EscapeConfig overrides the serializer escape patterns. Empty patterns keep the defaults.
type EscapeConfig struct {
	Common      string `yaml:"commonEscape,omitempty"`
	StartOfLine string `yaml:"startOfLineEscape,omitempty"`
}

// PreserveConfig holds the formatting preservation switches.
type PreserveConfig struct {
	MarkupFormatting bool     `yaml:"markupFormatting,omitempty"`
	FormattingTypes  []string `yaml:"formattingTypes,omitempty"`
	EmptyRows        bool     `yaml:"emptyRows,omitempty"`
}

// ToolbarConfig customizes the toolbar preset.
type ToolbarConfig struct {
	Preset    string                         `yaml:"preset,omitempty"`
	Items     map[string]toolbar.ItemDef     `yaml:"items,omitempty"`
	Overrides map[toolbar.Slot]toolbar.Order `yaml:"overrides,omitempty"`
}

// PreviewConfig selects and configures the preview renderer.
type PreviewConfig struct {
	Renderer RendererKind `yaml:"renderer"`
	Style    string       `yaml:"style,omitempty"`
	WordWrap int          `yaml:"wordWrap,omitempty"`
}

// Load reads and validates a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML, rejecting unknown fields, and validates the result with defaults applied.
func Parse(data []byte) (Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg = cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default returns the config used when no file is given.
func Default() Config {
	return Config{}.applyDefaults()
}

func (c Config) applyDefaults() Config {
	if c.Preset == "" {
		c.Preset = extensions.PresetFull
	}
	if c.Mode == "" {
		c.Mode = editor.ModeWysiwyg
	}
	if c.SplitMode == "" {
		c.SplitMode = editor.SplitOff
	}
	c.DirectiveSyntax = c.DirectiveSyntax.ApplyDefaults()
	if c.Preview.Renderer == "" {
		c.Preview.Renderer = RendererHTML
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return c
}

// Validate checks that option values are valid.
func (c Config) Validate() error {
	known := false
	for _, name := range extensions.PresetNames() {
		if name == c.Preset {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("invalid preset %q (allowed: %s)", c.Preset, strings.Join(extensions.PresetNames(), ", "))
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if !c.SplitMode.Valid() {
		return fmt.Errorf("invalid splitMode %q", c.SplitMode)
	}
	if err := c.DirectiveSyntax.Validate(); err != nil {
		return err
	}
	if _, err := markup.CompileEscapeConfig(c.Escape.Common, c.Escape.StartOfLine); err != nil {
		return err
	}
	for slot := range c.Toolbar.Overrides {
		if !slot.Valid() {
			return fmt.Errorf("invalid toolbar override slot %q", slot)
		}
	}
	switch c.Preview.Renderer {
	case RendererNone, RendererHTML:
	case RendererTerminal:
		opts := c.terminalOptions()
		if opts.Style == "" {
			opts.Style = preview.StyleAuto
		}
		if err := opts.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid preview renderer %q", c.Preview.Renderer)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// TransformOptions returns the engine options described by the config.
func (c Config) TransformOptions(logger *slog.Logger) (transform.Options, error) {
	escape, err := markup.CompileEscapeConfig(c.Escape.Common, c.Escape.StartOfLine)
	if err != nil {
		return transform.Options{}, err
	}
	return transform.Options{
		Escape:                   escape,
		Directive:                c.DirectiveSyntax.Clone(),
		PreserveMarkupFormatting: c.Preserve.MarkupFormatting,
		PreserveFormattingTypes:  append([]string(nil), c.Preserve.FormattingTypes...),
		PreserveEmptyRows:        c.Preserve.EmptyRows,
		Logger:                   logger,
	}, nil
}

// Renderer builds the configured preview renderer. It returns nil for RendererNone.
func (c Config) Renderer(logger *slog.Logger) (editor.PreviewRenderer, error) {
	switch c.Preview.Renderer {
	case RendererHTML:
		opts, err := c.TransformOptions(logger)
		if err != nil {
			return nil, err
		}
		renderer, err := preview.NewHTML(c.Preset, opts)
		if err != nil {
			return nil, err
		}
		return renderer, nil
	case RendererTerminal:
		renderer, err := preview.NewTerminal(c.terminalOptions())
		if err != nil {
			return nil, err
		}
		return renderer, nil
	}

	return nil, nil
}

func (c Config) terminalOptions() preview.TerminalOptions {
	return preview.TerminalOptions{Style: c.Preview.Style, WordWrap: c.Preview.WordWrap}
}

// ToEditorOptions converts the config into session options.
func (c Config) ToEditorOptions(logger *slog.Logger) (editor.Options, error) {
	c = c.applyDefaults()
	if err := c.Validate(); err != nil {
		return editor.Options{}, err
	}
	logger = logging.OrNop(logger)

	transformOpts, err := c.TransformOptions(logger)
	if err != nil {
		return editor.Options{}, err
	}
	renderer, err := c.Renderer(logger)
	if err != nil {
		return editor.Options{}, err
	}

	opts := editor.Options{
		Preset: c.Preset,
		Initial: editor.InitialOptions{
			Markup:    c.Markup,
			Mode:      c.Mode,
			SplitMode: c.SplitMode,
		},
		Transform: transformOpts,
		Toolbar: editor.ToolbarOptions{
			Preset:    c.Toolbar.Preset,
			Items:     c.Toolbar.Items,
			Overrides: c.Toolbar.Overrides,
		},
		DisableSplitMode: c.DisableSplitMode,
		Renderer:         renderer,
		Logger:           logger,
	}
	if c.ToolbarVisible != nil {
		visible := *c.ToolbarVisible
		opts.Initial.ToolbarVisible = &visible
	}
	if len(c.Units) > 0 {
		opts.UnitOptions = make(map[string]extension.Options, len(c.Units))
		for name, unitOpts := range c.Units {
			opts.UnitOptions[name] = unitOpts
		}
	}

	return opts, nil
}
