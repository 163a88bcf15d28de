package preview

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/rgonek/markdown-editor/editor"
)

// Terminal styles accepted by NewTerminal. StyleAuto detects the terminal background.
const (
	StyleAuto  = "auto"
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
	StyleASCII = "ascii"
)

// TerminalOptions configure the terminal renderer.
type TerminalOptions struct {
	Style    string
	WordWrap int
}

func (o TerminalOptions) applyDefaults() TerminalOptions {
	if o.Style == "" {
		o.Style = StyleAuto
	}
	if o.WordWrap == 0 {
		o.WordWrap = 80
	}

	return o
}

// Validate checks that option values are valid.
func (o TerminalOptions) Validate() error {
	switch o.Style {
	case StyleAuto, StyleDark, StyleLight, StyleNoTTY, StyleASCII:
	default:
		return fmt.Errorf("invalid terminal style %q", o.Style)
	}
	if o.WordWrap < 0 {
		return fmt.Errorf("word wrap must not be negative, got %d", o.WordWrap)
	}

	return nil
}

// Terminal renders markup as styled terminal text with glamour.
type Terminal struct {
	mu       sync.Mutex
	renderer *glamour.TermRenderer
}

var _ editor.PreviewRenderer = (*Terminal)(nil)

// NewTerminal creates a terminal renderer.
func NewTerminal(opts TerminalOptions) (*Terminal, error) {
	opts = opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	style := glamour.WithStandardStyle(opts.Style)
	if opts.Style == StyleAuto {
		style = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(opts.WordWrap))
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal renderer: %w", err)
	}

	return &Terminal{renderer: renderer}, nil
}

// RenderPreview renders the current markup.
func (r *Terminal) RenderPreview(ctx context.Context, params editor.PreviewParams) (string, error) {
	if params.Value == nil {
		return "", fmt.Errorf("preview value accessor is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return r.Render(params.Value())
}

// Render renders markup directly.
func (r *Terminal) Render(text string) (string, error) {
	// TermRenderer reuses an internal buffer.
	r.mu.Lock()
	defer r.mu.Unlock()
	out, err := r.renderer.Render(text)
	if err != nil {
		return "", fmt.Errorf("terminal render failed: %w", err)
	}

	return out, nil
}
