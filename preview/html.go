// Package preview provides renderers for the markup preview pane and split view.
package preview

import (
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rgonek/markdown-editor/editor"
	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/extensions"
	"github.com/rgonek/markdown-editor/transform"
)

// HTML renders markup to HTML through the transform engine's DOM projection, so the preview
// shows exactly the nodes the wysiwyg surface would.
type HTML struct {
	engine *transform.Engine

	mu      sync.Mutex
	lastKey uint64
	lastOut string
	cached  bool
}

var _ editor.PreviewRenderer = (*HTML)(nil)

// NewHTML builds a renderer with its own engine over the units of a preset.
func NewHTML(preset string, opts transform.Options) (*HTML, error) {
	units, err := extensions.Preset(preset)
	if err != nil {
		return nil, err
	}
	builder := extension.NewBuilder(extension.WithLogger(opts.Logger))
	if err := builder.Register(units...); err != nil {
		return nil, fmt.Errorf("failed to register preview units: %w", err)
	}
	registry, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build preview registry: %w", err)
	}
	engine, err := transform.New(registry, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview engine: %w", err)
	}

	return NewHTMLWithEngine(engine), nil
}

// NewHTMLWithEngine builds a renderer that shares an existing engine.
func NewHTMLWithEngine(engine *transform.Engine) *HTML {
	return &HTML{engine: engine}
}

// RenderPreview parses the current markup with the session directive setting and renders it.
// The last result is reused while markup and directive setting are unchanged.
func (r *HTML) RenderPreview(ctx context.Context, params editor.PreviewParams) (string, error) {
	if params.Value == nil {
		return "", fmt.Errorf("preview value accessor is required")
	}
	text := params.Value()

	var call transform.CallOptions
	key := xxhash.New()
	_, _ = key.WriteString(text)
	if params.Directive != nil {
		cfg := params.Directive.Config()
		call.Directive = &cfg
		_, _ = key.WriteString("\x00" + cfg.String())
	}
	sum := key.Sum64()

	r.mu.Lock()
	if r.cached && r.lastKey == sum {
		out := r.lastOut
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	result, err := r.engine.ParseWithContext(ctx, text, call)
	if err != nil {
		return "", fmt.Errorf("preview parse failed: %w", err)
	}
	out, err := r.engine.RenderHTML(result.Doc)
	if err != nil {
		return "", fmt.Errorf("preview render failed: %w", err)
	}

	r.mu.Lock()
	r.lastKey, r.lastOut, r.cached = sum, out, true
	r.mu.Unlock()
	return out, nil
}
