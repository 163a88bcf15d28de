package editor

import (
	"context"

	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/transform"
)

// PreviewMode is the pane a preview is rendered into.
type PreviewMode string

const (
	PreviewPane  PreviewMode = "preview"
	PreviewSplit PreviewMode = "split"
)

// PreviewParams is everything a preview renderer receives. Value reads the current markup and
// gives no way to change it.
type PreviewParams struct {
	Value     func() string
	Mode      PreviewMode
	Directive *directive.Context
}

// PreviewRenderer produces a display-only rendering of the markup.
type PreviewRenderer interface {
	RenderPreview(ctx context.Context, params PreviewParams) (string, error)
}

// PreviewRendererFunc adapts a function to PreviewRenderer.
type PreviewRendererFunc func(ctx context.Context, params PreviewParams) (string, error)

// RenderPreview implements PreviewRenderer.
func (f PreviewRendererFunc) RenderPreview(ctx context.Context, params PreviewParams) (string, error) {
	return f(ctx, params)
}

// PreviewParams returns the renderer input for a pane.
func (e *Editor) PreviewParams(mode PreviewMode) PreviewParams {
	return PreviewParams{
		Value: func() string {
			value, _ := e.Markup(context.Background())
			return value
		},
		Mode:      mode,
		Directive: e.engine.Directive(transform.CallOptions{}),
	}
}

// RenderPreview renders the visible preview pane with the configured renderer.
func (e *Editor) RenderPreview(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return "", ErrDisposed
	}
	renderer := e.opts.Renderer
	mode := e.mode
	var pane PreviewMode
	switch {
	case e.splitMode.Enabled():
		pane = PreviewSplit
	case e.previewVisible:
		pane = PreviewPane
	}
	e.mu.Unlock()

	if renderer == nil {
		return "", ErrPreviewUnavailable
	}
	if mode != ModeMarkup {
		return "", ErrWrongMode
	}
	if pane == "" {
		return "", ErrPreviewUnavailable
	}

	return renderer.RenderPreview(ctx, e.PreviewParams(pane))
}
