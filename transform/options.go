package transform

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/internal/logging"
	"github.com/rgonek/markdown-editor/markup"
)

// Options configures an Engine.
type Options struct {
	Escape    markup.EscapeConfig
	Directive directive.Config
	// PreserveMarkupFormatting re-emits the original markup of unmodified tracked blocks.
	PreserveMarkupFormatting bool
	// PreserveFormattingTypes overrides the node types tracked by the registry.
	PreserveFormattingTypes []string
	// PreserveEmptyRows keeps empty paragraphs by writing them as `&nbsp;`.
	PreserveEmptyRows bool
	Logger            *slog.Logger
}

// CallOptions override engine options for a single conversion.
type CallOptions struct {
	Directive *directive.Config
}

func (o Options) applyDefaults() Options {
	o.Escape = o.Escape.ApplyDefaults()
	o.Directive = o.Directive.ApplyDefaults()
	o.Logger = logging.OrNop(o.Logger)
	return o
}

func (o Options) clone() Options {
	cloned := o
	cloned.Directive = o.Directive.Clone()
	if o.PreserveFormattingTypes != nil {
		cloned.PreserveFormattingTypes = append([]string(nil), o.PreserveFormattingTypes...)
	}

	return cloned
}

// Validate checks that option values are valid.
func (o Options) Validate() error {
	if err := o.Directive.Validate(); err != nil {
		return err
	}
	for _, nodeType := range o.PreserveFormattingTypes {
		if strings.TrimSpace(nodeType) == "" {
			return fmt.Errorf("preserveFormattingTypes contains an empty node type")
		}
	}

	return nil
}
