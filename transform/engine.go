// Package transform converts between markup text and structured document trees using the
// parse and serialize rules of an extension registry.
package transform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark"
)

// Engine converts markup to trees and back. It is safe for concurrent use.
type Engine struct {
	registry *extension.Registry
	schema   *schema.Schema
	options  Options
	md       goldmark.Markdown
	tracked  []string
	escape   string
	logger   *slog.Logger
}

// New creates an engine for the registry.
func New(registry *extension.Registry, options Options) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	opts := options.applyDefaults().clone()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	tracked := opts.PreserveFormattingTypes
	if tracked == nil {
		tracked = registry.TrackedNodeTypes()
	}
	return &Engine{
		registry: registry,
		schema:   registry.Schema(),
		options:  opts,
		md:       goldmark.New(goldmark.WithExtensions(registry.MarkupExtenders()...)),
		tracked:  tracked,
		escape:   registry.EscapeChars(),
		logger:   opts.Logger,
	}, nil
}

// Registry returns the registry the engine was built from.
func (e *Engine) Registry() *extension.Registry {
	return e.registry
}

// Schema returns the document schema.
func (e *Engine) Schema() *schema.Schema {
	return e.schema
}

// Options returns a copy of the engine options.
func (e *Engine) Options() Options {
	return e.options.clone()
}

// Directive returns the directive context of a conversion.
func (e *Engine) Directive(opts CallOptions) *directive.Context {
	if opts.Directive != nil {
		return directive.NewContext(opts.Directive.ApplyDefaults())
	}

	return directive.NewContext(e.options.Directive)
}

// Parse converts markup into a document tree.
func (e *Engine) Parse(markupText string) (ParseResult, error) {
	return e.ParseWithContext(context.Background(), markupText, CallOptions{})
}

// ParseWithContext converts markup into a document tree.
func (e *Engine) ParseWithContext(ctx context.Context, markupText string, opts CallOptions) (ParseResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Directive != nil {
		if err := opts.Directive.ApplyDefaults().Validate(); err != nil {
			return ParseResult{}, err
		}
	}
	warnings := []markup.Warning{}
	s := &parseState{
		engine:    e,
		ctx:       ctx,
		source:    []byte(markupText),
		directive: e.Directive(opts),
		marks:     &markStack{},
		warnings:  &warnings,
		topLevel:  true,
	}
	if err := s.checkContext(); err != nil {
		return ParseResult{}, err
	}

	root := e.parseTree(s.source, s.directive)
	content, err := s.BlockChildren(root)
	if err != nil {
		return ParseResult{}, err
	}

	doc := e.normalizer(s.Warn).normalize(schema.Node{Type: e.schema.TopNode(), Content: content})
	if e.options.PreserveMarkupFormatting {
		doc = sealFingerprints(doc)
	}
	if err := e.schema.Check(doc); err != nil {
		return ParseResult{}, fmt.Errorf("%w: %w", ErrStructural, err)
	}

	e.logger.Debug("parsed markup", "bytes", len(s.source), "blocks", len(doc.Content), "warnings", len(warnings))
	return ParseResult{Doc: doc, Warnings: warnings}, nil
}

func (e *Engine) normalizer(warn func(markup.WarningType, string, string)) normalizer {
	return normalizer{
		schema:            e.schema,
		preserveEmptyRows: e.options.PreserveEmptyRows,
		warn:              warn,
	}
}

// Serialize converts a document tree into markup.
func (e *Engine) Serialize(doc schema.Node) (SerializeResult, error) {
	return e.SerializeWithContext(context.Background(), doc, CallOptions{})
}

// SerializeWithContext converts a document tree into markup. Unknown node or mark types are
// structural errors; a failing serializer degrades the affected node to plain text.
func (e *Engine) SerializeWithContext(ctx context.Context, doc schema.Node, opts CallOptions) (SerializeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Directive != nil {
		if err := opts.Directive.ApplyDefaults().Validate(); err != nil {
			return SerializeResult{}, err
		}
	}
	if doc.Type != e.schema.TopNode() {
		return SerializeResult{}, fmt.Errorf("%w: root is %q, expected %q", ErrStructural, doc.Type, e.schema.TopNode())
	}
	if err := e.checkKnownTypes(doc, nil); err != nil {
		return SerializeResult{}, fmt.Errorf("%w: %w", ErrStructural, err)
	}

	warnings := []markup.Warning{}
	s := &serializerState{
		engine:       e,
		ctx:          ctx,
		directive:    e.Directive(opts),
		warnings:     &warnings,
		extraEscape:  e.escape,
		missingMarks: map[string]bool{},
	}
	if err := s.checkContext(); err != nil {
		return SerializeResult{}, err
	}
	if err := s.RenderContent(doc); err != nil {
		return SerializeResult{}, err
	}

	e.logger.Debug("serialized document", "bytes", len(s.out), "warnings", len(warnings))
	return SerializeResult{Markup: string(s.out), Warnings: warnings}, nil
}

func (e *Engine) checkKnownTypes(node schema.Node, path []int) error {
	if _, ok := e.schema.NodeType(node.Type); !ok {
		return fmt.Errorf("%w: %w", schema.ErrUnknownType, &schema.CheckError{Path: path, Type: node.Type, Message: "unknown node type"})
	}
	for _, mark := range node.Marks {
		if _, ok := e.schema.MarkType(mark.Type); !ok {
			return fmt.Errorf("%w: %w", schema.ErrUnknownType, &schema.CheckError{Path: path, Type: mark.Type, Message: "unknown mark type"})
		}
	}
	for i, child := range node.Content {
		childPath := append(append([]int(nil), path...), i)
		if err := e.checkKnownTypes(child, childPath); err != nil {
			return err
		}
	}

	return nil
}
