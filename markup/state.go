// Package markup defines the contracts between the transform engine and the parse and
// serialize rules contributed by extensions.
package markup

import (
	"context"

	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
)

const (
	// DefaultPriority is the priority of parse handlers that do not set one.
	DefaultPriority = 50
	// HardBreakNodeName is the node type that only keeps marks continuing past it.
	HardBreakNodeName = "hard_break"
	// ParagraphNodeName is the node type used to wrap stray inline content.
	ParagraphNodeName = "paragraph"
)

// ParseState is the view of a running parse given to parse handlers.
type ParseState interface {
	Context() context.Context
	Schema() *schema.Schema
	Source() []byte
	Directive() *directive.Context
	PreserveEmptyRows() bool

	// BlockChildren converts the children of a block token into block nodes.
	BlockChildren(parent ast.Node) ([]schema.Node, error)
	// InlineChildren converts the inline children of a token, applying the active marks.
	InlineChildren(parent ast.Node) ([]schema.Node, error)
	// WithMark runs fn with mark pushed onto the active mark stack.
	WithMark(mark schema.Mark, fn func() ([]schema.Node, error)) ([]schema.Node, error)
	CurrentMarks() []schema.Mark
	// Text returns a text node carrying the active marks.
	Text(value string) schema.Node

	// ParseFragment parses a nested markup body (e.g. the content of a container block).
	ParseFragment(markup string) ([]schema.Node, error)
	// ParseInlineFragment parses markup as the inline content of a single textblock.
	ParseInlineFragment(markup string) ([]schema.Node, error)

	Warn(warnType WarningType, nodeType, message string)
}

// ParseHandler turns one goldmark token kind into structured nodes.
type ParseHandler struct {
	Kind ast.NodeKind
	// Priority orders handlers for the same kind: higher first. Zero means DefaultPriority.
	Priority int
	// Match may decline a token so the next candidate is tried. Nil accepts every token.
	Match func(node ast.Node, state ParseState) bool
	Parse func(node ast.Node, state ParseState) ([]schema.Node, error)
	// Unit is filled by the builder with the contributing unit name.
	Unit string
}

// EffectivePriority returns the priority with the default applied.
func (h ParseHandler) EffectivePriority() int {
	if h.Priority == 0 {
		return DefaultPriority
	}

	return h.Priority
}

// SerializerState is the markdown writer handed to serialize rules.
type SerializerState interface {
	Context() context.Context
	Schema() *schema.Schema
	Directive() *directive.Context
	PreserveEmptyRows() bool

	// Write flushes pending block separation, prefixes the line delimiter when at a line
	// start, then appends content verbatim.
	Write(content string)
	// Text writes text line by line, escaping it when escape is set.
	Text(text string, escape bool)
	Esc(text string, startOfLine bool) string
	// WithEscapedChars runs fn with chars escaped in addition to the configured set.
	WithEscapedChars(chars string, fn func() error) error
	// WrapBlock renders fn with delim prefixed to every line; firstDelim (or delim when
	// empty) prefixes the first one. The block is closed afterwards.
	WrapBlock(delim, firstDelim string, node schema.Node, fn func() error) error
	CloseBlock(node schema.Node)
	FlushClose(size int)
	EnsureNewLine()
	AtBlank() bool

	Render(node, parent schema.Node, index int) error
	RenderInline(parent schema.Node) error
	RenderContent(parent schema.Node) error
	RenderList(node schema.Node, delim string, firstDelim func(index int) string) error

	Warn(warnType WarningType, nodeType, message string)
}

// NodeSerializer writes one node.
type NodeSerializer func(state SerializerState, node, parent schema.Node, index int) error

// MarkSerializer describes the delimiters of a mark.
type MarkSerializer struct {
	Open  func(state SerializerState, mark schema.Mark, parent schema.Node, index int) string
	Close func(state SerializerState, mark schema.Mark, parent schema.Node, index int) string
	// Mixable marks may be reordered to keep a longer common prefix open.
	Mixable bool
	// ExpelEnclosingWhitespace moves leading and trailing spaces outside the delimiters.
	ExpelEnclosingWhitespace bool
	// NoEscape writes the marked text verbatim (code spans).
	NoEscape bool
	// EscapeChars are escaped in all text of a document whose schema has this mark, so a
	// literal delimiter cannot re-form the mark on the next parse.
	EscapeChars string
}

// Delimiters returns a serializer with fixed open and close strings.
func Delimiters(open, close string) MarkSerializer {
	return MarkSerializer{
		Open: func(SerializerState, schema.Mark, schema.Node, int) string {
			return open
		},
		Close: func(SerializerState, schema.Mark, schema.Node, int) string {
			return close
		},
	}
}

var directiveKey = parser.NewContextKey()

// WithDirective stores the directive context for custom goldmark parsers.
func WithDirective(pc parser.Context, ctx *directive.Context) {
	pc.Set(directiveKey, ctx)
}

// DirectiveFrom returns the directive context of a parse, or a disabled one.
func DirectiveFrom(pc parser.Context) *directive.Context {
	if pc != nil {
		if ctx, ok := pc.Get(directiveKey).(*directive.Context); ok && ctx != nil {
			return ctx
		}
	}

	return directive.NewContext(directive.Config{})
}
