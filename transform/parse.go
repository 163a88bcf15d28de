package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

type parseState struct {
	engine    *Engine
	ctx       context.Context
	source    []byte
	directive *directive.Context
	marks     *markStack
	warnings  *[]markup.Warning
	// topLevel is set for the state of the whole document, not for nested fragments.
	topLevel bool
}

var _ markup.ParseState = (*parseState)(nil)

func (e *Engine) parseTree(source []byte, dctx *directive.Context) ast.Node {
	pc := parser.NewContext()
	markup.WithDirective(pc, dctx)
	return e.md.Parser().Parse(text.NewReader(source), parser.WithContext(pc))
}

func (s *parseState) Context() context.Context {
	return s.ctx
}

func (s *parseState) Schema() *schema.Schema {
	return s.engine.schema
}

func (s *parseState) Source() []byte {
	return s.source
}

func (s *parseState) Directive() *directive.Context {
	return s.directive
}

func (s *parseState) PreserveEmptyRows() bool {
	return s.engine.options.PreserveEmptyRows
}

func (s *parseState) CurrentMarks() []schema.Mark {
	return s.marks.current()
}

func (s *parseState) Text(value string) schema.Node {
	return s.engine.schema.Text(value, s.marks.current()...)
}

func (s *parseState) checkContext() error {
	if s.ctx == nil {
		return nil
	}
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("parse canceled: %w", err)
	}

	return nil
}

func (s *parseState) Warn(warnType markup.WarningType, nodeType, message string) {
	*s.warnings = append(*s.warnings, markup.Warning{
		Type:     warnType,
		NodeType: nodeType,
		Message:  message,
	})
}

func (s *parseState) BlockChildren(parent ast.Node) ([]schema.Node, error) {
	top := s.topLevel && parent.Kind() == ast.KindDocument
	var content []schema.Node
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		if err := s.checkContext(); err != nil {
			return nil, err
		}
		converted, err := s.convert(child)
		if err != nil {
			return nil, err
		}
		if top {
			converted = s.engine.attachRawMarkup(converted, child, s.source)
		}
		content = append(content, converted...)
	}

	return content, nil
}

func (s *parseState) InlineChildren(parent ast.Node) ([]schema.Node, error) {
	var content []schema.Node
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		converted, err := s.convert(child)
		if err != nil {
			return nil, err
		}
		for _, node := range converted {
			content = appendInlineNode(content, node)
		}
	}

	return content, nil
}

func (s *parseState) WithMark(mark schema.Mark, fn func() ([]schema.Node, error)) ([]schema.Node, error) {
	s.marks.push(mark)
	defer s.marks.popByType(mark.Type)
	return fn()
}

func (s *parseState) ParseFragment(markupText string) ([]schema.Node, error) {
	fragment := s.fork([]byte(markupText))
	root := s.engine.parseTree(fragment.source, s.directive)
	return fragment.BlockChildren(root)
}

func (s *parseState) ParseInlineFragment(markupText string) ([]schema.Node, error) {
	fragment := s.fork([]byte(markupText))
	root := s.engine.parseTree(fragment.source, s.directive)
	first := root.FirstChild()
	if root.ChildCount() == 1 && first.Kind() == ast.KindParagraph {
		return fragment.InlineChildren(first)
	}
	trimmed := strings.TrimSpace(markupText)
	if trimmed == "" {
		return nil, nil
	}

	return []schema.Node{fragment.Text(trimmed)}, nil
}

func (s *parseState) fork(source []byte) *parseState {
	return &parseState{
		engine:    s.engine,
		ctx:       s.ctx,
		source:    source,
		directive: s.directive,
		marks:     &markStack{},
		warnings:  s.warnings,
	}
}

// convert dispatches a token to the first handler of its kind that accepts it.
func (s *parseState) convert(node ast.Node) ([]schema.Node, error) {
	for _, handler := range s.engine.registry.ParseHandlers(node.Kind()) {
		if handler.Match != nil && !handler.Match(node, s) {
			continue
		}
		nodes, err := handler.Parse(node, s)
		if err != nil {
			return nil, fmt.Errorf("%s handler for %s: %w", handler.Unit, node.Kind(), err)
		}
		return nodes, nil
	}

	return s.convertUnknown(node)
}

func (s *parseState) convertUnknown(node ast.Node) ([]schema.Node, error) {
	kind := node.Kind().String()
	if node.Type() != ast.TypeInline {
		textValue := strings.TrimSpace(s.rawBlockText(node))
		if textValue == "" {
			return nil, nil
		}
		s.Warn(markup.WarningUnknownNode, kind, fmt.Sprintf("unsupported markup block: %s", kind))
		return []schema.Node{{
			Type:    markup.ParagraphNodeName,
			Content: []schema.Node{s.Text(textValue)},
		}}, nil
	}

	if node.HasChildren() {
		s.Warn(markup.WarningUnknownNode, kind, fmt.Sprintf("unsupported inline markup: %s, keeping its text", kind))
		return s.InlineChildren(node)
	}

	textValue := s.rawInlineText(node)
	s.Warn(markup.WarningUnknownNode, kind, fmt.Sprintf("unsupported inline markup: %s", kind))
	if textValue == "" {
		return nil, nil
	}

	return []schema.Node{s.Text(textValue)}, nil
}

func (s *parseState) rawBlockText(node ast.Node) string {
	if start, stop, ok := blockSpan(node, s.source); ok {
		return string(s.source[start:stop])
	}

	return string(node.Text(s.source))
}

func (s *parseState) rawInlineText(node ast.Node) string {
	switch typed := node.(type) {
	case *ast.RawHTML:
		var sb strings.Builder
		for i := 0; i < typed.Segments.Len(); i++ {
			segment := typed.Segments.At(i)
			sb.Write(segment.Value(s.source))
		}
		return sb.String()
	case *ast.Text:
		return string(typed.Segment.Value(s.source))
	}

	return string(node.Text(s.source))
}

// blockSpan returns the source range covering every line of a block token.
func blockSpan(node ast.Node, source []byte) (int, int, bool) {
	start, stop := -1, -1
	extend := func(from, to int) {
		if start < 0 || from < start {
			start = from
		}
		if to > stop {
			stop = to
		}
	}
	_ = ast.Walk(node, func(current ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if current.Type() == ast.TypeBlock {
			lines := current.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				extend(segment.Start, segment.Stop)
			}
		}
		if textNode, ok := current.(*ast.Text); ok {
			extend(textNode.Segment.Start, textNode.Segment.Stop)
		}
		return ast.WalkContinue, nil
	})
	if start < 0 || stop > len(source) {
		return 0, 0, false
	}
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	for stop < len(source) && source[stop] != '\n' {
		stop++
	}
	for stop > start && (source[stop-1] == '\n' || source[stop-1] == '\r') {
		stop--
	}

	return start, stop, true
}
