package transform

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
)

var trailingBangPattern = regexp.MustCompile(`(^|[^\\])!$`)

type serializerState struct {
	engine    *Engine
	ctx       context.Context
	directive *directive.Context
	warnings  *[]markup.Warning

	out          []byte
	delim        string
	closed       bool
	closedNode   schema.Node
	atBlockStart bool
	inTightList  bool
	extraEscape  string

	missingMarks map[string]bool
}

var _ markup.SerializerState = (*serializerState)(nil)

// snapshot is the part of the writer restored when a node serializer fails.
type snapshot struct {
	outLen       int
	delim        string
	closed       bool
	closedNode   schema.Node
	atBlockStart bool
	inTightList  bool
	extraEscape  string
}

func (s *serializerState) snapshot() snapshot {
	return snapshot{
		outLen:       len(s.out),
		delim:        s.delim,
		closed:       s.closed,
		closedNode:   s.closedNode,
		atBlockStart: s.atBlockStart,
		inTightList:  s.inTightList,
		extraEscape:  s.extraEscape,
	}
}

func (s *serializerState) restore(snap snapshot) {
	s.out = s.out[:snap.outLen]
	s.delim = snap.delim
	s.closed = snap.closed
	s.closedNode = snap.closedNode
	s.atBlockStart = snap.atBlockStart
	s.inTightList = snap.inTightList
	s.extraEscape = snap.extraEscape
}

func (s *serializerState) Context() context.Context {
	return s.ctx
}

func (s *serializerState) Schema() *schema.Schema {
	return s.engine.schema
}

func (s *serializerState) Directive() *directive.Context {
	return s.directive
}

func (s *serializerState) PreserveEmptyRows() bool {
	return s.engine.options.PreserveEmptyRows
}

func (s *serializerState) checkContext() error {
	if s.ctx == nil {
		return nil
	}
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("serialize canceled: %w", err)
	}

	return nil
}

func (s *serializerState) Warn(warnType markup.WarningType, nodeType, message string) {
	*s.warnings = append(*s.warnings, markup.Warning{
		Type:     warnType,
		NodeType: nodeType,
		Message:  message,
	})
}

func (s *serializerState) AtBlank() bool {
	return len(s.out) == 0 || s.out[len(s.out)-1] == '\n'
}

func (s *serializerState) EnsureNewLine() {
	if !s.AtBlank() {
		s.out = append(s.out, '\n')
	}
}

func (s *serializerState) FlushClose(size int) {
	if !s.closed {
		return
	}
	if !s.AtBlank() {
		s.out = append(s.out, '\n')
	}
	if size > 1 {
		delimMin := strings.TrimRightFunc(s.delim, unicode.IsSpace)
		for i := 1; i < size; i++ {
			s.out = append(s.out, delimMin...)
			s.out = append(s.out, '\n')
		}
	}
	s.closed = false
}

func (s *serializerState) CloseBlock(node schema.Node) {
	s.closed = true
	s.closedNode = node
}

func (s *serializerState) Write(content string) {
	s.FlushClose(2)
	if s.delim != "" && s.AtBlank() {
		s.out = append(s.out, s.delim...)
	}
	s.out = append(s.out, content...)
}

func (s *serializerState) WrapBlock(delim, firstDelim string, node schema.Node, fn func() error) error {
	old := s.delim
	if firstDelim == "" {
		firstDelim = delim
	}
	s.Write(firstDelim)
	s.delim += delim
	err := fn()
	s.delim = old
	s.CloseBlock(node)
	return err
}

func (s *serializerState) Esc(text string, startOfLine bool) string {
	text = s.engine.options.Escape.Escape(text, startOfLine)
	if s.extraEscape == "" {
		return text
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\\' && i+1 < len(text) {
			b.WriteByte(c)
			b.WriteByte(text[i+1])
			i++
			continue
		}
		if strings.IndexByte(s.extraEscape, c) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

// WithEscapedChars runs fn with chars added to the escaped set.
func (s *serializerState) WithEscapedChars(chars string, fn func() error) error {
	previous := s.extraEscape
	s.extraEscape += chars
	defer func() { s.extraEscape = previous }()
	return fn()
}

// Text writes text line by line. Lines written at the start of a markup line are escaped with
// the start-of-line pattern too.
func (s *serializerState) Text(text string, escape bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		startOfLine := s.atBlockStart || i > 0 || s.AtBlank()
		s.Write("")
		if !escape && strings.HasPrefix(line, "[") && trailingBangPattern.Match(s.out) {
			s.out = append(s.out[:len(s.out)-1], `\!`...)
		}
		if escape {
			s.out = append(s.out, s.Esc(line, startOfLine)...)
		} else {
			s.out = append(s.out, line...)
		}
		if i != len(lines)-1 {
			s.out = append(s.out, '\n')
		}
	}
}

func (s *serializerState) Render(node, parent schema.Node, index int) error {
	if err := s.checkContext(); err != nil {
		return err
	}
	if s.engine.options.PreserveMarkupFormatting && s.engine.isTracked(node.Type) {
		if raw, ok := preservedMarkup(node); ok {
			s.Write(raw)
			s.CloseBlock(node)
			return nil
		}
	}
	serializer, ok := s.engine.registry.NodeSerializer(node.Type)
	if !ok {
		return s.fallback(node, fmt.Errorf("no serializer for node type %q", node.Type))
	}
	snap := s.snapshot()
	if err := serializer(s, node, parent, index); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		s.restore(snap)
		return s.fallback(node, err)
	}

	return nil
}

// fallback writes the plain text of a node that could not be serialized.
func (s *serializerState) fallback(node schema.Node, cause error) error {
	s.Warn(markup.WarningSerializeFallback, node.Type, fmt.Sprintf("serialized as plain text: %v", cause))
	s.engine.logger.Warn("serializer fallback", "nodeType", node.Type, "error", cause)
	textValue := node.TextContent()
	nodeType, known := s.engine.schema.NodeType(node.Type)
	if known && nodeType.IsInline() {
		s.Text(textValue, true)
		return nil
	}
	if textValue == "" {
		return nil
	}
	s.Text(textValue, true)
	s.CloseBlock(node)
	return nil
}

func (s *serializerState) RenderContent(parent schema.Node) error {
	for i, child := range parent.Content {
		if err := s.Render(child, parent, i); err != nil {
			return err
		}
	}

	return nil
}

func (s *serializerState) RenderList(node schema.Node, delim string, firstDelim func(index int) string) error {
	if s.closed && s.closedNode.Type == node.Type {
		s.FlushClose(3)
	} else if s.inTightList {
		s.FlushClose(1)
	}

	tight, _ := node.Attrs["tight"].(bool)
	prevTight := s.inTightList
	s.inTightList = tight
	defer func() { s.inTightList = prevTight }()

	for i, child := range node.Content {
		if i > 0 && tight {
			s.FlushClose(1)
		}
		index := i
		item := child
		if err := s.WrapBlock(delim, firstDelim(index), node, func() error {
			return s.Render(item, node, index)
		}); err != nil {
			return err
		}
	}

	return nil
}

func (s *serializerState) markInfo(mark schema.Mark) markup.MarkSerializer {
	info, ok := s.engine.registry.MarkSerializer(mark.Type)
	if !ok {
		if !s.missingMarks[mark.Type] {
			s.missingMarks[mark.Type] = true
			s.Warn(markup.WarningUnknownMark, mark.Type, fmt.Sprintf("no serializer for mark %q, writing its text only", mark.Type))
		}
		return markup.MarkSerializer{}
	}

	return info
}

func (s *serializerState) markString(mark schema.Mark, open bool, parent schema.Node, index int) string {
	info := s.markInfo(mark)
	fn := info.Close
	if open {
		fn = info.Open
	}
	if fn == nil {
		return ""
	}

	return fn(s, mark, parent, index)
}

func containsMark(set []schema.Mark, mark schema.Mark) bool {
	for _, candidate := range set {
		if candidate.Eq(mark) {
			return true
		}
	}

	return false
}

func withText(node schema.Node, text string) *schema.Node {
	copied := node
	copied.Text = text
	return &copied
}

// RenderInline writes the inline content of a textblock. Marks stay open across adjacent
// nodes that share them, mixable marks are reordered to keep the longest common prefix open,
// and whitespace at the edge of whitespace-expelling marks is moved outside the delimiters.
func (s *serializerState) RenderInline(parent schema.Node) error {
	s.atBlockStart = true
	var active []schema.Mark
	trailing := ""

	progress := func(node *schema.Node, index int) error {
		var marks []schema.Mark
		if node != nil {
			marks = node.Marks
		}

		// A hard break keeps only the marks that continue past it.
		if node != nil && node.Type == markup.HardBreakNodeName {
			var kept []schema.Mark
			for _, mark := range marks {
				if index+1 >= len(parent.Content) {
					continue
				}
				next := parent.Content[index+1]
				if !containsMark(next.Marks, mark) {
					continue
				}
				if next.IsText() && strings.TrimSpace(next.Text) == "" {
					continue
				}
				kept = append(kept, mark)
			}
			marks = kept
		}

		marks = s.noEscapeLast(marks)

		leading := trailing
		trailing = ""

		if node != nil && node.IsText() && s.anyMark(marks, func(mark schema.Mark) bool {
			return s.markInfo(mark).ExpelEnclosingWhitespace && !containsMark(active, mark)
		}) {
			rest := strings.TrimLeftFunc(node.Text, unicode.IsSpace)
			lead := node.Text[:len(node.Text)-len(rest)]
			if lead != "" {
				leading += lead
				if rest != "" {
					node = withText(*node, rest)
				} else {
					node = nil
					marks = active
				}
			}
		}

		if node != nil && node.IsText() && s.anyMark(marks, func(mark schema.Mark) bool {
			if !s.markInfo(mark).ExpelEnclosingWhitespace {
				return false
			}
			return index == len(parent.Content)-1 || !containsMark(parent.Content[index+1].Marks, mark)
		}) {
			rest := strings.TrimRightFunc(node.Text, unicode.IsSpace)
			trail := node.Text[len(rest):]
			if trail != "" {
				trailing = trail
				if rest != "" {
					node = withText(*node, rest)
				} else {
					node = nil
					marks = active
				}
			}
		}

		var inner *schema.Mark
		if len(marks) > 0 {
			last := marks[len(marks)-1]
			inner = &last
		}
		noEsc := inner != nil && s.markInfo(*inner).NoEscape
		length := len(marks)
		if noEsc {
			length--
		}
		marks = reorderMixable(marks, active, length, func(mark schema.Mark) bool {
			return s.markInfo(mark).Mixable
		})

		keep := 0
		for keep < len(active) && keep < length && marks[keep].Eq(active[keep]) {
			keep++
		}
		for keep < len(active) {
			closing := active[len(active)-1]
			active = active[:len(active)-1]
			s.Text(s.markString(closing, false, parent, index), false)
		}

		if leading != "" {
			s.Text(leading, true)
		}

		if node != nil {
			for len(active) < length {
				opening := marks[len(active)]
				active = append(active, opening)
				s.Text(s.markString(opening, true, parent, index), false)
				s.atBlockStart = false
			}
			if noEsc && node.IsText() {
				s.Text(s.markString(*inner, true, parent, index)+node.Text+s.markString(*inner, false, parent, index+1), false)
			} else if err := s.Render(*node, parent, index); err != nil {
				return err
			}
			s.atBlockStart = false
		}
		return nil
	}

	for i := range parent.Content {
		child := parent.Content[i]
		if err := progress(&child, i); err != nil {
			return err
		}
	}
	if err := progress(nil, len(parent.Content)); err != nil {
		return err
	}
	s.atBlockStart = false
	return nil
}

// noEscapeLast moves a verbatim mark (code) to the innermost position.
func (s *serializerState) noEscapeLast(marks []schema.Mark) []schema.Mark {
	for i, mark := range marks {
		if i == len(marks)-1 || !s.markInfo(mark).NoEscape {
			continue
		}
		out := make([]schema.Mark, 0, len(marks))
		out = append(out, marks[:i]...)
		out = append(out, marks[i+1:]...)
		return append(out, mark)
	}

	return marks
}

func (s *serializerState) anyMark(marks []schema.Mark, pred func(schema.Mark) bool) bool {
	for _, mark := range marks {
		if pred(mark) {
			return true
		}
	}

	return false
}

// reorderMixable moves mixable marks that are already open to their open position, so they
// are not closed and reopened. Only the first length marks take part.
func reorderMixable(marks, active []schema.Mark, length int, mixable func(schema.Mark) bool) []schema.Mark {
	if length < 0 {
		length = 0
	}
	out := append([]schema.Mark(nil), marks[:length]...)
outer:
	for i := 0; i < length; i++ {
		mark := out[i]
		if !mixable(mark) {
			break
		}
		for j := 0; j < len(active); j++ {
			other := active[j]
			if !mixable(other) {
				break
			}
			if !mark.Eq(other) {
				continue
			}
			var reordered []schema.Mark
			bound := min(j, len(out))
			switch {
			case i > j:
				reordered = append(reordered, out[:j]...)
				reordered = append(reordered, mark)
				reordered = append(reordered, out[j:i]...)
				reordered = append(reordered, out[i+1:]...)
			case j > i:
				reordered = append(reordered, out[:i]...)
				reordered = append(reordered, out[i+1:bound]...)
				reordered = append(reordered, mark)
				reordered = append(reordered, out[bound:]...)
			default:
				continue outer
			}
			out = reordered
			continue outer
		}
	}

	return out
}
