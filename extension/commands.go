package extension

import (
	"regexp"
	"strings"

	"github.com/rgonek/markdown-editor/schema"
)

func textblockAt(state EditorState) (schema.Node, *schema.NodeType, bool) {
	if state.Schema == nil || len(state.Selection.Path) == 0 {
		return schema.Node{}, nil, false
	}
	node, ok := NodeAt(state.Doc, state.Selection.Path)
	if !ok {
		return schema.Node{}, nil, false
	}
	nodeType, ok := state.Schema.NodeType(node.Type)
	if !ok || !nodeType.IsTextblock() {
		return schema.Node{}, nil, false
	}

	return node, nodeType, true
}

func replaceTextblock(state EditorState, block schema.Node) (EditorState, bool) {
	doc, ok := ReplaceAt(state.Doc, state.Selection.Path, block)
	if !ok {
		return state, false
	}
	state.Doc = doc
	return state, true
}

// childTypesWith returns the child types of parent with the child at index replaced.
func childTypesWith(parent schema.Node, index int, replacement ...string) []string {
	types := make([]string, 0, len(parent.Content)+len(replacement))
	for idx, child := range parent.Content {
		if idx == index {
			types = append(types, replacement...)
			continue
		}
		types = append(types, child.Type)
	}

	return types
}

func parentAllows(state EditorState, path []int, replacement ...string) bool {
	if len(path) == 0 {
		return false
	}
	parent, ok := NodeAt(state.Doc, path[:len(path)-1])
	if !ok {
		return false
	}
	parentType, ok := state.Schema.NodeType(parent.Type)
	if !ok {
		return false
	}

	return parentType.Content.Matches(childTypesWith(parent, path[len(path)-1], replacement...))
}

// ToggleMark toggles a mark over the selected range.
func ToggleMark(markType string, attrs map[string]interface{}) ActionFactory {
	return func(s *schema.Schema) Action {
		return &toggleMarkAction{markType: markType, attrs: attrs}
	}
}

type toggleMarkAction struct {
	markType string
	attrs    map[string]interface{}
}

func (a *toggleMarkAction) IsEnabled(state EditorState) bool {
	_, blockType, ok := textblockAt(state)
	return ok && !state.Selection.Empty() && blockType.AllowsMarkType(a.markType)
}

func (a *toggleMarkAction) IsActive(state EditorState) bool {
	block, _, ok := textblockAt(state)
	return ok && RangeHasMark(block.Content, state.Selection.From, state.Selection.To, a.markType)
}

func (a *toggleMarkAction) Run(state EditorState) (EditorState, bool) {
	if !a.IsEnabled(state) {
		return state, false
	}
	block, _, _ := textblockAt(state)
	if a.IsActive(state) {
		block.Content = RemoveMarkInRange(block.Content, state.Selection.From, state.Selection.To, a.markType)
		return replaceTextblock(state, block)
	}
	mark, err := state.Schema.Mark(a.markType, schema.CloneAttrs(a.attrs))
	if err != nil {
		return state, false
	}
	block.Content = AddMarkInRange(state.Schema, block.Content, state.Selection.From, state.Selection.To, mark)
	return replaceTextblock(state, block)
}

// SetBlockType turns the selected textblock into another textblock type. Running it on a
// block that already has the type and attrs turns it back into a paragraph.
func SetBlockType(nodeType string, attrs map[string]interface{}) ActionFactory {
	return func(s *schema.Schema) Action {
		return &setBlockTypeAction{nodeType: nodeType, attrs: attrs}
	}
}

type setBlockTypeAction struct {
	nodeType string
	attrs    map[string]interface{}
}

func (a *setBlockTypeAction) IsEnabled(state EditorState) bool {
	if _, _, ok := textblockAt(state); !ok {
		return false
	}

	return parentAllows(state, state.Selection.Path, a.nodeType)
}

func (a *setBlockTypeAction) IsActive(state EditorState) bool {
	block, _, ok := textblockAt(state)
	if !ok || block.Type != a.nodeType {
		return false
	}
	for key, value := range a.attrs {
		if !schema.AttrsEqual(map[string]interface{}{key: block.Attrs[key]}, map[string]interface{}{key: value}) {
			return false
		}
	}

	return true
}

func (a *setBlockTypeAction) Run(state EditorState) (EditorState, bool) {
	if !a.IsEnabled(state) {
		return state, false
	}
	block, _, _ := textblockAt(state)
	target, targetAttrs := a.nodeType, schema.CloneAttrs(a.attrs)
	if a.IsActive(state) && a.nodeType != "paragraph" {
		target, targetAttrs = "paragraph", nil
		if !parentAllows(state, state.Selection.Path, target) {
			return state, false
		}
	}
	converted, err := convertTextblock(state.Schema, block, target, targetAttrs)
	if err != nil {
		return state, false
	}

	return replaceTextblock(state, converted)
}

func convertTextblock(s *schema.Schema, block schema.Node, target string, attrs map[string]interface{}) (schema.Node, error) {
	targetType, ok := s.NodeType(target)
	if !ok {
		return schema.Node{}, &schema.CheckError{Type: target, Message: "node type is not in the schema"}
	}
	var content []schema.Node
	for _, child := range block.Content {
		if !targetType.Content.Allows(child.Type) {
			continue
		}
		child = child.Clone()
		var marks []schema.Mark
		for _, mark := range child.Marks {
			if targetType.AllowsMarkType(mark.Type) {
				marks = append(marks, mark)
			}
		}
		child.Marks = marks
		content = append(content, child)
	}

	return s.Node(target, attrs, implodeInline(explodeInline(content))...)
}

// WrapIn wraps the selected textblock in the given chain of node types, outermost first.
// When the block is already inside the outermost type, the wrapper is lifted instead.
func WrapIn(types ...string) ActionFactory {
	return func(s *schema.Schema) Action {
		return &wrapAction{types: types}
	}
}

type wrapAction struct {
	types []string
}

func (a *wrapAction) ancestor(state EditorState) ([]int, bool) {
	path := state.Selection.Path
	for depth := len(path) - 1; depth >= 1; depth-- {
		node, ok := NodeAt(state.Doc, path[:depth])
		if ok && node.Type == a.types[0] {
			return path[:depth], true
		}
	}

	return nil, false
}

func (a *wrapAction) IsEnabled(state EditorState) bool {
	if len(a.types) == 0 {
		return false
	}
	if _, _, ok := textblockAt(state); !ok {
		return false
	}
	if _, ok := a.ancestor(state); ok {
		return true
	}

	return parentAllows(state, state.Selection.Path, a.types[0])
}

func (a *wrapAction) IsActive(state EditorState) bool {
	_, ok := a.ancestor(state)
	return ok
}

func (a *wrapAction) Run(state EditorState) (EditorState, bool) {
	if !a.IsEnabled(state) {
		return state, false
	}
	if ancestorPath, ok := a.ancestor(state); ok {
		return a.lift(state, ancestorPath)
	}

	block, _, _ := textblockAt(state)
	wrapped := block
	for idx := len(a.types) - 1; idx >= 0; idx-- {
		node, err := state.Schema.Node(a.types[idx], nil, wrapped)
		if err != nil {
			return state, false
		}
		wrapped = node
	}
	doc, ok := ReplaceAt(state.Doc, state.Selection.Path, wrapped)
	if !ok {
		return state, false
	}
	state.Doc = doc
	state.Selection = state.Selection.Clone()
	for range a.types {
		state.Selection.Path = append(state.Selection.Path, 0)
	}

	return state, true
}

// lift replaces the wrapper at ancestorPath with the content found len(types) levels below it.
func (a *wrapAction) lift(state EditorState, ancestorPath []int) (EditorState, bool) {
	wrapper, _ := NodeAt(state.Doc, ancestorPath)
	selected := state.Selection.Path[len(ancestorPath):]

	items := []schema.Node{wrapper}
	target := 0
	for level := 0; level < len(a.types); level++ {
		var next []schema.Node
		nextTarget := 0
		for idx, item := range items {
			if idx == target && level < len(selected) {
				nextTarget = len(next) + selected[level]
			}
			next = append(next, item.Content...)
		}
		items = next
		target = nextTarget
	}

	doc, ok := ReplaceAt(state.Doc, ancestorPath, items...)
	if !ok {
		return state, false
	}
	state.Doc = doc
	state.Selection = state.Selection.Clone()
	lifted := append([]int(nil), ancestorPath...)
	lifted[len(lifted)-1] += target
	state.Selection.Path = append(lifted, selected[min(len(a.types), len(selected)):]...)
	return state, true
}

// InsertBlock inserts a block after the top-level block holding the selection.
func InsertBlock(build func(s *schema.Schema) (schema.Node, error)) ActionFactory {
	return func(s *schema.Schema) Action {
		return &insertBlockAction{build: build}
	}
}

type insertBlockAction struct {
	build func(s *schema.Schema) (schema.Node, error)
}

func (a *insertBlockAction) position(state EditorState) int {
	if len(state.Selection.Path) == 0 {
		return len(state.Doc.Content)
	}

	return min(state.Selection.Path[0]+1, len(state.Doc.Content))
}

func (a *insertBlockAction) IsEnabled(state EditorState) bool {
	if state.Schema == nil {
		return false
	}
	node, err := a.build(state.Schema)
	if err != nil {
		return false
	}
	docType, ok := state.Schema.NodeType(state.Doc.Type)
	if !ok {
		return false
	}
	pos := a.position(state)
	types := make([]string, 0, len(state.Doc.Content)+1)
	for idx, child := range state.Doc.Content {
		if idx == pos {
			types = append(types, node.Type)
		}
		types = append(types, child.Type)
	}
	if pos == len(state.Doc.Content) {
		types = append(types, node.Type)
	}

	return docType.Content.Matches(types)
}

func (a *insertBlockAction) IsActive(EditorState) bool {
	return false
}

func (a *insertBlockAction) Run(state EditorState) (EditorState, bool) {
	if !a.IsEnabled(state) {
		return state, false
	}
	node, _ := a.build(state.Schema)
	pos := a.position(state)
	doc := state.Doc
	content := make([]schema.Node, 0, len(doc.Content)+1)
	content = append(content, doc.Content[:pos]...)
	content = append(content, node)
	content = append(content, doc.Content[pos:]...)
	doc.Content = content
	state.Doc = doc

	selection := Selection{Path: []int{pos}}
	if inner, ok := firstTextblock(state.Schema, node, nil); ok {
		selection.Path = append(selection.Path, inner...)
	}
	state.Selection = selection
	return state, true
}

func firstTextblock(s *schema.Schema, node schema.Node, path []int) ([]int, bool) {
	if nodeType, ok := s.NodeType(node.Type); ok && nodeType.IsTextblock() {
		return path, true
	}
	for idx, child := range node.Content {
		if found, ok := firstTextblock(s, child, append(append([]int(nil), path...), idx)); ok {
			return found, true
		}
	}

	return nil, false
}

// InsertInline replaces the selection with an inline leaf node.
func InsertInline(build func(s *schema.Schema) (schema.Node, error)) ActionFactory {
	return func(s *schema.Schema) Action {
		return &insertInlineAction{build: build}
	}
}

type insertInlineAction struct {
	build func(s *schema.Schema) (schema.Node, error)
}

func (a *insertInlineAction) IsEnabled(state EditorState) bool {
	_, blockType, ok := textblockAt(state)
	if !ok {
		return false
	}
	node, err := a.build(state.Schema)
	return err == nil && blockType.Content.Allows(node.Type)
}

func (a *insertInlineAction) IsActive(EditorState) bool {
	return false
}

func (a *insertInlineAction) Run(state EditorState) (EditorState, bool) {
	if !a.IsEnabled(state) {
		return state, false
	}
	block, _, _ := textblockAt(state)
	node, _ := a.build(state.Schema)
	from, to := clampRange(InlineSize(block.Content), state.Selection.From, state.Selection.To)
	block.Content = InsertInlineNode(block.Content, from, to, node)
	next, ok := replaceTextblock(state, block)
	if !ok {
		return state, false
	}
	next.Selection = next.Selection.Clone()
	next.Selection.From, next.Selection.To = from+1, from+1
	return next, true
}

// MarkInputRule applies markType when text typed before the cursor is enclosed in open and
// close delimiters, e.g. `^b^`. ignoreBetween characters may not appear inside.
func MarkInputRule(open, close, ignoreBetween, markType string) InputRuleFactory {
	inner := "[^" + regexp.QuoteMeta(ignoreBetween) + "]+"
	if ignoreBetween == "" {
		inner = ".+?"
	}
	lead := "(?:^|[^" + regexp.QuoteMeta(ignoreBetween) + "])"
	if ignoreBetween == "" {
		lead = "(?:^|.)"
	}
	pattern := regexp.MustCompile(lead + "(" + regexp.QuoteMeta(open) + "(" + inner + ")" + regexp.QuoteMeta(close) + ")$")

	return func(s *schema.Schema) InputRule {
		return InputRule{
			Pattern: pattern,
			Handler: func(state EditorState, match []int) (EditorState, bool) {
				if len(match) < 6 {
					return state, false
				}
				block, blockType, ok := textblockAt(state)
				if !ok || !blockType.AllowsMarkType(markType) {
					return state, false
				}
				mark, err := s.Mark(markType, nil)
				if err != nil {
					return state, false
				}
				start, end, innerStart, innerEnd := match[2], match[3], match[4], match[5]
				content := ReplaceInlineRange(block.Content, innerEnd, end, "", MarksAt(block.Content, innerEnd))
				content = ReplaceInlineRange(content, start, innerStart, "", nil)
				innerLen := innerEnd - innerStart
				content = AddMarkInRange(s, content, start, start+innerLen, mark)
				block.Content = content

				next, ok := replaceTextblock(state, block)
				if !ok {
					return state, false
				}
				next.Selection = next.Selection.Clone()
				next.Selection.From, next.Selection.To = start+innerLen, start+innerLen
				return next, true
			},
		}
	}
}

// WrapSelection surrounds the selected markup with delimiters, or removes them when the
// selection is already wrapped.
func WrapSelection(open, close string) MarkupAction {
	return MarkupActionFunc(func(state MarkupState) (MarkupState, bool) {
		from, to := clampRange(len(state.Text), state.From, state.To)
		before, selected, after := state.Text[:from], state.Text[from:to], state.Text[to:]
		if strings.HasSuffix(before, open) && strings.HasPrefix(after, close) {
			return MarkupState{
				Text: before[:len(before)-len(open)] + selected + after[len(close):],
				From: from - len(open),
				To:   to - len(open),
			}, true
		}
		return MarkupState{
			Text: before + open + selected + close + after,
			From: from + len(open),
			To:   to + len(open),
		}, true
	})
}

// PrefixLines toggles a prefix on every line touched by the selection.
func PrefixLines(prefix string) MarkupAction {
	return MarkupActionFunc(func(state MarkupState) (MarkupState, bool) {
		from, to := clampRange(len(state.Text), state.From, state.To)
		start := strings.LastIndexByte(state.Text[:from], '\n') + 1
		end := len(state.Text)
		if idx := strings.IndexByte(state.Text[to:], '\n'); idx >= 0 {
			end = to + idx
		}
		lines := strings.Split(state.Text[start:end], "\n")
		all := true
		for _, line := range lines {
			if !strings.HasPrefix(line, prefix) {
				all = false
				break
			}
		}
		delta := 0
		for idx, line := range lines {
			if all {
				lines[idx] = strings.TrimPrefix(line, prefix)
				delta -= len(prefix)
			} else {
				lines[idx] = prefix + line
				delta += len(prefix)
			}
		}
		firstDelta := len(prefix)
		if all {
			firstDelta = -len(prefix)
		}
		return MarkupState{
			Text: state.Text[:start] + strings.Join(lines, "\n") + state.Text[end:],
			From: max(start, from+firstDelta),
			To:   max(start, to+delta),
		}, true
	})
}

// InsertMarkupBlock inserts a block of markup after the line holding the cursor, separated
// by blank lines.
func InsertMarkupBlock(block string) MarkupAction {
	return MarkupActionFunc(func(state MarkupState) (MarkupState, bool) {
		_, to := clampRange(len(state.Text), state.From, state.To)
		end := len(state.Text)
		if idx := strings.IndexByte(state.Text[to:], '\n'); idx >= 0 {
			end = to + idx
		}
		before := strings.TrimRight(state.Text[:end], "\n")
		after := strings.TrimLeft(state.Text[end:], "\n")
		prefix := ""
		if before != "" {
			prefix = "\n\n"
		}
		suffix := "\n"
		if after != "" {
			suffix = "\n\n"
		}
		cursor := len(before) + len(prefix) + len(block)
		return MarkupState{
			Text: before + prefix + block + suffix + after,
			From: cursor,
			To:   cursor,
		}, true
	})
}

func submatchText(content []schema.Node, match []int) []string {
	groups := make([]string, len(match)/2)
	for idx := range groups {
		if match[2*idx] < 0 {
			continue
		}
		groups[idx] = InlineText(content, match[2*idx], match[2*idx+1])
	}

	return groups
}

// TextblockTypeInputRule turns the textblock into nodeType when text typed at its start
// matches pattern. The matched text is removed; attrs may derive attributes from the groups.
func TextblockTypeInputRule(pattern, nodeType string, attrs func(groups []string) map[string]interface{}) InputRuleFactory {
	re := regexp.MustCompile(pattern)
	return func(s *schema.Schema) InputRule {
		return InputRule{
			Pattern: re,
			Handler: func(state EditorState, match []int) (EditorState, bool) {
				block, _, ok := textblockAt(state)
				if !ok || len(match) < 2 || match[0] != 0 {
					return state, false
				}
				if !parentAllows(state, state.Selection.Path, nodeType) {
					return state, false
				}
				var nodeAttrs map[string]interface{}
				if attrs != nil {
					nodeAttrs = attrs(submatchText(block.Content, match))
				}
				block.Content = ReplaceInlineRange(block.Content, match[0], match[1], "", nil)
				converted, err := convertTextblock(s, block, nodeType, nodeAttrs)
				if err != nil {
					return state, false
				}
				next, ok := replaceTextblock(state, converted)
				if !ok {
					return state, false
				}
				cursor := max(0, state.Selection.To-(match[1]-match[0]))
				next.Selection = next.Selection.Clone()
				next.Selection.From, next.Selection.To = cursor, cursor
				return next, true
			},
		}
	}
}

// WrappingInputRule wraps the textblock in types (outermost first) when text typed at its
// start matches pattern. attrs may derive attributes of the outermost wrapper from the groups.
func WrappingInputRule(pattern string, attrs func(groups []string) map[string]interface{}, types ...string) InputRuleFactory {
	re := regexp.MustCompile(pattern)
	return func(s *schema.Schema) InputRule {
		wrap := &wrapAction{types: types}
		return InputRule{
			Pattern: re,
			Handler: func(state EditorState, match []int) (EditorState, bool) {
				block, _, ok := textblockAt(state)
				if !ok || len(match) < 2 || match[0] != 0 || len(types) == 0 || wrap.IsActive(state) {
					return state, false
				}
				var wrapperAttrs map[string]interface{}
				if attrs != nil {
					wrapperAttrs = attrs(submatchText(block.Content, match))
				}
				block.Content = ReplaceInlineRange(block.Content, match[0], match[1], "", nil)
				stripped, ok := replaceTextblock(state, block)
				if !ok {
					return state, false
				}
				cursor := max(0, state.Selection.To-(match[1]-match[0]))
				stripped.Selection = stripped.Selection.Clone()
				stripped.Selection.From, stripped.Selection.To = cursor, cursor

				next, ok := wrap.Run(stripped)
				if !ok {
					return state, false
				}
				if len(wrapperAttrs) == 0 {
					return next, true
				}
				wrapperPath := next.Selection.Path[:len(next.Selection.Path)-len(types)]
				wrapper, _ := NodeAt(next.Doc, wrapperPath)
				merged := schema.CloneAttrs(wrapper.Attrs)
				if merged == nil {
					merged = map[string]interface{}{}
				}
				for key, value := range wrapperAttrs {
					merged[key] = value
				}
				wrapper.Attrs = merged
				doc, ok := ReplaceAt(next.Doc, wrapperPath, wrapper)
				if !ok {
					return state, false
				}
				next.Doc = doc
				return next, true
			},
		}
	}
}
