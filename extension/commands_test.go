package extension

import (
	"testing"

	"github.com/rgonek/markdown-editor/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(schema.Spec{
		Nodes: []schema.NodeSpec{
			{Name: "doc", Content: "block+"},
			{Name: "paragraph", Content: "inline*", Group: "block"},
			{Name: "heading", Content: "inline*", Group: "block", Attrs: map[string]schema.AttributeSpec{"level": schema.Attr(1)}},
			{Name: "code_block", Content: "text*", Group: "block", Marks: schema.StringPtr("")},
			{Name: "blockquote", Content: "block+", Group: "block"},
			{Name: "bullet_list", Content: "list_item+", Group: "block"},
			{Name: "list_item", Content: "paragraph block*"},
			{Name: "horizontal_rule", Group: "block"},
			{Name: "video", Inline: true, Atom: true, Group: "inline", Attrs: map[string]schema.AttributeSpec{
				"service": schema.RequiredAttr(), "videoID": schema.RequiredAttr(),
			}},
			{Name: "text", Group: "inline"},
		},
		Marks: []schema.MarkSpec{{Name: "bold"}, {Name: "sup"}},
	})
	require.NoError(t, err)
	return s
}

func paragraphDoc(text string) schema.Node {
	return schema.Node{Type: "doc", Content: []schema.Node{
		{Type: "paragraph", Content: []schema.Node{{Type: "text", Text: text}}},
	}}
}

func TestToggleMark(t *testing.T) {
	s := commandSchema(t)
	action := ToggleMark("bold", nil)(s)
	state := EditorState{Schema: s, Doc: paragraphDoc("hello world"), Selection: Selection{Path: []int{0}, From: 0, To: 5}}

	require.True(t, action.IsEnabled(state))
	assert.False(t, action.IsActive(state))

	next, ok := action.Run(state)
	require.True(t, ok)
	assert.Equal(t, []schema.Node{
		{Type: "text", Text: "hello", Marks: []schema.Mark{{Type: "bold"}}},
		{Type: "text", Text: " world"},
	}, next.Doc.Content[0].Content)
	assert.True(t, action.IsActive(next))
	require.NoError(t, s.Check(next.Doc))

	back, ok := action.Run(next)
	require.True(t, ok)
	assert.True(t, schema.Equal(state.Doc, back.Doc))

	assert.False(t, action.IsEnabled(EditorState{Schema: s, Doc: state.Doc, Selection: Selection{Path: []int{0}, From: 2, To: 2}}))
}

func TestToggleMarkDisabledInCodeBlock(t *testing.T) {
	s := commandSchema(t)
	doc := schema.Node{Type: "doc", Content: []schema.Node{{Type: "code_block", Content: []schema.Node{{Type: "text", Text: "x := 1"}}}}}
	action := ToggleMark("bold", nil)(s)
	_, ok := action.Run(EditorState{Schema: s, Doc: doc, Selection: Selection{Path: []int{0}, From: 0, To: 1}})
	assert.False(t, ok)
}

func TestSetBlockType(t *testing.T) {
	s := commandSchema(t)
	action := SetBlockType("heading", map[string]interface{}{"level": 2})(s)
	state := EditorState{Schema: s, Doc: paragraphDoc("Title"), Selection: Selection{Path: []int{0}}}

	next, ok := action.Run(state)
	require.True(t, ok)
	assert.Equal(t, "heading", next.Doc.Content[0].Type)
	assert.Equal(t, 2, next.Doc.Content[0].GetIntAttr("level", 0))
	assert.True(t, action.IsActive(next))

	back, ok := action.Run(next)
	require.True(t, ok)
	assert.Equal(t, "paragraph", back.Doc.Content[0].Type)
}

func TestSetBlockTypeDropsDisallowedMarks(t *testing.T) {
	s := commandSchema(t)
	doc := schema.Node{Type: "doc", Content: []schema.Node{{Type: "paragraph", Content: []schema.Node{
		{Type: "text", Text: "a", Marks: []schema.Mark{{Type: "bold"}}},
		{Type: "text", Text: "b"},
	}}}}
	next, ok := SetBlockType("code_block", nil)(s).Run(EditorState{Schema: s, Doc: doc, Selection: Selection{Path: []int{0}}})
	require.True(t, ok)
	assert.Equal(t, []schema.Node{{Type: "text", Text: "ab"}}, next.Doc.Content[0].Content)
	require.NoError(t, s.Check(next.Doc))
}

func TestWrapInAndLift(t *testing.T) {
	s := commandSchema(t)
	doc := schema.Node{Type: "doc", Content: []schema.Node{
		{Type: "paragraph", Content: []schema.Node{{Type: "text", Text: "one"}}},
		{Type: "paragraph", Content: []schema.Node{{Type: "text", Text: "two"}}},
	}}

	quote := WrapIn("blockquote")(s)
	state := EditorState{Schema: s, Doc: doc, Selection: Selection{Path: []int{1}}}
	wrapped, ok := quote.Run(state)
	require.True(t, ok)
	assert.Equal(t, "blockquote", wrapped.Doc.Content[1].Type)
	assert.Equal(t, []int{1, 0}, wrapped.Selection.Path)
	assert.True(t, quote.IsActive(wrapped))
	require.NoError(t, s.Check(wrapped.Doc))

	lifted, ok := quote.Run(wrapped)
	require.True(t, ok)
	assert.True(t, schema.Equal(doc, lifted.Doc))
	assert.Equal(t, []int{1}, lifted.Selection.Path)

	list := WrapIn("bullet_list", "list_item")(s)
	listed, ok := list.Run(state)
	require.True(t, ok)
	assert.Equal(t, []int{1, 0, 0}, listed.Selection.Path)
	require.NoError(t, s.Check(listed.Doc))

	unlisted, ok := list.Run(listed)
	require.True(t, ok)
	assert.True(t, schema.Equal(doc, unlisted.Doc))
	assert.Equal(t, []int{1}, unlisted.Selection.Path)
}

func TestInsertBlockAndInline(t *testing.T) {
	s := commandSchema(t)
	state := EditorState{Schema: s, Doc: paragraphDoc("ab"), Selection: Selection{Path: []int{0}, From: 1, To: 1}}

	hr := InsertBlock(func(s *schema.Schema) (schema.Node, error) {
		return s.Node("horizontal_rule", nil)
	})(s)
	next, ok := hr.Run(state)
	require.True(t, ok)
	require.Len(t, next.Doc.Content, 2)
	assert.Equal(t, "horizontal_rule", next.Doc.Content[1].Type)

	video := InsertInline(func(s *schema.Schema) (schema.Node, error) {
		return s.Node("video", map[string]interface{}{"service": "youtube", "videoID": "id"})
	})(s)
	next, ok = video.Run(state)
	require.True(t, ok)
	content := next.Doc.Content[0].Content
	require.Len(t, content, 3)
	assert.Equal(t, "video", content[1].Type)
	assert.Equal(t, 2, next.Selection.From)
	assert.Equal(t, "a\uFFFCb", InlineText(content, 0, 3))
}

func TestMarkInputRule(t *testing.T) {
	s := commandSchema(t)
	rule := MarkInputRule("^", "^", "^", "sup")(s)

	text := "a^b^"
	loc := rule.Pattern.FindStringSubmatchIndex(text)
	require.NotNil(t, loc)

	state := EditorState{Schema: s, Doc: paragraphDoc(text), Selection: Selection{Path: []int{0}, From: 4, To: 4}}
	next, ok := rule.Handler(state, loc)
	require.True(t, ok)
	assert.Equal(t, []schema.Node{
		{Type: "text", Text: "a"},
		{Type: "text", Text: "b", Marks: []schema.Mark{{Type: "sup"}}},
	}, next.Doc.Content[0].Content)
	assert.Equal(t, 2, next.Selection.From)

	assert.Nil(t, rule.Pattern.FindStringSubmatchIndex("a^^"))
	assert.Nil(t, rule.Pattern.FindStringSubmatchIndex("a^b^ "))
}

func TestMarkupActions(t *testing.T) {
	wrap := WrapSelection("^", "^")
	next, ok := wrap.Run(MarkupState{Text: "abc", From: 1, To: 2})
	require.True(t, ok)
	assert.Equal(t, MarkupState{Text: "a^b^c", From: 2, To: 3}, next)

	back, ok := wrap.Run(next)
	require.True(t, ok)
	assert.Equal(t, MarkupState{Text: "abc", From: 1, To: 2}, back)

	quote := PrefixLines("> ")
	quoted, ok := quote.Run(MarkupState{Text: "one\ntwo\nthree", From: 0, To: 5})
	require.True(t, ok)
	assert.Equal(t, "> one\n> two\nthree", quoted.Text)

	unquoted, ok := quote.Run(quoted)
	require.True(t, ok)
	assert.Equal(t, "one\ntwo\nthree", unquoted.Text)

	insert := InsertMarkupBlock("---")
	inserted, ok := insert.Run(MarkupState{Text: "para\nnext", From: 2, To: 2})
	require.True(t, ok)
	assert.Equal(t, "para\n\n---\n\nnext", inserted.Text)
	assert.Equal(t, len("para\n\n---"), inserted.From)
}

func TestTextblockTypeInputRule(t *testing.T) {
	s := commandSchema(t)
	rule := TextblockTypeInputRule(`^(#{1,3})\s$`, "heading", func(groups []string) map[string]interface{} {
		return map[string]interface{}{"level": len(groups[1])}
	})(s)

	text := "## "
	loc := rule.Pattern.FindStringSubmatchIndex(text)
	require.NotNil(t, loc)

	state := EditorState{Schema: s, Doc: paragraphDoc(text), Selection: Selection{Path: []int{0}, From: 3, To: 3}}
	next, ok := rule.Handler(state, loc)
	require.True(t, ok)

	heading := next.Doc.Content[0]
	assert.Equal(t, "heading", heading.Type)
	assert.Equal(t, 2, heading.GetIntAttr("level", 0))
	assert.Empty(t, heading.TextContent())
	assert.Equal(t, 0, next.Selection.From)

	assert.Nil(t, rule.Pattern.FindStringSubmatchIndex("#### "))
}

func TestWrappingInputRule(t *testing.T) {
	s := commandSchema(t)
	rule := WrappingInputRule(`^\s*([-+*])\s$`, func(groups []string) map[string]interface{} {
		return map[string]interface{}{"bullet": groups[1]}
	}, "bullet_list", "list_item")(s)

	text := "* "
	loc := rule.Pattern.FindStringSubmatchIndex(text)
	require.NotNil(t, loc)

	state := EditorState{Schema: s, Doc: paragraphDoc(text), Selection: Selection{Path: []int{0}, From: 2, To: 2}}
	next, ok := rule.Handler(state, loc)
	require.True(t, ok)

	list := next.Doc.Content[0]
	assert.Equal(t, "bullet_list", list.Type)
	assert.Equal(t, "*", list.GetStringAttr("bullet", ""))
	require.Len(t, list.Content, 1)
	assert.Equal(t, "list_item", list.Content[0].Type)
	assert.Empty(t, list.TextContent())
	assert.Equal(t, []int{0, 0, 0}, next.Selection.Path)
	require.NoError(t, s.Check(next.Doc))

	_, ok = rule.Handler(next, loc)
	assert.False(t, ok)
}

func TestWrappingInputRuleWithoutAttrs(t *testing.T) {
	s := commandSchema(t)
	rule := WrappingInputRule(`^\s*>\s$`, nil, "blockquote")(s)

	text := "> "
	state := EditorState{Schema: s, Doc: paragraphDoc(text), Selection: Selection{Path: []int{0}, From: 2, To: 2}}
	next, ok := rule.Handler(state, rule.Pattern.FindStringSubmatchIndex(text))
	require.True(t, ok)
	assert.Equal(t, "blockquote", next.Doc.Content[0].Type)
	assert.Equal(t, "paragraph", next.Doc.Content[0].Content[0].Type)
}

func TestHandleTextInput(t *testing.T) {
	s := commandSchema(t)
	rules := []InputRule{
		MarkInputRule("^", "^", "^", "sup")(s),
		WrappingInputRule(`^\s*>\s$`, nil, "blockquote")(s),
	}

	state := EditorState{Schema: s, Doc: paragraphDoc("a^b"), Selection: Selection{Path: []int{0}, From: 3, To: 3}}
	next, ok := HandleTextInput(state, "^", rules)
	require.True(t, ok)
	assert.Equal(t, []schema.Node{
		{Type: "text", Text: "a"},
		{Type: "text", Text: "b", Marks: []schema.Mark{{Type: "sup"}}},
	}, next.Doc.Content[0].Content)

	state = EditorState{Schema: s, Doc: paragraphDoc(">"), Selection: Selection{Path: []int{0}, From: 1, To: 1}}
	next, ok = HandleTextInput(state, " ", rules)
	require.True(t, ok)
	assert.Equal(t, "blockquote", next.Doc.Content[0].Type)

	state = EditorState{Schema: s, Doc: paragraphDoc("héllo"), Selection: Selection{Path: []int{0}, From: 5, To: 5}}
	next, ok = HandleTextInput(state, "!", rules)
	require.True(t, ok)
	assert.Equal(t, "héllo!", next.Doc.TextContent())
	assert.Equal(t, 6, next.Selection.From)
}

func TestInputRulesSkipCodeBlocks(t *testing.T) {
	s := commandSchema(t)
	rules := []InputRule{MarkInputRule("^", "^", "^", "sup")(s)}
	doc := schema.Node{Type: "doc", Content: []schema.Node{
		{Type: "code_block", Content: []schema.Node{{Type: "text", Text: "a^b"}}},
	}}
	state := EditorState{Schema: s, Doc: doc, Selection: Selection{Path: []int{0}, From: 3, To: 3}}

	next, ok := HandleTextInput(state, "^", rules)
	require.True(t, ok)
	assert.Equal(t, "a^b^", next.Doc.TextContent())

	_, ok = HandleTextInput(EditorState{Schema: s, Doc: doc, Selection: Selection{Path: []int{5}}}, "x", rules)
	assert.False(t, ok)
}
