package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() Spec {
	return Spec{
		Nodes: []NodeSpec{
			{Name: "doc", Content: "block+"},
			{Name: "paragraph", Content: "inline*", Group: "block"},
			{Name: "heading", Content: "inline*", Group: "block", Attrs: map[string]AttributeSpec{"level": Attr(1)}},
			{Name: "code_block", Content: "text*", Group: "block", Code: true, Marks: StringPtr("")},
			{Name: "cut", Content: "cut_title cut_content", Group: "block"},
			{Name: "cut_title", Content: "inline*"},
			{Name: "cut_content", Content: "block+"},
			{Name: "video", Inline: true, Atom: true, Group: "inline", Attrs: map[string]AttributeSpec{
				"service": RequiredAttr(),
				"videoID": RequiredAttr(),
			}},
			{Name: "text", Group: "inline"},
		},
		Marks: []MarkSpec{
			{Name: "link", Attrs: map[string]AttributeSpec{"href": RequiredAttr()}},
			{Name: "bold"},
			{Name: "code", Excludes: StringPtr("_")},
			{Name: "sup", Excludes: StringPtr("sub")},
			{Name: "sub", Excludes: StringPtr("sup")},
		},
	}
}

func mustSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := New(testSpec())
	require.NoError(t, err)
	return s
}

func TestNewCompilesNodeTypes(t *testing.T) {
	s := mustSchema(t)

	paragraph, ok := s.NodeType("paragraph")
	require.True(t, ok)
	assert.True(t, paragraph.IsTextblock())
	assert.Equal(t, []string{"block"}, paragraph.Groups)
	assert.True(t, paragraph.AllowsMarkType("bold"))

	codeBlock, _ := s.NodeType("code_block")
	assert.False(t, codeBlock.AllowsMarkType("bold"))

	cut, _ := s.NodeType("cut")
	assert.False(t, cut.IsTextblock())
	assert.False(t, cut.AllowsMarkType("bold"))

	video, _ := s.NodeType("video")
	assert.True(t, video.IsInline())
	assert.True(t, video.IsLeaf())

	var names []string
	for _, nodeType := range s.NodeTypes() {
		names = append(names, nodeType.Name)
	}
	assert.Equal(t, []string{"doc", "paragraph", "heading", "code_block", "cut", "cut_title", "cut_content", "video", "text"}, names)
}

func TestNewRejectsInvalidSpecs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(spec *Spec)
		wantErr string
	}{
		{
			name:    "dangling group reference",
			mutate:  func(spec *Spec) { spec.Nodes[0].Content = "section+" },
			wantErr: `no node type or group "section" found`,
		},
		{
			name:    "duplicate node",
			mutate:  func(spec *Spec) { spec.Nodes = append(spec.Nodes, NodeSpec{Name: "paragraph"}) },
			wantErr: `duplicate node type "paragraph"`,
		},
		{
			name:    "missing top node",
			mutate:  func(spec *Spec) { spec.TopNode = "root" },
			wantErr: `missing its top node type "root"`,
		},
		{
			name: "missing text node",
			mutate: func(spec *Spec) {
				spec.Nodes = spec.Nodes[:len(spec.Nodes)-1]
			},
			wantErr: `needs a "text" type`,
		},
		{
			name:    "unknown mark in node marks",
			mutate:  func(spec *Spec) { spec.Nodes[1].Marks = StringPtr("bold italic") },
			wantErr: `unknown mark type or group "italic"`,
		},
		{
			name:    "unknown mark in excludes",
			mutate:  func(spec *Spec) { spec.Marks[3].Excludes = StringPtr("subscript") },
			wantErr: `unknown mark type or group "subscript" in excludes`,
		},
		{
			name:    "malformed expression",
			mutate:  func(spec *Spec) { spec.Nodes[0].Content = "(block | paragraph" },
			wantErr: "missing closing paren",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec()
			tt.mutate(&spec)
			s, err := New(spec)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, ErrInvalidSchema))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewJoinsAllErrors(t *testing.T) {
	spec := testSpec()
	spec.Nodes[0].Content = "missing+"
	spec.Nodes[1].Content = "other*"

	_, err := New(spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"missing"`)
	assert.Contains(t, err.Error(), `"other"`)
}

func TestContentMatch(t *testing.T) {
	resolve := func(name string) ([]string, bool) {
		switch name {
		case "block":
			return []string{"paragraph", "heading"}, true
		case "paragraph", "heading", "title", "item":
			return []string{name}, true
		}
		return nil, false
	}

	tests := []struct {
		expr  string
		seq   []string
		match bool
	}{
		{expr: "", seq: nil, match: true},
		{expr: "", seq: []string{"paragraph"}, match: false},
		{expr: "block+", seq: []string{"paragraph", "heading"}, match: true},
		{expr: "block+", seq: nil, match: false},
		{expr: "block*", seq: nil, match: true},
		{expr: "title block*", seq: []string{"title"}, match: true},
		{expr: "title block*", seq: []string{"paragraph"}, match: false},
		{expr: "title? paragraph", seq: []string{"paragraph"}, match: true},
		{expr: "(paragraph | heading) title", seq: []string{"heading", "title"}, match: true},
		{expr: "item{2}", seq: []string{"item", "item"}, match: true},
		{expr: "item{2}", seq: []string{"item"}, match: false},
		{expr: "item{2,}", seq: []string{"item", "item", "item"}, match: true},
		{expr: "item{1,2}", seq: []string{"item", "item", "item"}, match: false},
		{expr: "paragraph* heading", seq: []string{"paragraph", "paragraph", "heading"}, match: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			match, err := compileContent(tt.expr, resolve)
			require.NoError(t, err)
			assert.Equal(t, tt.match, match.Matches(tt.seq))
		})
	}
}

func TestContentMatchTypes(t *testing.T) {
	s := mustSchema(t)
	doc, _ := s.NodeType("doc")
	assert.Equal(t, []string{"paragraph", "heading", "code_block", "cut"}, doc.Content.Types())
	assert.True(t, doc.Content.Allows("cut"))
	assert.False(t, doc.Content.Allows("text"))
}

func TestCheck(t *testing.T) {
	s := mustSchema(t)
	bold := Mark{Type: "bold"}

	valid := Node{Type: "doc", Content: []Node{
		{Type: "paragraph", Content: []Node{
			{Type: "text", Text: "hello ", Marks: []Mark{bold}},
			{Type: "video", Attrs: map[string]interface{}{"service": "youtube", "videoID": "abc"}},
		}},
		{Type: "cut", Content: []Node{
			{Type: "cut_title", Content: []Node{{Type: "text", Text: "Title"}}},
			{Type: "cut_content", Content: []Node{{Type: "paragraph"}}},
		}},
	}}
	require.NoError(t, s.Check(valid))

	tests := []struct {
		name    string
		doc     Node
		wantErr string
	}{
		{
			name:    "wrong root",
			doc:     Node{Type: "paragraph"},
			wantErr: `root must be "doc"`,
		},
		{
			name:    "empty doc",
			doc:     Node{Type: "doc"},
			wantErr: "does not match",
		},
		{
			name:    "unknown node",
			doc:     Node{Type: "doc", Content: []Node{{Type: "table"}}},
			wantErr: "node type is not in the schema",
		},
		{
			name: "missing required attr",
			doc: Node{Type: "doc", Content: []Node{{Type: "paragraph", Content: []Node{
				{Type: "video", Attrs: map[string]interface{}{"service": "youtube"}},
			}}}},
			wantErr: `missing required attribute "videoID"`,
		},
		{
			name: "mark not allowed",
			doc: Node{Type: "doc", Content: []Node{{Type: "code_block", Content: []Node{
				{Type: "text", Text: "x", Marks: []Mark{bold}},
			}}}},
			wantErr: `mark "bold" is not allowed in "code_block"`,
		},
		{
			name: "cut without title",
			doc: Node{Type: "doc", Content: []Node{{Type: "cut", Content: []Node{
				{Type: "cut_content", Content: []Node{{Type: "paragraph"}}},
			}}}},
			wantErr: "/0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Check(tt.doc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCheckUnknownTypeIsWrapped(t *testing.T) {
	s := mustSchema(t)
	err := s.Check(Node{Type: "doc", Content: []Node{{Type: "paragraph", Content: []Node{
		{Type: "text", Text: "x", Marks: []Mark{{Type: "blink"}}},
	}}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)

	err = s.Check(Node{Type: "doc", Content: []Node{{Type: "paragraph"}, {Type: "table"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
	var checkErr *CheckError
	require.ErrorAs(t, err, &checkErr)
	assert.Equal(t, []int{1}, checkErr.Path)
	assert.Equal(t, "table", checkErr.Type)

	err = s.CheckFragment("paragraph", []Node{{Type: "emoji"}})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestConstructorsFillDefaults(t *testing.T) {
	s := mustSchema(t)

	heading, err := s.Node("heading", nil, s.Text("Title"))
	require.NoError(t, err)
	assert.Equal(t, 1, heading.Attrs["level"])
	assert.Len(t, heading.Content, 1)

	_, err = s.Node("video", map[string]interface{}{"service": "youtube"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "videoID")

	_, err = s.Mark("link", nil)
	require.Error(t, err)

	link, err := s.Mark("link", map[string]interface{}{"href": "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", link.GetStringAttr("href", ""))

	_, err = s.Node("missing", nil)
	require.Error(t, err)
}

func TestMarkSets(t *testing.T) {
	s := mustSchema(t)

	set := s.NormalizeMarks([]Mark{{Type: "bold"}, {Type: "link", Attrs: map[string]interface{}{"href": "x"}}})
	require.Len(t, set, 2)
	assert.Equal(t, "link", set[0].Type)
	assert.Equal(t, "bold", set[1].Type)

	set = s.AddMark(set, Mark{Type: "bold"})
	assert.Len(t, set, 2)

	set = s.AddMark(set, Mark{Type: "sup"})
	set = s.AddMark(set, Mark{Type: "sub"})
	assert.True(t, HasMark(set, "sub"))
	assert.False(t, HasMark(set, "sup"))

	set = s.AddMark(set, Mark{Type: "code"})
	assert.Equal(t, []Mark{{Type: "code"}}, set)

	assert.Empty(t, RemoveMark(set, "code"))
}
