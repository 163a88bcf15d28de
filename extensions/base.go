package extensions

import (
	"strings"

	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark/ast"
	"golang.org/x/net/html"
)

const (
	nodeDoc       = schema.DocNodeName
	nodeText      = schema.TextNodeName
	nodeParagraph = markup.ParagraphNodeName
	nodeHardBreak = markup.HardBreakNodeName

	nbsp = "\u00a0"
)

// Base declares the document, paragraph, text and hard break nodes every preset needs.
func Base() extension.Unit {
	return extension.Unit{
		Name:  "base",
		Apply: applyBase,
	}
}

func applyBase(b *extension.Builder, _ extension.Options) error {
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{Name: nodeDoc, Content: "block+"},
	})
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:     nodeParagraph,
			Content:  "inline*",
			Group:    "block",
			ParseDOM: []schema.DOMRule{{Selector: "p"}},
			ToDOM: func(schema.Node) schema.DOMOutput {
				return schema.Hole(schema.Elem("p", nil))
			},
		},
		FromMarkup: []markup.ParseHandler{
			{Kind: ast.KindParagraph, Parse: parseParagraph},
			{Kind: ast.KindTextBlock, Parse: parseParagraph},
		},
		ToMarkup: serializeParagraph,
	})
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{Name: nodeText, Group: "inline"},
		FromMarkup: []markup.ParseHandler{
			{Kind: ast.KindText, Parse: parseText},
			{Kind: ast.KindString, Parse: parseString},
		},
		ToMarkup: func(state markup.SerializerState, node, _ schema.Node, _ int) error {
			state.Text(node.Text, true)
			return nil
		},
	})
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:       nodeHardBreak,
			Inline:     true,
			Group:      "inline",
			Selectable: false,
			ParseDOM:   []schema.DOMRule{{Selector: "br"}},
			ToDOM: func(schema.Node) schema.DOMOutput {
				return schema.Leaf(schema.Elem("br", nil))
			},
		},
		ToMarkup: serializeHardBreak,
	})
	b.AddKeymap("Shift-Enter", "hardBreak")
	b.AddAction("hardBreak", extension.InsertInline(func(s *schema.Schema) (schema.Node, error) {
		return s.Node(nodeHardBreak, nil)
	}))
	return nil
}

func parseParagraph(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	content, err := state.InlineChildren(node)
	if err != nil {
		return nil, err
	}
	if state.PreserveEmptyRows() && len(content) == 1 && content[0].IsText() && strings.TrimSpace(content[0].Text) == "" && strings.Contains(content[0].Text, nbsp) {
		content = nil
	}

	return []schema.Node{{Type: nodeParagraph, Content: content}}, nil
}

func serializeParagraph(state markup.SerializerState, node, _ schema.Node, _ int) error {
	if len(node.Content) == 0 && state.PreserveEmptyRows() {
		state.Write("&nbsp;")
		state.CloseBlock(node)
		return nil
	}
	if err := state.RenderInline(node); err != nil {
		return err
	}
	state.CloseBlock(node)
	return nil
}

func parseText(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	typed := node.(*ast.Text)
	var content []schema.Node
	if value := markup.LiteralText(typed.Segment.Value(state.Source())); value != "" {
		content = append(content, state.Text(value))
	}
	if typed.HardLineBreak() {
		content = append(content, schema.Node{Type: nodeHardBreak, Marks: state.CurrentMarks()})
	} else if typed.SoftLineBreak() {
		content = append(content, state.Text("\n"))
	}

	return content, nil
}

func parseString(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	typed := node.(*ast.String)
	if len(typed.Value) == 0 {
		return nil, nil
	}

	return []schema.Node{state.Text(string(typed.Value))}, nil
}

// serializeHardBreak writes a backslash break unless only hard breaks follow.
func serializeHardBreak(state markup.SerializerState, node, parent schema.Node, index int) error {
	for i := index + 1; i < len(parent.Content); i++ {
		if parent.Content[i].Type != node.Type {
			state.Write("\\\n")
			return nil
		}
	}

	return nil
}

func attrValue(el *html.Node, key string) string {
	value, _ := schema.AttrString(el, key)
	return value
}
