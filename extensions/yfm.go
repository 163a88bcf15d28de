package extensions

import (
	"fmt"
	"strings"

	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark/ast"
	"golang.org/x/net/html"
)

const (
	nodeCut        = "yfm_cut"
	nodeCutTitle   = "yfm_cut_title"
	nodeCutContent = "yfm_cut_content"

	nodeNote      = "yfm_note"
	nodeNoteTitle = "yfm_note_title"

	// ExtYfmCut and ExtYfmNote are the directive setting keys of the containers.
	ExtYfmCut  = "yfm_cut"
	ExtYfmNote = "yfm_note"
)

// NoteTypes are the accepted note kinds; the first one is the default.
var NoteTypes = []string{"info", "tip", "warning", "alert"}

func containerMatch(name string) func(ast.Node, markup.ParseState) bool {
	return func(node ast.Node, _ markup.ParseState) bool {
		return node.(*ContainerNode).Name == name
	}
}

// writeSyntax resolves the syntax of a container and warns when an existing block changes form.
func writeSyntax(state markup.SerializerState, extKey string, node schema.Node) directive.Syntax {
	existing := directive.SyntaxOf(node.Attrs)
	syntax := state.Directive().SerializeAs(extKey, existing)
	if existing != "" && existing != syntax {
		state.Warn(markup.WarningDirectiveFallback, node.Type, fmt.Sprintf("%s syntax rewritten as %s", existing, syntax))
	}

	return syntax
}

// YfmCut declares collapsible cut blocks.
func YfmCut() extension.Unit {
	return extension.Unit{
		Name:     "yfm_cut",
		Requires: []string{"base"},
		Apply:    applyYfmCut,
	}
}

func applyYfmCut(b *extension.Builder, _ extension.Options) error {
	b.ConfigureMarkupParser(LiquidContainer("cut", ExtYfmCut))
	b.ConfigureMarkupParser(DirectiveContainer("cut", ExtYfmCut))

	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:     nodeCut,
			Content:  nodeCutTitle + " " + nodeCutContent,
			Group:    "block yfm-cut",
			Defining: true,
			Attrs: map[string]schema.AttributeSpec{
				"class":              schema.Attr("yfm-cut"),
				directive.AttrMarkup: schema.Attr(nil),
			},
			ParseDOM: []schema.DOMRule{{Selector: ".yfm-cut", GetAttrs: classAttrs}},
			ToDOM: func(node schema.Node) schema.DOMOutput {
				return schema.Hole(schema.Elem("div", map[string]string{"class": node.GetStringAttr("class", "yfm-cut")}))
			},
		},
		FromMarkup: []markup.ParseHandler{{
			Kind:  KindContainer,
			Match: containerMatch("cut"),
			Parse: parseCut,
		}},
		ToMarkup: serializeCut,
	})
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:     nodeCutTitle,
			Content:  "inline*",
			Group:    "yfm-cut",
			Defining: true,
			ParseDOM: []schema.DOMRule{{Selector: ".yfm-cut-title"}},
			ToDOM: func(schema.Node) schema.DOMOutput {
				return schema.Hole(schema.Elem("div", map[string]string{"class": "yfm-cut-title"}))
			},
			Placeholder: "Cut title",
		},
		ToMarkup: func(state markup.SerializerState, node, _ schema.Node, _ int) error {
			return state.RenderInline(node)
		},
	})
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:     nodeCutContent,
			Content:  "block+",
			Group:    "yfm-cut",
			ParseDOM: []schema.DOMRule{{Selector: ".yfm-cut-content"}},
			ToDOM: func(schema.Node) schema.DOMOutput {
				return schema.Hole(schema.Elem("div", map[string]string{"class": "yfm-cut-content"}))
			},
		},
		ToMarkup: func(state markup.SerializerState, node, _ schema.Node, _ int) error {
			return state.RenderContent(node)
		},
	})

	b.AddAction("cut", extension.InsertBlock(func(s *schema.Schema) (schema.Node, error) {
		title, err := s.Node(nodeCutTitle, nil)
		if err != nil {
			return schema.Node{}, err
		}
		paragraph, err := s.Node(nodeParagraph, nil)
		if err != nil {
			return schema.Node{}, err
		}
		content, err := s.Node(nodeCutContent, nil, paragraph)
		if err != nil {
			return schema.Node{}, err
		}
		return s.Node(nodeCut, nil, title, content)
	}))
	b.AddMarkupAction("cut", extension.InsertMarkupBlock("{% cut \"Cut title\" %}\n\nContent\n\n{% endcut %}"))
	b.TrackFormatting(nodeCut)
	return nil
}

func classAttrs(el *html.Node) (map[string]interface{}, bool) {
	class := attrValue(el, "class")
	if class == "" {
		return nil, true
	}

	return map[string]interface{}{"class": class}, true
}

func parseCut(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	container := node.(*ContainerNode)
	titleText := container.Label
	if container.Syntax == directive.SyntaxLegacy {
		titleText = unquote(container.Args)
	}
	title, err := state.ParseInlineFragment(titleText)
	if err != nil {
		return nil, err
	}
	content, err := state.ParseFragment(container.Body(state.Source()))
	if err != nil {
		return nil, err
	}
	return []schema.Node{{
		Type: nodeCut,
		Attrs: map[string]interface{}{
			"class":              "yfm-cut",
			directive.AttrMarkup: string(container.Syntax),
		},
		Content: []schema.Node{
			{Type: nodeCutTitle, Content: title},
			{Type: nodeCutContent, Content: content},
		},
	}}, nil
}

func childOfType(node schema.Node, nodeType string) (schema.Node, bool) {
	for _, child := range node.Content {
		if child.Type == nodeType {
			return child, true
		}
	}

	return schema.Node{}, false
}

func renderQuoted(state markup.SerializerState, node schema.Node) error {
	return state.WithEscapedChars(`"`, func() error {
		return state.RenderInline(node)
	})
}

func serializeCut(state markup.SerializerState, node, _ schema.Node, _ int) error {
	title, _ := childOfType(node, nodeCutTitle)
	content, _ := childOfType(node, nodeCutContent)

	if writeSyntax(state, ExtYfmCut, node) == directive.SyntaxDirective {
		state.Write(":::cut [")
		if err := state.RenderInline(title); err != nil {
			return err
		}
		state.Write("]\n")
		if err := state.RenderContent(content); err != nil {
			return err
		}
		state.FlushClose(1)
		state.Write(":::")
		state.CloseBlock(node)
		return nil
	}

	state.Write(`{% cut "`)
	if err := renderQuoted(state, title); err != nil {
		return err
	}
	state.Write("\" %}")
	state.CloseBlock(node)
	if err := state.RenderContent(content); err != nil {
		return err
	}
	state.Write("{% endcut %}")
	state.CloseBlock(node)
	return nil
}

// YfmNote declares note blocks with a type (info, tip, warning, alert) and optional title.
func YfmNote() extension.Unit {
	return extension.Unit{
		Name:     "yfm_note",
		Requires: []string{"base"},
		Apply:    applyYfmNote,
	}
}

func applyYfmNote(b *extension.Builder, _ extension.Options) error {
	b.ConfigureMarkupParser(LiquidContainer("note", ExtYfmNote))
	b.ConfigureMarkupParser(DirectiveContainer("note", ExtYfmNote))

	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:     nodeNote,
			Content:  nodeNoteTitle + "? block+",
			Group:    "block",
			Defining: true,
			Attrs: map[string]schema.AttributeSpec{
				"type":               schema.Attr(NoteTypes[0]),
				directive.AttrMarkup: schema.Attr(nil),
			},
			ParseDOM: []schema.DOMRule{{
				Selector: ".yfm-note",
				GetAttrs: func(el *html.Node) (map[string]interface{}, bool) {
					noteType := attrValue(el, "note-type")
					if !validNoteType(noteType) {
						noteType = NoteTypes[0]
					}
					return map[string]interface{}{"type": noteType}, true
				},
			}},
			ToDOM: func(node schema.Node) schema.DOMOutput {
				noteType := node.GetStringAttr("type", NoteTypes[0])
				return schema.Hole(schema.Elem("div", map[string]string{
					"class":     "yfm-note yfm-accent-" + noteType,
					"note-type": noteType,
				}))
			},
		},
		FromMarkup: []markup.ParseHandler{{
			Kind:  KindContainer,
			Match: containerMatch("note"),
			Parse: parseNote,
		}},
		ToMarkup: serializeNote,
	})
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:     nodeNoteTitle,
			Content:  "inline*",
			Defining: true,
			ParseDOM: []schema.DOMRule{{Selector: ".yfm-note-title"}},
			ToDOM: func(schema.Node) schema.DOMOutput {
				return schema.Hole(schema.Elem("p", map[string]string{"class": "yfm-note-title"}))
			},
			Placeholder: "Note",
		},
		ToMarkup: func(state markup.SerializerState, node, _ schema.Node, _ int) error {
			return state.RenderInline(node)
		},
	})

	for _, noteType := range NoteTypes {
		value := noteType
		id := "note" + strings.ToUpper(value[:1]) + value[1:]
		b.AddAction(id, extension.InsertBlock(func(s *schema.Schema) (schema.Node, error) {
			paragraph, err := s.Node(nodeParagraph, nil)
			if err != nil {
				return schema.Node{}, err
			}
			return s.Node(nodeNote, map[string]interface{}{"type": value}, paragraph)
		}))
		b.AddMarkupAction(id, extension.InsertMarkupBlock("{% note "+value+" %}\n\nContent\n\n{% endnote %}"))
	}
	b.TrackFormatting(nodeNote)
	return nil
}

func validNoteType(noteType string) bool {
	for _, candidate := range NoteTypes {
		if candidate == noteType {
			return true
		}
	}

	return false
}

func parseNote(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	container := node.(*ContainerNode)
	noteType := container.Attrs["type"]
	titleText := container.Label
	if container.Syntax == directive.SyntaxLegacy {
		args := strings.TrimSpace(container.Args)
		noteType = args
		titleText = ""
		if idx := strings.IndexAny(args, " \t"); idx >= 0 {
			noteType = args[:idx]
			titleText = unquote(args[idx:])
		}
	}
	if noteType == "" {
		noteType = NoteTypes[0]
	}
	if !validNoteType(noteType) {
		state.Warn(markup.WarningDroppedFeature, nodeNote, fmt.Sprintf("unknown note type %q, using %q", noteType, NoteTypes[0]))
		noteType = NoteTypes[0]
	}

	var content []schema.Node
	if titleText != "" {
		title, err := state.ParseInlineFragment(titleText)
		if err != nil {
			return nil, err
		}
		content = append(content, schema.Node{Type: nodeNoteTitle, Content: title})
	}
	body, err := state.ParseFragment(container.Body(state.Source()))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		body = []schema.Node{{Type: nodeParagraph}}
	}
	content = append(content, body...)

	return []schema.Node{{
		Type: nodeNote,
		Attrs: map[string]interface{}{
			"type":               noteType,
			directive.AttrMarkup: string(container.Syntax),
		},
		Content: content,
	}}, nil
}

func serializeNote(state markup.SerializerState, node, _ schema.Node, _ int) error {
	noteType := node.GetStringAttr("type", NoteTypes[0])
	body := node
	title, hasTitle := childOfType(node, nodeNoteTitle)
	if hasTitle {
		body.Content = node.Content[1:]
	}

	if writeSyntax(state, ExtYfmNote, node) == directive.SyntaxDirective {
		state.Write(":::note")
		if hasTitle {
			state.Write(" [")
			if err := state.RenderInline(title); err != nil {
				return err
			}
			state.Write("]")
		}
		state.Write(" " + formatDirectiveAttrs([]string{"type"}, map[string]string{"type": noteType}) + "\n")
		if err := state.RenderContent(body); err != nil {
			return err
		}
		state.FlushClose(1)
		state.Write(":::")
		state.CloseBlock(node)
		return nil
	}

	state.Write("{% note " + noteType)
	if hasTitle {
		state.Write(` "`)
		if err := renderQuoted(state, title); err != nil {
			return err
		}
		state.Write(`"`)
	}
	state.Write(" %}")
	state.CloseBlock(node)
	if err := state.RenderContent(body); err != nil {
		return err
	}
	state.Write("{% endnote %}")
	state.CloseBlock(node)
	return nil
}
