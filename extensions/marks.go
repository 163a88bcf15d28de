package extensions

import (
	"strings"

	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark/ast"
	goldext "github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"golang.org/x/net/html"
)

const (
	markStrong = "strong"
	markEm     = "em"
	markStrike = "strike"
	markCode   = "code"
	markLink   = "link"
)

// markUnit describes a simple mark with fixed delimiters.
type markUnit struct {
	name      string
	mark      string
	actionID  string
	key       string
	open      string
	close     string
	kind      ast.NodeKind
	match     func(node ast.Node, state markup.ParseState) bool
	tags      []string
	tag       string
	inputRule extension.InputRuleFactory
}

func (u markUnit) unit() extension.Unit {
	return extension.Unit{
		Name:     u.name,
		Requires: []string{"base"},
		Apply: func(b *extension.Builder, _ extension.Options) error {
			rules := make([]schema.DOMRule, 0, len(u.tags))
			for _, tag := range u.tags {
				rules = append(rules, schema.DOMRule{Selector: tag})
			}
			serializer := markup.Delimiters(u.open, u.close)
			serializer.Mixable = true
			serializer.ExpelEnclosingWhitespace = true
			b.AddMark(extension.MarkDef{
				Spec: schema.MarkSpec{
					Name:     u.mark,
					ParseDOM: rules,
					ToDOM: func(schema.Mark, bool) schema.DOMOutput {
						return schema.Hole(schema.Elem(u.tag, nil))
					},
				},
				FromMarkup: []markup.ParseHandler{{
					Kind:  u.kind,
					Match: u.match,
					Parse: markHandler(u.mark),
				}},
				ToMarkup: serializer,
			})
			b.AddAction(u.actionID, extension.ToggleMark(u.mark, nil))
			b.AddMarkupAction(u.actionID, extension.WrapSelection(u.open, u.close))
			if u.key != "" {
				b.AddKeymap(u.key, u.actionID)
			}
			if u.inputRule != nil {
				b.AddInputRule(u.inputRule)
			}
			return nil
		},
	}
}

// markHandler parses the children of a token with a mark applied.
func markHandler(markType string) func(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	return func(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
		mark, err := state.Schema().Mark(markType, nil)
		if err != nil {
			return nil, err
		}
		return state.WithMark(mark, func() ([]schema.Node, error) {
			return state.InlineChildren(node)
		})
	}
}

func emphasisLevel(level int) func(ast.Node, markup.ParseState) bool {
	return func(node ast.Node, _ markup.ParseState) bool {
		return node.(*ast.Emphasis).Level == level
	}
}

// Bold declares the strong mark (`**text**`).
func Bold() extension.Unit {
	return markUnit{
		name:      "bold",
		mark:      markStrong,
		actionID:  "bold",
		key:       "Mod-b",
		open:      "**",
		close:     "**",
		kind:      ast.KindEmphasis,
		match:     emphasisLevel(2),
		tags:      []string{"strong", "b"},
		tag:       "strong",
		inputRule: extension.MarkInputRule("**", "**", "*", markStrong),
	}.unit()
}

// Italic declares the em mark (`*text*`).
func Italic() extension.Unit {
	return markUnit{
		name:      "italic",
		mark:      markEm,
		actionID:  "italic",
		key:       "Mod-i",
		open:      "*",
		close:     "*",
		kind:      ast.KindEmphasis,
		match:     emphasisLevel(1),
		tags:      []string{"em", "i"},
		tag:       "em",
		inputRule: extension.MarkInputRule("*", "*", "*", markEm),
	}.unit()
}

// Strike declares the strike mark (`~~text~~`) using the goldmark strikethrough extension.
func Strike() extension.Unit {
	unit := markUnit{
		name:      "strike",
		mark:      markStrike,
		actionID:  "strike",
		key:       "Mod-Shift-s",
		open:      "~~",
		close:     "~~",
		kind:      extast.KindStrikethrough,
		tags:      []string{"s", "del", "strike"},
		tag:       "s",
		inputRule: extension.MarkInputRule("~~", "~~", "~", markStrike),
	}.unit()
	apply := unit.Apply
	unit.Apply = func(b *extension.Builder, opts extension.Options) error {
		b.ConfigureMarkupParser(goldext.Strikethrough)
		return apply(b, opts)
	}

	return unit
}

// Code declares inline code spans.
func Code() extension.Unit {
	return extension.Unit{
		Name:     "code",
		Requires: []string{"base"},
		Apply: func(b *extension.Builder, _ extension.Options) error {
			b.AddMark(extension.MarkDef{
				Spec: schema.MarkSpec{
					Name:     markCode,
					Code:     true,
					ParseDOM: []schema.DOMRule{{Selector: "code"}},
					ToDOM: func(schema.Mark, bool) schema.DOMOutput {
						return schema.Hole(schema.Elem("code", nil))
					},
				},
				FromMarkup: []markup.ParseHandler{{Kind: ast.KindCodeSpan, Parse: parseCodeSpan}},
				ToMarkup: markup.MarkSerializer{
					Open: func(_ markup.SerializerState, _ schema.Mark, parent schema.Node, index int) string {
						return backticksFor(parent, index, -1)
					},
					Close: func(_ markup.SerializerState, _ schema.Mark, parent schema.Node, index int) string {
						return backticksFor(parent, index-1, 1)
					},
					NoEscape: true,
				},
			})
			b.AddAction("code", extension.ToggleMark(markCode, nil))
			b.AddMarkupAction("code", extension.WrapSelection("`", "`"))
			b.AddKeymap("Mod-e", "code")
			b.AddInputRule(extension.MarkInputRule("`", "`", "`", markCode))
			return nil
		},
	}
}

func parseCodeSpan(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	var sb strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if text, ok := child.(*ast.Text); ok {
			sb.Write(text.Segment.Value(state.Source()))
			continue
		}
		if str, ok := child.(*ast.String); ok {
			sb.Write(str.Value)
		}
	}
	value := strings.ReplaceAll(sb.String(), "\n", " ")
	if value == "" {
		return nil, nil
	}
	mark, err := state.Schema().Mark(markCode, nil)
	if err != nil {
		return nil, err
	}
	return state.WithMark(mark, func() ([]schema.Node, error) {
		return []schema.Node{state.Text(value)}, nil
	})
}

// backticksFor returns a delimiter one backtick longer than any run inside the node. Padding
// keeps a backtick at the edge of the code from merging with the delimiter.
func backticksFor(parent schema.Node, index, side int) string {
	longest := 0
	if index >= 0 && index < len(parent.Content) && parent.Content[index].IsText() {
		longest = longestRun(parent.Content[index].Text, '`')
	}
	var sb strings.Builder
	if longest > 0 && side > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString(strings.Repeat("`", longest+1))
	if longest > 0 && side < 0 {
		sb.WriteByte(' ')
	}

	return sb.String()
}

// Link declares the link mark (`[text](href "title")`).
func Link() extension.Unit {
	return extension.Unit{
		Name:     "link",
		Requires: []string{"base"},
		Apply: func(b *extension.Builder, _ extension.Options) error {
			b.AddMark(extension.MarkDef{
				Spec: schema.MarkSpec{
					Name: markLink,
					Attrs: map[string]schema.AttributeSpec{
						"href":  schema.RequiredAttr(),
						"title": schema.Attr(nil),
					},
					Inclusive: false,
					ParseDOM: []schema.DOMRule{{
						Selector: "a[href]",
						GetAttrs: func(el *html.Node) (map[string]interface{}, bool) {
							attrs := map[string]interface{}{"href": attrValue(el, "href")}
							if title := attrValue(el, "title"); title != "" {
								attrs["title"] = title
							}
							return attrs, true
						},
					}},
					ToDOM: func(mark schema.Mark, _ bool) schema.DOMOutput {
						attrs := map[string]string{"href": mark.GetStringAttr("href", "")}
						if title := mark.GetStringAttr("title", ""); title != "" {
							attrs["title"] = title
						}
						return schema.Hole(schema.Elem("a", attrs))
					},
				},
				FromMarkup: []markup.ParseHandler{
					{Kind: ast.KindLink, Parse: parseLink},
					{Kind: ast.KindAutoLink, Parse: parseAutoLink},
				},
				ToMarkup: markup.MarkSerializer{
					Open: func(markup.SerializerState, schema.Mark, schema.Node, int) string {
						return "["
					},
					Close: func(_ markup.SerializerState, mark schema.Mark, _ schema.Node, _ int) string {
						return "](" + linkDestination(mark) + ")"
					},
					Mixable: true,
				},
			})
			b.AddAction("link", extension.ToggleMark(markLink, map[string]interface{}{"href": ""}))
			b.AddMarkupAction("link", extension.WrapSelection("[", "]()"))
			b.AddKeymap("Mod-k", "link")
			return nil
		},
	}
}

func parseLink(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	link := node.(*ast.Link)
	attrs := map[string]interface{}{"href": markup.LiteralText(link.Destination)}
	if title := markup.LiteralText(link.Title); title != "" {
		attrs["title"] = title
	}
	mark, err := state.Schema().Mark(markLink, attrs)
	if err != nil {
		return nil, err
	}
	return state.WithMark(mark, func() ([]schema.Node, error) {
		return state.InlineChildren(node)
	})
}

func parseAutoLink(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	link := node.(*ast.AutoLink)
	label := string(link.Label(state.Source()))
	href := string(link.URL(state.Source()))
	mark, err := state.Schema().Mark(markLink, map[string]interface{}{"href": href})
	if err != nil {
		return nil, err
	}
	return state.WithMark(mark, func() ([]schema.Node, error) {
		return []schema.Node{state.Text(label)}, nil
	})
}

var destinationEscaper = strings.NewReplacer(`(`, `\(`, `)`, `\)`, `"`, `\"`)

func linkDestination(mark schema.Mark) string {
	href := mark.GetStringAttr("href", "")
	var dest string
	if strings.ContainsAny(href, " \t<>") {
		dest = "<" + strings.NewReplacer("<", `\<`, ">", `\>`).Replace(href) + ">"
	} else {
		dest = destinationEscaper.Replace(href)
	}
	if title := mark.GetStringAttr("title", ""); title != "" {
		dest += ` "` + strings.ReplaceAll(title, `"`, `\"`) + `"`
	}

	return dest
}
