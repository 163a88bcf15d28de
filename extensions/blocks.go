package extensions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark/ast"
	"golang.org/x/net/html"
)

const (
	nodeHeading        = "heading"
	nodeBlockquote     = "blockquote"
	nodeCodeBlock      = "code_block"
	nodeHorizontalRule = "horizontal_rule"
	nodeBulletList     = "bullet_list"
	nodeOrderedList    = "ordered_list"
	nodeListItem       = "list_item"
)

// HeadingOptions configure the heading unit.
type HeadingOptions struct {
	// MaxLevel limits the heading actions and input rule. Parsed headings keep their level.
	MaxLevel int `option:"maxLevel"`
}

// Heading declares ATX headings with actions heading1..heading6.
func Heading() extension.Unit {
	return extension.Unit{
		Name:     "heading",
		Requires: []string{"base"},
		Options:  extension.Options{"maxLevel": 6},
		Apply:    applyHeading,
	}
}

func applyHeading(b *extension.Builder, opts extension.Options) error {
	cfg := HeadingOptions{MaxLevel: 6}
	if err := extension.DecodeOptions(opts, &cfg); err != nil {
		return err
	}
	if cfg.MaxLevel < 1 || cfg.MaxLevel > 6 {
		return fmt.Errorf("maxLevel must be between 1 and 6, got %d", cfg.MaxLevel)
	}

	rules := make([]schema.DOMRule, 0, 6)
	for level := 1; level <= 6; level++ {
		value := level
		rules = append(rules, schema.DOMRule{
			Selector: "h" + strconv.Itoa(level),
			GetAttrs: func(*html.Node) (map[string]interface{}, bool) {
				return map[string]interface{}{"level": value}, true
			},
		})
	}
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:     nodeHeading,
			Content:  "inline*",
			Group:    "block",
			Defining: true,
			Attrs:    map[string]schema.AttributeSpec{"level": schema.Attr(1)},
			ParseDOM: rules,
			ToDOM: func(node schema.Node) schema.DOMOutput {
				return schema.Hole(schema.Elem("h"+strconv.Itoa(headingLevel(node)), nil))
			},
		},
		FromMarkup: []markup.ParseHandler{{
			Kind: ast.KindHeading,
			Parse: func(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
				content, err := state.InlineChildren(node)
				if err != nil {
					return nil, err
				}
				return []schema.Node{{
					Type:    nodeHeading,
					Attrs:   map[string]interface{}{"level": node.(*ast.Heading).Level},
					Content: content,
				}}, nil
			},
		}},
		ToMarkup: func(state markup.SerializerState, node, _ schema.Node, _ int) error {
			state.Write(strings.Repeat("#", headingLevel(node)) + " ")
			if err := state.RenderInline(node); err != nil {
				return err
			}
			state.CloseBlock(node)
			return nil
		},
	})

	for level := 1; level <= cfg.MaxLevel; level++ {
		id := "heading" + strconv.Itoa(level)
		b.AddAction(id, extension.SetBlockType(nodeHeading, map[string]interface{}{"level": level}))
		b.AddMarkupAction(id, extension.PrefixLines(strings.Repeat("#", level)+" "))
		b.AddKeymap("Mod-Alt-"+strconv.Itoa(level), id)
	}
	b.AddAction("text", extension.SetBlockType(nodeParagraph, nil))
	b.AddKeymap("Mod-Alt-0", "text")
	b.AddInputRule(extension.TextblockTypeInputRule(fmt.Sprintf(`^(#{1,%d})\s$`, cfg.MaxLevel), nodeHeading, func(groups []string) map[string]interface{} {
		return map[string]interface{}{"level": len(groups[1])}
	}))
	return nil
}

func headingLevel(node schema.Node) int {
	level := node.GetIntAttr("level", 1)
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}

	return level
}

// Blockquote declares `>` quotes.
func Blockquote() extension.Unit {
	return extension.Unit{
		Name:     "blockquote",
		Requires: []string{"base"},
		Apply: func(b *extension.Builder, _ extension.Options) error {
			b.AddNode(extension.NodeDef{
				Spec: schema.NodeSpec{
					Name:     nodeBlockquote,
					Content:  "block+",
					Group:    "block",
					Defining: true,
					ParseDOM: []schema.DOMRule{{Selector: "blockquote"}},
					ToDOM: func(schema.Node) schema.DOMOutput {
						return schema.Hole(schema.Elem("blockquote", nil))
					},
				},
				FromMarkup: []markup.ParseHandler{{
					Kind: ast.KindBlockquote,
					Parse: func(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
						content, err := state.BlockChildren(node)
						if err != nil {
							return nil, err
						}
						return []schema.Node{{Type: nodeBlockquote, Content: content}}, nil
					},
				}},
				ToMarkup: func(state markup.SerializerState, node, _ schema.Node, _ int) error {
					return state.WrapBlock("> ", "", node, func() error {
						return state.RenderContent(node)
					})
				},
			})
			b.AddAction("quote", extension.WrapIn(nodeBlockquote))
			b.AddMarkupAction("quote", extension.PrefixLines("> "))
			b.AddKeymap("Mod-Shift-.", "quote")
			b.AddInputRule(extension.WrappingInputRule(`^\s*>\s$`, nil, nodeBlockquote))
			return nil
		},
	}
}

// CodeBlock declares fenced code blocks. Indented code parses into the same node.
func CodeBlock() extension.Unit {
	return extension.Unit{
		Name:     "code_block",
		Requires: []string{"base"},
		Apply: func(b *extension.Builder, _ extension.Options) error {
			b.AddNode(extension.NodeDef{
				Spec: schema.NodeSpec{
					Name:     nodeCodeBlock,
					Content:  "text*",
					Group:    "block",
					Marks:    schema.StringPtr(""),
					Code:     true,
					Defining: true,
					Attrs:    map[string]schema.AttributeSpec{"language": schema.Attr("")},
					ParseDOM: []schema.DOMRule{{
						Selector: "pre",
						GetAttrs: func(el *html.Node) (map[string]interface{}, bool) {
							return map[string]interface{}{"language": attrValue(el, "data-language")}, true
						},
					}},
					ToDOM: func(node schema.Node) schema.DOMOutput {
						attrs := map[string]string{}
						if language := node.GetStringAttr("language", ""); language != "" {
							attrs["data-language"] = language
						}
						code := schema.Elem("code", nil)
						return schema.DOMOutput{Element: schema.Elem("pre", attrs, code), ContentHole: code}
					},
				},
				FromMarkup: []markup.ParseHandler{
					{Kind: ast.KindFencedCodeBlock, Parse: parseCodeBlock},
					{Kind: ast.KindCodeBlock, Parse: parseCodeBlock},
				},
				ToMarkup: serializeCodeBlock,
			})
			b.AddAction("code_block", extension.SetBlockType(nodeCodeBlock, nil))
			b.AddMarkupAction("code_block", extension.InsertMarkupBlock("```\n\n```"))
			b.AddKeymap("Mod-Alt-c", "code_block")
			b.AddInputRule(extension.TextblockTypeInputRule("^```([a-zA-Z0-9_+-]*)\\s$", nodeCodeBlock, func(groups []string) map[string]interface{} {
				return map[string]interface{}{"language": groups[1]}
			}))
			return nil
		},
	}
}

func parseCodeBlock(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	language := ""
	if fenced, ok := node.(*ast.FencedCodeBlock); ok {
		language = string(fenced.Language(state.Source()))
	}
	var sb strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		sb.Write(segment.Value(state.Source()))
	}
	code := strings.TrimSuffix(sb.String(), "\n")
	out := schema.Node{Type: nodeCodeBlock, Attrs: map[string]interface{}{"language": language}}
	if code != "" {
		out.Content = []schema.Node{{Type: nodeText, Text: code}}
	}

	return []schema.Node{out}, nil
}

// serializeCodeBlock picks a fence longer than any backtick run in the code.
func serializeCodeBlock(state markup.SerializerState, node, _ schema.Node, _ int) error {
	code := node.TextContent()
	fence := "```"
	if run := longestRun(code, '`'); run >= 3 {
		fence = strings.Repeat("`", run+1)
	}
	state.Write(fence + node.GetStringAttr("language", "") + "\n")
	state.Text(code, false)
	state.Write("\n")
	state.Write(fence)
	state.CloseBlock(node)
	return nil
}

func longestRun(value string, ch byte) int {
	longest, current := 0, 0
	for i := 0; i < len(value); i++ {
		if value[i] == ch {
			current++
			longest = max(longest, current)
			continue
		}
		current = 0
	}

	return longest
}

// HorizontalRule declares thematic breaks.
func HorizontalRule() extension.Unit {
	return extension.Unit{
		Name:     "horizontal_rule",
		Requires: []string{"base"},
		Apply: func(b *extension.Builder, _ extension.Options) error {
			b.AddNode(extension.NodeDef{
				Spec: schema.NodeSpec{
					Name:     nodeHorizontalRule,
					Group:    "block",
					Attrs:    map[string]schema.AttributeSpec{"markup": schema.Attr("---")},
					ParseDOM: []schema.DOMRule{{Selector: "hr"}},
					ToDOM: func(schema.Node) schema.DOMOutput {
						return schema.Leaf(schema.Elem("hr", nil))
					},
				},
				FromMarkup: []markup.ParseHandler{{
					Kind: ast.KindThematicBreak,
					Parse: func(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
						return []schema.Node{{Type: nodeHorizontalRule, Attrs: map[string]interface{}{"markup": "---"}}}, nil
					},
				}},
				ToMarkup: func(state markup.SerializerState, node, _ schema.Node, _ int) error {
					state.Write(node.GetStringAttr("markup", "---"))
					state.CloseBlock(node)
					return nil
				},
			})
			b.AddAction("horizontalRule", extension.InsertBlock(func(s *schema.Schema) (schema.Node, error) {
				return s.Node(nodeHorizontalRule, nil)
			}))
			b.AddMarkupAction("horizontalRule", extension.InsertMarkupBlock("---"))
			return nil
		},
	}
}

// Lists declares bullet and ordered lists.
func Lists() extension.Unit {
	return extension.Unit{
		Name:     "lists",
		Requires: []string{"base"},
		Apply:    applyLists,
	}
}

func applyLists(b *extension.Builder, _ extension.Options) error {
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:    nodeBulletList,
			Content: "list_item+",
			Group:   "block",
			Attrs: map[string]schema.AttributeSpec{
				"tight":  schema.Attr(true),
				"bullet": schema.Attr("-"),
			},
			ParseDOM: []schema.DOMRule{{Selector: "ul"}},
			ToDOM: func(schema.Node) schema.DOMOutput {
				return schema.Hole(schema.Elem("ul", nil))
			},
		},
		FromMarkup: []markup.ParseHandler{{
			Kind:  ast.KindList,
			Match: func(node ast.Node, _ markup.ParseState) bool { return !node.(*ast.List).IsOrdered() },
			Parse: func(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
				list := node.(*ast.List)
				content, err := state.BlockChildren(node)
				if err != nil {
					return nil, err
				}
				return []schema.Node{{
					Type:    nodeBulletList,
					Attrs:   map[string]interface{}{"tight": list.IsTight, "bullet": string(list.Marker)},
					Content: content,
				}}, nil
			},
		}},
		ToMarkup: func(state markup.SerializerState, node, _ schema.Node, _ int) error {
			bullet := node.GetStringAttr("bullet", "-")
			return state.RenderList(node, "  ", func(int) string { return bullet + " " })
		},
	})
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:    nodeOrderedList,
			Content: "list_item+",
			Group:   "block",
			Attrs: map[string]schema.AttributeSpec{
				"order": schema.Attr(1),
				"tight": schema.Attr(true),
			},
			ParseDOM: []schema.DOMRule{{
				Selector: "ol",
				GetAttrs: func(el *html.Node) (map[string]interface{}, bool) {
					order := 1
					if start, err := strconv.Atoi(attrValue(el, "start")); err == nil {
						order = start
					}
					return map[string]interface{}{"order": order}, true
				},
			}},
			ToDOM: func(node schema.Node) schema.DOMOutput {
				attrs := map[string]string{}
				if order := node.GetIntAttr("order", 1); order != 1 {
					attrs["start"] = strconv.Itoa(order)
				}
				return schema.Hole(schema.Elem("ol", attrs))
			},
		},
		FromMarkup: []markup.ParseHandler{{
			Kind:  ast.KindList,
			Match: func(node ast.Node, _ markup.ParseState) bool { return node.(*ast.List).IsOrdered() },
			Parse: func(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
				list := node.(*ast.List)
				content, err := state.BlockChildren(node)
				if err != nil {
					return nil, err
				}
				return []schema.Node{{
					Type:    nodeOrderedList,
					Attrs:   map[string]interface{}{"order": list.Start, "tight": list.IsTight},
					Content: content,
				}}, nil
			},
		}},
		ToMarkup: serializeOrderedList,
	})
	b.AddNode(extension.NodeDef{
		Spec: schema.NodeSpec{
			Name:     nodeListItem,
			Content:  "block+",
			Defining: true,
			ParseDOM: []schema.DOMRule{{Selector: "li"}},
			ToDOM: func(schema.Node) schema.DOMOutput {
				return schema.Hole(schema.Elem("li", nil))
			},
		},
		FromMarkup: []markup.ParseHandler{{
			Kind: ast.KindListItem,
			Parse: func(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
				content, err := state.BlockChildren(node)
				if err != nil {
					return nil, err
				}
				return []schema.Node{{Type: nodeListItem, Content: content}}, nil
			},
		}},
		ToMarkup: func(state markup.SerializerState, node, _ schema.Node, _ int) error {
			return state.RenderContent(node)
		},
	})

	b.AddAction("bulletList", extension.WrapIn(nodeBulletList, nodeListItem))
	b.AddAction("orderedList", extension.WrapIn(nodeOrderedList, nodeListItem))
	b.AddMarkupAction("bulletList", extension.PrefixLines("- "))
	b.AddMarkupAction("orderedList", extension.PrefixLines("1. "))
	b.AddKeymap("Mod-Shift-8", "bulletList")
	b.AddKeymap("Mod-Shift-7", "orderedList")
	b.AddInputRule(extension.WrappingInputRule(`^\s*([-+*])\s$`, func(groups []string) map[string]interface{} {
		return map[string]interface{}{"bullet": groups[1]}
	}, nodeBulletList, nodeListItem))
	b.AddInputRule(extension.WrappingInputRule(`^(\d+)\.\s$`, func(groups []string) map[string]interface{} {
		order, err := strconv.Atoi(groups[1])
		if err != nil {
			order = 1
		}
		return map[string]interface{}{"order": order}
	}, nodeOrderedList, nodeListItem))
	return nil
}

// serializeOrderedList right-aligns the numbers so item content lines up.
func serializeOrderedList(state markup.SerializerState, node, _ schema.Node, _ int) error {
	start := node.GetIntAttr("order", 1)
	maxWidth := len(strconv.Itoa(start + len(node.Content) - 1))
	space := strings.Repeat(" ", maxWidth+2)
	return state.RenderList(node, space, func(index int) string {
		number := strconv.Itoa(start + index)
		return strings.Repeat(" ", maxWidth-len(number)) + number + ". "
	})
}
