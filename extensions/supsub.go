package extensions

import (
	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const (
	markSup = "sup"
	markSub = "sub"

	// Below the strikethrough parser (500) so a single tilde is claimed first.
	scriptParserPriority = 450
)

var (
	KindSuperscript = ast.NewNodeKind("Superscript")
	KindSubscript   = ast.NewNodeKind("Subscript")
)

// ScriptNode is a `^sup^` or `~sub~` span. Content holds the raw text between the delimiters.
type ScriptNode struct {
	ast.BaseInline
	Content []byte
	kind    ast.NodeKind
}

func (n *ScriptNode) Kind() ast.NodeKind {
	return n.kind
}

func (n *ScriptNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Content": string(n.Content),
	}, nil)
}

type scriptParser struct {
	delim byte
	kind  ast.NodeKind
}

func (p *scriptParser) Trigger() []byte {
	return []byte{p.delim}
}

// Parse accepts a delimiter pair on one line with non-empty content and no whitespace.
// Backslash escapes inside are skipped; a doubled delimiter is left to other parsers.
func (p *scriptParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < 3 || line[0] != p.delim || line[1] == p.delim {
		return nil
	}

	closing := -1
	for idx := 1; idx < len(line); idx++ {
		if util.IsSpace(line[idx]) {
			return nil
		}
		if line[idx] == '\\' {
			if idx+1 < len(line) && util.IsSpace(line[idx+1]) {
				return nil
			}
			idx++
			continue
		}
		if line[idx] == p.delim {
			closing = idx
			break
		}
	}
	if closing <= 1 {
		return nil
	}

	block.Advance(closing + 1)
	return &ScriptNode{Content: append([]byte(nil), line[1:closing]...), kind: p.kind}
}

type scriptExtension struct {
	delim byte
	kind  ast.NodeKind
}

func (e *scriptExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(&scriptParser{delim: e.delim, kind: e.kind}, scriptParserPriority),
	))
}

func parseScript(markType string) func(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
	return func(node ast.Node, state markup.ParseState) ([]schema.Node, error) {
		value := markup.LiteralText(node.(*ScriptNode).Content)
		if value == "" {
			return nil, nil
		}
		mark, err := state.Schema().Mark(markType, nil)
		if err != nil {
			return nil, err
		}
		return state.WithMark(mark, func() ([]schema.Node, error) {
			return []schema.Node{state.Text(value)}, nil
		})
	}
}

func scriptUnit(name, markType, tag, actionID, key string, delim byte, kind ast.NodeKind) extension.Unit {
	open := string(delim)
	return extension.Unit{
		Name:     name,
		Requires: []string{"base"},
		Apply: func(b *extension.Builder, _ extension.Options) error {
			b.ConfigureMarkupParser(&scriptExtension{delim: delim, kind: kind})
			serializer := markup.Delimiters(open, open)
			serializer.Mixable = true
			serializer.ExpelEnclosingWhitespace = true
			serializer.EscapeChars = open
			b.AddMark(extension.MarkDef{
				Spec: schema.MarkSpec{
					Name:     markType,
					ParseDOM: []schema.DOMRule{{Selector: tag}},
					ToDOM: func(schema.Mark, bool) schema.DOMOutput {
						return schema.Hole(schema.Elem(tag, nil))
					},
				},
				FromMarkup: []markup.ParseHandler{{Kind: kind, Parse: parseScript(markType)}},
				ToMarkup:   serializer,
			})
			b.AddAction(actionID, extension.ToggleMark(markType, nil))
			b.AddMarkupAction(actionID, extension.WrapSelection(open, open))
			b.AddKeymap(key, actionID)
			b.AddInputRule(extension.MarkInputRule(open, open, open, markType))
			return nil
		},
	}
}

// Superscript declares `^text^`. Its action id is "supscript".
func Superscript() extension.Unit {
	return scriptUnit("superscript", markSup, "sup", "supscript", "Mod-.", '^', KindSuperscript)
}

// Subscript declares `~text~`.
func Subscript() extension.Unit {
	return scriptUnit("subscript", markSub, "sub", "subscript", "Mod-,", '~', KindSubscript)
}
