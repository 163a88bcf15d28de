package extensions

import (
	"regexp"
	"strings"

	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const containerParserPriority = 650

// KindContainer is the token kind of named container blocks in either syntax.
var KindContainer = ast.NewNodeKind("Container")

// ContainerNode is a named block such as `{% cut "Title" %}...{% endcut %}` or
// `:::cut [Title]...:::`. Its lines are the opening line, the body and the closing line.
type ContainerNode struct {
	ast.BaseBlock
	Name   string
	Syntax directive.Syntax
	// Label is the `[...]` part of a directive opener.
	Label string
	// Args is the raw argument text of a liquid opener, e.g. `info "Title"`.
	Args string
	// Attrs are the `{key=value}` attributes of a directive opener.
	Attrs  map[string]string
	Closed bool

	depth int
}

func (n *ContainerNode) Kind() ast.NodeKind {
	return KindContainer
}

func (n *ContainerNode) IsRaw() bool {
	return true
}

func (n *ContainerNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Name":   n.Name,
		"Syntax": string(n.Syntax),
		"Label":  n.Label,
		"Args":   n.Args,
	}, nil)
}

// Body returns the markup between the opening and closing lines.
func (n *ContainerNode) Body(source []byte) string {
	lines := n.Lines()
	end := lines.Len()
	if n.Closed {
		end--
	}
	var sb strings.Builder
	for i := 1; i < end; i++ {
		segment := lines.At(i)
		sb.Write(segment.Value(source))
	}

	return sb.String()
}

type containerSyntax interface {
	trigger() byte
	// open parses an opening line; the name must match.
	open(line string) (*ContainerNode, bool)
	opens(line string) bool
	closes(line string) bool
	accepts(ctx *directive.Context) bool
}

type containerParser struct {
	syntax containerSyntax
}

func (p *containerParser) Trigger() []byte {
	return []byte{p.syntax.trigger()}
}

func (p *containerParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	if !p.syntax.accepts(markup.DirectiveFrom(pc)) {
		return nil, parser.NoChildren
	}
	line, segment := reader.PeekLine()
	node, ok := p.syntax.open(strings.TrimSpace(string(line)))
	if !ok {
		return nil, parser.NoChildren
	}
	node.Lines().Append(segment)
	reader.AdvanceToEOL()
	return node, parser.NoChildren
}

func (p *containerParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	container := node.(*ContainerNode)
	if container.Closed {
		return parser.Close
	}
	line, segment := reader.PeekLine()
	if line == nil {
		return parser.Close
	}
	trimmed := strings.TrimSpace(string(line))
	switch {
	case p.syntax.opens(trimmed):
		container.depth++
	case p.syntax.closes(trimmed):
		if container.depth == 0 {
			container.Closed = true
			container.Lines().Append(segment)
			reader.AdvanceToEOL()
			return parser.Close
		}
		container.depth--
	}
	container.Lines().Append(segment)
	reader.AdvanceToEOL()
	return parser.Continue | parser.NoChildren
}

func (p *containerParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {}

func (p *containerParser) CanInterruptParagraph() bool {
	return true
}

func (p *containerParser) CanAcceptIndentedLine() bool {
	return false
}

type containerExtension struct {
	syntax containerSyntax
}

func (e *containerExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithBlockParsers(
		util.Prioritized(&containerParser{syntax: e.syntax}, containerParserPriority),
	))
}

// LiquidContainer returns a goldmark extension parsing `{% name args %}` ... `{% endname %}`.
// It only opens blocks while the directive setting of extKey accepts legacy syntax.
func LiquidContainer(name, extKey string) goldmark.Extender {
	return &containerExtension{syntax: newLiquidSyntax(name, extKey)}
}

// DirectiveContainer returns a goldmark extension parsing `:::name [label] {attrs}` ... `:::`.
// It only opens blocks while the directive setting of extKey accepts directive syntax.
func DirectiveContainer(name, extKey string) goldmark.Extender {
	return &containerExtension{syntax: &directiveSyntax{name: name, extKey: extKey}}
}

type liquidSyntax struct {
	name   string
	extKey string
	opener *regexp.Regexp
	closer *regexp.Regexp
}

func newLiquidSyntax(name, extKey string) *liquidSyntax {
	quoted := regexp.QuoteMeta(name)
	return &liquidSyntax{
		name:   name,
		extKey: extKey,
		opener: regexp.MustCompile(`^\{%\s*` + quoted + `(?:\s+(.*?))?\s*%\}$`),
		closer: regexp.MustCompile(`^\{%\s*end` + quoted + `\s*%\}$`),
	}
}

func (s *liquidSyntax) trigger() byte {
	return '{'
}

func (s *liquidSyntax) open(line string) (*ContainerNode, bool) {
	match := s.opener.FindStringSubmatch(line)
	if match == nil {
		return nil, false
	}

	return &ContainerNode{Name: s.name, Syntax: directive.SyntaxLegacy, Args: match[1]}, true
}

func (s *liquidSyntax) opens(line string) bool {
	return s.opener.MatchString(line)
}

func (s *liquidSyntax) closes(line string) bool {
	return s.closer.MatchString(line)
}

func (s *liquidSyntax) accepts(ctx *directive.Context) bool {
	return ctx.AcceptsLegacy(s.extKey)
}

type directiveSyntax struct {
	name   string
	extKey string
}

func (s *directiveSyntax) trigger() byte {
	return ':'
}

func fenceLength(line string) int {
	count := 0
	for count < len(line) && line[count] == ':' {
		count++
	}

	return count
}

func (s *directiveSyntax) open(line string) (*ContainerNode, bool) {
	fence := fenceLength(line)
	if fence < 3 {
		return nil, false
	}
	rest := line[fence:]
	if !strings.HasPrefix(rest, s.name) {
		return nil, false
	}
	rest = rest[len(s.name):]
	if rest != "" && rest[0] != ' ' && rest[0] != '[' && rest[0] != '{' {
		return nil, false
	}
	rest = strings.TrimSpace(rest)

	node := &ContainerNode{Name: s.name, Syntax: directive.SyntaxDirective}
	if strings.HasPrefix(rest, "[") {
		label, end, ok := readBracketed(rest, '[', ']')
		if !ok {
			return nil, false
		}
		node.Label = label
		rest = strings.TrimSpace(rest[end:])
	}
	if strings.HasPrefix(rest, "{") {
		raw, end, ok := readBracketed(rest, '{', '}')
		if !ok {
			return nil, false
		}
		node.Attrs = parseDirectiveAttrs(raw)
		rest = strings.TrimSpace(rest[end:])
	}
	if rest != "" {
		return nil, false
	}

	return node, true
}

// opens reports any directive opener so nested containers of other names keep their closers.
func (s *directiveSyntax) opens(line string) bool {
	fence := fenceLength(line)
	if fence < 3 || fence == len(line) {
		return false
	}
	ch := line[fence]
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func (s *directiveSyntax) closes(line string) bool {
	fence := fenceLength(line)
	return fence >= 3 && fence == len(line)
}

func (s *directiveSyntax) accepts(ctx *directive.Context) bool {
	return ctx.AcceptsDirective(s.extKey)
}

// readBracketed returns the text between open and its matching close, honoring backslash
// escapes and nesting, and the index after close.
func readBracketed(value string, open, close byte) (string, int, bool) {
	depth := 0
	for idx := 0; idx < len(value); idx++ {
		switch value[idx] {
		case '\\':
			idx++
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return value[1:idx], idx + 1, true
			}
		}
	}

	return "", 0, false
}

var directiveAttrPattern = regexp.MustCompile(`([A-Za-z_][\w-]*)=(?:"((?:[^"\\]|\\.)*)"|(\S+))|([.#])([\w-]+)`)

func parseDirectiveAttrs(raw string) map[string]string {
	attrs := map[string]string{}
	for _, match := range directiveAttrPattern.FindAllStringSubmatch(raw, -1) {
		switch {
		case match[1] != "" && match[2] != "":
			attrs[match[1]] = strings.ReplaceAll(match[2], `\"`, `"`)
		case match[1] != "":
			attrs[match[1]] = match[3]
		case match[4] == ".":
			attrs["class"] = strings.TrimSpace(attrs["class"] + " " + match[5])
		case match[4] == "#":
			attrs["id"] = match[5]
		}
	}

	return attrs
}

// formatDirectiveAttrs writes the listed attributes in order, quoting values that need it.
func formatDirectiveAttrs(keys []string, attrs map[string]string) string {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value, ok := attrs[key]
		if !ok {
			continue
		}
		if value == "" || strings.ContainsAny(value, " \t\"}") {
			value = `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
		}
		parts = append(parts, key+"="+value)
	}
	if len(parts) == 0 {
		return ""
	}

	return "{" + strings.Join(parts, " ") + "}"
}

// unquote returns the text between the first and the last double quote.
func unquote(value string) string {
	first := strings.IndexByte(value, '"')
	last := strings.LastIndexByte(value, '"')
	if first < 0 || last <= first {
		return strings.TrimSpace(value)
	}

	return value[first+1 : last]
}
