package transform

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type domRule struct {
	rule     schema.DOMRule
	nodeType string
	markType string
}

type domParser struct {
	schema   *schema.Schema
	rules    []domRule
	warnings *[]markup.Warning
}

func (e *Engine) domRules() []domRule {
	var rules []domRule
	for _, nodeType := range e.schema.NodeTypes() {
		for _, rule := range nodeType.Spec.ParseDOM {
			rules = append(rules, domRule{rule: rule, nodeType: nodeType.Name})
		}
	}
	for _, markType := range e.schema.MarkTypes() {
		for _, rule := range markType.Spec.ParseDOM {
			rules = append(rules, domRule{rule: rule, markType: markType.Name})
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].rule.EffectivePriority() > rules[j].rule.EffectivePriority()
	})

	return rules
}

// ParseHTML builds a document tree from HTML using the ParseDOM rules of the schema.
// Elements without a matching rule are transparent: their children are parsed in place.
func (e *Engine) ParseHTML(htmlText string) (ParseResult, error) {
	nodes, err := html.ParseFragment(strings.NewReader(htmlText), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	warnings := []markup.Warning{}
	p := &domParser{schema: e.schema, rules: e.domRules(), warnings: &warnings}
	content := p.walk(nodes, nil, false)
	warn := func(warnType markup.WarningType, nodeType, message string) {
		warnings = append(warnings, markup.Warning{Type: warnType, NodeType: nodeType, Message: message})
	}
	doc := e.normalizer(warn).normalize(schema.Node{Type: e.schema.TopNode(), Content: content})
	if err := e.schema.Check(doc); err != nil {
		return ParseResult{}, fmt.Errorf("%w: %w", ErrStructural, err)
	}

	return ParseResult{Doc: doc, Warnings: warnings}, nil
}

func (p *domParser) match(el *html.Node) (domRule, map[string]interface{}, bool) {
	for _, candidate := range p.rules {
		if !candidate.rule.Matches(el) {
			continue
		}
		if candidate.rule.GetAttrs == nil {
			return candidate, nil, true
		}
		attrs, ok := candidate.rule.GetAttrs(el)
		if !ok {
			continue
		}
		return candidate, attrs, true
	}

	return domRule{}, nil, false
}

func (p *domParser) walk(nodes []*html.Node, marks []schema.Mark, code bool) []schema.Node {
	var out []schema.Node
	for _, n := range nodes {
		switch n.Type {
		case html.TextNode:
			textValue := n.Data
			if !code {
				textValue = collapseWhitespace(textValue)
			}
			if textValue != "" {
				out = appendInlineNode(out, p.schema.Text(textValue, marks...))
			}
		case html.ElementNode:
			out = append(out, p.element(n, marks, code)...)
		}
	}

	return out
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		out = append(out, child)
	}

	return out
}

func (p *domParser) element(el *html.Node, marks []schema.Mark, code bool) []schema.Node {
	rule, attrs, ok := p.match(el)
	if !ok {
		return p.walk(children(el), marks, code)
	}
	if rule.rule.Ignore {
		return nil
	}

	if rule.markType != "" {
		mark, err := p.schema.Mark(rule.markType, attrs)
		if err != nil {
			p.warn(markup.WarningDroppedFeature, rule.markType, err.Error())
			return p.walk(children(el), marks, code)
		}
		return p.walk(children(el), p.schema.AddMark(marks, mark), code)
	}

	nodeType, _ := p.schema.NodeType(rule.nodeType)
	node, err := p.schema.Node(rule.nodeType, attrs)
	if err != nil {
		p.warn(markup.WarningDroppedFeature, rule.nodeType, err.Error())
		return p.walk(children(el), marks, code)
	}
	switch {
	case nodeType.IsLeaf():
	case nodeType.Spec.Code:
		if textValue := textContent(el); textValue != "" {
			node.Content = []schema.Node{p.schema.Text(strings.TrimSuffix(textValue, "\n"))}
		}
	case nodeType.IsInline():
		node.Content = p.walk(children(el), marks, code)
	default:
		node.Content = p.walk(children(el), nil, code)
	}
	if nodeType.IsInline() && len(marks) > 0 {
		node.Marks = append([]schema.Mark(nil), marks...)
	}

	return []schema.Node{node}
}

func (p *domParser) warn(warnType markup.WarningType, nodeType, message string) {
	*p.warnings = append(*p.warnings, markup.Warning{Type: warnType, NodeType: nodeType, Message: message})
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(textContent(child))
	}

	return sb.String()
}

// collapseWhitespace folds runs of HTML whitespace into single spaces.
func collapseWhitespace(value string) string {
	var sb strings.Builder
	space := false
	for _, r := range value {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			if !space {
				sb.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		sb.WriteRune(r)
	}

	return sb.String()
}

// RenderHTML renders the content of a document through the ToDOM projections of the schema.
func (e *Engine) RenderHTML(doc schema.Node) (string, error) {
	if err := e.checkKnownTypes(doc, nil); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStructural, err)
	}
	var buf bytes.Buffer
	for _, child := range doc.Content {
		if err := html.Render(&buf, e.renderDOM(child)); err != nil {
			return "", fmt.Errorf("failed to render HTML: %w", err)
		}
	}

	return buf.String(), nil
}

func (e *Engine) renderDOM(node schema.Node) *html.Node {
	var el *html.Node
	if node.IsText() {
		el = &html.Node{Type: html.TextNode, Data: node.Text}
	} else {
		nodeType, _ := e.schema.NodeType(node.Type)
		var out schema.DOMOutput
		if nodeType.Spec.ToDOM != nil {
			out = nodeType.Spec.ToDOM(StripReserved(node))
		} else {
			tag := "div"
			if nodeType.IsInline() {
				tag = "span"
			}
			out = schema.Hole(schema.Elem(tag, map[string]string{"data-type": node.Type}))
		}
		el = out.Element
		if out.ContentHole != nil {
			for _, child := range node.Content {
				out.ContentHole.AppendChild(e.renderDOM(child))
			}
		}
	}
	for i := len(node.Marks) - 1; i >= 0; i-- {
		mark := node.Marks[i]
		markType, _ := e.schema.MarkType(mark.Type)
		if markType.Spec.ToDOM == nil {
			continue
		}
		out := markType.Spec.ToDOM(mark, true)
		hole := out.ContentHole
		if hole == nil {
			hole = out.Element
		}
		hole.AppendChild(el)
		el = out.Element
	}

	return el
}
