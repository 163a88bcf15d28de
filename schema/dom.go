package schema

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Elem builds an element node with sorted attributes and children.
func Elem(tag string, attrs map[string]string, children ...*html.Node) *html.Node {
	el := &html.Node{
		Type: html.ElementNode,
		Data: tag,
	}
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		el.Attr = append(el.Attr, html.Attribute{Key: key, Val: attrs[key]})
	}
	for _, child := range children {
		el.AppendChild(child)
	}

	return el
}

// Hole returns a DOMOutput whose element is also the content hole.
func Hole(el *html.Node) DOMOutput {
	return DOMOutput{Element: el, ContentHole: el}
}

// Leaf returns a DOMOutput without content.
func Leaf(el *html.Node) DOMOutput {
	return DOMOutput{Element: el}
}

// AttrString returns the attribute value of an element.
func AttrString(el *html.Node, key string) (string, bool) {
	if el == nil {
		return "", false
	}
	for _, attr := range el.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}

	return "", false
}

type domSelector struct {
	tag     string
	classes []string
	attrs   []string
}

func parseSelector(selector string) domSelector {
	var sel domSelector
	selector = strings.TrimSpace(selector)
	for idx := 0; idx < len(selector); {
		switch selector[idx] {
		case '.':
			end := idx + 1
			for end < len(selector) && selector[end] != '.' && selector[end] != '[' {
				end++
			}
			sel.classes = append(sel.classes, selector[idx+1:end])
			idx = end
		case '[':
			end := strings.IndexByte(selector[idx:], ']')
			if end < 0 {
				sel.attrs = append(sel.attrs, selector[idx+1:])
				return sel
			}
			sel.attrs = append(sel.attrs, selector[idx+1:idx+end])
			idx += end + 1
		default:
			end := idx
			for end < len(selector) && selector[end] != '.' && selector[end] != '[' {
				end++
			}
			sel.tag = strings.ToLower(selector[idx:end])
			idx = end
		}
	}

	return sel
}

// Matches reports whether the element satisfies the selector.
func (r DOMRule) Matches(el *html.Node) bool {
	if el == nil || el.Type != html.ElementNode {
		return false
	}
	sel := parseSelector(r.Selector)
	if sel.tag != "" && sel.tag != strings.ToLower(el.Data) {
		return false
	}
	if len(sel.classes) > 0 {
		classAttr, _ := AttrString(el, "class")
		present := strings.Fields(classAttr)
		for _, want := range sel.classes {
			if !containsString(present, want) {
				return false
			}
		}
	}
	for _, attr := range sel.attrs {
		if _, ok := AttrString(el, attr); !ok {
			return false
		}
	}

	return true
}

// EffectivePriority returns the rule priority with the default applied.
func (r DOMRule) EffectivePriority() int {
	if r.Priority == 0 {
		return DefaultDOMPriority
	}

	return r.Priority
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}

	return false
}
