package transform

import (
	"fmt"
	"strings"

	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
)

// normalizer repairs converted trees so they satisfy the content model where a repair is
// unambiguous: stray inline runs in block containers are wrapped in paragraphs, empty
// paragraphs are dropped and required content is filled with an empty paragraph.
type normalizer struct {
	schema            *schema.Schema
	preserveEmptyRows bool
	warn              func(warnType markup.WarningType, nodeType, message string)
}

func (n normalizer) normalize(node schema.Node) schema.Node {
	if node.IsText() {
		return node
	}
	nodeType, ok := n.schema.NodeType(node.Type)
	if !ok {
		return node
	}

	content := make([]schema.Node, 0, len(node.Content))
	for _, child := range node.Content {
		content = append(content, n.normalize(child))
	}

	switch {
	case nodeType.IsTextblock():
		content = n.cleanInline(nodeType, content)
	case !nodeType.IsLeaf():
		content = n.wrapInline(nodeType, content)
		content = n.dropEmptyParagraphs(nodeType, content)
		content = n.fillRequired(nodeType, content)
	}

	if len(content) == 0 {
		node.Content = nil
	} else {
		node.Content = content
	}

	return node
}

func (n normalizer) cleanInline(parent *schema.NodeType, content []schema.Node) []schema.Node {
	var out []schema.Node
	for _, child := range content {
		if len(child.Marks) > 0 {
			kept := make([]schema.Mark, 0, len(child.Marks))
			for _, mark := range child.Marks {
				if parent.AllowsMarkType(mark.Type) {
					kept = append(kept, mark)
					continue
				}
				n.warn(markup.WarningDroppedFeature, mark.Type, fmt.Sprintf("mark %s is not allowed in %s", mark.Type, parent.Name))
			}
			if len(kept) == 0 {
				kept = nil
			}
			child.Marks = kept
		}
		out = appendInlineNode(out, child)
	}

	return out
}

func (n normalizer) isInline(node schema.Node) bool {
	nodeType, ok := n.schema.NodeType(node.Type)
	return ok && nodeType.IsInline()
}

func (n normalizer) wrapInline(parent *schema.NodeType, content []schema.Node) []schema.Node {
	if parent.Content.Allows(schema.TextNodeName) {
		return content
	}
	var out []schema.Node
	var run []schema.Node
	flush := func() {
		if len(run) == 0 {
			return
		}
		defer func() { run = nil }()
		if isBlankRun(run) {
			return
		}
		if !parent.Content.Allows(markup.ParagraphNodeName) {
			n.warn(markup.WarningDroppedFeature, parent.Name, fmt.Sprintf("inline content is not allowed in %s", parent.Name))
			return
		}
		paragraph, ok := n.schema.NodeType(markup.ParagraphNodeName)
		if !ok {
			return
		}
		out = append(out, schema.Node{
			Type:    markup.ParagraphNodeName,
			Content: n.cleanInline(paragraph, run),
		})
	}
	for _, child := range content {
		if n.isInline(child) {
			run = append(run, child)
			continue
		}
		flush()
		out = append(out, child)
	}
	flush()
	return out
}

func isBlankRun(run []schema.Node) bool {
	for _, node := range run {
		if !node.IsText() || strings.TrimSpace(node.Text) != "" {
			return false
		}
	}

	return true
}

func (n normalizer) dropEmptyParagraphs(parent *schema.NodeType, content []schema.Node) []schema.Node {
	if n.preserveEmptyRows {
		return content
	}
	var kept []schema.Node
	for _, child := range content {
		if child.Type == markup.ParagraphNodeName && len(child.Content) == 0 {
			continue
		}
		kept = append(kept, child)
	}
	if len(kept) == len(content) {
		return content
	}
	// Keep the original when dropping would break content that matched.
	if parent.Content.Matches(childTypes(content)) && !parent.Content.Matches(childTypes(kept)) {
		return content
	}

	return kept
}

func (n normalizer) fillRequired(parent *schema.NodeType, content []schema.Node) []schema.Node {
	if len(content) > 0 || parent.Content.Matches(nil) {
		return content
	}
	if parent.Content.Allows(markup.ParagraphNodeName) {
		return []schema.Node{{Type: markup.ParagraphNodeName}}
	}

	return content
}

func childTypes(content []schema.Node) []string {
	types := make([]string, len(content))
	for i, child := range content {
		types[i] = child.Type
	}

	return types
}
