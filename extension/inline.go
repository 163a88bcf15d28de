package extension

import (
	"github.com/rgonek/markdown-editor/schema"
)

// objectReplacement stands for an inline leaf node in text views of inline content.
const objectReplacement = '\uFFFC'

type inlineUnit struct {
	char  rune
	node  *schema.Node
	marks []schema.Mark
}

func explodeInline(content []schema.Node) []inlineUnit {
	var units []inlineUnit
	for idx := range content {
		child := content[idx]
		if child.IsText() {
			for _, ch := range child.Text {
				units = append(units, inlineUnit{char: ch, marks: child.Marks})
			}
			continue
		}
		node := child.Clone()
		units = append(units, inlineUnit{node: &node, marks: child.Marks})
	}

	return units
}

func implodeInline(units []inlineUnit) []schema.Node {
	var content []schema.Node
	for _, unit := range units {
		if unit.node != nil {
			node := unit.node.Clone()
			node.Marks = cloneMarks(unit.marks)
			content = append(content, node)
			continue
		}
		if len(content) > 0 {
			last := &content[len(content)-1]
			if last.IsText() && schema.MarksEqual(last.Marks, unit.marks) {
				last.Text += string(unit.char)
				continue
			}
		}
		content = append(content, schema.Node{Type: schema.TextNodeName, Text: string(unit.char), Marks: cloneMarks(unit.marks)})
	}

	return content
}

func cloneMarks(marks []schema.Mark) []schema.Mark {
	if len(marks) == 0 {
		return nil
	}
	out := make([]schema.Mark, len(marks))
	for idx, mark := range marks {
		out[idx] = mark.Clone()
	}

	return out
}

func clampRange(size, from, to int) (int, int) {
	if from > to {
		from, to = to, from
	}
	if from < 0 {
		from = 0
	}
	if to > size {
		to = size
	}
	if from > to {
		from = to
	}

	return from, to
}

// InlineSize returns the offset size of inline content.
func InlineSize(content []schema.Node) int {
	size := 0
	for _, child := range content {
		if child.IsText() {
			size += len([]rune(child.Text))
			continue
		}
		size++
	}

	return size
}

// InlineText returns the text between two offsets; inline leaves read as U+FFFC.
func InlineText(content []schema.Node, from, to int) string {
	units := explodeInline(content)
	from, to = clampRange(len(units), from, to)
	runes := make([]rune, 0, to-from)
	for _, unit := range units[from:to] {
		if unit.node != nil {
			runes = append(runes, objectReplacement)
			continue
		}
		runes = append(runes, unit.char)
	}

	return string(runes)
}

// AddMarkInRange applies a mark to the range, honoring the schema's exclusion rules.
func AddMarkInRange(s *schema.Schema, content []schema.Node, from, to int, mark schema.Mark) []schema.Node {
	units := explodeInline(content)
	from, to = clampRange(len(units), from, to)
	for idx := from; idx < to; idx++ {
		units[idx].marks = s.AddMark(units[idx].marks, mark)
	}

	return implodeInline(units)
}

// RemoveMarkInRange removes every mark of the given type from the range.
func RemoveMarkInRange(content []schema.Node, from, to int, markType string) []schema.Node {
	units := explodeInline(content)
	from, to = clampRange(len(units), from, to)
	for idx := from; idx < to; idx++ {
		units[idx].marks = schema.RemoveMark(units[idx].marks, markType)
	}

	return implodeInline(units)
}

// RangeHasMark reports whether every position of a non-empty range carries the mark type.
func RangeHasMark(content []schema.Node, from, to int, markType string) bool {
	units := explodeInline(content)
	from, to = clampRange(len(units), from, to)
	if from == to {
		return false
	}
	for _, unit := range units[from:to] {
		if !schema.HasMark(unit.marks, markType) {
			return false
		}
	}

	return true
}

// MarksAt returns the marks that text typed at the offset inherits.
func MarksAt(content []schema.Node, offset int) []schema.Mark {
	units := explodeInline(content)
	if len(units) == 0 {
		return nil
	}
	if offset > 0 && offset <= len(units) {
		return cloneMarks(units[offset-1].marks)
	}

	return cloneMarks(units[0].marks)
}

// ReplaceInlineRange replaces the range with text carrying marks.
func ReplaceInlineRange(content []schema.Node, from, to int, text string, marks []schema.Mark) []schema.Node {
	units := explodeInline(content)
	from, to = clampRange(len(units), from, to)
	inserted := make([]inlineUnit, 0, len(text))
	for _, ch := range text {
		inserted = append(inserted, inlineUnit{char: ch, marks: marks})
	}
	next := make([]inlineUnit, 0, len(units)-(to-from)+len(inserted))
	next = append(next, units[:from]...)
	next = append(next, inserted...)
	next = append(next, units[to:]...)
	return implodeInline(next)
}

// InsertInlineNode replaces the range with an inline leaf node.
func InsertInlineNode(content []schema.Node, from, to int, node schema.Node) []schema.Node {
	units := explodeInline(content)
	from, to = clampRange(len(units), from, to)
	leaf := node.Clone()
	next := make([]inlineUnit, 0, len(units)-(to-from)+1)
	next = append(next, units[:from]...)
	next = append(next, inlineUnit{node: &leaf, marks: leaf.Marks})
	next = append(next, units[to:]...)
	return implodeInline(next)
}

// NodeAt returns the node at a child-index path.
func NodeAt(root schema.Node, path []int) (schema.Node, bool) {
	current := root
	for _, index := range path {
		if index < 0 || index >= len(current.Content) {
			return schema.Node{}, false
		}
		current = current.Content[index]
	}

	return current, true
}

// ReplaceAt returns a copy of root with the node at path replaced by nodes (zero or more).
func ReplaceAt(root schema.Node, path []int, nodes ...schema.Node) (schema.Node, bool) {
	if len(path) == 0 {
		if len(nodes) != 1 {
			return schema.Node{}, false
		}
		return nodes[0], true
	}
	index := path[0]
	if index < 0 || index >= len(root.Content) {
		return schema.Node{}, false
	}
	updated := root
	updated.Content = append([]schema.Node(nil), root.Content...)
	if len(path) == 1 {
		content := make([]schema.Node, 0, len(root.Content)-1+len(nodes))
		content = append(content, root.Content[:index]...)
		content = append(content, nodes...)
		content = append(content, root.Content[index+1:]...)
		updated.Content = content
		return updated, true
	}
	child, ok := ReplaceAt(root.Content[index], path[1:], nodes...)
	if !ok {
		return schema.Node{}, false
	}
	updated.Content[index] = child
	return updated, true
}
