package transform

import "github.com/rgonek/markdown-editor/schema"

type markStack struct {
	items []schema.Mark
}

func (s *markStack) push(mark schema.Mark) {
	s.items = append(s.items, mark.Clone())
}

func (s *markStack) popByType(markType string) bool {
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].Type != markType {
			continue
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		return true
	}

	return false
}

func (s *markStack) current() []schema.Mark {
	if len(s.items) == 0 {
		return nil
	}
	marks := make([]schema.Mark, 0, len(s.items))
	for _, mark := range s.items {
		marks = append(marks, mark.Clone())
	}

	return marks
}

func appendInlineNode(content []schema.Node, next schema.Node) []schema.Node {
	if next.IsText() && next.Text == "" {
		return content
	}
	if len(content) == 0 {
		return append(content, next)
	}
	last := &content[len(content)-1]
	if last.IsText() && next.IsText() && schema.MarksEqual(last.Marks, next.Marks) {
		last.Text += next.Text
		return content
	}

	return append(content, next)
}
