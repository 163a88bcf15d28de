package extension

import (
	"regexp"

	"github.com/rgonek/markdown-editor/schema"
)

// Selection addresses a range of inline content inside one textblock. Offsets count runes of
// text plus one per inline leaf node.
type Selection struct {
	Path []int `json:"path"`
	From int   `json:"from"`
	To   int   `json:"to"`
}

// Empty reports whether the selection is a cursor.
func (s Selection) Empty() bool {
	return s.From == s.To
}

// Clone returns a copy with its own path.
func (s Selection) Clone() Selection {
	s.Path = append([]int(nil), s.Path...)
	return s
}

// EditorState is the input and output of structured-document actions.
type EditorState struct {
	Schema    *schema.Schema
	Doc       schema.Node
	Selection Selection
}

// Action is a command over the structured document.
type Action interface {
	IsEnabled(state EditorState) bool
	IsActive(state EditorState) bool
	// Run returns the new state; false means the action did not apply.
	Run(state EditorState) (EditorState, bool)
}

// ActionFactory binds an action to a compiled schema.
type ActionFactory func(s *schema.Schema) Action

// MarkupState is the input and output of raw-text actions. From and To are byte offsets.
type MarkupState struct {
	Text string
	From int
	To   int
}

// MarkupAction is a command over markup text.
type MarkupAction interface {
	Run(state MarkupState) (MarkupState, bool)
}

// MarkupActionFunc adapts a function to MarkupAction.
type MarkupActionFunc func(state MarkupState) (MarkupState, bool)

// Run implements MarkupAction.
func (f MarkupActionFunc) Run(state MarkupState) (MarkupState, bool) {
	return f(state)
}

// InputRule rewrites the document when the text before the cursor matches Pattern.
type InputRule struct {
	Pattern *regexp.Regexp
	// Handler receives the submatch rune offsets relative to the start of the textblock.
	Handler func(state EditorState, match []int) (EditorState, bool)
}

// InputRuleFactory binds an input rule to a compiled schema.
type InputRuleFactory func(s *schema.Schema) InputRule
