package extension

import (
	"unicode/utf8"

	"github.com/rgonek/markdown-editor/schema"
)

// InsertText replaces the selection with text carrying the marks active at the cursor.
func InsertText(state EditorState, text string) (EditorState, bool) {
	block, blockType, ok := textblockAt(state)
	if !ok {
		return state, false
	}
	from, to := clampRange(InlineSize(block.Content), state.Selection.From, state.Selection.To)
	var marks []schema.Mark
	if !blockType.Spec.Code {
		marks = MarksAt(block.Content, from)
	}
	block.Content = ReplaceInlineRange(block.Content, from, to, text, marks)
	next, ok := replaceTextblock(state, block)
	if !ok {
		return state, false
	}
	cursor := from + utf8.RuneCountInString(text)
	next.Selection = next.Selection.Clone()
	next.Selection.From, next.Selection.To = cursor, cursor
	return next, true
}

// ApplyInputRules runs the first rule whose pattern matches the text before the cursor.
// Rules are not applied inside code blocks or with a non-empty selection.
func ApplyInputRules(state EditorState, rules []InputRule) (EditorState, bool) {
	block, blockType, ok := textblockAt(state)
	if !ok || !state.Selection.Empty() || blockType.Spec.Code {
		return state, false
	}
	before := InlineText(block.Content, 0, state.Selection.From)
	for _, rule := range rules {
		if rule.Pattern == nil || rule.Handler == nil {
			continue
		}
		loc := rule.Pattern.FindStringSubmatchIndex(before)
		if loc == nil {
			continue
		}
		if next, ok := rule.Handler(state, runeOffsets(before, loc)); ok {
			return next, true
		}
	}

	return state, false
}

// HandleTextInput inserts typed text and then applies the input rules.
func HandleTextInput(state EditorState, text string, rules []InputRule) (EditorState, bool) {
	next, ok := InsertText(state, text)
	if !ok {
		return state, false
	}
	if ruled, ok := ApplyInputRules(next, rules); ok {
		return ruled, true
	}

	return next, true
}

// runeOffsets converts regexp byte offsets into rune offsets of s.
func runeOffsets(s string, loc []int) []int {
	out := make([]int, len(loc))
	for idx, offset := range loc {
		if offset < 0 {
			out[idx] = offset
			continue
		}
		out[idx] = utf8.RuneCountInString(s[:offset])
	}

	return out
}
