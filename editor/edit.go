package editor

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/schema"
)

// TextPatch replaces the markup between two byte offsets.
type TextPatch struct {
	From int    `json:"from"`
	To   int    `json:"to"`
	Text string `json:"text"`
}

// commitLocked emits Change for an edit that was just stored. The caller holds e.mu, which is
// released before delivery.
func (e *Editor) commitLocked() {
	mode := e.mode
	subscribers := e.snapshotSubscribersLocked()
	e.mu.Unlock()
	deliver(subscribers, Change{Mode: mode})
}

// lockForEdit locks e.mu for an edit in mode. On error the lock is released.
func (e *Editor) lockForEdit(mode Mode) error {
	e.mu.Lock()
	if err := e.beginLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.mode != mode {
		current := e.mode
		e.mu.Unlock()
		return fmt.Errorf("%w: requires %s mode, session is in %s mode", ErrWrongMode, mode, current)
	}

	return nil
}

// SetMarkup replaces the markup text. Markup mode only.
func (e *Editor) SetMarkup(text string) error {
	if err := e.lockForEdit(ModeMarkup); err != nil {
		return err
	}
	e.markup = text
	e.markupSelection = clampMarkupSelection(e.markupSelection, len(text))
	e.commitLocked()
	return nil
}

// ApplyTextPatch edits the markup text and moves the cursor after the inserted text. Markup
// mode only.
func (e *Editor) ApplyTextPatch(patch TextPatch) error {
	if err := e.lockForEdit(ModeMarkup); err != nil {
		return err
	}
	if err := validRange(e.markup, patch.From, patch.To); err != nil {
		e.mu.Unlock()
		return err
	}
	e.markup = e.markup[:patch.From] + patch.Text + e.markup[patch.To:]
	cursor := patch.From + len(patch.Text)
	e.markupSelection = MarkupSelection{From: cursor, To: cursor}
	e.commitLocked()
	return nil
}

// SetMarkupSelection moves the markup selection. Markup mode only.
func (e *Editor) SetMarkupSelection(sel MarkupSelection) error {
	if err := e.lockForEdit(ModeMarkup); err != nil {
		return err
	}
	defer e.mu.Unlock()
	from, to := sel.From, sel.To
	if from > to {
		from, to = to, from
	}
	if err := validRange(e.markup, from, to); err != nil {
		return err
	}
	e.markupSelection = MarkupSelection{From: from, To: to}
	return nil
}

func validRange(text string, from, to int) error {
	if from < 0 || to < from || to > len(text) {
		return fmt.Errorf("%w: range %d-%d outside markup of length %d", ErrInvalidEdit, from, to, len(text))
	}
	if !boundary(text, from) || !boundary(text, to) {
		return fmt.Errorf("%w: range %d-%d splits a character", ErrInvalidEdit, from, to)
	}

	return nil
}

func boundary(text string, offset int) bool {
	return offset == len(text) || utf8.RuneStart(text[offset])
}

func clampMarkupSelection(sel MarkupSelection, size int) MarkupSelection {
	sel.From = min(sel.From, size)
	sel.To = min(sel.To, size)
	return sel
}

// SetDocument replaces the document tree after checking it against the schema. Wysiwyg mode
// only.
func (e *Editor) SetDocument(doc schema.Node) error {
	if err := e.engine.Schema().Check(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEdit, err)
	}
	if err := e.lockForEdit(ModeWysiwyg); err != nil {
		return err
	}
	e.doc = doc.Clone()
	if !e.selectionValidLocked(e.selection) {
		e.selection = firstSelection(e.engine.Schema(), e.doc)
	}
	e.commitLocked()
	return nil
}

// SetSelection moves the document selection. Wysiwyg mode only.
func (e *Editor) SetSelection(sel extension.Selection) error {
	if err := e.lockForEdit(ModeWysiwyg); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if sel.From > sel.To {
		sel.From, sel.To = sel.To, sel.From
	}
	if !e.selectionValidLocked(sel) {
		return fmt.Errorf("%w: selection %v %d-%d is not inside a textblock", ErrInvalidEdit, sel.Path, sel.From, sel.To)
	}
	e.selection = sel.Clone()
	return nil
}

func (e *Editor) selectionValidLocked(sel extension.Selection) bool {
	node, ok := extension.NodeAt(e.doc, sel.Path)
	if !ok || len(sel.Path) == 0 {
		return false
	}
	nodeType, ok := e.engine.Schema().NodeType(node.Type)
	if !ok || !nodeType.IsTextblock() {
		return false
	}

	return sel.From >= 0 && sel.To <= extension.InlineSize(node.Content)
}

func (e *Editor) editorStateLocked() extension.EditorState {
	return extension.EditorState{Schema: e.engine.Schema(), Doc: e.doc, Selection: e.selection.Clone()}
}

// Exec runs an action of the current mode. It reports whether the action applied.
func (e *Editor) Exec(actionID string) (bool, error) {
	e.mu.Lock()
	if err := e.beginLocked(); err != nil {
		e.mu.Unlock()
		return false, err
	}

	if e.mode == ModeMarkup {
		action, ok := e.registry.MarkupAction(actionID)
		if !ok {
			e.mu.Unlock()
			return false, fmt.Errorf("%w: %q in markup mode", ErrUnknownAction, actionID)
		}
		next, applied := action.Run(extension.MarkupState{Text: e.markup, From: e.markupSelection.From, To: e.markupSelection.To})
		if !applied {
			e.mu.Unlock()
			return false, nil
		}
		e.markup = next.Text
		e.markupSelection = clampMarkupSelection(MarkupSelection{From: next.From, To: next.To}, len(next.Text))
		e.commitLocked()
		return true, nil
	}

	action, ok := e.registry.Action(actionID)
	if !ok {
		e.mu.Unlock()
		return false, fmt.Errorf("%w: %q in wysiwyg mode", ErrUnknownAction, actionID)
	}
	next, applied := action.Run(e.editorStateLocked())
	if !applied {
		e.mu.Unlock()
		return false, nil
	}
	if err := e.engine.Schema().Check(next.Doc); err != nil {
		e.mu.Unlock()
		return false, fmt.Errorf("action %q produced an invalid document: %w", actionID, err)
	}
	e.doc = next.Doc
	e.selection = next.Selection
	e.commitLocked()
	return true, nil
}

// ActionState reports whether a wysiwyg action can run and whether it is active at the
// selection. Markup actions are always enabled and never active.
func (e *Editor) ActionState(actionID string) (enabled, active bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return false, false, ErrDisposed
	}
	if e.mode == ModeMarkup {
		if _, ok := e.registry.MarkupAction(actionID); !ok {
			return false, false, fmt.Errorf("%w: %q in markup mode", ErrUnknownAction, actionID)
		}
		return true, false, nil
	}
	action, ok := e.registry.Action(actionID)
	if !ok {
		return false, false, fmt.Errorf("%w: %q in wysiwyg mode", ErrUnknownAction, actionID)
	}
	state := e.editorStateLocked()
	return action.IsEnabled(state), action.IsActive(state), nil
}

// HandleTextInput inserts typed text at the selection. In wysiwyg mode input rules run on the
// text before the cursor.
func (e *Editor) HandleTextInput(text string) (bool, error) {
	e.mu.Lock()
	if err := e.beginLocked(); err != nil {
		e.mu.Unlock()
		return false, err
	}
	if e.mode == ModeMarkup {
		sel := e.markupSelection
		e.mu.Unlock()
		if err := e.ApplyTextPatch(TextPatch{From: sel.From, To: sel.To, Text: text}); err != nil {
			return false, err
		}
		return true, nil
	}

	next, applied := extension.HandleTextInput(e.editorStateLocked(), text, e.rules)
	if !applied {
		e.mu.Unlock()
		return false, nil
	}
	if err := e.engine.Schema().Check(next.Doc); err != nil {
		e.mu.Unlock()
		return false, fmt.Errorf("%w: %w", ErrInvalidEdit, err)
	}
	e.doc = next.Doc
	e.selection = next.Selection
	e.commitLocked()
	return true, nil
}

// HandleKey runs the action bound to key, if any.
func (e *Editor) HandleKey(key string) (bool, error) {
	actionID, ok := e.registry.KeyBinding(key)
	if !ok {
		return false, nil
	}
	if e.Mode() == ModeMarkup {
		if _, ok := e.registry.MarkupAction(actionID); !ok {
			return false, nil
		}
	}

	return e.Exec(actionID)
}

// Submit emits a Submit event carrying the current markup.
func (e *Editor) Submit(ctx context.Context) error {
	text, err := e.Markup(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return ErrDisposed
	}
	subscribers := e.snapshotSubscribersLocked()
	e.mu.Unlock()
	deliver(subscribers, Submit{Markup: text})
	return nil
}
