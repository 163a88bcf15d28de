package editor

import (
	"github.com/google/uuid"
)

// Event is a session notification: ModeChanged, SplitModeChanged, PreviewVisibilityChanged,
// ToolbarVisibilityChanged, Change or Submit.
type Event interface {
	isEvent()
}

// ModeChanged reports a completed mode transition.
type ModeChanged struct {
	Mode     Mode
	Previous Mode
	Reason   Reason
}

// SplitModeChanged reports a new split layout.
type SplitModeChanged struct {
	SplitMode SplitMode
}

// PreviewVisibilityChanged reports the preview pane being shown or hidden.
type PreviewVisibilityChanged struct {
	Visible bool
}

// ToolbarVisibilityChanged reports the toolbar being shown or hidden.
type ToolbarVisibilityChanged struct {
	Visible bool
}

// Change reports an edit of the live representation.
type Change struct {
	Mode Mode
}

// Submit reports that the user asked to submit the document.
type Submit struct {
	Markup string
}

func (ModeChanged) isEvent()              {}
func (SplitModeChanged) isEvent()         {}
func (PreviewVisibilityChanged) isEvent() {}
func (ToolbarVisibilityChanged) isEvent() {}
func (Change) isEvent()                   {}
func (Submit) isEvent()                   {}

type subscriber struct {
	id uuid.UUID
	fn func(Event)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id     uuid.UUID
	editor *Editor
}

// ID identifies the subscription.
func (s Subscription) ID() uuid.UUID {
	return s.id
}

// Cancel stops delivery. It is safe to call more than once.
func (s Subscription) Cancel() {
	if s.editor != nil {
		s.editor.unsubscribe(s.id)
	}
}
