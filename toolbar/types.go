package toolbar

import (
	"github.com/rgonek/markdown-editor/extension"
)

// Surface is the editing surface a toolbar acts on.
type Surface string

const (
	SurfaceWysiwyg Surface = "wysiwyg"
	SurfaceMarkup  Surface = "markup"
)

// Slot names one of the four toolbars of a session.
type Slot string

const (
	SlotWysiwygMain   Slot = "wysiwyg-main"
	SlotWysiwygHidden Slot = "wysiwyg-hidden"
	SlotMarkupMain    Slot = "markup-main"
	SlotMarkupHidden  Slot = "markup-hidden"
)

var slotOrder = []Slot{SlotWysiwygMain, SlotWysiwygHidden, SlotMarkupMain, SlotMarkupHidden}

// Slots returns the slots in resolution order.
func Slots() []Slot {
	return append([]Slot(nil), slotOrder...)
}

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
	for _, slot := range slotOrder {
		if slot == s {
			return true
		}
	}
	return false
}

// Surface returns the surface whose actions the slot binds.
func (s Slot) Surface() Surface {
	if s == SlotMarkupMain || s == SlotMarkupHidden {
		return SurfaceMarkup
	}
	return SurfaceWysiwyg
}

// Hidden reports whether the slot is a flat "more actions" menu.
func (s Slot) Hidden() bool {
	return s == SlotWysiwygHidden || s == SlotMarkupHidden
}

// View is the presentation data shared by all buttons.
type View struct {
	Title  string
	Hint   string
	Hotkey string
}

// Item is a resolved toolbar entry: a SingleButton, a ListButton or a Stub.
type Item interface {
	ItemID() string
	isItem()
}

// SingleButton runs one action. Action is set on wysiwyg surfaces, MarkupAction on markup ones.
type SingleButton struct {
	ID           string
	View         View
	ActionID     string
	Action       extension.Action
	MarkupAction extension.MarkupAction
}

// ListButton opens a list of buttons.
type ListButton struct {
	ID        string
	View      View
	WithArrow bool
	Items     []Item
}

// Stub stands in for an entry that could not be resolved.
type Stub struct {
	ID     string
	Reason DiagnosticKind
}

func (b SingleButton) ItemID() string { return b.ID }
func (b ListButton) ItemID() string   { return b.ID }
func (s Stub) ItemID() string         { return s.ID }

func (SingleButton) isItem() {}
func (ListButton) isItem()   {}
func (Stub) isItem()         {}

// Toolbar is an ordered list of groups of items.
type Toolbar struct {
	Slot   Slot
	Groups [][]Item
}

// Set holds the resolved toolbars of a session. Hidden slots are flattened.
type Set struct {
	WysiwygMain   Toolbar
	WysiwygHidden []Item
	MarkupMain    Toolbar
	MarkupHidden  []Item
	Diagnostics   []Diagnostic
}

// Main returns the main toolbar of a surface.
func (s Set) Main(surface Surface) Toolbar {
	if surface == SurfaceMarkup {
		return s.MarkupMain
	}
	return s.WysiwygMain
}

// Hidden returns the flattened hidden actions of a surface.
func (s Set) Hidden(surface Surface) []Item {
	if surface == SurfaceMarkup {
		return s.MarkupHidden
	}
	return s.WysiwygHidden
}

// DiagnosticKind classifies resolution problems.
type DiagnosticKind string

const (
	DiagnosticUnknownPreset DiagnosticKind = "unknown_preset"
	DiagnosticUnknownSlot   DiagnosticKind = "unknown_slot"
	DiagnosticUnknownItem   DiagnosticKind = "unknown_item"
	DiagnosticUnknownAction DiagnosticKind = "unknown_action"
)

// Diagnostic is a non-fatal resolution problem.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Slot     Slot           `json:"slot,omitempty"`
	ItemID   string         `json:"itemId,omitempty"`
	ActionID string         `json:"actionId,omitempty"`
	Message  string         `json:"message"`
}
