package toolbar

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/internal/logging"
)

// ResolveOptions select the toolbars of a session.
type ResolveOptions struct {
	// Preset names a built-in preset; unknown names fall back to "default".
	Preset string
	// Custom replaces the named preset entirely when set.
	Custom *Preset
	// Items extend the dictionary and replace entries with the same id.
	Items map[string]ItemDef
	// Overrides replace the preset order of a slot wholesale.
	Overrides map[Slot]Order
	Registry  *extension.Registry
	Logger    *slog.Logger
}

type resolver struct {
	items       map[string]ItemDef
	registry    *extension.Registry
	diagnostics []Diagnostic
}

// Resolve builds the four toolbars. It never fails: unresolvable entries become stubs and are
// reported in Set.Diagnostics. Equal options give equal output.
func Resolve(opts ResolveOptions) Set {
	logger := logging.OrNop(opts.Logger)
	r := &resolver{registry: opts.Registry}
	preset := r.preset(opts)

	r.items = preset.Items
	if r.items == nil {
		r.items = map[string]ItemDef{}
	}
	for id, def := range opts.Items {
		r.items[id] = def
	}

	orders := preset.Orders
	if orders == nil {
		orders = map[Slot]Order{}
	}
	overridden := make([]string, 0, len(opts.Overrides))
	for slot := range opts.Overrides {
		overridden = append(overridden, string(slot))
	}
	sort.Strings(overridden)
	for _, name := range overridden {
		slot := Slot(name)
		if !slot.Valid() {
			r.report(Diagnostic{Kind: DiagnosticUnknownSlot, Slot: slot, Message: fmt.Sprintf("unknown toolbar slot %q", slot)})
			continue
		}
		orders[slot] = opts.Overrides[slot]
	}

	set := Set{
		WysiwygMain:   r.toolbar(SlotWysiwygMain, orders[SlotWysiwygMain]),
		WysiwygHidden: Flatten(r.toolbar(SlotWysiwygHidden, orders[SlotWysiwygHidden])),
		MarkupMain:    r.toolbar(SlotMarkupMain, orders[SlotMarkupMain]),
		MarkupHidden:  Flatten(r.toolbar(SlotMarkupHidden, orders[SlotMarkupHidden])),
		Diagnostics:   r.diagnostics,
	}
	for _, diagnostic := range set.Diagnostics {
		logger.Warn("toolbar entry unresolved",
			"kind", diagnostic.Kind,
			"slot", diagnostic.Slot,
			"item", diagnostic.ItemID,
			"action", diagnostic.ActionID,
			"message", diagnostic.Message,
		)
	}
	return set
}

func (r *resolver) preset(opts ResolveOptions) Preset {
	if opts.Custom != nil {
		return opts.Custom.clone()
	}
	name := opts.Preset
	if name == "" {
		name = PresetDefault
	}
	preset, err := LoadPreset(name)
	if err == nil {
		return preset
	}
	r.report(Diagnostic{Kind: DiagnosticUnknownPreset, Message: err.Error()})
	if name != PresetDefault {
		if preset, err = LoadPreset(PresetDefault); err == nil {
			return preset
		}
		r.report(Diagnostic{Kind: DiagnosticUnknownPreset, Message: err.Error()})
	}
	return Preset{Name: name}
}

func (r *resolver) report(diagnostic Diagnostic) {
	r.diagnostics = append(r.diagnostics, diagnostic)
}

func (r *resolver) toolbar(slot Slot, order Order) Toolbar {
	toolbar := Toolbar{Slot: slot, Groups: make([][]Item, 0, len(order))}
	for _, group := range order {
		items := make([]Item, 0, len(group))
		for _, entry := range group {
			items = append(items, r.entry(slot, entry))
		}
		toolbar.Groups = append(toolbar.Groups, items)
	}
	return toolbar
}

func (r *resolver) entry(slot Slot, entry Entry) Item {
	def, ok := r.items[entry.ID]
	if !ok {
		r.report(Diagnostic{
			Kind:    DiagnosticUnknownItem,
			Slot:    slot,
			ItemID:  entry.ID,
			Message: fmt.Sprintf("toolbar item %q not found in the items dictionary", entry.ID),
		})
		return Stub{ID: entry.ID, Reason: DiagnosticUnknownItem}
	}
	view := View{Title: def.Title, Hint: def.Hint, Hotkey: def.Hotkey}

	switch def.Type {
	case ItemList:
		list := ListButton{ID: entry.ID, View: view, WithArrow: def.WithArrow, Items: make([]Item, 0, len(entry.Items))}
		for _, id := range entry.Items {
			list.Items = append(list.Items, r.entry(slot, Entry{ID: id}))
		}
		return list
	case ItemSingle, "":
		return r.button(slot, entry.ID, view, def)
	default:
		r.report(Diagnostic{
			Kind:    DiagnosticUnknownItem,
			Slot:    slot,
			ItemID:  entry.ID,
			Message: fmt.Sprintf("toolbar item %q has unknown type %q", entry.ID, def.Type),
		})
		return Stub{ID: entry.ID, Reason: DiagnosticUnknownItem}
	}
}

func (r *resolver) button(slot Slot, id string, view View, def ItemDef) Item {
	button := SingleButton{ID: id, View: view}
	ok := false
	switch slot.Surface() {
	case SurfaceMarkup:
		button.ActionID = def.Markup
		if r.registry != nil && button.ActionID != "" {
			button.MarkupAction, ok = r.registry.MarkupAction(button.ActionID)
		}
	default:
		button.ActionID = def.Wysiwyg
		if r.registry != nil && button.ActionID != "" {
			button.Action, ok = r.registry.Action(button.ActionID)
		}
	}
	if ok {
		return button
	}
	message := fmt.Sprintf("action %q of toolbar item %q is not registered for %s", button.ActionID, id, slot.Surface())
	if button.ActionID == "" {
		message = fmt.Sprintf("toolbar item %q has no %s action", id, slot.Surface())
	}
	r.report(Diagnostic{Kind: DiagnosticUnknownAction, Slot: slot, ItemID: id, ActionID: button.ActionID, Message: message})
	return Stub{ID: id, Reason: DiagnosticUnknownAction}
}

// Flatten expands list buttons into their members and returns the buttons in order. Stubs are
// left out.
func Flatten(toolbar Toolbar) []Item {
	var out []Item
	var visit func(items []Item)
	visit = func(items []Item) {
		for _, item := range items {
			switch item := item.(type) {
			case SingleButton:
				out = append(out, item)
			case ListButton:
				visit(item.Items)
			case Stub:
			}
		}
	}
	for _, group := range toolbar.Groups {
		visit(group)
	}
	return out
}

// ActionIDs returns the action ids of the buttons in order, for a flat listing.
func ActionIDs(items []Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if button, ok := item.(SingleButton); ok {
			ids = append(ids, button.ActionID)
		}
	}
	return ids
}
