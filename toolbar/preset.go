package toolbar

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Preset names shipped with the package.
const (
	PresetZero       = "zero"
	PresetCommonMark = "commonmark"
	PresetDefault    = "default"
	PresetYfm        = "yfm"
	PresetFull       = "full"
)

// ItemType selects the button variant of an item definition.
type ItemType string

const (
	ItemSingle ItemType = "single"
	ItemList   ItemType = "list"
)

// ItemDef is an entry of the items dictionary. Wysiwyg and Markup name the action ids the item
// runs on each surface; list items carry no action of their own.
type ItemDef struct {
	Type      ItemType `yaml:"type,omitempty"`
	Title     string   `yaml:"title"`
	Hint      string   `yaml:"hint,omitempty"`
	Hotkey    string   `yaml:"hotkey,omitempty"`
	WithArrow bool     `yaml:"withArrow,omitempty"`
	Wysiwyg   string   `yaml:"wysiwyg,omitempty"`
	Markup    string   `yaml:"markup,omitempty"`
}

// Entry is one position of a group: an item id, or a list item id with its member ids.
type Entry struct {
	ID    string   `yaml:"id"`
	Items []string `yaml:"items,omitempty"`
}

// UnmarshalYAML accepts either a bare item id or an {id, items} mapping.
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.ID = value.Value
		e.Items = nil
		return nil
	}
	type plain Entry
	var decoded plain
	if err := value.Decode(&decoded); err != nil {
		return err
	}
	if decoded.ID == "" {
		return fmt.Errorf("line %d: toolbar entry without id", value.Line)
	}
	*e = Entry(decoded)
	return nil
}

// Order is the grouped entry list of one slot.
type Order [][]Entry

// Preset is an items dictionary plus the order of every slot.
type Preset struct {
	Name   string             `yaml:"name,omitempty"`
	Items  map[string]ItemDef `yaml:"items,omitempty"`
	Orders map[Slot]Order     `yaml:"orders"`
}

func (p Preset) clone() Preset {
	out := Preset{Name: p.Name, Items: make(map[string]ItemDef, len(p.Items)), Orders: make(map[Slot]Order, len(p.Orders))}
	for id, def := range p.Items {
		out.Items[id] = def
	}
	for slot, order := range p.Orders {
		groups := make(Order, len(order))
		for i, group := range order {
			groups[i] = make([]Entry, len(group))
			for j, entry := range group {
				groups[i][j] = Entry{ID: entry.ID, Items: append([]string(nil), entry.Items...)}
			}
		}
		out.Orders[slot] = groups
	}
	return out
}

// ParsePreset decodes a preset from YAML. Items it defines are added to the shared dictionary
// and replace shared entries with the same id.
func ParsePreset(data []byte) (Preset, error) {
	var preset Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return Preset{}, fmt.Errorf("failed to parse toolbar preset: %w", err)
	}
	for slot := range preset.Orders {
		if !slot.Valid() {
			return Preset{}, fmt.Errorf("toolbar preset %q: unknown slot %q", preset.Name, slot)
		}
	}
	shared, err := sharedItems()
	if err != nil {
		return Preset{}, err
	}
	items := make(map[string]ItemDef, len(shared)+len(preset.Items))
	for id, def := range shared {
		items[id] = def
	}
	for id, def := range preset.Items {
		items[id] = def
	}
	preset.Items = items
	return preset, nil
}

//go:embed presets/*.yaml
var presetFS embed.FS

var loadShared = sync.OnceValues(func() (map[string]ItemDef, error) {
	data, err := presetFS.ReadFile("presets/items.yaml")
	if err != nil {
		return nil, err
	}
	var doc struct {
		Items map[string]ItemDef `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse toolbar items: %w", err)
	}
	return doc.Items, nil
})

func sharedItems() (map[string]ItemDef, error) {
	return loadShared()
}

var loadBuiltin = sync.OnceValues(func() (map[string]Preset, error) {
	presets := map[string]Preset{}
	for _, name := range PresetNames() {
		data, err := presetFS.ReadFile("presets/" + name + ".yaml")
		if err != nil {
			return nil, err
		}
		preset, err := ParsePreset(data)
		if err != nil {
			return nil, err
		}
		preset.Name = name
		presets[name] = preset
	}
	return presets, nil
})

// PresetNames returns the built-in preset names from smallest to largest.
func PresetNames() []string {
	return []string{PresetZero, PresetCommonMark, PresetDefault, PresetYfm, PresetFull}
}

// LoadPreset returns a copy of a built-in preset.
func LoadPreset(name string) (Preset, error) {
	presets, err := loadBuiltin()
	if err != nil {
		return Preset{}, err
	}
	preset, ok := presets[name]
	if !ok {
		known := make([]string, 0, len(presets))
		for key := range presets {
			known = append(known, key)
		}
		sort.Strings(known)
		return Preset{}, fmt.Errorf("unknown toolbar preset %q (known: %v)", name, known)
	}
	return preset.clone(), nil
}
