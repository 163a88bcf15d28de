package extensions

import (
	"fmt"

	"github.com/rgonek/markdown-editor/extension"
)

// Preset names. Each preset contains the units of the previous one.
const (
	PresetZero       = "zero"
	PresetCommonMark = "commonmark"
	PresetDefault    = "default"
	PresetYfm        = "yfm"
	PresetFull       = "full"
)

var presetOrder = []string{PresetZero, PresetCommonMark, PresetDefault, PresetYfm, PresetFull}

func presetUnits(name string) []func() extension.Unit {
	var units []func() extension.Unit
	for _, preset := range presetOrder {
		switch preset {
		case PresetZero:
			units = append(units, Base)
		case PresetCommonMark:
			units = append(units, Heading, Blockquote, CodeBlock, HorizontalRule, Lists, Bold, Italic, Link, Code)
		case PresetDefault:
			units = append(units, Strike)
		case PresetYfm:
			units = append(units, Superscript, Subscript, YfmCut, YfmNote, Table)
		case PresetFull:
			units = append(units, Video)
		}
		if preset == name {
			return units
		}
	}

	return nil
}

// Preset returns the units of a named preset in registration order.
func Preset(name string) ([]extension.Unit, error) {
	constructors := presetUnits(name)
	if constructors == nil {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	units := make([]extension.Unit, 0, len(constructors))
	for _, constructor := range constructors {
		units = append(units, constructor())
	}

	return units, nil
}

// PresetNames returns the preset names from smallest to largest.
func PresetNames() []string {
	return append([]string(nil), presetOrder...)
}
