package toolbar

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/extensions"
	"github.com/rgonek/markdown-editor/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func presetRegistry(t *testing.T, preset string) *extension.Registry {
	t.Helper()
	units, err := extensions.Preset(preset)
	require.NoError(t, err)
	b := extension.NewBuilder()
	require.NoError(t, b.Register(units...))
	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

// describe renders items as comparable text since actions hold functions.
func describe(items []Item) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch item := item.(type) {
		case SingleButton:
			parts = append(parts, item.ID+"="+item.ActionID)
		case ListButton:
			parts = append(parts, item.ID+"["+describe(item.Items)+"]")
		case Stub:
			parts = append(parts, "stub:"+item.ID)
		}
	}
	return strings.Join(parts, " ")
}

func describeToolbar(toolbar Toolbar) []string {
	groups := make([]string, 0, len(toolbar.Groups))
	for _, group := range toolbar.Groups {
		groups = append(groups, describe(group))
	}
	return groups
}

func TestBuiltinPresetsResolveCleanly(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			set := Resolve(ResolveOptions{Preset: name, Registry: presetRegistry(t, name)})
			assert.Empty(t, set.Diagnostics)
			assert.Equal(t, SlotWysiwygMain, set.WysiwygMain.Slot)
			assert.Equal(t, SlotMarkupMain, set.MarkupMain.Slot)
		})
	}
}

func TestResolveYfmPreset(t *testing.T) {
	set := Resolve(ResolveOptions{Preset: PresetYfm, Registry: presetRegistry(t, PresetYfm)})

	assert.Equal(t, []string{
		"heading[text=text heading1=heading1 heading2=heading2 heading3=heading3 heading4=heading4 heading5=heading5 heading6=heading6]",
		"bold=bold italic=italic strike=strike sup=supscript sub=subscript",
		"lists[bulletList=bulletList orderedList=orderedList] link=link quote=quote codeBlock=code_block mono=code",
		"cut=cut note[noteInfo=noteInfo noteTip=noteTip noteWarning=noteWarning noteAlert=noteAlert] table=table",
	}, describeToolbar(set.WysiwygMain))
	assert.Equal(t, "horizontalRule=horizontalRule", describe(set.WysiwygHidden))
	assert.Equal(t, "heading[heading1=heading1 heading2=heading2 heading3=heading3 heading4=heading4 heading5=heading5 heading6=heading6]",
		describeToolbar(set.MarkupMain)[0])

	bold := set.WysiwygMain.Groups[1][0].(SingleButton)
	assert.NotNil(t, bold.Action)
	assert.Nil(t, bold.MarkupAction)
	assert.Equal(t, View{Title: "Bold", Hotkey: "Mod-b"}, bold.View)

	list := set.WysiwygMain.Groups[0][0].(ListButton)
	assert.True(t, list.WithArrow)
}

func TestResolveIsDeterministic(t *testing.T) {
	reg := presetRegistry(t, PresetFull)
	opts := ResolveOptions{
		Preset:   PresetFull,
		Registry: reg,
		Overrides: map[Slot]Order{
			SlotWysiwygHidden: {{{ID: "missing"}}, {{ID: "bold"}}},
			SlotMarkupHidden:  {{{ID: "gone"}}},
		},
	}
	first := Resolve(opts)
	second := Resolve(opts)

	for _, slot := range []Surface{SurfaceWysiwyg, SurfaceMarkup} {
		assert.Equal(t, describeToolbar(first.Main(slot)), describeToolbar(second.Main(slot)))
		assert.Equal(t, describe(first.Hidden(slot)), describe(second.Hidden(slot)))
	}
	assert.Equal(t, first.Diagnostics, second.Diagnostics)
	require.Len(t, first.Diagnostics, 2)
	assert.Equal(t, SlotWysiwygHidden, first.Diagnostics[0].Slot)
	assert.Equal(t, SlotMarkupHidden, first.Diagnostics[1].Slot)
}

func TestZeroPresetOverrideWithMissingActionIsStubbed(t *testing.T) {
	reg := presetRegistry(t, PresetZero)
	opts := ResolveOptions{
		Preset:   PresetZero,
		Registry: reg,
		Items: map[string]ItemDef{
			"video-insert": {Title: "Video", Wysiwyg: "video-insert", Markup: "video-insert"},
		},
		Overrides: map[Slot]Order{
			SlotWysiwygMain: {{{ID: "video-insert"}}},
		},
	}
	_, registered := reg.Action("video-insert")
	require.False(t, registered)

	set := Resolve(opts)

	require.Len(t, set.WysiwygMain.Groups, 1)
	assert.Equal(t, []Item{Stub{ID: "video-insert", Reason: DiagnosticUnknownAction}}, set.WysiwygMain.Groups[0])
	require.Len(t, set.Diagnostics, 1)
	assert.Equal(t, DiagnosticUnknownAction, set.Diagnostics[0].Kind)
	assert.Equal(t, "video-insert", set.Diagnostics[0].ActionID)
	assert.Equal(t, SlotWysiwygMain, set.Diagnostics[0].Slot)
	assert.Empty(t, Flatten(set.WysiwygMain))

	again := Resolve(opts)
	assert.Equal(t, describeToolbar(set.WysiwygMain), describeToolbar(again.WysiwygMain))
	assert.Equal(t, set.Diagnostics, again.Diagnostics)
}

func TestUnknownItemBecomesStub(t *testing.T) {
	set := Resolve(ResolveOptions{
		Preset:   PresetZero,
		Registry: presetRegistry(t, PresetZero),
		Overrides: map[Slot]Order{
			SlotMarkupMain: {{{ID: "nope"}, {ID: "heading", Items: []string{"heading1", "unknown"}}}},
		},
	})

	assert.Equal(t, []string{"stub:nope heading[stub:heading1 stub:unknown]"}, describeToolbar(set.MarkupMain))
	kinds := make([]DiagnosticKind, 0, len(set.Diagnostics))
	for _, diagnostic := range set.Diagnostics {
		kinds = append(kinds, diagnostic.Kind)
	}
	assert.Equal(t, []DiagnosticKind{DiagnosticUnknownItem, DiagnosticUnknownAction, DiagnosticUnknownItem}, kinds)
}

func TestMissingSurfaceActionIsStub(t *testing.T) {
	set := Resolve(ResolveOptions{
		Preset:   PresetFull,
		Registry: presetRegistry(t, PresetFull),
		Overrides: map[Slot]Order{
			SlotWysiwygMain: {{{ID: "video"}}},
		},
	})

	assert.Equal(t, []string{"stub:video"}, describeToolbar(set.WysiwygMain))
	require.Len(t, set.Diagnostics, 1)
	assert.Contains(t, set.Diagnostics[0].Message, "has no wysiwyg action")
}

func TestUnknownPresetFallsBackToDefault(t *testing.T) {
	reg := presetRegistry(t, PresetDefault)
	fallback := Resolve(ResolveOptions{Preset: "fancy", Registry: reg})
	expected := Resolve(ResolveOptions{Preset: PresetDefault, Registry: reg})

	assert.Equal(t, describeToolbar(expected.WysiwygMain), describeToolbar(fallback.WysiwygMain))
	require.Len(t, fallback.Diagnostics, 1)
	assert.Equal(t, DiagnosticUnknownPreset, fallback.Diagnostics[0].Kind)

	empty := Resolve(ResolveOptions{Registry: reg})
	assert.Equal(t, describeToolbar(expected.WysiwygMain), describeToolbar(empty.WysiwygMain))
	assert.Empty(t, empty.Diagnostics)
}

func TestOverrideReplacesSlotWholesale(t *testing.T) {
	reg := presetRegistry(t, PresetDefault)
	set := Resolve(ResolveOptions{
		Preset:   PresetDefault,
		Registry: reg,
		Overrides: map[Slot]Order{
			SlotMarkupMain: {{{ID: "bold"}}, {{ID: "link"}}},
			"sidebar":      {{{ID: "bold"}}},
		},
	})

	assert.Equal(t, []string{"bold=bold", "link=link"}, describeToolbar(set.MarkupMain))
	assert.Len(t, set.WysiwygMain.Groups, 3)
	require.Len(t, set.Diagnostics, 1)
	assert.Equal(t, DiagnosticUnknownSlot, set.Diagnostics[0].Kind)
}

func TestResolveWithoutRegistryStubsEverything(t *testing.T) {
	set := Resolve(ResolveOptions{Preset: PresetCommonMark})

	assert.Empty(t, set.WysiwygHidden)
	for _, group := range set.WysiwygMain.Groups {
		for _, item := range group {
			if list, ok := item.(ListButton); ok {
				for _, member := range list.Items {
					assert.IsType(t, Stub{}, member)
				}
				continue
			}
			assert.IsType(t, Stub{}, item)
		}
	}
	assert.NotEmpty(t, set.Diagnostics)
}

func TestFlatten(t *testing.T) {
	toolbar := Toolbar{Groups: [][]Item{
		{SingleButton{ID: "a", ActionID: "a"}, Stub{ID: "s"}},
		{ListButton{ID: "l", Items: []Item{SingleButton{ID: "b", ActionID: "b"}, SingleButton{ID: "c", ActionID: "c"}}}},
		{},
		{SingleButton{ID: "d", ActionID: "d"}},
	}}

	flat := Flatten(toolbar)
	assert.Equal(t, "a=a b=b c=c d=d", describe(flat))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ActionIDs(flat))
	assert.Empty(t, Flatten(Toolbar{}))
}

func TestMarkupButtonsRunMarkupActions(t *testing.T) {
	set := Resolve(ResolveOptions{Preset: PresetDefault, Registry: presetRegistry(t, PresetDefault)})

	bold := set.MarkupMain.Groups[1][0].(SingleButton)
	require.NotNil(t, bold.MarkupAction)
	assert.Nil(t, bold.Action)

	next, ok := bold.MarkupAction.Run(extension.MarkupState{Text: "say hi", From: 4, To: 6})
	require.True(t, ok)
	assert.Equal(t, "say **hi**", next.Text)
}

func TestParsePreset(t *testing.T) {
	preset, err := ParsePreset([]byte(`
name: custom
items:
  shout:
    title: Shout
    wysiwyg: bold
    markup: bold
orders:
  wysiwyg-main:
    - [shout, italic]
    - - id: heading
        items: [heading1]
  markup-hidden:
    - [shout]
`))
	require.NoError(t, err)
	assert.Equal(t, "custom", preset.Name)
	assert.Equal(t, Order{
		{{ID: "shout"}, {ID: "italic"}},
		{{ID: "heading", Items: []string{"heading1"}}},
	}, preset.Orders[SlotWysiwygMain])
	assert.Contains(t, preset.Items, "bold")

	set := Resolve(ResolveOptions{Custom: &preset, Registry: presetRegistry(t, PresetCommonMark)})
	assert.Empty(t, set.Diagnostics)
	assert.Equal(t, []string{"shout=bold italic=italic", "heading[heading1=heading1]"}, describeToolbar(set.WysiwygMain))
	assert.Equal(t, "shout=bold", describe(set.MarkupHidden))
	assert.Empty(t, set.MarkupMain.Groups)
}

func TestParsePresetErrors(t *testing.T) {
	tests := map[string]string{
		"entry without id": "orders:\n  wysiwyg-main:\n    - - items: [bold]\n",
		"unknown slot":     "orders:\n  sidebar:\n    - [bold]\n",
		"malformed":        "orders: [",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePreset([]byte(input))
			require.Error(t, err)
		})
	}
}

func TestLoadPresetReturnsCopies(t *testing.T) {
	preset, err := LoadPreset(PresetDefault)
	require.NoError(t, err)
	preset.Orders[SlotWysiwygMain][0][0].ID = "changed"
	delete(preset.Items, "bold")

	again, err := LoadPreset(PresetDefault)
	require.NoError(t, err)
	assert.Equal(t, "heading", again.Orders[SlotWysiwygMain][0][0].ID)
	assert.Contains(t, again.Items, "bold")

	_, err = LoadPreset("nope")
	require.Error(t, err)
}

func TestSlots(t *testing.T) {
	for _, slot := range Slots() {
		assert.True(t, slot.Valid())
	}
	assert.False(t, Slot("other").Valid())
	assert.Equal(t, SurfaceMarkup, SlotMarkupHidden.Surface())
	assert.Equal(t, SurfaceWysiwyg, SlotWysiwygMain.Surface())
	assert.True(t, SlotWysiwygHidden.Hidden())
	assert.False(t, SlotMarkupMain.Hidden())
}

func TestResolveLogsDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	Resolve(ResolveOptions{
		Preset:    PresetZero,
		Registry:  presetRegistry(t, PresetZero),
		Overrides: map[Slot]Order{SlotWysiwygMain: {{{ID: "ghost"}}}},
		Logger:    logging.NewWithWriter(&buf, slog.LevelInfo),
	})
	out := buf.String()
	assert.Contains(t, out, "toolbar entry unresolved")
	assert.Contains(t, out, fmt.Sprintf("kind=%s", DiagnosticUnknownItem))
	assert.Contains(t, out, "item=ghost")
}
