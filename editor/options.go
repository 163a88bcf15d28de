package editor

import (
	"fmt"
	"log/slog"

	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/extensions"
	"github.com/rgonek/markdown-editor/internal/logging"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/rgonek/markdown-editor/toolbar"
	"github.com/rgonek/markdown-editor/transform"
)

// Mode is the live representation of the document.
type Mode string

const (
	ModeWysiwyg Mode = "wysiwyg"
	ModeMarkup  Mode = "markup"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeWysiwyg || m == ModeMarkup
}

// SplitMode is the split view layout of markup mode.
type SplitMode string

const (
	SplitOff        SplitMode = "off"
	SplitHorizontal SplitMode = "horizontal"
	SplitVertical   SplitMode = "vertical"
)

// Valid reports whether s is a known split mode.
func (s SplitMode) Valid() bool {
	return s == SplitOff || s == SplitHorizontal || s == SplitVertical
}

// Enabled reports whether a split layout is shown.
func (s SplitMode) Enabled() bool {
	return s == SplitHorizontal || s == SplitVertical
}

// Reason explains why a mode change was requested.
type Reason string

const (
	ReasonSettings      Reason = "settings"
	ReasonAPI           Reason = "api"
	ReasonErrorBoundary Reason = "error-boundary"
)

// ModeChangeRequest is what a BeforeModeChange guard sees.
type ModeChangeRequest struct {
	Mode   Mode
	From   Mode
	Reason Reason
}

// InitialOptions describe the session at creation.
type InitialOptions struct {
	Markup string
	// Document starts a wysiwyg session from a tree instead of Markup.
	Document *schema.Node
	// Mode defaults to wysiwyg.
	Mode Mode
	// ToolbarVisible defaults to true.
	ToolbarVisible *bool
	// SplitMode applies when markup mode is entered; ignored when split view is unavailable.
	SplitMode SplitMode
}

// ToolbarOptions select the session toolbars.
type ToolbarOptions struct {
	// Preset defaults to the extension preset.
	Preset    string
	Custom    *toolbar.Preset
	Items     map[string]toolbar.ItemDef
	Overrides map[toolbar.Slot]toolbar.Order
}

// Options configure a session.
type Options struct {
	// Preset names the extension preset; defaults to "full".
	Preset string
	// Units are registered after the preset units.
	Units []extension.Unit
	// UnitOptions are merged into the options of units with the same name.
	UnitOptions map[string]extension.Options
	Initial     InitialOptions
	Transform   transform.Options
	Toolbar     ToolbarOptions
	// DisableSplitMode turns off split view for the session.
	DisableSplitMode bool
	// BeforeModeChange may veto a mode change by returning false.
	BeforeModeChange func(req ModeChangeRequest) bool
	// PrepareRawMarkup rewrites markup before it is parsed on a switch to wysiwyg.
	PrepareRawMarkup func(markup string) string
	// Renderer enables preview and split view.
	Renderer  PreviewRenderer
	Reporter  ErrorReporter
	Scheduler Scheduler
	Logger    *slog.Logger
}

func (o Options) applyDefaults() Options {
	if o.Preset == "" {
		o.Preset = extensions.PresetFull
	}
	if o.Initial.Mode == "" {
		o.Initial.Mode = ModeWysiwyg
	}
	if o.Initial.SplitMode == "" {
		o.Initial.SplitMode = SplitOff
	}
	if o.Initial.ToolbarVisible == nil {
		visible := true
		o.Initial.ToolbarVisible = &visible
	}
	if o.Toolbar.Preset == "" {
		o.Toolbar.Preset = o.Preset
	}
	o.Logger = logging.OrNop(o.Logger)
	if o.Scheduler == nil {
		o.Scheduler = AsyncScheduler{}
	}
	if o.Reporter == nil {
		o.Reporter = LogReporter{Logger: o.Logger}
	}
	if o.Transform.Logger == nil {
		o.Transform.Logger = o.Logger
	}

	return o
}

func (o Options) clone() Options {
	cloned := o
	cloned.Units = append([]extension.Unit(nil), o.Units...)
	if o.UnitOptions != nil {
		cloned.UnitOptions = make(map[string]extension.Options, len(o.UnitOptions))
		for name, opts := range o.UnitOptions {
			cloned.UnitOptions[name] = opts
		}
	}
	if o.Initial.Document != nil {
		doc := o.Initial.Document.Clone()
		cloned.Initial.Document = &doc
	}
	if o.Initial.ToolbarVisible != nil {
		visible := *o.Initial.ToolbarVisible
		cloned.Initial.ToolbarVisible = &visible
	}

	return cloned
}

// Validate checks that option values are valid.
func (o Options) Validate() error {
	if !o.Initial.Mode.Valid() {
		return fmt.Errorf("invalid initial mode %q", o.Initial.Mode)
	}
	if !o.Initial.SplitMode.Valid() {
		return fmt.Errorf("invalid initial split mode %q", o.Initial.SplitMode)
	}
	if o.Initial.Document != nil && o.Initial.Mode != ModeWysiwyg {
		return fmt.Errorf("an initial document requires wysiwyg mode")
	}
	known := false
	for _, name := range extensions.PresetNames() {
		if name == o.Preset {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("invalid preset %q", o.Preset)
	}

	return nil
}
