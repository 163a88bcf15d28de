package editor

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/extensions"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/rgonek/markdown-editor/toolbar"
	"github.com/rgonek/markdown-editor/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark/ast"
)

func paragraphDoc(texts ...string) schema.Node {
	doc := schema.Node{Type: "doc"}
	for _, text := range texts {
		doc.Content = append(doc.Content, schema.Node{
			Type:    "paragraph",
			Content: []schema.Node{{Type: "text", Text: text}},
		})
	}
	return doc
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	errs   []error
}

func (r *recorder) onEvent(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Report(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func newEditor(t *testing.T, opts Options) (*Editor, *recorder) {
	t.Helper()
	rec := &recorder{}
	if opts.Reporter == nil {
		opts.Reporter = rec
	}
	if opts.Scheduler == nil {
		opts.Scheduler = &TickScheduler{}
	}
	e, err := New(opts)
	require.NoError(t, err)
	_, err = e.Subscribe(rec.onEvent)
	require.NoError(t, err)
	t.Cleanup(e.Dispose)
	return e, rec
}

var stubRenderer = PreviewRendererFunc(func(_ context.Context, params PreviewParams) (string, error) {
	return string(params.Mode) + ":" + params.Value(), nil
})

// explodingHeadings fails every heading parse.
func explodingHeadings() extension.Unit {
	return extension.Unit{
		Name:     "exploding",
		Requires: []string{"heading"},
		Apply: func(b *extension.Builder, _ extension.Options) error {
			b.AddParseHandler(markup.ParseHandler{
				Kind:     ast.KindHeading,
				Priority: 1000,
				Parse: func(ast.Node, markup.ParseState) ([]schema.Node, error) {
					return nil, errors.New("heading exploded")
				},
			})
			return nil
		},
	}
}

func TestModeRoundTrip(t *testing.T) {
	doc := paragraphDoc("hello")
	e, rec := newEditor(t, Options{Preset: extensions.PresetDefault, Initial: InitialOptions{Document: &doc}})

	require.NoError(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeMarkup}))
	assert.Equal(t, ModeMarkup, e.Mode())
	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	require.NoError(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg, Reason: ReasonSettings}))
	back, err := e.Document(context.Background())
	require.NoError(t, err)
	assert.True(t, schema.Equal(doc, back))

	assert.Equal(t, []Event{
		ModeChanged{Mode: ModeMarkup, Previous: ModeWysiwyg, Reason: ReasonAPI},
		ModeChanged{Mode: ModeWysiwyg, Previous: ModeMarkup, Reason: ReasonSettings},
	}, rec.Events())
}

func TestRepeatedModeSwitchesKeepMarkupStable(t *testing.T) {
	source := "<div>see *note* [1]</div>\n\nx <span title=\"a*b\">y</span>\n\n{% cut \"T\" %}\n\nBody\n\n{% endcut %}"
	e, rec := newEditor(t, Options{
		Preset:  extensions.PresetFull,
		Initial: InitialOptions{Mode: ModeMarkup, Markup: source},
	})
	ctx := context.Background()

	var first string
	var firstDoc schema.Node
	for cycle := 0; cycle < 3; cycle++ {
		require.NoError(t, e.ChangeMode(ctx, ChangeModeOptions{Mode: ModeWysiwyg}))
		doc, err := e.Document(ctx)
		require.NoError(t, err)
		require.NoError(t, e.ChangeMode(ctx, ChangeModeOptions{Mode: ModeMarkup}))
		text, err := e.Markup(ctx)
		require.NoError(t, err)

		if cycle == 0 {
			first, firstDoc = text, doc
			continue
		}
		assert.Equal(t, first, text, "cycle %d", cycle)
		assert.True(t, schema.Equal(firstDoc, doc), "cycle %d", cycle)
	}

	last := firstDoc.Content[len(firstDoc.Content)-1]
	assert.Equal(t, "yfm_cut", last.Type)
	assert.Contains(t, first, "\\<div>see \\*note\\*")
	assert.NotContains(t, first, "\\\\")
	assert.Empty(t, rec.Errors())
}

func TestChangeModeToCurrentModeIsNoop(t *testing.T) {
	prepared := 0
	e, rec := newEditor(t, Options{
		Initial:          InitialOptions{Mode: ModeMarkup, Markup: "text"},
		PrepareRawMarkup: func(s string) string { prepared++; return s },
		BeforeModeChange: func(ModeChangeRequest) bool { t.Fatal("guard must not run"); return false },
	})

	require.NoError(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeMarkup}))
	assert.Equal(t, ModeMarkup, e.Mode())
	assert.Empty(t, rec.Events())
	assert.Zero(t, prepared)
}

func TestGuardVetoSkipsConversion(t *testing.T) {
	prepared := 0
	var seen ModeChangeRequest
	e, rec := newEditor(t, Options{
		Initial:          InitialOptions{Mode: ModeMarkup, Markup: "**text**"},
		PrepareRawMarkup: func(s string) string { prepared++; return s },
		BeforeModeChange: func(req ModeChangeRequest) bool { seen = req; return false },
	})

	err := e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg, Reason: ReasonSettings})
	require.ErrorIs(t, err, ErrModeChangeVetoed)
	assert.Equal(t, ModeChangeRequest{Mode: ModeWysiwyg, From: ModeMarkup, Reason: ReasonSettings}, seen)
	assert.Equal(t, ModeMarkup, e.Mode())
	assert.Zero(t, prepared)
	assert.Empty(t, rec.Events())

	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "**text**", text)
}

func TestPrepareRawMarkupRunsBeforeParse(t *testing.T) {
	e, _ := newEditor(t, Options{
		Initial:          InitialOptions{Mode: ModeMarkup, Markup: "draft"},
		PrepareRawMarkup: func(s string) string { return s + " (prepared)" },
	})

	require.NoError(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg}))
	doc, err := e.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "draft (prepared)", doc.TextContent())
}

func TestTransitionRequestsDuringGuardAreRejected(t *testing.T) {
	var e *Editor
	var nested, edit error
	e, _ = newEditor(t, Options{
		Initial: InitialOptions{Mode: ModeMarkup, Markup: "text"},
		BeforeModeChange: func(ModeChangeRequest) bool {
			nested = e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg})
			edit = e.SetMarkup("changed")
			return true
		},
	})

	require.NoError(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg}))
	assert.ErrorIs(t, nested, ErrTransitionInProgress)
	assert.ErrorIs(t, edit, ErrTransitionInProgress)
	assert.Equal(t, ModeWysiwyg, e.Mode())
}

func TestConcurrentTransitionIsRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	e, _ := newEditor(t, Options{
		Initial: InitialOptions{Mode: ModeMarkup, Markup: "text"},
		BeforeModeChange: func(ModeChangeRequest) bool {
			close(entered)
			<-release
			return true
		},
	})

	done := make(chan error, 1)
	go func() {
		done <- e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg})
	}()
	<-entered

	assert.ErrorIs(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg}), ErrTransitionInProgress)
	_, err := e.Exec("bold")
	assert.ErrorIs(t, err, ErrTransitionInProgress)
	assert.ErrorIs(t, e.ChangeSplitMode(SplitOff), ErrTransitionInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, ModeWysiwyg, e.Mode())
}

func TestConversionFailureKeepsMarkup(t *testing.T) {
	e, rec := newEditor(t, Options{
		Units:   []extension.Unit{explodingHeadings()},
		Initial: InitialOptions{Mode: ModeMarkup, Markup: "# boom\n\nbody"},
	})

	err := e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg})
	require.ErrorIs(t, err, ErrConversionFailed)
	assert.Contains(t, err.Error(), "heading exploded")

	assert.Equal(t, ModeMarkup, e.Mode())
	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# boom\n\nbody", text)
	assert.Empty(t, rec.Events())
	require.Len(t, rec.Errors(), 1)
	assert.ErrorIs(t, rec.Errors()[0], ErrConversionFailed)

	// The session stays usable.
	require.NoError(t, e.SetMarkup("plain"))
	require.NoError(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg}))
}

func TestInitialParseFailureStartsInMarkup(t *testing.T) {
	e, rec := newEditor(t, Options{
		Units:   []extension.Unit{explodingHeadings()},
		Initial: InitialOptions{Markup: "# boom"},
	})

	assert.Equal(t, ModeMarkup, e.Mode())
	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# boom", text)
	require.Len(t, rec.Errors(), 1)
}

func TestRecoverToMarkupUsesPlainText(t *testing.T) {
	doc := schema.Node{Type: "doc", Content: []schema.Node{
		{Type: "heading", Attrs: map[string]interface{}{"level": 1}, Content: []schema.Node{{Type: "text", Text: "Title"}}},
		{Type: "blockquote", Content: []schema.Node{paragraphDoc("quoted").Content[0]}},
	}}
	e, rec := newEditor(t, Options{Initial: InitialOptions{Document: &doc}})

	e.recoverToMarkup(errors.New("serializer failed"), doc)

	assert.Equal(t, ModeMarkup, e.Mode())
	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nquoted", text)
	assert.Empty(t, rec.Events())
	assert.Len(t, rec.Errors(), 1)

	kept, ok := e.RecoveredDocument()
	require.True(t, ok)
	assert.True(t, schema.Equal(doc, kept))

	require.NoError(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg}))
	_, ok = e.RecoveredDocument()
	assert.False(t, ok)
}

func TestCanceledConversionDoesNotRecover(t *testing.T) {
	doc := paragraphDoc("hello")
	e, rec := newEditor(t, Options{Initial: InitialOptions{Document: &doc}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.ChangeMode(ctx, ChangeModeOptions{Mode: ModeMarkup})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrConversionFailed)
	assert.Equal(t, ModeWysiwyg, e.Mode())
	assert.Empty(t, rec.Errors())
}

func TestReportRenderErrorRecoversOnNextTick(t *testing.T) {
	scheduler := &TickScheduler{}
	doc := paragraphDoc("hello")
	e, rec := newEditor(t, Options{Initial: InitialOptions{Document: &doc}, Scheduler: scheduler})

	e.ReportRenderError(errors.New("view crashed"))
	assert.Equal(t, ModeWysiwyg, e.Mode())
	assert.Equal(t, 1, scheduler.Pending())
	require.Len(t, rec.Errors(), 1)
	assert.Contains(t, rec.Errors()[0].Error(), "view crashed")

	assert.Equal(t, 1, scheduler.Tick())
	assert.Equal(t, ModeMarkup, e.Mode())
	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Empty(t, rec.Events())
	assert.Len(t, rec.Errors(), 1)

	e.ReportRenderError(nil)
	assert.Zero(t, scheduler.Pending())
}

func TestSplitModeHidesPreview(t *testing.T) {
	e, rec := newEditor(t, Options{Renderer: stubRenderer, Initial: InitialOptions{Mode: ModeMarkup}})

	require.NoError(t, e.ChangePreviewVisible(true))
	require.NoError(t, e.ChangeSplitMode(SplitHorizontal))

	state := e.State()
	assert.Equal(t, SplitHorizontal, state.SplitMode)
	assert.False(t, state.PreviewVisible)
	assert.Equal(t, []Event{
		PreviewVisibilityChanged{Visible: true},
		SplitModeChanged{SplitMode: SplitHorizontal},
		PreviewVisibilityChanged{Visible: false},
	}, rec.Events())

	require.NoError(t, e.ChangePreviewVisible(true))
	state = e.State()
	assert.Equal(t, SplitOff, state.SplitMode)
	assert.True(t, state.PreviewVisible)
}

func TestSplitAndPreviewAreExclusive(t *testing.T) {
	e, _ := newEditor(t, Options{Renderer: stubRenderer, Initial: InitialOptions{Mode: ModeMarkup}})
	rng := rand.New(rand.NewSource(7))
	splits := []SplitMode{SplitOff, SplitHorizontal, SplitVertical}

	for step := 0; step < 500; step++ {
		switch rng.Intn(4) {
		case 0:
			require.NoError(t, e.ChangeSplitMode(splits[rng.Intn(len(splits))]))
		case 1:
			require.NoError(t, e.ChangePreviewVisible(rng.Intn(2) == 0))
		case 2:
			require.NoError(t, e.ChangeToolbarVisibility(rng.Intn(2) == 0))
		case 3:
			require.NoError(t, e.SetMarkup("step"))
		}
		state := e.State()
		require.False(t, state.SplitMode.Enabled() && state.PreviewVisible, "step %d", step)
	}
}

func TestSplitAndPreviewRequireMarkupMode(t *testing.T) {
	e, _ := newEditor(t, Options{Renderer: stubRenderer})

	assert.ErrorIs(t, e.ChangeSplitMode(SplitVertical), ErrWrongMode)
	assert.ErrorIs(t, e.ChangePreviewVisible(true), ErrWrongMode)
	assert.Error(t, e.ChangeSplitMode("diagonal"))
}

func TestSplitAndPreviewAvailability(t *testing.T) {
	e, _ := newEditor(t, Options{Initial: InitialOptions{Mode: ModeMarkup, SplitMode: SplitVertical}})
	assert.Equal(t, SplitOff, e.State().SplitMode)
	assert.ErrorIs(t, e.ChangeSplitMode(SplitVertical), ErrSplitModeUnavailable)
	assert.ErrorIs(t, e.ChangePreviewVisible(true), ErrPreviewUnavailable)
	require.NoError(t, e.ChangeSplitMode(SplitOff))
	require.NoError(t, e.ChangePreviewVisible(false))

	disabled, _ := newEditor(t, Options{Renderer: stubRenderer, DisableSplitMode: true, Initial: InitialOptions{Mode: ModeMarkup}})
	assert.ErrorIs(t, disabled.ChangeSplitMode(SplitHorizontal), ErrSplitModeUnavailable)
	require.NoError(t, disabled.ChangePreviewVisible(true))

	initial, _ := newEditor(t, Options{Renderer: stubRenderer, Initial: InitialOptions{Mode: ModeMarkup, SplitMode: SplitVertical}})
	assert.Equal(t, SplitVertical, initial.State().SplitMode)
}

func TestToolbarVisibility(t *testing.T) {
	hidden := false
	e, rec := newEditor(t, Options{Initial: InitialOptions{ToolbarVisible: &hidden}})
	assert.False(t, e.State().ToolbarVisible)

	require.NoError(t, e.ChangeToolbarVisibility(false))
	require.NoError(t, e.ChangeToolbarVisibility(true))
	assert.True(t, e.State().ToolbarVisible)
	assert.Equal(t, []Event{ToolbarVisibilityChanged{Visible: true}}, rec.Events())
}

func TestRenderPreview(t *testing.T) {
	var params PreviewParams
	renderer := PreviewRendererFunc(func(_ context.Context, p PreviewParams) (string, error) {
		params = p
		return "<p>" + p.Value() + "</p>", nil
	})
	e, _ := newEditor(t, Options{
		Renderer:  renderer,
		Transform: transform.Options{Directive: directive.Config{Default: directive.Preserve}},
	})

	_, err := e.RenderPreview(context.Background())
	assert.ErrorIs(t, err, ErrWrongMode)

	require.NoError(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeMarkup}))
	_, err = e.RenderPreview(context.Background())
	assert.ErrorIs(t, err, ErrPreviewUnavailable)

	require.NoError(t, e.SetMarkup("preview me"))
	require.NoError(t, e.ChangePreviewVisible(true))
	out, err := e.RenderPreview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<p>preview me</p>", out)
	assert.Equal(t, PreviewPane, params.Mode)
	assert.Equal(t, directive.Preserve, params.Directive.Option())

	require.NoError(t, e.ChangeSplitMode(SplitHorizontal))
	out, err = e.RenderPreview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PreviewSplit, params.Mode)
	assert.Equal(t, "<p>preview me</p>", out)

	none, _ := newEditor(t, Options{Initial: InitialOptions{Mode: ModeMarkup}})
	_, err = none.RenderPreview(context.Background())
	assert.ErrorIs(t, err, ErrPreviewUnavailable)
}

func TestEditsRequireMode(t *testing.T) {
	doc := paragraphDoc("hello")
	e, _ := newEditor(t, Options{Initial: InitialOptions{Document: &doc}})

	assert.ErrorIs(t, e.SetMarkup("x"), ErrWrongMode)
	assert.ErrorIs(t, e.ApplyTextPatch(TextPatch{Text: "x"}), ErrWrongMode)
	assert.ErrorIs(t, e.SetMarkupSelection(MarkupSelection{}), ErrWrongMode)

	require.NoError(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeMarkup}))
	assert.ErrorIs(t, e.SetDocument(doc), ErrWrongMode)
	assert.ErrorIs(t, e.SetSelection(extension.Selection{Path: []int{0}}), ErrWrongMode)
}

func TestApplyTextPatch(t *testing.T) {
	e, rec := newEditor(t, Options{Initial: InitialOptions{Mode: ModeMarkup, Markup: "héllo world"}})

	require.NoError(t, e.ApplyTextPatch(TextPatch{From: 0, To: 6, Text: "bye"}))
	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bye world", text)
	assert.Equal(t, MarkupSelection{From: 3, To: 3}, e.State().MarkupSelection)
	assert.Equal(t, []Event{Change{Mode: ModeMarkup}}, rec.Events())

	assert.ErrorIs(t, e.ApplyTextPatch(TextPatch{From: 5, To: 100}), ErrInvalidEdit)
	assert.ErrorIs(t, e.ApplyTextPatch(TextPatch{From: -1, To: 0}), ErrInvalidEdit)

	require.NoError(t, e.SetMarkup("é"))
	assert.ErrorIs(t, e.ApplyTextPatch(TextPatch{From: 1, To: 1, Text: "x"}), ErrInvalidEdit)
}

func TestSetDocumentChecksSchema(t *testing.T) {
	doc := paragraphDoc("hello")
	e, rec := newEditor(t, Options{Initial: InitialOptions{Document: &doc}})

	bad := schema.Node{Type: "doc", Content: []schema.Node{{Type: "gadget"}}}
	assert.ErrorIs(t, e.SetDocument(bad), ErrInvalidEdit)
	assert.Empty(t, rec.Events())

	require.NoError(t, e.SetDocument(paragraphDoc("one", "two")))
	require.NoError(t, e.SetSelection(extension.Selection{Path: []int{1}, From: 3, To: 1}))
	assert.Equal(t, extension.Selection{Path: []int{1}, From: 1, To: 3}, e.State().Selection)
	assert.ErrorIs(t, e.SetSelection(extension.Selection{Path: []int{1}, From: 0, To: 9}), ErrInvalidEdit)
	assert.ErrorIs(t, e.SetSelection(extension.Selection{Path: []int{4}}), ErrInvalidEdit)
}

func TestExecWysiwygAction(t *testing.T) {
	doc := paragraphDoc("hello world")
	e, rec := newEditor(t, Options{Initial: InitialOptions{Document: &doc}})

	require.NoError(t, e.SetSelection(extension.Selection{Path: []int{0}, From: 0, To: 5}))
	applied, err := e.Exec("bold")
	require.NoError(t, err)
	assert.True(t, applied)

	enabled, active, err := e.ActionState("bold")
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.True(t, active)

	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "**hello** world", text)
	assert.Equal(t, []Event{Change{Mode: ModeWysiwyg}}, rec.Events())

	_, err = e.Exec("video")
	assert.ErrorIs(t, err, ErrUnknownAction)
	_, _, err = e.ActionState("nope")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestExecMarkupAction(t *testing.T) {
	e, _ := newEditor(t, Options{Initial: InitialOptions{Mode: ModeMarkup, Markup: "hi there"}})

	require.NoError(t, e.SetMarkupSelection(MarkupSelection{From: 2, To: 0}))
	applied, err := e.Exec("italic")
	require.NoError(t, err)
	assert.True(t, applied)
	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "*hi* there", text)
	assert.Equal(t, MarkupSelection{From: 1, To: 3}, e.State().MarkupSelection)

	applied, err = e.Exec("video")
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = e.Exec("text")
	assert.ErrorIs(t, err, ErrUnknownAction)

	enabled, active, err := e.ActionState("italic")
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.False(t, active)
}

func TestHandleKey(t *testing.T) {
	doc := paragraphDoc("hello")
	e, _ := newEditor(t, Options{Initial: InitialOptions{Document: &doc}})

	require.NoError(t, e.SetSelection(extension.Selection{Path: []int{0}, From: 0, To: 5}))
	applied, err := e.HandleKey("Mod-i")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = e.HandleKey("Mod-F13")
	require.NoError(t, err)
	assert.False(t, applied)

	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "*hello*", text)
}

func TestHandleTextInputRunsInputRules(t *testing.T) {
	doc := paragraphDoc("#")
	e, _ := newEditor(t, Options{Initial: InitialOptions{Document: &doc}})

	require.NoError(t, e.SetSelection(extension.Selection{Path: []int{0}, From: 1, To: 1}))
	applied, err := e.HandleTextInput(" ")
	require.NoError(t, err)
	assert.True(t, applied)

	current, err := e.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "heading", current.Content[0].Type)
	assert.Equal(t, 1, current.Content[0].GetIntAttr("level", 0))

	applied, err = e.HandleTextInput("Title")
	require.NoError(t, err)
	assert.True(t, applied)
	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# Title", text)
}

func TestHandleTextInputInMarkupMode(t *testing.T) {
	e, _ := newEditor(t, Options{Initial: InitialOptions{Mode: ModeMarkup, Markup: "ac"}})

	require.NoError(t, e.SetMarkupSelection(MarkupSelection{From: 1, To: 1}))
	applied, err := e.HandleTextInput("b")
	require.NoError(t, err)
	assert.True(t, applied)
	text, err := e.Markup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
}

func TestSubmit(t *testing.T) {
	doc := paragraphDoc("ship it")
	e, rec := newEditor(t, Options{Initial: InitialOptions{Document: &doc}})

	require.NoError(t, e.Submit(context.Background()))
	assert.Equal(t, []Event{Submit{Markup: "ship it"}}, rec.Events())
}

func TestSubscriptionCancel(t *testing.T) {
	e, _ := newEditor(t, Options{Initial: InitialOptions{Mode: ModeMarkup}})
	count := 0
	sub, err := e.Subscribe(func(Event) { count++ })
	require.NoError(t, err)
	other, err := e.Subscribe(func(Event) {})
	require.NoError(t, err)
	assert.NotEqual(t, sub.ID(), other.ID())

	require.NoError(t, e.SetMarkup("one"))
	sub.Cancel()
	sub.Cancel()
	require.NoError(t, e.SetMarkup("two"))
	assert.Equal(t, 1, count)

	_, err = e.Subscribe(nil)
	assert.Error(t, err)
}

func TestDispose(t *testing.T) {
	e, _ := newEditor(t, Options{Initial: InitialOptions{Mode: ModeMarkup, Markup: "x"}})
	count := 0
	_, err := e.Subscribe(func(Event) { count++ })
	require.NoError(t, err)

	e.Dispose()
	e.Dispose()

	assert.ErrorIs(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg}), ErrDisposed)
	assert.ErrorIs(t, e.SetMarkup("y"), ErrDisposed)
	assert.ErrorIs(t, e.ChangeToolbarVisibility(false), ErrDisposed)
	_, err = e.Markup(context.Background())
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = e.Subscribe(func(Event) {})
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, e.Submit(context.Background()), ErrDisposed)
	assert.Zero(t, count)
}

func TestNewValidation(t *testing.T) {
	doc := paragraphDoc("x")
	tests := map[string]Options{
		"invalid mode":          {Initial: InitialOptions{Mode: "split"}},
		"invalid split":         {Initial: InitialOptions{SplitMode: "diagonal"}},
		"invalid preset":        {Preset: "everything"},
		"document in markup":    {Initial: InitialOptions{Mode: ModeMarkup, Document: &doc}},
		"unknown unit options":  {UnitOptions: map[string]extension.Options{"nope": {"a": 1}}},
		"invalid unit options":  {UnitOptions: map[string]extension.Options{"heading": {"maxLevel": 9}}},
		"invalid directive":     {Transform: transform.Options{Directive: directive.Config{Default: "sometimes"}}},
		"invalid document":      {Initial: InitialOptions{Document: &schema.Node{Type: "doc"}}},
		"duplicate extra units": {Units: []extension.Unit{extensions.Bold()}},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(opts)
			require.Error(t, err)
		})
	}
}

func TestUnitOptions(t *testing.T) {
	e, _ := newEditor(t, Options{UnitOptions: map[string]extension.Options{"heading": {"maxLevel": 2}}})

	_, ok := e.Registry().Action("heading2")
	assert.True(t, ok)
	_, ok = e.Registry().Action("heading3")
	assert.False(t, ok)
}

func TestToolbarsFollowMode(t *testing.T) {
	e, _ := newEditor(t, Options{Preset: extensions.PresetYfm, Initial: InitialOptions{Mode: ModeMarkup}})

	assert.Empty(t, e.Toolbars().Diagnostics)
	assert.Equal(t, toolbar.SlotMarkupMain, e.CurrentToolbar().Slot)
	assert.Equal(t, []string{"horizontalRule"}, toolbar.ActionIDs(e.HiddenActions()))

	require.NoError(t, e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeWysiwyg}))
	assert.Equal(t, toolbar.SlotWysiwygMain, e.CurrentToolbar().Slot)
}

func TestToolbarOverrideStubsMissingAction(t *testing.T) {
	e, _ := newEditor(t, Options{
		Preset: extensions.PresetZero,
		Toolbar: ToolbarOptions{
			Items:     map[string]toolbar.ItemDef{"video-insert": {Title: "Video", Wysiwyg: "video-insert"}},
			Overrides: map[toolbar.Slot]toolbar.Order{toolbar.SlotWysiwygMain: {{{ID: "video-insert"}}}},
		},
	})

	set := e.Toolbars()
	assert.Equal(t, []toolbar.Item{toolbar.Stub{ID: "video-insert", Reason: toolbar.DiagnosticUnknownAction}}, set.WysiwygMain.Groups[0])
	require.Len(t, set.Diagnostics, 1)
}

func TestStateSnapshot(t *testing.T) {
	e, _ := newEditor(t, Options{
		Initial:   InitialOptions{Markup: "para"},
		Transform: transform.Options{Directive: directive.Config{Default: directive.Overwrite}},
	})

	state := e.State()
	assert.Equal(t, e.ID(), state.SessionID)
	assert.Equal(t, ModeWysiwyg, state.Mode)
	assert.True(t, state.ToolbarVisible)
	assert.Equal(t, SplitOff, state.SplitMode)
	assert.Equal(t, directive.Overwrite, state.Directive.Default)
	assert.Equal(t, []int{0}, state.Selection.Path)

	state.Selection.Path[0] = 9
	assert.Equal(t, []int{0}, e.State().Selection.Path)
}

func TestTickScheduler(t *testing.T) {
	scheduler := &TickScheduler{}
	var order []int
	scheduler.Schedule(func() {
		order = append(order, 1)
		scheduler.Schedule(func() { order = append(order, 3) })
	})
	scheduler.Schedule(func() { order = append(order, 2) })

	assert.Equal(t, 2, scheduler.Tick())
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, scheduler.Tick())
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Zero(t, scheduler.Tick())
}
