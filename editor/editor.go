// Package editor owns an editing session: the live document in either representation, the
// mode state machine that converts between them, and the session flags views render from.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rgonek/markdown-editor/directive"
	"github.com/rgonek/markdown-editor/extension"
	"github.com/rgonek/markdown-editor/extensions"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/rgonek/markdown-editor/toolbar"
	"github.com/rgonek/markdown-editor/transform"
)

// ErrModeChangeVetoed is returned when the BeforeModeChange guard rejects a transition.
var ErrModeChangeVetoed = errors.New("mode change vetoed")

// MarkupSelection is a byte range of the markup text.
type MarkupSelection struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// State is a snapshot of the session flags.
type State struct {
	SessionID       uuid.UUID           `json:"sessionId"`
	Mode            Mode                `json:"mode"`
	ToolbarVisible  bool                `json:"toolbarVisible"`
	SplitMode       SplitMode           `json:"splitMode"`
	PreviewVisible  bool                `json:"previewVisible"`
	Directive       directive.Config    `json:"directive"`
	Selection       extension.Selection `json:"selection"`
	MarkupSelection MarkupSelection     `json:"markupSelection"`
}

// ChangeModeOptions describe a mode change. Emit defaults to true.
type ChangeModeOptions struct {
	Mode   Mode
	Reason Reason
	Emit   *bool
}

// Editor is one editing session. It is safe for concurrent use; transitions are serialized and
// a request made while one is running is rejected with ErrTransitionInProgress.
type Editor struct {
	mu       sync.Mutex
	id       uuid.UUID
	opts     Options
	registry *extension.Registry
	engine   *transform.Engine
	rules    []extension.InputRule
	toolbars toolbar.Set
	logger   *slog.Logger

	mode            Mode
	doc             schema.Node
	selection       extension.Selection
	markup          string
	markupSelection MarkupSelection
	toolbarVisible  bool
	splitMode       SplitMode
	previewVisible  bool

	// recovered is the tree replaced by plain text in the last recovery to markup.
	recovered *schema.Node

	transitioning bool
	disposed      bool
	subscribers   []subscriber
}

// New starts a session.
func New(options Options) (*Editor, error) {
	opts := options.applyDefaults().clone()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	registry, err := buildRegistry(opts)
	if err != nil {
		return nil, err
	}
	engine, err := transform.New(registry, opts.Transform)
	if err != nil {
		return nil, fmt.Errorf("failed to create transform engine: %w", err)
	}

	e := &Editor{
		id:             uuid.New(),
		opts:           opts,
		registry:       registry,
		engine:         engine,
		rules:          registry.InputRules(),
		mode:           opts.Initial.Mode,
		toolbarVisible: *opts.Initial.ToolbarVisible,
		splitMode:      SplitOff,
	}
	e.logger = opts.Logger.With("session", e.id.String())
	e.toolbars = toolbar.Resolve(toolbar.ResolveOptions{
		Preset:    opts.Toolbar.Preset,
		Custom:    opts.Toolbar.Custom,
		Items:     opts.Toolbar.Items,
		Overrides: opts.Toolbar.Overrides,
		Registry:  registry,
		Logger:    e.logger,
	})
	if opts.Initial.SplitMode.Enabled() && e.splitAvailable() {
		e.splitMode = opts.Initial.SplitMode
	}

	if err := e.loadInitial(); err != nil {
		return nil, err
	}
	e.logger.Debug("editor session started", "mode", e.mode, "preset", opts.Preset, "units", len(registry.Units()))
	return e, nil
}

func buildRegistry(opts Options) (*extension.Registry, error) {
	units, err := extensions.Preset(opts.Preset)
	if err != nil {
		return nil, err
	}
	units = append(units, opts.Units...)
	applied := map[string]bool{}
	for idx, unit := range units {
		if unitOpts, ok := opts.UnitOptions[unit.Name]; ok {
			units[idx] = unit.WithOptions(unitOpts)
			applied[unit.Name] = true
		}
	}
	for name := range opts.UnitOptions {
		if !applied[name] {
			return nil, fmt.Errorf("options given for unknown extension unit %q", name)
		}
	}

	builder := extension.NewBuilder(extension.WithLogger(opts.Logger))
	if err := builder.Register(units...); err != nil {
		return nil, fmt.Errorf("failed to register extension units: %w", err)
	}
	registry, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build extension registry: %w", err)
	}

	return registry, nil
}

func (e *Editor) loadInitial() error {
	initial := e.opts.Initial
	if e.mode == ModeMarkup {
		e.markup = initial.Markup
		return nil
	}
	if initial.Document != nil {
		if err := e.engine.Schema().Check(*initial.Document); err != nil {
			return fmt.Errorf("invalid initial document: %w", err)
		}
		e.doc = initial.Document.Clone()
		e.selection = firstSelection(e.engine.Schema(), e.doc)
		return nil
	}
	result, err := e.engine.Parse(initial.Markup)
	if err != nil {
		// Start in markup mode with the text as given.
		e.opts.Reporter.Report(fmt.Errorf("%w: initial markup: %w", ErrConversionFailed, err))
		e.mode = ModeMarkup
		e.markup = initial.Markup
		return nil
	}
	e.logWarnings("initial parse", result.Warnings)
	e.doc = result.Doc
	e.selection = firstSelection(e.engine.Schema(), e.doc)
	return nil
}

// ID returns the session id.
func (e *Editor) ID() uuid.UUID {
	return e.id
}

// Registry returns the extension registry of the session.
func (e *Editor) Registry() *extension.Registry {
	return e.registry
}

// Engine returns the transform engine of the session.
func (e *Editor) Engine() *transform.Engine {
	return e.engine
}

// Toolbars returns the resolved toolbars.
func (e *Editor) Toolbars() toolbar.Set {
	return e.toolbars
}

// CurrentToolbar returns the main toolbar of the current mode.
func (e *Editor) CurrentToolbar() toolbar.Toolbar {
	return e.toolbars.Main(surfaceOf(e.Mode()))
}

// HiddenActions returns the flattened hidden actions of the current mode.
func (e *Editor) HiddenActions() []toolbar.Item {
	return e.toolbars.Hidden(surfaceOf(e.Mode()))
}

func surfaceOf(mode Mode) toolbar.Surface {
	if mode == ModeMarkup {
		return toolbar.SurfaceMarkup
	}

	return toolbar.SurfaceWysiwyg
}

// Mode returns the current mode.
func (e *Editor) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// State returns a snapshot of the session flags.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		SessionID:       e.id,
		Mode:            e.mode,
		ToolbarVisible:  e.toolbarVisible,
		SplitMode:       e.splitMode,
		PreviewVisible:  e.previewVisible,
		Directive:       e.engine.Options().Directive,
		Selection:       e.selection.Clone(),
		MarkupSelection: e.markupSelection,
	}
}

// Markup returns the document as markup, serializing it when wysiwyg is live.
func (e *Editor) Markup(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return "", ErrDisposed
	}
	if e.mode == ModeMarkup {
		defer e.mu.Unlock()
		return e.markup, nil
	}
	doc := e.doc.Clone()
	e.mu.Unlock()

	result, err := e.engine.SerializeWithContext(ctx, doc, transform.CallOptions{})
	if err != nil {
		return "", err
	}

	return result.Markup, nil
}

// Document returns the document tree, parsing the markup when markup is live.
func (e *Editor) Document(ctx context.Context) (schema.Node, error) {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return schema.Node{}, ErrDisposed
	}
	if e.mode == ModeWysiwyg {
		defer e.mu.Unlock()
		return e.doc.Clone(), nil
	}
	text := e.markup
	e.mu.Unlock()

	result, err := e.engine.ParseWithContext(ctx, e.prepare(text), transform.CallOptions{})
	if err != nil {
		return schema.Node{}, err
	}

	return result.Doc, nil
}

func (e *Editor) prepare(text string) string {
	if e.opts.PrepareRawMarkup != nil {
		return e.opts.PrepareRawMarkup(text)
	}

	return text
}

// beginLocked starts an operation under e.mu. The caller holds the lock.
func (e *Editor) beginLocked() error {
	if e.disposed {
		return ErrDisposed
	}
	if e.transitioning {
		return ErrTransitionInProgress
	}

	return nil
}

// ChangeMode switches the live representation. Converting to the current mode is a no-op. A
// vetoed change returns ErrModeChangeVetoed without converting. A failed conversion keeps the
// last good representation, reports the failure, forces markup mode without an event and
// returns an error wrapping ErrConversionFailed.
func (e *Editor) ChangeMode(ctx context.Context, opts ChangeModeOptions) error {
	if !opts.Mode.Valid() {
		return fmt.Errorf("invalid mode %q", opts.Mode)
	}
	if opts.Reason == "" {
		opts.Reason = ReasonAPI
	}
	if ctx == nil {
		ctx = context.Background()
	}

	e.mu.Lock()
	if err := e.beginLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	from := e.mode
	if from == opts.Mode {
		e.mu.Unlock()
		return nil
	}
	e.transitioning = true
	doc, text := e.doc.Clone(), e.markup
	e.mu.Unlock()

	if guard := e.opts.BeforeModeChange; guard != nil && !guard(ModeChangeRequest{Mode: opts.Mode, From: from, Reason: opts.Reason}) {
		e.endTransition()
		e.logger.Debug("mode change vetoed", "from", from, "to", opts.Mode, "reason", opts.Reason)
		return ErrModeChangeVetoed
	}

	var (
		nextDoc    schema.Node
		nextMarkup string
		warnings   []markup.Warning
		err        error
	)
	switch opts.Mode {
	case ModeMarkup:
		var result transform.SerializeResult
		result, err = e.engine.SerializeWithContext(ctx, doc, transform.CallOptions{})
		nextMarkup, warnings = result.Markup, result.Warnings
	case ModeWysiwyg:
		var result transform.ParseResult
		result, err = e.engine.ParseWithContext(ctx, e.prepare(text), transform.CallOptions{})
		nextDoc, warnings = result.Doc, result.Warnings
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.endTransition()
			return err
		}
		failure := fmt.Errorf("%w: %s to %s: %w", ErrConversionFailed, from, opts.Mode, err)
		e.recoverToMarkup(failure, doc)
		return failure
	}
	e.logWarnings("mode change", warnings)

	e.mu.Lock()
	e.transitioning = false
	if e.disposed {
		e.mu.Unlock()
		return ErrDisposed
	}
	e.mode = opts.Mode
	e.recovered = nil
	if opts.Mode == ModeMarkup {
		e.markup = nextMarkup
		e.markupSelection = MarkupSelection{}
		e.doc = schema.Node{}
	} else {
		e.doc = nextDoc
		e.selection = firstSelection(e.engine.Schema(), nextDoc)
		e.markup = ""
	}
	subscribers := e.snapshotSubscribersLocked()
	e.mu.Unlock()

	e.logger.Info("editor mode changed", "from", from, "to", opts.Mode, "reason", opts.Reason)
	if opts.Emit == nil || *opts.Emit {
		deliver(subscribers, ModeChanged{Mode: opts.Mode, Previous: from, Reason: opts.Reason})
	}

	return nil
}

func (e *Editor) endTransition() {
	e.mu.Lock()
	e.transitioning = false
	e.mu.Unlock()
}

// recoverToMarkup reports a failed conversion and leaves the session in markup mode. When the
// tree could not be serialized its plain text becomes the markup and the tree is kept for
// RecoveredDocument.
func (e *Editor) recoverToMarkup(failure error, doc schema.Node) {
	e.opts.Reporter.Report(failure)
	e.logger.Warn("mode change failed, recovering to markup", "error", failure)

	e.mu.Lock()
	e.transitioning = false
	if e.disposed || e.mode == ModeMarkup {
		e.mu.Unlock()
		return
	}
	kept := doc.Clone()
	e.mode = ModeMarkup
	e.markup = plainText(e.engine.Schema(), doc)
	e.markupSelection = MarkupSelection{}
	e.doc = schema.Node{}
	e.recovered = &kept
	e.mu.Unlock()

	e.logger.Warn("structured document replaced by its plain text",
		"blocks", len(doc.Content),
		"markedTextNodes", countMarkedText(doc),
	)
}

// RecoveredDocument returns the tree discarded by the last recovery to markup mode, so a host
// can offer to restore it. It is cleared by the next successful mode change.
func (e *Editor) RecoveredDocument() (schema.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recovered == nil {
		return schema.Node{}, false
	}

	return e.recovered.Clone(), true
}

func countMarkedText(node schema.Node) int {
	count := 0
	if node.IsText() && len(node.Marks) > 0 {
		count++
	}
	for _, child := range node.Content {
		count += countMarkedText(child)
	}

	return count
}

// ReportRenderError handles a failure of the rendering layer: it reports err and, on the next
// scheduler tick, forces markup mode without emitting a mode change.
func (e *Editor) ReportRenderError(err error) {
	if err == nil {
		return
	}
	e.opts.Reporter.Report(fmt.Errorf("render failed: %w", err))
	e.opts.Scheduler.Schedule(func() {
		emit := false
		changeErr := e.ChangeMode(context.Background(), ChangeModeOptions{Mode: ModeMarkup, Reason: ReasonErrorBoundary, Emit: &emit})
		if changeErr != nil && !errors.Is(changeErr, ErrDisposed) && !errors.Is(changeErr, ErrConversionFailed) {
			e.opts.Reporter.Report(fmt.Errorf("recovery to markup mode failed: %w", changeErr))
		}
	})
}

func (e *Editor) splitAvailable() bool {
	return !e.opts.DisableSplitMode && e.opts.Renderer != nil
}

// ChangeSplitMode sets the split layout. It is only valid in markup mode; enabling split view
// hides the preview pane.
func (e *Editor) ChangeSplitMode(mode SplitMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid split mode %q", mode)
	}
	e.mu.Lock()
	if err := e.beginLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.mode != ModeMarkup {
		e.mu.Unlock()
		return fmt.Errorf("%w: split mode requires markup mode", ErrWrongMode)
	}
	if mode.Enabled() && !e.splitAvailable() {
		e.mu.Unlock()
		return ErrSplitModeUnavailable
	}
	if e.splitMode == mode {
		e.mu.Unlock()
		return nil
	}
	e.splitMode = mode
	events := []Event{SplitModeChanged{SplitMode: mode}}
	if mode.Enabled() && e.previewVisible {
		e.previewVisible = false
		events = append(events, PreviewVisibilityChanged{Visible: false})
	}
	subscribers := e.snapshotSubscribersLocked()
	e.mu.Unlock()

	deliver(subscribers, events...)
	return nil
}

// ChangePreviewVisible shows or hides the preview pane. It is only valid in markup mode;
// showing the preview turns split view off.
func (e *Editor) ChangePreviewVisible(visible bool) error {
	e.mu.Lock()
	if err := e.beginLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.mode != ModeMarkup {
		e.mu.Unlock()
		return fmt.Errorf("%w: preview requires markup mode", ErrWrongMode)
	}
	if visible && e.opts.Renderer == nil {
		e.mu.Unlock()
		return ErrPreviewUnavailable
	}
	if e.previewVisible == visible {
		e.mu.Unlock()
		return nil
	}
	e.previewVisible = visible
	var events []Event
	if visible && e.splitMode.Enabled() {
		e.splitMode = SplitOff
		events = append(events, SplitModeChanged{SplitMode: SplitOff})
	}
	events = append(events, PreviewVisibilityChanged{Visible: visible})
	subscribers := e.snapshotSubscribersLocked()
	e.mu.Unlock()

	deliver(subscribers, events...)
	return nil
}

// ChangeToolbarVisibility shows or hides the toolbar.
func (e *Editor) ChangeToolbarVisibility(visible bool) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return ErrDisposed
	}
	if e.toolbarVisible == visible {
		e.mu.Unlock()
		return nil
	}
	e.toolbarVisible = visible
	subscribers := e.snapshotSubscribersLocked()
	e.mu.Unlock()

	deliver(subscribers, ToolbarVisibilityChanged{Visible: visible})
	return nil
}

// Subscribe registers fn for session events. Events are delivered synchronously, in
// subscription order, after the state change they describe.
func (e *Editor) Subscribe(fn func(Event)) (Subscription, error) {
	if fn == nil {
		return Subscription{}, fmt.Errorf("subscriber is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return Subscription{}, ErrDisposed
	}
	id := uuid.New()
	e.subscribers = append(e.subscribers, subscriber{id: id, fn: fn})
	return Subscription{id: id, editor: e}, nil
}

func (e *Editor) unsubscribe(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for idx, sub := range e.subscribers {
		if sub.id == id {
			e.subscribers = append(e.subscribers[:idx:idx], e.subscribers[idx+1:]...)
			return
		}
	}
}

func (e *Editor) snapshotSubscribersLocked() []subscriber {
	return append([]subscriber(nil), e.subscribers...)
}

func deliver(subscribers []subscriber, events ...Event) {
	for _, event := range events {
		for _, sub := range subscribers {
			sub.fn(event)
		}
	}
}

// Dispose ends the session, dropping subscriptions and document state.
func (e *Editor) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.disposed = true
	e.subscribers = nil
	e.doc = schema.Node{}
	e.markup = ""
	e.recovered = nil
	e.logger.Debug("editor session disposed")
}

func (e *Editor) logWarnings(operation string, warnings []markup.Warning) {
	for _, warning := range warnings {
		e.logger.Debug("conversion warning",
			"operation", operation,
			"type", warning.Type,
			"node", warning.NodeType,
			"message", warning.Message,
		)
	}
}

// firstSelection places a cursor at the start of the first textblock.
func firstSelection(s *schema.Schema, doc schema.Node) extension.Selection {
	var find func(node schema.Node, path []int) ([]int, bool)
	find = func(node schema.Node, path []int) ([]int, bool) {
		for idx, child := range node.Content {
			childPath := append(append([]int(nil), path...), idx)
			nodeType, ok := s.NodeType(child.Type)
			if !ok {
				continue
			}
			if nodeType.IsTextblock() {
				return childPath, true
			}
			if found, ok := find(child, childPath); ok {
				return found, true
			}
		}
		return nil, false
	}
	path, _ := find(doc, nil)
	return extension.Selection{Path: path}
}

// plainText joins the text of every textblock with blank lines.
func plainText(s *schema.Schema, doc schema.Node) string {
	var blocks []string
	var walk func(node schema.Node)
	walk = func(node schema.Node) {
		for _, child := range node.Content {
			if nodeType, ok := s.NodeType(child.Type); ok && nodeType.IsTextblock() {
				blocks = append(blocks, child.TextContent())
				continue
			}
			walk(child)
		}
	}
	walk(doc)
	return strings.Join(blocks, "\n\n")
}
