// Package extension composes extension units into an immutable registry: one schema, one
// markup parser configuration, one serializer table and one action table.
package extension

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rgonek/markdown-editor/internal/logging"
	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
)

// NodeDef is a node type contributed by a unit.
type NodeDef struct {
	Spec       schema.NodeSpec
	FromMarkup []markup.ParseHandler
	ToMarkup   markup.NodeSerializer
}

// MarkDef is a mark type contributed by a unit.
type MarkDef struct {
	Spec       schema.MarkSpec
	FromMarkup []markup.ParseHandler
	ToMarkup   markup.MarkSerializer
}

// Builder accumulates units and builds a Registry. During Build the same value is the
// handle passed to each unit's Apply.
type Builder struct {
	logger *slog.Logger

	units      []Unit
	unitIndex  map[string]int
	registerEr []error

	current string
	applied map[string]bool
	order   []string
	errs    []error

	nodes           []schema.NodeSpec
	marks           []schema.MarkSpec
	typeOwner       map[string]string
	handlers        []markup.ParseHandler
	nodeSerializers map[string]markup.NodeSerializer
	markSerializers map[string]markup.MarkSerializer
	extenders       []goldmark.Extender
	actions         []actionEntry
	actionOwner     map[string]string
	markupActions   map[string]MarkupAction
	markupOwner     map[string]string
	inputRules      []InputRuleFactory
	keymap          map[string]string
	keyOwner        map[string]string
	tracked         []string
}

type actionEntry struct {
	id      string
	factory ActionFactory
}

// BuilderOption configures a Builder.
type BuilderOption func(b *Builder)

// WithLogger sets the logger used for build diagnostics.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates an empty builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{unitIndex: map[string]int{}}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrNop(b.logger)
	return b
}

// Register adds a unit. Registering a name twice is a conflict unless the already registered
// unit is Overridable; the newer definition then replaces the older one in place.
func (b *Builder) Register(units ...Unit) error {
	var errs []error
	for _, unit := range units {
		if err := b.register(unit); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (b *Builder) register(unit Unit) error {
	name := strings.TrimSpace(unit.Name)
	if name == "" {
		err := &BuildError{Err: errors.New("unit has no name")}
		b.registerEr = append(b.registerEr, err)
		return err
	}
	unit.Name = name
	if idx, exists := b.unitIndex[name]; exists {
		if !b.units[idx].Overridable {
			err := &BuildError{Unit: name, Err: fmt.Errorf("%w: %q is already registered", ErrDuplicateUnit, name)}
			b.registerEr = append(b.registerEr, err)
			return err
		}
		b.logger.Debug("overriding extension unit", "unit", name)
		b.units[idx] = unit
		return nil
	}
	b.unitIndex[name] = len(b.units)
	b.units = append(b.units, unit)
	return nil
}

// Build resolves unit requirements, applies every unit once and compiles the schema.
// All failures are joined; no registry is returned on error.
func (b *Builder) Build() (*Registry, error) {
	b.reset()

	ordered, err := b.resolveOrder()
	if err != nil {
		return nil, errors.Join(append(append([]error(nil), b.registerEr...), err)...)
	}
	if len(b.registerEr) > 0 {
		return nil, errors.Join(b.registerEr...)
	}

	for _, unit := range ordered {
		b.apply(unit)
	}

	compiled, err := schema.New(schema.Spec{Nodes: b.nodes, Marks: b.marks})
	if err != nil {
		b.errs = append(b.errs, &BuildError{Err: err})
	}
	if len(b.errs) > 0 {
		joined := errors.Join(b.errs...)
		b.logger.Warn("extension registry build failed", "error", joined)
		return nil, joined
	}

	reg := &Registry{
		schema:          compiled,
		units:           append([]string(nil), b.order...),
		handlers:        map[ast.NodeKind][]markup.ParseHandler{},
		nodeSerializers: b.nodeSerializers,
		markSerializers: b.markSerializers,
		extenders:       append([]goldmark.Extender(nil), b.extenders...),
		actions:         map[string]Action{},
		markupActions:   b.markupActions,
		keymap:          b.keymap,
		tracked:         append([]string(nil), b.tracked...),
	}

	type rankedHandler struct {
		handler markup.ParseHandler
		seq     int
	}
	ranked := make([]rankedHandler, len(b.handlers))
	for idx, handler := range b.handlers {
		ranked[idx] = rankedHandler{handler: handler, seq: idx}
	}
	// Higher priority first; at equal priority the later registration is tried first.
	sort.Slice(ranked, func(i, j int) bool {
		pi, pj := ranked[i].handler.EffectivePriority(), ranked[j].handler.EffectivePriority()
		if pi != pj {
			return pi > pj
		}
		return ranked[i].seq > ranked[j].seq
	})
	for _, entry := range ranked {
		reg.handlers[entry.handler.Kind] = append(reg.handlers[entry.handler.Kind], entry.handler)
	}

	for _, entry := range b.actions {
		reg.actions[entry.id] = entry.factory(compiled)
	}
	for _, factory := range b.inputRules {
		reg.inputRules = append(reg.inputRules, factory(compiled))
	}

	b.logger.Debug("extension registry built", "units", len(reg.units), "nodes", len(b.nodes), "marks", len(b.marks))
	return reg, nil
}

func (b *Builder) reset() {
	b.current = ""
	b.applied = map[string]bool{}
	b.order = nil
	b.errs = nil
	b.nodes = nil
	b.marks = nil
	b.typeOwner = map[string]string{}
	b.handlers = nil
	b.nodeSerializers = map[string]markup.NodeSerializer{}
	b.markSerializers = map[string]markup.MarkSerializer{}
	b.extenders = nil
	b.actions = nil
	b.actionOwner = map[string]string{}
	b.markupActions = map[string]MarkupAction{}
	b.markupOwner = map[string]string{}
	b.inputRules = nil
	b.keymap = map[string]string{}
	b.keyOwner = map[string]string{}
	b.tracked = nil
}

// resolveOrder sorts units so that requirements come first, keeping registration order
// wherever requirements allow.
func (b *Builder) resolveOrder() ([]Unit, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(b.units))
	var ordered []Unit
	var stack []string
	var errs []error

	var visit func(unit Unit) bool
	visit = func(unit Unit) bool {
		switch state[unit.Name] {
		case done:
			return true
		case visiting:
			errs = append(errs, &BuildError{
				Unit: unit.Name,
				Err:  fmt.Errorf("%w: %s", ErrDependencyCycle, cyclePath(stack, unit.Name)),
			})
			return false
		}
		state[unit.Name] = visiting
		stack = append(stack, unit.Name)
		ok := true
		for _, dep := range unit.Requires {
			idx, exists := b.unitIndex[dep]
			if !exists {
				errs = append(errs, &BuildError{
					Unit: unit.Name,
					Err:  fmt.Errorf("%w: requires %q", ErrMissingDependency, dep),
				})
				ok = false
				continue
			}
			if !visit(b.units[idx]) {
				ok = false
			}
		}
		stack = stack[:len(stack)-1]
		state[unit.Name] = done
		if ok {
			ordered = append(ordered, unit)
		}
		return ok
	}

	for _, unit := range b.units {
		visit(unit)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return ordered, nil
}

func (b *Builder) apply(unit Unit) {
	if b.applied[unit.Name] {
		return
	}
	b.applied[unit.Name] = true

	previous := b.current
	b.current = unit.Name
	defer func() { b.current = previous }()

	if unit.Apply != nil {
		if err := unit.Apply(b, unit.Options); err != nil {
			b.errs = append(b.errs, &BuildError{Unit: unit.Name, Err: fmt.Errorf("%w: %w", ErrApplyFailed, err)})
			return
		}
	}
	b.order = append(b.order, unit.Name)
}

// Use applies a nested unit from inside Apply. It is idempotent by unit name.
func (b *Builder) Use(unit Unit) {
	b.apply(unit)
}

// Unit returns the name of the unit currently being applied.
func (b *Builder) Unit() string {
	return b.current
}

func (b *Builder) claimType(kind, name string) bool {
	if owner, exists := b.typeOwner[name]; exists {
		b.errs = append(b.errs, &BuildError{
			Unit: b.current,
			Err:  fmt.Errorf("%w: %s type %q is already declared by %q", ErrTypeConflict, kind, name, owner),
		})
		return false
	}
	b.typeOwner[name] = b.current
	return true
}

// AddNode declares a node type with its parse and serialize rules.
func (b *Builder) AddNode(def NodeDef) {
	if !b.claimType("node", def.Spec.Name) {
		return
	}
	b.nodes = append(b.nodes, def.Spec)
	for _, handler := range def.FromMarkup {
		b.AddParseHandler(handler)
	}
	if def.ToMarkup != nil {
		b.nodeSerializers[def.Spec.Name] = def.ToMarkup
	}
}

// AddMark declares a mark type with its parse and serialize rules.
func (b *Builder) AddMark(def MarkDef) {
	if !b.claimType("mark", def.Spec.Name) {
		return
	}
	b.marks = append(b.marks, def.Spec)
	for _, handler := range def.FromMarkup {
		b.AddParseHandler(handler)
	}
	if def.ToMarkup.Open != nil || def.ToMarkup.Close != nil {
		b.markSerializers[def.Spec.Name] = def.ToMarkup
	}
}

// AddParseHandler registers a token handler that is not tied to a declared type.
func (b *Builder) AddParseHandler(handler markup.ParseHandler) {
	if handler.Parse == nil {
		b.errs = append(b.errs, &BuildError{Unit: b.current, Err: fmt.Errorf("parse handler for %s has no Parse function", handler.Kind)})
		return
	}
	handler.Unit = b.current
	b.handlers = append(b.handlers, handler)
}

// ConfigureMarkupParser plugs a goldmark extension into the shared tokenizer.
func (b *Builder) ConfigureMarkupParser(extender goldmark.Extender) {
	if extender != nil {
		b.extenders = append(b.extenders, extender)
	}
}

// AddAction registers a structured-document action under an id.
func (b *Builder) AddAction(id string, factory ActionFactory) {
	if owner, exists := b.actionOwner[id]; exists {
		b.errs = append(b.errs, &BuildError{Unit: b.current, Err: fmt.Errorf("%w: action %q is already registered by %q", ErrActionConflict, id, owner)})
		return
	}
	b.actionOwner[id] = b.current
	b.actions = append(b.actions, actionEntry{id: id, factory: factory})
}

// AddMarkupAction registers a raw-text action under an id.
func (b *Builder) AddMarkupAction(id string, action MarkupAction) {
	if owner, exists := b.markupOwner[id]; exists {
		b.errs = append(b.errs, &BuildError{Unit: b.current, Err: fmt.Errorf("%w: markup action %q is already registered by %q", ErrActionConflict, id, owner)})
		return
	}
	b.markupOwner[id] = b.current
	b.markupActions[id] = action
}

// AddInputRule registers an input rule.
func (b *Builder) AddInputRule(factory InputRuleFactory) {
	b.inputRules = append(b.inputRules, factory)
}

// AddKeymap binds a key (e.g. "Mod-b") to an action id.
func (b *Builder) AddKeymap(key, actionID string) {
	if existing, exists := b.keymap[key]; exists {
		if existing == actionID {
			return
		}
		b.errs = append(b.errs, &BuildError{
			Unit: b.current,
			Err:  fmt.Errorf("%w: key %q is bound to %q by %q", ErrKeymapConflict, key, existing, b.keyOwner[key]),
		})
		return
	}
	b.keymap[key] = actionID
	b.keyOwner[key] = b.current
}

// TrackFormatting marks a node type whose original markup is kept when preserve-formatting
// mode is on.
func (b *Builder) TrackFormatting(nodeType string) {
	for _, existing := range b.tracked {
		if existing == nodeType {
			return
		}
	}
	b.tracked = append(b.tracked, nodeType)
}
