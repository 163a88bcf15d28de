package extension

import (
	"sort"

	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
)

// Registry is the immutable result of Builder.Build.
type Registry struct {
	schema          *schema.Schema
	units           []string
	handlers        map[ast.NodeKind][]markup.ParseHandler
	nodeSerializers map[string]markup.NodeSerializer
	markSerializers map[string]markup.MarkSerializer
	extenders       []goldmark.Extender
	actions         map[string]Action
	markupActions   map[string]MarkupAction
	inputRules      []InputRule
	keymap          map[string]string
	tracked         []string
}

// Schema returns the composed schema.
func (r *Registry) Schema() *schema.Schema {
	return r.schema
}

// Units returns the applied unit names in application order.
func (r *Registry) Units() []string {
	return append([]string(nil), r.units...)
}

// HasUnit reports whether a unit was applied.
func (r *Registry) HasUnit(name string) bool {
	for _, unit := range r.units {
		if unit == name {
			return true
		}
	}

	return false
}

// ParseHandlers returns the candidates for a token kind in the order they are tried:
// descending priority, and for equal priority the last registered first.
func (r *Registry) ParseHandlers(kind ast.NodeKind) []markup.ParseHandler {
	return append([]markup.ParseHandler(nil), r.handlers[kind]...)
}

// NodeSerializer returns the serializer of a node type.
func (r *Registry) NodeSerializer(nodeType string) (markup.NodeSerializer, bool) {
	serializer, ok := r.nodeSerializers[nodeType]
	return serializer, ok
}

// MarkSerializer returns the serializer of a mark type.
func (r *Registry) MarkSerializer(markType string) (markup.MarkSerializer, bool) {
	serializer, ok := r.markSerializers[markType]
	return serializer, ok
}

// EscapeChars returns the union of the EscapeChars of all mark serializers, in byte order.
func (r *Registry) EscapeChars() string {
	seen := map[byte]bool{}
	for _, serializer := range r.markSerializers {
		for i := 0; i < len(serializer.EscapeChars); i++ {
			seen[serializer.EscapeChars[i]] = true
		}
	}
	chars := make([]byte, 0, len(seen))
	for c := range seen {
		chars = append(chars, c)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })

	return string(chars)
}

// MarkupExtenders returns the goldmark extensions contributed by units.
func (r *Registry) MarkupExtenders() []goldmark.Extender {
	return append([]goldmark.Extender(nil), r.extenders...)
}

// Action returns a structured-document action.
func (r *Registry) Action(id string) (Action, bool) {
	action, ok := r.actions[id]
	return action, ok
}

// MarkupAction returns a raw-text action.
func (r *Registry) MarkupAction(id string) (MarkupAction, bool) {
	action, ok := r.markupActions[id]
	return action, ok
}

// ActionIDs returns the sorted structured-document action ids.
func (r *Registry) ActionIDs() []string {
	return sortedKeys(r.actions)
}

// MarkupActionIDs returns the sorted raw-text action ids.
func (r *Registry) MarkupActionIDs() []string {
	return sortedKeys(r.markupActions)
}

// InputRules returns the input rules in registration order.
func (r *Registry) InputRules() []InputRule {
	return append([]InputRule(nil), r.inputRules...)
}

// KeyBinding returns the action id bound to a key.
func (r *Registry) KeyBinding(key string) (string, bool) {
	actionID, ok := r.keymap[key]
	return actionID, ok
}

// Keymap returns a copy of all key bindings.
func (r *Registry) Keymap() map[string]string {
	out := make(map[string]string, len(r.keymap))
	for key, value := range r.keymap {
		out[key] = value
	}

	return out
}

// TrackedNodeTypes returns node types eligible for preserve-formatting.
func (r *Registry) TrackedNodeTypes() []string {
	return append([]string(nil), r.tracked...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
