package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidSchema is returned (wrapped) for every schema construction failure.
var ErrInvalidSchema = errors.New("invalid schema")

// NodeType is a compiled node spec.
type NodeType struct {
	Name    string
	Spec    NodeSpec
	Groups  []string
	Content *ContentMatch

	rank          int
	inlineContent bool
	markSet       []string // nil means all marks
}

// IsInline reports whether nodes of this type are inline.
func (t *NodeType) IsInline() bool {
	return t.Spec.Inline || t.Name == TextNodeName
}

// IsBlock reports whether nodes of this type are blocks.
func (t *NodeType) IsBlock() bool {
	return !t.IsInline()
}

// IsTextblock reports whether the node is a block holding inline content.
func (t *NodeType) IsTextblock() bool {
	return t.IsBlock() && t.inlineContent
}

// IsLeaf reports whether the node allows no content.
func (t *NodeType) IsLeaf() bool {
	return t.Content.IsEmpty()
}

// IsAtom reports whether the node is a leaf or declared atomic.
func (t *NodeType) IsAtom() bool {
	return t.IsLeaf() || t.Spec.Atom
}

// AllowsMarkType reports whether a mark type may be applied to the content of this node.
func (t *NodeType) AllowsMarkType(markType string) bool {
	if t.markSet == nil {
		return true
	}

	return containsString(t.markSet, markType)
}

// MarkType is a compiled mark spec.
type MarkType struct {
	Name string
	Spec MarkSpec
	Rank int

	excluded []string
}

// Excludes reports whether this mark cannot coexist with another mark type.
func (t *MarkType) Excludes(other string) bool {
	return containsString(t.excluded, other)
}

// Schema is an immutable set of node and mark types.
type Schema struct {
	topNode   string
	nodes     map[string]*NodeType
	nodeOrder []string
	marks     map[string]*MarkType
	markOrder []string
}

// New compiles a schema. Every content, marks and excludes reference must resolve inside the
// spec; otherwise an error wrapping ErrInvalidSchema is returned and no schema is produced.
func New(spec Spec) (*Schema, error) {
	s := &Schema{
		topNode: spec.TopNode,
		nodes:   make(map[string]*NodeType, len(spec.Nodes)),
		marks:   make(map[string]*MarkType, len(spec.Marks)),
	}
	if s.topNode == "" {
		s.topNode = DocNodeName
	}

	var errs []error
	for rank, nodeSpec := range spec.Nodes {
		name := strings.TrimSpace(nodeSpec.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%w: node spec %d has no name", ErrInvalidSchema, rank))
			continue
		}
		if _, exists := s.nodes[name]; exists {
			errs = append(errs, fmt.Errorf("%w: duplicate node type %q", ErrInvalidSchema, name))
			continue
		}
		s.nodes[name] = &NodeType{
			Name:   name,
			Spec:   nodeSpec,
			Groups: strings.Fields(nodeSpec.Group),
			rank:   rank,
		}
		s.nodeOrder = append(s.nodeOrder, name)
	}
	for rank, markSpec := range spec.Marks {
		name := strings.TrimSpace(markSpec.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%w: mark spec %d has no name", ErrInvalidSchema, rank))
			continue
		}
		if _, exists := s.marks[name]; exists {
			errs = append(errs, fmt.Errorf("%w: duplicate mark type %q", ErrInvalidSchema, name))
			continue
		}
		s.marks[name] = &MarkType{Name: name, Spec: markSpec, Rank: rank}
		s.markOrder = append(s.markOrder, name)
	}

	if _, ok := s.nodes[s.topNode]; !ok {
		errs = append(errs, fmt.Errorf("%w: schema is missing its top node type %q", ErrInvalidSchema, s.topNode))
	}
	if _, ok := s.nodes[TextNodeName]; !ok {
		errs = append(errs, fmt.Errorf("%w: every schema needs a %q type", ErrInvalidSchema, TextNodeName))
	}
	if text, ok := s.nodes[TextNodeName]; ok && len(text.Spec.Attrs) > 0 {
		errs = append(errs, fmt.Errorf("%w: the text node type should not have attributes", ErrInvalidSchema))
	}

	for _, name := range s.nodeOrder {
		nodeType := s.nodes[name]
		content, err := compileContent(nodeType.Spec.Content, s.resolveNodeNames)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: node %q: %v", ErrInvalidSchema, name, err))
			continue
		}
		nodeType.Content = content
	}
	for _, name := range s.nodeOrder {
		nodeType := s.nodes[name]
		if nodeType.Content == nil {
			continue
		}
		nodeType.inlineContent = s.isInlineContent(nodeType.Content)
		markSet, err := s.compileNodeMarks(nodeType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		nodeType.markSet = markSet
	}
	for _, name := range s.markOrder {
		markType := s.marks[name]
		excluded, err := s.compileExcludes(markType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		markType.excluded = excluded
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return s, nil
}

func (s *Schema) resolveNodeNames(name string) ([]string, bool) {
	if _, ok := s.nodes[name]; ok {
		return []string{name}, true
	}
	var members []string
	for _, nodeName := range s.nodeOrder {
		if containsString(s.nodes[nodeName].Groups, name) {
			members = append(members, nodeName)
		}
	}

	return members, len(members) > 0
}

func (s *Schema) resolveMarkNames(name string) ([]string, bool) {
	if name == "_" {
		return append([]string(nil), s.markOrder...), true
	}
	if _, ok := s.marks[name]; ok {
		return []string{name}, true
	}
	var members []string
	for _, markName := range s.markOrder {
		if containsString(strings.Fields(s.marks[markName].Spec.Group), name) {
			members = append(members, markName)
		}
	}

	return members, len(members) > 0
}

func (s *Schema) isInlineContent(content *ContentMatch) bool {
	types := content.Types()
	if len(types) == 0 {
		return false
	}
	for _, name := range types {
		if !s.nodes[name].IsInline() {
			return false
		}
	}

	return true
}

func (s *Schema) compileNodeMarks(nodeType *NodeType) ([]string, error) {
	if nodeType.Spec.Marks == nil {
		if nodeType.inlineContent {
			return nil, nil
		}
		return []string{}, nil
	}
	raw := strings.Fields(*nodeType.Spec.Marks)
	if len(raw) == 1 && raw[0] == "_" {
		return nil, nil
	}
	markSet := []string{}
	for _, name := range raw {
		members, ok := s.resolveMarkNames(name)
		if !ok {
			return nil, fmt.Errorf("%w: node %q: unknown mark type or group %q", ErrInvalidSchema, nodeType.Name, name)
		}
		markSet = append(markSet, members...)
	}

	return markSet, nil
}

func (s *Schema) compileExcludes(markType *MarkType) ([]string, error) {
	if markType.Spec.Excludes == nil {
		return []string{markType.Name}, nil
	}
	var excluded []string
	for _, name := range strings.Fields(*markType.Spec.Excludes) {
		members, ok := s.resolveMarkNames(name)
		if !ok {
			return nil, fmt.Errorf("%w: mark %q: unknown mark type or group %q in excludes", ErrInvalidSchema, markType.Name, name)
		}
		excluded = append(excluded, members...)
	}

	return excluded, nil
}

// TopNode returns the name of the document node type.
func (s *Schema) TopNode() string {
	return s.topNode
}

// NodeType returns a node type by name.
func (s *Schema) NodeType(name string) (*NodeType, bool) {
	nodeType, ok := s.nodes[name]
	return nodeType, ok
}

// MarkType returns a mark type by name.
func (s *Schema) MarkType(name string) (*MarkType, bool) {
	markType, ok := s.marks[name]
	return markType, ok
}

// NodeTypes returns node types in declaration order.
func (s *Schema) NodeTypes() []*NodeType {
	out := make([]*NodeType, 0, len(s.nodeOrder))
	for _, name := range s.nodeOrder {
		out = append(out, s.nodes[name])
	}

	return out
}

// MarkTypes returns mark types in rank order.
func (s *Schema) MarkTypes() []*MarkType {
	out := make([]*MarkType, 0, len(s.markOrder))
	for _, name := range s.markOrder {
		out = append(out, s.marks[name])
	}

	return out
}

// Node creates a node filling default attributes. It does not check content.
func (s *Schema) Node(typeName string, attrs map[string]interface{}, content ...Node) (Node, error) {
	nodeType, ok := s.nodes[typeName]
	if !ok {
		return Node{}, fmt.Errorf("unknown node type %q", typeName)
	}
	computed, err := computeAttrs(nodeType.Spec.Attrs, attrs)
	if err != nil {
		return Node{}, fmt.Errorf("node %q: %w", typeName, err)
	}
	node := Node{Type: typeName, Attrs: computed}
	if len(content) > 0 {
		node.Content = content
	}

	return node, nil
}

// Text creates a text node with sorted marks.
func (s *Schema) Text(text string, marks ...Mark) Node {
	node := Node{Type: TextNodeName, Text: text}
	if len(marks) > 0 {
		node.Marks = s.NormalizeMarks(marks)
	}

	return node
}

// Mark creates a mark filling default attributes.
func (s *Schema) Mark(typeName string, attrs map[string]interface{}) (Mark, error) {
	markType, ok := s.marks[typeName]
	if !ok {
		return Mark{}, fmt.Errorf("unknown mark type %q", typeName)
	}
	computed, err := computeAttrs(markType.Spec.Attrs, attrs)
	if err != nil {
		return Mark{}, fmt.Errorf("mark %q: %w", typeName, err)
	}

	return Mark{Type: typeName, Attrs: computed}, nil
}

// DefaultAttrs returns the attributes of a node type with defaults applied.
func (s *Schema) DefaultAttrs(typeName string, attrs map[string]interface{}) (map[string]interface{}, error) {
	nodeType, ok := s.nodes[typeName]
	if !ok {
		if markType, isMark := s.marks[typeName]; isMark {
			return computeAttrs(markType.Spec.Attrs, attrs)
		}
		return nil, fmt.Errorf("unknown type %q", typeName)
	}

	return computeAttrs(nodeType.Spec.Attrs, attrs)
}

func computeAttrs(specs map[string]AttributeSpec, given map[string]interface{}) (map[string]interface{}, error) {
	if len(specs) == 0 && len(given) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(specs)+len(given))
	for key, value := range given {
		out[key] = value
	}
	keys := make([]string, 0, len(specs))
	for key := range specs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := out[key]; ok {
			continue
		}
		spec := specs[key]
		if spec.Required {
			return nil, fmt.Errorf("no value supplied for attribute %q", key)
		}
		if spec.Default != nil {
			out[key] = spec.Default
		}
	}
	if len(out) == 0 {
		return nil, nil
	}

	return out, nil
}

// NormalizeMarks sorts marks by rank and drops marks excluded by later ones.
func (s *Schema) NormalizeMarks(marks []Mark) []Mark {
	var set []Mark
	for _, mark := range marks {
		set = s.AddMark(set, mark)
	}

	return set
}

// AddMark adds a mark to a sorted set, replacing marks it excludes.
func (s *Schema) AddMark(set []Mark, mark Mark) []Mark {
	markType, ok := s.marks[mark.Type]
	if !ok {
		return append(append([]Mark(nil), set...), mark)
	}
	out := make([]Mark, 0, len(set)+1)
	placed := false
	for _, existing := range set {
		if existing.Eq(mark) {
			return set
		}
		existingType, known := s.marks[existing.Type]
		if known && (markType.Excludes(existing.Type) || existingType.Excludes(mark.Type)) {
			continue
		}
		if !placed && known && existingType.Rank > markType.Rank {
			out = append(out, mark)
			placed = true
		}
		out = append(out, existing)
	}
	if !placed {
		out = append(out, mark)
	}

	return out
}

// RemoveMark removes every mark of the given type from the set.
func RemoveMark(set []Mark, markType string) []Mark {
	var out []Mark
	for _, mark := range set {
		if mark.Type != markType {
			out = append(out, mark)
		}
	}

	return out
}

// HasMark reports whether the set holds a mark of the given type.
func HasMark(set []Mark, markType string) bool {
	for _, mark := range set {
		if mark.Type == markType {
			return true
		}
	}

	return false
}
