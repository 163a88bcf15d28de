package schema

import "golang.org/x/net/html"

const (
	// DocNodeName is the default top node type.
	DocNodeName = "doc"
	// TextNodeName is the node type of text leaves.
	TextNodeName = "text"

	// DefaultDOMPriority is the priority of parse rules that do not set one.
	DefaultDOMPriority = 50
)

// AttributeSpec describes one node or mark attribute. Attributes without a default are required.
type AttributeSpec struct {
	Default  interface{}
	Required bool
}

// Attr returns an optional attribute spec with the given default.
func Attr(defaultValue interface{}) AttributeSpec {
	return AttributeSpec{Default: defaultValue}
}

// RequiredAttr returns a spec for an attribute that must be provided.
func RequiredAttr() AttributeSpec {
	return AttributeSpec{Required: true}
}

// DOMRule maps an HTML element onto a node or mark. Selector accepts a tag name, `.class`
// and `[attr]` parts, e.g. `span[data-service][data-video-id]` or `.yfm-cut`.
type DOMRule struct {
	Selector string
	Priority int
	// GetAttrs extracts attributes; returning false rejects the match.
	GetAttrs func(el *html.Node) (map[string]interface{}, bool)
	// Ignore drops matching elements together with their content.
	Ignore bool
}

// DOMOutput is the HTML projection of a node or mark. Children are appended to ContentHole;
// a nil ContentHole marks a leaf.
type DOMOutput struct {
	Element     *html.Node
	ContentHole *html.Node
}

// NodeSpec declares a node type.
type NodeSpec struct {
	Name string
	// Content is the content expression, e.g. `inline*` or `yfm_cut_title yfm_cut_content`.
	Content string
	// Group is a space separated list of groups the node belongs to.
	Group string
	// Marks lists allowed marks or groups: nil allows all marks in textblocks and none elsewhere,
	// "_" allows all, "" allows none.
	Marks      *string
	Inline     bool
	Atom       bool
	Code       bool
	Defining   bool
	Selectable bool
	Attrs      map[string]AttributeSpec

	ParseDOM    []DOMRule
	ToDOM       func(node Node) DOMOutput
	Placeholder string
}

// MarkSpec declares a mark type.
type MarkSpec struct {
	Name      string
	Attrs     map[string]AttributeSpec
	Inclusive bool
	// Excludes lists marks (or groups) that cannot coexist with this one; nil excludes only
	// marks of the same type, "_" excludes all.
	Excludes *string
	Group    string
	Code     bool

	ParseDOM []DOMRule
	ToDOM    func(mark Mark, inline bool) DOMOutput
}

// Spec is the input to New.
type Spec struct {
	Nodes   []NodeSpec
	Marks   []MarkSpec
	TopNode string
}

// StringPtr is a helper for the optional string fields of NodeSpec and MarkSpec.
func StringPtr(value string) *string {
	return &value
}
