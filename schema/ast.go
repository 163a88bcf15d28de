package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node is one node of the structured document tree (e.g., paragraph, text, yfm_cut).
type Node struct {
	Type    string                 `json:"type"`
	Text    string                 `json:"text,omitempty"`
	Content []Node                 `json:"content,omitempty"`
	Marks   []Mark                 `json:"marks,omitempty"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
}

// Mark is inline formatting applied to a text or inline node (e.g., strong, sup, link).
type Mark struct {
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

// IsText reports whether the node is a text node.
func (n Node) IsText() bool {
	return n.Type == TextNodeName
}

// GetStringAttr returns a string attribute or fallback when missing or not a string.
func (n Node) GetStringAttr(key, fallback string) string {
	return stringAttr(n.Attrs, key, fallback)
}

// GetIntAttr returns an integer attribute, accepting JSON numbers.
func (n Node) GetIntAttr(key string, fallback int) int {
	if n.Attrs == nil {
		return fallback
	}
	switch value := n.Attrs[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return fallback
		}
		return int(parsed)
	default:
		return fallback
	}
}

// GetStringAttr returns a string attribute of the mark or fallback.
func (m Mark) GetStringAttr(key, fallback string) string {
	return stringAttr(m.Attrs, key, fallback)
}

func stringAttr(attrs map[string]interface{}, key, fallback string) string {
	if attrs == nil {
		return fallback
	}
	value, ok := attrs[key].(string)
	if !ok {
		return fallback
	}

	return value
}

// TextContent concatenates the text of all descendant text nodes.
func (n Node) TextContent() string {
	if n.IsText() {
		return n.Text
	}
	var sb strings.Builder
	for _, child := range n.Content {
		sb.WriteString(child.TextContent())
	}

	return sb.String()
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	cloned := n
	cloned.Attrs = CloneAttrs(n.Attrs)
	if n.Marks != nil {
		cloned.Marks = make([]Mark, len(n.Marks))
		for i, mark := range n.Marks {
			cloned.Marks[i] = mark.Clone()
		}
	}
	if n.Content != nil {
		cloned.Content = make([]Node, len(n.Content))
		for i, child := range n.Content {
			cloned.Content[i] = child.Clone()
		}
	}

	return cloned
}

// Clone returns a copy of the mark with its own attrs map.
func (m Mark) Clone() Mark {
	cloned := m
	cloned.Attrs = CloneAttrs(m.Attrs)
	return cloned
}

// CloneAttrs returns a shallow copy of an attribute map.
func CloneAttrs(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return nil
	}
	cloned := make(map[string]interface{}, len(attrs))
	for key, value := range attrs {
		cloned[key] = value
	}

	return cloned
}

// Equal reports whether two trees are structurally equal. Numeric attrs compare by value so
// a tree built in code equals the same tree decoded from JSON.
func Equal(left, right Node) bool {
	if left.Type != right.Type || left.Text != right.Text {
		return false
	}
	if !AttrsEqual(left.Attrs, right.Attrs) || !MarksEqual(left.Marks, right.Marks) {
		return false
	}
	if len(left.Content) != len(right.Content) {
		return false
	}
	for i := range left.Content {
		if !Equal(left.Content[i], right.Content[i]) {
			return false
		}
	}

	return true
}

// MarksEqual compares two ordered mark sets.
func MarksEqual(left, right []Mark) bool {
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if !left[i].Eq(right[i]) {
			return false
		}
	}

	return true
}

// Eq reports whether two marks have the same type and attributes.
func (m Mark) Eq(other Mark) bool {
	return m.Type == other.Type && AttrsEqual(m.Attrs, other.Attrs)
}

// AttrsEqual compares attribute maps; a nil map equals an empty one.
func AttrsEqual(left, right map[string]interface{}) bool {
	if len(left) != len(right) {
		return false
	}
	for key, leftValue := range left {
		rightValue, ok := right[key]
		if !ok || !valuesEqual(leftValue, rightValue) {
			return false
		}
	}

	return true
}

func valuesEqual(left, right interface{}) bool {
	if lf, ok := toFloat(left); ok {
		rf, ok := toFloat(right)
		return ok && lf == rf
	}
	switch typed := left.(type) {
	case map[string]interface{}:
		other, ok := right.(map[string]interface{})
		return ok && AttrsEqual(typed, other)
	case []interface{}:
		other, ok := right.([]interface{})
		if !ok || len(typed) != len(other) {
			return false
		}
		for i := range typed {
			if !valuesEqual(typed[i], other[i]) {
				return false
			}
		}
		return true
	}

	return fmt.Sprint(left) == fmt.Sprint(right) && fmt.Sprintf("%T", left) == fmt.Sprintf("%T", right)
}

func toFloat(value interface{}) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

// FromJSON decodes a document tree from its JSON form.
func FromJSON(data []byte) (Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return Node{}, fmt.Errorf("failed to parse document JSON: %w", err)
	}

	return node, nil
}

// ToJSON encodes a document tree as JSON.
func ToJSON(node Node) ([]byte, error) {
	data, err := json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document JSON: %w", err)
	}

	return data, nil
}
