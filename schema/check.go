package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CheckError describes the first invalid position found in a tree.
type CheckError struct {
	Path    []int
	Type    string
	Message string
}

func (e *CheckError) Error() string {
	path := make([]string, 0, len(e.Path))
	for _, index := range e.Path {
		path = append(path, strconv.Itoa(index))
	}
	location := "/" + strings.Join(path, "/")
	return fmt.Sprintf("invalid %s at %s: %s", e.Type, location, e.Message)
}

// ErrUnknownType is wrapped by Check when a node or mark type is not part of the schema.
var ErrUnknownType = errors.New("unknown type")

// Check validates a tree against the schema: known types, required attributes,
// content expressions and allowed marks.
func (s *Schema) Check(root Node) error {
	if root.Type != s.topNode {
		return &CheckError{Type: root.Type, Message: fmt.Sprintf("root must be %q", s.topNode)}
	}

	return s.checkNode(root, nil, nil)
}

// CheckFragment validates content as the children of the given parent type.
func (s *Schema) CheckFragment(parentType string, content []Node) error {
	parent, ok := s.nodes[parentType]
	if !ok {
		return fmt.Errorf("%w: node %q", ErrUnknownType, parentType)
	}

	return s.checkChildren(parent, content, nil)
}

func (s *Schema) checkNode(node Node, parent *NodeType, path []int) error {
	nodeType, ok := s.nodes[node.Type]
	if !ok {
		return fmt.Errorf("%w: %w", ErrUnknownType, &CheckError{Path: path, Type: node.Type, Message: "node type is not in the schema"})
	}

	for key, spec := range nodeType.Spec.Attrs {
		if !spec.Required {
			continue
		}
		if _, present := node.Attrs[key]; !present {
			return &CheckError{Path: path, Type: node.Type, Message: fmt.Sprintf("missing required attribute %q", key)}
		}
	}

	if node.Type == TextNodeName {
		if node.Text == "" {
			return &CheckError{Path: path, Type: node.Type, Message: "empty text nodes are not allowed"}
		}
		if len(node.Content) > 0 {
			return &CheckError{Path: path, Type: node.Type, Message: "text nodes cannot have content"}
		}
	}

	if len(node.Marks) > 0 {
		for _, mark := range node.Marks {
			markType, known := s.marks[mark.Type]
			if !known {
				return fmt.Errorf("%w: %w", ErrUnknownType, &CheckError{Path: path, Type: mark.Type, Message: "mark type is not in the schema"})
			}
			if parent != nil && !parent.AllowsMarkType(markType.Name) {
				return &CheckError{Path: path, Type: node.Type, Message: fmt.Sprintf("mark %q is not allowed in %q", mark.Type, parent.Name)}
			}
		}
		if !MarksEqual(node.Marks, s.NormalizeMarks(node.Marks)) {
			return &CheckError{Path: path, Type: node.Type, Message: "marks are not a normalized set"}
		}
	}

	return s.checkChildren(nodeType, node.Content, path)
}

func (s *Schema) checkChildren(nodeType *NodeType, content []Node, path []int) error {
	childTypes := make([]string, len(content))
	for index, child := range content {
		if _, ok := s.nodes[child.Type]; !ok {
			childPath := append(append([]int(nil), path...), index)
			return fmt.Errorf("%w: %w", ErrUnknownType, &CheckError{Path: childPath, Type: child.Type, Message: "node type is not in the schema"})
		}
		childTypes[index] = child.Type
	}
	if !nodeType.Content.Matches(childTypes) {
		return &CheckError{
			Path:    path,
			Type:    nodeType.Name,
			Message: fmt.Sprintf("content [%s] does not match %q", strings.Join(childTypes, " "), nodeType.Content.String()),
		}
	}

	for index, child := range content {
		childPath := append(append([]int(nil), path...), index)
		if err := s.checkNode(child, nodeType, childPath); err != nil {
			return err
		}
	}

	return nil
}
