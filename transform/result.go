package transform

import (
	"errors"

	"github.com/rgonek/markdown-editor/markup"
	"github.com/rgonek/markdown-editor/schema"
)

// ErrStructural reports a tree that does not satisfy the schema.
var ErrStructural = errors.New("structural error")

// ParseResult is the outcome of converting markup into a document tree.
type ParseResult struct {
	Doc      schema.Node
	Warnings []markup.Warning
}

// SerializeResult is the outcome of converting a document tree into markup.
type SerializeResult struct {
	Markup   string
	Warnings []markup.Warning
}
