package transform

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rgonek/markdown-editor/schema"
	"github.com/yuin/goldmark/ast"
)

const (
	// ReservedAttrPrefix marks engine bookkeeping attributes. They are ignored by fingerprints.
	ReservedAttrPrefix = "__"
	// AttrRawMarkup holds the original markup span of a tracked block.
	AttrRawMarkup = "__markup_raw"
	// AttrFingerprint holds the content fingerprint of a tracked block at parse time.
	AttrFingerprint = "__markup_hash"
)

func (e *Engine) isTracked(nodeType string) bool {
	for _, tracked := range e.tracked {
		if tracked == nodeType {
			return true
		}
	}

	return false
}

// attachRawMarkup stores the source span of a top-level token on the tracked nodes it produced.
func (e *Engine) attachRawMarkup(nodes []schema.Node, token ast.Node, source []byte) []schema.Node {
	if !e.options.PreserveMarkupFormatting || len(nodes) != 1 || !e.isTracked(nodes[0].Type) {
		return nodes
	}
	start, stop, ok := blockSpan(token, source)
	if !ok {
		return nodes
	}
	node := nodes[0]
	node.Attrs = schema.CloneAttrs(node.Attrs)
	if node.Attrs == nil {
		node.Attrs = map[string]interface{}{}
	}
	node.Attrs[AttrRawMarkup] = string(source[start:stop])
	return []schema.Node{node}
}

// sealFingerprints records the fingerprint of every top-level node carrying a raw span. It runs
// after normalization so the fingerprint describes the final node.
func sealFingerprints(doc schema.Node) schema.Node {
	for i, child := range doc.Content {
		if _, ok := child.Attrs[AttrRawMarkup].(string); !ok {
			continue
		}
		child.Attrs[AttrFingerprint] = Fingerprint(child)
		doc.Content[i] = child
	}

	return doc
}

// Fingerprint hashes a node without its reserved attributes.
func Fingerprint(node schema.Node) string {
	data, err := json.Marshal(StripReserved(node))
	if err != nil {
		return ""
	}

	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// StripReserved returns a copy of the tree without reserved attributes.
func StripReserved(node schema.Node) schema.Node {
	stripped := node
	if len(node.Attrs) > 0 {
		attrs := make(map[string]interface{}, len(node.Attrs))
		for key, value := range node.Attrs {
			if !strings.HasPrefix(key, ReservedAttrPrefix) {
				attrs[key] = value
			}
		}
		if len(attrs) == 0 {
			attrs = nil
		}
		stripped.Attrs = attrs
	}
	if node.Content != nil {
		stripped.Content = make([]schema.Node, len(node.Content))
		for i, child := range node.Content {
			stripped.Content[i] = StripReserved(child)
		}
	}

	return stripped
}

// preservedMarkup returns the original span of an unmodified tracked node.
func preservedMarkup(node schema.Node) (string, bool) {
	raw, ok := node.Attrs[AttrRawMarkup].(string)
	if !ok {
		return "", false
	}
	hash, ok := node.Attrs[AttrFingerprint].(string)
	if !ok || hash == "" || hash != Fingerprint(node) {
		return "", false
	}

	return raw, true
}
