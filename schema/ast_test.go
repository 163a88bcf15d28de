package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestEqualNormalizesNumbers(t *testing.T) {
	built := Node{Type: "heading", Attrs: map[string]interface{}{"level": 2}, Content: []Node{{Type: "text", Text: "x"}}}

	data, err := ToJSON(built)
	require.NoError(t, err)
	decoded, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, float64(2), decoded.Attrs["level"])
	assert.True(t, Equal(built, decoded))
	assert.False(t, Equal(built, Node{Type: "heading", Attrs: map[string]interface{}{"level": "2"}}))
}

func TestCloneIsDeep(t *testing.T) {
	original := Node{Type: "paragraph", Content: []Node{
		{Type: "text", Text: "a", Marks: []Mark{{Type: "link", Attrs: map[string]interface{}{"href": "x"}}}},
	}}
	cloned := original.Clone()
	cloned.Content[0].Marks[0].Attrs["href"] = "y"
	cloned.Content[0].Text = "b"

	assert.Equal(t, "x", original.Content[0].Marks[0].Attrs["href"])
	assert.Equal(t, "a", original.TextContent())
}

func TestAttrAccessors(t *testing.T) {
	node := Node{Type: "heading", Attrs: map[string]interface{}{"level": float64(3), "id": "h"}}
	assert.Equal(t, 3, node.GetIntAttr("level", 1))
	assert.Equal(t, 1, node.GetIntAttr("missing", 1))
	assert.Equal(t, "h", node.GetStringAttr("id", ""))
	assert.Equal(t, "fallback", node.GetStringAttr("level", "fallback"))
}

func TestDOMRuleMatches(t *testing.T) {
	iframe := Elem("iframe", map[string]string{"src": "https://www.youtube.com/embed/x", "class": "video frame"})

	tests := []struct {
		selector string
		match    bool
	}{
		{selector: "iframe", match: true},
		{selector: "IFRAME", match: true},
		{selector: "span", match: false},
		{selector: ".video", match: true},
		{selector: "iframe.video.frame", match: true},
		{selector: "iframe.missing", match: false},
		{selector: "iframe[src]", match: true},
		{selector: "[data-service][src]", match: false},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			assert.Equal(t, tt.match, DOMRule{Selector: tt.selector}.Matches(iframe))
		})
	}

	assert.False(t, DOMRule{Selector: "iframe"}.Matches(&html.Node{Type: html.TextNode, Data: "iframe"}))
	assert.Equal(t, DefaultDOMPriority, DOMRule{}.EffectivePriority())
	assert.Equal(t, 100, DOMRule{Priority: 100}.EffectivePriority())
}
