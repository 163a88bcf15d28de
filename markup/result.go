package markup

// WarningType categorizes conversion warnings.
type WarningType string

const (
	WarningUnknownNode       WarningType = "unknown_node"
	WarningUnknownMark       WarningType = "unknown_mark"
	WarningDroppedFeature    WarningType = "dropped_feature"
	WarningSerializeFallback WarningType = "serialize_fallback"
	WarningDirectiveFallback WarningType = "directive_fallback"
)

// Warning represents a non-fatal issue encountered during conversion.
type Warning struct {
	Type     WarningType `json:"type"`
	NodeType string      `json:"nodeType,omitempty"`
	Message  string      `json:"message"`
}
