package domain

// ElementType is the coarse structural category assigned by the
// partitioning step.
type ElementType string

const (
	ElementTitle ElementType = "title"
	ElementTable ElementType = "table"
	ElementBody  ElementType = "body"
	ElementNoise ElementType = "noise"
)

// Element is one extracted fragment of a filing, in document reading
// order (page, then position). Elements are immutable once produced.
type Element struct {
	SourceDoc string      `json:"source_doc"`
	Type      ElementType `json:"type"`
	Text      string      `json:"text"`
	Page      int         `json:"page"`
	TableHTML string      `json:"table_html,omitempty"`
}
