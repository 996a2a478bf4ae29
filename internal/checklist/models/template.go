package models

import "time"

// ConditionalLogic gates an item on another item's response. Only action
// "require" affects scoring applicability; "show" is a display hint.
type ConditionalLogic struct {
	TriggerItemID string            `json:"trigger_item_id"`
	TriggerValue  any               `json:"trigger_value"`
	Action        ConditionalAction `json:"action"`
}

// ChecklistItem is one checklist question. Weight is the points awarded when
// fully compliant; items with weight 0 are informational.
type ChecklistItem struct {
	ID               string            `json:"id"`
	SectionID        string            `json:"section_id"`
	Text             string            `json:"text"`
	ResponseType     ResponseType      `json:"response_type"`
	Criticality      Criticality       `json:"criticality"`
	Weight           float64           `json:"weight"`
	RequiredEvidence []EvidenceKind    `json:"required_evidence,omitempty"`
	Conditional      *ConditionalLogic `json:"conditional,omitempty"`
}

// ChecklistSection groups items. MinimumPassThreshold, when set, fails the
// whole audit if the section scores below it. Weight is informational only;
// scoring sums item weights, not section weights.
type ChecklistSection struct {
	ID                   string          `json:"id"`
	Title                string          `json:"title"`
	Weight               float64         `json:"weight,omitempty"`
	MinimumPassThreshold *float64        `json:"minimum_pass_threshold,omitempty"`
	Items                []ChecklistItem `json:"items"`
}

// ChecklistTemplate is the versioned definition of an audit. Immutable once
// Published; item IDs are unique across the whole template and serve as
// response keys.
type ChecklistTemplate struct {
	ID                   string                `json:"id"`
	Version              int                   `json:"version"`
	Title                string                `json:"title"`
	Commodity            Commodity             `json:"commodity"`
	FortificationMethods []FortificationMethod `json:"fortification_methods"`
	Status               TemplateStatus        `json:"status"`
	Sections             []ChecklistSection    `json:"sections"`
	CreatedAt            time.Time             `json:"created_at"`
	PublishedAt          *time.Time            `json:"published_at,omitempty"`
}
