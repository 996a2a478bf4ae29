package models

import dErrors "fortaudit/pkg/domain-errors"

// Commodity identifies the fortified commodity a template audits.
type Commodity string

const (
	CommodityMaizeFlour Commodity = "maize_flour"
	CommodityWheatFlour Commodity = "wheat_flour"
	CommodityRice       Commodity = "rice"
	CommoditySalt       Commodity = "salt"
	CommodityEdibleOil  Commodity = "edible_oil"
	CommoditySugar      Commodity = "sugar"
)

var validCommodities = map[Commodity]bool{
	CommodityMaizeFlour: true,
	CommodityWheatFlour: true,
	CommodityRice:       true,
	CommoditySalt:       true,
	CommodityEdibleOil:  true,
	CommoditySugar:      true,
}

// ParseCommodity constructs a Commodity from external input.
func ParseCommodity(s string) (Commodity, error) {
	c := Commodity(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid commodity")
	}
	return c, nil
}

func (c Commodity) IsValid() bool {
	return validCommodities[c]
}

func (c Commodity) String() string {
	return string(c)
}

// FortificationMethod is how the mill introduces the fortificant.
type FortificationMethod string

const (
	MethodDosifier    FortificationMethod = "dosifier"
	MethodBatchPremix FortificationMethod = "batch_premix"
	MethodSpray       FortificationMethod = "spray"
	MethodHandMix     FortificationMethod = "hand_mix"
)

func (m FortificationMethod) IsValid() bool {
	switch m {
	case MethodDosifier, MethodBatchPremix, MethodSpray, MethodHandMix:
		return true
	}
	return false
}

// ResponseType is the kind of answer a checklist item expects.
type ResponseType string

const (
	ResponseYesNo          ResponseType = "yes_no"
	ResponseNumeric        ResponseType = "numeric"
	ResponseDropdown       ResponseType = "dropdown"
	ResponseText           ResponseType = "text"
	ResponsePhoto          ResponseType = "photo"
	ResponseDocument       ResponseType = "document"
	ResponseMultipleChoice ResponseType = "multiple_choice"
)

func (t ResponseType) IsValid() bool {
	switch t {
	case ResponseYesNo, ResponseNumeric, ResponseDropdown, ResponseText,
		ResponsePhoto, ResponseDocument, ResponseMultipleChoice:
		return true
	}
	return false
}

// Criticality is the severity tier of a checklist item. A Critical item
// failing with a Red flag fails the whole audit regardless of score.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityMajor    Criticality = "major"
	CriticalityMinor    Criticality = "minor"
)

func (c Criticality) IsValid() bool {
	switch c {
	case CriticalityCritical, CriticalityMajor, CriticalityMinor:
		return true
	}
	return false
}

// ConditionalAction controls what a satisfied trigger does to an item.
// Only "require" affects scoring applicability; "show" is presentation-only.
type ConditionalAction string

const (
	ActionShow    ConditionalAction = "show"
	ActionRequire ConditionalAction = "require"
)

func (a ConditionalAction) IsValid() bool {
	return a == ActionShow || a == ActionRequire
}

// EvidenceKind enumerates the attachments an item may require.
type EvidenceKind string

const (
	EvidencePhoto    EvidenceKind = "photo"
	EvidenceDocument EvidenceKind = "document"
)

func (k EvidenceKind) IsValid() bool {
	return k == EvidencePhoto || k == EvidenceDocument
}

// TemplateStatus is the template lifecycle state. Published templates are
// immutable; Archived templates may not be attached to new sessions.
type TemplateStatus string

const (
	TemplateDraft     TemplateStatus = "draft"
	TemplatePublished TemplateStatus = "published"
	TemplateArchived  TemplateStatus = "archived"
)

func (s TemplateStatus) IsValid() bool {
	switch s {
	case TemplateDraft, TemplatePublished, TemplateArchived:
		return true
	}
	return false
}
