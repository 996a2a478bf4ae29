package models

import (
	"fmt"

	dErrors "fortaudit/pkg/domain-errors"
)

// Validate checks the structural invariants scoring depends on: unique item
// IDs across the template, non-negative weights, resolvable conditional
// triggers, and valid enum values. A template failing validation is rejected
// before scoring and must be fixed upstream.
func (t *ChecklistTemplate) Validate() error {
	if len(t.Sections) == 0 {
		return dErrors.New(dErrors.CodeValidation, "template has no sections")
	}
	if !t.Commodity.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid commodity")
	}
	for _, m := range t.FortificationMethods {
		if !m.IsValid() {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid fortification method %q", m))
		}
	}

	seen := make(map[string]bool)
	sectionIDs := make(map[string]bool)
	for _, section := range t.Sections {
		if section.ID == "" {
			return dErrors.New(dErrors.CodeValidation, "section id cannot be empty")
		}
		if sectionIDs[section.ID] {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate section id %q", section.ID))
		}
		sectionIDs[section.ID] = true
		if th := section.MinimumPassThreshold; th != nil && (*th < 0 || *th > 100) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("section %q threshold out of range", section.ID))
		}
		for _, item := range section.Items {
			if item.ID == "" {
				return dErrors.New(dErrors.CodeValidation, "item id cannot be empty")
			}
			if seen[item.ID] {
				return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate item id %q", item.ID))
			}
			seen[item.ID] = true
			if item.Weight < 0 {
				return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %q has negative weight", item.ID))
			}
			if !item.ResponseType.IsValid() {
				return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %q has invalid response type", item.ID))
			}
			if !item.Criticality.IsValid() {
				return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %q has invalid criticality", item.ID))
			}
			for _, k := range item.RequiredEvidence {
				if !k.IsValid() {
					return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %q has invalid evidence kind", item.ID))
				}
			}
			if c := item.Conditional; c != nil {
				if !c.Action.IsValid() {
					return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %q has invalid conditional action", item.ID))
				}
				if c.TriggerItemID == "" {
					return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %q has empty trigger item id", item.ID))
				}
				if c.TriggerItemID == item.ID {
					return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %q triggers on itself", item.ID))
				}
			}
		}
	}

	// Second pass: triggers must resolve once the full item set is known.
	for _, section := range t.Sections {
		for _, item := range section.Items {
			if item.Conditional != nil && !seen[item.Conditional.TriggerItemID] {
				return dErrors.New(dErrors.CodeValidation,
					fmt.Sprintf("item %q references unknown trigger item %q", item.ID, item.Conditional.TriggerItemID))
			}
		}
	}

	return nil
}

// Index is a flat arena over the template tree: item lookups by ID are O(1)
// while section and item order is preserved for display and scoring.
type Index struct {
	Items    map[string]*ChecklistItem
	ItemIDs  []string
	Sections []*ChecklistSection
}

// NewIndex builds the item arena for a template. The template must already
// have passed Validate; duplicate IDs would silently overwrite here.
func NewIndex(t *ChecklistTemplate) *Index {
	idx := &Index{
		Items:    make(map[string]*ChecklistItem),
		Sections: make([]*ChecklistSection, 0, len(t.Sections)),
	}
	for si := range t.Sections {
		section := &t.Sections[si]
		idx.Sections = append(idx.Sections, section)
		for ii := range section.Items {
			item := &section.Items[ii]
			idx.Items[item.ID] = item
			idx.ItemIDs = append(idx.ItemIDs, item.ID)
		}
	}
	return idx
}
