package models

import (
	"time"

	dErrors "fortaudit/pkg/domain-errors"
)

// AuditType distinguishes who runs the audit: mill staff (self-audit,
// operator) or a regulator (official inspection and spot check, inspector).
type AuditType string

const (
	TypeSelfAudit          AuditType = "self_audit"
	TypeOfficialInspection AuditType = "official_inspection"
	TypeSpotCheck          AuditType = "spot_check"
)

func (t AuditType) IsValid() bool {
	switch t {
	case TypeSelfAudit, TypeOfficialInspection, TypeSpotCheck:
		return true
	}
	return false
}

// FlagLevel is the derived severity color on a single response. Red always
// implies non-compliance.
type FlagLevel string

const (
	FlagRed   FlagLevel = "red"
	FlagAmber FlagLevel = "amber"
	FlagGreen FlagLevel = "green"
)

func (f FlagLevel) IsValid() bool {
	return f == FlagRed || f == FlagAmber || f == FlagGreen
}

// AuditResponse is one inspector answer, keyed by item ID within a session.
// A response with IsNA set contributes to neither side of any score.
type AuditResponse struct {
	ItemID         string    `json:"item_id"`
	Value          any       `json:"value"`
	Notes          string    `json:"notes,omitempty"`
	EvidenceURLs   []string  `json:"evidence_urls,omitempty"`
	IsNonCompliant bool      `json:"is_non_compliant"`
	IsNA           bool      `json:"is_na"`
	FlagLevel      FlagLevel `json:"flag_level,omitempty"`
	Score          float64   `json:"score"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// Annotation is a reviewer note on a session or a specific item. Annotations
// with RequiresResponse block approval until resolved.
type Annotation struct {
	ID               string    `json:"id"`
	ItemID           string    `json:"item_id,omitempty"`
	AuthorID         string    `json:"author_id"`
	Text             string    `json:"text"`
	RequiresResponse bool      `json:"requires_response"`
	Resolved         bool      `json:"resolved"`
	CreatedAt        time.Time `json:"created_at"`
}

// EvidenceFile is an uploaded attachment. Corrective marks evidence attached
// while the session was in CAPA Required; the CAPA exits are gated on it.
type EvidenceFile struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"item_id,omitempty"`
	Kind       string    `json:"kind"`
	URL        string    `json:"url"`
	UploadedBy string    `json:"uploaded_by"`
	Corrective bool      `json:"corrective"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// SectionResult is the scored outcome of one template section.
type SectionResult struct {
	SectionID string  `json:"section_id"`
	Title     string  `json:"title"`
	Score     float64 `json:"score"`
	Max       float64 `json:"max"`
	Percent   float64 `json:"percent"`
	Passed    bool    `json:"passed"`
}

// OverallResult is the certification outcome derived from an AuditResult.
type OverallResult string

const (
	ResultCertified             OverallResult = "Certified"
	ResultConditionallyApproved OverallResult = "Conditionally Approved"
	ResultNonCompliant          OverallResult = "Non-Compliant"
)

// AuditResult is the deterministic output of the scoring engine. Identical
// (template, responses) inputs always produce an identical value, including
// the integrity hash; it carries no timestamps for that reason.
type AuditResult struct {
	TotalScore      float64         `json:"total_score"`
	TotalMax        float64         `json:"total_max"`
	OverallPercent  float64         `json:"overall_percent"`
	CriticalFailure bool            `json:"critical_failure"`
	SectionFailures []string        `json:"section_failures"`
	SectionResults  []SectionResult `json:"section_results"`
	Grade           string          `json:"grade"`
	OverallResult   OverallResult   `json:"overall_result"`
	IntegrityHash   string          `json:"integrity_hash"`
}

// AuditSession is the mutable unit of work. It exclusively owns its response
// map; the template is referenced by ID, never copied or mutated.
type AuditSession struct {
	ID            string                    `json:"id"`
	TemplateID    string                    `json:"template_id"`
	MillID        string                    `json:"mill_id"`
	Type          AuditType                 `json:"type"`
	InspectorID   string                    `json:"inspector_id,omitempty"`
	OperatorID    string                    `json:"operator_id,omitempty"`
	Status        AuditStatus               `json:"status"`
	Responses     map[string]*AuditResponse `json:"responses"`
	Annotations   []Annotation              `json:"annotations,omitempty"`
	Evidence      []EvidenceFile            `json:"evidence,omitempty"`
	Result        *AuditResult              `json:"result,omitempty"`
	Location      *GeoPoint                 `json:"location,omitempty"`
	ReviewedBy    string                    `json:"reviewed_by,omitempty"`
	StartDate     time.Time                 `json:"start_date"`
	CompletedDate *time.Time                `json:"completed_date,omitempty"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// GeoPoint is an optional capture location for field inspections.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate enforces the inspector-xor-operator invariant for the session
// type: official inspections and spot checks carry an inspector, self-audits
// an operator, never both.
func (s *AuditSession) Validate() error {
	if !s.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid audit type")
	}
	if s.TemplateID == "" {
		return dErrors.New(dErrors.CodeValidation, "template id is required")
	}
	if s.MillID == "" {
		return dErrors.New(dErrors.CodeValidation, "mill id is required")
	}
	switch s.Type {
	case TypeSelfAudit:
		if s.OperatorID == "" || s.InspectorID != "" {
			return dErrors.New(dErrors.CodeValidation, "self-audit requires an operator and no inspector")
		}
	case TypeOfficialInspection, TypeSpotCheck:
		if s.InspectorID == "" || s.OperatorID != "" {
			return dErrors.New(dErrors.CodeValidation, "inspection requires an inspector and no operator")
		}
	}
	return nil
}

// AssigneeID returns the inspector or operator owning the session.
func (s *AuditSession) AssigneeID() string {
	if s.InspectorID != "" {
		return s.InspectorID
	}
	return s.OperatorID
}

// HasCorrectiveEvidence reports whether any evidence was attached during a
// CAPA Required phase.
func (s *AuditSession) HasCorrectiveEvidence() bool {
	for _, e := range s.Evidence {
		if e.Corrective {
			return true
		}
	}
	return false
}

// HasBlockingAnnotations reports whether an unresolved annotation requiring
// a response remains; such annotations block approval.
func (s *AuditSession) HasBlockingAnnotations() bool {
	for _, a := range s.Annotations {
		if a.RequiresResponse && !a.Resolved {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the session so guard evaluation and scoring
// can work on a snapshot without racing writers.
func (s *AuditSession) Clone() *AuditSession {
	cp := *s
	cp.Responses = make(map[string]*AuditResponse, len(s.Responses))
	for k, v := range s.Responses {
		rv := *v
		if v.EvidenceURLs != nil {
			rv.EvidenceURLs = append([]string(nil), v.EvidenceURLs...)
		}
		cp.Responses[k] = &rv
	}
	cp.Annotations = append([]Annotation(nil), s.Annotations...)
	cp.Evidence = append([]EvidenceFile(nil), s.Evidence...)
	if s.Result != nil {
		r := *s.Result
		r.SectionFailures = append([]string(nil), s.Result.SectionFailures...)
		r.SectionResults = append([]SectionResult(nil), s.Result.SectionResults...)
		cp.Result = &r
	}
	if s.Location != nil {
		loc := *s.Location
		cp.Location = &loc
	}
	if s.CompletedDate != nil {
		d := *s.CompletedDate
		cp.CompletedDate = &d
	}
	return &cp
}
