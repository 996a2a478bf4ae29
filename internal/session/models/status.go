package models

import dErrors "fortaudit/pkg/domain-errors"

// AuditStatus is the lifecycle state of an audit session.
type AuditStatus string

const (
	StatusPending      AuditStatus = "pending"
	StatusInProgress   AuditStatus = "in_progress"
	StatusSubmitted    AuditStatus = "submitted"
	StatusReviewing    AuditStatus = "reviewing"
	StatusApproved     AuditStatus = "approved"
	StatusRejected     AuditStatus = "rejected"
	StatusCAPARequired AuditStatus = "capa_required"
)

var validStatuses = map[AuditStatus]bool{
	StatusPending:      true,
	StatusInProgress:   true,
	StatusSubmitted:    true,
	StatusReviewing:    true,
	StatusApproved:     true,
	StatusRejected:     true,
	StatusCAPARequired: true,
}

// ParseAuditStatus constructs an AuditStatus from external input.
func ParseAuditStatus(s string) (AuditStatus, error) {
	st := AuditStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid audit status")
	}
	return st, nil
}

func (s AuditStatus) IsValid() bool {
	return validStatuses[s]
}

func (s AuditStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the session can no longer change state.
func (s AuditStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}
