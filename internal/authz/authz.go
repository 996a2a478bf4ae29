// Package authz provides a role-table implementation of the lifecycle's
// Authorizer port. In deployments where a central access-control service
// exists it replaces this package; the lifecycle only sees the interface.
package authz

import (
	"fortaudit/internal/session/lifecycle"
	"fortaudit/internal/session/models"
)

// Roles understood by the default table.
const (
	RoleInspector = "inspector"
	RoleOperator  = "operator"
	RoleReviewer  = "reviewer"
	RoleAdmin     = "admin"
)

type edge struct {
	from, to models.AuditStatus
}

// RoleAuthorizer authorizes transitions from a static role table: field
// actors drive the filling phases, reviewers drive review decisions, admins
// drive everything.
type RoleAuthorizer struct {
	allowed map[edge]map[string]bool
}

func NewRoleAuthorizer() *RoleAuthorizer {
	fieldAndReviewer := map[string]bool{RoleInspector: true, RoleOperator: true, RoleReviewer: true}
	reviewerOnly := map[string]bool{RoleReviewer: true}
	return &RoleAuthorizer{
		allowed: map[edge]map[string]bool{
			{models.StatusPending, models.StatusInProgress}:      fieldAndReviewer,
			{models.StatusInProgress, models.StatusSubmitted}:    fieldAndReviewer,
			{models.StatusSubmitted, models.StatusReviewing}:     reviewerOnly,
			{models.StatusReviewing, models.StatusApproved}:      reviewerOnly,
			{models.StatusReviewing, models.StatusRejected}:      reviewerOnly,
			{models.StatusReviewing, models.StatusCAPARequired}:  reviewerOnly,
			{models.StatusCAPARequired, models.StatusInProgress}: fieldAndReviewer,
			{models.StatusCAPARequired, models.StatusReviewing}:  fieldAndReviewer,
		},
	}
}

func (a *RoleAuthorizer) CanTransition(actor lifecycle.Actor, from, to models.AuditStatus) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	roles, ok := a.allowed[edge{from, to}]
	if !ok {
		return false
	}
	return roles[actor.Role]
}

// AllowAll authorizes every transition. Used in tests and in deployments
// where authorization is fully enforced upstream of this service.
type AllowAll struct{}

func (AllowAll) CanTransition(lifecycle.Actor, models.AuditStatus, models.AuditStatus) bool {
	return true
}
