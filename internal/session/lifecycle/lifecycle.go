// Package lifecycle owns the audit session state machine. The transition
// table is data, not branching code, so each guard is unit-testable apart
// from the request-handling glue. The machine never performs I/O: templates
// and fresh scoring results are materialized by the caller before an attempt.
package lifecycle

import (
	"fmt"
	"time"

	checklist "fortaudit/internal/checklist/models"
	"fortaudit/internal/scoring"
	"fortaudit/internal/session/models"
	dErrors "fortaudit/pkg/domain-errors"
)

// Actor identifies who is attempting a transition. Authorization itself is
// an external concern consumed through the Authorizer port.
type Actor struct {
	ID   string
	Role string
}

// Authorizer is the external access-control collaborator. It decides who may
// drive a given transition; the machine decides whether the transition is
// legal at all.
type Authorizer interface {
	CanTransition(actor Actor, from, to models.AuditStatus) bool
}

// InvalidTransitionError reports an illegal transition attempt. The session
// is never mutated when this is returned.
type InvalidTransitionError struct {
	From   models.AuditStatus
	To     models.AuditStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// Input carries everything a transition attempt needs, fully materialized:
// no guard may block on network or disk.
type Input struct {
	Session  *models.AuditSession
	Template *checklist.ChecklistTemplate
	// Result is the freshly computed scoring result. Required on edges for
	// which RequiresRescore is true; the cached session result is never
	// trusted there.
	Result *models.AuditResult
	Actor  Actor
}

// result returns the freshest scoring result available to guards: the
// recomputed one when the edge demanded a re-score, otherwise the result
// cached when the session last entered review.
func (in Input) result() *models.AuditResult {
	if in.Result != nil {
		return in.Result
	}
	return in.Session.Result
}

type edge struct {
	from, to models.AuditStatus
}

// transitions is the allowed-transition table from the session lifecycle:
// Pending → In Progress → Submitted → Reviewing → {Approved | Rejected |
// CAPA Required}, with the CAPA loop back to In Progress or forward to
// Reviewing.
var transitions = map[models.AuditStatus][]models.AuditStatus{
	models.StatusPending:      {models.StatusInProgress},
	models.StatusInProgress:   {models.StatusSubmitted},
	models.StatusSubmitted:    {models.StatusReviewing},
	models.StatusReviewing:    {models.StatusApproved, models.StatusRejected, models.StatusCAPARequired},
	models.StatusCAPARequired: {models.StatusInProgress, models.StatusReviewing},
}

// guards holds the per-edge guard conditions. Edges absent from this map
// have no condition beyond the table itself and authorization.
var guards = map[edge]func(Input) error{
	{models.StatusPending, models.StatusInProgress}: func(in Input) error {
		if in.Session.AssigneeID() == "" {
			return fmt.Errorf("session has no assigned inspector or operator")
		}
		return nil
	},
	{models.StatusInProgress, models.StatusSubmitted}: guardAllApplicableAnswered,
	{models.StatusReviewing, models.StatusApproved}: func(in Input) error {
		result := in.result()
		if result == nil {
			return fmt.Errorf("no scoring result available")
		}
		if scoring.DeriveOverallResult(result) == models.ResultNonCompliant {
			return fmt.Errorf("overall result is non-compliant")
		}
		if in.Session.HasBlockingAnnotations() {
			return fmt.Errorf("unresolved annotations require a response")
		}
		return nil
	},
	{models.StatusReviewing, models.StatusCAPARequired}: func(in Input) error {
		result := in.result()
		if result == nil {
			return fmt.Errorf("no scoring result available")
		}
		if !result.CriticalFailure && len(result.SectionFailures) == 0 {
			return fmt.Errorf("corrective action requires a critical or section failure")
		}
		return nil
	},
	{models.StatusCAPARequired, models.StatusInProgress}: guardCorrectiveEvidence,
	{models.StatusCAPARequired, models.StatusReviewing}:  guardCorrectiveEvidence,
}

// guardAllApplicableAnswered requires every applicable item to carry a
// response or an explicit NA before submission. Applicability is evaluated
// against the live response set, so an item whose require-trigger is
// unanswered is not demanded.
func guardAllApplicableAnswered(in Input) error {
	idx := checklist.NewIndex(in.Template)
	missing := 0
	for _, id := range idx.ItemIDs {
		item := idx.Items[id]
		if !scoring.IsApplicable(item, in.Session.Responses) {
			continue
		}
		resp := in.Session.Responses[id]
		if resp == nil || (!resp.IsNA && resp.Value == nil) {
			missing++
		}
	}
	if missing > 0 {
		return fmt.Errorf("%d applicable items are unanswered", missing)
	}
	return nil
}

func guardCorrectiveEvidence(in Input) error {
	if !in.Session.HasCorrectiveEvidence() {
		return fmt.Errorf("no corrective evidence attached")
	}
	return nil
}

// RequiresRescore reports whether an edge must re-invoke the scoring engine
// before the transition is applied: every entry into Submitted or Reviewing,
// and every exit from CAPA Required.
func RequiresRescore(from, to models.AuditStatus) bool {
	return to == models.StatusSubmitted || to == models.StatusReviewing || from == models.StatusCAPARequired
}

// Machine validates and applies session transitions.
type Machine struct {
	authz Authorizer
}

func New(authz Authorizer) *Machine {
	return &Machine{authz: authz}
}

// Allowed returns the table-legal targets from the session's current state,
// without evaluating guards. External authorization layers consume this to
// build their permission checks.
func Allowed(from models.AuditStatus) []models.AuditStatus {
	return append([]models.AuditStatus(nil), transitions[from]...)
}

// Attempt validates the transition and returns an updated deep copy of the
// session on success. The input session is never mutated; illegal attempts
// return *InvalidTransitionError wrapped with the invalid_state code, and
// authorization denials return a forbidden-coded error.
func (m *Machine) Attempt(in Input, target models.AuditStatus, now time.Time) (*models.AuditSession, error) {
	from := in.Session.Status

	if !edgeAllowed(from, target) {
		return nil, invalidTransition(from, target, "")
	}
	if m.authz != nil && !m.authz.CanTransition(in.Actor, from, target) {
		return nil, dErrors.New(dErrors.CodeForbidden,
			fmt.Sprintf("actor %s may not transition %s to %s", in.Actor.ID, from, target))
	}
	if RequiresRescore(from, target) && in.Result == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "transition requires a fresh scoring result")
	}
	if guard, ok := guards[edge{from, target}]; ok {
		if err := guard(in); err != nil {
			return nil, invalidTransition(from, target, err.Error())
		}
	}

	next := in.Session.Clone()
	next.Status = target
	next.UpdatedAt = now
	if in.Result != nil {
		next.Result = in.Result
	}
	if target.IsTerminal() {
		completed := now
		next.CompletedDate = &completed
	}
	switch target {
	case models.StatusApproved, models.StatusRejected, models.StatusCAPARequired:
		next.ReviewedBy = in.Actor.ID
	}
	return next, nil
}

func edgeAllowed(from, to models.AuditStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func invalidTransition(from, to models.AuditStatus, reason string) error {
	ite := &InvalidTransitionError{From: from, To: to, Reason: reason}
	return dErrors.Wrap(ite, dErrors.CodeInvalidState, "invalid transition")
}
