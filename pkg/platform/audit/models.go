// Package audit captures the tamper-evident trail of session lifecycle
// events. Events are transport-agnostic so sinks (memory, Kafka) can fan out.
package audit

import "time"

// Action identifies what happened to the audited entity.
type Action string

const (
	ActionSessionCreated    Action = "session_created"
	ActionTransition        Action = "session_transition"
	ActionTransitionDenied  Action = "session_transition_denied"
	ActionTemplatePublished Action = "template_published"
	ActionTemplateArchived  Action = "template_archived"
	ActionRestamp           Action = "session_restamped"
)

// Event is one audit trail entry. FromStatus/ToStatus are set for transition
// events; Grade and IntegrityHash snapshot the scoring outcome that the
// transition was decided on.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	Action        Action    `json:"action"`
	SessionID     string    `json:"session_id,omitempty"`
	TemplateID    string    `json:"template_id,omitempty"`
	MillID        string    `json:"mill_id,omitempty"`
	ActorID       string    `json:"actor_id,omitempty"`
	ActorRole     string    `json:"actor_role,omitempty"`
	FromStatus    string    `json:"from_status,omitempty"`
	ToStatus      string    `json:"to_status,omitempty"`
	Grade         string    `json:"grade,omitempty"`
	IntegrityHash string    `json:"integrity_hash,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}
