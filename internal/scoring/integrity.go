package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	session "fortaudit/internal/session/models"
)

// Version tags the scoring algorithm. Any change to scoring semantics must
// bump this so stored stamps from older algorithm versions are recognizably
// stale rather than silently mismatched.
const Version = "v1"

// Stamp produces a reproducible digest over the scoring inputs that matter
// for tamper detection: total score, total max, critical failure, and the
// section failure list, serialized in that fixed order. The digest detects
// recomputation drift and display tampering; it is not a security boundary.
func Stamp(r *session.AuditResult) string {
	payload := canonicalPayload(r)
	sum := sha256.Sum256([]byte(payload))
	return Version + "-" + hex.EncodeToString(sum[:])[:16]
}

// canonicalPayload serializes the four stamped fields in a fixed order with
// canonical number formatting. Section failure order follows template order,
// which the engine guarantees.
func canonicalPayload(r *session.AuditResult) string {
	var b strings.Builder
	b.WriteString("totalScore=")
	b.WriteString(strconv.FormatFloat(r.TotalScore, 'f', -1, 64))
	b.WriteString("|totalMax=")
	b.WriteString(strconv.FormatFloat(r.TotalMax, 'f', -1, 64))
	b.WriteString("|criticalFailure=")
	b.WriteString(strconv.FormatBool(r.CriticalFailure))
	b.WriteString("|sectionFailures=")
	b.WriteString(strings.Join(r.SectionFailures, ";"))
	return b.String()
}

// IntegrityWarning reports a stored stamp that no longer matches
// recomputation. It is surfaced to reviewers, never fatal: the recomputed
// result is always authoritative over a stored hash.
type IntegrityWarning struct {
	SessionID string `json:"session_id"`
	Stored    string `json:"stored"`
	Computed  string `json:"computed"`
	Stale     bool   `json:"stale"` // stored stamp predates the current algorithm version
}

func (w *IntegrityWarning) String() string {
	if w.Stale {
		return fmt.Sprintf("integrity stamp %s predates algorithm version %s", w.Stored, Version)
	}
	return fmt.Sprintf("integrity stamp mismatch: stored %s, computed %s", w.Stored, w.Computed)
}

// Verify compares a stored stamp against a freshly computed result. A nil
// return means the stamp matches. Empty stored stamps verify clean so
// sessions scored before stamping was introduced do not warn forever.
func Verify(sessionID, stored string, r *session.AuditResult) *IntegrityWarning {
	if stored == "" {
		return nil
	}
	computed := Stamp(r)
	if stored == computed {
		return nil
	}
	return &IntegrityWarning{
		SessionID: sessionID,
		Stored:    stored,
		Computed:  computed,
		Stale:     !strings.HasPrefix(stored, Version+"-"),
	}
}
