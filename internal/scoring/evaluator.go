// Package scoring is the compliance audit core: conditional applicability,
// the weighted scoring engine, and the integrity stamp. Everything here is
// pure domain logic - no I/O, no side effects - so identical inputs always
// produce identical results and callers need no locking.
package scoring

import (
	"fmt"
	"strconv"
	"strings"

	checklist "fortaudit/internal/checklist/models"
	session "fortaudit/internal/session/models"
)

// IsApplicable decides whether an item counts toward scoring given the
// current response set.
//
// Rules:
//   - no conditional: applicable
//   - action "show": applicable (visibility is a presentation concern)
//   - action "require": applicable iff the trigger item's response equals
//     the trigger value; an unanswered trigger means not applicable
func IsApplicable(item *checklist.ChecklistItem, responses map[string]*session.AuditResponse) bool {
	cond := item.Conditional
	if cond == nil {
		return true
	}
	if cond.Action != checklist.ActionRequire {
		return true
	}
	trigger, ok := responses[cond.TriggerItemID]
	if !ok || trigger == nil {
		return false
	}
	return normalizeValue(trigger.Value) == normalizeValue(cond.TriggerValue)
}

// normalizeValue folds booleans, numbers, and their string spellings into a
// canonical form so `true`, "true", and "TRUE" compare equal, as do 5,
// 5.0, and "5". Anything else compares as its trimmed string form.
func normalizeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case int:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case int64:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case string:
		s := strings.TrimSpace(val)
		switch strings.ToLower(s) {
		case "true":
			return "true"
		case "false":
			return "false"
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return s
	default:
		return fmt.Sprintf("%v", val)
	}
}
