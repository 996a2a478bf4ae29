package scoring

import (
	"fmt"
	"math"

	checklist "fortaudit/internal/checklist/models"
	session "fortaudit/internal/session/models"
)

// Grade strings. The critical-failure and section-failure grades take
// priority over any percentage band.
const (
	GradeCriticalFailure  = "Non-Compliant (Critical Failure)"
	GradeExcellent        = "Excellent"
	GradeGood             = "Good"
	GradeNeedsImprovement = "Needs Improvement"
	GradeNonCompliant     = "Non-Compliant"
)

// sectionFailureGrade formats the grade for N failed section thresholds.
func sectionFailureGrade(n int) string {
	return fmt.Sprintf("Non-Compliant (%d Section Failures)", n)
}

// Score computes the audit result for a template and response set.
//
// Per section, in template order: items marked NA or inapplicable (per
// IsApplicable) are skipped entirely; every other item adds its weight to the
// section denominator; an existing response adds its clamped score to the
// numerator while a missing response adds nothing (unanswered is treated as
// non-compliant). A Critical item whose response is non-compliant with a Red
// flag sets the session-wide critical failure. Sections scoring below their
// minimum pass threshold are recorded as section failures; a section with no
// scorable items counts as 0% and so fails any positive threshold.
//
// The only error is a structurally invalid template; the computation itself
// is total over any combination of applicable/NA/missing responses.
func Score(template *checklist.ChecklistTemplate, responses map[string]*session.AuditResponse) (*session.AuditResult, error) {
	if err := template.Validate(); err != nil {
		return nil, err
	}

	result := &session.AuditResult{
		SectionFailures: []string{},
		SectionResults:  make([]session.SectionResult, 0, len(template.Sections)),
	}

	var totalScore, totalMax float64
	for si := range template.Sections {
		sec := &template.Sections[si]

		var sectionScore, sectionMax float64
		for ii := range sec.Items {
			item := &sec.Items[ii]
			resp := responses[item.ID]
			if resp != nil && resp.IsNA {
				continue
			}
			if !IsApplicable(item, responses) {
				continue
			}

			sectionMax += item.Weight
			if resp != nil {
				sectionScore += clamp(resp.Score, 0, item.Weight)
				// Both fields must independently indicate failure; criticality
				// is never inferred from weight.
				if item.Criticality == checklist.CriticalityCritical &&
					resp.IsNonCompliant && resp.FlagLevel == session.FlagRed {
					result.CriticalFailure = true
				}
			}
		}

		totalScore += sectionScore
		totalMax += sectionMax

		sectionPercent := 0.0
		if sectionMax > 0 {
			sectionPercent = round1(sectionScore / sectionMax * 100)
		}
		passed := true
		if th := sec.MinimumPassThreshold; th != nil && sectionPercent < *th {
			passed = false
			result.SectionFailures = append(result.SectionFailures, sec.Title)
		}
		result.SectionResults = append(result.SectionResults, session.SectionResult{
			SectionID: sec.ID,
			Title:     sec.Title,
			Score:     sectionScore,
			Max:       sectionMax,
			Percent:   sectionPercent,
			Passed:    passed,
		})
	}

	result.TotalScore = totalScore
	result.TotalMax = totalMax
	if totalMax > 0 {
		result.OverallPercent = round1(totalScore / totalMax * 100)
	}
	result.Grade = grade(result)
	result.OverallResult = DeriveOverallResult(result)
	result.IntegrityHash = Stamp(result)
	return result, nil
}

// grade assigns the letter grade in priority order: critical failure, then
// section failures, then the percentage bands.
func grade(r *session.AuditResult) string {
	switch {
	case r.CriticalFailure:
		return GradeCriticalFailure
	case len(r.SectionFailures) > 0:
		return sectionFailureGrade(len(r.SectionFailures))
	case r.OverallPercent >= 90:
		return GradeExcellent
	case r.OverallPercent >= 75:
		return GradeGood
	case r.OverallPercent >= 60:
		return GradeNeedsImprovement
	default:
		return GradeNonCompliant
	}
}

// DeriveOverallResult maps a computed result onto the certification outcome
// consumed by the lifecycle and the public certificate renderer.
func DeriveOverallResult(r *session.AuditResult) session.OverallResult {
	if r.CriticalFailure || len(r.SectionFailures) > 0 {
		return session.ResultNonCompliant
	}
	if r.OverallPercent >= 75 {
		return session.ResultCertified
	}
	return session.ResultConditionallyApproved
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// round1 rounds to one decimal place. Percentages are rounded exactly once,
// here, so re-scoring stays bit-stable.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
