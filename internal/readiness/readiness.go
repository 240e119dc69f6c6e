// Package readiness derives the filing verdict: an authenticity score over
// the accumulated findings and a ready-to-file gate.
package readiness

import (
	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
)

// Score weights. Criticals dominate; warnings are capped so a noisy but
// benign year cannot sink the score on volume alone.
const (
	criticalWeight       = 35
	warningWeight        = 3
	warningCap           = 20
	mismatchWeight       = 20
	missingPaystubWeight = 12
	missingW2Weight      = 4
)

// Verdict buckets.
const (
	highConfidenceFloor = 80
	needsReviewFloor    = 50
)

// Disclaimer accompanies every assessment.
const Disclaimer = "Heuristic score derived from OCR reconciliation. Not tax advice; review flagged items before filing."

// Assess scores the filer's findings and decides the filing gate. The gate is
// stricter than the score: any critical issue, or any non-informational
// comparison that is not a match, blocks filing regardless of the numeric
// verdict. Absence of a W-2 leaves the comparison tally empty and is not
// itself a block.
func Assess(issues []model.ConsistencyIssue, comparisons map[model.ComparisonStatus]int) (model.AuthenticityAssessment, bool) {
	critical, warning := model.CountBySeverity(issues)
	if warning > warningCap {
		warning = warningCap
	}
	mismatch := comparisons[model.CompareMismatch]
	missingPaystub := comparisons[model.CompareMissingPaystub]
	missingW2 := comparisons[model.CompareMissingW2]

	score := 100 -
		critical*criticalWeight -
		warning*warningWeight -
		mismatch*mismatchWeight -
		missingPaystub*missingPaystubWeight -
		missingW2*missingW2Weight
	if score < 0 {
		score = 0
	}

	verdict := model.VerdictLikelyInaccurate
	switch {
	case score >= highConfidenceFloor:
		verdict = model.VerdictHighConfidence
	case score >= needsReviewFloor:
		verdict = model.VerdictNeedsReview
	}

	ready := critical == 0 && mismatch == 0 && missingPaystub == 0 && missingW2 == 0
	zap.L().Info("readiness: assessed",
		zap.Int("score", score),
		zap.String("verdict", string(verdict)),
		zap.Bool("ready_to_file", ready),
	)
	return model.AuthenticityAssessment{
		Score:      score,
		Verdict:    verdict,
		Disclaimer: Disclaimer,
	}, ready
}
