package verify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

// State YTD outlier thresholds. A value only counts as a spike when it
// exceeds the anchor by both the absolute floor and the multiplier, which
// keeps small legitimate jumps out of scope.
const (
	stateOutlierMinAbs     = money.Cents(25_000) // $250.00
	stateNeighborTolerance = money.Cents(100)    // $1.00
	stateSpikeMultiplier   = 4
)

// RepairStateOutliers scans per-state YTD series for isolated OCR spikes and
// anchors them back to their consistent neighbors. Runs before YTD
// verification so continuity checks see the repaired series.
func RepairStateOutliers(led *model.Ledger) []model.ConsistencyIssue {
	issues := []model.ConsistencyIssue{}

	states := make(map[string]bool)
	for _, row := range led.Rows {
		for _, code := range row.Snapshot.States() {
			states[code] = true
		}
	}

	for code := range states {
		key := model.StateField(code)

		// Rows where this state has a YTD value, in ledger order.
		var idx []int
		for i, row := range led.Rows {
			if pair := row.Snapshot.Pair(key); pair != nil && pair.YTD != nil {
				idx = append(idx, i)
			}
		}

		for pos, i := range idx {
			pair := led.Rows[i].Snapshot.Pair(key)
			current := pair.YTD.Amount

			var prevYTD, nextYTD *money.Cents
			if pos > 0 {
				v := led.Rows[idx[pos-1]].Snapshot.Pair(key).YTD.Amount
				prevYTD = &v
			}
			if pos+1 < len(idx) {
				v := led.Rows[idx[pos+1]].Snapshot.Pair(key).YTD.Amount
				nextYTD = &v
			}

			corrected, reason := stateOutlierCorrection(current, prevYTD, nextYTD, pair.ThisPeriod)
			if corrected == nil {
				continue
			}

			pair.YTD = pair.YTD.Healed(*corrected, string(model.IssueStateYTDOutlierCorrected))
			date := led.Rows[i].Snapshot.PayDate.Format("2006-01-02")
			issues = append(issues, model.ConsistencyIssue{
				Severity: model.SeverityWarning,
				Code:     model.IssueStateYTDOutlierCorrected,
				Message: fmt.Sprintf("%s state tax YTD on %s auto-corrected from %s to %s (%s)",
					code, date, current, *corrected, reason),
			})
			zap.L().Info("verify: state ytd outlier corrected",
				zap.String("filer", led.FilerID),
				zap.String("state", code),
				zap.String("pay_date", date),
				zap.String("from", current.String()),
				zap.String("to", corrected.String()),
				zap.String("reason", reason),
			)
		}
	}
	return issues
}

// stateOutlierCorrection decides whether current is a spike against its
// neighbors and returns the anchored value.
func stateOutlierCorrection(current money.Cents, prevYTD, nextYTD *money.Cents, thisPeriod *model.FieldValue) (*money.Cents, string) {
	spike := func(anchor money.Cents) bool {
		return current > anchor+stateOutlierMinAbs && current > anchor*stateSpikeMultiplier
	}

	switch {
	case prevYTD != nil && nextYTD != nil:
		if (*prevYTD - *nextYTD).Abs() > stateNeighborTolerance {
			return nil, ""
		}
		anchor := (*prevYTD + *nextYTD) / 2
		if spike(anchor) {
			return &anchor, "neighbor_consistency"
		}
	case prevYTD == nil && nextYTD != nil && thisPeriod != nil:
		if spike(*nextYTD) && thisPeriod.Amount <= *nextYTD+stateNeighborTolerance {
			v := thisPeriod.Amount
			return &v, "opening_entry_spike"
		}
	case prevYTD != nil && nextYTD == nil && thisPeriod != nil:
		if spike(*prevYTD) && (thisPeriod.Amount-*prevYTD).Abs() <= stateNeighborTolerance {
			return prevYTD, "closing_entry_spike"
		}
	}
	return nil, ""
}
