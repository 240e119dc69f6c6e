// Package verify checks parsed year-to-date values against continuity and
// auto-heals the OCR corruption patterns that continuity can prove.
package verify

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

// DefaultLargeDeviation escalates an unexplained YTD divergence from warning
// to critical.
const DefaultLargeDeviation = money.Cents(100_000) // $1,000.00

// Options tunes verification.
type Options struct {
	// Tolerance is the inclusive cent tolerance for all YTD checks.
	Tolerance money.Cents
	// LargeDeviation escalates mismatches above it to critical severity.
	// Zero means DefaultLargeDeviation.
	LargeDeviation money.Cents
}

func (o Options) largeDeviation() money.Cents {
	if o.LargeDeviation > 0 {
		return o.LargeDeviation
	}
	return DefaultLargeDeviation
}

// Run verifies every ledger row against YTD continuity, healing where the
// corruption pattern is provable and recording a verification status for
// every row and field. Healed rows keep their pre-heal amounts through
// FieldValue lineage; unexplained divergence is reported, never corrected.
func Run(led *model.Ledger, opts Options) []model.ConsistencyIssue {
	issues := []model.ConsistencyIssue{}
	log := zap.L().With(zap.String("filer", led.FilerID))

	for _, key := range led.FieldKeys() {
		for i, row := range led.Rows {
			if row.Verification == nil {
				row.Verification = make(map[model.FieldKey]model.FieldVerification)
			}
			var prev *model.LedgerRow
			if i > 0 {
				prev = led.Rows[i-1]
			}
			verification, issue := verifyField(row, prev, key, opts, log)
			row.Verification[key] = verification
			if issue != nil {
				issues = append(issues, *issue)
			}
		}
	}
	return issues
}

func verifyField(row, prev *model.LedgerRow, key model.FieldKey, opts Options, log *zap.Logger) (model.FieldVerification, *model.ConsistencyIssue) {
	pair := row.Snapshot.Pair(key)
	if pair == nil || pair.YTD == nil {
		return model.FieldVerification{Status: model.StatusNotEvaluated, Note: "no ytd value"}, nil
	}
	if prev == nil {
		// Opening row: nothing to reconcile against.
		return model.FieldVerification{Status: model.StatusVerified, Note: "opening period"}, nil
	}

	prevPair := prev.Snapshot.Pair(key)
	if prevPair == nil || prevPair.YTD == nil {
		return model.FieldVerification{Status: model.StatusNotEvaluated, Note: "no prior ytd value"}, nil
	}

	parsed := pair.YTD.Amount
	prevYTD := prevPair.YTD.Amount
	date := row.Snapshot.PayDate.Format("2006-01-02")

	// Zero-activity period: a YTD-only figure matching the prior YTD is
	// evidence of an unpaid period, not an anomaly. Gated on continuity
	// with both neighbors nonzero.
	if pair.ThisPeriod == nil || pair.ThisPeriod.Amount == 0 {
		if parsed > 0 && prevYTD > 0 && (parsed-prevYTD).Abs() <= opts.Tolerance {
			return model.FieldVerification{
				Status: model.StatusPromotedZeroPeriod,
				Note:   fmt.Sprintf("ytd %s carried through zero-activity period", parsed),
			}, nil
		}
		if pair.ThisPeriod == nil {
			return model.FieldVerification{Status: model.StatusNotEvaluated, Note: "no this-period value"}, nil
		}
	}

	thisPeriod := pair.ThisPeriod.Amount
	calc := prevYTD + thisPeriod
	diff := (calc - parsed).Abs()

	if diff <= opts.Tolerance {
		return model.FieldVerification{Status: model.StatusVerified}, nil
	}

	// Digit truncation: the parsed cents are a strict prefix or suffix of
	// the calculated cents. Continuity proves the full figure, so heal.
	if parsed > 0 && parsed < calc && digitTruncated(parsed, calc) {
		pair.YTD = pair.YTD.Healed(calc, string(model.StatusTruncationHealed))
		log.Info("verify: ytd truncation healed",
			zap.String("field", string(key)),
			zap.String("pay_date", date),
			zap.String("parsed", parsed.String()),
			zap.String("healed", calc.String()),
		)
		return model.FieldVerification{
			Status: model.StatusTruncationHealed,
			Note:   fmt.Sprintf("parsed %s healed to calculated %s", parsed, calc),
		}, &model.ConsistencyIssue{
			Severity: model.SeverityWarning,
			Code:     model.IssueYTDMismatch,
			Message:  fmt.Sprintf("%s YTD on %s auto-healed from %s to %s (digit truncation)", key, date, parsed, calc),
		}
	}

	// Cumulative swap: the extractor read the YTD column into this-period.
	// The continuity delta is the real per-period figure.
	delta := parsed - prevYTD
	if delta >= 0 && (thisPeriod-parsed).Abs() <= opts.Tolerance && (delta-thisPeriod).Abs() > opts.Tolerance {
		pair.ThisPeriod = pair.ThisPeriod.Healed(delta, string(model.StatusThisPeriodRepaired))
		log.Info("verify: this-period repaired from ytd continuity",
			zap.String("field", string(key)),
			zap.String("pay_date", date),
			zap.String("parsed", thisPeriod.String()),
			zap.String("repaired", delta.String()),
		)
		return model.FieldVerification{
			Status: model.StatusThisPeriodRepaired,
			Note:   fmt.Sprintf("this-period %s repaired to ytd delta %s", thisPeriod, delta),
		}, &model.ConsistencyIssue{
			Severity: model.SeverityWarning,
			Code:     model.IssueThisPeriodDelta,
			Message:  fmt.Sprintf("%s this-period on %s auto-repaired from %s to %s (cumulative figure)", key, date, thisPeriod, delta),
		}
	}

	severity := model.SeverityWarning
	if diff > opts.largeDeviation() {
		severity = model.SeverityCritical
	}
	return model.FieldVerification{
			Status: model.StatusYTDMismatch,
			Note:   fmt.Sprintf("parsed %s vs calculated %s", parsed, calc),
		}, &model.ConsistencyIssue{
			Severity: severity,
			Code:     model.IssueYTDMismatch,
			Message:  fmt.Sprintf("%s on %s differs from calculated YTD (%s vs %s)", key, date, parsed, calc),
		}
}

// digitTruncated reports whether the cent digits of parsed form a strict
// prefix or suffix of the cent digits of calc. Catches a dropped leading or
// trailing digit from OCR.
func digitTruncated(parsed, calc money.Cents) bool {
	p := strconv.FormatInt(int64(parsed), 10)
	c := strconv.FormatInt(int64(calc), 10)
	if len(p) >= len(c) {
		return false
	}
	return c[:len(p)] == p || c[len(c)-len(p):] == p
}
