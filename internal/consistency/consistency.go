// Package consistency runs whole-ledger structural checks that individual
// row verification cannot see: monotonicity, cadence, outliers, and coverage.
package consistency

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

// Defaults. A 45-day gap is more than any biweekly or semimonthly cadence
// allows, so anything beyond it means a statement is missing.
const (
	DefaultMaxGapDays        = 45
	DefaultOutlierMultiplier = 4
)

// Options tunes the scan.
type Options struct {
	// Tolerance is the inclusive cent tolerance shared with verification.
	Tolerance money.Cents
	// MaxGapDays flags pay-date gaps longer than this. Zero means
	// DefaultMaxGapDays.
	MaxGapDays int
	// OutlierMultiplier flags per-period gross this far above the median.
	// Zero means DefaultOutlierMultiplier.
	OutlierMultiplier int
}

func (o Options) maxGapDays() int {
	if o.MaxGapDays > 0 {
		return o.MaxGapDays
	}
	return DefaultMaxGapDays
}

func (o Options) outlierMultiplier() money.Cents {
	if o.OutlierMultiplier > 0 {
		return money.Cents(o.OutlierMultiplier)
	}
	return DefaultOutlierMultiplier
}

// Scan runs every structural check over the verified ledger and returns the
// accumulated findings. Scan never mutates the ledger.
func Scan(led *model.Ledger, opts Options) []model.ConsistencyIssue {
	issues := []model.ConsistencyIssue{}
	issues = append(issues, duplicateDates(led)...)
	issues = append(issues, ytdDecreases(led, opts)...)
	issues = append(issues, periodDeltas(led, opts)...)
	issues = append(issues, sequenceGaps(led, opts)...)
	issues = append(issues, outlierEarnings(led, opts)...)
	issues = append(issues, missingFinalValues(led)...)
	issues = append(issues, anomalies(led)...)

	critical, warning := model.CountBySeverity(issues)
	zap.L().Info("consistency: scan complete",
		zap.String("filer", led.FilerID),
		zap.Int("critical", critical),
		zap.Int("warning", warning),
	)
	return issues
}

// duplicateDates flags pay dates appearing on more than one canonical row.
// The ledger builder collapses same-date submissions, so any survivor means
// the ledger did not come through that path intact.
func duplicateDates(led *model.Ledger) []model.ConsistencyIssue {
	var issues []model.ConsistencyIssue
	seen := make(map[string]string, len(led.Rows))
	for _, row := range led.Rows {
		date := row.Snapshot.PayDate.Format("2006-01-02")
		if first, dup := seen[date]; dup {
			issues = append(issues, model.ConsistencyIssue{
				Severity: model.SeverityCritical,
				Code:     model.IssueDuplicatePayDate,
				Message: fmt.Sprintf("pay date %s appears on multiple canonical rows (%s, %s)",
					date, first, row.Snapshot.Source),
			})
			continue
		}
		seen[date] = row.Snapshot.Source
	}
	return issues
}

// ytdDecreases flags any cumulative figure that shrinks between periods. A
// decrease in gross pay is impossible on a real ledger, so it escalates to
// critical; withholding fields can shrink through employer adjustments and
// stay warnings.
func ytdDecreases(led *model.Ledger, opts Options) []model.ConsistencyIssue {
	var issues []model.ConsistencyIssue
	for _, key := range led.FieldKeys() {
		var prev *money.Cents
		var prevDate string
		for _, row := range led.Rows {
			pair := row.Snapshot.Pair(key)
			if pair == nil || pair.YTD == nil {
				continue
			}
			cur := pair.YTD.Amount
			date := row.Snapshot.PayDate.Format("2006-01-02")
			if prev != nil && cur < *prev-opts.Tolerance {
				severity := model.SeverityWarning
				if key == model.FieldGrossPay {
					severity = model.SeverityCritical
				}
				issues = append(issues, model.ConsistencyIssue{
					Severity: severity,
					Code:     model.IssueYTDDecrease,
					Message: fmt.Sprintf("%s YTD decreased from %s (%s) to %s (%s)",
						key, *prev, prevDate, cur, date),
				})
			}
			prev, prevDate = &cur, date
		}
	}
	return issues
}

// periodDeltas cross-checks each this-period amount against the YTD delta it
// implies. Rows already repaired by verification carry corrected values and
// pass cleanly.
func periodDeltas(led *model.Ledger, opts Options) []model.ConsistencyIssue {
	var issues []model.ConsistencyIssue
	for _, key := range led.FieldKeys() {
		for i := 1; i < len(led.Rows); i++ {
			pair := led.Rows[i].Snapshot.Pair(key)
			prevPair := led.Rows[i-1].Snapshot.Pair(key)
			if pair == nil || pair.ThisPeriod == nil || pair.YTD == nil ||
				prevPair == nil || prevPair.YTD == nil {
				continue
			}
			delta := pair.YTD.Amount - prevPair.YTD.Amount
			if (delta - pair.ThisPeriod.Amount).Abs() > opts.Tolerance {
				issues = append(issues, model.ConsistencyIssue{
					Severity: model.SeverityWarning,
					Code:     model.IssueThisPeriodDelta,
					Message: fmt.Sprintf("%s on %s: this-period %s disagrees with YTD delta %s",
						key, led.Rows[i].Snapshot.PayDate.Format("2006-01-02"),
						pair.ThisPeriod.Amount, delta),
				})
			}
		}
	}
	return issues
}

// sequenceGaps flags pay-date gaps wide enough to imply a missing statement.
func sequenceGaps(led *model.Ledger, opts Options) []model.ConsistencyIssue {
	var issues []model.ConsistencyIssue
	maxGap := opts.maxGapDays()
	for i := 1; i < len(led.Rows); i++ {
		prev := led.Rows[i-1].Snapshot.PayDate
		cur := led.Rows[i].Snapshot.PayDate
		days := int(cur.Sub(prev).Hours() / 24)
		if days > maxGap {
			issues = append(issues, model.ConsistencyIssue{
				Severity: model.SeverityWarning,
				Code:     model.IssueSequenceGap,
				Message: fmt.Sprintf("%d days between %s and %s; a paystub may be missing",
					days, prev.Format("2006-01-02"), cur.Format("2006-01-02")),
			})
		}
	}
	return issues
}

// outlierEarnings flags per-period gross far above the filer's median period.
// Bonuses trip this legitimately, which is why it stays a warning.
func outlierEarnings(led *model.Ledger, opts Options) []model.ConsistencyIssue {
	var amounts []money.Cents
	for _, row := range led.Rows {
		if pair := row.Snapshot.Pair(model.FieldGrossPay); pair != nil && pair.ThisPeriod != nil {
			amounts = append(amounts, pair.ThisPeriod.Amount)
		}
	}
	if len(amounts) < 3 {
		return nil
	}
	sorted := append([]money.Cents(nil), amounts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	median := sorted[len(sorted)/2]
	if median <= 0 {
		return nil
	}

	var issues []model.ConsistencyIssue
	threshold := median * opts.outlierMultiplier()
	for _, row := range led.Rows {
		pair := row.Snapshot.Pair(model.FieldGrossPay)
		if pair == nil || pair.ThisPeriod == nil || pair.ThisPeriod.Amount <= threshold {
			continue
		}
		issues = append(issues, model.ConsistencyIssue{
			Severity: model.SeverityWarning,
			Code:     model.IssueOutlierEarnings,
			Message: fmt.Sprintf("gross pay %s on %s is more than %dx the median period (%s)",
				pair.ThisPeriod.Amount, row.Snapshot.PayDate.Format("2006-01-02"),
				opts.outlierMultiplier(), median),
		})
	}
	return issues
}

// missingFinalValues checks that the final period carries a YTD for every
// field seen during the year. The final YTDs become the filing summary, so a
// hole here is critical.
func missingFinalValues(led *model.Ledger) []model.ConsistencyIssue {
	final := led.Final()
	if final == nil {
		return nil
	}
	var missing []string
	for _, key := range led.FieldKeys() {
		pair := final.Snapshot.Pair(key)
		if pair == nil || pair.YTD == nil {
			missing = append(missing, string(key))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []model.ConsistencyIssue{{
		Severity: model.SeverityCritical,
		Code:     model.IssueMissingFinalValues,
		Message: fmt.Sprintf("final paystub (%s) has no YTD for: %v",
			final.Snapshot.PayDate.Format("2006-01-02"), missing),
	}}
}

// anomalies surfaces extraction-time normalization events as findings.
func anomalies(led *model.Ledger) []model.ConsistencyIssue {
	var issues []model.ConsistencyIssue
	for _, row := range led.Rows {
		for _, a := range row.Snapshot.Anomalies {
			if a.Code != model.AnomalyImplausibleAmountFiltered {
				continue
			}
			issues = append(issues, model.ConsistencyIssue{
				Severity: model.SeverityWarning,
				Code:     model.IssueImplausibleFiltered,
				Message: fmt.Sprintf("%s: %s", row.Snapshot.PayDate.Format("2006-01-02"), a.Message),
			})
		}
	}
	return issues
}
