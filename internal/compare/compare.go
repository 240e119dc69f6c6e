// Package compare cross-checks the paystub-derived year-end summary against
// the W-2 aggregate, field by field.
package compare

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

// DefaultTolerance is the inclusive cent tolerance for match decisions.
const DefaultTolerance = money.Cents(1) // $0.01

// boxChecks are the withholding boxes reconciled strictly. Box 1 is handled
// separately: pre-tax deductions legitimately separate it from gross pay, so
// that row is always informational.
var boxChecks = []struct {
	name  string
	field model.FieldKey
	w2    func(*model.W2Aggregate) money.Cents
}{
	{"box2_federal_income_tax", model.FieldFederalIncomeTax, func(a *model.W2Aggregate) money.Cents { return a.Box2FederalTax }},
	{"box4_social_security_tax", model.FieldSocialSecurityTax, func(a *model.W2Aggregate) money.Cents { return a.Box4SocialSecTax }},
	{"box6_medicare_tax", model.FieldMedicareTax, func(a *model.W2Aggregate) money.Cents { return a.Box6MedicareTax }},
}

// Run compares the summary against the aggregate and returns per-field
// results plus status tallies. A zero tolerance means DefaultTolerance; the
// comparison itself is inclusive, so a difference exactly at the tolerance
// still matches. A nil aggregate yields no comparisons.
func Run(summary map[model.FieldKey]*model.FieldValue, agg *model.W2Aggregate, tolerance money.Cents) ([]model.ComparisonResult, map[model.ComparisonStatus]int) {
	results := []model.ComparisonResult{}
	tally := map[model.ComparisonStatus]int{}
	if agg == nil {
		return results, tally
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	add := func(r model.ComparisonResult) {
		results = append(results, r)
		tally[r.Status]++
	}

	// Box 1 vs gross pay: reported for context, never a mismatch.
	box1 := model.ComparisonResult{
		Field:          "box1_wages_vs_gross_pay",
		W2:             money.Ptr(agg.Box1Wages),
		Status:         model.CompareInformational,
		ToleranceCents: tolerance,
	}
	if gross, ok := summary[model.FieldGrossPay]; ok && gross != nil {
		box1.Paystub = money.Ptr(gross.Amount)
		box1.Difference = money.Ptr(gross.Amount - agg.Box1Wages)
	}
	add(box1)

	for _, check := range boxChecks {
		add(result(check.name, summary[check.field], money.Ptr(check.w2(agg)), tolerance))
	}

	// State withholding: the union of both sides, so a state present on only
	// one side still surfaces as a missing_* row.
	states := map[string]bool{}
	for _, code := range agg.States() {
		states[code] = true
	}
	for key := range summary {
		if code, ok := key.StateCode(); ok {
			states[code] = true
		}
	}
	codes := make([]string, 0, len(states))
	for code := range states {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		var w2 *money.Cents
		if sb, ok := agg.StateBoxes[code]; ok {
			w2 = money.Ptr(sb.Tax)
		}
		add(result("box17_state_income_tax_"+code, summary[model.StateField(code)], w2, tolerance))
	}

	zap.L().Info("compare: summary reconciled against w2",
		zap.Int("comparisons", len(results)),
		zap.Int("mismatches", tally[model.CompareMismatch]),
	)
	return results, tally
}

func result(name string, paystub *model.FieldValue, w2 *money.Cents, tolerance money.Cents) model.ComparisonResult {
	r := model.ComparisonResult{Field: name, W2: w2, ToleranceCents: tolerance}
	if paystub != nil {
		r.Paystub = money.Ptr(paystub.Amount)
	}

	switch {
	case r.Paystub == nil && w2 == nil:
		r.Status = model.CompareInformational
	case r.Paystub == nil:
		r.Status = model.CompareMissingPaystub
	case w2 == nil:
		r.Status = model.CompareMissingW2
	default:
		diff := *r.Paystub - *w2
		r.Difference = money.Ptr(diff)
		if diff.Abs() <= tolerance {
			r.Status = model.CompareMatch
		} else {
			r.Status = model.CompareMismatch
		}
	}
	return r
}
