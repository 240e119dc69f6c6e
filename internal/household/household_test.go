package household

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramuks22/project-paystub-analyzer/internal/corrections"
	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
	"github.com/ramuks22/project-paystub-analyzer/internal/w2agg"
)

func pair(line string, thisPeriod, ytd float64) *model.AmountPair {
	return &model.AmountPair{
		ThisPeriod: model.Extracted(money.FromDollars(thisPeriod), model.Evidence{Line: line}),
		YTD:        model.Extracted(money.FromDollars(ytd), model.Evidence{Line: line}),
	}
}

// snap builds one biweekly statement: gross 4,000 with 15% federal, 6.2%
// social security, and 1.45% medicare withholding, n periods into the year.
func snap(payDate string, n float64) *model.PeriodSnapshot {
	d, _ := time.Parse("2006-01-02", payDate)
	return &model.PeriodSnapshot{
		PayDate: d,
		Source:  payDate + ".json",
		Pairs: map[model.FieldKey]*model.AmountPair{
			model.FieldGrossPay:          pair("Gross Pay", 4000, 4000*n),
			model.FieldFederalIncomeTax:  pair("Federal Income Tax", 600, 600*n),
			model.FieldSocialSecurityTax: pair("Social Security Tax", 248, 248*n),
			model.FieldMedicareTax:       pair("Medicare Tax", 58, 58*n),
		},
	}
}

func cleanYear() []*model.PeriodSnapshot {
	return []*model.PeriodSnapshot{
		snap("2025-01-15", 1),
		snap("2025-01-31", 2),
		snap("2025-02-14", 3),
	}
}

func matchingW2() *model.W2Record {
	rec, err := w2agg.Record(w2agg.RawW2{
		TaxYear:        2025,
		EmployerEIN:    "12-3456789",
		ControlNumber:  "A1",
		Box1Wages:      12000,
		Box2FederalTax: 1800,
		Box3SSWages:    12000,
		Box4SSTax:      744,
		Box5MedWages:   12000,
		Box6MedTax:     174,
	}, "w2.yaml")
	if err != nil {
		panic(err)
	}
	return rec
}

func TestBuildPackageCleanFiler(t *testing.T) {
	pkg, err := BuildPackage(2025, FilerInput{
		Filer:     model.Filer{ID: "jane", Role: model.RolePrimary},
		Snapshots: cleanYear(),
		W2s:       []*model.W2Record{matchingW2()},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, model.SchemaVersion, pkg.SchemaVersion)
	assert.Equal(t, 3, pkg.Ledger.CanonicalCount)
	assert.Empty(t, pkg.ConsistencyIssues)
	assert.NotNil(t, pkg.CorrectionTrace)
	assert.Empty(t, pkg.CorrectionTrace)
	assert.True(t, pkg.ReadyToFile)
	assert.Equal(t, model.VerdictHighConfidence, pkg.Authenticity.Verdict)
	assert.Equal(t, money.FromDollars(12000), pkg.Summary[model.FieldGrossPay].Amount)
	require.NoError(t, pkg.ValidateContract())
}

func TestBuildPackageSkipsOtherYears(t *testing.T) {
	snaps := append(cleanYear(), snap("2024-12-31", 26))
	pkg, err := BuildPackage(2025, FilerInput{
		Filer:     model.Filer{ID: "jane", Role: model.RolePrimary},
		Snapshots: snaps,
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, pkg.Ledger.CanonicalCount)
}

func TestBuildPackageNoSnapshotsFails(t *testing.T) {
	_, err := BuildPackage(2025, FilerInput{
		Filer: model.Filer{ID: "jane", Role: model.RolePrimary},
	}, Options{})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestBuildPackageCorrectionsReachComparison(t *testing.T) {
	// Federal YTD truncated on the final stub; the override restores it and
	// the W-2 comparison then matches.
	snaps := cleanYear()
	snaps[2].Pairs[model.FieldFederalIncomeTax].YTD = model.Extracted(
		money.FromDollars(180), model.Evidence{Line: "Federal Income Tax"})

	pkg, err := BuildPackage(2025, FilerInput{
		Filer:     model.Filer{ID: "jane", Role: model.RolePrimary},
		Snapshots: snaps,
		W2s:       []*model.W2Record{matchingW2()},
		Corrections: &corrections.Set{Entries: []corrections.Entry{
			{Field: model.FieldFederalIncomeTax, Amount: money.FromDollars(1800), Reason: "per W-2"},
		}},
	}, Options{})
	require.NoError(t, err)

	require.Len(t, pkg.CorrectionTrace, 1)
	assert.Equal(t, model.ProvenanceOverride, pkg.Summary[model.FieldFederalIncomeTax].Provenance)
	assert.Zero(t, pkg.ComparisonSummary[model.CompareMismatch])
	assert.Equal(t, 0, pkg.ComparisonSummary[model.CompareMissingPaystub])
}

func TestBuildPackageNoW2StillAssesses(t *testing.T) {
	pkg, err := BuildPackage(2025, FilerInput{
		Filer:     model.Filer{ID: "jane", Role: model.RolePrimary},
		Snapshots: cleanYear(),
	}, Options{})
	require.NoError(t, err)
	assert.Nil(t, pkg.W2)
	assert.Empty(t, pkg.Comparisons)
	assert.True(t, pkg.ReadyToFile)
}

func TestRunIsolatesFilerFailure(t *testing.T) {
	cfg := &model.HouseholdConfig{
		TaxYear: 2025,
		Filers: []model.Filer{
			{ID: "jane", Role: model.RolePrimary},
			{ID: "alex", Role: model.RoleSpouse},
		},
	}
	load := func(f model.Filer) (FilerInput, error) {
		in := FilerInput{Filer: f}
		if f.ID == "jane" {
			in.Snapshots = cleanYear()
		}
		// alex has no snapshots and fails validation downstream.
		return in, nil
	}

	result, err := Run(context.Background(), cfg, load, Options{})
	require.NoError(t, err)

	require.Len(t, result.Packages, 1)
	assert.NotNil(t, result.Package("jane"))
	assert.Nil(t, result.Package("alex"))
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "alex", result.Failures[0].FilerID)
	assert.NotEmpty(t, result.Failures[0].Error)
}

func TestRunInvalidConfigFails(t *testing.T) {
	cfg := &model.HouseholdConfig{TaxYear: 2025}
	_, err := Run(context.Background(), cfg, nil, Options{})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestRunPreservesConfigOrder(t *testing.T) {
	cfg := &model.HouseholdConfig{
		TaxYear: 2025,
		Filers: []model.Filer{
			{ID: "jane", Role: model.RolePrimary},
			{ID: "alex", Role: model.RoleSpouse},
		},
	}
	load := func(f model.Filer) (FilerInput, error) {
		return FilerInput{Filer: f, Snapshots: cleanYear()}, nil
	}
	result, err := Run(context.Background(), cfg, load, Options{Concurrency: 2})
	require.NoError(t, err)
	require.Len(t, result.Packages, 2)
	assert.Equal(t, "jane", result.Packages[0].FilerID)
	assert.Equal(t, "alex", result.Packages[1].FilerID)
}
