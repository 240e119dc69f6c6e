package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

func samplePackage() *model.FilingPackage {
	d, _ := time.Parse("2006-01-02", "2025-12-31")
	gross := money.FromDollars(98000)
	w2Gross := money.FromDollars(98000)
	diff := money.Cents(0)

	return &model.FilingPackage{
		SchemaVersion: model.SchemaVersion,
		FilerID:       "jane",
		TaxYear:       2025,
		Ledger: &model.Ledger{
			FilerID:        "jane",
			TaxYear:        2025,
			RawCount:       1,
			CanonicalCount: 1,
			Rows: []*model.LedgerRow{{
				Snapshot: &model.PeriodSnapshot{
					PayDate: d,
					Source:  "final.json",
					Pairs: map[model.FieldKey]*model.AmountPair{
						model.FieldGrossPay: {
							ThisPeriod: model.Extracted(money.FromDollars(4000), model.Evidence{Line: "Gross Pay"}),
							YTD:        model.Extracted(gross, model.Evidence{Line: "Gross Pay"}),
						},
					},
				},
				Verification: map[model.FieldKey]model.FieldVerification{
					model.FieldGrossPay: {Status: model.StatusVerified},
				},
			}},
		},
		Summary: map[model.FieldKey]*model.FieldValue{
			model.FieldGrossPay: model.Extracted(gross, model.Evidence{Line: "Gross Pay"}),
		},
		Comparisons: []model.ComparisonResult{{
			Field:          "box1_wages_vs_gross_pay",
			Paystub:        &gross,
			W2:             &w2Gross,
			Difference:     &diff,
			Status:         model.CompareInformational,
			ToleranceCents: 1,
		}},
		ComparisonSummary: map[model.ComparisonStatus]int{model.CompareInformational: 1},
		ConsistencyIssues: []model.ConsistencyIssue{{
			Severity: model.SeverityWarning,
			Code:     model.IssueSequenceGap,
			Message:  "61 days between 2025-10-31 and 2025-12-31",
		}},
		CorrectionTrace: []model.CorrectionTrace{{
			Field:   model.FieldFederalIncomeTax,
			New:     money.FromDollars(1800),
			Source:  "correction_file",
			Reason:  "manual correction",
			Ordinal: 0,
		}},
		Authenticity: model.AuthenticityAssessment{
			Score:      97,
			Verdict:    model.VerdictHighConfidence,
			Disclaimer: "Automated screening only; not tax advice.",
		},
		ReadyToFile: true,
	}
}

func TestWritePackage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jane-2025.xlsx")
	require.NoError(t, WritePackage(samplePackage(), path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	for _, name := range []string{"overview", "summary", "ledger", "w2_comparison", "issues"} {
		_, ok := f.Sheet[name]
		assert.True(t, ok, "missing sheet %s", name)
	}

	overview := f.Sheet["overview"]
	assert.Equal(t, "filer", overview.Rows[0].Cells[0].String())
	assert.Equal(t, "jane", overview.Rows[0].Cells[1].String())

	ledger := f.Sheet["ledger"]
	require.Len(t, ledger.Rows, 2)
	row := ledger.Rows[1]
	assert.Equal(t, "2025-12-31", row.Cells[0].String())
	assert.Equal(t, "gross_pay", row.Cells[2].String())
	assert.Equal(t, "$4,000.00", row.Cells[3].String())
	assert.Equal(t, "$98,000.00", row.Cells[4].String())
	assert.Equal(t, "verified", row.Cells[6].String())

	cmp := f.Sheet["w2_comparison"]
	require.Len(t, cmp.Rows, 2)
	assert.Equal(t, "informational", cmp.Rows[1].Cells[4].String())

	// Correction trace entries are appended after consistency findings.
	issues := f.Sheet["issues"]
	require.Len(t, issues.Rows, 3)
	assert.Equal(t, "sequence_gap", issues.Rows[1].Cells[1].String())
	assert.Equal(t, "correction_applied", issues.Rows[2].Cells[1].String())
}

func TestWritePackageBadPath(t *testing.T) {
	err := WritePackage(samplePackage(), filepath.Join(t.TempDir(), "missing", "out.xlsx"))
	require.Error(t, err)
}
