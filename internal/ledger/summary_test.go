package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

func summarySnapshot(payDate string, gross, fed money.Cents) *model.PeriodSnapshot {
	d, _ := time.Parse("2006-01-02", payDate)
	return &model.PeriodSnapshot{
		PayDate: d,
		Source:  payDate + ".pdf",
		Pairs: map[model.FieldKey]*model.AmountPair{
			model.FieldGrossPay: {
				YTD: model.Extracted(gross, model.Evidence{Line: "Gross Pay"}),
			},
			model.FieldFederalIncomeTax: {
				YTD: model.Extracted(fed, model.Evidence{Line: "Federal Income Tax"}),
			},
		},
	}
}

func TestSummaryUsesFinalPeriod(t *testing.T) {
	led, err := Build("jane", 2025, []*model.PeriodSnapshot{
		summarySnapshot("2025-12-31", money.FromDollars(98000), money.FromDollars(14716.86)),
		summarySnapshot("2025-01-15", money.FromDollars(3500), money.FromDollars(525)),
	})
	require.NoError(t, err)

	summary := Summary(led)
	require.Contains(t, summary, model.FieldGrossPay)
	assert.Equal(t, money.FromDollars(98000), summary[model.FieldGrossPay].Amount)
	assert.Equal(t, money.FromDollars(14716.86), summary[model.FieldFederalIncomeTax].Amount)
}

func TestSummarySeedsWageBases(t *testing.T) {
	led, err := Build("jane", 2025, []*model.PeriodSnapshot{
		summarySnapshot("2025-12-31", money.FromDollars(98000), money.FromDollars(14716.86)),
	})
	require.NoError(t, err)

	summary := Summary(led)
	for _, key := range []model.FieldKey{model.FieldSocialSecurityWages, model.FieldMedicareWages} {
		require.Contains(t, summary, key)
		assert.Equal(t, money.Cents(0), summary[key].Amount)
		assert.Equal(t, model.ProvenanceExtracted, summary[key].Provenance)
	}
}

func TestSummaryClonesFieldValues(t *testing.T) {
	led, err := Build("jane", 2025, []*model.PeriodSnapshot{
		summarySnapshot("2025-12-31", money.FromDollars(98000), money.FromDollars(14716.86)),
	})
	require.NoError(t, err)

	summary := Summary(led)
	summary[model.FieldGrossPay].Amount = 0

	final := led.Final()
	assert.Equal(t, money.FromDollars(98000), final.Snapshot.Pair(model.FieldGrossPay).YTD.Amount)
}
