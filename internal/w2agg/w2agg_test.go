package w2agg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

func form(label, ein, ctl string, box1 float64) *model.W2Record {
	rec, err := Record(RawW2{
		TaxYear:        2025,
		EmployerEIN:    ein,
		ControlNumber:  ctl,
		Box1Wages:      box1,
		Box2FederalTax: box1 * 0.15,
		States:         []RawState{{State: "VA", Wages: box1, Tax: box1 * 0.04}},
	}, label)
	if err != nil {
		panic(err)
	}
	return rec
}

func TestParseRecordYAML(t *testing.T) {
	doc := []byte(`
tax_year: 2025
employer_ein: "12-3456789"
control_number: W2-0001
box1_wages: 98000.00
box2_federal_tax: 14716.86
box3_social_security_wages: 98000.00
box4_social_security_tax: 6076.00
box5_medicare_wages: 98000.00
box6_medicare_tax: 1421.00
states:
  - state: va
    box16_wages: 98000.00
    box17_tax: 4120.00
`)
	rec, err := ParseRecord(doc, "w2_acme.yaml")
	require.NoError(t, err)
	assert.Equal(t, money.FromDollars(98000), rec.Box1Wages)
	assert.Equal(t, money.FromDollars(14716.86), rec.Box2FederalTax)
	require.Contains(t, rec.StateBoxes, "VA") // lowercase input normalized
	assert.Equal(t, money.FromDollars(4120), rec.StateBoxes["VA"].Tax)
}

func TestRecordRejectsNegativeBox(t *testing.T) {
	_, err := Record(RawW2{TaxYear: 2025, Box2FederalTax: -1}, "bad.yaml")
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestRecordRejectsMissingTaxYear(t *testing.T) {
	_, err := Record(RawW2{Box1Wages: 100}, "bad.yaml")
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestRecordRejectsBadStateCode(t *testing.T) {
	_, err := Record(RawW2{
		TaxYear: 2025,
		States:  []RawState{{State: "Virginia", Tax: 100}},
	}, "bad.yaml")
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestAggregateMultiEmployer(t *testing.T) {
	agg, issues, err := Aggregate(2025, []*model.W2Record{
		form("w2_acme.yaml", "12-3456789", "A1", 60000),
		form("w2_globex.yaml", "98-7654321", "B2", 40000),
	})
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, money.FromDollars(100000), agg.Box1Wages)
	assert.Equal(t, money.FromDollars(15000), agg.Box2FederalTax)
	require.Len(t, agg.Sources, 2)
	assert.Equal(t, money.FromDollars(60000), agg.Sources[0].Box1Contribution)
	assert.Equal(t, money.FromDollars(100000), agg.StateBoxes["VA"].Wages)
}

func TestAggregateIdenticalFormCountedOnce(t *testing.T) {
	agg, issues, err := Aggregate(2025, []*model.W2Record{
		form("w2_copy1.yaml", "12-3456789", "A1", 60000),
		form("w2_copy2.yaml", "12-3456789", "A1", 60000),
	})
	require.NoError(t, err)

	assert.Equal(t, money.FromDollars(60000), agg.Box1Wages)
	require.Len(t, agg.Sources, 1)
	require.Len(t, issues, 1)
	assert.Equal(t, model.IssueWeakW2Duplicate, issues[0].Code)
	assert.NotEmpty(t, agg.Warnings)
}

func TestAggregateConflictingStrongIdentityFails(t *testing.T) {
	_, _, err := Aggregate(2025, []*model.W2Record{
		form("w2_v1.yaml", "12-3456789", "A1", 60000),
		form("w2_v2.yaml", "12-3456789", "A1", 61000), // same identity, different boxes
	})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestAggregateWeakIdentityDuplicateContent(t *testing.T) {
	// No EIN/control number: identical content still collapses by fingerprint.
	a := form("w2_a.yaml", "", "", 50000)
	b := form("w2_b.yaml", "", "", 50000)
	agg, issues, err := Aggregate(2025, []*model.W2Record{a, b})
	require.NoError(t, err)
	assert.Equal(t, money.FromDollars(50000), agg.Box1Wages)
	require.Len(t, issues, 1)

	// Different content without identity is two employers, not a duplicate.
	c := form("w2_c.yaml", "", "", 25000)
	agg, issues, err = Aggregate(2025, []*model.W2Record{a, c})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, money.FromDollars(75000), agg.Box1Wages)
}

func TestAggregateWrongYearFails(t *testing.T) {
	rec := form("w2_old.yaml", "12-3456789", "A1", 60000)
	_, _, err := Aggregate(2024, []*model.W2Record{rec})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestAggregateEmptySources(t *testing.T) {
	agg, issues, err := Aggregate(2025, nil)
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.NotNil(t, agg.Sources)
	assert.Empty(t, agg.Sources)
}
