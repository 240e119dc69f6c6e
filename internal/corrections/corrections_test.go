package corrections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

func TestLoadBoxAliasesAndLiterals(t *testing.T) {
	doc := []byte(`
corrections:
  box2:
    value: 14716.86
    reason: OCR dropped the trailing digit
  gross_pay:
    value: 98000.00
  state_income_tax_VA:
    value: 4120.00
    reason: matches W-2 box 17
`)
	set, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, set.Entries, 3)

	assert.Equal(t, model.FieldFederalIncomeTax, set.Entries[0].Field)
	assert.Equal(t, money.FromDollars(14716.86), set.Entries[0].Amount)
	assert.Equal(t, "OCR dropped the trailing digit", set.Entries[0].Reason)

	assert.Equal(t, model.FieldGrossPay, set.Entries[1].Field)
	assert.Equal(t, "manual correction", set.Entries[1].Reason)

	assert.Equal(t, model.StateField("VA"), set.Entries[2].Field)
}

func TestLoadBareStateKeyRejected(t *testing.T) {
	doc := []byte(`
corrections:
  state_income_tax:
    value: 100.00
`)
	_, err := Load(doc)
	require.Error(t, err)
	assert.True(t, model.IsSchemaError(err))
}

func TestLoadUnknownKeyRejected(t *testing.T) {
	doc := []byte(`
corrections:
  bonus_pay:
    value: 100.00
`)
	_, err := Load(doc)
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestLoadBadStateSuffixRejected(t *testing.T) {
	for _, key := range []string{"state_income_tax_Virginia", "state_income_tax_v1", "state_income_tax_va"} {
		doc := []byte("corrections:\n  " + key + ":\n    value: 100.00\n")
		_, err := Load(doc)
		require.Error(t, err, key)
		assert.True(t, model.IsSchemaError(err), key)
	}
}

func TestLoadMissingValueRejected(t *testing.T) {
	doc := []byte(`
corrections:
  box1:
    reason: no amount given
`)
	_, err := Load(doc)
	require.Error(t, err)
	assert.True(t, model.IsSchemaError(err))
}

func TestLoadEmptyDocument(t *testing.T) {
	set, err := Load([]byte("corrections: {}\n"))
	require.NoError(t, err)
	assert.Empty(t, set.Entries)

	set, err = Load([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, set.Entries)
}

func TestApplyOverridesAndTraces(t *testing.T) {
	summary := map[model.FieldKey]*model.FieldValue{
		model.FieldFederalIncomeTax: model.Extracted(
			money.FromDollars(1471.68), model.Evidence{Line: "Federal Income Tax"}),
	}
	set := &Set{Entries: []Entry{
		{Field: model.FieldFederalIncomeTax, Amount: money.FromDollars(14716.86), Reason: "truncated"},
		{Field: model.StateField("VA"), Amount: money.FromDollars(4120), Reason: "per W-2"},
	}}

	trace := Apply(summary, set)
	require.Len(t, trace, 2)

	fed := summary[model.FieldFederalIncomeTax]
	assert.Equal(t, money.FromDollars(14716.86), fed.Amount)
	assert.Equal(t, model.ProvenanceOverride, fed.Provenance)
	require.NotNil(t, fed.PriorAmount)
	assert.Equal(t, money.FromDollars(1471.68), *fed.PriorAmount)

	assert.Equal(t, model.FieldFederalIncomeTax, trace[0].Field)
	require.NotNil(t, trace[0].Previous)
	assert.Equal(t, money.FromDollars(1471.68), *trace[0].Previous)
	assert.Equal(t, money.FromDollars(14716.86), trace[0].New)
	assert.Equal(t, TraceSource, trace[0].Source)
	assert.Equal(t, 0, trace[0].Ordinal)

	// Field absent from the summary: override still lands, previous is nil.
	va := summary[model.StateField("VA")]
	require.NotNil(t, va)
	assert.Equal(t, model.ProvenanceOverride, va.Provenance)
	assert.Nil(t, trace[1].Previous)
	assert.Equal(t, 1, trace[1].Ordinal)
}

func TestApplyNilSetYieldsEmptyTrace(t *testing.T) {
	trace := Apply(map[model.FieldKey]*model.FieldValue{}, nil)
	require.NotNil(t, trace)
	assert.Empty(t, trace)
}
