package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleW2() *W2Record {
	return &W2Record{
		TaxYear:            2025,
		EmployerEIN:        "12-3456789",
		ControlNumber:      "A001",
		Box1Wages:          9500000,
		Box2FederalTax:     1471686,
		Box3SocialSecWages: 10000000,
		Box4SocialSecTax:   646843,
		Box5MedicareWages:  10000000,
		Box6MedicareTax:    151278,
		StateBoxes: map[string]StateBox{
			"VA": {Wages: 9500000, Tax: 412000},
		},
		SourceLabel: "w2-acme.json",
	}
}

func TestFingerprintStable(t *testing.T) {
	a := sampleW2()
	b := sampleW2()
	b.SourceLabel = "same-form-different-file.json"
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintSensitiveToBoxes(t *testing.T) {
	a := sampleW2()
	b := sampleW2()
	b.Box2FederalTax++
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := sampleW2()
	c.StateBoxes["VA"] = StateBox{Wages: 9500000, Tax: 412001}
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestStrongIdentity(t *testing.T) {
	r := sampleW2()
	id, ok := r.StrongIdentity()
	require.True(t, ok)
	assert.Equal(t, "2025/12-3456789/A001", id)

	r.ControlNumber = "  "
	_, ok = r.StrongIdentity()
	assert.False(t, ok)
}

func TestHouseholdValidate(t *testing.T) {
	cfg := &HouseholdConfig{
		TaxYear: 2025,
		Filers: []Filer{
			{ID: "jane", Role: RolePrimary},
			{ID: "alex", Role: RoleSpouse},
		},
	}
	require.NoError(t, cfg.Validate())

	dup := &HouseholdConfig{
		TaxYear: 2025,
		Filers: []Filer{
			{ID: "jane", Role: RolePrimary},
			{ID: "jane", Role: RoleSpouse},
		},
	}
	err := dup.Validate()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "duplicate filer id")
}

func TestHouseholdValidateRole(t *testing.T) {
	cfg := &HouseholdConfig{
		TaxYear: 2025,
		Filers:  []Filer{{ID: "jane", Role: "DEPENDENT"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestParseComparisonStatusCaseInsensitive(t *testing.T) {
	got, err := ParseComparisonStatus("MATCH")
	require.NoError(t, err)
	assert.Equal(t, CompareMatch, got)

	got, err = ParseComparisonStatus(" Mismatch ")
	require.NoError(t, err)
	assert.Equal(t, CompareMismatch, got)

	_, err = ParseComparisonStatus("kinda-close")
	assert.Error(t, err)
}

func TestValidateContract(t *testing.T) {
	pkg := &FilingPackage{
		SchemaVersion:     SchemaVersion,
		Ledger:            &Ledger{},
		ConsistencyIssues: []ConsistencyIssue{},
		CorrectionTrace:   []CorrectionTrace{},
	}
	require.NoError(t, pkg.ValidateContract())

	pkg.CorrectionTrace = nil
	err := pkg.ValidateContract()
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}
