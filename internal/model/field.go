package model

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

// Provenance tags where a field value came from. The set is closed so every
// consumer can handle all cases exhaustively.
type Provenance string

const (
	ProvenanceExtracted     Provenance = "extracted"
	ProvenanceAutoCorrected Provenance = "auto_corrected"
	ProvenanceOverride      Provenance = "override"
)

// FieldKey identifies a reconcilable field on a snapshot or summary.
// Per-state withholding uses the "state_income_tax_XX" form.
type FieldKey string

const (
	FieldGrossPay            FieldKey = "gross_pay"
	FieldFederalIncomeTax    FieldKey = "federal_income_tax"
	FieldSocialSecurityTax   FieldKey = "social_security_tax"
	FieldMedicareTax         FieldKey = "medicare_tax"
	FieldK401Contrib         FieldKey = "k401_contrib"
	FieldSocialSecurityWages FieldKey = "social_security_wages"
	FieldMedicareWages       FieldKey = "medicare_wages"
)

const stateFieldPrefix = "state_income_tax_"

var stateCodeRE = regexp.MustCompile(`^[A-Z]{2}$`)

// CoreFields returns the fields extracted directly from paystub lines, in
// reporting order.
func CoreFields() []FieldKey {
	return []FieldKey{
		FieldGrossPay,
		FieldFederalIncomeTax,
		FieldSocialSecurityTax,
		FieldMedicareTax,
		FieldK401Contrib,
	}
}

// IsCoreField reports whether key is one of the directly extracted fields.
func IsCoreField(key FieldKey) bool {
	for _, k := range CoreFields() {
		if k == key {
			return true
		}
	}
	return false
}

// StateField builds the field key for a state's income tax withholding.
func StateField(code string) FieldKey {
	return FieldKey(stateFieldPrefix + strings.ToUpper(code))
}

// StateCode returns the two-letter state code when key is a state field.
func (k FieldKey) StateCode() (string, bool) {
	s := string(k)
	if !strings.HasPrefix(s, stateFieldPrefix) {
		return "", false
	}
	code := s[len(stateFieldPrefix):]
	if !stateCodeRE.MatchString(code) {
		return "", false
	}
	return code, true
}

// ValidStateCode reports whether code is a two-letter uppercase state code.
func ValidStateCode(code string) bool {
	return stateCodeRE.MatchString(code)
}

// Evidence is one source line backing an extracted value.
type Evidence struct {
	Line     string `json:"line"`
	Location string `json:"location,omitempty"`
}

// FieldValue is a monetary value with provenance and audit lineage. A non-nil
// value carries evidence unless its provenance is override, in which case it
// carries an override justification instead.
type FieldValue struct {
	Amount      money.Cents  `json:"amount_cents"`
	Evidence    []Evidence   `json:"evidence,omitempty"`
	Provenance  Provenance   `json:"provenance"`
	PriorAmount *money.Cents `json:"prior_amount_cents,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}

// Extracted builds a FieldValue straight from extraction evidence.
func Extracted(amount money.Cents, evidence ...Evidence) *FieldValue {
	return &FieldValue{
		Amount:     amount,
		Evidence:   evidence,
		Provenance: ProvenanceExtracted,
	}
}

// Healed returns an auto-corrected copy with the pre-heal amount preserved so
// the original value stays reachable through lineage.
func (f *FieldValue) Healed(amount money.Cents, reason string) *FieldValue {
	prior := f.Amount
	return &FieldValue{
		Amount:      amount,
		Evidence:    f.Evidence,
		Provenance:  ProvenanceAutoCorrected,
		PriorAmount: &prior,
		Reason:      reason,
	}
}

// Overridden returns an override copy recording the previous amount and the
// caller-supplied justification.
func (f *FieldValue) Overridden(amount money.Cents, reason string) *FieldValue {
	var prior *money.Cents
	if f != nil {
		p := f.Amount
		prior = &p
	}
	return &FieldValue{
		Amount:      amount,
		Provenance:  ProvenanceOverride,
		PriorAmount: prior,
		Reason:      reason,
	}
}

// Validate enforces the provenance invariant.
func (f *FieldValue) Validate() error {
	switch f.Provenance {
	case ProvenanceExtracted, ProvenanceAutoCorrected:
		if len(f.Evidence) == 0 {
			return NewValidationError("field value with provenance %q has no evidence", f.Provenance)
		}
	case ProvenanceOverride:
		if f.Reason == "" {
			return NewValidationError("override field value has no justification")
		}
	default:
		return NewValidationError("unknown provenance %q", f.Provenance)
	}
	return nil
}

// Clone returns a deep copy.
func (f *FieldValue) Clone() *FieldValue {
	if f == nil {
		return nil
	}
	c := *f
	c.Evidence = append([]Evidence(nil), f.Evidence...)
	if f.PriorAmount != nil {
		p := *f.PriorAmount
		c.PriorAmount = &p
	}
	return &c
}

// SortedFieldKeys returns keys in deterministic order: core fields first in
// reporting order, then remaining keys alphabetically.
func SortedFieldKeys(keys []FieldKey) []FieldKey {
	rank := make(map[FieldKey]int, len(keys))
	for i, k := range CoreFields() {
		rank[k] = i
	}
	out := append([]FieldKey(nil), keys...)
	sort.Slice(out, func(i, j int) bool {
		ri, iCore := rank[out[i]]
		rj, jCore := rank[out[j]]
		switch {
		case iCore && jCore:
			return ri < rj
		case iCore:
			return true
		case jCore:
			return false
		default:
			return out[i] < out[j]
		}
	})
	return out
}
