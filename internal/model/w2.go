package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

// StateBox holds one state's wage and withholding boxes (16 and 17).
type StateBox struct {
	Wages money.Cents `json:"box16_wages_cents"`
	Tax   money.Cents `json:"box17_tax_cents"`
}

// W2Record is one authoritative year-end form.
type W2Record struct {
	TaxYear            int                 `json:"tax_year"`
	EmployerEIN        string              `json:"employer_ein,omitempty"`
	ControlNumber      string              `json:"control_number,omitempty"`
	Box1Wages          money.Cents         `json:"box1_wages_cents"`
	Box2FederalTax     money.Cents         `json:"box2_federal_tax_cents"`
	Box3SocialSecWages money.Cents         `json:"box3_social_security_wages_cents"`
	Box4SocialSecTax   money.Cents         `json:"box4_social_security_tax_cents"`
	Box5MedicareWages  money.Cents         `json:"box5_medicare_wages_cents"`
	Box6MedicareTax    money.Cents         `json:"box6_medicare_tax_cents"`
	StateBoxes         map[string]StateBox `json:"state_boxes,omitempty"`
	SourceLabel        string              `json:"source_label,omitempty"`
}

// Fingerprint is a stable content hash over the normalized box values and
// form metadata. Two forms with equal fingerprints are the same submission.
func (r *W2Record) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "y=%d|ein=%s|ctl=%s|1=%d|2=%d|3=%d|4=%d|5=%d|6=%d",
		r.TaxYear,
		strings.TrimSpace(r.EmployerEIN),
		strings.TrimSpace(r.ControlNumber),
		r.Box1Wages, r.Box2FederalTax,
		r.Box3SocialSecWages, r.Box4SocialSecTax,
		r.Box5MedicareWages, r.Box6MedicareTax,
	)
	states := make([]string, 0, len(r.StateBoxes))
	for code := range r.StateBoxes {
		states = append(states, code)
	}
	sort.Strings(states)
	for _, code := range states {
		sb := r.StateBoxes[code]
		fmt.Fprintf(&b, "|%s=%d,%d", code, sb.Wages, sb.Tax)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// StrongIdentity returns the (year, EIN, control number) identity when both
// identifiers were extracted cleanly.
func (r *W2Record) StrongIdentity() (string, bool) {
	ein := strings.TrimSpace(r.EmployerEIN)
	ctl := strings.TrimSpace(r.ControlNumber)
	if ein == "" || ctl == "" {
		return "", false
	}
	return fmt.Sprintf("%d/%s/%s", r.TaxYear, ein, ctl), true
}

// W2Source describes one form's contribution to the aggregate.
type W2Source struct {
	Label            string      `json:"label"`
	Fingerprint      string      `json:"fingerprint"`
	EmployerEIN      string      `json:"employer_ein,omitempty"`
	ControlNumber    string      `json:"control_number,omitempty"`
	Box1Contribution money.Cents `json:"box1_contribution_cents"`
}

// W2Aggregate is the merged view over all distinct forms for one filer.
// Sources is always present, even for a single form.
type W2Aggregate struct {
	TaxYear            int                 `json:"tax_year"`
	Box1Wages          money.Cents         `json:"box1_wages_cents"`
	Box2FederalTax     money.Cents         `json:"box2_federal_tax_cents"`
	Box3SocialSecWages money.Cents         `json:"box3_social_security_wages_cents"`
	Box4SocialSecTax   money.Cents         `json:"box4_social_security_tax_cents"`
	Box5MedicareWages  money.Cents         `json:"box5_medicare_wages_cents"`
	Box6MedicareTax    money.Cents         `json:"box6_medicare_tax_cents"`
	StateBoxes         map[string]StateBox `json:"state_boxes"`
	Sources            []W2Source          `json:"w2_sources"`
	Warnings           []string            `json:"processing_warnings,omitempty"`
}

// States returns the sorted state codes in the aggregate.
func (a *W2Aggregate) States() []string {
	states := make([]string, 0, len(a.StateBoxes))
	for code := range a.StateBoxes {
		states = append(states, code)
	}
	sort.Strings(states)
	return states
}
