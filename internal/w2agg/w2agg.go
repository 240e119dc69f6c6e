// Package w2agg merges year-end W-2 forms into a single authoritative
// aggregate for one filer, deduplicating resubmitted forms.
package w2agg

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

// RawW2 is the external extraction contract for one form. Amounts are in
// dollars as extracted; missing boxes default to zero. Accepts YAML and JSON
// documents.
type RawW2 struct {
	TaxYear        int        `yaml:"tax_year" json:"tax_year"`
	EmployerEIN    string     `yaml:"employer_ein" json:"employer_ein"`
	ControlNumber  string     `yaml:"control_number" json:"control_number"`
	Box1Wages      float64    `yaml:"box1_wages" json:"box1_wages"`
	Box2FederalTax float64    `yaml:"box2_federal_tax" json:"box2_federal_tax"`
	Box3SSWages    float64    `yaml:"box3_social_security_wages" json:"box3_social_security_wages"`
	Box4SSTax      float64    `yaml:"box4_social_security_tax" json:"box4_social_security_tax"`
	Box5MedWages   float64    `yaml:"box5_medicare_wages" json:"box5_medicare_wages"`
	Box6MedTax     float64    `yaml:"box6_medicare_tax" json:"box6_medicare_tax"`
	States         []RawState `yaml:"states" json:"states"`
}

// RawState is one state wage/withholding row (boxes 15-17).
type RawState struct {
	State string  `yaml:"state" json:"state"`
	Wages float64 `yaml:"box16_wages" json:"box16_wages"`
	Tax   float64 `yaml:"box17_tax" json:"box17_tax"`
}

// ParseRecord decodes and validates one W-2 document.
func ParseRecord(data []byte, sourceLabel string) (*model.W2Record, error) {
	var raw RawW2
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "w2agg: parse %s", sourceLabel)
	}
	return Record(raw, sourceLabel)
}

// Record converts a raw form into the internal record, validating box signs
// and state codes.
func Record(raw RawW2, sourceLabel string) (*model.W2Record, error) {
	if raw.TaxYear == 0 {
		return nil, model.NewValidationError("w2 %s has no tax_year", sourceLabel)
	}
	boxes := map[string]float64{
		"box1": raw.Box1Wages, "box2": raw.Box2FederalTax,
		"box3": raw.Box3SSWages, "box4": raw.Box4SSTax,
		"box5": raw.Box5MedWages, "box6": raw.Box6MedTax,
	}
	for name, v := range boxes {
		if v < 0 {
			return nil, model.NewValidationError("w2 %s has negative %s amount %.2f", sourceLabel, name, v)
		}
	}

	rec := &model.W2Record{
		TaxYear:            raw.TaxYear,
		EmployerEIN:        strings.TrimSpace(raw.EmployerEIN),
		ControlNumber:      strings.TrimSpace(raw.ControlNumber),
		Box1Wages:          money.FromDollars(raw.Box1Wages),
		Box2FederalTax:     money.FromDollars(raw.Box2FederalTax),
		Box3SocialSecWages: money.FromDollars(raw.Box3SSWages),
		Box4SocialSecTax:   money.FromDollars(raw.Box4SSTax),
		Box5MedicareWages:  money.FromDollars(raw.Box5MedWages),
		Box6MedicareTax:    money.FromDollars(raw.Box6MedTax),
		SourceLabel:        sourceLabel,
	}
	for _, st := range raw.States {
		code := strings.ToUpper(strings.TrimSpace(st.State))
		if !model.ValidStateCode(code) {
			return nil, model.NewValidationError("w2 %s has invalid state code %q", sourceLabel, st.State)
		}
		if st.Wages < 0 || st.Tax < 0 {
			return nil, model.NewValidationError("w2 %s has negative amounts for state %s", sourceLabel, code)
		}
		if rec.StateBoxes == nil {
			rec.StateBoxes = make(map[string]model.StateBox)
		}
		rec.StateBoxes[code] = model.StateBox{
			Wages: money.FromDollars(st.Wages),
			Tax:   money.FromDollars(st.Tax),
		}
	}
	return rec, nil
}

// Aggregate merges the forms for one filer and tax year. Identical forms
// (equal fingerprints) collapse idempotently with a warning; two distinct
// forms claiming the same strong identity are contradictory and fail hard.
func Aggregate(taxYear int, records []*model.W2Record) (*model.W2Aggregate, []model.ConsistencyIssue, error) {
	agg := &model.W2Aggregate{
		TaxYear:    taxYear,
		StateBoxes: make(map[string]model.StateBox),
		Sources:    []model.W2Source{},
	}
	issues := []model.ConsistencyIssue{}

	seenPrints := make(map[string]string)
	seenStrong := make(map[string]string)

	for _, rec := range records {
		if rec.TaxYear != taxYear {
			return nil, nil, model.NewValidationError(
				"w2 %s is for tax year %d, expected %d", rec.SourceLabel, rec.TaxYear, taxYear)
		}

		fp := rec.Fingerprint()
		if firstLabel, dup := seenPrints[fp]; dup {
			msg := fmt.Sprintf("w2 %s duplicates %s (fingerprint %s); counted once", rec.SourceLabel, firstLabel, fp)
			agg.Warnings = append(agg.Warnings, msg)
			issues = append(issues, model.ConsistencyIssue{
				Severity: model.SeverityWarning,
				Code:     model.IssueWeakW2Duplicate,
				Message:  msg,
			})
			zap.L().Warn("w2agg: duplicate form skipped",
				zap.String("label", rec.SourceLabel),
				zap.String("fingerprint", fp),
			)
			continue
		}

		if id, ok := rec.StrongIdentity(); ok {
			if firstLabel, dup := seenStrong[id]; dup {
				return nil, nil, model.NewValidationError(
					"w2 %s and %s claim the same employer/control identity %s with different box values",
					rec.SourceLabel, firstLabel, id)
			}
			seenStrong[id] = rec.SourceLabel
		}
		seenPrints[fp] = rec.SourceLabel

		agg.Box1Wages += rec.Box1Wages
		agg.Box2FederalTax += rec.Box2FederalTax
		agg.Box3SocialSecWages += rec.Box3SocialSecWages
		agg.Box4SocialSecTax += rec.Box4SocialSecTax
		agg.Box5MedicareWages += rec.Box5MedicareWages
		agg.Box6MedicareTax += rec.Box6MedicareTax
		for code, sb := range rec.StateBoxes {
			cur := agg.StateBoxes[code]
			cur.Wages += sb.Wages
			cur.Tax += sb.Tax
			agg.StateBoxes[code] = cur
		}
		agg.Sources = append(agg.Sources, model.W2Source{
			Label:            rec.SourceLabel,
			Fingerprint:      fp,
			EmployerEIN:      rec.EmployerEIN,
			ControlNumber:    rec.ControlNumber,
			Box1Contribution: rec.Box1Wages,
		})
	}
	return agg, issues, nil
}
