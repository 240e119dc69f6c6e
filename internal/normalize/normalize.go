// Package normalize canonicalizes externally extracted per-period records
// into the internal value model. Extraction and OCR happen upstream; this
// package only accepts their structured output.
package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

// DefaultMaxPlausible caps a single extracted amount. Values above it are
// almost always OCR noise (merged columns, dropped decimal points).
const DefaultMaxPlausible = money.Cents(100_000_000) // $1,000,000.00

// Options tunes normalization behavior.
type Options struct {
	// MaxPlausible filters amounts above this cap into anomalies.
	// Zero means DefaultMaxPlausible.
	MaxPlausible money.Cents
}

func (o Options) maxPlausible() money.Cents {
	if o.MaxPlausible > 0 {
		return o.MaxPlausible
	}
	return DefaultMaxPlausible
}

// RawEvidence is one evidence line from the extraction collaborator.
type RawEvidence struct {
	Line     string `json:"line"`
	Location string `json:"location,omitempty"`
}

// RawAmount is an extracted amount with its backing evidence.
type RawAmount struct {
	Amount   *float64      `json:"amount"`
	Evidence []RawEvidence `json:"evidence"`
}

// RawPair is the extracted this-period/YTD pair for one field.
type RawPair struct {
	ThisPeriod *RawAmount `json:"this_period,omitempty"`
	YTD        *RawAmount `json:"ytd,omitempty"`
}

// RawSnapshot is the extraction collaborator's output contract for one
// pay statement.
type RawSnapshot struct {
	Source         string             `json:"source"`
	PayDate        string             `json:"pay_date"`
	Fields         map[string]RawPair `json:"fields"`
	StateIncomeTax map[string]RawPair `json:"state_income_tax,omitempty"`
	Flags          []string           `json:"flags,omitempty"`
}

// ParseSnapshot decodes and normalizes a single raw snapshot document.
func ParseSnapshot(data []byte, opts Options) (*model.PeriodSnapshot, error) {
	var raw RawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "normalize: decode snapshot")
	}
	return Snapshot(raw, opts)
}

// Snapshot canonicalizes one raw record: parses the pay date, validates field
// and state keys, converts amounts to cents, and filters implausible tokens
// into audit anomalies.
func Snapshot(raw RawSnapshot, opts Options) (*model.PeriodSnapshot, error) {
	if raw.PayDate == "" {
		return nil, model.NewValidationError("snapshot %q has no pay date", raw.Source)
	}
	payDate, err := time.Parse("2006-01-02", raw.PayDate)
	if err != nil {
		return nil, model.NewValidationError("snapshot %q has invalid pay date %q", raw.Source, raw.PayDate)
	}

	snap := &model.PeriodSnapshot{
		PayDate: payDate,
		Source:  raw.Source,
		Pairs:   make(map[model.FieldKey]*model.AmountPair),
	}

	for name, pair := range raw.Fields {
		key := model.FieldKey(name)
		if !model.IsCoreField(key) {
			return nil, model.NewValidationError("snapshot %q has unknown field %q", raw.Source, name)
		}
		normalized, err := normalizePair(snap, key, pair, opts)
		if err != nil {
			return nil, err
		}
		if normalized != nil {
			snap.Pairs[key] = normalized
		}
	}

	for code, pair := range raw.StateIncomeTax {
		upper := strings.ToUpper(strings.TrimSpace(code))
		if !model.ValidStateCode(upper) {
			return nil, model.NewValidationError("snapshot %q has invalid state code %q", raw.Source, code)
		}
		key := model.StateField(upper)
		normalized, err := normalizePair(snap, key, pair, opts)
		if err != nil {
			return nil, err
		}
		if normalized != nil {
			snap.Pairs[key] = normalized
		}
	}

	for _, flag := range raw.Flags {
		if flag == string(model.AnomalyImplausibleAmountFiltered) {
			snap.Anomalies = append(snap.Anomalies, model.Anomaly{
				Code:     model.AnomalyImplausibleAmountFiltered,
				Message:  "extractor filtered an implausible money token",
				Evidence: raw.Source,
			})
		}
	}

	if len(snap.Anomalies) > 0 {
		zap.L().Debug("normalize: snapshot carries anomalies",
			zap.String("source", raw.Source),
			zap.Int("count", len(snap.Anomalies)),
		)
	}
	return snap, nil
}

func normalizePair(snap *model.PeriodSnapshot, key model.FieldKey, pair RawPair, opts Options) (*model.AmountPair, error) {
	this, err := normalizeAmount(snap, key, "this_period", pair.ThisPeriod, opts)
	if err != nil {
		return nil, err
	}
	ytd, err := normalizeAmount(snap, key, "ytd", pair.YTD, opts)
	if err != nil {
		return nil, err
	}
	if this == nil && ytd == nil {
		return nil, nil
	}
	return &model.AmountPair{ThisPeriod: this, YTD: ytd}, nil
}

func normalizeAmount(snap *model.PeriodSnapshot, key model.FieldKey, side string, raw *RawAmount, opts Options) (*model.FieldValue, error) {
	if raw == nil || raw.Amount == nil {
		return nil, nil
	}
	if len(raw.Evidence) == 0 {
		return nil, model.NewValidationError(
			"snapshot %q field %s.%s has a value but no evidence", snap.Source, key, side)
	}

	amount := money.FromDollars(*raw.Amount)
	if amount < 0 {
		snap.Anomalies = append(snap.Anomalies, model.Anomaly{
			Code:     model.AnomalyNegativeAmountNormalized,
			Message:  string(key) + " " + side + " was negative; absolute value used",
			Evidence: raw.Evidence[0].Line,
		})
		amount = amount.Abs()
	}
	if amount > opts.maxPlausible() {
		snap.Anomalies = append(snap.Anomalies, model.Anomaly{
			Code:     model.AnomalyImplausibleAmountFiltered,
			Message:  string(key) + " " + side + " value " + amount.String() + " exceeds the plausibility cap",
			Evidence: raw.Evidence[0].Line,
		})
		return nil, nil
	}

	evidence := make([]model.Evidence, 0, len(raw.Evidence))
	for _, ev := range raw.Evidence {
		evidence = append(evidence, model.Evidence{Line: ev.Line, Location: ev.Location})
	}
	fv := model.Extracted(amount, evidence...)
	if err := fv.Validate(); err != nil {
		return nil, err
	}
	return fv, nil
}
