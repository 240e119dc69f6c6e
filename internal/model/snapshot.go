package model

import (
	"sort"
	"time"
)

// AnomalyCode classifies a non-fatal finding recorded during normalization.
type AnomalyCode string

const (
	AnomalyImplausibleAmountFiltered AnomalyCode = "implausible_amount_filtered"
	AnomalyNegativeAmountNormalized  AnomalyCode = "negative_amount_normalized"
)

// Anomaly is a normalization finding attached to a snapshot for audit.
type Anomaly struct {
	Code     AnomalyCode `json:"code"`
	Message  string      `json:"message"`
	Evidence string      `json:"evidence,omitempty"`
}

// AmountPair holds the this-period and year-to-date values for one field.
// Either side may be nil when the statement line did not yield it.
type AmountPair struct {
	ThisPeriod *FieldValue `json:"this_period,omitempty"`
	YTD        *FieldValue `json:"ytd,omitempty"`
}

// Clone returns a deep copy.
func (p *AmountPair) Clone() *AmountPair {
	if p == nil {
		return nil
	}
	return &AmountPair{
		ThisPeriod: p.ThisPeriod.Clone(),
		YTD:        p.YTD.Clone(),
	}
}

// PeriodSnapshot is one pay date's canonicalized record. Identity key is the
// pay date. Snapshots are immutable after normalization except for auto-heal
// replacement, which preserves the pre-heal amount through FieldValue lineage.
type PeriodSnapshot struct {
	PayDate   time.Time                `json:"pay_date"`
	Source    string                   `json:"source"`
	Pairs     map[FieldKey]*AmountPair `json:"fields"`
	Anomalies []Anomaly                `json:"anomalies,omitempty"`
}

// Pair returns the pair for key, or nil.
func (s *PeriodSnapshot) Pair(key FieldKey) *AmountPair {
	return s.Pairs[key]
}

// FieldKeys returns all populated field keys in deterministic order.
func (s *PeriodSnapshot) FieldKeys() []FieldKey {
	keys := make([]FieldKey, 0, len(s.Pairs))
	for k := range s.Pairs {
		keys = append(keys, k)
	}
	return SortedFieldKeys(keys)
}

// States returns the sorted state codes present on this snapshot.
func (s *PeriodSnapshot) States() []string {
	var states []string
	for k := range s.Pairs {
		if code, ok := k.StateCode(); ok {
			states = append(states, code)
		}
	}
	sort.Strings(states)
	return states
}

// Completeness counts the non-nil field values on the snapshot. Used by the
// ledger builder to pick the better of two same-date submissions.
func (s *PeriodSnapshot) Completeness() int {
	n := 0
	for _, pair := range s.Pairs {
		if pair == nil {
			continue
		}
		if pair.ThisPeriod != nil {
			n++
		}
		if pair.YTD != nil {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (s *PeriodSnapshot) Clone() *PeriodSnapshot {
	pairs := make(map[FieldKey]*AmountPair, len(s.Pairs))
	for k, v := range s.Pairs {
		pairs[k] = v.Clone()
	}
	return &PeriodSnapshot{
		PayDate:   s.PayDate,
		Source:    s.Source,
		Pairs:     pairs,
		Anomalies: append([]Anomaly(nil), s.Anomalies...),
	}
}
