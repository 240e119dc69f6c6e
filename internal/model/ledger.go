package model

// VerificationStatus is the per-row, per-field outcome of YTD verification.
// Every ledger row carries one status for every verified field; the column is
// never left empty.
type VerificationStatus string

const (
	StatusVerified           VerificationStatus = "verified"
	StatusTruncationHealed   VerificationStatus = "ytd_truncation_healed"
	StatusPromotedZeroPeriod VerificationStatus = "promoted_zero_period"
	StatusThisPeriodRepaired VerificationStatus = "gross_this_period_autorepaired"
	StatusYTDMismatch        VerificationStatus = "ytd_mismatch"
	StatusNotEvaluated       VerificationStatus = "not_evaluated"
)

// FieldVerification is one field's verification outcome on a ledger row.
type FieldVerification struct {
	Status VerificationStatus `json:"status"`
	Note   string             `json:"note,omitempty"`
}

// LedgerRow pairs a canonical snapshot with its verification outcomes.
type LedgerRow struct {
	Snapshot     *PeriodSnapshot                `json:"snapshot"`
	Verification map[FieldKey]FieldVerification `json:"ytd_verification"`
}

// Ledger is the canonical, deduplicated, chronologically ordered sequence of
// per-period records for one filer and tax year.
type Ledger struct {
	FilerID        string             `json:"filer_id"`
	TaxYear        int                `json:"tax_year"`
	Rows           []*LedgerRow       `json:"rows"`
	RawCount       int                `json:"paystub_count_raw"`
	CanonicalCount int                `json:"paystub_count_canonical"`
	BuildNotes     []ConsistencyIssue `json:"build_notes"`
}

// Final returns the authoritative row for year-end values: maximum pay date,
// with the latest ledger position winning ties. Nil on an empty ledger.
func (l *Ledger) Final() *LedgerRow {
	var final *LedgerRow
	for _, row := range l.Rows {
		if final == nil || !row.Snapshot.PayDate.Before(final.Snapshot.PayDate) {
			final = row
		}
	}
	return final
}

// FieldKeys returns every field key present on any row, in deterministic order.
func (l *Ledger) FieldKeys() []FieldKey {
	seen := make(map[FieldKey]bool)
	var keys []FieldKey
	for _, row := range l.Rows {
		for k := range row.Snapshot.Pairs {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return SortedFieldKeys(keys)
}
