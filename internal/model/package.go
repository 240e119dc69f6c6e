package model

import (
	"strings"

	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

// SchemaVersion identifies the filing package output contract.
const SchemaVersion = "2.0.0"

// Severity of a consistency issue. Only critical issues block readiness.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// IssueCode classifies a consistency finding.
type IssueCode string

const (
	IssueDuplicatePayDate         IssueCode = "duplicate_pay_date"
	IssueDuplicatePayDateResolved IssueCode = "duplicate_pay_date_resolved"
	IssueYTDDecrease              IssueCode = "ytd_decrease"
	IssueYTDMismatch              IssueCode = "ytd_calc_mismatch"
	IssueThisPeriodDelta          IssueCode = "this_period_vs_ytd_delta"
	IssueImplausibleFiltered      IssueCode = "implausible_amount_filtered"
	IssueSequenceGap              IssueCode = "sequence_gap"
	IssueOutlierEarnings          IssueCode = "outlier_earnings"
	IssueMissingFinalValues       IssueCode = "missing_final_values"
	IssueStateYTDOutlierCorrected IssueCode = "state_ytd_outlier_corrected"
	IssueWeakW2Duplicate          IssueCode = "weak_w2_duplicate"
)

// ConsistencyIssue is a reported finding. It is accumulated and returned,
// never raised as an error.
type ConsistencyIssue struct {
	Severity Severity  `json:"severity"`
	Code     IssueCode `json:"code"`
	Message  string    `json:"message"`
}

// CountBySeverity tallies issues per severity.
func CountBySeverity(issues []ConsistencyIssue) (critical, warning int) {
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			critical++
		case SeverityWarning:
			warning++
		}
	}
	return critical, warning
}

// ComparisonStatus is the outcome of one paystub-vs-W-2 field comparison.
type ComparisonStatus string

const (
	CompareMatch          ComparisonStatus = "match"
	CompareMismatch       ComparisonStatus = "mismatch"
	CompareMissingPaystub ComparisonStatus = "missing_paystub"
	CompareMissingW2      ComparisonStatus = "missing_w2"
	CompareInformational  ComparisonStatus = "informational"
)

// ParseComparisonStatus resolves an external status string case-insensitively.
func ParseComparisonStatus(s string) (ComparisonStatus, error) {
	switch ComparisonStatus(strings.ToLower(strings.TrimSpace(s))) {
	case CompareMatch:
		return CompareMatch, nil
	case CompareMismatch:
		return CompareMismatch, nil
	case CompareMissingPaystub:
		return CompareMissingPaystub, nil
	case CompareMissingW2:
		return CompareMissingW2, nil
	case CompareInformational:
		return CompareInformational, nil
	}
	return "", NewValidationError("unknown comparison status %q", s)
}

// ComparisonResult is one field-level cross-check against the W-2 aggregate.
type ComparisonResult struct {
	Field          string           `json:"field"`
	Paystub        *money.Cents     `json:"paystub_cents"`
	W2             *money.Cents     `json:"w2_cents"`
	Difference     *money.Cents     `json:"difference_cents"`
	Status         ComparisonStatus `json:"status"`
	ToleranceCents money.Cents      `json:"tolerance_cents"`
}

// CorrectionTrace records one applied override. Appended during correction
// application and never mutated afterward.
type CorrectionTrace struct {
	Field    FieldKey     `json:"field"`
	Previous *money.Cents `json:"previous_cents"`
	New      money.Cents  `json:"new_cents"`
	Source   string       `json:"source"`
	Reason   string       `json:"reason,omitempty"`
	Ordinal  int          `json:"ordinal"`
}

// Verdict buckets an authenticity score.
type Verdict string

const (
	VerdictHighConfidence   Verdict = "high_confidence"
	VerdictNeedsReview      Verdict = "needs_review"
	VerdictLikelyInaccurate Verdict = "likely_inaccurate"
)

// AuthenticityAssessment is a derived confidence summary for the package.
type AuthenticityAssessment struct {
	Score      int     `json:"score"`
	Verdict    Verdict `json:"verdict"`
	Disclaimer string  `json:"disclaimer"`
}

// FilingPackage is the top-level per-filer artifact. CorrectionTrace and
// ConsistencyIssues are always non-nil: absence is a contract violation,
// emptiness is the normal no-findings case.
type FilingPackage struct {
	SchemaVersion     string                   `json:"schema_version"`
	FilerID           string                   `json:"filer_id"`
	TaxYear           int                      `json:"tax_year"`
	Ledger            *Ledger                  `json:"ledger"`
	Summary           map[FieldKey]*FieldValue `json:"summary"`
	W2                *W2Aggregate             `json:"w2_aggregate,omitempty"`
	Comparisons       []ComparisonResult       `json:"comparisons"`
	ComparisonSummary map[ComparisonStatus]int `json:"comparison_summary"`
	ConsistencyIssues []ConsistencyIssue       `json:"consistency_issues"`
	CorrectionTrace   []CorrectionTrace        `json:"correction_trace"`
	Authenticity      AuthenticityAssessment   `json:"authenticity_assessment"`
	ReadyToFile       bool                     `json:"ready_to_file"`
}

// ValidateContract enforces the output invariants downstream consumers rely
// on: the trace and issue sequences must be present (possibly empty), and
// every ledger row must carry a verification entry for every field.
func (p *FilingPackage) ValidateContract() error {
	if p.CorrectionTrace == nil {
		return NewSchemaError("correction_trace is absent; the contract requires an empty sequence, not omission")
	}
	if p.ConsistencyIssues == nil {
		return NewSchemaError("consistency_issues is absent")
	}
	if p.Ledger == nil {
		return NewSchemaError("ledger is absent")
	}
	for i, row := range p.Ledger.Rows {
		if len(row.Verification) == 0 {
			return NewSchemaError("ledger row %d has no ytd_verification", i)
		}
	}
	return nil
}
