// Package ledger merges normalized snapshots into the canonical chronological
// ledger for one filer and tax year.
package ledger

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
)

// Build sorts snapshots by pay date, deduplicates same-date submissions, and
// returns the canonical ledger. Fails with a ValidationError when the filer
// has no snapshots at all.
func Build(filerID string, taxYear int, snapshots []*model.PeriodSnapshot) (*model.Ledger, error) {
	if len(snapshots) == 0 {
		return nil, model.NewValidationError("filer %q has no paystub snapshots for %d", filerID, taxYear)
	}

	led := &model.Ledger{
		FilerID:    filerID,
		TaxYear:    taxYear,
		RawCount:   len(snapshots),
		BuildNotes: []model.ConsistencyIssue{},
	}

	type group struct {
		best      *model.PeriodSnapshot
		bestIdx   int
		displaced []string
	}
	groups := make(map[string]*group)
	var order []string

	for idx, snap := range snapshots {
		key := snap.PayDate.Format("2006-01-02")
		g, ok := groups[key]
		if !ok {
			groups[key] = &group{best: snap, bestIdx: idx}
			order = append(order, key)
			continue
		}
		// Higher completeness wins; ties keep the later-inserted snapshot.
		if snap.Completeness() >= g.best.Completeness() {
			g.displaced = append(g.displaced, g.best.Source)
			g.best = snap
			g.bestIdx = idx
		} else {
			g.displaced = append(g.displaced, snap.Source)
		}
	}

	sort.Strings(order)
	for _, key := range order {
		g := groups[key]
		if len(g.displaced) > 0 {
			led.BuildNotes = append(led.BuildNotes, model.ConsistencyIssue{
				Severity: model.SeverityWarning,
				Code:     model.IssueDuplicatePayDateResolved,
				Message: fmt.Sprintf("%d paystubs share pay date %s; kept %q, ignored %v",
					len(g.displaced)+1, key, g.best.Source, g.displaced),
			})
			zap.L().Info("ledger: duplicate pay date resolved",
				zap.String("filer", filerID),
				zap.String("pay_date", key),
				zap.String("kept", g.best.Source),
				zap.Strings("ignored", g.displaced),
			)
		}
		led.Rows = append(led.Rows, &model.LedgerRow{
			Snapshot:     g.best,
			Verification: make(map[model.FieldKey]model.FieldVerification),
		})
	}

	led.CanonicalCount = len(led.Rows)
	return led, nil
}
