package ledger

import (
	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
)

// wageBases have no per-paystub line item of their own; they are seeded at
// zero so W-2 boxes 3 and 5 always have a summary slot a correction can
// target.
var wageBases = []model.FieldKey{
	model.FieldSocialSecurityWages,
	model.FieldMedicareWages,
}

// Summary reduces a verified ledger to the filer's year-end figures: the YTD
// values of the final pay period, cloned so later corrections never reach back
// into ledger rows.
func Summary(led *model.Ledger) map[model.FieldKey]*model.FieldValue {
	summary := make(map[model.FieldKey]*model.FieldValue)
	final := led.Final()
	if final == nil {
		return summary
	}

	for _, key := range final.Snapshot.FieldKeys() {
		pair := final.Snapshot.Pair(key)
		if pair == nil || pair.YTD == nil {
			continue
		}
		summary[key] = pair.YTD.Clone()
	}

	for _, key := range wageBases {
		if _, ok := summary[key]; ok {
			continue
		}
		summary[key] = model.Extracted(0, model.Evidence{
			Line:     "no wage-base line item on statements; initialized at zero",
			Location: final.Snapshot.Source,
		})
		zap.L().Debug("ledger: wage base seeded",
			zap.String("filer", led.FilerID),
			zap.String("field", string(key)),
		)
	}
	return summary
}
