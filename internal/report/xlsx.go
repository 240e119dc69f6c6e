// Package report renders a filing package into a reviewable XLSX packet.
package report

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
)

// WritePackage writes the full review packet for one filer: overview,
// year-end summary, the verified ledger in long form, W-2 comparisons, and
// every consistency issue.
func WritePackage(pkg *model.FilingPackage, path string) error {
	f := xlsx.NewFile()

	if err := writeOverview(f, pkg); err != nil {
		return err
	}
	if err := writeSummary(f, pkg); err != nil {
		return err
	}
	if err := writeLedger(f, pkg); err != nil {
		return err
	}
	if err := writeComparisons(f, pkg); err != nil {
		return err
	}
	if err := writeIssues(f, pkg); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	zap.L().Info("report: packet written",
		zap.String("filer", pkg.FilerID),
		zap.String("path", path),
	)
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func writeOverview(f *xlsx.File, pkg *model.FilingPackage) error {
	sheet, err := f.AddSheet("overview")
	if err != nil {
		return eris.Wrap(err, "report: add overview sheet")
	}
	addRow(sheet, "filer", pkg.FilerID)
	addRow(sheet, "tax_year", strconv.Itoa(pkg.TaxYear))
	addRow(sheet, "schema_version", pkg.SchemaVersion)
	addRow(sheet, "paystubs_raw", strconv.Itoa(pkg.Ledger.RawCount))
	addRow(sheet, "paystubs_canonical", strconv.Itoa(pkg.Ledger.CanonicalCount))
	addRow(sheet, "authenticity_score", strconv.Itoa(pkg.Authenticity.Score))
	addRow(sheet, "verdict", string(pkg.Authenticity.Verdict))
	addRow(sheet, "ready_to_file", strconv.FormatBool(pkg.ReadyToFile))
	addRow(sheet, "disclaimer", pkg.Authenticity.Disclaimer)
	return nil
}

func writeSummary(f *xlsx.File, pkg *model.FilingPackage) error {
	sheet, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	addRow(sheet, "field", "amount", "provenance", "prior_amount", "reason")

	var keys []model.FieldKey
	for key := range pkg.Summary {
		keys = append(keys, key)
	}
	for _, key := range model.SortedFieldKeys(keys) {
		fv := pkg.Summary[key]
		addRow(sheet,
			string(key),
			fv.Amount.String(),
			string(fv.Provenance),
			money.Format(fv.PriorAmount),
			fv.Reason,
		)
	}
	return nil
}

func writeLedger(f *xlsx.File, pkg *model.FilingPackage) error {
	sheet, err := f.AddSheet("ledger")
	if err != nil {
		return eris.Wrap(err, "report: add ledger sheet")
	}
	addRow(sheet, "pay_date", "source", "field", "this_period", "ytd", "provenance", "status", "note")

	for _, row := range pkg.Ledger.Rows {
		date := row.Snapshot.PayDate.Format("2006-01-02")
		for _, key := range row.Snapshot.FieldKeys() {
			pair := row.Snapshot.Pair(key)
			var thisPeriod, ytd, provenance string
			if pair.ThisPeriod != nil {
				thisPeriod = pair.ThisPeriod.Amount.String()
			}
			if pair.YTD != nil {
				ytd = pair.YTD.Amount.String()
				provenance = string(pair.YTD.Provenance)
			}
			v := row.Verification[key]
			addRow(sheet, date, row.Snapshot.Source, string(key),
				thisPeriod, ytd, provenance, string(v.Status), v.Note)
		}
	}
	return nil
}

func writeComparisons(f *xlsx.File, pkg *model.FilingPackage) error {
	sheet, err := f.AddSheet("w2_comparison")
	if err != nil {
		return eris.Wrap(err, "report: add comparison sheet")
	}
	addRow(sheet, "field", "paystub", "w2", "difference", "status", "tolerance")

	for _, c := range pkg.Comparisons {
		addRow(sheet,
			c.Field,
			money.Format(c.Paystub),
			money.Format(c.W2),
			money.Format(c.Difference),
			string(c.Status),
			c.ToleranceCents.String(),
		)
	}
	return nil
}

func writeIssues(f *xlsx.File, pkg *model.FilingPackage) error {
	sheet, err := f.AddSheet("issues")
	if err != nil {
		return eris.Wrap(err, "report: add issues sheet")
	}
	addRow(sheet, "severity", "code", "message")

	for _, issue := range pkg.ConsistencyIssues {
		addRow(sheet, string(issue.Severity), string(issue.Code), issue.Message)
	}
	for _, trace := range pkg.CorrectionTrace {
		addRow(sheet, "info", "correction_applied",
			string(trace.Field)+" set to "+trace.New.String()+" ("+trace.Reason+")")
	}
	return nil
}
