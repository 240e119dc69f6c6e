// Package household orchestrates the full per-filer pipeline and composes
// the multi-filer result. Filers are processed in isolation: one filer's
// inputs and failures never touch another's numbers.
package household

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/compare"
	"github.com/ramuks22/project-paystub-analyzer/internal/consistency"
	"github.com/ramuks22/project-paystub-analyzer/internal/corrections"
	"github.com/ramuks22/project-paystub-analyzer/internal/ledger"
	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
	"github.com/ramuks22/project-paystub-analyzer/internal/readiness"
	"github.com/ramuks22/project-paystub-analyzer/internal/verify"
	"github.com/ramuks22/project-paystub-analyzer/internal/w2agg"
)

// DefaultConcurrency bounds parallel filer pipelines.
const DefaultConcurrency = 4

// Options tunes the whole pipeline.
type Options struct {
	// Tolerance is the inclusive cent tolerance for verification and
	// W-2 comparison. Zero means one cent.
	Tolerance money.Cents
	// LargeDeviation escalates unexplained YTD mismatches to critical.
	LargeDeviation money.Cents
	// MaxGapDays flags pay-date gaps longer than this.
	MaxGapDays int
	// OutlierMultiplier flags per-period gross this far above the median.
	OutlierMultiplier int
	// Concurrency bounds parallel filer pipelines. Zero means
	// DefaultConcurrency.
	Concurrency int
}

func (o Options) tolerance() money.Cents {
	if o.Tolerance > 0 {
		return o.Tolerance
	}
	return compare.DefaultTolerance
}

func (o Options) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return DefaultConcurrency
}

// FilerInput is one filer's fully loaded source material.
type FilerInput struct {
	Filer       model.Filer
	Snapshots   []*model.PeriodSnapshot
	W2s         []*model.W2Record
	Corrections *corrections.Set
}

// BuildPackage runs the complete single-filer pipeline: ledger construction,
// state outlier repair, YTD verification, consistency scan, summary
// reduction, corrections, W-2 aggregation, comparison, and the readiness
// verdict.
func BuildPackage(taxYear int, in FilerInput, opts Options) (*model.FilingPackage, error) {
	log := zap.L().With(zap.String("filer", in.Filer.ID), zap.Int("tax_year", taxYear))

	// Statements from other years never enter the ledger.
	var inYear []*model.PeriodSnapshot
	for _, snap := range in.Snapshots {
		if snap.PayDate.Year() != taxYear {
			log.Warn("household: paystub outside tax year skipped",
				zap.String("source", snap.Source),
				zap.String("pay_date", snap.PayDate.Format("2006-01-02")),
			)
			continue
		}
		inYear = append(inYear, snap)
	}

	led, err := ledger.Build(in.Filer.ID, taxYear, inYear)
	if err != nil {
		return nil, err
	}

	issues := []model.ConsistencyIssue{}
	issues = append(issues, led.BuildNotes...)
	issues = append(issues, verify.RepairStateOutliers(led)...)
	issues = append(issues, verify.Run(led, verify.Options{
		Tolerance:      opts.tolerance(),
		LargeDeviation: opts.LargeDeviation,
	})...)
	issues = append(issues, consistency.Scan(led, consistency.Options{
		Tolerance:         opts.tolerance(),
		MaxGapDays:        opts.MaxGapDays,
		OutlierMultiplier: opts.OutlierMultiplier,
	})...)

	summary := ledger.Summary(led)
	trace := corrections.Apply(summary, in.Corrections)

	var agg *model.W2Aggregate
	if len(in.W2s) > 0 {
		var w2Issues []model.ConsistencyIssue
		agg, w2Issues, err = w2agg.Aggregate(taxYear, in.W2s)
		if err != nil {
			return nil, err
		}
		issues = append(issues, w2Issues...)
	}

	comparisons, tally := compare.Run(summary, agg, opts.tolerance())
	authenticity, ready := readiness.Assess(issues, tally)

	pkg := &model.FilingPackage{
		SchemaVersion:     model.SchemaVersion,
		FilerID:           in.Filer.ID,
		TaxYear:           taxYear,
		Ledger:            led,
		Summary:           summary,
		W2:                agg,
		Comparisons:       comparisons,
		ComparisonSummary: tally,
		ConsistencyIssues: issues,
		CorrectionTrace:   trace,
		Authenticity:      authenticity,
		ReadyToFile:       ready,
	}
	if err := pkg.ValidateContract(); err != nil {
		return nil, err
	}
	log.Info("household: filing package built",
		zap.Int("paystubs", led.CanonicalCount),
		zap.Int("issues", len(issues)),
		zap.Bool("ready_to_file", ready),
	)
	return pkg, nil
}

// Run processes every configured filer concurrently and composes the
// household result. A filer whose pipeline fails becomes a FilerFailure; the
// remaining filers still complete. Run fails outright only on an invalid
// configuration or a cancelled context.
func Run(ctx context.Context, cfg *model.HouseholdConfig, load func(model.Filer) (FilerInput, error), opts Options) (*model.HouseholdResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	packages := make([]*model.FilingPackage, len(cfg.Filers))
	var mu sync.Mutex
	var failures []model.FilerFailure

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())

	for i, filer := range cfg.Filers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pkg, err := process(cfg.TaxYear, filer, load, opts)
			if err != nil {
				mu.Lock()
				failures = append(failures, model.FilerFailure{FilerID: filer.ID, Error: err.Error()})
				mu.Unlock()
				zap.L().Error("household: filer pipeline failed",
					zap.String("filer", filer.ID),
					zap.Error(err),
				)
				return nil
			}
			packages[i] = pkg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &model.HouseholdResult{Config: *cfg, Failures: failures}
	for _, pkg := range packages {
		if pkg != nil {
			result.Packages = append(result.Packages, pkg)
		}
	}
	return result, nil
}

func process(taxYear int, filer model.Filer, load func(model.Filer) (FilerInput, error), opts Options) (*model.FilingPackage, error) {
	in, err := load(filer)
	if err != nil {
		return nil, err
	}
	in.Filer = filer
	return BuildPackage(taxYear, in, opts)
}
