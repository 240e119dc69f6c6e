package main

import (
	"context"

	"github.com/ramuks22/project-paystub-analyzer/internal/config"
	"github.com/ramuks22/project-paystub-analyzer/internal/household"
	"github.com/ramuks22/project-paystub-analyzer/internal/money"
	"github.com/ramuks22/project-paystub-analyzer/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
}

func analysisOptions(c *config.Config) household.Options {
	return household.Options{
		Tolerance:         money.FromDollars(c.Analysis.ToleranceDollars),
		LargeDeviation:    money.FromDollars(c.Analysis.LargeDeviationDollars),
		MaxGapDays:        c.Analysis.MaxGapDays,
		OutlierMultiplier: c.Analysis.OutlierMultiplier,
		Concurrency:       c.Analysis.MaxConcurrentFilers,
	}
}

func loaderOptions(c *config.Config) household.LoaderOptions {
	return household.LoaderOptions{
		MaxPlausible: money.FromDollars(c.Analysis.MaxPlausibleDollars),
	}
}
