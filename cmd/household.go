package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/household"
	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/report"
)

var (
	householdConfigPath string
	householdXLSXDir    string
)

var householdCmd = &cobra.Command{
	Use:   "household",
	Short: "Reconcile every filer in a household configuration",
	Long:  "Loads a household YAML config, runs each filer's pipeline concurrently, persists the run, and prints the composed result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		hh, err := household.LoadConfig(householdConfigPath)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		run, err := st.CreateRun(ctx, *hh)
		if err != nil {
			return err
		}
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			return err
		}

		baseDir := filepath.Dir(householdConfigPath)
		load := household.Loader(baseDir, loaderOptions(cfg))

		result, err := household.Run(ctx, hh, load, analysisOptions(cfg))
		if err != nil {
			if failErr := st.FailRun(ctx, run.ID, err.Error()); failErr != nil {
				zap.L().Error("household: fail run", zap.Error(failErr))
			}
			return eris.Wrap(err, "household run")
		}

		if err := st.UpdateRunResult(ctx, run.ID, result); err != nil {
			return err
		}
		if err := st.SavePackages(ctx, run.ID, result.Packages); err != nil {
			return err
		}

		if householdXLSXDir != "" {
			for _, pkg := range result.Packages {
				path := filepath.Join(householdXLSXDir, pkg.FilerID+".xlsx")
				if err := report.WritePackage(pkg, path); err != nil {
					return err
				}
			}
		}

		zap.L().Info("household run complete",
			zap.String("run_id", run.ID),
			zap.Int("packages", len(result.Packages)),
			zap.Int("failures", len(result.Failures)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	householdCmd.Flags().StringVar(&householdConfigPath, "config", "household.yaml", "household configuration file")
	householdCmd.Flags().StringVar(&householdXLSXDir, "xlsx-dir", "", "write per-filer review packets into this directory")
	rootCmd.AddCommand(householdCmd)
}
