package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/household"
	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/report"
)

var (
	analyzeYear        int
	analyzeFilerID     string
	analyzePaystubDir  string
	analyzeW2Files     []string
	analyzeCorrections string
	analyzeXLSX        string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Reconcile a single filer's paystubs against their W-2s",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		filer := model.Filer{
			ID:              analyzeFilerID,
			Role:            model.RolePrimary,
			PaystubDir:      analyzePaystubDir,
			W2Files:         analyzeW2Files,
			CorrectionsFile: analyzeCorrections,
		}
		load := household.Loader("", loaderOptions(cfg))
		in, err := load(filer)
		if err != nil {
			return err
		}

		pkg, err := household.BuildPackage(analyzeYear, in, analysisOptions(cfg))
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		if analyzeXLSX != "" {
			if err := report.WritePackage(pkg, analyzeXLSX); err != nil {
				return err
			}
		}

		zap.L().Info("analysis complete",
			zap.String("filer", pkg.FilerID),
			zap.Int("score", pkg.Authenticity.Score),
			zap.String("verdict", string(pkg.Authenticity.Verdict)),
			zap.Bool("ready_to_file", pkg.ReadyToFile),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pkg)
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeYear, "year", 0, "tax year (required)")
	analyzeCmd.Flags().StringVar(&analyzeFilerID, "filer", "primary", "filer identifier")
	analyzeCmd.Flags().StringVar(&analyzePaystubDir, "paystubs", "", "directory of paystub snapshot JSON files (required)")
	analyzeCmd.Flags().StringArrayVar(&analyzeW2Files, "w2", nil, "W-2 file (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeCorrections, "corrections", "", "manual corrections YAML file")
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "write the review packet to this XLSX path")
	_ = analyzeCmd.MarkFlagRequired("year")
	_ = analyzeCmd.MarkFlagRequired("paystubs")
	rootCmd.AddCommand(analyzeCmd)
}
