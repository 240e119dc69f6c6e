package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
	"github.com/ramuks22/project-paystub-analyzer/internal/w2agg"
)

var w2Year int

var w2Cmd = &cobra.Command{
	Use:   "w2 <file>...",
	Short: "Aggregate W-2 forms across employers",
	Long:  "Parses one or more W-2 files, deduplicates resubmissions, sums boxes across employers, and prints the aggregate.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records := make([]*model.W2Record, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read w2 %s", path)
			}
			rec, err := w2agg.ParseRecord(data, filepath.Base(path))
			if err != nil {
				return err
			}
			records = append(records, rec)
		}

		agg, issues, err := w2agg.Aggregate(w2Year, records)
		if err != nil {
			return err
		}

		for _, issue := range issues {
			zap.L().Warn("w2 aggregation issue",
				zap.String("code", string(issue.Code)),
				zap.String("message", issue.Message),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(agg)
	},
}

func init() {
	w2Cmd.Flags().IntVar(&w2Year, "year", 0, "tax year (required)")
	_ = w2Cmd.MarkFlagRequired("year")
	rootCmd.AddCommand(w2Cmd)
}
