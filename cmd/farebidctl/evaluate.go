package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"farebid/internal/modules/feature"
	"farebid/internal/modules/predictor"
	"farebid/internal/modules/training"
)

func newEvaluateCmd() *cobra.Command {
	var modelPath string
	var src source

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Report confusion matrix and quality metrics on labelled orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(modelPath)
			if err != nil {
				return err
			}
			all, err := src.load(cmd.Context(), true)
			if err != nil {
				return err
			}
			recs := make([]feature.OrderRecord, 0, len(all))
			labels := make([]int, 0, len(all))
			for _, r := range all {
				if y, ok := feature.Label(r); ok {
					recs = append(recs, r)
					labels = append(labels, y)
				}
			}
			if len(recs) == 0 {
				return training.ErrNoLabels
			}
			probs, err := predictor.New(m).Probabilities(cmd.Context(), recs)
			if err != nil {
				return err
			}
			rep, err := training.Evaluate(labels, probs, m.Threshold())
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "model.json", "Model artifact")
	cmd.Flags().StringVar(&src.csvPath, "data", "", "Labelled CSV")
	cmd.Flags().StringVar(&src.dsn, "dsn", "", "Read labelled orders from Postgres instead of CSV")
	cmd.Flags().StringVar(&src.since, "since", "", "Only orders at or after this timestamp (with --dsn)")
	cmd.Flags().IntVar(&src.limit, "limit", 0, "Maximum rows from Postgres")
	return cmd
}

func printReport(w io.Writer, r training.Report) error {
	c := r.Confusion
	_, err := fmt.Fprintf(w,
		"rows: %d  matches: %d  mismatches: %d\n"+
			"accuracy:  %.4f\nROC-AUC:   %.4f\nprecision: %.4f\nrecall:    %.4f\nF1:        %.4f\n\n"+
			"%-20s %15s %15s\n%-20s %15d %15d\n%-20s %15d %15d\n",
		r.Rows, c.TP+c.TN, c.FP+c.FN,
		r.Accuracy, r.ROCAUC, r.Precision, r.Recall, r.F1,
		"", "pred 0 (cancel)", "pred 1 (done)",
		"actual 0 (cancel)", c.TN, c.FP,
		"actual 1 (done)", c.FN, c.TP,
	)
	return err
}
