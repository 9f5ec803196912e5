package main

import (
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"farebid/internal/modules/dataset"
	"farebid/internal/modules/predictor"
)

func newPredictCmd() *cobra.Command {
	var modelPath, out string
	var src source

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a batch of orders and write is_done and probability per row",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(modelPath)
			if err != nil {
				return err
			}
			recs, err := src.load(cmd.Context(), false)
			if err != nil {
				return err
			}
			preds, err := predictor.New(m).PredictBatch(cmd.Context(), recs)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := dataset.WritePredictions(w, recs, preds); err != nil {
				return err
			}
			log.Info().Int("rows", len(preds)).Str("out", out).Msg("predictions written")
			return nil
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "model.json", "Model artifact")
	cmd.Flags().StringVar(&src.csvPath, "data", "", "Input CSV")
	cmd.Flags().StringVar(&src.dsn, "dsn", "", "Read orders from Postgres instead of CSV")
	cmd.Flags().StringVar(&src.since, "since", "", "Only orders at or after this timestamp (with --dsn)")
	cmd.Flags().IntVar(&src.limit, "limit", 0, "Maximum rows from Postgres")
	cmd.Flags().StringVar(&out, "out", "predictions.csv", "Output CSV (- for stdout)")
	return cmd
}
