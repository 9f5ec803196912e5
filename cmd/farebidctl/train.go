package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"farebid/internal/modules/estimator"
	"farebid/internal/modules/model"
	"farebid/internal/modules/training"
)

func newTrainCmd() *cobra.Command {
	var src source
	var out, version string
	cfg := training.DefaultConfig()
	trainer := estimator.DefaultLogisticTrainer()

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit a model on labelled orders and write the artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := src.load(cmd.Context(), true)
			if err != nil {
				return err
			}
			cfg.Version = version
			cfg.Trainer = trainer
			res, err := training.Run(cmd.Context(), recs, cfg)
			if err != nil {
				return err
			}
			if err := model.Save(out, res.Model); err != nil {
				return err
			}
			log.Info().Str("path", out).Str("version", res.Model.Version()).Msg("model saved")

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "labelled rows: %d (skipped %d unlabelled)\n", res.Labelled, res.Unlabeled)
			fmt.Fprintf(w, "train  ROC-AUC: %.4f  accuracy: %.4f\n", res.Train.ROCAUC, res.Train.Accuracy)
			fmt.Fprintf(w, "test   ROC-AUC: %.4f  accuracy: %.4f\n", res.Test.ROCAUC, res.Test.Accuracy)
			fmt.Fprintf(w, "threshold: %.2f\n", res.Model.Threshold())
			return nil
		},
	}
	cmd.Flags().StringVar(&src.csvPath, "data", "", "Training CSV with an is_done column")
	cmd.Flags().StringVar(&src.dsn, "dsn", "", "Read labelled orders from Postgres instead of CSV")
	cmd.Flags().StringVar(&src.since, "since", "", "Only orders at or after this timestamp (with --dsn)")
	cmd.Flags().StringVar(&out, "out", "model.json", "Artifact output path")
	cmd.Flags().StringVar(&version, "version", "", "Model version label (default: UTC timestamp)")
	cmd.Flags().Float64Var(&cfg.TestFraction, "test-size", cfg.TestFraction, "Held-out fraction")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Split seed")
	cmd.Flags().Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "Decision threshold")
	cmd.Flags().IntVar(&trainer.Iterations, "iterations", trainer.Iterations, "Gradient descent iterations")
	cmd.Flags().Float64Var(&trainer.LearningRate, "learning-rate", trainer.LearningRate, "Gradient descent step")
	cmd.Flags().Float64Var(&trainer.L2, "l2", trainer.L2, "L2 regularisation strength")
	cmd.Flags().Float64Var(&trainer.PositiveWeight, "positive-weight", 0, "Positive class weight (0 = negatives/positives)")
	return cmd
}
