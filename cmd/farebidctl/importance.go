package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"farebid/internal/modules/estimator"
)

func newImportanceCmd() *cobra.Command {
	var modelPath string
	var top int

	cmd := &cobra.Command{
		Use:   "importance",
		Short: "List features by absolute standardised coefficient",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(modelPath)
			if err != nil {
				return err
			}
			lr, ok := m.Classifier().(*estimator.Logistic)
			if !ok {
				return fmt.Errorf("importance needs a logistic model, got %T", m.Classifier())
			}
			ws := lr.Importance(m.Features())
			if top > 0 && top < len(ws) {
				ws = ws[:top]
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "rank\tfeature\tweight")
			for i, w := range ws {
				fmt.Fprintf(tw, "%d\t%s\t%+.4f\n", i+1, w.Name, w.Weight)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "model.json", "Model artifact")
	cmd.Flags().IntVar(&top, "top", 20, "Number of features to list (0 = all)")
	return cmd
}
