package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"farebid/internal/modules/bidding"
	"farebid/internal/modules/predictor"
)

func newOptimizeCmd() *cobra.Command {
	var modelPath string
	var src source
	var row, top int
	params := bidding.DefaultParams()

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search the bid grid for one order and print the candidate table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 0 {
				return fmt.Errorf("--top must be >= 0, got %d", top)
			}
			m, err := loadModel(modelPath)
			if err != nil {
				return err
			}
			recs, err := src.load(cmd.Context(), false)
			if err != nil {
				return err
			}
			if row < 0 || row >= len(recs) {
				return fmt.Errorf("--row %d out of range [0, %d)", row, len(recs))
			}
			order := recs[row]

			params.IncludeCandidates = true
			res, err := bidding.NewOptimizer(predictor.New(m), params).Optimize(cmd.Context(), order, params)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "order %s  start price %.2f  original bid %.2f\n\n", order.OrderID, order.PriceStart, order.PriceBid)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "bid\tprobability\texpected revenue\t")
			for _, c := range res.Candidates {
				fmt.Fprintf(tw, "%.2f\t%.4f\t%.2f\t\n", c.Bid, c.Probability, c.ExpectedRevenue)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			ranked := append([]bidding.Candidate(nil), res.Candidates...)
			sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].ExpectedRevenue > ranked[j].ExpectedRevenue })
			if top > len(ranked) {
				top = len(ranked)
			}
			fmt.Fprintf(w, "\ntop %d by expected revenue:\n", top)
			for i, c := range ranked[:top] {
				fmt.Fprintf(w, "%2d. bid %.2f  p=%.4f  revenue %.2f\n", i+1, c.Bid, c.Probability, c.ExpectedRevenue)
			}
			fmt.Fprintf(w, "\noptimal bid: %.2f  probability: %.4f  expected income: %.2f  (%d/%d feasible)\n",
				res.OptimalBid, res.Probability, res.ExpectedIncome, res.Feasible, res.Evaluated)
			return nil
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "model.json", "Model artifact")
	cmd.Flags().StringVar(&src.csvPath, "data", "", "Orders CSV")
	cmd.Flags().StringVar(&src.dsn, "dsn", "", "Read orders from Postgres instead of CSV")
	cmd.Flags().IntVar(&src.limit, "limit", 0, "Maximum rows from Postgres")
	cmd.Flags().IntVar(&row, "row", 0, "Zero-based row of the order to optimise")
	cmd.Flags().IntVar(&top, "top", 10, "Number of best candidates to list")
	cmd.Flags().Float64Var(&params.Multiplier, "multiplier", params.Multiplier, "Upper grid bound as a multiple of the start price")
	cmd.Flags().Float64Var(&params.ProbabilityCeiling, "ceiling", params.ProbabilityCeiling, "Maximum acceptance probability of the chosen bid")
	cmd.Flags().IntVar(&params.Steps, "steps", params.Steps, "Number of candidate bids")
	cmd.Flags().Float64Var(&params.Floor, "floor", 0, "Lowest candidate bid (default: start price)")
	return cmd
}
