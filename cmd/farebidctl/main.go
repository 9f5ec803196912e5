// README: farebidctl: offline training, batch scoring, evaluation and bid reports.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"farebid/internal/infra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var level string
	var pretty bool

	root := &cobra.Command{
		Use:           "farebidctl",
		Short:         "Train and inspect ride bid acceptance models",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			infra.NewLogger(level, pretty)
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", envOrDefault("FAREBID_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	root.PersistentFlags().BoolVar(&pretty, "pretty", true, "Human-readable console logs")

	root.AddCommand(
		newTrainCmd(),
		newPredictCmd(),
		newEvaluateCmd(),
		newOptimizeCmd(),
		newImportanceCmd(),
		newDBCmd(),
		newBenchCmd(),
	)
	log.Debug().Msg("farebidctl ready")
	return root
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
