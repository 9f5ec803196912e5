package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"farebid/internal/infra"
	"farebid/internal/modules/bidding"
	"farebid/internal/modules/dataset"
)

func newDBCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the Postgres orders and bid_decisions tables",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("FAREBID_DB_DSN"), "Postgres DSN")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create the orders and bid_decisions tables if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return errors.New("--dsn is required")
			}
			db, err := infra.NewDB(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := dataset.NewPGSource(db).EnsureSchema(cmd.Context()); err != nil {
				return fmt.Errorf("orders: %w", err)
			}
			if err := bidding.NewStore(db).EnsureSchema(cmd.Context()); err != nil {
				return fmt.Errorf("bid_decisions: %w", err)
			}
			log.Info().Msg("schema ready")
			return nil
		},
	}

	var csvPath string
	load := &cobra.Command{
		Use:   "import",
		Short: "Bulk-load an orders CSV into the orders table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return errors.New("--dsn is required")
			}
			recs, err := source{csvPath: csvPath}.load(cmd.Context(), false)
			if err != nil {
				return err
			}
			db, err := infra.NewDB(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer db.Close()
			src := dataset.NewPGSource(db)
			if err := src.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			n, err := src.Insert(cmd.Context(), recs)
			if err != nil {
				return err
			}
			log.Info().Int64("rows", n).Str("file", csvPath).Msg("orders imported")
			return nil
		},
	}
	load.Flags().StringVar(&csvPath, "data", "", "Orders CSV")
	_ = load.MarkFlagRequired("data")

	cmd.AddCommand(migrate, load)
	return cmd
}
