package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/erp"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations",
	Long:  "Applies the directory schema migrations in lexicographic order, then the run ledger schema.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := erp.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "migrate")
		}
		st, err := openLedger(ctx, pool)
		if err != nil {
			return eris.Wrap(err, "migrate ledger")
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("all migrations applied successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
