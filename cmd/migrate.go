package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply run history schema migrations",
	Long:  "Creates the run history tables for the configured store. Postgres migrations are applied in lexicographic order under an advisory lock.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context(), cfg)
		if err != nil {
			return eris.Wrap(err, "migrate")
		}
		if st == nil {
			zap.L().Info("store driver is none, nothing to migrate")
			return nil
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("all migrations applied successfully", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
