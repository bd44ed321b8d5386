package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carebridge/leadtrust/internal/model"
)

var migrateSeed bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("schema migrated", zap.String("driver", cfg.Store.Driver))

		if migrateSeed {
			if err := st.SeedRules(ctx, model.DefaultRules()); err != nil {
				return err
			}
			zap.L().Info("default rule catalog seeded")
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSeed, "seed", false, "seed the default rule catalog")
	rootCmd.AddCommand(migrateCmd)
}
