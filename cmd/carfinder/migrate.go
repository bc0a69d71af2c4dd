package main

import (
	"github.com/spf13/cobra"

	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/database"
)

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewDB(cfg.DatabaseURL, cfg.MigrationsPath, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.RunMigrations()
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewDB(cfg.DatabaseURL, cfg.MigrationsPath, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.RollbackMigrations(rollbackSteps)
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}
