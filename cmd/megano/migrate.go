package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vasiliy-maslov/megano/internal/config"
	"github.com/vasiliy-maslov/megano/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(db.Up)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(db.Down)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigrations(dir db.Direction) error {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	log.Info().Str("direction", string(dir)).Str("dbname", cfg.Postgres.DBName).Msg("Running migrations")
	if err := db.Migrate(cfg.Postgres, dir); err != nil {
		return err
	}
	log.Info().Msg("Migrations finished")
	return nil
}
