package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/phonginreallife/fieldwatch/db"
	"github.com/phonginreallife/fieldwatch/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the appointments and notification log tables",
	Long: `Apply the fieldwatch schema to the database in DATABASE_URL.
The schema only creates missing tables and indexes, so it is safe to re-run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(configPath); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if config.App.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}

		pg, err := sql.Open("postgres", config.App.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to DB: %w", err)
		}
		defer pg.Close()

		if err := pg.Ping(); err != nil {
			return fmt.Errorf("failed to ping DB: %w", err)
		}
		return applySchema(pg)
	},
}

func applySchema(pg *sql.DB) error {
	log.Println("Running migration...")
	if _, err := pg.Exec(db.Schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migration applied successfully!")
	return nil
}
