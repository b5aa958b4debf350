package main

import (
	"fmt"
	"os"

	"github.com/frostdev-ops/adpilot-backend-go/internal/config"
	"github.com/frostdev-ops/adpilot-backend-go/internal/database"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string
	steps   int
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the AdPilot snapshot cache schema",
	Long: `Applies, rolls back and reports the embedded SQLite migrations used by the
campaign snapshot cache. The database path comes from the configuration file unless
--database is given.`,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(db *sqlx.DB) error {
			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Println("Migrations applied successfully.")
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(db *sqlx.DB) error {
			if err := database.Rollback(db, steps); err != nil {
				return err
			}
			fmt.Printf("Rolled back %d migration(s).\n", steps)
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(db *sqlx.DB) error {
			version, dirty, ok, err := database.MigrationVersion(db)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("No migrations applied.")
				return nil
			}
			fmt.Printf("Version: %d (dirty: %t)\n", version, dirty)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "database", "", "SQLite database path, overrides the configuration")
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
}

func withDatabase(fn func(db *sqlx.DB) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
