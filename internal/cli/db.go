package cli

import (
	"fmt"

	"github.com/lucasnoah/vitestgpt/internal/config"
	"github.com/lucasnoah/vitestgpt/internal/db"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Run ledger management",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d, dsn, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer d.Close()
		cmd.Printf("Ledger at %s is up to date (%s).\n", dsn, d.Dialect())
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the database (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to drop the run ledger without --yes")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d, dsn, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer d.Close()
		if err := d.Reset(); err != nil {
			return err
		}
		cmd.Printf("Ledger at %s reset.\n", dsn)
		return nil
	},
}

// openLedger opens and migrates the ledger named by the config.
func openLedger(cfg *config.Config) (*db.DB, string, error) {
	dsn := cfg.History.DSN
	if dsn == "" {
		path, err := db.DefaultDBPath()
		if err != nil {
			return nil, "", err
		}
		dsn = path
	}
	d, err := db.Open(dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open ledger: %w", err)
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, "", fmt.Errorf("migrate ledger: %w", err)
	}
	return d, dsn, nil
}

func init() {
	dbResetCmd.Flags().Bool("yes", false, "confirm dropping all recorded runs")
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
