package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cytobase/cytobase/config"
	"github.com/cytobase/cytobase/errors"
)

// DbCmd manages the database.
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the cytobase database",
	Long: `Manage database operations.

Examples:
  cytobase db migrate   # Apply pending schema migrations
  cytobase db stats     # Show row counts per area`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	// openDatabase migrates as part of opening.
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()
	pterm.Success.Println("Database is up to date")
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	counts := []struct {
		label string
		query string
	}{
		{"Studies", `SELECT COUNT(*) FROM studies`},
		{"Samples", `SELECT COUNT(*) FROM samples`},
		{"Cells", `SELECT COUNT(*) FROM cells`},
		{"Aliases", `SELECT COUNT(*) FROM cell_aliases`},
		{"Profiles", `SELECT COUNT(*) FROM cell_profiles`},
		{"Alteration rows", `SELECT COUNT(*) FROM cell_alterations`},
	}

	pterm.DefaultSection.Println("Database Statistics")
	pterm.Printf("Database path: %s\n\n", cfg.Database.Path)
	for _, c := range counts {
		var n int
		if err := database.QueryRow(c.query).Scan(&n); err != nil {
			return errors.Wrapf(err, "failed to count %s", c.label)
		}
		pterm.Printf("%-16s %d\n", c.label+":", n)
	}
	return nil
}
