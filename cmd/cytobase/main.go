package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cytobase/cytobase/cmd/cytobase/commands"
	"github.com/cytobase/cytobase/logger"
)

var rootCmd = &cobra.Command{
	Use:   "cytobase",
	Short: "cytobase - cell-type measurement matrix store",
	Long: `cytobase - Import, store and export per-sample cell-type measurements.

cytobase ingests tab-delimited measurement matrices, resolves cell
identifiers against a reference catalog, and stores one packed row per
(profile, cell) in SQLite.

Examples:
  cytobase study add my_study              # Register a study
  cytobase catalog import --file cells.tsv # Load the reference catalog
  cytobase import --data d.tsv --meta m.toml
  cytobase export --profile my_study_fractions
  cytobase db stats                        # Show database statistics`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.CatalogCmd)
	rootCmd.AddCommand(commands.ImportCmd)
	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.StudyCmd)
	rootCmd.AddCommand(commands.DbCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
