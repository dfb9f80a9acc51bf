package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cytobase/cytobase/catalog"
	"github.com/cytobase/cytobase/config"
	"github.com/cytobase/cytobase/errors"
	"github.com/cytobase/cytobase/logger"
)

// CatalogCmd manages the cell reference catalog.
var CatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the cell reference catalog",
	Long: `Load and inspect the reference catalog of canonical cell types.

Examples:
  cytobase catalog import --file cells.tsv
  cytobase catalog list`,
}

var catalogFileFlag string

var catalogImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a tab-delimited cell catalog",
	Long: `Load canonical cells from a tab-delimited file.

The header names the columns CELL_ID, NAME, ALIASES, TYPE and ORGAN in any
order; NAME is required and aliases are separated by '|'. Cells without an
id are assigned a synthetic negative one.`,
	RunE: runCatalogImport,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the cells in the catalog",
	RunE:  runCatalogList,
}

func init() {
	catalogImportCmd.Flags().StringVar(&catalogFileFlag, "file", "", "Path to the catalog file (required)")
	catalogImportCmd.MarkFlagRequired("file")
	CatalogCmd.AddCommand(catalogImportCmd)
	CatalogCmd.AddCommand(catalogListCmd)
}

func buildCache(cmd *cobra.Command) (*catalog.Cache, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load configuration")
	}
	database, err := openDatabase("")
	if err != nil {
		return nil, nil, err
	}
	cache, err := catalog.NewCache(cmd.Context(), catalog.NewStore(database), logger.Logger,
		catalog.CacheOptions{
			FeaturedListPath:       cfg.Catalog.FeaturedListPath,
			DisambiguationListPath: cfg.Catalog.DisambiguationListPath,
		})
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return cache, func() { database.Close() }, nil
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	cache, closeDB, err := buildCache(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	f, err := os.Open(catalogFileFlag)
	if err != nil {
		return errors.Wrapf(err, "failed to open catalog file %s", catalogFileFlag)
	}
	defer f.Close()

	result, err := catalog.LoadCatalog(cmd.Context(), f, cache, logger.Logger)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Loaded %s\n", catalogFileFlag)
	pterm.Printf("  Added cells:  %s\n", pterm.Green(fmt.Sprintf("%d", result.Added)))
	pterm.Printf("  Skipped rows: %d\n", result.Skipped)
	return nil
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	cache, closeDB, err := buildCache(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	rows := pterm.TableData{{"CELL_ID", "NAME", "ORGAN", "ALIASES"}}
	for _, cell := range cache.AllCells() {
		rows = append(rows, []string{
			fmt.Sprintf("%d", cell.CellID),
			cell.Name,
			cell.Organ,
			fmt.Sprintf("%v", cell.Aliases()),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
