package commands

import (
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cytobase/cytobase/alteration"
	"github.com/cytobase/cytobase/catalog"
	"github.com/cytobase/cytobase/errors"
	"github.com/cytobase/cytobase/exporter"
	"github.com/cytobase/cytobase/logger"
	"github.com/cytobase/cytobase/profile"
	"github.com/cytobase/cytobase/samples"
)

// ExportCmd writes a profile's matrix back out as tab-delimited text.
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a profile's matrix as tab-delimited text",
	Long: `Export a stored profile as the tab-delimited form the importer reads.

Examples:
  cytobase export --profile my_study_fractions
  cytobase export --profile my_study_fractions --out fractions.tsv`,
	RunE: runExport,
}

var (
	exportProfileFlag string
	exportOutFlag     string
)

func init() {
	ExportCmd.Flags().StringVar(&exportProfileFlag, "profile", "", "Stable id of the profile to export (required)")
	ExportCmd.Flags().StringVar(&exportOutFlag, "out", "", "Output file (default stdout)")
	ExportCmd.MarkFlagRequired("profile")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	profiles, err := profile.NewStore(ctx, database)
	if err != nil {
		return err
	}
	prof, err := profiles.GetByStableID(exportProfileFlag)
	if err != nil {
		return err
	}

	cache, err := catalog.NewCache(ctx, catalog.NewStore(database), logger.Logger, catalog.CacheOptions{})
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if exportOutFlag != "" {
		f, err := os.Create(exportOutFlag)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", exportOutFlag)
		}
		defer f.Close()
		out = f
	}

	exp := exporter.New(cache, alteration.NewStore(database),
		alteration.NewSampleOrderStore(database), samples.NewRegistry(database))
	if err := exp.Export(ctx, prof, out); err != nil {
		return err
	}
	if exportOutFlag != "" {
		pterm.Success.Printf("Exported %s to %s\n", prof.StableID, exportOutFlag)
	}
	return nil
}
