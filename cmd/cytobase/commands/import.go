package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cytobase/cytobase/alteration"
	"github.com/cytobase/cytobase/catalog"
	"github.com/cytobase/cytobase/config"
	"github.com/cytobase/cytobase/errors"
	"github.com/cytobase/cytobase/importer"
	"github.com/cytobase/cytobase/logger"
	"github.com/cytobase/cytobase/profile"
	"github.com/cytobase/cytobase/samples"
	"github.com/cytobase/cytobase/study"
)

// ImportCmd imports one tab-delimited measurement matrix into a profile.
var ImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a tab-delimited measurement matrix",
	Long: `Import a measurement matrix into the profile its descriptor declares.

The data file's header names the samples; each following row carries one
cell type's values. The profile descriptor is a TOML file naming the study,
the stable profile id and the alteration kind.

Examples:
  cytobase import --data fractions.tsv --meta meta_fractions.toml
  cytobase import --data fractions.tsv --meta meta_fractions.toml --bulk`,
	RunE: runImport,
}

var (
	importDataFlag string
	importMetaFlag string
	importBulkFlag bool
)

func init() {
	ImportCmd.Flags().StringVar(&importDataFlag, "data", "", "Path to the tab-delimited data file (required)")
	ImportCmd.Flags().StringVar(&importMetaFlag, "meta", "", "Path to the TOML profile descriptor (required)")
	ImportCmd.Flags().BoolVar(&importBulkFlag, "bulk", false, "Stage rows and land them in one transaction")
	ImportCmd.MarkFlagRequired("data")
	ImportCmd.MarkFlagRequired("meta")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	descriptor, err := profile.ReadDescriptor(importMetaFlag)
	if err != nil {
		return err
	}

	profiles, err := profile.NewStore(ctx, database)
	if err != nil {
		return err
	}
	prof, err := profile.Load(ctx, descriptor, profiles, study.NewStore(database))
	if err != nil {
		return err
	}

	cache, err := catalog.NewCache(ctx, catalog.NewStore(database), logger.Logger, catalog.CacheOptions{
		FeaturedListPath:       cfg.Catalog.FeaturedListPath,
		DisambiguationListPath: cfg.Catalog.DisambiguationListPath,
	})
	if err != nil {
		return err
	}

	var writer alteration.Writer
	if importBulkFlag || cfg.Import.BulkLoad {
		writer = alteration.NewBufferedWriter(database)
	} else {
		writer = alteration.NewTransactionalWriter(database)
	}

	data, err := os.Open(importDataFlag)
	if err != nil {
		return errors.Wrapf(err, "failed to open data file %s", importDataFlag)
	}
	defer data.Close()

	pipeline := importer.NewTabMatrix(cache, samples.NewRegistry(database),
		profile.NewSampleProfileStore(database), alteration.NewSampleOrderStore(database),
		writer, logger.Logger)

	result, err := pipeline.Run(ctx, data, prof)
	if err != nil {
		pterm.Error.Printf("Import failed: %v\n", err)
		return err
	}

	pterm.Success.Printf("Imported %s into %s\n", importDataFlag, prof.StableID)
	pterm.Printf("  Stored rows:  %s\n", pterm.Green(fmt.Sprintf("%d", result.Stored)))
	pterm.Printf("  Skipped rows: %d\n", result.Skipped)
	reasons := make([]string, 0, len(result.Reasons))
	for reason := range result.Reasons {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		pterm.Printf("    %s: %d\n", reason, result.Reasons[importer.SkipReason(reason)])
	}
	if len(result.FilteredSamples) > 0 {
		pterm.Printf("  Filtered normal samples: %v\n", result.FilteredSamples)
	}
	return nil
}
