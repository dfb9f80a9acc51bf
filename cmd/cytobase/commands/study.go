package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cytobase/cytobase/samples"
	"github.com/cytobase/cytobase/study"
)

// StudyCmd manages studies and their samples.
var StudyCmd = &cobra.Command{
	Use:   "study",
	Short: "Manage studies and their samples",
	Long: `Register studies and the samples import files may reference.

Examples:
  cytobase study add my_study --name "My study"
  cytobase study add-samples my_study S1 S2 TCGA-A1-A0SB-01A-11R-A144-07`,
}

var studyNameFlag string

var studyAddCmd = &cobra.Command{
	Use:   "add <stable-id>",
	Short: "Register a study",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudyAdd,
}

var studyAddSamplesCmd = &cobra.Command{
	Use:   "add-samples <study-stable-id> <sample-id>...",
	Short: "Register samples in a study",
	Long: `Register samples under their normalized stable ids.

TCGA-style barcodes are truncated to patient plus tissue type code before
storage; other ids are stored as given.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runStudyAddSamples,
}

func init() {
	studyAddCmd.Flags().StringVar(&studyNameFlag, "name", "", "Display name of the study")
	StudyCmd.AddCommand(studyAddCmd)
	StudyCmd.AddCommand(studyAddSamplesCmd)
}

func runStudyAdd(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	st := &study.Study{StableID: args[0], Name: studyNameFlag}
	if err := study.NewStore(database).Add(cmd.Context(), st); err != nil {
		return err
	}
	pterm.Success.Printf("Registered study %s (id %d)\n", st.StableID, st.ID)
	return nil
}

func runStudyAddSamples(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	st, err := study.NewStore(database).GetByStableID(ctx, args[0])
	if err != nil {
		return err
	}

	registry := samples.NewRegistry(database)
	for _, ref := range args[1:] {
		sm := &samples.Sample{StudyID: st.ID, StableID: ref}
		if err := registry.Add(ctx, sm); err != nil {
			return err
		}
		pterm.Printf("  Registered sample %s (id %d)\n", sm.StableID, sm.ID)
	}
	pterm.Success.Printf("Registered %d samples in %s\n", len(args)-1, st.StableID)
	return nil
}
