package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytobase/cytobase/errors"
	"github.com/cytobase/cytobase/study"
)

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meta.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadDescriptor(t *testing.T) {
	path := writeDescriptor(t, `
study_identifier = "study_tcga"
alteration_kind = "CELL_RELATIVE_ABUNDANCE"
stable_id = "fractions"
datatype = "CONTINUOUS"
profile_name = "Cell fractions"
`)
	d, err := ReadDescriptor(path)
	require.NoError(t, err)
	// The stable id is namespaced by the study.
	assert.Equal(t, "study_tcga_fractions", d.StableID)
	assert.Equal(t, "Cell fractions", d.ProfileName)
	assert.Nil(t, d.ShowInAnalysisTab)
}

func TestReadDescriptorKeepsQualifiedStableID(t *testing.T) {
	path := writeDescriptor(t, `
study_identifier = "study_tcga"
alteration_kind = "CELL_RELATIVE_ABUNDANCE"
stable_id = "study_tcga_fractions"
`)
	d, err := ReadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, "study_tcga_fractions", d.StableID)
}

func TestReadDescriptorValidation(t *testing.T) {
	_, err := ReadDescriptor(writeDescriptor(t, `stable_id = "x"`))
	assert.ErrorContains(t, err, "study_identifier")

	_, err = ReadDescriptor(writeDescriptor(t, `study_identifier = "s"`))
	assert.ErrorContains(t, err, "stable_id")

	_, err = ReadDescriptor(writeDescriptor(t, `
study_identifier = "s"
stable_id = "x"
alteration_kind = "SOMETHING_ELSE"
`))
	assert.ErrorContains(t, err, "alteration_kind")

	_, err = ReadDescriptor(writeDescriptor(t, `not valid toml [`))
	assert.ErrorContains(t, err, "failed to parse")
}

func TestLoad(t *testing.T) {
	database := newTestDB(t)
	newTestStudy(t, database, "study_tcga")
	ctx := context.Background()

	store, err := NewStore(ctx, database)
	require.NoError(t, err)
	studies := study.NewStore(database)

	d := &Descriptor{
		StudyIdentifier: "study_tcga",
		AlterationKind:  string(CellRelativeAbundance),
		StableID:        "study_tcga_fractions",
	}
	p, err := Load(ctx, d, store, studies)
	require.NoError(t, err)
	assert.Greater(t, p.ID, 0)
	// Display fields default to the alteration kind.
	assert.Equal(t, "CELL_RELATIVE_ABUNDANCE", p.Name)
	assert.Equal(t, "CELL_RELATIVE_ABUNDANCE", p.Description)
	assert.True(t, p.ShowInAnalysisTab)

	// Loading the same descriptor again returns the existing profile.
	again, err := Load(ctx, d, store, studies)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, 1, store.Count())
}

func TestLoadRequiresStudy(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	store, err := NewStore(ctx, database)
	require.NoError(t, err)

	d := &Descriptor{
		StudyIdentifier: "missing_study",
		AlterationKind:  string(CellRelativeAbundance),
		StableID:        "missing_study_fractions",
	}
	_, err = Load(ctx, d, store, study.NewStore(database))
	assert.True(t, errors.IsNotFoundError(err))
}
