package exporter

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytobase/cytobase/alteration"
	"github.com/cytobase/cytobase/catalog"
	"github.com/cytobase/cytobase/db"
	"github.com/cytobase/cytobase/importer"
	"github.com/cytobase/cytobase/profile"
	"github.com/cytobase/cytobase/samples"
	"github.com/cytobase/cytobase/study"
)

func TestExportRoundTrip(t *testing.T) {
	database, err := db.Open(":memory:", nil)
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, db.Migrate(database, nil))
	ctx := context.Background()

	st := &study.Study{StableID: "study_tcga"}
	require.NoError(t, study.NewStore(database).Add(ctx, st))

	registry := samples.NewRegistry(database)
	for _, id := range []string{"S1", "S2"} {
		require.NoError(t, registry.Add(ctx, &samples.Sample{StudyID: st.ID, StableID: id}))
	}

	catalogStore := catalog.NewStore(database)
	require.NoError(t, catalogStore.Add(ctx, catalog.NewCanonicalCell(1, "B_CELL")))
	require.NoError(t, catalogStore.Add(ctx, catalog.NewCanonicalCell(2, "T_CELL")))
	cache, err := catalog.NewCache(ctx, catalogStore, nil, catalog.CacheOptions{})
	require.NoError(t, err)

	profiles, err := profile.NewStore(ctx, database)
	require.NoError(t, err)
	prof := &profile.Profile{StableID: "study_tcga_fractions", StudyID: st.ID, Kind: profile.CellRelativeAbundance}
	require.NoError(t, profiles.Add(ctx, prof))

	orders := alteration.NewSampleOrderStore(database)
	pipeline := importer.NewTabMatrix(cache, registry, profile.NewSampleProfileStore(database),
		orders, alteration.NewTransactionalWriter(database), nil)
	_, err = pipeline.Run(ctx, strings.NewReader("UNIQUE_NAME\tUNIQUE_ID\tS1\tS2\n"+
		"B_CELL\t1\t200\t400\n"+
		"T_CELL\t2\t0.5\t\n"), prof)
	require.NoError(t, err)

	var out bytes.Buffer
	exp := New(cache, alteration.NewStore(database), orders, registry)
	require.NoError(t, exp.Export(ctx, prof, &out))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "UNIQUE_CELL_NAME\tUNIQUE_CELL_ID\tS1\tS2", lines[0])
	assert.Contains(t, lines, "B_CELL\t1\t200\t400")
	// The empty measurement comes back as NaN.
	assert.Contains(t, lines, "T_CELL\t2\t0.5\tNaN")
}

func newMissingOrderDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database, nil))
	return database
}

func TestExportWithoutSampleOrderFails(t *testing.T) {
	database := newMissingOrderDB(t)
	ctx := context.Background()

	catalogStore := catalog.NewStore(database)
	cache, err := catalog.NewCache(ctx, catalogStore, nil, catalog.CacheOptions{})
	require.NoError(t, err)

	exp := New(cache, alteration.NewStore(database), alteration.NewSampleOrderStore(database),
		samples.NewRegistry(database))
	err = exp.Export(ctx, &profile.Profile{ID: 1, StableID: "x"}, &bytes.Buffer{})
	assert.Error(t, err)
}
