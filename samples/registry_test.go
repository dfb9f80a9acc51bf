package samples

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytobase/cytobase/db"
	"github.com/cytobase/cytobase/errors"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database, nil))
	_, err = database.Exec(`INSERT INTO studies (stable_id, name) VALUES ('study_tcga', '')`)
	require.NoError(t, err)
	return database
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"TCGA-A1-A0SB-01A-11R-A144-07": "TCGA-A1-A0SB-01",
		"TCGA-A1-A0SB-01":              "TCGA-A1-A0SB-01",
		"  S1 ":                        "S1",
		"SAMPLE_42":                    "SAMPLE_42",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestIsNormal(t *testing.T) {
	assert.True(t, IsNormal("TCGA-A1-A0SB-11"))
	assert.True(t, IsNormal("TCGA-A1-A0SB-10"))
	assert.True(t, IsNormal("S1-NT"))
	assert.True(t, IsNormal("S1-N"))

	assert.False(t, IsNormal("TCGA-A1-A0SB-01"))
	assert.False(t, IsNormal("S1"))
}

func TestRegistryAddAndGet(t *testing.T) {
	reg := NewRegistry(newTestDB(t))
	ctx := context.Background()

	sm := &Sample{StudyID: 1, StableID: "TCGA-A1-A0SB-01A-11R-A144-07"}
	require.NoError(t, reg.Add(ctx, sm))
	assert.Greater(t, sm.ID, 0)
	// Registration stores the normalized form.
	assert.Equal(t, "TCGA-A1-A0SB-01", sm.StableID)

	got, err := reg.Get(ctx, 1, "TCGA-A1-A0SB-01")
	require.NoError(t, err)
	assert.Equal(t, sm.ID, got.ID)

	_, err = reg.Get(ctx, 1, "TCGA-XX-XXXX-01")
	assert.True(t, errors.IsNotFoundError(err))

	err = reg.Add(ctx, &Sample{StudyID: 1, StableID: "TCGA-A1-A0SB-01"})
	assert.True(t, errors.IsDuplicateError(err))

	n, err := reg.CountByStudy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
