package alteration

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytobase/cytobase/db"
	"github.com/cytobase/cytobase/errors"
)

// newTestDB migrates an in-memory database and seeds one study, one profile
// (id 1) and three cell entities (ids 1..3) so the alteration tables'
// foreign keys are satisfied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database, nil))

	seed := []string{
		`INSERT INTO studies (stable_id, name) VALUES ('study_tcga', 'Test study')`,
		`INSERT INTO cell_profiles (stable_id, study_id, alteration_kind)
		 VALUES ('study_tcga_fractions', 1, 'CELL_FRACTION')`,
		`INSERT INTO cell_entities (entity_type) VALUES ('CELL'), ('CELL'), ('CELL')`,
	}
	for _, stmt := range seed {
		_, err := database.Exec(stmt)
		require.NoError(t, err)
	}
	return database
}

func TestSampleOrderStore(t *testing.T) {
	orders := NewSampleOrderStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, orders.Set(ctx, 1, []int{30, 10, 20}))

	got, err := orders.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{30, 10, 20}, got)

	// An order, once set, is immutable.
	err = orders.Set(ctx, 1, []int{1, 2})
	assert.True(t, errors.IsDuplicateError(err))

	_, err = orders.Get(ctx, 999)
	assert.True(t, errors.IsNotFoundError(err))

	require.NoError(t, orders.Delete(ctx, 1))
	_, err = orders.Get(ctx, 1)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestTransactionalWriter(t *testing.T) {
	database := newTestDB(t)
	writer := NewTransactionalWriter(database)
	store := NewStore(database)
	ctx := context.Background()

	require.NoError(t, writer.WriteRow(ctx, 1, 1, "1.5,NaN,"))
	require.NoError(t, writer.Flush(ctx))

	packed, err := store.PackedRow(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "1.5,NaN,", packed)

	err = writer.WriteRow(ctx, 1, 1, "2.0,")
	assert.True(t, errors.IsDuplicateError(err))
}

func TestBufferedWriter(t *testing.T) {
	database := newTestDB(t)
	writer := NewBufferedWriter(database)
	store := NewStore(database)
	ctx := context.Background()

	require.NoError(t, writer.WriteRow(ctx, 1, 1, "1,"))
	require.NoError(t, writer.WriteRow(ctx, 1, 2, "2,"))

	err := writer.WriteRow(ctx, 1, 1, "3,")
	assert.True(t, errors.IsDuplicateError(err))

	// Nothing lands before the flush.
	n, err := store.CountInProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, writer.Flush(ctx))

	n, err = store.CountInProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The stage is cleared, so a second flush is a no-op.
	require.NoError(t, writer.Flush(ctx))
}

func TestBufferedWriterFlushAbortsAtomically(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cell_alterations").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	writer := NewBufferedWriter(database)
	ctx := context.Background()
	require.NoError(t, writer.WriteRow(ctx, 1, 1, "1,"))
	require.NoError(t, writer.WriteRow(ctx, 1, 2, "2,"))

	err = writer.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to flush alteration batch")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreValues(t *testing.T) {
	database := newTestDB(t)
	writer := NewTransactionalWriter(database)
	store := NewStore(database)
	ctx := context.Background()
	order := []int{10, 11, 12}

	require.NoError(t, writer.WriteRow(ctx, 1, 1, "0.5,0.25,"))

	// A short row leaves the uncovered samples at NaN.
	values, err := store.Values(ctx, 1, 1, order)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{10: "0.5", 11: "0.25", 12: NaN}, values)

	// An entity with no row at all is all NaN.
	values, err = store.Values(ctx, 1, 2, order)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{10: NaN, 11: NaN, 12: NaN}, values)

	// A subset query covers only the requested samples.
	values, err = store.ValuesSubset(ctx, 1, 1, order, []int{11, 99})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{11: "0.25", 99: NaN}, values)
}

func TestStoreProfileQueries(t *testing.T) {
	database := newTestDB(t)
	writer := NewTransactionalWriter(database)
	store := NewStore(database)
	ctx := context.Background()

	require.NoError(t, writer.WriteRow(ctx, 1, 2, "1,"))
	require.NoError(t, writer.WriteRow(ctx, 1, 1, "2,"))

	ids, err := store.EntityIDsInProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.DeleteProfile(ctx, 1))
	n, err = store.CountInProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
