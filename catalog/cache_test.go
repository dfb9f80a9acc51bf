package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestCache(t *testing.T, opts CacheOptions) (*Cache, *Store) {
	t.Helper()
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	seed := []*CanonicalCell{
		NewCanonicalCell(1, "B_CELL", "B-lymphocyte", "CD19+"),
		NewCanonicalCell(2, "T_CELL", "CD3+"),
		NewCanonicalCell(3, "NK_CELL", "killer"),
		NewCanonicalCell(4, "NKT_CELL", "killer"),
	}
	seed[2].Organ = "blood"
	seed[3].Organ = "liver"
	for _, c := range seed {
		require.NoError(t, store.Add(ctx, c))
	}

	cache, err := NewCache(ctx, store, nil, opts)
	require.NoError(t, err)
	return cache, store
}

func TestGuessByNumericID(t *testing.T) {
	cache, _ := newTestCache(t, CacheOptions{})

	cells := cache.Guess("2", "")
	require.Len(t, cells, 1)
	assert.Equal(t, "T_CELL", cells[0].Name)

	assert.Empty(t, cache.Guess("999", ""))
}

func TestGuessByName(t *testing.T) {
	cache, _ := newTestCache(t, CacheOptions{})

	cells := cache.Guess("b_cell", "")
	require.Len(t, cells, 1)
	assert.Equal(t, int64(1), cells[0].CellID)
}

func TestGuessByAlias(t *testing.T) {
	cache, _ := newTestCache(t, CacheOptions{})

	cells := cache.Guess("cd19+", "")
	require.Len(t, cells, 1)
	assert.Equal(t, "B_CELL", cells[0].Name)

	// "killer" is carried by two cells.
	assert.Len(t, cache.Guess("killer", ""), 2)
}

func TestGuessOrganFilter(t *testing.T) {
	cache, store := newTestCache(t, CacheOptions{})
	ctx := context.Background()

	cells := cache.Guess("killer", "blood")
	require.Len(t, cells, 1)
	assert.Equal(t, "NK_CELL", cells[0].Name)

	// A cell with no organ set survives the filter.
	unplaced := NewCanonicalCell(5, "LAK_CELL", "killer")
	require.NoError(t, store.Add(ctx, unplaced))
	require.NoError(t, cache.Rebuild(ctx))

	assert.Len(t, cache.Guess("killer", "blood"), 2)
}

func TestResolveUnique(t *testing.T) {
	cache, _ := newTestCache(t, CacheOptions{})

	assert.Nil(t, cache.ResolveUnique("nothing", "", false))

	cell := cache.ResolveUnique("NK_CELL", "", false)
	require.NotNil(t, cell)
	assert.Equal(t, int64(3), cell.CellID)

	// Ambiguous alias with no disambiguation entry resolves to nothing.
	assert.Nil(t, cache.ResolveUnique("killer", "", false))
}

func TestResolveUniqueIsDeterministic(t *testing.T) {
	cache, _ := newTestCache(t, CacheOptions{})

	first := cache.ResolveUnique("NK_CELL", "", false)
	require.NotNil(t, first)
	for i := 0; i < 10; i++ {
		assert.True(t, first.Equal(cache.ResolveUnique("NK_CELL", "", false)))
		assert.Nil(t, cache.ResolveUnique("killer", "", false))
	}
}

func TestResolveUniqueAmbiguityWarnsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := NewStore(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, NewCanonicalCell(3, "NK_CELL", "killer")))
	require.NoError(t, store.Add(ctx, NewCanonicalCell(4, "NKT_CELL", "killer")))

	cache, err := NewCache(ctx, store, zap.New(core).Sugar(), CacheOptions{})
	require.NoError(t, err)

	assert.Nil(t, cache.ResolveUnique("killer", "", true))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Ambiguous alias", entry.Message)
	assert.Equal(t, "killer", entry.ContextMap()["identifier"])

	// The quiet form stays quiet.
	assert.Nil(t, cache.ResolveUnique("killer", "", false))
	assert.Equal(t, 1, logs.Len())
}

func TestResolveUniqueDisambiguationOverride(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "disambiguation.txt")
	require.NoError(t, os.WriteFile(list, []byte("# pinned aliases\nkiller\t4\n"), 0o644))

	cache, _ := newTestCache(t, CacheOptions{DisambiguationListPath: list})

	cell := cache.ResolveUnique("killer", "", true)
	require.NotNil(t, cell)
	assert.Equal(t, "NKT_CELL", cell.Name)

	// The override is keyed on the raw identifier, not a normalized form.
	assert.Nil(t, cache.ResolveUnique("KILLER", "", false))
}

func TestFeaturedList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "featured.txt")
	require.NoError(t, os.WriteFile(list, []byte("B_CELL\nT_CELL\t2\nGHOST_CELL\n"), 0o644))

	cache, _ := newTestCache(t, CacheOptions{FeaturedListPath: list})

	featured := cache.FeaturedCells()
	names := make([]string, len(featured))
	for i, c := range featured {
		names[i] = c.Name
	}
	assert.ElementsMatch(t, []string{"B_CELL", "T_CELL"}, names)
	assert.True(t, cache.IsFeatured(cache.Cell(1)))
	assert.False(t, cache.IsFeatured(cache.Cell(3)))
}

func TestCacheMissingListFilesAreNotFatal(t *testing.T) {
	cache, _ := newTestCache(t, CacheOptions{
		FeaturedListPath:       "/nonexistent/featured.txt",
		DisambiguationListPath: "/nonexistent/disambiguation.txt",
	})
	assert.NotNil(t, cache.Cell(1))
	assert.Empty(t, cache.FeaturedCells())
}

func TestCacheIncrementalMutations(t *testing.T) {
	cache, _ := newTestCache(t, CacheOptions{})
	ctx := context.Background()

	added := NewCanonicalCell(10, "DENDRITIC_CELL", "DC")
	require.NoError(t, cache.Add(ctx, added))
	require.NotNil(t, cache.Cell(10))
	assert.Len(t, cache.Guess("dc", ""), 1)

	updated := NewCanonicalCell(10, "DENDRITIC", "antigen-presenting")
	updated.EntityID = added.EntityID
	require.NoError(t, cache.Update(ctx, updated))
	assert.Nil(t, cache.CellNamed("DENDRITIC_CELL"))
	assert.Empty(t, cache.Guess("dc", ""))
	assert.Len(t, cache.Guess("antigen-presenting", ""), 1)

	require.NoError(t, cache.Delete(ctx, updated))
	assert.Nil(t, cache.Cell(10))
	assert.Empty(t, cache.Guess("antigen-presenting", ""))
	assert.Nil(t, cache.CellByEntityID(updated.EntityID))
}

func TestCacheEntityIDTranslation(t *testing.T) {
	cache, _ := newTestCache(t, CacheOptions{})

	entityID, err := cache.EntityID(1)
	require.NoError(t, err)

	cellID, err := cache.CellIDForEntity(entityID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cellID)

	_, err = cache.EntityID(999)
	assert.Error(t, err)
}
