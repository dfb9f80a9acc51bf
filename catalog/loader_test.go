package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()
	cache, err := NewCache(ctx, store, nil, CacheOptions{})
	require.NoError(t, err)

	result, err := LoadCatalog(ctx, strings.NewReader(
		"CELL_ID\tNAME\tALIASES\tTYPE\tORGAN\n"+
			"# reference catalog\n"+
			"1\tB_CELL\tB-lymphocyte|CD19+\tlymphoid\tblood\n"+
			"\tUNREGISTERED\t\t\t\n"+
			"bad\tBROKEN\t\t\t\n"+
			"2\t\t\t\t\n"), cache, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 2, result.Skipped)

	b := cache.Cell(1)
	require.NotNil(t, b)
	assert.Equal(t, "blood", b.Organ)
	assert.Len(t, cache.Guess("cd19+", ""), 1)

	// The id-less cell got a synthetic negative id.
	unregistered := cache.CellNamed("UNREGISTERED")
	require.NotNil(t, unregistered)
	assert.Equal(t, int64(-1), unregistered.CellID)
}

func TestLoadCatalogHeaderValidation(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()
	cache, err := NewCache(ctx, store, nil, CacheOptions{})
	require.NoError(t, err)

	_, err = LoadCatalog(ctx, strings.NewReader(""), cache, nil)
	assert.ErrorContains(t, err, "empty")

	_, err = LoadCatalog(ctx, strings.NewReader("CELL_ID\tALIASES\nx\ty\n"), cache, nil)
	assert.ErrorContains(t, err, "NAME")
}
