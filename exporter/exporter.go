// Package exporter writes a profile's matrix back out as the tab-delimited
// form the importer reads, one row per stored cell with NaN for values the
// row never carried.
package exporter

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/cytobase/cytobase/alteration"
	"github.com/cytobase/cytobase/catalog"
	"github.com/cytobase/cytobase/errors"
	"github.com/cytobase/cytobase/profile"
	"github.com/cytobase/cytobase/samples"
)

// Exporter renders profiles as tab-delimited matrices.
type Exporter struct {
	cache    *catalog.Cache
	store    *alteration.Store
	orders   *alteration.SampleOrderStore
	registry *samples.Registry
}

// New assembles an exporter.
func New(cache *catalog.Cache, store *alteration.Store, orders *alteration.SampleOrderStore, registry *samples.Registry) *Exporter {
	return &Exporter{cache: cache, store: store, orders: orders, registry: registry}
}

// Export writes the profile's matrix to w: a header of the identity columns
// followed by the stable sample ids in profile order, then one row per
// entity in the profile.
func (e *Exporter) Export(ctx context.Context, prof *profile.Profile, w io.Writer) error {
	order, err := e.orders.Get(ctx, prof.ID)
	if err != nil {
		return err
	}
	stableIDs, err := e.registry.StableIDs(ctx, order)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	header := append([]string{"UNIQUE_CELL_NAME", "UNIQUE_CELL_ID"}, stableIDs...)
	if _, err := bw.WriteString(strings.Join(header, "\t") + "\n"); err != nil {
		return errors.Wrap(err, "failed to write header")
	}

	entityIDs, err := e.store.EntityIDsInProfile(ctx, prof.ID)
	if err != nil {
		return err
	}
	for _, entityID := range entityIDs {
		cell := e.cache.CellByEntityID(entityID)
		if cell == nil {
			return errors.Newf("entity %d in profile %s is not in the catalog",
				entityID, prof.StableID)
		}
		values, err := e.store.Values(ctx, prof.ID, entityID, order)
		if err != nil {
			return err
		}

		fields := make([]string, 0, len(order)+2)
		fields = append(fields, cell.Name, strconv.FormatInt(cell.CellID, 10))
		for _, sampleID := range order {
			v := values[sampleID]
			if v == "" {
				v = alteration.NaN
			}
			fields = append(fields, v)
		}
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return errors.Wrapf(err, "failed to write row for cell %s", cell.Name)
		}
	}
	return errors.Wrap(bw.Flush(), "failed to flush export")
}
