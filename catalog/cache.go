package catalog

import (
	"bufio"
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cytobase/cytobase/errors"
)

var numericIdentifier = regexp.MustCompile(`^[0-9]+$`)

// CacheOptions configures the two optional reference lists loaded on
// rebuild. Either path may be empty.
type CacheOptions struct {
	// FeaturedListPath names a file of name[TAB]cellID lines marking cells
	// that belong to the highlighted subset.
	FeaturedListPath string
	// DisambiguationListPath names a file of rawIdentifier[TAB]cellID lines
	// that pin an otherwise-ambiguous identifier to one cell. Comment lines
	// begin with '#'.
	DisambiguationListPath string
}

// Cache is the in-memory identity index over the cell catalog. It is built
// from a Store and holds derived, rebuildable indices only; the store owns
// durable state.
//
// Resolution (Guess, ResolveUnique and the lookup methods) never returns an
// error: a miss is an empty result the caller interprets. Mutations write to
// the store first and then patch only the affected index entries; Rebuild
// rescans from scratch.
//
// Reads may proceed concurrently; Rebuild and the mutation methods are
// mutually exclusive with each other and with reads.
type Cache struct {
	mu    sync.RWMutex
	store *Store
	log   *zap.SugaredLogger
	opts  CacheOptions

	byName     map[string]*CanonicalCell
	byCellID   map[int64]*CanonicalCell
	byEntityID map[int]*CanonicalCell
	byAlias    map[string][]*CanonicalCell

	featured       map[int]struct{} // entity ids in the featured subset
	disambiguation map[string]*CanonicalCell
}

// NewCache builds a cache from the store. Errors from the catalog scan are
// propagated; problems loading either reference list are logged and the
// cache stays usable.
func NewCache(ctx context.Context, store *Store, log *zap.SugaredLogger, opts CacheOptions) (*Cache, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Cache{store: store, log: log, opts: opts}
	if err := c.Rebuild(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Rebuild clears every derived index and rescans the store, then reloads the
// reference lists. Used for test isolation and to refresh after out-of-band
// writes.
func (c *Cache) Rebuild(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byName = make(map[string]*CanonicalCell)
	c.byCellID = make(map[int64]*CanonicalCell)
	c.byEntityID = make(map[int]*CanonicalCell)
	c.byAlias = make(map[string][]*CanonicalCell)
	c.featured = make(map[int]struct{})
	c.disambiguation = make(map[string]*CanonicalCell)

	cells, err := c.store.All(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to scan cell catalog")
	}
	for _, cell := range cells {
		c.index(cell)
	}

	c.loadFeaturedLocked()
	c.loadDisambiguationLocked()
	return nil
}

func (c *Cache) index(cell *CanonicalCell) {
	c.byName[cell.NameUpper()] = cell
	c.byCellID[cell.CellID] = cell
	c.byEntityID[cell.EntityID] = cell
	for _, alias := range cell.Aliases() {
		up := strings.ToUpper(alias)
		c.byAlias[up] = append(c.byAlias[up], cell)
	}
}

func (c *Cache) unindex(cell *CanonicalCell) {
	delete(c.byName, cell.NameUpper())
	delete(c.byCellID, cell.CellID)
	delete(c.byEntityID, cell.EntityID)
	for _, alias := range cell.Aliases() {
		up := strings.ToUpper(alias)
		bucket := c.byAlias[up]
		for i, candidate := range bucket {
			if candidate.EntityID == cell.EntityID {
				bucket = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
		if len(bucket) == 0 {
			delete(c.byAlias, up)
		} else {
			c.byAlias[up] = bucket
		}
	}
}

// Add inserts the cell into the store and then into the derived indices.
// No full rebuild is needed.
func (c *Cache) Add(ctx context.Context, cell *CanonicalCell) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Add(ctx, cell); err != nil {
		return err
	}
	c.index(cell)
	return nil
}

// Update rewrites the cell in the store and recomputes its index entries.
// Pass a fresh record rather than mutating a cached one in place; the
// previously indexed record for the same entity id is evicted by its old
// keys.
func (c *Cache) Update(ctx context.Context, cell *CanonicalCell) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Update(ctx, cell); err != nil {
		return err
	}
	if old, ok := c.byEntityID[cell.EntityID]; ok {
		c.unindex(old)
	}
	c.index(cell)
	return nil
}

// Delete removes the cell from the store and strips it from every index,
// pruning alias buckets it leaves empty.
func (c *Cache) Delete(ctx context.Context, cell *CanonicalCell) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Delete(ctx, cell.CellID); err != nil {
		return err
	}
	c.unindex(cell)
	return nil
}

// Cell returns the cell with the given external id, or nil.
func (c *Cache) Cell(cellID int64) *CanonicalCell {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byCellID[cellID]
}

// CellNamed returns the cell whose canonical name matches case-insensitively,
// or nil.
func (c *Cache) CellNamed(name string) *CanonicalCell {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byName[strings.ToUpper(name)]
}

// CellByEntityID returns the cell with the given surrogate entity id, or nil.
func (c *Cache) CellByEntityID(entityID int) *CanonicalCell {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byEntityID[entityID]
}

// AllCells returns every cached cell in unspecified order.
func (c *Cache) AllCells() []*CanonicalCell {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cells := make([]*CanonicalCell, 0, len(c.byCellID))
	for _, cell := range c.byCellID {
		cells = append(cells, cell)
	}
	return cells
}

// EntityID translates an external cell id to its surrogate entity id.
func (c *Cache) EntityID(cellID int64) (int, error) {
	if cell := c.Cell(cellID); cell != nil {
		return cell.EntityID, nil
	}
	return 0, errors.NewNotFoundError("cell id %d not in cache", cellID)
}

// CellIDForEntity translates a surrogate entity id back to the external cell
// id.
func (c *Cache) CellIDForEntity(entityID int) (int64, error) {
	if cell := c.CellByEntityID(entityID); cell != nil {
		return cell.CellID, nil
	}
	return 0, errors.NewNotFoundError("entity id %d not in cache", entityID)
}

// Guess looks for cells matching the identifier. A purely numeric identifier
// is tried as a cell id first, then the identifier as a canonical name, then
// as an alias. An alias can match more than one cell; when organ is non-empty
// the alias candidates are narrowed to cells whose organ equals it or is
// unset.
func (c *Cache) Guess(identifier, organ string) []*CanonicalCell {
	if identifier == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if numericIdentifier.MatchString(identifier) {
		if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
			if cell := c.byCellID[id]; cell != nil {
				return []*CanonicalCell{cell}
			}
		}
	}

	if cell := c.byName[strings.ToUpper(identifier)]; cell != nil {
		return []*CanonicalCell{cell}
	}

	bucket := c.byAlias[strings.ToUpper(identifier)]
	if len(bucket) == 0 {
		return nil
	}
	if organ == "" {
		return append([]*CanonicalCell(nil), bucket...)
	}
	var matched []*CanonicalCell
	for _, cell := range bucket {
		if cell.Organ == "" || cell.Organ == organ {
			matched = append(matched, cell)
		}
	}
	return matched
}

// ResolveUnique returns the single cell the identifier denotes, or nil when
// it matches nothing or stays ambiguous. An ambiguous alias is resolved
// through the disambiguation list when an entry for the raw identifier
// exists; otherwise, if warnOnAmbiguous is set, one warning listing every
// candidate cell id is emitted.
func (c *Cache) ResolveUnique(identifier, organ string, warnOnAmbiguous bool) *CanonicalCell {
	cells := c.Guess(identifier, organ)
	switch len(cells) {
	case 0:
		return nil
	case 1:
		return cells[0]
	}

	c.mu.RLock()
	override := c.disambiguation[identifier]
	c.mu.RUnlock()
	if override != nil {
		return override
	}

	if warnOnAmbiguous {
		ids := make([]string, len(cells))
		for i, cell := range cells {
			ids[i] = strconv.FormatInt(cell.CellID, 10)
		}
		c.log.Warnw("Ambiguous alias",
			"identifier", identifier,
			"candidate_cell_ids", strings.Join(ids, ","),
		)
	}
	return nil
}

// IsFeatured reports whether the cell belongs to the featured subset.
func (c *Cache) IsFeatured(cell *CanonicalCell) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.featured[cell.EntityID]
	return ok
}

// FeaturedCells returns the cells in the featured subset.
func (c *Cache) FeaturedCells() []*CanonicalCell {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cells := make([]*CanonicalCell, 0, len(c.featured))
	for entityID := range c.featured {
		if cell := c.byEntityID[entityID]; cell != nil {
			cells = append(cells, cell)
		}
	}
	return cells
}

// loadFeaturedLocked reads the featured-subset list. Lines are
// name[TAB]cellID; with a second field the cell resolves by id, otherwise by
// name. Unresolvable lines warn and are skipped; so does an unreadable file.
func (c *Cache) loadFeaturedLocked() {
	path := c.opts.FeaturedListPath
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		c.log.Warnw("Cannot read featured cell list", "path", path, "error", err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		var cell *CanonicalCell
		if len(parts) > 1 {
			if id, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				cell = c.byCellID[id]
			}
		} else {
			cell = c.byName[strings.ToUpper(parts[0])]
		}
		if cell == nil {
			c.log.Warnw("Featured cell list entry does not resolve to a known cell",
				"path", path,
				"line", line,
			)
			continue
		}
		c.featured[cell.EntityID] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		c.log.Warnw("Error reading featured cell list", "path", path, "error", err)
	}
}

// loadDisambiguationLocked reads the disambiguation list. Lines are
// rawIdentifier[TAB]cellID; '#' starts a comment. Entries referencing an
// unknown cell id warn and are skipped.
func (c *Cache) loadDisambiguationLocked() {
	path := c.opts.DisambiguationListPath
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		c.log.Warnw("Cannot read disambiguation list", "path", path, "error", err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			c.log.Warnw("Malformed disambiguation entry", "path", path, "line", line)
			continue
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			c.log.Warnw("Malformed disambiguation entry", "path", path, "line", line)
			continue
		}
		cell := c.byCellID[id]
		if cell == nil {
			c.log.Warnw("Disambiguation entry references unknown cell id",
				"path", path,
				"line", line,
			)
			continue
		}
		c.disambiguation[parts[0]] = cell
	}
	if err := scanner.Err(); err != nil {
		c.log.Warnw("Error reading disambiguation list", "path", path, "error", err)
	}
}
