// Package catalog maintains the reference catalog of canonical cell types
// and the in-memory identity cache used to resolve loose identifiers
// (numeric cell id, canonical name, or alias) during import.
package catalog

import (
	"strings"
)

// CanonicalCell is a canonical cell type from the reference catalog.
//
// EntityID is the surrogate key assigned once by the store and never reused;
// alteration rows are keyed by it. CellID is the external domain identifier
// and may be a synthetic negative value when the cell was created from an
// import file that did not carry one. Name is unique case-insensitively.
type CanonicalCell struct {
	EntityID   int
	CellID     int64
	Name       string
	Type       string
	Organ      string
	CpID       int
	AnatomyID  int
	CellTypeID int

	aliases []string
}

// NewCanonicalCell creates a cell whose entity id is not yet known
// (EntityID -1 until the store assigns one).
func NewCanonicalCell(cellID int64, name string, aliases ...string) *CanonicalCell {
	c := &CanonicalCell{EntityID: -1, CellID: cellID, Name: name}
	c.SetAliases(aliases)
	return c
}

// NameUpper returns the canonical name in upper case, the form used as the
// unique key for name lookups.
func (c *CanonicalCell) NameUpper() string {
	return strings.ToUpper(c.Name)
}

// Aliases returns the cell's aliases, deduplicated case-insensitively.
func (c *CanonicalCell) Aliases() []string {
	return c.aliases
}

// SetAliases replaces the alias set. Aliases are deduplicated
// case-insensitively and an alias equal to the canonical name is dropped.
func (c *CanonicalCell) SetAliases(aliases []string) {
	if len(aliases) == 0 {
		c.aliases = nil
		return
	}
	seen := make(map[string]struct{}, len(aliases))
	out := make([]string, 0, len(aliases))
	nameUp := c.NameUpper()
	for _, alias := range aliases {
		up := strings.ToUpper(alias)
		if up == nameUp {
			continue
		}
		if _, dup := seen[up]; dup {
			continue
		}
		seen[up] = struct{}{}
		out = append(out, alias)
	}
	c.aliases = out
}

// AddAlias appends one alias, keeping the case-insensitive dedup invariant.
func (c *CanonicalCell) AddAlias(alias string) {
	c.SetAliases(append(c.aliases, alias))
}

// Equal reports whether two cells refer to the same catalog entity.
func (c *CanonicalCell) Equal(other *CanonicalCell) bool {
	return other != nil && c.EntityID == other.EntityID
}

func (c *CanonicalCell) String() string {
	return c.NameUpper()
}

// CellIDs collects the unique cell ids of a set of cells.
func CellIDs(cells []*CanonicalCell) []int64 {
	seen := make(map[int64]struct{}, len(cells))
	ids := make([]int64, 0, len(cells))
	for _, c := range cells {
		if _, dup := seen[c.CellID]; dup {
			continue
		}
		seen[c.CellID] = struct{}{}
		ids = append(ids, c.CellID)
	}
	return ids
}
