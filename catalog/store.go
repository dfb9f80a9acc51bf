package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cytobase/cytobase/errors"
)

// Store provides durable access to the cells, cell_aliases and cell_entities
// tables. For resolution use the Cache, which layers the derived indices on
// top of this store.
type Store struct {
	db *sql.DB
}

// NewStore creates a catalog store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// All returns every cell in the catalog with its aliases.
func (s *Store) All(ctx context.Context) ([]*CanonicalCell, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, cell_id, name, type, organ, cp_id, anatomy_id, cell_type_id
		FROM cells`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query cells")
	}
	defer rows.Close()

	var cells []*CanonicalCell
	byCellID := make(map[int64]*CanonicalCell)
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, c)
		byCellID[c.CellID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate cells")
	}

	aliasRows, err := s.db.QueryContext(ctx, `SELECT cell_id, alias FROM cell_aliases`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query cell aliases")
	}
	defer aliasRows.Close()

	aliases := make(map[int64][]string)
	for aliasRows.Next() {
		var cellID int64
		var alias string
		if err := aliasRows.Scan(&cellID, &alias); err != nil {
			return nil, errors.Wrap(err, "failed to scan alias")
		}
		aliases[cellID] = append(aliases[cellID], alias)
	}
	if err := aliasRows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate aliases")
	}

	for cellID, list := range aliases {
		if c, ok := byCellID[cellID]; ok {
			c.SetAliases(list)
		}
	}
	return cells, nil
}

// GetByCellID returns the cell with the given external cell id, or
// ErrNotFound.
func (s *Store) GetByCellID(ctx context.Context, cellID int64) (*CanonicalCell, error) {
	return s.getOne(ctx, `WHERE cell_id = ?`, cellID)
}

// GetByName returns the cell with the given canonical name
// (case-insensitive), or ErrNotFound.
func (s *Store) GetByName(ctx context.Context, name string) (*CanonicalCell, error) {
	return s.getOne(ctx, `WHERE name = ?`, strings.ToUpper(name))
}

// GetByEntityID returns the cell with the given surrogate entity id, or
// ErrNotFound.
func (s *Store) GetByEntityID(ctx context.Context, entityID int) (*CanonicalCell, error) {
	return s.getOne(ctx, `WHERE entity_id = ?`, entityID)
}

func (s *Store) getOne(ctx context.Context, where string, arg interface{}) (*CanonicalCell, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entity_id, cell_id, name, type, organ, cp_id, anatomy_id, cell_type_id
		FROM cells `+where, arg)
	c, err := scanCell(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}

	aliases, err := s.aliasesFor(ctx, c.CellID)
	if err != nil {
		return nil, err
	}
	c.SetAliases(aliases)
	return c, nil
}

func (s *Store) aliasesFor(ctx context.Context, cellID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT alias FROM cell_aliases WHERE cell_id = ?`, cellID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query aliases for cell %d", cellID)
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, errors.Wrap(err, "failed to scan alias")
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

// Add inserts a new cell. When the cell carries no valid external id
// (CellID <= 0) a synthetic negative one is assigned. When a cell with the
// same external id already exists, the existing entity id is adopted and any
// new aliases are merged instead.
//
// On success the given cell's EntityID (and possibly CellID) are updated in
// place.
func (s *Store) Add(ctx context.Context, c *CanonicalCell) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if c.CellID <= 0 {
		// An import file may re-declare a known cell by name only; reuse
		// its id rather than minting another synthetic one.
		var existingID int64
		err := tx.QueryRowContext(ctx,
			`SELECT cell_id FROM cells WHERE name = ?`, c.NameUpper()).Scan(&existingID)
		switch {
		case err == nil:
			c.CellID = existingID
		case errors.Is(err, sql.ErrNoRows):
			id, err := nextSyntheticID(ctx, tx)
			if err != nil {
				return err
			}
			c.CellID = id
		default:
			return errors.Wrap(err, "failed to look up cell by name")
		}
	}

	var entityID int
	err = tx.QueryRowContext(ctx,
		`SELECT entity_id FROM cells WHERE cell_id = ?`, c.CellID).Scan(&entityID)
	switch {
	case err == nil:
		c.EntityID = entityID
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO cell_entities (entity_type) VALUES ('CELL')`)
		if err != nil {
			return errors.Wrap(err, "failed to insert cell entity")
		}
		id64, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "failed to read entity id")
		}
		c.EntityID = int(id64)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cells (entity_id, cell_id, name, type, organ, cp_id, anatomy_id, cell_type_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.EntityID, c.CellID, c.NameUpper(), c.Type, c.Organ, c.CpID, c.AnatomyID, c.CellTypeID)
		if err != nil {
			return errors.Wrapf(err, "failed to insert cell %s", c.NameUpper())
		}
	default:
		return errors.Wrap(err, "failed to look up cell")
	}

	if err := insertAliases(ctx, tx, c); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

// Update rewrites the cell record identified by CellID and replaces its
// aliases with the ones on the given cell.
func (s *Store) Update(ctx context.Context, c *CanonicalCell) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE cells SET name = ?, type = ?, organ = ?, cp_id = ?, anatomy_id = ?, cell_type_id = ?
		WHERE cell_id = ?`,
		c.NameUpper(), c.Type, c.Organ, c.CpID, c.AnatomyID, c.CellTypeID, c.CellID)
	if err != nil {
		return errors.Wrapf(err, "failed to update cell %d", c.CellID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("cell %d", c.CellID)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cell_aliases WHERE cell_id = ?`, c.CellID); err != nil {
		return errors.Wrapf(err, "failed to clear aliases for cell %d", c.CellID)
	}
	if err := insertAliases(ctx, tx, c); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

// Delete removes the cell with the given external id, its aliases, and its
// entity record.
func (s *Store) Delete(ctx context.Context, cellID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var entityID int
	err = tx.QueryRowContext(ctx,
		`SELECT entity_id FROM cells WHERE cell_id = ?`, cellID).Scan(&entityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.NewNotFoundError("cell %d", cellID)
		}
		return errors.Wrap(err, "failed to look up cell")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cell_aliases WHERE cell_id = ?`, cellID); err != nil {
		return errors.Wrapf(err, "failed to delete aliases for cell %d", cellID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cells WHERE cell_id = ?`, cellID); err != nil {
		return errors.Wrapf(err, "failed to delete cell %d", cellID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cell_entities WHERE entity_id = ?`, entityID); err != nil {
		return errors.Wrapf(err, "failed to delete entity %d", entityID)
	}

	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

// Count returns the number of cells in the catalog.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cells`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count cells")
	}
	return n, nil
}

// nextSyntheticID returns the next free negative cell id, starting at -1.
func nextSyntheticID(ctx context.Context, tx *sql.Tx) (int64, error) {
	var min sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MIN(cell_id) FROM cells`).Scan(&min); err != nil {
		return 0, errors.Wrap(err, "failed to find synthetic cell id")
	}
	if min.Valid && min.Int64 < 0 {
		return min.Int64 - 1, nil
	}
	return -1, nil
}

func insertAliases(ctx context.Context, tx *sql.Tx, c *CanonicalCell) error {
	for _, alias := range c.Aliases() {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO cell_aliases (cell_id, alias) VALUES (?, ?)`,
			c.CellID, alias)
		if err != nil {
			return errors.Wrapf(err, "failed to insert alias %s for cell %d", alias, c.CellID)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCell(row rowScanner) (*CanonicalCell, error) {
	var c CanonicalCell
	err := row.Scan(&c.EntityID, &c.CellID, &c.Name, &c.Type, &c.Organ,
		&c.CpID, &c.AnatomyID, &c.CellTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan cell")
	}
	return &c, nil
}
