// Package study holds the minimal study registry the import pipeline needs:
// profiles belong to a study and samples are scoped by one.
package study

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cytobase/cytobase/errors"
)

// Study is one dataset namespace. StableID is the external handle used in
// profile descriptors.
type Study struct {
	ID       int
	StableID string
	Name     string
}

// Store persists studies.
type Store struct {
	db *sql.DB
}

// NewStore creates a study store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetByStableID returns the study with the given stable id, or ErrNotFound.
func (s *Store) GetByStableID(ctx context.Context, stableID string) (*Study, error) {
	var st Study
	err := s.db.QueryRowContext(ctx, `
		SELECT study_id, stable_id, name FROM studies WHERE stable_id = ?`,
		stableID).Scan(&st.ID, &st.StableID, &st.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("study %s", stableID)
		}
		return nil, errors.Wrapf(err, "failed to load study %s", stableID)
	}
	return &st, nil
}

// Add inserts a study and records its assigned id. Returns ErrDuplicate when
// the stable id is taken.
func (s *Store) Add(ctx context.Context, st *Study) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO studies (stable_id, name) VALUES (?, ?)`, st.StableID, st.Name)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.NewDuplicateError("study %s already exists", st.StableID)
		}
		return errors.Wrapf(err, "failed to insert study %s", st.StableID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read study id")
	}
	st.ID = int(id)
	return nil
}

// Count returns the number of studies.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM studies`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count studies")
	}
	return n, nil
}
