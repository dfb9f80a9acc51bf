package alteration

import (
	"context"
	"database/sql"

	"github.com/cytobase/cytobase/errors"
)

// Store reads packed alteration rows. Writing goes through a Writer so the
// buffered and transactional paths share one insert shape.
type Store struct {
	db *sql.DB
}

// NewStore creates an alteration store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PackedRow returns the raw packed row for one (profile, entity) pair, or
// ErrNotFound.
func (s *Store) PackedRow(ctx context.Context, profileID, entityID int) (string, error) {
	var packed string
	err := s.db.QueryRowContext(ctx, `
		SELECT packed FROM cell_alterations WHERE profile_id = ? AND entity_id = ?`,
		profileID, entityID).Scan(&packed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errors.NewNotFoundError("no alteration row for profile %d entity %d",
				profileID, entityID)
		}
		return "", errors.Wrapf(err, "failed to load alteration row for profile %d entity %d",
			profileID, entityID)
	}
	return packed, nil
}

// Values returns the entity's measurement per sample id. Samples the stored
// row does not cover, and the whole row when the entity has none, come back
// as NaN.
func (s *Store) Values(ctx context.Context, profileID, entityID int, sampleOrder []int) (map[int]string, error) {
	out := make(map[int]string, len(sampleOrder))
	for _, id := range sampleOrder {
		out[id] = NaN
	}

	packed, err := s.PackedRow(ctx, profileID, entityID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return out, nil
		}
		return nil, err
	}

	unpacked, err := Unpack(packed, sampleOrder)
	if err != nil {
		return nil, err
	}
	for id, v := range unpacked {
		out[id] = v
	}
	return out, nil
}

// ValuesSubset returns the entity's measurement for the requested samples
// only. sampleOrder must be the profile's full order; subset samples the
// order does not cover come back as NaN.
func (s *Store) ValuesSubset(ctx context.Context, profileID, entityID int, sampleOrder, subset []int) (map[int]string, error) {
	full, err := s.Values(ctx, profileID, entityID, sampleOrder)
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(subset))
	for _, id := range subset {
		if v, ok := full[id]; ok {
			out[id] = v
		} else {
			out[id] = NaN
		}
	}
	return out, nil
}

// EntityIDsInProfile returns the entity ids that have a row in the profile.
func (s *Store) EntityIDsInProfile(ctx context.Context, profileID int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id FROM cell_alterations WHERE profile_id = ? ORDER BY entity_id`,
		profileID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query entities in profile %d", profileID)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan entity id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountInProfile returns the number of alteration rows in the profile.
func (s *Store) CountInProfile(ctx context.Context, profileID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cell_alterations WHERE profile_id = ?`, profileID).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count alterations in profile %d", profileID)
	}
	return n, nil
}

// Count returns the number of alteration rows across all profiles.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cell_alterations`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count alterations")
	}
	return n, nil
}

// DeleteProfile removes every alteration row of the profile.
func (s *Store) DeleteProfile(ctx context.Context, profileID int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cell_alterations WHERE profile_id = ?`, profileID)
	return errors.Wrapf(err, "failed to delete alterations for profile %d", profileID)
}
