package alteration

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/cytobase/cytobase/errors"
)

// SampleOrderStore persists the ordered sample list of each profile, one
// row per profile. The list fixes the positional meaning of every packed
// alteration row in that profile, so once written it is immutable; delete
// the profile's data and re-import to change it.
type SampleOrderStore struct {
	db *sql.DB
}

// NewSampleOrderStore creates a sample-order store backed by the given
// database.
func NewSampleOrderStore(db *sql.DB) *SampleOrderStore {
	return &SampleOrderStore{db: db}
}

// Set records the ordered sample list for a profile. Returns ErrDuplicate
// when the profile already has one.
func (s *SampleOrderStore) Set(ctx context.Context, profileID int, sampleIDs []int) error {
	parts := make([]string, len(sampleIDs))
	for i, id := range sampleIDs {
		parts[i] = strconv.Itoa(id)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cell_profile_samples (profile_id, ordered_sample_list)
		VALUES (?, ?)`,
		profileID, strings.Join(parts, Delimiter))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.NewDuplicateError("sample order for profile %d already set", profileID)
		}
		return errors.Wrapf(err, "failed to store sample order for profile %d", profileID)
	}
	return nil
}

// Get returns the ordered sample list for a profile, or ErrNotFound.
func (s *SampleOrderStore) Get(ctx context.Context, profileID int) ([]int, error) {
	var packed string
	err := s.db.QueryRowContext(ctx, `
		SELECT ordered_sample_list FROM cell_profile_samples WHERE profile_id = ?`,
		profileID).Scan(&packed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("no sample order for profile %d", profileID)
		}
		return nil, errors.Wrapf(err, "failed to load sample order for profile %d", profileID)
	}
	if packed == "" {
		return nil, nil
	}
	parts := strings.Split(packed, Delimiter)
	ids := make([]int, len(parts))
	for i, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt sample order for profile %d", profileID)
		}
		ids[i] = id
	}
	return ids, nil
}

// Delete removes the sample order for a profile. Deleting an absent order
// is not an error.
func (s *SampleOrderStore) Delete(ctx context.Context, profileID int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cell_profile_samples WHERE profile_id = ?`, profileID)
	return errors.Wrapf(err, "failed to delete sample order for profile %d", profileID)
}
