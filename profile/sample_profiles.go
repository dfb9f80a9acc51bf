package profile

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cytobase/cytobase/errors"
)

// SampleProfileStore records which samples take part in which profile, with
// an optional measurement panel id per link.
type SampleProfileStore struct {
	db *sql.DB
}

// NewSampleProfileStore creates a sample-profile link store.
func NewSampleProfileStore(db *sql.DB) *SampleProfileStore {
	return &SampleProfileStore{db: db}
}

// Link registers a sample in a profile. panelID may be empty. Returns
// ErrDuplicate when the link exists.
func (s *SampleProfileStore) Link(ctx context.Context, sampleID, profileID int, panelID string) error {
	var panel interface{}
	if panelID != "" {
		panel = panelID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sample_cell_profiles (sample_id, profile_id, panel_id)
		VALUES (?, ?, ?)`,
		sampleID, profileID, panel)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.NewDuplicateError("sample %d already linked to profile %d",
				sampleID, profileID)
		}
		return errors.Wrapf(err, "failed to link sample %d to profile %d", sampleID, profileID)
	}
	return nil
}

// Linked reports whether the sample is registered in the profile.
func (s *SampleProfileStore) Linked(ctx context.Context, sampleID, profileID int) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM sample_cell_profiles WHERE sample_id = ? AND profile_id = ?`,
		sampleID, profileID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to check sample %d in profile %d",
			sampleID, profileID)
	}
	return true, nil
}

// CountSamples returns the number of samples linked to the profile.
func (s *SampleProfileStore) CountSamples(ctx context.Context, profileID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sample_cell_profiles WHERE profile_id = ?`, profileID).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count samples in profile %d", profileID)
	}
	return n, nil
}
