// Package samples registers the samples of each study and normalizes the
// sample references found in data-file headers. TCGA-style barcodes carry
// vial, portion and analyte suffixes that the registry stores without, and
// a tissue type code that distinguishes tumor from normal material.
package samples

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"github.com/cytobase/cytobase/errors"
)

// Sample is one registered sample within a study.
type Sample struct {
	ID       int
	StudyID  int
	StableID string
}

var (
	// TCGA-XX-XXXX-NN plus optional vial/portion/analyte suffixes; the
	// capture is the canonical stored form.
	tcgaSampleBarcode = regexp.MustCompile(`^(TCGA-[^-]+-[^-]+-\d{2}).*$`)
	// Tissue type codes 10-19 mark normal material.
	tcgaNormalBarcode = regexp.MustCompile(`^TCGA-[^-]+-[^-]+-1[0-9]$`)
)

// Normalize returns the canonical form of a sample reference: surrounding
// whitespace trimmed and TCGA barcodes truncated to patient plus tissue type
// code. Non-TCGA references pass through unchanged.
func Normalize(ref string) string {
	ref = strings.TrimSpace(ref)
	if m := tcgaSampleBarcode.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	return ref
}

// IsNormal reports whether a normalized sample reference denotes normal
// (non-tumor) material: a TCGA tissue type code of 10-19, or an explicit
// "-NT" or "-N" suffix.
func IsNormal(ref string) bool {
	if tcgaNormalBarcode.MatchString(ref) {
		return true
	}
	return strings.HasSuffix(ref, "-NT") || strings.HasSuffix(ref, "-N")
}

// Registry persists samples and resolves normalized references against a
// study.
type Registry struct {
	db *sql.DB
}

// NewRegistry creates a sample registry backed by the given database.
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Get returns the sample with the given normalized stable id within the
// study, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, studyID int, stableID string) (*Sample, error) {
	var sm Sample
	err := r.db.QueryRowContext(ctx, `
		SELECT sample_id, study_id, stable_id FROM samples
		WHERE study_id = ? AND stable_id = ?`,
		studyID, stableID).Scan(&sm.ID, &sm.StudyID, &sm.StableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("sample %s in study %d", stableID, studyID)
		}
		return nil, errors.Wrapf(err, "failed to load sample %s in study %d", stableID, studyID)
	}
	return &sm, nil
}

// Add registers a sample under its normalized stable id and records the
// assigned id. Returns ErrDuplicate when the sample is already registered.
func (r *Registry) Add(ctx context.Context, sm *Sample) error {
	sm.StableID = Normalize(sm.StableID)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO samples (study_id, stable_id) VALUES (?, ?)`, sm.StudyID, sm.StableID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.NewDuplicateError("sample %s already registered in study %d",
				sm.StableID, sm.StudyID)
		}
		return errors.Wrapf(err, "failed to register sample %s", sm.StableID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read sample id")
	}
	sm.ID = int(id)
	return nil
}

// StableIDs maps internal sample ids back to stable ids, preserving order.
// An id with no sample is an error.
func (r *Registry) StableIDs(ctx context.Context, ids []int) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		var stableID string
		err := r.db.QueryRowContext(ctx,
			`SELECT stable_id FROM samples WHERE sample_id = ?`, id).Scan(&stableID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, errors.NewNotFoundError("sample id %d", id)
			}
			return nil, errors.Wrapf(err, "failed to load sample %d", id)
		}
		out[i] = stableID
	}
	return out, nil
}

// CountByStudy returns the number of samples registered in the study.
func (r *Registry) CountByStudy(ctx context.Context, studyID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM samples WHERE study_id = ?`, studyID).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count samples in study %d", studyID)
	}
	return n, nil
}
