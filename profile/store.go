package profile

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/cytobase/cytobase/errors"
)

// Store persists profiles and keeps an in-memory index over them. Lookups by
// stable id, surrogate id and study are served from the index; mutations
// write the database first and then patch the index.
type Store struct {
	db *sql.DB

	mu         sync.RWMutex
	byStableID map[string]*Profile
	byID       map[int]*Profile
	byStudy    map[int][]*Profile
}

// NewStore creates a profile store and fills its index from the database.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.Rebuild(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Rebuild rescans the cell_profiles table and rebuilds the index.
func (s *Store) Rebuild(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT profile_id, stable_id, study_id, alteration_kind, datatype,
		       name, description, show_in_analysis_tab, target_line
		FROM cell_profiles`)
	if err != nil {
		return errors.Wrap(err, "failed to query profiles")
	}
	defer rows.Close()

	byStableID := make(map[string]*Profile)
	byID := make(map[int]*Profile)
	byStudy := make(map[int][]*Profile)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return err
		}
		byStableID[p.StableID] = p
		byID[p.ID] = p
		byStudy[p.StudyID] = append(byStudy[p.StudyID], p)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "failed to iterate profiles")
	}

	s.mu.Lock()
	s.byStableID, s.byID, s.byStudy = byStableID, byID, byStudy
	s.mu.Unlock()
	return nil
}

// Add inserts the profile and records its assigned id. Returns ErrDuplicate
// when the stable id is taken.
func (s *Store) Add(ctx context.Context, p *Profile) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cell_profiles
			(stable_id, study_id, alteration_kind, datatype, name, description,
			 show_in_analysis_tab, target_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.StableID, p.StudyID, string(p.Kind), p.Datatype, p.Name, p.Description,
		p.ShowInAnalysisTab, p.TargetLine)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.NewDuplicateError("profile %s already exists", p.StableID)
		}
		return errors.Wrapf(err, "failed to insert profile %s", p.StableID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read profile id")
	}
	p.ID = int(id)

	s.mu.Lock()
	s.byStableID[p.StableID] = p
	s.byID[p.ID] = p
	s.byStudy[p.StudyID] = append(s.byStudy[p.StudyID], p)
	s.mu.Unlock()
	return nil
}

// GetByStableID returns the profile with the given stable id, or ErrNotFound.
func (s *Store) GetByStableID(stableID string) (*Profile, error) {
	s.mu.RLock()
	p := s.byStableID[stableID]
	s.mu.RUnlock()
	if p == nil {
		return nil, errors.NewNotFoundError("profile %s", stableID)
	}
	return p, nil
}

// GetByID returns the profile with the given surrogate id, or ErrNotFound.
func (s *Store) GetByID(id int) (*Profile, error) {
	s.mu.RLock()
	p := s.byID[id]
	s.mu.RUnlock()
	if p == nil {
		return nil, errors.NewNotFoundError("profile %d", id)
	}
	return p, nil
}

// ByStudy returns the profiles of one study.
func (s *Store) ByStudy(studyID int) []*Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Profile(nil), s.byStudy[studyID]...)
}

// All returns every profile.
func (s *Store) All() []*Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Profile, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	return out
}

// Count returns the number of profiles.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// UpdateNameAndDescription rewrites the display fields of a profile.
func (s *Store) UpdateNameAndDescription(ctx context.Context, id int, name, description string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cell_profiles SET name = ?, description = ? WHERE profile_id = ?`,
		name, description, id)
	if err != nil {
		return errors.Wrapf(err, "failed to update profile %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("profile %d", id)
	}

	s.mu.Lock()
	if p := s.byID[id]; p != nil {
		p.Name, p.Description = name, description
	}
	s.mu.Unlock()
	return nil
}

// Delete removes the profile together with its alteration rows, its sample
// order and its sample links.
func (s *Store) Delete(ctx context.Context, id int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM cell_alterations WHERE profile_id = ?`,
		`DELETE FROM cell_profile_samples WHERE profile_id = ?`,
		`DELETE FROM sample_cell_profiles WHERE profile_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return errors.Wrapf(err, "failed to delete dependents of profile %d", id)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cell_profiles WHERE profile_id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete profile %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("profile %d", id)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	s.mu.Lock()
	if p := s.byID[id]; p != nil {
		delete(s.byStableID, p.StableID)
		delete(s.byID, id)
		bucket := s.byStudy[p.StudyID]
		for i, candidate := range bucket {
			if candidate.ID == id {
				s.byStudy[p.StudyID] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
		if len(s.byStudy[p.StudyID]) == 0 {
			delete(s.byStudy, p.StudyID)
		}
	}
	s.mu.Unlock()
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var kind string
	err := row.Scan(&p.ID, &p.StableID, &p.StudyID, &kind, &p.Datatype,
		&p.Name, &p.Description, &p.ShowInAnalysisTab, &p.TargetLine)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan profile")
	}
	p.Kind = AlterationKind(kind)
	return &p, nil
}
