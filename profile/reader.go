package profile

import (
	"context"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/cytobase/cytobase/errors"
	"github.com/cytobase/cytobase/study"
)

// Descriptor is the TOML meta file that declares a profile alongside a data
// file. The stable id is namespaced per study: a stable_id that does not
// already start with "<study_identifier>_" gets that prefix on load.
type Descriptor struct {
	StudyIdentifier    string `toml:"study_identifier"`
	AlterationKind     string `toml:"alteration_kind"`
	StableID           string `toml:"stable_id"`
	Datatype           string `toml:"datatype"`
	ProfileName        string `toml:"profile_name"`
	ProfileDescription string `toml:"profile_description"`
	ShowInAnalysisTab  *bool  `toml:"show_profile_in_analysis_tab"`
	TargetLine         string `toml:"target_line"`
}

// ReadDescriptor parses and validates a profile descriptor file.
func ReadDescriptor(path string) (*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read descriptor %s", path)
	}
	var d Descriptor
	if err := toml.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrapf(err, "failed to parse descriptor %s", path)
	}

	if d.StudyIdentifier == "" {
		return nil, errors.Newf("descriptor %s missing study_identifier", path)
	}
	if d.StableID == "" {
		return nil, errors.Newf("descriptor %s missing stable_id", path)
	}
	if !AlterationKind(d.AlterationKind).Known() {
		return nil, errors.Newf("descriptor %s has unknown alteration_kind %q",
			path, d.AlterationKind)
	}

	if !strings.HasPrefix(d.StableID, d.StudyIdentifier+"_") {
		d.StableID = d.StudyIdentifier + "_" + d.StableID
	}
	return &d, nil
}

// Load resolves the descriptor against the database: the study must already
// exist, and if a profile with the stable id exists it is returned as-is,
// otherwise one is created. Display fields left empty in the descriptor
// default to the alteration kind.
func Load(ctx context.Context, d *Descriptor, profiles *Store, studies *study.Store) (*Profile, error) {
	st, err := studies.GetByStableID(ctx, d.StudyIdentifier)
	if err != nil {
		return nil, errors.Wrapf(err, "study %s for profile %s", d.StudyIdentifier, d.StableID)
	}

	if existing, err := profiles.GetByStableID(d.StableID); err == nil {
		return existing, nil
	}

	kind := AlterationKind(d.AlterationKind)
	p := &Profile{
		StableID:          d.StableID,
		StudyID:           st.ID,
		Kind:              kind,
		Datatype:          d.Datatype,
		Name:              d.ProfileName,
		Description:       d.ProfileDescription,
		ShowInAnalysisTab: d.ShowInAnalysisTab == nil || *d.ShowInAnalysisTab,
		TargetLine:        d.TargetLine,
	}
	if p.Name == "" {
		p.Name = kind.String()
	}
	if p.Description == "" {
		p.Description = kind.String()
	}
	if err := profiles.Add(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
