// Package profile manages measurement profiles: the named destinations that
// group one import run's alteration rows, their linkage to samples, and the
// TOML descriptors that declare them.
package profile

// AlterationKind classifies what a profile's values measure.
type AlterationKind string

const (
	CellRelativeAbundance AlterationKind = "CELL_RELATIVE_ABUNDANCE"
	CellAbsoluteCount     AlterationKind = "CELL_ABSOLUTE_COUNT"
	CopyNumberAlteration  AlterationKind = "COPY_NUMBER_ALTERATION"
	MRNAExpression        AlterationKind = "MRNA_EXPRESSION"
	MethylationSignal     AlterationKind = "METHYLATION_SIGNAL"
)

// Known reports whether the kind is one this system understands. Unknown
// kinds are rejected at descriptor load, not silently stored.
func (k AlterationKind) Known() bool {
	switch k {
	case CellRelativeAbundance, CellAbsoluteCount, CopyNumberAlteration,
		MRNAExpression, MethylationSignal:
		return true
	}
	return false
}

func (k AlterationKind) String() string {
	return string(k)
}

// Profile is one measurement profile within a study. StableID is the
// externally visible unique handle; ID is the database surrogate used to key
// alteration rows and the sample order.
type Profile struct {
	ID                int
	StableID          string
	StudyID           int
	Kind              AlterationKind
	Datatype          string
	Name              string
	Description       string
	ShowInAnalysisTab bool
	TargetLine        string
}
