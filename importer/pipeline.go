// Package importer streams tab-delimited measurement matrices into a
// profile. One run reads one data file: the header names the samples, each
// following row carries one cell type's values, and every stored row is
// packed against the profile's immutable sample order.
package importer

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cytobase/cytobase/alteration"
	"github.com/cytobase/cytobase/catalog"
	"github.com/cytobase/cytobase/errors"
	"github.com/cytobase/cytobase/profile"
	"github.com/cytobase/cytobase/samples"
)

// SkipReason tags why a data row was not stored. Skips are per-row and
// never abort the run; fatal conditions surface as errors from Run.
type SkipReason string

const (
	SkipWiderThanHeader  SkipReason = "wider_than_header"
	SkipNoIdentifier     SkipReason = "no_identifier"
	SkipCompositeName    SkipReason = "composite_name"
	SkipInvalidNumericID SkipReason = "invalid_numeric_id"
	SkipUnresolved       SkipReason = "unresolved"
	SkipAmbiguous        SkipReason = "ambiguous"
	SkipDuplicateEntity  SkipReason = "duplicate_entity"
	SkipTargetLine       SkipReason = "target_line_mismatch"
	SkipAlreadyStored    SkipReason = "already_stored"
)

// Result summarizes one import run.
type Result struct {
	Stored          int
	Skipped         int
	Reasons         map[SkipReason]int
	FilteredSamples []string // normal samples dropped from the matrix
}

func (r *Result) skip(reason SkipReason) {
	r.Skipped++
	r.Reasons[reason]++
}

// Header columns that carry identity rather than sample values. Both the
// short and the fully qualified spellings are accepted.
var (
	nameColumns = map[string]bool{"UNIQUE_NAME": true, "UNIQUE_CELL_NAME": true}
	idColumns   = map[string]bool{"UNIQUE_ID": true, "UNIQUE_CELL_ID": true}
)

func reservedColumn(name string) bool {
	up := strings.ToUpper(name)
	return nameColumns[up] || idColumns[up]
}

// TabMatrix imports one tab-delimited matrix per Run call. The writer
// decides the durability strategy; everything else is shared lookup state.
type TabMatrix struct {
	cache    *catalog.Cache
	registry *samples.Registry
	links    *profile.SampleProfileStore
	orders   *alteration.SampleOrderStore
	writer   alteration.Writer
	log      *zap.SugaredLogger
}

// NewTabMatrix assembles an import pipeline.
func NewTabMatrix(
	cache *catalog.Cache,
	registry *samples.Registry,
	links *profile.SampleProfileStore,
	orders *alteration.SampleOrderStore,
	writer alteration.Writer,
	log *zap.SugaredLogger,
) *TabMatrix {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &TabMatrix{
		cache:    cache,
		registry: registry,
		links:    links,
		orders:   orders,
		writer:   writer,
		log:      log,
	}
}

// Run imports the matrix into the profile. It returns a Result on success;
// a non-nil error means the run is void (malformed header, unknown tumor
// sample, storage failure, or zero stored rows).
func (m *TabMatrix) Run(ctx context.Context, r io.Reader, prof *profile.Profile) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to read header")
		}
		return nil, errors.New("data file is empty")
	}
	header := strings.Split(scanner.Text(), "\t")

	nameCol, idCol := -1, -1
	for i, col := range header {
		up := strings.ToUpper(strings.TrimSpace(col))
		switch {
		case nameColumns[up]:
			nameCol = i
		case idColumns[up]:
			idCol = i
		}
	}
	if nameCol < 0 && idCol < 0 {
		return nil, errors.New("header has neither a name nor an id column")
	}

	sampleStart := 0
	for sampleStart < len(header) && reservedColumn(strings.TrimSpace(header[sampleStart])) {
		sampleStart++
	}
	for i := sampleStart; i <= max(nameCol, idCol); i++ {
		if !reservedColumn(strings.TrimSpace(header[i])) {
			return nil, errors.Newf("sample column %q precedes an identity column", header[i])
		}
	}
	if sampleStart >= len(header) {
		return nil, errors.New("header has no sample columns")
	}

	result := &Result{Reasons: make(map[SkipReason]int)}

	sampleOrder, filtered, err := m.linkSamples(ctx, header[sampleStart:], prof, result)
	if err != nil {
		return nil, err
	}
	if err := m.orders.Set(ctx, prof.ID, sampleOrder); err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	line := 1
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if err := m.consumeRow(ctx, raw, line, header, nameCol, idCol, sampleStart,
			filtered, prof, seen, result); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read data file")
	}

	if err := m.writer.Flush(ctx); err != nil {
		return nil, err
	}
	if result.Stored == 0 {
		return nil, errors.Wrap(errors.ErrNoRecordsStored, "import run stored nothing")
	}
	return result, nil
}

// linkSamples resolves every sample column against the registry, registers
// the sample-profile links, and returns the profile's sample order plus the
// set of column indices (relative to the sample region) to drop from each
// row. An unknown sample is tolerated only when it denotes normal material.
func (m *TabMatrix) linkSamples(ctx context.Context, refs []string, prof *profile.Profile, result *Result) ([]int, map[int]bool, error) {
	order := make([]int, 0, len(refs))
	filtered := make(map[int]bool)
	for i, ref := range refs {
		norm := samples.Normalize(ref)
		sm, err := m.registry.Get(ctx, prof.StudyID, norm)
		if err != nil {
			if !errors.IsNotFoundError(err) {
				return nil, nil, err
			}
			if !samples.IsNormal(norm) {
				return nil, nil, errors.Newf("sample %q not registered in study %d", norm, prof.StudyID)
			}
			m.log.Debugw("Filtering normal sample", "sample", norm)
			filtered[i] = true
			result.FilteredSamples = append(result.FilteredSamples, norm)
			continue
		}

		if err := m.links.Link(ctx, sm.ID, prof.ID, ""); err != nil && !errors.IsDuplicateError(err) {
			return nil, nil, err
		}
		order = append(order, sm.ID)
	}
	if len(order) == 0 {
		return nil, nil, errors.New("every sample column was filtered out")
	}
	return order, filtered, nil
}

func (m *TabMatrix) consumeRow(
	ctx context.Context,
	raw string,
	line int,
	header []string,
	nameCol, idCol, sampleStart int,
	filtered map[int]bool,
	prof *profile.Profile,
	seen map[int]bool,
	result *Result,
) error {
	parts := strings.Split(raw, "\t")
	if len(parts) > len(header) {
		m.log.Warnw("Row wider than header, skipping", "line", line,
			"columns", len(parts), "header_columns", len(header))
		result.skip(SkipWiderThanHeader)
		return nil
	}

	if prof.TargetLine != "" && strings.TrimSpace(parts[0]) != prof.TargetLine {
		result.skip(SkipTargetLine)
		return nil
	}

	name := columnValue(parts, nameCol)
	idToken := columnValue(parts, idCol)
	if name == "" && idToken == "" {
		result.skip(SkipNoIdentifier)
		return nil
	}
	if strings.Contains(name, "///") || strings.Contains(name, "---") {
		result.skip(SkipCompositeName)
		return nil
	}

	var cell *catalog.CanonicalCell
	if idToken != "" {
		id, err := strconv.ParseInt(idToken, 10, 64)
		if err != nil {
			m.log.Warnw("Invalid numeric cell id, skipping", "line", line, "id", idToken)
			result.skip(SkipInvalidNumericID)
			return nil
		}
		cell = m.cache.Cell(id)
	}
	if cell == nil && name != "" {
		// Probe-style names carry alternatives behind '|'; only the first
		// counts.
		first := strings.TrimSpace(strings.SplitN(name, "|", 2)[0])
		candidates := m.cache.Guess(first, "")
		switch len(candidates) {
		case 0:
		case 1:
			cell = candidates[0]
		default:
			cell = m.cache.ResolveUnique(first, "", true)
			if cell == nil {
				result.skip(SkipAmbiguous)
				return nil
			}
		}
	}
	if cell == nil {
		m.log.Warnw("Identifier resolves to no known cell, skipping",
			"line", line, "name", name, "id", idToken)
		result.skip(SkipUnresolved)
		return nil
	}

	if seen[cell.EntityID] {
		m.log.Warnw("Duplicate row for cell, skipping", "line", line, "cell", cell.Name)
		result.skip(SkipDuplicateEntity)
		return nil
	}

	values := sampleValues(parts, header, sampleStart, filtered)
	packed, err := alteration.Pack(values)
	if err != nil {
		return errors.Wrapf(err, "line %d", line)
	}
	if err := m.writer.WriteRow(ctx, prof.ID, cell.EntityID, packed); err != nil {
		if errors.IsDuplicateError(err) {
			m.log.Warnw("Row for cell already stored, skipping", "line", line, "cell", cell.Name)
			result.skip(SkipAlreadyStored)
			return nil
		}
		return err
	}
	seen[cell.EntityID] = true
	result.Stored++
	return nil
}

// sampleValues slices the sample region out of a row, padding short rows
// with empty values so every stored vector matches the sample order, and
// dropping the filtered columns in place.
func sampleValues(parts, header []string, sampleStart int, filtered map[int]bool) []string {
	out := make([]string, 0, len(header)-sampleStart)
	for i := sampleStart; i < len(header); i++ {
		if filtered[i-sampleStart] {
			continue
		}
		if i < len(parts) {
			out = append(out, strings.TrimSpace(parts[i]))
		} else {
			out = append(out, "")
		}
	}
	return out
}

func columnValue(parts []string, col int) string {
	if col < 0 || col >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[col])
}
