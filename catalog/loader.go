package catalog

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cytobase/cytobase/errors"
)

// LoadResult summarizes one catalog load.
type LoadResult struct {
	Added   int
	Skipped int
}

// LoadCatalog reads a tab-delimited reference catalog into the cache. The
// header names the columns CELL_ID, NAME, ALIASES, TYPE and ORGAN
// (case-insensitive, any order); NAME is required. Aliases are separated by
// '|'. A row without a cell id gets a synthetic negative one. Lines starting
// with '#' and blank lines are ignored; malformed rows warn and are skipped.
func LoadCatalog(ctx context.Context, r io.Reader, cache *Cache, log *zap.SugaredLogger) (*LoadResult, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to read catalog header")
		}
		return nil, errors.New("catalog file is empty")
	}

	cols := map[string]int{}
	for i, col := range strings.Split(scanner.Text(), "\t") {
		cols[strings.ToUpper(strings.TrimSpace(col))] = i
	}
	nameCol, ok := cols["NAME"]
	if !ok {
		return nil, errors.New("catalog header has no NAME column")
	}
	idCol, hasID := cols["CELL_ID"]
	aliasCol, hasAliases := cols["ALIASES"]
	typeCol, hasType := cols["TYPE"]
	organCol, hasOrgan := cols["ORGAN"]

	field := func(parts []string, col int, ok bool) string {
		if !ok || col >= len(parts) {
			return ""
		}
		return strings.TrimSpace(parts[col])
	}

	result := &LoadResult{}
	line := 1
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		parts := strings.Split(raw, "\t")

		name := field(parts, nameCol, true)
		if name == "" {
			log.Warnw("Catalog row without a name, skipping", "line", line)
			result.Skipped++
			continue
		}

		var cellID int64
		if idToken := field(parts, idCol, hasID); idToken != "" {
			id, err := strconv.ParseInt(idToken, 10, 64)
			if err != nil {
				log.Warnw("Catalog row with invalid cell id, skipping",
					"line", line, "id", idToken)
				result.Skipped++
				continue
			}
			cellID = id
		}

		var aliases []string
		if list := field(parts, aliasCol, hasAliases); list != "" {
			for _, alias := range strings.Split(list, "|") {
				if alias = strings.TrimSpace(alias); alias != "" {
					aliases = append(aliases, alias)
				}
			}
		}

		cell := NewCanonicalCell(cellID, name, aliases...)
		cell.Type = field(parts, typeCol, hasType)
		cell.Organ = field(parts, organCol, hasOrgan)
		if err := cache.Add(ctx, cell); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		result.Added++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read catalog file")
	}
	return result, nil
}
