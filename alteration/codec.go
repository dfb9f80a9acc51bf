// Package alteration stores measurement matrices. Each row holds every
// value for one (profile, entity) pair, packed into a single delimited
// string whose positions line up with the profile's ordered sample list.
package alteration

import (
	"strings"

	"github.com/cytobase/cytobase/errors"
)

const (
	// Delimiter separates values inside a packed row.
	Delimiter = ","
	// NaN is the placeholder stored for a missing measurement.
	NaN = "NaN"
)

// Pack joins values into one packed row. Every value is followed by the
// delimiter, including the last, so an empty trailing value survives the
// round trip. A value containing the delimiter cannot be represented and is
// rejected.
func Pack(values []string) (string, error) {
	var sb strings.Builder
	for _, v := range values {
		if strings.Contains(v, Delimiter) {
			return "", errors.Wrapf(errors.ErrInvalidValue,
				"value %q contains the delimiter %q", v, Delimiter)
		}
		sb.WriteString(v)
		sb.WriteString(Delimiter)
	}
	return sb.String(), nil
}

// Unpack splits a packed row and assigns values positionally to the sample
// ids in sampleOrder. A row shorter than the sample order covers a prefix
// of the samples; a row longer than it means the row and the order are out
// of sync and is an error.
func Unpack(packed string, sampleOrder []int) (map[int]string, error) {
	out := make(map[int]string, len(sampleOrder))
	if packed == "" {
		return out, nil
	}
	values := strings.Split(strings.TrimSuffix(packed, Delimiter), Delimiter)
	if len(values) > len(sampleOrder) {
		return nil, errors.Newf("packed row holds %d values but the profile orders %d samples",
			len(values), len(sampleOrder))
	}
	for i, v := range values {
		out[sampleOrder[i]] = v
	}
	return out, nil
}
