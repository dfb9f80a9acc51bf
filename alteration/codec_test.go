package alteration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytobase/cytobase/errors"
)

func TestPack(t *testing.T) {
	packed, err := Pack([]string{"1.5", "NaN", "-0.25"})
	require.NoError(t, err)
	assert.Equal(t, "1.5,NaN,-0.25,", packed)

	packed, err = Pack(nil)
	require.NoError(t, err)
	assert.Equal(t, "", packed)

	// A trailing empty value is kept by the trailing delimiter.
	packed, err = Pack([]string{"1", ""})
	require.NoError(t, err)
	assert.Equal(t, "1,,", packed)
}

func TestPackRejectsDelimiterInValue(t *testing.T) {
	_, err := Pack([]string{"1,5"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidValue))
}

func TestUnpack(t *testing.T) {
	order := []int{10, 11, 12}

	values, err := Unpack("1.5,NaN,-0.25,", order)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{10: "1.5", 11: "NaN", 12: "-0.25"}, values)

	// A short row covers a prefix of the order.
	values, err = Unpack("1.5,", order)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{10: "1.5"}, values)

	values, err = Unpack("", order)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestUnpackRejectsRowLongerThanOrder(t *testing.T) {
	_, err := Unpack("1,2,3,", []int{10, 11})
	assert.Error(t, err)
}

func TestPackUnpackRoundTrip(t *testing.T) {
	order := []int{1, 2, 3, 4}
	in := []string{"0.0", "12", "NaN", "-3.75"}

	packed, err := Pack(in)
	require.NoError(t, err)
	values, err := Unpack(packed, order)
	require.NoError(t, err)

	for i, id := range order {
		assert.Equal(t, in[i], values[id])
	}
}
