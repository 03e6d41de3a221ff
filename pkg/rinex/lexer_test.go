package rinex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFloat_FortranExponent(t *testing.T) {
	f, err := parseFloat(" 1.051961444318D-04")
	assert.NoError(t, err)
	assert.InDelta(t, 1.051961444318e-4, f, 1e-18)
}

func TestParseFieldOrMissing_Blank(t *testing.T) {
	line := "              "
	f, err := parseFieldOrMissing(line, 0, 14)
	assert.NoError(t, err)
	assert.Equal(t, missingSentinel, f)
}

func TestParseFieldOrMissing_ShortLine(t *testing.T) {
	line := "12345"
	f, err := parseFieldOrMissing(line, 0, 14)
	assert.NoError(t, err)
	assert.InDelta(t, 12345.0, f, 1e-9)
}

func TestSliceField_OutOfRange(t *testing.T) {
	assert.Equal(t, "", sliceField("abc", 10, 5))
	assert.Equal(t, "c", sliceField("abc", 2, 5))
}

func TestParseNavFloats(t *testing.T) {
	line := "     6.100000000000E+01 5.971875000000E+01 4.119457306218E-09-2.150395402634E+00"
	vals, err := parseNavFloats(line, 4, 19, 4)
	assert.NoError(t, err)
	assert.InDelta(t, 61.0, vals[0], 1e-9)
	assert.InDelta(t, 59.71875, vals[1], 1e-9)
}
