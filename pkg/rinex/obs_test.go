package rinex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/whigg/gnssproc/pkg/gnss"
)

func TestConvStringsToObscodes(t *testing.T) {
	codes := convStringsToObscodes([]string{"C1C", "L1C", "bogus", "D1C"})
	assert.Equal(t, []gnss.ObsCode{
		{Type: gnss.ObsTypePseudorange, Band: '1', Attr: 'C'},
		{Type: gnss.ObsTypeCarrierPhase, Band: '1', Attr: 'C'},
		{Type: gnss.ObsTypeDoppler, Band: '1', Attr: 'C'},
	}, codes)
}

func TestCoordNEU_String(t *testing.T) {
	c := CoordNEU{N: 1, E: 2, Up: 3}
	assert.Equal(t, "N=1.0000 E=2.0000 Up=3.0000", c.String())
}

func TestParseHeaderDate(t *testing.T) {
	_, err := parseHeaderDate("2021-01-01 00:00:00")
	assert.NoError(t, err)

	_, err = parseHeaderDate("not a date")
	assert.Error(t, err)
}
