package gnss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPRN(t *testing.T) {
	prn, err := NewPRN("G03")
	assert.NoError(t, err)
	assert.Equal(t, SysGPS, prn.Sys)
	assert.EqualValues(t, 3, prn.Num)
	assert.Equal(t, "G03", prn.String())

	_, err = NewPRN("X03")
	assert.Error(t, err)

	_, err = NewPRN("G")
	assert.Error(t, err)
}

func TestByPRN_Sort(t *testing.T) {
	g12, _ := NewPRN("G12")
	g03, _ := NewPRN("G03")
	r01, _ := NewPRN("R01")
	prns := []PRN{g12, r01, g03}
	sortPRNs(prns)
	assert.Equal(t, []PRN{g03, g12, r01}, prns)
}

func sortPRNs(p []PRN) {
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && ByPRN(p).Less(j, j-1); j-- {
			ByPRN(p).Swap(j, j-1)
		}
	}
}
