package gnss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAntennaCode_BlankRadome(t *testing.T) {
	a := NewAntennaCode("TRM41249.00", "    ", "12379133")
	assert.Equal(t, "NONE", a.Radome)

	b := NewAntennaCode("TRM41249.00", "", "12379133")
	assert.True(t, a.EqualExact(b))
}

func TestAntennaCode_Equality(t *testing.T) {
	a := NewAntennaCode("TRM41249.00", "NONE", "12379133")
	b := NewAntennaCode("TRM41249.00", "NONE", "")

	assert.True(t, a.EqualModel(b))
	// serial-required equality is undecidable when one side has a blank serial
	assert.False(t, a.EqualExact(b))
	assert.False(t, b.EqualExact(a))

	c := NewAntennaCode("TRM41249.00", "NONE", "99999999")
	assert.True(t, a.EqualModel(c))
	assert.False(t, a.EqualExact(c))
}
