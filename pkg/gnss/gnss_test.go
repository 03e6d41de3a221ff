package gnss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystem_Abbr(t *testing.T) {
	assert.Equal(t, "G", SysGPS.Abbr())
	assert.Equal(t, "R", SysGLO.Abbr())
	assert.Equal(t, "E", SysGAL.Abbr())
	assert.Equal(t, "J", SysQZSS.Abbr())
	assert.Equal(t, "C", SysBDS.Abbr())
	assert.Equal(t, "I", SysIRNSS.Abbr())
	assert.Equal(t, "S", SysSBAS.Abbr())
	assert.Equal(t, "M", SysMIXED.Abbr())
}

func TestSystem_IsKeplerian(t *testing.T) {
	assert.True(t, SysGPS.IsKeplerian())
	assert.True(t, SysGAL.IsKeplerian())
	assert.True(t, SysBDS.IsKeplerian())
	assert.True(t, SysQZSS.IsKeplerian())
	assert.True(t, SysIRNSS.IsKeplerian())
	assert.False(t, SysGLO.IsKeplerian())
}

func TestSystems_String(t *testing.T) {
	syss := Systems{SysGPS, SysGLO, SysGAL}
	assert.Equal(t, "GPS+GLONASS+Galileo", syss.String())
}

func TestSysPerAbbr_Roundtrip(t *testing.T) {
	for _, sys := range []System{SysGPS, SysGLO, SysGAL, SysQZSS, SysBDS, SysIRNSS, SysSBAS, SysMIXED} {
		got, ok := SysPerAbbr[sys.Abbr()]
		assert.True(t, ok)
		assert.Equal(t, sys, got)
	}
}
