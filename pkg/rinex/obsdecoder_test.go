package rinex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whigg/gnssproc/pkg/gnss"
)

const testObsFile = `     3.04           OBSERVATION DATA    M                   RINEX VERSION / TYPE
testpgm             testrun             20210101 000000 UTC PGM / RUN BY / DATE
TEST                                                        MARKER NAME
TESTER              TESTAGENCY                              OBSERVER / AGENCY
12345               TRIMBLE NETR9       5.44                REC # / TYPE / VERS
12345               TRM115000.00     NONE                   ANT # / TYPE
  4027894.3040   307045.6000  4919470.9460                  APPROX POSITION XYZ
        0.0000        0.0000        0.0000                  ANTENNA: DELTA H/E/N
G    4 C1C L1C D1C S1C                                      SYS / # / OBS TYPES
R    4 C1C L1C D1C S1C                                      SYS / # / OBS TYPES
  2021     1     1     0     0    0.0000000     GPS         TIME OF FIRST OBS
                                                            END OF HEADER
> 2021 01 01 00 00  0.0000000  0 02
G01  20000000.000 5 105000000.123 6       123.456 8 45.000
R01  19000000.000 4 100000000.000 6       120.000 7 40.000
> 2021 01 01 00 00 30.0000000  0 01
G01  20001000.000 5 105000100.123 6       123.000 8 45.500
`

func newTestDecoder(t *testing.T) *ObsDecoder {
	t.Helper()
	dec, err := NewObsDecoder(strings.NewReader(testObsFile))
	require.NoError(t, err)
	return dec
}

func TestObsDecoder_Header(t *testing.T) {
	dec := newTestDecoder(t)
	assert.Equal(t, float32(3.04), dec.Header.RINEXVersion)
	assert.Equal(t, "TEST", dec.Header.MarkerName)
	assert.Len(t, dec.Header.ObsTypes[gnss.SysGPS], 4)
	assert.Len(t, dec.Header.ObsTypes[gnss.SysGLO], 4)
	assert.Equal(t, "TRM115000.00", dec.Header.Antenna.Model)
	assert.Equal(t, "NONE", dec.Header.Antenna.Radome)
}

func TestObsDecoder_NextEpoch_NoPlan(t *testing.T) {
	dec := newTestDecoder(t)
	require.True(t, dec.NextEpoch())
	assert.Empty(t, dec.Sats()) // nothing requested -> nothing resolved
	assert.Equal(t, EpochOK, dec.EpochFlagValue())
}

func TestObsDecoder_NextEpoch_WithPlan(t *testing.T) {
	dec := newTestDecoder(t)

	c1c, err := gnss.ParseObsCode("C1C")
	require.NoError(t, err)
	l1c, err := gnss.ParseObsCode("L1C")
	require.NoError(t, err)

	recipe := gnss.GnssObservable{
		Label: "P1",
		Terms: []gnss.Term{{Sys: gnss.SysGPS, Code: c1c, Coeff: 1}},
	}
	recipe2 := gnss.GnssObservable{
		Label: "L1",
		Terms: []gnss.Term{{Sys: gnss.SysGPS, Code: l1c, Coeff: 1}},
	}
	userMap := map[gnss.System][]gnss.GnssObservable{gnss.SysGPS: {recipe, recipe2}}

	plans, err := ResolvePlan(dec.Header, userMap, false)
	require.NoError(t, err)
	dec.SetPlan(plans)

	require.True(t, dec.NextEpoch())
	sats := dec.Sats()
	require.Len(t, sats, 1)
	assert.Equal(t, "G01", sats[0].Prn.String())
	assert.InDelta(t, 20000000.000, sats[0].Values[0], 1e-6)
	assert.InDelta(t, 105000000.123, sats[0].Values[1], 1e-6)

	require.True(t, dec.NextEpoch())
	sats = dec.Sats()
	require.Len(t, sats, 1)
	assert.InDelta(t, 20001000.000, sats[0].Values[0], 1e-6)

	assert.False(t, dec.NextEpoch())
	assert.NoError(t, dec.Err())
}

func TestEvalPlan_MissingShortCircuits(t *testing.T) {
	plan := Plan{Terms: []PlanTerm{{Column: 0, Coeff: 1}, {Column: 5, Coeff: -1}}}
	line := "G01  20000000.000 5"
	assert.Equal(t, missingSentinel, evalPlan(line, plan))
}
