package antex

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whigg/gnssproc/pkg/gnss"
)

// antexFixture is a 3-block ANTEX file: a generic (blank-serial) receiver
// antenna, an individually-calibrated receiver antenna of the same
// model/radome, and an open-ended-validity satellite antenna. Every
// fixed-column field was built and checked against this package's column
// offsets with an independent script before being baked in as a literal
// (spec.md §4.6, §6, §8 scenario 5).
var antexFixture = strings.Join([]string{
	"     1.4                                G                   ANTEX VERSION / SYST",
	"A                                                           PCV TYPE / REFANT",
	"                                                            END OF HEADER",
	"                                                            START OF ANTENNA",
	"TRM41249.00     NONE                                        TYPE / SERIAL NO",
	"                                                            METH / BY / # / DATE",
	"                                                            DAZI",
	"                                                            ZEN1 / ZEN2 / DZEN",
	"     1                                                      # OF FREQUENCIES",
	"   G01                                                      START OF FREQUENCY",
	"      1.23      2.34      3.45                              NORTH / EAST / UP",
	"                                                            END OF FREQUENCY",
	"                                                            END OF ANTENNA",
	"                                                            START OF ANTENNA",
	"TRM41249.00     NONE12379133                                TYPE / SERIAL NO",
	"                                                            METH / BY / # / DATE",
	"                                                            DAZI",
	"                                                            ZEN1 / ZEN2 / DZEN",
	"     1                                                      # OF FREQUENCIES",
	"   G01                                                      START OF FREQUENCY",
	"      1.00      2.00      3.00                              NORTH / EAST / UP",
	"                                                            END OF FREQUENCY",
	"                                                            END OF ANTENNA",
	"                                                            START OF ANTENNA",
	"BLOCK IIF           G    1                                  TYPE / SERIAL NO",
	"                                                            METH / BY / # / DATE",
	"  2015     1     1     0     0    0.0000000                 VALID FROM",
	"                                                            DAZI",
	"                                                            ZEN1 / ZEN2 / DZEN",
	"     1                                                      # OF FREQUENCIES",
	"   G01                                                      START OF FREQUENCY",
	"      0.10      0.20      1.50                              NORTH / EAST / UP",
	"                                                            END OF FREQUENCY",
	"                                                            END OF ANTENNA",
	"",
}, "\n")

func TestNewDecoder_Header(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(antexFixture))
	require.NoError(t, err)

	assert.InDelta(t, 1.4, dec.Header.Version, 1e-6)
	assert.Equal(t, byte('A'), dec.Header.PCVType)
	assert.Equal(t, gnss.SysGPS, dec.Header.SatSystem)
	require.Len(t, dec.Records, 3)
}

func TestNewDecoder_RejectsRelativePCV(t *testing.T) {
	bad := strings.Replace(antexFixture, "A                                                           PCV TYPE / REFANT", "R                                                           PCV TYPE / REFANT", 1)
	_, err := NewDecoder(strings.NewReader(bad))
	assert.Error(t, err)
}

// TestMatchReceiver_ExactMatch exercises spec.md §8 scenario 5's exact-match
// branch: requesting the individually-calibrated serial returns that block.
func TestMatchReceiver_ExactMatch(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(antexFixture))
	require.NoError(t, err)

	ant := gnss.NewAntennaCode("TRM41249.00", "NONE", "12379133")
	rec, kind := dec.MatchReceiver(ant, false)
	assert.Equal(t, ExactMatch, kind)
	assert.Equal(t, "12379133", rec.Antenna.Serial)
}

// TestMatchReceiver_ModelMatchFallback exercises spec.md §8 scenario 5's
// literal closest-match scenario: a serial with no individual calibration
// falls back to the blank-serial type-mean record.
func TestMatchReceiver_ModelMatchFallback(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(antexFixture))
	require.NoError(t, err)

	ant := gnss.NewAntennaCode("TRM41249.00", "NONE", "99999999")
	rec, kind := dec.MatchReceiver(ant, false)
	assert.Equal(t, ModelMatch, kind)
	assert.Equal(t, "", rec.Antenna.Serial)

	pco, ok := rec.PCOFor(gnss.SysGPS, 1)
	require.True(t, ok)
	assert.InDelta(t, 1.23, pco.North, 1e-9)
	assert.InDelta(t, 2.34, pco.East, 1e-9)
	assert.InDelta(t, 3.45, pco.Up, 1e-9)
}

func TestMatchReceiver_NoMatchWhenSerialRequired(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(antexFixture))
	require.NoError(t, err)

	ant := gnss.NewAntennaCode("TRM41249.00", "NONE", "99999999")
	_, kind := dec.MatchReceiver(ant, true)
	assert.Equal(t, NoMatch, kind)
}

func TestMatchReceiver_UnknownModel(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(antexFixture))
	require.NoError(t, err)

	ant := gnss.NewAntennaCode("UNKNOWN_MODEL", "NONE", "")
	_, kind := dec.MatchReceiver(ant, false)
	assert.Equal(t, NoMatch, kind)
}

func TestMatchSatellite_OpenEndedValidity(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(antexFixture))
	require.NoError(t, err)

	prn := gnss.PRN{Sys: gnss.SysGPS, Num: 1}
	rec, ok := dec.MatchSatellite(prn, time.Date(2020, 6, 17, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.True(t, rec.ValidUntil.IsZero())

	pco, ok := rec.PCOFor(gnss.SysGPS, 1)
	require.True(t, ok)
	assert.InDelta(t, 1.5, pco.Up, 1e-9)
}

func TestMatchSatellite_BeforeValidFrom(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(antexFixture))
	require.NoError(t, err)

	prn := gnss.PRN{Sys: gnss.SysGPS, Num: 1}
	_, ok := dec.MatchSatellite(prn, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}
