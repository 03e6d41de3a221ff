package sp3

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sp3Fixture is a minimal single-satellite SP3-c file: header plus one
// epoch carrying a single GPS PRN01 position+clock record, terminated by
// EOF. Column offsets were verified against the official SP3-c field
// layout (spec.md §4.5, §6) before being baked in as literals.
var sp3Fixture = strings.Join([]string{
	"#cP2020  6 17  0  0  0.00000000      96 ORBIT IGb14 FIT  AIUB",
	"## 2110 259200.00000000   900.00000000 59017      0.00000000",
	"+    1   G010  0  0  0  0  0  0  0  0  0  0  0  0  0  0  0",
	"++        15  0  0  0  0  0  0  0  0  0  0  0  0  0  0  0  0",
	"%c G     GPS",
	"%c",
	"%f",
	"%f",
	"%i",
	"%i",
	"*  2020  6 17  0 15  0.00000000",
	"PG01   7003.008789 -12206.626953  21280.765625    123.456789",
	"EOF",
	"",
}, "\n")

func TestNewDecoder_Header(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(sp3Fixture))
	require.NoError(t, err)

	assert.Equal(t, byte('c'), dec.Header.Version)
	assert.Equal(t, 96, dec.Header.NumEpochs)
	assert.Equal(t, "ORBIT", dec.Header.DataUsed)
	assert.Equal(t, "IGb14", dec.Header.CoordSys)
	assert.Equal(t, "FIT", dec.Header.OrbitType)
	assert.Equal(t, "AIUB", dec.Header.Agency)
	assert.Equal(t, 2110, dec.Header.GPSWeek)
	assert.InDelta(t, 900.0, dec.Header.Interval, 1e-9)
	assert.Equal(t, 59017, dec.Header.MJD)
	assert.Equal(t, "GPS", dec.Header.TimeSystem)
	assert.Equal(t, time.Date(2020, 6, 17, 0, 0, 0, 0, time.UTC), dec.Header.StartEpoch)

	require.Len(t, dec.Header.Sats, 1)
	assert.Equal(t, "G01", dec.Header.Sats[0].Prn.String())
	assert.Equal(t, 15, dec.Header.Sats[0].Accuracy)
}

func TestNewDecoder_BadVersion(t *testing.T) {
	bad := strings.Replace(sp3Fixture, "#cP2020", "#xP2020", 1)
	_, err := NewDecoder(strings.NewReader(bad))
	assert.Error(t, err)
}

func TestNewDecoder_WeekMismatchRejected(t *testing.T) {
	bad := strings.Replace(sp3Fixture, "## 2110", "## 2111", 1)
	_, err := NewDecoder(strings.NewReader(bad))
	assert.Error(t, err)
}

func TestDecoder_NextEpoch(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(sp3Fixture))
	require.NoError(t, err)

	require.True(t, dec.NextEpoch())
	require.NoError(t, dec.Err())

	ep := dec.Epoch()
	assert.Equal(t, time.Date(2020, 6, 17, 0, 15, 0, 0, time.UTC), ep.Time)
	require.Len(t, ep.Records, 1)

	rec := ep.Records[0]
	assert.Equal(t, "G01", rec.Prn.String())
	assert.InDelta(t, 7003.008789e3, rec.Position[0], 1e-3)
	assert.InDelta(t, -12206.626953e3, rec.Position[1], 1e-3)
	assert.InDelta(t, 21280.765625e3, rec.Position[2], 1e-3)
	assert.InDelta(t, 123.456789e-6, rec.ClockBias, 1e-15)
	assert.False(t, rec.Flag.MissingPosition())
	assert.False(t, rec.Flag.MissingClock())
	assert.False(t, rec.HasVelocity)

	assert.False(t, dec.NextEpoch(), "EOF line ends the stream")
	require.NoError(t, dec.Err())
}

func TestParsePositionLine_MissingSentinels(t *testing.T) {
	line := "PG02      0.000000      0.000000      0.000000 999999.999999"
	rec, err := parsePositionLine(line)
	require.NoError(t, err)
	assert.True(t, rec.Flag.MissingPosition())
	assert.True(t, rec.Flag.MissingClock())
}

func TestParsePositionLine_EventFlags(t *testing.T) {
	line := "PG03   7003.008789 -12206.626953  21280.765625    123.456789              EP  ME"
	rec, err := parsePositionLine(line)
	require.NoError(t, err)
	assert.True(t, rec.Flag.ClockEvent())
	assert.True(t, rec.Flag.ClockPrediction())
	assert.True(t, rec.Flag.Maneuver())
	assert.True(t, rec.Flag.OrbitPrediction())
}
