package epochtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromTime_MJD(t *testing.T) {
	// 2018-11-04 00:00:00 UTC -> well-known MJD 58426
	e := FromTime(time.Date(2018, 11, 4, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 58426, e.MJD)
	assert.InDelta(t, 0.0, e.Sec, 1e-6)
}

func TestEpoch_Roundtrip(t *testing.T) {
	in := time.Date(2018, 11, 4, 12, 30, 15, 0, time.UTC)
	e := FromTime(in)
	assert.True(t, e.Time().Equal(in))
}

func TestEpoch_Add(t *testing.T) {
	e := FromTime(time.Date(2018, 11, 4, 0, 0, 0, 0, time.UTC))
	e2 := e.Add(900 * time.Second)
	assert.InDelta(t, 900.0, e2.Sec, 1e-9)
	assert.Equal(t, e.MJD, e2.MJD)
}

func TestEpoch_GPSWeekSOW_Roundtrip(t *testing.T) {
	e := FromTime(time.Date(2020, 6, 17, 2, 0, 0, 0, time.UTC)).ToGPST()
	week, sow := e.GPSWeekSOW()
	back := FromGPSWeekSOW(week, sow)
	assert.InDelta(t, 0.0, float64(back.Sub(e))/float64(time.Second), 1e-6)
}

func TestToMoscow_Offset(t *testing.T) {
	e := FromTime(time.Date(2018, 11, 4, 0, 0, 0, 0, time.UTC))
	msk := e.ToMoscow()
	assert.InDelta(t, 3*3600.0, float64(msk.Sub(e))/float64(time.Second), 1e-6)
	assert.True(t, FromMoscow(msk).Time().Equal(e.Time()))
}

func TestLeapSecondsAt_Monotonic(t *testing.T) {
	assert.Equal(t, 19, LeapSecondsAt(time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 37, LeapSecondsAt(time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 36, LeapSecondsAt(time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestToGPST_InsertsOffset(t *testing.T) {
	utc := FromTime(time.Date(2018, 11, 4, 0, 0, 0, 0, time.UTC))
	gpst := utc.ToGPST()
	assert.InDelta(t, 18.0, float64(gpst.Sub(utc))/float64(time.Second), 1e-9)
	assert.True(t, FromGPST(gpst).Time().Equal(utc.Time()))
}

func TestToBDT_Offset(t *testing.T) {
	utc := FromTime(time.Date(2018, 11, 4, 0, 0, 0, 0, time.UTC))
	bdt := utc.ToBDT()
	assert.InDelta(t, 4.0, float64(bdt.Sub(utc))/float64(time.Second), 1e-9)
	assert.True(t, FromBDT(bdt).Time().Equal(utc.Time()))
}
