// Package epochtime implements civil <-> Modified Julian Day <-> GPS-week/
// seconds-of-week conversions, the leap-second table, and the UTC/Moscow
// time offset needed by the RINEX and broadcast-ephemeris readers.
//
// An Epoch is a calendar instant stored as (Modified Julian Day, seconds of
// day). Sub-day seconds normally lie in [0, 86400) but may reach 86401
// across a leap-second insertion.
package epochtime

import (
	"fmt"
	"math"
	"time"
)

// mjdEpoch is the Go time.Time corresponding to MJD 0 (1858-11-17 00:00:00 UTC).
var mjdEpoch = time.Date(1858, 11, 17, 0, 0, 0, 0, time.UTC)

// gpsEpoch is the start of the GPS week-numbering system, 1980-01-06 UTC
// (no leap seconds existed between GPS time and UTC at that instant).
var gpsEpoch = time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)

// secondsPerDay is the nominal day length; see Epoch's leap-second note.
const secondsPerDay = 86400.0

// Epoch is a calendar instant: Modified Julian Day plus seconds of that day.
type Epoch struct {
	MJD int
	Sec float64 // seconds of day, [0, 86400), or up to 86401 across a leap second
}

// FromTime converts a UTC time.Time to an Epoch.
func FromTime(t time.Time) Epoch {
	t = t.UTC()
	days := int(t.Sub(mjdEpoch).Hours() / 24)
	midnight := mjdEpoch.AddDate(0, 0, days)
	sec := t.Sub(midnight).Seconds()
	// Guard against floating point drift placing sec just outside [0, day).
	for sec < 0 {
		days--
		midnight = mjdEpoch.AddDate(0, 0, days)
		sec = t.Sub(midnight).Seconds()
	}
	return Epoch{MJD: int(mjdEpoch.AddDate(0, 0, days).Sub(mjdEpoch).Hours() / 24), Sec: sec}
}

// Time converts the Epoch back to a UTC time.Time. Leap-second seconds
// (Sec >= 86400) roll into the following calendar day, matching how
// time.Time has no native representation of a 61st second.
func (e Epoch) Time() time.Time {
	midnight := mjdEpoch.AddDate(0, 0, e.MJD)
	return midnight.Add(time.Duration(e.Sec * float64(time.Second)))
}

// Add returns the epoch advanced by d (may be negative).
func (e Epoch) Add(d time.Duration) Epoch {
	return FromTime(e.Time().Add(d))
}

// Sub returns the signed duration e - other.
func (e Epoch) Sub(other Epoch) time.Duration {
	return e.Time().Sub(other.Time())
}

// String renders the epoch in RINEX-style "YYYY MM DD HH MM SS.sssssss".
func (e Epoch) String() string {
	t := e.Time()
	return fmt.Sprintf("%04d %02d %02d %02d %02d %010.7f", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), float64(t.Second())+float64(t.Nanosecond())/1e9)
}

// GPSWeekSOW converts the epoch (assumed already on the GPS continuous time
// scale) to a GPS week number and seconds-of-week.
func (e Epoch) GPSWeekSOW() (week int, sow float64) {
	d := e.Time().Sub(gpsEpoch).Seconds()
	week = int(math.Floor(d / (7 * secondsPerDay)))
	sow = d - float64(week)*7*secondsPerDay
	return
}

// FromGPSWeekSOW builds an Epoch from a GPS week number and seconds-of-week.
func FromGPSWeekSOW(week int, sow float64) Epoch {
	t := gpsEpoch.Add(time.Duration(week)*7*24*time.Hour + time.Duration(sow*float64(time.Second)))
	return FromTime(t)
}

// ToMoscow returns the epoch shifted by the fixed Moscow offset (+3h, no DST),
// used to interpret GLONASS message times which are given in Moscow time.
func (e Epoch) ToMoscow() Epoch {
	return e.Add(3 * time.Hour)
}

// FromMoscow interprets e as already being in Moscow time and returns the
// corresponding UTC epoch.
func FromMoscow(e Epoch) Epoch {
	return e.Add(-3 * time.Hour)
}

// JulianDate returns the (non-modified) Julian Date of the epoch, used by
// the GLONASS GMST computation.
func (e Epoch) JulianDate() float64 {
	return float64(e.MJD) + 2400000.5 + e.Sec/secondsPerDay
}
