package epochtime

import "time"

// leapStep is one entry of the monotonic UTC leap-second step function:
// at and after At, TAI-UTC equals Offset seconds.
type leapStep struct {
	At     time.Time
	Offset int
}

// leapTable lists the historical UTC leap-second insertions (TAI-UTC). GPS
// time was defined to equal UTC-19s (i.e. TAI-19s) at the 1980-01-06 epoch
// and has not itself stepped since; BDT equals GPS time minus 14s; Galileo
// System Time is steered to GPS time. Only the UTC<->GPST step matters for
// this table.
var leapTable = []leapStep{
	{time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC), 19},
	{time.Date(1981, 7, 1, 0, 0, 0, 0, time.UTC), 20},
	{time.Date(1982, 7, 1, 0, 0, 0, 0, time.UTC), 21},
	{time.Date(1983, 7, 1, 0, 0, 0, 0, time.UTC), 22},
	{time.Date(1985, 7, 1, 0, 0, 0, 0, time.UTC), 23},
	{time.Date(1988, 1, 1, 0, 0, 0, 0, time.UTC), 24},
	{time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), 25},
	{time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC), 26},
	{time.Date(1992, 7, 1, 0, 0, 0, 0, time.UTC), 27},
	{time.Date(1993, 7, 1, 0, 0, 0, 0, time.UTC), 28},
	{time.Date(1994, 7, 1, 0, 0, 0, 0, time.UTC), 29},
	{time.Date(1996, 1, 1, 0, 0, 0, 0, time.UTC), 30},
	{time.Date(1997, 7, 1, 0, 0, 0, 0, time.UTC), 31},
	{time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), 32},
	{time.Date(2006, 1, 1, 0, 0, 0, 0, time.UTC), 33},
	{time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC), 34},
	{time.Date(2012, 7, 1, 0, 0, 0, 0, time.UTC), 35},
	{time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC), 36},
	{time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), 37},
}

// LeapSecondsAt returns TAI-UTC in whole seconds at UTC time t.
func LeapSecondsAt(t time.Time) int {
	offset := leapTable[0].Offset
	for _, step := range leapTable {
		if t.Before(step.At) {
			break
		}
		offset = step.Offset
	}
	return offset
}

// gpsUTCOffsetAt is GPS-UTC = (TAI-UTC) - 19, the constant GPS carried at its
// 1980 epoch.
func gpsUTCOffsetAt(t time.Time) time.Duration {
	return time.Duration(LeapSecondsAt(t)-19) * time.Second
}

// ToGPST converts a UTC epoch to the continuous GPS time scale by inserting
// the correct accumulated leap-second offset.
func (e Epoch) ToGPST() Epoch {
	return e.Add(gpsUTCOffsetAt(e.Time()))
}

// FromGPST converts a GPS-time epoch back to UTC. The offset is evaluated at
// the (approximately correct) UTC instant obtained by a first pass; since the
// offset only changes on whole-second leap boundaries far apart in time this
// is exact except in the final second of a leap-second insertion, which this
// library does not claim to resolve.
func FromGPST(e Epoch) Epoch {
	approxUTC := e.Time()
	return e.Add(-gpsUTCOffsetAt(approxUTC))
}

// bdtGPSOffset is the constant BDT = GPST - 14s (BeiDou time started 2006-01-01
// already offset from GPST by 14 leap seconds accumulated since 1980).
const bdtGPSOffset = -14 * time.Second

// ToBDT converts a UTC epoch to BeiDou Time.
func (e Epoch) ToBDT() Epoch {
	return e.ToGPST().Add(bdtGPSOffset)
}

// FromBDT converts a BeiDou-Time epoch back to UTC.
func FromBDT(e Epoch) Epoch {
	return FromGPST(e.Add(-bdtGPSOffset))
}

// ToGST converts a UTC epoch to Galileo System Time, which is steered to GPST.
func (e Epoch) ToGST() Epoch {
	return e.ToGPST()
}

// FromGST converts a Galileo-System-Time epoch back to UTC.
func FromGST(e Epoch) Epoch {
	return FromGPST(e)
}
