// Package sp3 reads IGS SP3-c and SP3-d precise orbit and clock files: a
// header describing the product, followed by a stream of epochs each
// carrying one position+clock record per satellite, with an event-flag
// bitfield per record.
package sp3

import (
	"fmt"
	"time"

	"github.com/whigg/gnssproc/pkg/gnss"
)

// kmToM converts SP3's kilometer position fields to meters.
const kmToM = 1000.0

// missingPos and missingClock are the sentinel values SP3 uses to mark an
// absent position or clock reading (spec.md §3).
const (
	missingPos   = 0.0
	missingClock = 999999.0
)

// Flag is a bitfield over the per-record event conditions SP3-c/d encodes
// at fixed columns on the P/V line (spec.md §3, §4.5).
type Flag uint8

// Flag bits, in the column order they appear on a P/V line.
const (
	FlagClockEvent Flag = 1 << iota
	FlagClockPrediction
	FlagManeuver
	FlagOrbitPrediction
	FlagMissingPosition
	FlagMissingClock
)

func (f Flag) has(bit Flag) bool { return f&bit != 0 }

// ClockEvent reports a discontinuity in the satellite clock correction.
func (f Flag) ClockEvent() bool { return f.has(FlagClockEvent) }

// ClockPrediction reports that the clock correction is predicted, not measured.
func (f Flag) ClockPrediction() bool { return f.has(FlagClockPrediction) }

// Maneuver reports a satellite maneuver during or near this epoch.
func (f Flag) Maneuver() bool { return f.has(FlagManeuver) }

// OrbitPrediction reports that the orbit is predicted, not measured.
func (f Flag) OrbitPrediction() bool { return f.has(FlagOrbitPrediction) }

// MissingPosition reports that the position fields are the sentinel value.
func (f Flag) MissingPosition() bool { return f.has(FlagMissingPosition) }

// MissingClock reports that the clock field is the sentinel value.
func (f Flag) MissingClock() bool { return f.has(FlagMissingClock) }

// SatAccuracy is one satellite's entry in the header's ID/accuracy blocks.
type SatAccuracy struct {
	Prn      gnss.PRN
	Accuracy int // 2^Accuracy mm, per the SP3 "++" block; 0 if unset
}

// Header is an SP3-c/d file's header: product metadata plus the per-file
// satellite list and nominal accuracy. Construction fails (NewDecoder
// returns a non-nil error) if the header is malformed or internally
// inconsistent, per spec.md §4.5.
type Header struct {
	Version    byte // 'c' or 'd'
	PosOrVel   byte // 'P' (position only) or 'V' (position + velocity)
	StartEpoch time.Time
	NumEpochs  int
	DataUsed   string // e.g. "ORBIT", "FIT"
	CoordSys   string // e.g. "WGS84", "IGb14"
	OrbitType  string // e.g. "HLM", "FIT", "BCT"
	Agency     string

	GPSWeek int
	SOW     float64
	Interval float64 // seconds between epochs
	MJD      int
	FracDay  float64

	TimeSystem string // e.g. "GPS", "UTC", "GLO", "GAL"

	Sats []SatAccuracy

	Comments []string
}

// System returns the gnss.System for an SP3 satellite-identifier character.
func satSystem(b byte) (gnss.System, error) {
	sys, ok := gnss.SysPerAbbr[string(b)]
	if !ok {
		return 0, fmt.Errorf("sp3: unknown satellite system byte %q", b)
	}
	return sys, nil
}

// Record is one satellite's position+clock (and optional velocity) entry at
// one epoch (spec.md §3 "Precise ephemeris record").
type Record struct {
	Prn gnss.PRN

	// Position is ECEF X/Y/Z in meters; zero-valued and Flag.MissingPosition
	// set when the source line carried the km sentinel.
	Position [3]float64
	// ClockBias is the satellite clock correction in seconds; zero-valued
	// and Flag.MissingClock set when the source line carried the µs sentinel.
	ClockBias float64

	// HasVelocity is true when a V-record followed this satellite's P-record.
	HasVelocity bool
	Velocity    [3]float64    // meters/second, valid only if HasVelocity
	ClockRate   float64       // seconds/second, valid only if HasVelocity

	Flag Flag
}

// Epoch is one timestamped batch of Records (spec.md §4.5: a `*` header
// line followed by one or more P/V record pairs, terminated implicitly by
// the next `*` line or `EOF`).
type Epoch struct {
	Time    time.Time
	Records []Record
}
