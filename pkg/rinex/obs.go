package rinex

import (
	"fmt"
	"time"

	"github.com/whigg/gnssproc/pkg/gnss"
)

// Coord defines an XYZ coordinate, e.g. the header's approximate marker position.
type Coord struct {
	X, Y, Z float64
}

// CoordNEU defines a North/East/Up coordinate or eccentricity.
type CoordNEU struct {
	N, E, Up float64
}

// EpochFlag is the RINEX-Obs epoch-header flag.
type EpochFlag int8

// Epoch flag values (spec.md §4.2).
const (
	EpochOK                EpochFlag = 0
	EpochPowerFailure      EpochFlag = 1
	EpochEventStart        EpochFlag = 2
	EpochNewSiteOccupation EpochFlag = 3
	EpochHeaderInfoFollows EpochFlag = 4
	EpochExternalEvent     EpochFlag = 5
	EpochCycleSlip         EpochFlag = 6
)

// ObsHeader provides the RINEX Observation Header information.
type ObsHeader struct {
	RINEXVersion float32
	RINEXType    string
	SatSystem    gnss.System

	Pgm, RunBy, Date string
	Comments         []string

	MarkerName, MarkerNumber, MarkerType string
	Observer, Agency                     string

	ReceiverNumber, ReceiverType, ReceiverVersion string
	Antenna                                       gnss.AntennaCode

	Position     Coord
	AntennaDelta CoordNEU

	// ObsTypes lists the observable codes per constellation in the order
	// printed in "SYS / # / OBS TYPES" -- column index into this slice is
	// what the recipe resolver (C4) produces.
	ObsTypes map[gnss.System][]gnss.ObsCode

	SignalStrengthUnit string
	Interval           float64
	TimeOfFirstObs     time.Time
	TimeOfLastObs      time.Time
	LeapSeconds        int
	NSatellites        int

	// RcvClockOffsApplied is true when "RCV CLOCK OFFS APPL = 1": epoch
	// timestamps, code and phase are already corrected upstream. The
	// decoder surfaces this as a warning attached to every emitted epoch
	// rather than silently undoing or reapplying the correction.
	RcvClockOffsApplied bool

	labels []string
}

func convStringsToObscodes(fields []string) []gnss.ObsCode {
	codes := make([]gnss.ObsCode, 0, len(fields))
	for _, f := range fields {
		c, err := gnss.ParseObsCode(f)
		if err != nil {
			continue
		}
		codes = append(codes, c)
	}
	return codes
}

// parseHeaderDate parses the freeform "PGM / RUN BY / DATE" date field; it is
// not of a single fixed format across agencies, so this falls back to an
// error when it cannot be recognized, letting the caller decide whether to
// keep the raw string instead.
func parseHeaderDate(s string) (time.Time, error) {
	for _, layout := range []string{"20060102 150405 MST", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized header date format: %q", s)
}

// String renders the antenna delta fields for debugging.
func (c CoordNEU) String() string {
	return fmt.Sprintf("N=%.4f E=%.4f Up=%.4f", c.N, c.E, c.Up)
}
