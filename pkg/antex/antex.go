// Package antex reads IGS ANTEX antenna calibration files: a header
// declaring the file's PCV convention, followed by a sequence of antenna
// blocks (one per receiver antenna model, or one per satellite antenna per
// validity interval) each carrying a phase-center offset per frequency.
package antex

import (
	"time"

	"github.com/whigg/gnssproc/pkg/gnss"
)

// validFromUntilFormat is the RINEX-style fixed-width epoch layout ANTEX
// uses for VALID FROM / VALID UNTIL, identical to RINEX's TIME OF FIRST OBS.
const validFromUntilFormat = "2006  1  2 15  4  5.0000000"

// PCO is one frequency's phase-center offset, in millimeters, in the
// antenna's North/East/Up (receiver) or satellite body (X/Y/Z-as-N/E/U)
// frame (spec.md §4.6).
type PCO struct {
	Sys   gnss.System
	Band  int // e.g. 1, 2, 5
	North float64
	East  float64
	Up    float64
}

// Record is one fully-parsed START OF ANTENNA...END OF ANTENNA block.
//
// A receiver-antenna Record carries Antenna (model/radome/serial); a
// satellite-antenna Record carries Prn and a validity window instead.
type Record struct {
	IsSatellite bool

	// Antenna identifies a receiver antenna (IsSatellite == false).
	Antenna gnss.AntennaCode

	// Prn, ValidFrom and ValidUntil identify a satellite antenna
	// (IsSatellite == true). ValidUntil is the zero Time when the entry is
	// open-ended (still in use).
	Prn        gnss.PRN
	ValidFrom  time.Time
	ValidUntil time.Time

	PCOs []PCO
}

// ValidAt reports whether a satellite-antenna Record covers the given
// epoch. Receiver-antenna records have no validity window and always
// return true.
func (r Record) ValidAt(t time.Time) bool {
	if !r.IsSatellite {
		return true
	}
	if t.Before(r.ValidFrom) {
		return false
	}
	if !r.ValidUntil.IsZero() && t.After(r.ValidUntil) {
		return false
	}
	return true
}

// PCOFor returns the PCO entry for a given system/band, if present.
func (r Record) PCOFor(sys gnss.System, band int) (PCO, bool) {
	for _, p := range r.PCOs {
		if p.Sys == sys && p.Band == band {
			return p, true
		}
	}
	return PCO{}, false
}

// Header is an ANTEX file's header.
type Header struct {
	Version   float32
	PCVType   byte // 'A' (absolute) or 'R' (relative)
	SatSystem gnss.System
}

// MatchKind describes how a receiver-antenna lookup was resolved (spec.md
// §8 scenario 5).
type MatchKind int

const (
	// NoMatch: neither an exact nor a model/radome match was found.
	NoMatch MatchKind = iota
	// ModelMatch: same model+radome, but the matching Record's serial is
	// blank ("individually uncalibrated, fall back to type mean" per
	// spec.md §4.6) and the caller did not require an exact serial match.
	ModelMatch
	// ExactMatch: model+radome+serial all match.
	ExactMatch
)

func (k MatchKind) String() string {
	switch k {
	case ExactMatch:
		return "exact-match"
	case ModelMatch:
		return "model-match, serial-missing"
	default:
		return "no match"
	}
}

// MatchReceiver resolves a receiver AntennaCode against the decoded
// records, following spec.md §4.6: an exact (model+radome+serial) match
// wins outright; failing that, a model+radome match against a record whose
// serial is blank falls back to the type mean, unless mustMatchSerial
// requires an exact match.
func (dec *Decoder) MatchReceiver(ant gnss.AntennaCode, mustMatchSerial bool) (Record, MatchKind) {
	var modelMatch Record
	haveModelMatch := false

	for _, rec := range dec.Records {
		if rec.IsSatellite {
			continue
		}
		if rec.Antenna.EqualExact(ant) {
			return rec, ExactMatch
		}
		if !mustMatchSerial && rec.Antenna.Serial == "" && rec.Antenna.EqualModel(ant) && !haveModelMatch {
			modelMatch = rec
			haveModelMatch = true
		}
	}
	if haveModelMatch {
		return modelMatch, ModelMatch
	}
	return Record{}, NoMatch
}

// MatchSatellite resolves a satellite antenna by PRN and epoch: the
// record's validity window (ValidFrom/ValidUntil) must cover t.
func (dec *Decoder) MatchSatellite(prn gnss.PRN, t time.Time) (Record, bool) {
	for _, rec := range dec.Records {
		if !rec.IsSatellite || rec.Prn.Sys != prn.Sys || rec.Prn.Num != prn.Num {
			continue
		}
		if rec.ValidAt(t) {
			return rec, true
		}
	}
	return Record{}, false
}
