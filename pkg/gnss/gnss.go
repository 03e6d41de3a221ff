// Package gnss contains common constants and type definitions shared by all
// RINEX, SP3 and ANTEX readers: constellation tags, satellite identity,
// observable codes and the GnssObservable recipe used to resolve a caller's
// wanted combinations against a RINEX observation header.
package gnss

import "strings"

// System is a satellite constellation tag.
type System int

// Available satellite systems.
const (
	SysGPS System = iota + 1
	SysGLO
	SysGAL
	SysQZSS
	SysBDS
	SysIRNSS
	SysSBAS
	SysMIXED
)

func (sys System) String() string {
	return [...]string{"", "GPS", "GLONASS", "Galileo", "QZSS", "BeiDou", "IRNSS", "SBAS", "Mixed"}[sys]
}

// Abbr returns the system's single-character RINEX abbreviation.
func (sys System) Abbr() string {
	return [...]string{"", "G", "R", "E", "J", "C", "I", "S", "M"}[sys]
}

// SysPerAbbr maps a RINEX satellite-system character to a System.
var SysPerAbbr = map[string]System{
	"G": SysGPS,
	"R": SysGLO,
	"E": SysGAL,
	"J": SysQZSS,
	"C": SysBDS,
	"I": SysIRNSS,
	"S": SysSBAS,
	"M": SysMIXED,
}

// IsKeplerian reports whether sys uses the shared Keplerian broadcast model,
// as opposed to GLONASS which is numerically integrated.
func (sys System) IsKeplerian() bool {
	switch sys {
	case SysGPS, SysGAL, SysBDS, SysQZSS, SysIRNSS:
		return true
	default:
		return false
	}
}

// Systems specifies a list of satellite systems.
type Systems []System

// String returns the contained systems joined GPS+GLONASS+... sitelog style.
func (syss Systems) String() string {
	str := make([]string, 0, len(syss))
	for _, sys := range syss {
		str = append(str, sys.String())
	}
	return strings.Join(str, "+")
}
