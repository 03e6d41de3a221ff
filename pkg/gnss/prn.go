package gnss

import (
	"fmt"
	"strconv"
)

// PRN identifies a satellite: a constellation tag plus the in-band PRN-like
// integer (PRN for GPS/BDS, slot for GLONASS, SVID for Galileo, PRN-192 for
// QZSS, PRN-100 for SBAS). SVN and AntennaType are optional hardware-level
// identifiers filled in from external sources (a frequency-channel table or
// an ANTEX file); both are zero-valued when unknown.
type PRN struct {
	Sys         System
	Num         int8   // the in-band PRN-like identifier
	SVN         int16  // hardware Space Vehicle Number, 0 if unknown
	AntennaType string // 20-char free-form satellite antenna designator, e.g. "BLOCK IIF"
}

// NewPRN returns a new PRN for the string prn, e.g. "G12", "R01", "E24".
func NewPRN(prn string) (PRN, error) {
	if len(prn) < 3 {
		return PRN{}, fmt.Errorf("invalid PRN: %q", prn)
	}
	sys, ok := SysPerAbbr[prn[:1]]
	if !ok {
		return PRN{}, fmt.Errorf("invalid satellite system: %q", prn)
	}

	snum, err := strconv.Atoi(prn[1:3])
	if err != nil {
		return PRN{}, fmt.Errorf("parse sat num: %q: %v", prn, err)
	}
	if snum < 0 || snum > 99 {
		return PRN{}, fmt.Errorf("check satellite number %q%d", sys.Abbr(), snum)
	}

	return PRN{Sys: sys, Num: int8(snum)}, nil
}

// String is a PRN Stringer, e.g. "G12".
func (prn PRN) String() string {
	return fmt.Sprintf("%s%02d", prn.Sys.Abbr(), prn.Num)
}

// ByPRN implements sort.Interface based on the PRN string form.
type ByPRN []PRN

func (p ByPRN) Len() int           { return len(p) }
func (p ByPRN) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p ByPRN) Less(i, j int) bool { return p[i].String() < p[j].String() }
