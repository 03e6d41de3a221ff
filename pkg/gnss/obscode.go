package gnss

import "fmt"

// ObsType is the first character of a RINEX3 observable code.
type ObsType byte

// Observable types.
const (
	ObsTypePseudorange   ObsType = 'C'
	ObsTypeCarrierPhase  ObsType = 'L'
	ObsTypeDoppler       ObsType = 'D'
	ObsTypeSignalStrengh ObsType = 'S'
	ObsTypeIonoDelay     ObsType = 'I'
	ObsTypeChannelNum    ObsType = 'X'
	ObsTypeAny           ObsType = '?'
)

// ObsCode is a RINEX3 observable code triplet (type, band, attribute), e.g.
// "C1C", "L2W", "D5Q".
type ObsCode struct {
	Type ObsType
	Band byte // frequency band, 1..9
	Attr byte // tracking-mode attribute character, e.g. 'C','Q','W','?'
}

// ParseObsCode parses a 3-character RINEX3 observable code.
func ParseObsCode(s string) (ObsCode, error) {
	if len(s) != 3 {
		return ObsCode{}, fmt.Errorf("invalid observable code length: %q", s)
	}
	if s[1] < '0' || s[1] > '9' {
		return ObsCode{}, fmt.Errorf("invalid observable band: %q", s)
	}
	return ObsCode{Type: ObsType(s[0]), Band: s[1], Attr: s[2]}, nil
}

// String renders the observable code in its 3-character RINEX3 form.
func (c ObsCode) String() string {
	return fmt.Sprintf("%c%c%c", c.Type, c.Band, c.Attr)
}

// Matches reports whether c matches the wanted code, treating
// ObsTypeAny / band 0 / attribute '?' in want as wildcards.
func (c ObsCode) Matches(want ObsCode) bool {
	if want.Type != ObsTypeAny && want.Type != c.Type {
		return false
	}
	if want.Band != 0 && want.Band != c.Band {
		return false
	}
	if want.Attr != '?' && want.Attr != 0 && want.Attr != c.Attr {
		return false
	}
	return true
}

// nominalFreq is the fixed per-constellation, per-band nominal carrier
// frequency in Hz, per the respective ICDs. GLONASS FDMA channels carry an
// additional per-satellite offset handled by GlonassFrequency.
var nominalFreq = map[System]map[byte]float64{
	SysGPS: {
		'1': 1575.42e6,
		'2': 1227.60e6,
		'5': 1176.45e6,
	},
	SysQZSS: {
		'1': 1575.42e6,
		'2': 1227.60e6,
		'5': 1176.45e6,
		'6': 1278.75e6,
	},
	SysGAL: {
		'1': 1575.42e6,
		'5': 1176.45e6,
		'6': 1278.75e6,
		'7': 1207.140e6,
		'8': 1191.795e6,
	},
	SysBDS: {
		'1': 1575.42e6, // B1C
		'2': 1561.098e6, // B1I
		'5': 1176.45e6,  // B2a
		'6': 1268.52e6,  // B3
		'7': 1207.140e6, // B2b
		'8': 1191.795e6, // B2a+b
	},
	SysIRNSS: {
		'5': 1176.45e6,
		'9': 2492.028e6,
	},
	SysSBAS: {
		'1': 1575.42e6,
		'5': 1176.45e6,
	},
	SysGLO: {
		'1': 1602.00e6,
		'2': 1246.00e6,
		'3': 1202.025e6, // L3 CDMA, no FDMA offset
	},
}

// gloChannelSpacing is the per-band FDMA channel spacing in Hz for GLONASS.
var gloChannelSpacing = map[byte]float64{
	'1': 562.5e3,
	'2': 437.5e3,
}

// NominalFrequency returns the fixed nominal carrier frequency in Hz for a
// (system, band) pair. For GLONASS use GlonassFrequency instead, since the
// real carrier depends on the satellite's FDMA channel number.
func NominalFrequency(sys System, band byte) (float64, bool) {
	m, ok := nominalFreq[sys]
	if !ok {
		return 0, false
	}
	f, ok := m[band]
	return f, ok
}

// GlonassFrequency returns the FDMA carrier frequency in Hz for GLONASS band
// (1 or 2) and channel number k (typically -7..+6). Band 3 (L3 CDMA) carries
// no per-satellite offset.
func GlonassFrequency(band byte, channel int) (float64, bool) {
	base, ok := nominalFreq[SysGLO][band]
	if !ok {
		return 0, false
	}
	spacing, ok := gloChannelSpacing[band]
	if !ok {
		return base, true // L3, no offset
	}
	return base + float64(channel)*spacing, true
}

// Term is one weighted raw observable inside a GnssObservable recipe.
type Term struct {
	Sys   System
	Code  ObsCode
	Coeff float64
}

// GnssObservable is a non-empty, ordered list of weighted raw observable
// terms. Its value at one epoch is the coefficient-weighted sum of the
// underlying raw readings, meaningful only when all terms belong to one
// constellation (enforced by Validate).
type GnssObservable struct {
	Terms []Term
	Label string // caller-chosen name, e.g. "P1P2_ionofree"
}

// NewObservable builds a GnssObservable from a single (sys, code) term with
// coefficient 1.0 -- the common case of reading one raw observable as-is.
func NewObservable(sys System, code ObsCode) GnssObservable {
	return GnssObservable{Terms: []Term{{Sys: sys, Code: code, Coeff: 1.0}}}
}

// System returns the single constellation all terms share, or an error if
// the recipe is empty or mixes constellations.
func (o GnssObservable) System() (System, error) {
	if len(o.Terms) == 0 {
		return 0, fmt.Errorf("empty observable recipe")
	}
	sys := o.Terms[0].Sys
	for _, t := range o.Terms[1:] {
		if t.Sys != sys {
			return 0, fmt.Errorf("mixed constellation recipe: %v and %v", sys, t.Sys)
		}
	}
	return sys, nil
}

// Frequency returns the coefficient-weighted sum of the terms' nominal
// frequencies; used to form ionosphere-free combinations. GLONASS recipes
// need the satellite's FDMA channel, supplied via chanOf.
func (o GnssObservable) Frequency(chanOf func(sys System, band byte) int) (float64, error) {
	sys, err := o.System()
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, t := range o.Terms {
		var f float64
		var ok bool
		if sys == SysGLO {
			ch := 0
			if chanOf != nil {
				ch = chanOf(sys, t.Code.Band)
			}
			f, ok = GlonassFrequency(t.Code.Band, ch)
		} else {
			f, ok = NominalFrequency(sys, t.Code.Band)
		}
		if !ok {
			return 0, fmt.Errorf("no nominal frequency for %v band %c", sys, t.Code.Band)
		}
		sum += t.Coeff * f
	}
	return sum, nil
}
