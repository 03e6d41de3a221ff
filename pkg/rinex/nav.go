package rinex

import (
	"fmt"
	"math"
	"time"

	"github.com/whigg/gnssproc/pkg/gnss"
)

// TimeOfClockFormat is the time format within RINEX3 Nav records.
const TimeOfClockFormat string = "2006  1  2 15  4  5"

// FrameKind discriminates the physics a Frame must be evaluated with.
type FrameKind int

// Frame kinds.
const (
	FrameKeplerian FrameKind = iota + 1
	FrameGlonass
	FrameOther // parsed but not evaluated (SBAS payload, spare slots)
)

// Frame is the common surface of every parsed navigation message: constant
// header fields plus whatever the constellation's physics needs. See
// KeplerianFrame and GlonassFrame for the concrete field layouts (kept as
// distinct shapes per constellation family rather than one 31-float array,
// so that index 10 cannot silently mean one thing for GPS and another for
// GLONASS).
type Frame interface {
	Kind() FrameKind
	System() gnss.System
	PRN() gnss.PRN
	TOC() time.Time
	IsHealthy() bool
}

// keplerianConstants holds the per-constellation physical constants used by
// the Keplerian evaluator (pkg/ephemeris).
type keplerianConstants struct {
	Mu    float64 // geocentric gravitational constant, m^3/s^2
	OmegaE float64 // Earth rotation rate, rad/s
	F     float64 // relativistic correction constant, s/sqrt(m)
}

// KeplerianConstants returns the evaluator constants for a Keplerian
// constellation (spec.md §4.4.1).
func KeplerianConstants(sys gnss.System) (keplerianConstants, error) {
	switch sys {
	case gnss.SysGPS, gnss.SysQZSS, gnss.SysIRNSS:
		return keplerianConstants{Mu: 3.986005e14, OmegaE: 7.2921151467e-5, F: -4.442807633e-10}, nil
	case gnss.SysGAL:
		return keplerianConstants{Mu: 3.986004418e14, OmegaE: 7.2921151467e-5, F: -4.442807309e-10}, nil
	case gnss.SysBDS:
		const c = 299792458.0
		mu := 3.986004418e14
		return keplerianConstants{Mu: mu, OmegaE: 7.2921150e-5, F: -2 * math.Sqrt(mu) / (c * c)}, nil
	default:
		return keplerianConstants{}, fmt.Errorf("not a Keplerian constellation: %v", sys)
	}
}

// KeplerianFrame is the broadcast ephemeris shared by GPS, Galileo, BeiDou,
// QZSS and IRNSS: same 8-line/31-value layout, differing only in which
// accuracy/health/group-delay fields are semantically meaningful (see
// GroupDelay).
type KeplerianFrame struct {
	Sys gnss.System
	Prn gnss.PRN

	Toc            time.Time
	ClockBias      float64 // af0, seconds
	ClockDrift     float64 // af1, s/s
	ClockDriftRate float64 // af2, s/s^2

	IODE   float64
	Crs    float64 // meters
	DeltaN float64 // radians/sec
	M0     float64 // radians

	Cuc   float64
	Ecc   float64
	Cus   float64
	SqrtA float64

	Toe    float64 // seconds of week
	Cic    float64
	Omega0 float64
	Cis    float64

	I0       float64
	Crc      float64
	Omega    float64
	OmegaDot float64

	IDOT       float64
	CodesOnL2  float64 // GPS/QZSS only; spare elsewhere
	WeekNumber float64 // continuous week number matching Toe
	L2PFlag    float64 // GPS/QZSS only

	// Accuracy is SV accuracy (GPS/QZSS/IRNSS URA index), SISA (Galileo) or
	// the accuracy index (BeiDou); interpretation left to the caller.
	Accuracy float64
	Health   float64

	// GroupDelay1/2 are TGD (GPS/QZSS, single value, GroupDelay2 unused),
	// BGD_E5a/BGD_E5b (Galileo), or TGD1/TGD2 (BeiDou B1/B3). See GroupDelay.
	GroupDelay1 float64
	GroupDelay2 float64
	IODC        float64 // GPS/QZSS only; AODC for BeiDou reuses this slot

	TransmissionTime float64 // seconds of week
	FitIntervalHours float64 // 0 means "use the constellation default"
}

func (f *KeplerianFrame) Kind() FrameKind     { return FrameKeplerian }
func (f *KeplerianFrame) System() gnss.System { return f.Sys }
func (f *KeplerianFrame) PRN() gnss.PRN       { return f.Prn }
func (f *KeplerianFrame) TOC() time.Time      { return f.Toc }
func (f *KeplerianFrame) IsHealthy() bool     { return f.Health == 0 }

// defaultFitIntervalHours returns the nominal fit interval when a frame
// doesn't carry one explicitly (Galileo, BeiDou).
func defaultFitIntervalHours(sys gnss.System) float64 {
	switch sys {
	case gnss.SysGAL:
		return 4
	case gnss.SysBDS:
		return 1
	default:
		return 4
	}
}

// FitInterval returns the frame's fit interval in hours, falling back to the
// constellation default when the broadcast field is zero.
func (f *KeplerianFrame) FitInterval() float64 {
	if f.FitIntervalHours > 0 {
		return f.FitIntervalHours
	}
	return defaultFitIntervalHours(f.Sys)
}

// ValidAt reports whether this frame covers query epoch t, per spec.md
// §4.3's validity rule: unhealthy never validates; otherwise toc <= t <
// toc + fit_interval_hours*3600.
func (f *KeplerianFrame) ValidAt(t time.Time) bool {
	if !f.IsHealthy() {
		return false
	}
	age := t.Sub(f.Toc).Seconds()
	return age >= 0 && age < f.FitInterval()*3600
}

// GroupDelay returns the code-group/broadcast-group delay (TGD/BGD) to
// apply for a given frequency band, in seconds. GPS/QZSS/IRNSS carry one
// TGD applicable to L1-L2 P-code combinations (band argument ignored);
// Galileo publishes distinct BGD_E5a (GroupDelay1) and BGD_E5b (GroupDelay2);
// BeiDou publishes TGD1 (B1, GroupDelay1) and TGD2 (B2, GroupDelay2).
func (f *KeplerianFrame) GroupDelay(band byte) (float64, error) {
	switch f.Sys {
	case gnss.SysGPS, gnss.SysQZSS, gnss.SysIRNSS:
		return f.GroupDelay1, nil
	case gnss.SysGAL:
		switch band {
		case '1', '5':
			return f.GroupDelay1, nil // BGD_E5a relative to E1/E5a
		case '7':
			return f.GroupDelay2, nil // BGD_E5b relative to E1/E5b
		default:
			return 0, fmt.Errorf("no group delay published for Galileo band %c", band)
		}
	case gnss.SysBDS:
		switch band {
		case '1':
			return f.GroupDelay1, nil
		case '2', '6':
			return f.GroupDelay2, nil
		default:
			return 0, fmt.Errorf("no group delay published for BeiDou band %c", band)
		}
	default:
		return 0, fmt.Errorf("group delay not defined for %v", f.Sys)
	}
}

// parseKeplerianFrame parses the 8 fixed-layout lines of a GPS/Galileo/
// BeiDou/QZSS/IRNSS broadcast ephemeris (spec.md §4.3, §6).
func parseKeplerianFrame(sys gnss.System, lines []string) (*KeplerianFrame, error) {
	if len(lines) != 8 {
		return nil, fmt.Errorf("keplerian frame needs 8 lines, got %d", len(lines))
	}

	first := lines[0]
	if len(first) < 4 {
		return nil, fmt.Errorf("short first nav line: %q", first)
	}
	prn, err := gnss.NewPRN(first[:3])
	if err != nil {
		return nil, fmt.Errorf("parse PRN: %w", err)
	}

	if len(first) < 23 {
		return nil, fmt.Errorf("short first nav line: %q", first)
	}
	toc, err := time.Parse(TimeOfClockFormat, first[4:23])
	if err != nil {
		return nil, fmt.Errorf("parse TOC: %q: %w", first, err)
	}

	clk, err := parseNavFloats(first, 23, 19, 3)
	if err != nil {
		return nil, fmt.Errorf("parse clock terms: %w", err)
	}

	f := &KeplerianFrame{
		Sys: sys, Prn: prn, Toc: toc,
		ClockBias: clk[0], ClockDrift: clk[1], ClockDriftRate: clk[2],
	}

	rows := make([][]float64, 7)
	for i := 1; i < 8; i++ {
		n := 4
		row, err := parseNavFloats(lines[i], 4, 19, n)
		if err != nil {
			return nil, fmt.Errorf("parse nav line %d: %w", i+1, err)
		}
		rows[i-1] = row
	}

	f.IODE, f.Crs, f.DeltaN, f.M0 = rows[0][0], rows[0][1], rows[0][2], rows[0][3]
	f.Cuc, f.Ecc, f.Cus, f.SqrtA = rows[1][0], rows[1][1], rows[1][2], rows[1][3]
	f.Toe, f.Cic, f.Omega0, f.Cis = rows[2][0], rows[2][1], rows[2][2], rows[2][3]
	f.I0, f.Crc, f.Omega, f.OmegaDot = rows[3][0], rows[3][1], rows[3][2], rows[3][3]
	f.IDOT, f.CodesOnL2, f.WeekNumber, f.L2PFlag = rows[4][0], rows[4][1], rows[4][2], rows[4][3]
	f.Accuracy, f.Health, f.GroupDelay1, f.IODC = rows[5][0], rows[5][1], rows[5][2], rows[5][3]
	f.TransmissionTime, f.FitIntervalHours = rows[6][0], rows[6][1]

	if sys == gnss.SysGAL {
		// line7 for Galileo is SISA, SVhealth, BGD_E5a, BGD_E5b: GroupDelay2
		// lands where BeiDou/GPS have IODC.
		f.GroupDelay2 = f.IODC
		f.IODC = 0
	}
	if sys == gnss.SysBDS {
		f.GroupDelay2 = f.IODC
		f.IODC = 0
	}

	return f, nil
}

// GlonassFrame is the broadcast ephemeris for GLONASS: an initial PZ-90 ECEF
// state vector plus luni-solar acceleration, evaluated by numerical
// integration rather than a closed-form orbit (pkg/ephemeris).
type GlonassFrame struct {
	Prn gnss.PRN

	Toc              time.Time
	ClockBias        float64 // TauN (sign-flipped from the broadcast -TauN field), seconds
	RelFreqBias      float64 // +GammaN
	MessageFrameTime float64 // tb, UTC seconds of day

	X, Y, Z    float64 // meters, PZ-90, at Toe
	Vx, Vy, Vz float64 // m/s
	Ax, Ay, Az float64 // m/s^2, luni-solar acceleration

	Health    float64
	FreqNum   int
	AgeOfInfo float64

	// Toe is reconstructed at parse time from Toc's date plus
	// MessageFrameTime, per the source's own assumption that both fall
	// within the same day (spec.md §9 open question).
	Toe time.Time

	// FitInterval in seconds; GLONASS broadcasts no explicit value, so this
	// defaults to the ±15 minute validity window from spec.md §4.4.2.
	FitInterval float64
}

func (f *GlonassFrame) Kind() FrameKind     { return FrameGlonass }
func (f *GlonassFrame) System() gnss.System { return gnss.SysGLO }
func (f *GlonassFrame) PRN() gnss.PRN       { return f.Prn }
func (f *GlonassFrame) TOC() time.Time      { return f.Toc }
func (f *GlonassFrame) IsHealthy() bool     { return f.Health == 0 }

// ValidAt implements the GLONASS validity rule: |t - toe| <= fit_interval.
func (f *GlonassFrame) ValidAt(t time.Time) bool {
	if !f.IsHealthy() {
		return false
	}
	d := t.Sub(f.Toe).Seconds()
	if d < 0 {
		d = -d
	}
	return d <= f.FitInterval
}

const glonassDefaultFitInterval = 900.0 // seconds, spec.md §4.4.2

// parseGlonassFrame parses the 4 fixed-layout lines of a GLONASS broadcast
// ephemeris (spec.md §4.3, §9 unit conversion note).
func parseGlonassFrame(lines []string) (*GlonassFrame, error) {
	if len(lines) != 4 {
		return nil, fmt.Errorf("glonass frame needs 4 lines, got %d", len(lines))
	}

	first := lines[0]
	if len(first) < 23 {
		return nil, fmt.Errorf("short first nav line: %q", first)
	}
	prn, err := gnss.NewPRN(first[:3])
	if err != nil {
		return nil, fmt.Errorf("parse PRN: %w", err)
	}
	toc, err := time.Parse(TimeOfClockFormat, first[4:23])
	if err != nil {
		return nil, fmt.Errorf("parse TOC: %q: %w", first, err)
	}
	firstVals, err := parseNavFloats(first, 23, 19, 3)
	if err != nil {
		return nil, fmt.Errorf("parse clock/tb terms: %w", err)
	}

	f := &GlonassFrame{
		Prn: prn, Toc: toc,
		ClockBias: -firstVals[0], RelFreqBias: firstVals[1], MessageFrameTime: firstVals[2],
		FitInterval: glonassDefaultFitInterval,
	}

	rows := make([][]float64, 3)
	for i := 1; i < 4; i++ {
		row, err := parseNavFloats(lines[i], 4, 19, 4)
		if err != nil {
			return nil, fmt.Errorf("parse nav line %d: %w", i+1, err)
		}
		rows[i-1] = row
	}

	const kmToM = 1000.0
	f.X, f.Vx, f.Ax, f.Health = rows[0][0]*kmToM, rows[0][1]*kmToM, rows[0][2]*kmToM, rows[0][3]
	f.Y, f.Vy, f.Ay = rows[1][0]*kmToM, rows[1][1]*kmToM, rows[1][2]*kmToM
	f.FreqNum = int(rows[1][3])
	f.Z, f.Vz, f.Az = rows[2][0]*kmToM, rows[2][1]*kmToM, rows[2][2]*kmToM
	f.AgeOfInfo = rows[2][3]

	dayStart := time.Date(toc.Year(), toc.Month(), toc.Day(), 0, 0, 0, 0, time.UTC)
	f.Toe = dayStart.Add(time.Duration(f.MessageFrameTime * float64(time.Second)))

	return f, nil
}

// OtherFrame carries a parsed-but-not-evaluated navigation message (SBAS
// payloads); the stream reader needs to account for their line count even
// though pkg/ephemeris never dispatches on FrameOther.
type OtherFrame struct {
	Sys  gnss.System
	Prn  gnss.PRN
	Toc  time.Time
	Raw  []float64
}

func (f *OtherFrame) Kind() FrameKind     { return FrameOther }
func (f *OtherFrame) System() gnss.System { return f.Sys }
func (f *OtherFrame) PRN() gnss.PRN       { return f.Prn }
func (f *OtherFrame) TOC() time.Time      { return f.Toc }
func (f *OtherFrame) IsHealthy() bool     { return true }

// parseOtherFrame parses the 4-line SBAS payload layout, keeping only the
// raw broadcast fields: the values are not consumed by any evaluator.
func parseOtherFrame(sys gnss.System, lines []string) (*OtherFrame, error) {
	if len(lines) != 4 {
		return nil, fmt.Errorf("sbas frame needs 4 lines, got %d", len(lines))
	}
	first := lines[0]
	if len(first) < 23 {
		return nil, fmt.Errorf("short first nav line: %q", first)
	}
	prn, err := gnss.NewPRN(first[:3])
	if err != nil {
		return nil, fmt.Errorf("parse PRN: %w", err)
	}
	toc, err := time.Parse(TimeOfClockFormat, first[4:23])
	if err != nil {
		return nil, fmt.Errorf("parse TOC: %q: %w", first, err)
	}

	raw := make([]float64, 0, 15)
	firstVals, err := parseNavFloats(first, 23, 19, 3)
	if err != nil {
		return nil, fmt.Errorf("parse clock terms: %w", err)
	}
	raw = append(raw, firstVals...)
	for i := 1; i < 4; i++ {
		row, err := parseNavFloats(lines[i], 4, 19, 4)
		if err != nil {
			return nil, fmt.Errorf("parse nav line %d: %w", i+1, err)
		}
		raw = append(raw, row...)
	}

	return &OtherFrame{Sys: sys, Prn: prn, Toc: toc, Raw: raw}, nil
}

// NavHeader contains the RINEX Navigation Header information. All fields
// beyond RINEX VERSION / TYPE are optional.
type NavHeader struct {
	RINEXVersion float32
	RINEXType    string
	SatSystem    gnss.System

	Pgm, RunBy, Date string
	Comments         []string

	labels []string
}
