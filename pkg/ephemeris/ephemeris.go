// Package ephemeris evaluates broadcast navigation frames (pkg/rinex.Frame)
// into satellite position and clock bias at a query epoch: the Keplerian
// model shared by GPS/Galileo/BeiDou/QZSS/IRNSS, and GLONASS's numerically
// integrated orbit.
package ephemeris

import (
	"fmt"
	"time"

	"github.com/whigg/gnssproc/pkg/gnss"
	"github.com/whigg/gnssproc/pkg/rinex"
)

// Kind discriminates the ways evaluating one frame can fail or warrant a
// caller-visible warning.
type Kind int

// Evaluator condition kinds.
const (
	KeplerNoConverge Kind = iota + 1
	GloIntegrationDiverged
	EphemerisStale
	UnhealthySat
	UraUnknown
)

func (k Kind) String() string {
	switch k {
	case KeplerNoConverge:
		return "KeplerNoConverge"
	case GloIntegrationDiverged:
		return "GloIntegrationDiverged"
	case EphemerisStale:
		return "EphemerisStale"
	case UnhealthySat:
		return "UnhealthySat"
	case UraUnknown:
		return "UraUnknown"
	default:
		return "unknown"
	}
}

// Error reports an evaluator-time condition. EphemerisStale and UraUnknown
// are warnings: State and ClockBias are still the computed result (not the
// zero value) whenever Error wraps one of those kinds.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsWarning reports whether err is an *Error carrying a condition that still
// returns a usable result (EphemerisStale, UraUnknown) rather than a hard
// failure (KeplerNoConverge, GloIntegrationDiverged).
func IsWarning(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == EphemerisStale || e.Kind == UraUnknown
}

// StateAndClock dispatches on frame.Kind() to the Keplerian or GLONASS
// evaluator and returns the ECEF position (meters) and clock bias (seconds)
// at query epoch t (spec.md §4.4.3). UnhealthySat is returned (hard error,
// no state computed) if the frame is marked unhealthy; EphemerisStale is
// returned alongside a valid result if t falls outside the frame's fit
// interval.
func StateAndClock(frame rinex.Frame, t time.Time) (pos [3]float64, clockBias float64, err error) {
	if !frame.IsHealthy() {
		return pos, 0, &Error{Kind: UnhealthySat, Err: fmt.Errorf("%v PRN %s marked unhealthy", frame.System(), frame.PRN())}
	}

	switch f := frame.(type) {
	case *rinex.KeplerianFrame:
		pos, clockBias, err = EvaluateKeplerian(f, t)
	case *rinex.GlonassFrame:
		pos, clockBias, err = EvaluateGlonass(f, t, ModeSimplifiedECEF)
	default:
		return pos, 0, fmt.Errorf("ephemeris: frame kind %v is not evaluable", frame.Kind())
	}
	if err != nil {
		return pos, clockBias, err
	}

	if stale := isStale(frame, t); stale {
		return pos, clockBias, &Error{Kind: EphemerisStale, Err: fmt.Errorf("query epoch %s outside fit interval of %v PRN %s", t, frame.System(), frame.PRN())}
	}
	return pos, clockBias, nil
}

func isStale(frame rinex.Frame, t time.Time) bool {
	switch f := frame.(type) {
	case *rinex.KeplerianFrame:
		return !f.ValidAt(t)
	case *rinex.GlonassFrame:
		return !f.ValidAt(t)
	default:
		return false
	}
}

// uraMeters is the GPS/QZSS/IRNSS URA index -> accuracy (meters) table per
// IS-GPS-200H §20.3.3.3.1.3 (indices 0-6 are listed exponential steps,
// 7-14 successive powers of two).
var uraMeters = [15]float64{
	2.4, 3.4, 4.85, 6.85, 9.65, 13.65, 24.0,
	48.0, 96.0, 192.0, 384.0, 768.0, 1536.0, 3072.0, 6144.0,
}

// URAMeters converts a GPS/QZSS/IRNSS URA index to meters. Index > 14 is
// "use at your own risk" per IS-GPS-200H and is returned as UraUnknown
// rather than silently clamped.
func URAMeters(index int) (float64, error) {
	if index < 0 || index > 14 {
		return 0, &Error{Kind: UraUnknown, Err: fmt.Errorf("URA index %d out of [0,14]", index)}
	}
	return uraMeters[index], nil
}

// galileoSISA converts a Galileo SISA index to an accuracy (meters) per
// the Galileo OS-SIS-ICD 5.1.11 piecewise table.
func galileoSISA(index int) (float64, error) {
	switch {
	case index < 0:
		return 0, &Error{Kind: UraUnknown, Err: fmt.Errorf("negative SISA index %d", index)}
	case index <= 49:
		return float64(index) * 0.01, nil
	case index <= 74:
		return 0.5 + float64(index-50)*0.02, nil
	case index <= 99:
		return 1.0 + float64(index-75)*0.04, nil
	case index <= 125:
		return 2.0 + float64(index-100)*0.16, nil
	case index == 255:
		return 0, &Error{Kind: UraUnknown, Err: fmt.Errorf("SISA index 255: NAPA (no accuracy prediction available)")}
	default:
		return 0, &Error{Kind: UraUnknown, Err: fmt.Errorf("SISA index %d out of range", index)}
	}
}

// Accuracy resolves frame's broadcast accuracy figure to meters, dispatching
// by constellation (GPS/QZSS/IRNSS URA, Galileo SISA). BeiDou's accuracy
// index has no single published conversion table in the ICD excerpted by
// this evaluator and is returned as UraUnknown.
func Accuracy(f *rinex.KeplerianFrame) (float64, error) {
	switch f.Sys {
	case gnss.SysGPS, gnss.SysQZSS, gnss.SysIRNSS:
		return URAMeters(int(f.Accuracy))
	case gnss.SysGAL:
		return galileoSISA(int(f.Accuracy))
	default:
		return 0, &Error{Kind: UraUnknown, Err: fmt.Errorf("no accuracy table for %v", f.Sys)}
	}
}
