package ephemeris

import (
	"fmt"
	"math"
	"time"

	"github.com/whigg/gnssproc/pkg/epochtime"
	"github.com/whigg/gnssproc/pkg/rinex"
)

const (
	keplerTolerance = 1e-14
	keplerMaxIter   = 1000
)

// secondsPerWeek is the period BeiDou's tk normalization (spec.md §9) folds
// into, applied uniformly to every Keplerian constellation: a message's toe
// and the query epoch are always within one fit interval of each other, so
// reducing their difference into (-302400, 302400] is always correct and
// additionally guards GPS/Galileo against the same week-rollover truncation
// the source only avoided for GPS by accident.
const secondsPerWeek = 604800.0

func normalizeTk(tk float64) float64 {
	tk = math.Mod(tk, secondsPerWeek)
	switch {
	case tk > secondsPerWeek/2:
		tk -= secondsPerWeek
	case tk < -secondsPerWeek/2:
		tk += secondsPerWeek
	}
	return tk
}

// EvaluateKeplerian implements spec.md §4.4.1: Kepler iteration for the
// eccentric anomaly, second-harmonic corrections, and the ECEF rotation
// shared by GPS, Galileo, BeiDou, QZSS and IRNSS.
func EvaluateKeplerian(f *rinex.KeplerianFrame, t time.Time) (pos [3]float64, clockBias float64, err error) {
	c, err := rinex.KeplerianConstants(f.Sys)
	if err != nil {
		return pos, 0, err
	}

	A := f.SqrtA * f.SqrtA
	n0 := math.Sqrt(c.Mu / (A * A * A))
	n := n0 + f.DeltaN

	toeAbs := epochtime.FromGPSWeekSOW(int(f.WeekNumber), f.Toe).Time()
	tk := normalizeTk(t.Sub(toeAbs).Seconds())

	Mk := f.M0 + n*tk
	Ek := Mk
	converged := false
	for i := 0; i < keplerMaxIter; i++ {
		prev := Ek
		Ek = Mk + f.Ecc*math.Sin(prev)
		if math.Abs(Ek-prev) < keplerTolerance {
			converged = true
			break
		}
	}
	if !converged {
		return pos, 0, &Error{Kind: KeplerNoConverge, Err: fmt.Errorf("%v PRN %s: no convergence after %d iterations", f.Sys, f.Prn, keplerMaxIter)}
	}

	sinEk, cosEk := math.Sin(Ek), math.Cos(Ek)
	nuK := math.Atan2(math.Sqrt(1-f.Ecc*f.Ecc)*sinEk, cosEk-f.Ecc)

	phi := nuK + f.Omega
	sin2phi, cos2phi := math.Sin(2*phi), math.Cos(2*phi)
	du := f.Cus*sin2phi + f.Cuc*cos2phi
	dr := f.Crs*sin2phi + f.Crc*cos2phi
	di := f.Cis*sin2phi + f.Cic*cos2phi

	u := phi + du
	r := A*(1-f.Ecc*cosEk) + dr
	incl := f.I0 + di + f.IDOT*tk

	xPrime := r * math.Cos(u)
	yPrime := r * math.Sin(u)

	omega := f.Omega0 + (f.OmegaDot-c.OmegaE)*tk - c.OmegaE*f.Toe
	sinOmega, cosOmega := math.Sin(omega), math.Cos(omega)
	cosI := math.Cos(incl)
	sinI := math.Sin(incl)

	pos[0] = xPrime*cosOmega - yPrime*cosI*sinOmega
	pos[1] = xPrime*sinOmega + yPrime*cosI*cosOmega
	pos[2] = yPrime * sinI

	dtoc := t.Sub(f.Toc).Seconds()
	clockBias = f.ClockBias + f.ClockDrift*dtoc + f.ClockDriftRate*dtoc*dtoc
	clockBias += c.F * f.Ecc * f.SqrtA * sinEk

	return pos, clockBias, nil
}
