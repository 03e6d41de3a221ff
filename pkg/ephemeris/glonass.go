package ephemeris

import (
	"fmt"
	"math"
	"time"

	"github.com/whigg/gnssproc/pkg/epochtime"
	"github.com/whigg/gnssproc/pkg/rinex"
)

// GLONASS evaluator constants (spec.md §4.4.2).
const (
	glonassMu      = 3.986004418e14
	glonassAe      = 6378136.0
	glonassJ2      = 1082625.75e-9
	glonassOmegaE  = 7.2921151467e-5
	glonassStep    = 60.0 // seconds, fixed RK4 step magnitude
	glonassMaxStep = 1500
)

// Mode selects which of the two numerically equivalent GLONASS integration
// schemes spec.md §4.4.2 allows (implementer's choice, both testable).
type Mode int

const (
	// ModeSimplifiedECEF integrates directly in the rotating PZ-90 frame,
	// carrying explicit centrifugal and Coriolis terms in the ODE.
	ModeSimplifiedECEF Mode = iota + 1
	// ModePreciseInertial rotates the state to a pseudo-inertial frame at
	// toe, integrates a simpler (rotation-term-free) ODE, then rotates the
	// result back to ECEF at the query epoch using GMST(t).
	ModePreciseInertial
)

type glonassState [6]float64 // x,y,z,vx,vy,vz

func addScaled(x, k glonassState, h float64) glonassState {
	var out glonassState
	for i := range out {
		out[i] = x[i] + k[i]*h
	}
	return out
}

func rk4Step(x glonassState, acc [3]float64, h float64, deq func(glonassState, [3]float64) glonassState) glonassState {
	k1 := deq(x, acc)
	k2 := deq(addScaled(x, k1, h/2), acc)
	k3 := deq(addScaled(x, k2, h/2), acc)
	k4 := deq(addScaled(x, k3, h), acc)

	var out glonassState
	for i := range out {
		out[i] = x[i] + (k1[i]+2*k2[i]+2*k3[i]+k4[i])*h/6
	}
	return out
}

// gravityTerms returns the shared c (point-mass + J2, signed) and a (J2
// z-axis correction) coefficients used by both ODE variants.
func gravityTerms(x, y, z float64) (c, a float64) {
	r2 := x*x + y*y + z*z
	r := math.Sqrt(r2)
	r3 := r2 * r
	r5 := r3 * r2
	a = 1.5 * glonassJ2 * glonassMu * glonassAe * glonassAe / r5
	b := 5 * z * z / r2
	c = -glonassMu/r3 - a*(1-b)
	return
}

// deqSimplifiedECEF is the GLONASS orbit ODE in the rotating PZ-90 frame,
// including centrifugal and Coriolis terms (spec.md §4.4.2 "Simplified").
func deqSimplifiedECEF(x glonassState, acc [3]float64) glonassState {
	c, a := gravityTerms(x[0], x[1], x[2])
	omega2 := glonassOmegaE * glonassOmegaE
	return glonassState{
		x[3], x[4], x[5],
		(c+omega2)*x[0] + 2*glonassOmegaE*x[4] + acc[0],
		(c+omega2)*x[1] - 2*glonassOmegaE*x[3] + acc[1],
		(c-2*a)*x[2] + acc[2],
	}
}

// deqInertial is the same gravitational model without the rotating-frame
// terms (spec.md §4.4.2 "Precise").
func deqInertial(x glonassState, acc [3]float64) glonassState {
	c, a := gravityTerms(x[0], x[1], x[2])
	return glonassState{
		x[3], x[4], x[5],
		c*x[0] + acc[0],
		c*x[1] + acc[1],
		(c-2*a)*x[2] + acc[2],
	}
}

func rotateZ(v [3]float64, theta float64) [3]float64 {
	s, c := math.Sin(theta), math.Cos(theta)
	return [3]float64{v[0]*c - v[1]*s, v[0]*s + v[1]*c, v[2]}
}

// ecefToEci rotates a PZ-90 ECEF state into the pseudo-inertial frame at the
// given GMST angle (spec.md §4.4.2 "Precise").
func ecefToEci(pos, vel [3]float64, theta float64) (posI, velI [3]float64) {
	posI = rotateZ(pos, theta)
	adj := [3]float64{vel[0] - glonassOmegaE*pos[1], vel[1] + glonassOmegaE*pos[0], vel[2]}
	velI = rotateZ(adj, theta)
	return
}

// eciToEcef is ecefToEci's inverse.
func eciToEcef(posI, velI [3]float64, theta float64) (pos, vel [3]float64) {
	pos = rotateZ(posI, -theta)
	tmp := rotateZ(velI, -theta)
	vel = [3]float64{tmp[0] + glonassOmegaE*pos[1], tmp[1] - glonassOmegaE*pos[0], tmp[2]}
	return
}

// gmst computes the Greenwich Mean Sidereal Time (radians) of epoch t per
// spec.md §4.4.2's formula (the IAU-1982 GMST polynomial term, converted
// from seconds to radians, folded into "+ polynomial(td)").
func gmst(t time.Time) float64 {
	ep := epochtime.FromTime(t.UTC())
	jd := ep.JulianDate()
	jd0 := jd - ep.Sec/86400.0
	td := (jd0 - 2451545.0) / 36525.0

	g := 2 * math.Pi * (0.7790572732640 + 1.00273781191135448*(jd0-2451545.0))
	g += (0.093104*td*td - 6.2e-6*td*td*td) * (2 * math.Pi / 86400.0)
	g += glonassOmegaE * (ep.Sec - 10800.0)

	g = math.Mod(g, 2*math.Pi)
	if g < 0 {
		g += 2 * math.Pi
	}
	return g
}

// integrate drives the fixed-step RK4 integration of the 6-state ODE from
// frame's toe to t, returning the final state. It fails with
// GloIntegrationDiverged once more than glonassMaxStep steps are needed.
func integrate(state glonassState, acc [3]float64, seconds float64, deq func(glonassState, [3]float64) glonassState) (glonassState, error) {
	h := glonassStep
	if seconds < 0 {
		h = -glonassStep
	}

	remaining := seconds
	for i := 0; math.Abs(remaining) > 1e-9; i++ {
		if i >= glonassMaxStep {
			return state, &Error{Kind: GloIntegrationDiverged, Err: fmt.Errorf("no convergence after %d RK4 steps", glonassMaxStep)}
		}
		step := h
		if math.Abs(remaining) < math.Abs(h) {
			step = remaining
		}
		state = rk4Step(state, acc, step, deq)
		remaining -= step
	}
	return state, nil
}

// EvaluateGlonass implements spec.md §4.4.2: fixed-step RK4 integration of
// the GLONASS broadcast state from toe to t, in either the rotating ECEF
// frame or a pseudo-inertial frame (mode).
func EvaluateGlonass(f *rinex.GlonassFrame, t time.Time, mode Mode) (pos [3]float64, clockBias float64, err error) {
	seconds := t.Sub(f.Toe).Seconds()
	acc := [3]float64{f.Ax, f.Ay, f.Az}

	var final glonassState
	switch mode {
	case ModePreciseInertial:
		thetaToe := gmst(f.Toe)
		posI, velI := ecefToEci([3]float64{f.X, f.Y, f.Z}, [3]float64{f.Vx, f.Vy, f.Vz}, thetaToe)
		state := glonassState{posI[0], posI[1], posI[2], velI[0], velI[1], velI[2]}
		accI := rotateZ(acc, thetaToe)

		integrated, ierr := integrate(state, accI, seconds, deqInertial)
		if ierr != nil {
			return pos, 0, ierr
		}
		thetaT := gmst(t)
		posE, _ := eciToEcef([3]float64{integrated[0], integrated[1], integrated[2]}, [3]float64{integrated[3], integrated[4], integrated[5]}, thetaT)
		final = glonassState{posE[0], posE[1], posE[2], 0, 0, 0}
	default:
		state := glonassState{f.X, f.Y, f.Z, f.Vx, f.Vy, f.Vz}
		integrated, ierr := integrate(state, acc, seconds, deqSimplifiedECEF)
		if ierr != nil {
			return pos, 0, ierr
		}
		final = integrated
	}

	pos = [3]float64{final[0], final[1], final[2]}
	clockBias = -f.ClockBias + f.RelFreqBias*seconds
	return pos, clockBias, nil
}
