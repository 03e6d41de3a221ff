package pipeline

import (
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/whigg/gnssproc/pkg/antex"
	"github.com/whigg/gnssproc/pkg/ephemeris"
	"github.com/whigg/gnssproc/pkg/glochan"
	"github.com/whigg/gnssproc/pkg/gnss"
	"github.com/whigg/gnssproc/pkg/rinex"
	"github.com/whigg/gnssproc/pkg/rnxio"
	"github.com/whigg/gnssproc/pkg/sp3"
)

// SpeedOfLight is the IS-GPS-200/ICD value used to convert a clock bias
// (seconds) to a pseudorange correction (meters).
const SpeedOfLight = 299792458.0

// Stats counts what a run processed, for the caller to export however it
// likes (spec.md §1 keeps metrics/logging an external collaborator; this
// module never binds a Prometheus registry inside the core library).
type Stats struct {
	EpochsRead                   int
	SatellitesResolved           int
	SatellitesSkippedUnhealthy   int
	SatellitesSkippedNoEphemeris int
	SatellitesStaleEphemeris     int
}

// RecipeValue is one resolved recipe's value for one satellite at one epoch.
type RecipeValue struct {
	Label string
	Value float64
}

// SatelliteResult is one satellite's resolved observables plus, when an
// ephemeris source covered the epoch, its evaluated state.
type SatelliteResult struct {
	PRN         gnss.PRN
	Recipes     []RecipeValue
	Position    [3]float64
	ClockBias   float64
	HasState    bool
	FromPrecise bool  // true if Position/ClockBias came from SP3, false if broadcast
	Warning     error // non-nil for a soft condition (e.g. ephemeris.EphemerisStale)
}

// EpochResult is one synchronized batch produced by Pipeline.Next.
type EpochResult struct {
	Time time.Time
	Flag rinex.EpochFlag
	Sats []SatelliteResult
}

// Pipeline drives an observation stream against broadcast and/or precise
// ephemeris sources, applying the caller's recipe plan to every satellite.
type Pipeline struct {
	cfg   Config
	stats Stats

	obsFile io.ReadCloser
	obs     *rinex.ObsDecoder
	plans   map[gnss.System][]rinex.Plan

	navFile io.ReadCloser
	nav     *rinex.NavDecoder

	sp3Epochs []sp3.Epoch

	antex   *antex.Decoder
	glochan *glochan.Table
}

// Open reads cfg's obs header, resolves the recipe plan against it, and
// opens whichever ephemeris/antenna inputs cfg.EphemerisSource and the
// optional Antex/Glochan fields require. All file inputs go through
// pkg/rnxio, so compressed RINEX/SP3/ANTEX distributions work transparently.
func Open(cfg Config) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg}

	obsFile, err := rnxio.Open(cfg.ObsFile)
	if err != nil {
		return nil, err
	}
	p.obsFile = obsFile

	p.obs, err = rinex.NewObsDecoder(obsFile)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("pipeline: open obs file: %w", err)
	}

	userMap, err := buildUserMap(cfg.Recipes)
	if err != nil {
		p.Close()
		return nil, err
	}
	plans, err := rinex.ResolvePlan(p.obs.Header, userMap, cfg.SkipMissingRecipes)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("pipeline: resolve recipe plan: %w", err)
	}
	p.plans = plans
	p.obs.SetPlan(plans)

	if cfg.EphemerisSource != Precise {
		navFile, err := rnxio.Open(cfg.NavFile)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.navFile = navFile
		p.nav, err = rinex.NewNavDecoder(navFile)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("pipeline: open nav file: %w", err)
		}
	}

	if cfg.EphemerisSource != Broadcast {
		if err := p.loadSp3(cfg.Sp3File); err != nil {
			p.Close()
			return nil, err
		}
	}

	if cfg.AntexFile != "" {
		f, err := rnxio.Open(cfg.AntexFile)
		if err != nil {
			p.Close()
			return nil, err
		}
		defer f.Close()
		p.antex, err = antex.NewDecoder(f)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("pipeline: open antex file: %w", err)
		}
	}

	if cfg.GlochanFile != "" {
		f, err := rnxio.Open(cfg.GlochanFile)
		if err != nil {
			p.Close()
			return nil, err
		}
		defer f.Close()
		p.glochan, err = glochan.NewTable(f)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("pipeline: open glochan file: %w", err)
		}
	}

	return p, nil
}

func buildUserMap(recipes []RecipeConfig) (map[gnss.System][]gnss.GnssObservable, error) {
	userMap := map[gnss.System][]gnss.GnssObservable{}
	for _, rc := range recipes {
		obs, err := ParseRecipe(rc.Label, rc.Recipe)
		if err != nil {
			return nil, err
		}
		sys, err := obs.System()
		if err != nil {
			return nil, fmt.Errorf("pipeline: recipe %q: %w", rc.Label, err)
		}
		userMap[sys] = append(userMap[sys], obs)
	}
	return userMap, nil
}

// loadSp3 eagerly decodes every epoch in path, the same materialize-then-
// look-up-by-key pattern pkg/antex and pkg/glochan use: SP3 files are meant
// for random access by (PRN, epoch), unlike the obs/nav forward streams.
func (p *Pipeline) loadSp3(path string) error {
	f, err := rnxio.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := sp3.NewDecoder(f)
	if err != nil {
		return fmt.Errorf("pipeline: open sp3 file: %w", err)
	}
	for dec.NextEpoch() {
		p.sp3Epochs = append(p.sp3Epochs, dec.Epoch())
	}
	if err := dec.Err(); err != nil {
		return fmt.Errorf("pipeline: read sp3 file: %w", err)
	}
	return nil
}

// Close releases every open input file. Safe to call on a partially
// constructed Pipeline (e.g. after Open failed).
func (p *Pipeline) Close() error {
	var err error
	if p.obsFile != nil {
		err = p.obsFile.Close()
	}
	if p.navFile != nil {
		if cerr := p.navFile.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Stats returns the running counters accumulated so far.
func (p *Pipeline) Stats() Stats { return p.stats }

// Err returns the observation stream's terminal error, if Next returned
// false because of a real failure rather than a clean EOF.
func (p *Pipeline) Err() error { return p.obs.Err() }

// Next decodes the next observation epoch and evaluates every tracked
// satellite's state from the configured ephemeris source(s). It returns
// false once the observation stream is exhausted; check Err() to tell EOF
// apart from a real failure.
func (p *Pipeline) Next() (EpochResult, bool) {
	if !p.obs.NextEpoch() {
		return EpochResult{}, false
	}
	p.stats.EpochsRead++

	res := EpochResult{Time: p.obs.EpochTime(), Flag: p.obs.EpochFlagValue()}
	for _, sat := range p.obs.Sats() {
		sr := SatelliteResult{PRN: sat.Prn}
		sr.Recipes = p.labelValues(sat)

		pos, clk, fromPrecise, warn, ok := p.evaluate(sat.Prn, res.Time)
		sr.Position, sr.ClockBias, sr.HasState, sr.FromPrecise, sr.Warning = pos, clk, ok, fromPrecise, warn
		if ok {
			p.stats.SatellitesResolved++
			if warn != nil {
				p.stats.SatellitesStaleEphemeris++
			}
		} else if warn != nil {
			var evalErr *ephemeris.Error
			if asEvalError(warn, &evalErr) && evalErr.Kind == ephemeris.UnhealthySat {
				p.stats.SatellitesSkippedUnhealthy++
			} else {
				p.stats.SatellitesSkippedNoEphemeris++
			}
			log.Printf("pipeline: %v PRN %s at %s: %v", sat.Prn.Sys, sat.Prn, res.Time.Format(time.RFC3339), warn)
		} else {
			p.stats.SatellitesSkippedNoEphemeris++
		}
		res.Sats = append(res.Sats, sr)
	}
	return res, true
}

func asEvalError(err error, target **ephemeris.Error) bool {
	if e, ok := err.(*ephemeris.Error); ok {
		*target = e
		return true
	}
	return false
}

func (p *Pipeline) labelValues(sat rinex.ResolvedSat) []RecipeValue {
	plans := p.plans[sat.Prn.Sys]
	out := make([]RecipeValue, len(sat.Values))
	for i, v := range sat.Values {
		label := ""
		if i < len(plans) {
			label = plans[i].Label
		}
		out[i] = RecipeValue{Label: label, Value: v}
	}
	return out
}

// evaluate resolves one satellite's state at t per cfg.EphemerisSource.
func (p *Pipeline) evaluate(prn gnss.PRN, t time.Time) (pos [3]float64, clockBias float64, fromPrecise bool, warn error, ok bool) {
	switch p.cfg.EphemerisSource {
	case Precise:
		pos, clockBias, ok = p.precise(prn, t)
		if !ok {
			warn = fmt.Errorf("no SP3 record for %v PRN %s at %s", prn.Sys, prn, t)
		}
		return pos, clockBias, true, warn, ok
	case PreciseThenBroadcast:
		if pos, clockBias, ok = p.precise(prn, t); ok {
			return pos, clockBias, true, nil, true
		}
		pos, clockBias, warn, ok = p.broadcast(prn, t)
		return pos, clockBias, false, warn, ok
	default: // Broadcast
		pos, clockBias, warn, ok = p.broadcast(prn, t)
		return pos, clockBias, false, warn, ok
	}
}

func (p *Pipeline) broadcast(prn gnss.PRN, t time.Time) (pos [3]float64, clockBias float64, warn error, ok bool) {
	if p.nav == nil {
		return pos, 0, fmt.Errorf("no nav file configured"), false
	}
	frame, err := p.nav.FindNextValid(t, prn.Sys, prn)
	if err != nil {
		return pos, 0, err, false
	}
	pos, clockBias, err = ephemeris.StateAndClock(frame, t)
	if err != nil {
		if ephemeris.IsWarning(err) {
			return pos, clockBias, err, true
		}
		return pos, 0, err, false
	}
	return pos, clockBias, nil, true
}

func (p *Pipeline) precise(prn gnss.PRN, t time.Time) (pos [3]float64, clockBias float64, ok bool) {
	for _, ep := range p.sp3Epochs {
		if !ep.Time.Equal(t) {
			continue
		}
		for _, rec := range ep.Records {
			if rec.Prn.Sys == prn.Sys && rec.Prn.Num == prn.Num {
				if rec.Flag.MissingPosition() {
					return pos, 0, false
				}
				return rec.Position, rec.ClockBias, true
			}
		}
		return pos, 0, false
	}
	return pos, 0, false
}

// RecipeFrequency returns the nominal carrier frequency (Hz) of a resolved
// recipe for a given satellite, consulting the GLONASS frequency-channel
// table (pkg/glochan) when svn is non-zero and the recipe is GLONASS;
// pass svn=0 for any non-GLONASS recipe.
func (p *Pipeline) RecipeFrequency(sys gnss.System, label string, svn int, t time.Time) (float64, error) {
	plans, ok := p.plans[sys]
	if !ok {
		return 0, fmt.Errorf("pipeline: no resolved plan for %v", sys)
	}
	survived := false
	for _, plan := range plans {
		if plan.Label == label {
			survived = true
			break
		}
	}
	if !survived {
		return 0, fmt.Errorf("pipeline: recipe %q was dropped or not requested for %v", label, sys)
	}

	var hdrRecipe *gnss.GnssObservable
	for _, rc := range p.cfg.Recipes {
		if rc.Label != label {
			continue
		}
		obs, err := ParseRecipe(rc.Label, rc.Recipe)
		if err != nil {
			return 0, err
		}
		hdrRecipe = &obs
		break
	}
	if hdrRecipe == nil {
		return 0, fmt.Errorf("pipeline: no recipe labeled %q", label)
	}

	chanOf := func(gnss.System, byte) int {
		if p.glochan == nil || svn == 0 {
			return 0
		}
		ifrq, _, ok := p.glochan.Channel(svn, t)
		if !ok {
			return 0
		}
		return ifrq
	}
	return hdrRecipe.Frequency(chanOf)
}

// ReceiverPCO returns the phase-center offset for a constellation/band on
// the observation file's declared receiver antenna (ObsHeader.Antenna),
// looked up in the loaded ANTEX file (cfg.AntexFile). This is the
// cross-format stitch between C10's obs header and C12's antenna model.
func (p *Pipeline) ReceiverPCO(sys gnss.System, band int) (antex.PCO, antex.MatchKind, error) {
	if p.antex == nil {
		return antex.PCO{}, antex.NoMatch, fmt.Errorf("pipeline: no antex file configured")
	}
	rec, kind := p.antex.MatchReceiver(p.obs.Header.Antenna, false)
	if kind == antex.NoMatch {
		return antex.PCO{}, kind, fmt.Errorf("pipeline: no antenna match for %v", p.obs.Header.Antenna)
	}
	pco, ok := rec.PCOFor(sys, band)
	if !ok {
		return antex.PCO{}, kind, fmt.Errorf("pipeline: no PCO for %v band %d on matched antenna", sys, band)
	}
	return pco, kind, nil
}

// Residual computes the open-sky pseudorange residual of spec.md §8
// scenario 6: the raw pseudorange corrected by +c*Δtsv (removing the
// satellite clock error), minus the geometric range from receiverPos to
// satPos. A healthy broadcast or precise fix should leave this within a few
// meters once ionosphere/troposphere delays are ignored.
func Residual(rawPseudorange float64, satPos [3]float64, satClockBias float64, receiverPos [3]float64) float64 {
	corrected := rawPseudorange + SpeedOfLight*satClockBias
	dx := satPos[0] - receiverPos[0]
	dy := satPos[1] - receiverPos[1]
	dz := satPos[2] - receiverPos[2]
	geometric := math.Sqrt(dx*dx + dy*dy + dz*dz)
	return corrected - geometric
}
