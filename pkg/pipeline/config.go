// Package pipeline composes the format decoders and evaluators (C7-C12)
// into the positioning-pipeline driver sketched in spec.md §8 scenario 6:
// read an observation epoch, resolve its satellites' states from broadcast
// or precise ephemeris, and hand the caller a synchronized per-satellite
// result. Config loading follows the teacher's pkg/site.go struct-tag
// convention (go-playground/validator/v10), extended with a YAML loader in
// place of site.go's JSON, since a pipeline driver is typically hand-edited
// rather than served by an API.
package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/whigg/gnssproc/pkg/gnss"
)

// EphemerisSource selects which source(s) Pipeline.Next consults for a
// satellite's position and clock (SPEC_FULL.md §11, RTKLIB's eph2pos source
// preference).
type EphemerisSource int

const (
	// Broadcast evaluates RINEX-Nav messages only (pkg/ephemeris).
	Broadcast EphemerisSource = iota
	// Precise looks up SP3 records only, no interpolation beyond an exact
	// epoch match (spec.md §4.5 names no interpolation algorithm).
	Precise
	// PreciseThenBroadcast tries Precise first, falling back to Broadcast
	// for any epoch the SP3 file doesn't cover.
	PreciseThenBroadcast
)

func (s EphemerisSource) String() string {
	switch s {
	case Broadcast:
		return "broadcast"
	case Precise:
		return "precise"
	case PreciseThenBroadcast:
		return "precise_then_broadcast"
	default:
		return "unknown"
	}
}

// UnmarshalYAML lets the config file spell this as a plain lowercase string.
func (s *EphemerisSource) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "", "broadcast":
		*s = Broadcast
	case "precise":
		*s = Precise
	case "precise_then_broadcast", "precisethenbroadcast":
		*s = PreciseThenBroadcast
	default:
		return fmt.Errorf("pipeline: unknown ephemeris_source %q", value.Value)
	}
	return nil
}

// RecipeConfig is one user-requested observable combination, keyed by a
// caller-chosen label and written in the spec.md §8 scenario-4 recipe
// syntax: "SYS::CODE[*COEFF]" terms joined by +/-, e.g. "G::C5Q*1.0" or an
// ionosphere-free combination "G::C1C*2.5457-G::C2W*1.5457".
type RecipeConfig struct {
	Label  string `yaml:"label" validate:"required"`
	Recipe string `yaml:"recipe" validate:"required"`
}

// Config is the on-disk description of one pipeline run.
type Config struct {
	ObsFile     string `yaml:"obs_file" validate:"required"`
	NavFile     string `yaml:"nav_file"`
	Sp3File     string `yaml:"sp3_file"`
	AntexFile   string `yaml:"antex_file"`
	GlochanFile string `yaml:"glochan_file"`

	EphemerisSource EphemerisSource `yaml:"ephemeris_source"`

	// SkipMissingRecipes mirrors ResolvePlan's skipMissing (spec.md §4.1):
	// true drops a recipe the header can't satisfy and keeps the rest; false
	// aborts the whole plan on the first unresolvable recipe (logged, not
	// returned as an error -- Open then proceeds with no satellites resolved
	// for any recipe).
	SkipMissingRecipes bool `yaml:"skip_missing_recipes"`

	Recipes []RecipeConfig `yaml:"recipes" validate:"required,min=1,dive"`

	// ReceiverPosition is the approximate receiver ECEF position (meters),
	// used only by Residual for the open-sky sanity check of spec.md §8
	// scenario 6; leave zero if the caller has no a-priori position.
	ReceiverPosition [3]float64 `yaml:"receiver_position"`
}

// LoadConfig reads and validates a YAML pipeline config from path.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("pipeline: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("pipeline: parse config %s: %w", path, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("pipeline: invalid config %s: %w", path, err)
	}

	if cfg.EphemerisSource != Precise && cfg.NavFile == "" {
		return cfg, fmt.Errorf("pipeline: nav_file required for ephemeris_source %v", cfg.EphemerisSource)
	}
	if cfg.EphemerisSource != Broadcast && cfg.Sp3File == "" {
		return cfg, fmt.Errorf("pipeline: sp3_file required for ephemeris_source %v", cfg.EphemerisSource)
	}

	return cfg, nil
}

// ParseRecipe parses one recipe string into a gnss.GnssObservable. Terms are
// "SYS::CODE" or "SYS::CODE*COEFF", joined by '+' or '-' (the sign attaches
// to the following term's coefficient); SYS is a single RINEX constellation
// letter (gnss.SysPerAbbr) and CODE a 3-char observable code (gnss.ParseObsCode).
func ParseRecipe(label, raw string) (gnss.GnssObservable, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return gnss.GnssObservable{}, fmt.Errorf("pipeline: recipe %q: empty", label)
	}

	var terms []gnss.Term
	for _, chunk := range splitSignedTerms(raw) {
		term, err := parseRecipeTerm(chunk)
		if err != nil {
			return gnss.GnssObservable{}, fmt.Errorf("pipeline: recipe %q: %w", label, err)
		}
		terms = append(terms, term)
	}
	return gnss.GnssObservable{Terms: terms, Label: label}, nil
}

func parseRecipeTerm(chunk string) (gnss.Term, error) {
	sign := 1.0
	switch {
	case strings.HasPrefix(chunk, "-"):
		sign, chunk = -1.0, chunk[1:]
	case strings.HasPrefix(chunk, "+"):
		chunk = chunk[1:]
	}

	sysCode, coeffStr, hasCoeff := strings.Cut(chunk, "*")
	sysAbbr, codeStr, ok := strings.Cut(sysCode, "::")
	if !ok {
		return gnss.Term{}, fmt.Errorf("malformed term %q, want SYS::CODE[*COEFF]", chunk)
	}

	sys, ok := gnss.SysPerAbbr[sysAbbr]
	if !ok {
		return gnss.Term{}, fmt.Errorf("unknown constellation %q", sysAbbr)
	}
	code, err := gnss.ParseObsCode(codeStr)
	if err != nil {
		return gnss.Term{}, fmt.Errorf("bad observable code %q: %w", codeStr, err)
	}

	coeff := sign
	if hasCoeff {
		c, err := strconv.ParseFloat(coeffStr, 64)
		if err != nil {
			return gnss.Term{}, fmt.Errorf("bad coefficient %q: %w", coeffStr, err)
		}
		coeff = sign * c
	}
	return gnss.Term{Sys: sys, Code: code, Coeff: coeff}, nil
}

// splitSignedTerms splits a recipe string on top-level '+'/'-' while keeping
// the sign with the term that follows it (the leading byte is never treated
// as a split point, so a recipe cannot start with an empty term).
func splitSignedTerms(s string) []string {
	var out []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i] == '+' || s[i] == '-' {
			out = append(out, s[start:i])
			start = i
		}
	}
	return append(out, s[start:])
}
