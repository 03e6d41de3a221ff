package rinex

import (
	"fmt"
	"log"

	"github.com/whigg/gnssproc/pkg/gnss"
)

// PlanErrorKind discriminates the ways a recipe can fail to resolve against
// an observation header (spec.md §4.1).
type PlanErrorKind int

// Plan error kinds.
const (
	MixedConstellation PlanErrorKind = iota + 1
	UnknownConstellation
	UnknownObservable
)

func (k PlanErrorKind) String() string {
	switch k {
	case MixedConstellation:
		return "MixedConstellation"
	case UnknownConstellation:
		return "UnknownConstellation"
	case UnknownObservable:
		return "UnknownObservable"
	default:
		return "unknown"
	}
}

// PlanError reports why a single recipe could not be resolved.
type PlanError struct {
	Kind  PlanErrorKind
	Label string
	Err   error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("resolve recipe %q: %s: %v", e.Label, e.Kind, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

// PlanTerm is one (column, coefficient) pair inside a resolved Plan; column
// indexes into ObsHeader.ObsTypes[sys], the per-constellation observable
// list as printed in "SYS / # / OBS TYPES".
type PlanTerm struct {
	Column int
	Coeff  float64
}

// Plan is a resolved GnssObservable: an ordered list of (column, coefficient)
// pairs, preserving the term order of the source recipe.
type Plan struct {
	Terms []PlanTerm
	Label string
}

// ResolvePlan resolves every recipe in userMap against hdr's observable
// lists, producing a plan per constellation. If skipMissing is true, a
// recipe referring to a constellation or observable code absent from hdr is
// dropped (and removed from userMap in place, to keep the returned plan
// slices positionally aligned with the caller's surviving labels). If false,
// the first unresolvable recipe aborts the whole resolution: ResolvePlan
// logs the *PlanError and returns a completely empty map (never a Go error),
// matching the original implementation's set_read_map, which reports failure
// with a std::cerr warning and an empty ResultType{} rather than an
// exception.
func ResolvePlan(hdr ObsHeader, userMap map[gnss.System][]gnss.GnssObservable, skipMissing bool) (map[gnss.System][]Plan, error) {
	result := make(map[gnss.System][]Plan, len(userMap))

	for sys, recipes := range userMap {
		kept := recipes[:0:0]
		plans := make([]Plan, 0, len(recipes))

		for _, recipe := range recipes {
			recipeSys, err := recipe.System()
			if err != nil {
				if !skipMissing {
					return abortPlan(MixedConstellation, recipe.Label, err)
				}
				continue
			}
			if recipeSys != sys {
				err := fmt.Errorf("recipe under key %v has terms for %v", sys, recipeSys)
				if !skipMissing {
					return abortPlan(MixedConstellation, recipe.Label, err)
				}
				continue
			}

			codes, ok := hdr.ObsTypes[sys]
			if !ok {
				err := fmt.Errorf("constellation %v not present in header", sys)
				if !skipMissing {
					return abortPlan(UnknownConstellation, recipe.Label, err)
				}
				continue
			}

			plan := Plan{Terms: make([]PlanTerm, 0, len(recipe.Terms)), Label: recipe.Label}
			missing := false
			for _, term := range recipe.Terms {
				col := indexOfCode(codes, term.Code)
				if col < 0 {
					missing = true
					break
				}
				plan.Terms = append(plan.Terms, PlanTerm{Column: col, Coeff: term.Coeff})
			}
			if missing {
				err := fmt.Errorf("observable code not present in header for %v", sys)
				if !skipMissing {
					return abortPlan(UnknownObservable, recipe.Label, err)
				}
				continue
			}

			kept = append(kept, recipe)
			plans = append(plans, plan)
		}

		userMap[sys] = kept
		if len(plans) > 0 {
			result[sys] = plans
		}
	}

	return result, nil
}

// abortPlan logs why recipe resolution failed and returns the empty-map,
// nil-error result spec.md §8 scenario 4 and the original set_read_map both
// specify for skip_missing=false.
func abortPlan(kind PlanErrorKind, label string, err error) (map[gnss.System][]Plan, error) {
	log.Printf("rinex: %v", &PlanError{Kind: kind, Label: label, Err: err})
	return map[gnss.System][]Plan{}, nil
}

func indexOfCode(codes []gnss.ObsCode, want gnss.ObsCode) int {
	for i, c := range codes {
		if c == want {
			return i
		}
	}
	return -1
}
