package gnss

import (
	"fmt"
	"strings"
)

// AntennaCode is the fixed 15+1+4+20 character receiver-antenna designator
// used in RINEX's "ANT # / TYPE" header line and ANTEX's "TYPE / SERIAL NO"
// record: 15 chars model, 1 space, 4 chars radome, 20 chars serial.
// A blank radome is rewritten to "NONE" on construction.
type AntennaCode struct {
	Model  string
	Radome string
	Serial string
}

// NewAntennaCode builds an AntennaCode from its model, radome and serial
// parts, trimming surrounding space and defaulting a blank radome to "NONE".
func NewAntennaCode(model, radome, serial string) AntennaCode {
	model = strings.TrimSpace(model)
	radome = strings.TrimSpace(radome)
	if radome == "" {
		radome = "NONE"
	}
	return AntennaCode{Model: model, Radome: radome, Serial: strings.TrimSpace(serial)}
}

// ParseAntennaCode parses the fixed 15/1/4/20-char RINEX antenna field
// ("ANT # / TYPE" cols 0-39 hold model+radome, serial comes from "ANT # /
// TYPE" or "REC # / TYPE / VERS" depending on the caller).
func ParseAntennaCode(modelRadome, serial string) (AntennaCode, error) {
	if len(modelRadome) < 16 {
		return AntennaCode{}, fmt.Errorf("antenna model/radome field too short: %q", modelRadome)
	}
	model := modelRadome[:15]
	radome := modelRadome[16:]
	if len(radome) > 4 {
		radome = radome[:4]
	}
	return NewAntennaCode(model, radome, serial), nil
}

// String renders the fixed-width 15/1/4 model+radome field, space padded.
func (a AntennaCode) String() string {
	return fmt.Sprintf("%-15s %-4s", a.Model, a.Radome)
}

// EqualModel reports whether a and b have the same model and radome,
// ignoring serial.
func (a AntennaCode) EqualModel(b AntennaCode) bool {
	return a.Model == b.Model && a.Radome == b.Radome
}

// EqualExact reports whether a and b are identical antennas: same model,
// radome and serial. Equality is undecidable (and so false) if either side
// has a blank serial, since then a match cannot be distinguished from a
// model-only match.
func (a AntennaCode) EqualExact(b AntennaCode) bool {
	if a.Serial == "" || b.Serial == "" {
		return false
	}
	return a.EqualModel(b) && a.Serial == b.Serial
}
