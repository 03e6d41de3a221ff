// Package rinex provides streaming decoders for RINEX Observation v3.x and
// RINEX Navigation v3.x files, the shared line-lexer they build on, and the
// observable-recipe resolver (C4) that turns a caller's wanted
// GnssObservable combinations into a column/coefficient plan against a
// parsed observation header.
package rinex

import (
	"errors"

	"github.com/whigg/gnssproc/pkg/gnss"
)

const (
	// epochTimeFormat is the time format for RINEX3 header timestamps.
	epochTimeFormat string = "2006  1  2 15  4  5.0000000"
)

// ErrNoHeader is returned when reading RINEX data that does not begin with a
// RINEX header.
var ErrNoHeader = errors.New("rinex: no header")

// sysPerAbbr maps the RINEX satellite-system character to a gnss.System; an
// alias kept local to this package to match the teacher's naming.
var sysPerAbbr = gnss.SysPerAbbr
