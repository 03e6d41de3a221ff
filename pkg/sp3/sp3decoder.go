package sp3

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/whigg/gnssproc/pkg/epochtime"
	"github.com/whigg/gnssproc/pkg/gnss"
)

// MaxHeaderLines bounds the satellite-id/accuracy block scan, mirroring the
// defensive loop bound in the format this reader is grounded on.
const MaxHeaderLines = 1000

// maxRecordChars is the longest line this decoder tolerates (spec.md §6:
// "must tolerate lines up to 128 chars").
const maxRecordChars = 128

// Decoder streams epochs from an SP3-c/d input. Construction reads and
// validates the header eagerly; NextEpoch pulls one epoch at a time.
type Decoder struct {
	Header Header

	sc      *bufio.Scanner
	lineNum int
	err     error

	epoch Epoch
	// pending holds an epoch header line already consumed while looking
	// for the end of the previous epoch's records.
	pending string
}

// NewDecoder creates a Decoder for r, reading and validating the SP3 header.
func NewDecoder(r io.Reader) (*Decoder, error) {
	dec := &Decoder{sc: bufio.NewScanner(r)}
	dec.sc.Buffer(make([]byte, 0, maxRecordChars), 1<<16)
	dec.Header, dec.err = dec.readHeader()
	return dec, dec.err
}

// Err returns the first non-EOF error encountered by the decoder.
func (dec *Decoder) Err() error {
	if errors.Is(dec.err, io.EOF) {
		return nil
	}
	return dec.err
}

func (dec *Decoder) readLine() (string, bool) {
	if !dec.sc.Scan() {
		return "", false
	}
	dec.lineNum++
	return dec.sc.Text(), true
}

func col(line string, start, length int) string {
	if start >= len(line) {
		return ""
	}
	end := start + length
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}

// readHeader parses the 22-line SP3-c/d header: the two `#`/`##` lines, the
// satellite-id/accuracy blocks, the `%c`/`%f`/`%i` lines, and trailing `/*`
// comments (spec.md §4.5).
func (dec *Decoder) readHeader() (Header, error) {
	var hdr Header

	line, ok := dec.readLine()
	if !ok {
		return hdr, fmt.Errorf("sp3: empty file, no header")
	}
	if len(line) < 3 || line[0] != '#' {
		return hdr, fmt.Errorf("sp3: line %d: expected '#' version line, got %q", dec.lineNum, line)
	}
	hdr.Version = line[1]
	if hdr.Version != 'c' && hdr.Version != 'd' {
		return hdr, fmt.Errorf("sp3: line %d: unsupported version %q, want 'c' or 'd'", dec.lineNum, string(hdr.Version))
	}
	hdr.PosOrVel = line[2]

	year, err := strconv.Atoi(col(line, 3, 4))
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse year: %w", dec.lineNum, err)
	}
	month, err := strconv.Atoi(col(line, 8, 2))
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse month: %w", dec.lineNum, err)
	}
	dom, err := strconv.Atoi(col(line, 11, 2))
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse day of month: %w", dec.lineNum, err)
	}
	hour, err := strconv.Atoi(col(line, 14, 2))
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse hour: %w", dec.lineNum, err)
	}
	minute, err := strconv.Atoi(col(line, 17, 2))
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse minute: %w", dec.lineNum, err)
	}
	sec, err := strconv.ParseFloat(col(line, 20, 11), 64)
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse seconds: %w", dec.lineNum, err)
	}
	hdr.NumEpochs, err = strconv.Atoi(col(line, 32, 7))
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse number of epochs: %w", dec.lineNum, err)
	}
	// The trailing descriptive fields (data used, coordinate system, orbit
	// type, agency) are nominally fixed-column but vary in practice by one
	// space across real SP3-c/d producers; split on whitespace instead of
	// trusting exact offsets, same as the numeric fields above do not need to.
	if rest := strings.Fields(col(line, 39, 200)); len(rest) >= 4 {
		hdr.DataUsed, hdr.CoordSys, hdr.OrbitType, hdr.Agency = rest[0], rest[1], rest[2], rest[3]
	}

	whole := int(sec)
	frac := sec - float64(whole)
	hdr.StartEpoch = time.Date(year, time.Month(month), dom, hour, minute, whole, int(frac*1e9), time.UTC)

	// Second header line: "##" + GPS week, SOW, interval, MJD, fractional day.
	line, ok = dec.readLine()
	if !ok || len(line) < 2 || line[0] != '#' || line[1] != '#' {
		return hdr, fmt.Errorf("sp3: line %d: expected '##' line", dec.lineNum)
	}
	hdr.GPSWeek, err = strconv.Atoi(col(line, 3, 4))
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse GPS week: %w", dec.lineNum, err)
	}
	hdr.SOW, err = strconv.ParseFloat(col(line, 8, 15), 64)
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse seconds-of-week: %w", dec.lineNum, err)
	}

	wantWeek, wantSOW := epochtime.FromTime(hdr.StartEpoch).GPSWeekSOW()
	if wantWeek != hdr.GPSWeek || math.Abs(wantSOW-hdr.SOW) > 1e-6 {
		return hdr, fmt.Errorf("sp3: line %d: GPS week/SOW (%d, %.6f) does not match start epoch %s (%d, %.6f)",
			dec.lineNum, hdr.GPSWeek, hdr.SOW, hdr.StartEpoch, wantWeek, wantSOW)
	}

	hdr.Interval, err = strconv.ParseFloat(col(line, 24, 14), 64)
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse epoch interval: %w", dec.lineNum, err)
	}
	hdr.MJD, err = strconv.Atoi(col(line, 39, 5))
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse MJD: %w", dec.lineNum, err)
	}
	hdr.FracDay, err = strconv.ParseFloat(col(line, 45, 15), 64)
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse fractional day: %w", dec.lineNum, err)
	}
	wantMJD := epochtime.FromTime(hdr.StartEpoch)
	if float64(hdr.MJD)+hdr.FracDay != float64(wantMJD.MJD)+wantMJD.Sec/86400.0 {
		// Tolerate float rounding in the fractional-day field; a coarse
		// day-level mismatch is still a hard header error.
		if hdr.MJD != wantMJD.MJD {
			return hdr, fmt.Errorf("sp3: line %d: MJD %d does not match start epoch's MJD %d", dec.lineNum, hdr.MJD, wantMJD.MJD)
		}
	}

	// Satellite-ID blocks: "+ " lines, first carrying the satellite count.
	line, ok = dec.readLine()
	if !ok || len(line) < 2 || line[0] != '+' || line[1] != ' ' {
		return hdr, fmt.Errorf("sp3: line %d: expected '+ ' satellite-id line", dec.lineNum)
	}
	numSats, err := strconv.Atoi(col(line, 3, 3))
	if err != nil {
		return hdr, fmt.Errorf("sp3: line %d: parse satellite count: %w", dec.lineNum, err)
	}
	hdr.Sats = make([]SatAccuracy, 0, numSats)
	for n := 0; n < MaxHeaderLines && len(line) >= 2 && line[0] == '+' && line[1] == ' '; n++ {
		for i := 0; i < 17 && len(hdr.Sats) < numSats; i++ {
			start := 9 + i*3
			tok := col(line, start, 3)
			if tok == "" || tok == "0" {
				continue
			}
			sys, serr := satSystem(tok[0])
			if serr != nil {
				return hdr, fmt.Errorf("sp3: line %d: %w", dec.lineNum, serr)
			}
			num, nerr := strconv.Atoi(tok[1:])
			if nerr != nil {
				return hdr, fmt.Errorf("sp3: line %d: parse satellite number %q: %w", dec.lineNum, tok, nerr)
			}
			hdr.Sats = append(hdr.Sats, SatAccuracy{Prn: gnss.PRN{Sys: sys, Num: int8(num)}})
		}
		if line, ok = dec.readLine(); !ok {
			return hdr, fmt.Errorf("sp3: unexpected EOF in satellite-id block")
		}
	}

	// Accuracy blocks: "++" lines, one exponent triplet per satellite slot.
	satIdx := 0
	for n := 0; n < MaxHeaderLines && len(line) >= 2 && line[0] == '+' && line[1] == '+'; n++ {
		for i := 0; i < 17 && satIdx < len(hdr.Sats); i++ {
			start := 9 + i*3
			tok := col(line, start, 3)
			if tok == "" {
				satIdx++
				continue
			}
			acc, aerr := strconv.Atoi(tok)
			if aerr == nil {
				hdr.Sats[satIdx].Accuracy = acc
			}
			satIdx++
		}
		if line, ok = dec.readLine(); !ok {
			return hdr, fmt.Errorf("sp3: unexpected EOF in accuracy block")
		}
	}

	// Two "%c" lines; the first carries the time system.
	if len(line) < 2 || line[0] != '%' || line[1] != 'c' {
		return hdr, fmt.Errorf("sp3: line %d: expected '%%c' line", dec.lineNum)
	}
	hdr.TimeSystem = col(line, 9, 3)
	if line, ok = dec.readLine(); !ok || len(line) < 2 || line[0] != '%' || line[1] != 'c' {
		return hdr, fmt.Errorf("sp3: line %d: expected second '%%c' line", dec.lineNum)
	}

	// Two "%f" lines.
	for i := 0; i < 2; i++ {
		if line, ok = dec.readLine(); !ok || len(line) < 2 || line[0] != '%' || line[1] != 'f' {
			return hdr, fmt.Errorf("sp3: line %d: expected '%%f' line", dec.lineNum)
		}
	}

	// Two "%i" lines.
	for i := 0; i < 2; i++ {
		if line, ok = dec.readLine(); !ok || len(line) < 2 || line[0] != '%' || line[1] != 'i' {
			return hdr, fmt.Errorf("sp3: line %d: expected '%%i' line", dec.lineNum)
		}
	}

	// Trailing "/*" comment lines.
	for {
		line, ok = dec.readLine()
		if !ok {
			return hdr, fmt.Errorf("sp3: unexpected EOF after '%%i' lines")
		}
		if len(line) < 2 || line[0] != '/' || line[1] != '*' {
			dec.pending = line
			break
		}
		hdr.Comments = append(hdr.Comments, strings.TrimSpace(line[2:]))
	}

	return hdr, nil
}

// NextEpoch reads the next `*` epoch header and its P/V records, up to the
// following epoch header or `EOF` line. It returns false at end of stream or
// on a fatal parse error; call Err to distinguish the two.
func (dec *Decoder) NextEpoch() bool {
	line := dec.pending
	dec.pending = ""
	if line == "" {
		var ok bool
		if line, ok = dec.readLine(); !ok {
			if err := dec.sc.Err(); err != nil {
				dec.err = errors.Join(dec.err, fmt.Errorf("sp3: read epoch: %w", err))
			}
			return false
		}
	}

	if strings.HasPrefix(line, "EOF") {
		return false
	}
	if len(line) < 2 || line[0] != '*' || line[1] != ' ' {
		dec.err = errors.Join(dec.err, fmt.Errorf("sp3: line %d: expected epoch header, got %q", dec.lineNum, line))
		return false
	}

	t, perr := parseEpochHeader(line)
	if perr != nil {
		dec.err = errors.Join(dec.err, fmt.Errorf("sp3: line %d: %w", dec.lineNum, perr))
		return false
	}
	dec.epoch = Epoch{Time: t}

	for {
		next, ok := dec.readLine()
		if !ok {
			break
		}
		switch {
		case strings.HasPrefix(next, "*"):
			dec.pending = next
			return true
		case strings.HasPrefix(next, "EOF"):
			return true
		case strings.HasPrefix(next, "P"):
			rec, rerr := parsePositionLine(next)
			if rerr != nil {
				log.Printf("sp3: line %d: %v", dec.lineNum, rerr)
				continue
			}
			dec.epoch.Records = append(dec.epoch.Records, rec)
		case strings.HasPrefix(next, "V"):
			applyVelocityLine(&dec.epoch, next)
		case strings.HasPrefix(next, "EP"), strings.HasPrefix(next, "EV"):
			// Correlation lines: parsed far enough to be recognized and
			// skipped per spec.md §4.5 ("must be parsed and may be
			// discarded"); this reader has no correlation consumer yet.
		default:
			log.Printf("sp3: line %d: unrecognized record %q", dec.lineNum, next)
		}
	}

	if err := dec.sc.Err(); err != nil {
		dec.err = errors.Join(dec.err, fmt.Errorf("sp3: read records: %w", err))
	}
	return true
}

// Epoch returns the most recently decoded epoch.
func (dec *Decoder) Epoch() Epoch { return dec.epoch }

func parseEpochHeader(line string) (time.Time, error) {
	year, err := strconv.Atoi(col(line, 3, 4))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse year: %w", err)
	}
	month, err := strconv.Atoi(col(line, 8, 2))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month: %w", err)
	}
	dom, err := strconv.Atoi(col(line, 11, 2))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day of month: %w", err)
	}
	hour, err := strconv.Atoi(col(line, 14, 2))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse hour: %w", err)
	}
	minute, err := strconv.Atoi(col(line, 17, 2))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse minute: %w", err)
	}
	sec, err := strconv.ParseFloat(col(line, 20, 11), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse seconds: %w", err)
	}
	whole := int(sec)
	frac := sec - float64(whole)
	return time.Date(year, time.Month(month), dom, hour, minute, whole, int(frac*1e9), time.UTC), nil
}

// parsePositionLine decodes a "PXX ..." line: constellation+PRN at cols
// 1-3, four F14.6 fields (x, y, z in km, clock in µs) at cols 4, 18, 32, 46,
// and event flags at cols 74, 75, 78, 79 (spec.md §4.5, §6).
func parsePositionLine(line string) (Record, error) {
	var rec Record
	if len(line) < 4 {
		return rec, fmt.Errorf("short position line %q", line)
	}
	sys, err := satSystem(line[1])
	if err != nil {
		return rec, err
	}
	num, err := strconv.Atoi(strings.TrimSpace(line[2:4]))
	if err != nil {
		return rec, fmt.Errorf("parse PRN in %q: %w", line, err)
	}
	rec.Prn = gnss.PRN{Sys: sys, Num: int8(num)}

	var state [4]float64
	for i := 0; i < 4; i++ {
		start := 4 + i*14
		tok := col(line, start, 14)
		if tok == "" {
			continue
		}
		v, verr := strconv.ParseFloat(tok, 64)
		if verr != nil {
			return rec, fmt.Errorf("parse field %d in %q: %w", i, line, verr)
		}
		state[i] = v
	}

	if state[0] == missingPos && state[1] == missingPos && state[2] == missingPos {
		rec.Flag |= FlagMissingPosition
	}
	rec.Position = [3]float64{state[0] * kmToM, state[1] * kmToM, state[2] * kmToM}

	if state[3] >= missingClock {
		rec.Flag |= FlagMissingClock
	}
	rec.ClockBias = state[3] * 1e-6 // microseconds -> seconds

	if len(line) > 74 && line[74] == 'E' {
		rec.Flag |= FlagClockEvent
	}
	if len(line) > 75 && line[75] == 'P' {
		rec.Flag |= FlagClockPrediction
	}
	if len(line) > 78 && line[78] == 'M' {
		rec.Flag |= FlagManeuver
	}
	if len(line) > 79 && line[79] == 'E' {
		rec.Flag |= FlagOrbitPrediction
	}

	return rec, nil
}

// applyVelocityLine decodes a "VXX ..." line sharing the PXX line's column
// layout (velocity in dm/s, clock rate in 1e-4 µs/s) and attaches it to the
// matching record already appended to epoch.Records.
func applyVelocityLine(epoch *Epoch, line string) {
	if len(line) < 4 {
		log.Printf("sp3: short velocity line %q", line)
		return
	}
	sys, err := satSystem(line[1])
	if err != nil {
		log.Printf("sp3: velocity line: %v", err)
		return
	}
	num, err := strconv.Atoi(strings.TrimSpace(line[2:4]))
	if err != nil {
		log.Printf("sp3: velocity line: parse PRN: %v", err)
		return
	}
	prn := gnss.PRN{Sys: sys, Num: int8(num)}

	var idx = -1
	for i := range epoch.Records {
		if epoch.Records[i].Prn == prn {
			idx = i
			break
		}
	}
	if idx < 0 {
		log.Printf("sp3: velocity line for %s has no preceding position record", prn)
		return
	}

	var state [4]float64
	for i := 0; i < 4; i++ {
		start := 4 + i*14
		tok := col(line, start, 14)
		if tok == "" {
			continue
		}
		v, verr := strconv.ParseFloat(tok, 64)
		if verr != nil {
			log.Printf("sp3: velocity line: parse field %d: %v", i, verr)
			return
		}
		state[i] = v
	}

	// dm/s -> m/s; clock rate units of 1e-4 microseconds/second -> seconds/second.
	epoch.Records[idx].Velocity = [3]float64{state[0] * 0.1, state[1] * 0.1, state[2] * 0.1}
	epoch.Records[idx].ClockRate = state[3] * 1e-10
	epoch.Records[idx].HasVelocity = true
}
