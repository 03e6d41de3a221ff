package rinex

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/whigg/gnssproc/pkg/gnss"
)

// NavErrorKind discriminates the ways reading one navigation record can fail
// (spec.md §4.3, §7 "stream-time recoverables").
type NavErrorKind int

// Navigation stream error kinds.
const (
	BadSatsysByte NavErrorKind = iota + 1
	BadTimestamp
	NumberParse
	UnexpectedEOF
)

func (k NavErrorKind) String() string {
	switch k {
	case BadSatsysByte:
		return "BadSatsysByte"
	case BadTimestamp:
		return "BadTimestamp"
	case NumberParse:
		return "NumberParse"
	case UnexpectedEOF:
		return "UnexpectedEOF"
	default:
		return "unknown"
	}
}

// NavError reports why one navigation record could not be read. The stream
// is not corrupted by this: ReadNext can be called again to continue past
// the discarded record.
type NavError struct {
	Kind NavErrorKind
	Line int
	Err  error
}

func (e *NavError) Error() string {
	return fmt.Sprintf("read nav record at line %d: %s: %v", e.Line, e.Kind, e.Err)
}

func (e *NavError) Unwrap() error { return e.Err }

// linesPerFrame is the fixed record length (in 19-char data lines plus the
// leading PRN/epoch/clock line) for each constellation family.
func linesPerFrame(sys gnss.System) int {
	switch sys {
	case gnss.SysGLO, gnss.SysSBAS:
		return 4
	default:
		return 8
	}
}

// NavDecoder reads and decodes header and data records from a RINEX
// Navigation v3.x input stream (C9). It caches every body line it has seen
// so that rewind and rewind_to can replay the stream without requiring a
// seekable underlying reader; the "offset" tokens this decoder hands out
// are therefore indices into that cache, not true file byte offsets.
type NavDecoder struct {
	// Header is valid after NewNavDecoder returns successfully.
	Header NavHeader

	sc      *bufio.Scanner
	lineNum int
	err     error

	lines  []string // cache of every body line read so far
	cursor int       // index into lines of the next unread line
}

// NewNavDecoder creates a new decoder for RINEX Navigation data, reading the
// header immediately.
func NewNavDecoder(r io.Reader) (*NavDecoder, error) {
	dec := &NavDecoder{sc: bufio.NewScanner(r)}
	dec.sc.Buffer(make([]byte, 0, 4096), 1<<20)
	dec.Header, dec.err = dec.readHeader()
	return dec, dec.err
}

// Err returns the first non-EOF error encountered by the decoder.
func (dec *NavDecoder) Err() error {
	if dec.err == io.EOF {
		return nil
	}
	return dec.err
}

func (dec *NavDecoder) readHeader() (hdr NavHeader, err error) {
	const maxLines = 300

readln:
	for dec.scanLine() {
		line := dec.sc.Text()
		dec.lineNum++

		if dec.lineNum == 1 && !strings.Contains(line, "RINEX VERSION / TYPE") {
			return hdr, ErrNoHeader
		}
		if dec.lineNum > maxLines {
			return hdr, fmt.Errorf("reading header failed: line %d reached without finding end of header", maxLines)
		}
		if len(line) < 60 {
			continue
		}

		val := line[:60]
		key := strings.TrimSpace(line[60:])
		hdr.labels = append(hdr.labels, key)

		switch key {
		case "RINEX VERSION / TYPE":
			f64, perr := strconv.ParseFloat(strings.TrimSpace(val[:20]), 32)
			if perr != nil {
				return hdr, fmt.Errorf("parse RINEX VERSION: %w", perr)
			}
			hdr.RINEXVersion = float32(f64)
			hdr.RINEXType = strings.TrimSpace(val[20:21])
			s := strings.TrimSpace(val[40:41])
			sys, ok := sysPerAbbr[s]
			if !ok {
				return hdr, fmt.Errorf("read header: invalid satellite system: %q", s)
			}
			hdr.SatSystem = sys
		case "PGM / RUN BY / DATE":
			hdr.Pgm = strings.TrimSpace(val[:20])
			hdr.RunBy = strings.TrimSpace(val[20:40])
			hdr.Date = strings.TrimSpace(val[40:])
			if _, perr := parseHeaderDate(hdr.Date); perr != nil {
				log.Printf("rinex: header date %q not in a recognized format, kept as raw string: %v", hdr.Date, perr)
			}
		case "COMMENT":
			hdr.Comments = append(hdr.Comments, strings.TrimSpace(val))
		case "IONOSPHERIC CORR", "TIME SYSTEM CORR", "LEAP SECONDS":
			// not needed to stream ephemerides
		case "END OF HEADER":
			break readln
		default:
			log.Printf("rinex: nav header field %q not handled", key)
		}
	}

	if err := dec.sc.Err(); err != nil {
		return hdr, err
	}
	return hdr, nil
}

// scanLine advances the raw scanner by one line. Used only by readHeader,
// before the body line cache exists.
func (dec *NavDecoder) scanLine() bool { return dec.sc.Scan() }

// readLine returns the next body line, either replayed from the cache (if
// the cursor is behind the cache's end, e.g. after a rewind) or freshly
// scanned. It returns "", false at EOF.
func (dec *NavDecoder) readLine() (string, bool) {
	if dec.cursor < len(dec.lines) {
		line := dec.lines[dec.cursor]
		dec.cursor++
		return line, true
	}
	if !dec.sc.Scan() {
		return "", false
	}
	dec.lineNum++
	line := dec.sc.Text()
	dec.lines = append(dec.lines, line)
	dec.cursor++
	return line, true
}

// Offset returns a token identifying the decoder's current read position;
// pass it to RewindTo to return here later.
func (dec *NavDecoder) Offset() int { return dec.cursor }

// Rewind resets the cursor to the start of the body, just after the header.
func (dec *NavDecoder) Rewind() { dec.cursor = 0 }

// RewindTo resets the cursor to a previously returned Offset.
func (dec *NavDecoder) RewindTo(offset int) { dec.cursor = offset }

// PeekSatsys reports the constellation of the next record without consuming
// it, or false at EOF.
func (dec *NavDecoder) PeekSatsys() (gnss.System, bool) {
	saved := dec.cursor
	line, ok := dec.readLine()
	dec.cursor = saved
	if !ok || len(line) < 1 {
		return 0, false
	}
	sys, ok := sysPerAbbr[line[:1]]
	return sys, ok
}

// SkipNext consumes and discards one record without parsing it.
func (dec *NavDecoder) SkipNext() error {
	line, ok := dec.readLine()
	if !ok {
		return io.EOF
	}
	if len(line) < 1 {
		return &NavError{Kind: BadSatsysByte, Line: dec.lineNum, Err: fmt.Errorf("empty record line")}
	}
	sys, ok := sysPerAbbr[line[:1]]
	if !ok {
		return &NavError{Kind: BadSatsysByte, Line: dec.lineNum, Err: fmt.Errorf("unknown satellite system byte %q", line[:1])}
	}
	n := linesPerFrame(sys) - 1
	for i := 0; i < n; i++ {
		if _, ok := dec.readLine(); !ok {
			return &NavError{Kind: UnexpectedEOF, Line: dec.lineNum, Err: fmt.Errorf("short record")}
		}
	}
	return nil
}

// ReadNext reads and parses the next navigation record. It returns io.EOF at
// the end of the stream (a distinct, non-error outcome per spec.md §7); any
// other error is a *NavError and leaves the stream positioned to retry at
// the next record.
func (dec *NavDecoder) ReadNext() (Frame, error) {
	first, ok := dec.readLine()
	if !ok {
		return nil, io.EOF
	}
	if len(first) < 1 {
		return nil, &NavError{Kind: BadSatsysByte, Line: dec.lineNum, Err: fmt.Errorf("empty record line")}
	}

	sys, ok := sysPerAbbr[first[:1]]
	if !ok {
		return nil, &NavError{Kind: BadSatsysByte, Line: dec.lineNum, Err: fmt.Errorf("unknown satellite system byte %q", first[:1])}
	}

	n := linesPerFrame(sys)
	lines := make([]string, 1, n)
	lines[0] = first
	for i := 1; i < n; i++ {
		line, ok := dec.readLine()
		if !ok {
			return nil, &NavError{Kind: UnexpectedEOF, Line: dec.lineNum, Err: fmt.Errorf("record for %v truncated after %d of %d lines", sys, i, n)}
		}
		lines = append(lines, line)
	}

	var frame Frame
	var err error
	switch sys {
	case gnss.SysGLO:
		frame, err = parseGlonassFrame(lines)
	case gnss.SysSBAS:
		frame, err = parseOtherFrame(sys, lines)
	default:
		frame, err = parseKeplerianFrame(sys, lines)
	}
	if err != nil {
		return nil, &NavError{Kind: NumberParse, Line: dec.lineNum, Err: err}
	}
	return frame, nil
}

// FindNext scans forward to the first record matching (sys, prn), returning
// the frame and the offset token of the position just before that record
// started (so the caller can RewindTo it later). It returns io.EOF if no
// match is found before the stream ends.
func (dec *NavDecoder) FindNext(sys gnss.System, prn gnss.PRN) (Frame, int, error) {
	for {
		before := dec.Offset()
		frame, err := dec.ReadNext()
		if err == io.EOF {
			return nil, before, io.EOF
		}
		if err != nil {
			var nerr *NavError
			if ok := asNavError(err, &nerr); ok && nerr.Kind == UnexpectedEOF {
				return nil, before, io.EOF
			}
			continue // stream-time recoverable: skip and keep scanning
		}
		if frame.System() == sys && frame.PRN() == prn {
			return frame, before, nil
		}
	}
}

func asNavError(err error, target **NavError) bool {
	ne, ok := err.(*NavError)
	if ok {
		*target = ne
	}
	return ok
}

// FindNextValid scans forward like FindNext, additionally requiring the
// frame to cover epoch per its constellation's validity rule (spec.md
// §4.3). If nothing is found the cursor is restored to where the search
// began.
func (dec *NavDecoder) FindNextValid(epoch time.Time, sys gnss.System, prn gnss.PRN) (Frame, error) {
	start := dec.Offset()
	for {
		frame, _, err := dec.FindNext(sys, prn)
		if err == io.EOF {
			dec.RewindTo(start)
			return nil, io.EOF
		}
		if validAt(frame, epoch) {
			return frame, nil
		}
	}
}

// validAt dispatches ValidAt by the frame's concrete type.
func validAt(f Frame, t time.Time) bool {
	switch frame := f.(type) {
	case *KeplerianFrame:
		return frame.ValidAt(t)
	case *GlonassFrame:
		return frame.ValidAt(t)
	default:
		return false
	}
}
