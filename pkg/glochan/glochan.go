// Package glochan reads the Bernese "SATELLIT.I14"-style satellite-info
// file's Part 2 ("ON-BOARD SENSORS") block, which ties a GLONASS SVN to its
// FDMA frequency channel over a validity window (spec.md §6).
package glochan

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const maxLines = 1000

const (
	line1Prefix = "SATELLITE-SPECIFIC INFO FOR GPS/GLONASS/GEO/LEO/SLR, BSW5.2"
	line2Prefix = "PART 2: ON-BOARD SENSORS"
	hln1Prefix  = "                                              START TIME           END TIME"
	hln2Prefix  = "PRN  TYPE  SENSOR NAME______SVN  NUMBER  YYYY MM DD HH MM SS  YYYY MM DD HH MM SS"
)

// timeLayout matches the file's "YYYY MM DD HH MM SS" fixed-width field.
const timeLayout = "2006 01 02 15 04 05"

// Entry is one Part-2 record for a GLONASS ("MW" sensor type) satellite.
type Entry struct {
	PRN   int
	SVN   int
	IFRQ  int
	Start time.Time
	End   time.Time // zero Time means open-ended (still in use)
}

func (e Entry) covers(at time.Time) bool {
	if at.Before(e.Start) {
		return false
	}
	return e.End.IsZero() || at.Before(e.End)
}

// Table is a fully-parsed Part-2 GLONASS SVN/frequency-channel table.
type Table struct {
	Entries []Entry
}

// NewTable reads and validates the file header, then parses every "MW"
// (GLONASS) record in Part 2.
func NewTable(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 512), 1<<20)

	if !sc.Scan() {
		return nil, fmt.Errorf("glochan: empty file")
	}
	if !strings.HasPrefix(sc.Text(), line1Prefix) {
		return nil, fmt.Errorf("glochan: unrecognized file, expected header %q", line1Prefix)
	}

	found := false
	for i := 0; i < maxLines && sc.Scan(); i++ {
		if strings.HasPrefix(sc.Text(), line2Prefix) {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("glochan: %q not found within %d lines", line2Prefix, maxLines)
	}

	// dashed separator, then two column-header lines.
	if !sc.Scan() {
		return nil, fmt.Errorf("glochan: truncated after PART 2 header")
	}
	if !sc.Scan() || !strings.HasPrefix(sc.Text(), hln1Prefix) {
		return nil, fmt.Errorf("glochan: unexpected column-header line 1")
	}
	if !sc.Scan() || !strings.HasPrefix(sc.Text(), hln2Prefix) {
		return nil, fmt.Errorf("glochan: unexpected column-header line 2")
	}
	// next line is blank, then records begin.
	if !sc.Scan() {
		return nil, fmt.Errorf("glochan: truncated before records")
	}

	tbl := &Table{}
	for sc.Scan() {
		line := sc.Text()
		if len(line) < 10 || strings.HasPrefix(line, "PART 3") {
			break
		}
		if len(line) < 7 || line[5:7] != "MW" {
			continue // non-GLONASS sensor record (GPS, SLR, ...), skip
		}
		entry, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("glochan: %w", err)
		}
		tbl.Entries = append(tbl.Entries, entry)
	}
	return tbl, nil
}

func parseRecord(line string) (Entry, error) {
	var e Entry
	if len(line) < 82 {
		return e, fmt.Errorf("record line too short: %q", line)
	}

	prn, err := strconv.Atoi(strings.TrimSpace(line[0:5]))
	if err != nil {
		return e, fmt.Errorf("parse PRN: %w", err)
	}
	e.PRN = prn

	svn, err := strconv.Atoi(strings.TrimSpace(line[28:33]))
	if err != nil {
		return e, fmt.Errorf("parse SVN: %w", err)
	}
	e.SVN = svn

	start, err := time.Parse(timeLayout, line[41:60])
	if err != nil {
		return e, fmt.Errorf("parse START TIME: %w", err)
	}
	e.Start = start

	if strings.TrimSpace(line[62:81]) != "" {
		end, err := time.Parse(timeLayout, line[62:81])
		if err != nil {
			return e, fmt.Errorf("parse END TIME: %w", err)
		}
		e.End = end
	}

	if len(line) >= 197 {
		if ifrq, err := strconv.Atoi(strings.TrimSpace(line[193:197])); err == nil {
			e.IFRQ = ifrq
		}
	}

	return e, nil
}

// Channel returns the frequency channel (IFRQ, -7..+13) and PRN recorded
// for the GLONASS satellite with the given SVN, valid at epoch at. ok is
// false if no covering record was found.
func (t *Table) Channel(svn int, at time.Time) (ifrqn, prn int, ok bool) {
	for _, e := range t.Entries {
		if e.SVN == svn && e.covers(at) {
			return e.IFRQ, e.PRN, true
		}
	}
	return 0, 0, false
}
