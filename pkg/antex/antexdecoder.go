package antex

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/whigg/gnssproc/pkg/gnss"
)

// MaxHeaderLines bounds the header-scan loop, same convention as the
// RINEX and SP3 readers in this module.
const MaxHeaderLines = 1000

// maxAntennaLines bounds the per-block body scan.
const maxAntennaLines = 5000

// Decoder holds a fully-parsed ANTEX file. Unlike the RINEX/SP3 decoders,
// ANTEX lookups are inherently random-access (match by antenna code, or by
// PRN and epoch) rather than a forward-only epoch stream, so Decoder loads
// every antenna block eagerly at construction instead of exposing a
// NextX() pull API.
type Decoder struct {
	Header  Header
	Records []Record
}

// NewDecoder reads and validates the header, then decodes every antenna
// block in the file.
func NewDecoder(r io.Reader) (*Decoder, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256), 1<<20)
	dec := &Decoder{}

	lineNum := 0
	readLine := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		lineNum++
		return sc.Text(), true
	}

	line, ok := readLine()
	if !ok {
		return nil, fmt.Errorf("antex: empty file")
	}
	if len(line) < 61 {
		return nil, fmt.Errorf("antex: line 1 too short for ANTEX VERSION / SYST")
	}
	if key := strings.TrimSpace(line[60:]); key != "ANTEX VERSION / SYST" {
		return nil, fmt.Errorf("antex: line 1 is %q, want ANTEX VERSION / SYST", key)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(line[:8]), 32)
	if err != nil {
		return nil, fmt.Errorf("antex: parse version: %w", err)
	}
	dec.Header.Version = float32(v)
	if sysByte := strings.TrimSpace(line[40:41]); sysByte != "" && sysByte != "M" {
		sys, ok := gnss.SysPerAbbr[sysByte]
		if !ok {
			return nil, fmt.Errorf("antex: unknown satellite system byte %q", sysByte)
		}
		dec.Header.SatSystem = sys
	}

	line, ok = readLine()
	if !ok || len(line) < 1 {
		return nil, fmt.Errorf("antex: missing PCV TYPE / REFANT line")
	}
	pcvType := line[0]
	if pcvType != 'A' && pcvType != 'R' {
		return nil, fmt.Errorf("antex: unrecognized PCV type %q", pcvType)
	}
	if pcvType != 'A' {
		return nil, fmt.Errorf("antex: relative-PCV files are not supported, only absolute (A)")
	}
	dec.Header.PCVType = pcvType

	for {
		line, ok = readLine()
		if !ok {
			return nil, fmt.Errorf("antex: END OF HEADER not found within %d lines", MaxHeaderLines)
		}
		if lineNum > MaxHeaderLines {
			return nil, fmt.Errorf("antex: header exceeds %d lines", MaxHeaderLines)
		}
		if len(line) >= 61 && strings.TrimSpace(line[60:]) == "END OF HEADER" {
			break
		}
	}

	for {
		line, ok = readLine()
		if !ok {
			break
		}
		if len(line) < 61 || strings.TrimSpace(line[60:]) != "START OF ANTENNA" {
			continue
		}
		rec, err := readAntennaBlock(readLine)
		if err != nil {
			return nil, err
		}
		dec.Records = append(dec.Records, rec)
	}

	return dec, nil
}

func readAntennaBlock(readLine func() (string, bool)) (Record, error) {
	var rec Record

	line, ok := readLine()
	if !ok || len(line) < 61 || strings.TrimSpace(line[60:]) != "TYPE / SERIAL NO" {
		return rec, fmt.Errorf("antex: expected TYPE / SERIAL NO after START OF ANTENNA")
	}
	if len(line) < 46 {
		// Pad so fixed-column slicing below never panics on a short line.
		line += strings.Repeat(" ", 46-len(line))
	}
	// A satellite-antenna line carries a valid satellite-system letter at
	// col 21 followed by a PRN number at cols 22-26; a receiver-antenna
	// line's serial field occupies the same columns but does not (in
	// general) parse that way, so this checks both rather than only
	// "column 21 is non-blank" (which a numeric receiver serial can
	// satisfy by coincidence).
	satSysByte := strings.TrimSpace(line[20:21])
	sys, sysOK := gnss.SysPerAbbr[satSysByte]
	num, numErr := strconv.Atoi(strings.TrimSpace(line[21:26]))

	if sysOK && numErr == nil {
		rec.IsSatellite = true
		prn := gnss.PRN{Sys: sys, Num: int8(num)}
		if svnByte := strings.TrimSpace(line[40:41]); svnByte == satSysByte && svnByte != "S" && svnByte != "C" {
			if svn, err := strconv.Atoi(strings.TrimSpace(line[41:46])); err == nil {
				prn.SVN = int16(svn)
			}
		}
		rec.Prn = prn
	} else {
		ant, err := gnss.ParseAntennaCode(line[:20], line[20:40])
		if err != nil {
			return rec, fmt.Errorf("antex: TYPE / SERIAL NO: %w", err)
		}
		rec.Antenna = ant
	}

	for i := 0; ; i++ {
		if i > maxAntennaLines {
			return rec, fmt.Errorf("antex: END OF ANTENNA not found within %d lines", maxAntennaLines)
		}
		line, ok = readLine()
		if !ok {
			return rec, fmt.Errorf("antex: END OF ANTENNA not found")
		}
		if len(line) < 61 {
			continue
		}
		val, key := line[:60], strings.TrimSpace(line[60:])
		switch key {
		case "VALID FROM":
			t, err := parseEpoch(val)
			if err != nil {
				return rec, fmt.Errorf("antex: VALID FROM: %w", err)
			}
			rec.ValidFrom = t
		case "VALID UNTIL":
			t, err := parseEpoch(val)
			if err != nil {
				return rec, fmt.Errorf("antex: VALID UNTIL: %w", err)
			}
			rec.ValidUntil = t
		case "# OF FREQUENCIES":
			n, err := strconv.Atoi(strings.TrimSpace(val[:6]))
			if err != nil {
				return rec, fmt.Errorf("antex: # OF FREQUENCIES: %w", err)
			}
			pcos, err := readFrequencies(readLine, n)
			if err != nil {
				return rec, err
			}
			rec.PCOs = pcos
		case "END OF ANTENNA":
			if rec.IsSatellite && rec.ValidFrom.IsZero() {
				return rec, fmt.Errorf("antex: satellite antenna record has no VALID FROM")
			}
			return rec, nil
		}
	}
}

func readFrequencies(readLine func() (string, bool), n int) ([]PCO, error) {
	pcos := make([]PCO, 0, n)
	for i := 0; i < n; i++ {
		var line string
		var ok bool
		for {
			line, ok = readLine()
			if !ok {
				return nil, fmt.Errorf("antex: START OF FREQUENCY not found")
			}
			if len(line) >= 61 && strings.TrimSpace(line[60:]) == "START OF FREQUENCY" {
				break
			}
		}
		if len(line) < 6 {
			return nil, fmt.Errorf("antex: malformed START OF FREQUENCY line")
		}
		sysByte := string(line[3])
		sys, ok := gnss.SysPerAbbr[sysByte]
		if !ok {
			return nil, fmt.Errorf("antex: unknown frequency system byte %q", sysByte)
		}
		band, err := strconv.Atoi(strings.TrimSpace(line[4:6]))
		if err != nil {
			return nil, fmt.Errorf("antex: parse frequency band: %w", err)
		}

		line, ok = readLine()
		if !ok || len(line) < 61 || strings.TrimSpace(line[60:]) != "NORTH / EAST / UP" {
			return nil, fmt.Errorf("antex: expected NORTH / EAST / UP after START OF FREQUENCY")
		}
		north, err := strconv.ParseFloat(strings.TrimSpace(line[0:10]), 64)
		if err != nil {
			return nil, fmt.Errorf("antex: parse NORTH: %w", err)
		}
		east, err := strconv.ParseFloat(strings.TrimSpace(line[10:20]), 64)
		if err != nil {
			return nil, fmt.Errorf("antex: parse EAST: %w", err)
		}
		up, err := strconv.ParseFloat(strings.TrimSpace(line[20:30]), 64)
		if err != nil {
			return nil, fmt.Errorf("antex: parse UP: %w", err)
		}
		pcos = append(pcos, PCO{Sys: sys, Band: band, North: north, East: east, Up: up})

		for {
			line, ok = readLine()
			if !ok {
				return nil, fmt.Errorf("antex: END OF FREQUENCY not found")
			}
			if len(line) < 61 {
				continue
			}
			if strings.TrimSpace(line[60:]) == "END OF FREQUENCY" {
				break
			}
			// NOAZI/non-azimuth-dependent RMS lines and "START OF FREQ
			// RMS"..."END OF FREQ RMS" blocks are skipped: this reader
			// exposes only the mean PCO, per spec.md §4.6.
		}
	}
	return pcos, nil
}

func parseEpoch(val string) (time.Time, error) {
	if len(val) < 43 {
		return time.Time{}, fmt.Errorf("field too short: %q", val)
	}
	t, err := time.Parse(validFromUntilFormat, strings.TrimSpace(val[:43]))
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
