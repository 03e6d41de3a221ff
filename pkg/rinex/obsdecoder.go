package rinex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/whigg/gnssproc/pkg/gnss"
)

// MaxSatsPerEpoch bounds the pre-allocated per-epoch satellite buffer (spec.md
// §4.2: the design assumes no more than this many satellites tracked at once).
const MaxSatsPerEpoch = 80

// ResolvedSat is one satellite's recipe-evaluated observable vector for one
// epoch: Values[i] corresponds to the i-th surviving GnssObservable recipe
// for this satellite's constellation, in the order ResolvePlan returned.
type ResolvedSat struct {
	Prn    gnss.PRN
	Values []float64
}

// ObsDecoder reads and decodes header and data records from a RINEX
// Observation v3.x input stream, applying a caller-supplied recipe plan
// (see ResolvePlan) to emit synchronized observable vectors.
type ObsDecoder struct {
	// Header is valid after NewObsDecoder returns successfully.
	Header ObsHeader

	sc      *bufio.Scanner
	lineNum int
	err     error

	plans map[gnss.System][]Plan

	buf            [MaxSatsPerEpoch]ResolvedSat
	nSat           int
	epochTime      time.Time
	epochFlag      EpochFlag
	rcvClockOffset float64
	clockOffsetSet bool
}

// NewObsDecoder creates a new decoder for RINEX Observation data, reading
// the header immediately.
func NewObsDecoder(r io.Reader) (*ObsDecoder, error) {
	dec := &ObsDecoder{sc: bufio.NewScanner(r)}
	dec.sc.Buffer(make([]byte, 0, 4096), 1<<20)
	dec.Header, dec.err = dec.readHeader()
	return dec, dec.err
}

// SetPlan installs the resolved recipe plan (see ResolvePlan) that NextEpoch
// applies to every subsequent satellite record.
func (dec *ObsDecoder) SetPlan(plans map[gnss.System][]Plan) {
	dec.plans = plans
}

// Err returns the first non-EOF error encountered by the decoder.
func (dec *ObsDecoder) Err() error {
	if errors.Is(dec.err, io.EOF) {
		return nil
	}
	return dec.err
}

func (dec *ObsDecoder) setErr(err error) {
	dec.err = errors.Join(dec.err, err)
}

// readLine reads the next line into the buffer. It returns false if an
// error occurs or EOF was reached.
func (dec *ObsDecoder) readLine() bool {
	if !dec.sc.Scan() {
		return false
	}
	dec.lineNum++
	return true
}

func (dec *ObsDecoder) line() string { return dec.sc.Text() }

// readHeader reads a RINEX Observation header.
func (dec *ObsDecoder) readHeader() (hdr ObsHeader, err error) {
	hdr.ObsTypes = map[gnss.System][]gnss.ObsCode{}
	var rememberSys gnss.System
	var antSerial, antModelRadome string
	const maxLines = 900

readln:
	for dec.readLine() {
		line := dec.line()
		if dec.lineNum == 1 && !strings.Contains(line, "RINEX VERS") {
			return hdr, ErrNoHeader
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
			sys, ok := sysPerAbbr[strings.TrimSpace(val[40:41])]
			if !ok {
				return hdr, fmt.Errorf("read header: invalid satellite system in line %d: %s", dec.lineNum, line)
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
		case "MARKER NAME":
			hdr.MarkerName = strings.TrimSpace(val)
		case "MARKER NUMBER":
			hdr.MarkerNumber = strings.TrimSpace(val[:20])
		case "MARKER TYPE":
			hdr.MarkerType = strings.TrimSpace(val[:20])
		case "OBSERVER / AGENCY":
			hdr.Observer = strings.TrimSpace(val[:20])
			hdr.Agency = strings.TrimSpace(val[20:])
		case "REC # / TYPE / VERS":
			hdr.ReceiverNumber = strings.TrimSpace(val[:20])
			hdr.ReceiverType = strings.TrimSpace(val[20:40])
			hdr.ReceiverVersion = strings.TrimSpace(val[40:])
		case "ANT # / TYPE":
			antSerial = val[:20]
			antModelRadome = val[20:40]
		case "APPROX POSITION XYZ":
			pos := strings.Fields(val)
			if len(pos) != 3 {
				return hdr, fmt.Errorf("parse approx. position from line: %s", line)
			}
			hdr.Position.X, _ = strconv.ParseFloat(pos[0], 64)
			hdr.Position.Y, _ = strconv.ParseFloat(pos[1], 64)
			hdr.Position.Z, _ = strconv.ParseFloat(pos[2], 64)
		case "ANTENNA: DELTA H/E/N":
			ecc := strings.Fields(val)
			if len(ecc) != 3 {
				return hdr, fmt.Errorf("parse antenna deltas from line: %s", line)
			}
			hdr.AntennaDelta.Up, _ = strconv.ParseFloat(ecc[0], 64)
			hdr.AntennaDelta.E, _ = strconv.ParseFloat(ecc[1], 64)
			hdr.AntennaDelta.N, _ = strconv.ParseFloat(ecc[2], 64)
		case "SYS / # / OBS TYPES":
			var sys gnss.System
			if val[:1] == " " {
				sys = rememberSys
			} else {
				ok := false
				if sys, ok = sysPerAbbr[val[:1]]; !ok {
					return hdr, fmt.Errorf("read header: invalid satellite system: %q: line %d", val[:1], dec.lineNum)
				}
				rememberSys = sys
				nTypes, perr := strconv.Atoi(strings.TrimSpace(val[3:6]))
				if perr != nil {
					return hdr, fmt.Errorf("parse %q: %w", key, perr)
				}
				hdr.ObsTypes[sys] = make([]gnss.ObsCode, 0, nTypes)
			}
			codes := convStringsToObscodes(strings.Fields(val[7:]))
			hdr.ObsTypes[sys] = append(hdr.ObsTypes[sys], codes...)
		case "SIGNAL STRENGTH UNIT":
			hdr.SignalStrengthUnit = strings.TrimSpace(val[:20])
		case "INTERVAL":
			hdr.Interval, _ = strconv.ParseFloat(strings.TrimSpace(val), 64)
		case "TIME OF FIRST OBS":
			t, perr := time.Parse(epochTimeFormat, strings.TrimSpace(val[:43]))
			if perr != nil {
				return hdr, fmt.Errorf("parse %q: %w", key, perr)
			}
			hdr.TimeOfFirstObs = t
		case "TIME OF LAST OBS":
			t, perr := time.Parse(epochTimeFormat, strings.TrimSpace(val[:43]))
			if perr != nil {
				return hdr, fmt.Errorf("parse %q: %w", key, perr)
			}
			hdr.TimeOfLastObs = t
		case "RCV CLOCK OFFS APPL":
			hdr.RcvClockOffsApplied = strings.TrimSpace(val[:6]) == "1"
		case "SYS / PHASE SHIFT", "SYS / PHASE SHIFTS":
			// deprecated field, ignored
		case "GLONASS SLOT / FRQ #", "GLONASS COD/PHS/BIS":
			// GLONASS-specific metadata, not needed to resolve a plan
		case "LEAP SECONDS":
			i, perr := strconv.Atoi(strings.TrimSpace(val[:6]))
			if perr != nil {
				return hdr, fmt.Errorf("parse %q: %w", key, perr)
			}
			hdr.LeapSeconds = i
		case "# OF SATELLITES":
			i, perr := strconv.Atoi(strings.TrimSpace(val[:6]))
			if perr != nil {
				return hdr, fmt.Errorf("parse %q: %w", key, perr)
			}
			hdr.NSatellites = i
		case "PRN / # OF OBS":
			// per-satellite observation counts, not needed by this reader
		case "END OF HEADER":
			break readln
		default:
			log.Printf("rinex: header field %q not handled", key)
		}

		if dec.lineNum >= maxLines {
			break readln
		}
	}

	if antModelRadome != "" || antSerial != "" {
		hdr.Antenna, err = gnss.ParseAntennaCode(antModelRadome, antSerial)
		if err != nil {
			return hdr, fmt.Errorf("parse ANT # / TYPE: %w", err)
		}
	}

	if hdr.RINEXVersion == 0 {
		return hdr, fmt.Errorf("unknown RINEX version")
	}
	if err = dec.sc.Err(); err != nil {
		return hdr, err
	}
	return hdr, nil
}

// NextEpoch reads and resolves the next data epoch using the installed plan
// (SetPlan). It returns false at EOF or on a fatal parse error; call Err to
// distinguish the two. A satellite record whose constellation is absent from
// the plan is silently skipped -- this is the documented contract, not an
// error.
func (dec *ObsDecoder) NextEpoch() bool {
	dec.nSat = 0
	dec.clockOffsetSet = false

readln:
	for dec.readLine() {
		line := dec.line()
		if len(line) == 0 {
			continue
		}
		if !strings.HasPrefix(line, ">") {
			log.Printf("rinex: stream does not start with epoch line: %q", line)
			continue
		}

		epoTime, perr := time.Parse(epochTimeFormat, line[2:29])
		if perr != nil {
			dec.setErr(fmt.Errorf("bad epoch timestamp in line %d: %q: %w", dec.lineNum, line, perr))
			return false
		}

		flagVal, perr := strconv.Atoi(strings.TrimSpace(line[31:32]))
		if perr != nil {
			dec.setErr(fmt.Errorf("bad epoch flag in line %d: %q: %w", dec.lineNum, line, perr))
			return false
		}

		numSat, perr := strconv.Atoi(strings.TrimSpace(line[32:35]))
		if perr != nil {
			dec.setErr(fmt.Errorf("bad satellite count in line %d: %q: %w", dec.lineNum, line, perr))
			return false
		}

		if flagVal >= 7 {
			log.Printf("rinex: reserved epoch flag %d at line %d, passing through opaque", flagVal, dec.lineNum)
		}

		dec.epochTime = epoTime
		dec.epochFlag = EpochFlag(flagVal)

		if len(line) > 41 {
			if off, ferr := parseFloat(line[41:]); ferr == nil {
				dec.rcvClockOffset = off
				dec.clockOffsetSet = true
			}
		}

		for ii := 0; ii < numSat; ii++ {
			if !dec.readLine() {
				break readln
			}
			satLine := dec.line()
			if len(satLine) < 3 {
				dec.setErr(fmt.Errorf("short satellite record at line %d: %q", dec.lineNum, satLine))
				return false
			}

			sys, ok := sysPerAbbr[satLine[:1]]
			if !ok {
				dec.setErr(fmt.Errorf("bad satellite system byte in line %d: %q", dec.lineNum, satLine))
				return false
			}
			prn, perr := gnss.NewPRN(satLine[0:3])
			if perr != nil {
				dec.setErr(fmt.Errorf("bad PRN in line %d: %q: %w", dec.lineNum, satLine, perr))
				return false
			}

			plans, wanted := dec.plans[sys]
			if !wanted {
				continue // known satellite system not requested: silently ignored
			}
			if dec.nSat >= MaxSatsPerEpoch {
				continue // buffer full, drop excess satellites
			}

			values := make([]float64, len(plans))
			for pi, plan := range plans {
				values[pi] = evalPlan(satLine, plan)
			}
			dec.buf[dec.nSat] = ResolvedSat{Prn: prn, Values: values}
			dec.nSat++
		}

		if dec.Header.RcvClockOffsApplied {
			log.Printf("rinex: epoch %s: RCV CLOCK OFFS APPL=1, pseudoranges already receiver-clock corrected upstream", dec.epochTime.Format(time.RFC3339))
		}

		return true
	}

	if err := dec.sc.Err(); err != nil {
		dec.setErr(fmt.Errorf("read epochs: %w", err))
	}
	return false
}

// evalPlan evaluates one resolved recipe against a satellite record line,
// short-circuiting to the missing-value sentinel as soon as any term is
// missing (spec.md §4.2).
func evalPlan(satLine string, plan Plan) float64 {
	var sum float64
	for _, term := range plan.Terms {
		start := 3 + term.Column*16
		val, err := parseFieldOrMissing(satLine, start, 14)
		if err != nil || val == missingSentinel {
			return missingSentinel
		}
		sum += term.Coeff * val
	}
	return sum
}

// EpochTime and EpochFlagValue report the timestamp and flag of the most
// recent epoch produced by NextEpoch.
func (dec *ObsDecoder) EpochTime() time.Time      { return dec.epochTime }
func (dec *ObsDecoder) EpochFlagValue() EpochFlag { return dec.epochFlag }

// RcvClockOffset returns the receiver clock offset carried on the epoch
// header line, if present.
func (dec *ObsDecoder) RcvClockOffset() (float64, bool) {
	return dec.rcvClockOffset, dec.clockOffsetSet
}

// Sats returns the resolved satellite vectors produced by the most recent
// NextEpoch call. The caller must only consume this slice before the next
// call; it is backed by the decoder's internal buffer.
func (dec *ObsDecoder) Sats() []ResolvedSat {
	return dec.buf[:dec.nSat]
}
