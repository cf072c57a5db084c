// Package tle reads and writes the NORAD two line element sets.
//
//	ISS (ZARYA)
//	1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927
//	2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537
//
// The name line is optional, and may be prefixed with "0 ".
package tle

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ChristopherRabotin/fds"
)

// LineLen is the length of both element lines.
const LineLen = 69

// ParseError is returned for malformed element sets.
type ParseError struct {
	Line int // Line number in the input, 1-based.
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tle: line %d: %s: %s", e.Line, e.Msg, e.Err)
	}
	return fmt.Sprintf("tle: line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TLE is a two line element set. Angles are in radians and the mean motion in radians per
// second.
type TLE struct {
	Name           string
	NoradID        int
	Classification byte
	COSPAR         string // International designator, e.g. 1998-067A.
	Epoch          fds.Epoch
	NDot           float64 // First derivative of the mean motion, rev/day².
	NDDot          float64 // Second derivative of the mean motion, rev/day³.
	BStar          float64
	EphemerisType  int
	ElementSet     int
	I              float64
	RAAN           float64
	E              float64
	ArgP           float64
	M              float64
	N              float64
	RevNumber      int
}

// Checksum returns the modulo 10 checksum of the first 68 characters of a line: the sum of the
// digits, minus signs counting as one.
func Checksum(line string) int {
	var sum int
	for i := 0; i < len(line) && i < LineLen-1; i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// Parse reads all the element sets of r. Empty lines and lines starting with # are ignored.
func Parse(r io.Reader) ([]TLE, error) {
	scanner := bufio.NewScanner(r)
	var (
		out   []TLE
		cache []string
		first int
		num   int
	)
	for scanner.Scan() {
		num++
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "1 "):
			if len(cache) == 0 {
				first = num
			}
			cache = append(cache, line)
		case strings.HasPrefix(line, "2 "):
			cache = append(cache, line)
			t, err := parseLines(first, cache...)
			if err != nil {
				return out, err
			}
			out = append(out, t)
			cache = nil
		default:
			cache, first = []string{line}, num
		}
	}
	if err := scanner.Err(); err != nil {
		return out, errors.Wrap(err, "reading element sets")
	}
	if len(cache) > 0 {
		return out, &ParseError{Line: first, Msg: "incomplete element set"}
	}
	return out, nil
}

// ParseLines parses an element set from its two lines, optionally preceded by the name line.
func ParseLines(lines ...string) (TLE, error) {
	return parseLines(1, lines...)
}

func parseLines(num int, lines ...string) (TLE, error) {
	var t TLE
	switch len(lines) {
	case 3:
		t.Name = strings.TrimPrefix(strings.TrimSpace(lines[0]), "0 ")
		lines = lines[1:]
		num++
	case 2:
	default:
		return t, &ParseError{Line: num, Msg: fmt.Sprintf("expected 2 or 3 lines, got %d", len(lines))}
	}
	l1, l2 := strings.TrimSpace(lines[0]), strings.TrimSpace(lines[1])
	for i, l := range []string{l1, l2} {
		if !strings.HasPrefix(l, strconv.Itoa(i+1)+" ") {
			return t, &ParseError{Line: num + i, Msg: "invalid line number"}
		}
		if len(l) != LineLen {
			return t, &ParseError{Line: num + i, Msg: fmt.Sprintf("expected %d characters, got %d", LineLen, len(l))}
		}
		if sum := Checksum(l); int(l[68]-'0') != sum {
			return t, &ParseError{Line: num + i, Msg: fmt.Sprintf("checksum failed, expected %d, got %c", sum, l[68])}
		}
	}

	p := fieldParser{line: num}
	t.NoradID = p.int(l1[2:7])
	if id := p.int(l2[2:7]); p.err == nil && id != t.NoradID {
		return t, &ParseError{Line: num + 1, Msg: "satellite numbers differ"}
	}
	t.Classification = l1[7]
	if desig := strings.TrimSpace(l1[9:17]); desig != "" {
		t.COSPAR = fmt.Sprintf("%d-%s", fullYear(p.int(l1[9:11])), strings.TrimSpace(l1[11:17]))
	}
	year := fullYear(p.int(l1[18:20]))
	day := p.float(l1[20:32])
	whole, frac := math.Modf(day - 1)
	jan1 := int(math.Round(fds.NewEpoch(year, 1, 1, 0, 0, 0, fds.UTC).MJD(fds.UTC)))
	t.Epoch = fds.EpochFromMJDSeconds(jan1+int(whole), frac*fds.SecondsPerDay, fds.UTC)
	t.NDot = 2 * p.float(l1[33:43])
	t.NDDot = 6 * p.exp(l1[44:52])
	t.BStar = p.exp(l1[53:61])
	t.EphemerisType = p.int(l1[62:63])
	t.ElementSet = p.int(l1[64:68])

	p.line++
	t.I = fds.Deg2rad(p.float(l2[8:16]))
	t.RAAN = fds.Deg2rad(p.float(l2[17:25]))
	t.E = p.float("." + strings.TrimSpace(l2[26:33]))
	t.ArgP = fds.Deg2rad(p.float(l2[34:42]))
	t.M = fds.Deg2rad(p.float(l2[43:51]))
	t.N = p.float(l2[52:63]) * 2 * math.Pi / fds.SecondsPerDay
	t.RevNumber = p.int(l2[63:68])
	if p.err != nil {
		return TLE{}, p.err
	}
	return t, nil
}

// fullYear maps two digit years to 1957-2056.
func fullYear(y int) int {
	if y >= 57 {
		return 1900 + y
	}
	return 2000 + y
}

// fieldParser parses fixed width fields, keeping the first error.
type fieldParser struct {
	line int
	err  error
}

func (p *fieldParser) fail(field string, err error) {
	if p.err == nil {
		p.err = &ParseError{Line: p.line, Msg: fmt.Sprintf("invalid field %q", field), Err: err}
	}
}

func (p *fieldParser) int(field string) int {
	s := strings.TrimSpace(field)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		p.fail(field, err)
	}
	return v
}

func (p *fieldParser) float(field string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		p.fail(field, err)
	}
	return v
}

// exp parses the decimal point assumed notation, e.g. -11606-4 for -0.11606e-4.
func (p *fieldParser) exp(field string) float64 {
	s := strings.TrimSpace(field)
	if s == "" {
		return 0
	}
	sign := "+"
	if s[0] == '-' || s[0] == '+' {
		sign, s = s[:1], s[1:]
	}
	i := strings.LastIndexAny(s, "+-")
	if i <= 0 {
		return p.float(sign + "." + s)
	}
	return p.float(sign + "." + s[:i] + "e" + s[i:])
}

// formatExp is the inverse of fieldParser.exp, with five significant digits.
func formatExp(v float64) string {
	if v == 0 {
		return "00000-0"
	}
	s := strconv.FormatFloat(v, 'e', 4, 64)
	mant, exp, _ := strings.Cut(s, "e")
	e, _ := strconv.Atoi(exp)
	return fmt.Sprintf("%s%+d", strings.Replace(mant, ".", "", 1), e+1)
}

// Lines returns the two element lines, with their checksums.
func (t TLE) Lines() (string, string) {
	class := t.Classification
	if class == 0 {
		class = 'U'
	}
	var desig string
	if y, piece, ok := strings.Cut(t.COSPAR, "-"); ok && len(y) == 4 {
		desig = y[2:] + piece
	}
	ut := t.Epoch.Time()
	day := float64(ut.YearDay()) + (float64(ut.Hour())*3600+float64(ut.Minute())*60+float64(ut.Second())+float64(ut.Nanosecond())*1e-9)/fds.SecondsPerDay
	ndot := strings.Replace(fmt.Sprintf("% .8f", t.NDot/2), "0.", ".", 1)
	l1 := fmt.Sprintf("1 %05d%c %-8s %02d%012.8f %10s %8s %8s %d %4d",
		t.NoradID%100000, class, desig, ut.Year()%100, day, ndot,
		formatExp(t.NDDot/6), formatExp(t.BStar), t.EphemerisType, t.ElementSet%10000)
	ecc := fmt.Sprintf("%.7f", t.E)[2:]
	l2 := fmt.Sprintf("2 %05d %8.4f %8.4f %s %8.4f %8.4f %11.8f%5d",
		t.NoradID%100000, fds.Rad2deg(t.I), fds.Rad2deg(t.RAAN), ecc, fds.Rad2deg(t.ArgP),
		fds.Rad2deg(t.M), t.N*fds.SecondsPerDay/(2*math.Pi), t.RevNumber%100000)
	return l1 + strconv.Itoa(Checksum(l1)), l2 + strconv.Itoa(Checksum(l2))
}

// Format returns the element set as text: the name line if there is a name, then both element
// lines.
func Format(t TLE) string {
	l1, l2 := t.Lines()
	if t.Name == "" {
		return l1 + "\n" + l2
	}
	return t.Name + "\n" + l1 + "\n" + l2
}

func (t TLE) String() string { return Format(t) }

// StateVector returns the mean elements as a state in the TEME frame and tle form.
func (t TLE) StateVector(env *fds.Env) (fds.StateVector, error) {
	sv, err := env.NewStateVector(fds.Coords{t.I, t.RAAN, t.E, t.ArgP, t.M, t.N}, t.Epoch, fds.TEME, fds.TLEForm)
	if err != nil {
		return sv, errors.Wrapf(err, "element set of %d", t.NoradID)
	}
	sv.Name = t.Name
	sv.ID = strconv.Itoa(t.NoradID)
	return sv, nil
}

// Orbit returns the state bound to the SGP4 model.
func (t TLE) Orbit(env *fds.Env) (fds.Orbit, error) {
	sv, err := t.StateVector(env)
	if err != nil {
		return fds.Orbit{}, err
	}
	return sv.Orbit(fds.SGP4{BStar: t.BStar})
}

// FromStateVector returns the element set of a state, read as SGP4 mean elements once expressed
// in TEME. The identification fields are left to the caller.
func FromStateVector(sv fds.StateVector) (TLE, error) {
	teme, err := sv.AsFrame(fds.TEME)
	if err != nil {
		return TLE{}, err
	}
	if teme, err = teme.AsForm(fds.TLEForm); err != nil {
		return TLE{}, err
	}
	c := teme.Coords()
	return TLE{
		Name:  sv.Name,
		Epoch: sv.Epoch(),
		I:     c[0],
		RAAN:  c[1],
		E:     c[2],
		ArgP:  c[3],
		M:     c[4],
		N:     c[5],
	}, nil
}
