package fds

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

const unixEpochMJD = 40587

// Epoch is a point in time. It is stored as a TAI modified Julian day and seconds within that
// day, and remembers the scale it is displayed in. Two epochs are equal iff they refer to the
// same TAI instant, whatever their display scale.
type Epoch struct {
	day   int
	sec   float64
	scale Scale
}

func normalizeEpoch(day int, sec float64, scale Scale) Epoch {
	if sec >= SecondsPerDay || sec < 0 {
		δ := math.Floor(sec / SecondsPerDay)
		day += int(δ)
		sec -= δ * SecondsPerDay
	}
	return Epoch{day: day, sec: sec, scale: scale}
}

// NewEpoch returns the epoch of the provided calendar date in the provided scale.
func NewEpoch(year, month, day, hour, minute int, second float64, scale Scale) Epoch {
	jd := julian.CalendarGregorianToJD(year, month, float64(day))
	mjd := int(math.Round(jd - JDMJD))
	sec := float64(hour*3600+minute*60) + second
	return EpochFromMJDSeconds(mjd, sec, scale)
}

// EpochFromMJDSeconds returns the epoch from a day and seconds of day in the provided scale.
func EpochFromMJDSeconds(mjd int, sec float64, scale Scale) Epoch {
	off := offsetToTAI(scale, float64(mjd)+sec/SecondsPerDay)
	if scale == "" {
		scale = TAI
	}
	return normalizeEpoch(mjd, sec+off, scale)
}

// EpochFromMJD returns the epoch from a fractional modified Julian date in the provided scale.
func EpochFromMJD(mjd float64, scale Scale) Epoch {
	day := math.Floor(mjd)
	return EpochFromMJDSeconds(int(day), (mjd-day)*SecondsPerDay, scale)
}

// EpochFromTime returns the epoch of a time.Time, which is always considered UTC.
func EpochFromTime(t time.Time) Epoch {
	unix := t.Unix()
	day := unix / 86400
	rem := unix % 86400
	if rem < 0 {
		rem += 86400
		day--
	}
	sec := float64(rem) + float64(t.Nanosecond())*1e-9
	return EpochFromMJDSeconds(int(day)+unixEpochMJD, sec, UTC)
}

var epochLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-002T15:04:05.999999999",
}

// ParseEpoch parses an ISO-8601 date (calendar or day-of-year) expressed in the provided scale.
// A trailing "Z" or scale name is accepted and ignored.
func ParseEpoch(s string, scale Scale) (Epoch, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "Z")
	if idx := strings.LastIndexByte(s, ' '); idx > 0 {
		if sc, err := ParseScale(s[idx+1:]); err == nil {
			scale = sc
			s = strings.TrimSpace(s[:idx])
		}
	}
	for _, layout := range epochLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		sec := float64(t.Second()) + float64(t.Nanosecond())*1e-9
		return NewEpoch(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec, scale), nil
	}
	return Epoch{}, fmt.Errorf("could not parse epoch '%s'", s)
}

// Scale returns the display scale.
func (e Epoch) Scale() Scale {
	if e.scale == "" {
		return TAI
	}
	return e.scale
}

// In returns the same instant displayed in another scale. It panics on UT1.
func (e Epoch) In(scale Scale) Epoch {
	if scale == UT1 {
		panic(ErrUT1Scale)
	}
	e.scale = scale
	return e
}

// IsZero returns whether this epoch was never set.
func (e Epoch) IsZero() bool {
	return e.day == 0 && e.sec == 0 && e.scale == ""
}

// dayIn returns the day and seconds of day in the provided scale.
func (e Epoch) dayIn(scale Scale) (int, float64) {
	off := offsetFromTAI(scale, float64(e.day)+e.sec/SecondsPerDay)
	n := normalizeEpoch(e.day, e.sec+off, scale)
	return n.day, n.sec
}

// MJD returns the modified Julian date in the provided scale.
func (e Epoch) MJD(scale Scale) float64 {
	d, s := e.dayIn(scale)
	return float64(d) + s/SecondsPerDay
}

// JD returns the Julian date in the provided scale.
func (e Epoch) JD(scale Scale) float64 {
	return e.MJD(scale) + JDMJD
}

// Centuries returns the Julian centuries since J2000.0 in the provided scale.
func (e Epoch) Centuries(scale Scale) float64 {
	d, s := e.dayIn(scale)
	return (float64(d) - MJDJ2000 + s/SecondsPerDay) / 36525
}

// AddSeconds returns the epoch shifted by the provided number of seconds.
func (e Epoch) AddSeconds(s float64) Epoch {
	return normalizeEpoch(e.day, e.sec+s, e.scale)
}

// Add returns the epoch shifted by the provided duration.
func (e Epoch) Add(d time.Duration) Epoch {
	return e.AddSeconds(d.Seconds())
}

// SecondsSince returns e - o in seconds.
func (e Epoch) SecondsSince(o Epoch) float64 {
	return float64(e.day-o.day)*SecondsPerDay + (e.sec - o.sec)
}

// Sub returns e - o.
func (e Epoch) Sub(o Epoch) time.Duration {
	return time.Duration(math.Round(e.SecondsSince(o) * 1e9))
}

// Equal returns whether both epochs are the same instant.
func (e Epoch) Equal(o Epoch) bool {
	return e.day == o.day && e.sec == o.sec
}

// Before returns whether e is strictly before o.
func (e Epoch) Before(o Epoch) bool {
	return e.day < o.day || (e.day == o.day && e.sec < o.sec)
}

// After returns whether e is strictly after o.
func (e Epoch) After(o Epoch) bool {
	return o.Before(e)
}

// Compare returns -1, 0 or 1.
func (e Epoch) Compare(o Epoch) int {
	switch {
	case e.Before(o):
		return -1
	case e.After(o):
		return 1
	default:
		return 0
	}
}

// Time returns the UTC time.Time of this epoch.
func (e Epoch) Time() time.Time {
	d, s := e.dayIn(UTC)
	whole := math.Floor(s)
	ns := math.Round((s - whole) * 1e9)
	return time.Unix(int64(d-unixEpochMJD)*86400+int64(whole), int64(ns)).UTC()
}

// Calendar returns the calendar date in the display scale.
func (e Epoch) Calendar() (year, month, day, hour, minute int, second float64) {
	d, s := e.dayIn(e.Scale())
	// Round to the microsecond to avoid printing 60 seconds.
	s = math.Round(s*1e6) / 1e6
	if s >= SecondsPerDay {
		d++
		s -= SecondsPerDay
	}
	y, m, df := julian.JDToCalendar(float64(d) + JDMJD)
	hour = int(s / 3600)
	minute = int((s - float64(hour)*3600) / 60)
	second = s - float64(hour*3600+minute*60)
	return y, m, int(math.Floor(df)), hour, minute, second
}

// String returns the ISO-8601 representation in the display scale.
func (e Epoch) String() string {
	y, m, d, h, mi, s := e.Calendar()
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%09.6f %s", y, m, d, h, mi, s, e.Scale())
}

// ISO returns the ISO-8601 representation without the scale suffix.
func (e Epoch) ISO() string {
	y, m, d, h, mi, s := e.Calendar()
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%09.6f", y, m, d, h, mi, s)
}

// Range returns the epochs from start (included) to stop (included if reached) by step.
// A negative step walks backward.
func Range(start, stop Epoch, step time.Duration) []Epoch {
	var out []Epoch
	if step == 0 {
		return out
	}
	total := stop.SecondsSince(start)
	n := int(math.Floor(total/step.Seconds()+1e-9)) + 1
	for i := 0; i < n; i++ {
		out = append(out, start.AddSeconds(float64(i)*step.Seconds()))
	}
	return out
}
