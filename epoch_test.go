package fds

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestEpochScales(t *testing.T) {
	j2000 := NewEpoch(2000, 1, 1, 12, 0, 0, TT)
	if !scalar.EqualWithinAbs(j2000.MJD(TT), MJDJ2000, 1e-12) {
		t.Fatalf("J2000 MJD(TT)=%f", j2000.MJD(TT))
	}
	if !scalar.EqualWithinAbs(j2000.Centuries(TT), 0, 1e-15) {
		t.Fatalf("J2000 centuries=%f", j2000.Centuries(TT))
	}
	for _, tc := range []struct {
		scale Scale
		iso   string
	}{
		{TT, "2000-01-01T12:00:00.000000"},
		{TAI, "2000-01-01T11:59:27.816000"},
		{UTC, "2000-01-01T11:58:55.816000"},
		{GPS, "2000-01-01T11:59:08.816000"},
	} {
		if got := j2000.In(tc.scale).ISO(); got != tc.iso {
			t.Fatalf("%s: got %s, expected %s", tc.scale, got, tc.iso)
		}
	}
	if s := j2000.String(); s != "2000-01-01T12:00:00.000000 TT" {
		t.Fatalf("unexpected string %s", s)
	}
	if !j2000.Equal(j2000.In(UTC)) {
		t.Fatal("changing the display scale changed the instant")
	}
	// TDB - TT stays under 2 ms.
	for d := 0; d < 366; d += 5 {
		e := j2000.AddSeconds(float64(d) * SecondsPerDay)
		if δ := (e.MJD(TDB) - e.MJD(TT)) * SecondsPerDay; math.Abs(δ) > 2e-3 {
			t.Fatalf("TDB-TT=%e s on day %d", δ, d)
		}
	}
	if _, err := ParseScale("ut1"); !errors.Is(err, ErrUT1Scale) {
		t.Fatalf("UT1 must go through the EOP provider, got %v", err)
	}
	assertPanic(t, func() { NewEpoch(2000, 1, 1, 12, 0, 0, UT1) })
	assertPanic(t, func() { EpochFromMJDSeconds(58213, 0, UT1) })
	assertPanic(t, func() { j2000.MJD(UT1) })
	assertPanic(t, func() { j2000.In(UT1) })
	if _, err := ParseScale("martian"); err == nil {
		t.Fatal("unknown scale accepted")
	}
	if s, err := ParseScale("tdb"); err != nil || s != TDB {
		t.Fatalf("tdb parsed as %s (%v)", s, err)
	}
}

func TestEpochLeapSecond(t *testing.T) {
	before := NewEpoch(2016, 12, 31, 23, 59, 59, UTC)
	after := NewEpoch(2017, 1, 1, 0, 0, 0, UTC)
	if δ := after.SecondsSince(before); δ != 2 {
		t.Fatalf("expected 2 s across the leap second, got %f", δ)
	}
	if TAIMinusUTC(before.MJD(UTC)) != 36 || TAIMinusUTC(after.MJD(UTC)) != 37 {
		t.Fatal("invalid leap second table")
	}
	if TAIMinusUTC(30000) != 10 {
		t.Fatal("dates before 1972 use the first offset")
	}
	if after.Sub(before) != 2*time.Second {
		t.Fatalf("Sub=%s", after.Sub(before))
	}
}

func TestEpochTime(t *testing.T) {
	unix := EpochFromTime(time.Unix(0, 0))
	if unix.MJD(UTC) != unixEpochMJD {
		t.Fatalf("unix epoch MJD=%f", unix.MJD(UTC))
	}
	for _, tm := range []time.Time{
		time.Date(2018, 4, 5, 21, 4, 41, 789681000, time.UTC),
		time.Date(1969, 7, 20, 20, 17, 40, 0, time.UTC),
		time.Date(2016, 12, 31, 23, 59, 59, 500000000, time.UTC),
	} {
		if got := EpochFromTime(tm).Time(); !got.Equal(tm) {
			t.Fatalf("round trip of %s gave %s", tm, got)
		}
	}
	y, m, d, h, mi, s := NewEpoch(2018, 4, 5, 21, 4, 41.789681, UTC).Calendar()
	if y != 2018 || m != 4 || d != 5 || h != 21 || mi != 4 || !scalar.EqualWithinAbs(s, 41.789681, 1e-9) {
		t.Fatalf("invalid calendar %d %d %d %d %d %f", y, m, d, h, mi, s)
	}
}

func TestParseEpoch(t *testing.T) {
	ref := NewEpoch(2018, 4, 5, 21, 4, 41.789681, UTC)
	for _, s := range []string{"2018-04-05T21:04:41.789681", "2018-04-05 21:04:41.789681", "2018-04-05T21:04:41.789681Z", "2018-095T21:04:41.789681"} {
		e, err := ParseEpoch(s, UTC)
		if err != nil {
			t.Fatalf("%s: %s", s, err)
		}
		if math.Abs(e.SecondsSince(ref)) > 1e-6 {
			t.Fatalf("%s parsed as %s", s, e)
		}
	}
	e, err := ParseEpoch("2018-04-05 12:00:00 TT", UTC)
	if err != nil {
		t.Fatal(err)
	}
	if e.Scale() != TT || !e.Equal(NewEpoch(2018, 4, 5, 12, 0, 0, TT)) {
		t.Fatalf("scale suffix ignored: %s", e)
	}
	if _, err := ParseEpoch("next tuesday", UTC); err == nil {
		t.Fatal("expected an error")
	}
}

func TestEpochOrder(t *testing.T) {
	a := NewEpoch(2020, 1, 1, 0, 0, 0, UTC)
	b := a.Add(90 * time.Minute)
	if !a.Before(b) || !b.After(a) || a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Fatal("invalid ordering")
	}
	if c := b.AddSeconds(-5400); !c.Equal(a) {
		t.Fatalf("%s != %s", c, a)
	}
	if e := a.AddSeconds(-1); e.ISO() != "2019-12-31T23:59:59.000000" {
		t.Fatalf("negative seconds not normalized: %s", e.ISO())
	}
	if !scalar.EqualWithinAbs(EpochFromMJD(58000.25, UTC).MJD(UTC), 58000.25, 1e-12) {
		t.Fatal("MJD round trip failed")
	}
	if !(Epoch{}).IsZero() || a.IsZero() {
		t.Fatal("IsZero")
	}
}

func TestRange(t *testing.T) {
	start := NewEpoch(2020, 1, 1, 0, 0, 0, UTC)
	stop := start.Add(10 * time.Minute)
	if r := Range(start, stop, 3*time.Minute); len(r) != 4 || !r[3].Equal(start.Add(9*time.Minute)) {
		t.Fatalf("forward range %v", r)
	}
	if r := Range(start, stop, 5*time.Minute); len(r) != 3 || !r[2].Equal(stop) {
		t.Fatalf("stop should be included: %v", r)
	}
	if r := Range(stop, start, -5*time.Minute); len(r) != 3 || !r[2].Equal(start) {
		t.Fatalf("backward range %v", r)
	}
	if r := Range(start, stop, -time.Minute); len(r) != 0 {
		t.Fatalf("a step away from stop gives no epoch, got %d", len(r))
	}
	if r := Range(start, stop, 0); len(r) != 0 {
		t.Fatal("null step")
	}
}
