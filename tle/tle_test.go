package tle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/ChristopherRabotin/fds"
)

const (
	iss = `ISS (ZARYA)
1 25544U 98067A   18124.55610684  .00001524  00000-0  30197-4 0  9997
2 25544  51.6421 236.2139 0003381  47.8509  47.6767 15.54198229111731`
	vanguard = `1 00005U 58002B   00179.78495062  .00000023  00000-0  28098-4 0  4753
2 00005  34.2682 348.7242 1859667 331.7664  19.3264 10.82419157413667`
)

func TestParse(t *testing.T) {
	text := "# stations\n\n" + iss + "\n" + vanguard + "\n"
	tles, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, tles, 2)

	t0 := tles[0]
	assert.Equal(t, "ISS (ZARYA)", t0.Name)
	assert.Equal(t, 25544, t0.NoradID)
	assert.Equal(t, byte('U'), t0.Classification)
	assert.Equal(t, "1998-067A", t0.COSPAR)
	assert.Equal(t, 999, t0.ElementSet)
	assert.Equal(t, 11173, t0.RevNumber)
	assert.InDelta(t, 51.6421, fds.Rad2deg(t0.I), 1e-12)
	assert.InDelta(t, 236.2139, fds.Rad2deg(t0.RAAN), 1e-12)
	assert.InDelta(t, 0.0003381, t0.E, 1e-15)
	assert.InDelta(t, 15.54198229, t0.N*86400/(2*3.141592653589793), 1e-10)
	assert.InDelta(t, 2*0.00001524, t0.NDot, 1e-15)
	assert.InDelta(t, 0.30197e-4, t0.BStar, 1e-15)

	// 2018 day 124 is May 4th.
	y, m, d, h, _, _ := t0.Epoch.Calendar()
	assert.Equal(t, []int{2018, 5, 4, 13}, []int{y, m, d, h})
	expected := time.Date(2018, 5, 4, 0, 0, 0, 0, time.UTC).Add(time.Duration(0.55610684 * 86400 * float64(time.Second)))
	assert.WithinDuration(t, expected, t0.Epoch.Time(), time.Millisecond)

	t1 := tles[1]
	assert.Empty(t, t1.Name)
	assert.Equal(t, 5, t1.NoradID)
	assert.Equal(t, "1958-002B", t1.COSPAR)
	assert.Equal(t, 2000, t1.Epoch.Time().Year())
}

func TestParseErrors(t *testing.T) {
	lines := strings.Split(vanguard, "\n")
	for name, tc := range map[string][]string{
		"checksum":    {lines[0][:68] + "0", lines[1]},
		"length":      {lines[0][:60], lines[1]},
		"line number": {lines[1], lines[0]},
		"one line":    {lines[0]},
		"norad":       {lines[0], strings.Replace(lines[1], "2 00005", "2 00006", 1)},
	} {
		_, err := ParseLines(tc...)
		var perr *ParseError
		assert.ErrorAs(t, err, &perr, name)
	}

	_, err := Parse(strings.NewReader(lines[0]))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Line)

	// The error points at the faulty line of the input.
	bad := "ISS\n" + lines[0] + "\n" + lines[1][:68] + "0\n"
	_, err = Parse(strings.NewReader(bad))
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Line)
}

func TestChecksum(t *testing.T) {
	for _, l := range strings.Split(iss+"\n"+vanguard, "\n") {
		if len(l) != LineLen {
			continue
		}
		assert.Equal(t, int(l[68]-'0'), Checksum(l), l)
	}
}

func TestExpNotation(t *testing.T) {
	var p fieldParser
	for in, v := range map[string]float64{
		"0000+0":   0,
		"+0000+0":  0,
		"34473-3":  0.00034473,
		"-60129-4": -6.0129e-05,
		"+45871-4": 4.5871e-05,
		"24814+0":  0.24814,
	} {
		assert.InDelta(t, v, p.exp(in), 1e-15, in)
	}
	require.NoError(t, p.err)
	assert.Equal(t, "00000-0", formatExp(0))
	assert.Equal(t, "34473-3", formatExp(3.4473e-4))
	assert.Equal(t, "-60129-4", formatExp(-6.0129e-05))
	assert.Equal(t, "24814+0", formatExp(0.24814))
}

func TestFormat(t *testing.T) {
	for _, text := range []string{iss, vanguard} {
		tle, err := ParseLines(strings.Split(text, "\n")...)
		require.NoError(t, err)
		assert.Equal(t, text, Format(tle))
	}
}

func TestOrbit(t *testing.T) {
	env := fds.DefaultEnv()
	tle, err := ParseLines(strings.Split(vanguard, "\n")...)
	require.NoError(t, err)
	o, err := tle.Orbit(env)
	require.NoError(t, err)
	assert.Equal(t, "5", o.ID)

	for _, tc := range []struct {
		min float64
		r   []float64
	}{
		{0, []float64{7022.46529266, -1400.08296755, 0.03995155}},
		{360, []float64{-7154.03120202, -3783.17682504, -3536.19412294}},
		{720, []float64{-7134.59340119, 6531.68641334, 3260.27186483}},
		{1080, []float64{5568.53901181, 4492.06992591, 3863.87641983}},
	} {
		sv, err := o.Propagate(tle.Epoch.AddSeconds(tc.min * 60))
		require.NoError(t, err)
		assert.Equal(t, fds.TEME, sv.Frame().Name())
		if !floats.EqualApprox(sv.R(), tc.r, 1e-3) {
			t.Fatalf("t=%.0f min: r=%v, expected %v", tc.min, sv.R(), tc.r)
		}
	}
}

func TestFromStateVector(t *testing.T) {
	env := fds.DefaultEnv()
	orig, err := ParseLines(strings.Split(iss, "\n")...)
	require.NoError(t, err)
	sv, err := orig.StateVector(env)
	require.NoError(t, err)
	cart, err := sv.Copy(fds.EME2000, fds.Cartesian)
	require.NoError(t, err)

	back, err := FromStateVector(cart)
	require.NoError(t, err)
	assert.True(t, back.Epoch.Equal(orig.Epoch))
	assert.Equal(t, orig.Name, back.Name)
	assert.InDelta(t, orig.I, back.I, 1e-9)
	assert.InDelta(t, orig.E, back.E, 1e-9)
	assert.InDelta(t, orig.N, back.N, 1e-12)
}
