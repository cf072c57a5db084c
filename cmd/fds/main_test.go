package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChristopherRabotin/fds"
	"github.com/ChristopherRabotin/fds/ccsds"
)

const (
	iss = `ISS (ZARYA)
1 25544U 98067A   18124.55610684  .00001524  00000-0  30197-4 0  9997
2 25544  51.6421 236.2139 0003381  47.8509  47.6767 15.54198229111731
`
	vanguard = `1 00005U 58002B   00179.78495062  .00000023  00000-0  28098-4 0  4753
2 00005  34.2682 348.7242 1859667 331.7664  19.3264 10.82419157413667
`
)

func fdsRun(t *testing.T, args ...string) (string, error) {
	t.Setenv(fds.ConfigEnv, "")
	var out, logs bytes.Buffer
	err := run(args, &out, &logs)
	return out.String(), err
}

func writeFile(t *testing.T, name, text string) string {
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(text), 0o644))
	return p
}

func parseEpoch(t *testing.T, s string) fds.Epoch {
	e, err := fds.ParseEpoch(s, fds.UTC)
	require.NoError(t, err)
	return e
}

func TestTLE(t *testing.T) {
	path := writeFile(t, "vanguard.txt", vanguard)
	out, err := fdsRun(t, "tle", path, "--stop", "2000-06-28T07:00:00", "--step", "6h")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "#  (5)", lines[0])
	fields := strings.Fields(lines[1])
	require.Len(t, fields, 7)
	assert.Equal(t, "2000-06-27T18:50:19.733568", fields[0])
	x, err := strconv.ParseFloat(fields[1], 64)
	require.NoError(t, err)
	assert.InDelta(t, 7022.46529266, x, 1e-3)
}

func TestTLEForm(t *testing.T) {
	path := writeFile(t, "iss.txt", iss)
	out, err := fdsRun(t, "tle", path, "--start", "2018-05-04T12:00:00", "--stop", "2018-05-04T13:00:00", "--step", "10m", "--frame", fds.EME2000, "--form", fds.Keplerian)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 8)
	for _, l := range lines[1:] {
		fields := strings.Fields(l)
		a, err := strconv.ParseFloat(fields[1], 64)
		require.NoError(t, err)
		assert.InDelta(t, 6780, a, 30, l)
	}

	_, err = fdsRun(t, "tle", path, "--frame", "NOPE")
	assert.Error(t, err)
	_, err = fdsRun(t, "tle", path, "--step", "0s")
	assert.Error(t, err)
	_, err = fdsRun(t, "tle", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
	_, err = fdsRun(t, "tle", writeFile(t, "empty.txt", "# nothing\n"))
	assert.Error(t, err)
}

func TestTLECCSDS(t *testing.T) {
	path := writeFile(t, "tles.txt", iss+vanguard)
	oem := filepath.Join(t.TempDir(), "out.oem")
	out, err := fdsRun(t, "tle", path, "--start", "2018-05-04T12:00:00", "--stop", "2018-05-04T13:00:00", "--step", "5m", "--frame", fds.EME2000, "--ccsds", oem)
	require.NoError(t, err)
	assert.Empty(t, out)

	f, err := os.Open(oem)
	require.NoError(t, err)
	defer f.Close()
	ephems, err := ccsds.ReadOEM(f, fds.DefaultEnv())
	require.NoError(t, err)
	require.Len(t, ephems, 2)
	assert.Equal(t, 13, ephems[0].Len())
	assert.Equal(t, fds.EME2000, ephems[1].States()[0].Frame().Name())
	assert.Equal(t, "ISS (ZARYA)", ephems[0].States()[0].Name)
}

func TestPasses(t *testing.T) {
	path := writeFile(t, "iss.txt", iss)
	out, err := fdsRun(t, "passes", path, "--station", "TLS,43.604482,1.443962,172",
		"--start", "2018-04-05T21:00:00", "--stop", "2018-04-05T22:10:00", "--step", "30s")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, out)
	for i, tc := range []struct {
		label, epoch string
	}{
		{"AOS", "2018-04-05T21:04:41.789681"},
		{"MAX", "2018-04-05T21:10:04.514666"},
		{"LOS", "2018-04-05T21:15:25.183817"},
	} {
		fields := strings.Fields(lines[i])
		assert.Equal(t, "25544", fields[0])
		assert.Equal(t, "TLS", fields[1])
		assert.Equal(t, tc.label, fields[2])
		got := parseEpoch(t, fields[3])
		assert.InDelta(t, 0, got.SecondsSince(parseEpoch(t, tc.epoch)), 1, tc.label)
	}

	_, err = fdsRun(t, "passes", path)
	assert.Error(t, err)
	_, err = fdsRun(t, "passes", path, "--station", "TLS,43.6,1.44")
	assert.Error(t, err)
	_, err = fdsRun(t, "passes", path, "--station", "TLS,north,1.44,172")
	assert.Error(t, err)
}

func TestEOP(t *testing.T) {
	records := writeFile(t, "finals.toml", `
[[eop]]
mjd = 58213
x = 0.0581
ut1_utc = 0.1385
tai_utc = 37.0

[[eop]]
mjd = 58214
x = 0.0596
ut1_utc = 0.1373
tai_utc = 37.0
`)
	db := filepath.Join(t.TempDir(), "eop.db")
	out, err := fdsRun(t, "eop", "import", records, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, db+": MJD 58213 to 58214\n", out)

	cfg := writeFile(t, "fds.toml", "[eop]\ndbname = \"iers\"\ntype = \"pebble\"\nfolder = \""+db+"\"\nmissing_policy = \"error\"\n")
	out, err = fdsRun(t, "--config", cfg, "eop", "get", "58213.5")
	require.NoError(t, err)
	assert.Contains(t, out, "ut1_utc = 0.1379000\n")
	assert.Contains(t, out, "x       = 0.058850\n")

	_, err = fdsRun(t, "--config", cfg, "eop", "get", "60000")
	var eerr *fds.EOPError
	assert.ErrorAs(t, err, &eerr)

	_, err = fdsRun(t, "eop", "import", records)
	var cerr *fds.ConfigError
	assert.ErrorAs(t, err, &cerr)

	bad := writeFile(t, "bad.toml", "[eop]\nmissing_policy = \"sometimes\"\n")
	_, err = fdsRun(t, "--config", bad, "eop", "get", "58213")
	assert.ErrorAs(t, err, &cerr)
}

func coords(t *testing.T, out string) []string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	var vals []string
	for _, l := range lines[1:] {
		_, v, ok := strings.Cut(l, "=")
		require.True(t, ok, l)
		vals = append(vals, strings.TrimSpace(v))
	}
	return vals
}

func TestConvert(t *testing.T) {
	out, err := fdsRun(t, "convert", "6678.137", "0", "0", "0", "7.7258", "1.2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "2000-01-01T12:00:00.000000 EME2000 keplerian\n"), out)
	kep := coords(t, out)

	out, err = fdsRun(t, append([]string{"convert", "--from", fds.Keplerian, "--form", fds.Cartesian, "--"}, kep...)...)
	require.NoError(t, err)
	cart := coords(t, out)
	for i, want := range []float64{6678.137, 0, 0, 0, 7.7258, 1.2} {
		got, err := strconv.ParseFloat(cart[i], 64)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-6, i)
	}

	_, err = fdsRun(t, "convert", "1", "2", "3")
	assert.Error(t, err)
	_, err = fdsRun(t, "convert", "--form", "polar", "6678", "0", "0", "0", "7.7", "0")
	assert.Error(t, err)
}
