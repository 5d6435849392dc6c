package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/antenna.report/internal/archive"
	"github.com/banshee-data/antenna.report/internal/config"
	"github.com/banshee-data/antenna.report/internal/pattern"
	"github.com/banshee-data/antenna.report/internal/testutil"
	"github.com/banshee-data/antenna.report/internal/vna"
)

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	o, err := parseFlags([]string{"-config", "a.yaml", "-dev", "-label", "dipole", "-log", "diag"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "a.yaml", o.configPath)
	assert.True(t, o.devMode)
	assert.Equal(t, "dipole", o.label)
	assert.Equal(t, "diag", o.logLevel)

	_, err = parseFlags([]string{"extra"}, &stderr)
	assert.ErrorContains(t, err, "unexpected arguments")

	_, err = parseFlags([]string{"-nope"}, &stderr)
	assert.Error(t, err)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := testutil.WriteLegacyConfig(t, "freq🐥915000000", "n_angles🐥8", "output_dir🐥from-file")

	cfg, err := loadConfig(&options{configPath: path, outputDir: "from-flag", freq: "2.45GHz", archivePath: "runs.db"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.OutputDir)
	assert.Equal(t, "runs.db", cfg.ArchivePath)
	assert.Equal(t, config.CenterWindow(2_450_000_000), cfg.Window)
	assert.Equal(t, 8, cfg.NAngles)

	_, err = loadConfig(&options{freq: "7GHz"})
	var verr *config.ValidationError
	assert.ErrorAs(t, err, &verr, "override is still bounds checked")

	_, err = loadConfig(&options{freq: "fast"})
	assert.Error(t, err)

	cfg, err = loadConfig(&options{})
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), cfg)
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"version", []string{"-version"}, exitOK},
		{"help", []string{"-h"}, exitOK},
		{"bad flag", []string{"-bogus"}, exitConfig},
		{"bad log level", []string{"-log", "loud"}, exitConfig},
		{"missing config", []string{"-config", filepath.Join(t.TempDir(), "missing.config")}, exitConfig},
		{"invalid config", []string{"-config", testutil.WriteLegacyConfig(t, "stim_pwr🐥5")}, exitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			got := run(tt.args, &stdout, &stderr)
			assert.Equal(t, tt.want, got, "stderr: %s", stderr.String())
		})
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, exitOK, run([]string{"-version"}, &stdout, &stderr))
	assert.Equal(t, "antenna dev (unknown, built unknown)\n", stdout.String())
}

func TestRun_InstrumentNotConnected(t *testing.T) {
	sim := vna.NewSimulator("")
	require.NoError(t, sim.Listen("127.0.0.1:0"))
	defer sim.Close()
	host, port := splitAddr(t, sim.Addr())

	cfg := testutil.WriteLegacyConfig(t, "vna_host🐥"+host, "vna_port🐥"+port)
	var stdout, stderr bytes.Buffer
	got := run([]string{"-config", cfg, "-log", "quiet", "-output", t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, exitNotConnected, got)
	assert.Contains(t, stderr.String(), "not connected")
}

func TestRun_InstrumentUnreachable(t *testing.T) {
	sim := vna.NewSimulator("x")
	require.NoError(t, sim.Listen("127.0.0.1:0"))
	host, port := splitAddr(t, sim.Addr())
	sim.Close()

	cfg := testutil.WriteLegacyConfig(t, "vna_host🐥"+host, "vna_port🐥"+port)
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitNotConnected, run([]string{"-config", cfg, "-log", "quiet"}, &stdout, &stderr))
}

func TestRun_MotorPortMissing(t *testing.T) {
	sim := vna.NewSimulator("LibreVNA")
	require.NoError(t, sim.Listen("127.0.0.1:0"))
	defer sim.Close()
	host, port := splitAddr(t, sim.Addr())

	cfg := testutil.WriteLegacyConfig(t,
		"vna_host🐥"+host,
		"vna_port🐥"+port,
		"serial_port🐥"+filepath.Join(t.TempDir(), "no-such-tty"),
	)
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitMotor, run([]string{"-config", cfg, "-log", "quiet"}, &stdout, &stderr))
}

func TestRun_MotorNotReady(t *testing.T) {
	newDevRig = func(cfg *config.Config) (*devRig, error) {
		rig, err := startDevRig(cfg)
		if err != nil {
			return nil, err
		}
		rig.rotator.Busy = true
		rig.rotator.IgnoreKill = true
		return rig, nil
	}
	t.Cleanup(func() { newDevRig = startDevRig })

	out := t.TempDir()
	var stdout, stderr bytes.Buffer
	got := run([]string{"-dev", "-log", "quiet", "-output", out}, &stdout, &stderr)
	assert.Equal(t, exitMotor, got, "stderr: %s", stderr.String())
	assert.Contains(t, stderr.String(), "not ready")
	assert.NotContains(t, stdout.String(), "Swept")

	files, err := filepath.Glob(filepath.Join(out, "*"))
	require.NoError(t, err)
	assert.Empty(t, files, "no artifacts for an aborted run")
}

func TestRun_Dev(t *testing.T) {
	out := t.TempDir()
	db := filepath.Join(out, "runs.db")
	cfg := testutil.WriteLegacyConfig(t, "n_angles🐥8", "pts_2🐥3", "plot_min🐥-30", "freq_min🐥900000000", "freq_max🐥930000000")

	var stdout, stderr bytes.Buffer
	got := run([]string{"-config", cfg, "-dev", "-log", "quiet", "-output", out, "-archive", db, "-label", "dipole"}, &stdout, &stderr)
	require.Equal(t, exitOK, got, "stderr: %s", stderr.String())

	text := stdout.String()
	assert.Contains(t, text, "Swept 1/8\n")
	assert.Contains(t, text, "Swept 8/8\n")
	assert.Contains(t, text, "archived run ")

	csvs, err := filepath.Glob(filepath.Join(out, "dipole_collection_*.csv"))
	require.NoError(t, err)
	require.Len(t, csvs, 1)
	pngs, err := filepath.Glob(filepath.Join(out, "dipole_plot*_*.png"))
	require.NoError(t, err)
	assert.Len(t, pngs, 3)

	f, err := os.Open(csvs[0])
	require.NoError(t, err)
	defer f.Close()
	m, err := pattern.ReadCSV(f)
	require.NoError(t, err)
	angles, points := m.Dims()
	assert.Equal(t, 8, angles)
	assert.Equal(t, 3, points)

	// Row 0 faces the main lobe, row 2 (90 degrees) the null.
	assert.InDelta(t, 1.01, cmplxAbs(m.At(0, 0)), 1e-9)
	assert.InDelta(t, 0.01, cmplxAbs(m.At(2, 0)), 1e-9)

	a, err := archive.Open(db)
	require.NoError(t, err)
	defer a.Close()
	runs, err := a.Runs(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "dipole", runs[0].Label)
	assert.Equal(t, "SIM-0001", runs[0].Device)
	assert.Equal(t, csvs[0], runs[0].CSVPath)
}

func TestDipoleTrace(t *testing.T) {
	tr := dipoleTrace(0, []float64{1e6, 2e6})
	require.Len(t, tr, 2)
	assert.InDelta(t, 1.01, cmplxAbs(tr[0]), 1e-12)
	assert.InDelta(t, 1.0, real(tr[0])/1.01/math.Cos(1), 1e-12)

	tr = dipoleTrace(math.Pi/2, []float64{1e6})
	assert.InDelta(t, 0.01, cmplxAbs(tr[0]), 1e-12)
}

func cmplxAbs(v complex128) float64 {
	return math.Hypot(real(v), imag(v))
}

func splitAddr(t *testing.T, addr string) (string, string) {
	t.Helper()
	i := strings.LastIndex(addr, ":")
	require.Greater(t, i, 0)
	return addr[:i], addr[i+1:]
}
