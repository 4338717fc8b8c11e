package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evgrid/core/history"
	coremetrics "github.com/kilianp07/evgrid/core/metrics"
	"github.com/kilianp07/evgrid/core/roadnet"
	"github.com/kilianp07/evgrid/infra/kpi"
	"github.com/kilianp07/evgrid/infra/store"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		cfgPath = ""
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRoadnetCommand(t *testing.T) {
	cfg := writeConfig(t, "city:\n  radius_m: 500\n  grid_spacing_m: 250\n")
	out := filepath.Join(t.TempDir(), "net.json")
	stdout := execute(t, "roadnet", "--config", cfg, "--out", out)
	assert.Contains(t, stdout, "wrote")

	g, err := roadnet.LoadFile(out)
	require.NoError(t, err)
	assert.Greater(t, g.Len(), 4)
}

func TestCityCommand(t *testing.T) {
	cfg := writeConfig(t, "city:\n  radius_m: 500\n  seed: 3\n")
	dir := t.TempDir()
	chartPath := filepath.Join(dir, "chart.html")
	stdout := execute(t, "city", "--config", cfg, "--steps", "3", "--vehicles", "2",
		"--out", dir, "--chart", chartPath, "--export", filepath.Join(dir, "steps.json"))

	assert.Contains(t, stdout, "step 3")
	assert.Contains(t, stdout, "V_1")
	for _, name := range []string{"step_0001.html", "step_0003.html", "step_0003.geojson", "chart.html", "steps.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestGridEdgeCommand(t *testing.T) {
	cfg := writeConfig(t, "gridedge:\n  evs: 3\n  seed: 9\n")
	chartPath := filepath.Join(t.TempDir(), "episode.html")
	csvPath := filepath.Join(t.TempDir(), "episode.csv")
	stdout := execute(t, "gridedge", "--config", cfg, "--steps", "4", "--policy", "constant",
		"--chart", chartPath, "--export", csvPath)

	assert.Contains(t, stdout, "step   4")
	assert.Contains(t, stdout, "constant")
	_, err := os.Stat(chartPath)
	assert.NoError(t, err)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 5, bytes.Count(data, []byte("\n")))
}

func TestBackfillCommand(t *testing.T) {
	dir := t.TempDir()
	histPath := filepath.Join(dir, "history.db")
	kpiPath := filepath.Join(dir, "kpi.db")

	hist, err := store.NewSQLiteStore(histPath)
	require.NoError(t, err)
	now := time.Now().UTC()
	rec, err := history.NewRecord("r1", history.KindCityStep, 1, now, coremetrics.CityStep{
		RunID:      "r1",
		Step:       1,
		DrivenKWh:  map[string]float64{"V_0": 1.5},
		ChargedKWh: map[string]float64{"V_1": 2},
	})
	require.NoError(t, err)
	require.NoError(t, hist.Append(context.Background(), rec))
	require.NoError(t, hist.Close())

	cfg := writeConfig(t, "history:\n  store:\n    type: sqlite\n    conf:\n      path: "+histPath+"\nkpi:\n  path: "+kpiPath+"\n")
	stdout := execute(t, "backfill", "--config", cfg)
	assert.Contains(t, stdout, "replayed 1 steps")

	ks, err := kpi.NewSQLiteStore(kpiPath)
	require.NoError(t, err)
	defer ks.Close()
	recs, err := ks.Query("V_0", now.Add(-24*time.Hour), now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 1.5, recs[0].DrivenKWh, 1e-9)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.html")
	require.NoError(t, writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "<html></html>")
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))

	boom := errors.New("render failed")
	err = writeFile(path, func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = writeFile(t.TempDir(), func(io.Writer) error { return nil })
	assert.Error(t, err, "a directory cannot be created as a file")
}
