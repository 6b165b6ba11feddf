package main

import (
	"bytes"
	"flag"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/richard-senior/leaguesim/pkg/config"
	"github.com/richard-senior/leaguesim/pkg/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateFlagsOverrideOnlyWhatIsGiven(t *testing.T) {
	var f simulateFlags
	fs := newSimulateFlagSet(&f)
	require.NoError(t, fs.Parse([]string{"-iterations", "5000", "-rho", "0", "-auto-rho", "-seed", "9", "-no-save"}))

	cfg := config.DefaultConfig()
	require.NoError(t, f.apply(fs, cfg))
	assert.Equal(t, 5000, cfg.MaxIterations)
	assert.Equal(t, 0.0, cfg.Rho)
	assert.True(t, cfg.AutoRho)
	assert.Equal(t, uint64(9), cfg.Seed)
	assert.True(t, f.noSave)
	assert.Equal(t, defaultLeague, f.league)

	// untouched flags keep the configured values
	assert.Equal(t, 600, cfg.MaxDurationSeconds)
	assert.Equal(t, 1.25, cfg.HomeAdvantage)
}

func TestSimulateFlagsValidate(t *testing.T) {
	var f simulateFlags
	fs := newSimulateFlagSet(&f)
	require.NoError(t, fs.Parse([]string{"-home-advantage", "-1"}))
	assert.Error(t, f.apply(fs, config.DefaultConfig()))

	fs = newSimulateFlagSet(&f)
	fs.SetOutput(&bytes.Buffer{})
	assert.ErrorIs(t, fs.Parse([]string{"-h"}), flag.ErrHelp)
}

func TestResolveLeague(t *testing.T) {
	id, err := resolveLeague("35")
	require.NoError(t, err)
	assert.Equal(t, 35, id)

	id, err = resolveLeague("premier league")
	require.NoError(t, err)
	assert.Equal(t, 17, id)

	_, err = resolveLeague("-4")
	assert.Error(t, err)
	_, err = resolveLeague("Quidditch")
	assert.Error(t, err)
}

func TestProgressPrinter(t *testing.T) {
	var b bytes.Buffer
	progressPrinter(&b)(simulation.Progress{Completed: 10, Skipped: 1, Elapsed: 2 * time.Second, ErrorEstimate: math.Inf(1)})
	assert.Contains(t, b.String(), "10 seasons, 1 skipped, error n/a, 2 seconds")

	b.Reset()
	progressPrinter(&b)(simulation.Progress{Completed: 10, ErrorEstimate: 0.5})
	assert.Contains(t, b.String(), "error 0.5000 pp")
}

func TestSnapshotPath(t *testing.T) {
	when := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("assets", "snapshots", "Premier_League", "2025-04-02.json"), snapshotPath("assets", "Premier League", when))
}

func TestStopKeys(t *testing.T) {
	assert.True(t, isStopKey('q'))
	assert.True(t, isStopKey(3))
	assert.False(t, isStopKey('x'))
}

func TestCommandsAreRegistered(t *testing.T) {
	for _, name := range []string{"simulate", "fetch", "serve", "history", "leagues"} {
		assert.Contains(t, commands, name)
	}
}
