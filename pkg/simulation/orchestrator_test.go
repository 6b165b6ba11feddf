package simulation

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"runtime"
	"testing"
	"time"

	"github.com/richard-senior/leaguesim/pkg/league"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshTable(teams ...string) league.StandingsTable {
	ret := make(league.StandingsTable, len(teams))
	for i, t := range teams {
		ret[i] = row(t, 0, 0, 0, 0, 0)
	}
	return ret
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Workers = 2
	opts.Seed = 1234
	opts.MaxDuration = time.Minute
	opts.TargetError = 0
	return opts
}

func assertFrequenciesConsistent(t *testing.T, res *Result) {
	t.Helper()
	assert.Equal(t, res.Completed, res.Frequencies.Total)
	for _, team := range res.Teams {
		var sum int64
		for pos := 1; pos <= len(res.Teams); pos++ {
			sum += res.Frequencies.Count(team, pos)
		}
		assert.Equal(t, res.Completed, sum, "team %s", team)
	}
	for pos := 1; pos <= len(res.Teams); pos++ {
		var sum int64
		for _, team := range res.Teams {
			sum += res.Frequencies.Count(team, pos)
		}
		assert.Equal(t, res.Completed, sum, "position %d", pos)
	}
}

func TestRunWithoutFixturesReturnsCurrentStandings(t *testing.T) {
	table := league.StandingsTable{
		row("B", 1, 0, 1, 3, 3),
		row("A", 2, 0, 0, 4, 1),
	}
	season, err := NewSeason(table, nil, &fixedScore{})
	require.NoError(t, err)

	res, err := Run(context.Background(), season, testOptions())
	require.NoError(t, err)
	assert.Equal(t, StopNoFixtures, res.Reason)
	assert.Equal(t, int64(1), res.Completed)
	assert.Equal(t, 1.0, res.Probability("A", 1))
	assert.Equal(t, 1.0, res.Probability("B", 2))

	final, share := res.MostLikelyTable()
	assert.Equal(t, []string{"A", "B"}, []string(final))
	assert.Equal(t, 1.0, share)
}

func TestRunStopsAtIterationCap(t *testing.T) {
	table := freshTable("A", "B", "C", "D")
	fixtures := []league.Fixture{fixture("A", "B"), fixture("C", "D"), fixture("B", "C"), fixture("D", "A")}
	season, err := NewSeason(table, fixtures, newDixonColes(t, table))
	require.NoError(t, err)

	opts := testOptions()
	opts.MaxIterations = 100
	res, err := Run(context.Background(), season, opts)
	require.NoError(t, err)

	assert.Equal(t, StopIterationCap, res.Reason)
	assert.Equal(t, int64(100), res.Completed)
	assert.Equal(t, int64(0), res.Skipped)
	assert.Equal(t, 2, res.Workers)
	assert.Equal(t, int64(100), res.Tables.Total())
	assertFrequenciesConsistent(t, res)
}

func TestThreeTeamScenario(t *testing.T) {
	// C has no fixtures left and sits on zero points
	table := freshTable("A", "B", "C")
	m := newDixonColes(t, table)
	season, err := NewSeason(table, []league.Fixture{fixture("A", "B")}, m)
	require.NoError(t, err)

	opts := testOptions()
	opts.MaxIterations = 20_000
	res, err := Run(context.Background(), season, opts)
	require.NoError(t, err)
	require.Equal(t, int64(20_000), res.Completed)
	assertFrequenciesConsistent(t, res)

	assert.Equal(t, 0.0, res.Probability("C", 1))

	outcome, err := m.MatchOutcome("A", "B")
	require.NoError(t, err)
	// C is last exactly when A and B draw
	assert.InDelta(t, outcome.Draw, res.Probability("C", 3), 0.02)
	assert.InDelta(t, outcome.HomeWin, res.Probability("A", 1), 0.02)
}

func TestCompletedTeamHoldsItsPosition(t *testing.T) {
	// A has won all four of its matches
	table := league.StandingsTable{
		row("A", 4, 0, 0, 8, 0),
		row("B", 0, 0, 2, 0, 4),
		row("C", 0, 0, 2, 0, 4),
	}
	season, err := NewSeason(table, []league.Fixture{fixture("B", "C"), fixture("C", "B")}, newDixonColes(t, table))
	require.NoError(t, err)

	opts := testOptions()
	opts.MaxIterations = 500
	res, err := Run(context.Background(), season, opts)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Probability("A", 1))
	assert.Equal(t, 0.0, res.Probability("B", 1))
	assertFrequenciesConsistent(t, res)
}

func TestRunStopsAtTimeout(t *testing.T) {
	table := freshTable("A", "B", "C", "D")
	season, err := NewSeason(table, []league.Fixture{fixture("A", "B"), fixture("C", "D")}, newDixonColes(t, table))
	require.NoError(t, err)

	opts := testOptions()
	opts.MaxIterations = 1_000_000_000
	opts.MaxDuration = 300 * time.Millisecond
	opts.ErrorInterval = time.Hour

	start := time.Now()
	res, err := Run(context.Background(), season, opts)
	require.NoError(t, err)
	assert.Equal(t, StopTimeout, res.Reason)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Greater(t, res.Completed, int64(0))
	assertFrequenciesConsistent(t, res)
}

func TestRunStopsOnConvergence(t *testing.T) {
	table := freshTable("A", "B", "C")
	season, err := NewSeason(table, []league.Fixture{fixture("A", "B"), fixture("B", "C")}, newDixonColes(t, table))
	require.NoError(t, err)

	var progress []Progress
	opts := testOptions()
	opts.MaxIterations = 1_000_000_000
	opts.TargetError = 5
	opts.ErrorInterval = 10 * time.Millisecond
	opts.Progress = func(p Progress) { progress = append(progress, p) }

	res, err := Run(context.Background(), season, opts)
	require.NoError(t, err)
	assert.Equal(t, StopConvergence, res.Reason)
	assert.LessOrEqual(t, res.ErrorEstimate, 5.0)
	require.NotEmpty(t, progress)
	assert.LessOrEqual(t, progress[len(progress)-1].ErrorEstimate, 5.0)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	table := freshTable("A", "B", "C")
	season, err := NewSeason(table, []league.Fixture{fixture("A", "B")}, newDixonColes(t, table))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	opts := testOptions()
	opts.MaxIterations = 1_000_000_000
	opts.ErrorInterval = time.Hour
	res, err := Run(ctx, season, opts)
	require.NoError(t, err)
	assert.Equal(t, StopUser, res.Reason)
	assertFrequenciesConsistent(t, res)
}

func TestRunSkipsBrokenIterations(t *testing.T) {
	table := freshTable("A", "B")
	season, err := NewSeason(table, []league.Fixture{fixture("A", "Nobody")}, &fixedScore{})
	require.NoError(t, err)

	opts := testOptions()
	opts.MaxIterations = 50
	res, err := Run(context.Background(), season, opts)
	require.NoError(t, err)
	assert.Equal(t, StopIterationCap, res.Reason)
	assert.Equal(t, int64(0), res.Completed)
	assert.Equal(t, int64(50), res.Skipped)
	assert.NotEmpty(t, res.SkipErrors)
	assert.LessOrEqual(t, len(res.SkipErrors), maxRecordedSkips)
	assert.True(t, math.IsInf(res.ErrorEstimate, 1))

	final, share := res.MostLikelyTable()
	assert.Nil(t, final)
	assert.Equal(t, 0.0, share)
}

type panickingSim struct{}

func (panickingSim) SimulateMatch(_ *rand.Rand, _, _ string) (int, int, error) {
	panic("model blew up")
}

func TestRunSurvivesPanickingModel(t *testing.T) {
	season, err := NewSeason(freshTable("A", "B"), []league.Fixture{fixture("A", "B")}, panickingSim{})
	require.NoError(t, err)

	opts := testOptions()
	opts.MaxIterations = 20
	res, err := Run(context.Background(), season, opts)
	require.NoError(t, err)
	assert.Equal(t, StopIterationCap, res.Reason)
	assert.Equal(t, int64(20), res.Skipped)
	require.NotEmpty(t, res.SkipErrors)
	assert.Contains(t, res.SkipErrors[0], "model blew up")
}

func TestRunRejectsBadOptions(t *testing.T) {
	season, err := NewSeason(freshTable("A", "B"), []league.Fixture{fixture("A", "B")}, &fixedScore{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero iterations", func(o *Options) { o.MaxIterations = 0 }},
		{"zero duration", func(o *Options) { o.MaxDuration = 0 }},
		{"negative target", func(o *Options) { o.TargetError = -1 }},
		{"zero interval", func(o *Options) { o.ErrorInterval = 0 }},
		{"negative workers", func(o *Options) { o.Workers = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.mutate(&opts)
			_, err := Run(context.Background(), season, opts)
			assert.True(t, errors.Is(err, ErrInvalidOptions), "got %v", err)
		})
	}

	_, err = Run(context.Background(), nil, testOptions())
	assert.True(t, errors.Is(err, ErrInvalidOptions))
}

func TestWorkerCount(t *testing.T) {
	n, err := Options{Workers: 3}.WorkerCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = Options{}.WorkerCount()
	if runtime.NumCPU() < 2 {
		assert.True(t, errors.Is(err, ErrResourceExhausted))
	} else {
		require.NoError(t, err)
		assert.Equal(t, runtime.NumCPU()-1, n)
	}
}

func TestStopReasonDescriptions(t *testing.T) {
	for _, r := range []StopReason{StopIterationCap, StopTimeout, StopConvergence, StopUser, StopNoFixtures} {
		assert.NotEqual(t, string(r), r.Describe())
	}
	assert.Equal(t, "other", StopReason("other").Describe())
}
