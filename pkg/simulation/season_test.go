package simulation

import (
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/richard-senior/leaguesim/pkg/league"
	"github.com/richard-senior/leaguesim/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedScore returns the same scoreline for every match
type fixedScore struct {
	home, away int
	calls      atomic.Int64
}

func (f *fixedScore) SimulateMatch(_ *rand.Rand, _, _ string) (int, int, error) {
	f.calls.Add(1)
	return f.home, f.away, nil
}

type failingSim struct{}

func (failingSim) SimulateMatch(_ *rand.Rand, home, away string) (int, int, error) {
	return 0, 0, &model.NumericalError{Reason: "forced"}
}

func row(team string, w, d, l, gf, ga int) league.StandingsRow {
	return league.StandingsRow{
		Team:          team,
		MatchesPlayed: w + d + l,
		Wins:          w,
		Draws:         d,
		Losses:        l,
		GoalsFor:      gf,
		GoalsAgainst:  ga,
		Points:        3*w + d,
	}
}

func fixture(home, away string) league.Fixture {
	return league.Fixture{HomeTeam: home, AwayTeam: away}
}

func newDixonColes(t *testing.T, table league.StandingsTable) *model.DixonColes {
	t.Helper()
	m, err := model.NewDixonColes(model.EstimateRates(league.Standings{Overall: table}), model.DefaultOptions())
	require.NoError(t, err)
	return m
}

func TestSimulateSeasonWithoutFixturesRanksCurrentTable(t *testing.T) {
	table := league.StandingsTable{
		row("C", 1, 0, 1, 2, 2),
		row("A", 2, 0, 0, 4, 1),
		row("B", 1, 0, 1, 3, 3),
	}
	sim := &fixedScore{}

	final, err := SimulateSeason(nil, table, nil, sim)
	require.NoError(t, err)
	assert.Equal(t, league.FinalTable{"A", "B", "C"}, final)
	assert.Equal(t, int64(0), sim.calls.Load())
}

func TestSimulateSeasonAppliesResults(t *testing.T) {
	table := league.StandingsTable{
		row("A", 0, 0, 0, 0, 0),
		row("B", 0, 0, 0, 0, 0),
		row("C", 0, 0, 0, 0, 0),
	}
	// home side always wins 2-0
	sim := &fixedScore{home: 2, away: 0}
	final, err := SimulateSeason(nil, table, []league.Fixture{fixture("C", "A"), fixture("C", "B"), fixture("B", "A")}, sim)
	require.NoError(t, err)
	assert.Equal(t, league.FinalTable{"C", "B", "A"}, final)
	assert.Equal(t, int64(3), sim.calls.Load())
}

func TestSimulateSeasonIsReproducibleForSeed(t *testing.T) {
	table := league.StandingsTable{
		row("A", 1, 0, 1, 3, 2),
		row("B", 1, 1, 0, 2, 1),
		row("C", 0, 1, 1, 1, 3),
		row("D", 1, 0, 1, 2, 2),
	}
	fixtures := []league.Fixture{fixture("A", "B"), fixture("C", "D"), fixture("B", "C"), fixture("D", "A")}
	m := newDixonColes(t, table)

	run := func() []league.FinalTable {
		rng := rand.New(rand.NewPCG(42, 1))
		var out []league.FinalTable
		for i := 0; i < 20; i++ {
			final, err := SimulateSeason(rng, table, fixtures, m)
			require.NoError(t, err)
			out = append(out, final)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestCompletedTeamsAreFixed(t *testing.T) {
	// three teams play four matches each; A is done
	table := league.StandingsTable{
		row("B", 1, 0, 1, 2, 2),
		row("A", 1, 0, 3, 2, 6),
		row("C", 0, 0, 2, 0, 3),
	}
	// A-B is skipped because A has no matches left
	sim := &fixedScore{home: 1, away: 0}
	s, err := NewSeason(table, []league.Fixture{fixture("A", "B"), fixture("B", "C"), fixture("C", "B")}, sim)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, s.Completed())

	order, err := s.Simulate(nil)
	require.NoError(t, err)
	assert.Equal(t, league.FinalTable{"B", "C", "A"}, s.Names(order))
	assert.Equal(t, int64(2), sim.calls.Load(), "fixture involving a completed team is skipped")
}

func TestCompletedTeamsKeepRelativeOrder(t *testing.T) {
	// four teams, six matches each; A and B are finished level on every tiebreak
	table := league.StandingsTable{
		row("C", 0, 0, 4, 0, 4),
		row("B", 3, 0, 3, 6, 6),
		row("A", 3, 0, 3, 6, 6),
		row("D", 0, 0, 4, 0, 4),
	}
	s, err := NewSeason(table, []league.Fixture{fixture("C", "D"), fixture("D", "C")}, &fixedScore{home: 3, away: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, s.Completed())

	order, err := s.Simulate(nil)
	require.NoError(t, err)
	final := s.Names(order)
	assert.Less(t, final.Position("B"), final.Position("A"))
}

func TestUnknownTeamFailsIteration(t *testing.T) {
	table := league.StandingsTable{row("A", 0, 0, 0, 0, 0), row("B", 0, 0, 0, 0, 0)}
	_, err := SimulateSeason(nil, table, []league.Fixture{fixture("A", "Ghost")}, &fixedScore{})

	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "Ghost", inputErr.Fixture.AwayTeam)
}

func TestMatchErrorsArePropagated(t *testing.T) {
	table := league.StandingsTable{row("A", 0, 0, 0, 0, 0), row("B", 0, 0, 0, 0, 0)}
	_, err := SimulateSeason(nil, table, []league.Fixture{fixture("A", "B")}, failingSim{})

	var numErr *model.NumericalError
	assert.True(t, errors.As(err, &numErr))
}

func TestNewSeasonRejectsBadTables(t *testing.T) {
	_, err := NewSeason(nil, nil, &fixedScore{})
	assert.Error(t, err)

	_, err = NewSeason(league.StandingsTable{row("A", 0, 0, 0, 0, 0), row("A", 0, 0, 0, 0, 0)}, nil, &fixedScore{})
	assert.Error(t, err)
}
