package simulation

import (
	"fmt"
	"math/rand/v2"

	"github.com/richard-senior/leaguesim/pkg/league"
)

// MatchSimulator samples a scoreline for one fixture
type MatchSimulator interface {
	SimulateMatch(rng *rand.Rand, home, away string) (int, int, error)
}

// Season is the season-to-date state prepared once per run.
// Simulate never modifies it, so one Season serves every worker.
type Season struct {
	teams      []string
	base       []league.Tally
	completed  []bool
	locked     []int // completed teams in their fixed rank order
	fixtures   []league.Fixture
	fixtureIdx [][2]int
	sim        MatchSimulator
}

// NewSeason indexes the table and fixtures.
// Teams that have played every match of the double round robin are fixed in place.
func NewSeason(table league.StandingsTable, fixtures []league.Fixture, sim MatchSimulator) (*Season, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("standings table is empty")
	}
	index := make(map[string]int, len(table))
	for i, row := range table {
		if _, dup := index[row.Team]; dup {
			return nil, fmt.Errorf("team %s appears more than once in the standings", row.Team)
		}
		index[row.Team] = i
	}

	s := &Season{
		teams:      table.Teams(),
		base:       make([]league.Tally, len(table)),
		completed:  make([]bool, len(table)),
		fixtures:   fixtures,
		fixtureIdx: make([][2]int, len(fixtures)),
		sim:        sim,
	}

	full := league.MatchesPerTeam(len(table))
	var completedTallies []league.Tally
	var completedIdx []int
	for i, row := range table {
		s.base[i] = row.Tally()
		if full > 0 && row.MatchesPlayed >= full {
			s.completed[i] = true
			completedTallies = append(completedTallies, s.base[i])
			completedIdx = append(completedIdx, i)
		}
	}
	for _, j := range league.RankOrder(completedTallies) {
		s.locked = append(s.locked, completedIdx[j])
	}

	for i, f := range fixtures {
		h, ok := index[f.HomeTeam]
		if !ok {
			h = -1
		}
		a, ok := index[f.AwayTeam]
		if !ok {
			a = -1
		}
		s.fixtureIdx[i] = [2]int{h, a}
	}
	return s, nil
}

func (s *Season) Teams() []string {
	return s.teams
}

func (s *Season) Fixtures() []league.Fixture {
	return s.fixtures
}

// Completed lists the teams whose season is over, in their fixed order
func (s *Season) Completed() []string {
	ret := make([]string, len(s.locked))
	for i, idx := range s.locked {
		ret[i] = s.teams[idx]
	}
	return ret
}

// Simulate plays every open fixture once and returns team indexes in final rank order.
// With no fixtures to play rng is never touched and may be nil.
func (s *Season) Simulate(rng *rand.Rand) ([]int, error) {
	tallies := make([]league.Tally, len(s.base))
	copy(tallies, s.base)

	for i, f := range s.fixtures {
		h, a := s.fixtureIdx[i][0], s.fixtureIdx[i][1]
		switch {
		case h < 0 || a < 0:
			return nil, &InputError{Fixture: f, Reason: "references a team missing from the standings"}
		case h == a:
			return nil, &InputError{Fixture: f, Reason: "has the same team on both sides"}
		case s.completed[h] || s.completed[a]:
			continue
		}
		hg, ag, err := s.sim.SimulateMatch(rng, f.HomeTeam, f.AwayTeam)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", f, err)
		}
		tallies[h].Record(hg, ag)
		tallies[a].Record(ag, hg)
	}

	// completed tallies never change and the sort is stable, so completed teams
	// always come out in locked order
	return league.RankOrder(tallies), nil
}

// SimulateSeason plays out the remaining fixtures once and returns the final table
func SimulateSeason(rng *rand.Rand, table league.StandingsTable, fixtures []league.Fixture, sim MatchSimulator) (league.FinalTable, error) {
	s, err := NewSeason(table, fixtures, sim)
	if err != nil {
		return nil, err
	}
	order, err := s.Simulate(rng)
	if err != nil {
		return nil, err
	}
	return s.Names(order), nil
}

// Names converts a rank order of indexes into team names
func (s *Season) Names(order []int) league.FinalTable {
	ret := make(league.FinalTable, len(order))
	for i, idx := range order {
		ret[i] = s.teams[idx]
	}
	return ret
}
