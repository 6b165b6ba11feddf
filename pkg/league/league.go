package league

/**
* Data model shared by the data source, the simulation core and the reports.
* Team names are the only key; they must agree across the overall, home and
* away tables and the fixture list.
 */

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// StandingsRow is one team's season-to-date record
type StandingsRow struct {
	Team          string `json:"team"`
	MatchesPlayed int    `json:"matches_played"`
	Wins          int    `json:"wins"`
	Draws         int    `json:"draws"`
	Losses        int    `json:"losses"`
	GoalsFor      int    `json:"goals_for"`
	GoalsAgainst  int    `json:"goals_against"`
	Points        int    `json:"points"`
}

func (r StandingsRow) GoalDifference() int {
	return r.GoalsFor - r.GoalsAgainst
}

// Tally returns the parts of the row that the ranking rule looks at
func (r StandingsRow) Tally() Tally {
	return Tally{
		Points:        r.Points,
		GoalsFor:      r.GoalsFor,
		GoalsAgainst:  r.GoalsAgainst,
		MatchesPlayed: r.MatchesPlayed,
	}
}

// Validate checks the row is internally consistent
func (r StandingsRow) Validate() error {
	if r.Team == "" {
		return fmt.Errorf("standings row has an empty team name")
	}
	if r.MatchesPlayed < 0 || r.Wins < 0 || r.Draws < 0 || r.Losses < 0 ||
		r.GoalsFor < 0 || r.GoalsAgainst < 0 || r.Points < 0 {
		return fmt.Errorf("standings row for %s has negative values", r.Team)
	}
	if r.MatchesPlayed != r.Wins+r.Draws+r.Losses {
		return fmt.Errorf("standings row for %s: matches played %d != wins+draws+losses %d",
			r.Team, r.MatchesPlayed, r.Wins+r.Draws+r.Losses)
	}
	return nil
}

// StandingsTable holds one row per team in a league season
type StandingsTable []StandingsRow

// Teams returns the team names in table order
func (t StandingsTable) Teams() []string {
	ret := make([]string, len(t))
	for i, row := range t {
		ret[i] = row.Team
	}
	return ret
}

// Index maps team name to its position in the slice
func (t StandingsTable) Index() map[string]int {
	ret := make(map[string]int, len(t))
	for i, row := range t {
		ret[row.Team] = i
	}
	return ret
}

// Validate checks every row and rejects duplicate team names
func (t StandingsTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("standings table is empty")
	}
	seen := make(map[string]bool, len(t))
	var errs []error
	for _, row := range t {
		if err := row.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[row.Team] {
			errs = append(errs, fmt.Errorf("team %s appears more than once", row.Team))
		}
		seen[row.Team] = true
	}
	return errors.Join(errs...)
}

// Standings bundles the three parallel views of a league table.
// Home and Away may be empty when the source only offers the overall table.
type Standings struct {
	Overall StandingsTable `json:"overall"`
	Home    StandingsTable `json:"home"`
	Away    StandingsTable `json:"away"`
}

// Validate checks the overall table and that the split tables only name known teams
func (s Standings) Validate() error {
	if err := s.Overall.Validate(); err != nil {
		return err
	}
	known := s.Overall.Index()
	for _, split := range []StandingsTable{s.Home, s.Away} {
		for _, row := range split {
			if _, ok := known[row.Team]; !ok {
				return fmt.Errorf("split table references unknown team %s", row.Team)
			}
		}
	}
	return nil
}

// Fixture is one unplayed match
type Fixture struct {
	HomeTeam string    `json:"home_team"`
	AwayTeam string    `json:"away_team"`
	Kickoff  time.Time `json:"kickoff"`
}

func (f Fixture) String() string {
	return f.HomeTeam + " vs " + f.AwayTeam
}

// ValidateFixtures reports fixtures naming teams missing from the table or a team playing itself
func ValidateFixtures(table StandingsTable, fixtures []Fixture) error {
	known := table.Index()
	var errs []error
	for _, f := range fixtures {
		if f.HomeTeam == f.AwayTeam {
			errs = append(errs, fmt.Errorf("fixture %s has the same team on both sides", f))
			continue
		}
		if _, ok := known[f.HomeTeam]; !ok {
			errs = append(errs, fmt.Errorf("fixture %s references unknown team %s", f, f.HomeTeam))
		}
		if _, ok := known[f.AwayTeam]; !ok {
			errs = append(errs, fmt.Errorf("fixture %s references unknown team %s", f, f.AwayTeam))
		}
	}
	return errors.Join(errs...)
}

// FinalTable is a ranked list of team names, rank 1 first
type FinalTable []string

// Position returns the 1-based rank of team or 0 when absent
func (f FinalTable) Position(team string) int {
	for i, name := range f {
		if name == team {
			return i + 1
		}
	}
	return 0
}

// MatchesPerTeam is the length of a double round robin season
func MatchesPerTeam(teams int) int {
	if teams < 2 {
		return 0
	}
	return 2 * (teams - 1)
}

// Tally is a running record used while simulating
type Tally struct {
	Points        int
	GoalsFor      int
	GoalsAgainst  int
	MatchesPlayed int
}

func (t Tally) GoalDifference() int {
	return t.GoalsFor - t.GoalsAgainst
}

// Ahead reports whether t ranks strictly above o: points, then goal difference, then goals scored
func (t Tally) Ahead(o Tally) bool {
	if t.Points != o.Points {
		return t.Points > o.Points
	}
	if gd, ogd := t.GoalDifference(), o.GoalDifference(); gd != ogd {
		return gd > ogd
	}
	return t.GoalsFor > o.GoalsFor
}

// Record adds one result to the tally and awards 3/1/0 points
func (t *Tally) Record(scored, conceded int) {
	t.GoalsFor += scored
	t.GoalsAgainst += conceded
	t.MatchesPlayed++
	switch {
	case scored > conceded:
		t.Points += 3
	case scored == conceded:
		t.Points++
	}
}

// RankOrder returns indexes into tallies sorted by the ranking rule.
// Remaining ties keep input order.
func RankOrder(tallies []Tally) []int {
	order := make([]int, len(tallies))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tallies[order[a]].Ahead(tallies[order[b]])
	})
	return order
}

// Rank sorts the table by the ranking rule without simulating anything
func Rank(table StandingsTable) FinalTable {
	tallies := make([]Tally, len(table))
	for i, row := range table {
		tallies[i] = row.Tally()
	}
	order := RankOrder(tallies)
	ret := make(FinalTable, len(order))
	for i, idx := range order {
		ret[i] = table[idx].Team
	}
	return ret
}
