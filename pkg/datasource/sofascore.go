package datasource

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/richard-senior/leaguesim/pkg/league"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SofaScore marks colourless teams with this shade of blue
const defaultTeamColour = "#374df5"

// StandingsKind selects one of the three tables SofaScore publishes
type StandingsKind string

const (
	StandingsTotal StandingsKind = "total"
	StandingsHome  StandingsKind = "home"
	StandingsAway  StandingsKind = "away"
)

/////////////////////////////////////////////////////////////////////////
////// Wire types
/////////////////////////////////////////////////////////////////////////

type sofaTeam struct {
	Name       string `json:"name"`
	TeamColors struct {
		Primary   string `json:"primary"`
		Secondary string `json:"secondary"`
	} `json:"teamColors"`
}

type seasonsPayload struct {
	Seasons []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Year string `json:"year"`
	} `json:"seasons"`
}

type standingsPayload struct {
	Standings []struct {
		Rows []struct {
			Team          sofaTeam `json:"team"`
			Matches       int      `json:"matches"`
			Wins          int      `json:"wins"`
			Draws         int      `json:"draws"`
			Losses        int      `json:"losses"`
			ScoresFor     int      `json:"scoresFor"`
			ScoresAgainst int      `json:"scoresAgainst"`
			Points        int      `json:"points"`
		} `json:"rows"`
	} `json:"standings"`
}

type eventsPayload struct {
	Events []struct {
		ID     int `json:"id"`
		Status struct {
			Type string `json:"type"`
		} `json:"status"`
		HomeTeam       sofaTeam `json:"homeTeam"`
		AwayTeam       sofaTeam `json:"awayTeam"`
		StartTimestamp int64    `json:"startTimestamp"`
	} `json:"events"`
}

// TeamColours are the kit colours used to tint report rows, empty when unknown
type TeamColours struct {
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
}

/////////////////////////////////////////////////////////////////////////
////// Parsing
/////////////////////////////////////////////////////////////////////////

// ParseCurrentSeason returns the highest season id listed
func ParseCurrentSeason(data []byte) (int, error) {
	var p seasonsPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, fmt.Errorf("failed to decode seasons: %w", err)
	}
	if len(p.Seasons) == 0 {
		return 0, fmt.Errorf("no seasons listed")
	}
	best := p.Seasons[0].ID
	for _, s := range p.Seasons[1:] {
		if s.ID > best {
			best = s.ID
		}
	}
	return best, nil
}

// ParseStandings reads the first standings group into a table
func ParseStandings(data []byte) (league.StandingsTable, error) {
	var p standingsPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode standings: %w", err)
	}
	if len(p.Standings) == 0 {
		return nil, fmt.Errorf("no standings in response")
	}
	rows := p.Standings[0].Rows
	table := make(league.StandingsTable, 0, len(rows))
	for _, r := range rows {
		table = append(table, league.StandingsRow{
			Team:          r.Team.Name,
			MatchesPlayed: r.Matches,
			Wins:          r.Wins,
			Draws:         r.Draws,
			Losses:        r.Losses,
			GoalsFor:      r.ScoresFor,
			GoalsAgainst:  r.ScoresAgainst,
			Points:        r.Points,
		})
	}
	return table, nil
}

// ParseTeamColours collects kit colours from a standings response
func ParseTeamColours(data []byte) (map[string]TeamColours, error) {
	var p standingsPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode standings: %w", err)
	}
	ret := map[string]TeamColours{}
	for _, group := range p.Standings {
		for _, r := range group.Rows {
			if r.Team.Name == "" {
				continue
			}
			ret[r.Team.Name] = TeamColours{
				Primary:   colour(r.Team.TeamColors.Primary),
				Secondary: colour(r.Team.TeamColors.Secondary),
			}
		}
	}
	return ret, nil
}

func colour(c string) string {
	if c == defaultTeamColour {
		return ""
	}
	return c
}

// ParseEvents returns the not yet started fixtures on a page and the raw event count
func ParseEvents(data []byte) ([]league.Fixture, int, error) {
	var p eventsPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, 0, fmt.Errorf("failed to decode events: %w", err)
	}
	var fixtures []league.Fixture
	for _, e := range p.Events {
		if e.Status.Type != "notstarted" {
			continue
		}
		fixtures = append(fixtures, league.Fixture{
			HomeTeam: e.HomeTeam.Name,
			AwayTeam: e.AwayTeam.Name,
			Kickoff:  time.Unix(e.StartTimestamp, 0).UTC(),
		})
	}
	return fixtures, len(p.Events), nil
}
