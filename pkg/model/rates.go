package model

import (
	"github.com/richard-senior/leaguesim/pkg/league"
)

// DefaultRate is used for a team without matches in the relevant split
const DefaultRate = 1.0

// TeamRates holds a team's goals per match overall and in each split.
// HasHome and HasAway are false when the team is missing from that split table.
type TeamRates struct {
	Home    float64 `json:"home"`
	Away    float64 `json:"away"`
	Global  float64 `json:"global"`
	HasHome bool    `json:"has_home"`
	HasAway bool    `json:"has_away"`
}

// ScoringRates maps team name to its scoring rates
type ScoringRates map[string]TeamRates

// RowRate is goals_for / matches_played, or DefaultRate for a team with no matches
func RowRate(row league.StandingsRow) float64 {
	if row.MatchesPlayed > 0 {
		return float64(row.GoalsFor) / float64(row.MatchesPlayed)
	}
	return DefaultRate
}

// EstimateRates derives the scoring rates from the three standings views.
// Teams appear only if they are in the overall table.
func EstimateRates(s league.Standings) ScoringRates {
	rates := make(ScoringRates, len(s.Overall))
	for _, row := range s.Overall {
		rates[row.Team] = TeamRates{Global: RowRate(row)}
	}
	for _, row := range s.Home {
		r, ok := rates[row.Team]
		if !ok {
			continue
		}
		r.Home = RowRate(row)
		r.HasHome = true
		rates[row.Team] = r
	}
	for _, row := range s.Away {
		r, ok := rates[row.Team]
		if !ok {
			continue
		}
		r.Away = RowRate(row)
		r.HasAway = true
		rates[row.Team] = r
	}
	return rates
}

// HomeRate falls back from the home split to the overall rate to DefaultRate
func (r ScoringRates) HomeRate(team string) float64 {
	tr, ok := r[team]
	switch {
	case !ok:
		return DefaultRate
	case tr.HasHome:
		return tr.Home
	default:
		return tr.Global
	}
}

// AwayRate falls back from the away split to the overall rate to DefaultRate
func (r ScoringRates) AwayRate(team string) float64 {
	tr, ok := r[team]
	switch {
	case !ok:
		return DefaultRate
	case tr.HasAway:
		return tr.Away
	default:
		return tr.Global
	}
}
