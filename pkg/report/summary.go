package report

import (
	"fmt"
	"time"

	"github.com/richard-senior/leaguesim/pkg/datasource"
	"github.com/richard-senior/leaguesim/pkg/league"
	"github.com/richard-senior/leaguesim/pkg/model"
	"github.com/richard-senior/leaguesim/pkg/simulation"
)

// Summary is everything a finished forecast reports on
type Summary struct {
	ID            string                            `json:"id"`
	League        string                            `json:"league"`
	TournamentID  int                               `json:"tournament_id"`
	SeasonID      int                               `json:"season_id"`
	Standings     league.StandingsTable             `json:"standings"`
	Fixtures      int                               `json:"fixtures"`
	Colours       map[string]datasource.TeamColours `json:"colours,omitempty"`
	Result        *simulation.Result                `json:"result"`
	Rho           model.RhoEstimate                 `json:"rho"`
	RhoFitted     bool                              `json:"rho_fitted"`
	HomeAdvantage float64                           `json:"home_advantage"`
	StartedAt     time.Time                         `json:"started_at"`
	ReportDir     string                            `json:"report_dir,omitempty"`
}

// TeamRow is one line of the probability table
type TeamRow struct {
	Team          string
	Points        int
	Played        int
	SeasonLength  int
	Probabilities []float64 // index 0 is first place
	Modal         int
	Colour        string
	TextColour    string
}

// Rows lists teams in current standings order
func (s *Summary) Rows() []TeamRow {
	total := league.MatchesPerTeam(len(s.Standings))
	rows := make([]TeamRow, 0, len(s.Standings))
	for _, r := range s.Standings {
		colour := s.primaryColour(r.Team)
		row := TeamRow{
			Team:         r.Team,
			Points:       r.Points,
			Played:       r.MatchesPlayed,
			SeasonLength: total,
			Colour:       colour,
			TextColour:   ContrastingText(colour),
		}
		if s.Result != nil {
			row.Probabilities = s.Result.Frequencies.Distribution(r.Team)
			row.Modal = s.Result.Frequencies.ModalPosition(r.Team)
		}
		rows = append(rows, row)
	}
	return rows
}

func (s *Summary) primaryColour(team string) string {
	if c, ok := s.Colours[team]; ok && validHex(c.Primary) {
		return c.Primary
	}
	return TeamColour(team)
}

// ModalRow is a team's most frequent finishing position
type ModalRow struct {
	Position    int
	Team        string
	Probability float64
}

// Classification is the modal position table, sorted by position then likelihood
func (s *Summary) Classification() []ModalRow {
	if s.Result == nil {
		return nil
	}
	freq := s.Result.Frequencies
	teams := freq.ModalTable()
	ret := make([]ModalRow, len(teams))
	for i, t := range teams {
		pos := freq.ModalPosition(t)
		ret[i] = ModalRow{Position: i + 1, Team: t, Probability: freq.Probability(t, pos)}
	}
	return ret
}

// RhoSource says where the correlation parameter came from
func (s *Summary) RhoSource() string {
	switch {
	case !s.RhoFitted:
		return "fixed"
	case s.Rho.Fallback:
		return fmt.Sprintf("default, fit failed: %s", s.Rho.Reason)
	default:
		return fmt.Sprintf("fitted over %d matches in %d iterations", s.Rho.Matches, s.Rho.Iterations)
	}
}

// Title is the heading used by every rendition
func (s *Summary) Title() string {
	if s.SeasonID > 0 {
		return fmt.Sprintf("%s (season %d)", s.League, s.SeasonID)
	}
	return s.League
}
