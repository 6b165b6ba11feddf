package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/richard-senior/leaguesim/pkg/league"
)

// Snapshot is the state of a league season at one moment, enough to run a forecast offline
type Snapshot struct {
	League       string                 `json:"league"`
	TournamentID int                    `json:"tournament_id"`
	SeasonID     int                    `json:"season_id"`
	Standings    league.Standings       `json:"standings"`
	Fixtures     []league.Fixture       `json:"fixtures"`
	Colours      map[string]TeamColours `json:"colours,omitempty"`
	FetchedAt    time.Time              `json:"fetched_at"`
}

// Validate checks the standings tables
func (s *Snapshot) Validate() error {
	if err := s.Standings.Validate(); err != nil {
		return fmt.Errorf("snapshot %s: %w", s.League, err)
	}
	return nil
}

// CheckFixtures reports fixtures naming unknown teams. A forecast still runs
// with them and skips every season that reaches one.
func (s *Snapshot) CheckFixtures() error {
	if err := league.ValidateFixtures(s.Standings.Overall, s.Fixtures); err != nil {
		return fmt.Errorf("snapshot %s: %w", s.League, err)
	}
	return nil
}

func (s *Snapshot) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}

func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return &s, nil
}
