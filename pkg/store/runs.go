package store

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/richard-senior/leaguesim/pkg/league"
	"github.com/richard-senior/leaguesim/pkg/report"
	"github.com/richard-senior/leaguesim/pkg/simulation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTopTables is how many of the most frequent complete tables SaveRun keeps
const DefaultTopTables = 10

// Run is one stored forecast
type Run struct {
	ID            string  `column:"id" dbtype:"TEXT" primary:"true"`
	League        string  `column:"league" dbtype:"TEXT NOT NULL" index:"true"`
	TournamentID  int     `column:"tournament_id" dbtype:"INTEGER"`
	SeasonID      int     `column:"season_id" dbtype:"INTEGER"`
	StartedAt     int64   `column:"started_at" dbtype:"INTEGER NOT NULL" index:"true"`
	Teams         string  `column:"teams" dbtype:"TEXT NOT NULL"`
	Fixtures      int     `column:"fixtures" dbtype:"INTEGER"`
	Completed     int64   `column:"completed" dbtype:"INTEGER"`
	Requested     int64   `column:"requested" dbtype:"INTEGER"`
	Skipped       int64   `column:"skipped" dbtype:"INTEGER"`
	ElapsedMs     int64   `column:"elapsed_ms" dbtype:"INTEGER"`
	ErrorPP       float64 `column:"error_pp" dbtype:"REAL"` // negative when no estimate was possible
	StopReason    string  `column:"stop_reason" dbtype:"TEXT"`
	Rho           float64 `column:"rho" dbtype:"REAL"`
	RhoFitted     bool    `column:"rho_fitted" dbtype:"INTEGER"`
	RhoFallback   bool    `column:"rho_fallback" dbtype:"INTEGER"`
	HomeAdvantage float64 `column:"home_advantage" dbtype:"REAL"`
	Workers       int     `column:"workers" dbtype:"INTEGER"`
}

func (r *Run) GetTableName() string { return "runs" }

func (r *Run) GetPrimaryKey() map[string]any { return map[string]any{"id": r.ID} }

func (r *Run) BeforeSave() error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.League == "" {
		return fmt.Errorf("run %s has no league", r.ID)
	}
	if r.StartedAt == 0 {
		r.StartedAt = time.Now().Unix()
	}
	return nil
}

func (r *Run) AfterSave() error { return nil }

// Started is StartedAt as a time
func (r *Run) Started() time.Time {
	return time.Unix(r.StartedAt, 0)
}

// Elapsed is ElapsedMs as a duration
func (r *Run) Elapsed() time.Duration {
	return time.Duration(r.ElapsedMs) * time.Millisecond
}

// TeamNames decodes the team order the frequencies were counted in
func (r *Run) TeamNames() ([]string, error) {
	var teams []string
	if err := json.UnmarshalFromString(r.Teams, &teams); err != nil {
		return nil, fmt.Errorf("run %s has a corrupt team list: %w", r.ID, err)
	}
	return teams, nil
}

// PositionRecord is how often a team finished in a position during a run
type PositionRecord struct {
	RunID    string `column:"run_id" dbtype:"TEXT NOT NULL" primary:"true" fk:"runs.id"`
	Team     string `column:"team" dbtype:"TEXT NOT NULL" primary:"true"`
	Position int    `column:"position" dbtype:"INTEGER NOT NULL" primary:"true"`
	Count    int64  `column:"count" dbtype:"INTEGER"`
}

func (p *PositionRecord) GetTableName() string { return "run_positions" }

func (p *PositionRecord) GetPrimaryKey() map[string]any {
	return map[string]any{"run_id": p.RunID, "team": p.Team, "position": p.Position}
}

func (p *PositionRecord) BeforeSave() error {
	if p.RunID == "" || p.Position < 1 {
		return fmt.Errorf("position record for %s is incomplete", p.Team)
	}
	return nil
}

func (p *PositionRecord) AfterSave() error { return nil }

// TableRecord is one of the most frequent complete tables of a run
type TableRecord struct {
	RunID string `column:"run_id" dbtype:"TEXT NOT NULL" primary:"true" fk:"runs.id"`
	Rank  int    `column:"rank" dbtype:"INTEGER NOT NULL" primary:"true"`
	Table string `column:"final_table" dbtype:"TEXT NOT NULL"`
	Count int64  `column:"count" dbtype:"INTEGER"`
}

func (t *TableRecord) GetTableName() string { return "run_tables" }

func (t *TableRecord) GetPrimaryKey() map[string]any {
	return map[string]any{"run_id": t.RunID, "rank": t.Rank}
}

func (t *TableRecord) BeforeSave() error { return nil }

func (t *TableRecord) AfterSave() error { return nil }

func schema() []Persistable {
	return []Persistable{&Run{}, &PositionRecord{}, &TableRecord{}}
}

/////////////////////////////////////////////////////////////////////////
////// Runs
/////////////////////////////////////////////////////////////////////////

// StoredRun is a run read back with its counts
type StoredRun struct {
	Run         *Run
	Frequencies *simulation.PositionFrequency
	Tables      []simulation.TableCount
}

// SaveRun stores a finished forecast with its position counts and top tables in one transaction.
// A summary without an ID is given one.
func SaveRun(s *report.Summary, topTables int) (*Run, error) {
	res := s.Result
	if res == nil || res.Frequencies == nil {
		return nil, errors.New("summary has no simulation result")
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	teams, err := json.MarshalToString(res.Teams)
	if err != nil {
		return nil, fmt.Errorf("failed to encode team list: %w", err)
	}
	errPP := res.ErrorEstimate
	if math.IsInf(errPP, 0) || math.IsNaN(errPP) {
		errPP = -1
	}
	run := &Run{
		ID:            s.ID,
		League:        s.League,
		TournamentID:  s.TournamentID,
		SeasonID:      s.SeasonID,
		StartedAt:     s.StartedAt.Unix(),
		Teams:         teams,
		Fixtures:      s.Fixtures,
		Completed:     res.Completed,
		Requested:     res.Requested,
		Skipped:       res.Skipped,
		ElapsedMs:     res.Elapsed.Milliseconds(),
		ErrorPP:       errPP,
		StopReason:    string(res.Reason),
		Rho:           s.Rho.Rho,
		RhoFitted:     s.RhoFitted,
		RhoFallback:   s.Rho.Fallback,
		HomeAdvantage: s.HomeAdvantage,
		Workers:       res.Workers,
	}
	if s.StartedAt.IsZero() {
		run.StartedAt = 0
	}

	objects := []Persistable{run}
	for i, team := range res.Frequencies.Teams {
		for pos, count := range res.Frequencies.Counts[i] {
			if count == 0 {
				continue
			}
			objects = append(objects, &PositionRecord{RunID: run.ID, Team: team, Position: pos + 1, Count: count})
		}
	}
	if res.Tables != nil && topTables > 0 {
		for rank, tc := range res.Tables.Top(topTables) {
			encoded, err := json.MarshalToString(tc.Table)
			if err != nil {
				return nil, fmt.Errorf("failed to encode table: %w", err)
			}
			objects = append(objects, &TableRecord{RunID: run.ID, Rank: rank + 1, Table: encoded, Count: tc.Count})
		}
	}
	if err := BulkSave(objects); err != nil {
		return nil, fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return run, nil
}

// LoadRun reads a run and rebuilds its position frequencies
func LoadRun(id string) (*StoredRun, error) {
	run := &Run{ID: id}
	if err := FindByPrimaryKey(run); err != nil {
		return nil, err
	}
	teams, err := run.TeamNames()
	if err != nil {
		return nil, err
	}
	freq := simulation.NewPositionFrequency(teams)
	freq.Total = run.Completed
	index := make(map[string]int, len(teams))
	for i, t := range teams {
		index[t] = i
	}

	positions, err := FindWhere[PositionRecord]("run_id = ?", id)
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		i, ok := index[p.Team]
		if !ok || p.Position > len(teams) {
			return nil, fmt.Errorf("run %s has a position record for %s outside its table", id, p.Team)
		}
		freq.Counts[i][p.Position-1] = p.Count
	}

	records, err := FindWhere[TableRecord]("run_id = ? ORDER BY rank", id)
	if err != nil {
		return nil, err
	}
	tables := make([]simulation.TableCount, 0, len(records))
	for _, r := range records {
		var table league.FinalTable
		if err := json.UnmarshalFromString(r.Table, &table); err != nil {
			return nil, fmt.Errorf("run %s has a corrupt table at rank %d: %w", id, r.Rank, err)
		}
		tables = append(tables, simulation.TableCount{Table: table, Count: r.Count})
	}
	return &StoredRun{Run: run, Frequencies: freq, Tables: tables}, nil
}

// ListRuns returns the newest runs first, optionally for one league only
func ListRuns(leagueName string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	if leagueName == "" {
		return FindWhere[Run]("1 = 1 ORDER BY started_at DESC, id LIMIT ?", limit)
	}
	return FindWhere[Run]("league = ? ORDER BY started_at DESC, id LIMIT ?", leagueName, limit)
}

// DeleteRun removes a run and everything recorded against it
func DeleteRun(id string) error {
	if err := DeleteWhere(&PositionRecord{}, "run_id = ?", id); err != nil {
		return err
	}
	if err := DeleteWhere(&TableRecord{}, "run_id = ?", id); err != nil {
		return err
	}
	return Delete(&Run{ID: id})
}
