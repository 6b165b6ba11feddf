package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/richard-senior/leaguesim/internal/logger"
	"github.com/richard-senior/leaguesim/pkg/config"
	"github.com/richard-senior/leaguesim/pkg/datasource"
	"github.com/richard-senior/leaguesim/pkg/forecast"
	"github.com/richard-senior/leaguesim/pkg/report"
)

// tool runs are interactive so they get a shorter budget than the CLI
const defaultToolSeconds = 60

type ForecastLeagueArgs struct {
	TournamentID  int      `json:"tournament_id,omitempty" jsonschema:"SofaScore unique tournament id, e.g. 17 for the Premier League"`
	League        string   `json:"league,omitempty" jsonschema:"League name, matched loosely against the catalogue when no tournament id is given"`
	Snapshot      string   `json:"snapshot,omitempty" jsonschema:"Path of a saved snapshot file to forecast instead of fetching live data"`
	Iterations    int      `json:"iterations,omitempty" jsonschema:"Maximum number of simulated seasons"`
	Seconds       int      `json:"seconds,omitempty" jsonschema:"Time budget in seconds (default 60)"`
	TargetError   *float64 `json:"target_error,omitempty" jsonschema:"Stop once the mean standard error falls to this many percentage points"`
	Rho           *float64 `json:"rho,omitempty" jsonschema:"Dixon-Coles low score correlation, between -0.2 and 0.2"`
	AutoRho       bool     `json:"auto_rho,omitempty" jsonschema:"Fit rho by maximum likelihood instead of using the configured value"`
	HomeAdvantage float64  `json:"home_advantage,omitempty" jsonschema:"Multiplier applied to the home side's scoring rate"`
	Save          bool     `json:"save,omitempty" jsonschema:"Write report files and record the run in the history database"`
}

func ForecastLeagueTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "forecast_league",
		Description: `Forecasts the final table of a football league by simulating the remaining fixtures many times.
Returns, for every team, the probability of finishing in each position together with the most likely final table.
Identify the league by tournament_id, by name, or by a saved snapshot file.`,
	}
}

// config for one tool call: the global configuration with the call's overrides applied
func (a ForecastLeagueArgs) config() (*config.LeaguesimConfig, error) {
	cfg := config.Config.Clone()
	cfg.MaxDurationSeconds = defaultToolSeconds
	if a.Seconds > 0 {
		cfg.MaxDurationSeconds = a.Seconds
	}
	if a.Iterations > 0 {
		cfg.MaxIterations = a.Iterations
	}
	if a.TargetError != nil {
		cfg.TargetErrorPP = *a.TargetError
	}
	if a.Rho != nil {
		cfg.Rho = *a.Rho
	}
	if a.AutoRho {
		cfg.AutoRho = true
	}
	if a.HomeAdvantage > 0 {
		cfg.HomeAdvantage = a.HomeAdvantage
	}
	return cfg, config.ValidateConfig(cfg)
}

func (a ForecastLeagueArgs) snapshot(ctx context.Context, cfg *config.LeaguesimConfig) (*datasource.Snapshot, error) {
	if a.Snapshot != "" {
		return datasource.LoadSnapshot(a.Snapshot)
	}
	id := a.TournamentID
	if id == 0 {
		if a.League == "" {
			return nil, fmt.Errorf("one of tournament_id, league or snapshot is required")
		}
		l, ok := datasource.MatchLeague(a.League)
		if !ok {
			return nil, fmt.Errorf("no league matches %q, use list_leagues to see the catalogue", a.League)
		}
		id = l.ID
	}
	return forecast.Fetch(ctx, cfg, id)
}

// HandleForecastLeague runs a forecast and returns the markdown report
func HandleForecastLeague(ctx context.Context, req *mcp.CallToolRequest, args ForecastLeagueArgs) (*mcp.CallToolResult, any, error) {
	cfg, err := args.config()
	if err != nil {
		return toolError(err), nil, nil
	}
	snap, err := args.snapshot(ctx, cfg)
	if err != nil {
		return toolError(err), nil, nil
	}
	logger.Info("forecast_league called for", snap.League)

	s, err := forecast.Forecast(ctx, cfg, snap, forecast.Options{DryRun: !args.Save})
	if err != nil {
		return toolError(err), nil, nil
	}
	md, err := report.RenderMarkdown(s)
	if err != nil {
		return toolError(err), nil, nil
	}
	if s.ReportDir != "" {
		md += fmt.Sprintf("\n\nReports written to %s\n", s.ReportDir)
	}
	return toolText(md), nil, nil
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func toolError(err error) *mcp.CallToolResult {
	logger.Warn("tool call failed", err)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
