package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richard-senior/leaguesim/internal/logger"
	"github.com/richard-senior/leaguesim/pkg/config"
	"github.com/richard-senior/leaguesim/pkg/datasource"
	"github.com/richard-senior/leaguesim/pkg/model"
	"github.com/richard-senior/leaguesim/pkg/report"
	"github.com/richard-senior/leaguesim/pkg/simulation"
	"github.com/richard-senior/leaguesim/pkg/store"
)

// Options are per call settings that do not belong in the configuration
type Options struct {
	Progress func(simulation.Progress)
	// skip report files and the run database regardless of configuration
	DryRun bool
}

// ModelOptions maps the configuration onto the match model
func ModelOptions(cfg *config.LeaguesimConfig) model.Options {
	return model.Options{
		Rho:           cfg.Rho,
		HomeAdvantage: cfg.HomeAdvantage,
		MaxGoals:      cfg.MaxGoals,
		MaxLambda:     cfg.PoissonMaxLambda,
		LambdaStep:    cfg.PoissonLambdaStep,
		ExtraGoals:    cfg.PoissonExtraGoals,
	}
}

// SimulationOptions maps the configuration onto the orchestrator
func SimulationOptions(cfg *config.LeaguesimConfig) simulation.Options {
	return simulation.Options{
		MaxIterations: int64(cfg.MaxIterations),
		MaxDuration:   cfg.MaxDuration(),
		TargetError:   cfg.TargetErrorPP,
		ErrorInterval: cfg.ErrorInterval(),
		Workers:       cfg.Workers,
		Seed:          cfg.Seed,
	}
}

// Fetch downloads the current state of a league
func Fetch(ctx context.Context, cfg *config.LeaguesimConfig, tournament int) (*datasource.Snapshot, error) {
	client := datasource.NewClient(cfg)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close datasource client", err)
		}
	}()
	return client.FetchSnapshot(ctx, tournament)
}

// Forecast runs the whole pipeline over a snapshot: scoring rates, rho, the
// match model, the Monte Carlo run and, unless disabled, report files and the
// run database. Failing to write outputs is logged and does not fail the forecast.
func Forecast(ctx context.Context, cfg *config.LeaguesimConfig, snap *datasource.Snapshot, opts Options) (*report.Summary, error) {
	if cfg == nil {
		cfg = config.Config
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errors.New("no snapshot to forecast")
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if err := snap.CheckFixtures(); err != nil {
		logger.Warn("Seasons reaching a bad fixture will be skipped:", err)
	}

	s := &report.Summary{
		ID:            uuid.NewString(),
		League:        snap.League,
		TournamentID:  snap.TournamentID,
		SeasonID:      snap.SeasonID,
		Standings:     snap.Standings.Overall,
		Fixtures:      len(snap.Fixtures),
		Colours:       snap.Colours,
		Rho:           model.RhoEstimate{Rho: cfg.Rho},
		HomeAdvantage: cfg.HomeAdvantage,
		StartedAt:     time.Now(),
	}

	rates := model.EstimateRates(snap.Standings)
	m, err := model.NewDixonColes(rates, ModelOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to build match model: %w", err)
	}
	if cfg.AutoRho {
		rhoOpts := model.DefaultRhoOptions()
		rhoOpts.Default = cfg.Rho
		s.Rho = m.EstimateRho(model.PseudoHistory(rates, snap.Standings.Overall.Teams()), rhoOpts)
		s.RhoFitted = true
		if m, err = m.WithRho(s.Rho.Rho); err != nil {
			return nil, fmt.Errorf("failed to apply estimated rho: %w", err)
		}
	}

	season, err := simulation.NewSeason(snap.Standings.Overall, snap.Fixtures, m)
	if err != nil {
		return nil, err
	}
	if err := m.Precompute(season.Fixtures()); err != nil {
		return nil, err
	}

	simOpts := SimulationOptions(cfg)
	simOpts.Progress = opts.Progress
	logger.Info("Forecasting", s.League, "with", len(snap.Fixtures), "fixtures remaining")
	res, err := simulation.Run(ctx, season, simOpts)
	if err != nil {
		return nil, err
	}
	s.Result = res

	if opts.DryRun {
		return s, nil
	}
	if cfg.WriteReports {
		dir := report.RunDir(cfg.ResultsPath, s.League, s.StartedAt)
		if err := report.Save(dir, s); err != nil {
			logger.Error("failed to write reports", err)
		} else {
			s.ReportDir = dir
		}
	}
	if cfg.PersistRuns {
		if _, err := store.SaveRun(s, store.DefaultTopTables); err != nil {
			logger.Error("failed to store run", err)
		}
	}
	return s, nil
}
