package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/richard-senior/leaguesim/internal/logger"
	"github.com/richard-senior/leaguesim/pkg/config"
	"github.com/richard-senior/leaguesim/pkg/datasource"
	"github.com/richard-senior/leaguesim/pkg/forecast"
	"github.com/richard-senior/leaguesim/pkg/report"
	"github.com/richard-senior/leaguesim/pkg/simulation"
	"github.com/richard-senior/leaguesim/pkg/store"
)

const defaultLeague = "17"

type simulateFlags struct {
	league        string
	snapshot      string
	iterations    int
	seconds       int
	targetError   float64
	rho           float64
	autoRho       bool
	homeAdvantage float64
	workers       int
	seed          uint64
	configPath    string
	noSave        bool
}

func newSimulateFlagSet(f *simulateFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.StringVar(&f.league, "league", defaultLeague, "tournament id or league name")
	fs.StringVar(&f.snapshot, "snapshot", "", "forecast a saved snapshot file instead of live data")
	fs.IntVar(&f.iterations, "iterations", 0, "maximum simulated seasons (config: max_iterations)")
	fs.IntVar(&f.seconds, "seconds", 0, "time budget in seconds (config: max_duration_seconds)")
	fs.Float64Var(&f.targetError, "target-error", 0, "stop at this mean standard error in percentage points")
	fs.Float64Var(&f.rho, "rho", 0, "Dixon-Coles correlation in [-0.2, 0.2]")
	fs.BoolVar(&f.autoRho, "auto-rho", false, "fit rho by maximum likelihood")
	fs.Float64Var(&f.homeAdvantage, "home-advantage", 0, "home scoring multiplier")
	fs.IntVar(&f.workers, "workers", 0, "worker goroutines, 0 for all CPUs but one")
	fs.Uint64Var(&f.seed, "seed", 0, "random seed, 0 for time based")
	fs.StringVar(&f.configPath, "config", "", "YAML or JSON configuration file")
	fs.BoolVar(&f.noSave, "no-save", false, "skip report files and the run database")
	return fs
}

// apply copies every flag given on the command line over the configuration
func (f *simulateFlags) apply(fs *flag.FlagSet, cfg *config.LeaguesimConfig) error {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "iterations":
			cfg.MaxIterations = f.iterations
		case "seconds":
			cfg.MaxDurationSeconds = f.seconds
		case "target-error":
			cfg.TargetErrorPP = f.targetError
		case "rho":
			cfg.Rho = f.rho
		case "auto-rho":
			cfg.AutoRho = f.autoRho
		case "home-advantage":
			cfg.HomeAdvantage = f.homeAdvantage
		case "workers":
			cfg.Workers = f.workers
		case "seed":
			cfg.Seed = f.seed
		}
	})
	return config.ValidateConfig(cfg)
}

// resolveLeague accepts a numeric tournament id or a league name
func resolveLeague(s string) (int, error) {
	if id, err := strconv.Atoi(s); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("tournament id must be positive, got %d", id)
		}
		return id, nil
	}
	l, ok := datasource.MatchLeague(s)
	if !ok {
		return 0, fmt.Errorf("no league matches %q, run \"leaguesim leagues\" for the catalogue", s)
	}
	return l.ID, nil
}

func loadSnapshot(ctx context.Context, cfg *config.LeaguesimConfig, leagueArg, path string) (*datasource.Snapshot, error) {
	if path != "" {
		return datasource.LoadSnapshot(path)
	}
	id, err := resolveLeague(leagueArg)
	if err != nil {
		return nil, err
	}
	return forecast.Fetch(ctx, cfg, id)
}

// interruptContext is cancelled by SIGINT, SIGTERM or pressing q on an interactive terminal
func interruptContext() (context.Context, func()) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(ctx)
	restore := watchKeys(os.Stdin, cancel)
	return ctx, func() {
		restore()
		cancel()
		stop()
	}
}

func progressPrinter(w io.Writer) func(simulation.Progress) {
	return func(p simulation.Progress) {
		fmt.Fprintf(w, "\r%d seasons, %d skipped, error %s, %s    ",
			p.Completed, p.Skipped, errorLabel(p.ErrorEstimate), report.FormatDuration(p.Elapsed))
	}
}

func errorLabel(e float64) string {
	if math.IsInf(e, 1) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f pp", e)
}

func runSimulate(args []string) error {
	var f simulateFlags
	fs := newSimulateFlagSet(&f)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	if err := f.apply(fs, cfg); err != nil {
		return err
	}

	ctx, done := interruptContext()
	defer done()
	defer store.CloseDatabase()

	snap, err := loadSnapshot(ctx, cfg, f.league, f.snapshot)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Simulating %s, press q to stop early\r\n", snap.League)
	s, err := forecast.Forecast(ctx, cfg, snap, forecast.Options{
		Progress: progressPrinter(os.Stderr),
		DryRun:   f.noSave,
	})
	done()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	logger.Info("Forecast finished", s.ID, s.Result.Reason)

	if err := report.WriteText(os.Stdout, s); err != nil {
		return err
	}
	if s.ReportDir != "" {
		fmt.Printf("\nReports written to %s\n", s.ReportDir)
	}
	return nil
}
