package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/richard-senior/leaguesim/internal/logger"
)

// StopReason says why a run ended
type StopReason string

const (
	StopIterationCap StopReason = "iteration_cap"
	StopTimeout      StopReason = "timeout"
	StopConvergence  StopReason = "convergence"
	StopUser         StopReason = "user"
	StopNoFixtures   StopReason = "no_fixtures"
)

func (r StopReason) Describe() string {
	switch r {
	case StopIterationCap:
		return "maximum number of iterations reached"
	case StopTimeout:
		return "time budget exhausted"
	case StopConvergence:
		return "target statistical error reached"
	case StopUser:
		return "stopped by user"
	case StopNoFixtures:
		return "no fixtures left, standings are final"
	default:
		return string(r)
	}
}

// Options controls when a run stops and how it is parallelised
type Options struct {
	MaxIterations int64
	MaxDuration   time.Duration
	// mean standard error in percentage points at or below which the run stops
	TargetError   float64
	ErrorInterval time.Duration
	// 0 means runtime.NumCPU()-1
	Workers int
	// 0 means seeded from the clock
	Seed uint64
	// called from the coordinating goroutine at every error recomputation
	Progress func(Progress)
}

func DefaultOptions() Options {
	return Options{
		MaxIterations: 1_000_000,
		MaxDuration:   600 * time.Second,
		TargetError:   0.01,
		ErrorInterval: time.Second,
	}
}

// Progress is a snapshot handed to Options.Progress
type Progress struct {
	Completed     int64
	Skipped       int64
	Elapsed       time.Duration
	ErrorEstimate float64
}

// Result is everything a run produced
type Result struct {
	Teams         []string           `json:"teams"`
	Frequencies   *PositionFrequency `json:"frequencies"`
	Tables        *TableCounter      `json:"-"`
	Completed     int64              `json:"completed"`
	Requested     int64              `json:"requested"`
	Skipped       int64              `json:"skipped"`
	Elapsed       time.Duration      `json:"elapsed"`
	ErrorEstimate float64            `json:"error_estimate"`
	Reason        StopReason         `json:"reason"`
	Workers       int                `json:"workers"`
	SkipErrors    []string           `json:"skip_errors,omitempty"`
}

const maxRecordedSkips = 5

type iteration struct {
	order []int
	err   error
}

// simulateOnce plays one season, turning a panic in the match model into a failed iteration
func simulateOnce(season *Season, rng *rand.Rand) (it iteration) {
	defer func() {
		if r := recover(); r != nil {
			it = iteration{err: fmt.Errorf("season simulation panicked: %v", r)}
		}
	}()
	order, err := season.Simulate(rng)
	return iteration{order: order, err: err}
}

func (o Options) validate() error {
	switch {
	case o.MaxIterations < 1:
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidOptions, o.MaxIterations)
	case o.MaxDuration <= 0:
		return fmt.Errorf("%w: max duration must be positive, got %s", ErrInvalidOptions, o.MaxDuration)
	case o.TargetError < 0:
		return fmt.Errorf("%w: target error cannot be negative, got %f", ErrInvalidOptions, o.TargetError)
	case o.ErrorInterval <= 0:
		return fmt.Errorf("%w: error interval must be positive, got %s", ErrInvalidOptions, o.ErrorInterval)
	case o.Workers < 0:
		return fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidOptions, o.Workers)
	}
	return nil
}

// WorkerCount resolves the pool size, failing when nothing is left for workers
func (o Options) WorkerCount() (int, error) {
	workers := o.Workers
	if workers == 0 {
		workers = runtime.NumCPU() - 1
	}
	if workers < 1 {
		return 0, fmt.Errorf("%w: %d cpus leave no worker alongside the coordinator", ErrResourceExhausted, runtime.NumCPU())
	}
	return workers, nil
}

// Run simulates the season repeatedly until a stop condition fires.
// Cancelling ctx is treated as a user stop and still returns the statistics gathered so far.
func Run(ctx context.Context, season *Season, opts Options) (*Result, error) {
	if season == nil {
		return nil, fmt.Errorf("%w: season is nil", ErrInvalidOptions)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	workers, err := opts.WorkerCount()
	if err != nil {
		return nil, err
	}

	teams := season.Teams()
	res := &Result{
		Teams:       teams,
		Frequencies: NewPositionFrequency(teams),
		Tables:      NewTableCounter(teams),
		Requested:   opts.MaxIterations,
		Workers:     workers,
	}
	start := time.Now()

	if len(season.Fixtures()) == 0 {
		order, err := season.Simulate(nil)
		if err != nil {
			return nil, err
		}
		res.Frequencies.Add(order)
		res.Tables.Add(order)
		res.Completed = 1
		res.Workers = 0
		res.Reason = StopNoFixtures
		res.Elapsed = time.Since(start)
		res.ErrorEstimate = res.Frequencies.ErrorEstimate()
		logger.Info("No fixtures remain, returning the current standings")
		return res, nil
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	logger.Info("Starting simulation", "workers", workers, "max iterations", opts.MaxIterations,
		"time budget", opts.MaxDuration.String(), "target error", opts.TargetError)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan iteration, workers*4)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		rng := rand.New(rand.NewPCG(seed, uint64(w)+1))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-runCtx.Done():
					return
				default:
				}
				select {
				case results <- simulateOnce(season, rng):
				case <-runCtx.Done():
					return
				}
			}
		}()
	}

	deadline := time.NewTimer(opts.MaxDuration)
	defer deadline.Stop()
	ticker := time.NewTicker(opts.ErrorInterval)
	defer ticker.Stop()

	var attempts int64
	errEstimate := res.Frequencies.ErrorEstimate()

loop:
	for {
		select {
		case <-ctx.Done():
			res.Reason = StopUser
			break loop
		case <-deadline.C:
			res.Reason = StopTimeout
			break loop
		case <-ticker.C:
			errEstimate = res.Frequencies.ErrorEstimate()
			logger.Debug("Progress", "completed", res.Completed, "skipped", res.Skipped, "error pp", errEstimate)
			if opts.Progress != nil {
				opts.Progress(Progress{
					Completed:     res.Completed,
					Skipped:       res.Skipped,
					Elapsed:       time.Since(start),
					ErrorEstimate: errEstimate,
				})
			}
			if res.Completed > 0 && errEstimate <= opts.TargetError {
				res.Reason = StopConvergence
				break loop
			}
		case it := <-results:
			attempts++
			if it.err != nil {
				res.Skipped++
				if len(res.SkipErrors) < maxRecordedSkips {
					res.SkipErrors = append(res.SkipErrors, it.err.Error())
					logger.Warn("Dropped iteration:", it.err)
				} else {
					logger.Debug("Dropped iteration:", it.err)
				}
			} else {
				res.Frequencies.Add(it.order)
				res.Tables.Add(it.order)
				res.Completed++
			}
			if attempts >= opts.MaxIterations {
				res.Reason = StopIterationCap
				break loop
			}
		}
	}

	cancel()
	wg.Wait()

	res.Elapsed = time.Since(start)
	res.ErrorEstimate = res.Frequencies.ErrorEstimate()
	logger.Info("Simulation stopped:", res.Reason.Describe(), "completed", res.Completed, "of", res.Requested,
		"skipped", res.Skipped, "elapsed", res.Elapsed.String(), "error pp", res.ErrorEstimate)
	return res, nil
}

// Probability of team at position over completed iterations
func (r *Result) Probability(team string, position int) float64 {
	return r.Frequencies.Probability(team, position)
}

// MostLikelyTable is the most frequent complete table and its share of completed iterations
func (r *Result) MostLikelyTable() ([]string, float64) {
	table, count := r.Tables.MostFrequent()
	if r.Completed == 0 {
		return table, 0
	}
	return table, float64(count) / float64(r.Completed)
}
