package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/richard-senior/leaguesim/pkg/league"
	"gonum.org/v1/gonum/floats"
)

const (
	DefaultRho           = -0.1
	MinRho               = -0.2
	MaxRho               = 0.2
	DefaultHomeAdvantage = 1.25
	DefaultMaxGoals      = 8
	DefaultMaxLambda     = 5.0
	DefaultLambdaStep    = 0.02
	// goals held by the poisson cache beyond the score matrix
	DefaultExtraGoals = 5
)

// Options configures a DixonColes model
type Options struct {
	Rho           float64
	HomeAdvantage float64
	// The score matrix covers 0..MaxGoals for each side. Mass above it is
	// dropped before normalising, a truncation that is negligible for the
	// λ seen in real leagues (roughly 0.5 to 2.5).
	MaxGoals   int
	MaxLambda  float64
	LambdaStep float64
	ExtraGoals int
}

func DefaultOptions() Options {
	return Options{
		Rho:           DefaultRho,
		HomeAdvantage: DefaultHomeAdvantage,
		MaxGoals:      DefaultMaxGoals,
		MaxLambda:     DefaultMaxLambda,
		LambdaStep:    DefaultLambdaStep,
		ExtraGoals:    DefaultExtraGoals,
	}
}

// NumericalError is returned when no valid score distribution can be built for a pair of λ
type NumericalError struct {
	LambdaHome float64
	LambdaAway float64
	Reason     string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("score matrix for lambda %.3f/%.3f: %s", e.LambdaHome, e.LambdaAway, e.Reason)
}

// scoreDist is a flattened, normalised score matrix ready for sampling
type scoreDist struct {
	cumulative []float64
	last       int // index of the last cell with positive mass
}

type pairKey struct {
	home, away string
}

// DixonColes is the bivariate Poisson match model with the low score correction.
// After Precompute returns it is read-only and safe for concurrent use.
type DixonColes struct {
	opts    Options
	rates   ScoringRates
	cache   *PoissonCache
	fixture map[pairKey]*scoreDist
}

// NewDixonColes builds the model and its poisson cache
func NewDixonColes(rates ScoringRates, opts Options) (*DixonColes, error) {
	if opts.Rho < MinRho || opts.Rho > MaxRho || math.IsNaN(opts.Rho) {
		return nil, fmt.Errorf("rho must be within [%.1f, %.1f], got %f", MinRho, MaxRho, opts.Rho)
	}
	if opts.HomeAdvantage <= 0 {
		return nil, fmt.Errorf("home advantage must be positive, got %f", opts.HomeAdvantage)
	}
	if opts.MaxGoals < 1 {
		return nil, fmt.Errorf("max goals must be at least 1, got %d", opts.MaxGoals)
	}
	cache, err := NewPoissonCache(opts.MaxLambda, opts.LambdaStep, opts.MaxGoals+opts.ExtraGoals)
	if err != nil {
		return nil, err
	}
	return &DixonColes{
		opts:    opts,
		rates:   rates,
		cache:   cache,
		fixture: map[pairKey]*scoreDist{},
	}, nil
}

// WithRho returns a copy using a different correlation, sharing the poisson cache
func (m *DixonColes) WithRho(rho float64) (*DixonColes, error) {
	if rho < MinRho || rho > MaxRho || math.IsNaN(rho) {
		return nil, fmt.Errorf("rho must be within [%.1f, %.1f], got %f", MinRho, MaxRho, rho)
	}
	opts := m.opts
	opts.Rho = rho
	return &DixonColes{
		opts:    opts,
		rates:   m.rates,
		cache:   m.cache,
		fixture: map[pairKey]*scoreDist{},
	}, nil
}

func (m *DixonColes) Rho() float64 {
	return m.opts.Rho
}

func (m *DixonColes) Options() Options {
	return m.opts
}

// Tau is the Dixon-Coles correction for the four low scoring cells, 1 elsewhere
func Tau(x, y int, lambdaHome, lambdaAway, rho float64) float64 {
	switch {
	case x == 0 && y == 0:
		return 1 - lambdaHome*lambdaAway*rho
	case x == 0 && y == 1:
		return 1 + lambdaHome*rho
	case x == 1 && y == 0:
		return 1 + lambdaAway*rho
	case x == 1 && y == 1:
		return 1 - rho
	default:
		return 1
	}
}

// Lambdas returns the snapped expected goals for a fixture, home advantage applied
func (m *DixonColes) Lambdas(home, away string) (float64, float64) {
	lh := m.rates.HomeRate(home) * m.opts.HomeAdvantage
	la := m.rates.AwayRate(away)
	return m.cache.Snap(lh), m.cache.Snap(la)
}

// ScoreMatrix returns the normalised (MaxGoals+1)² matrix flattened row major,
// cell x*(MaxGoals+1)+y holding P(home=x, away=y).
// Negative cells are clamped to zero. If the corrected matrix carries no mass the
// uncorrected product is used instead.
func (m *DixonColes) ScoreMatrix(lambdaHome, lambdaAway float64) ([]float64, error) {
	ph := m.cache.Probabilities(lambdaHome)
	pa := m.cache.Probabilities(lambdaAway)
	if ph == nil || pa == nil {
		return nil, &NumericalError{LambdaHome: lambdaHome, LambdaAway: lambdaAway, Reason: "invalid lambda"}
	}

	n := m.opts.MaxGoals + 1
	mat := make([]float64, n*n)
	fill := func(correct bool) float64 {
		for x := 0; x < n; x++ {
			for y := 0; y < n; y++ {
				v := ph[x] * pa[y]
				if correct {
					v *= Tau(x, y, lambdaHome, lambdaAway, m.opts.Rho)
				}
				if v < 0 || math.IsNaN(v) {
					v = 0
				}
				mat[x*n+y] = v
			}
		}
		return floats.Sum(mat)
	}

	total := fill(true)
	if !(total > 0) || math.IsInf(total, 0) {
		total = fill(false)
	}
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, &NumericalError{LambdaHome: lambdaHome, LambdaAway: lambdaAway, Reason: "matrix does not normalise"}
	}
	floats.Scale(1/total, mat)
	return mat, nil
}

func (m *DixonColes) distribution(lambdaHome, lambdaAway float64) (*scoreDist, error) {
	mat, err := m.ScoreMatrix(lambdaHome, lambdaAway)
	if err != nil {
		return nil, err
	}
	d := &scoreDist{cumulative: make([]float64, len(mat))}
	floats.CumSum(d.cumulative, mat)
	for i := len(mat) - 1; i >= 0; i-- {
		if mat[i] > 0 {
			d.last = i
			break
		}
	}
	return d, nil
}

// Precompute builds the score distribution of every fixture up front.
// It must complete before the model is shared between goroutines.
func (m *DixonColes) Precompute(fixtures []league.Fixture) error {
	for _, f := range fixtures {
		key := pairKey{f.HomeTeam, f.AwayTeam}
		if _, ok := m.fixture[key]; ok {
			continue
		}
		d, err := m.distribution(m.Lambdas(f.HomeTeam, f.AwayTeam))
		if err != nil {
			return fmt.Errorf("fixture %s: %w", f, err)
		}
		m.fixture[key] = d
	}
	return nil
}

// SimulateMatch samples one scoreline for home against away
func (m *DixonColes) SimulateMatch(rng *rand.Rand, home, away string) (int, int, error) {
	d, ok := m.fixture[pairKey{home, away}]
	if !ok {
		var err error
		d, err = m.distribution(m.Lambdas(home, away))
		if err != nil {
			return 0, 0, err
		}
	}
	u := rng.Float64()
	idx := sort.Search(len(d.cumulative), func(i int) bool { return d.cumulative[i] > u })
	if idx >= len(d.cumulative) {
		idx = d.last
	}
	n := m.opts.MaxGoals + 1
	return idx / n, idx % n, nil
}

// Outcome probabilities for one fixture, used by reports and tests
type Outcome struct {
	HomeWin float64 `json:"home_win"`
	Draw    float64 `json:"draw"`
	AwayWin float64 `json:"away_win"`
}

// MatchOutcome sums the score matrix into home win / draw / away win
func (m *DixonColes) MatchOutcome(home, away string) (Outcome, error) {
	mat, err := m.ScoreMatrix(m.Lambdas(home, away))
	if err != nil {
		return Outcome{}, err
	}
	n := m.opts.MaxGoals + 1
	var o Outcome
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			p := mat[x*n+y]
			switch {
			case x > y:
				o.HomeWin += p
			case x == y:
				o.Draw += p
			default:
				o.AwayWin += p
			}
		}
	}
	return o, nil
}
