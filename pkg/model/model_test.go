package model

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/richard-senior/leaguesim/pkg/league"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func uniformRates(teams ...string) ScoringRates {
	rates := ScoringRates{}
	for _, t := range teams {
		rates[t] = TeamRates{Global: 1.0}
	}
	return rates
}

func newModel(t *testing.T, rates ScoringRates, mutate func(o *Options)) *DixonColes {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	m, err := NewDixonColes(rates, opts)
	require.NoError(t, err)
	return m
}

/////////////////////////////////////////////////////////////////////////
////// Poisson cache
/////////////////////////////////////////////////////////////////////////

func TestPoissonCacheSumsToOne(t *testing.T) {
	cache, err := NewPoissonCache(5.0, 0.02, 20)
	require.NoError(t, err)

	for lambda := 0.02; lambda <= 5.0; lambda += 0.37 {
		sum := 0.0
		for _, p := range cache.Probabilities(lambda) {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "lambda %.2f", lambda)
	}
}

func TestPoissonCacheZeroLambda(t *testing.T) {
	cache, err := NewPoissonCache(5.0, 0.02, 10)
	require.NoError(t, err)

	row := cache.Probabilities(0)
	assert.Equal(t, 1.0, row[0])
	for k := 1; k < len(row); k++ {
		assert.Equal(t, 0.0, row[k])
	}
	assert.Equal(t, 0.0, cache.Prob(0, 15))
}

func TestPoissonCacheSnap(t *testing.T) {
	cache, err := NewPoissonCache(5.0, 0.5, 4)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cache.Snap(1.25), "halves round away from zero")
	assert.Equal(t, 1.0, cache.Snap(1.2))

	fine, err := NewPoissonCache(5.0, 0.02, 4)
	require.NoError(t, err)
	assert.InDelta(t, 1.24, fine.Snap(1.234), 1e-12)
	assert.InDelta(t, distuv.Poisson{Lambda: 1.24}.Prob(2), fine.Prob(1.234, 2), 1e-12)

	assert.InDelta(t, 0.30, fine.Snap(0.29), 1e-12)
	assert.InDelta(t, 1.16, fine.Snap(1.15), 1e-12)
	for i := 0; i < 250; i++ {
		half := float64(2*i+1) / 100
		assert.InDelta(t, float64(i+1)*0.02, fine.Snap(half), 1e-12, "lambda %.2f", half)
	}
}

func TestPoissonCacheOffGrid(t *testing.T) {
	cache, err := NewPoissonCache(5.0, 0.02, 6)
	require.NoError(t, err)

	row := cache.Probabilities(7.0)
	require.Len(t, row, 7)
	assert.InDelta(t, distuv.Poisson{Lambda: 7.0}.Prob(3), row[3], 1e-12)
	assert.InDelta(t, distuv.Poisson{Lambda: 7.0}.Prob(9), cache.Prob(7.0, 9), 1e-12)

	assert.Nil(t, cache.Probabilities(-1))
	assert.Nil(t, cache.Probabilities(math.NaN()))
}

func TestPoissonCacheRejectsBadGrid(t *testing.T) {
	_, err := NewPoissonCache(5.0, 0, 8)
	assert.Error(t, err)
	_, err = NewPoissonCache(0.01, 0.02, 8)
	assert.Error(t, err)
}

/////////////////////////////////////////////////////////////////////////
////// Scoring rates
/////////////////////////////////////////////////////////////////////////

func TestEstimateRatesFallbacks(t *testing.T) {
	s := league.Standings{
		Overall: league.StandingsTable{
			{Team: "A", MatchesPlayed: 4, Wins: 2, Draws: 2, GoalsFor: 6, Points: 8},
			{Team: "B", MatchesPlayed: 4, Losses: 4, GoalsFor: 2, GoalsAgainst: 8},
			{Team: "New"},
		},
		Home: league.StandingsTable{
			{Team: "A", MatchesPlayed: 2, Wins: 2, GoalsFor: 5, Points: 6},
			{Team: "New"},
		},
		Away: league.StandingsTable{
			{Team: "A", MatchesPlayed: 2, Draws: 2, GoalsFor: 1, Points: 2},
		},
	}
	rates := EstimateRates(s)

	assert.Equal(t, 2.5, rates.HomeRate("A"))
	assert.Equal(t, 0.5, rates.AwayRate("A"))
	assert.Equal(t, 1.5, rates["A"].Global)

	assert.Equal(t, 0.5, rates.HomeRate("B"), "missing home split falls back to overall")
	assert.Equal(t, 0.5, rates.AwayRate("B"))

	assert.Equal(t, DefaultRate, rates.HomeRate("New"), "no matches played gives the neutral default")
	assert.Equal(t, DefaultRate, rates.AwayRate("New"))
	assert.Equal(t, DefaultRate, rates.HomeRate("Unknown"))
}

/////////////////////////////////////////////////////////////////////////
////// Dixon-Coles
/////////////////////////////////////////////////////////////////////////

func TestTau(t *testing.T) {
	lh, la, rho := 1.3, 0.9, -0.13
	assert.Equal(t, 1-lh*la*rho, Tau(0, 0, lh, la, rho))
	assert.Equal(t, 1+lh*rho, Tau(0, 1, lh, la, rho))
	assert.Equal(t, 1+la*rho, Tau(1, 0, lh, la, rho))
	assert.Equal(t, 1-rho, Tau(1, 1, lh, la, rho))
	for x := 0; x <= 6; x++ {
		for y := 0; y <= 6; y++ {
			if x <= 1 && y <= 1 {
				continue
			}
			assert.Equal(t, 1.0, Tau(x, y, lh, la, rho), "cell %d-%d", x, y)
		}
	}
}

func TestScoreMatrixNormalises(t *testing.T) {
	m := newModel(t, uniformRates("A", "B"), nil)
	for _, rho := range []float64{-0.2, -0.1, 0, 0.1, 0.2} {
		mr, err := m.WithRho(rho)
		require.NoError(t, err)
		for lambda := 0.02; lambda <= 5.0; lambda += 0.49 {
			mat, err := mr.ScoreMatrix(lambda, 5.0-lambda+0.02)
			require.NoError(t, err)
			sum := 0.0
			for _, p := range mat {
				assert.GreaterOrEqual(t, p, 0.0)
				sum += p
			}
			assert.InDelta(t, 1.0, sum, 1e-9, "rho %.2f lambda %.2f", rho, lambda)
		}
	}
}

func TestScoreMatrixClampsNegativeCells(t *testing.T) {
	m := newModel(t, uniformRates("A", "B"), func(o *Options) { o.Rho = 0.2 })

	// 1 - 5*5*0.2 < 0
	mat, err := m.ScoreMatrix(5.0, 5.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, mat[0])

	neg, err := m.WithRho(-0.2)
	require.NoError(t, err)
	// 1 + 5*(-0.2) == 0 for the 0-1 cell
	mat, err = neg.ScoreMatrix(5.0, 5.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, mat[1])
}

func TestScoreMatrixRejectsInvalidLambda(t *testing.T) {
	m := newModel(t, uniformRates("A"), nil)
	_, err := m.ScoreMatrix(math.NaN(), 1)
	var numErr *NumericalError
	require.True(t, errors.As(err, &numErr))
}

func TestLambdasApplyHomeAdvantage(t *testing.T) {
	rates := ScoringRates{
		"H": {Global: 1.6, Home: 2.0, HasHome: true},
		"A": {Global: 1.1, Away: 0.8, HasAway: true},
	}
	m := newModel(t, rates, nil)
	lh, la := m.Lambdas("H", "A")
	assert.InDelta(t, 2.5, lh, 1e-12)
	assert.InDelta(t, 0.8, la, 1e-12)
}

func TestSimulateMatchIsReproducible(t *testing.T) {
	m := newModel(t, uniformRates("A", "B"), nil)

	draw := func() [][2]int {
		rng := rand.New(rand.NewPCG(7, 11))
		var out [][2]int
		for i := 0; i < 50; i++ {
			h, a, err := m.SimulateMatch(rng, "A", "B")
			require.NoError(t, err)
			out = append(out, [2]int{h, a})
		}
		return out
	}
	assert.Equal(t, draw(), draw())
}

func TestSimulateMatchFollowsMatrix(t *testing.T) {
	m := newModel(t, uniformRates("A", "B"), nil)
	require.NoError(t, m.Precompute([]league.Fixture{{HomeTeam: "A", AwayTeam: "B"}}))

	outcome, err := m.MatchOutcome("A", "B")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, outcome.HomeWin+outcome.Draw+outcome.AwayWin, 1e-9)
	assert.Greater(t, outcome.HomeWin, outcome.AwayWin)

	rng := rand.New(rand.NewPCG(1, 2))
	const n = 40000
	draws, homeWins := 0, 0
	for i := 0; i < n; i++ {
		h, a, err := m.SimulateMatch(rng, "A", "B")
		require.NoError(t, err)
		require.LessOrEqual(t, h, DefaultMaxGoals)
		require.LessOrEqual(t, a, DefaultMaxGoals)
		if h == a {
			draws++
		}
		if h > a {
			homeWins++
		}
	}
	assert.InDelta(t, outcome.Draw, float64(draws)/n, 0.015)
	assert.InDelta(t, outcome.HomeWin, float64(homeWins)/n, 0.015)
}

func TestNewDixonColesValidates(t *testing.T) {
	_, err := NewDixonColes(uniformRates("A"), Options{Rho: 0.5, HomeAdvantage: 1, MaxGoals: 8, MaxLambda: 5, LambdaStep: 0.02})
	assert.Error(t, err)
	_, err = NewDixonColes(uniformRates("A"), Options{Rho: 0, HomeAdvantage: 0, MaxGoals: 8, MaxLambda: 5, LambdaStep: 0.02})
	assert.Error(t, err)
	m := newModel(t, uniformRates("A"), nil)
	_, err = m.WithRho(-0.3)
	assert.Error(t, err)
}

/////////////////////////////////////////////////////////////////////////
////// Rho estimation
/////////////////////////////////////////////////////////////////////////

func TestEstimateRhoEmptyHistory(t *testing.T) {
	m := newModel(t, uniformRates("A", "B"), nil)
	est := m.EstimateRho(nil, DefaultRhoOptions())
	assert.Equal(t, DefaultRho, est.Rho)
	assert.True(t, est.Fallback)
	assert.False(t, est.Converged)
	assert.NotEmpty(t, est.Reason)
}

func TestEstimateRhoHitsBounds(t *testing.T) {
	m := newModel(t, uniformRates("A", "B"), nil)

	nilNil := []MatchRecord{{HomeTeam: "A", AwayTeam: "B"}}
	est := m.EstimateRho(nilNil, DefaultRhoOptions())
	require.False(t, est.Fallback)
	assert.InDelta(t, MinRho, est.Rho, 1e-4)

	nilOne := []MatchRecord{{HomeTeam: "A", AwayTeam: "B", AwayGoals: 1}}
	est = m.EstimateRho(nilOne, DefaultRhoOptions())
	require.False(t, est.Fallback)
	assert.InDelta(t, MaxRho, est.Rho, 1e-4)
}

func TestEstimateRhoInteriorOptimum(t *testing.T) {
	// with λh = λa = 1, 0-1 and 1-1 contribute -log(1+ρ) - log(1-ρ), minimised at 0
	rates := ScoringRates{"A": {Global: 1.0}, "B": {Global: 1.0}}
	m := newModel(t, rates, func(o *Options) { o.HomeAdvantage = 1.0 })
	history := []MatchRecord{
		{HomeTeam: "A", AwayTeam: "B", HomeGoals: 0, AwayGoals: 1},
		{HomeTeam: "A", AwayTeam: "B", HomeGoals: 1, AwayGoals: 1},
	}
	est := m.EstimateRho(history, DefaultRhoOptions())
	require.True(t, est.Converged)
	assert.InDelta(t, 0.0, est.Rho, 1e-4)
	assert.Equal(t, 2, est.Matches)
}

func TestEstimateRhoNonConvergenceFallsBack(t *testing.T) {
	m := newModel(t, uniformRates("A", "B"), nil)
	opts := DefaultRhoOptions()
	opts.MaxIterations = 2
	est := m.EstimateRho([]MatchRecord{{HomeTeam: "A", AwayTeam: "B"}}, opts)
	assert.True(t, est.Fallback)
	assert.Equal(t, DefaultRho, est.Rho)
}

func TestPseudoHistory(t *testing.T) {
	rates := ScoringRates{
		"A": {Global: 1.4, Home: 2.6, HasHome: true},
		"B": {Global: 0.4},
		"C": {Global: 1.0, Away: 1.5, HasAway: true},
	}
	history := PseudoHistory(rates, []string{"A", "B", "C"})
	require.Len(t, history, 6)
	assert.Equal(t, MatchRecord{HomeTeam: "A", AwayTeam: "B", HomeGoals: 3, AwayGoals: 0}, history[0])
	assert.Equal(t, MatchRecord{HomeTeam: "A", AwayTeam: "C", HomeGoals: 3, AwayGoals: 2}, history[1])

	m := newModel(t, rates, nil)
	est := m.EstimateRho(history, DefaultRhoOptions())
	assert.GreaterOrEqual(t, est.Rho, MinRho)
	assert.LessOrEqual(t, est.Rho, MaxRho)
}
