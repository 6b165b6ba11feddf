package model

import (
	"math"

	"github.com/richard-senior/leaguesim/internal/logger"
)

// MatchRecord is one observed (or inferred) scoreline
type MatchRecord struct {
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeGoals int    `json:"home_goals"`
	AwayGoals int    `json:"away_goals"`
}

// RhoOptions bounds and tunes the maximum likelihood fit
type RhoOptions struct {
	Lower         float64
	Upper         float64
	Tolerance     float64
	MaxIterations int
	Default       float64
	// added to the negative log likelihood for every record with zero probability
	Penalty float64
}

func DefaultRhoOptions() RhoOptions {
	return RhoOptions{
		Lower:         MinRho,
		Upper:         MaxRho,
		Tolerance:     1e-5,
		MaxIterations: 100,
		Default:       DefaultRho,
		Penalty:       1e6,
	}
}

// RhoEstimate is the outcome of a fit. When Fallback is set Rho holds the
// default and Reason says why the fit was not used.
type RhoEstimate struct {
	Rho              float64 `json:"rho"`
	Converged        bool    `json:"converged"`
	Fallback         bool    `json:"fallback"`
	Reason           string  `json:"reason,omitempty"`
	Iterations       int     `json:"iterations"`
	NegLogLikelihood float64 `json:"neg_log_likelihood"`
	Matches          int     `json:"matches"`
}

// PseudoHistory stands in for real scorelines when only tables are known:
// every ordered pair of distinct teams yields one match scored with the
// rounded home rate of the host and the rounded away rate of the visitor.
func PseudoHistory(rates ScoringRates, teams []string) []MatchRecord {
	var ret []MatchRecord
	for _, home := range teams {
		for _, away := range teams {
			if home == away {
				continue
			}
			ret = append(ret, MatchRecord{
				HomeTeam:  home,
				AwayTeam:  away,
				HomeGoals: int(math.Round(rates.HomeRate(home))),
				AwayGoals: int(math.Round(rates.AwayRate(away))),
			})
		}
	}
	return ret
}

// NegLogLikelihood of the history under the model's λ and the given rho
func (m *DixonColes) NegLogLikelihood(history []MatchRecord, rho, penalty float64) float64 {
	nll := 0.0
	for _, r := range history {
		lh, la := m.Lambdas(r.HomeTeam, r.AwayTeam)
		p := m.cache.Prob(lh, r.HomeGoals) * m.cache.Prob(la, r.AwayGoals) * Tau(r.HomeGoals, r.AwayGoals, lh, la, rho)
		if !(p > 0) || math.IsInf(p, 0) {
			nll += penalty
			continue
		}
		nll -= math.Log(p)
	}
	return nll
}

// EstimateRho fits rho by minimising the negative log likelihood over history
// within [opts.Lower, opts.Upper]. An empty history or a fit that does not
// converge returns opts.Default with Fallback set.
func (m *DixonColes) EstimateRho(history []MatchRecord, opts RhoOptions) RhoEstimate {
	est := RhoEstimate{Rho: opts.Default, Matches: len(history)}
	if len(history) == 0 {
		est.Fallback = true
		est.Reason = "empty match history"
		logger.Warn("rho estimation fell back to default:", est.Reason, opts.Default)
		return est
	}

	f := func(rho float64) float64 {
		return m.NegLogLikelihood(history, rho, opts.Penalty)
	}
	x, fx, iters, converged := goldenSection(f, opts.Lower, opts.Upper, opts.Tolerance, opts.MaxIterations)
	est.Iterations = iters
	est.NegLogLikelihood = fx

	switch {
	case !converged:
		est.Fallback = true
		est.Reason = "optimizer did not converge"
	case math.IsNaN(x) || math.IsNaN(fx) || math.IsInf(fx, 0):
		est.Fallback = true
		est.Reason = "non finite likelihood"
	case fx >= opts.Penalty:
		est.Fallback = true
		est.Reason = "every candidate rho gives zero probability to some match"
	default:
		est.Rho = x
		est.Converged = true
	}

	if est.Fallback {
		est.Rho = opts.Default
		logger.Warn("rho estimation fell back to default:", est.Reason, opts.Default)
	} else {
		logger.Info("estimated rho", est.Rho, "iterations", est.Iterations, "matches", est.Matches)
	}
	return est
}

// goldenSection minimises a unimodal f on [a, b]
func goldenSection(f func(float64) float64, a, b, tol float64, maxIter int) (float64, float64, int, bool) {
	invPhi := (math.Sqrt(5) - 1) / 2
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc, fd := f(c), f(d)

	iters := 0
	for math.Abs(b-a) > tol {
		if iters >= maxIter {
			x := (a + b) / 2
			return x, f(x), iters, false
		}
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = f(d)
		}
		iters++
	}
	x := (a + b) / 2
	return x, f(x), iters, true
}
