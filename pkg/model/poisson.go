package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// PoissonCache holds P(X=k) for X ~ Poisson(λ) on a fixed λ grid.
// It is built once and never modified, so it can be shared between goroutines.
type PoissonCache struct {
	maxLambda float64
	step      float64
	maxGoals  int
	rows      [][]float64
}

// NewPoissonCache precomputes probabilities for λ = 0, step, 2*step ... maxLambda and k = 0..maxGoals
func NewPoissonCache(maxLambda, step float64, maxGoals int) (*PoissonCache, error) {
	if step <= 0 || math.IsNaN(step) {
		return nil, fmt.Errorf("poisson cache step must be positive, got %f", step)
	}
	if maxLambda < step {
		return nil, fmt.Errorf("poisson cache max lambda %f is below the step %f", maxLambda, step)
	}
	if maxGoals < 0 {
		return nil, fmt.Errorf("poisson cache max goals cannot be negative, got %d", maxGoals)
	}

	n := int(math.Round(maxLambda/step)) + 1
	c := &PoissonCache{
		maxLambda: maxLambda,
		step:      step,
		maxGoals:  maxGoals,
		rows:      make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		c.rows[i] = poissonRow(float64(i)*step, maxGoals)
	}
	return c, nil
}

// Snap moves λ to the nearest grid point, halves rounding away from zero
func (c *PoissonCache) Snap(lambda float64) float64 {
	return float64(c.gridIndex(lambda)) * c.step
}

// snapTolerance absorbs the division error that leaves an exact half step just below .5
const snapTolerance = 1e-9

func (c *PoissonCache) gridIndex(lambda float64) int {
	return int(math.Round(lambda/c.step + snapTolerance))
}

// Probabilities returns P(X=k) for k = 0..MaxGoals at the snapped λ.
// λ beyond the grid is computed on the fly. The returned slice must not be modified.
// Negative or NaN λ has no distribution and yields nil.
func (c *PoissonCache) Probabilities(lambda float64) []float64 {
	if math.IsNaN(lambda) || lambda < 0 || math.IsInf(lambda, 0) {
		return nil
	}
	i := c.gridIndex(lambda)
	if i < len(c.rows) {
		return c.rows[i]
	}
	return poissonRow(float64(i)*c.step, c.maxGoals)
}

// Prob returns P(X=k) at the snapped λ for any k, including k beyond the cached range
func (c *PoissonCache) Prob(lambda float64, k int) float64 {
	if k < 0 {
		return 0
	}
	if k <= c.maxGoals {
		row := c.Probabilities(lambda)
		if row == nil {
			return math.NaN()
		}
		return row[k]
	}
	return poissonPMF(c.Snap(lambda), k)
}

func poissonRow(lambda float64, maxGoals int) []float64 {
	row := make([]float64, maxGoals+1)
	for k := range row {
		row[k] = poissonPMF(lambda, k)
	}
	return row
}

// poissonPMF special-cases λ=0, where the distribution is a point mass at zero
func poissonPMF(lambda float64, k int) float64 {
	if lambda == 0 {
		if k == 0 {
			return 1
		}
		return 0
	}
	return distuv.Poisson{Lambda: lambda}.Prob(float64(k))
}
