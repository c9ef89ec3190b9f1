package forecast

import (
	"fmt"
	"math"
)

// Model is the regression capability the forecaster trains per product.
type Model interface {
	Fit(features [][]float64, target []float64) error
	Predict(features []float64) float64
}

// Ridge is a regularized least-squares model solved in closed form via
// the normal equations. The small penalty keeps the system solvable when
// features are collinear (day-of-month and days-since-start move in
// lockstep within a month). The intercept is not penalized.
type Ridge struct {
	Lambda  float64
	weights []float64 // weights[0] is the intercept
}

// NewRidge creates a Ridge model with the default penalty.
func NewRidge() *Ridge {
	return &Ridge{Lambda: 1e-3}
}

// Fit solves (X'X + λI)w = X'y with an intercept column prepended.
func (m *Ridge) Fit(features [][]float64, target []float64) error {
	n := len(features)
	if n == 0 || n != len(target) {
		return fmt.Errorf("fit: %d feature rows for %d targets", n, len(target))
	}
	p := len(features[0]) + 1 // plus intercept

	// Normal equations, accumulated directly.
	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p)
	}
	b := make([]float64, p)

	row := make([]float64, p)
	for i := 0; i < n; i++ {
		if len(features[i])+1 != p {
			return fmt.Errorf("fit: ragged feature row %d", i)
		}
		row[0] = 1
		copy(row[1:], features[i])
		for j := 0; j < p; j++ {
			for k := 0; k < p; k++ {
				a[j][k] += row[j] * row[k]
			}
			b[j] += row[j] * target[i]
		}
	}
	for j := 1; j < p; j++ {
		a[j][j] += m.Lambda
	}

	weights, err := solve(a, b)
	if err != nil {
		return err
	}
	m.weights = weights
	return nil
}

// Predict returns the fitted linear combination for one feature vector.
func (m *Ridge) Predict(features []float64) float64 {
	if m.weights == nil {
		return 0
	}
	y := m.weights[0]
	for i, x := range features {
		if i+1 >= len(m.weights) {
			break
		}
		y += m.weights[i+1] * x
	}
	return y
}

// solve performs Gaussian elimination with partial pivoting on a copy of
// the system.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		// Pivot on the largest magnitude in the column.
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular system at column %d", col)
		}
		m[col], m[pivot] = m[pivot], m[col]

		for r := col + 1; r < n; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := m[i][n]
		for j := i + 1; j < n; j++ {
			sum -= m[i][j] * x[j]
		}
		x[i] = sum / m[i][i]
	}
	return x, nil
}
