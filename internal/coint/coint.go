// Package coint implements the augmented Engle-Granger cointegration test.
//
// The result is advisory. Callers compare PValue against a significance level
// and decide for themselves whether to act on the verdict.
package coint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"pairbot-go/internal/hedge"
	"pairbot-go/internal/series"
)

// DefaultSignificance is the conventional 5% level.
const DefaultSignificance = 0.05

// Result reports the unit-root statistic on the cointegrating residuals.
type Result struct {
	Statistic      float64    `json:"statistic"`
	PValue         float64    `json:"p_value"`
	CriticalValues [3]float64 `json:"critical_values"` // 1%, 5%, 10%
	UsedLag        int        `json:"used_lag"`
	NObs           int        `json:"nobs"`
}

// Cointegrated reports whether the null of no cointegration is rejected at level.
func (r Result) Cointegrated(level float64) bool { return r.PValue < level }

// Verdict renders the advisory outcome for display.
func (r Result) Verdict(level float64) string {
	if r.Cointegrated(level) {
		return fmt.Sprintf("cointegrated (p=%.4f < %.2f)", r.PValue, level)
	}
	return fmt.Sprintf("not cointegrated (p=%.4f >= %.2f)", r.PValue, level)
}

// collinearR2 mirrors the near-perfect fit cutoff of 1 - 100*sqrt(eps).
var collinearR2 = 1 - 100*math.Sqrt(2.220446049250313e-16)

// Test regresses A on B with an intercept and runs an ADF test without deterministic terms
// on the residuals, choosing the augmentation lag by AIC.
func Test(pair series.AlignedPair) (Result, error) {
	a, b := pair.A(), pair.B()
	fit, err := hedge.OLS(a, b)
	if err != nil {
		return Result{}, err
	}
	n := len(a)
	res := Result{CriticalValues: CriticalValues(n - 1), NObs: n}
	if fit.RSquared >= collinearR2 {
		res.Statistic = math.Inf(-1)
		res.PValue = 0
		return res, nil
	}

	stat, lag, err := adf(fit.Residuals(a, b))
	if err != nil {
		return Result{}, err
	}
	res.Statistic = stat
	res.UsedLag = lag
	res.PValue = PValue(stat)
	return res, nil
}

// adf returns the t-statistic on the lagged level and the selected number of lagged differences.
func adf(x []float64) (float64, int, error) {
	n := len(x)
	maxlag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	if limit := n/2 - 1; limit < maxlag {
		maxlag = limit
	}
	if maxlag < 0 {
		return 0, 0, fmt.Errorf("adf: %d residuals: %w", n, series.ErrInsufficientData)
	}

	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = x[i] - x[i-1]
	}

	bestLag := 0
	bestAIC := math.Inf(1)
	for lag := 0; lag <= maxlag; lag++ {
		fit, err := adfRegression(x, diff, maxlag, lag)
		if err != nil {
			return 0, 0, err
		}
		if fit.aic < bestAIC {
			bestAIC = fit.aic
			bestLag = lag
		}
	}

	fit, err := adfRegression(x, diff, bestLag, bestLag)
	if err != nil {
		return 0, 0, err
	}
	return fit.tstat, bestLag, nil
}

type olsFit struct {
	tstat float64
	aic   float64
}

// adfRegression fits diff[t] on x[t], diff[t-1..t-lag] for t >= start.
func adfRegression(x, diff []float64, start, lag int) (olsFit, error) {
	rows := len(diff) - start
	cols := lag + 1
	if rows <= cols {
		return olsFit{}, fmt.Errorf("adf: %d rows for %d regressors: %w", rows, cols, series.ErrInsufficientData)
	}

	design := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := start + r
		y.SetVec(r, diff[t])
		design.Set(r, 0, x[t])
		for k := 1; k <= lag; k++ {
			design.Set(r, k, diff[t-k])
		}
	}
	return leastSquares(design, y)
}

func leastSquares(design *mat.Dense, y *mat.VecDense) (olsFit, error) {
	rows, cols := design.Dims()

	var xtx mat.SymDense
	xtx.SymOuterK(1, design.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return olsFit{}, fmt.Errorf("adf: singular design: %w", hedge.ErrDegenerateRegression)
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), y)
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return olsFit{}, fmt.Errorf("adf: solve: %w", err)
	}

	var fitted, resid mat.VecDense
	fitted.MulVec(design, &beta)
	resid.SubVec(y, &fitted)
	ssr := mat.Dot(&resid, &resid)

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return olsFit{}, fmt.Errorf("adf: invert: %w", err)
	}
	sigma2 := ssr / float64(rows-cols)
	se := math.Sqrt(sigma2 * inv.At(0, 0))

	nf := float64(rows)
	llf := -nf / 2 * (math.Log(2*math.Pi) + math.Log(ssr/nf) + 1)
	return olsFit{
		tstat: beta.AtVec(0) / se,
		aic:   -2*llf + 2*float64(cols),
	}, nil
}
