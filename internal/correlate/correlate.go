// Package correlate measures how two daily series move together: date
// alignment, log returns, Pearson/covariance statistics, an OLS fit, rolling
// correlation, and a conditional Monte Carlo projection of one series under
// a shock to the other.
package correlate

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/Henners-111/Stock-Correlation/internal/ohlcv"
)

func Mean(a []float64) float64 {
	var s float64
	for _, v := range a {
		s += v
	}
	return s / float64(len(a))
}

// Cov is the sample covariance (n-1 denominator).
func Cov(x, y []float64) float64 {
	mx, my := Mean(x), Mean(y)
	var s float64
	for i := range x {
		s += (x[i] - mx) * (y[i] - my)
	}
	return s / float64(len(x)-1)
}

func Variance(a []float64) float64 { return Cov(a, a) }

func Std(a []float64) float64 { return math.Sqrt(Variance(a)) }

func Pearson(x, y []float64) float64 {
	return Cov(x, y) / (Std(x) * Std(y))
}

// FitOLS regresses y on x and returns the intercept and slope.
func FitOLS(x, y []float64) (alpha, beta float64) {
	beta = Cov(x, y) / Variance(x)
	alpha = Mean(y) - beta*Mean(x)
	return alpha, beta
}

// Result is the paired-returns statistics block.
type Result struct {
	Pearson float64 `json:"pearson"`
	Cov     float64 `json:"cov"`
	VarA    float64 `json:"varA"`
	VarB    float64 `json:"varB"`
	Alpha   float64 `json:"alpha"`
	Beta    float64 `json:"beta"`
}

// Correlation computes the statistics block for two equal-length return
// series.
func Correlation(rA, rB []float64) (Result, error) {
	if len(rA) != len(rB) {
		return Result{}, errors.New("length mismatch")
	}
	alpha, beta := FitOLS(rA, rB)
	return Result{
		Pearson: Pearson(rA, rB),
		Cov:     Cov(rA, rB),
		VarA:    Variance(rA),
		VarB:    Variance(rB),
		Alpha:   alpha,
		Beta:    beta,
	}, nil
}

// AlignByDate intersects two series on their date column. Output order
// follows a; rows of b are matched by date.
func AlignByDate(a, b []ohlcv.Row) ([]ohlcv.Row, []ohlcv.Row) {
	byDate := make(map[string]ohlcv.Row, len(b))
	for _, row := range b {
		byDate[row.Date] = row
	}
	var outA, outB []ohlcv.Row
	for _, row := range a {
		if other, ok := byDate[row.Date]; ok {
			outA = append(outA, row)
			outB = append(outB, other)
		}
	}
	return outA, outB
}

// LogReturns converts a close series to daily log returns. The returned
// dates are those of each return's later day.
func LogReturns(rows []ohlcv.Row) (returns []float64, dates []string) {
	for i := 1; i < len(rows); i++ {
		returns = append(returns, math.Log(rows[i].Close/rows[i-1].Close))
		dates = append(dates, rows[i].Date)
	}
	return returns, dates
}

// Cholesky2 factors a positive-definite 2x2 covariance matrix into its
// lower-triangular root.
func Cholesky2(c [2][2]float64) [2][2]float64 {
	a := math.Sqrt(c[0][0])
	b := c[0][1] / a
	d := math.Sqrt(c[1][1] - b*b)
	return [2][2]float64{{a, 0}, {b, d}}
}

// BivariateNormalSamples draws n correlated pairs from N(mu, cov).
func BivariateNormalSamples(mu [2]float64, cov [2][2]float64, n int, u func() float64) [][2]float64 {
	if u == nil {
		u = rand.Float64
	}
	l := Cholesky2(cov)
	out := make([][2]float64, n)
	for i := range out {
		z0 := gaussian(u)
		z1 := gaussian(u)
		out[i] = [2]float64{
			mu[0] + l[0][0]*z0,
			mu[1] + l[1][0]*z0 + l[1][1]*z1,
		}
	}
	return out
}

// gaussian draws a standard normal via the Box-Muller transform from a
// uniform source.
func gaussian(u func() float64) float64 {
	var a, b float64
	for a == 0 {
		a = u()
	}
	for b == 0 {
		b = u()
	}
	return math.Sqrt(-2*math.Log(a)) * math.Cos(2*math.Pi*b)
}

// ShockResult is the conditional Monte Carlo summary: the distribution of
// B's daily return given a shocked return on A.
type ShockResult struct {
	Shock     float64 `json:"shock"`
	ExpectedB float64 `json:"expectedB"`
	Q05       float64 `json:"q05"`
	Q50       float64 `json:"q50"`
	Q95       float64 `json:"q95"`
	Samples   int     `json:"samples"`
}

// ConditionalShock samples B | (A's return = mean(A) + shock). The
// conditional law is Normal with mean muB + (CovAB/VarA)*shock and variance
// VarB - CovAB^2/VarA, floored to keep the square root defined when the two
// series are perfectly correlated.
func ConditionalShock(rA, rB []float64, shock float64, sims int, u func() float64) ShockResult {
	if u == nil {
		u = rand.Float64
	}
	varA := Variance(rA)
	varB := Variance(rB)
	covAB := Cov(rA, rB)

	mean := Mean(rB) + (covAB/varA)*shock
	cvar := varB - (covAB*covAB)/varA
	if cvar < 1e-12 {
		cvar = 1e-12
	}
	sd := math.Sqrt(cvar)

	samples := make([]float64, sims)
	for i := range samples {
		samples[i] = mean + sd*gaussian(u)
	}
	return ShockResult{
		Shock:     shock,
		ExpectedB: mean,
		Q05:       quantile(samples, 0.05),
		Q50:       quantile(samples, 0.50),
		Q95:       quantile(samples, 0.95),
		Samples:   sims,
	}
}

func quantile(a []float64, p float64) float64 {
	s := make([]float64, len(a))
	copy(s, a)
	sort.Float64s(s)
	k := int(math.Floor(float64(len(s)-1) * p))
	return s[k]
}

// RollingPoint is one window of rolling correlation, stamped with the
// window's last date.
type RollingPoint struct {
	Date string  `json:"date"`
	R    float64 `json:"r"`
}

// Analysis is the full correlation report for two aligned series.
type Analysis struct {
	Overlap int `json:"overlap"`
	Points  int `json:"points"`
	Result
	VolA    float64        `json:"volA"`
	VolB    float64        `json:"volB"`
	Window  int            `json:"window"`
	Rolling []RollingPoint `json:"rolling"`
	MC      ShockResult    `json:"monteCarlo"`
}

// Options tune an analysis run. Zero values take the defaults: a 30-day
// window (floored at 5), 5000 simulations, and the package-level uniform
// source.
type Options struct {
	Shock  float64        // shock to A's mean daily return, as a fraction
	Window int            // rolling correlation window
	Sims   int            // Monte Carlo sample count
	Rand   func() float64 // uniform source in [0,1)
}

// Analyze aligns two sanitized series and computes the full report.
func Analyze(a, b []ohlcv.Row, opt Options) (*Analysis, error) {
	alignedA, alignedB := AlignByDate(a, b)
	if len(alignedA) < 2 {
		return nil, fmt.Errorf("not enough overlapping data (overlap=%d)", len(alignedA))
	}
	rA, dates := LogReturns(alignedA)
	rB, _ := LogReturns(alignedB)
	if len(rA) < 2 {
		return nil, errors.New("not enough return points")
	}

	res, err := Correlation(rA, rB)
	if err != nil {
		return nil, err
	}
	// Flat series produce 0/0 statistics that cannot be serialized.
	if res.VarA == 0 || res.VarB == 0 {
		return nil, errors.New("returns have zero variance")
	}

	window := opt.Window
	if window <= 0 {
		window = 30
	}
	if window < 5 {
		window = 5
	}
	sims := opt.Sims
	if sims <= 0 {
		sims = 5000
	}

	rolling := []RollingPoint{}
	for i := 0; i+window <= len(rA); i++ {
		rolling = append(rolling, RollingPoint{
			Date: dates[i+window-1],
			R:    Pearson(rA[i:i+window], rB[i:i+window]),
		})
	}

	return &Analysis{
		Overlap: len(alignedA),
		Points:  len(rA),
		Result:  res,
		VolA:    math.Sqrt(res.VarA),
		VolB:    math.Sqrt(res.VarB),
		Window:  window,
		Rolling: rolling,
		MC:      ConditionalShock(rA, rB, opt.Shock, sims, opt.Rand),
	}, nil
}
