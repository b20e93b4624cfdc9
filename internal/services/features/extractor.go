package features

import (
	"math"
)

// TradingDaysPerYear annualises daily statistics.
const TradingDaysPerYear = 252.0

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func ComputeLogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the last window
// returns using the provided number of bars per year.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// Last returns the final element of xs, or NaN when empty.
func Last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

// Window returns the last n elements of xs, or nil when xs is shorter than n.
func Window(xs []float64, n int) []float64 {
	if n <= 0 || len(xs) < n {
		return nil
	}
	return xs[len(xs)-n:]
}

// Sum adds xs.
func Sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

// Mean is the arithmetic mean, NaN for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return Sum(xs) / float64(len(xs))
}

// StdDev is the population standard deviation.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// SampleStdDev uses the n-1 denominator.
func SampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// SMA is the mean of the last period values.
func SMA(xs []float64, period int) float64 {
	w := Window(xs, period)
	if w == nil {
		return math.NaN()
	}
	return Mean(w)
}

// SMASeries returns the rolling simple average aligned to xs. The first period-1
// entries are NaN.
func SMASeries(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= period {
			sum -= xs[i-period]
		}
		if i+1 < period {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

// EMASeries returns the exponential moving average aligned to xs, seeded with the SMA of
// the first period values. Entries before the seed are NaN.
func EMASeries(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	if period <= 0 || len(xs) < period {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	k := 2.0 / float64(period+1)
	seed := Mean(xs[:period])
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}
	out[period-1] = seed
	prev := seed
	for i := period; i < len(xs); i++ {
		prev = xs[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// EMA returns the latest exponential moving average.
func EMA(xs []float64, period int) float64 {
	return Last(EMASeries(xs, period))
}

// LinearFit is an ordinary least squares fit of y against x.
type LinearFit struct {
	Slope     float64
	Intercept float64
	R2        float64
}

// OLS fits y = a + b*x. R2 is 0 when y has no variance.
func OLS(x, y []float64) (LinearFit, bool) {
	n := len(x)
	if n < 2 || len(y) != n {
		return LinearFit{}, false
	}
	mx, my := Mean(x), Mean(y)
	var sxx, sxy, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return LinearFit{}, false
	}
	b := sxy / sxx
	fit := LinearFit{Slope: b, Intercept: my - b*mx}
	if syy > 0 {
		fit.R2 = (sxy * sxy) / (sxx * syy)
	}
	return fit, true
}

// Index returns 0..n-1 as floats.
func Index(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// MinMax returns the extremes of xs.
func MinMax(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// ZScore of x against the window. Returns 0 when the window is flat.
func ZScore(x float64, window []float64) float64 {
	sd := StdDev(window)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return (x - Mean(window)) / sd
}

// ConsecutiveSign counts same-sign values ending at the tail of xs. The result is positive
// for a run of positives, negative for negatives, and 0 when the last value is exactly zero.
func ConsecutiveSign(xs []float64) int {
	if len(xs) == 0 {
		return 0
	}
	last := xs[len(xs)-1]
	if last == 0 {
		return 0
	}
	n := 0
	for i := len(xs) - 1; i >= 0; i-- {
		if (last > 0 && xs[i] > 0) || (last < 0 && xs[i] < 0) {
			n++
			continue
		}
		break
	}
	if last < 0 {
		return -n
	}
	return n
}

// Round rounds to the given decimals.
func Round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}

// Finite reports whether x is neither NaN nor infinite.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
