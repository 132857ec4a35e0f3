package filter

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// StateSpace provides the system matrices of a linear(ized) Gaussian
// state-space model, selected per time step so regime switches (e.g. a
// binding constraint period) stay inside the provider:
//
//	x[t] = T*x[t-1] + R*eps[t] + C,  eps[t] ~ N(0, Q)
//	y[t] = Z*x[t] + D + eta[t],      eta[t] ~ N(0, E)
type StateSpace interface {
	// Transition returns transition matrix T, shock loading R and state intercept C active at step t
	Transition(t int) (T, R *mat.Dense, C *mat.VecDense)
	// Measurement returns measurement loading Z and intercept D active at step t
	Measurement(t int) (Z *mat.Dense, D *mat.VecDense)
	// Covariances returns shock covariance Q and measurement error covariance E active at step t
	Covariances(t int) (Q, E mat.Symmetric)
	// SystemDims returns state, shock and observation dimensions of the model
	SystemDims() (nx, ne, ny int)
}

// InitCond is initial state condition of the filter
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Filter evaluates the likelihood of an observed time series.
type Filter interface {
	// Filter runs the filter over the whole observation series
	Filter(obs []Observation) (*RunStats, error)
}

// RunStats collects per time step outputs of one filter invocation.
type RunStats struct {
	// LogLik is per step log-likelihood increment
	LogLik []float64
	// Neff is per step effective sample size
	Neff []float64
	// Elapsed is per step wall clock time; diagnostic only
	Elapsed []time.Duration
}

// Total returns the accumulated log-likelihood over all retained steps.
func (r *RunStats) Total() float64 {
	return floats.Sum(r.LogLik)
}

// Trim drops the first n presample steps from every series and returns the
// trimmed stats. It returns r unchanged if n is non-positive or exceeds the
// number of recorded steps.
func (r *RunStats) Trim(n int) *RunStats {
	if n <= 0 || n > len(r.LogLik) {
		return r
	}

	return &RunStats{
		LogLik:  r.LogLik[n:],
		Neff:    r.Neff[n:],
		Elapsed: r.Elapsed[n:],
	}
}
