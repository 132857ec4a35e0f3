package tpf

import (
	"fmt"

	"github.com/milosgajdos/matrix"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	filter "github.com/milosgajdos/go-tpf"
	rnd "github.com/milosgajdos/go-tpf/rand"
)

// Ensemble is the particle system of one filter invocation. It holds one
// state vector, one lagged (previous step) state vector, one shock vector
// and one weight per particle. States and shocks are stored as columns.
// Resampling and mutation replace the backing arrays rather than mutating
// them in place.
type Ensemble struct {
	// n is the number of particles
	n int
	// states stores current step particle states as column vectors
	states *mat.Dense
	// lagged stores previous step particle states as column vectors
	lagged *mat.Dense
	// shocks stores current step particle shocks as column vectors
	shocks *mat.Dense
	// weights stores particle weights; reset to 1 after every resample
	weights []float64
}

// NewEnsemble creates a new particle ensemble of n particles with ne shocks
// per particle, drawn from the Gaussian prior defined by the initial
// condition ic using the random stream src.
// It returns error if n is non-positive or the prior draw fails.
func NewEnsemble(ic filter.InitCond, ne, n int, src *rand.Rand) (*Ensemble, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid particle count: %d", n)
	}

	x, err := rnd.WithCovN(ic.Cov(), n, src)
	if err != nil {
		return nil, fmt.Errorf("failed to generate filter particles: %v", err)
	}

	rows, cols := x.Dims()
	// center particles around the initial state
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			x.Set(r, c, x.At(r, c)+ic.State().AtVec(r))
		}
	}

	lagged := &mat.Dense{}
	lagged.CloneFrom(x)

	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}

	return &Ensemble{
		n:       n,
		states:  x,
		lagged:  lagged,
		shocks:  mat.NewDense(ne, n, nil),
		weights: w,
	}, nil
}

// Len returns the number of particles.
func (e *Ensemble) Len() int {
	return e.n
}

// Weights returns a copy of the particle weights.
func (e *Ensemble) Weights() []float64 {
	w := make([]float64, len(e.weights))
	copy(w, e.weights)

	return w
}

// Neff returns the effective sample size n^2 / sum(w^2) of the current
// weights: the number of i.i.d. draws the weighted ensemble is worth.
func (e *Ensemble) Neff() float64 {
	var sumSq float64
	for _, w := range e.weights {
		sumSq += w * w
	}

	return float64(e.n) * float64(e.n) / sumSq
}

// Reindex gathers states, lagged states and shocks by the resampling
// indices in idx, replacing the ensemble's backing arrays.
func (e *Ensemble) Reindex(idx []int) {
	nx, _ := e.states.Dims()
	ne, _ := e.shocks.Dims()

	states := mat.NewDense(nx, e.n, nil)
	lagged := mat.NewDense(nx, e.n, nil)
	shocks := mat.NewDense(ne, e.n, nil)

	for j, k := range idx {
		states.SetCol(j, mat.Col(nil, k, e.states))
		lagged.SetCol(j, mat.Col(nil, k, e.lagged))
		shocks.SetCol(j, mat.Col(nil, k, e.shocks))
	}

	e.states = states
	e.lagged = lagged
	e.shocks = shocks
}

// ResetWeights sets every particle weight back to 1.
func (e *Ensemble) ResetWeights() {
	for i := range e.weights {
		e.weights[i] = 1
	}
}

// advance promotes the current states to the lagged position so they seed
// the next time step.
func (e *Ensemble) advance() {
	lagged := &mat.Dense{}
	lagged.CloneFrom(e.states)
	e.lagged = lagged
}

// States returns a copy of the particle states stored in columns.
func (e *Ensemble) States() mat.Matrix {
	s := &mat.Dense{}
	s.CloneFrom(e.states)

	return s
}

// Mean returns the plain column mean of the particle states; diagnostic only.
func (e *Ensemble) Mean() *mat.VecDense {
	nx, _ := e.states.Dims()
	m := mat.NewVecDense(nx, nil)

	for i := 0; i < nx; i++ {
		m.SetVec(i, mat.Sum(e.states.RowView(i))/float64(e.n))
	}

	return m
}

// Cov returns the sample covariance of the particle states; diagnostic only.
// It returns error if the covariance fails to be calculated.
func (e *Ensemble) Cov() (mat.Symmetric, error) {
	cov, err := matrix.Cov(e.states, "cols")
	if err != nil {
		return nil, fmt.Errorf("failed to calculate ensemble covariance: %v", err)
	}

	return cov, nil
}
