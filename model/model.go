package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// InitCond implements filter.InitCond
type InitCond struct {
	state *mat.VecDense
	cov   *mat.SymDense
}

// NewInitCond creates new InitCond and returns it
func NewInitCond(state mat.Vector, cov mat.Symmetric) *InitCond {
	s := &mat.VecDense{}
	s.CloneFromVec(state)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &InitCond{
		state: s,
		cov:   c,
	}
}

// State returns initial state
func (c *InitCond) State() mat.Vector {
	state := mat.NewVecDense(c.state.Len(), nil)
	state.CloneFromVec(c.state)

	return state
}

// Cov returns initial covariance
func (c *InitCond) Cov() mat.Symmetric {
	cov := mat.NewSymDense(c.cov.SymmetricDim(), nil)
	cov.CopySym(c.cov)

	return cov
}

// Regime is one complete set of system matrices:
//
//	x[t] = T*x[t-1] + R*eps[t] + C,  eps[t] ~ N(0, Q)
//	y[t] = Z*x[t] + D + eta[t],      eta[t] ~ N(0, E)
type Regime struct {
	// T is state transition matrix
	T *mat.Dense
	// R is shock loading matrix
	R *mat.Dense
	// C is state intercept vector
	C *mat.VecDense
	// Z is measurement loading matrix
	Z *mat.Dense
	// D is measurement intercept vector
	D *mat.VecDense
	// Q is shock covariance
	Q *mat.SymDense
	// E is measurement error covariance
	E *mat.SymDense
}

func (r *Regime) dims() (nx, ne, ny int) {
	nx, _ = r.T.Dims()
	_, ne = r.R.Dims()
	ny, _ = r.Z.Dims()

	return nx, ne, ny
}

func (r *Regime) validate() error {
	nx, ne, ny := r.dims()

	if rows, cols := r.T.Dims(); rows != cols {
		return fmt.Errorf("invalid transition matrix dimensions: [%d x %d]", rows, cols)
	}

	if rows, _ := r.R.Dims(); rows != nx {
		return fmt.Errorf("invalid shock loading dimensions: [%d x %d]", rows, ne)
	}

	if r.C.Len() != nx {
		return fmt.Errorf("invalid state intercept length: %d", r.C.Len())
	}

	if _, cols := r.Z.Dims(); cols != nx {
		return fmt.Errorf("invalid measurement loading dimensions: [%d x %d]", ny, cols)
	}

	if r.D.Len() != ny {
		return fmt.Errorf("invalid measurement intercept length: %d", r.D.Len())
	}

	if r.Q.SymmetricDim() != ne {
		return fmt.Errorf("invalid shock covariance dimension: %d", r.Q.SymmetricDim())
	}

	if r.E.SymmetricDim() != ny {
		return fmt.Errorf("invalid measurement error covariance dimension: %d", r.E.SymmetricDim())
	}

	return nil
}

// LinearStateSpace is a regime switching linear Gaussian state-space model.
// It implements filter.StateSpace. Regimes change only at configured step
// boundaries, never mid-step.
type LinearStateSpace struct {
	regimes []Regime
	// switches[i] is the first step at which regimes[i+1] applies
	switches []int
}

// New creates new LinearStateSpace from one or more regimes and their switch
// points and returns it. switches must hold exactly len(regimes)-1 strictly
// ascending step indices. It returns error if the regimes disagree on system
// dimensions or any regime's matrices are inconsistently sized.
func New(regimes []Regime, switches []int) (*LinearStateSpace, error) {
	if len(regimes) == 0 {
		return nil, fmt.Errorf("no regimes given")
	}

	if len(switches) != len(regimes)-1 {
		return nil, fmt.Errorf("invalid switch point count: %d", len(switches))
	}

	for i := 1; i < len(switches); i++ {
		if switches[i] <= switches[i-1] {
			return nil, fmt.Errorf("switch points not ascending: %v", switches)
		}
	}

	nx, ne, ny := regimes[0].dims()
	for i := range regimes {
		if err := regimes[i].validate(); err != nil {
			return nil, fmt.Errorf("regime %d: %v", i, err)
		}

		rx, re, ry := regimes[i].dims()
		if rx != nx || re != ne || ry != ny {
			return nil, fmt.Errorf("regime %d dimensions differ: [%d %d %d]", i, rx, re, ry)
		}
	}

	return &LinearStateSpace{
		regimes:  regimes,
		switches: switches,
	}, nil
}

// regimeAt returns the regime active at step t.
func (m *LinearStateSpace) regimeAt(t int) *Regime {
	i := 0
	for i < len(m.switches) && t >= m.switches[i] {
		i++
	}

	return &m.regimes[i]
}

// Transition returns transition matrix T, shock loading R and state intercept C active at step t
func (m *LinearStateSpace) Transition(t int) (*mat.Dense, *mat.Dense, *mat.VecDense) {
	r := m.regimeAt(t)

	T := &mat.Dense{}
	T.CloneFrom(r.T)

	R := &mat.Dense{}
	R.CloneFrom(r.R)

	C := &mat.VecDense{}
	C.CloneFromVec(r.C)

	return T, R, C
}

// Measurement returns measurement loading Z and intercept D active at step t
func (m *LinearStateSpace) Measurement(t int) (*mat.Dense, *mat.VecDense) {
	r := m.regimeAt(t)

	Z := &mat.Dense{}
	Z.CloneFrom(r.Z)

	D := &mat.VecDense{}
	D.CloneFromVec(r.D)

	return Z, D
}

// Covariances returns shock covariance Q and measurement error covariance E active at step t
func (m *LinearStateSpace) Covariances(t int) (mat.Symmetric, mat.Symmetric) {
	r := m.regimeAt(t)

	Q := mat.NewSymDense(r.Q.SymmetricDim(), nil)
	Q.CopySym(r.Q)

	E := mat.NewSymDense(r.E.SymmetricDim(), nil)
	E.CopySym(r.E)

	return Q, E
}

// SystemDims returns state, shock and observation dimensions of the model
func (m *LinearStateSpace) SystemDims() (nx, ne, ny int) {
	return m.regimes[0].dims()
}
