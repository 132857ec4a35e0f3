// Package tpf implements a Tempered Particle Filter (TPF): a sequential
// Monte Carlo likelihood evaluator for linear(ized) Gaussian state-space
// models which anneals the sharpness of the observation density within each
// time step to avoid particle weight collapse.
// For more information about the tempered particle filter see:
// https://doi.org/10.1016/j.jeconom.2019.01.003
package tpf

import (
	"fmt"
	"time"

	"github.com/pion/logging"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	filter "github.com/milosgajdos/go-tpf"
	rnd "github.com/milosgajdos/go-tpf/rand"
)

// TPF is a Tempered Particle Filter. It is created once per likelihood
// evaluation; time steps run strictly sequentially because each step's
// mutated ensemble seeds the next one.
type TPF struct {
	// model provides the regime dependent system matrices
	model filter.StateSpace
	// cfg is the immutable filter configuration
	cfg filter.Config
	// log is the filter's diagnostic logger
	log logging.LeveledLogger
	// e is the particle ensemble
	e *Ensemble
	// c is the mutation proposal scale, adapted between sub-steps
	c float64
	// accept is the most recent mutation acceptance rate
	accept float64
	// seed anchors every random stream of the invocation
	seed uint64
	// resampleSrc drives the multinomial resampler
	resampleSrc *rand.Rand
	// shockSrc drives shock draws when no draw matrix is supplied
	shockSrc *rand.Rand
	// history records resampling indices in deterministic mode
	history [][]int
	// phis holds the tempering schedule of the last completed step
	phis []float64
}

// Option configures the filter.
type Option func(*TPF)

// WithLogger injects a leveled logger into the filter.
func WithLogger(l logging.LeveledLogger) Option {
	return func(f *TPF) {
		f.log = l
	}
}

// New creates a new Tempered Particle Filter for the state-space model m
// with initial condition ic and configuration cfg and returns it.
// It returns error if the configuration is invalid, the model dimensions
// are inconsistent or the initial particle draw fails.
func New(m filter.StateSpace, ic filter.InitCond, cfg filter.Config, opts ...Option) (*TPF, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nx, ne, ny := m.SystemDims()
	if nx <= 0 || ne <= 0 || ny <= 0 {
		return nil, fmt.Errorf("invalid model dimensions: [%d %d %d]", nx, ne, ny)
	}

	if ic.State().Len() != nx {
		return nil, fmt.Errorf("invalid initial state dimension: %d", ic.State().Len())
	}

	if cfg.RandMat != nil {
		if rows, _ := cfg.RandMat.Dims(); rows != ne {
			return nil, fmt.Errorf("invalid draw matrix row count: %d", rows)
		}
	}

	seed := cfg.Seed
	if !cfg.Deterministic {
		seed = uint64(time.Now().UnixNano())
	}

	f := &TPF{
		model:       m,
		cfg:         cfg,
		log:         logging.NewDefaultLoggerFactory().NewLogger("tpf"),
		c:           cfg.CStar,
		accept:      cfg.AcceptRate,
		seed:        seed,
		resampleSrc: rand.New(rand.NewSource(seed + 1)),
		shockSrc:    rand.New(rand.NewSource(seed + 2)),
	}

	for _, opt := range opts {
		opt(f)
	}

	e, err := NewEnsemble(ic, ne, cfg.NParticles, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	f.e = e

	return f, nil
}

// StepResult is the outcome of one filter time step.
type StepResult struct {
	// LogLik is the step's log-likelihood increment: the sum of all
	// sub-step contributions
	LogLik float64
	// Neff is the effective sample size after the final correction
	Neff float64
	// Phis is the step's tempering schedule
	Phis []float64
	// Elapsed is the step's wall clock time; diagnostic only
	Elapsed time.Duration
}

// Step runs one time step of the filter for observation obs at step t:
// it propagates the ensemble through the transition equation, anneals the
// observation density from the initializing coefficient up to 1, resampling
// and mutating along the way, and leaves the ensemble ready to seed step
// t+1. A fully missing observation degenerates to propagation only.
func (f *TPF) Step(t int, obs filter.Observation) (*StepResult, error) {
	start := time.Now()

	nx, ne, ny := f.model.SystemDims()
	if obs.Len() != ny {
		return nil, fmt.Errorf("invalid observation size: %d", obs.Len())
	}

	if r, _ := f.e.states.Dims(); r != nx {
		return nil, fmt.Errorf("invalid ensemble state dimension: %d", r)
	}

	T, R, C := f.model.Transition(t)
	Q, _ := f.model.Covariances(t)

	chQ, err := spdCholesky(Q)
	if err != nil {
		return nil, fmt.Errorf("shock covariance: %v", err)
	}

	lq := &mat.TriDense{}
	chQ.LTo(lq)

	eps, err := f.drawShocks(t, ne, lq)
	if err != nil {
		return nil, err
	}

	f.propagate(T, R, C, eps)

	if obs.AllMissing() {
		f.e.advance()
		return &StepResult{
			LogLik:  0,
			Neff:    f.e.Neff(),
			Elapsed: time.Since(start),
		}, nil
	}

	qInv := mat.NewSymDense(ne, nil)
	if err := chQ.InverseTo(qInv); err != nil {
		return nil, fmt.Errorf("singular shock covariance: %v", err)
	}

	// slice all measurement objects to the observed rows for this step
	Z, D := f.model.Measurement(t)
	_, E := f.model.Covariances(t)
	idx := obs.ObservedIdx()
	d := len(idx)
	Zs := sliceRows(Z, idx)
	Ds := sliceVec(D, idx)
	Es := sliceSym(E, idx)
	ys := obs.Sliced(idx)

	chE, err := spdCholesky(Es)
	if err != nil {
		return nil, fmt.Errorf("measurement error covariance: %v", err)
	}

	eInv := mat.NewSymDense(d, nil)
	if err := chE.InverseTo(eInv); err != nil {
		return nil, fmt.Errorf("singular measurement error covariance: %v", err)
	}
	logDetE := chE.LogDet()

	quad := f.quadForms(Zs, Ds, ys, eInv)

	ctx := &mutationCtx{
		nmh:  f.cfg.NMHSimulations,
		T:    T,
		R:    R,
		C:    C,
		Z:    Zs,
		D:    Ds,
		y:    ys,
		eInv: eInv,
		lq:   lq,
		qInv: qInv,
	}

	f.phis = f.phis[:0]
	var loglik, neff float64

	// initializing sub-step: corrected against a flat previous density,
	// no mutation pass
	var phiOld float64
	if f.cfg.Deterministic {
		phiOld = f.cfg.PhiInit
	} else {
		var failed bool
		phiOld, _, failed = nextPhi(0, quad, f.cfg.RStar, f.cfg.XTolerance)
		if failed {
			f.log.Debugf("step %d: initializer bracket failed, step treated as fully tempered", t)
		}
	}

	ll, nf, err := f.correctStep(phiOld, 0, quad, d, logDetE)
	if err != nil {
		return nil, err
	}
	loglik += ll
	neff = nf
	f.phis = append(f.phis, phiOld)

	// temper loop and finalization: every pass corrects, adapts the step
	// scale and mutates; the last pass runs at phi = 1
	for phiOld < 1 {
		var phiNew float64
		if f.cfg.Deterministic {
			phiNew = 1
		} else {
			var failed bool
			phiNew, _, failed = nextPhi(phiOld, quad, f.cfg.RStar, f.cfg.XTolerance)
			if failed {
				f.log.Debugf("step %d: tempering bracket failed at phi=%f, step treated as fully tempered", t, phiOld)
			}
		}

		ll, nf, err := f.correctStep(phiNew, phiOld, quad, d, logDetE)
		if err != nil {
			return nil, err
		}
		loglik += ll
		neff = nf
		f.phis = append(f.phis, phiNew)

		f.c = tuneScale(f.c, f.accept, f.cfg.TargetAcceptRate)
		ctx.phi = phiNew
		ctx.scale = f.c
		f.accept, quad = f.mutate(f.e, ctx, t)

		phiOld = phiNew
	}

	f.e.advance()

	return &StepResult{
		LogLik:  loglik,
		Neff:    neff,
		Phis:    append([]float64(nil), f.phis...),
		Elapsed: time.Since(start),
	}, nil
}

// Filter runs the filter over the whole observation series and returns the
// per step log-likelihood, effective sample size and timing series, trimmed
// by the configured presample count. Any step error aborts the invocation:
// the ensemble is sequential and cannot be replayed from an intermediate
// step.
func (f *TPF) Filter(obs []filter.Observation) (*filter.RunStats, error) {
	stats := &filter.RunStats{
		LogLik:  make([]float64, 0, len(obs)),
		Neff:    make([]float64, 0, len(obs)),
		Elapsed: make([]time.Duration, 0, len(obs)),
	}

	for t, o := range obs {
		res, err := f.Step(t, o)
		if err != nil {
			return nil, fmt.Errorf("step %d: %v", t, err)
		}

		stats.LogLik = append(stats.LogLik, res.LogLik)
		stats.Neff = append(stats.Neff, res.Neff)
		stats.Elapsed = append(stats.Elapsed, res.Elapsed)
	}

	return stats.Trim(f.cfg.NPresample), nil
}

// correctStep runs one correction-resampling pass and records the drawn
// indices in deterministic mode.
func (f *TPF) correctStep(phiNew, phiOld float64, quad []float64, d int, logDetE float64) (float64, float64, error) {
	ll, neff, idx, err := f.correct(f.e, phiNew, phiOld, quad, d, logDetE)
	if err != nil {
		return 0, 0, err
	}

	if f.cfg.Deterministic {
		f.history = append(f.history, idx)
	}

	return ll, neff, nil
}

// drawShocks returns this step's structural shock draws stored in columns.
// In deterministic mode with a supplied draw matrix the step consumes its
// own column block; otherwise fresh standard normal draws are taken from the
// invocation's shock stream. Raw draws are scaled by the lower Cholesky
// factor lq of the shock covariance.
func (f *TPF) drawShocks(t, ne int, lq *mat.TriDense) (*mat.Dense, error) {
	n := f.cfg.NParticles

	var draws *mat.Dense
	if f.cfg.Deterministic && f.cfg.RandMat != nil {
		rows, cols := f.cfg.RandMat.Dims()
		if rows != ne || cols < (t+1)*n {
			return nil, fmt.Errorf("invalid draw matrix dimensions: [%d x %d]", rows, cols)
		}
		draws = mat.DenseCopyOf(f.cfg.RandMat.Slice(0, ne, t*n, (t+1)*n))
	} else {
		draws = rnd.NewDrawMatrix(ne, n, f.shockSrc)
	}

	eps := &mat.Dense{}
	eps.Mul(lq, draws)

	return eps, nil
}

// propagate forecasts every particle through the transition equation and
// installs the forecasted states and shocks into the ensemble.
func (f *TPF) propagate(T, R *mat.Dense, C *mat.VecDense, eps *mat.Dense) {
	states := &mat.Dense{}
	states.Mul(T, f.e.lagged)

	re := &mat.Dense{}
	re.Mul(R, eps)
	states.Add(states, re)

	nx, n := states.Dims()
	for j := 0; j < n; j++ {
		for i := 0; i < nx; i++ {
			states.Set(i, j, states.At(i, j)+C.AtVec(i))
		}
	}

	f.e.states = states
	f.e.shocks = eps
}

// quadForms returns the per particle quadratic forms e'*inv(E)*e of the
// measurement errors against the sliced observation.
func (f *TPF) quadForms(Z *mat.Dense, D, y *mat.VecDense, eInv *mat.SymDense) []float64 {
	pred := &mat.Dense{}
	pred.Mul(Z, f.e.states)

	d, n := pred.Dims()
	quad := make([]float64, n)
	e := mat.NewVecDense(d, nil)

	for j := 0; j < n; j++ {
		for i := 0; i < d; i++ {
			e.SetVec(i, y.AtVec(i)-pred.At(i, j)-D.AtVec(i))
		}
		quad[j] = mat.Inner(e, eInv, e)
	}

	return quad
}

// Particles returns a copy of the filter's particle states stored in columns.
func (f *TPF) Particles() mat.Matrix {
	return f.e.States()
}

// Weights returns a copy of the filter's particle weights.
func (f *TPF) Weights() []float64 {
	return f.e.Weights()
}

// Scale returns the current mutation proposal scale.
func (f *TPF) Scale() float64 {
	return f.c
}

// AcceptRate returns the most recent mutation acceptance rate.
func (f *TPF) AcceptRate() float64 {
	return f.accept
}

// IndexHistory returns the resampling index history recorded so far;
// populated in deterministic mode only.
func (f *TPF) IndexHistory() [][]int {
	h := make([][]int, len(f.history))
	for i, idx := range f.history {
		h[i] = append([]int(nil), idx...)
	}

	return h
}
