package tpf

import (
	"math"
	"runtime"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// tuneScale nudges the mutation proposal scale c toward the target
// acceptance rate through a logistic response; the multiplicative change is
// bounded to (0.95, 1.05) per call.
func tuneScale(c, accept, target float64) float64 {
	return c * (0.95 + 0.1/(1+math.Exp(-20*(accept-target))))
}

// mutationCtx is the read-only input shared by every particle within one
// mutation call.
type mutationCtx struct {
	// phi is the current tempering coefficient
	phi float64
	// scale is the proposal step scale
	scale float64
	// nmh is the number of Metropolis-Hastings iterations per particle
	nmh int

	T *mat.Dense
	R *mat.Dense
	C *mat.VecDense
	// Z, D, y and eInv are sliced to the step's observed rows
	Z    *mat.Dense
	D    *mat.VecDense
	y    *mat.VecDense
	eInv *mat.SymDense
	// lq is a lower Cholesky factor of the shock covariance
	lq   *mat.TriDense
	qInv *mat.SymDense
}

// mutationResult carries one particle's mutation outcome.
type mutationResult struct {
	state []float64
	shock []float64
	// quad is e'*inv(E)*e for the returned state
	quad float64
	// accepted records the accept decision of the final iteration
	accepted bool
}

// forecast returns the state implied by the transition equation for the
// lagged state sLag and shock vector eps.
func (ctx *mutationCtx) forecast(sLag mat.Vector, eps *mat.VecDense) *mat.VecDense {
	nx, _ := ctx.T.Dims()

	s := mat.NewVecDense(nx, nil)
	s.MulVec(ctx.T, sLag)

	re := mat.NewVecDense(nx, nil)
	re.MulVec(ctx.R, eps)

	s.AddVec(s, re)
	s.AddVec(s, ctx.C)

	return s
}

// measError returns y - Z*s - D for the sliced observation.
func (ctx *mutationCtx) measError(s *mat.VecDense) *mat.VecDense {
	d, _ := ctx.Z.Dims()

	e := mat.NewVecDense(d, nil)
	e.MulVec(ctx.Z, s)
	e.AddVec(e, ctx.D)
	e.SubVec(ctx.y, e)

	return e
}

// mutateOne runs one particle's Metropolis-Hastings chain: each iteration
// perturbs the shock vector, recomputes the state through the transition
// equation and accepts on the ratio of tempered posterior densities. The
// particle consumes only its own random stream src.
func mutateOne(ctx *mutationCtx, sLag mat.Vector, eps mat.Vector, src *rand.Rand) mutationResult {
	ne := eps.Len()

	cur := mat.NewVecDense(ne, nil)
	cur.CloneFromVec(eps)

	s := ctx.forecast(sLag, cur)
	eCur := ctx.measError(s)
	quadE := mat.Inner(eCur, ctx.eInv, eCur)
	quadQ := mat.Inner(cur, ctx.qInv, cur)

	eta := mat.NewVecDense(ne, nil)
	accepted := false

	for j := 0; j < ctx.nmh; j++ {
		for k := 0; k < ne; k++ {
			eta.SetVec(k, src.NormFloat64())
		}

		prop := mat.NewVecDense(ne, nil)
		prop.MulVec(ctx.lq, eta)
		prop.AddScaledVec(cur, ctx.scale, prop)

		sProp := ctx.forecast(sLag, prop)
		eProp := ctx.measError(sProp)
		quadEProp := mat.Inner(eProp, ctx.eInv, eProp)
		quadQProp := mat.Inner(prop, ctx.qInv, prop)

		// tempered measurement density times the transition prior
		logRatio := -0.5*ctx.phi*(quadEProp-quadE) - 0.5*(quadQProp-quadQ)

		if logRatio >= 0 || math.Log(src.Float64()) < logRatio {
			cur, s = prop, sProp
			quadE, quadQ = quadEProp, quadQProp
			accepted = true
		} else {
			accepted = false
		}
	}

	return mutationResult{
		state:    s.RawVector().Data,
		shock:    cur.RawVector().Data,
		quad:     quadE,
		accepted: accepted,
	}
}

// mutate runs the Metropolis-Hastings diversification pass over all
// particles and replaces the ensemble's state and shock arrays with the
// mutated ones. Particles are independent: each consumes the random stream
// bound to (seed, step, particle index), so parallel and sequential
// schedules produce bit-identical results. Results are gathered by particle
// index after the barrier.
// It returns the per call acceptance rate and the refreshed quadratic forms.
func (f *TPF) mutate(e *Ensemble, ctx *mutationCtx, t int) (float64, []float64) {
	n := e.n
	results := make([]mutationResult, n)

	run := func(i int) {
		results[i] = mutateOne(ctx, e.lagged.ColView(i), e.shocks.ColView(i), f.particleStream(t, i))
	}

	if f.cfg.UseParallelWorkers {
		workers := runtime.GOMAXPROCS(0)
		var wg sync.WaitGroup
		wg.Add(workers)
		for w := 0; w < workers; w++ {
			go func(w int) {
				defer wg.Done()
				for i := w; i < n; i += workers {
					run(i)
				}
			}(w)
		}
		wg.Wait()
	} else {
		for i := 0; i < n; i++ {
			run(i)
		}
	}

	nx, _ := e.states.Dims()
	ne, _ := e.shocks.Dims()
	states := mat.NewDense(nx, n, nil)
	shocks := mat.NewDense(ne, n, nil)
	quad := make([]float64, n)

	accepted := 0
	for i := range results {
		states.SetCol(i, results[i].state)
		shocks.SetCol(i, results[i].shock)
		quad[i] = results[i].quad
		if results[i].accepted {
			accepted++
		}
	}

	e.states = states
	e.shocks = shocks

	return float64(accepted) / float64(n), quad
}

// particleStream returns the random stream bound to particle i at step t.
// The binding is positional, so it does not depend on goroutine scheduling.
func (f *TPF) particleStream(t, i int) *rand.Rand {
	s := f.seed + 0x9E3779B97F4A7C15*uint64(t+1) + 0xBF58476D1CE4E5B9*uint64(i+1)
	return rand.New(rand.NewSource(s))
}
