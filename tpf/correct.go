package tpf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	rnd "github.com/milosgajdos/go-tpf/rand"
)

// correct computes the incremental importance weights for raising the
// tempering coefficient from phiOld to phiNew, folds them into the particle
// weights, resamples the ensemble and resets the weights to 1.
// A phiOld of 0 selects the initializing sub-step, whose incremental weight
// uses phiNew/(2*pi) in place of the coefficient ratio and carries a
// det(E)^(-1/2) normalizer. d is the sliced measurement dimension and quad
// holds the per particle quadratic forms e'*inv(E)*e; quad is reindexed in
// place alongside the particle arrays so the next tempering evaluation sees
// the resampled errors.
// It returns the sub-step's log-likelihood contribution
// log(mean(incremental weight * prior weight)), the effective sample size of
// the post-correction (pre-reset) weights and the drawn resampling indices.
func (f *TPF) correct(e *Ensemble, phiNew, phiOld float64, quad []float64, d int, logDetE float64) (float64, float64, []int, error) {
	n := e.n

	pw := make([]float64, n)
	for i := range pw {
		var logIncr float64
		if phiOld == 0 {
			logIncr = 0.5*float64(d)*math.Log(phiNew/(2*math.Pi)) - 0.5*logDetE - 0.5*phiNew*quad[i]
		} else {
			logIncr = 0.5*float64(d)*math.Log(phiNew/phiOld) - 0.5*(phiNew-phiOld)*quad[i]
		}
		pw[i] = math.Exp(logIncr) * e.weights[i]
	}

	// the mean of (incremental weight * prior weight) is used once for the
	// likelihood contribution and once for normalization, before the reset
	mean := floats.Sum(pw) / float64(n)
	loglik := math.Log(mean)

	floats.Scale(1/mean, pw)
	copy(e.weights, pw)

	neff := e.Neff()

	idx, err := rnd.RouletteDrawN(e.weights, n, f.resampleSrc)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to resample filter particles: %v", err)
	}

	prev := make([]float64, n)
	copy(prev, quad)
	for j, k := range idx {
		quad[j] = prev[k]
	}

	e.Reindex(idx)
	e.ResetWeights()

	return loglik, neff, idx, nil
}
