package tpf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestFilter(t *testing.T, n int) *TPF {
	c := cfg
	c.NParticles = n

	f, err := New(okModel, ic, c)
	assert.NoError(t, err)

	return f
}

func TestCorrectLogLik(t *testing.T) {
	assert := assert.New(t)

	f := newTestFilter(t, 6)

	quad := []float64{0.4, 1.1, 2.3, 0.2, 3.0, 1.7}
	d := 1
	logDetE := math.Log(0.01)
	phiNew, phiOld := 0.3, 0.1

	// re-derive the contribution from the incremental weights directly
	var sum float64
	for _, q := range quad {
		sum += math.Exp(0.5*float64(d)*math.Log(phiNew/phiOld) - 0.5*(phiNew-phiOld)*q)
	}
	want := math.Log(sum / float64(len(quad)))

	ll, neff, idx, err := f.correct(f.e, phiNew, phiOld, append([]float64(nil), quad...), d, logDetE)
	assert.NoError(err)
	assert.InDelta(want, ll, 1e-12)
	assert.Len(idx, 6)
	assert.True(neff > 0 && neff <= 6)

	// weights are reset to 1 after the resample
	for _, w := range f.e.Weights() {
		assert.Equal(1.0, w)
	}
}

func TestCorrectInitializer(t *testing.T) {
	assert := assert.New(t)

	f := newTestFilter(t, 4)

	quad := []float64{1.0, 1.0, 1.0, 1.0}
	d := 1
	logDetE := math.Log(0.25)
	phi := 0.2

	// the initializing sub-step carries the flat-prior normalizers
	want := 0.5*float64(d)*math.Log(phi/(2*math.Pi)) - 0.5*logDetE - 0.5*phi*1.0

	ll, neff, _, err := f.correct(f.e, phi, 0, append([]float64(nil), quad...), d, logDetE)
	assert.NoError(err)
	assert.InDelta(want, ll, 1e-12)

	// equal errors keep all post-correction weights equal
	assert.InDelta(4.0, neff, 1e-9)
}

func TestCorrectReindexesQuad(t *testing.T) {
	assert := assert.New(t)

	f := newTestFilter(t, 5)

	quad := []float64{10.0, 0.1, 0.1, 0.1, 0.1}
	orig := append([]float64(nil), quad...)

	_, _, idx, err := f.correct(f.e, 1, 0.5, quad, 1, 0)
	assert.NoError(err)

	// quad now holds the ancestors' quadratic forms
	for j, k := range idx {
		assert.Equal(orig[k], quad[j])
	}
}

func TestCorrectDeterministicIndices(t *testing.T) {
	assert := assert.New(t)

	quad := []float64{0.4, 1.1, 2.3, 0.2}

	f1 := newTestFilter(t, 4)
	f2 := newTestFilter(t, 4)

	_, _, idx1, err := f1.correct(f1.e, 0.7, 0.2, append([]float64(nil), quad...), 1, 0)
	assert.NoError(err)
	_, _, idx2, err := f2.correct(f2.e, 0.7, 0.2, append([]float64(nil), quad...), 1, 0)
	assert.NoError(err)

	assert.Equal(idx1, idx2)
}
