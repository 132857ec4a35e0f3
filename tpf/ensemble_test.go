package tpf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

func TestNewEnsemble(t *testing.T) {
	assert := assert.New(t)

	src := rand.New(rand.NewSource(1))

	e, err := NewEnsemble(ic, 2, -3, src)
	assert.Nil(e)
	assert.Error(err)

	e, err = NewEnsemble(ic, 2, 10, src)
	assert.NotNil(e)
	assert.NoError(err)
	assert.Equal(10, e.Len())

	nx, n := e.states.Dims()
	assert.Equal(2, nx)
	assert.Equal(10, n)

	for _, w := range e.Weights() {
		assert.Equal(1.0, w)
	}

	// equal weights give a full effective sample size
	assert.Equal(10.0, e.Neff())
}

func TestEnsembleReindex(t *testing.T) {
	assert := assert.New(t)

	src := rand.New(rand.NewSource(2))
	e, err := NewEnsemble(ic, 2, 4, src)
	assert.NoError(err)

	first := e.states.At(0, 0)

	// duplicate particle 0 everywhere; new backing arrays are installed
	old := e.states
	e.Reindex([]int{0, 0, 0, 0})
	assert.False(old == e.states)

	for j := 0; j < 4; j++ {
		assert.Equal(first, e.states.At(0, j))
	}
}

func TestEnsembleWeights(t *testing.T) {
	assert := assert.New(t)

	src := rand.New(rand.NewSource(3))
	e, err := NewEnsemble(ic, 2, 4, src)
	assert.NoError(err)

	// concentrating mass on fewer particles lowers the effective sample size
	copy(e.weights, []float64{2, 2, 0, 0})
	assert.Equal(2.0, e.Neff())

	copy(e.weights, []float64{4, 0, 0, 0})
	assert.Equal(1.0, e.Neff())

	e.ResetWeights()
	for _, w := range e.Weights() {
		assert.Equal(1.0, w)
	}
}

func TestEnsembleDiagnostics(t *testing.T) {
	assert := assert.New(t)

	src := rand.New(rand.NewSource(4))
	e, err := NewEnsemble(ic, 2, 50, src)
	assert.NoError(err)

	m := e.Mean()
	assert.Equal(2, m.Len())

	cov, err := e.Cov()
	assert.NoError(err)
	assert.Equal(2, cov.SymmetricDim())

	s := e.States()
	r, c := s.Dims()
	assert.Equal(2, r)
	assert.Equal(50, c)
}
