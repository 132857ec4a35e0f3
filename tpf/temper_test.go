package tpf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInefficiency(t *testing.T) {
	assert := assert.New(t)

	quad := []float64{0.5, 1.2, 3.1, 0.9, 2.4}

	// at phiNew == phiOld every incremental weight is 1
	assert.InDelta(1.0, inefficiency(0.3, 0.3, quad), 1e-12)

	// homogeneous errors carry no dispersion at any coefficient
	flat := []float64{2.0, 2.0, 2.0, 2.0}
	assert.InDelta(1.0, inefficiency(1, 0, flat), 1e-12)

	// dispersion grows with the tempering increment
	lo := inefficiency(0.2, 0, quad)
	hi := inefficiency(1, 0, quad)
	assert.True(lo > 1)
	assert.True(hi > lo)
}

func TestNextPhi(t *testing.T) {
	assert := assert.New(t)

	// homogeneous errors are fully tempered in one go
	flat := []float64{2.0, 2.0, 2.0, 2.0}
	phi, done, failed := nextPhi(0, flat, 2.0, 1e-9)
	assert.Equal(1.0, phi)
	assert.True(done)
	assert.False(failed)

	// dispersed errors yield an interior root where the inefficiency
	// hits the threshold
	quad := []float64{0.1, 5.0, 12.0, 0.7, 3.3, 8.8}
	rstar := 1.5
	phi, done, failed = nextPhi(0, quad, rstar, 1e-9)
	assert.False(done)
	assert.False(failed)
	assert.True(phi > 0 && phi < 1)
	assert.InDelta(rstar, inefficiency(phi, 0, quad), 1e-6)

	// the schedule is monotone: the next root sits above the previous one
	phi2, done, failed := nextPhi(phi, quad, rstar, 1e-9)
	if !done {
		assert.True(phi2 > phi)
		assert.False(failed)
	}

	// a threshold below 1 cannot bracket a root; tempering is forced to
	// complete
	phi, done, failed = nextPhi(0, quad, 0.5, 1e-9)
	assert.Equal(1.0, phi)
	assert.True(done)
	assert.True(failed)
}

func TestBrent(t *testing.T) {
	assert := assert.New(t)

	root := brent(func(x float64) float64 { return x*x - 2 }, 0, 2, 1e-12)
	assert.InDelta(math.Sqrt2, root, 1e-9)

	root = brent(math.Cos, 1, 2, 1e-12)
	assert.InDelta(math.Pi/2, root, 1e-9)
}
