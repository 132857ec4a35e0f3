package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func validConfig() Config {
	return Config{
		RStar:            2.0,
		CStar:            0.4,
		AcceptRate:       0.25,
		TargetAcceptRate: 0.25,
		NMHSimulations:   2,
		NParticles:       100,
		XTolerance:       1e-6,
	}
}

func TestConfigValidate(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(validConfig().Validate())

	for _, mod := range []func(*Config){
		func(c *Config) { c.NParticles = 0 },
		func(c *Config) { c.NMHSimulations = -1 },
		func(c *Config) { c.RStar = 1.0 },
		func(c *Config) { c.CStar = 0 },
		func(c *Config) { c.TargetAcceptRate = 1.0 },
		func(c *Config) { c.AcceptRate = 0 },
		func(c *Config) { c.XTolerance = 0 },
		func(c *Config) { c.NPresample = -1 },
		func(c *Config) { c.Deterministic = true; c.PhiInit = 0 },
		func(c *Config) { c.Deterministic = true; c.PhiInit = 1.5 },
	} {
		c := validConfig()
		mod(&c)
		assert.Error(c.Validate())
	}

	// PhiInit is only consulted in deterministic mode
	c := validConfig()
	c.PhiInit = 0
	assert.NoError(c.Validate())
}

func TestNewObservation(t *testing.T) {
	assert := assert.New(t)

	y := mat.NewVecDense(3, []float64{1, 2, 3})

	_, err := NewObservation(y, []bool{true})
	assert.Error(err)

	o, err := NewObservation(y, nil)
	assert.NoError(err)
	assert.Equal(3, o.Len())
	assert.Equal([]int{0, 1, 2}, o.ObservedIdx())
	assert.False(o.AllMissing())

	o, err = NewObservation(y, []bool{true, false, true})
	assert.NoError(err)
	assert.Equal([]int{1}, o.ObservedIdx())

	sliced := o.Sliced(o.ObservedIdx())
	assert.Equal(1, sliced.Len())
	assert.Equal(2.0, sliced.AtVec(0))

	o, err = NewObservation(y, []bool{true, true, true})
	assert.NoError(err)
	assert.True(o.AllMissing())
}

func TestRunStats(t *testing.T) {
	assert := assert.New(t)

	r := &RunStats{
		LogLik:  []float64{-1.5, -2.0, -0.5},
		Neff:    []float64{90, 85, 99},
		Elapsed: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
	}

	assert.InDelta(-4.0, r.Total(), 1e-12)

	trimmed := r.Trim(1)
	assert.Len(trimmed.LogLik, 2)
	assert.InDelta(-2.5, trimmed.Total(), 1e-12)

	// out of range trims are a no-op
	assert.Equal(r, r.Trim(0))
	assert.Equal(r, r.Trim(10))
}
