package filter

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Config is tempered particle filter configuration. It is passed by value
// into the filter entry point and never consulted from ambient state; all
// fields must be set before the first step.
type Config struct {
	// RStar is target inefficiency threshold used to size tempering steps
	RStar float64
	// CStar is initial mutation proposal step scale
	CStar float64
	// AcceptRate is initial acceptance rate estimate
	AcceptRate float64
	// TargetAcceptRate is the acceptance rate the step size controller aims for
	TargetAcceptRate float64
	// NMHSimulations is the number of Metropolis-Hastings iterations per mutation call
	NMHSimulations int
	// NParticles is ensemble size
	NParticles int
	// Deterministic enables the reproducible testing mode: a fixed two point
	// tempering schedule, seeded resampling and pre-generated draws
	Deterministic bool
	// XTolerance is the root finder tolerance for the tempering schedule
	XTolerance float64
	// UseParallelWorkers enables parallel particle mutation
	UseParallelWorkers bool
	// Seed seeds every random stream in deterministic mode
	Seed uint64
	// PhiInit is the first tempering coefficient of the fixed schedule
	// {PhiInit, 1}; deterministic mode only
	PhiInit float64
	// NPresample is the number of leading steps dropped from the returned series
	NPresample int
	// RandMat optionally supplies standard normal shock draws in deterministic
	// mode, sized nShocks x (NParticles * nSteps) with step t consuming columns
	// [t*NParticles, (t+1)*NParticles)
	RandMat *mat.Dense
}

// Validate checks the configuration and returns error on the first invalid
// setting it finds.
func (c Config) Validate() error {
	if c.NParticles <= 0 {
		return fmt.Errorf("invalid particle count: %d", c.NParticles)
	}

	if c.NMHSimulations <= 0 {
		return fmt.Errorf("invalid mutation iteration count: %d", c.NMHSimulations)
	}

	// inefficiency is bounded below by 1, so the threshold must exceed it
	if c.RStar <= 1 {
		return fmt.Errorf("invalid inefficiency threshold: %f", c.RStar)
	}

	if c.CStar <= 0 {
		return fmt.Errorf("invalid initial step scale: %f", c.CStar)
	}

	if c.TargetAcceptRate <= 0 || c.TargetAcceptRate >= 1 {
		return fmt.Errorf("invalid target acceptance rate: %f", c.TargetAcceptRate)
	}

	if c.AcceptRate <= 0 || c.AcceptRate >= 1 {
		return fmt.Errorf("invalid initial acceptance rate: %f", c.AcceptRate)
	}

	if c.XTolerance <= 0 {
		return fmt.Errorf("invalid root finder tolerance: %f", c.XTolerance)
	}

	if c.NPresample < 0 {
		return fmt.Errorf("invalid presample count: %d", c.NPresample)
	}

	if c.Deterministic && (c.PhiInit <= 0 || c.PhiInit > 1) {
		return fmt.Errorf("invalid initial tempering coefficient: %f", c.PhiInit)
	}

	return nil
}
