package filter

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Observation is one time step of measurement data together with a missing
// data mask. Measurement matrices are sliced to the observed rows for the
// step the observation belongs to.
type Observation struct {
	y       *mat.VecDense
	missing []bool
}

// NewObservation creates new Observation from measurement vector y and missing
// data mask. A nil mask means fully observed. It returns error if the mask
// length does not match the measurement vector.
func NewObservation(y mat.Vector, missing []bool) (Observation, error) {
	if missing != nil && len(missing) != y.Len() {
		return Observation{}, fmt.Errorf("invalid missing mask length: %d", len(missing))
	}

	v := &mat.VecDense{}
	v.CloneFromVec(y)

	m := make([]bool, v.Len())
	copy(m, missing)

	return Observation{y: v, missing: m}, nil
}

// Len returns the full (unsliced) measurement dimension.
func (o Observation) Len() int {
	return o.y.Len()
}

// ObservedIdx returns the indices of the non-missing measurement rows
// in ascending order.
func (o Observation) ObservedIdx() []int {
	idx := make([]int, 0, o.y.Len())
	for i, m := range o.missing {
		if !m {
			idx = append(idx, i)
		}
	}

	return idx
}

// AllMissing reports whether every measurement row is missing at this step.
func (o Observation) AllMissing() bool {
	return len(o.ObservedIdx()) == 0
}

// Sliced returns the observation vector restricted to the rows in idx.
func (o Observation) Sliced(idx []int) *mat.VecDense {
	y := mat.NewVecDense(len(idx), nil)
	for i, j := range idx {
		y.SetVec(i, o.y.AtVec(j))
	}

	return y
}
