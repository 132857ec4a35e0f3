package tpf

import (
	"math"
)

// inefficiency returns the normalized weight dispersion ratio
// mean(w^2)/mean(w)^2 of the incremental importance weights implied by
// raising the tempering coefficient from phiOld to phiNew, given the per
// particle quadratic forms e'*inv(E)*e in quad. A phiOld of 0 means the
// initializing sub-step. The leading constants of the incremental weights
// cancel in the ratio and are omitted; the quadratic forms are shifted by
// their minimum so the exponentials cannot all underflow.
func inefficiency(phiNew, phiOld float64, quad []float64) float64 {
	qmin := quad[0]
	for _, q := range quad[1:] {
		if q < qmin {
			qmin = q
		}
	}

	var sum, sumSq float64
	for _, q := range quad {
		w := math.Exp(-0.5 * (phiNew - phiOld) * (q - qmin))
		sum += w
		sumSq += w * w
	}

	n := float64(len(quad))
	m := sum / n

	return (sumSq / n) / (m * m)
}

// nextPhi returns the smallest tempering coefficient in (phiOld, 1] at which
// the inefficiency of the implied incremental weights equals rstar, located
// with Brent's method to within xtol. A phiOld of 0 selects the initializing
// sub-step. done reports that the step is fully tempered at the returned
// coefficient. bracketFail reports that the criterion did not change sign
// over [phiOld, 1]; the schedule then declares the step fully tempered,
// mirroring the reference behavior (see DESIGN.md).
func nextPhi(phiOld float64, quad []float64, rstar, xtol float64) (phi float64, done, bracketFail bool) {
	f := func(p float64) float64 {
		return inefficiency(p, phiOld, quad) - rstar
	}

	fhi := f(1)
	if fhi <= 0 {
		return 1, true, false
	}

	// at phiNew == phiOld every incremental weight is 1, so f(phiOld) is
	// 1 - rstar; a positive value here means no interior root exists
	flo := f(phiOld)
	if flo*fhi > 0 {
		return 1, true, true
	}

	return brent(f, phiOld, 1, xtol), false, false
}

// brent finds a root of f on the bracket [a, b] to within tol using Brent's
// method: inverse quadratic interpolation guarded by bisection. The caller
// guarantees f(a) and f(b) have opposite signs.
func brent(f func(float64) float64, a, b, tol float64) float64 {
	const maxIter = 100
	eps := math.Nextafter(1, 2) - 1

	fa, fb := f(a), f(b)
	c, fc := b, fb
	var d, e float64

	for i := 0; i < maxIter; i++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2*eps*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			// attempt inverse quadratic interpolation
			s := fb / fa
			var p, q float64
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)

			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				// interpolation rejected, fall back to bisection
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb = f(b)
	}

	return b
}
