package linear

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// cdResult is the outcome of one coordinate descent solve.
type cdResult struct {
	w         []float64
	gap       float64
	tol       float64 // tolerance after scaling by ||y||²
	nIter     int
	converged bool
}

// cdProblem is the penalized least squares problem
//
//	½||y − Xw||² + l1·||w||₁ + ½·l2·||w||²
//
// which is the elastic net objective multiplied by n.
type cdProblem struct {
	cols    [][]float64
	y       []float64
	l1      float64
	l2      float64
	maxIter int
	tol     float64
	rng     *rand.Rand // nil for cyclic selection
}

// solve runs coordinate descent with soft-thresholding and stops on the
// duality gap. The gap is only evaluated once the largest coordinate update
// falls below tol relative to the largest coefficient.
func (pb *cdProblem) solve(ctx context.Context) (cdResult, error) {
	p := len(pb.cols)
	w := make([]float64, p)

	norms := make([]float64, p)
	for j, col := range pb.cols {
		norms[j] = floats.Dot(col, col)
	}

	// w starts at zero, so the residual is y.
	r := append([]float64(nil), pb.y...)

	tol := pb.tol * floats.Dot(pb.y, pb.y)
	dwTol := pb.tol
	res := cdResult{w: w, tol: tol}

	for iter := 0; iter < pb.maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var wMax, dwMax float64
		for f := 0; f < p; f++ {
			j := f
			if pb.rng != nil {
				j = pb.rng.IntN(p)
			}
			if norms[j] == 0 {
				continue
			}

			wj := w[j]
			col := pb.cols[j]
			if wj != 0 {
				floats.AddScaled(r, wj, col)
			}

			tmp := floats.Dot(col, r)
			w[j] = math.Copysign(math.Max(math.Abs(tmp)-pb.l1, 0), tmp) / (norms[j] + pb.l2)

			if w[j] != 0 {
				floats.AddScaled(r, -w[j], col)
			}

			dwMax = math.Max(dwMax, math.Abs(w[j]-wj))
			wMax = math.Max(wMax, math.Abs(w[j]))
		}

		res.nIter = iter + 1
		if wMax == 0 || dwMax/wMax < dwTol || iter == pb.maxIter-1 {
			res.gap = pb.dualityGap(w, r)
			if res.gap <= tol {
				res.converged = true
				return res, nil
			}
		}
	}
	return res, nil
}

// dualityGap evaluates the primal-dual gap at w with residual r = y − Xw.
func (pb *cdProblem) dualityGap(w, r []float64) float64 {
	var dualNorm float64
	for j, col := range pb.cols {
		xta := floats.Dot(col, r) - pb.l2*w[j]
		dualNorm = math.Max(dualNorm, math.Abs(xta))
	}

	rNorm2 := floats.Dot(r, r)
	wNorm2 := floats.Dot(w, w)

	var gap, scale float64
	if dualNorm > pb.l1 {
		scale = pb.l1 / dualNorm
		gap = 0.5 * (rNorm2 + rNorm2*scale*scale)
	} else {
		scale = 1
		gap = rNorm2
	}

	gap += pb.l1*floats.Norm(w, 1) - scale*floats.Dot(r, pb.y) + 0.5*pb.l2*(1+scale*scale)*wNorm2
	return gap
}
