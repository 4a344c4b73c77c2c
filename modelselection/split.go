// Package modelselection partitions datasets for training and evaluation.
package modelselection

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// Defaults used by the training pipeline.
const (
	DefaultTestSize = 0.25
	DefaultSeed     = 40
)

// Split holds disjoint row indices for the training and test subsets.
type Split struct {
	Train []int
	Test  []int
}

// TrainTestSplit shuffles 0..nSamples-1 with a PCG source seeded by seed and
// assigns the first ceil(testSize*nSamples) indices to the test subset. The
// same seed always yields the same split.
func TrainTestSplit(nSamples int, testSize float64, seed uint64) (Split, error) {
	const op = "modelselection.TrainTestSplit"
	if nSamples < 2 {
		return Split{}, errors.NewValueError(op,
			fmt.Sprintf("need at least 2 samples to split, got %d", nSamples))
	}
	if !(testSize > 0 && testSize < 1) {
		return Split{}, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(nSamples)))
	nTrain := nSamples - nTest
	if nTest == 0 || nTrain == 0 {
		return Split{}, errors.NewValueError(op,
			fmt.Sprintf("test_size=%v with n_samples=%d leaves an empty subset", testSize, nSamples))
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(nSamples)

	return Split{
		Test:  perm[:nTest:nTest],
		Train: perm[nTest:],
	}, nil
}
