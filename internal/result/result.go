// Package result holds the atomic unit of the analysis: one A/B test
// run's two sample arrays plus the metadata the harness logged with
// them.
package result

import (
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/roypat/volcano/internal/stats"
)

// permutationTest is swappable so tests can verify the precomputed
// path never reaches the resampling routine.
var permutationTest = stats.PermutationTest

// TestResult represents one executed A/B test run.
type TestResult struct {
	DataA []float64 // baseline samples
	DataB []float64 // candidate samples

	// Statistics the benchmarking harness computed at log time.
	PrecomputedPValue         float64
	PrecomputedMeanDifference float64

	BuildNumber int64
	Unit        string
	Metric      string

	// Resamples, when non-nil, overrides the precomputed statistics
	// with a fresh permutation test using this many resamples.
	Resamples *int
	// Rand seeds the Monte-Carlo path. Nil means non-reproducible.
	Rand *rand.Rand

	// Memoized permutation test output. Never populated on failure, so
	// a later call with corrected input can still succeed.
	computed *statistic
}

type statistic struct {
	pValue         float64
	meanDifference float64
}

// Statistic returns the run's p-value and mean difference. Without a
// resample override the precomputed values are returned verbatim.
// With one, the permutation test runs at most once; the result is
// cached for the lifetime of the TestResult.
func (r *TestResult) Statistic() (pValue, meanDifference float64, err error) {
	if r.Resamples == nil {
		return r.PrecomputedPValue, r.PrecomputedMeanDifference, nil
	}
	if r.computed == nil {
		p, diff, err := permutationTest(r.DataA, r.DataB, *r.Resamples, r.Rand)
		if err != nil {
			return 0, 0, err
		}
		r.computed = &statistic{pValue: p, meanDifference: diff}
	}
	return r.computed.pValue, r.computed.meanDifference, nil
}

func (r *TestResult) PValue() (float64, error) {
	p, _, err := r.Statistic()
	return p, err
}

func (r *TestResult) MeanDifference() (float64, error) {
	_, diff, err := r.Statistic()
	return diff, err
}

// RelativeMeanDifference is the mean difference normalized by the
// baseline mean.
func (r *TestResult) RelativeMeanDifference() (float64, error) {
	diff, err := r.MeanDifference()
	if err != nil {
		return 0, err
	}
	if len(r.DataA) == 0 {
		return 0, stats.ErrInsufficientSample
	}
	return diff / stat.Mean(r.DataA, nil), nil
}
