package stats

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/combin"
)

// Errors returned by the permutation test.
var (
	ErrInsufficientSample   = errors.New("permutation test requires non-empty samples")
	ErrInvalidResampleCount = errors.New("resample count must be positive")
)

// ExactEnumerationLimit caps how many splits exact enumeration may
// generate before falling back to Monte-Carlo resampling. Enumerating
// all C(n+m, n) splits materializes every index combination, so the
// cap bounds both runtime and memory for a run with a huge resample
// budget. Fixed, so the exact-vs-Monte-Carlo decision is deterministic.
const ExactEnumerationLimit = 100_000

// PermutationTest runs a paired permutation test on the difference of
// means between the two samples. Under the null hypothesis the samples
// are exchangeable, so the pooled observations are repeatedly split
// into two groups of the original sizes and the two-sided p-value is
// the fraction of splits whose difference of means is at least as
// extreme as the observed one.
//
// All C(n+m, n) splits are enumerated when that count is within the
// resample budget (and below ExactEnumerationLimit); otherwise
// resamples random splits are drawn from rng. A nil rng is seeded from
// the clock, so p-values jitter slightly run to run; pass a fixed
// source for reproducible results.
//
// The returned meanDifference is the observed mean(b) - mean(a), not a
// permutation-derived value.
func PermutationTest(dataA, dataB []float64, resamples int, rng *rand.Rand) (pValue, meanDifference float64, err error) {
	if len(dataA) == 0 || len(dataB) == 0 {
		return 0, 0, ErrInsufficientSample
	}
	if resamples <= 0 {
		return 0, 0, ErrInvalidResampleCount
	}

	observed := stat.Mean(dataB, nil) - stat.Mean(dataA, nil)

	n := len(dataA)
	pooled := make([]float64, 0, len(dataA)+len(dataB))
	pooled = append(pooled, dataA...)
	pooled = append(pooled, dataB...)

	var pooledSum float64
	for _, v := range pooled {
		pooledSum += v
	}

	// Tolerance absorbs floating-point jitter when a permutation
	// statistic is mathematically equal to the observed one.
	tol := 1e-12 * math.Max(1, math.Abs(observed))
	threshold := math.Abs(observed) - tol

	limit := resamples
	if limit > ExactEnumerationLimit {
		limit = ExactEnumerationLimit
	}

	if total, ok := binomialAtMost(len(pooled), n, limit); ok {
		p := exactPValue(pooled, pooledSum, n, total, threshold)
		return p, observed, nil
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	p := monteCarloPValue(pooled, pooledSum, n, resamples, threshold, rng)
	return p, observed, nil
}

// exactPValue enumerates every split of the pooled observations into
// groups of sizes n and len(pooled)-n. The observed labeling is one of
// the enumerated splits, so the result is always at least 1/total.
func exactPValue(pooled []float64, pooledSum float64, n, total int, threshold float64) float64 {
	m := len(pooled) - n
	extreme := 0
	for _, idx := range combin.Combinations(len(pooled), n) {
		var sumA float64
		for _, i := range idx {
			sumA += pooled[i]
		}
		diff := (pooledSum-sumA)/float64(m) - sumA/float64(n)
		if math.Abs(diff) >= threshold {
			extreme++
		}
	}
	return float64(extreme) / float64(total)
}

// monteCarloPValue draws resamples random splits. The +1 correction
// counts the observed labeling itself, keeping the estimate positive.
func monteCarloPValue(pooled []float64, pooledSum float64, n, resamples int, threshold float64, rng *rand.Rand) float64 {
	m := len(pooled) - n
	perm := make([]int, len(pooled))
	for i := range perm {
		perm[i] = i
	}

	extreme := 0
	for r := 0; r < resamples; r++ {
		rng.Shuffle(len(perm), func(i, j int) {
			perm[i], perm[j] = perm[j], perm[i]
		})
		var sumA float64
		for _, i := range perm[:n] {
			sumA += pooled[i]
		}
		diff := (pooledSum-sumA)/float64(m) - sumA/float64(n)
		if math.Abs(diff) >= threshold {
			extreme++
		}
	}
	return float64(extreme+1) / float64(resamples+1)
}

// binomialAtMost reports whether C(n, k) <= limit, returning the exact
// count when it is. Computed incrementally so huge coefficients bail
// out before overflowing.
func binomialAtMost(n, k, limit int) (int, bool) {
	if k < 0 || k > n {
		return 0, false
	}
	if k > n-k {
		k = n - k
	}
	result := 1
	for i := 1; i <= k; i++ {
		result = result * (n - k + i) / i
		if result > limit {
			return 0, false
		}
	}
	return result, true
}
