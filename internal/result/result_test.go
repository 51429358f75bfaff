package result

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestStatistic(t *testing.T) {
	t.Run("returns precomputed values without resampling", func(t *testing.T) {
		orig := permutationTest
		defer func() { permutationTest = orig }()
		calls := 0
		permutationTest = func(a, b []float64, resamples int, rng *rand.Rand) (float64, float64, error) {
			calls++
			return 0, 0, nil
		}

		r := &TestResult{
			DataA:                     []float64{1, 2, 3},
			DataB:                     []float64{4, 5, 6},
			PrecomputedPValue:         0.042,
			PrecomputedMeanDifference: -1.5,
		}
		p, diff, err := r.Statistic()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p != 0.042 || diff != -1.5 {
			t.Fatalf("expected precomputed values verbatim, got p=%v diff=%v", p, diff)
		}
		if calls != 0 {
			t.Fatalf("expected no permutation test call, got %d", calls)
		}
	})

	t.Run("resample override runs the test exactly once", func(t *testing.T) {
		orig := permutationTest
		defer func() { permutationTest = orig }()
		calls := 0
		permutationTest = func(a, b []float64, resamples int, rng *rand.Rand) (float64, float64, error) {
			calls++
			if resamples != 500 {
				t.Fatalf("expected 500 resamples, got %d", resamples)
			}
			return 0.25, 3.0, nil
		}

		n := 500
		r := &TestResult{
			DataA:             []float64{1, 2},
			DataB:             []float64{4, 5},
			PrecomputedPValue: 0.9,
			Resamples:         &n,
		}
		for i := 0; i < 3; i++ {
			p, diff, err := r.Statistic()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p != 0.25 || diff != 3.0 {
				t.Fatalf("expected recomputed values, got p=%v diff=%v", p, diff)
			}
		}
		if calls != 1 {
			t.Fatalf("expected exactly one permutation test call, got %d", calls)
		}
	})

	t.Run("failures are not cached", func(t *testing.T) {
		orig := permutationTest
		defer func() { permutationTest = orig }()
		boom := errors.New("boom")
		fail := true
		permutationTest = func(a, b []float64, resamples int, rng *rand.Rand) (float64, float64, error) {
			if fail {
				return 0, 0, boom
			}
			return 0.5, 1.0, nil
		}

		n := 100
		r := &TestResult{DataA: []float64{1}, DataB: []float64{2}, Resamples: &n}
		if _, _, err := r.Statistic(); !errors.Is(err, boom) {
			t.Fatalf("expected error from failing test, got %v", err)
		}

		fail = false
		p, diff, err := r.Statistic()
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if p != 0.5 || diff != 1.0 {
			t.Fatalf("expected recomputed values after retry, got p=%v diff=%v", p, diff)
		}
	})
}

func TestRelativeMeanDifference(t *testing.T) {
	t.Run("normalizes by the baseline mean", func(t *testing.T) {
		r := &TestResult{
			DataA:                     []float64{10, 10, 10},
			DataB:                     []float64{11, 11, 11},
			PrecomputedMeanDifference: 1,
		}
		rel, err := r.RelativeMeanDifference()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(rel-0.1) > 1e-12 {
			t.Fatalf("expected 0.1, got %v", rel)
		}
	})
}

func TestValue(t *testing.T) {
	t.Run("distinguishes missing from present", func(t *testing.T) {
		if Missing.Present() {
			t.Fatalf("expected Missing to not be present")
		}
		if !Val("x").Present() {
			t.Fatalf("expected Val to be present")
		}
		if !Val("").Present() {
			t.Fatalf("expected empty string value to still be present")
		}
	})

	t.Run("missing renders as n/a", func(t *testing.T) {
		if got := Missing.String(); got != "n/a" {
			t.Fatalf("expected n/a, got %q", got)
		}
		if got := Val("4.14").String(); got != "4.14" {
			t.Fatalf("expected 4.14, got %q", got)
		}
	})
}
