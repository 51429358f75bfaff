package explore

import (
	"testing"

	"github.com/roypat/volcano/internal/result"
)

func row(run *result.TestResult, dims map[string]result.Value) Row {
	return Row{Dims: dims, Run: run}
}

func run(metric string, build int64) *result.TestResult {
	return &result.TestResult{
		DataA:       []float64{1, 2, 3},
		DataB:       []float64{2, 3, 4},
		Metric:      metric,
		BuildNumber: build,
	}
}

func TestGroupRows(t *testing.T) {
	dims := []string{"host_kernel", "metric"}

	t.Run("partitions by the full dimension tuple", func(t *testing.T) {
		rows := []Row{
			row(run("latency", 1), map[string]result.Value{"host_kernel": result.Val("5.10"), "metric": result.Val("latency")}),
			row(run("latency", 2), map[string]result.Value{"host_kernel": result.Val("5.10"), "metric": result.Val("latency")}),
			row(run("latency", 1), map[string]result.Value{"host_kernel": result.Val("6.1"), "metric": result.Val("latency")}),
		}
		groups := GroupRows(rows, dims)
		if len(groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(groups))
		}
		if len(groups[0].Runs) != 2 || len(groups[1].Runs) != 1 {
			t.Fatalf("expected run counts [2 1], got [%d %d]", len(groups[0].Runs), len(groups[1].Runs))
		}
		total := 0
		for _, g := range groups {
			total += len(g.Runs)
		}
		if total != len(rows) {
			t.Fatalf("expected every row in exactly one group, got %d of %d", total, len(rows))
		}
	})

	t.Run("missing is a distinct key", func(t *testing.T) {
		rows := []Row{
			row(run("latency", 1), map[string]result.Value{"host_kernel": result.Val("5.10"), "metric": result.Val("latency")}),
			row(run("latency", 1), map[string]result.Value{"host_kernel": result.Missing, "metric": result.Val("latency")}),
		}
		groups := GroupRows(rows, dims)
		if len(groups) != 2 {
			t.Fatalf("expected missing value to form its own group, got %d groups", len(groups))
		}
	})

	t.Run("groups preserve first-appearance order", func(t *testing.T) {
		rows := []Row{
			row(run("b", 1), map[string]result.Value{"metric": result.Val("b")}),
			row(run("a", 1), map[string]result.Value{"metric": result.Val("a")}),
			row(run("b", 2), map[string]result.Value{"metric": result.Val("b")}),
		}
		groups := GroupRows(rows, []string{"metric"})
		if len(groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(groups))
		}
		if groups[0].Dims["metric"].String() != "b" || groups[1].Dims["metric"].String() != "a" {
			t.Fatalf("expected first-appearance order [b a], got [%s %s]",
				groups[0].Dims["metric"], groups[1].Dims["metric"])
		}
	})
}
