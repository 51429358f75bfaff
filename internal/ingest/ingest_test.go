package ingest

import (
	"reflect"
	"strings"
	"testing"
)

const record = `{"metric": "block_latency", "data_a": [1.0, 2.0], "data_b": [3.0, 4.0], "p_value": 0.03, "mean_difference": 2.0, "buildkite_build_number": 123, "host_kernel": "6.1", "instance": "m5.large", "_aws": {"Timestamp": 1700000000000, "CloudWatchMetrics": [{"Namespace": "perf", "Dimensions": [["host_kernel", "instance", "vhost"]], "Metrics": [{"Name": "mean_difference", "Unit": "Milliseconds"}, {"Name": "p_value", "Unit": "None"}]}]}}`

func TestReadLog(t *testing.T) {
	t.Run("parses a full EMF record", func(t *testing.T) {
		log, err := ReadLog(strings.NewReader(record), Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(log.Rows) != 1 {
			t.Fatalf("expected 1 row, got %d", len(log.Rows))
		}

		run := log.Rows[0].Run
		if run.Metric != "block_latency" {
			t.Fatalf("expected metric block_latency, got %q", run.Metric)
		}
		if run.Unit != "Milliseconds" {
			t.Fatalf("expected unit from the mean_difference metric entry, got %q", run.Unit)
		}
		if run.PrecomputedPValue != 0.03 || run.PrecomputedMeanDifference != 2.0 {
			t.Fatalf("expected harness statistics, got p=%v diff=%v", run.PrecomputedPValue, run.PrecomputedMeanDifference)
		}
		if run.BuildNumber != 123 {
			t.Fatalf("expected build 123, got %d", run.BuildNumber)
		}
		if !reflect.DeepEqual(run.DataA, []float64{1, 2}) || !reflect.DeepEqual(run.DataB, []float64{3, 4}) {
			t.Fatalf("expected sample arrays carried over, got %v / %v", run.DataA, run.DataB)
		}
	})

	t.Run("discovers dimensions from the EMF metadata", func(t *testing.T) {
		log, err := ReadLog(strings.NewReader(record), Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"host_kernel", "instance", "vhost"}
		if !reflect.DeepEqual(log.Dimensions, want) {
			t.Fatalf("expected dimensions %v, got %v", want, log.Dimensions)
		}
	})

	t.Run("absent dimension values are missing, not empty", func(t *testing.T) {
		log, err := ReadLog(strings.NewReader(record), Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		dims := log.Rows[0].Dims
		if v := dims["host_kernel"]; !v.Present() || v.String() != "6.1" {
			t.Fatalf("expected host_kernel=6.1, got %v", v)
		}
		if dims["vhost"].Present() {
			t.Fatalf("expected vhost to be missing")
		}
	})

	t.Run("skips lines that are not records", func(t *testing.T) {
		input := "some stray harness output\n\n" + record + "\n" + `{"message": "telemetry without a metric"}` + "\n"
		log, err := ReadLog(strings.NewReader(input), Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(log.Rows) != 1 {
			t.Fatalf("expected non-record lines skipped, got %d rows", len(log.Rows))
		}
	})

	t.Run("rejects records with missing required fields", func(t *testing.T) {
		for _, field := range []string{"data_a", "data_b", "p_value", "mean_difference", "buildkite_build_number", "_aws"} {
			broken := strings.Replace(record, `"`+field+`"`, `"`+field+`_gone"`, 1)
			if _, err := ReadLog(strings.NewReader(broken), Options{}); err == nil {
				t.Fatalf("expected an error for a record without %q", field)
			}
		}
	})

	t.Run("rejects null statistics", func(t *testing.T) {
		broken := strings.Replace(record, `"p_value": 0.03`, `"p_value": null`, 1)
		if _, err := ReadLog(strings.NewReader(broken), Options{}); err == nil {
			t.Fatalf("expected an error for a null p_value")
		}
	})

	t.Run("normalizes numeric and boolean dimension values", func(t *testing.T) {
		rec := strings.Replace(record, `"instance": "m5.large"`, `"instance": 42`, 1)
		log, err := ReadLog(strings.NewReader(rec), Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v := log.Rows[0].Dims["instance"]; v.String() != "42" {
			t.Fatalf("expected numeric dimension rendered as 42, got %q", v)
		}
	})

	t.Run("resample options propagate onto every run", func(t *testing.T) {
		n := 777
		log, err := ReadLog(strings.NewReader(record), Options{Resamples: &n})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		run := log.Rows[0].Run
		if run.Resamples == nil || *run.Resamples != 777 {
			t.Fatalf("expected the resample override on the run, got %v", run.Resamples)
		}
	})
}
