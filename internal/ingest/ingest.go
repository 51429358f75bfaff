// Package ingest reads A/B test results from the EMF ndjson logs the
// benchmarking harness emits: one JSON object per line, carrying the
// two sample arrays, the harness-computed statistics, and CloudWatch
// embedded-metric metadata describing dimensions and units.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"

	"github.com/roypat/volcano/internal/explore"
	"github.com/roypat/volcano/internal/result"
)

// Log is one parsed EMF log: the rows plus the union of dimension
// names declared across all records, sorted for deterministic
// question ordering.
type Log struct {
	Rows       []explore.Row
	Dimensions []string
}

// Options control how ingested runs compute their statistics.
type Options struct {
	// Resamples, when non-nil, makes every run re-run its permutation
	// test with this many resamples instead of trusting the
	// harness-computed values.
	Resamples *int
	// Rand seeds the Monte-Carlo resampling path.
	Rand *rand.Rand
}

type emfMetadata struct {
	CloudWatchMetrics []struct {
		Namespace  string     `json:"Namespace"`
		Dimensions [][]string `json:"Dimensions"`
		Metrics    []struct {
			Name string `json:"Name"`
			Unit string `json:"Unit"`
		} `json:"Metrics"`
	} `json:"CloudWatchMetrics"`
	Timestamp int64 `json:"Timestamp"`
}

// ReadLog parses an EMF ndjson stream. Lines that are not A/B test
// records (no metric name) are skipped; the harness logs plenty of
// other telemetry into the same file. Records missing a required
// numeric field are rejected with a line-numbered error, never coerced
// to a default.
func ReadLog(r io.Reader, opts Options) (*Log, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	log := &Log{}
	dimSeen := map[string]bool{}

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 || line[0] != '{' {
			continue
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(line, &fields); err != nil {
			return nil, fmt.Errorf("parse EMF record on line %d: %w", lineNum, err)
		}

		metric, ok := stringField(fields, "metric")
		if !ok {
			continue
		}

		row, dims, err := parseRecord(fields, metric, opts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		for _, d := range dims {
			if !dimSeen[d] {
				dimSeen[d] = true
				log.Dimensions = append(log.Dimensions, d)
			}
		}
		log.Rows = append(log.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}

	sort.Strings(log.Dimensions)
	return log, nil
}

func parseRecord(fields map[string]json.RawMessage, metric string, opts Options) (explore.Row, []string, error) {
	var dataA, dataB []float64
	if err := requiredField(fields, "data_a", &dataA); err != nil {
		return explore.Row{}, nil, err
	}
	if err := requiredField(fields, "data_b", &dataB); err != nil {
		return explore.Row{}, nil, err
	}

	var pValue, meanDifference float64
	if err := requiredField(fields, "p_value", &pValue); err != nil {
		return explore.Row{}, nil, err
	}
	if err := requiredField(fields, "mean_difference", &meanDifference); err != nil {
		return explore.Row{}, nil, err
	}

	var buildNumber int64
	if err := requiredField(fields, "buildkite_build_number", &buildNumber); err != nil {
		return explore.Row{}, nil, err
	}

	var meta emfMetadata
	if err := requiredField(fields, "_aws", &meta); err != nil {
		return explore.Row{}, nil, err
	}
	if len(meta.CloudWatchMetrics) == 0 {
		return explore.Row{}, nil, fmt.Errorf("record has no CloudWatchMetrics metadata")
	}

	cw := meta.CloudWatchMetrics[0]
	unit := ""
	for _, m := range cw.Metrics {
		if m.Name == "mean_difference" {
			unit = m.Unit
			break
		}
	}

	var dims []string
	if len(cw.Dimensions) > 0 {
		dims = cw.Dimensions[0]
	}

	values := make(map[string]result.Value, len(dims))
	for _, dim := range dims {
		v, err := dimensionValue(fields, dim)
		if err != nil {
			return explore.Row{}, nil, err
		}
		values[dim] = v
	}

	run := &result.TestResult{
		DataA:                     dataA,
		DataB:                     dataB,
		PrecomputedPValue:         pValue,
		PrecomputedMeanDifference: meanDifference,
		BuildNumber:               buildNumber,
		Unit:                      unit,
		Metric:                    metric,
		Resamples:                 opts.Resamples,
		Rand:                      opts.Rand,
	}

	return explore.Row{Dims: values, Run: run}, dims, nil
}

// requiredField decodes fields[name] into dst, rejecting absent or
// null values.
func requiredField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("record is missing required field %q", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	return nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// dimensionValue normalizes a dimension's JSON value to its string
// form. Absent and null both mean the dimension does not apply to this
// record.
func dimensionValue(fields map[string]json.RawMessage, dim string) (result.Value, error) {
	raw, ok := fields[dim]
	if !ok || string(raw) == "null" {
		return result.Missing, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return result.Missing, fmt.Errorf("dimension %q: %w", dim, err)
	}
	switch val := v.(type) {
	case string:
		return result.Val(val), nil
	case float64:
		return result.Val(strconv.FormatFloat(val, 'g', -1, 64)), nil
	case bool:
		return result.Val(strconv.FormatBool(val)), nil
	default:
		return result.Missing, fmt.Errorf("dimension %q has unsupported value %s", dim, raw)
	}
}
