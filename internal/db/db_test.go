package db

import (
	"path/filepath"
	"reflect"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func sampleImport() *Import {
	return &Import{
		Source:      "test_results.ndjson",
		ImportedAt:  "2026-08-29T10:00:00Z",
		RecordCount: 2,
		Dimensions:  []string{"host_kernel", "instance"},
		Notes:       "nightly",
	}
}

func sampleResult(importID int64) *Result {
	kernel := "6.1"
	return &Result{
		ImportID:       importID,
		Metric:         "block_latency",
		Unit:           "Milliseconds",
		BuildNumber:    123,
		PValue:         0.03,
		MeanDifference: 2.5,
		DataA:          []float64{1, 2, 3},
		DataB:          []float64{3, 4, 5},
		Dimensions:     map[string]*string{"host_kernel": &kernel, "instance": nil},
	}
}

func TestImportRoundTrip(t *testing.T) {
	database := testDB(t)

	id, err := database.InsertImport(sampleImport())
	if err != nil {
		t.Fatalf("failed to insert import: %v", err)
	}

	imp, err := database.GetImport(id)
	if err != nil {
		t.Fatalf("failed to get import: %v", err)
	}
	if imp.Source != "test_results.ndjson" || imp.Notes != "nightly" {
		t.Fatalf("unexpected import metadata: %+v", imp)
	}
	if !reflect.DeepEqual(imp.Dimensions, []string{"host_kernel", "instance"}) {
		t.Fatalf("unexpected dimensions: %v", imp.Dimensions)
	}
}

func TestResultRoundTrip(t *testing.T) {
	database := testDB(t)

	importID, err := database.InsertImport(sampleImport())
	if err != nil {
		t.Fatalf("failed to insert import: %v", err)
	}
	if _, err := database.InsertResult(sampleResult(importID)); err != nil {
		t.Fatalf("failed to insert result: %v", err)
	}

	results, err := database.GetResultsForImport(importID)
	if err != nil {
		t.Fatalf("failed to get results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Metric != "block_latency" || r.Unit != "Milliseconds" || r.BuildNumber != 123 {
		t.Fatalf("unexpected result metadata: %+v", r)
	}
	if !reflect.DeepEqual(r.DataA, []float64{1, 2, 3}) || !reflect.DeepEqual(r.DataB, []float64{3, 4, 5}) {
		t.Fatalf("unexpected sample arrays: %v / %v", r.DataA, r.DataB)
	}
	if v := r.Dimensions["host_kernel"]; v == nil || *v != "6.1" {
		t.Fatalf("expected host_kernel=6.1, got %v", v)
	}
	if v, ok := r.Dimensions["instance"]; !ok || v != nil {
		t.Fatalf("expected instance archived as null, got %v (ok=%v)", v, ok)
	}
}

func TestGetLatestImport(t *testing.T) {
	database := testDB(t)

	first := sampleImport()
	first.ImportedAt = "2026-08-28T10:00:00Z"
	if _, err := database.InsertImport(first); err != nil {
		t.Fatalf("failed to insert import: %v", err)
	}

	second := sampleImport()
	second.Source = "newer.ndjson"
	if _, err := database.InsertImport(second); err != nil {
		t.Fatalf("failed to insert import: %v", err)
	}

	latest, err := database.GetLatestImport()
	if err != nil {
		t.Fatalf("failed to get latest import: %v", err)
	}
	if latest.Source != "newer.ndjson" {
		t.Fatalf("expected the newest import, got %q", latest.Source)
	}
}

func TestDeleteImportCascades(t *testing.T) {
	database := testDB(t)

	importID, err := database.InsertImport(sampleImport())
	if err != nil {
		t.Fatalf("failed to insert import: %v", err)
	}
	if _, err := database.InsertResult(sampleResult(importID)); err != nil {
		t.Fatalf("failed to insert result: %v", err)
	}

	if err := database.DeleteImport(importID); err != nil {
		t.Fatalf("failed to delete import: %v", err)
	}

	count, err := database.CountResultsForImport(importID)
	if err != nil {
		t.Fatalf("failed to count results: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected results deleted with their import, got %d", count)
	}
}

func TestDistinctMetrics(t *testing.T) {
	database := testDB(t)

	importID, err := database.InsertImport(sampleImport())
	if err != nil {
		t.Fatalf("failed to insert import: %v", err)
	}
	for _, metric := range []string{"net_throughput", "block_latency", "block_latency"} {
		r := sampleResult(importID)
		r.Metric = metric
		if _, err := database.InsertResult(r); err != nil {
			t.Fatalf("failed to insert result: %v", err)
		}
	}

	metrics, err := database.DistinctMetrics(importID)
	if err != nil {
		t.Fatalf("failed to list metrics: %v", err)
	}
	if !reflect.DeepEqual(metrics, []string{"block_latency", "net_throughput"}) {
		t.Fatalf("expected sorted distinct metrics, got %v", metrics)
	}
}
