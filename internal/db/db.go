// Package db archives raw ingested A/B test records in a local sqlite
// database, so large EMF logs only need to be parsed once. Analysis
// always runs over an in-memory result set; the archive stores inputs,
// never computed statistics.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS imports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    imported_at TEXT NOT NULL,
    record_count INTEGER NOT NULL DEFAULT 0,
    dimensions TEXT NOT NULL DEFAULT '[]',
    notes TEXT
);
CREATE INDEX IF NOT EXISTS idx_imports_date ON imports(imported_at);

CREATE TABLE IF NOT EXISTS results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    import_id INTEGER NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
    metric TEXT NOT NULL,
    unit TEXT NOT NULL,
    build_number INTEGER NOT NULL,
    p_value REAL NOT NULL,
    mean_difference REAL NOT NULL,
    data_a TEXT NOT NULL,
    data_b TEXT NOT NULL,
    dimensions TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_results_import ON results(import_id);
CREATE INDEX IF NOT EXISTS idx_results_metric ON results(metric);
CREATE INDEX IF NOT EXISTS idx_results_build ON results(build_number);
`

type DB struct {
	*sql.DB
	path string
}

func (db *DB) Path() string {
	return db.path
}

func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath
	if strings.Contains(dbPath, "?") {
		dsn += "&_pragma=foreign_keys(1)"
	} else {
		dsn += "?_pragma=foreign_keys(1)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{DB: sqlDB, path: dbPath}, nil
}

// Import is one archived log file.
type Import struct {
	ID          int64
	Source      string
	ImportedAt  string
	RecordCount int64
	Dimensions  []string
	Notes       string
}

// Result is one archived A/B test record. A nil dimension value means
// the dimension did not apply to the record.
type Result struct {
	ID             int64
	ImportID       int64
	Metric         string
	Unit           string
	BuildNumber    int64
	PValue         float64
	MeanDifference float64
	DataA          []float64
	DataB          []float64
	Dimensions     map[string]*string
}

func (db *DB) InsertImport(imp *Import) (int64, error) {
	dims, err := json.Marshal(imp.Dimensions)
	if err != nil {
		return 0, fmt.Errorf("encode dimensions: %w", err)
	}
	res, err := db.Exec(`
		INSERT INTO imports (source, imported_at, record_count, dimensions, notes)
		VALUES (?, ?, ?, ?, ?)`,
		imp.Source, imp.ImportedAt, imp.RecordCount, string(dims), imp.Notes)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (db *DB) InsertResult(r *Result) (int64, error) {
	dataA, err := json.Marshal(r.DataA)
	if err != nil {
		return 0, fmt.Errorf("encode data_a: %w", err)
	}
	dataB, err := json.Marshal(r.DataB)
	if err != nil {
		return 0, fmt.Errorf("encode data_b: %w", err)
	}
	dims, err := json.Marshal(r.Dimensions)
	if err != nil {
		return 0, fmt.Errorf("encode dimensions: %w", err)
	}

	res, err := db.Exec(`
		INSERT INTO results (import_id, metric, unit, build_number, p_value, mean_difference, data_a, data_b, dimensions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ImportID, r.Metric, r.Unit, r.BuildNumber, r.PValue, r.MeanDifference,
		string(dataA), string(dataB), string(dims))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (db *DB) ListImports(limit int) ([]Import, error) {
	query := `SELECT id, source, imported_at, record_count, dimensions, notes FROM imports ORDER BY imported_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		imports = append(imports, *imp)
	}
	return imports, rows.Err()
}

func (db *DB) GetImport(id int64) (*Import, error) {
	row := db.QueryRow(`SELECT id, source, imported_at, record_count, dimensions, notes FROM imports WHERE id = ?`, id)
	return scanImport(row)
}

func (db *DB) GetLatestImport() (*Import, error) {
	row := db.QueryRow(`SELECT id, source, imported_at, record_count, dimensions, notes FROM imports ORDER BY imported_at DESC LIMIT 1`)
	return scanImport(row)
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanImport(row scannable) (*Import, error) {
	var imp Import
	var dims string
	var notes sql.NullString
	if err := row.Scan(&imp.ID, &imp.Source, &imp.ImportedAt, &imp.RecordCount, &dims, &notes); err != nil {
		return nil, err
	}
	imp.Notes = notes.String
	if err := json.Unmarshal([]byte(dims), &imp.Dimensions); err != nil {
		return nil, fmt.Errorf("decode dimensions: %w", err)
	}
	return &imp, nil
}

func (db *DB) GetResultsForImport(importID int64) ([]Result, error) {
	rows, err := db.Query(`
		SELECT id, import_id, metric, unit, build_number, p_value, mean_difference, data_a, data_b, dimensions
		FROM results WHERE import_id = ? ORDER BY id`, importID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var dataA, dataB, dims string
		if err := rows.Scan(&r.ID, &r.ImportID, &r.Metric, &r.Unit, &r.BuildNumber,
			&r.PValue, &r.MeanDifference, &dataA, &dataB, &dims); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dataA), &r.DataA); err != nil {
			return nil, fmt.Errorf("decode data_a: %w", err)
		}
		if err := json.Unmarshal([]byte(dataB), &r.DataB); err != nil {
			return nil, fmt.Errorf("decode data_b: %w", err)
		}
		if err := json.Unmarshal([]byte(dims), &r.Dimensions); err != nil {
			return nil, fmt.Errorf("decode dimensions: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (db *DB) CountResultsForImport(importID int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM results WHERE import_id = ?`, importID).Scan(&count)
	return count, err
}

func (db *DB) DeleteImport(id int64) error {
	_, err := db.Exec(`DELETE FROM imports WHERE id = ?`, id)
	return err
}

// DistinctMetrics lists the metric names archived under one import.
func (db *DB) DistinctMetrics(importID int64) ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT metric FROM results WHERE import_id = ? ORDER BY metric`, importID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
