// Copyright (c) 2026 Quanta Exchange Contributors
//
// Query is the OLAP tier's ad-hoc analytical surface: a thin DuckDB
// layer over the sealed `olap-*.parquet` runs flushOLAP writes to
// disk, following the teacher's own cache-as-DuckDB-view-over-parquet
// pattern (internal/mcp_data/cache.go's refreshViewForSchema/
// queryDuckDB) almost verbatim -- CREATE VIEW ... read_parquet(glob),
// then run the caller's SQL against it, capped at a row limit so one
// bad query can't stream an unbounded result set back.

package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// MaxQueryRows bounds a single Query call's result set.
const MaxQueryRows = 10_000

// queryIdentifier matches a safe view/record-type name: alphanumeric,
// dot, hyphen, underscore only -- no quoting escape needed.
var queryIdentifier = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// QueryResult is one ad-hoc analytical query's result set.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// Query runs userSQL against a DuckDB view named after recordType,
// backed by every sealed OLAP parquet run of that type under the
// store's sstable directory. The view is rebuilt on every call since
// compaction can add or retire runs between queries; DuckDB's
// read_parquet glob makes that a cheap re-scan of the directory, not a
// re-read of file contents.
func (s *Store) Query(recordType, userSQL string) (QueryResult, error) {
	if !queryIdentifier.MatchString(recordType) {
		return QueryResult{}, fmt.Errorf("storage: invalid record type %q for query view", recordType)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return QueryResult{}, fmt.Errorf("storage: open duckdb: %w", err)
	}
	defer db.Close()

	glob := filepath.Join(s.cfg.Dir, "sstable", fmt.Sprintf("olap-%s-*.parquet", recordType))
	viewName := "olap_" + strings.ReplaceAll(recordType, "-", "_")
	createView := fmt.Sprintf(`CREATE OR REPLACE VIEW "%s" AS SELECT * FROM read_parquet(%s)`,
		viewName, sqlLiteral(glob))
	if _, err := db.Exec(createView); err != nil {
		return QueryResult{}, fmt.Errorf("storage: create view over %s: %w", glob, err)
	}

	wrapped := fmt.Sprintf("SELECT * FROM (%s) LIMIT %d", userSQL, MaxQueryRows)
	rows, err := db.Query(wrapped)
	if err != nil {
		return QueryResult{}, fmt.Errorf("storage: query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return QueryResult{}, fmt.Errorf("storage: columns: %w", err)
	}

	result := QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{}, fmt.Errorf("storage: scan row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("storage: row iteration: %w", err)
	}
	return result, nil
}

// sqlLiteral escapes a string for use as a SQL string literal.
func sqlLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
