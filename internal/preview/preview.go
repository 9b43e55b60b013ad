// Package preview reads the head of a fetch output file plus summary
// statistics, using DuckDB so CSV and Parquet outputs share one path.
package preview

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/quantrail/barfetch/internal/types"
	"github.com/quantrail/barfetch/pkg/errors"
)

// DefaultLimit is the number of rows returned when the caller does not
// ask for a specific count.
const DefaultLimit = 20

// MaxLimit caps preview size so the endpoint never streams a whole file.
const MaxLimit = 500

// Stats summarizes an output file.
type Stats struct {
	Rows      int64     `json:"rows"`
	ErrorRows int64     `json:"errorRows"`
	Symbols   int64     `json:"symbols"`
	FirstDate time.Time `json:"firstDate,omitzero"`
	LastDate  time.Time `json:"lastDate,omitzero"`
}

// Result is a bounded slice of rows plus file-level statistics.
type Result struct {
	Rows  []types.Row `json:"rows"`
	Stats Stats       `json:"stats"`
}

// File previews the output file at path. limit <= 0 selects DefaultLimit.
func File(ctx context.Context, path string, limit int) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "output file not readable: %s", path)
	}

	if limit <= 0 {
		limit = DefaultLimit
	}

	if limit > MaxLimit {
		limit = MaxLimit
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	source, err := sourceExpr(path)
	if err != nil {
		return nil, err
	}

	rows, err := readRows(ctx, db, source, limit)
	if err != nil {
		return nil, err
	}

	stats, err := readStats(ctx, db, source)
	if err != nil {
		return nil, err
	}

	return &Result{Rows: rows, Stats: *stats}, nil
}

// sourceExpr builds the DuckDB table function reading the file. The
// path is embedded as a single-quoted literal, so quotes are doubled.
func sourceExpr(path string) (string, error) {
	quoted := strings.ReplaceAll(path, "'", "''")

	switch {
	case strings.HasSuffix(path, ".csv"):
		return fmt.Sprintf("read_csv_auto('%s', header=true)", quoted), nil
	case strings.HasSuffix(path, ".parquet"):
		return fmt.Sprintf("read_parquet('%s')", quoted), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported output format: %s", path)
	}
}

func readRows(ctx context.Context, db *sql.DB, source string, limit int) ([]types.Row, error) {
	query, args, err := sq.Select(
		"symbol",
		"CAST(date AS TIMESTAMP)",
		"COALESCE(open, 0)",
		"COALESCE(high, 0)",
		"COALESCE(low, 0)",
		"COALESCE(close, 0)",
		"COALESCE(volume, 0)",
		"COALESCE(error, '')",
	).
		From(source).
		OrderBy("symbol", "date").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build preview query: %w", err)
	}

	result, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchFailed, "failed to read output file", err)
	}
	defer result.Close()

	var rows []types.Row

	for result.Next() {
		var (
			row  types.Row
			date sql.NullTime
		)

		if err := result.Scan(&row.Symbol, &date, &row.Open, &row.High, &row.Low, &row.Close, &row.Volume, &row.Err); err != nil {
			return nil, fmt.Errorf("failed to scan preview row: %w", err)
		}

		if date.Valid {
			row.Date = date.Time.UTC()
		}

		rows = append(rows, row)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate preview rows: %w", err)
	}

	return rows, nil
}

func readStats(ctx context.Context, db *sql.DB, source string) (*Stats, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE COALESCE(error, '') != ''),
			COUNT(DISTINCT symbol),
			MIN(CAST(date AS TIMESTAMP)),
			MAX(CAST(date AS TIMESTAMP))
		FROM %s
	`, source)

	var (
		stats Stats
		first sql.NullTime
		last  sql.NullTime
	)

	err := db.QueryRowContext(ctx, query).Scan(&stats.Rows, &stats.ErrorRows, &stats.Symbols, &first, &last)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchFailed, "failed to read output stats", err)
	}

	if first.Valid {
		stats.FirstDate = first.Time.UTC()
	}

	if last.Valid {
		stats.LastDate = last.Time.UTC()
	}

	return &stats, nil
}
