// Package query runs SQL over exported damage reports with DuckDB.
//
// Each output of an export directory is exposed as a view named after its
// output key (dmg_dist_total, dmg_dist_per_taxonomy, dmg_dist_per_asset,
// collapse_map), so ad-hoc queries can join them freely.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/export"
	"github.com/xtxerr/tremor/internal/validation"
)

// Config configures the query service.
type Config struct {
	// MemoryLimit is passed to DuckDB, e.g. "1GB". Empty keeps the default.
	MemoryLimit string

	// Threads limits DuckDB worker threads. Zero keeps the default.
	Threads int
}

// Service provides query capabilities over one export directory.
type Service struct {
	mu sync.Mutex

	dir   string
	db    *sql.DB
	views []string

	stats Stats
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
}

// TotalRow is one row of the total damage distribution.
type TotalRow struct {
	GSIM        string
	DamageState string
	Mean        float64
	Stddev      float64
}

// TaxonomyRow is one row of the per-taxonomy damage distribution.
type TaxonomyRow struct {
	GSIM        string
	Taxonomy    string
	DamageState string
	Mean        float64
	Stddev      float64
}

// AssetRow is one row of the per-asset damage distribution.
type AssetRow struct {
	GSIM        string
	AssetID     string
	Lon         float64
	Lat         float64
	DamageState string
	Mean        float64
	Stddev      float64
}

// AssetQuery filters per-asset rows.
type AssetQuery struct {
	GSIM string

	// AssetPrefix matches asset ids starting with the prefix.
	AssetPrefix string

	Limit int
}

// New opens an in-memory DuckDB database and registers the outputs found
// in dir as views.
func New(dir string, cfg Config) (*Service, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(err, "open duckdb")
	}

	if cfg.MemoryLimit != "" {
		if _, err := db.Exec(fmt.Sprintf("SET memory_limit='%s'", strings.ReplaceAll(cfg.MemoryLimit, "'", ""))); err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}
	if cfg.Threads > 0 {
		if _, err := db.Exec(fmt.Sprintf("SET threads=%d", cfg.Threads)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}

	s := &Service{dir: dir, db: db}
	if err := s.registerViews(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) registerViews() error {
	for _, key := range export.Keys {
		path := filepath.Join(s.dir, export.FileName(key))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_parquet('%s')",
			key, strings.ReplaceAll(path, "'", "''"))
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "register %s", key)
		}
		s.views = append(s.views, key)
	}
	if len(s.views) == 0 {
		return fmt.Errorf("no outputs in %s: %w", s.dir, errors.ErrNotFound)
	}
	return nil
}

// Close closes the query service.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Views returns the registered view names.
func (s *Service) Views() []string {
	return append([]string(nil), s.views...)
}

// Totals returns the total damage distribution, optionally restricted to
// one GSIM, ordered by GSIM and damage state.
func (s *Service) Totals(ctx context.Context, gsim string) ([]TotalRow, error) {
	query := `
		SELECT gsim, damage_state, mean, stddev
		FROM dmg_dist_total
		WHERE $1 = '' OR gsim = $1
		ORDER BY gsim, lsi
	`
	rows, err := s.query(ctx, query, gsim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TotalRow
	for rows.Next() {
		var r TotalRow
		if err := rows.Scan(&r.GSIM, &r.DamageState, &r.Mean, &r.Stddev); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, s.finish(len(out), rows.Err())
}

// ByTaxonomy returns the per-taxonomy distribution of one taxonomy, or of
// all when taxonomy is empty.
func (s *Service) ByTaxonomy(ctx context.Context, gsim, taxonomy string) ([]TaxonomyRow, error) {
	query := `
		SELECT gsim, taxonomy, damage_state, mean, stddev
		FROM dmg_dist_per_taxonomy
		WHERE ($1 = '' OR gsim = $1)
		  AND ($2 = '' OR taxonomy = $2)
		ORDER BY gsim, taxonomy, lsi
	`
	rows, err := s.query(ctx, query, gsim, taxonomy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaxonomyRow
	for rows.Next() {
		var r TaxonomyRow
		if err := rows.Scan(&r.GSIM, &r.Taxonomy, &r.DamageState, &r.Mean, &r.Stddev); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, s.finish(len(out), rows.Err())
}

// ByAsset returns per-asset rows matching q.
func (s *Service) ByAsset(ctx context.Context, q AssetQuery) ([]AssetRow, error) {
	query := `
		SELECT gsim, asset_id, lon, lat, damage_state, mean, stddev
		FROM dmg_dist_per_asset
		WHERE ($1 = '' OR gsim = $1)
		  AND asset_id LIKE $2 ESCAPE '\'
		ORDER BY gsim, asset_id, lsi
	`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.query(ctx, query, q.GSIM, validation.SafeLikePrefix(q.AssetPrefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssetRow
	for rows.Next() {
		var r AssetRow
		if err := rows.Scan(&r.GSIM, &r.AssetID, &r.Lon, &r.Lat, &r.DamageState, &r.Mean, &r.Stddev); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, s.finish(len(out), rows.Err())
}

func (s *Service) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.mu.Lock()
		s.stats.Errors++
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return rows, nil
}

func (s *Service) finish(n int, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.stats.Errors++
		return err
	}
	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(n)
	return nil
}

// Stats returns query statistics.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Result is the outcome of an ad-hoc query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// ExecuteSQL executes a raw SQL query. This is useful for ad-hoc queries
// and debugging.
func (s *Service) ExecuteSQL(ctx context.Context, query string) (*Result, error) {
	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, values)
	}

	return res, s.finish(len(res.Rows), rows.Err())
}
