package dumper

import (
	"context"
	"fmt"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/goseed/internal/dialect"
)

// RootEstimate is the expected size of one root query.
type RootEstimate struct {
	Model    string
	Table    string
	Matching int64 // rows matching where and the default scope
	Rows     int64 // Matching capped by the root limit
	Pages    int64
}

// EstimateResult holds the estimates of every root and the size of every
// catalog table.
type EstimateResult struct {
	Roots       []RootEstimate
	TableCounts *orderedmap.OrderedMap[string, int64]
	BatchSize   int
}

// Estimator counts root rows before a dump.
type Estimator struct {
	d *Dumper
}

// NewEstimator creates an estimator for the roots of d.
func NewEstimator(d *Dumper) *Estimator {
	return &Estimator{d: d}
}

// Estimate counts the rows each root would start from and the total rows of
// every catalog table.
func (e *Estimator) Estimate(ctx context.Context) (*EstimateResult, error) {
	if e.d.db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	result := &EstimateResult{
		TableCounts: orderedmap.NewOrderedMap[string, int64](),
		BatchSize:   e.d.fetcher.batchSize,
	}

	for _, spec := range e.d.roots {
		rel := e.d.baseRelation(spec.model)
		rel.where(spec.cfg.Where, spec.cfg.Args...)
		matching, err := e.count(ctx, rel)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate root %s: %w", spec.model.Name, err)
		}

		est := RootEstimate{Model: spec.model.Name, Table: spec.model.Table, Matching: matching, Rows: matching}
		if spec.cfg.Limit > 0 && int64(spec.cfg.Limit) < est.Rows {
			est.Rows = int64(spec.cfg.Limit)
		}
		size := int64(result.BatchSize)
		est.Pages = (est.Rows + size - 1) / size
		result.Roots = append(result.Roots, est)
	}

	for _, table := range catalogTables(e.d.catalog) {
		n, err := e.tableCount(ctx, table)
		if err != nil {
			e.d.logger.Warnf("Failed to count rows of %s: %v", table, err)
			continue
		}
		result.TableCounts.Set(table, n)
	}
	return result, nil
}

func (e *Estimator) count(ctx context.Context, rel *relation) (int64, error) {
	query, args, err := rel.countSQL()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := e.d.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (e *Estimator) tableCount(ctx context.Context, table string) (int64, error) {
	quoted, err := dialect.QuoteIdentifierSafe(e.d.dialect, table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := e.d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoted).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
