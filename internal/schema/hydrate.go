package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/goseed/internal/config"
	"github.com/dbsmedya/goseed/internal/dialect"
)

// Hydrate fills the column list of every model that has none by probing its
// table with a query that returns no rows.
func Hydrate(ctx context.Context, db *sql.DB, d dialect.Dialect, cat Catalog) error {
	for _, m := range cat.Models() {
		if len(m.Columns) > 0 {
			continue
		}
		table, err := dialect.QuoteIdentifierSafe(d, m.Table)
		if err != nil {
			return fmt.Errorf("model %s: %w", m.Name, err)
		}
		cols, err := probeColumns(ctx, db, "SELECT * FROM "+table+" WHERE 1=0")
		if err != nil {
			return fmt.Errorf("failed to read columns of %s: %w", m.Table, err)
		}
		m.Columns = cols
	}
	return nil
}

func probeColumns(ctx context.Context, db *sql.DB, query string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]Column, 0, len(types))
	for _, ct := range types {
		nullable, ok := ct.Nullable()
		cols = append(cols, Column{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable || !ok,
		})
	}
	return cols, rows.Err()
}

// Build assembles the catalog for a run. reflected models (GORM structs)
// are laid over introspected foreign keys when introspection is on, and
// declared models are laid over both. Columns are hydrated when db is not
// nil.
func Build(ctx context.Context, cfg config.CatalogConfig, db *sql.DB, d dialect.Dialect, schemaName string, reflected ...*Model) (*Registry, error) {
	base := reflected
	if cfg.Introspect {
		if db == nil {
			return nil, fmt.Errorf("catalog introspection needs a database connection")
		}
		found, err := Introspect(ctx, db, d, schemaName)
		if err != nil {
			return nil, err
		}
		base = Merge(found, base)
	}

	models := NewStatic(cfg.Models)
	if len(base) > 0 {
		models = Merge(base, models)
	}

	reg, err := NewRegistry(models)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	if db != nil {
		if err := Hydrate(ctx, db, d, reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
