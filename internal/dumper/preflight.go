package dumper

import (
	"context"
	"fmt"
	"sort"

	"github.com/dbsmedya/goseed/internal/dialect"
	"github.com/dbsmedya/goseed/internal/logger"
	"github.com/dbsmedya/goseed/internal/schema"
)

// PreflightError represents a preflight check failure.
type PreflightError struct {
	Check   string
	Message string
	Tables  []string
	Details map[string]string
}

func (e *PreflightError) Error() string {
	if len(e.Tables) > 0 {
		return fmt.Sprintf("%s: %s (tables: %v)", e.Check, e.Message, e.Tables)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// PreflightChecker checks the source database against the catalog and the
// roots before a dump.
type PreflightChecker struct {
	d          *Dumper
	schemaName string
	logger     *logger.Logger
}

// NewPreflightChecker creates a checker for the database behind d.
// schemaName is the MySQL database or PostgreSQL schema; SQLite ignores it.
func NewPreflightChecker(d *Dumper, schemaName string) (*PreflightChecker, error) {
	if d == nil {
		return nil, fmt.Errorf("dumper is nil")
	}
	if d.db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if schemaName == "" && d.dialect.Name() != "sqlite" {
		return nil, fmt.Errorf("schema name is required for %s", d.dialect.Name())
	}
	return &PreflightChecker{d: d, schemaName: schemaName, logger: d.logger}, nil
}

// RunAllChecks runs every preflight check and stops at the first failure.
func (p *PreflightChecker) RunAllChecks(ctx context.Context) error {
	p.logger.Info("Running preflight checks...")

	if err := p.ValidateTablesExist(ctx, catalogTables(p.d.catalog)); err != nil {
		return err
	}
	if err := p.ValidateAssociationColumns(); err != nil {
		return err
	}
	if err := p.ValidateRootQueries(ctx); err != nil {
		return err
	}

	p.logger.Info("All preflight checks PASSED")
	return nil
}

func catalogTables(cat schema.Catalog) []string {
	seen := make(map[string]bool)
	var tables []string
	for _, m := range cat.Models() {
		if !seen[m.Table] {
			seen[m.Table] = true
			tables = append(tables, m.Table)
		}
	}
	sort.Strings(tables)
	return tables
}

// ValidateTablesExist checks that every table is present in the source.
func (p *PreflightChecker) ValidateTablesExist(ctx context.Context, tables []string) error {
	if len(tables) == 0 {
		return nil
	}
	p.logger.Debug("Checking table existence...")

	d := p.d.dialect
	var (
		query string
		args  []interface{}
	)
	switch d.Name() {
	case "mysql":
		query = "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_NAME IN (" +
			dialect.Placeholders(d, 2, len(tables)) + ")"
		args = append(args, p.schemaName)
	case "postgres":
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_name IN (" +
			dialect.Placeholders(d, 2, len(tables)) + ")"
		args = append(args, p.schemaName)
	default:
		query = "SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name IN (" +
			dialect.Placeholders(d, 1, len(tables)) + ")"
	}
	for _, t := range tables {
		args = append(args, t)
	}

	rows, err := p.d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	for _, t := range tables {
		if !existing[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return &PreflightError{
			Check:   "TABLE_EXISTENCE_CHECK",
			Message: "Tables not found in source database",
			Tables:  missing,
		}
	}

	p.logger.Debugf("Table existence check PASSED (%d tables)", len(tables))
	return nil
}

// ValidateAssociationColumns checks that the key and type columns of every
// association exist in models whose columns are known.
func (p *PreflightChecker) ValidateAssociationColumns() error {
	cat := p.d.catalog
	details := make(map[string]string)
	var tables []string

	missing := func(m *schema.Model, column, rel string) {
		if column == "" || len(m.Columns) == 0 {
			return
		}
		if _, ok := m.Column(column); ok {
			return
		}
		ref := m.Table + "." + column
		if _, dup := details[ref]; !dup {
			tables = append(tables, ref)
		}
		details[ref] = rel
	}

	for _, m := range cat.Models() {
		for _, rel := range m.BelongsTo {
			name := m.Name + "." + rel.Name
			missing(m, rel.ForeignKey, name)
			if rel.Polymorphic {
				missing(m, rel.TypeColumn, name)
			}
		}
		for _, rel := range m.HasRelations {
			name := m.Name + "." + rel.Name
			missing(m, rel.PrimaryKey, name)
			target, err := cat.Model(rel.Target)
			if err != nil {
				return err
			}
			missing(target, rel.ForeignKey, name)
			if rel.Polymorphic {
				missing(target, rel.TypeColumn, name)
			}
		}
	}

	if len(tables) > 0 {
		return &PreflightError{
			Check:   "ASSOCIATION_COLUMN_CHECK",
			Message: "Association columns not found",
			Tables:  tables,
			Details: details,
		}
	}
	p.logger.Debug("Association column check PASSED")
	return nil
}

// ValidateRootQueries runs each root query under a false condition, which
// checks its where clause and arguments without reading rows.
func (p *PreflightChecker) ValidateRootQueries(ctx context.Context) error {
	details := make(map[string]string)
	var failed []string

	for _, spec := range p.d.roots {
		rel := p.d.baseRelation(spec.model)
		rel.where(spec.cfg.Where, spec.cfg.Args...)
		if err := p.probe(ctx, rel, spec.cfg.Order); err != nil {
			failed = append(failed, spec.model.Table)
			details[spec.model.Name] = err.Error()
		}
	}

	if len(failed) > 0 {
		return &PreflightError{
			Check:   "ROOT_QUERY_CHECK",
			Message: "Root queries failed",
			Tables:  failed,
			Details: details,
		}
	}
	p.logger.Debugf("Root query check PASSED (%d roots)", len(p.d.roots))
	return nil
}

func (p *PreflightChecker) probe(ctx context.Context, rel *relation, order string) error {
	query, args, err := rel.toSQL(order, 0, 0, raw("1 = 0"))
	if err != nil {
		return err
	}
	rows, err := p.d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return rows.Close()
}
