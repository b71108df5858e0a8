package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/dbsmedya/goseed/internal/dialect"
)

type tableInfo struct {
	name    string
	columns []Column
	pks     []string
}

type foreignKey struct {
	table      string
	constraint string
	column     string
	refTable   string
	refColumn  string
}

const mysqlColumnsQuery = `
	SELECT TABLE_NAME, COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY
	FROM information_schema.COLUMNS
	WHERE TABLE_SCHEMA = ?
	AND TABLE_NAME IN (
		SELECT TABLE_NAME FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
	)
	ORDER BY TABLE_NAME, ORDINAL_POSITION`

const mysqlForeignKeysQuery = `
	SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
	FROM information_schema.KEY_COLUMN_USAGE
	WHERE TABLE_SCHEMA = ?
	AND REFERENCED_TABLE_NAME IS NOT NULL
	ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION`

const postgresColumnsQuery = `
	SELECT c.table_name, c.column_name, c.data_type, c.is_nullable,
		CASE WHEN pk.column_name IS NULL THEN '' ELSE 'PRI' END
	FROM information_schema.columns c
	JOIN information_schema.tables t
		ON t.table_schema = c.table_schema AND t.table_name = c.table_name
	LEFT JOIN (
		SELECT kcu.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1
	) pk ON pk.table_name = c.table_name AND pk.column_name = c.column_name
	WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
	ORDER BY c.table_name, c.ordinal_position`

const postgresForeignKeysQuery = `
	SELECT tc.table_name, tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
	JOIN information_schema.constraint_column_usage ccu
		ON ccu.constraint_name = tc.constraint_name AND ccu.constraint_schema = tc.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
	ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`

const sqliteTablesQuery = `
	SELECT name FROM sqlite_master
	WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
	ORDER BY name`

const sqliteColumnsQuery = `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`

const sqliteForeignKeysQuery = `SELECT id, "from", "table", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`

// Introspect reflects tables and single-column foreign keys of the source
// database into models. Model names are table names; association names are
// derived from the foreign key columns ("author_id" gives belongs_to
// "author" and has_many "<table>" on the referenced model).
//
// schemaName is the MySQL database or the PostgreSQL schema; SQLite ignores it.
func Introspect(ctx context.Context, db *sql.DB, d dialect.Dialect, schemaName string) ([]*Model, error) {
	var (
		tables []*tableInfo
		fks    []foreignKey
		err    error
	)

	switch d.Name() {
	case "mysql":
		tables, err = queryColumns(ctx, db, mysqlColumnsQuery, schemaName, schemaName)
		if err == nil {
			fks, err = queryForeignKeys(ctx, db, mysqlForeignKeysQuery, schemaName)
		}
	case "postgres":
		if schemaName == "" {
			schemaName = "public"
		}
		tables, err = queryColumns(ctx, db, postgresColumnsQuery, schemaName)
		if err == nil {
			fks, err = queryForeignKeys(ctx, db, postgresForeignKeysQuery, schemaName)
		}
	case "sqlite":
		tables, fks, err = introspectSQLite(ctx, db)
	default:
		return nil, fmt.Errorf("introspection not supported for dialect %s", d.Name())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to introspect schema: %w", err)
	}

	return buildModels(tables, fks), nil
}

// queryColumns reads (table, column, type, is_nullable, key) rows.
func queryColumns(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]*tableInfo, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var tables []*tableInfo
	byName := make(map[string]*tableInfo)
	for rows.Next() {
		var table, column, typ, nullable, key string
		if err := rows.Scan(&table, &column, &typ, &nullable, &key); err != nil {
			return nil, err
		}
		t, ok := byName[table]
		if !ok {
			t = &tableInfo{name: table}
			byName[table] = t
			tables = append(tables, t)
		}
		t.columns = append(t.columns, Column{Name: column, Type: typ, Nullable: strings.EqualFold(nullable, "YES")})
		if key == "PRI" {
			t.pks = append(t.pks, column)
		}
	}
	return tables, rows.Err()
}

func queryForeignKeys(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]foreignKey, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []foreignKey
	for rows.Next() {
		var fk foreignKey
		if err := rows.Scan(&fk.table, &fk.constraint, &fk.column, &fk.refTable, &fk.refColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// introspectSQLite reads each result set fully before the next query so a
// single-connection pool works.
func introspectSQLite(ctx context.Context, db *sql.DB) ([]*tableInfo, []foreignKey, error) {
	names, err := queryStrings(ctx, db, sqliteTablesQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var (
		tables []*tableInfo
		fks    []foreignKey
	)
	for _, name := range names {
		t, err := sqliteTable(ctx, db, name)
		if err != nil {
			return nil, nil, err
		}
		tables = append(tables, t)

		tfks, err := sqliteForeignKeys(ctx, db, name)
		if err != nil {
			return nil, nil, err
		}
		fks = append(fks, tfks...)
	}
	return tables, fks, nil
}

func sqliteTable(ctx context.Context, db *sql.DB, name string) (*tableInfo, error) {
	rows, err := db.QueryContext(ctx, sqliteColumnsQuery, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", name, err)
	}
	defer rows.Close()

	t := &tableInfo{name: name}
	for rows.Next() {
		var (
			column, typ string
			notNull, pk int
		)
		if err := rows.Scan(&column, &typ, &notNull, &pk); err != nil {
			return nil, err
		}
		t.columns = append(t.columns, Column{Name: column, Type: typ, Nullable: notNull == 0 && pk == 0})
		if pk > 0 {
			t.pks = append(t.pks, column)
		}
	}
	return t, rows.Err()
}

func sqliteForeignKeys(ctx context.Context, db *sql.DB, name string) ([]foreignKey, error) {
	rows, err := db.QueryContext(ctx, sqliteForeignKeysQuery, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys of %s: %w", name, err)
	}
	defer rows.Close()

	var fks []foreignKey
	for rows.Next() {
		var (
			id        int
			from, ref string
			to        sql.NullString
		)
		if err := rows.Scan(&id, &from, &ref, &to); err != nil {
			return nil, err
		}
		fks = append(fks, foreignKey{
			table:      name,
			constraint: fmt.Sprintf("fk_%d", id),
			column:     from,
			refTable:   ref,
			refColumn:  to.String,
		})
	}
	return fks, rows.Err()
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func buildModels(tables []*tableInfo, fks []foreignKey) []*Model {
	models := make([]*Model, 0, len(tables))
	byTable := make(map[string]*Model, len(tables))
	for _, t := range tables {
		m := &Model{
			Name:     t.name,
			Table:    t.name,
			Singular: singular(t.name),
			Columns:  t.columns,
		}
		if len(t.pks) == 1 {
			m.PrimaryKey = t.pks[0]
		}
		models = append(models, m)
		byTable[t.name] = m
	}

	// composite foreign keys cannot be followed with a single key value
	width := make(map[string]int)
	for _, fk := range fks {
		width[fk.table+"\x00"+fk.constraint]++
	}

	sort.SliceStable(fks, func(i, j int) bool {
		if fks[i].table != fks[j].table {
			return fks[i].table < fks[j].table
		}
		return fks[i].column < fks[j].column
	})

	for _, fk := range fks {
		if width[fk.table+"\x00"+fk.constraint] != 1 {
			continue
		}
		owner, ok := byTable[fk.table]
		if !ok {
			continue
		}
		target, ok := byTable[fk.refTable]
		if !ok {
			continue
		}
		ref := fk.refColumn
		if ref == "" {
			ref = target.PrimaryKey
		}
		if ref == "" {
			continue
		}

		name := strings.TrimSuffix(fk.column, "_id")
		if name == fk.column {
			name = target.Singular
		}
		name = uniqueName(owner, name, fk.column)

		col, _ := owner.Column(fk.column)
		owner.BelongsTo = append(owner.BelongsTo, &Relationship{
			Name:       name,
			Kind:       BelongsTo,
			Model:      owner.Name,
			Target:     target.Name,
			ForeignKey: fk.column,
			PrimaryKey: ref,
			Optional:   col.Nullable,
		})

		hasName := uniqueName(target, owner.Table, owner.Table+"_as_"+name)
		target.HasRelations = append(target.HasRelations, &Relationship{
			Name:       hasName,
			Kind:       HasMany,
			Model:      target.Name,
			Target:     owner.Name,
			ForeignKey: fk.column,
			PrimaryKey: ref,
			Inverse:    name,
		})
	}

	return models
}

// uniqueName returns name unless the model already has an association
// called that, in which case fallback is used.
func uniqueName(m *Model, name, fallback string) string {
	if _, taken := m.Relationship(name); taken {
		return fallback
	}
	return name
}
