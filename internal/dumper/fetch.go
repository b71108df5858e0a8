package dumper

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/dbsmedya/goseed/internal/dialect"
	"github.com/dbsmedya/goseed/internal/logger"
	"github.com/dbsmedya/goseed/internal/types"
)

// maxIdentifiersInIN caps the size of one IN (...) list.
const maxIdentifiersInIN = 1000

// fetcher runs relation queries and turns rows into records.
type fetcher struct {
	db         *sql.DB
	batchSize  int
	verboseSQL bool
	logger     *logger.Logger
}

func newFetcher(db *sql.DB, batchSize int, verboseSQL bool, log *logger.Logger) *fetcher {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &fetcher{db: db, batchSize: batchSize, verboseSQL: verboseSQL, logger: log}
}

// each calls fn for every row of rel. Relations without an explicit order
// are paged on the primary key; the others page with OFFSET. rel.limit caps
// the total.
func (f *fetcher) each(ctx context.Context, rel *relation, fn func(*types.Record) error) error {
	pk := rel.model.PrimaryKey
	keyset := pk != "" && rel.order == ""
	order := rel.defaultOrder()

	var (
		fetched int
		last    interface{}
	)
	for {
		size := f.batchSize
		if rel.limit > 0 {
			if remaining := rel.limit - fetched; remaining < size {
				size = remaining
			}
		}
		if size <= 0 {
			return nil
		}

		var (
			query string
			args  []interface{}
			err   error
		)
		switch {
		case keyset && last != nil:
			query, args, err = rel.toSQL(order, size, 0, rel.after(pk, last))
		case keyset:
			query, args, err = rel.toSQL(order, size, 0)
		default:
			query, args, err = rel.toSQL(order, size, fetched)
		}
		if err != nil {
			return err
		}

		page, err := f.query(ctx, rel, query, args)
		if err != nil {
			return err
		}
		for _, r := range page {
			if err := fn(r); err != nil {
				return err
			}
		}
		fetched += len(page)
		if len(page) < size {
			return nil
		}
		if keyset {
			last = page[len(page)-1].Value(pk)
			if last == nil {
				return fmt.Errorf("table %s: NULL primary key while paging", rel.model.Table)
			}
		}
	}
}

// eachIn calls fn for every row of rel whose column is one of ids. ids are
// queried in chunks of at most maxIdentifiersInIN.
func (f *fetcher) eachIn(ctx context.Context, rel *relation, column string, ids []interface{}, fn func(*types.Record) error) error {
	chunk := f.batchSize
	if chunk > maxIdentifiersInIN {
		chunk = maxIdentifiersInIN
	}
	order := rel.defaultOrder()

	for start := 0; start < len(ids); start += chunk {
		end := start + chunk
		if end > len(ids) {
			end = len(ids)
		}
		query, args, err := rel.toSQL(order, 0, 0, rel.in(column, ids[start:end]))
		if err != nil {
			return err
		}
		rows, err := f.query(ctx, rel, query, args)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := fn(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// query reads the whole result before returning so the connection is free
// for the queries issued while the rows are processed.
func (f *fetcher) query(ctx context.Context, rel *relation, query string, args []interface{}) ([]*types.Record, error) {
	if f.verboseSQL {
		f.logger.Infow("query", "sql", query, "args", args)
	}

	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", rel.model.Table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", rel.model.Table, err)
	}
	dbTypes := make([]string, len(columns))
	for i, c := range columns {
		dbTypes[i] = rel.model.ColumnType(c)
	}
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			if dbTypes[i] == "" {
				dbTypes[i] = ct.DatabaseTypeName()
			}
		}
	}

	var out []*types.Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", rel.model.Table, err)
		}
		for i, v := range values {
			nv, err := normalize(v, dbTypes[i])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", rel.model.Table, columns[i], err)
			}
			values[i] = nv
		}
		out = append(out, types.RecordFromRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", rel.model.Table, err)
	}
	return out, nil
}

// normalize converts the []byte some drivers return for every column: to an
// integer for integer columns, to a string for non-binary columns.
func normalize(v interface{}, dbType string) (interface{}, error) {
	b, ok := v.([]byte)
	if !ok || b == nil {
		return v, nil
	}
	switch {
	case dialect.IsBinaryType(dbType):
		return b, nil
	case dialect.IsIntegerType(dbType):
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n, nil
		}
		if n, err := strconv.ParseUint(string(b), 10, 64); err == nil {
			return n, nil
		}
		return nil, fmt.Errorf("cannot convert %q to an integer", b)
	default:
		return string(b), nil
	}
}
