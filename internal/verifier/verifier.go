// Package verifier checks a finished dump: the manifest of emitted rows for
// duplicates, dependency order and dangling references, and a database the
// dump was replayed into for missing rows.
package verifier

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/dbsmedya/goseed/internal/dialect"
	"github.com/dbsmedya/goseed/internal/logger"
)

// Ref points at a row another row depends on.
type Ref struct {
	Table string
	Key   string
}

// Entry is one emitted row, in output order.
type Entry struct {
	Table string
	Key   string      // empty when the table has no primary key
	Value interface{} // key as fetched, used for lookups in a restored database
	Path  string
	Refs  []Ref
}

// IssueKind classifies a manifest problem.
type IssueKind string

const (
	// IssueDuplicate is a (table, key) emitted more than once.
	IssueDuplicate IssueKind = "duplicate"
	// IssueOrder is a row emitted before a row it references.
	IssueOrder IssueKind = "order"
	// IssueDangling is a reference to a row that is not in the dump.
	IssueDangling IssueKind = "dangling"
)

// Issue is one problem found in a manifest.
type Issue struct {
	Kind  IssueKind
	Table string
	Key   string
	Path  string
	Ref   Ref
}

func (i Issue) String() string {
	switch i.Kind {
	case IssueDuplicate:
		return fmt.Sprintf("%s: %s[%s] emitted more than once (at %s)", i.Kind, i.Table, i.Key, i.Path)
	default:
		return fmt.Sprintf("%s: %s[%s] at %s references %s[%s]", i.Kind, i.Table, i.Key, i.Path, i.Ref.Table, i.Ref.Key)
	}
}

// Report is the outcome of a manifest check.
type Report struct {
	Rows   int
	Tables int
	Issues []Issue
}

// Count returns the number of issues of kind.
func (r *Report) Count(kind IssueKind) int {
	n := 0
	for _, i := range r.Issues {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

// Err returns an error when the dump has duplicates or dangling references.
// Order issues are reported but not fatal: a row pair that references each
// other cannot be ordered.
func (r *Report) Err() error {
	dups, dangling := r.Count(IssueDuplicate), r.Count(IssueDangling)
	if dups == 0 && dangling == 0 {
		return nil
	}
	return fmt.Errorf("verification failed: %d duplicate rows, %d dangling references", dups, dangling)
}

type rowID struct {
	table string
	key   string
}

// CheckManifest verifies the emitted rows.
func CheckManifest(entries []Entry) *Report {
	report := &Report{Rows: len(entries)}
	position := make(map[rowID]int, len(entries))
	tables := make(map[string]bool)

	for i, e := range entries {
		tables[e.Table] = true
		if e.Key == "" {
			continue
		}
		id := rowID{e.Table, e.Key}
		if _, seen := position[id]; seen {
			report.Issues = append(report.Issues, Issue{Kind: IssueDuplicate, Table: e.Table, Key: e.Key, Path: e.Path})
			continue
		}
		position[id] = i
	}
	report.Tables = len(tables)

	for i, e := range entries {
		for _, ref := range e.Refs {
			pos, ok := position[rowID{ref.Table, ref.Key}]
			switch {
			case !ok:
				report.Issues = append(report.Issues, Issue{Kind: IssueDangling, Table: e.Table, Key: e.Key, Path: e.Path, Ref: ref})
			case pos > i:
				report.Issues = append(report.Issues, Issue{Kind: IssueOrder, Table: e.Table, Key: e.Key, Path: e.Path, Ref: ref})
			}
		}
	}

	return report
}

// VerifyResult holds the restore check of a single table.
type VerifyResult struct {
	Table        string
	Expected     int64
	Found        int64
	Match        bool
	ErrorMessage string
}

// VerifyStats contains overall restore verification statistics.
type VerifyStats struct {
	TablesVerified int
	TablesPassed   int
	TablesFailed   int
	TotalRows      int64
	Results        []VerifyResult
}

// Verifier checks a database the dump was replayed into.
type Verifier struct {
	db        *sql.DB
	dialect   dialect.Dialect
	chunkSize int
	logger    *logger.Logger
}

// NewVerifier creates a verifier for a restored database.
func NewVerifier(db *sql.DB, d dialect.Dialect, log *logger.Logger) (*Verifier, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if d == nil {
		return nil, fmt.Errorf("dialect is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Verifier{
		db:        db,
		dialect:   d,
		chunkSize: 1000,
		logger:    log,
	}, nil
}

// VerifyRestore counts, per table, how many manifest rows the restored
// database holds. pkColumns maps a table to its primary key column; tables
// without one are skipped.
func (v *Verifier) VerifyRestore(ctx context.Context, entries []Entry, pkColumns map[string]string) (*VerifyStats, error) {
	byTable := make(map[string][]interface{})
	for _, e := range entries {
		if e.Key == "" || pkColumns[e.Table] == "" {
			continue
		}
		byTable[e.Table] = append(byTable[e.Table], e.Value)
	}

	tables := make([]string, 0, len(byTable))
	for t := range byTable {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	stats := &VerifyStats{}
	v.logger.Infof("Starting restore verification for %d tables", len(tables))

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("verification interrupted: %w", err)
		}

		result, err := v.countTable(ctx, table, pkColumns[table], byTable[table])
		if err != nil {
			return stats, fmt.Errorf("verification failed for table %s: %w", table, err)
		}

		stats.TablesVerified++
		stats.TotalRows += result.Found
		stats.Results = append(stats.Results, *result)
		if result.Match {
			stats.TablesPassed++
			v.logger.Debugf("Verification PASSED for table %q (%d rows)", table, result.Found)
		} else {
			stats.TablesFailed++
			v.logger.Errorf("Verification FAILED for table %q: %s", table, result.ErrorMessage)
		}
	}

	if stats.TablesFailed > 0 {
		return stats, fmt.Errorf("verification failed: %d tables had mismatches", stats.TablesFailed)
	}
	v.logger.Infof("Verification complete: %d tables verified, %d total rows", stats.TablesVerified, stats.TotalRows)
	return stats, nil
}

func (v *Verifier) countTable(ctx context.Context, table, pkColumn string, keys []interface{}) (*VerifyResult, error) {
	quotedTable, err := dialect.QuoteIdentifierSafe(v.dialect, table)
	if err != nil {
		return nil, err
	}
	quotedPK, err := dialect.QuoteIdentifierSafe(v.dialect, pkColumn)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Table: table, Expected: int64(len(keys))}
	for i := 0; i < len(keys); i += v.chunkSize {
		end := i + v.chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[i:end]

		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IN (%s)",
			quotedTable, quotedPK, dialect.Placeholders(v.dialect, 1, len(chunk)))
		var n int64
		if err := v.db.QueryRowContext(ctx, query, chunk...).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count restored rows: %w", err)
		}
		result.Found += n
	}

	result.Match = result.Found == result.Expected
	if !result.Match {
		result.ErrorMessage = fmt.Sprintf("count mismatch: dumped=%d, restored=%d", result.Expected, result.Found)
	}
	return result, nil
}

// SetChunkSize sets how many keys are counted per query.
func (v *Verifier) SetChunkSize(size int) {
	if size > 0 {
		v.chunkSize = size
	}
}

// Summary renders issues one per line.
func (r *Report) Summary() string {
	lines := make([]string, 0, len(r.Issues))
	for _, i := range r.Issues {
		lines = append(lines, i.String())
	}
	return strings.Join(lines, "\n")
}
