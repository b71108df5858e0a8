// Package dumper extracts a referentially consistent subset of a database
// as INSERT statements.
//
// Every configured root query is walked recursively along the catalog's
// associations. Rows referenced through belongs-to are written before the
// rows that reference them, each (table, primary key) is written at most
// once per run, and the output of every walker is spooled separately and
// concatenated at the end.
package dumper

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/goseed/internal/config"
	"github.com/dbsmedya/goseed/internal/dialect"
	"github.com/dbsmedya/goseed/internal/logger"
	"github.com/dbsmedya/goseed/internal/schema"
	"github.com/dbsmedya/goseed/internal/transform"
	"github.com/dbsmedya/goseed/internal/verifier"
)

var (
	// ErrUnknownModel is returned for roots and ignore lists naming a model
	// the catalog does not have.
	ErrUnknownModel = schema.ErrUnknownModel
	// ErrUnknownColumn is returned for ignore lists naming a missing column.
	ErrUnknownColumn = errors.New("unknown column")
)

// RootResult is the outcome of one root.
type RootResult struct {
	Model string
	Rows  int64
}

// Result is the outcome of a run.
type Result struct {
	Roots    []RootResult
	Tables   *orderedmap.OrderedMap[string, int64]
	Rows     int64
	Bytes    int64
	Checksum string // hex SHA-256 of the output
	Manifest []verifier.Entry
	Duration time.Duration
}

// Dumper runs the configured roots against one database.
type Dumper struct {
	cfg      *config.Config
	db       *sql.DB
	dialect  dialect.Dialect
	catalog  schema.Catalog
	pipeline *transform.Pipeline
	ignored  map[string][]string
	roots    []*rootSpec
	fetcher  *fetcher
	logger   *logger.Logger
}

// New validates the configuration against the catalog and prepares a
// Dumper. A nil pipeline is built from the transforms section. db may be nil
// for callers that only plan.
func New(cfg *config.Config, db *sql.DB, d dialect.Dialect, cat schema.Catalog, pipeline *transform.Pipeline, log *logger.Logger) (*Dumper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if d == nil {
		return nil, fmt.Errorf("dialect is nil")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	if pipeline == nil {
		p, err := transform.FromConfig(cfg.Transforms)
		if err != nil {
			return nil, err
		}
		pipeline = p
	}
	if err := pipeline.Validate(cat); err != nil {
		return nil, err
	}

	dm := &Dumper{
		cfg:      cfg,
		db:       db,
		dialect:  d,
		catalog:  cat,
		pipeline: pipeline,
		ignored:  cfg.IgnoredColumns(),
		fetcher:  newFetcher(db, cfg.Dump.BatchSize, cfg.Dump.VerboseSQL, log),
		logger:   log,
	}

	for model, cols := range dm.ignored {
		m, err := cat.Model(model)
		if err != nil {
			return nil, fmt.Errorf("ignore_columns: %w", err)
		}
		if len(m.Columns) == 0 {
			continue
		}
		for _, c := range cols {
			if _, ok := m.Column(c); !ok {
				return nil, fmt.Errorf("ignore_columns %s.%s: %w", model, c, ErrUnknownColumn)
			}
		}
	}

	if len(cfg.Roots) == 0 {
		return nil, fmt.Errorf("no roots configured")
	}
	for i := range cfg.Roots {
		spec, err := compileRoot(cfg, i, cat)
		if err != nil {
			return nil, err
		}
		dm.roots = append(dm.roots, spec)
	}
	return dm, nil
}

// Run walks every root in configured order, writes the dump to out and
// closes it. out is closed on failure too; whatever was written stays.
func (d *Dumper) Run(ctx context.Context, out io.WriteCloser) (res *Result, err error) {
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	if d.db == nil {
		return nil, fmt.Errorf("database is nil")
	}

	start := time.Now()
	state := NewState()
	var segments []*segment
	defer func() { closeSegments(segments) }()

	res = &Result{}
	for _, spec := range d.roots {
		before := state.TotalRows()
		root := newRootDumper(d, spec, state)
		root.logger.Infow("dumping root", "where", spec.cfg.Where)

		segs, err := root.dump(ctx)
		if err != nil {
			return nil, fmt.Errorf("root %s: %w", spec.model.Name, err)
		}
		segments = append(segments, segs...)

		rows := state.TotalRows() - before
		res.Roots = append(res.Roots, RootResult{Model: spec.model.Name, Rows: rows})
		root.logger.Infow("root complete", "rows", rows)
	}

	hash := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(out, hash)}
	for _, s := range segments {
		if _, err := s.WriteTo(cw); err != nil {
			return nil, fmt.Errorf("write %s: %w", s.path, err)
		}
		res.Manifest = append(res.Manifest, s.entries...)
	}

	res.Tables = state.Rows()
	res.Rows = state.TotalRows()
	res.Bytes = cw.n
	res.Checksum = hex.EncodeToString(hash.Sum(nil))
	res.Duration = time.Since(start)
	d.logger.Infow("dump complete", "rows", res.Rows, "bytes", res.Bytes, "duration", res.Duration)
	return res, nil
}

// Catalog returns the catalog the dumper walks.
func (d *Dumper) Catalog() schema.Catalog {
	return d.catalog
}

// selectColumns lists the columns fetched for m: everything not ignored,
// plus ignored columns the traversal itself needs.
func (d *Dumper) selectColumns(m *schema.Model) []string {
	if len(m.Columns) == 0 {
		return nil
	}
	ignored := d.ignored[m.Name]
	if len(ignored) == 0 {
		return m.ColumnNames()
	}

	needed := map[string]bool{m.PrimaryKey: true}
	for _, r := range m.BelongsTo {
		needed[r.ForeignKey] = true
		needed[r.TypeColumn] = true
	}
	for _, r := range m.HasRelations {
		needed[r.PrimaryKey] = true
	}
	var keep []string
	for _, c := range ignored {
		if !needed[c] {
			keep = append(keep, c)
		}
	}
	return m.ColumnNames(keep...)
}

// writeColumns lists the columns written for m.
func (d *Dumper) writeColumns(m *schema.Model) []string {
	if len(m.Columns) == 0 {
		return nil
	}
	return m.ColumnNames(d.ignored[m.Name]...)
}

// baseRelation is every row of m under its default scope.
func (d *Dumper) baseRelation(m *schema.Model) *relation {
	rel := newRelation(d.dialect, m, d.selectColumns(m))
	if !d.cfg.Dump.Unscoped {
		rel.where(m.DefaultScope)
	}
	return rel
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
