package dumper

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dbsmedya/goseed/internal/logger"
	"github.com/dbsmedya/goseed/internal/schema"
	"github.com/dbsmedya/goseed/internal/types"
	"github.com/dbsmedya/goseed/internal/verifier"
)

// keyQueue is an ordered set of key values.
type keyQueue struct {
	values []interface{}
	seen   map[types.Key]struct{}
}

func newKeyQueue() *keyQueue {
	return &keyQueue{seen: make(map[types.Key]struct{})}
}

func (q *keyQueue) add(v interface{}) bool {
	k, ok := types.KeyOf(v)
	if !ok {
		return false
	}
	if _, dup := q.seen[k]; dup {
		return false
	}
	q.seen[k] = struct{}{}
	q.values = append(q.values, v)
	return true
}

// pendingKey identifies the foreign keys queued for one belongs-to. typ is
// the type column value for polymorphic associations.
type pendingKey struct {
	rel string
	typ string
}

type walkOptions struct {
	searchKey   string        // column matched against identifiers
	identifiers []interface{} // nil walks the whole relation
	inverse     string        // belongs-to that points back at the parent walker
	limitable   bool
}

// walker dumps one relation and then the associations of the rows it
// dumped.
type walker struct {
	root   *rootDumper
	model  *schema.Model
	rel    *relation
	path   AssociationPath
	opts   walkOptions
	logger *logger.Logger

	belongsTo []*schema.Relationship
	refs      []*schema.Relationship
	has       []*schema.Relationship
	nullify   []string

	// depthSkipped are belongs-tos cut by the depth limit. Their foreign key
	// survives only when the referenced row is already in the dump.
	depthSkipped []*schema.Relationship

	pending map[pendingKey]*keyQueue
	ownKeys map[string]*keyQueue

	seg    *segment
	writer *insertWriter
	rows   int
}

func newWalker(root *rootDumper, m *schema.Model, rel *relation, path AssociationPath, opts walkOptions) *walker {
	d := root.d
	w := &walker{
		root:    root,
		model:   m,
		rel:     rel,
		path:    path,
		opts:    opts,
		logger:  root.logger.WithPath(path.String()).WithTable(m.Table),
		pending: make(map[pendingKey]*keyQueue),
		ownKeys: make(map[string]*keyQueue),
		seg:     newSegment(path.String(), m.Table, d.cfg.Dump.Spool),
	}
	w.writer = newInsertWriter(w.seg, d.dialect, m, d.writeColumns(m), d.ignored[m.Name], path.String(), d.cfg.Dump.InsertBatchSize)

	for _, r := range m.BelongsTo {
		dec := root.belongsToDecision(path, r, opts.inverse)
		switch {
		case dec == traverse:
			w.belongsTo = append(w.belongsTo, r)
			w.refs = append(w.refs, r)
		case dec == skipInverse:
			w.refs = append(w.refs, r)
		case dec == skipDepth && root.nullifies(dec):
			w.depthSkipped = append(w.depthSkipped, r)
		case root.nullifies(dec):
			w.nullify = append(w.nullify, r.ForeignKey)
		}
		if dec != traverse {
			w.logger.Debugw("skipping association", "association", r.Name, "reason", dec.String())
		}
	}
	for _, r := range m.HasRelations {
		dec := root.hasDecision(path, m, r)
		if dec != traverse {
			w.logger.Debugw("skipping association", "association", r.Name, "reason", dec.String())
			continue
		}
		w.has = append(w.has, r)
		if _, ok := w.ownKeys[r.PrimaryKey]; !ok {
			w.ownKeys[r.PrimaryKey] = newKeyQueue()
		}
	}
	return w
}

// run dumps the walker's rows, then its belongs-to and has associations.
// The returned segments are in output order.
func (w *walker) run(ctx context.Context) ([]*segment, error) {
	if err := w.dump(ctx); err != nil {
		_ = w.seg.Close()
		return nil, fmt.Errorf("%s: %w", w.path, err)
	}

	var out []*segment
	fail := func(err error) ([]*segment, error) {
		closeSegments(out)
		_ = w.seg.Close()
		return nil, err
	}

	for _, r := range w.belongsTo {
		segs, err := w.walkBelongsTo(ctx, r)
		if err != nil {
			return fail(err)
		}
		out = append(out, segs...)
	}

	if !w.seg.empty() {
		out = append(out, w.seg)
	}

	for _, r := range w.has {
		if w.root.totalExhausted() {
			w.logger.Debugw("total limit reached", "association", r.Name)
			break
		}
		q := w.ownKeys[r.PrimaryKey]
		if len(q.values) == 0 {
			continue
		}
		segs, err := w.walkHas(ctx, r, q.values)
		if err != nil {
			return fail(err)
		}
		out = append(out, segs...)
	}
	return out, nil
}

func (w *walker) dump(ctx context.Context) error {
	f := w.root.d.fetcher
	var err error
	if w.opts.identifiers != nil {
		err = f.eachIn(ctx, w.rel, w.opts.searchKey, w.opts.identifiers, w.process)
	} else {
		err = f.each(ctx, w.rel, w.process)
	}
	if err != nil {
		return err
	}
	if err := w.writer.finish(); err != nil {
		return err
	}
	if w.root.d.cfg.Dump.Verbose {
		w.logger.Infow("dumped relation", "rows", w.rows)
	}
	return nil
}

// process handles one fetched row.
func (w *walker) process(r *types.Record) error {
	state := w.root.state
	table := w.model.Table

	pk := w.model.PrimaryKey
	var (
		key    types.Key
		hasKey bool
	)
	if pk != "" {
		key, hasKey = types.KeyOf(r.Value(pk))
	} else {
		key, hasKey = contentKey(r)
	}
	if hasKey && state.IsLoaded(table, key) {
		return nil
	}
	if w.opts.limitable && !w.root.checkLimits(w.path.String()) {
		return nil
	}
	if hasKey {
		state.MarkLoaded(table, key)
	}

	for _, col := range w.nullify {
		if r.Has(col) {
			r.Set(col, nil)
		}
	}

	kept, err := w.cutAtDepth(r)
	if err != nil {
		return err
	}
	refs, err := w.collect(r)
	if err != nil {
		return err
	}
	refs = append(refs, kept...)
	for col, q := range w.ownKeys {
		q.add(r.Value(col))
	}

	out, err := w.root.d.pipeline.Apply(w.model.Name, r)
	if err != nil {
		return err
	}
	if err := w.writer.write(out); err != nil {
		return err
	}

	entry := verifier.Entry{Table: table, Path: w.path.String(), Refs: refs}
	if hasKey && pk != "" {
		entry.Key = key.String()
		entry.Value = r.Value(pk)
	}
	w.seg.entries = append(w.seg.entries, entry)
	state.countRow(table)
	w.rows++
	return nil
}

// contentKey identifies a row of a table without a primary key by all of
// its fetched values.
func contentKey(r *types.Record) (types.Key, bool) {
	var b strings.Builder
	for _, c := range r.Columns() {
		fmt.Fprintf(&b, "%s=%#v;", c, r.Value(c))
	}
	return types.KeyOf(b.String())
}

// collect queues the belongs-to keys of r that still have to be loaded and
// returns the rows r depends on.
func (w *walker) collect(r *types.Record) ([]verifier.Ref, error) {
	var refs []verifier.Ref
	for _, rel := range w.refs {
		v := r.Value(rel.ForeignKey)
		key, ok := types.KeyOf(v)
		if !ok {
			continue
		}
		target, typ, err := w.target(rel, r)
		if err != nil {
			return nil, err
		}
		if target == nil {
			continue
		}
		byPK := searchColumn(rel, target) == target.PrimaryKey
		if byPK {
			refs = append(refs, verifier.Ref{Table: target.Table, Key: key.String()})
		}
		if rel.Name == w.opts.inverse {
			continue
		}
		if byPK && w.root.state.IsLoaded(target.Table, key) {
			continue
		}
		pk := pendingKey{rel: rel.Name, typ: typ}
		q, ok := w.pending[pk]
		if !ok {
			q = newKeyQueue()
			w.pending[pk] = q
		}
		q.add(v)
	}
	return refs, nil
}

// cutAtDepth clears the foreign keys of depth-skipped belongs-tos whose
// referenced row is not loaded, and returns the references it kept.
func (w *walker) cutAtDepth(r *types.Record) ([]verifier.Ref, error) {
	var kept []verifier.Ref
	for _, rel := range w.depthSkipped {
		key, ok := types.KeyOf(r.Value(rel.ForeignKey))
		if !ok {
			continue
		}
		target, _, err := w.target(rel, r)
		if err != nil {
			return nil, err
		}
		if target != nil && searchColumn(rel, target) == target.PrimaryKey &&
			w.root.state.IsLoaded(target.Table, key) {
			kept = append(kept, verifier.Ref{Table: target.Table, Key: key.String()})
			continue
		}
		r.Set(rel.ForeignKey, nil)
	}
	return kept, nil
}

// target resolves the model a belongs-to of r points at. Polymorphic rows
// with an unmapped type value resolve to nil.
func (w *walker) target(rel *schema.Relationship, r *types.Record) (*schema.Model, string, error) {
	cat := w.root.d.catalog
	if !rel.Polymorphic {
		m, err := cat.Model(rel.Target)
		return m, "", err
	}
	tv := r.Value(rel.TypeColumn)
	if tv == nil {
		return nil, "", nil
	}
	typ := fmt.Sprint(tv)
	name, ok := rel.Targets[typ]
	if !ok {
		w.logger.Debugw("unmapped polymorphic type", "association", rel.Name, "type", typ)
		return nil, "", nil
	}
	m, err := cat.Model(name)
	return m, typ, err
}

func searchColumn(rel *schema.Relationship, target *schema.Model) string {
	if rel.PrimaryKey != "" {
		return rel.PrimaryKey
	}
	return target.PrimaryKey
}

func (w *walker) walkBelongsTo(ctx context.Context, rel *schema.Relationship) ([]*segment, error) {
	var typeValues []string
	if rel.Polymorphic {
		for typ := range rel.Targets {
			typeValues = append(typeValues, typ)
		}
		sort.Strings(typeValues)
	} else {
		typeValues = []string{""}
	}

	var out []*segment
	for _, typ := range typeValues {
		q, ok := w.pending[pendingKey{rel: rel.Name, typ: typ}]
		if !ok || len(q.values) == 0 {
			continue
		}
		name := rel.Target
		if rel.Polymorphic {
			name = rel.Targets[typ]
		}
		target, err := w.root.d.catalog.Model(name)
		if err != nil {
			closeSegments(out)
			return nil, err
		}

		path := w.path.Child(rel.Name)
		child := newWalker(w.root, target, w.childRelation(target, rel, path), path, walkOptions{
			searchKey:   searchColumn(rel, target),
			identifiers: q.values,
		})
		segs, err := child.run(ctx)
		if err != nil {
			closeSegments(out)
			return nil, err
		}
		out = append(out, segs...)
	}
	return out, nil
}

func (w *walker) walkHas(ctx context.Context, rel *schema.Relationship, ids []interface{}) ([]*segment, error) {
	target, err := w.root.d.catalog.Model(rel.Target)
	if err != nil {
		return nil, err
	}
	path := w.path.Child(rel.Name)
	child := newWalker(w.root, target, w.childRelation(target, rel, path), path, walkOptions{
		searchKey:   rel.ForeignKey,
		identifiers: ids,
		inverse:     rel.Inverse,
		limitable:   true,
	})
	return child.run(ctx)
}

// childRelation scopes target for the association rel reached at path.
func (w *walker) childRelation(target *schema.Model, rel *schema.Relationship, path AssociationPath) *relation {
	c := w.root.d.baseRelation(target)
	c.where(rel.Scope)
	if rel.IsHas() {
		if rel.Polymorphic && rel.TypeColumn != "" {
			c.whereEq(rel.TypeColumn, rel.TypeValue)
		}
		c.order = rel.Order
	}
	for _, scope := range w.root.includeScopes(path.String()) {
		c.where(scope)
	}
	return c
}
