package schema

// Merge lays declared models over reflected ones. A declared model replaces
// the reflected model of the same table (or name) and takes over its name
// everywhere; its associations replace reflected ones of the same name and
// the rest are kept. Declared models without a reflected table are appended.
func Merge(reflected, declared []*Model) []*Model {
	match := make(map[*Model]*Model, len(declared))
	rename := make(map[string]string)

	for _, d := range declared {
		table := d.Table
		if table == "" {
			table = tableName(d.Name)
		}
		for _, r := range reflected {
			if _, used := match[r]; used {
				continue
			}
			if r.Table == table || r.Name == d.Name {
				match[r] = d
				rename[r.Name] = d.Name
				break
			}
		}
	}

	for _, r := range reflected {
		for _, rel := range append(append([]*Relationship{}, r.BelongsTo...), r.HasRelations...) {
			if to, ok := rename[rel.Target]; ok {
				rel.Target = to
			}
		}
	}

	used := make(map[*Model]bool, len(declared))
	out := make([]*Model, 0, len(reflected)+len(declared))
	for _, r := range reflected {
		d, ok := match[r]
		if !ok {
			out = append(out, r)
			continue
		}
		used[d] = true
		out = append(out, mergeModel(r, d))
	}
	for _, d := range declared {
		if !used[d] {
			out = append(out, d)
		}
	}
	return out
}

func mergeModel(reflected, declared *Model) *Model {
	m := &Model{
		Name:         declared.Name,
		Table:        reflected.Table,
		Singular:     declared.Singular,
		PrimaryKey:   declared.PrimaryKey,
		DefaultScope: declared.DefaultScope,
		Columns:      declared.Columns,
	}
	if m.PrimaryKey == "" || (m.PrimaryKey == "id" && reflected.PrimaryKey != "") {
		m.PrimaryKey = reflected.PrimaryKey
	}
	if len(m.Columns) == 0 {
		m.Columns = reflected.Columns
	}

	m.BelongsTo = mergeRelations(reflected.BelongsTo, declared.BelongsTo)
	m.HasRelations = mergeRelations(reflected.HasRelations, declared.HasRelations)
	for _, rel := range m.BelongsTo {
		rel.Model = m.Name
	}
	for _, rel := range m.HasRelations {
		rel.Model = m.Name
	}
	return m
}

func mergeRelations(reflected, declared []*Relationship) []*Relationship {
	out := make([]*Relationship, 0, len(reflected)+len(declared))
	for _, r := range reflected {
		if replaced(r, declared) {
			continue
		}
		out = append(out, r)
	}
	return append(out, declared...)
}

// replaced reports whether a declared association covers the reflected one,
// by name or by the same foreign key to the same target.
func replaced(r *Relationship, declared []*Relationship) bool {
	for _, d := range declared {
		if d.Name == r.Name {
			return true
		}
		if d.ForeignKey != "" && d.ForeignKey == r.ForeignKey && d.Target == r.Target {
			return true
		}
	}
	return false
}
