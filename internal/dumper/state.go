package dumper

import (
	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/goseed/internal/types"
)

// State is the bookkeeping of one run, shared by every root: which
// (table, primary key) pairs are already committed to the output, and how
// many rows each table received.
type State struct {
	loaded map[string]map[types.Key]struct{}
	rows   *orderedmap.OrderedMap[string, int64]
}

// NewState creates empty run state.
func NewState() *State {
	return &State{
		loaded: make(map[string]map[types.Key]struct{}),
		rows:   orderedmap.NewOrderedMap[string, int64](),
	}
}

// IsLoaded reports whether key of table is already in the dump.
func (s *State) IsLoaded(table string, key types.Key) bool {
	_, ok := s.loaded[table][key]
	return ok
}

// MarkLoaded records key of table. It returns false when the key was
// already recorded.
func (s *State) MarkLoaded(table string, key types.Key) bool {
	keys, ok := s.loaded[table]
	if !ok {
		keys = make(map[types.Key]struct{})
		s.loaded[table] = keys
	}
	if _, dup := keys[key]; dup {
		return false
	}
	keys[key] = struct{}{}
	return true
}

func (s *State) countRow(table string) {
	n, _ := s.rows.Get(table)
	s.rows.Set(table, n+1)
}

// Rows returns rows emitted per table, in the order tables first appeared.
func (s *State) Rows() *orderedmap.OrderedMap[string, int64] {
	out := orderedmap.NewOrderedMap[string, int64]()
	for el := s.rows.Front(); el != nil; el = el.Next() {
		out.Set(el.Key, el.Value)
	}
	return out
}

// TotalRows returns the number of rows emitted.
func (s *State) TotalRows() int64 {
	var total int64
	for el := s.rows.Front(); el != nil; el = el.Next() {
		total += el.Value
	}
	return total
}
