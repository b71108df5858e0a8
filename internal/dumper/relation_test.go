package dumper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goseed/internal/dialect"
	"github.com/dbsmedya/goseed/internal/schema"
)

func questionModel() *schema.Model {
	return &schema.Model{
		Name:       "Question",
		Table:      "questions",
		Singular:   "question",
		PrimaryKey: "id",
		Columns: []schema.Column{
			{Name: "id", Type: "INTEGER"},
			{Name: "forum_id", Type: "INTEGER"},
			{Name: "name", Type: "TEXT"},
		},
	}
}

func TestRelation_ToSQL(t *testing.T) {
	tests := []struct {
		name     string
		dialect  dialect.Dialect
		build    func(r *relation) (string, []interface{}, error)
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:    "plain select",
			dialect: dialect.MySQL{},
			build: func(r *relation) (string, []interface{}, error) {
				return r.toSQL(r.defaultOrder(), 100, 0)
			},
			wantSQL: "SELECT `id`, `forum_id`, `name` FROM `questions` ORDER BY `id` LIMIT 100",
		},
		{
			name:    "keyset page with user condition",
			dialect: dialect.MySQL{},
			build: func(r *relation) (string, []interface{}, error) {
				r.where("rating > ?", 3)
				return r.toSQL(r.defaultOrder(), 10, 0, r.after("id", int64(42)))
			},
			wantSQL:  "SELECT `id`, `forum_id`, `name` FROM `questions` WHERE (rating > ?) AND (`id` > ?) ORDER BY `id` LIMIT 10",
			wantArgs: []interface{}{3, int64(42)},
		},
		{
			name:    "postgres numbering follows user arguments",
			dialect: dialect.Postgres{},
			build: func(r *relation) (string, []interface{}, error) {
				r.where("rating > $1 AND name <> $2", 3, "x")
				r.whereEq("kind", "Question")
				return r.toSQL(r.defaultOrder(), 0, 0, r.in("forum_id", []interface{}{1, 2}))
			},
			wantSQL: `SELECT "id", "forum_id", "name" FROM "questions" WHERE (rating > $1 AND name <> $2) AND ("kind" = $3) ` +
				`AND ("forum_id" IN ($4, $5)) ORDER BY "id"`,
			wantArgs: []interface{}{3, "x", "Question", 1, 2},
		},
		{
			name:    "explicit order pages with offset",
			dialect: dialect.SQLite{},
			build: func(r *relation) (string, []interface{}, error) {
				r.order = "name DESC"
				return r.toSQL(r.defaultOrder(), 5, 10)
			},
			wantSQL: `SELECT "id", "forum_id", "name" FROM "questions" ORDER BY name DESC, "id" LIMIT 5 OFFSET 10`,
		},
		{
			name:    "empty conditions are dropped",
			dialect: dialect.SQLite{},
			build: func(r *relation) (string, []interface{}, error) {
				r.where("  ")
				return r.countSQL()
			},
			wantSQL: `SELECT COUNT(*) FROM "questions"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRelation(tt.dialect, questionModel(), questionModel().ColumnNames())
			sql, args, err := tt.build(r)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestRelation_DefaultOrder(t *testing.T) {
	m := questionModel()
	m.PrimaryKey = ""

	r := newRelation(dialect.SQLite{}, m, m.ColumnNames())
	assert.Equal(t, "1, 2, 3", r.defaultOrder(), "keyless tables order by every column")

	r = newRelation(dialect.SQLite{}, m, nil)
	assert.Empty(t, r.defaultOrder())

	r.order = "name"
	assert.Equal(t, "name", r.defaultOrder())
}

func TestRelation_SelectAllWithoutColumns(t *testing.T) {
	r := newRelation(dialect.SQLite{}, questionModel(), nil)
	sql, _, err := r.toSQL("", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "questions"`, sql)
}

func TestRelation_InvalidIdentifier(t *testing.T) {
	m := questionModel()
	m.Table = "questions; DROP TABLE users"
	r := newRelation(dialect.MySQL{}, m, nil)

	_, _, err := r.toSQL("", 0, 0)
	assert.Error(t, err)

	r = newRelation(dialect.MySQL{}, questionModel(), []string{"id", "bad column"})
	_, _, err = r.toSQL("", 0, 0)
	assert.Error(t, err)
}
