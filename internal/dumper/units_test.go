package dumper

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goseed/internal/config"
	"github.com/dbsmedya/goseed/internal/dialect"
	"github.com/dbsmedya/goseed/internal/pattern"
	"github.com/dbsmedya/goseed/internal/schema"
	"github.com/dbsmedya/goseed/internal/types"
)

func TestAssociationPath(t *testing.T) {
	root := RootPath("forum")
	assert.Equal(t, "forum", root.String())
	assert.Equal(t, 0, root.Depth())

	child := root.Child("questions").Child("answers")
	assert.Equal(t, "forum.questions.answers", child.String())
	assert.Equal(t, 2, child.Depth())
	assert.Equal(t, "forum", root.String(), "Child must not modify the parent")

	assert.True(t, child.Equal(RootPath("forum").Child("questions").Child("answers")))
	assert.False(t, child.Equal(root))
}

func TestState(t *testing.T) {
	s := NewState()
	k1, _ := types.KeyOf(int64(1))
	k1s, _ := types.KeyOf(int32(1))

	assert.False(t, s.IsLoaded("users", k1))
	assert.True(t, s.MarkLoaded("users", k1))
	assert.False(t, s.MarkLoaded("users", k1s), "keys are compared after normalisation")
	assert.True(t, s.IsLoaded("users", k1))
	assert.False(t, s.IsLoaded("forums", k1))

	s.countRow("users")
	s.countRow("forums")
	s.countRow("users")
	assert.Equal(t, int64(3), s.TotalRows())
	rows := s.Rows()
	assert.Equal(t, []string{"users", "forums"}, rows.Keys())
	n, _ := rows.Get("users")
	assert.Equal(t, int64(2), n)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		dbType  string
		want    interface{}
		wantErr bool
	}{
		{"integer bytes", []byte("42"), "bigint", int64(42), false},
		{"unsigned bytes", []byte("18446744073709551615"), "bigint unsigned", uint64(18446744073709551615), false},
		{"bad integer", []byte("x"), "int", nil, true},
		{"text bytes", []byte("hello"), "varchar(255)", "hello", false},
		{"binary bytes", []byte{0xde, 0xad}, "blob", []byte{0xde, 0xad}, false},
		{"untyped", int64(7), "", int64(7), false},
		{"nil", nil, "int", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalize(tt.in, tt.dbType)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInsertWriter_Batches(t *testing.T) {
	m := questionModel()
	var buf bytes.Buffer
	w := newInsertWriter(&buf, dialect.SQLite{}, m, []string{"id", "name"}, nil, "forum.questions", 2)

	for i := 1; i <= 3; i++ {
		r := types.RecordFromRow([]string{"id", "forum_id", "name"}, []interface{}{int64(i), int64(1), "q"})
		require.NoError(t, w.write(r))
	}
	require.NoError(t, w.finish())
	require.NoError(t, w.finish(), "finish twice is a no-op")

	want := "-- forum.questions\n" +
		"INSERT INTO \"questions\" (\"id\", \"name\") VALUES\n" +
		"  (1, 'q'),\n" +
		"  (2, 'q');\n\n" +
		"INSERT INTO \"questions\" (\"id\", \"name\") VALUES\n" +
		"  (3, 'q');\n\n"
	assert.Equal(t, want, buf.String())
}

func TestInsertWriter_ColumnsFromFirstRow(t *testing.T) {
	m := &schema.Model{Name: "Log", Table: "logs"}
	var buf bytes.Buffer
	w := newInsertWriter(&buf, dialect.MySQL{}, m, nil, []string{"secret"}, "log", 10)

	r := types.RecordFromRow([]string{"id", "secret", "msg"}, []interface{}{int64(1), "s", nil})
	require.NoError(t, w.write(r))
	require.NoError(t, w.finish())

	assert.Equal(t, "-- log\nINSERT INTO `logs` (`id`, `msg`) VALUES\n  (1, NULL);\n\n", buf.String())
}

func TestInsertWriter_NothingWritten(t *testing.T) {
	var buf bytes.Buffer
	w := newInsertWriter(&buf, dialect.SQLite{}, questionModel(), nil, nil, "question", 0)
	require.NoError(t, w.finish())
	assert.Empty(t, buf.String())
}

func TestSegment_MemoryAndFile(t *testing.T) {
	for _, kind := range []string{SpoolMemory, SpoolFile} {
		t.Run(kind, func(t *testing.T) {
			s := newSegment("forum", "forums", kind)
			assert.True(t, s.empty())

			_, err := s.Write([]byte("-- forum\n"))
			require.NoError(t, err)
			assert.False(t, s.empty())

			var out bytes.Buffer
			_, err = s.WriteTo(&out)
			require.NoError(t, err)
			assert.Equal(t, "-- forum\n", out.String())

			var name string
			if fs, ok := s.spool.(*fileSpool); ok {
				name = fs.f.Name()
			}
			require.NoError(t, s.Close())
			require.NoError(t, s.Close())
			if name != "" {
				_, err := os.Stat(name)
				assert.True(t, os.IsNotExist(err), "spool file must be removed on Close")
			}
		})
	}
}

func TestSegment_UnknownSpool(t *testing.T) {
	s := newSegment("forum", "forums", "tape")
	_, err := s.Write([]byte("x"))
	assert.Error(t, err)
}

func TestRootDumper_CheckLimits(t *testing.T) {
	spec := &rootSpec{
		cfg: &config.RootConfig{},
		limits: []associationLimit{
			{patterns: pattern.MustCompile("questions", pattern.AnyParent), limit: 2},
			{patterns: pattern.MustCompile("forum.questions", ""), limit: 1},
		},
	}
	r := &rootDumper{rootSpec: spec, total: 3, quotas: []int{2, 1}}

	assert.True(t, r.checkLimits("forum.questions"), "charges both quotas")
	assert.False(t, r.checkLimits("forum.questions"), "second quota exhausted")
	assert.True(t, r.checkLimits("forum.users.questions"))
	assert.False(t, r.checkLimits("forum.users.questions"), "first quota exhausted")
	assert.Equal(t, []int{0, 0}, r.quotas)

	assert.True(t, r.checkLimits("forum.users"))
	assert.True(t, r.totalExhausted())
	assert.False(t, r.checkLimits("forum.users"), "total exhausted")

	unlimited := &rootDumper{rootSpec: &rootSpec{cfg: &config.RootConfig{}}, total: -1}
	for i := 0; i < 5; i++ {
		assert.True(t, unlimited.checkLimits("forum.users"))
	}
	assert.False(t, unlimited.totalExhausted())
}

func TestRootSpec_Decisions(t *testing.T) {
	depth := 1
	spec := &rootSpec{
		cfg: &config.RootConfig{
			ExcludeOptionalBelongsTo: true,
			DeepLimit:                &depth,
		},
		exclude: pattern.MustCompile([]interface{}{"parent", "users"}, pattern.AnyParent),
		include: []inclusion{
			{patterns: pattern.MustCompile("forum.users", pattern.AnyParent)},
			{patterns: pattern.MustCompile("votable", pattern.AnyParent)},
		},
	}
	root := RootPath("forum")
	owner := &schema.Model{Name: "Forum", PrimaryKey: "id"}

	tests := []struct {
		name    string
		path    AssociationPath
		rel     *schema.Relationship
		inverse string
		want    decision
	}{
		{"inverse", root, &schema.Relationship{Name: "question"}, "question", skipInverse},
		{"excluded", root, &schema.Relationship{Name: "parent"}, "", skipExcluded},
		{"optional", root, &schema.Relationship{Name: "author", Optional: true}, "", skipOptional},
		{"polymorphic not included", root, &schema.Relationship{Name: "target", Polymorphic: true}, "", skipPolymorphic},
		{"polymorphic included", root, &schema.Relationship{Name: "votable", Polymorphic: true}, "", traverse},
		{"required", root, &schema.Relationship{Name: "category"}, "", traverse},
		{"depth", root.Child("questions"), &schema.Relationship{Name: "category"}, "", skipDepth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spec.belongsToDecision(tt.path, tt.rel, tt.inverse))
		})
	}

	assert.Equal(t, traverse, spec.hasDecision(root, owner, &schema.Relationship{Name: "users", PrimaryKey: "id"}),
		"include overrides exclude")
	assert.Equal(t, skipExcluded, spec.hasDecision(root.Child("children"), owner, &schema.Relationship{Name: "users", PrimaryKey: "id"}))
	assert.Equal(t, skipNoPrimaryKey, spec.hasDecision(root, &schema.Model{Name: "UserRole"}, &schema.Relationship{Name: "x"}))
	assert.Equal(t, skipDepth, spec.hasDecision(root.Child("questions"), owner, &schema.Relationship{Name: "answers", PrimaryKey: "id"}))

	assert.True(t, spec.nullifies(skipExcluded))
	assert.True(t, spec.nullifies(skipDepth))
	assert.False(t, spec.nullifies(skipInverse))
	assert.False(t, spec.nullifies(skipPolymorphic))
	spec.dontNullify = true
	assert.False(t, spec.nullifies(skipExcluded))
	assert.Equal(t, "has-excluded", skipHasRelations.String())
}
