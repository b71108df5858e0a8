package dumper

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dbsmedya/goseed/internal/config"
	"github.com/dbsmedya/goseed/internal/dialect"
	"github.com/dbsmedya/goseed/internal/logger"
	"github.com/dbsmedya/goseed/internal/schema"
)

const forumDDL = `
CREATE TABLE forums (
	id INTEGER PRIMARY KEY,
	name TEXT,
	parent_id INTEGER REFERENCES forums(id),
	author_id INTEGER REFERENCES users(id)
);
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	login TEXT,
	email TEXT,
	password TEXT,
	forum_id INTEGER REFERENCES forums(id)
);
CREATE TABLE profiles (
	id INTEGER PRIMARY KEY,
	user_id INTEGER REFERENCES users(id),
	name TEXT,
	title TEXT
);
CREATE TABLE questions (
	id INTEGER PRIMARY KEY,
	forum_id INTEGER REFERENCES forums(id),
	name TEXT,
	rating INTEGER NOT NULL DEFAULT 0,
	text TEXT,
	author_id INTEGER REFERENCES users(id)
);
CREATE TABLE answers (
	id INTEGER PRIMARY KEY,
	question_id INTEGER REFERENCES questions(id),
	best INTEGER DEFAULT 0,
	text TEXT,
	author_id INTEGER REFERENCES users(id)
);
CREATE TABLE votes (
	id INTEGER PRIMARY KEY,
	votable_type TEXT,
	votable_id INTEGER,
	user_id INTEGER REFERENCES users(id)
);
CREATE TABLE roles (
	id INTEGER PRIMARY KEY,
	name TEXT
);
CREATE TABLE user_roles (
	user_id INTEGER REFERENCES users(id),
	role_id INTEGER REFERENCES roles(id)
);
`

const forumSeed = `
INSERT INTO forums (id, name, parent_id, author_id) VALUES
	(1, 'One', NULL, NULL),
	(2, 'Two', NULL, NULL),
	(3, 'Descendant forum', 1, 1);
INSERT INTO users (id, login, email, password, forum_id) VALUES
	(1, 'johndoe', 'john@example.com', 'secret1', 1),
	(2, 'janedoe', 'jane@example.com', 'secret2', 2);
INSERT INTO roles (id, name) VALUES (1, 'admin');
INSERT INTO user_roles (user_id, role_id) VALUES (1, 1), (2, 1);
`

func forumCatalog() []config.ModelConfig {
	return []config.ModelConfig{
		{
			Name: "Forum",
			BelongsTo: []config.RelationConfig{
				{Name: "parent", Model: "Forum", Optional: true},
				{Name: "author", Model: "User", Optional: true},
			},
			HasMany: []config.RelationConfig{
				{Name: "children", Model: "Forum", ForeignKey: "parent_id"},
				{Name: "users"},
				{Name: "questions"},
			},
		},
		{
			Name:      "User",
			BelongsTo: []config.RelationConfig{{Name: "forum", Optional: true}},
			HasOne:    []config.RelationConfig{{Name: "profile"}},
			HasMany: []config.RelationConfig{
				{Name: "questions", Model: "Question", ForeignKey: "author_id"},
				{Name: "answers", Model: "Answer", ForeignKey: "author_id"},
				{Name: "votes"},
				{Name: "user_roles"},
			},
		},
		{Name: "Profile", BelongsTo: []config.RelationConfig{{Name: "user"}}},
		{
			Name: "Question",
			BelongsTo: []config.RelationConfig{
				{Name: "forum"},
				{Name: "author", Model: "User", Optional: true},
			},
			HasMany: []config.RelationConfig{
				{Name: "answers"},
				{Name: "votes", As: "votable"},
			},
		},
		{
			Name: "Answer",
			BelongsTo: []config.RelationConfig{
				{Name: "question"},
				{Name: "author", Model: "User", Optional: true},
			},
			HasMany: []config.RelationConfig{{Name: "votes", As: "votable"}},
		},
		{
			Name: "Vote",
			BelongsTo: []config.RelationConfig{
				{Name: "votable", Polymorphic: true, Targets: []config.PolymorphicTargetConfig{
					{Type: "Question", Model: "Question"},
					{Type: "Answer", Model: "Answer"},
				}},
				{Name: "user", Optional: true},
			},
		},
		{Name: "Role", HasMany: []config.RelationConfig{{Name: "user_roles"}}},
		{
			Name:       "UserRole",
			PrimaryKey: schema.NoPrimaryKey,
			BelongsTo: []config.RelationConfig{
				{Name: "user"},
				{Name: "role"},
			},
		},
	}
}

func openForumDB(t *testing.T, extra ...string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(forumDDL)
	require.NoError(t, err)
	_, err = db.Exec(forumSeed)
	require.NoError(t, err)
	for _, stmt := range extra {
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func forumConfig(roots ...config.RootConfig) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Source.Driver = "sqlite"
	cfg.Catalog.Models = forumCatalog()
	cfg.Roots = roots
	return cfg
}

func newForumDumper(t *testing.T, db *sql.DB, cfg *config.Config) *Dumper {
	t.Helper()
	reg, err := schema.Build(context.Background(), cfg.Catalog, db, dialect.SQLite{}, "")
	require.NoError(t, err)
	d, err := New(cfg, db, dialect.SQLite{}, reg, nil, logger.NewNop())
	require.NoError(t, err)
	return d
}

// output collects the dump and records whether it was closed.
type output struct {
	bytes.Buffer
	closed bool
}

func (o *output) Close() error {
	o.closed = true
	return nil
}

func runDump(t *testing.T, db *sql.DB, cfg *config.Config) (string, *Result) {
	t.Helper()
	d := newForumDumper(t, db, cfg)
	out := &output{}
	res, err := d.Run(context.Background(), out)
	require.NoError(t, err)
	require.True(t, out.closed, "output must be closed")
	return out.String(), res
}

// replay loads a dump into a fresh copy of the schema.
func replay(t *testing.T, dump string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(forumDDL)
	require.NoError(t, err)
	if dump != "" {
		_, err = db.Exec(dump)
		require.NoError(t, err, "dump must replay cleanly:\n%s", dump)
	}
	return db
}

func count(t *testing.T, db *sql.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func intPtr(n int) *int { return &n }
