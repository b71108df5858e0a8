package cmd

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const libraryDDL = `
CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT, email TEXT);
CREATE TABLE books (id INTEGER PRIMARY KEY, author_id INTEGER NOT NULL REFERENCES authors(id), title TEXT);
CREATE TABLE reviews (id INTEGER PRIMARY KEY, book_id INTEGER NOT NULL REFERENCES books(id), body TEXT);
`

const librarySeed = `
INSERT INTO authors (id, name, email) VALUES (1, 'Ursula', 'ursula@example.com'), (2, 'Italo', 'italo@example.com');
INSERT INTO books (id, author_id, title) VALUES (1, 1, 'The Dispossessed'), (2, 1, 'Lavinia'), (3, 2, 'Invisible Cities');
INSERT INTO reviews (id, book_id, body) VALUES (1, 1, 'Ambiguous utopia'), (2, 3, 'Marco Polo');
`

const libraryConfig = `
source:
  driver: sqlite
  path: %s
dump:
  output: %s
logging:
  level: error
  output: stderr
catalog:
  models:
    - name: Author
      has_many:
        - name: books
    - name: Book
      belongs_to:
        - name: author
      has_many:
        - name: reviews
    - name: Review
      belongs_to:
        - name: book
transforms:
  - model: Author
    anonymize:
      - field: email
        generator: sha256
roots:
  - model: Author
    where: "id = 1"
%s`

type fixture struct {
	dir    string
	config string
	db     string
	output string
}

// newFixture writes a seeded SQLite database and a config file pointing at
// it. extra is appended to the roots section.
func newFixture(t *testing.T, extra string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:    dir,
		config: filepath.Join(dir, "goseed.yaml"),
		db:     filepath.Join(dir, "source.db"),
		output: filepath.Join(dir, "seed.sql"),
	}

	db, err := sql.Open("sqlite", f.db)
	require.NoError(t, err)
	_, err = db.Exec(libraryDDL + librarySeed)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	content := fmt.Sprintf(libraryConfig, f.db, f.output, extra)
	require.NoError(t, os.WriteFile(f.config, []byte(content), 0o644))
	return f
}

// useFixture points the CLI flags at f and captures command output. Every
// flag is restored when the test ends.
func useFixture(t *testing.T, f *fixture) *bytes.Buffer {
	t.Helper()
	saved := []interface{}{cfgFile, logLevel, logFormat, batchSize, output, verbose, verboseSQL, unscoped, verify, planMaxDepth}
	t.Cleanup(func() {
		cfgFile = saved[0].(string)
		logLevel = saved[1].(string)
		logFormat = saved[2].(string)
		batchSize = saved[3].(int)
		output = saved[4].(string)
		verbose = saved[5].(bool)
		verboseSQL = saved[6].(bool)
		unscoped = saved[7].(bool)
		verify = saved[8].(bool)
		planMaxDepth = saved[9].(int)
		resetOutputWriter()
	})

	cfgFile = f.config
	var buf bytes.Buffer
	setOutputWriter(&buf)
	return &buf
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var stderr bytes.Buffer
	c := &cobra.Command{}
	c.SetErr(&stderr)
	c.SetOut(&stderr)
	return c, &stderr
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// loadDump replays a dump into a fresh copy of the schema.
func loadDump(t *testing.T, dump string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec("PRAGMA foreign_keys = ON;" + libraryDDL)
	require.NoError(t, err)
	_, err = db.Exec(dump)
	require.NoError(t, err, "dump must load with foreign keys on:\n%s", dump)
	return db
}
