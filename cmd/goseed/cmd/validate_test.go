package cmd

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunValidate_Passes(t *testing.T) {
	f := newFixture(t, "")
	out := useFixture(t, f)

	require.NoError(t, runValidate(validateCmd, nil))

	got := out.String()
	assert.Contains(t, got, "Roots found: 1")
	assert.Contains(t, got, "Catalog: 3 models")
	assert.Contains(t, got, "Preflight checks passed")
	assert.Contains(t, got, "Configuration is valid")
}

func TestRunValidate_BadRootQuery(t *testing.T) {
	f := newFixture(t, "  - model: Review\n    where: \"stars > 3\"\n")
	out := useFixture(t, f)

	err := runValidate(validateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, out.String(), "ROOT_QUERY_CHECK")
	assert.Contains(t, out.String(), "Review:")
}

func TestRunValidate_MissingTable(t *testing.T) {
	f := newFixture(t, "")
	db, err := sql.Open("sqlite", f.db)
	require.NoError(t, err)
	_, err = db.Exec("DROP TABLE reviews")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	out := useFixture(t, f)

	err = runValidate(validateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reviews")
	assert.Contains(t, out.String(), "❌")
}
