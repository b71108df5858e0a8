package dumper

import (
	"context"
	"database/sql/driver"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goseed/internal/dialect"
	"github.com/dbsmedya/goseed/internal/logger"
	"github.com/dbsmedya/goseed/internal/types"
)

func collect(t *testing.T, run func(fn func(*types.Record) error) error) []*types.Record {
	t.Helper()
	var out []*types.Record
	require.NoError(t, run(func(r *types.Record) error {
		out = append(out, r)
		return nil
	}))
	return out
}

func TestFetcher_KeysetPaging(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "forum_id", "name"}
	mock.ExpectQuery("SELECT `id`, `forum_id`, `name` FROM `questions` ORDER BY `id` LIMIT 2").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow([]byte("1"), []byte("1"), []byte("first")).
			AddRow([]byte("2"), []byte("1"), []byte("second")))
	mock.ExpectQuery("SELECT `id`, `forum_id`, `name` FROM `questions` WHERE (`id` > ?) ORDER BY `id` LIMIT 2").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow([]byte("3"), nil, []byte("third")))

	f := newFetcher(db, 2, false, logger.NewNop())
	rel := newRelation(dialect.MySQL{}, questionModel(), questionModel().ColumnNames())
	rows := collect(t, func(fn func(*types.Record) error) error { return f.each(context.Background(), rel, fn) })

	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[2].Value("id"))
	assert.Nil(t, rows[2].Value("forum_id"))
	assert.Equal(t, "second", rows[1].Value("name"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetcher_OffsetPagingWithLimit(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "forum_id", "name"}
	mock.ExpectQuery("SELECT `id`, `forum_id`, `name` FROM `questions` ORDER BY name, `id` LIMIT 2").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 1, "a").AddRow(2, 1, "b"))
	mock.ExpectQuery("SELECT `id`, `forum_id`, `name` FROM `questions` ORDER BY name, `id` LIMIT 1 OFFSET 2").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, 1, "c"))

	f := newFetcher(db, 2, false, logger.NewNop())
	rel := newRelation(dialect.MySQL{}, questionModel(), questionModel().ColumnNames())
	rel.order = "name"
	rel.limit = 3
	rows := collect(t, func(fn func(*types.Record) error) error { return f.each(context.Background(), rel, fn) })

	assert.Len(t, rows, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetcher_NullKeyWhilePaging(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT `id`, `forum_id`, `name` FROM `questions` ORDER BY `id` LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "forum_id", "name"}).AddRow(nil, 1, "a"))

	f := newFetcher(db, 1, false, logger.NewNop())
	rel := newRelation(dialect.MySQL{}, questionModel(), questionModel().ColumnNames())
	err = f.each(context.Background(), rel, func(*types.Record) error { return nil })
	assert.ErrorContains(t, err, "NULL primary key")
}

func TestFetcher_EachInChunks(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "forum_id", "name"}
	mock.ExpectQuery(`SELECT "id", "forum_id", "name" FROM "questions" WHERE ("forum_id" IN ($1, $2)) ORDER BY "id"`).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(10, 1, "a").AddRow(11, 2, "b"))
	mock.ExpectQuery(`SELECT "id", "forum_id", "name" FROM "questions" WHERE ("forum_id" IN ($1)) ORDER BY "id"`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(cols))

	f := newFetcher(db, 2, false, logger.NewNop())
	rel := newRelation(dialect.Postgres{}, questionModel(), questionModel().ColumnNames())
	rows := collect(t, func(fn func(*types.Record) error) error {
		return f.eachIn(context.Background(), rel, "forum_id", []interface{}{1, 2, 3}, fn)
	})

	assert.Len(t, rows, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetcher_ChunkNeverExceedsINLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ids := make([]interface{}, maxIdentifiersInIN+1)
	for i := range ids {
		ids[i] = i + 1
	}
	first := make([]driver.Value, maxIdentifiersInIN)
	for i := range first {
		first[i] = ids[i]
	}
	mock.ExpectQuery("IN").WithArgs(first...).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("IN").WithArgs(maxIdentifiersInIN + 1).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	f := newFetcher(db, 5000, false, logger.NewNop())
	rel := newRelation(dialect.MySQL{}, questionModel(), []string{"id"})
	require.NoError(t, f.eachIn(context.Background(), rel, "forum_id", ids, func(*types.Record) error { return nil }))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetcher_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(fmt.Errorf("connection reset"))

	f := newFetcher(db, 10, true, logger.NewNop())
	rel := newRelation(dialect.MySQL{}, questionModel(), nil)
	err = f.each(context.Background(), rel, func(*types.Record) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query questions")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestFetcher_CallbackErrorStops(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "forum_id", "name"}).AddRow(1, 1, "a").AddRow(2, 1, "b"))

	f := newFetcher(db, 10, false, logger.NewNop())
	rel := newRelation(dialect.MySQL{}, questionModel(), questionModel().ColumnNames())
	calls := 0
	err = f.each(context.Background(), rel, func(*types.Record) error {
		calls++
		return fmt.Errorf("stop")
	})
	assert.EqualError(t, err, "stop")
	assert.Equal(t, 1, calls)
}
