package sqlbook

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var ctx = context.Background()

type UserBlogSummary struct {
	Title     string
	Published string
}

var testRecords = Records{"UserBlogSummary": StructRecord[UserBlogSummary]()}

var (
	testPostgres = NewStandardDriver("postgres", Postgres, Capabilities{
		Returning:        true,
		AffectedRows:     true,
		BulkAffectedRows: true,
		MultiStatement:   true,
	})
	testSQLite = NewStandardDriver("sqlite3", SQLite, Capabilities{
		LastInsertID:     true,
		AffectedRows:     true,
		BulkAffectedRows: true,
		MultiStatement:   true,
	})
	testMySQL = NewStandardDriver("mysql", MySQL, Capabilities{
		LastInsertID:     true,
		AffectedRows:     true,
		BulkAffectedRows: true,
	})
	testBare = NewStandardDriver("bare", Dialect{Name: "bare", Placeholder: Question}, Capabilities{})
)

var userColumns = []string{"userid", "username", "firstname", "lastname"}

func loadBlogDB(t *testing.T, driver Driver, options ...any) *Registry {
	r, err := Load(afero.NewReadOnlyFs(afero.NewOsFs()), "testdata/blogdb/sql", driver, append([]any{testRecords}, options...)...)
	require.NoError(t, err)
	return r
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

func lookup(t *testing.T, r *Registry, path string) *Query {
	q, err := r.Lookup(path)
	require.NoError(t, err)
	return q
}

func allUsersRows() *sqlmock.Rows {
	return sqlmock.NewRows(userColumns).
		AddRow(int64(1), "bobsmith", "Bob", "Smith").
		AddRow(int64(2), "johndoe", "John", "Doe").
		AddRow(int64(3), "janedoe", "Jane", "Doe")
}

func TestQuery_Many(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`select * from users;`)).WillReturnRows(allUsersRows()).RowsWillBeClosed()

	rows, err := lookup(t, r, "users.get_all").Many(ctx, db, nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, map[string]any{
		"userid":    int64(1),
		"username":  "bobsmith",
		"firstname": "Bob",
		"lastname":  "Smith",
	}, rows[0].(Row).Map())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_Many_Parameterized(t *testing.T) {
	r := loadBlogDB(t, testPostgres)
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`where lastname = $1`)).
		WithArgs("Doe").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(3), "janedoe", "Jane", "Doe").
			AddRow(int64(2), "johndoe", "John", "Doe"))

	rows, err := lookup(t, r, "users.get_by_lastname").Many(ctx, db, Named{"lastname": "Doe"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].(Row).Equal(int64(3), "janedoe", "Jane", "Doe"))
	assert.True(t, rows[1].(Row).Equal(int64(2), "johndoe", "John", "Doe"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_Many_NoRows(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`where userid = ?`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"title", "published"}))

	rows, err := lookup(t, r, "blogs.get_user_blogs").Many(ctx, db, Named{"userid": int64(3)})
	require.NoError(t, err)
	require.NotNil(t, rows)
	assert.Len(t, rows, 0)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_Many_RecordClass(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`where userid = ?`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"title", "published"}).
			AddRow("How to make a pie.", "2018-11-23").
			AddRow("What I did Today", "2017-07-28"))
	mock.ExpectQuery(regexp.QuoteMeta(`limit 1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"title", "published"}).
			AddRow("How to make a pie.", "2018-11-23"))

	blogs, err := Many[UserBlogSummary](ctx, lookup(t, r, "blogs.get_user_blogs"), db, Named{"userid": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, []UserBlogSummary{
		{Title: "How to make a pie.", Published: "2018-11-23"},
		{Title: "What I did Today", Published: "2017-07-28"},
	}, blogs)

	one, err := One[UserBlogSummary](ctx, lookup(t, r, "blogs.get_latest_user_blog"), db, Named{"userid": int64(1)})
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, UserBlogSummary{Title: "How to make a pie.", Published: "2018-11-23"}, *one)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_Many_WrongType(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, mock := newMock(t)
	mock.ExpectQuery("").WillReturnRows(allUsersRows())

	_, err := Many[UserBlogSummary](ctx, lookup(t, r, "users.get_all"), db, nil)
	require.Error(t, err)
	assert.Equal(t, `query "users.get_all": row 0 is sqlbook.Row, not sqlbook.UserBlogSummary`, err.Error())
}

func TestQuery_One(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`where username = ?`)).
		WithArgs("johndoe").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(2), "johndoe", "John", "Doe")).
		RowsWillBeClosed()
	mock.ExpectQuery(regexp.QuoteMeta(`where username = ?`)).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(userColumns))

	q := lookup(t, r, "users.get_by_username")
	row, err := q.One(ctx, db, Named{"username": "johndoe"})
	require.NoError(t, err)
	assert.True(t, row.(Row).Equal(int64(2), "johndoe", "John", "Doe"))

	row, err = q.One(ctx, db, Positional{"nobody"})
	require.NoError(t, err)
	assert.Nil(t, row)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_Value(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`select count(*) as cnt from users;`)).
		WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`select count(*) as cnt from users;`)).
		WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`select count(*) as cnt from users;`)).
		WillReturnRows(sqlmock.NewRows([]string{"cnt"}))

	q := lookup(t, r, "users.get_count")
	v, err := q.Value(ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	count, ok, err := Value[int64](ctx, q, db, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), count)

	v, err = q.Value(ctx, db, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_Exec(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`delete from blogs where blogid = ?`)).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`where userid = ?`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"title", "published"}))

	n, err := lookup(t, r, "blogs.remove_blog").Exec(ctx, db, Named{"blogid": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, sql.NullInt64{Int64: 1, Valid: true}, n)

	blogs, err := lookup(t, r, "blogs.get_user_blogs").Many(ctx, db, Named{"userid": int64(3)})
	require.NoError(t, err)
	assert.Len(t, blogs, 0)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_Exec_CountsNotReported(t *testing.T) {
	r := loadBlogDB(t, Suspending(testPostgres, SuspendingOptions{SuppressAffected: true}))
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`delete from blogs where blogid = $1`)).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := lookup(t, r, "blogs.remove_blog").Call(ctx, db, Named{"blogid": int64(2)})
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_InsertReturning_Returning(t *testing.T) {
	r := loadBlogDB(t, testPostgres)
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`values ($1, $2, $3, $4)`)).
		WithArgs(int64(2), "My first blog", "Hello, World!", "2018-12-04").
		WillReturnRows(sqlmock.NewRows([]string{"blogid", "title"}).AddRow(int64(4), "My first blog")).
		RowsWillBeClosed()
	mock.ExpectQuery(regexp.QuoteMeta(`where false`)).
		WillReturnRows(sqlmock.NewRows([]string{"blogid"}))

	res, err := lookup(t, r, "blogs.pg_publish_blog").InsertReturning(ctx, db, Named{
		"userid":    int64(2),
		"title":     "My first blog",
		"content":   "Hello, World!",
		"published": "2018-12-04",
	})
	require.NoError(t, err)
	row, ok := res.(Row)
	require.True(t, ok)
	assert.True(t, row.Equal(int64(4), "My first blog"))

	res, err = lookup(t, r, "blogs.pg_no_publish").InsertReturning(ctx, db, nil)
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_InsertReturning_SingleColumn(t *testing.T) {
	r, err := FromString(`-- name: add_user<!
insert into users (username) values (:username) returning userid;`, testPostgres)
	require.NoError(t, err)
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`values ($1) returning userid`)).
		WithArgs("foo").
		WillReturnRows(sqlmock.NewRows([]string{"userid"}).AddRow(int64(7)))

	res, err := lookup(t, r, "add_user").Call(ctx, db, Positional{"foo"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_InsertReturning_LastInsertID(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`values (?, ?, ?, ?)`)).
		WithArgs(int64(2), "My first blog", "Hello, World!", "2018-12-04").
		WillReturnResult(sqlmock.NewResult(4, 1))

	q, err := r.Variant("blogs.publish_blog")
	require.NoError(t, err)
	require.Equal(t, "blogs.publish_blog", q.Path())
	res, err := q.InsertReturning(ctx, db, Named{
		"userid":    int64(2),
		"title":     "My first blog",
		"content":   "Hello, World!",
		"published": "2018-12-04",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_InsertReturning_Unsupported(t *testing.T) {
	r := loadBlogDB(t, testBare)
	db, mock := newMock(t)

	_, err := lookup(t, r, "blogs.publish_blog").InsertReturning(ctx, db, Named{})
	require.Error(t, err)
	var unsupported *UnsupportedOperationError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "last-insert-id", unsupported.Capability)
	assert.Equal(t, InsertReturning, unsupported.Kind)
	assert.Equal(t, "bare", unsupported.Driver)
	assert.Equal(t, `query "blogs.publish_blog" (insert-returning): driver "bare" does not support last-insert-id`, err.Error())

	_, err = lookup(t, r, "blogs.pg_publish_blog").Call(ctx, db, Named{})
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "returning", unsupported.Capability)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_InsertReturning_RequiresReturning(t *testing.T) {
	r, err := FromString(`-- name: add_blog<!
insert into blogs (userid, title) values (:userid, :title) returning blogid, title;`, testMySQL)
	require.NoError(t, err)
	db, mock := newMock(t)

	err = r.Check()
	require.Error(t, err)
	var unsupported *UnsupportedOperationError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "returning", unsupported.Capability)

	_, err = lookup(t, r, "add_blog").Call(ctx, db, Named{"userid": int64(1), "title": "x"})
	require.Error(t, err)
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, `query "add_blog" (insert-returning): driver "mysql" does not support returning`, err.Error())
	// nothing reaches the driver
	require.NoError(t, mock.ExpectationsWereMet())

	// without a RETURNING clause the last insert id is still used
	r, err = FromString(`-- name: add_blog<!
insert into blogs (userid, title) values (:userid, :title);`, testMySQL)
	require.NoError(t, err)
	require.NoError(t, r.Check())
}

func TestQuery_ExecMany(t *testing.T) {
	r := loadBlogDB(t, testPostgres)
	db, mock := newMock(t)
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`values ($1, $2, $3, $4)`))
	prep.ExpectExec().WithArgs(int64(2), "Blog Part 1", "content - 1", "2018-12-04").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(int64(2), "Blog Part 2", "content - 2", "2018-12-05").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(int64(2), "Blog Part 3", "content - 3", "2018-12-06").WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := lookup(t, r, "blogs.pg_bulk_publish").ExecMany(ctx, db, []Named{
		{"userid": int64(2), "title": "Blog Part 1", "content": "content - 1", "published": "2018-12-04"},
		{"userid": int64(2), "title": "Blog Part 2", "content": "content - 2", "published": "2018-12-05"},
		{"userid": int64(2), "title": "Blog Part 3", "content": "content - 3", "published": "2018-12-06"},
	})
	require.NoError(t, err)
	assert.Equal(t, sql.NullInt64{Int64: 3, Valid: true}, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_ExecMany_Positional(t *testing.T) {
	r := loadBlogDB(t, Suspending(testSQLite, SuspendingOptions{SuppressAffected: true}))
	db, mock := newMock(t)
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`values (?, ?, ?, ?)`))
	prep.ExpectExec().WithArgs(int64(2), "Blog Part 1", "content - 1", "2018-12-04").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(int64(2), "Blog Part 2", "content - 2", "2018-12-05").WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := lookup(t, r, "blogs.bulk_publish").Call(ctx, db, [][]any{
		{int64(2), "Blog Part 1", "content - 1", "2018-12-04"},
		{int64(2), "Blog Part 2", "content - 2", "2018-12-05"},
	})
	require.NoError(t, err)
	assert.Nil(t, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_ExecMany_Empty(t *testing.T) {
	r := loadBlogDB(t, testPostgres)
	db, mock := newMock(t)

	n, err := lookup(t, r, "blogs.pg_bulk_publish").ExecMany(ctx, db, []Named{})
	require.NoError(t, err)
	assert.Equal(t, sql.NullInt64{Int64: 0, Valid: true}, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_ExecMany_MissingParameter(t *testing.T) {
	r := loadBlogDB(t, testPostgres)
	db, mock := newMock(t)

	_, err := lookup(t, r, "blogs.pg_bulk_publish").ExecMany(ctx, db, []Named{
		{"userid": int64(2), "title": "Blog Part 1", "content": "content - 1", "published": "2018-12-04"},
		{"userid": int64(2), "title": "Blog Part 2"},
	})
	var missing *MissingParameterError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "content", missing.Name)
	assert.Equal(t, "blogs.pg_bulk_publish", missing.Query)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_Script(t *testing.T) {
	r := loadBlogDB(t, testPostgres)
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`create table if not exists blogs`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := lookup(t, r, "blogs.create_schema").Script(ctx, db)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	r = loadBlogDB(t, testMySQL)
	_, err = lookup(t, r, "blogs.create_schema").Call(ctx, db, nil)
	var unsupported *UnsupportedOperationError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "multi-statement", unsupported.Capability)
}

func TestQuery_Call(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, mock := newMock(t)
	mock.ExpectQuery("").WillReturnRows(allUsersRows())
	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(3)))
	mock.ExpectExec("").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows([]string{"title", "published"}).AddRow("Testing", "2018-01-01"))

	res, err := lookup(t, r, "users.get_all").Call(ctx, db, nil)
	require.NoError(t, err)
	assert.Len(t, res, 3)

	res, err = lookup(t, r, "users.get_count").Call(ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res)

	res, err = lookup(t, r, "blogs.remove_blog").Call(ctx, db, Named{"blogid": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res)

	res, err = lookup(t, r, "blogs.get_user_blogs_cursor").Call(ctx, db, Named{"userid": int64(3)})
	require.NoError(t, err)
	c, ok := res.(*Cursor)
	require.True(t, ok)
	all, err := c.FetchAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.True(t, c.Closed())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_KindMismatch(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, _ := newMock(t)
	q := lookup(t, r, "users.get_all")

	_, err := q.One(ctx, db, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKindMismatch))
	assert.Equal(t, `operation does not match query kind: query "users.get_all" is select-many, not select-one`, err.Error())
	_, err = q.Value(ctx, db, nil)
	assert.True(t, errors.Is(err, ErrKindMismatch))
	_, err = q.Exec(ctx, db, nil)
	assert.True(t, errors.Is(err, ErrKindMismatch))
	_, err = q.InsertReturning(ctx, db, nil)
	assert.True(t, errors.Is(err, ErrKindMismatch))
	_, err = q.ExecMany(ctx, db, nil)
	assert.True(t, errors.Is(err, ErrKindMismatch))
	_, err = q.Cursor(ctx, db, nil)
	assert.True(t, errors.Is(err, ErrKindMismatch))
	err = q.Script(ctx, db)
	assert.True(t, errors.Is(err, ErrKindMismatch))
	_, err = lookup(t, r, "users.get_count").Many(ctx, db, nil)
	assert.True(t, errors.Is(err, ErrKindMismatch))
}

func TestQuery_NoConnection(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	_, err := lookup(t, r, "users.get_all").Many(ctx, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoConnection))
}

func TestQuery_MissingParameter(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, mock := newMock(t)

	_, err := lookup(t, r, "users.get_by_lastname").Many(ctx, db, Named{"firstname": "John"})
	require.Error(t, err)
	var missing *MissingParameterError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, `query "users.get_by_lastname": missing parameter "lastname"`, err.Error())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_UnusedParameters(t *testing.T) {
	r := loadBlogDB(t, testSQLite, ErrorOnUnused)
	db, mock := newMock(t)

	_, err := lookup(t, r, "users.get_by_lastname").Many(ctx, db, Named{"lastname": "Doe", "firstname": "John"})
	var unused *UnusedParameterError
	require.True(t, errors.As(err, &unused))
	assert.Equal(t, []string{"firstname"}, unused.Names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_DriverError(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db, mock := newMock(t)
	boom := errors.New("boom")
	mock.ExpectQuery("").WillReturnError(boom)
	mock.ExpectExec("").WillReturnError(boom)
	mock.ExpectQuery("").WillReturnRows(allUsersRows().RowError(1, boom))
	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(3)).CloseError(boom))

	_, err := lookup(t, r, "users.get_all").Many(ctx, db, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	var driverErr *DriverError
	require.True(t, errors.As(err, &driverErr))
	assert.Equal(t, "users.get_all", driverErr.Query)
	assert.Equal(t, SelectMany, driverErr.Kind)
	assert.Equal(t, "query", driverErr.Op)
	assert.Equal(t, `query "users.get_all" (select-many) query failed: boom`, err.Error())

	_, err = lookup(t, r, "blogs.remove_blog").Exec(ctx, db, Named{"blogid": int64(2)})
	require.True(t, errors.As(err, &driverErr))
	assert.Equal(t, "exec", driverErr.Op)

	_, err = lookup(t, r, "users.get_all").Many(ctx, db, nil)
	require.True(t, errors.As(err, &driverErr))
	assert.Equal(t, "fetch", driverErr.Op)

	_, err = lookup(t, r, "users.get_count").Value(ctx, db, nil)
	require.True(t, errors.As(err, &driverErr))
	assert.Equal(t, "close", driverErr.Op)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_DriverError_Code(t *testing.T) {
	drv := NewStandardDriver("coded", SQLite, Capabilities{AffectedRows: true})
	drv.Codes = func(err error) string {
		return "2067"
	}
	r := loadBlogDB(t, drv)
	db, mock := newMock(t)
	mock.ExpectExec("").WillReturnError(errors.New("UNIQUE constraint failed"))

	_, err := lookup(t, r, "blogs.remove_blog").Exec(ctx, db, Named{"blogid": int64(2)})
	var driverErr *DriverError
	require.True(t, errors.As(err, &driverErr))
	assert.Equal(t, "2067", driverErr.Code)
	assert.Equal(t, `query "blogs.remove_blog" (insert-update-delete) exec failed [2067]: UNIQUE constraint failed`, err.Error())
}

var errNotUnique = errors.New("not unique")

func TestQuery_ErrorTranslator(t *testing.T) {
	translator := ErrorTranslatorFunc(func(err error) error {
		var driverErr *DriverError
		if errors.As(err, &driverErr) && driverErr.Op == "exec" {
			return errNotUnique
		}
		return err
	})
	r := loadBlogDB(t, testSQLite, translator)
	db, mock := newMock(t)
	mock.ExpectExec("").WillReturnError(errors.New("UNIQUE constraint failed"))

	_, err := lookup(t, r, "blogs.remove_blog").Exec(ctx, db, Named{"blogid": int64(2)})
	require.Equal(t, errNotUnique, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := loadBlogDB(t, testSQLite, logger)
	db, mock := newMock(t)
	mock.ExpectQuery("").WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(3)))
	mock.ExpectQuery("").WillReturnError(errors.New("boom"))

	q := lookup(t, r, "users.get_count")
	_, err := q.Value(ctx, db, nil)
	require.NoError(t, err)
	_, err = q.Value(ctx, db, nil)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "query=users.get_count")
	assert.Contains(t, out, "kind=select-value")
	assert.Contains(t, out, "driver=sqlite3")
	assert.Contains(t, out, "boom")
}

func TestQuery_Bind(t *testing.T) {
	r := loadBlogDB(t, testPostgres)
	text, args, err := lookup(t, r, "blogs.remove_blog").Bind(Named{"blogid": 2})
	require.NoError(t, err)
	assert.Equal(t, "delete from blogs where blogid = $1;", text)
	assert.Equal(t, []any{2}, args)

	text, args, err = lookup(t, r, "blogs.create_schema").Bind(nil)
	require.NoError(t, err)
	assert.Contains(t, text, "create table if not exists blogs")
	assert.Nil(t, args)

	q := lookup(t, r, "blogs.get_user_blogs")
	assert.Equal(t, "get_user_blogs", q.Name())
	assert.Equal(t, SelectMany, q.Kind())
	assert.Equal(t, "Get blogs authored by a user.", q.Doc())
	assert.Contains(t, q.SQL(), ":userid")
	assert.Equal(t, "UserBlogSummary", q.Definition().RecordType)
}

func TestQuery_Concurrent(t *testing.T) {
	r := loadBlogDB(t, testSQLite)
	db1, mock1 := newMock(t)
	db2, mock2 := newMock(t)
	mock1.ExpectQuery(regexp.QuoteMeta(`select * from users;`)).WillReturnRows(allUsersRows())
	mock2.ExpectQuery(regexp.QuoteMeta(`order by username asc`)).WillReturnRows(sqlmock.NewRows(userColumns).
		AddRow(int64(1), "bobsmith", "Bob", "Smith").
		AddRow(int64(3), "janedoe", "Jane", "Doe").
		AddRow(int64(2), "johndoe", "John", "Doe"))

	getAll := lookup(t, r, "users.get_all")
	getAllSorted := lookup(t, r, "users.get_all_sorted")
	var users, sorted []any
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = getAll.Many(gctx, db1, nil)
		return err
	})
	g.Go(func() (err error) {
		sorted, err = getAllSorted.Many(gctx, db2, nil)
		return err
	})
	require.NoError(t, g.Wait())
	require.Len(t, users, 3)
	require.Len(t, sorted, 3)
	assert.Equal(t, "johndoe", users[1].(Row).Map()["username"])
	assert.Equal(t, "janedoe", sorted[1].(Row).Map()["username"])
	require.NoError(t, mock1.ExpectationsWereMet())
	require.NoError(t, mock2.ExpectationsWereMet())
}
