package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrant-api/hydrant/field"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := New(&Config{
		DB:      db,
		Table:   "authors",
		Columns: []string{"email", "name", "profile", "rating", "active", "joined_at"},
	})
	require.NoError(t, err)
	return store, mock
}

func TestNewRequiresConnectionAndTable(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{Table: "authors"})
	assert.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = New(&Config{DB: db})
	assert.Error(t, err)
}

func TestNewRejectsUnsafeIdentifiers(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = New(&Config{DB: db, Table: "authors; DROP TABLE authors"})
	assert.Error(t, err)

	_, err = New(&Config{DB: db, Table: "authors", Columns: []string{"name\"'"}})
	assert.Error(t, err)
}

func TestNewIncludesPrimaryKeyOnce(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := New(&Config{
		DB:      db,
		Table:   "authors",
		Columns: []string{"id", "name", "name"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, store.columns)
	assert.Equal(t, "id", store.pkField)
}

func TestEnsureTable(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS authors \(id TEXT PRIMARY KEY, email TEXT, name TEXT, profile TEXT, rating TEXT, active TEXT, joined_at TEXT\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.EnsureTable(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectOrdersClausesDeterministically(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT id, email, name, profile, rating, active, joined_at FROM authors WHERE email = \$1 AND name = \$2 ORDER BY id`).
		WithArgs("ada@example.com", "Ada").
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "email", "name", "profile", "rating", "active", "joined_at"}).
				AddRow("1", "ada@example.com", "Ada", nil, nil, nil, nil),
		)

	records, err := store.Select(context.Background(), map[string]any{
		"name":  "Ada",
		"email": "ada@example.com",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ada", records[0]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectEncodesSelectorValues(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM authors WHERE active = \$1 ORDER BY id`).
		WithArgs("true").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	records, err := store.Select(context.Background(), map[string]any{"active": true})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectRejectsNonScalarSelector(t *testing.T) {
	store, _ := setupMockStore(t)

	_, err := store.Select(context.Background(), map[string]any{
		"profile": map[string]any{"bio": "x"},
	})
	assert.ErrorIs(t, err, field.ErrInvalidSelector)
}

func TestSelectRejectsUnknownColumn(t *testing.T) {
	store, _ := setupMockStore(t)

	_, err := store.Select(context.Background(), map[string]any{"nickname": "ada"})
	assert.ErrorIs(t, err, field.ErrInvalidSelector)
	assert.Contains(t, err.Error(), "nickname")
}

func TestSelectDecodesStoredJSON(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM authors ORDER BY id`).
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "email", "name", "profile", "rating", "active", "joined_at"}).
				AddRow("1", "ada@example.com", "Ada", `{"bio":"pioneer","links":["a","b"]}`, "4.50", "true", "2024-03-01T10:30:00Z"),
		)

	records, err := store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	profile, ok := records[0]["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pioneer", profile["bio"])
	assert.Equal(t, []any{"a", "b"}, profile["links"])

	// Scalar text stays text; the field layer re-types it on render.
	assert.Equal(t, "4.50", records[0]["rating"])
	assert.Equal(t, "true", records[0]["active"])
	assert.Equal(t, "2024-03-01T10:30:00Z", records[0]["joined_at"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAssignsPrimaryKey(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`INSERT INTO authors \(id, email, name, profile, rating, active, joined_at\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\) ON CONFLICT \(id\) DO UPDATE SET email = EXCLUDED\.email`).
		WithArgs(sqlmock.AnyArg(), "ada@example.com", "Ada", nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := store.Save(context.Background(), map[string]any{
		"email": "ada@example.com",
		"name":  "Ada",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved["id"])
	assert.Equal(t, "Ada", saved["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEncodesValuesAsText(t *testing.T) {
	store, mock := setupMockStore(t)

	joined := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	rating := decimal.RequireFromString("4.5")

	mock.ExpectExec(`INSERT INTO authors`).
		WithArgs("7", "ada@example.com", "Ada", `{"bio":"pioneer"}`, "4.5", "true", "2024-03-01T10:30:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := store.Save(context.Background(), map[string]any{
		"id":        7,
		"email":     "ada@example.com",
		"name":      "Ada",
		"profile":   map[string]any{"bio": "pioneer"},
		"rating":    rating,
		"active":    true,
		"joined_at": joined,
	})
	require.NoError(t, err)
	assert.Equal(t, "7", saved["id"])
	assert.Equal(t, "4.5", saved["rating"])

	profile, ok := saved["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pioneer", profile["bio"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRejectsUnknownAttribute(t *testing.T) {
	store, _ := setupMockStore(t)

	_, err := store.Save(context.Background(), map[string]any{"nickname": "ada"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nickname")
}

func TestDeleteMissingRecord(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`DELETE FROM authors WHERE id = \$1`).
		WithArgs("404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), "404")
	assert.ErrorIs(t, err, field.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`DELETE FROM authors WHERE id = \$1`).
		WithArgs("7").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Delete(context.Background(), 7)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertDBError(t *testing.T) {
	assert.Nil(t, convertDBError(nil))
	assert.ErrorIs(t, convertDBError(sql.ErrNoRows), field.ErrNotFound)

	unique := &pgconn.PgError{Code: "23505", Detail: "Key (email) already exists."}
	err := convertDBError(fmt.Errorf("exec: %w", unique))
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.True(t, IsDuplicateKey(err))

	missing := &pgconn.PgError{Code: "42703", Message: `column "nickname" does not exist`}
	assert.ErrorIs(t, convertDBError(missing), field.ErrInvalidSelector)

	badText := &pgconn.PgError{Code: "22P02", Message: "invalid input syntax"}
	assert.ErrorIs(t, convertDBError(badText), field.ErrInvalidSelector)

	other := fmt.Errorf("connection refused")
	assert.Equal(t, other, convertDBError(other))
}

// The round trip below runs against a real SQLite database to prove the
// generated SQL works outside the mock.

func setupSQLiteStore(t *testing.T) *Store {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := New(&Config{
		DB:      db,
		Table:   "posts",
		Columns: []string{"title", "tags", "published_at"},
	})
	require.NoError(t, err)
	require.NoError(t, store.EnsureTable(context.Background()))
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, map[string]any{
		"id":    "a",
		"title": "First",
		"tags":  []any{"go", "sql"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a", first["id"])

	second, err := store.Save(ctx, map[string]any{
		"title":        "Second",
		"published_at": time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, second["id"])

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	matched, err := store.Select(ctx, map[string]any{"title": "First"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, []any{"go", "sql"}, matched[0]["tags"])

	// Saving with an existing primary key updates in place.
	_, err = store.Save(ctx, map[string]any{"id": "a", "title": "First, revised"})
	require.NoError(t, err)

	all, err = store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	matched, err = store.Select(ctx, map[string]any{"title": "First, revised"})
	require.NoError(t, err)
	require.Len(t, matched, 1)

	require.NoError(t, store.Delete(ctx, "a"))
	err = store.Delete(ctx, "a")
	assert.ErrorIs(t, err, field.ErrNotFound)

	all, err = store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteSelectEmptyStore(t *testing.T) {
	store := setupSQLiteStore(t)

	records, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}
