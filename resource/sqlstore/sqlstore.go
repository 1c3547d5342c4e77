// Package sqlstore persists resource records in a single SQL table, one
// column per attribute. Values are stored in text form: times as RFC 3339,
// decimals and numbers by their string representation, maps and lists as
// JSON. The field layer re-types values as they render, so the store owns
// bytes, not types. Queries use $n placeholders, which PostgreSQL and
// SQLite drivers both accept.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hydrant-api/hydrant/field"
	"github.com/hydrant-api/hydrant/resource"
)

// ErrDuplicateKey is returned when a save violates a unique constraint.
var ErrDuplicateKey = errors.New("duplicate key")

// IsDuplicateKey returns true if the error is ErrDuplicateKey.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store implements resource.Store over one database table.
type Store struct {
	db      *sql.DB
	table   string
	pkField string
	columns []string
	known   map[string]bool
	logger  *zap.Logger
}

// Config holds the table layout the store manages.
type Config struct {
	// DB is the database connection, managed by the caller.
	DB *sql.DB

	// Table is the table name.
	Table string

	// PrimaryKey names the primary-key column. Defaults to "id".
	PrimaryKey string

	// Columns lists the record attributes the table stores. The primary
	// key is included implicitly.
	Columns []string

	// Logger receives debug-level store events. Defaults to a no-op.
	Logger *zap.Logger
}

// New builds a store over the configured table. Table and column names
// must be plain identifiers; they are interpolated into SQL.
func New(cfg *Config) (*Store, error) {
	if cfg == nil || cfg.DB == nil {
		return nil, fmt.Errorf("sqlstore: database connection is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("sqlstore: table name is required")
	}
	pk := cfg.PrimaryKey
	if pk == "" {
		pk = "id"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	columns := []string{pk}
	known := map[string]bool{pk: true}
	for _, col := range cfg.Columns {
		if known[col] {
			continue
		}
		columns = append(columns, col)
		known[col] = true
	}
	for _, name := range append([]string{cfg.Table}, columns...) {
		if !identPattern.MatchString(name) {
			return nil, fmt.Errorf("sqlstore: %q is not a plain identifier", name)
		}
	}

	return &Store{
		db:      cfg.DB,
		table:   cfg.Table,
		pkField: pk,
		columns: columns,
		known:   known,
		logger:  logger,
	}, nil
}

// EnsureTable creates the table if it does not exist. Every column is
// TEXT; the store's text encoding makes that sufficient.
func (s *Store) EnsureTable(ctx context.Context) error {
	defs := make([]string, 0, len(s.columns))
	for _, col := range s.columns {
		if col == s.pkField {
			defs = append(defs, fmt.Sprintf("%s TEXT PRIMARY KEY", col))
			continue
		}
		defs = append(defs, fmt.Sprintf("%s TEXT", col))
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.table, strings.Join(defs, ", "))

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlstore: creating table %s: %w", s.table, err)
	}
	return nil
}

// Select returns the records matching every selector, ordered by primary
// key. A selector naming an unknown column cannot be applied and reports
// field.ErrInvalidSelector.
func (s *Store) Select(ctx context.Context, selectors map[string]any) ([]map[string]any, error) {
	if err := resource.ValidateSelectors(selectors); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(selectors))
	for k := range selectors {
		if !s.known[k] {
			return nil, fmt.Errorf("%w: no column %s on %s", field.ErrInvalidSelector, k, s.table)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		clauses []string
		args    []any
	)
	for i, k := range keys {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", k, i+1))
		args = append(args, encodeValue(selectors[k]))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(s.columns, ", "), s.table)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s", s.pkField)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, convertDBError(err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// All returns every record, ordered by primary key.
func (s *Store) All(ctx context.Context) ([]map[string]any, error) {
	return s.Select(ctx, nil)
}

// Save upserts a record by its primary key, assigning a fresh UUID when
// the record carries none. Every declared column is written; attributes
// absent from the record become NULL, and an attribute with no column is
// an error rather than silent loss.
func (s *Store) Save(ctx context.Context, record map[string]any) (map[string]any, error) {
	if record == nil {
		return nil, fmt.Errorf("sqlstore: cannot save a nil record")
	}
	for k := range record {
		if !s.known[k] {
			return nil, fmt.Errorf("sqlstore: no column for attribute %q on %s", k, s.table)
		}
	}

	stored := make(map[string]any, len(s.columns))
	pk := record[s.pkField]
	if !field.Truthy(pk) {
		pk = uuid.NewString()
	}
	stored[s.pkField] = encodeValue(pk)

	placeholders := make([]string, 0, len(s.columns))
	args := make([]any, 0, len(s.columns))
	var updates []string
	for i, col := range s.columns {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		if col == s.pkField {
			args = append(args, stored[s.pkField])
			continue
		}
		var encoded any
		if v, ok := record[col]; ok {
			e, err := encodeMapped(col, v)
			if err != nil {
				return nil, err
			}
			encoded = e
		}
		stored[col] = encoded
		args = append(args, encoded)
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		s.table,
		strings.Join(s.columns, ", "),
		strings.Join(placeholders, ", "),
		s.pkField,
		strings.Join(updates, ", "),
	)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("sqlstore: saving into %s: %w", s.table, convertDBError(err))
	}

	s.logger.Debug("saved record",
		zap.String("table", s.table),
		zap.Any("pk", stored[s.pkField]),
	)

	out := make(map[string]any, len(stored))
	for k, v := range stored {
		out[k] = decodeValue(v)
	}
	return out, nil
}

// Delete removes the record whose primary key equals pk.
func (s *Store) Delete(ctx context.Context, pk any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", s.table, s.pkField)

	result, err := s.db.ExecContext(ctx, query, encodeValue(pk))
	if err != nil {
		return fmt.Errorf("sqlstore: deleting from %s: %w", s.table, convertDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: deleting from %s: %w", s.table, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s %v", field.ErrNotFound, s.pkField, pk)
	}

	s.logger.Debug("deleted record",
		zap.String("table", s.table),
		zap.Any("pk", pk),
	)
	return nil
}

// scanRows reads every row into an attribute map, decoding stored text
// back into records.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			record[col] = decodeValue(values[i])
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// encodeValue renders a record value in its stored text form. Nil stays
// NULL; non-scalars marshal to JSON.
func encodeValue(value any) any {
	encoded, err := encodeMapped("", value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return encoded
}

func encodeMapped(col string, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 64), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case decimal.Decimal:
		return v.String(), nil
	case map[string]any, []any, []string, []map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: encoding %q: %w", col, err)
		}
		return string(data), nil
	}
	return fmt.Sprintf("%v", value), nil
}

// decodeValue turns a scanned column back into a record value. JSON
// objects and arrays come back as maps and slices; other text stays text
// for the field layer to re-type.
func decodeValue(raw any) any {
	var s string
	switch v := raw.(type) {
	case nil:
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		// Typed values from drivers with typed columns pass through.
		return raw
	}

	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") {
		var m map[string]any
		if err := json.Unmarshal([]byte(trimmed), &m); err == nil {
			return m
		}
	}
	if strings.HasPrefix(trimmed, "[") {
		var l []any
		if err := json.Unmarshal([]byte(trimmed), &l); err == nil {
			return l
		}
	}
	return s
}

// convertDBError maps driver errors onto the store contract's error
// kinds.
func convertDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return field.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.Detail)
		case "42703": // undefined_column
			return fmt.Errorf("%w: %s", field.ErrInvalidSelector, pgErr.Message)
		case "22P02": // invalid_text_representation
			return fmt.Errorf("%w: %s", field.ErrInvalidSelector, pgErr.Message)
		}
	}
	return err
}
