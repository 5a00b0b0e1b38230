package dbclient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// sqlQueryer is the part of *sql.DB / *sql.Conn the database/sql backed
// connectors need.
type sqlQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqlConnector is the shared base for the MySQL and SQLite connectors.
// Statement classification differs per engine and lives in each variant.
type sqlConnector struct {
	driverName string
	db         *sql.DB
	conn       *sql.Conn // pinned physical connection; nil when db is limited to one
	q          sqlQueryer
}

func newSQLConnector(driverName string, db *sql.DB, conn *sql.Conn) *sqlConnector {
	c := &sqlConnector{driverName: driverName, db: db, conn: conn, q: db}
	if conn != nil {
		c.q = conn
	}
	return c
}

// queryVersion runs a single-value liveness query.
func (c *sqlConnector) queryVersion(ctx context.Context, query string) (string, error) {
	var v string
	if err := c.q.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return "", fmt.Errorf("%s liveness: %w", c.driverName, err)
	}
	return v, nil
}

// queryStrings collects the first column of every row.
func (c *sqlConnector) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// queryObjects lists names from a catalog query and tags them with kind.
func (c *sqlConnector) queryObjects(ctx context.Context, kind ObjectKind, query string, args ...any) ([]SchemaObject, error) {
	names, err := c.queryStrings(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", kind, err)
	}
	objs := make([]SchemaObject, 0, len(names))
	for _, n := range names {
		objs = append(objs, SchemaObject{Name: n, Type: kind})
	}
	return objs, nil
}

func (c *sqlConnector) Close() error {
	var errs []error
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	errs = append(errs, c.db.Close())
	return errors.Join(errs...)
}

// scanRowMaps materializes every remaining row as a column → value map.
// Duplicate column names collapse onto the last value.
func scanRowMaps(rows *sql.Rows, cols []string) ([]map[string]any, error) {
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = formatValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

// formatValue converts a driver value to something JSON renders sensibly.
func formatValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return val
	}
}

// nullString turns a nullable catalog value into an optional field.
func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// nonEmpty is like nullString but also drops empty strings.
func nonEmpty(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return &ns.String
}
