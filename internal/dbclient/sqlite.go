package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sqldesk/internal/domain"

	_ "modernc.org/sqlite"
)

// ResolveSQLitePath makes a relative sqlite path absolute under baseDir.
func ResolveSQLitePath(path, baseDir string) string {
	if path == ":memory:" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// sqliteConnector implements Connector for a SQLite file. The pool is capped
// at one connection so the change counter belongs to this session.
type sqliteConnector struct {
	*sqlConnector
	name string // file path as given in the profile
	path string // resolved file path
}

func openSQLite(ctx context.Context, p *domain.ConnectionProfile, baseDir string) (*sqliteConnector, error) {
	path := ResolveSQLitePath(p.FilePath, baseDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &sqliteConnector{
		sqlConnector: newSQLConnector("sqlite", db, nil),
		name:         p.FilePath,
		path:         path,
	}, nil
}

// FilePath returns the resolved database file.
func (c *sqliteConnector) FilePath() string { return c.path }

func (c *sqliteConnector) Engine() domain.EngineKind { return domain.EngineSQLite }

func (c *sqliteConnector) ServerVersion(ctx context.Context) (string, error) {
	return c.queryVersion(ctx, "SELECT sqlite_version()")
}

// isSQLiteReadStatement is the SQLite-only dispatch rule: the statement text
// decides, not the result shape.
func isSQLiteReadStatement(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return strings.HasPrefix(q, "select") ||
		strings.HasPrefix(q, "pragma") ||
		strings.HasPrefix(q, "explain")
}

// Execute materializes read statements and takes the column list from the
// first returned row, so an empty result has no columns. Everything else is
// run as a mutation and reports the change counter.
func (c *sqliteConnector) Execute(ctx context.Context, query string, params []any) *QueryResult {
	if !isSQLiteReadStatement(query) {
		return c.execMutation(ctx, query, params)
	}

	rows, err := c.q.QueryContext(ctx, query, params...)
	if err != nil {
		return ErrorResult(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ErrorResult(err)
	}
	data, err := scanRowMaps(rows, cols)
	if err != nil {
		return ErrorResult(err)
	}
	return rowsResult(firstRowKeys(cols, data), data)
}

// execMutation runs a non-read statement. sqlite3_changes() keeps the
// count of the last INSERT, UPDATE or DELETE across DDL, so the count is
// only reported when total_changes() moved.
func (c *sqliteConnector) execMutation(ctx context.Context, query string, params []any) *QueryResult {
	before, err := c.totalChanges(ctx)
	if err != nil {
		return ErrorResult(err)
	}
	res, err := c.q.ExecContext(ctx, query, params...)
	if err != nil {
		return ErrorResult(err)
	}
	after, err := c.totalChanges(ctx)
	if err != nil {
		return ErrorResult(err)
	}
	if after == before {
		return affectedResult(0)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ErrorResult(err)
	}
	return affectedResult(n)
}

func (c *sqliteConnector) totalChanges(ctx context.Context) (int64, error) {
	var n int64
	if err := c.q.QueryRowContext(ctx, "SELECT total_changes()").Scan(&n); err != nil {
		return 0, fmt.Errorf("read change counter: %w", err)
	}
	return n, nil
}

// firstRowKeys lists the distinct keys of the first row in result order.
func firstRowKeys(cols []string, data []map[string]any) []string {
	if len(data) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(cols))
	keys := make([]string, 0, len(cols))
	for _, col := range cols {
		if _, ok := data[0][col]; ok && !seen[col] {
			seen[col] = true
			keys = append(keys, col)
		}
	}
	return keys
}

func (c *sqliteConnector) ListObjects(ctx context.Context, kind ObjectKind) ([]SchemaObject, error) {
	objs := []SchemaObject{}
	if kind.wants(ObjectTable) {
		found, err := c.queryObjects(ctx, ObjectTable,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
		if err != nil {
			return nil, err
		}
		objs = append(objs, found...)
	}
	if kind.wants(ObjectView) {
		found, err := c.queryObjects(ctx, ObjectView,
			`SELECT name FROM sqlite_master WHERE type = 'view' ORDER BY name`)
		if err != nil {
			return nil, err
		}
		objs = append(objs, found...)
	}
	return objs, nil
}

func (c *sqliteConnector) ListColumns(ctx context.Context, table, _ string) ([]ColumnInfo, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	cols := []ColumnInfo{}
	for rows.Next() {
		var (
			ci          ColumnInfo
			notNull, pk int
			dflt        sql.NullString
		)
		if err := rows.Scan(&ci.Name, &ci.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		ci.Nullable = notNull == 0
		ci.IsPrimary = pk > 0
		ci.DefaultValue = nullString(dflt)
		cols = append(cols, ci)
	}
	return cols, rows.Err()
}

// ProcedureDefinition is always empty: SQLite has no stored routines.
func (c *sqliteConnector) ProcedureDefinition(context.Context, string, string) (string, error) {
	return "", nil
}

// ListDatabases reports the open file as the only database.
func (c *sqliteConnector) ListDatabases(context.Context) ([]string, error) {
	if c.name == "" {
		return []string{"main"}, nil
	}
	return []string{c.name}, nil
}
