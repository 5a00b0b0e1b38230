package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"sqldesk/internal/domain"
)

// buildMySQLConfig maps a profile onto a driver config.
func buildMySQLConfig(p *domain.ConnectionProfile) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = p.Username
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	cfg.DBName = p.Database
	cfg.Timeout = p.ConnectTimeout()
	cfg.ParseTime = true
	if p.UseTLS {
		cfg.TLSConfig = "true"
	}
	return cfg
}

// mysqlConnector implements Connector for MySQL over one pinned connection,
// so ROW_COUNT() always refers to the statement this session just ran.
type mysqlConnector struct {
	*sqlConnector
	dbName string
}

func openMySQL(ctx context.Context, p *domain.ConnectionProfile) (*mysqlConnector, error) {
	connector, err := mysql.NewConnector(buildMySQLConfig(p))
	if err != nil {
		return nil, fmt.Errorf("mysql config: %w", err)
	}
	return newMySQLConnector(ctx, sql.OpenDB(connector), p.Database)
}

func newMySQLConnector(ctx context.Context, db *sql.DB, dbName string) (*mysqlConnector, error) {
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	return &mysqlConnector{
		sqlConnector: newSQLConnector("mysql", db, conn),
		dbName:       dbName,
	}, nil
}

func (c *mysqlConnector) Engine() domain.EngineKind { return domain.EngineMySQL }

func (c *mysqlConnector) ServerVersion(ctx context.Context) (string, error) {
	return c.queryVersion(ctx, "SELECT VERSION()")
}

// Execute classifies by what the driver hands back: a result set with
// columns is data, anything else is a mutation whose count comes from
// ROW_COUNT() on the same connection.
func (c *mysqlConnector) Execute(ctx context.Context, query string, params []any) *QueryResult {
	rows, err := c.q.QueryContext(ctx, query, params...)
	if err != nil {
		return ErrorResult(err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return ErrorResult(err)
	}

	if len(cols) == 0 {
		if err := rows.Close(); err != nil {
			return ErrorResult(err)
		}
		var affected int64
		if err := c.q.QueryRowContext(ctx, "SELECT ROW_COUNT()").Scan(&affected); err != nil {
			return ErrorResult(fmt.Errorf("read affected rows: %w", err))
		}
		if affected < 0 {
			affected = 0
		}
		return affectedResult(affected)
	}

	defer rows.Close()
	data, err := scanRowMaps(rows, cols)
	if err != nil {
		return ErrorResult(err)
	}
	return rowsResult(cols, data)
}

func (c *mysqlConnector) ListObjects(ctx context.Context, kind ObjectKind) ([]SchemaObject, error) {
	queries := []struct {
		kind  ObjectKind
		query string
	}{
		{ObjectTable, `SELECT TABLE_NAME FROM information_schema.TABLES
			WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`},
		{ObjectView, `SELECT TABLE_NAME FROM information_schema.TABLES
			WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'VIEW' ORDER BY TABLE_NAME`},
		{ObjectProcedure, `SELECT ROUTINE_NAME FROM information_schema.ROUTINES
			WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'PROCEDURE' ORDER BY ROUTINE_NAME`},
		{ObjectFunction, `SELECT ROUTINE_NAME FROM information_schema.ROUTINES
			WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'FUNCTION' ORDER BY ROUTINE_NAME`},
	}

	objs := []SchemaObject{}
	for _, q := range queries {
		if !kind.wants(q.kind) {
			continue
		}
		found, err := c.queryObjects(ctx, q.kind, q.query, c.dbName)
		if err != nil {
			return nil, err
		}
		objs = append(objs, found...)
	}
	return objs, nil
}

func (c *mysqlConnector) ListColumns(ctx context.Context, table, _ string) ([]ColumnInfo, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_KEY, COLUMN_DEFAULT, COLUMN_COMMENT
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, c.dbName, table)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	cols := []ColumnInfo{}
	for rows.Next() {
		var (
			ci            ColumnInfo
			nullable, key string
			dflt, comment sql.NullString
		)
		if err := rows.Scan(&ci.Name, &ci.Type, &nullable, &key, &dflt, &comment); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		ci.Nullable = nullable == "YES"
		ci.IsPrimary = key == "PRI"
		ci.DefaultValue = nullString(dflt)
		ci.Comment = nonEmpty(comment)
		cols = append(cols, ci)
	}
	return cols, rows.Err()
}

func (c *mysqlConnector) ProcedureDefinition(ctx context.Context, name, _ string) (string, error) {
	var def sql.NullString
	err := c.q.QueryRowContext(ctx, `
		SELECT ROUTINE_DEFINITION FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ? AND ROUTINE_NAME = ?`, c.dbName, name).Scan(&def)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("procedure definition: %w", err)
	}
	return def.String, nil
}

func (c *mysqlConnector) ListDatabases(ctx context.Context) ([]string, error) {
	names, err := c.queryStrings(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return names, nil
}
