package dbclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"sqldesk/internal/domain"
)

// buildPostgresConnString constructs a keyword/value connection string.
func buildPostgresConnString(p *domain.ConnectionProfile) string {
	sslMode := "disable"
	if p.UseTLS {
		sslMode = "require"
	}
	pairs := []struct{ key, value string }{
		{"host", p.Host},
		{"port", fmt.Sprint(p.Port)},
		{"user", p.Username},
		{"password", p.Password},
		{"dbname", p.Database},
		{"sslmode", sslMode},
		{"connect_timeout", fmt.Sprint(int(p.ConnectTimeout().Seconds()))},
	}
	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		if kv.value == "" {
			continue
		}
		parts = append(parts, kv.key+"="+quoteConnValue(kv.value))
	}
	return strings.Join(parts, " ")
}

// quoteConnValue single-quotes a conn string value, escaping \ and '.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// pgQuerier is the slice of *pgx.Conn used to run statements.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// postgresConnector implements Connector for PostgreSQL on a single
// pgx connection (no pool).
type postgresConnector struct {
	conn *pgx.Conn
	q    pgQuerier
}

func openPostgres(ctx context.Context, p *domain.ConnectionProfile) (*postgresConnector, error) {
	cfg, err := pgx.ParseConfig(buildPostgresConnString(p))
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	cfg.ConnectTimeout = p.ConnectTimeout()

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	return &postgresConnector{conn: conn, q: conn}, nil
}

func (c *postgresConnector) Engine() domain.EngineKind { return domain.EnginePostgres }

func (c *postgresConnector) ServerVersion(ctx context.Context) (string, error) {
	var v string
	if err := c.q.QueryRow(ctx, "SELECT version()").Scan(&v); err != nil {
		return "", fmt.Errorf("postgres liveness: %w", err)
	}
	return v, nil
}

func (c *postgresConnector) Execute(ctx context.Context, query string, params []any) *QueryResult {
	return executePostgres(ctx, c.q, query, params)
}

// executePostgres classifies by the result metadata: no field descriptions
// plus a command tag is a mutation, everything else is data.
func executePostgres(ctx context.Context, q pgQuerier, query string, params []any) *QueryResult {
	args := params
	if len(params) == 0 {
		// simple protocol accepts multi-statement scripts, like psql
		args = []any{pgx.QueryExecModeSimpleProtocol}
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return ErrorResult(err)
	}
	defer rows.Close()

	var data []map[string]any
	var cols []string
	for rows.Next() {
		if cols == nil {
			cols = pgFieldNames(rows)
		}
		values, err := rows.Values()
		if err != nil {
			return ErrorResult(fmt.Errorf("decode row: %w", err))
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if i < len(values) {
				row[col] = formatValue(values[i])
			}
		}
		data = append(data, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ErrorResult(err)
	}

	if cols == nil {
		tag := rows.CommandTag()
		if tag.String() == "" {
			// empty statement: the server sent no result at all
			return rowsResult(nil, nil)
		}
		cols = pgFieldNames(rows)
		if len(cols) == 0 {
			return affectedResult(tag.RowsAffected())
		}
	}
	return rowsResult(cols, data)
}

func pgFieldNames(rows pgx.Rows) []string {
	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func (c *postgresConnector) ListObjects(ctx context.Context, kind ObjectKind) ([]SchemaObject, error) {
	objs := []SchemaObject{}

	if kind.wants(ObjectTable) {
		found, err := c.querySchemaObjects(ctx, `
			SELECT table_name::text, table_schema::text, 'table'
			FROM information_schema.tables
			WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
			  AND table_type = 'BASE TABLE'
			ORDER BY table_schema, table_name`)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		objs = append(objs, found...)
	}

	if kind.wants(ObjectView) {
		found, err := c.querySchemaObjects(ctx, `
			SELECT table_name::text, table_schema::text, 'view'
			FROM information_schema.views
			WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
			ORDER BY table_schema, table_name`)
		if err != nil {
			return nil, fmt.Errorf("list views: %w", err)
		}
		objs = append(objs, found...)
	}

	if kind.wants(ObjectProcedure) || kind.wants(ObjectFunction) {
		found, err := c.querySchemaObjects(ctx, `
			SELECT routine_name::text, routine_schema::text,
			       CASE WHEN routine_type = 'PROCEDURE' THEN 'procedure' ELSE 'function' END
			FROM information_schema.routines
			WHERE routine_schema NOT IN ('pg_catalog', 'information_schema')
			ORDER BY routine_schema, routine_name`)
		if err != nil {
			return nil, fmt.Errorf("list routines: %w", err)
		}
		for _, o := range found {
			if kind.wants(o.Type) {
				objs = append(objs, o)
			}
		}
	}
	return objs, nil
}

func (c *postgresConnector) querySchemaObjects(ctx context.Context, query string) ([]SchemaObject, error) {
	rows, err := c.q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SchemaObject, error) {
		var o SchemaObject
		var kind string
		err := row.Scan(&o.Name, &o.Schema, &kind)
		o.Type = ObjectKind(kind)
		return o, err
	})
}

// ListColumns joins the primary-key constraint and the column comments by
// schema/table name through pg_class, so identifiers needing quotes resolve.
func (c *postgresConnector) ListColumns(ctx context.Context, table, schema string) ([]ColumnInfo, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := c.q.Query(ctx, `
		SELECT
			c.column_name::text,
			c.data_type::text,
			c.is_nullable = 'YES',
			pk.column_name IS NOT NULL,
			c.column_default::text,
			d.description
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			 AND tc.table_schema = kcu.table_schema
			 AND tc.table_name = kcu.table_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_schema = $1::text
			  AND tc.table_name = $2::text
		) pk ON c.column_name = pk.column_name
		LEFT JOIN pg_catalog.pg_namespace ns ON ns.nspname = c.table_schema
		LEFT JOIN pg_catalog.pg_class cls ON cls.relnamespace = ns.oid AND cls.relname = c.table_name
		LEFT JOIN pg_catalog.pg_description d ON d.objoid = cls.oid AND d.objsubid = c.ordinal_position
		WHERE c.table_schema = $1::text AND c.table_name = $2::text
		ORDER BY c.ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ColumnInfo, error) {
		var ci ColumnInfo
		err := row.Scan(&ci.Name, &ci.Type, &ci.Nullable, &ci.IsPrimary, &ci.DefaultValue, &ci.Comment)
		return ci, err
	})
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	if cols == nil {
		cols = []ColumnInfo{}
	}
	return cols, nil
}

func (c *postgresConnector) ProcedureDefinition(ctx context.Context, name, schema string) (string, error) {
	if schema == "" {
		schema = "public"
	}
	var def string
	err := c.q.QueryRow(ctx, `
		SELECT pg_get_functiondef(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON p.pronamespace = n.oid
		WHERE n.nspname = $1::text AND p.proname = $2::text
		LIMIT 1`, schema, name).Scan(&def)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("procedure definition: %w", err)
	}
	return def, nil
}

func (c *postgresConnector) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := c.q.Query(ctx, `
		SELECT datname::text FROM pg_database
		WHERE datistemplate = false
		ORDER BY datname`)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return names, nil
}

func (c *postgresConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), domain.DefaultConnectTimeout)
	defer cancel()
	return c.conn.Close(ctx)
}
