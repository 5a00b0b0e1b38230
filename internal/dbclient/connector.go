package dbclient

import (
	"context"
	"encoding/json"
	"fmt"

	"sqldesk/internal/domain"
)

// ObjectKind is the kind of a schema object listed by ListObjects.
type ObjectKind string

const (
	ObjectTable     ObjectKind = "table"
	ObjectView      ObjectKind = "view"
	ObjectProcedure ObjectKind = "procedure"
	ObjectFunction  ObjectKind = "function"
)

// ParseObjectKind parses a kind filter. The empty string means every kind.
func ParseObjectKind(s string) (ObjectKind, error) {
	switch k := ObjectKind(s); k {
	case "", ObjectTable, ObjectView, ObjectProcedure, ObjectFunction:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown object kind %q", domain.ErrValidation, s)
	}
}

// wants reports whether objects of kind k pass the filter.
func (f ObjectKind) wants(k ObjectKind) bool {
	return f == "" || f == k
}

// SchemaObject is a table, view or routine in the connected database.
type SchemaObject struct {
	Name   string     `json:"name"`
	Type   ObjectKind `json:"type"`
	Schema string     `json:"schema,omitempty"` // postgres only
}

// ColumnInfo describes one column. Type is the engine-native type name.
type ColumnInfo struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Nullable     bool    `json:"nullable"`
	IsPrimary    bool    `json:"isPrimary"`
	DefaultValue *string `json:"defaultValue,omitempty"`
	Comment      *string `json:"comment,omitempty"`
}

// ResultKind tells which shape of a QueryResult is populated.
type ResultKind int

const (
	ResultRows ResultKind = iota
	ResultAffected
	ResultError
)

// QueryResult is the engine-independent outcome of Execute. Exactly one of
// the rows, affected-rows or error shapes is populated, as told by Kind.
type QueryResult struct {
	Kind         ResultKind
	Columns      []string
	Rows         []map[string]any
	AffectedRows int64
	Error        string
}

func rowsResult(columns []string, rows []map[string]any) *QueryResult {
	if columns == nil {
		columns = []string{}
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return &QueryResult{Kind: ResultRows, Columns: columns, Rows: rows}
}

func affectedResult(n int64) *QueryResult {
	return &QueryResult{Kind: ResultAffected, AffectedRows: n}
}

// ErrorResult wraps a failure into the error shape.
func ErrorResult(err error) *QueryResult {
	return &QueryResult{Kind: ResultError, Error: err.Error()}
}

// Err returns the failure of an error-shaped result as an ErrQuery, or nil.
func (r *QueryResult) Err() error {
	if r.Kind != ResultError {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrQuery, r.Error)
}

// MarshalJSON encodes only the populated shape.
func (r *QueryResult) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ResultAffected:
		return json.Marshal(struct {
			AffectedRows int64 `json:"affectedRows"`
		}{r.AffectedRows})
	case ResultError:
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	default:
		res := rowsResult(r.Columns, r.Rows)
		return json.Marshal(struct {
			Columns []string         `json:"columns"`
			Rows    []map[string]any `json:"rows"`
		}{res.Columns, res.Rows})
	}
}

// Connector is a live session handle to one database engine. Every variant
// wraps exactly one physical connection and is not safe for concurrent use;
// the registry serializes calls per connection id.
type Connector interface {
	// Engine reports the engine kind this connector talks to.
	Engine() domain.EngineKind

	// ServerVersion runs the engine's liveness query.
	ServerVersion(ctx context.Context) (string, error)

	// ListObjects returns tables, views and routines, optionally filtered by kind.
	ListObjects(ctx context.Context, kind ObjectKind) ([]SchemaObject, error)

	// ListColumns returns column metadata for a table. schema is only
	// meaningful for postgres.
	ListColumns(ctx context.Context, table, schema string) ([]ColumnInfo, error)

	// Execute runs one statement. Failures come back as the error shape,
	// never as a Go error.
	Execute(ctx context.Context, query string, params []any) *QueryResult

	// ProcedureDefinition returns the source of a stored routine, or "".
	ProcedureDefinition(ctx context.Context, name, schema string) (string, error)

	// ListDatabases enumerates databases reachable from this server.
	ListDatabases(ctx context.Context) ([]string, error)

	// Close releases the native handle.
	Close() error
}

// Options carries process-level settings that affect how profiles are opened.
type Options struct {
	// SQLiteDir is the base directory for relative sqlite file paths.
	SQLiteDir string
}

// OpenFunc opens a connector for a profile. Open is the production
// implementation; tests substitute their own.
type OpenFunc func(ctx context.Context, p *domain.ConnectionProfile, opts Options) (Connector, error)

// Open connects to the database described by p. The profile timeout bounds
// the connect and the liveness check only; later calls use driver defaults.
// The profile must already be validated.
func Open(ctx context.Context, p *domain.ConnectionProfile, opts Options) (Connector, error) {
	ctx, cancel := context.WithTimeout(ctx, p.ConnectTimeout())
	defer cancel()

	var (
		c   Connector
		err error
	)
	switch p.Engine {
	case domain.EngineMySQL:
		c, err = openMySQL(ctx, p)
	case domain.EnginePostgres:
		c, err = openPostgres(ctx, p)
	case domain.EngineSQLite:
		c, err = openSQLite(ctx, p, opts.SQLiteDir)
	default:
		return nil, fmt.Errorf("%w: unsupported engine %q", domain.ErrValidation, p.Engine)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	return c, nil
}
