package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"sqldesk/internal/dbclient"
)

// ── Connection lifecycle ───────────────────────────────────

func (s *Server) registerConnectionTools() {
	s.mcp.AddTool(mcp.NewTool("test_connection",
		append([]mcp.ToolOption{
			mcp.WithDescription("Check that a connection profile can reach its database without keeping a session"),
		}, profileToolOptions()...)...,
	), s.handleTestConnection)

	s.mcp.AddTool(mcp.NewTool("connect",
		append([]mcp.ToolOption{
			mcp.WithDescription("Open a session for a connection profile, replacing any session with the same id"),
		}, profileToolOptions()...)...,
	), s.handleConnect)

	s.mcp.AddTool(mcp.NewTool("disconnect",
		mcp.WithDescription("Close the session for a connection id"),
		mcp.WithNumber("id", mcp.Description("Connection id"), mcp.Required()),
	), s.handleDisconnect)

	s.mcp.AddTool(mcp.NewTool("change_database",
		mcp.WithDescription("Switch a MySQL or PostgreSQL session to another database on the same server"),
		mcp.WithNumber("id", mcp.Description("Connection id"), mcp.Required()),
		mcp.WithString("database", mcp.Description("Target database"), mcp.Required()),
	), s.handleChangeDatabase)

	s.mcp.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List open sessions"),
	), s.handleListSessions)
}

func (s *Server) handleTestConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := profileFromRequest(req)
	if err != nil {
		return nil, err
	}
	return jsonResult(s.database.TestConnection(ctx, p))
}

func (s *Server) handleConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := profileFromRequest(req)
	if err != nil {
		return nil, err
	}
	return jsonResult(s.database.Connect(ctx, p))
}

func (s *Server) handleDisconnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := connectionID(req)
	if err != nil {
		return nil, err
	}
	return jsonResult(s.database.Disconnect(ctx, id))
}

func (s *Server) handleChangeDatabase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := connectionID(req)
	if err != nil {
		return nil, err
	}
	name := req.GetString("database", "")
	return jsonResult(s.database.ChangeDatabase(ctx, id, name))
}

func (s *Server) handleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.database.Sessions())
}

// ── Schema ─────────────────────────────────────────────────

func (s *Server) registerSchemaTools() {
	s.mcp.AddTool(mcp.NewTool("get_objects",
		mcp.WithDescription("List tables, views, procedures and functions of a session's database"),
		mcp.WithNumber("id", mcp.Description("Connection id"), mcp.Required()),
		mcp.WithString("type",
			mcp.Description("Only list objects of this kind"),
			mcp.Enum(string(dbclient.ObjectTable), string(dbclient.ObjectView), string(dbclient.ObjectProcedure), string(dbclient.ObjectFunction)),
		),
	), s.handleGetObjects)

	s.mcp.AddTool(mcp.NewTool("get_table_columns",
		mcp.WithDescription("Describe the columns of a table"),
		mcp.WithNumber("id", mcp.Description("Connection id"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithString("schema", mcp.Description("Schema (postgresql only, default public)")),
	), s.handleGetTableColumns)

	s.mcp.AddTool(mcp.NewTool("get_procedure_definition",
		mcp.WithDescription("Show the source of a stored procedure or function"),
		mcp.WithNumber("id", mcp.Description("Connection id"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Routine name"), mcp.Required()),
		mcp.WithString("schema", mcp.Description("Schema (postgresql only, default public)")),
	), s.handleGetProcedureDefinition)

	s.mcp.AddTool(mcp.NewTool("get_databases",
		mcp.WithDescription("List databases reachable from a session"),
		mcp.WithNumber("id", mcp.Description("Connection id"), mcp.Required()),
	), s.handleGetDatabases)
}

func (s *Server) handleGetObjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := connectionID(req)
	if err != nil {
		return nil, err
	}
	kind, err := dbclient.ParseObjectKind(req.GetString("type", ""))
	if err != nil {
		return errorResult(err), nil
	}
	objs, err := s.database.GetObjects(ctx, id, kind)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(objs)
}

func (s *Server) handleGetTableColumns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := connectionID(req)
	if err != nil {
		return nil, err
	}
	table := req.GetString("table", "")
	if table == "" {
		return nil, fmt.Errorf("table is required")
	}
	cols, err := s.database.GetTableColumns(ctx, id, table, req.GetString("schema", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(cols)
}

func (s *Server) handleGetProcedureDefinition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := connectionID(req)
	if err != nil {
		return nil, err
	}
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	def, err := s.database.GetProcedureDefinition(ctx, id, name, req.GetString("schema", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(def), nil
}

func (s *Server) handleGetDatabases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := connectionID(req)
	if err != nil {
		return nil, err
	}
	names, err := s.database.GetDatabases(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(names)
}

// ── Queries ────────────────────────────────────────────────

func (s *Server) registerQueryTools() {
	s.mcp.AddTool(mcp.NewTool("execute_query",
		mcp.WithDescription("Run one SQL statement. Returns {columns, rows} for result sets, {affectedRows} for changes, or {error}"),
		mcp.WithNumber("id", mcp.Description("Connection id"), mcp.Required()),
		mcp.WithString("query", mcp.Description("SQL statement"), mcp.Required()),
		mcp.WithArray("params", mcp.Description("Positional parameters (? for mysql/sqlite, $1.. for postgresql)")),
	), s.handleExecuteQuery)
}

func (s *Server) handleExecuteQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := connectionID(req)
	if err != nil {
		return nil, err
	}
	query := req.GetString("query", "")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	params, _ := req.GetArguments()["params"].([]any)
	return jsonResult(s.database.ExecuteQuery(ctx, id, query, params))
}
