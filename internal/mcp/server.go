package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	"sqldesk/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionNotification is the method of the notification carrying session events.
const SessionNotification = "notifications/sqldesk/session"

// Server is the MCP server for sqldesk. It exposes the connection registry
// as tools, resources and prompts.
type Server struct {
	mcp      *server.MCPServer
	database *service.DatabaseService
}

// Deps holds the dependencies passed from the app layer to the MCP server.
type Deps struct {
	Name     string
	Version  string
	Database *service.DatabaseService
	Notifier *Notifier // optional; bound to this server by New
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{database: deps.Database}

	name := deps.Name
	if name == "" {
		name = "sqldesk"
	}
	version := deps.Version
	if version == "" {
		version = "1.0.0"
	}
	s.mcp = server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerConnectionTools()
	s.registerSchemaTools()
	s.registerQueryTools()
	s.registerResources()
	s.registerPrompts()

	if deps.Notifier != nil {
		deps.Notifier.bind(s.mcp)
	}
	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// ── Notifier ───────────────────────────────────────────────

// Notifier forwards registry events to connected MCP clients. It is created
// before the server so the registry can be built first, and drops events
// until New binds it.
type Notifier struct {
	srv atomic.Pointer[server.MCPServer]
}

func (n *Notifier) bind(srv *server.MCPServer) { n.srv.Store(srv) }

func (n *Notifier) Emit(_ context.Context, event string, data any) {
	srv := n.srv.Load()
	if srv == nil {
		return
	}
	srv.SendNotificationToAllClients(SessionNotification, map[string]any{
		"event": event,
		"data":  data,
	})
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult reports a failed operation to the client as a tool error.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
