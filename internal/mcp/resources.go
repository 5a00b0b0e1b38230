package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	sessionsURI      = "sqldesk://sessions"
	connectionPrefix = "sqldesk://connection/"
	objectsSuffix    = "/objects"
)

func (s *Server) registerResources() {
	// ── sqldesk://sessions ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		sessionsURI,
		"Open Sessions",
		mcp.WithMIMEType("application/json"),
	), s.handleSessionsResource)

	// ── sqldesk://connection/{id}/objects ──────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			connectionPrefix+"{id}"+objectsSuffix,
			"Schema Objects of a Session",
		),
		s.handleObjectsResource,
	)
}

func (s *Server) handleSessionsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, _ := json.MarshalIndent(s.database.Sessions(), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      sessionsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleObjectsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id, err := connectionIDFromURI(uri)
	if err != nil {
		return nil, err
	}

	objs, err := s.database.GetObjects(ctx, id, "")
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(objs, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// connectionIDFromURI extracts the id from "sqldesk://connection/{id}/objects".
func connectionIDFromURI(uri string) (int64, error) {
	if !strings.HasPrefix(uri, connectionPrefix) || !strings.HasSuffix(uri, objectsSuffix) {
		return 0, fmt.Errorf("unexpected resource URI: %s", uri)
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(uri, connectionPrefix), objectsSuffix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad connection id in URI %s: %w", uri, err)
	}
	return id, nil
}
