package mcpserver

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"sqldesk/internal/domain"
)

// decodeArgs maps tool arguments onto target through their JSON form.
func decodeArgs(args map[string]any, target any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// profileFromRequest reads a connection profile from the flat tool arguments.
func profileFromRequest(req mcp.CallToolRequest) (domain.ConnectionProfile, error) {
	var p domain.ConnectionProfile
	if err := decodeArgs(req.GetArguments(), &p); err != nil {
		return p, fmt.Errorf("%w: bad profile: %v", domain.ErrValidation, err)
	}
	return p, nil
}

// connectionID reads the required "id" argument.
func connectionID(req mcp.CallToolRequest) (int64, error) {
	switch v := req.GetArguments()["id"].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("id must be an integer, got %v", v)
		}
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("id is required")
	}
}

// profileToolOptions are the tool arguments describing a connection profile.
func profileToolOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("id", mcp.Description("Connection id chosen by the caller"), mcp.Required()),
		mcp.WithString("engine",
			mcp.Description("Database engine"),
			mcp.Enum(string(domain.EngineMySQL), string(domain.EnginePostgres), string(domain.EngineSQLite)),
			mcp.Required(),
		),
		mcp.WithString("name", mcp.Description("Display name")),
		mcp.WithString("host", mcp.Description("Server host (mysql, postgresql)")),
		mcp.WithNumber("port", mcp.Description("Server port (mysql, postgresql)")),
		mcp.WithString("username", mcp.Description("User name")),
		mcp.WithString("password", mcp.Description("Password")),
		mcp.WithString("database", mcp.Description("Database name (mysql, postgresql)")),
		mcp.WithString("filePath", mcp.Description("Database file (sqlite); relative paths resolve under the data directory")),
		mcp.WithBoolean("useTLS", mcp.Description("Require TLS")),
		mcp.WithNumber("timeout", mcp.Description("Connect timeout in seconds (default 10)")),
	}
}
