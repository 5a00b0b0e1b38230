package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("explore_database",
		mcp.WithPromptDescription("Walk through the schema of an open session"),
		mcp.WithArgument("id",
			mcp.ArgumentDescription("Connection id of an open session"),
			mcp.RequiredArgument(),
		),
	), s.handleExploreDatabasePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("explain_routine",
		mcp.WithPromptDescription("Read and explain a stored procedure or function"),
		mcp.WithArgument("id",
			mcp.ArgumentDescription("Connection id of an open session"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("name",
			mcp.ArgumentDescription("Routine name"),
			mcp.RequiredArgument(),
		),
	), s.handleExplainRoutinePrompt)
}

func (s *Server) handleExploreDatabasePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id := req.Params.Arguments["id"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Explore the database behind connection %s", id),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Explore the database open as connection %s. Follow these steps:

1. Use get_databases to see which databases the server offers
2. Use get_objects to list tables and views
3. For the most relevant tables, use get_table_columns to read their columns and primary keys
4. Run small read-only queries with execute_query (add LIMIT) to sample data

Summarize the schema: main entities, how they relate, and anything unusual.`, id),
				},
			},
		},
	}, nil
}

func (s *Server) handleExplainRoutinePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id := req.Params.Arguments["id"]
	name := req.Params.Arguments["name"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Explain routine %s", name),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Explain the stored routine "%s" on connection %s.

1. Use get_procedure_definition to read its source
2. Use get_table_columns for every table it touches
3. Describe its inputs, what it reads and writes, and its failure modes`, name, id),
				},
			},
		},
	}, nil
}
