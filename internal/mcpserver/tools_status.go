package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerStatusTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_tracker_status",
			mcp.WithDescription("Active shoe, shuffle state, last dealt card and live counts"),
		),
		s.handleGetTrackerStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_shoe",
			mcp.WithDescription("Pile sizes, counts and zone composition of one shoe"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Shoe 1|Shoe 2 (or 1|2)")),
		),
		s.handleGetShoe,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_rounds",
			mcp.WithDescription("Most recent persisted rounds of one shoe, newest first"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Shoe 1|Shoe 2 (or 1|2)")),
			mcp.WithNumber("limit", mcp.Description("Page size, default 20, max 200")),
		),
		s.handleListRounds,
	)
}

func (s *Server) handleGetTrackerStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(s.tracker.Status()), nil
}

func (s *Server) handleGetShoe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	view, err := s.tracker.Shoe(ctx, normalizeShoeName(name))
	if err != nil {
		return mapTrackerError(err), nil
	}
	return toolResult(view), nil
}

func (s *Server) handleListRounds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	limit := clampLimit(request.GetInt("limit", defaultRoundsLimit))
	items, err := s.tracker.Rounds(ctx, normalizeShoeName(name), limit)
	if err != nil {
		return mapTrackerError(err), nil
	}
	return toolResult(map[string]any{"items": items, "limit": limit}), nil
}
