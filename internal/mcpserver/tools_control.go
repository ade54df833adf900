package mcpserver

import (
	"context"

	"shoe-tracker/internal/shuffle"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerControlTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"set_active_shoe",
			mcp.WithDescription("Route future snapshots to the named shoe"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Shoe 1|Shoe 2 (or 1|2)")),
			mcp.WithString("admin_key", mcp.Description("Required when the server has an admin key")),
		),
		s.handleSetActiveShoe,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"end_shoe",
			mcp.WithDescription("End the active shoe and prepare the other one; returns busy while a shuffle runs"),
			mcp.WithNumber("iterations", mcp.Description("Shuffle passes, default from server config")),
			mcp.WithNumber("chunks", mcp.Description("Cut chunks per pass, default from server config")),
			mcp.WithNumber("seed", mcp.Description("Optional seed for a reproducible shuffle")),
			mcp.WithString("admin_key", mcp.Description("Required when the server has an admin key")),
		),
		s.handleEndShoe,
	)
}

func (s *Server) handleSetActiveShoe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authControl(request.GetString("admin_key", "")); errResp != nil {
		return errResp, nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	name = normalizeShoeName(name)
	if err := s.tracker.SetActive(ctx, name); err != nil {
		return mapTrackerError(err), nil
	}
	return toolResult(map[string]any{"ok": true, "active_shoe": name}), nil
}

func (s *Server) handleEndShoe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if errResp := s.authControl(request.GetString("admin_key", "")); errResp != nil {
		return errResp, nil
	}
	p := shuffle.Params{
		Iterations: request.GetInt("iterations", s.cfg.ShuffleIterations),
		Chunks:     request.GetInt("chunks", s.cfg.ShuffleChunks),
	}
	if args := request.GetArguments(); args["seed"] != nil {
		seed := int64(request.GetFloat("seed", 0))
		p.Seed = &seed
	}
	res, err := s.tracker.EndCurrentAndPrepareOther(ctx, p)
	if err != nil {
		return mapTrackerError(err), nil
	}
	if res.Busy {
		return toolError("shuffle_busy", "a shuffle is already in progress for "+res.Prepared), nil
	}
	return toolResult(res), nil
}
