package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"shoe-tracker/internal/config"
	"shoe-tracker/internal/tracker"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Server struct {
	tracker *tracker.Manager
	cfg     config.ServerConfig

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(mgr *tracker.Manager, cfg config.ServerConfig) *Server {
	mcpSrv := server.NewMCPServer(
		"shoe-tracker",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		tracker:    mgr,
		cfg:        cfg,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerStatusTools()
	s.registerControlTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"shoe://{name}/view",
			"shoe_view",
			mcp.WithTemplateDescription("Detailed pile, count and zone view of one shoe"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := string(request.Params.URI)
			if !strings.HasPrefix(raw, "shoe://") || !strings.HasSuffix(raw, "/view") {
				return nil, nil
			}
			name := strings.TrimSuffix(strings.TrimPrefix(raw, "shoe://"), "/view")
			if unescaped, err := url.PathUnescape(name); err == nil {
				name = unescaped
			}
			view, err := s.tracker.Shoe(ctx, normalizeShoeName(name))
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(view)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}

// authControl checks the admin key for tools that change tracker state. An
// empty configured key disables the check.
func (s *Server) authControl(adminKey string) *mcp.CallToolResult {
	if s.cfg.AdminAPIKey == "" {
		return nil
	}
	if strings.TrimSpace(adminKey) != s.cfg.AdminAPIKey {
		return toolError("unauthorized", "invalid admin_key")
	}
	return nil
}
