// Package mcp exposes key management over the Model Context Protocol so AI
// agents can issue, inspect, validate, and revoke API keys.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/keymint/keymint/internal/service"
)

// MCPServer wraps the mcp-go server with the keymint tool registrations.
type MCPServer struct {
	keys   *service.KeyService
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with all keymint tools. The
// returned server is ready to serve over stdio or HTTP.
func NewMCPServer(keys *service.KeyService, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		keys:   keys,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"keymint",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)
	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance. Useful for
// advanced configuration or testing.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, the integration path for
// clients that launch the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode on the given
// address (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}
