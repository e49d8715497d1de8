package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// keymint://keys — every issued API key with its owner
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"keymint://keys",
			"Issued API Keys",
			mcp.WithResourceDescription(
				"List of all issued API keys with status, validity window, "+
					"and owning user (if any).",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleKeysResource,
	)

	// -------------------------------------------------------------------
	// keymint://users — registered users with key counts
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"keymint://users",
			"Registered Users",
			mcp.WithResourceDescription(
				"List of all users with their current key and total key count.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleUsersResource,
	)
}

func (s *MCPServer) handleKeysResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	keys, err := s.keys.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	b, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keys: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "keymint://keys",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func (s *MCPServer) handleUsersResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	users, err := s.keys.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	b, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal users: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "keymint://users",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
