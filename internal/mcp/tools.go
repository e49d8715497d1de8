package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/keymint/keymint/internal/service"
)

// registerTools registers all keymint MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	srv.AddTool(
		mcp.NewTool("keymint_validate_key",
			mcp.WithDescription(
				"Check whether an API key is currently valid. Returns the verdict "+
					"(valid, unknown, inactive, or expired) and, for a valid key, the "+
					"user it belongs to.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("key",
				mcp.Required(),
				mcp.Description("The API key string to check (ak_...)"),
			),
		),
		s.handleValidateKey,
	)

	srv.AddTool(
		mcp.NewTool("keymint_list_keys",
			mcp.WithDescription(
				"List all issued API keys with their status, validity window, and "+
					"owning user. Newest first.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListKeys,
	)

	srv.AddTool(
		mcp.NewTool("keymint_list_users",
			mcp.WithDescription(
				"List all users together with the number of keys ever issued to each.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListUsers,
	)

	srv.AddTool(
		mcp.NewTool("keymint_issue_key",
			mcp.WithDescription(
				"Issue a new API key for a user identified by email. The user is "+
					"created if they do not exist yet; an existing user's name is "+
					"updated to the submitted values. Dates use the YYYY-MM-DD format.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("first_name", mcp.Required(),
				mcp.Description("User's first name")),
			mcp.WithString("last_name", mcp.Required(),
				mcp.Description("User's last name")),
			mcp.WithString("email", mcp.Required(),
				mcp.Description("User's email address, the identity the key is tied to")),
			mcp.WithString("start_date", mcp.Required(),
				mcp.Description("First day the key is valid (YYYY-MM-DD)")),
			mcp.WithString("last_date", mcp.Required(),
				mcp.Description("Last day the key is valid, inclusive (YYYY-MM-DD)")),
		),
		s.handleIssueKey,
	)

	srv.AddTool(
		mcp.NewTool("keymint_revoke_key",
			mcp.WithDescription(
				"Revoke an API key by setting its status to inactive. The key record "+
					"is kept; use the REST DELETE endpoint to remove it entirely.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Numeric ID of the key to revoke"),
			),
		),
		s.handleRevokeKey,
	)
}

func (s *MCPServer) handleValidateKey(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	token, err := request.RequireString("key")
	if err != nil {
		return toolError("missing required parameter %q", "key")
	}

	type verdict struct {
		Valid  bool        `json:"valid"`
		Reason string      `json:"reason,omitempty"`
		User   interface{} `json:"user,omitempty"`
	}

	key, err := s.keys.CheckKey(ctx, token)
	switch {
	case err == nil:
		return successJSON(verdict{Valid: true, User: key.Owner()})
	case errors.Is(err, service.ErrKeyUnknown):
		return successJSON(verdict{Valid: false, Reason: "unknown key"})
	case errors.Is(err, service.ErrKeyInactive):
		return successJSON(verdict{Valid: false, Reason: "key is inactive"})
	case errors.Is(err, service.ErrKeyExpired):
		return successJSON(verdict{Valid: false, Reason: "key has expired"})
	}
	return toolError("Failed to check key: %v", err)
}

func (s *MCPServer) handleListKeys(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	keys, err := s.keys.List(ctx)
	if err != nil {
		return toolError("Failed to list keys: %v", err)
	}
	return successJSON(keys)
}

func (s *MCPServer) handleListUsers(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	users, err := s.keys.ListUsers(ctx)
	if err != nil {
		return toolError("Failed to list users: %v", err)
	}
	return successJSON(users)
}

func (s *MCPServer) handleIssueKey(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	req := service.IssueRequest{
		FirstName: request.GetString("first_name", ""),
		LastName:  request.GetString("last_name", ""),
		Email:     request.GetString("email", ""),
		StartDate: request.GetString("start_date", ""),
		LastDate:  request.GetString("last_date", ""),
	}

	key, user, err := s.keys.Issue(ctx, req)
	if err != nil {
		return toolError("Failed to issue key: %v", err)
	}
	return successJSON(map[string]interface{}{
		"apikey": key,
		"user":   user,
	})
}

func (s *MCPServer) handleRevokeKey(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := request.RequireInt("id")
	if err != nil {
		return toolError("missing required parameter %q", "id")
	}

	key, err := s.keys.UpdateStatus(ctx, int64(id), "inactive")
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return toolError("No key with ID %d", id)
		}
		return toolError("Failed to revoke key: %v", err)
	}
	return successJSON(key)
}

// successJSON marshals data as indented JSON into a text tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way are
// visible to the LLM so it can self-correct; they do NOT terminate the MCP
// session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{ReadOnlyHint: boolPtr(false)}
}

func boolPtr(b bool) *bool { return &b }
