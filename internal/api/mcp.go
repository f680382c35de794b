package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Data-Wise/atlas-sub001/internal/registry"
	"github.com/Data-Wise/atlas-sub001/internal/storage"
	"github.com/Data-Wise/atlas-sub001/internal/triage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store  *storage.Store
	Triage *triage.Triager
	Syncer SyncRunner
	// Roots are the default scan roots for the registry_sync tool.
	Roots []string
}

// NewMCPServer creates an MCP server with the atlas tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"atlas",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("atlas — local project registry and capture inbox for quick notes, ideas, and tasks."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("capture_add",
			mcp.WithDescription("Add a quick capture (idea, task, bug, note, or question) to the inbox."),
			mcp.WithString("content", mcp.Description("The capture text"), mcp.Required()),
			mcp.WithString("type", mcp.Description("Capture type: idea, task, bug, note, question (default note)")),
			mcp.WithArray("tags", mcp.Description("Optional tags")),
		),
		mcpCaptureAdd(deps),
	)

	s.AddTool(
		mcp.NewTool("capture_next",
			mcp.WithDescription("Return the oldest inbox capture awaiting triage."),
		),
		mcpCaptureNext(deps),
	)

	s.AddTool(
		mcp.NewTool("capture_assign",
			mcp.WithDescription("Assign an inbox capture to a project (by project id or path) and mark it triaged."),
			mcp.WithString("id", mcp.Description("Capture id"), mcp.Required()),
			mcp.WithString("project", mcp.Description("Project id or path"), mcp.Required()),
			mcp.WithString("type", mcp.Description("Optional capture type override")),
		),
		mcpCaptureAssign(deps),
	)

	s.AddTool(
		mcp.NewTool("registry_sync",
			mcp.WithDescription("Reconcile the project registry with the configured root directories."),
			mcp.WithBoolean("dryRun", mcp.Description("Preview changes without writing (default false)")),
			mcp.WithBoolean("removeOrphans", mcp.Description("Delete registry entries whose directory vanished (default false)")),
		),
		mcpRegistrySync(deps),
	)

	s.AddTool(
		mcp.NewTool("project_list",
			mcp.WithDescription("List all registered projects."),
		),
		mcpProjectList(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"atlas://projects",
			"Registered Projects",
			mcp.WithResourceDescription("All registered projects as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProjects(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"atlas://inbox",
			"Capture Inbox",
			mcp.WithResourceDescription("Captures currently awaiting triage"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceInbox(deps),
	)

	return s
}

func mcpCaptureAdd(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		capType := req.GetString("type", triage.TypeNote)
		if !triage.ValidType(capType) {
			return mcpError(fmt.Sprintf("invalid capture type %q", capType)), nil
		}

		c := triage.Capture{
			ID:        uuid.New().String(),
			Type:      capType,
			Status:    triage.StatusInbox,
			Content:   content,
			Tags:      req.GetStringSlice("tags", nil),
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveCapture(c); err != nil {
			return mcpError(fmt.Sprintf("failed to save capture: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Captured %s %s", c.Type, c.ID)), nil
	}
}

func mcpCaptureNext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c, err := deps.Triage.NextItem()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get next capture: %v", err)), nil
		}
		if c == nil {
			return mcpText("Inbox is empty."), nil
		}

		b, err := json.Marshal(c)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal capture: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCaptureAssign(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		project, err := req.RequireString("project")
		if err != nil {
			return mcpError("project is required"), nil
		}

		c, err := deps.Triage.Assign(id, project, triage.AssignOptions{Type: req.GetString("type", "")})
		if err != nil {
			return mcpError(fmt.Sprintf("assign failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Assigned capture %s to %s", c.ID, c.Project)), nil
	}
}

func mcpRegistrySync(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := deps.Syncer.Sync(ctx, registry.Options{
			RootPaths:     deps.Roots,
			DryRun:        req.GetBool("dryRun", false),
			RemoveOrphans: req.GetBool("removeOrphans", false),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("sync failed: %v", err)), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpProjectList(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects, err := deps.Store.AllProjects()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list projects: %v", err)), nil
		}
		if projects == nil {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(projects)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal projects: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceProjects(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		projects, err := deps.Store.AllProjects()
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}

		b, err := json.Marshal(projects)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal projects: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceInbox(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		captures, err := deps.Store.CapturesByStatus(triage.StatusInbox)
		if err != nil {
			return nil, fmt.Errorf("failed to list inbox: %w", err)
		}

		b, err := json.Marshal(captures)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal captures: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
