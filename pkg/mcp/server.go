package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/itops-collator/pkg/client"
	"github.com/rmax-ai/itops-collator/pkg/component"
)

const promptName = "itops-collator-aware"

// Server exposes the collator's query facade over the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server talking to the collator at apiURL.
func NewServer(apiURL string) *Server {
	return NewServerWithClient(client.NewClient(apiURL))
}

func NewServerWithClient(c *client.Client) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"itops-collator",
			"1.0.0",
		),
		apiClient: c,
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"itops://topology",
		"Deployment Topology",
		mcp.WithResourceDescription("Every processing plant with its workshops, work unit processors and endpoints"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadTopology)

	s.mcpServer.AddResource(mcp.NewResource(
		"itops://health",
		"Collator Health",
		mcp.WithResourceDescription("Cache occupancy and last-update times"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadHealth)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"list_processing_plants",
		mcp.WithDescription("List processing plants, sorted and paged."),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		mcp.WithNumber("page_size", mcp.Description("Plants per page (default 100)")),
		mcp.WithString("sort_by", mcp.Description("componentID, name or site")),
		mcp.WithString("sort_order", mcp.Description("asc or desc")),
	), s.handleListProcessingPlants)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_node",
		mcp.WithDescription("Look up any topology node (plant, workshop, work unit processor or endpoint) by component id."),
		mcp.WithString("component_id", mcp.Required(), mcp.Description("The component id")),
	), s.handleGetNode)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_metrics",
		mcp.WithDescription("Fetch the latest metrics snapshot reported by a component."),
		mcp.WithString("component_id", mcp.Required(), mcp.Description("The component id")),
		mcp.WithString("generation", mcp.Description("current (default) or previous")),
	), s.handleGetMetrics)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_pubsub",
		mcp.WithDescription("Fetch the publish/subscribe summary of a processing plant or work unit processor."),
		mcp.WithString("component_id", mcp.Required(), mcp.Description("Plant component id, or WUP subscriber id")),
		mcp.WithString("kind", mcp.Description("processing_plant (default) or work_unit_processor")),
	), s.handleGetPubSub)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_audit_events",
		mcp.WithDescription("Fetch the newest audit journal entries for a component."),
		mcp.WithString("component_id", mcp.Required(), mcp.Description("The component id")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries (default 5)")),
	), s.handleGetAuditEvents)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		promptName,
		mcp.WithPromptDescription("Explains the collator's topology model and the tools that query it"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadTopology(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	g, err := s.apiClient.GetTopology(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch topology: %w", err)
	}
	return jsonResource(request.Params.URI, g)
}

func (s *Server) handleReadHealth(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	h, err := s.apiClient.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch health: %w", err)
	}
	return jsonResource(request.Params.URI, h)
}

func (s *Server) handleListProcessingPlants(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := s.apiClient.ListProcessingPlants(ctx, client.ListOptions{
		Page:      int(mcp.ParseFloat64(request, "page", 0)),
		PageSize:  int(mcp.ParseFloat64(request, "page_size", 0)),
		SortBy:    mcp.ParseString(request, "sort_by", ""),
		SortOrder: mcp.ParseString(request, "sort_order", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	return jsonToolResult(page)
}

func (s *Server) handleGetNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := component.ID(mcp.ParseString(request, "component_id", ""))
	if id.IsEmpty() {
		return mcp.NewToolResultError("component_id is required"), nil
	}
	view, err := s.apiClient.GetNode(ctx, id)
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonToolResult(view)
}

func (s *Server) handleGetMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := component.ID(mcp.ParseString(request, "component_id", ""))
	if id.IsEmpty() {
		return mcp.NewToolResultError("component_id is required"), nil
	}

	get := s.apiClient.GetMetrics
	switch gen := mcp.ParseString(request, "generation", "current"); gen {
	case "current", "":
	case "previous":
		get = s.apiClient.GetPreviousMetrics
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown generation %q", gen)), nil
	}

	snapshot, err := get(ctx, id)
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonToolResult(snapshot)
}

func (s *Server) handleGetPubSub(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := component.ID(mcp.ParseString(request, "component_id", ""))
	if id.IsEmpty() {
		return mcp.NewToolResultError("component_id is required"), nil
	}

	var (
		summary any
		err     error
	)
	switch kind := mcp.ParseString(request, "kind", "processing_plant"); kind {
	case "processing_plant":
		summary, err = s.apiClient.GetProcessingPlantPubSub(ctx, id)
	case "work_unit_processor":
		summary, err = s.apiClient.GetWorkUnitProcessorPubSub(ctx, id)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q", kind)), nil
	}
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonToolResult(summary)
}

func (s *Server) handleGetAuditEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := component.ID(mcp.ParseString(request, "component_id", ""))
	if id.IsEmpty() {
		return mcp.NewToolResultError("component_id is required"), nil
	}
	events, err := s.apiClient.GetAuditEvents(ctx, id, int(mcp.ParseFloat64(request, "limit", 0)))
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonToolResult(events)
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != promptName {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are inspecting an operational-monitoring collator for a distributed processing platform.

Model:
- Processing plant: a deployed component; owns workshops.
- Workshop: a group of work unit processors inside a plant.
- Work unit processor (WUP): a processing step; owns endpoints.
- Endpoint: a network-facing interface of a WUP.
Every node has a component id that is unique across the deployment.

Use 'list_processing_plants' to discover plants and 'get_node' to resolve any id.
'get_metrics' returns the latest metrics snapshot; pass generation=previous to compare with the one before.
'get_pubsub' shows which data flows a plant or WUP publishes or subscribes to.
Node lookups reflect the last index rebuild, so a plant reported moments ago may not resolve yet.
`

	return mcp.NewGetPromptResult(
		promptName,
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonToolResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(id component.ID, err error) *mcp.CallToolResult {
	if errors.Is(err, client.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("nothing known about %s", id))
	}
	return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err))
}
