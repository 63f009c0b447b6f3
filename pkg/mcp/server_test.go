package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/itops-collator/pkg/client"
)

func newAPI(t *testing.T, routes map[string]string) *Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		body, ok := routes[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not_found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return NewServerWithClient(client.NewClient(ts.URL, client.WithMaxRetries(0)))
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestMCPServer_ReadTopology(t *testing.T) {
	s := newAPI(t, map[string]string{
		"/v1/topology": `{"deploymentName":"aether","processingPlants":{"p1":{"componentID":"p1","workshops":{}}}}`,
	})

	result, err := s.handleReadTopology(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "itops://topology"},
	})
	require.NoError(t, err)
	require.Len(t, result, 1)

	content, ok := result[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", content.MIMEType)

	var g map[string]any
	require.NoError(t, json.Unmarshal([]byte(content.Text), &g))
	assert.Equal(t, "aether", g["deploymentName"])
}

func TestMCPServer_ReadHealth(t *testing.T) {
	s := newAPI(t, map[string]string{"/v1/health": `{"status":"ok","collator":{"indexedNodes":12}}`})

	result, err := s.handleReadHealth(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "itops://health"},
	})
	require.NoError(t, err)
	content := result[0].(mcp.TextResourceContents)
	assert.Contains(t, content.Text, `"indexedNodes": 12`)
}

func TestMCPServer_GetNode(t *testing.T) {
	s := newAPI(t, map[string]string{
		"/v1/nodes/wup-1": `{"kind":"work_unit_processor","node":{"componentID":"wup-1","name":"receiver"}}`,
	})

	result, err := s.handleGetNode(context.Background(), callTool("get_node", map[string]any{"component_id": "wup-1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "receiver")

	result, err = s.handleGetNode(context.Background(), callTool("get_node", map[string]any{"component_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "nothing known about missing")

	result, err = s.handleGetNode(context.Background(), callTool("get_node", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPServer_GetMetrics(t *testing.T) {
	s := newAPI(t, map[string]string{
		"/v1/work-unit-processors/wup-1/metrics":                     `{"componentID":"wup-1","metrics":[{"metricName":"n","metricValue":"2"}]}`,
		"/v1/work-unit-processors/wup-1/metrics?generation=previous": `{"componentID":"wup-1","metrics":[{"metricName":"n","metricValue":"1"}]}`,
	})

	result, err := s.handleGetMetrics(context.Background(), callTool("get_metrics", map[string]any{"component_id": "wup-1"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `"metricValue": "2"`)

	result, err = s.handleGetMetrics(context.Background(), callTool("get_metrics", map[string]any{"component_id": "wup-1", "generation": "previous"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `"metricValue": "1"`)

	result, err = s.handleGetMetrics(context.Background(), callTool("get_metrics", map[string]any{"component_id": "wup-1", "generation": "ancient"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPServer_GetPubSub(t *testing.T) {
	s := newAPI(t, map[string]string{
		"/v1/processing-plants/p1/pubsub":       `{"componentID":"p1"}`,
		"/v1/work-unit-processors/wup-1/pubsub": `{"subscriber":"wup-1"}`,
	})

	result, err := s.handleGetPubSub(context.Background(), callTool("get_pubsub", map[string]any{"component_id": "p1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = s.handleGetPubSub(context.Background(), callTool("get_pubsub", map[string]any{"component_id": "wup-1", "kind": "work_unit_processor"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "wup-1")
}

func TestMCPServer_ListAndAudit(t *testing.T) {
	s := newAPI(t, map[string]string{
		"/v1/processing-plants?page=1&pageSize=2&sortBy=site": `{"items":[],"page":1,"pageSize":2,"total":0}`,
		"/v1/audit-events/p1?limit=3":                         `[{"eventID":"e1","eventType":"report_accepted","componentID":"p1"}]`,
	})

	result, err := s.handleListProcessingPlants(context.Background(), callTool("list_processing_plants", map[string]any{
		"page": 1.0, "page_size": 2.0, "sort_by": "site",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError, resultText(t, result))

	result, err = s.handleGetAuditEvents(context.Background(), callTool("get_audit_events", map[string]any{"component_id": "p1", "limit": 3.0}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "report_accepted")
}

func TestMCPServer_Prompt(t *testing.T) {
	s := NewServer("http://127.0.0.1:0")

	req := mcp.GetPromptRequest{}
	req.Params.Name = promptName
	result, err := s.handleGetPrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)

	req.Params.Name = "other"
	_, err = s.handleGetPrompt(context.Background(), req)
	assert.Error(t, err)
}
