package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/itops-collator/pkg/metrics"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

func fastBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{Base: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","collator":{"processingPlants":3,"auditJournal":true}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	h, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 3, h.Collator.ProcessingPlants)
	assert.True(t, h.Collator.AuditJournalConfigured)
}

func TestClient_PushTopology(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/reports/topology", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var g topology.Graph
		require.NoError(t, json.NewDecoder(r.Body).Decode(&g))
		assert.Len(t, g.ProcessingPlants, 1)

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"accepted","indexedNodes":4}`))
	}))
	defer server.Close()

	g := topology.NewGraph()
	g.AddProcessingPlant(&topology.ProcessingPlant{NodeMeta: topology.NodeMeta{ID: "p1"}})

	n, err := NewClient(server.URL).PushTopology(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"internal_server_error"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, WithBackoff(fastBackoff()), WithMaxRetries(3))
	err := c.PushMetrics(context.Background(), &metrics.Snapshot{ComponentID: "wup-1"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"audit_journal_disabled"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, WithBackoff(fastBackoff()), WithMaxRetries(2))
	_, err := c.GetAuditEvents(context.Background(), "wup-1", 0)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "audit_journal_disabled", apiErr.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_report","reason":"invalid report: metrics snapshot without component id"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, WithBackoff(fastBackoff()))
	err := c.PushMetrics(context.Background(), &metrics.Snapshot{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid_report", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "without component id")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/nodes/a%2Fb", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"node_not_found"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetNode(context.Background(), "a/b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(url, WithBackoff(fastBackoff()), WithMaxRetries(1))
	_, err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 2 attempts")
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(server.URL, WithBackoff(&ExponentialBackoff{Base: time.Hour, Max: time.Hour, Factor: 1}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.GetTopology(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Submit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ReportRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.RequestID)

		resp := ReportResponse{AssociatedRequestID: req.RequestID, Successful: req.Capability == CapabilityMetrics}
		if !resp.Successful {
			w.WriteHeader(http.StatusBadRequest)
			resp.ResponseContent = "unsupported capability"
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewClient(server.URL)

	resp, err := c.Submit(context.Background(), CapabilityMetrics, metrics.Snapshot{ComponentID: "wup-1"})
	require.NoError(t, err)
	assert.True(t, resp.Successful)

	resp, err = c.Submit(context.Background(), "ITOps.Other", struct{}{})
	require.NoError(t, err, "rejections are reported in the response")
	assert.False(t, resp.Successful)
	assert.Equal(t, "unsupported capability", resp.ResponseContent)
}

func TestClient_ListProcessingPlantsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "10", q.Get("pageSize"))
		assert.Equal(t, "site", q.Get("sortBy"))
		assert.Equal(t, "desc", q.Get("sortOrder"))
		w.Write([]byte(`{"items":[{"componentID":"p1","site":"s"}],"page":2,"pageSize":10,"total":11}`))
	}))
	defer server.Close()

	page, err := NewClient(server.URL).ListProcessingPlants(context.Background(), ListOptions{Page: 2, PageSize: 10, SortBy: "site", SortOrder: "desc"})
	require.NoError(t, err)
	assert.Equal(t, 11, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "s", page.Items[0].Site)
}

func TestClient_Export(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/exports/audit", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "wup-1", q.Get("componentID"))
		assert.Equal(t, "2026-03-01T00:00:00Z", q.Get("from"))
		assert.Empty(t, q.Get("to"))
		assert.Equal(t, "50", q.Get("limit"))
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("event_id\ne1\n"))
	}))
	defer server.Close()

	data, err := NewClient(server.URL).Export(context.Background(), "audit", ExportOptions{
		ComponentID: "wup-1",
		From:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Limit:       50,
	})
	require.NoError(t, err)
	assert.Equal(t, "event_id\ne1\n", string(data))
}

func TestClient_ExportRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"audit_journal_disabled"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, WithMaxRetries(0)).Export(context.Background(), "audit", ExportOptions{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "audit_journal_disabled", apiErr.Code)
}

func TestNodeView_Decode(t *testing.T) {
	v := NodeView{Kind: topology.KindEndpoint, Node: json.RawMessage(`{"componentID":"ep","port":8443}`)}
	n, err := v.Decode()
	require.NoError(t, err)
	ep, ok := n.(*topology.Endpoint)
	require.True(t, ok)
	assert.Equal(t, 8443, ep.Port)

	_, err = (&NodeView{Kind: "galaxy"}).Decode()
	assert.Error(t, err)
}

func TestClient_WithReportInterval(t *testing.T) {
	c := NewClient("", WithReportInterval(time.Minute))
	b, ok := c.backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, b.Base)
	assert.Equal(t, 30*time.Second, b.Max)

	assert.Equal(t, DefaultBackoff(), NewClient("").backoff)
}
