package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/metrics"
	"github.com/rmax-ai/itops-collator/pkg/pubsub"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

// ErrNotFound is returned when the collator has nothing for the given id.
var ErrNotFound = errors.New("not found")

// Client is the collator SDK client used by reporters and tooling.
type Client struct {
	endpoint   string
	http       *http.Client
	backoff    BackoffStrategy
	maxRetries int
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBackoff(b BackoffStrategy) Option {
	return func(c *Client) { c.backoff = b }
}

// WithReportInterval sizes the retry backoff to how often the caller pushes
// reports. See ReportBackoff.
func WithReportInterval(d time.Duration) Option {
	return func(c *Client) { c.backoff = ReportBackoff(d) }
}

// WithMaxRetries sets how many times a failed call is retried. Zero disables
// retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a new collator client.
// endpoint defaults to "http://127.0.0.1:8090" if empty.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8090"
	}
	c := &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff:    DefaultBackoff(),
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the base URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Ping checks the health of the collator.
func (c *Client) Ping(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/v1/health", nil, &h)
	return h, err
}

// PushMetrics reports one metrics snapshot.
func (c *Client) PushMetrics(ctx context.Context, snapshot *metrics.Snapshot) error {
	return c.do(ctx, http.MethodPost, "/v1/reports/metrics", snapshot, nil)
}

// PushTopology reports plant subtrees and returns the rebuilt index size.
func (c *Client) PushTopology(ctx context.Context, graph *topology.Graph) (int, error) {
	var resp acceptedResponse
	if err := c.do(ctx, http.MethodPost, "/v1/reports/topology", graph, &resp); err != nil {
		return 0, err
	}
	if resp.IndexedNodes == nil {
		return 0, nil
	}
	return *resp.IndexedNodes, nil
}

// PushPubSub reports subscription summaries.
func (c *Client) PushPubSub(ctx context.Context, report *PubSubReport) error {
	return c.do(ctx, http.MethodPost, "/v1/reports/pubsub", report, nil)
}

// Submit sends a capability envelope. content is marshalled into the
// envelope; a missing RequestID is generated.
func (c *Client) Submit(ctx context.Context, capability string, content any) (*ReportResponse, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report content: %w", err)
	}
	req := ReportRequest{
		RequestID:  uuid.NewString(),
		Capability: capability,
		Content:    raw,
	}

	var resp ReportResponse
	err = c.do(ctx, http.MethodPost, "/v1/reports", req, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest && resp.AssociatedRequestID != "" {
		// Rejected reports still carry a ReportResponse body.
		return &resp, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveProcessingPlant deletes a plant subtree and returns the new index size.
func (c *Client) RemoveProcessingPlant(ctx context.Context, id component.ID) (int, error) {
	var resp acceptedResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/processing-plants/"+url.PathEscape(id.String()), nil, &resp); err != nil {
		return 0, err
	}
	if resp.IndexedNodes == nil {
		return 0, nil
	}
	return *resp.IndexedNodes, nil
}

func (c *Client) GetTopology(ctx context.Context) (*topology.Graph, error) {
	var g topology.Graph
	if err := c.do(ctx, http.MethodGet, "/v1/topology", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) ListProcessingPlants(ctx context.Context, opts ListOptions) (*PlantPage, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.SortBy != "" {
		q.Set("sortBy", opts.SortBy)
	}
	if opts.SortOrder != "" {
		q.Set("sortOrder", opts.SortOrder)
	}
	path := "/v1/processing-plants"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page PlantPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetProcessingPlant(ctx context.Context, id component.ID) (*topology.ProcessingPlant, error) {
	var p topology.ProcessingPlant
	if err := c.do(ctx, http.MethodGet, "/v1/processing-plants/"+url.PathEscape(id.String()), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ListWorkshops(ctx context.Context, plantID component.ID) ([]*topology.Workshop, error) {
	var ws []*topology.Workshop
	if err := c.do(ctx, http.MethodGet, "/v1/processing-plants/"+url.PathEscape(plantID.String())+"/workshops", nil, &ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func (c *Client) GetNode(ctx context.Context, id component.ID) (*NodeView, error) {
	var v NodeView
	if err := c.do(ctx, http.MethodGet, "/v1/nodes/"+url.PathEscape(id.String()), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetMetrics returns the display copy of the current snapshot for any
// component id.
func (c *Client) GetMetrics(ctx context.Context, id component.ID) (*metrics.Snapshot, error) {
	return c.getMetrics(ctx, id, "")
}

// GetPreviousMetrics returns the generation before the current one.
func (c *Client) GetPreviousMetrics(ctx context.Context, id component.ID) (*metrics.Snapshot, error) {
	return c.getMetrics(ctx, id, "previous")
}

func (c *Client) getMetrics(ctx context.Context, id component.ID, generation string) (*metrics.Snapshot, error) {
	path := "/v1/work-unit-processors/" + url.PathEscape(id.String()) + "/metrics"
	if generation != "" {
		path += "?generation=" + generation
	}
	var s metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, path, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) GetProcessingPlantPubSub(ctx context.Context, id component.ID) (*pubsub.ProcessingPlantSubscriptionSummary, error) {
	var s pubsub.ProcessingPlantSubscriptionSummary
	if err := c.do(ctx, http.MethodGet, "/v1/processing-plants/"+url.PathEscape(id.String())+"/pubsub", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) GetWorkUnitProcessorPubSub(ctx context.Context, id component.ID) (*pubsub.WorkUnitProcessorSubscriptionSummary, error) {
	var s pubsub.WorkUnitProcessorSubscriptionSummary
	if err := c.do(ctx, http.MethodGet, "/v1/work-unit-processors/"+url.PathEscape(id.String())+"/pubsub", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetAuditEvents fetches the newest journal entries for a component.
// limit <= 0 uses the server default.
func (c *Client) GetAuditEvents(ctx context.Context, id component.ID, limit int) ([]AuditEvent, error) {
	path := "/v1/audit-events/" + url.PathEscape(id.String())
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var events []AuditEvent
	if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Export downloads a CSV export of the given kind (inventory, metrics or
// audit).
func (c *Client) Export(ctx context.Context, kind string, opts ExportOptions) ([]byte, error) {
	q := url.Values{}
	if !opts.ComponentID.IsEmpty() {
		q.Set("componentID", opts.ComponentID.String())
	}
	if !opts.From.IsZero() {
		q.Set("from", opts.From.UTC().Format(time.RFC3339))
	}
	if !opts.To.IsZero() {
		q.Set("to", opts.To.UTC().Format(time.RFC3339))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/v1/exports/" + url.PathEscape(kind)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var data []byte
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// do performs one call with retries. Network errors and 5xx replies are
// retried with backoff; 4xx replies are returned at once. A *[]byte out
// receives the raw body. A 404 maps to
// ErrNotFound. For other non-2xx replies the body is decoded into out when
// possible and an *APIError is returned.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff.Next(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		retry, err := c.once(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out any) (bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("collator unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if raw, ok := out.(*[]byte); ok {
			*raw = data
			return false, nil
		}
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return false, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return false, nil
	}

	if resp.StatusCode == http.StatusNotFound {
		return false, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	_ = json.Unmarshal(data, apiErr)
	if _, raw := out.(*[]byte); out != nil && !raw {
		_ = json.Unmarshal(data, out)
	}
	return resp.StatusCode >= 500, apiErr
}
