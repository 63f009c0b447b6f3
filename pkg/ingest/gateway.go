// Package ingest decodes inbound reports and applies them to the collation
// caches.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/collator"
	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/logging"
	"github.com/rmax-ai/itops-collator/pkg/metrics"
	"github.com/rmax-ai/itops-collator/pkg/store"
	"github.com/rmax-ai/itops-collator/pkg/telemetry"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"

	capabilityAdmin = "ITOps.Topology.Admin"
)

// Gateway is the only writer of the collation caches. Every call is safe
// to repeat with the same or stale data.
type Gateway struct {
	c      *collator.Collator
	logger *zap.Logger
	now    func() time.Time
}

func NewGateway(c *collator.Collator, logger *zap.Logger) *Gateway {
	return &Gateway{
		c:      c,
		logger: logging.OrNop(logger).Named("ingest"),
		now:    time.Now,
	}
}

// Handle dispatches an envelope by capability. It never returns nil; decode
// and validation failures become unsuccessful responses.
func (g *Gateway) Handle(ctx context.Context, req *ReportRequest) *ReportResponse {
	requestID := UnknownRequestID
	if req != nil && req.RequestID != "" {
		requestID = req.RequestID
	}
	resp := &ReportResponse{AssociatedRequestID: requestID}

	var err error
	switch {
	case req == nil:
		err = fmt.Errorf("%w: empty request", ErrInvalidReport)
	case req.Capability == CapabilityMetrics:
		var snapshot metrics.Snapshot
		if err = decode(req.Content, &snapshot); err == nil {
			err = g.reportMetrics(ctx, requestID, &snapshot)
		}
	case req.Capability == CapabilityTopology:
		var graph topology.Graph
		if err = decode(req.Content, &graph); err == nil {
			var n int
			n, err = g.reportTopology(ctx, requestID, &graph)
			resp.ResponseContent = fmt.Sprintf("indexed %d nodes", n)
		}
	case req.Capability == CapabilityPubSub:
		var report PubSubReport
		if err = decode(req.Content, &report); err == nil {
			err = g.reportPubSub(ctx, requestID, &report)
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedCapability, req.Capability)
		telemetry.ReportsTotal.WithLabelValues("unsupported", outcomeRejected).Inc()
	}

	resp.DateCompleted = g.now().UTC()
	if err != nil {
		g.logger.Warn("report rejected", zap.String("request_id", requestID), zap.Error(err))
		resp.ResponseContent = err.Error()
		return resp
	}
	resp.Successful = true
	return resp
}

// ReportMetrics stores snapshot as the newest generation for its component.
func (g *Gateway) ReportMetrics(ctx context.Context, snapshot *metrics.Snapshot) error {
	return g.reportMetrics(ctx, uuid.NewString(), snapshot)
}

// ReportTopology adds every plant in graph and then rebuilds the node index
// once. It returns the size of the rebuilt index. A report with any invalid
// plant is rejected before anything is applied.
func (g *Gateway) ReportTopology(ctx context.Context, graph *topology.Graph) (int, error) {
	return g.reportTopology(ctx, uuid.NewString(), graph)
}

// ReportPubSub upserts every summary in report.
func (g *Gateway) ReportPubSub(ctx context.Context, report *PubSubReport) error {
	return g.reportPubSub(ctx, uuid.NewString(), report)
}

// RemoveProcessingPlant drops a plant subtree and rebuilds the index so the
// removal is visible to lookups immediately. Unknown plants yield
// ErrUnknownPlant.
func (g *Gateway) RemoveProcessingPlant(ctx context.Context, id component.ID) (int, error) {
	if id.IsEmpty() {
		return 0, fmt.Errorf("%w: missing component id", ErrInvalidReport)
	}
	if !g.c.Topology.RemoveProcessingPlant(id) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPlant, id)
	}
	n := g.c.Topology.RefreshNodeIndex()
	g.audit(ctx, store.EventTypePlantRemoved, id, capabilityAdmin, uuid.NewString(), outcomeAccepted, nil)
	return n, nil
}

func (g *Gateway) reportMetrics(ctx context.Context, requestID string, snapshot *metrics.Snapshot) error {
	if snapshot == nil || snapshot.ComponentID.IsEmpty() {
		return g.reject(ctx, CapabilityMetrics, requestID, "", fmt.Errorf("%w: metrics snapshot without component id", ErrInvalidReport))
	}

	g.c.Metrics.AddMetricSet(snapshot.ComponentID, snapshot)

	telemetry.ReportsTotal.WithLabelValues(CapabilityMetrics, outcomeAccepted).Inc()
	g.audit(ctx, store.EventTypeReportAccepted, snapshot.ComponentID, CapabilityMetrics, requestID, outcomeAccepted,
		map[string]any{"metrics": len(snapshot.Metrics)})
	return nil
}

func (g *Gateway) reportTopology(ctx context.Context, requestID string, graph *topology.Graph) (int, error) {
	if graph == nil {
		return 0, g.reject(ctx, CapabilityTopology, requestID, "", fmt.Errorf("%w: empty topology report", ErrInvalidReport))
	}
	for key, plant := range graph.ProcessingPlants {
		if err := plant.Validate(); err != nil {
			return 0, g.reject(ctx, CapabilityTopology, requestID, key,
				fmt.Errorf("%w: processing plant %q: %v", ErrInvalidReport, key, err))
		}
		if plant.ID != key {
			return 0, g.reject(ctx, CapabilityTopology, requestID, key,
				fmt.Errorf("%w: processing plant keyed %q carries component id %q", ErrInvalidReport, key, plant.ID))
		}
	}

	g.c.Topology.SetDeploymentName(graph.DeploymentName)
	for _, plant := range graph.ProcessingPlants {
		g.c.Topology.AddProcessingPlant(plant)
	}
	n := g.c.Topology.RefreshNodeIndex()

	telemetry.ReportsTotal.WithLabelValues(CapabilityTopology, outcomeAccepted).Inc()
	for _, plant := range graph.ProcessingPlants {
		g.audit(ctx, store.EventTypeReportAccepted, plant.ID, CapabilityTopology, requestID, outcomeAccepted,
			map[string]any{"nodes": plant.NodeCount()})
	}
	g.logger.Debug("topology report applied", zap.String("request_id", requestID),
		zap.Int("plants", len(graph.ProcessingPlants)), zap.Int("indexed_nodes", n))
	return n, nil
}

func (g *Gateway) reportPubSub(ctx context.Context, requestID string, report *PubSubReport) error {
	if report == nil {
		return g.reject(ctx, CapabilityPubSub, requestID, "", fmt.Errorf("%w: empty pubsub report", ErrInvalidReport))
	}

	applied := 0
	for _, summary := range report.ProcessingPlantSummaries {
		if summary == nil || summary.ComponentID.IsEmpty() {
			continue
		}
		g.c.Subscriptions.AddProcessingPlantSummary(summary)
		g.audit(ctx, store.EventTypeReportAccepted, summary.ComponentID, CapabilityPubSub, requestID, outcomeAccepted,
			map[string]any{"keyspace": "processing_plant"})
		applied++
	}
	for _, summary := range report.WorkUnitProcessorSummaries {
		if summary == nil || summary.Subscriber.IsEmpty() {
			continue
		}
		g.c.Subscriptions.AddWorkUnitProcessorSummary(summary)
		g.audit(ctx, store.EventTypeReportAccepted, summary.Subscriber, CapabilityPubSub, requestID, outcomeAccepted,
			map[string]any{"keyspace": "work_unit_processor"})
		applied++
	}

	skipped := len(report.ProcessingPlantSummaries) + len(report.WorkUnitProcessorSummaries) - applied
	if skipped > 0 {
		g.logger.Debug("skipped summaries without key", zap.String("request_id", requestID), zap.Int("skipped", skipped))
	}
	telemetry.ReportsTotal.WithLabelValues(CapabilityPubSub, outcomeAccepted).Inc()
	return nil
}

func (g *Gateway) reject(ctx context.Context, capability, requestID string, id component.ID, err error) error {
	telemetry.ReportsTotal.WithLabelValues(capability, outcomeRejected).Inc()
	if !id.IsEmpty() {
		g.audit(ctx, store.EventTypeReportRejected, id, capability, requestID, outcomeRejected,
			map[string]any{"error": err.Error()})
	}
	return err
}

// audit appends to the journal when one is configured. Journal failures are
// logged and never fail the report.
func (g *Gateway) audit(ctx context.Context, typ store.EventType, id component.ID, capability, requestID, outcome string, details map[string]any) {
	if g.c.Journal == nil {
		return
	}

	var payload json.RawMessage
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			g.logger.Error("failed to marshal audit payload", zap.Error(err))
		} else {
			payload = data
		}
	}

	now := g.now().UTC()
	evt := &store.AuditEvent{
		EventID:     store.EventID(uuid.NewString()),
		EventType:   typ,
		ComponentID: id.String(),
		Capability:  capability,
		RequestID:   requestID,
		Outcome:     outcome,
		TsEvent:     now,
		TsIngest:    now,
		Payload:     payload,
	}
	if err := g.c.Journal.AppendEvent(ctx, evt); err != nil {
		g.logger.Error("failed to append audit event", zap.String("component_id", id.String()), zap.Error(err))
	}
}

func decode(content json.RawMessage, dst any) error {
	if len(content) == 0 {
		return fmt.Errorf("%w: empty content", ErrInvalidReport)
	}
	if err := json.Unmarshal(content, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return nil
}
