package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/pubsub"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

// Capability names understood by the collator's envelope endpoint.
const (
	CapabilityMetrics  = "ITOps.Metrics.Report.Collator"
	CapabilityTopology = "ITOps.Topology.Report.Collator"
	CapabilityPubSub   = "ITOps.PubSub.Report.Collator"
)

// ReportRequest is the envelope accepted by POST /v1/reports.
type ReportRequest struct {
	RequestID  string          `json:"requestID"`
	Capability string          `json:"capability"`
	Content    json.RawMessage `json:"content"`
}

// ReportResponse acknowledges a ReportRequest.
type ReportResponse struct {
	AssociatedRequestID string    `json:"associatedRequestID"`
	Successful          bool      `json:"successful"`
	DateCompleted       time.Time `json:"dateCompleted"`
	ResponseContent     string    `json:"responseContent,omitempty"`
}

// PubSubReport carries subscription summaries for POST /v1/reports/pubsub.
type PubSubReport struct {
	ProcessingPlantSummaries   map[component.ID]*pubsub.ProcessingPlantSubscriptionSummary   `json:"processingPlantSubscriptionSummarySet,omitempty"`
	WorkUnitProcessorSummaries map[component.ID]*pubsub.WorkUnitProcessorSubscriptionSummary `json:"workUnitProcessorSubscriptionSummarySet,omitempty"`
}

// Health is the /v1/health payload.
type Health struct {
	Status   string `json:"status"`
	Collator struct {
		MetricsComponents      int       `json:"metricsComponents"`
		MetricsLastUpdated     time.Time `json:"metricsLastUpdated"`
		PlantSummaries         int       `json:"processingPlantSummaries"`
		WorkUnitSummaries      int       `json:"workUnitProcessorSummaries"`
		SubscriptionsUpdated   time.Time `json:"subscriptionsLastUpdated"`
		ProcessingPlants       int       `json:"processingPlants"`
		IndexedNodes           int       `json:"indexedNodes"`
		TopologyLastUpdated    time.Time `json:"topologyLastUpdated"`
		AuditJournalConfigured bool      `json:"auditJournal"`
	} `json:"collator"`
}

// PlantPage is one page of the plant listing.
type PlantPage struct {
	Items    []*topology.ProcessingPlant `json:"items"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"pageSize"`
	Total    int                         `json:"total"`
}

// ListOptions controls ListProcessingPlants. Zero values use server defaults.
type ListOptions struct {
	Page      int
	PageSize  int
	SortBy    string // componentID, name or site
	SortOrder string // asc or desc
}

// ExportOptions narrows an export. Zero values export everything.
type ExportOptions struct {
	ComponentID component.ID
	From        time.Time
	To          time.Time
	Limit       int
}

// NodeView is a node of any kind. Decode Node with the typed helpers.
type NodeView struct {
	Kind topology.NodeKind `json:"kind"`
	Node json.RawMessage   `json:"node"`
}

// Decode unmarshals the node into the concrete type for its kind.
func (v *NodeView) Decode() (topology.Node, error) {
	var n topology.Node
	switch v.Kind {
	case topology.KindProcessingPlant:
		n = &topology.ProcessingPlant{}
	case topology.KindWorkshop:
		n = &topology.Workshop{}
	case topology.KindWorkUnitProcessor:
		n = &topology.WorkUnitProcessor{}
	case topology.KindEndpoint:
		n = &topology.Endpoint{}
	default:
		return nil, fmt.Errorf("unknown node kind %q", v.Kind)
	}
	if err := json.Unmarshal(v.Node, n); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", v.Kind, err)
	}
	return n, nil
}

// AuditEvent is one journal entry.
type AuditEvent struct {
	EventID     string          `json:"eventID"`
	EventType   string          `json:"eventType"`
	ComponentID string          `json:"componentID"`
	Capability  string          `json:"capability,omitempty"`
	RequestID   string          `json:"requestID,omitempty"`
	Outcome     string          `json:"outcome,omitempty"`
	TsEvent     time.Time       `json:"tsEvent"`
	TsIngest    time.Time       `json:"tsIngest"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

type acceptedResponse struct {
	Status       string `json:"status"`
	IndexedNodes *int   `json:"indexedNodes,omitempty"`
}

// APIError is a non-2xx reply from the collator.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Reason     string `json:"reason,omitempty"`
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("collator returned %d %s: %s", e.StatusCode, e.Code, e.Reason)
	}
	return fmt.Sprintf("collator returned %d %s", e.StatusCode, e.Code)
}
