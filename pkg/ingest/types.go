package ingest

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/pubsub"
)

var (
	// ErrInvalidReport marks content that decoded but cannot be applied, or
	// did not decode at all.
	ErrInvalidReport = errors.New("invalid report")
	// ErrUnsupportedCapability is returned for envelopes naming a capability
	// this collator does not serve.
	ErrUnsupportedCapability = errors.New("unsupported capability")
	// ErrUnknownPlant is returned when removing a plant the topology does
	// not hold.
	ErrUnknownPlant = errors.New("unknown processing plant")
)

// Capability names accepted in a ReportRequest.
const (
	CapabilityMetrics  = "ITOps.Metrics.Report.Collator"
	CapabilityTopology = "ITOps.Topology.Report.Collator"
	CapabilityPubSub   = "ITOps.PubSub.Report.Collator"
)

// UnknownRequestID is echoed when an envelope arrives without a request id.
const UnknownRequestID = "Unknown"

// ReportRequest is the envelope reporters send to the collator.
type ReportRequest struct {
	RequestID  string          `json:"requestID"`
	Capability string          `json:"capability"`
	Content    json.RawMessage `json:"content"`
}

// ReportResponse acknowledges one ReportRequest.
type ReportResponse struct {
	AssociatedRequestID string    `json:"associatedRequestID"`
	Successful          bool      `json:"successful"`
	DateCompleted       time.Time `json:"dateCompleted"`
	ResponseContent     string    `json:"responseContent,omitempty"`
}

// PubSubReport carries every summary one reporter knows about. Map keys are
// informational; the summaries' own key fields decide where they are stored.
type PubSubReport struct {
	ProcessingPlantSummaries   map[component.ID]*pubsub.ProcessingPlantSubscriptionSummary   `json:"processingPlantSubscriptionSummarySet,omitempty"`
	WorkUnitProcessorSummaries map[component.ID]*pubsub.WorkUnitProcessorSubscriptionSummary `json:"workUnitProcessorSubscriptionSummarySet,omitempty"`
}
