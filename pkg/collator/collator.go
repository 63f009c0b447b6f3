// Package collator owns the three collation caches for one process.
package collator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/logging"
	"github.com/rmax-ai/itops-collator/pkg/metrics"
	"github.com/rmax-ai/itops-collator/pkg/pubsub"
	"github.com/rmax-ai/itops-collator/pkg/store"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

// Journal is the audit trail written by ingestion and read by the facade.
// *store.Store implements it.
type Journal interface {
	AppendEvent(ctx context.Context, evt *store.AuditEvent) error
	QueryEvents(ctx context.Context, filter store.EventFilter) ([]*store.AuditEvent, error)
}

// Collator is constructed once at startup and shared by the ingestion
// gateway and the query facade.
type Collator struct {
	Metrics       *metrics.Cache
	Subscriptions *pubsub.Cache
	Topology      *topology.Cache

	// Journal is nil when auditing is disabled.
	Journal Journal

	logger *zap.Logger
}

type Option func(*options)

type options struct {
	logger       *zap.Logger
	summaryStore pubsub.SummaryStore
	journal      Journal
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSummaryStore backs the subscription cache with s instead of memory.
func WithSummaryStore(s pubsub.SummaryStore) Option {
	return func(o *options) { o.summaryStore = s }
}

func WithJournal(j Journal) Option {
	return func(o *options) { o.journal = j }
}

func New(opts ...Option) *Collator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.OrNop(o.logger)

	summaries := o.summaryStore
	if summaries == nil {
		summaries = pubsub.NewMemorySummaryStore()
	}

	return &Collator{
		Metrics:       metrics.NewCache(logger),
		Subscriptions: pubsub.NewCacheWithStore(summaries, logger),
		Topology:      topology.NewCache(logger),
		Journal:       o.journal,
		logger:        logger,
	}
}

// Status summarises cache occupancy and freshness.
type Status struct {
	MetricsComponents      int       `json:"metricsComponents"`
	MetricsLastUpdated     time.Time `json:"metricsLastUpdated"`
	PlantSummaries         int       `json:"processingPlantSummaries"`
	WorkUnitSummaries      int       `json:"workUnitProcessorSummaries"`
	SubscriptionsUpdated   time.Time `json:"subscriptionsLastUpdated"`
	ProcessingPlants       int       `json:"processingPlants"`
	IndexedNodes           int       `json:"indexedNodes"`
	TopologyLastUpdated    time.Time `json:"topologyLastUpdated"`
	AuditJournalConfigured bool      `json:"auditJournal"`
}

func (c *Collator) Status() Status {
	return Status{
		MetricsComponents:      c.Metrics.Len(),
		MetricsLastUpdated:     c.Metrics.LastUpdated().UTC(),
		PlantSummaries:         c.Subscriptions.Len(pubsub.KeyspaceProcessingPlant),
		WorkUnitSummaries:      c.Subscriptions.Len(pubsub.KeyspaceWorkUnitProcessor),
		SubscriptionsUpdated:   c.Subscriptions.LastUpdated().UTC(),
		ProcessingPlants:       len(c.Topology.ListProcessingPlants()),
		IndexedNodes:           c.Topology.IndexSize(),
		TopologyLastUpdated:    c.Topology.LastUpdated().UTC(),
		AuditJournalConfigured: c.Journal != nil,
	}
}
