package pubsub

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/logging"
	"github.com/rmax-ai/itops-collator/pkg/telemetry"
)

// Cache collates subscription summaries in two independent keyspaces:
// plants by component id and WUPs by subscriber. Writes are last-write-wins.
type Cache struct {
	store       SummaryStore
	lastUpdated atomic.Int64
	logger      *zap.Logger
}

// NewCache creates a cache backed by an in-memory store.
func NewCache(logger *zap.Logger) *Cache {
	return NewCacheWithStore(NewMemorySummaryStore(), logger)
}

// NewCacheWithStore creates a cache over a specific backing store.
func NewCacheWithStore(store SummaryStore, logger *zap.Logger) *Cache {
	c := &Cache{
		store:  store,
		logger: logging.OrNop(logger).Named("pubsub"),
	}
	c.lastUpdated.Store(time.Now().UnixNano())
	return c
}

// AddProcessingPlantSummary upserts summary under summary.ComponentID.
func (c *Cache) AddProcessingPlantSummary(summary *ProcessingPlantSubscriptionSummary) {
	if summary == nil || summary.ComponentID.IsEmpty() {
		c.logger.Debug("ignoring processing plant summary without component id")
		return
	}
	c.store.PutProcessingPlant(summary)
	c.touch()
	telemetry.SubscriptionSummaries.WithLabelValues(string(KeyspaceProcessingPlant)).Set(float64(c.store.Count(KeyspaceProcessingPlant)))
	c.logger.Debug("processing plant summary added", zap.String("component_id", summary.ComponentID.String()))
}

// AddWorkUnitProcessorSummary upserts summary under summary.Subscriber.
func (c *Cache) AddWorkUnitProcessorSummary(summary *WorkUnitProcessorSubscriptionSummary) {
	if summary == nil || summary.Subscriber.IsEmpty() {
		c.logger.Debug("ignoring work unit processor summary without subscriber")
		return
	}
	c.store.PutWorkUnitProcessor(summary)
	c.touch()
	telemetry.SubscriptionSummaries.WithLabelValues(string(KeyspaceWorkUnitProcessor)).Set(float64(c.store.Count(KeyspaceWorkUnitProcessor)))
	c.logger.Debug("work unit processor summary added", zap.String("subscriber", summary.Subscriber.String()))
}

func (c *Cache) GetProcessingPlantSummary(id component.ID) (*ProcessingPlantSubscriptionSummary, bool) {
	if id.IsEmpty() {
		return nil, false
	}
	return c.store.GetProcessingPlant(id)
}

func (c *Cache) GetWorkUnitProcessorSummary(id component.ID) (*WorkUnitProcessorSubscriptionSummary, bool) {
	if id.IsEmpty() {
		return nil, false
	}
	return c.store.GetWorkUnitProcessor(id)
}

// Len returns the number of summaries held in ks.
func (c *Cache) Len(ks Keyspace) int {
	return c.store.Count(ks)
}

// LastUpdated returns the time of the last accepted upsert.
func (c *Cache) LastUpdated() time.Time {
	return time.Unix(0, c.lastUpdated.Load())
}

func (c *Cache) touch() {
	c.lastUpdated.Store(time.Now().UnixNano())
}
