package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/logging"
	"github.com/rmax-ai/itops-collator/pkg/telemetry"
)

// generations is the immutable current/previous pair for one component.
// Rotation replaces the whole pair so readers never see a half-rotated slot.
type generations struct {
	current  *Snapshot
	previous *Snapshot
}

// Cache keeps the two most recent metrics snapshots per component, plus the
// last copy handed out for display.
type Cache struct {
	entries   sync.Map // component.ID -> *generations
	displayed sync.Map // component.ID -> *Snapshot

	components  atomic.Int64
	lastUpdated atomic.Int64

	logger *zap.Logger
}

// NewCache creates an empty metrics cache.
func NewCache(logger *zap.Logger) *Cache {
	c := &Cache{logger: logging.OrNop(logger).Named("metrics")}
	c.lastUpdated.Store(time.Now().UnixNano())
	return c
}

// AddMetricSet stores snapshot as the current generation for id, moving the
// existing current generation to previous. Empty ids and nil snapshots are
// ignored.
func (c *Cache) AddMetricSet(id component.ID, snapshot *Snapshot) {
	if id.IsEmpty() || snapshot == nil {
		c.logger.Debug("ignoring metric set: component id or snapshot missing")
		return
	}

	for {
		next := &generations{current: snapshot}
		existing, loaded := c.entries.LoadOrStore(id, next)
		if !loaded {
			telemetry.MetricsComponents.Set(float64(c.components.Add(1)))
			break
		}
		old := existing.(*generations)
		next.previous = old.current
		if c.entries.CompareAndSwap(id, old, next) {
			break
		}
	}

	c.lastUpdated.Store(time.Now().UnixNano())
	c.logger.Debug("metric set added", zap.String("component_id", id.String()), zap.Int("metrics", len(snapshot.Metrics)))
}

// GetMetricsSet returns the current snapshot for id.
func (c *Cache) GetMetricsSet(id component.ID) (*Snapshot, bool) {
	g, ok := c.load(id)
	if !ok {
		return nil, false
	}
	return g.current, true
}

// GetPreviousMetricsSet returns the snapshot that was current before the
// latest add, if any.
func (c *Cache) GetPreviousMetricsSet(id component.ID) (*Snapshot, bool) {
	g, ok := c.load(id)
	if !ok || g.previous == nil {
		return nil, false
	}
	return g.previous, true
}

// GetMetricsForDisplay returns a deep copy of the current snapshot for id and
// records it as the displayed copy. The copy shares no memory with the cache.
func (c *Cache) GetMetricsForDisplay(id component.ID) (*Snapshot, bool) {
	g, ok := c.load(id)
	if !ok {
		return nil, false
	}

	var published Snapshot
	if err := deepcopy.Copy(&published, g.current); err != nil {
		c.logger.Error("failed to copy metric set for display", zap.String("component_id", id.String()), zap.Error(err))
		return nil, false
	}
	c.displayed.Store(id, &published)

	// The caller gets its own copy so later edits do not leak into the
	// displayed slot either.
	var out Snapshot
	if err := deepcopy.Copy(&out, &published); err != nil {
		c.logger.Error("failed to copy metric set for display", zap.String("component_id", id.String()), zap.Error(err))
		return nil, false
	}
	return &out, true
}

// GetDisplayedMetricsSet returns the copy recorded by the last
// GetMetricsForDisplay call for id.
func (c *Cache) GetDisplayedMetricsSet(id component.ID) (*Snapshot, bool) {
	if id.IsEmpty() {
		return nil, false
	}
	v, ok := c.displayed.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Snapshot), true
}

// Len returns the number of components with a current snapshot.
func (c *Cache) Len() int {
	return int(c.components.Load())
}

// LastUpdated returns the time of the last accepted AddMetricSet.
func (c *Cache) LastUpdated() time.Time {
	return time.Unix(0, c.lastUpdated.Load())
}

func (c *Cache) load(id component.ID) (*generations, bool) {
	if id.IsEmpty() {
		return nil, false
	}
	v, ok := c.entries.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*generations), true
}
