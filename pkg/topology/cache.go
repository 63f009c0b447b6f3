package topology

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

// nodeIndex is an immutable id -> node snapshot. A published index is never
// written to again; a rebuild publishes a fresh map.
type nodeIndex map[component.ID]Node

// Cache collates the system-wide topology reported by processing plants.
//
// Structural mutations (AddProcessingPlant, RemoveProcessingPlant) and
// RefreshNodeIndex serialise on one mutex. GetNode reads the last published
// index without taking it, so lookups lag mutations until the next
// RefreshNodeIndex. Subtrees are copied on insert and never mutated in place,
// which is what lets the index and ListProcessingPlants hand out shared
// references.
type Cache struct {
	mu    sync.Mutex
	graph *Graph

	index       atomic.Pointer[nodeIndex]
	lastUpdated atomic.Int64

	logger *zap.Logger
}

// NewCache creates an empty topology cache.
func NewCache(logger *zap.Logger) *Cache {
	c := &Cache{
		graph:  NewGraph(),
		logger: logging.OrNop(logger).Named("topology"),
	}
	empty := make(nodeIndex)
	c.index.Store(&empty)
	c.lastUpdated.Store(time.Now().UnixNano())
	return c
}

// AddProcessingPlant inserts or replaces the plant subtree keyed by its id.
// Subtrees that fail Validate are ignored. The index is not refreshed.
func (c *Cache) AddProcessingPlant(plant *ProcessingPlant) {
	if err := plant.Validate(); err != nil {
		c.logger.Debug("ignoring invalid processing plant", zap.Error(err))
		return
	}

	var stored ProcessingPlant
	if err := deepcopy.Copy(&stored, plant); err != nil {
		c.logger.Error("failed to copy processing plant", zap.String("component_id", plant.ID.String()), zap.Error(err))
		return
	}

	c.mu.Lock()
	c.graph.AddProcessingPlant(&stored)
	telemetry.TopologyPlants.Set(float64(len(c.graph.ProcessingPlants)))
	c.mu.Unlock()

	c.touch()
	c.logger.Debug("processing plant added", zap.String("component_id", plant.ID.String()), zap.Int("nodes", stored.NodeCount()))
}

// RemoveProcessingPlant deletes the plant subtree and reports whether the
// plant was present. Unknown ids are a no-op.
func (c *Cache) RemoveProcessingPlant(id component.ID) bool {
	if id.IsEmpty() {
		return false
	}

	c.mu.Lock()
	if _, ok := c.graph.ProcessingPlants[id]; !ok {
		c.mu.Unlock()
		return false
	}
	c.graph.RemoveProcessingPlant(id)
	telemetry.TopologyPlants.Set(float64(len(c.graph.ProcessingPlants)))
	c.mu.Unlock()

	c.touch()
	c.logger.Debug("processing plant removed", zap.String("component_id", id.String()))
	return true
}

// RefreshNodeIndex rebuilds the id index from the graph and returns its size.
func (c *Cache) RefreshNodeIndex() int {
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := make(nodeIndex, len(c.graph.ProcessingPlants))
	c.graph.Walk(func(n Node) {
		idx[n.ComponentID()] = n
	})
	c.index.Store(&idx)

	telemetry.TopologyIndexRebuildSeconds.Observe(time.Since(start).Seconds())
	telemetry.TopologyIndexSize.Set(float64(len(idx)))
	return len(idx)
}

// GetNode resolves id against the last rebuilt index.
func (c *Cache) GetNode(id component.ID) (Node, bool) {
	if id.IsEmpty() {
		return nil, false
	}
	idx := c.index.Load()
	n, ok := (*idx)[id]
	return n, ok
}

// GetProcessingPlant is GetNode restricted to plants.
func (c *Cache) GetProcessingPlant(id component.ID) (*ProcessingPlant, bool) {
	n, ok := c.GetNode(id)
	if !ok {
		return nil, false
	}
	plant, ok := n.(*ProcessingPlant)
	return plant, ok
}

// IndexSize returns the node count of the current index snapshot.
func (c *Cache) IndexSize() int {
	return len(*c.index.Load())
}

// ListProcessingPlants returns the current plants. The slice is owned by the
// caller; the plants are shared and must not be modified.
func (c *Cache) ListProcessingPlants() []*ProcessingPlant {
	c.mu.Lock()
	defer c.mu.Unlock()

	plants := make([]*ProcessingPlant, 0, len(c.graph.ProcessingPlants))
	for _, p := range c.graph.ProcessingPlants {
		plants = append(plants, p)
	}
	return plants
}

// Graph returns a copy of the graph container sharing the plant subtrees.
func (c *Cache) Graph() *Graph {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := NewGraph()
	g.DeploymentName = c.graph.DeploymentName
	for id, p := range c.graph.ProcessingPlants {
		g.ProcessingPlants[id] = p
	}
	return g
}

// SetDeploymentName records the name of the reporting deployment.
func (c *Cache) SetDeploymentName(name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	c.graph.DeploymentName = name
	c.mu.Unlock()
}

// LastUpdated returns the time of the last structural mutation.
func (c *Cache) LastUpdated() time.Time {
	return time.Unix(0, c.lastUpdated.Load())
}

func (c *Cache) touch() {
	c.lastUpdated.Store(time.Now().UnixNano())
}
