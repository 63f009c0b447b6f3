package pubsub

import (
	"sync"
	"sync/atomic"

	"github.com/rmax-ai/itops-collator/pkg/component"
)

// SummaryStore abstracts where summaries are kept. Implementations must make
// each single-key put or get atomic; nothing spans keys.
type SummaryStore interface {
	PutProcessingPlant(summary *ProcessingPlantSubscriptionSummary)
	GetProcessingPlant(id component.ID) (*ProcessingPlantSubscriptionSummary, bool)
	PutWorkUnitProcessor(summary *WorkUnitProcessorSubscriptionSummary)
	GetWorkUnitProcessor(id component.ID) (*WorkUnitProcessorSubscriptionSummary, bool)
	Count(ks Keyspace) int
}

// MemorySummaryStore implements SummaryStore with two concurrent maps.
type MemorySummaryStore struct {
	plants sync.Map // component.ID -> *ProcessingPlantSubscriptionSummary
	wups   sync.Map // component.ID -> *WorkUnitProcessorSubscriptionSummary

	plantCount atomic.Int64
	wupCount   atomic.Int64
}

func NewMemorySummaryStore() *MemorySummaryStore {
	return &MemorySummaryStore{}
}

func (s *MemorySummaryStore) PutProcessingPlant(summary *ProcessingPlantSubscriptionSummary) {
	if _, loaded := s.plants.Swap(summary.ComponentID, summary); !loaded {
		s.plantCount.Add(1)
	}
}

func (s *MemorySummaryStore) GetProcessingPlant(id component.ID) (*ProcessingPlantSubscriptionSummary, bool) {
	v, ok := s.plants.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*ProcessingPlantSubscriptionSummary), true
}

func (s *MemorySummaryStore) PutWorkUnitProcessor(summary *WorkUnitProcessorSubscriptionSummary) {
	if _, loaded := s.wups.Swap(summary.Subscriber, summary); !loaded {
		s.wupCount.Add(1)
	}
}

func (s *MemorySummaryStore) GetWorkUnitProcessor(id component.ID) (*WorkUnitProcessorSubscriptionSummary, bool) {
	v, ok := s.wups.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*WorkUnitProcessorSubscriptionSummary), true
}

func (s *MemorySummaryStore) Count(ks Keyspace) int {
	switch ks {
	case KeyspaceProcessingPlant:
		return int(s.plantCount.Load())
	case KeyspaceWorkUnitProcessor:
		return int(s.wupCount.Load())
	}
	return 0
}
