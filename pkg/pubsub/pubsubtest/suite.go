// Package pubsubtest holds a conformance suite shared by SummaryStore
// implementations.
package pubsubtest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/pubsub"
)

// PlantSummary builds a plant summary with one outbound subscription.
func PlantSummary(id, topic string) *pubsub.ProcessingPlantSubscriptionSummary {
	return &pubsub.ProcessingPlantSubscriptionSummary{
		ComponentID: component.ID(id),
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		AsPublisher: []pubsub.Subscription{
			{Publisher: component.ID(id), Subscriber: "peer-plant", Topic: topic, Status: "active"},
		},
	}
}

// WorkUnitProcessorSummary builds a WUP summary keyed by subscriber.
func WorkUnitProcessorSummary(subscriber, topic string) *pubsub.WorkUnitProcessorSubscriptionSummary {
	return &pubsub.WorkUnitProcessorSubscriptionSummary{
		Subscriber: component.ID(subscriber),
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Subscriptions: []pubsub.Subscription{
			{Publisher: "some-plant", Subscriber: component.ID(subscriber), Topic: topic},
		},
	}
}

// RunSummaryStoreTests exercises a SummaryStore. newStore must return an
// empty store on every call.
func RunSummaryStoreTests(t *testing.T, newStore func() pubsub.SummaryStore) {
	t.Run("Put and Get", func(t *testing.T) {
		s := newStore()
		s.PutProcessingPlant(PlantSummary("plant-1", "lab-results"))
		s.PutWorkUnitProcessor(WorkUnitProcessorSummary("wup-1", "adt"))

		plant, ok := s.GetProcessingPlant("plant-1")
		require.True(t, ok)
		assert.Equal(t, component.ID("plant-1"), plant.ComponentID)
		require.Len(t, plant.AsPublisher, 1)
		assert.Equal(t, "lab-results", plant.AsPublisher[0].Topic)

		wup, ok := s.GetWorkUnitProcessor("wup-1")
		require.True(t, ok)
		require.Len(t, wup.Subscriptions, 1)
		assert.Equal(t, "adt", wup.Subscriptions[0].Topic)
	})

	t.Run("Get missing", func(t *testing.T) {
		s := newStore()
		_, ok := s.GetProcessingPlant("missing")
		assert.False(t, ok)
		_, ok = s.GetWorkUnitProcessor("missing")
		assert.False(t, ok)
	})

	t.Run("Last write wins", func(t *testing.T) {
		s := newStore()
		s.PutProcessingPlant(PlantSummary("plant-1", "first"))
		s.PutProcessingPlant(PlantSummary("plant-1", "second"))

		plant, ok := s.GetProcessingPlant("plant-1")
		require.True(t, ok)
		assert.Equal(t, "second", plant.AsPublisher[0].Topic)
		assert.Equal(t, 1, s.Count(pubsub.KeyspaceProcessingPlant))
	})

	t.Run("Keyspaces are independent", func(t *testing.T) {
		s := newStore()
		s.PutProcessingPlant(PlantSummary("shared-id", "plant-topic"))
		s.PutWorkUnitProcessor(WorkUnitProcessorSummary("shared-id", "wup-topic"))

		plant, ok := s.GetProcessingPlant("shared-id")
		require.True(t, ok)
		wup, ok := s.GetWorkUnitProcessor("shared-id")
		require.True(t, ok)
		assert.Equal(t, "plant-topic", plant.AsPublisher[0].Topic)
		assert.Equal(t, "wup-topic", wup.Subscriptions[0].Topic)
		assert.Equal(t, 1, s.Count(pubsub.KeyspaceProcessingPlant))
		assert.Equal(t, 1, s.Count(pubsub.KeyspaceWorkUnitProcessor))
		assert.Equal(t, 0, s.Count("unknown"))
	})

	t.Run("Concurrent puts", func(t *testing.T) {
		s := newStore()
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					s.PutWorkUnitProcessor(WorkUnitProcessorSummary(fmt.Sprintf("wup-%d", i), fmt.Sprintf("topic-%d", w)))
				}
			}(w)
		}
		wg.Wait()
		assert.Equal(t, 25, s.Count(pubsub.KeyspaceWorkUnitProcessor))
	})
}
