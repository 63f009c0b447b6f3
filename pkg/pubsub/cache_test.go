package pubsub_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/itops-collator/pkg/pubsub"
	"github.com/rmax-ai/itops-collator/pkg/pubsub/pubsubtest"
)

func TestCache_ProcessingPlantSummary(t *testing.T) {
	c := pubsub.NewCache(nil)

	_, ok := c.GetProcessingPlantSummary("plant-1")
	assert.False(t, ok)

	first := pubsubtest.PlantSummary("plant-1", "a")
	c.AddProcessingPlantSummary(first)
	got, ok := c.GetProcessingPlantSummary("plant-1")
	require.True(t, ok)
	assert.Same(t, first, got)

	second := pubsubtest.PlantSummary("plant-1", "b")
	c.AddProcessingPlantSummary(second)
	got, _ = c.GetProcessingPlantSummary("plant-1")
	assert.Same(t, second, got)
	assert.Equal(t, 1, c.Len(pubsub.KeyspaceProcessingPlant))
}

func TestCache_WorkUnitProcessorSummary_KeyedBySubscriber(t *testing.T) {
	c := pubsub.NewCache(nil)
	summary := pubsubtest.WorkUnitProcessorSummary("wup-7", "adt")
	c.AddWorkUnitProcessorSummary(summary)

	got, ok := c.GetWorkUnitProcessorSummary("wup-7")
	require.True(t, ok)
	assert.Same(t, summary, got)

	_, ok = c.GetProcessingPlantSummary("wup-7")
	assert.False(t, ok, "plant keyspace must not see WUP summaries")
}

func TestCache_InvalidArguments(t *testing.T) {
	c := pubsub.NewCache(nil)
	before := c.LastUpdated()

	c.AddProcessingPlantSummary(nil)
	c.AddProcessingPlantSummary(&pubsub.ProcessingPlantSubscriptionSummary{})
	c.AddWorkUnitProcessorSummary(nil)
	c.AddWorkUnitProcessorSummary(&pubsub.WorkUnitProcessorSubscriptionSummary{})

	assert.Equal(t, 0, c.Len(pubsub.KeyspaceProcessingPlant))
	assert.Equal(t, 0, c.Len(pubsub.KeyspaceWorkUnitProcessor))
	assert.Equal(t, before, c.LastUpdated())

	_, ok := c.GetProcessingPlantSummary("")
	assert.False(t, ok)
	_, ok = c.GetWorkUnitProcessorSummary("")
	assert.False(t, ok)
}

func TestCache_LastUpdatedAdvances(t *testing.T) {
	c := pubsub.NewCache(nil)
	before := c.LastUpdated()
	time.Sleep(time.Millisecond)
	c.AddWorkUnitProcessorSummary(pubsubtest.WorkUnitProcessorSummary("wup-1", "t"))
	assert.True(t, c.LastUpdated().After(before))
}
