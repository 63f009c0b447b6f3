package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/itops-collator/pkg/pubsub"
	"github.com/rmax-ai/itops-collator/pkg/pubsub/pubsubtest"
)

func newTestStore(t *testing.T) (*SummaryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSummaryStore(client, nil), mr
}

func TestSummaryStore(t *testing.T) {
	pubsubtest.RunSummaryStoreTests(t, func() pubsub.SummaryStore {
		s, _ := newTestStore(t)
		return s
	})
}

func TestSummaryStore_KeyLayout(t *testing.T) {
	s, mr := newTestStore(t)
	s.PutProcessingPlant(pubsubtest.PlantSummary("plant-1", "t"))

	assert.True(t, mr.Exists("itops:pubsub:processing_plant:plant-1"))
	members, err := mr.Members("itops:pubsub:processing_plant")
	require.NoError(t, err)
	assert.Equal(t, []string{"itops:pubsub:processing_plant:plant-1"}, members)
}

func TestSummaryStore_Clear(t *testing.T) {
	s, mr := newTestStore(t)
	s.PutProcessingPlant(pubsubtest.PlantSummary("plant-1", "t"))
	s.PutWorkUnitProcessor(pubsubtest.WorkUnitProcessorSummary("wup-1", "t"))

	require.NoError(t, s.Clear(context.Background()))
	assert.Empty(t, mr.Keys())
	assert.Equal(t, 0, s.Count(pubsub.KeyspaceProcessingPlant))
}

func TestSummaryStore_CorruptValue(t *testing.T) {
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set("itops:pubsub:work_unit_processor:wup-1", "not json"))

	_, ok := s.GetWorkUnitProcessor("wup-1")
	assert.False(t, ok)
}

func TestSummaryStore_BackingCache(t *testing.T) {
	s, _ := newTestStore(t)
	c := pubsub.NewCacheWithStore(s, nil)

	c.AddWorkUnitProcessorSummary(pubsubtest.WorkUnitProcessorSummary("wup-9", "adt"))
	got, ok := c.GetWorkUnitProcessorSummary("wup-9")
	require.True(t, ok)
	assert.Equal(t, "adt", got.Subscriptions[0].Topic)
	assert.Equal(t, 1, c.Len(pubsub.KeyspaceWorkUnitProcessor))
}
