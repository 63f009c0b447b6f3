package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/logging"
	"github.com/rmax-ai/itops-collator/pkg/pubsub"
)

const (
	keyPrefix = "itops:pubsub"
	opTimeout = 2 * time.Second
)

// SummaryStore keeps subscription summaries in Redis so they survive a
// collator restart and can be shared between replicas. Each summary is one
// JSON string key; a per-keyspace set tracks membership for Count.
type SummaryStore struct {
	client *redis.Client
	logger *zap.Logger
}

var _ pubsub.SummaryStore = (*SummaryStore)(nil)

func NewSummaryStore(client *redis.Client, logger *zap.Logger) *SummaryStore {
	return &SummaryStore{client: client, logger: logging.OrNop(logger).Named("redis")}
}

func (s *SummaryStore) makeKey(ks pubsub.Keyspace, id component.ID) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, ks, id)
}

func (s *SummaryStore) setKey(ks pubsub.Keyspace) string {
	return fmt.Sprintf("%s:%s", keyPrefix, ks)
}

func (s *SummaryStore) PutProcessingPlant(summary *pubsub.ProcessingPlantSubscriptionSummary) {
	s.put(pubsub.KeyspaceProcessingPlant, summary.ComponentID, summary)
}

func (s *SummaryStore) GetProcessingPlant(id component.ID) (*pubsub.ProcessingPlantSubscriptionSummary, bool) {
	var summary pubsub.ProcessingPlantSubscriptionSummary
	if !s.get(pubsub.KeyspaceProcessingPlant, id, &summary) {
		return nil, false
	}
	return &summary, true
}

func (s *SummaryStore) PutWorkUnitProcessor(summary *pubsub.WorkUnitProcessorSubscriptionSummary) {
	s.put(pubsub.KeyspaceWorkUnitProcessor, summary.Subscriber, summary)
}

func (s *SummaryStore) GetWorkUnitProcessor(id component.ID) (*pubsub.WorkUnitProcessorSubscriptionSummary, bool) {
	var summary pubsub.WorkUnitProcessorSubscriptionSummary
	if !s.get(pubsub.KeyspaceWorkUnitProcessor, id, &summary) {
		return nil, false
	}
	return &summary, true
}

func (s *SummaryStore) Count(ks pubsub.Keyspace) int {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	n, err := s.client.SCard(ctx, s.setKey(ks)).Result()
	if err != nil {
		s.logger.Warn("failed to count summaries", zap.String("keyspace", string(ks)), zap.Error(err))
		return 0
	}
	return int(n)
}

// Clear removes every summary in both keyspaces.
func (s *SummaryStore) Clear(ctx context.Context) error {
	for _, ks := range []pubsub.Keyspace{pubsub.KeyspaceProcessingPlant, pubsub.KeyspaceWorkUnitProcessor} {
		keys, err := s.client.SMembers(ctx, s.setKey(ks)).Result()
		if err != nil {
			return fmt.Errorf("failed to list %s summaries: %w", ks, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete %s summaries: %w", ks, err)
			}
		}
		if err := s.client.Del(ctx, s.setKey(ks)).Err(); err != nil {
			return fmt.Errorf("failed to delete %s index: %w", ks, err)
		}
	}
	return nil
}

func (s *SummaryStore) put(ks pubsub.Keyspace, id component.ID, v any) {
	key := s.makeKey(ks, id)
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal summary", zap.String("key", key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// SET and SADD go out as one MULTI so Count never sees a key without its
	// set membership.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		pipe.SAdd(ctx, s.setKey(ks), key)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to store summary", zap.String("key", key), zap.Error(err))
	}
}

func (s *SummaryStore) get(ks pubsub.Keyspace, id component.ID, dst any) bool {
	key := s.makeKey(ks, id)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("failed to read summary", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Error("failed to unmarshal summary", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}
