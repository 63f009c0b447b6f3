package retention

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/blob"
	"github.com/rmax-ai/itops-collator/pkg/logging"
	"github.com/rmax-ai/itops-collator/pkg/store"
	"github.com/rmax-ai/itops-collator/pkg/telemetry"
)

const defaultBatchSize = 500

// ArchiveSource is the slice of the journal the archiver reads and trims.
type ArchiveSource interface {
	ReadCandidateEvents(ctx context.Context, cutoff time.Time, limit int) ([]*store.AuditEvent, error)
	DeleteEvents(ctx context.Context, ids []store.EventID) (int64, error)
}

// Archiver copies expiring journal entries to blob storage as gzipped JSON
// Lines, then deletes them from the journal.
type Archiver struct {
	source    ArchiveSource
	blobs     blob.Store
	batchSize int
	logger    *zap.Logger
}

func NewArchiver(source ArchiveSource, blobs blob.Store, batchSize int, logger *zap.Logger) *Archiver {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Archiver{
		source:    source,
		blobs:     blobs,
		batchSize: batchSize,
		logger:    logging.OrNop(logger).Named("archive"),
	}
}

// ArchiveBefore archives every event ingested before cutoff and returns how
// many were moved. A failed upload leaves the batch in the journal.
func (a *Archiver) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		events, err := a.source.ReadCandidateEvents(ctx, cutoff, a.batchSize)
		if err != nil {
			return total, err
		}
		if len(events) == 0 {
			return total, nil
		}

		key, err := a.archiveBatch(ctx, events)
		if err != nil {
			return total, err
		}

		ids := make([]store.EventID, len(events))
		for i, evt := range events {
			ids[i] = evt.EventID
		}
		deleted, err := a.source.DeleteEvents(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("failed to delete archived events: %w", err)
		}
		total += deleted
		telemetry.AuditEventsArchived.Add(float64(deleted))
		a.logger.Debug("archived batch", zap.String("key", key), zap.Int("events", len(events)))

		if len(events) < a.batchSize {
			return total, nil
		}
	}
}

func (a *Archiver) archiveBatch(ctx context.Context, events []*store.AuditEvent) (string, error) {
	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)
	encoder := json.NewEncoder(gzWriter)
	for _, evt := range events {
		if err := encoder.Encode(evt); err != nil {
			gzWriter.Close()
			return "", fmt.Errorf("failed to encode event %s: %w", evt.EventID, err)
		}
	}
	if err := gzWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close gzip writer: %w", err)
	}

	// audit/YYYY/MM/DD/<first ts_ingest>_<last ts_ingest>_<uuid>.jsonl.gz
	first, last := events[0], events[len(events)-1]
	year, month, day := first.TsIngest.UTC().Date()
	key := fmt.Sprintf("audit/%04d/%02d/%02d/%d_%d_%s.jsonl.gz",
		year, month, day,
		first.TsIngest.Unix(),
		last.TsIngest.Unix(),
		uuid.NewString(),
	)

	if err := a.blobs.Put(ctx, key, &buf); err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}
	return key, nil
}
