package export

import (
	"context"
	"fmt"
	"io"

	"github.com/rmax-ai/itops-collator/pkg/store"
)

// AuditExport dumps journal entries, newest first.
type AuditExport struct {
	journal EventQuerier
}

func NewAuditExport(journal EventQuerier) *AuditExport {
	return &AuditExport{journal: journal}
}

func (r *AuditExport) Generate(ctx context.Context, params Params) (io.Reader, error) {
	t, err := newTable("event_id", "ts_event", "ts_ingest", "event_type", "component_id", "capability", "request_id", "outcome", "details")
	if err != nil {
		return nil, err
	}

	events, err := r.journal.QueryEvents(ctx, store.EventFilter{
		ComponentID: params.ComponentID.String(),
		From:        params.Start,
		To:          params.End,
		Limit:       params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	for _, evt := range events {
		if err := t.row(
			string(evt.EventID),
			formatTime(evt.TsEvent),
			formatTime(evt.TsIngest),
			string(evt.EventType),
			evt.ComponentID,
			evt.Capability,
			evt.RequestID,
			evt.Outcome,
			string(evt.Payload),
		); err != nil {
			return nil, err
		}
	}

	return t.finish()
}
