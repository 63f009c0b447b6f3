// Package export renders collator state as CSV for offline analysis.
package export

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/metrics"
	"github.com/rmax-ai/itops-collator/pkg/store"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

type Kind string

const (
	KindInventory Kind = "inventory"
	KindMetrics   Kind = "metrics"
	KindAudit     Kind = "audit"
)

var (
	ErrUnknownKind     = errors.New("export: unknown kind")
	ErrJournalDisabled = errors.New("export: audit journal not configured")
)

type Params struct {
	Start       time.Time
	End         time.Time
	ComponentID component.ID
	Limit       int
}

// PlantLister is the topology view an export walks.
type PlantLister interface {
	ListProcessingPlants() []*topology.ProcessingPlant
}

// MetricsReader resolves the current snapshot of a component.
type MetricsReader interface {
	GetMetricsSet(id component.ID) (*metrics.Snapshot, bool)
}

// EventQuerier is the journal query an audit export needs.
type EventQuerier interface {
	QueryEvents(ctx context.Context, filter store.EventFilter) ([]*store.AuditEvent, error)
}

type Generator interface {
	Generate(ctx context.Context, params Params) (io.Reader, error)
}
