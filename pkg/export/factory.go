package export

import (
	"fmt"

	"github.com/rmax-ai/itops-collator/pkg/collator"
)

// NewGenerator creates the generator for kind over the collator's caches.
func NewGenerator(kind Kind, c *collator.Collator) (Generator, error) {
	switch kind {
	case KindInventory:
		return NewInventoryExport(c.Topology), nil
	case KindMetrics:
		return NewMetricsExport(c.Topology, c.Metrics), nil
	case KindAudit:
		if c.Journal == nil {
			return nil, ErrJournalDisabled
		}
		return NewAuditExport(c.Journal), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}
