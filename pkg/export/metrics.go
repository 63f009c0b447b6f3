package export

import (
	"context"
	"io"
	"time"
)

// MetricsExport lists the current metric readings of every WUP in the
// topology, one row per reading.
type MetricsExport struct {
	plants  PlantLister
	metrics MetricsReader
}

func NewMetricsExport(plants PlantLister, metrics MetricsReader) *MetricsExport {
	return &MetricsExport{plants: plants, metrics: metrics}
}

func (r *MetricsExport) Generate(ctx context.Context, params Params) (io.Reader, error) {
	t, err := newTable("plant_id", "component_id", "snapshot_ts", "metric_name", "metric_value", "metric_unit", "metric_type", "metric_ts")
	if err != nil {
		return nil, err
	}

	for _, p := range sortedPlants(r.plants) {
		for _, ws := range sortedWorkshops(p) {
			for _, wup := range sortedWUPs(ws) {
				if !params.ComponentID.IsEmpty() && wup.ID != params.ComponentID && p.ID != params.ComponentID {
					continue
				}
				snapshot, ok := r.metrics.GetMetricsSet(wup.ID)
				if !ok {
					continue
				}
				for _, m := range snapshot.Metrics {
					if err := t.row(
						p.ID.String(),
						wup.ID.String(),
						formatTime(snapshot.Timestamp),
						m.Name,
						m.Value,
						m.Unit,
						m.Type,
						formatTime(m.Timestamp),
					); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return t.finish()
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
