package metrics

import (
	"time"

	"github.com/rmax-ai/itops-collator/pkg/component"
)

// Metric is a single named counter or gauge reading.
type Metric struct {
	Name      string    `json:"metricName"`
	Value     string    `json:"metricValue"`
	Unit      string    `json:"metricUnit,omitempty"`
	Type      string    `json:"metricType,omitempty"`
	Timestamp time.Time `json:"metricTimestamp"`
}

// Snapshot is the bundle of operational metrics one component reported at one
// instant. Once handed to the cache it must not be modified.
type Snapshot struct {
	ComponentID   component.ID      `json:"componentID"`
	ComponentType string            `json:"componentType,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Metrics       []Metric          `json:"metrics"`
	Labels        map[string]string `json:"labels,omitempty"`
}

// Metric returns the first reading with the given name.
func (s *Snapshot) Metric(name string) (Metric, bool) {
	for _, m := range s.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}
