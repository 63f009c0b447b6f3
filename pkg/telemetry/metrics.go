package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ReportsTotal counts inbound reports by capability and outcome.
	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "itops_reports_total",
			Help: "Total number of reports received by the collator",
		},
		[]string{"capability", "outcome"},
	)

	// MetricsComponents tracks how many components have a current metrics snapshot.
	MetricsComponents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "itops_metrics_components",
			Help: "Number of components holding a current metrics snapshot",
		},
	)

	// SubscriptionSummaries tracks stored summaries per keyspace.
	SubscriptionSummaries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "itops_subscription_summaries",
			Help: "Number of publish/subscribe summaries held per keyspace",
		},
		[]string{"keyspace"},
	)

	// TopologyPlants tracks the number of processing plants in the graph.
	TopologyPlants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "itops_topology_processing_plants",
			Help: "Number of processing plants in the topology graph",
		},
	)

	// TopologyIndexSize tracks the node count of the last index rebuild.
	TopologyIndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "itops_topology_index_nodes",
			Help: "Number of nodes in the topology index as of the last rebuild",
		},
	)

	// TopologyIndexRebuildSeconds observes how long index rebuilds take.
	TopologyIndexRebuildSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "itops_topology_index_rebuild_seconds",
			Help:    "Duration of topology node index rebuilds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)

	// AuditEventsPruned counts journal rows removed by retention.
	AuditEventsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "itops_audit_events_pruned_total",
			Help: "Total number of audit journal entries removed by retention",
		},
	)

	// AuditEventsArchived counts journal rows written to the archive before pruning.
	AuditEventsArchived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "itops_audit_events_archived_total",
			Help: "Total number of audit journal entries archived to blob storage",
		},
	)
)

func init() {
	prometheus.MustRegister(ReportsTotal)
	prometheus.MustRegister(MetricsComponents)
	prometheus.MustRegister(SubscriptionSummaries)
	prometheus.MustRegister(TopologyPlants)
	prometheus.MustRegister(TopologyIndexSize)
	prometheus.MustRegister(TopologyIndexRebuildSeconds)
	prometheus.MustRegister(AuditEventsPruned)
	prometheus.MustRegister(AuditEventsArchived)
}
