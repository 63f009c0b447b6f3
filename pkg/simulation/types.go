package simulation

import (
	"time"
)

// SimulationResult captures the final state of the simulation for reporting
type SimulationResult struct {
	ScenarioName  string                    `json:"scenario_name"`
	Duration      time.Duration             `json:"duration"`
	TotalReports  uint64                    `json:"total_reports"`
	TotalAccepted uint64                    `json:"total_accepted"`
	TotalRejected uint64                    `json:"total_rejected"`
	TotalErrors   uint64                    `json:"total_errors"`
	TotalChurned  uint64                    `json:"total_churned"`
	IndexedNodes  int                       `json:"indexed_nodes"`
	ReporterStats map[string]*ReporterStats `json:"reporter_stats"`
	Invariants    []InvariantResult         `json:"invariants"`
	Success       bool                      `json:"success"`
}

type ReporterStats struct {
	Reports  uint64 `json:"reports"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Errors   uint64 `json:"errors"`
}

type InvariantResult struct {
	Metric   string `json:"metric"`
	Scope    string `json:"scope"`
	Expected string `json:"expected"` // e.g. "> 0.95"
	Actual   string `json:"actual"`   // e.g. "0.98"
	Passed   bool   `json:"passed"`
}

type Scenario struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Duration    time.Duration    `json:"duration"`
	Seed        int64            `json:"seed"` // Deterministic seed
	Fleet       Fleet            `json:"fleet"`
	Reporters   []ReporterConfig `json:"reporters"`
	Churn       *ChurnConfig     `json:"churn,omitempty"`
	Invariants  []Invariant      `json:"invariants,omitempty"`
}

type Invariant struct {
	Metric    string  `json:"metric"`    // acceptance_rate, rejection_rate, error_rate, indexed_nodes
	Condition string  `json:"condition"` // e.g., ">", "<", ">=", "<=", "=="
	Value     float64 `json:"value"`
	Scope     string  `json:"scope"` // "global" or a reporter name
}

// Fleet is the synthetic deployment the reporters describe.
type Fleet struct {
	Plants            int `json:"plants"`
	WorkshopsPerPlant int `json:"workshops_per_plant"`
	WUPsPerWorkshop   int `json:"wups_per_workshop"`
	EndpointsPerWUP   int `json:"endpoints_per_wup"`
}

// Nodes is the number of topology nodes the fleet contains.
func (f Fleet) Nodes() int {
	perPlant := 1 + f.WorkshopsPerPlant + f.WorkshopsPerPlant*f.WUPsPerWorkshop + f.WorkshopsPerPlant*f.WUPsPerWorkshop*f.EndpointsPerWUP
	return f.Plants * perPlant
}

type ReporterConfig struct {
	Name     string        `json:"name"`
	Kind     ReportKind    `json:"kind"`
	Count    int           `json:"count"`
	Behavior BehaviorType  `json:"behavior"`
	Rate     int           `json:"rate"` // Reports per second
	Burst    int           `json:"burst"`
	Jitter   time.Duration `json:"jitter"`
}

type ReportKind string

const (
	ReportMetrics  ReportKind = "metrics"
	ReportTopology ReportKind = "topology"
	ReportPubSub   ReportKind = "pubsub"
)

type BehaviorType string

const (
	BehaviorPeriodic BehaviorType = "periodic"
	BehaviorGreedy   BehaviorType = "greedy"
	BehaviorPoisson  BehaviorType = "poisson"
	BehaviorBursty   BehaviorType = "bursty"
)

// ChurnConfig periodically removes a random plant, the way an operator
// decommissioning a site would. Topology reporters add it back.
type ChurnConfig struct {
	Enabled  bool          `json:"enabled"`
	Interval time.Duration `json:"interval"`
}
