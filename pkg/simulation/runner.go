package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/client"
	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/logging"
	"github.com/rmax-ai/itops-collator/pkg/topology"
)

// RunScenario drives the reporter fleet against the collator behind api until
// the scenario duration elapses or ctx is cancelled.
func RunScenario(ctx context.Context, s Scenario, api *client.Client, logger *zap.Logger) SimulationResult {
	logger = logging.OrNop(logger).Named("simulation")
	if s.Seed == 0 {
		s.Seed = time.Now().UnixNano()
	}

	logger.Info("running scenario", zap.String("name", s.Name), zap.Int64("seed", s.Seed), zap.Int("fleet_nodes", s.Fleet.Nodes()))

	ctx, cancel := context.WithTimeout(ctx, s.Duration)
	defer cancel()

	res := SimulationResult{
		ScenarioName:  s.Name,
		Duration:      s.Duration,
		ReporterStats: make(map[string]*ReporterStats),
	}

	var statsMutex sync.Mutex
	getReporterStats := func(name string) *ReporterStats {
		statsMutex.Lock()
		defer statsMutex.Unlock()
		if _, ok := res.ReporterStats[name]; !ok {
			res.ReporterStats[name] = &ReporterStats{}
		}
		return res.ReporterStats[name]
	}

	var wg sync.WaitGroup

	if s.Churn != nil && s.Churn.Enabled && s.Churn.Interval > 0 && s.Fleet.Plants > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(s.Churn.Interval)
			defer ticker.Stop()
			churnRng := rand.New(rand.NewSource(s.Seed + 9999))

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					id := plantID(churnRng.Intn(s.Fleet.Plants))
					if _, err := api.RemoveProcessingPlant(ctx, id); err == nil {
						atomic.AddUint64(&res.TotalChurned, 1)
					} else {
						logger.Debug("churn failed", zap.String("component_id", id.String()), zap.Error(err))
					}
				}
			}
		}()
	}

	for reporterIdx, cfg := range s.Reporters {
		for i := 0; i < cfg.Count; i++ {
			wg.Add(1)
			r := &reporter{
				name:   fmt.Sprintf("%s-%d", cfg.Name, i),
				index:  i,
				cfg:    cfg,
				fleet:  s.Fleet,
				api:    api,
				rng:    rand.New(rand.NewSource(s.Seed + int64(reporterIdx*1000) + int64(i))),
				global: &res,
				stats:  getReporterStats(cfg.Name), // grouped by config name
				logger: logger,
			}
			go func() {
				defer wg.Done()
				r.run(ctx)
			}()
		}
	}

	wg.Wait()

	// The scenario context is done; use a fresh one for the final read.
	healthCtx, cancelHealth := context.WithTimeout(context.Background(), 5*time.Second)
	if h, err := api.Ping(healthCtx); err == nil {
		res.IndexedNodes = h.Collator.IndexedNodes
	} else {
		logger.Warn("failed to read final health", zap.Error(err))
	}
	cancelHealth()

	evaluateInvariants(&res, s.Invariants)

	res.Success = true
	for _, inv := range res.Invariants {
		if !inv.Passed {
			res.Success = false
			break
		}
	}

	return res
}

type reporter struct {
	name  string
	index int
	cfg   ReporterConfig
	fleet Fleet
	api   *client.Client
	rng   *rand.Rand
	seq   uint64

	global *SimulationResult
	stats  *ReporterStats
	logger *zap.Logger
}

func (r *reporter) track(successful bool, err error) {
	atomic.AddUint64(&r.global.TotalReports, 1)
	atomic.AddUint64(&r.stats.Reports, 1)
	switch {
	case err != nil:
		atomic.AddUint64(&r.global.TotalErrors, 1)
		atomic.AddUint64(&r.stats.Errors, 1)
	case successful:
		atomic.AddUint64(&r.global.TotalAccepted, 1)
		atomic.AddUint64(&r.stats.Accepted, 1)
	default:
		atomic.AddUint64(&r.global.TotalRejected, 1)
		atomic.AddUint64(&r.stats.Rejected, 1)
	}
}

// report sends one report of the configured kind.
func (r *reporter) report(ctx context.Context) {
	r.seq++
	now := time.Now().UTC()

	var (
		capability string
		content    any
	)
	switch r.cfg.Kind {
	case ReportTopology:
		if r.fleet.Plants == 0 {
			return
		}
		// Reporters walk the fleet round-robin, each starting at its own offset.
		p := (r.index + int(r.seq)) % r.fleet.Plants
		capability = client.CapabilityTopology
		content = &topology.Graph{
			DeploymentName:   "simulation",
			ProcessingPlants: map[component.ID]*topology.ProcessingPlant{plantID(p): r.fleet.buildPlant(p)},
		}
	case ReportPubSub:
		if r.fleet.Plants == 0 {
			return
		}
		capability = client.CapabilityPubSub
		content = r.fleet.pubsubReport(r.rng, r.rng.Intn(r.fleet.Plants), now)
	default:
		id, ok := r.fleet.randomWUP(r.rng)
		if !ok {
			return
		}
		capability = client.CapabilityMetrics
		content = metricsReport(id, r.seq, now)
	}

	resp, err := r.api.Submit(ctx, capability, content)
	if err != nil {
		if ctx.Err() != nil {
			// Cut off by the end of the scenario, not a collator failure.
			return
		}
		r.logger.Debug("report failed", zap.String("reporter", r.name), zap.Error(err))
		r.track(false, err)
		return
	}
	r.track(resp.Successful, nil)
}

func (r *reporter) run(ctx context.Context) {
	switch r.cfg.Behavior {
	case BehaviorGreedy:
		for {
			select {
			case <-ctx.Done():
				return
			default:
				r.report(ctx)
			}
		}
	case BehaviorPoisson:
		lambda := float64(max(r.cfg.Rate, 1))
		for {
			interval := -math.Log(1-r.rng.Float64()) / lambda
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(interval * float64(time.Second))):
				r.report(ctx)
			}
		}
	case BehaviorBursty:
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for k := 0; k < r.cfg.Burst; k++ {
					r.report(ctx)
				}
			}
		}
	case BehaviorPeriodic:
		fallthrough
	default:
		interval := 10 * time.Millisecond
		if r.cfg.Rate > 0 {
			interval = time.Second / time.Duration(r.cfg.Rate)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if r.cfg.Jitter > 0 {
					time.Sleep(time.Duration(r.rng.Int63n(int64(r.cfg.Jitter))))
				}
				r.report(ctx)
			}
		}
	}
}

func evaluateInvariants(res *SimulationResult, invariants []Invariant) {
	for _, inv := range invariants {
		var actual float64
		var passed bool
		expected := fmt.Sprintf("%s %.2f", inv.Condition, inv.Value)

		var stats *ReporterStats
		if inv.Scope == "global" || inv.Scope == "" {
			stats = &ReporterStats{
				Reports:  atomic.LoadUint64(&res.TotalReports),
				Accepted: atomic.LoadUint64(&res.TotalAccepted),
				Rejected: atomic.LoadUint64(&res.TotalRejected),
				Errors:   atomic.LoadUint64(&res.TotalErrors),
			}
		} else if s, ok := res.ReporterStats[inv.Scope]; ok {
			stats = &ReporterStats{
				Reports:  atomic.LoadUint64(&s.Reports),
				Accepted: atomic.LoadUint64(&s.Accepted),
				Rejected: atomic.LoadUint64(&s.Rejected),
				Errors:   atomic.LoadUint64(&s.Errors),
			}
		} else {
			res.Invariants = append(res.Invariants, InvariantResult{
				Metric: inv.Metric, Scope: inv.Scope, Expected: expected, Actual: "N/A", Passed: false,
			})
			continue
		}

		switch inv.Metric {
		case "indexed_nodes":
			actual = float64(res.IndexedNodes)
		case "acceptance_rate":
			actual = rate(stats.Accepted, stats.Reports)
		case "rejection_rate":
			actual = rate(stats.Rejected, stats.Reports)
		case "error_rate":
			actual = rate(stats.Errors, stats.Reports)
		}

		switch inv.Condition {
		case ">":
			passed = actual > inv.Value
		case ">=":
			passed = actual >= inv.Value
		case "<":
			passed = actual < inv.Value
		case "<=":
			passed = actual <= inv.Value
		case "==":
			passed = math.Abs(actual-inv.Value) < 0.0001
		}

		res.Invariants = append(res.Invariants, InvariantResult{
			Metric:   inv.Metric,
			Scope:    inv.Scope,
			Expected: expected,
			Actual:   fmt.Sprintf("%.4f", actual),
			Passed:   passed,
		})
	}
}

func rate(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
