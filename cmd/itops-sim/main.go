package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/client"
	"github.com/rmax-ai/itops-collator/pkg/logging"
	"github.com/rmax-ai/itops-collator/pkg/simulation"
)

func main() {
	var (
		scenarioFile string
		apiURL       string
		jsonOutput   bool
		outputFile   string
		logLevel     string
	)

	flag.StringVar(&scenarioFile, "scenario", "", "Path to scenario JSON file")
	flag.StringVar(&apiURL, "api", "http://127.0.0.1:8090", "Base URL of itops-collatord API")
	flag.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	flag.StringVar(&outputFile, "out", "", "Write output to file instead of stdout")
	flag.StringVar(&logLevel, "log-level", "INFO", "DEBUG|INFO|WARN|ERROR")
	flag.Parse()

	logger := logging.New(logLevel, logging.FormatConsole)
	defer logger.Sync() //nolint:errcheck

	scenario, err := loadScenario(scenarioFile)
	if err != nil {
		logger.Fatal("failed to load scenario", zap.String("path", scenarioFile), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := simulation.RunScenario(ctx, scenario, client.NewClient(apiURL), logger)

	if err := writeReport(result, jsonOutput, outputFile); err != nil {
		logger.Fatal("failed to write report", zap.Error(err))
	}

	if !result.Success {
		os.Exit(1)
	}
}

func loadScenario(path string) (simulation.Scenario, error) {
	if path == "" {
		fmt.Fprintln(os.Stderr, "No scenario file provided, running default demo scenario...")
		return defaultScenario(), nil
	}

	var scenario simulation.Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return scenario, err
	}
	if err := json.Unmarshal(data, &scenario); err != nil {
		return scenario, fmt.Errorf("failed to parse scenario file: %w", err)
	}
	if scenario.Duration <= 0 {
		return scenario, fmt.Errorf("scenario duration must be positive")
	}
	return scenario, nil
}

func defaultScenario() simulation.Scenario {
	fleet := simulation.Fleet{Plants: 4, WorkshopsPerPlant: 2, WUPsPerWorkshop: 3, EndpointsPerWUP: 2}
	return simulation.Scenario{
		Name:        "Default Demo",
		Description: "Small fleet reporting topology, metrics and subscriptions",
		Duration:    10 * time.Second,
		Fleet:       fleet,
		Reporters: []simulation.ReporterConfig{
			{Name: "topology", Kind: simulation.ReportTopology, Count: 1, Behavior: simulation.BehaviorPeriodic, Rate: 2},
			{Name: "metrics", Kind: simulation.ReportMetrics, Count: 4, Behavior: simulation.BehaviorPoisson, Rate: 5},
			{Name: "pubsub", Kind: simulation.ReportPubSub, Count: 1, Behavior: simulation.BehaviorPeriodic, Rate: 1},
		},
		Invariants: []simulation.Invariant{
			{Metric: "acceptance_rate", Condition: ">=", Value: 0.99, Scope: "global"},
			{Metric: "indexed_nodes", Condition: ">=", Value: float64(fleet.Nodes()), Scope: "global"},
		},
	}
}

func writeReport(res simulation.SimulationResult, jsonFmt bool, filePath string) error {
	var output []byte
	var err error

	if jsonFmt {
		output, err = json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
	} else {
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "\n--- Simulation Report: %s ---\n", res.ScenarioName)
		fmt.Fprintf(&buf, "Duration: %s\n", res.Duration)
		fmt.Fprintf(&buf, "Reports: %d | Accepted: %d | Rejected: %d | Errors: %d | Churned plants: %d\n",
			res.TotalReports, res.TotalAccepted, res.TotalRejected, res.TotalErrors, res.TotalChurned)
		fmt.Fprintf(&buf, "Indexed nodes: %d\n", res.IndexedNodes)

		if len(res.Invariants) > 0 {
			buf.WriteString("\nInvariants:\n")
			for _, inv := range res.Invariants {
				status := "FAIL"
				if inv.Passed {
					status = "PASS"
				}
				fmt.Fprintf(&buf, "[%s] %s (%s): Expected %s, Got %s\n", status, inv.Metric, inv.Scope, inv.Expected, inv.Actual)
			}
		}
		output = buf.Bytes()
	}

	if filePath != "" {
		if err := os.WriteFile(filePath, output, 0644); err != nil {
			return fmt.Errorf("failed to write report to %s: %w", filePath, err)
		}
		fmt.Printf("Report written to %s\n", filePath)
		return nil
	}
	fmt.Println(string(output))
	return nil
}
