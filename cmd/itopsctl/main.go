package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rmax-ai/itops-collator/pkg/client"
	"github.com/rmax-ai/itops-collator/pkg/component"
	"github.com/rmax-ai/itops-collator/pkg/mcp"
)

var (
	Version   = "v1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const defaultEndpoint = "http://127.0.0.1:8090"

const usage = `Usage: itopsctl [-endpoint URL] <command> [args]

Commands:
  health                              collator status
  push <metrics|topology|pubsub> FILE submit a report (FILE may be -)
  remove PLANT_ID                     drop a processing plant
  plants [-page N] [-page-size N] [-sort-by F] [-sort-order asc|desc]
  plant PLANT_ID                      one processing plant
  node COMPONENT_ID                   any topology node
  metrics [-previous] COMPONENT_ID    latest metrics snapshot
  pubsub [-wup] COMPONENT_ID          subscription summary
  audit [-limit N] COMPONENT_ID       audit journal entries
  export [-component ID] [-from T] [-to T] [-limit N] <inventory|metrics|audit>
                                      CSV export (times are RFC3339)
  mcp                                 serve MCP on stdio
  version
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("itopsctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	endpoint := global.String("endpoint", envOrDefault("ITOPS_ENDPOINT", defaultEndpoint), "collator base URL")
	timeout := global.Duration("timeout", 30*time.Second, "request timeout")
	if err := global.Parse(args); err != nil || global.NArg() == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	if cmd == "version" {
		fmt.Fprintf(stdout, "itopsctl %s (%s, built %s)\n", Version, Commit, BuildTime)
		return 0
	}
	if cmd == "mcp" {
		if err := mcp.NewServer(*endpoint).Serve(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.NewClient(*endpoint)
	out, err := dispatch(ctx, c, cmd, rest, stdin)
	if err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
			return 2
		}
		if errors.Is(err, client.ErrNotFound) {
			fmt.Fprintln(stderr, "Error: not found")
			return 1
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintf(stderr, "Is itops-collatord running at %s?\n", c.Endpoint())
		return 1
	}

	if csv, ok := out.(rawOutput); ok {
		if _, err := stdout.Write(csv); err != nil {
			fmt.Fprintf(stderr, "Error writing output: %v\n", err)
			return 1
		}
		return 0
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "Error encoding output: %v\n", err)
		return 1
	}
	return 0
}

type usageError string

// rawOutput is written to stdout as is instead of JSON encoded.
type rawOutput []byte

func (e usageError) Error() string { return string(e) }

func dispatch(ctx context.Context, c *client.Client, cmd string, args []string, stdin io.Reader) (any, error) {
	switch cmd {
	case "health":
		return c.Ping(ctx)

	case "push":
		if len(args) != 2 {
			return nil, usageError("push needs a report kind and a file")
		}
		return push(ctx, c, args[0], args[1], stdin)

	case "remove":
		id, err := singleID(cmd, args)
		if err != nil {
			return nil, err
		}
		n, err := c.RemoveProcessingPlant(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"removed": id, "indexedNodes": n}, nil

	case "plants":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var opts client.ListOptions
		fs.IntVar(&opts.Page, "page", 0, "")
		fs.IntVar(&opts.PageSize, "page-size", 0, "")
		fs.StringVar(&opts.SortBy, "sort-by", "", "")
		fs.StringVar(&opts.SortOrder, "sort-order", "", "")
		if err := fs.Parse(args); err != nil {
			return nil, usageError(err.Error())
		}
		return c.ListProcessingPlants(ctx, opts)

	case "plant":
		id, err := singleID(cmd, args)
		if err != nil {
			return nil, err
		}
		return c.GetProcessingPlant(ctx, id)

	case "node":
		id, err := singleID(cmd, args)
		if err != nil {
			return nil, err
		}
		return c.GetNode(ctx, id)

	case "metrics":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		previous := fs.Bool("previous", false, "")
		if err := fs.Parse(args); err != nil {
			return nil, usageError(err.Error())
		}
		id, err := singleID(cmd, fs.Args())
		if err != nil {
			return nil, err
		}
		if *previous {
			return c.GetPreviousMetrics(ctx, id)
		}
		return c.GetMetrics(ctx, id)

	case "pubsub":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		wup := fs.Bool("wup", false, "")
		if err := fs.Parse(args); err != nil {
			return nil, usageError(err.Error())
		}
		id, err := singleID(cmd, fs.Args())
		if err != nil {
			return nil, err
		}
		if *wup {
			return c.GetWorkUnitProcessorPubSub(ctx, id)
		}
		return c.GetProcessingPlantPubSub(ctx, id)

	case "audit":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		limit := fs.Int("limit", 0, "")
		if err := fs.Parse(args); err != nil {
			return nil, usageError(err.Error())
		}
		id, err := singleID(cmd, fs.Args())
		if err != nil {
			return nil, err
		}
		return c.GetAuditEvents(ctx, id, *limit)

	case "export":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		componentID := fs.String("component", "", "")
		from := fs.String("from", "", "")
		to := fs.String("to", "", "")
		limit := fs.Int("limit", 0, "")
		if err := fs.Parse(args); err != nil {
			return nil, usageError(err.Error())
		}
		if fs.NArg() != 1 {
			return nil, usageError("export needs a kind: inventory, metrics or audit")
		}
		opts := client.ExportOptions{ComponentID: component.ID(*componentID), Limit: *limit}
		var err error
		if opts.From, err = parseTime(*from); err != nil {
			return nil, usageError("invalid -from: " + err.Error())
		}
		if opts.To, err = parseTime(*to); err != nil {
			return nil, usageError("invalid -to: " + err.Error())
		}
		data, err := c.Export(ctx, fs.Arg(0), opts)
		if err != nil {
			return nil, err
		}
		return rawOutput(data), nil
	}
	return nil, usageError(fmt.Sprintf("unknown command %q", cmd))
}

var capabilities = map[string]string{
	"metrics":  client.CapabilityMetrics,
	"topology": client.CapabilityTopology,
	"pubsub":   client.CapabilityPubSub,
}

func push(ctx context.Context, c *client.Client, kind, path string, stdin io.Reader) (*client.ReportResponse, error) {
	capability, ok := capabilities[kind]
	if !ok {
		return nil, usageError(fmt.Sprintf("unknown report kind %q", kind))
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}

	resp, err := c.Submit(ctx, capability, json.RawMessage(data))
	if err != nil {
		return nil, err
	}
	if !resp.Successful {
		return resp, fmt.Errorf("report rejected: %s", resp.ResponseContent)
	}
	return resp, nil
}

func singleID(cmd string, args []string) (component.ID, error) {
	if len(args) != 1 || args[0] == "" {
		return "", usageError(cmd + " needs exactly one component id")
	}
	return component.ID(args[0]), nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
