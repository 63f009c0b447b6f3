package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rmax-ai/itops-collator/pkg/logging"
)

const (
	defaultAddr           = "127.0.0.1:8090"
	defaultAuditRetention = 7 * 24 * time.Hour
	defaultPruneInterval  = time.Hour
	defaultLogLevel       = "INFO"
)

type Config struct {
	Addr           string
	DBPath         string // empty disables the audit journal
	RedisAddr      string // empty keeps subscription summaries in memory
	AuditRetention time.Duration
	ArchiveDir     string // empty prunes without archiving
	PruneInterval  time.Duration
	LogLevel       string
	LogFormat      logging.Format
	TLSCertFile    string
	TLSKeyFile     string
}

// JournalEnabled reports whether reports are recorded to SQLite.
func (c Config) JournalEnabled() bool {
	return c.DBPath != ""
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "itops-collator.db")

	dbPath := envOrDefault("ITOPS_DB_PATH", defaultDBPath)
	addr := addrFromEnv(defaultAddr)
	retention, err := durationFromEnv("ITOPS_AUDIT_RETENTION", defaultAuditRetention)
	if err != nil {
		return Config{}, err
	}
	pruneInterval, err := durationFromEnv("ITOPS_PRUNE_INTERVAL", defaultPruneInterval)
	if err != nil {
		return Config{}, err
	}

	flagSet := flag.NewFlagSet("itops-collatord", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagDB := flagSet.String("db", dbPath, "path to the SQLite audit journal (off disables it)")
	flagRedis := flagSet.String("redis-addr", os.Getenv("ITOPS_REDIS_ADDR"), "Redis address for subscription summaries (empty keeps them in memory)")
	flagRetention := flagSet.String("audit-retention", retention.String(), "how long audit events are kept")
	flagArchiveDir := flagSet.String("archive-dir", os.Getenv("ITOPS_ARCHIVE_DIR"), "directory receiving expired audit events before pruning")
	flagPruneInterval := flagSet.String("prune-interval", pruneInterval.String(), "how often the audit journal is pruned")
	flagLogLevel := flagSet.String("log-level", envOrDefault("ITOPS_LOG_LEVEL", defaultLogLevel), "DEBUG|INFO|WARN|ERROR")
	flagLogFormat := flagSet.String("log-format", envOrDefault("ITOPS_LOG_FORMAT", string(logging.FormatJSON)), "JSON|CONSOLE")
	flagTLSCert := flagSet.String("tls-cert", os.Getenv("ITOPS_TLS_CERT"), "TLS certificate file")
	flagTLSKey := flagSet.String("tls-key", os.Getenv("ITOPS_TLS_KEY"), "TLS key file")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
		}
		return Config{}, err
	}

	retentionParsed, err := time.ParseDuration(*flagRetention)
	if err != nil {
		return Config{}, fmt.Errorf("invalid audit retention: %w", err)
	}
	pruneIntervalParsed, err := time.ParseDuration(*flagPruneInterval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid prune interval: %w", err)
	}

	config := Config{
		Addr:           strings.TrimSpace(*flagAddr),
		DBPath:         resolveDBPath(*flagDB, cwd),
		RedisAddr:      strings.TrimSpace(*flagRedis),
		AuditRetention: retentionParsed,
		ArchiveDir:     resolvePath(*flagArchiveDir, cwd),
		PruneInterval:  pruneIntervalParsed,
		LogLevel:       strings.ToUpper(strings.TrimSpace(*flagLogLevel)),
		LogFormat:      logging.ParseFormat(*flagLogFormat),
		TLSCertFile:    resolvePath(*flagTLSCert, cwd),
		TLSKeyFile:     resolvePath(*flagTLSKey, cwd),
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.AuditRetention <= 0 {
		return Config{}, errors.New("audit retention must be positive")
	}
	if config.PruneInterval <= 0 {
		return Config{}, errors.New("prune interval must be positive")
	}
	switch config.LogLevel {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return Config{}, fmt.Errorf("unsupported log level: %s", config.LogLevel)
	}
	if config.ArchiveDir != "" && !config.JournalEnabled() {
		return Config{}, errors.New("archive-dir requires the audit journal")
	}
	if (config.TLSCertFile == "") != (config.TLSKeyFile == "") {
		return Config{}, errors.New("tls-cert and tls-key must be set together")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return parsed, nil
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("ITOPS_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("ITOPS_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolveDBPath(path, cwd string) string {
	switch strings.ToLower(strings.TrimSpace(path)) {
	case "", "off", "none", "disabled":
		return ""
	}
	return resolvePath(path, cwd)
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
