package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rmax-ai/itops-collator/pkg/logging"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr != defaultAddr {
		t.Errorf("expected addr %q, got %q", defaultAddr, cfg.Addr)
	}
	if filepath.Base(cfg.DBPath) != "itops-collator.db" || !filepath.IsAbs(cfg.DBPath) {
		t.Errorf("expected absolute default db path, got %q", cfg.DBPath)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("expected in-memory summaries by default, got redis %q", cfg.RedisAddr)
	}
	if cfg.AuditRetention != 7*24*time.Hour {
		t.Errorf("expected default retention of 168h, got %v", cfg.AuditRetention)
	}
	if cfg.PruneInterval != time.Hour {
		t.Errorf("expected default prune interval of 1h, got %v", cfg.PruneInterval)
	}
	if cfg.LogFormat != logging.FormatJSON {
		t.Errorf("expected JSON logs, got %v", cfg.LogFormat)
	}
}

func TestLoadConfig_DurationValidation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name: "valid retention from flag",
			args: []string{"-audit-retention", "24h"},
		},
		{
			name:        "zero retention from flag",
			args:        []string{"-audit-retention", "0s"},
			expectError: true,
			errorSubstr: "audit retention must be positive",
		},
		{
			name:        "negative prune interval from flag",
			args:        []string{"-prune-interval", "-5m"},
			expectError: true,
			errorSubstr: "prune interval must be positive",
		},
		{
			name:    "valid retention from env",
			envVars: map[string]string{"ITOPS_AUDIT_RETENTION": "48h"},
		},
		{
			name:        "zero retention from env",
			envVars:     map[string]string{"ITOPS_AUDIT_RETENTION": "0s"},
			expectError: true,
			errorSubstr: "ITOPS_AUDIT_RETENTION must be positive",
		},
		{
			name:        "invalid retention format from flag",
			args:        []string{"-audit-retention", "forever"},
			expectError: true,
			errorSubstr: "invalid audit retention",
		},
		{
			name:        "invalid prune interval format from env",
			envVars:     map[string]string{"ITOPS_PRUNE_INTERVAL": "often"},
			expectError: true,
			errorSubstr: "invalid ITOPS_PRUNE_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			} else if cfg.AuditRetention <= 0 || cfg.PruneInterval <= 0 {
				t.Errorf("expected positive durations, got %v / %v", cfg.AuditRetention, cfg.PruneInterval)
			}
		})
	}
}

func TestLoadConfig_Addr(t *testing.T) {
	t.Run("port from env", func(t *testing.T) {
		t.Setenv("ITOPS_PORT", "9999")
		cfg, err := LoadConfig(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Addr != "127.0.0.1:9999" {
			t.Errorf("expected 127.0.0.1:9999, got %q", cfg.Addr)
		}
	})

	t.Run("ITOPS_ADDR wins over ITOPS_PORT", func(t *testing.T) {
		t.Setenv("ITOPS_PORT", "9999")
		t.Setenv("ITOPS_ADDR", "0.0.0.0:7000")
		cfg, err := LoadConfig(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Addr != "0.0.0.0:7000" {
			t.Errorf("expected 0.0.0.0:7000, got %q", cfg.Addr)
		}
	})

	t.Run("flag wins over env", func(t *testing.T) {
		t.Setenv("ITOPS_ADDR", "0.0.0.0:7000")
		cfg, err := LoadConfig([]string{"-addr", ":8100"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Addr != ":8100" {
			t.Errorf("expected :8100, got %q", cfg.Addr)
		}
	})

	t.Run("empty addr rejected", func(t *testing.T) {
		if _, err := LoadConfig([]string{"-addr", " "}); err == nil {
			t.Error("expected error for empty addr")
		}
	})
}

func TestLoadConfig_Journal(t *testing.T) {
	for _, value := range []string{"", "off", "none"} {
		cfg, err := LoadConfig([]string{"-db", value})
		if err != nil {
			t.Fatalf("unexpected error for -db %q: %v", value, err)
		}
		if cfg.JournalEnabled() {
			t.Errorf("-db %q should disable the journal, got %q", value, cfg.DBPath)
		}
	}

	t.Setenv("ITOPS_DB_PATH", "data/audit.db")
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(cfg.DBPath) || !strings.HasSuffix(cfg.DBPath, filepath.Join("data", "audit.db")) {
		t.Errorf("expected resolved db path, got %q", cfg.DBPath)
	}
}

func TestLoadConfig_LoggingAndTLS(t *testing.T) {
	t.Setenv("ITOPS_LOG_LEVEL", "debug")
	t.Setenv("ITOPS_LOG_FORMAT", "console")
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "DEBUG" || cfg.LogFormat != logging.FormatConsole {
		t.Errorf("expected DEBUG/CONSOLE, got %s/%s", cfg.LogLevel, cfg.LogFormat)
	}

	if _, err := LoadConfig([]string{"-log-level", "chatty"}); err == nil {
		t.Error("expected error for unknown log level")
	}
	if _, err := LoadConfig([]string{"-tls-cert", "cert.pem"}); err == nil {
		t.Error("expected error when tls-key is missing")
	}
	cfg, err = LoadConfig([]string{"-tls-cert", "cert.pem", "-tls-key", "key.pem"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(cfg.TLSCertFile) || !filepath.IsAbs(cfg.TLSKeyFile) {
		t.Errorf("expected resolved tls paths, got %q / %q", cfg.TLSCertFile, cfg.TLSKeyFile)
	}
}

func TestLoadConfig_ArchiveDir(t *testing.T) {
	cfg, err := LoadConfig([]string{"-archive-dir", "archive"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(cfg.ArchiveDir) || filepath.Base(cfg.ArchiveDir) != "archive" {
		t.Errorf("expected resolved archive dir, got %q", cfg.ArchiveDir)
	}

	if _, err := LoadConfig([]string{"-archive-dir", "archive", "-db", "off"}); err == nil {
		t.Error("expected error when archiving without a journal")
	}
}
