package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentpay.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"network": {"rpc_url": "http://localhost:8899"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Network.Name != "devnet" {
		t.Fatalf("expected default network name devnet, got %q", cfg.Network.Name)
	}
	if cfg.Network.NativeCurrency != "SOL" {
		t.Fatalf("expected default native currency SOL, got %q", cfg.Network.NativeCurrency)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("expected default storage driver memory, got %q", cfg.Storage.Driver)
	}
	if cfg.Cache.DefaultTTL() != 5*time.Minute {
		t.Fatalf("expected default cache ttl 5m, got %v", cfg.Cache.DefaultTTL())
	}
	if cfg.Cache.MaxEntries != 1000 {
		t.Fatalf("expected default max entries 1000, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Payments.InitialDelay() != 5*time.Second {
		t.Fatalf("expected default initial delay 5s, got %v", cfg.Payments.InitialDelay())
	}
	if cfg.Payments.PollInterval() != 10*time.Second {
		t.Fatalf("expected default poll interval 10s, got %v", cfg.Payments.PollInterval())
	}
	if cfg.Payments.MaxAttempts != 30 {
		t.Fatalf("expected default max attempts 30, got %d", cfg.Payments.MaxAttempts)
	}
	if cfg.Payments.RequestExpiry() != 30*time.Minute {
		t.Fatalf("expected default request expiry 30m, got %v", cfg.Payments.RequestExpiry())
	}
	if cfg.Events.Queue != "agentpay.payments" {
		t.Fatalf("expected default queue name, got %q", cfg.Events.Queue)
	}
}

func TestLoadResolvesChainConfigPath(t *testing.T) {
	path := writeConfig(t, `{"network": {"chain_config": "chains.yaml"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := filepath.Join(filepath.Dir(path), "chains.yaml")
	if cfg.Network.ChainConfig != want {
		t.Fatalf("expected chain config resolved to %q, got %q", want, cfg.Network.ChainConfig)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
		field   string
	}{
		{
			"mysql without dsn",
			`{"storage": {"driver": "mysql"}}`,
			"storage.dsn",
		},
		{
			"unknown storage driver",
			`{"storage": {"driver": "sqlite"}}`,
			"storage.driver",
		},
		{
			"rabbitmq without url",
			`{"events": {"driver": "rabbitmq"}}`,
			"events.url",
		},
		{
			"fee over 100",
			`{"payments": {"fee_percent": 120}}`,
			"payments.fee_percent",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Fatalf("expected validation error for %s", tc.field)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	if _, err := Load(writeConfig(t, `{"network": `)); err == nil {
		t.Fatalf("expected error for malformed json")
	}
}
