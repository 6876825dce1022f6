package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestWriteDefaultThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netdiag.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Limits.DNSLeak != 2 || cfg.Limits.Purity != 3 || cfg.Limits.Privacy != 2 {
		t.Errorf("unexpected limits: %+v", cfg.Limits)
	}
	if got := Duration(cfg.TTL.DNSLeak, 0); got != 10*time.Minute {
		t.Errorf("dns_leak ttl = %s, want 10m", got)
	}
	if len(cfg.Sources.DNSLeak) == 0 || cfg.Sources.DNSLeak[0].Provider != "google" {
		t.Errorf("dns_leak sources not preserved: %+v", cfg.Sources.DNSLeak)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBPath = ""
	cfg.Limits.Purity = 0
	cfg.TTL.Privacy = "soon"
	cfg.Scope.AllowedCIDRs = []string{"10.0.0.0/33"}
	cfg.Sources.Purity = append(cfg.Sources.Purity, SourceConfig{Name: "broken"})

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	for _, want := range []string{"db_path", "limits.purity", "ttl.privacy", "allowed_cidrs", "provider cannot be empty"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err.Error(), want)
		}
	}
}

func TestValidateScopeAcceptsBareAddresses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scope.AllowedCIDRs = []string{"10.0.0.0/8", "192.0.2.7", " 2001:db8::1 "}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("bare addresses should validate: %v", err)
	}

	cfg.Scope.AllowedCIDRs = []string{"not-an-address"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "allowed_cidrs") {
		t.Fatalf("expected allowed_cidrs error, got %v", err)
	}
}

func TestSourceStatus(t *testing.T) {
	tests := []struct {
		name string
		src  SourceConfig
		want SourceStatus
	}{
		{"disabled", SourceConfig{Provider: "google", Enabled: false}, StatusDisabled},
		{"keyless", SourceConfig{Provider: "ip-api", Enabled: true}, StatusReady},
		{"keyed without key", SourceConfig{Provider: "abuseipdb", Enabled: true}, StatusMissingKey},
		{"keyed with key", SourceConfig{Provider: "abuseipdb", Enabled: true, APIKey: "k"}, StatusReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.src.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("", time.Second); got != time.Second {
		t.Errorf("empty: got %s", got)
	}
	if got := Duration("bogus", time.Second); got != time.Second {
		t.Errorf("invalid: got %s", got)
	}
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("valid: got %s", got)
	}
}
