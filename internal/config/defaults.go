package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a Config with sensible default values.
// Source lists are ordered with keyless, unmetered providers first.
func DefaultConfig() *Config {
	return &Config{
		DBPath:    "netdiag.db",
		ReportDir: "reports",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Network: NetworkConfig{
			UserAgent: "netdiag/0.1",
		},
		Limits: LimitsConfig{
			DNSLeak: 2,
			Purity:  3,
			Privacy: 2,
		},
		TTL: TTLConfig{
			DNSLeak: "10m",
			Purity:  "5m",
			Privacy: "5m",
		},
		DNSLeak: DNSLeakConfig{
			TestDomain:     "whoami.akamai.net",
			TrustedServers: []string{},
			ResolvConf:     "/etc/resolv.conf",
		},
		Sources: SourcesConfig{
			DNSLeak: []SourceConfig{
				{Name: "Google DNS", Provider: "google", Enabled: true, BaseURL: "https://dns.google/resolve", Timeout: "8s"},
				{Name: "Cloudflare DNS", Provider: "cloudflare", Enabled: true, BaseURL: "https://cloudflare-dns.com/dns-query", Timeout: "8s"},
				{Name: "Quad9 DNS", Provider: "quad9", Enabled: true, BaseURL: "https://dns.quad9.net:5053/dns-query", Timeout: "10s"},
				{Name: "AliDNS", Provider: "alidns", Enabled: true, BaseURL: "https://dns.alidns.com/resolve", Timeout: "10s"},
				{Name: "DNSPod", Provider: "dnspod", Enabled: true, BaseURL: "https://doh.pub/dns-query", Timeout: "10s"},
				{Name: "OpenDNS", Provider: "opendns", Enabled: false, BaseURL: "https://dns.opendns.com/resolve", Timeout: "10s"},
			},
			Purity: []SourceConfig{
				{Name: "ip-api.com", Provider: "ip-api", Enabled: true, BaseURL: "http://ip-api.com/json", Timeout: "10s"},
				{Name: "proxycheck.io", Provider: "proxycheck", Enabled: true, BaseURL: "https://proxycheck.io/v2", Timeout: "12s"},
				{Name: "AbuseIPDB", Provider: "abuseipdb", Enabled: true, BaseURL: "https://api.abuseipdb.com/api/v2", Timeout: "15s"},
				{Name: "ipapi.co", Provider: "ipapi", Enabled: true, BaseURL: "https://ipapi.co", Timeout: "8s"},
			},
			Privacy: []SourceConfig{
				{Name: "ip-api.com", Provider: "ip-api", Enabled: true, BaseURL: "http://ip-api.com/json", Timeout: "10s"},
				{Name: "proxycheck.io", Provider: "proxycheck", Enabled: true, BaseURL: "https://proxycheck.io/v2", Timeout: "12s"},
				{Name: "IP2Location.io", Provider: "ip2location", Enabled: true, BaseURL: "https://api.ip2location.io", Timeout: "12s"},
				{Name: "ipwho.is", Provider: "ipwhois", Enabled: true, BaseURL: "https://ipwho.is", Timeout: "10s"},
				{Name: "Whoer", Provider: "whoer", Enabled: false, BaseURL: "https://whoer.net/api/v2", Timeout: "15s"},
			},
			Geo: []SourceConfig{
				{Name: "ipapi.co", Provider: "ipapi", Enabled: true, BaseURL: "https://ipapi.co", Timeout: "8s"},
				{Name: "ip-api.com", Provider: "ip-api", Enabled: true, BaseURL: "http://ip-api.com/json", Timeout: "10s"},
				{Name: "ipinfo.io", Provider: "ipinfo", Enabled: true, BaseURL: "https://ipinfo.io", Timeout: "10s"},
				{Name: "ipwho.is", Provider: "ipwhois", Enabled: true, BaseURL: "https://ipwho.is", Timeout: "10s"},
			},
		},
		Latency: LatencyConfig{
			Count:   10,
			Timeout: "5s",
			Gap:     "100ms",
		},
		Scope: ScopeConfig{
			AllowedCIDRs: []string{},
		},
		Server: ServerConfig{
			Listen:         "127.0.0.1:8080",
			AllowedOrigins: []string{},
		},
	}
}

// WriteDefault writes a default configuration to the specified path
func WriteDefault(path string) error {
	cfg := DefaultConfig()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
