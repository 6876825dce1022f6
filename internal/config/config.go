package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	DBPath    string        `mapstructure:"db_path" yaml:"db_path"`
	ReportDir string        `mapstructure:"report_dir" yaml:"report_dir"`
	Log       LogConfig     `mapstructure:"log" yaml:"log"`
	Network   NetworkConfig `mapstructure:"network" yaml:"network"`
	GeoIP     GeoIPConfig   `mapstructure:"geoip" yaml:"geoip"`
	Limits    LimitsConfig  `mapstructure:"limits" yaml:"limits"`
	TTL       TTLConfig     `mapstructure:"ttl" yaml:"ttl"`
	DNSLeak   DNSLeakConfig `mapstructure:"dns_leak" yaml:"dns_leak"`
	Sources   SourcesConfig `mapstructure:"sources" yaml:"sources"`
	Latency   LatencyConfig `mapstructure:"latency" yaml:"latency"`
	Notify    NotifyConfig  `mapstructure:"notify" yaml:"notify"`
	Scope     ScopeConfig   `mapstructure:"scope" yaml:"scope"`
	Server    ServerConfig  `mapstructure:"server" yaml:"server"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// NetworkConfig controls the outbound HTTP client shared by all probes
type NetworkConfig struct {
	SOCKS5    string `mapstructure:"socks5" yaml:"socks5"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// GeoIPConfig points at optional offline MaxMind databases
type GeoIPConfig struct {
	CityDB string `mapstructure:"city_db" yaml:"city_db"`
	ASNDB  string `mapstructure:"asn_db" yaml:"asn_db"`
}

// LimitsConfig caps in-flight external lookups per detection category
type LimitsConfig struct {
	DNSLeak int `mapstructure:"dns_leak" yaml:"dns_leak"`
	Purity  int `mapstructure:"purity" yaml:"purity"`
	Privacy int `mapstructure:"privacy" yaml:"privacy"`
}

// TTLConfig sets how long cached results stay valid per category
type TTLConfig struct {
	DNSLeak string `mapstructure:"dns_leak" yaml:"dns_leak"`
	Purity  string `mapstructure:"purity" yaml:"purity"`
	Privacy string `mapstructure:"privacy" yaml:"privacy"`
}

// DNSLeakConfig tunes the DNS leak detector
type DNSLeakConfig struct {
	TestDomain     string   `mapstructure:"test_domain" yaml:"test_domain"`
	TrustedServers []string `mapstructure:"trusted_servers" yaml:"trusted_servers"`
	ResolvConf     string   `mapstructure:"resolv_conf" yaml:"resolv_conf"`
}

// SourceConfig represents one external data source
type SourceConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Provider string `mapstructure:"provider" yaml:"provider"`
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	Timeout  string `mapstructure:"timeout" yaml:"timeout"`
}

// SourcesConfig holds the ordered source list for every category.
// List order is probe order.
type SourcesConfig struct {
	DNSLeak []SourceConfig `mapstructure:"dns_leak" yaml:"dns_leak"`
	Purity  []SourceConfig `mapstructure:"purity" yaml:"purity"`
	Privacy []SourceConfig `mapstructure:"privacy" yaml:"privacy"`
	Geo     []SourceConfig `mapstructure:"geo" yaml:"geo"`
}

// LatencyConfig controls the HTTP-based ping and port approximations
type LatencyConfig struct {
	Count   int    `mapstructure:"count" yaml:"count"`
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
	Gap     string `mapstructure:"gap" yaml:"gap"`
}

// NotifyConfig configures completion notifications
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
}

// ScopeConfig restricts which subject addresses may be checked
type ScopeConfig struct {
	AllowedCIDRs []string `mapstructure:"allowed_cidrs" yaml:"allowed_cidrs"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
	// AllowedOrigins lists browser origins granted CORS access; "*" allows any
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Load reads and parses configuration from a YAML file
// If path is empty, searches for netdiag.yaml in current directory and ~/.config/netdiag/
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("NETDIAG")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("netdiag")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "netdiag"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path cannot be empty"))
	}

	if c.Limits.DNSLeak <= 0 {
		errs = append(errs, errors.New("limits.dns_leak must be positive"))
	}
	if c.Limits.Purity <= 0 {
		errs = append(errs, errors.New("limits.purity must be positive"))
	}
	if c.Limits.Privacy <= 0 {
		errs = append(errs, errors.New("limits.privacy must be positive"))
	}

	for key, raw := range map[string]string{
		"ttl.dns_leak":    c.TTL.DNSLeak,
		"ttl.purity":      c.TTL.Purity,
		"ttl.privacy":     c.TTL.Privacy,
		"latency.timeout": c.Latency.Timeout,
		"latency.gap":     c.Latency.Gap,
	} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		}
	}

	if c.Latency.Count < 0 {
		errs = append(errs, errors.New("latency.count cannot be negative"))
	}

	for _, group := range []struct {
		name    string
		sources []SourceConfig
	}{
		{"dns_leak", c.Sources.DNSLeak},
		{"purity", c.Sources.Purity},
		{"privacy", c.Sources.Privacy},
		{"geo", c.Sources.Geo},
	} {
		for i, s := range group.sources {
			if s.Provider == "" {
				errs = append(errs, fmt.Errorf("sources.%s[%d]: provider cannot be empty", group.name, i))
			}
			if s.Timeout != "" {
				if _, err := time.ParseDuration(s.Timeout); err != nil {
					errs = append(errs, fmt.Errorf("sources.%s[%d]: invalid timeout %q", group.name, i, s.Timeout))
				}
			}
		}
	}

	// A bare address is a single-host range
	for _, cidr := range c.Scope.AllowedCIDRs {
		entry := strings.TrimSpace(cidr)
		if _, _, err := net.ParseCIDR(entry); err != nil && net.ParseIP(entry) == nil {
			errs = append(errs, fmt.Errorf("scope.allowed_cidrs: invalid CIDR or address %q", cidr))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Duration parses a duration string, returning def when empty or invalid
func Duration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// SourceStatus describes whether a configured source can be used
type SourceStatus string

const (
	StatusReady      SourceStatus = "ready"
	StatusDisabled   SourceStatus = "disabled"
	StatusMissingKey SourceStatus = "missing key"
)

// keyedProviders lists providers that refuse anonymous requests
var keyedProviders = map[string]bool{
	"abuseipdb": true,
	"whoer":     true,
}

// RequiresKey reports whether a provider needs an API key
func RequiresKey(provider string) bool {
	return keyedProviders[provider]
}

// Status reports the readiness of a single source
func (s SourceConfig) Status() SourceStatus {
	if !s.Enabled {
		return StatusDisabled
	}
	if RequiresKey(s.Provider) && s.APIKey == "" {
		return StatusMissingKey
	}
	return StatusReady
}

// SourceReport is one row of the source readiness table
type SourceReport struct {
	Category string
	Source   SourceConfig
	Status   SourceStatus
}

// CheckSources returns the readiness of every configured source, in config order
func (c *Config) CheckSources() []SourceReport {
	var out []SourceReport
	add := func(category string, sources []SourceConfig) {
		for _, s := range sources {
			out = append(out, SourceReport{Category: category, Source: s, Status: s.Status()})
		}
	}
	add("dns-leak", c.Sources.DNSLeak)
	add("purity", c.Sources.Purity)
	add("privacy", c.Sources.Privacy)
	add("geo", c.Sources.Geo)
	return out
}
