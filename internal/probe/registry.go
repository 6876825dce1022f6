package probe

import (
	"fmt"
	"sort"

	"github.com/hakim/netdiag/internal/config"
)

// adapters is the registry of every supported provider
var adapters = map[string]func() Adapter{
	"google":      func() Adapter { return dohAdapter("google") },
	"cloudflare":  func() Adapter { return dohAdapter("cloudflare") },
	"quad9":       func() Adapter { return dohAdapter("quad9") },
	"alidns":      func() Adapter { return dohAdapter("alidns") },
	"dnspod":      func() Adapter { return dohAdapter("dnspod") },
	"opendns":     func() Adapter { return dohAdapter("opendns") },
	"ipapi":       ipapiCoAdapter,
	"ip-api":      ipAPIComAdapter,
	"ipinfo":      ipinfoAdapter,
	"ipwhois":     ipwhoisAdapter,
	"ip2location": ip2locationAdapter,
	"proxycheck":  proxycheckAdapter,
	"abuseipdb":   abuseIPDBAdapter,
	"whoer":       whoerAdapter,
}

// Providers returns the names of all registered providers, sorted
func Providers() []string {
	out := make([]string, 0, len(adapters))
	for name := range adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the adapter for provider
func Lookup(provider string) (Adapter, error) {
	mk, ok := adapters[provider]
	if !ok {
		return Adapter{}, fmt.Errorf("unknown provider %q", provider)
	}
	return mk(), nil
}

// Build constructs a probe from one configured source
func Build(src config.SourceConfig, opts Options) (Probe, error) {
	adapter, err := Lookup(src.Provider)
	if err != nil {
		return nil, err
	}
	if src.BaseURL == "" {
		return nil, fmt.Errorf("source %q: base_url is empty", src.Name)
	}
	timeout := config.Duration(src.Timeout, defaultTimeouts[adapter.Kind])
	return NewHTTPProbe(src.Name, src.BaseURL, src.APIKey, timeout, adapter, opts), nil
}

// BuildChain constructs an ordered chain from the enabled sources, preserving
// config order. Disabled sources are skipped.
func BuildChain(sources []config.SourceConfig, opts Options) (*Chain, error) {
	var probes []Probe
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		p, err := Build(src, opts)
		if err != nil {
			return nil, fmt.Errorf("building probe %q: %w", src.Name, err)
		}
		probes = append(probes, p)
	}
	return NewChain(opts.Logger, probes...), nil
}
