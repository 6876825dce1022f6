package pipeline

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// ScopeConfig defines which subject addresses may be checked.
// An empty or nil ScopeConfig allows any address.
type ScopeConfig struct {
	// AllowedCIDRs is a list of CIDR ranges an IP must fall within.
	AllowedCIDRs []string
}

// ValidateIP checks if an IP is within any allowed CIDR range.
// Returns nil if allowed or no CIDRs configured, error if out of scope.
func (s *ScopeConfig) ValidateIP(ip string) error {
	if s == nil || len(s.AllowedCIDRs) == 0 {
		return nil
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return fmt.Errorf("scope: %q is not a valid IP address", ip)
	}
	for _, cidr := range s.AllowedCIDRs {
		network, err := parseCIDROrIP(cidr)
		if err != nil {
			continue
		}
		if network.Contains(parsed) {
			return nil
		}
	}
	return fmt.Errorf("IP %q is outside allowed CIDR scope (%s)",
		ip, strings.Join(s.AllowedCIDRs, ", "))
}

// ValidateHost checks a latency target. host may carry a port and may be a
// name, in which case every address it resolves to must be in scope.
func (s *ScopeConfig) ValidateHost(ctx context.Context, host string) error {
	if s == nil || len(s.AllowedCIDRs) == 0 {
		return nil
	}
	host = strings.TrimSpace(host)
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if net.ParseIP(host) != nil {
		return s.ValidateIP(host)
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("scope: resolving %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("scope: %q has no addresses", host)
	}
	for _, a := range addrs {
		if err := s.ValidateIP(a.IP.String()); err != nil {
			return fmt.Errorf("host %q: %w", host, err)
		}
	}
	return nil
}

// parseCIDROrIP accepts "10.0.0.0/8" as well as a bare address, which is
// treated as a single-host range.
func parseCIDROrIP(entry string) (*net.IPNet, error) {
	entry = strings.TrimSpace(entry)
	if !strings.Contains(entry, "/") {
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid address %q", entry)
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
	}
	_, network, err := net.ParseCIDR(entry)
	return network, err
}
