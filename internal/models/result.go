package models

import (
	"slices"
	"strings"
	"time"
)

// DetectionRequest is a single detection action for one subject
type DetectionRequest struct {
	SubjectIP string   `json:"subject_ip"`
	Category  Category `json:"category"`
}

// Threat describes one risk indicator attached to a result
type Threat struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// SourceResult is the normalized answer of one external source.
// Every probe fills the fields relevant to its kind and leaves the rest at
// their defaults; string fields are never empty after normalization.
type SourceResult struct {
	Provider       string    `json:"provider"`
	Kind           ProbeKind `json:"kind"`
	ResponseTimeMs int64     `json:"response_time_ms"`

	// DNS-over-HTTPS
	Servers []string `json:"servers"`

	// Geolocation
	IP          string  `json:"ip"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	ASN         string  `json:"asn"`
	Timezone    string  `json:"timezone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`

	// Abuse / threat intelligence
	AbuseScore       int      `json:"abuse_score"`
	TotalReports     int      `json:"total_reports"`
	LastReportedAt   string   `json:"last_reported_at"`
	ReportCategories []string `json:"report_categories"`
	UsageType        string   `json:"usage_type"`

	// Proxy / VPN detection
	Proxy       bool   `json:"proxy"`
	VPN         bool   `json:"vpn"`
	Tor         bool   `json:"tor"`
	Hosting     bool   `json:"hosting"`
	ProxyType   string `json:"proxy_type"`
	VPNProvider string `json:"vpn_provider"`
}

// NewSourceResult returns a SourceResult with every string field set to Unknown
// and every slice non-nil.
func NewSourceResult(provider string, kind ProbeKind) *SourceResult {
	return &SourceResult{
		Provider:         provider,
		Kind:             kind,
		Servers:          []string{},
		IP:               Unknown,
		Country:          Unknown,
		CountryCode:      Unknown,
		Region:           Unknown,
		City:             Unknown,
		ISP:              Unknown,
		Org:              Unknown,
		ASN:              Unknown,
		Timezone:         Unknown,
		LastReportedAt:   Unknown,
		ReportCategories: []string{},
		UsageType:        Unknown,
		ProxyType:        Unknown,
		VPNProvider:      Unknown,
	}
}

// Location renders the city/region/country triple as a single display string
func (s *SourceResult) Location() string {
	var parts []string
	for _, p := range []string{s.City, s.Region, s.Country} {
		if p != "" && p != Unknown && !slices.Contains(parts, p) {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return Unknown
	}
	return strings.Join(parts, ", ")
}

// DetectionResult is the final, category-specific outcome of a detection.
// Fields not relevant to a category keep their zero or Unknown defaults.
type DetectionResult struct {
	Category Category `json:"category"`
	IP       string   `json:"ip"`

	// DNS leak
	IsLeaking  bool     `json:"is_leaking"`
	DNSServers []string `json:"dns_servers"`
	TestDomain string   `json:"test_domain,omitempty"`

	// SourceIP is the address the answering source reported, which differs
	// from IP when the subject was the caller's own address.
	SourceIP string `json:"source_ip"`

	// Scores
	RiskScore    int         `json:"risk_score"`
	PrivacyScore int         `json:"privacy_score"`
	ThreatLevel  ThreatLevel `json:"threat_level"`

	// Purity
	IsListed        bool     `json:"is_listed"`
	HasAbuseHistory bool     `json:"has_abuse_history"`
	TotalReports    int      `json:"total_reports"`
	Threats         []Threat `json:"threats"`

	LastReportedAt   string   `json:"last_reported_at"`
	UsageType        string   `json:"usage_type"`
	ReportCategories []string `json:"report_categories"`

	// Privacy
	UsingProxy  bool   `json:"using_proxy"`
	UsingVPN    bool   `json:"using_vpn"`
	UsingTor    bool   `json:"using_tor"`
	ProxyType   string `json:"proxy_type"`
	VPNProvider string `json:"vpn_provider"`

	Location    string  `json:"location"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	ASN         string  `json:"asn"`
	Timezone    string  `json:"timezone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`

	Provider       string     `json:"provider"`
	ResponseTimeMs int64      `json:"response_time_ms"`
	Explanation    string     `json:"explanation"`
	DataSource     DataSource `json:"data_source"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Clone returns a deep copy so cached results cannot be mutated by callers
func (r *DetectionResult) Clone() *DetectionResult {
	if r == nil {
		return nil
	}
	cp := *r
	cp.DNSServers = slices.Clone(r.DNSServers)
	cp.Threats = slices.Clone(r.Threats)
	cp.ReportCategories = slices.Clone(r.ReportCategories)
	return &cp
}
