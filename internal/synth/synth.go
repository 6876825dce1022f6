// Package synth turns probe output or heuristic verdicts into the final,
// fully populated DetectionResult for a category.
package synth

import (
	"fmt"
	"strings"
	"time"

	"github.com/hakim/netdiag/internal/heuristic"
	"github.com/hakim/netdiag/internal/models"
)

// Flag weights applied when a source reports proxy-style signals
const (
	WeightTor     = 70
	WeightProxy   = 40
	WeightVPN     = 30
	WeightHosting = 25
)

// Leak scoring
const (
	leakBase     = 40
	leakPerExtra = 15
)

// DefaultTestDomain is resolved through DoH sources to reveal which
// resolvers answer on behalf of the caller
const DefaultTestDomain = "whoami.akamai.net"

// Options carries category-specific inputs that are not part of a probe answer
type Options struct {
	TestDomain     string
	TrustedServers []string
	Now            func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// FromExternal builds a result from one probe's answer
func FromExternal(category models.Category, subject string, src *models.SourceResult, opts Options) *models.DetectionResult {
	r := base(category, subject, opts)
	r.DataSource = models.SourceExternal
	r.Provider = src.Provider
	r.ResponseTimeMs = src.ResponseTimeMs
	r.Location = src.Location()
	r.Country = src.Country
	r.CountryCode = src.CountryCode
	r.Region = src.Region
	r.City = src.City
	r.ISP = src.ISP
	r.Org = src.Org
	r.ASN = src.ASN
	r.Timezone = src.Timezone
	r.Latitude = src.Latitude
	r.Longitude = src.Longitude
	r.SourceIP = src.IP
	r.LastReportedAt = src.LastReportedAt
	r.UsageType = src.UsageType
	r.ReportCategories = append([]string{}, src.ReportCategories...)
	if subject == "" && src.IP != models.Unknown {
		r.IP = src.IP
	}

	switch category {
	case models.CategoryDNSLeak:
		dnsLeakFromExternal(r, src, opts)
	case models.CategoryPurity:
		purityFromExternal(r, src)
	case models.CategoryPrivacy:
		privacyFromExternal(r, src)
	}

	return finalize(r)
}

func dnsLeakFromExternal(r *models.DetectionResult, src *models.SourceResult, opts Options) {
	r.DNSServers = append([]string{}, src.Servers...)
	leaking, suspect := heuristic.LeakCheck(src.Servers, opts.TrustedServers)
	r.IsLeaking = leaking
	r.RiskScore = leakScore(leaking, suspect)

	if leaking {
		r.Threats = append(r.Threats, models.Threat{
			Type:        "DNS Leak",
			Description: "Queries resolved through " + strings.Join(suspect, ", "),
		})
		r.Explanation = fmt.Sprintf("DNS leak detected via %s: %d resolver(s) outside the expected path",
			src.Provider, len(suspect))
		return
	}
	r.Explanation = fmt.Sprintf("No DNS leak detected via %s (%s)", src.Provider, strings.Join(src.Servers, ", "))
}

func purityFromExternal(r *models.DetectionResult, src *models.SourceResult) {
	r.TotalReports = src.TotalReports

	if src.Kind == models.KindAbuse {
		r.RiskScore = src.AbuseScore
		r.HasAbuseHistory = src.TotalReports > 0
		r.IsListed = src.AbuseScore >= 25 || src.Tor
		for _, c := range src.ReportCategories {
			r.Threats = append(r.Threats, models.Threat{Type: c, Description: "Reported to " + src.Provider})
		}
		if src.Tor {
			r.UsingTor = true
			r.Threats = append(r.Threats, models.Threat{Type: "Tor Exit Node", Description: "Flagged as Tor by " + src.Provider})
		}
		switch {
		case src.Tor:
			r.Explanation = fmt.Sprintf("Detected Tor exit node via %s", src.Provider)
		case src.TotalReports > 0:
			r.Explanation = fmt.Sprintf("%s reports %d abuse report(s), confidence %d%%",
				src.Provider, src.TotalReports, src.AbuseScore)
		default:
			r.Explanation = fmt.Sprintf("No abuse reports found via %s", src.Provider)
		}
		return
	}

	r.RiskScore, r.Threats = flagScore(src)
	if src.Kind == models.KindGeo && len(r.Threats) == 0 && heuristic.IsHostingName(src.ISP) {
		r.RiskScore = WeightHosting
		r.Threats = append(r.Threats, models.Threat{Type: "Datacenter/VPN", Description: "Network operator " + src.ISP + " is a hosting provider"})
	}
	r.UsingTor = src.Tor
	r.IsListed = src.Tor
	r.Explanation = flagExplanation(src, "no blocklist indicators")
}

func privacyFromExternal(r *models.DetectionResult, src *models.SourceResult) {
	r.RiskScore, r.Threats = flagScore(src)
	r.UsingProxy = src.Proxy
	r.UsingVPN = src.VPN
	r.UsingTor = src.Tor
	r.ProxyType = src.ProxyType
	r.VPNProvider = src.VPNProvider
	r.Explanation = flagExplanation(src, "no proxy, VPN or Tor detected")
}

// flagScore sums the weights of every flag a source raised
func flagScore(src *models.SourceResult) (int, []models.Threat) {
	score := 0
	threats := []models.Threat{}
	if src.Tor {
		score += WeightTor
		threats = append(threats, models.Threat{Type: "Tor Exit Node", Description: "Flagged as Tor by " + src.Provider})
	}
	if src.Proxy {
		score += WeightProxy
		threats = append(threats, models.Threat{Type: "Proxy", Description: "Flagged as proxy by " + src.Provider})
	}
	if src.VPN {
		score += WeightVPN
		desc := "Flagged as VPN by " + src.Provider
		if src.VPNProvider != models.Unknown {
			desc += " (" + src.VPNProvider + ")"
		}
		threats = append(threats, models.Threat{Type: "VPN", Description: desc})
	}
	if src.Hosting {
		score += WeightHosting
		threats = append(threats, models.Threat{Type: "Datacenter/VPN", Description: "Hosting network per " + src.Provider})
	}
	return score, threats
}

func flagExplanation(src *models.SourceResult, clean string) string {
	switch {
	case src.Tor:
		return fmt.Sprintf("Detected Tor exit node via %s", src.Provider)
	case src.VPN && src.VPNProvider != models.Unknown:
		return fmt.Sprintf("Detected VPN (%s) via %s", src.VPNProvider, src.Provider)
	case src.VPN:
		return fmt.Sprintf("Detected VPN via %s", src.Provider)
	case src.Proxy:
		return fmt.Sprintf("Detected proxy via %s", src.Provider)
	case src.Hosting:
		return fmt.Sprintf("Detected hosting/datacenter network via %s", src.Provider)
	default:
		return fmt.Sprintf("%s via %s", capitalize(clean), src.Provider)
	}
}

// FromHeuristic builds a result from a local verdict
func FromHeuristic(category models.Category, subject string, v heuristic.Verdict, opts Options) *models.DetectionResult {
	r := base(category, subject, opts)
	r.DataSource = models.SourceLocal
	r.Provider = "local heuristics"
	r.RiskScore = v.RiskScore
	r.Threats = append(r.Threats, v.Threats...)
	r.Location = v.Location
	r.Country = v.Country
	r.CountryCode = v.CountryCode
	r.Region = v.Region
	r.City = v.City
	r.ISP = v.ISP
	r.ASN = v.ASN
	r.Timezone = v.Timezone
	r.Explanation = v.Explanation

	switch category {
	case models.CategoryPurity:
		r.IsListed = v.Tor || v.Malicious
		r.HasAbuseHistory = v.Malicious
		r.UsingTor = v.Tor
	case models.CategoryPrivacy:
		r.UsingTor = v.Tor
		r.UsingVPN = v.Datacenter
		if v.Datacenter {
			r.ProxyType = "datacenter"
		}
	}

	return finalize(r)
}

// FromResolvers builds the DNS-leak result from locally configured resolvers
func FromResolvers(v heuristic.ResolverVerdict, opts Options) *models.DetectionResult {
	r := base(models.CategoryDNSLeak, "", opts)
	r.DataSource = models.SourceLocal
	r.Provider = "system resolver configuration"
	r.DNSServers = append([]string{}, v.Servers...)
	r.IsLeaking = v.Leaking
	r.RiskScore = leakScore(v.Leaking, v.Suspect)
	r.Explanation = v.Explanation
	if v.Leaking {
		r.Threats = append(r.Threats, models.Threat{
			Type:        "DNS Leak",
			Description: "Resolvers outside the expected path: " + strings.Join(v.Suspect, ", "),
		})
	}
	return finalize(r)
}

// Fallback is the static result returned when detection itself failed
func Fallback(category models.Category, subject string) *models.DetectionResult {
	r := base(category, subject, Options{})
	r.DataSource = models.SourceFallback
	r.Provider = "none"
	r.RiskScore = 50
	r.Explanation = "Detection failed unexpectedly; showing a static default result"
	return finalize(r)
}

func base(category models.Category, subject string, opts Options) *models.DetectionResult {
	r := &models.DetectionResult{
		Category:         category,
		IP:               subject,
		DNSServers:       []string{},
		SourceIP:         models.Unknown,
		Threats:          []models.Threat{},
		LastReportedAt:   models.Unknown,
		UsageType:        models.Unknown,
		ReportCategories: []string{},
		ProxyType:        models.Unknown,
		VPNProvider:      models.Unknown,
		Location:         models.Unknown,
		Country:          models.Unknown,
		CountryCode:      models.Unknown,
		Region:           models.Unknown,
		City:             models.Unknown,
		ISP:              models.Unknown,
		Org:              models.Unknown,
		ASN:              models.Unknown,
		Timezone:         models.Unknown,
		Timestamp:        opts.now(),
	}
	if category == models.CategoryDNSLeak {
		r.TestDomain = opts.TestDomain
	}
	return r
}

// finalize clamps scores and derives the dependent fields
func finalize(r *models.DetectionResult) *models.DetectionResult {
	r.RiskScore = models.ClampScore(r.RiskScore)
	r.PrivacyScore = 100 - r.RiskScore
	r.ThreatLevel = models.LevelFor(r.RiskScore)
	for _, s := range []*string{
		&r.SourceIP, &r.LastReportedAt, &r.UsageType, &r.ProxyType, &r.VPNProvider,
		&r.Location, &r.Country, &r.CountryCode, &r.Region, &r.City,
		&r.ISP, &r.Org, &r.ASN, &r.Timezone,
	} {
		if *s == "" {
			*s = models.Unknown
		}
	}
	if r.ReportCategories == nil {
		r.ReportCategories = []string{}
	}
	return r
}

func leakScore(leaking bool, suspect []string) int {
	if !leaking {
		return 0
	}
	extra := len(suspect) - 1
	if extra < 0 {
		extra = 0
	}
	return leakBase + leakPerExtra*extra
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
