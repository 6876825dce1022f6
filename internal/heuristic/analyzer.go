// Package heuristic is the offline fallback used when no external source can
// answer. It never touches the network: every verdict is derived from static
// range tables, the shape of the address itself and, when configured, a local
// MaxMind database.
package heuristic

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hakim/netdiag/internal/models"
)

// Rule deltas added to the risk score
const (
	DeltaTor            = 60
	DeltaMalicious      = 50
	DeltaDatacenter     = 25
	DeltaHostingASN     = 25
	DeltaDynamic        = 10
	DeltaAllEqualOctets = 15
	DeltaRepeatingPairs = 10
	DeltaTrailingZero   = 20
	DeltaTrailing255    = 20
)

// ExplanationReserved is attached to every private/reserved verdict
const ExplanationReserved = "private/reserved address"

// GeoInfo is what an offline database knows about an address
type GeoInfo struct {
	Country     string
	CountryCode string
	Region      string
	City        string
	Timezone    string
	ASN         string
	ASNOrg      string
}

// GeoLookup resolves an address against a local database
type GeoLookup interface {
	Lookup(ip net.IP) (GeoInfo, bool)
}

// Verdict is the outcome of a local analysis
type Verdict struct {
	IP           string
	Reserved     bool
	Tor          bool
	Malicious    bool
	Datacenter   bool
	Dynamic      bool
	RiskScore    int
	PrivacyScore int
	ThreatLevel  models.ThreatLevel
	Threats      []models.Threat
	Location     string
	Country      string
	Region       string
	City         string
	CountryCode  string
	ISP          string
	ASN          string
	Timezone     string
	Explanation  string
}

// Analyzer runs the local rules. The zero value is usable and performs no
// database enrichment.
type Analyzer struct {
	Geo GeoLookup
}

// New returns an Analyzer with an optional offline geo database
func New(geo GeoLookup) *Analyzer {
	return &Analyzer{Geo: geo}
}

// Analyze scores ip using static tables only
func (a *Analyzer) Analyze(ip string) Verdict {
	v := Verdict{
		IP:          ip,
		Threats:     []models.Threat{},
		Location:    models.Unknown,
		CountryCode: models.Unknown,
		ISP:         models.Unknown,
		Timezone:    models.Unknown,
	}

	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		v.Explanation = "invalid address"
		return finish(v)
	}

	// ── 1. Private and reserved ranges override everything ────────────────────
	if IsReserved(parsed) {
		v.Reserved = true
		v.Location = models.PrivateLocation
		v.ISP = models.PrivateISP
		v.Explanation = ExplanationReserved
		return finish(v)
	}

	var geo GeoInfo
	var haveGeo bool
	if a != nil && a.Geo != nil {
		geo, haveGeo = a.Geo.Lookup(parsed)
		if haveGeo {
			v.Location = geoLocation(geo)
			if geo.CountryCode != "" {
				v.CountryCode = geo.CountryCode
			}
			if geo.ASNOrg != "" {
				v.ISP = geo.ASNOrg
			}
			if geo.Timezone != "" {
				v.Timezone = geo.Timezone
			}
			v.Country, v.Region, v.City, v.ASN = geo.Country, geo.Region, geo.City, geo.ASN
		}
	}

	// The remaining rules read dotted-quad octets; IPv6 only gets enrichment
	v4 := parsed.To4()
	if v4 != nil {
		dotted := v4.String()

		// ── 2. Static Tor and malicious range tables ──────────────────────────
		for _, r := range torExitRanges {
			if r.pattern.MatchString(dotted) {
				v.Tor = true
				v.RiskScore += DeltaTor
				v.Threats = append(v.Threats, models.Threat{Type: "Tor Exit Node", Description: r.description})
				break
			}
		}
		for _, r := range maliciousRanges {
			if r.pattern.MatchString(dotted) {
				v.Malicious = true
				v.RiskScore += DeltaMalicious
				v.Threats = append(v.Threats, models.Threat{Type: "Malicious Activity", Description: r.description})
				break
			}
		}

		// ── 3. Octet heuristics ───────────────────────────────────────────────
		o := [4]int{int(v4[0]), int(v4[1]), int(v4[2]), int(v4[3])}

		prefix16 := strconv.Itoa(o[0]) + "." + strconv.Itoa(o[1])
		if owner, ok := datacenterPrefixes[prefix16]; ok {
			v.Datacenter = true
			v.RiskScore += DeltaDatacenter
			v.Threats = append(v.Threats, models.Threat{
				Type:        "Datacenter/VPN",
				Description: fmt.Sprintf("Address is in %s.0.0/16 (%s)", prefix16, owner),
			})
		}

		if dynamicFirstOctets[o[0]] || cgnat.Contains(v4) {
			v.Dynamic = true
			v.RiskScore += DeltaDynamic
			v.Threats = append(v.Threats, models.Threat{
				Type:        "Dynamic Range",
				Description: "Address belongs to a dynamic consumer pool frequently found on blocklists",
			})
		}

		if o[0] == o[1] && o[1] == o[2] && o[2] == o[3] {
			v.RiskScore += DeltaAllEqualOctets
			v.Threats = append(v.Threats, models.Threat{Type: "Suspicious Pattern", Description: "All octets are equal"})
		} else if o[0] == o[2] && o[1] == o[3] {
			v.RiskScore += DeltaRepeatingPairs
			v.Threats = append(v.Threats, models.Threat{Type: "Suspicious Pattern", Description: "Octets repeat in pairs"})
		}

		switch o[3] {
		case 0:
			v.RiskScore += DeltaTrailingZero
			v.Threats = append(v.Threats, models.Threat{Type: "Suspicious Pattern", Description: "Network address (trailing .0)"})
		case 255:
			v.RiskScore += DeltaTrailing255
			v.Threats = append(v.Threats, models.Threat{Type: "Suspicious Pattern", Description: "Broadcast address (trailing .255)"})
		}
	}

	// ── 4. Offline ASN enrichment ─────────────────────────────────────────────
	if haveGeo && !v.Datacenter && IsHostingName(geo.ASNOrg) {
		v.Datacenter = true
		v.RiskScore += DeltaHostingASN
		v.Threats = append(v.Threats, models.Threat{
			Type:        "Datacenter/VPN",
			Description: fmt.Sprintf("Network operator %q is a hosting provider", geo.ASNOrg),
		})
	}

	v.Explanation = explain(v)
	return finish(v)
}

// IsHostingName reports whether an ISP or organisation name looks like
// hosting infrastructure
func IsHostingName(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range hostingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func finish(v Verdict) Verdict {
	v.RiskScore = models.ClampScore(v.RiskScore)
	v.PrivacyScore = 100 - v.RiskScore
	v.ThreatLevel = models.LevelFor(v.RiskScore)
	return v
}

func explain(v Verdict) string {
	switch {
	case v.Tor:
		return "Address matches a known Tor exit range"
	case v.Malicious:
		return "Address matches a known malicious range"
	case len(v.Threats) > 0:
		kinds := make([]string, 0, len(v.Threats))
		for _, t := range v.Threats {
			kinds = append(kinds, strings.ToLower(t.Type))
		}
		return "Local heuristics flagged: " + strings.Join(dedupe(kinds), ", ")
	default:
		return "No local risk indicators found"
	}
}

func geoLocation(g GeoInfo) string {
	var parts []string
	for _, p := range []string{g.City, g.Region, g.Country} {
		if p != "" && (len(parts) == 0 || parts[len(parts)-1] != p) {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return models.Unknown
	}
	return strings.Join(parts, ", ")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
