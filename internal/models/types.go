package models

// Category identifies a detection category
type Category string

const (
	CategoryDNSLeak Category = "dns-leak"
	CategoryPurity  Category = "purity"
	CategoryPrivacy Category = "privacy"
)

// Categories lists every detection category in canonical run order
var Categories = []Category{CategoryDNSLeak, CategoryPurity, CategoryPrivacy}

// ParseCategory maps a user-supplied name to a Category.
// Accepts the canonical names plus the "whoer" and "dns" aliases.
func ParseCategory(name string) (Category, bool) {
	switch name {
	case "dns-leak", "dnsleak", "dns":
		return CategoryDNSLeak, true
	case "purity":
		return CategoryPurity, true
	case "privacy", "whoer":
		return CategoryPrivacy, true
	default:
		return "", false
	}
}

// ThreatLevel is the discretized bucket derived from a risk score
type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "low"
	ThreatMedium ThreatLevel = "medium"
	ThreatHigh   ThreatLevel = "high"
)

// DataSource records the provenance of a DetectionResult
type DataSource string

const (
	SourceExternal DataSource = "External API"
	SourceLocal    DataSource = "Local Detection"
	SourceFallback DataSource = "Fallback"
)

// ProbeKind is the variant of an external source probe
type ProbeKind string

const (
	KindDoH   ProbeKind = "doh"
	KindGeo   ProbeKind = "geo"
	KindAbuse ProbeKind = "abuse"
	KindProxy ProbeKind = "proxy"
)

// PortStatus represents the approximated state of a probed port
type PortStatus string

const (
	PortOpen     PortStatus = "open"
	PortClosed   PortStatus = "closed"
	PortFiltered PortStatus = "filtered"
)

// Defaults substituted for fields an external source left empty
const (
	Unknown         = "Unknown"
	PrivateLocation = "内网地址"
	PrivateISP      = "private"
)
