package heuristic

import (
	"net"
	"regexp"
)

// reservedCIDRs are private, loopback, link-local, multicast and reserved
// blocks. A match overrides every other rule.
var reservedCIDRs = mustParseCIDRs(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"::1/128",
	"::/128",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
)

// rangeRule matches a dotted-quad address against a /24-style pattern
type rangeRule struct {
	pattern     *regexp.Regexp
	description string
}

// torExitRanges are /24s operated almost entirely as Tor exit relays
var torExitRanges = []rangeRule{
	{regexp.MustCompile(`^185\.220\.10[0-2]\.\d{1,3}$`), "Tor exit relay range (185.220.100-102.0/24)"},
	{regexp.MustCompile(`^199\.249\.230\.\d{1,3}$`), "Tor exit relay range (199.249.230.0/24)"},
	{regexp.MustCompile(`^204\.85\.191\.\d{1,3}$`), "Tor exit relay range (204.85.191.0/24)"},
	{regexp.MustCompile(`^171\.25\.193\.\d{1,3}$`), "Tor exit relay range (171.25.193.0/24)"},
	{regexp.MustCompile(`^162\.247\.7[2-4]\.\d{1,3}$`), "Tor exit relay range (162.247.72-74.0/24)"},
	{regexp.MustCompile(`^109\.70\.100\.\d{1,3}$`), "Tor exit relay range (109.70.100.0/24)"},
	{regexp.MustCompile(`^45\.128\.133\.\d{1,3}$`), "Tor exit relay range (45.128.133.0/24)"},
}

// maliciousRanges are /24s with a long record of mass scanning and brute force
var maliciousRanges = []rangeRule{
	{regexp.MustCompile(`^45\.155\.205\.\d{1,3}$`), "Known mass-scanning range (45.155.205.0/24)"},
	{regexp.MustCompile(`^89\.248\.16[3-8]\.\d{1,3}$`), "Known mass-scanning range (89.248.163-168.0/24)"},
	{regexp.MustCompile(`^193\.142\.146\.\d{1,3}$`), "Known brute-force source range (193.142.146.0/24)"},
	{regexp.MustCompile(`^141\.98\.1[01]\.\d{1,3}$`), "Known brute-force source range (141.98.10-11.0/24)"},
	{regexp.MustCompile(`^185\.156\.73\.\d{1,3}$`), "Known port-scanning range (185.156.73.0/24)"},
	{regexp.MustCompile(`^80\.82\.77\.\d{1,3}$`), "Known internet-wide scanner range (80.82.77.0/24)"},
	{regexp.MustCompile(`^71\.6\.(135|146|158|165|167)\.\d{1,3}$`), "Known internet-wide scanner range (71.6.x.0/24)"},
}

// datacenterPrefixes are /16s dominated by cloud, hosting and commercial VPN
// exit infrastructure
var datacenterPrefixes = map[string]string{
	"3.5":     "Amazon Web Services",
	"13.52":   "Amazon Web Services",
	"18.130":  "Amazon Web Services",
	"52.95":   "Amazon Web Services",
	"54.239":  "Amazon Web Services",
	"34.64":   "Google Cloud",
	"35.186":  "Google Cloud",
	"20.42":   "Microsoft Azure",
	"40.76":   "Microsoft Azure",
	"104.16":  "Cloudflare",
	"104.28":  "Cloudflare WARP",
	"138.68":  "DigitalOcean",
	"159.89":  "DigitalOcean",
	"167.99":  "DigitalOcean",
	"206.189": "DigitalOcean",
	"95.216":  "Hetzner",
	"116.202": "Hetzner",
	"51.38":   "OVH",
	"51.75":   "OVH",
	"139.162": "Linode",
	"172.104": "Linode",
	"45.76":   "Vultr",
	"108.61":  "Vultr",
	"89.44":   "M247 (VPN hosting)",
	"146.70":  "M247 (VPN hosting)",
	"185.159": "Commercial VPN exit space",
}

// dynamicFirstOctets are /8s mostly assigned to residential cable and DSL pools
var dynamicFirstOctets = map[int]bool{
	24: true, 67: true, 68: true, 71: true, 73: true, 75: true, 76: true, 98: true, 99: true,
}

// cgnat is shared carrier address space (RFC 6598), always dynamic
var cgnat = mustParseCIDRs("100.64.0.0/10")[0]

// hostingKeywords flag an ISP or ASN organisation as hosting infrastructure
var hostingKeywords = []string{
	"cloud", "hosting", "data", "server", "colo", "digitalocean", "aws", "amazon",
	"google", "azure", "hetzner", "ovh", "vultr", "linode", "m247",
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// IsReserved reports whether ip falls in a private or reserved block
func IsReserved(ip net.IP) bool {
	for _, n := range reservedCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
