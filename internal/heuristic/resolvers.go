package heuristic

import (
	"bufio"
	"io"
	"net"
	"strings"
)

// ResolverVerdict is the local assessment of the system's configured resolvers
type ResolverVerdict struct {
	Servers     []string
	Suspect     []string
	Leaking     bool
	Explanation string
}

// LeakCheck decides whether the observed resolvers indicate a DNS leak.
//
// With a trusted list, any public resolver outside it is suspect. Without one,
// resolvers answering from more than one /24 (or /48 for IPv6) are treated as
// queries escaping through more than one path, and all of them are suspect.
// Private and loopback resolvers never count.
func LeakCheck(servers, trusted []string) (leaking bool, suspect []string) {
	public := make([]net.IP, 0, len(servers))
	for _, s := range servers {
		ip := net.ParseIP(strings.TrimSpace(s))
		if ip == nil || IsReserved(ip) {
			continue
		}
		public = append(public, ip)
	}
	suspect = []string{}

	if len(trusted) > 0 {
		nets := parseTrusted(trusted)
		for _, ip := range public {
			if !containedIn(ip, nets) {
				suspect = append(suspect, ip.String())
			}
		}
		return len(suspect) > 0, suspect
	}

	networks := make(map[string]bool)
	for _, ip := range public {
		networks[networkKey(ip)] = true
	}
	if len(networks) > 1 {
		for _, ip := range public {
			suspect = append(suspect, ip.String())
		}
		return true, suspect
	}
	return false, suspect
}

// AnalyzeResolvers runs LeakCheck over locally configured resolvers
func AnalyzeResolvers(servers, trusted []string) ResolverVerdict {
	leaking, suspect := LeakCheck(servers, trusted)
	v := ResolverVerdict{
		Servers: append([]string{}, servers...),
		Suspect: suspect,
		Leaking: leaking,
	}

	switch {
	case len(servers) == 0:
		v.Explanation = "No resolvers could be determined locally; leak status unknown"
	case leaking:
		v.Explanation = "Local resolver configuration sends queries to " + strings.Join(suspect, ", ")
	case allReserved(servers):
		v.Explanation = "Only local stub resolvers are configured; upstream resolvers could not be determined"
	default:
		v.Explanation = "Locally configured resolvers look consistent"
	}
	return v
}

// ParseResolvConf extracts nameserver addresses from resolv.conf content
func ParseResolvConf(r io.Reader) []string {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "nameserver" && net.ParseIP(fields[1]) != nil {
			out = append(out, fields[1])
		}
	}
	return out
}

func parseTrusted(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if !strings.Contains(e, "/") {
			if ip := net.ParseIP(e); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			}
			continue
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}

func containedIn(ip net.IP, nets []*net.IPNet) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func networkKey(ip net.IP) string {
	if v4 := ip.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return ip.Mask(net.CIDRMask(48, 128)).String()
}

func allReserved(servers []string) bool {
	for _, s := range servers {
		ip := net.ParseIP(s)
		if ip != nil && !IsReserved(ip) {
			return false
		}
	}
	return true
}
