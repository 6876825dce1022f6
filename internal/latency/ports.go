package latency

import (
	"fmt"
	"strconv"
	"strings"
)

// CommonPorts is checked when no ports are given
var CommonPorts = []int{21, 22, 23, 25, 53, 80, 110, 143, 443, 993, 995, 3306, 3389, 5432, 6379, 8080, 8443}

var serviceNames = map[int]string{
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	80:    "HTTP",
	110:   "POP3",
	143:   "IMAP",
	443:   "HTTPS",
	993:   "IMAPS",
	995:   "POP3S",
	1433:  "MSSQL",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5900:  "VNC",
	6379:  "Redis",
	8080:  "HTTP-Alt",
	8443:  "HTTPS-Alt",
	27017: "MongoDB",
}

// ServiceName returns the well-known service for port, or "Unknown"
func ServiceName(port int) string {
	if name, ok := serviceNames[port]; ok {
		return name
	}
	return "Unknown"
}

// ParsePorts parses "22,80,8000-8010" into a port list
func ParsePorts(list string) ([]int, error) {
	var ports []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", part)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
		}
		if start < 1 || end > 65535 || start > end {
			return nil, fmt.Errorf("port range %q out of bounds", part)
		}
		for p := start; p <= end; p++ {
			ports = append(ports, p)
		}
	}
	return ports, nil
}
