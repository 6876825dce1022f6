package probe

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// canonicalIP returns the textual form providers key their answers by, so
// "2001:DB8::1" and "::ffff:192.0.2.1" match "2001:db8::1" and "192.0.2.1".
func canonicalIP(subject string) string {
	if ip := net.ParseIP(strings.TrimSpace(subject)); ip != nil {
		return ip.String()
	}
	return subject
}

// pickString returns the first non-empty string-ish value among keys
func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				return strings.TrimSpace(t)
			}
		case float64:
			return fmt.Sprintf("%.0f", t)
		}
	}
	return ""
}

// pickBool accepts JSON booleans as well as "yes"/"true"/"1" style strings
func pickBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch t := m[k].(type) {
		case bool:
			if t {
				return true
			}
		case string:
			if yes(t) {
				return true
			}
		case float64:
			if t != 0 {
				return true
			}
		}
	}
	return false
}

func yes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}

// pickFloat returns the first numeric value among keys
func pickFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch t := m[k].(type) {
		case float64:
			return t
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// joinPath appends escaped path segments to base
func joinPath(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, s := range segments {
		if s == "" {
			continue
		}
		b.WriteString("/")
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func requireSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("subject address required")
	}
	return nil
}
