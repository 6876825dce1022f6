package probe

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hakim/netdiag/internal/models"
)

// ── proxycheck.io ─────────────────────────────────────────────────────────────

type proxycheckEntry struct {
	ASN          string  `json:"asn"`
	Provider     string  `json:"provider"`
	Organisation string  `json:"organisation"`
	Country      string  `json:"country"`
	IsoCode      string  `json:"isocode"`
	Region       string  `json:"region"`
	City         string  `json:"city"`
	Timezone     string  `json:"timezone"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Proxy        string  `json:"proxy"`
	Type         string  `json:"type"`
	Operator     *struct {
		Name string `json:"name"`
	} `json:"operator"`
}

// proxycheck.io keys the result object by the queried address, next to a
// top-level "status" string.
func proxycheckAdapter() Adapter {
	return Adapter{
		Provider: "proxycheck",
		Kind:     models.KindProxy,
		URL: func(base, subject, key string) (string, error) {
			if err := requireSubject(subject); err != nil {
				return "", err
			}
			q := url.Values{}
			q.Set("vpn", "1")
			q.Set("asn", "1")
			if key != "" {
				q.Set("key", key)
			}
			return joinPath(base, canonicalIP(subject)) + "?" + q.Encode(), nil
		},
		Decode: func(body []byte, subject string, out *models.SourceResult) error {
			canonical := canonicalIP(subject)
			var raw map[string]json.RawMessage
			if err := json.Unmarshal(body, &raw); err != nil {
				return err
			}

			var status string
			if s, ok := raw["status"]; ok {
				_ = json.Unmarshal(s, &status)
			}
			if status != "ok" && status != "warning" {
				return fmt.Errorf("proxycheck status %q", status)
			}

			entryRaw, ok := raw[canonical]
			if !ok {
				if entryRaw, ok = raw[subject]; !ok {
					return errors.New("no entry for queried address")
				}
			}
			var e proxycheckEntry
			if err := json.Unmarshal(entryRaw, &e); err != nil {
				return err
			}

			out.IP = canonical
			out.ASN = e.ASN
			out.ISP = e.Provider
			out.Org = e.Organisation
			out.Country = e.Country
			out.CountryCode = e.IsoCode
			out.Region = e.Region
			out.City = e.City
			out.Timezone = e.Timezone
			out.Latitude = e.Latitude
			out.Longitude = e.Longitude
			out.ProxyType = e.Type

			flagged := yes(e.Proxy)
			switch strings.ToUpper(e.Type) {
			case "VPN":
				out.VPN = flagged
			case "TOR":
				out.Tor = flagged
			default:
				out.Proxy = flagged
			}
			out.Hosting = strings.EqualFold(e.Type, "hosting")
			if e.Operator != nil && out.VPN {
				out.VPNProvider = e.Operator.Name
			}
			return nil
		},
	}
}

// ── whoer.net ─────────────────────────────────────────────────────────────────

// Whoer's keyed API is not publicly documented, so its body is read
// tolerantly by field name.
func whoerAdapter() Adapter {
	return Adapter{
		Provider: "whoer",
		Kind:     models.KindProxy,
		NeedsKey: true,
		URL: func(base, subject, _ string) (string, error) {
			if err := requireSubject(subject); err != nil {
				return "", err
			}
			return joinPath(base, "ip", subject), nil
		},
		Header: func(h http.Header, key string) {
			h.Set("Authorization", "Bearer "+key)
		},
		Decode: func(body []byte, subject string, out *models.SourceResult) error {
			var raw map[string]any
			if err := json.Unmarshal(body, &raw); err != nil {
				return err
			}
			if inner, ok := raw["data"].(map[string]any); ok {
				raw = inner
			}
			if len(raw) == 0 {
				return errors.New("empty object")
			}

			out.IP = pickString(raw, "ip", "query")
			if out.IP == "" {
				out.IP = subject
			}
			out.Country = pickString(raw, "country", "country_name")
			out.CountryCode = pickString(raw, "country_code", "countryCode", "cc")
			out.Region = pickString(raw, "region", "region_name")
			out.City = pickString(raw, "city", "city_name")
			out.ISP = pickString(raw, "isp", "org", "as_org")
			out.Timezone = pickString(raw, "timezone", "time_zone", "tz")
			out.Proxy = pickBool(raw, "proxy", "is_proxy")
			out.VPN = pickBool(raw, "vpn", "is_vpn")
			out.Tor = pickBool(raw, "tor", "is_tor")
			out.Hosting = pickBool(raw, "hosting", "is_hosting", "datacenter")
			out.ProxyType = pickString(raw, "proxy_type", "type")
			out.VPNProvider = pickString(raw, "vpn_provider", "provider")
			out.Latitude = pickFloat(raw, "latitude", "lat")
			out.Longitude = pickFloat(raw, "longitude", "lon")
			return nil
		},
	}
}
