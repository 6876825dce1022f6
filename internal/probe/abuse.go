package probe

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"

	"github.com/hakim/netdiag/internal/models"
)

// abuseCategories maps AbuseIPDB report category IDs to readable names
var abuseCategories = map[int]string{
	1:  "DNS Compromise",
	2:  "DNS Poisoning",
	3:  "Fraud Orders",
	4:  "DDoS Attack",
	5:  "FTP Brute-Force",
	6:  "Ping of Death",
	7:  "Phishing",
	8:  "Fraud VoIP",
	9:  "Open Proxy",
	10: "Web Spam",
	11: "Email Spam",
	12: "Blog Spam",
	13: "VPN IP",
	14: "Port Scan",
	15: "Hacking",
	16: "SQL Injection",
	17: "Spoofing",
	18: "Brute-Force",
	19: "Bad Web Bot",
	20: "Exploited Host",
	21: "Web App Attack",
	22: "SSH",
	23: "IoT Targeted",
}

type abuseIPDBResponse struct {
	Data *struct {
		IPAddress            string `json:"ipAddress"`
		IsPublic             bool   `json:"isPublic"`
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
		CountryCode          string `json:"countryCode"`
		CountryName          string `json:"countryName"`
		UsageType            string `json:"usageType"`
		ISP                  string `json:"isp"`
		Domain               string `json:"domain"`
		IsTor                bool   `json:"isTor"`
		TotalReports         int    `json:"totalReports"`
		LastReportedAt       string `json:"lastReportedAt"`
		Reports              []struct {
			Categories []int `json:"categories"`
		} `json:"reports"`
	} `json:"data"`
}

func abuseIPDBAdapter() Adapter {
	return Adapter{
		Provider: "abuseipdb",
		Kind:     models.KindAbuse,
		NeedsKey: true,
		URL: func(base, subject, _ string) (string, error) {
			if err := requireSubject(subject); err != nil {
				return "", err
			}
			q := url.Values{}
			q.Set("ipAddress", subject)
			q.Set("maxAgeInDays", "90")
			return base + "/check?" + q.Encode() + "&verbose", nil
		},
		Header: func(h http.Header, key string) {
			h.Set("Key", key)
		},
		Decode: func(body []byte, subject string, out *models.SourceResult) error {
			var raw abuseIPDBResponse
			if err := json.Unmarshal(body, &raw); err != nil {
				return err
			}
			if raw.Data == nil {
				return errors.New("missing data object")
			}
			d := raw.Data
			out.IP = d.IPAddress
			if out.IP == "" {
				out.IP = subject
			}
			out.AbuseScore = d.AbuseConfidenceScore
			out.TotalReports = d.TotalReports
			out.LastReportedAt = d.LastReportedAt
			out.CountryCode = d.CountryCode
			out.Country = d.CountryName
			out.UsageType = d.UsageType
			out.ISP = d.ISP
			out.Tor = d.IsTor
			out.Hosting = d.UsageType == "Data Center/Web Hosting/Transit"

			seen := make(map[int]bool)
			for _, r := range d.Reports {
				for _, c := range r.Categories {
					seen[c] = true
				}
			}
			ids := make([]int, 0, len(seen))
			for c := range seen {
				ids = append(ids, c)
			}
			sort.Ints(ids)
			for _, c := range ids {
				if name, ok := abuseCategories[c]; ok {
					out.ReportCategories = append(out.ReportCategories, name)
				}
			}
			return nil
		},
	}
}
