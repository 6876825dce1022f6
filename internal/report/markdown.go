package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hakim/netdiag/internal/models"
)

// WriteSessionReport generates a markdown report for one detection session
// and writes it to the specified output path.
func WriteSessionReport(session *models.SessionMeta, results []*models.DetectionResult, outputPath string) error {
	return writeFile(outputPath, RenderSession(session, results))
}

// RenderSession builds the markdown body of a session report
func RenderSession(session *models.SessionMeta, results []*models.DetectionResult) string {
	var b strings.Builder

	// Header
	b.WriteString("# Network Diagnostics Report\n\n")
	b.WriteString(fmt.Sprintf("**Subject:** %s\n", session.Subject))
	b.WriteString(fmt.Sprintf("**Session:** %s\n", session.ID))
	b.WriteString(fmt.Sprintf("**Date:** %s\n", session.StartedAt.Format("2006-01-02 15:04:05")))
	if session.CompletedAt != nil {
		b.WriteString(fmt.Sprintf("**Duration:** %s\n", session.CompletedAt.Sub(session.StartedAt).Round(time.Millisecond)))
	}
	b.WriteString("\n")

	sorted := sortByCategory(results)

	// Summary table
	b.WriteString("## Summary\n\n")
	if len(sorted) > 0 {
		b.WriteString("| Category | Risk | Privacy | Threat Level | Source | Provider |\n")
		b.WriteString("|----------|------|---------|--------------|--------|----------|\n")
		for _, r := range sorted {
			b.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s | %s |\n",
				r.Category, r.RiskScore, r.PrivacyScore, r.ThreatLevel, r.DataSource, r.Provider))
		}
	} else {
		b.WriteString("No results.\n")
	}
	b.WriteString("\n")

	for _, r := range sorted {
		switch r.Category {
		case models.CategoryDNSLeak:
			writeDNSLeakSection(&b, r)
		case models.CategoryPurity:
			writePuritySection(&b, r)
		case models.CategoryPrivacy:
			writePrivacySection(&b, r)
		}
	}

	return b.String()
}

// ---------------------------------------------------------------------------
// Section writers
// ---------------------------------------------------------------------------

func writeDNSLeakSection(b *strings.Builder, r *models.DetectionResult) {
	b.WriteString("## DNS Leak\n\n")
	b.WriteString(fmt.Sprintf("**Leaking:** %s\n", yesNo(r.IsLeaking)))
	b.WriteString(fmt.Sprintf("**Test domain:** %s\n\n", orDash(r.TestDomain)))

	if len(r.DNSServers) > 0 {
		b.WriteString("| Resolver |\n")
		b.WriteString("|----------|\n")
		for _, s := range r.DNSServers {
			b.WriteString(fmt.Sprintf("| %s |\n", s))
		}
	} else {
		b.WriteString("No resolvers observed.\n")
	}
	b.WriteString("\n")
	writeExplanation(b, r)
	writeThreats(b, r.Threats)
}

func writePuritySection(b *strings.Builder, r *models.DetectionResult) {
	b.WriteString("## IP Purity\n\n")
	writeLocation(b, r)
	b.WriteString(fmt.Sprintf("**Listed:** %s | **Abuse history:** %s | **Reports:** %d\n\n",
		yesNo(r.IsListed), yesNo(r.HasAbuseHistory), r.TotalReports))
	writeExplanation(b, r)
	writeThreats(b, r.Threats)
}

func writePrivacySection(b *strings.Builder, r *models.DetectionResult) {
	b.WriteString("## Privacy\n\n")
	writeLocation(b, r)
	b.WriteString(fmt.Sprintf("**Proxy:** %s | **VPN:** %s | **Tor:** %s\n",
		yesNo(r.UsingProxy), yesNo(r.UsingVPN), yesNo(r.UsingTor)))
	if r.ProxyType != models.Unknown {
		b.WriteString(fmt.Sprintf("**Proxy type:** %s\n", r.ProxyType))
	}
	if r.VPNProvider != models.Unknown {
		b.WriteString(fmt.Sprintf("**VPN provider:** %s\n", r.VPNProvider))
	}
	b.WriteString("\n")
	writeExplanation(b, r)
	writeThreats(b, r.Threats)
}

func writeLocation(b *strings.Builder, r *models.DetectionResult) {
	b.WriteString(fmt.Sprintf("**IP:** %s\n", orDash(r.IP)))
	b.WriteString(fmt.Sprintf("**Location:** %s (%s)\n", r.Location, r.CountryCode))
	b.WriteString(fmt.Sprintf("**ISP:** %s\n", r.ISP))
	if r.ASN != "" && r.ASN != models.Unknown {
		b.WriteString(fmt.Sprintf("**ASN:** %s\n", r.ASN))
	}
	b.WriteString(fmt.Sprintf("**Timezone:** %s\n", r.Timezone))
}

func writeExplanation(b *strings.Builder, r *models.DetectionResult) {
	b.WriteString(fmt.Sprintf("> %s\n\n", r.Explanation))
}

// writeThreats renders the threat table. Skipped when empty.
func writeThreats(b *strings.Builder, threats []models.Threat) {
	if len(threats) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("### Threats (%d)\n\n", len(threats)))
	b.WriteString("| Type | Description |\n")
	b.WriteString("|------|-------------|\n")
	for _, t := range threats {
		b.WriteString(fmt.Sprintf("| %s | %s |\n", t.Type, t.Description))
	}
	b.WriteString("\n")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var categoryOrder = map[models.Category]int{
	models.CategoryDNSLeak: 0,
	models.CategoryPurity:  1,
	models.CategoryPrivacy: 2,
}

// sortByCategory returns a new slice in dns-leak, purity, privacy order
func sortByCategory(results []*models.DetectionResult) []*models.DetectionResult {
	sorted := make([]*models.DetectionResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return categoryOrder[sorted[i].Category] < categoryOrder[sorted[j].Category]
	})
	return sorted
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// writeFile writes content to path, wrapping any OS error with context.
func writeFile(outputPath, content string) error {
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing report to %s: %w", outputPath, err)
	}
	return nil
}
