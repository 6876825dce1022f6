package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/hakim/netdiag/internal/diff"
	"github.com/hakim/netdiag/internal/models"
)

// WriteDiffReport generates a markdown report capturing the delta between two
// detections and writes it to outputPath.
func WriteDiffReport(result *diff.DiffResult, outputPath string) error {
	return writeFile(outputPath, RenderDiff(result))
}

// RenderDiff builds the markdown body of a diff report
func RenderDiff(result *diff.DiffResult) string {
	var b strings.Builder

	b.WriteString("# Detection Diff Report\n\n")
	b.WriteString(fmt.Sprintf("**Subject:** %s | **Category:** %s\n", result.Subject, result.Category))
	b.WriteString(fmt.Sprintf("**Date:** %s\n\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC")))

	// If nothing changed, short-circuit.
	if !result.HasChanges() {
		b.WriteString("No changes detected.\n")
		return b.String()
	}

	writeDiffSummaryTable(&b, result)
	writeThreatList(&b, "New Threats", "+", result.NewThreats)
	writeThreatList(&b, "Resolved Threats", "-", result.ResolvedThreats)
	writeServerChanges(&b, result)
	writeFlagChanges(&b, result.FlagChanges)

	return b.String()
}

// ---------------------------------------------------------------------------
// Section writers
// ---------------------------------------------------------------------------

// writeDiffSummaryTable writes the score and level comparison table.
func writeDiffSummaryTable(b *strings.Builder, r *diff.DiffResult) {
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Previous | Current | Change |\n")
	b.WriteString("|--------|----------|---------|--------|\n")
	b.WriteString(fmt.Sprintf("| Risk score | %d | %d | %s |\n", r.PreviousRisk, r.CurrentRisk, formatDelta(r.RiskDelta)))

	levelChange := "none"
	if r.LevelChanged {
		levelChange = "changed"
	}
	b.WriteString(fmt.Sprintf("| Threat level | %s | %s | %s |\n",
		orDash(string(r.PreviousLevel)), orDash(string(r.CurrentLevel)), levelChange))

	sourceChange := "none"
	if r.PreviousSource != r.CurrentSource {
		sourceChange = "changed"
	}
	b.WriteString(fmt.Sprintf("| Data source | %s | %s | %s |\n",
		orDash(string(r.PreviousSource)), orDash(string(r.CurrentSource)), sourceChange))
	b.WriteString("\n")
}

// writeThreatList renders one threat list section. Skipped when empty.
func writeThreatList(b *strings.Builder, title, sign string, threats []models.Threat) {
	if len(threats) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("## %s (%s%d)\n\n", title, sign, len(threats)))
	for _, t := range threats {
		b.WriteString(fmt.Sprintf("- **%s**: %s\n", t.Type, t.Description))
	}
	b.WriteString("\n")
}

// writeServerChanges renders resolver additions and removals. Skipped when empty.
func writeServerChanges(b *strings.Builder, r *diff.DiffResult) {
	if len(r.AddedServers) == 0 && len(r.RemovedServers) == 0 {
		return
	}
	b.WriteString("## Resolver Changes\n\n")
	for _, s := range r.AddedServers {
		b.WriteString(fmt.Sprintf("- + %s\n", s))
	}
	for _, s := range r.RemovedServers {
		b.WriteString(fmt.Sprintf("- - %s\n", s))
	}
	b.WriteString("\n")
}

// writeFlagChanges renders flipped indicators. Skipped when empty.
func writeFlagChanges(b *strings.Builder, changes []diff.FlagChange) {
	if len(changes) == 0 {
		return
	}
	b.WriteString("## Indicator Changes\n\n")
	b.WriteString("| Indicator | Previous | Current |\n")
	b.WriteString("|-----------|----------|---------|\n")
	for _, c := range changes {
		b.WriteString(fmt.Sprintf("| %s | %s | %s |\n", c.Name, yesNo(c.Previous), yesNo(c.Current)))
	}
	b.WriteString("\n")
}

// formatDelta returns "+5", "-3" or "none"
func formatDelta(delta int) string {
	switch {
	case delta > 0:
		return fmt.Sprintf("+%d", delta)
	case delta < 0:
		return fmt.Sprintf("%d", delta)
	default:
		return "none"
	}
}
