// Package diff computes the delta between two stored detections of the same
// subject and category. It identifies score movement, threat-level changes,
// threats that appeared or went away, resolver changes and flag flips.
package diff

import (
	"fmt"
	"sort"

	"github.com/hakim/netdiag/internal/models"
)

// ---------------------------------------------------------------------------
// DiffResult
// ---------------------------------------------------------------------------

// FlagChange records one boolean indicator that flipped between detections
type FlagChange struct {
	Name     string
	Previous bool
	Current  bool
}

// DiffResult holds the complete delta between a current and a previous
// detection. All slice fields are non-nil (empty slices, not nil) so callers
// can range over them unconditionally.
type DiffResult struct {
	Subject  string
	Category models.Category

	// Score movement
	PreviousRisk int
	CurrentRisk  int
	RiskDelta    int

	// Threat level change
	PreviousLevel models.ThreatLevel
	CurrentLevel  models.ThreatLevel
	LevelChanged  bool

	// Threat changes
	NewThreats      []models.Threat
	ResolvedThreats []models.Threat

	// DNS-leak resolver changes
	AddedServers   []string
	RemovedServers []string

	// Boolean indicators that flipped
	FlagChanges []FlagChange

	// Source change (e.g. external result replaced by a local one)
	PreviousSource models.DataSource
	CurrentSource  models.DataSource
}

// HasChanges reports whether anything differs between the two detections
func (d *DiffResult) HasChanges() bool {
	return d.RiskDelta != 0 || d.LevelChanged ||
		len(d.NewThreats) > 0 || len(d.ResolvedThreats) > 0 ||
		len(d.AddedServers) > 0 || len(d.RemovedServers) > 0 ||
		len(d.FlagChanges) > 0
}

// ---------------------------------------------------------------------------
// Compute
// ---------------------------------------------------------------------------

// Compute calculates the delta between current and previous. previous may be
// nil for the "no earlier detection" case, in which case everything in
// current is reported as new.
func Compute(current, previous *models.DetectionRecord) (*DiffResult, error) {
	if current == nil || current.Result == nil {
		return nil, fmt.Errorf("current detection is required")
	}
	if previous != nil && previous.Category != current.Category {
		return nil, fmt.Errorf("cannot compare %s with %s", current.Category, previous.Category)
	}

	prev := &models.DetectionResult{}
	if previous != nil && previous.Result != nil {
		prev = previous.Result
	}
	curr := current.Result

	dr := &DiffResult{
		Subject:         current.Subject,
		Category:        current.Category,
		PreviousRisk:    prev.RiskScore,
		CurrentRisk:     curr.RiskScore,
		RiskDelta:       curr.RiskScore - prev.RiskScore,
		PreviousLevel:   prev.ThreatLevel,
		CurrentLevel:    curr.ThreatLevel,
		LevelChanged:    prev.ThreatLevel != curr.ThreatLevel,
		NewThreats:      []models.Threat{},
		ResolvedThreats: []models.Threat{},
		AddedServers:    []string{},
		RemovedServers:  []string{},
		FlagChanges:     []FlagChange{},
		PreviousSource:  prev.DataSource,
		CurrentSource:   curr.DataSource,
	}

	diffThreats(dr, curr.Threats, prev.Threats)
	dr.AddedServers, dr.RemovedServers = diffStrings(curr.DNSServers, prev.DNSServers)
	diffFlags(dr, curr, prev)

	return dr, nil
}

// ---------------------------------------------------------------------------
// Threat diff
// ---------------------------------------------------------------------------

// threatKey uniquely identifies a threat finding.
// Format: "type::description"
func threatKey(t models.Threat) string {
	return t.Type + "::" + t.Description
}

func diffThreats(dr *DiffResult, current, previous []models.Threat) {
	prevKeys := make(map[string]bool, len(previous))
	for _, t := range previous {
		prevKeys[threatKey(t)] = true
	}
	currKeys := make(map[string]bool, len(current))
	for _, t := range current {
		currKeys[threatKey(t)] = true
	}

	// New: in current but not in previous
	for _, t := range current {
		if !prevKeys[threatKey(t)] {
			dr.NewThreats = append(dr.NewThreats, t)
		}
	}

	// Resolved: in previous but not in current
	for _, t := range previous {
		if !currKeys[threatKey(t)] {
			dr.ResolvedThreats = append(dr.ResolvedThreats, t)
		}
	}
}

// ---------------------------------------------------------------------------
// Server diff
// ---------------------------------------------------------------------------

// diffStrings returns sorted added and removed entries
func diffStrings(current, previous []string) (added, removed []string) {
	added, removed = []string{}, []string{}

	prev := make(map[string]bool, len(previous))
	for _, s := range previous {
		prev[s] = true
	}
	curr := make(map[string]bool, len(current))
	for _, s := range current {
		curr[s] = true
	}

	for s := range curr {
		if !prev[s] {
			added = append(added, s)
		}
	}
	for s := range prev {
		if !curr[s] {
			removed = append(removed, s)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// ---------------------------------------------------------------------------
// Flag diff
// ---------------------------------------------------------------------------

func diffFlags(dr *DiffResult, current, previous *models.DetectionResult) {
	flags := []struct {
		name       string
		curr, prev bool
	}{
		{"leaking", current.IsLeaking, previous.IsLeaking},
		{"listed", current.IsListed, previous.IsListed},
		{"abuse history", current.HasAbuseHistory, previous.HasAbuseHistory},
		{"proxy", current.UsingProxy, previous.UsingProxy},
		{"vpn", current.UsingVPN, previous.UsingVPN},
		{"tor", current.UsingTor, previous.UsingTor},
	}
	for _, f := range flags {
		if f.curr != f.prev {
			dr.FlagChanges = append(dr.FlagChanges, FlagChange{Name: f.name, Previous: f.prev, Current: f.curr})
		}
	}
}
