package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hakim/netdiag/internal/models"
)

// Preset defines a named detection template.
type Preset struct {
	Name        string
	Description string
	Categories  []models.Category // which categories to run
	Report      bool              // write a markdown report
}

// builtinPresets is the registry of all known presets.
var builtinPresets = map[string]Preset{
	"quick": {
		Name:        "quick",
		Description: "DNS leak check only",
		Categories:  []models.Category{models.CategoryDNSLeak},
	},
	"ip-check": {
		Name:        "ip-check",
		Description: "Reputation and anonymity of one address, purity and privacy",
		Categories:  []models.Category{models.CategoryPurity, models.CategoryPrivacy},
	},
	"full": {
		Name:        "full",
		Description: "Every category with a markdown report",
		Categories:  []models.Category{models.CategoryDNSLeak, models.CategoryPurity, models.CategoryPrivacy},
		Report:      true,
	},
}

// BuiltinPresets returns the available preset templates.
func BuiltinPresets() map[string]Preset {
	// Return a copy so callers cannot mutate the registry.
	out := make(map[string]Preset, len(builtinPresets))
	for k, v := range builtinPresets {
		v.Categories = append([]models.Category(nil), v.Categories...)
		out[k] = v
	}
	return out
}

// PresetNames returns the preset names, sorted
func PresetNames() []string {
	names := make([]string, 0, len(builtinPresets))
	for name := range builtinPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns a preset by name, or an error if not found.
func GetPreset(name string) (*Preset, error) {
	p, ok := builtinPresets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	cp := p
	cp.Categories = append([]models.Category(nil), p.Categories...)
	return &cp, nil
}
