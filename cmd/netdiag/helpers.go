package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hakim/netdiag/internal/config"
	"github.com/hakim/netdiag/internal/detect"
	"github.com/hakim/netdiag/internal/latency"
	"github.com/hakim/netdiag/internal/models"
	"github.com/hakim/netdiag/internal/probe"
	"github.com/hakim/netdiag/internal/storage"
)

// openStore opens the configured history database
func openStore() (*storage.Store, error) {
	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return store, nil
}

// newEngine builds the detection engine from the loaded config
func newEngine() (*detect.Engine, error) {
	engine, err := detect.NewEngine(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building detection engine: %w", err)
	}
	return engine, nil
}

// latencyOptions converts the latency config section
func latencyOptions() (latency.Options, error) {
	client, err := probe.NewHTTPClient(cfg.Network.SOCKS5)
	if err != nil {
		return latency.Options{}, fmt.Errorf("creating http client: %w", err)
	}
	// HEAD timing must not follow redirects
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return latency.Options{
		Count:   cfg.Latency.Count,
		Timeout: config.Duration(cfg.Latency.Timeout, latency.DefaultTimeout),
		Gap:     config.Duration(cfg.Latency.Gap, latency.DefaultGap),
		Client:  client,
	}, nil
}

// parseCategories maps names (or "all") to categories
func parseCategories(names []string) ([]models.Category, error) {
	var out []models.Category
	for _, name := range names {
		if strings.EqualFold(name, "all") {
			return append([]models.Category(nil), models.Categories...), nil
		}
		c, ok := models.ParseCategory(strings.ToLower(name))
		if !ok {
			return nil, fmt.Errorf("unknown category %q (expected dns-leak, purity, privacy or all)", name)
		}
		out = append(out, c)
	}
	return out, nil
}

// splitCSV splits a comma-separated string into a trimmed, non-empty slice.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// shortID returns the first 8 characters of a UUID followed by "..." for
// compact table display. Falls back to the full ID when shorter than 8 chars.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// yesNo renders a boolean flag for tables
func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
