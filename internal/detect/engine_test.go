package detect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/hakim/netdiag/internal/config"
	"github.com/hakim/netdiag/internal/logging"
	"github.com/hakim/netdiag/internal/models"
)

func TestEngineDNSLeakUsesDoHSource(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var name atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		name.Store(r.URL.Query().Get("name"))
		w.Header().Set("Content-Type", "application/dns-json")
		w.Write([]byte(`{"Status":0,"Answer":[{"name":"whoami.akamai.net.","type":1,"TTL":20,"data":"198.51.100.53"}]}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.GeoIP = config.GeoIPConfig{}
	cfg.DNSLeak.TestDomain = "whoami.example.test"
	cfg.DNSLeak.TrustedServers = nil
	cfg.DNSLeak.ResolvConf = filepath.Join(t.TempDir(), "missing")
	cfg.Sources = config.SourcesConfig{
		DNSLeak: []config.SourceConfig{{Name: "Google DNS", Provider: "google", Enabled: true, BaseURL: srv.URL}},
	}

	e, err := NewEngine(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	r, err := e.Detect(context.Background(), models.CategoryDNSLeak, "")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("DoH source hit %d times, want 1", hits.Load())
	}
	if got := name.Load(); got != "whoami.example.test" {
		t.Errorf("queried name = %v, want whoami.example.test", got)
	}
	if r.DataSource != models.SourceExternal || r.Provider != "Google DNS" {
		t.Fatalf("result did not come from the DoH source: source=%s provider=%s", r.DataSource, r.Provider)
	}
	if len(r.DNSServers) != 1 || r.DNSServers[0] != "198.51.100.53" || r.IsLeaking {
		t.Errorf("servers=%v leaking=%v", r.DNSServers, r.IsLeaking)
	}
	if r.TestDomain != "whoami.example.test" {
		t.Errorf("TestDomain = %q", r.TestDomain)
	}

	if _, err := e.Detect(context.Background(), models.CategoryDNSLeak, "198.51.100.9"); err != nil {
		t.Fatalf("second Detect: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("second dns-leak call should be served from cache, hits = %d", hits.Load())
	}
}
