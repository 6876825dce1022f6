package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hakim/netdiag/internal/models"
)

type fakeDetector struct {
	panicOn models.Category
	failOn  models.Category
}

func (f fakeDetector) Detect(_ context.Context, category models.Category, ip string) (*models.DetectionResult, error) {
	if category == f.panicOn {
		panic("boom")
	}
	if category == f.failOn {
		return nil, errors.New("unknown category")
	}
	if ip == "" && category != models.CategoryDNSLeak {
		ip = "198.51.100.77"
	}
	if category == models.CategoryDNSLeak {
		ip = ""
	}
	return &models.DetectionResult{
		Category:    category,
		IP:          ip,
		RiskScore:   10,
		ThreatLevel: models.ThreatLow,
		DataSource:  models.SourceExternal,
		Threats:     []models.Threat{},
	}, nil
}

type memStore struct {
	mu         sync.Mutex
	detections []*models.DetectionRecord
	sessions   map[string]*models.SessionMeta
	completed  map[string][]string
	failSave   bool
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*models.SessionMeta{}, completed: map[string][]string{}}
}

func (m *memStore) SaveDetection(rec *models.DetectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	m.detections = append(m.detections, rec)
	return nil
}

func (m *memStore) SaveSession(meta *models.SessionMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[meta.ID] = meta
	return nil
}

func (m *memStore) CompleteSession(id string, recordIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[id] = recordIDs
	return nil
}

func TestRunSessionAllCategories(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	var started sync.Map
	res, err := RunSession(context.Background(), SessionConfig{
		Subject:         "198.51.100.10",
		OnCategoryStart: func(c models.Category) { started.Store(c, true) },
	}, fakeDetector{}, store)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	if res.Status != "complete" || len(res.Errors) != 0 {
		t.Fatalf("status = %s errors = %v", res.Status, res.Errors)
	}
	if len(res.Results) != 3 {
		t.Fatalf("got %d results", len(res.Results))
	}
	for i, c := range models.Categories {
		if res.Results[i].Category != c {
			t.Fatalf("result %d is %s, want %s", i, res.Results[i].Category, c)
		}
		if _, ok := started.Load(c); !ok {
			t.Fatalf("OnCategoryStart not called for %s", c)
		}
	}
	if len(store.detections) != 3 || len(store.completed[res.SessionID]) != 3 {
		t.Fatalf("persisted %d detections, completed with %v", len(store.detections), store.completed[res.SessionID])
	}
	if res.Session.CompletedAt == nil {
		t.Fatal("session not stamped as completed")
	}
}

func TestRunSessionResolvesSubjectFromResults(t *testing.T) {
	t.Parallel()

	res, err := RunSession(context.Background(), SessionConfig{
		Categories: []models.Category{models.CategoryPurity},
	}, fakeDetector{}, newMemStore())
	if err != nil {
		t.Fatal(err)
	}
	if res.Subject != "198.51.100.77" {
		t.Fatalf("subject = %q", res.Subject)
	}
}

func TestRunSessionIsolatesPanics(t *testing.T) {
	t.Parallel()

	res, err := RunSession(context.Background(), SessionConfig{Subject: "198.51.100.11"},
		fakeDetector{panicOn: models.CategoryPurity, failOn: models.CategoryPrivacy}, newMemStore())
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if res.Status != "partial" {
		t.Fatalf("status = %s", res.Status)
	}
	if len(res.Results) != 1 || res.Results[0].Category != models.CategoryDNSLeak {
		t.Fatalf("results = %+v", res.Results)
	}
	if _, ok := res.Errors[string(models.CategoryPurity)]; !ok {
		t.Fatalf("panic not recorded: %v", res.Errors)
	}
	if _, ok := res.Errors[string(models.CategoryPrivacy)]; !ok {
		t.Fatalf("error not recorded: %v", res.Errors)
	}
}

func TestRunSessionStoreFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.failSave = true
	res, err := RunSession(context.Background(), SessionConfig{Subject: "198.51.100.12"}, fakeDetector{}, store)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "complete" || len(res.Results) != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(store.completed[res.SessionID]) != 0 {
		t.Fatal("no record IDs should be attached when saves fail")
	}
}

func TestRunSessionValidation(t *testing.T) {
	t.Parallel()

	scope := &ScopeConfig{AllowedCIDRs: []string{"10.0.0.0/8"}}
	if _, err := RunSession(context.Background(), SessionConfig{Subject: "198.51.100.1", Scope: scope}, fakeDetector{}, newMemStore()); err == nil {
		t.Fatal("out-of-scope subject should be rejected")
	}
	if _, err := RunSession(context.Background(), SessionConfig{Skip: models.Categories}, fakeDetector{}, newMemStore()); err == nil {
		t.Fatal("empty category selection should be rejected")
	}
	if _, err := RunSession(context.Background(), SessionConfig{}, nil, newMemStore()); err == nil {
		t.Fatal("nil detector should be rejected")
	}
}

func TestScopeValidateIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		scope   *ScopeConfig
		ip      string
		wantErr bool
	}{
		{"nil scope", nil, "8.8.8.8", false},
		{"empty scope", &ScopeConfig{}, "8.8.8.8", false},
		{"inside cidr", &ScopeConfig{AllowedCIDRs: []string{"203.0.113.0/24"}}, "203.0.113.5", false},
		{"outside cidr", &ScopeConfig{AllowedCIDRs: []string{"203.0.113.0/24"}}, "198.51.100.5", true},
		{"bare address", &ScopeConfig{AllowedCIDRs: []string{"198.51.100.5"}}, "198.51.100.5", false},
		{"ipv6", &ScopeConfig{AllowedCIDRs: []string{"2001:db8::/32"}}, "2001:db8::1", false},
		{"invalid ip", &ScopeConfig{AllowedCIDRs: []string{"10.0.0.0/8"}}, "not-an-ip", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.ValidateIP(tt.ip)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateIP(%q) error = %v, wantErr %v", tt.ip, err, tt.wantErr)
			}
		})
	}
}

func TestScopeValidateHost(t *testing.T) {
	t.Parallel()

	scope := &ScopeConfig{AllowedCIDRs: []string{"127.0.0.0/8", "2001:db8::/32"}}
	tests := []struct {
		name    string
		scope   *ScopeConfig
		host    string
		wantErr bool
	}{
		{"nil scope allows names", nil, "example.com", false},
		{"address inside", scope, "127.0.0.1", false},
		{"address with port", scope, "127.0.0.1:8443", false},
		{"bracketed ipv6 with port", scope, "[2001:db8::5]:443", false},
		{"bare bracketed ipv6", scope, "[2001:db8::5]", false},
		{"address outside", scope, "192.0.2.10", true},
		{"address outside with port", scope, "192.0.2.10:80", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.ValidateHost(context.Background(), tt.host)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateHost(%q) error = %v, wantErr %v", tt.host, err, tt.wantErr)
			}
		})
	}
}

func TestPresets(t *testing.T) {
	t.Parallel()

	p, err := GetPreset("ip-check")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Categories) != 2 || p.Categories[0] != models.CategoryPurity {
		t.Fatalf("ip-check categories = %v", p.Categories)
	}
	p.Categories[0] = models.CategoryDNSLeak
	again, _ := GetPreset("ip-check")
	if again.Categories[0] != models.CategoryPurity {
		t.Fatal("GetPreset must return a copy")
	}

	full, _ := GetPreset("full")
	if !full.Report || len(full.Categories) != 3 {
		t.Fatalf("full preset = %+v", full)
	}
	if _, err := GetPreset("bogus"); err == nil {
		t.Fatal("unknown preset should fail")
	}
	if len(PresetNames()) != len(BuiltinPresets()) {
		t.Fatal("preset listing mismatch")
	}
}

func TestSendCompletion(t *testing.T) {
	t.Parallel()

	var got completionPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := &NotifyConfig{WebhookURL: srv.URL}
	err := n.SendCompletion(&SessionResult{
		Subject:   "198.51.100.13",
		SessionID: "s-1",
		Status:    "complete",
		Elapsed:   2 * time.Second,
		Results: []*models.DetectionResult{
			{Category: models.CategoryPurity, RiskScore: 80, ThreatLevel: models.ThreatHigh, DataSource: models.SourceExternal},
		},
	})
	if err != nil {
		t.Fatalf("SendCompletion: %v", err)
	}
	if got.SessionID != "s-1" || len(got.Results) != 1 || got.Results[0].RiskScore != 80 || got.ElapsedSeconds != 2 {
		t.Fatalf("payload = %+v", got)
	}
}

func TestSendCompletionErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := (&NotifyConfig{WebhookURL: srv.URL}).SendCompletion(&SessionResult{}); err == nil {
		t.Fatal("non-2xx should be an error")
	}
	if err := (&NotifyConfig{}).SendCompletion(&SessionResult{}); err != nil {
		t.Fatalf("empty webhook should be a no-op: %v", err)
	}
	var nilNotify *NotifyConfig
	if err := nilNotify.SendCompletion(&SessionResult{}); err != nil {
		t.Fatalf("nil config should be a no-op: %v", err)
	}
}
