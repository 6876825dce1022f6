package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hakim/netdiag/internal/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "netdiag.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(ip string, category models.Category, risk int, at time.Time) *models.DetectionRecord {
	rec := models.NewDetectionRecord("", &models.DetectionResult{
		Category:    category,
		IP:          ip,
		RiskScore:   risk,
		ThreatLevel: models.LevelFor(risk),
		Threats:     []models.Threat{{Type: "Proxy", Description: "test"}},
		DNSServers:  []string{},
		DataSource:  models.SourceExternal,
	})
	rec.DetectedAt = at
	return rec
}

func TestDetectionRoundTrip(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	rec := record("198.51.100.1", models.CategoryPurity, 42, time.Now())
	if err := s.SaveDetection(rec); err != nil {
		t.Fatalf("SaveDetection: %v", err)
	}

	got, err := s.GetDetection(rec.ID)
	if err != nil {
		t.Fatalf("GetDetection: %v", err)
	}
	if got == nil || got.Subject != "198.51.100.1" || got.Result.RiskScore != 42 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Result.Threats) != 1 || got.Result.ThreatLevel != models.ThreatMedium {
		t.Fatalf("result fields lost: %+v", got.Result)
	}

	missing, err := s.GetDetection("nope")
	if err != nil || missing != nil {
		t.Fatalf("missing record = %+v, %v", missing, err)
	}
}

func TestListDetectionsNewestFirstAndFiltered(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	old := record("198.51.100.2", models.CategoryPurity, 10, base)
	mid := record("198.51.100.2", models.CategoryPrivacy, 20, base.Add(time.Hour))
	latest := record("198.51.100.2", models.CategoryPurity, 30, base.Add(2*time.Hour))
	other := record("198.51.100.3", models.CategoryPurity, 90, base)

	for _, r := range []*models.DetectionRecord{old, latest, mid, other} {
		if err := s.SaveDetection(r); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListDetections("198.51.100.2", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != latest.ID || all[2].ID != old.ID {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	purity, err := s.ListDetections("198.51.100.2", models.CategoryPurity)
	if err != nil {
		t.Fatal(err)
	}
	if len(purity) != 2 {
		t.Fatalf("category filter returned %d records", len(purity))
	}

	got, err := s.GetLatestDetection("198.51.100.2", models.CategoryPrivacy)
	if err != nil || got == nil || got.ID != mid.ID {
		t.Fatalf("GetLatestDetection = %+v, %v", got, err)
	}

	none, err := s.GetLatestDetection("203.0.113.99", models.CategoryPurity)
	if err != nil || none != nil {
		t.Fatalf("unknown subject = %+v, %v", none, err)
	}
}

func TestDNSLeakIndexedAsLocal(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	rec := record("", models.CategoryDNSLeak, 0, time.Now())
	if err := s.SaveDetection(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListDetections("", models.CategoryDNSLeak)
	if err != nil || len(got) != 1 {
		t.Fatalf("ListDetections(\"\") = %v, %v", got, err)
	}
	subjects, err := s.Subjects()
	if err != nil || len(subjects) != 1 || subjects[0] != "local" {
		t.Fatalf("Subjects = %v, %v", subjects, err)
	}
}

func TestSaveDetectionTwiceKeepsOneIndexEntry(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	rec := record("198.51.100.4", models.CategoryPurity, 5, time.Now())
	for i := 0; i < 2; i++ {
		if err := s.SaveDetection(rec); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListDetections("198.51.100.4", "")
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one record, got %d (%v)", len(got), err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	meta := models.NewSession("198.51.100.5", models.Categories)
	if err := s.SaveSession(meta); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteSession(meta.ID, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSession(meta.ID)
	if err != nil || got == nil {
		t.Fatalf("GetSession = %+v, %v", got, err)
	}
	if got.CompletedAt == nil || len(got.RecordIDs) != 2 {
		t.Fatalf("session not completed: %+v", got)
	}

	list, err := s.ListSessions("198.51.100.5")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListSessions = %v, %v", list, err)
	}

	if err := s.CompleteSession("missing", nil); err != nil {
		t.Fatalf("completing a missing session should be a no-op: %v", err)
	}
}

func TestReportPath(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	got := ReportPath("reports", "2001:db8::1", at)
	want := filepath.Join("reports", "2001_db8_1_20260504_030201.md")
	if got != want {
		t.Fatalf("ReportPath = %q, want %q", got, want)
	}
}

func ids(records []*models.DetectionRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
