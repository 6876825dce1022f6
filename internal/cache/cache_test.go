package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/hakim/netdiag/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestKey(t *testing.T) {
	if got := Key(models.CategoryDNSLeak, "1.2.3.4"); got != "dns-leak" {
		t.Errorf("dns-leak key should be constant, got %q", got)
	}
	if got := Key(models.CategoryPurity, "1.2.3.4"); got != "purity:1.2.3.4" {
		t.Errorf("unexpected purity key %q", got)
	}
}

func TestGetMissing(t *testing.T) {
	c := New()
	if _, ok := c.Get("purity:1.2.3.4"); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestPurityTTL(t *testing.T) {
	clock := newClock()
	c := New(WithClock(clock.Now))
	key := Key(models.CategoryPurity, "8.8.8.8")

	c.Put(key, &models.DetectionResult{IP: "8.8.8.8", RiskScore: 12})

	clock.Advance(5*time.Minute - time.Second)
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("entry should still be valid just before TTL")
	}
	if got.RiskScore != 12 {
		t.Errorf("RiskScore = %d, want 12", got.RiskScore)
	}

	clock.Advance(time.Second)
	if _, ok := c.Get(key); ok {
		t.Fatal("entry should expire exactly at TTL")
	}
	if c.Len() != 1 {
		t.Errorf("expired entry should remain stored until overwritten, Len = %d", c.Len())
	}
}

func TestDNSLeakTTLIsLonger(t *testing.T) {
	clock := newClock()
	c := New(WithClock(clock.Now))
	key := Key(models.CategoryDNSLeak, "")

	c.Put(key, &models.DetectionResult{IsLeaking: true})
	clock.Advance(9 * time.Minute)

	if _, ok := c.Get(key); !ok {
		t.Fatal("dns-leak entry should live for 10 minutes")
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get(key); ok {
		t.Fatal("dns-leak entry should expire after 10 minutes")
	}
}

func TestPutSupersedesAndRefreshes(t *testing.T) {
	clock := newClock()
	c := New(WithClock(clock.Now))
	key := Key(models.CategoryPrivacy, "1.1.1.1")

	c.Put(key, &models.DetectionResult{PrivacyScore: 10})
	clock.Advance(4 * time.Minute)
	c.Put(key, &models.DetectionResult{PrivacyScore: 90})
	clock.Advance(4 * time.Minute)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("rewritten entry should be valid")
	}
	if got.PrivacyScore != 90 {
		t.Errorf("PrivacyScore = %d, want 90", got.PrivacyScore)
	}
}

func TestWithTTLOverride(t *testing.T) {
	clock := newClock()
	c := New(WithClock(clock.Now), WithTTL(models.CategoryPurity, time.Second))
	key := Key(models.CategoryPurity, "9.9.9.9")

	c.Put(key, &models.DetectionResult{})
	clock.Advance(time.Second)
	if _, ok := c.Get(key); ok {
		t.Fatal("override TTL not applied")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c := New()
	key := Key(models.CategoryPurity, "1.2.3.4")
	c.Put(key, &models.DetectionResult{Threats: []models.Threat{{Type: "tor"}}})

	first, _ := c.Get(key)
	first.Threats[0].Type = "mutated"
	first.RiskScore = 99

	second, _ := c.Get(key)
	if second.Threats[0].Type != "tor" || second.RiskScore != 0 {
		t.Errorf("cached value was mutated through a returned copy: %+v", second)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key(models.CategoryPurity, "10.0.0.1")
			c.Put(key, &models.DetectionResult{RiskScore: i})
			c.Get(key)
		}(i)
	}
	wg.Wait()
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}
