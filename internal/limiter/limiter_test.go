package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hakim/netdiag/internal/models"
)

func TestAcquireBlocksAtLimit(t *testing.T) {
	l := New("purity", 3)
	ctx := context.Background()

	var releases []func()
	for i := 0; i < 3; i++ {
		release, err := l.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		releases = append(releases, release)
	}

	acquired := make(chan func(), 1)
	go func() {
		release, err := l.Acquire(ctx)
		if err != nil {
			return
		}
		acquired <- release
	}()

	select {
	case <-acquired:
		t.Fatal("fourth acquire should block while three permits are outstanding")
	case <-time.After(50 * time.Millisecond):
	}

	releases[0]()

	select {
	case release := <-acquired:
		release()
	case <-time.After(time.Second):
		t.Fatal("fourth acquire should proceed after a release")
	}

	for _, r := range releases[1:] {
		r()
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := New("dns-leak", 1)

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
	release()

	first, ok := l.TryAcquire()
	if !ok {
		t.Fatal("permit should be free after release")
	}
	if _, ok := l.TryAcquire(); ok {
		t.Fatal("double release must not create extra permits")
	}
	first()
}

func TestAcquireHonoursContext(t *testing.T) {
	l := New("privacy", 1)
	hold, _ := l.Acquire(context.Background())
	defer hold()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	release, err := l.Acquire(ctx)
	if err == nil {
		release()
		t.Fatal("expected context error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestNewSetDefaults(t *testing.T) {
	s := NewSet(0, 0, 0)
	if got := s.For(models.CategoryDNSLeak).Max(); got != 2 {
		t.Errorf("dns-leak max = %d, want 2", got)
	}
	if got := s.For(models.CategoryPurity).Max(); got != 3 {
		t.Errorf("purity max = %d, want 3", got)
	}
	if got := s.For(models.CategoryPrivacy).Max(); got != 2 {
		t.Errorf("privacy max = %d, want 2", got)
	}
}
