package limiter

import (
	"context"
	"fmt"
	"sync"

	"github.com/hakim/netdiag/internal/models"
	"golang.org/x/sync/semaphore"
)

// Default permit counts per category
const (
	DefaultDNSLeak = 2
	DefaultPurity  = 3
	DefaultPrivacy = 2
)

// Limiter caps the number of outstanding external lookups for one category
type Limiter struct {
	name string
	max  int64
	sem  *semaphore.Weighted
}

// New creates a limiter allowing at most n concurrent permits.
// n below 1 is treated as 1.
func New(name string, n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{
		name: name,
		max:  int64(n),
		sem:  semaphore.NewWeighted(int64(n)),
	}
}

// Acquire blocks until a permit is free or ctx is done.
// The returned release func is safe to call more than once; callers should
// defer it immediately so the permit is returned on every exit path.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("limiter %s: %w", l.name, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.sem.Release(1) })
	}, nil
}

// TryAcquire takes a permit only if one is immediately available
func (l *Limiter) TryAcquire() (release func(), ok bool) {
	if !l.sem.TryAcquire(1) {
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.sem.Release(1) })
	}, true
}

// Max returns the configured permit count
func (l *Limiter) Max() int {
	return int(l.max)
}

// Set holds one Limiter per detection category
type Set map[models.Category]*Limiter

// NewSet builds a Set from per-category limits, applying defaults for zero values
func NewSet(dnsLeak, purity, privacy int) Set {
	pick := func(v, def int) int {
		if v <= 0 {
			return def
		}
		return v
	}
	return Set{
		models.CategoryDNSLeak: New(string(models.CategoryDNSLeak), pick(dnsLeak, DefaultDNSLeak)),
		models.CategoryPurity:  New(string(models.CategoryPurity), pick(purity, DefaultPurity)),
		models.CategoryPrivacy: New(string(models.CategoryPrivacy), pick(privacy, DefaultPrivacy)),
	}
}

// For returns the limiter for category, creating a single-permit one if missing
func (s Set) For(category models.Category) *Limiter {
	if l, ok := s[category]; ok {
		return l
	}
	return New(string(category), 1)
}
