// Package detect is the single entry point for a detection category. A
// Facade answers from cache when it can, otherwise takes a permit, walks the
// category's source chain and, when every source is absent, falls back to
// local heuristics. It always returns a complete result.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hakim/netdiag/internal/cache"
	"github.com/hakim/netdiag/internal/heuristic"
	"github.com/hakim/netdiag/internal/limiter"
	"github.com/hakim/netdiag/internal/logging"
	"github.com/hakim/netdiag/internal/models"
	"github.com/hakim/netdiag/internal/synth"
)

// Source is an ordered set of probes answered by the first one that succeeds
type Source interface {
	TryAll(ctx context.Context, subject string) (*models.SourceResult, bool)
}

// Deps are the collaborators of one Facade
type Deps struct {
	Cache    *cache.ResultCache
	Limiter  *limiter.Limiter
	Chain    Source
	Analyzer *heuristic.Analyzer

	// Resolvers lists the locally configured DNS resolvers. Only the
	// dns-leak facade uses it.
	Resolvers func() []string

	Synth synth.Options

	// Timeout bounds one shared detection. Zero selects DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// DefaultTimeout bounds a shared detection when Deps.Timeout is zero
const DefaultTimeout = 90 * time.Second

// Facade runs detection for one category
type Facade struct {
	category models.Category
	deps     Deps
	logger   *slog.Logger
	group    singleflight.Group
}

// NewFacade creates a facade. Missing cache, limiter and analyzer are
// replaced with defaults.
func NewFacade(category models.Category, deps Deps) *Facade {
	if deps.Cache == nil {
		deps.Cache = cache.New()
	}
	if deps.Limiter == nil {
		deps.Limiter = limiter.NewSet(0, 0, 0).For(category)
	}
	if deps.Analyzer == nil {
		deps.Analyzer = heuristic.New(nil)
	}
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultTimeout
	}
	if category == models.CategoryDNSLeak && deps.Synth.TestDomain == "" {
		deps.Synth.TestDomain = synth.DefaultTestDomain
	}
	logger := logging.OrDefault(deps.Logger).With("category", string(category))
	return &Facade{category: category, deps: deps, logger: logger}
}

// Category returns the category this facade serves
func (f *Facade) Category() models.Category {
	return f.category
}

// Detect returns the result for ip. It never fails: any panic on the way is
// turned into the static Fallback result, which is not cached.
//
// Concurrent calls for the same key share one detection. The shared work is
// detached from every caller's context and bounded by Deps.Timeout, so one
// caller leaving early does not degrade the answer of the others. A caller
// whose own context ends first gets an uncached local result.
func (f *Facade) Detect(ctx context.Context, ip string) (result *models.DetectionResult) {
	subject := strings.TrimSpace(ip)
	if f.category == models.CategoryDNSLeak {
		subject = ""
	}

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("detection panicked, returning fallback",
				"subject", subject, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			result = synth.Fallback(f.category, subject)
		}
	}()

	key := cache.Key(f.category, subject)

	// ── 1. Cache check ────────────────────────────────────────────────────────
	if hit, ok := f.deps.Cache.Get(key); ok {
		f.logger.Debug("cache hit", "subject", subject)
		return hit
	}
	if ctx.Err() != nil {
		f.logger.Debug("context already done, answering locally", "subject", subject)
		return f.heuristic(subject)
	}

	ch := f.group.DoChan(key, func() (any, error) {
		workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.deps.Timeout)
		defer cancel()
		return f.resolve(workCtx, key, subject), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			f.logger.Debug("joined in-flight detection", "subject", subject)
		}
		return res.Val.(*models.DetectionResult).Clone()
	case <-ctx.Done():
		f.logger.Debug("context ended while waiting, answering locally", "subject", subject)
		return f.heuristic(subject)
	}
}

// resolve runs steps 2 to 5 for a cache miss. It runs on the singleflight
// goroutine, so it recovers its own panics.
func (f *Facade) resolve(ctx context.Context, key, subject string) (result *models.DetectionResult) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("detection panicked, returning fallback",
				"subject", subject, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			result = synth.Fallback(f.category, subject)
		}
	}()

	if hit, ok := f.deps.Cache.Get(key); ok {
		return hit
	}

	// ── 2-3. Permit and probing ───────────────────────────────────────────────
	src, ok := f.probe(ctx, f.query(subject))

	// ── 4. Synthesis or local heuristics ──────────────────────────────────────
	if ok {
		result = synth.FromExternal(f.category, subject, src, f.deps.Synth)
		f.logger.Info("detected via external source", "subject", subject, "provider", src.Provider,
			"risk", result.RiskScore)
	} else {
		result = f.heuristic(subject)
		f.logger.Info("all sources absent, used local detection", "subject", subject, "risk", result.RiskScore)
	}

	// ── 5. Caching ────────────────────────────────────────────────────────────
	if ctx.Err() != nil {
		f.logger.Debug("detection deadline passed, result not cached", "subject", subject)
		return result
	}
	f.deps.Cache.Put(key, result)
	return result
}

// query is what the source chain is asked about. DNS-leak sources resolve
// the test domain; every other category asks about the subject address.
func (f *Facade) query(subject string) string {
	if f.category == models.CategoryDNSLeak {
		return f.deps.Synth.TestDomain
	}
	return subject
}

// probe holds a permit only while the chain runs
func (f *Facade) probe(ctx context.Context, subject string) (*models.SourceResult, bool) {
	if f.deps.Chain == nil {
		return nil, false
	}

	release, err := f.deps.Limiter.Acquire(ctx)
	if err != nil {
		f.logger.Warn("no permit, skipping external sources", "subject", subject, "error", err)
		return nil, false
	}
	defer release()

	return f.deps.Chain.TryAll(ctx, subject)
}

func (f *Facade) heuristic(subject string) *models.DetectionResult {
	if f.category == models.CategoryDNSLeak {
		var servers []string
		if f.deps.Resolvers != nil {
			servers = f.deps.Resolvers()
		}
		return synth.FromResolvers(heuristic.AnalyzeResolvers(servers, f.deps.Synth.TrustedServers), f.deps.Synth)
	}
	return synth.FromHeuristic(f.category, subject, f.deps.Analyzer.Analyze(subject), f.deps.Synth)
}
