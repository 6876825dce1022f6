package detect

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/hakim/netdiag/internal/cache"
	"github.com/hakim/netdiag/internal/config"
	"github.com/hakim/netdiag/internal/geodb"
	"github.com/hakim/netdiag/internal/heuristic"
	"github.com/hakim/netdiag/internal/limiter"
	"github.com/hakim/netdiag/internal/logging"
	"github.com/hakim/netdiag/internal/models"
	"github.com/hakim/netdiag/internal/probe"
	"github.com/hakim/netdiag/internal/synth"
)

// Engine owns the three category facades and the shared infrastructure
// behind them: one result cache, one limiter per category, one HTTP client
// and the optional offline geo database.
type Engine struct {
	facades     map[models.Category]*Facade
	cache       *cache.ResultCache
	geo         Source
	geoDB       *geodb.DB
	client      *http.Client
	ipEndpoints []string
	logger      *slog.Logger
}

// NewEngine wires the facades from configuration
func NewEngine(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	logger = logging.OrDefault(logger)

	client, err := probe.NewHTTPClient(cfg.Network.SOCKS5)
	if err != nil {
		return nil, fmt.Errorf("creating http client: %w", err)
	}

	db, err := geodb.Open(cfg.GeoIP.CityDB, cfg.GeoIP.ASNDB)
	if err != nil {
		return nil, err
	}

	opts := probe.Options{Client: client, Logger: logger, UserAgent: cfg.Network.UserAgent}
	chains := make(map[models.Category]*probe.Chain, len(models.Categories))
	for category, sources := range map[models.Category][]config.SourceConfig{
		models.CategoryDNSLeak: cfg.Sources.DNSLeak,
		models.CategoryPurity:  cfg.Sources.Purity,
		models.CategoryPrivacy: cfg.Sources.Privacy,
	} {
		chain, err := probe.BuildChain(sources, opts)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("building %s sources: %w", category, err)
		}
		chains[category] = chain
	}
	geoChain, err := probe.BuildChain(cfg.Sources.Geo, opts)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building geo sources: %w", err)
	}

	shared := cache.New(
		cache.WithTTL(models.CategoryDNSLeak, config.Duration(cfg.TTL.DNSLeak, cache.DefaultDNSLeakTTL)),
		cache.WithTTL(models.CategoryPurity, config.Duration(cfg.TTL.Purity, cache.DefaultPurityTTL)),
		cache.WithTTL(models.CategoryPrivacy, config.Duration(cfg.TTL.Privacy, cache.DefaultPrivacyTTL)),
	)
	limits := limiter.NewSet(cfg.Limits.DNSLeak, cfg.Limits.Purity, cfg.Limits.Privacy)

	// A nil *geodb.DB must not be stored in the interface
	var lookup heuristic.GeoLookup
	if db != nil {
		lookup = db
	}
	analyzer := heuristic.New(lookup)

	synthOpts := synth.Options{
		TestDomain:     cfg.DNSLeak.TestDomain,
		TrustedServers: cfg.DNSLeak.TrustedServers,
	}
	resolvConf := cfg.DNSLeak.ResolvConf

	e := &Engine{
		facades:     make(map[models.Category]*Facade, len(models.Categories)),
		cache:       shared,
		geo:         geoChain,
		geoDB:       db,
		client:      client,
		ipEndpoints: probe.DefaultIPEndpoints,
		logger:      logger,
	}
	for _, category := range models.Categories {
		e.facades[category] = NewFacade(category, Deps{
			Cache:     shared,
			Limiter:   limits.For(category),
			Chain:     chains[category],
			Analyzer:  analyzer,
			Resolvers: func() []string { return SystemResolvers(resolvConf) },
			Synth:     synthOpts,
			Logger:    logger,
		})
		logger.Debug("facade ready", "category", category, "sources", chains[category].Len(),
			"permits", limits.For(category).Max())
	}
	return e, nil
}

// Facade returns the facade for category
func (e *Engine) Facade(category models.Category) (*Facade, bool) {
	f, ok := e.facades[category]
	return f, ok
}

// Detect runs one category. An empty ip for purity or privacy means the
// caller's own public address. The only error is an unknown category.
func (e *Engine) Detect(ctx context.Context, category models.Category, ip string) (*models.DetectionResult, error) {
	f, ok := e.facades[category]
	if !ok {
		return nil, fmt.Errorf("unknown category %q", category)
	}

	ip = strings.TrimSpace(ip)
	if ip == "" && category != models.CategoryDNSLeak {
		self, err := e.CurrentIP(ctx)
		if err != nil {
			e.logger.Warn("could not determine public address", "error", err)
		} else {
			ip = self
		}
	}
	return f.Detect(ctx, ip), nil
}

// CurrentIP discovers the caller's public address
func (e *Engine) CurrentIP(ctx context.Context) (string, error) {
	return probe.CurrentIP(ctx, e.client, e.ipEndpoints)
}

// IPInfo geolocates ip (or the caller when empty) using the geo source chain,
// then the offline database, then Unknown defaults.
func (e *Engine) IPInfo(ctx context.Context, ip string) models.IPInfo {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		if self, err := e.CurrentIP(ctx); err == nil {
			ip = self
		} else {
			e.logger.Warn("could not determine public address", "error", err)
		}
	}
	return LookupInfo(ctx, ip, e.geo, e.geoDB)
}

// Close releases the offline geo database
func (e *Engine) Close() error {
	return e.geoDB.Close()
}

// LookupInfo resolves geo information for ip through src, then db
func LookupInfo(ctx context.Context, ip string, src Source, db heuristic.GeoLookup) models.IPInfo {
	info := models.IPInfo{
		IP:          ip,
		Country:     models.Unknown,
		CountryCode: models.Unknown,
		Region:      models.Unknown,
		City:        models.Unknown,
		ISP:         models.Unknown,
		Timezone:    models.Unknown,
		Source:      "none",
	}
	if ip == "" {
		info.IP = models.Unknown
	}

	if src != nil {
		if res, ok := src.TryAll(ctx, ip); ok {
			if info.IP == models.Unknown && res.IP != models.Unknown {
				info.IP = res.IP
			}
			info.Country = res.Country
			info.CountryCode = res.CountryCode
			info.Region = res.Region
			info.City = res.City
			info.ISP = res.ISP
			info.Timezone = res.Timezone
			info.Source = res.Provider
			return info
		}
	}

	if db != nil {
		if g, ok := db.Lookup(net.ParseIP(ip)); ok {
			fill := func(dst *string, v string) {
				if v != "" {
					*dst = v
				}
			}
			fill(&info.Country, g.Country)
			fill(&info.CountryCode, g.CountryCode)
			fill(&info.Region, g.Region)
			fill(&info.City, g.City)
			fill(&info.ISP, g.ASNOrg)
			fill(&info.Timezone, g.Timezone)
			info.Source = "geoip2"
		}
	}
	return info
}

// SystemResolvers reads nameservers from a resolv.conf style file. A missing
// file yields no servers.
func SystemResolvers(path string) []string {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	return heuristic.ParseResolvConf(f)
}
