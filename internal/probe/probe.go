// Package probe fetches one external data source and normalizes its answer.
//
// Every source is reached through the same HTTPProbe type; what differs per
// provider is an Adapter that knows how to build the request URL and how to
// decode that provider's raw response into a models.SourceResult. Expected
// failures (network errors, timeouts, non-2xx statuses, malformed bodies) are
// reported as absent, never as errors.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hakim/netdiag/internal/logging"
	"github.com/hakim/netdiag/internal/models"
)

// maxBody caps how much of a response body is read
const maxBody = 1 << 20

// Default per-kind timeouts
var defaultTimeouts = map[models.ProbeKind]time.Duration{
	models.KindDoH:   8 * time.Second,
	models.KindGeo:   10 * time.Second,
	models.KindProxy: 12 * time.Second,
	models.KindAbuse: 15 * time.Second,
}

// Probe is one integration against a single external data source
type Probe interface {
	Name() string
	Kind() models.ProbeKind
	Fetch(ctx context.Context, subject string) (*models.SourceResult, bool)
}

// Adapter describes how to talk to one provider
type Adapter struct {
	Provider string
	Kind     models.ProbeKind
	NeedsKey bool

	// URL returns the request URL for subject. subject may be empty for
	// providers that can answer about the caller's own address.
	URL func(base, subject, key string) (string, error)

	// Header adds provider-specific request headers. Optional.
	Header func(h http.Header, key string)

	// Decode parses body into out. out arrives pre-filled with defaults.
	Decode func(body []byte, subject string, out *models.SourceResult) error
}

// HTTPProbe is a Probe backed by an HTTP GET and an Adapter
type HTTPProbe struct {
	name      string
	baseURL   string
	apiKey    string
	userAgent string
	timeout   time.Duration
	adapter   Adapter
	client    *http.Client
	logger    *slog.Logger
}

// Name returns the display name of the source
func (p *HTTPProbe) Name() string { return p.name }

// Kind returns the probe variant
func (p *HTTPProbe) Kind() models.ProbeKind { return p.adapter.Kind }

// Timeout returns the per-request deadline
func (p *HTTPProbe) Timeout() time.Duration { return p.timeout }

// Fetch queries the source for subject. The boolean is false when the source
// could not answer for any expected reason.
func (p *HTTPProbe) Fetch(ctx context.Context, subject string) (*models.SourceResult, bool) {
	if p.adapter.NeedsKey && p.apiKey == "" {
		p.logger.Debug("probe skipped: api key not configured", "probe", p.name)
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	body, err := p.get(ctx, subject)
	if err != nil {
		p.logger.Debug("probe unavailable", "probe", p.name, "subject", subject, "error", err)
		return nil, false
	}

	out := models.NewSourceResult(p.name, p.adapter.Kind)
	if err := p.adapter.Decode(body, subject, out); err != nil {
		p.logger.Debug("probe returned malformed response", "probe", p.name, "subject", subject, "error", err)
		return nil, false
	}
	out.ResponseTimeMs = time.Since(start).Milliseconds()
	normalize(out)

	p.logger.Debug("probe answered", "probe", p.name, "subject", subject, "elapsed_ms", out.ResponseTimeMs)
	return out, true
}

func (p *HTTPProbe) get(ctx context.Context, subject string) ([]byte, error) {
	url, err := p.adapter.URL(p.baseURL, subject, p.apiKey)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	if p.adapter.Header != nil {
		p.adapter.Header(req.Header, p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, errors.New("empty response body")
	}
	return body, nil
}

// Options carries the shared dependencies used to construct probes
type Options struct {
	Client    *http.Client
	Logger    *slog.Logger
	UserAgent string
}

// NewHTTPProbe builds a probe from an adapter. A zero timeout selects the
// default for the adapter's kind.
func NewHTTPProbe(name, baseURL, apiKey string, timeout time.Duration, adapter Adapter, opts Options) *HTTPProbe {
	if name == "" {
		name = adapter.Provider
	}
	if timeout <= 0 {
		timeout = defaultTimeouts[adapter.Kind]
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProbe{
		name:      name,
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		userAgent: opts.UserAgent,
		timeout:   timeout,
		adapter:   adapter,
		client:    client,
		logger:    logging.OrDefault(opts.Logger),
	}
}

// normalize replaces empty strings with Unknown and nil slices with empty ones
func normalize(r *models.SourceResult) {
	for _, f := range []*string{
		&r.IP, &r.Country, &r.CountryCode, &r.Region, &r.City, &r.ISP, &r.Org,
		&r.ASN, &r.Timezone, &r.LastReportedAt, &r.UsageType, &r.ProxyType, &r.VPNProvider,
	} {
		if strings.TrimSpace(*f) == "" {
			*f = models.Unknown
		}
	}
	if r.Servers == nil {
		r.Servers = []string{}
	}
	if r.ReportCategories == nil {
		r.ReportCategories = []string{}
	}
	if r.ISP == models.Unknown && r.Org != models.Unknown {
		r.ISP = r.Org
	}
}
