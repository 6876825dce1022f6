// Package latency approximates ICMP ping and TCP port probes with timed HTTP
// HEAD requests, for environments where raw sockets are unavailable.
package latency

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hakim/netdiag/internal/models"
)

// Defaults used when Options fields are zero
const (
	DefaultCount   = 10
	DefaultTimeout = 5 * time.Second
	DefaultGap     = 100 * time.Millisecond
)

// Options controls a probe run
type Options struct {
	Count   int
	Timeout time.Duration
	Gap     time.Duration
	Client  *http.Client

	// Scheme is "https" unless overridden
	Scheme string
}

func (o Options) withDefaults() Options {
	if o.Count <= 0 {
		o.Count = DefaultCount
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Gap < 0 {
		o.Gap = 0
	} else if o.Gap == 0 {
		o.Gap = DefaultGap
	}
	if o.Client == nil {
		o.Client = &http.Client{
			// Redirects are a response too; do not follow them
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		}
	}
	if o.Scheme == "" {
		o.Scheme = "https"
	}
	return o
}

// Ping sends Count sequential HEAD requests to host and summarises the round
// trips. A request that fails or times out counts as lost.
func Ping(ctx context.Context, host string, opts Options) (*models.PingResult, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("host is required")
	}
	opts = opts.withDefaults()
	target := opts.Scheme + "://" + host

	result := &models.PingResult{
		Host:      host,
		Packets:   opts.Count,
		Times:     []float64{},
		Timestamp: time.Now(),
	}

	for i := 0; i < opts.Count; i++ {
		if i > 0 {
			if err := sleep(ctx, opts.Gap); err != nil {
				return nil, err
			}
		}
		elapsed, err := head(ctx, opts.Client, target, opts.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		result.Times = append(result.Times, elapsed)
	}

	summarise(result)
	return result, nil
}

func summarise(r *models.PingResult) {
	r.Received = len(r.Times)
	r.Lost = r.Packets - r.Received
	if r.Packets > 0 {
		r.LossPercentage = round2(float64(r.Lost) / float64(r.Packets) * 100)
	}
	if r.Received == 0 {
		return
	}

	r.MinTime = math.Inf(1)
	var sum float64
	for _, t := range r.Times {
		sum += t
		r.MinTime = math.Min(r.MinTime, t)
		r.MaxTime = math.Max(r.MaxTime, t)
	}
	r.MinTime = round2(r.MinTime)
	r.MaxTime = round2(r.MaxTime)
	r.AvgTime = round2(sum / float64(r.Received))
}

// TCPing approximates the state of each port on host. Ports are checked one
// after another with Gap between them.
func TCPing(ctx context.Context, host string, ports []int, opts Options) ([]models.PortResult, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("host is required")
	}
	if len(ports) == 0 {
		ports = CommonPorts
	}
	opts = opts.withDefaults()

	results := make([]models.PortResult, 0, len(ports))
	for i, port := range ports {
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid port %d", port)
		}
		if i > 0 {
			if err := sleep(ctx, opts.Gap); err != nil {
				return nil, err
			}
		}
		results = append(results, checkPort(ctx, host, port, opts))
	}
	return results, nil
}

func checkPort(ctx context.Context, host string, port int, opts Options) models.PortResult {
	res := models.PortResult{
		Host:        host,
		Port:        port,
		ServiceName: ServiceName(port),
		Timestamp:   time.Now(),
	}

	target := opts.Scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))
	elapsed, err := head(ctx, opts.Client, target, opts.Timeout)
	res.Status = Classify(err)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.ResponseTimeMs = elapsed
	}
	return res
}

// Classify maps the outcome of a HEAD request to a port state. Any HTTP
// response, or a TLS or protocol failure after the connection was
// established, means something is listening.
func Classify(err error) models.PortStatus {
	if err == nil {
		return models.PortOpen
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return models.PortClosed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.PortFiltered
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.PortFiltered
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return models.PortFiltered
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return models.PortFiltered
	}
	// Handshake or protocol errors happen after connect
	return models.PortOpen
}

// head times a single HEAD request in milliseconds
func head(ctx context.Context, client *http.Client, target string, timeout time.Duration) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return round2(float64(time.Since(start).Microseconds()) / 1000), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
