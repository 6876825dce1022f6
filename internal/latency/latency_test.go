package latency

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/hakim/netdiag/internal/models"
)

func hostPort(t *testing.T, srv *httptest.Server) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func TestPingCountsReplies(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		hits.Add(1)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	res, err := Ping(context.Background(), host, Options{Count: 4, Gap: time.Millisecond, Scheme: "http"})
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}

	if hits.Load() != 4 {
		t.Fatalf("server saw %d requests, want 4", hits.Load())
	}
	if res.Packets != 4 || res.Received != 4 || res.Lost != 0 || res.LossPercentage != 0 {
		t.Fatalf("unexpected summary: %+v", res)
	}
	if len(res.Times) != 4 || res.MinTime > res.AvgTime || res.AvgTime > res.MaxTime {
		t.Fatalf("inconsistent timings: %+v", res)
	}
}

func TestPingUnreachableHostLosesEverything(t *testing.T) {
	t.Parallel()

	host := fmt.Sprintf("127.0.0.1:%d", closedPort(t))
	res, err := Ping(context.Background(), host, Options{Count: 3, Gap: time.Millisecond, Timeout: time.Second, Scheme: "http"})
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if res.Received != 0 || res.Lost != 3 || res.LossPercentage != 100 {
		t.Fatalf("unexpected summary: %+v", res)
	}
	if res.Times == nil || res.AvgTime != 0 {
		t.Fatalf("lost pings should leave empty timings: %+v", res)
	}
}

func TestPingRequiresHost(t *testing.T) {
	t.Parallel()

	if _, err := Ping(context.Background(), "  ", Options{}); err == nil {
		t.Fatal("expected error for empty host")
	}
}

func TestTCPingClassifiesPorts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	host, open := hostPort(t, srv)
	closed := closedPort(t)

	results, err := TCPing(context.Background(), host, []int{open, closed},
		Options{Gap: time.Millisecond, Timeout: 2 * time.Second, Scheme: "http"})
	if err != nil {
		t.Fatalf("TCPing: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Status != models.PortOpen {
		t.Fatalf("port %d status = %s, want open (err %s)", open, results[0].Status, results[0].Error)
	}
	if results[1].Status != models.PortClosed {
		t.Fatalf("port %d status = %s, want closed (err %s)", closed, results[1].Status, results[1].Error)
	}
	if results[1].Error == "" {
		t.Fatal("closed port should carry the dial error")
	}
}

func TestTCPingRejectsInvalidPort(t *testing.T) {
	t.Parallel()

	if _, err := TCPing(context.Background(), "example.com", []int{0}, Options{}); err == nil {
		t.Fatal("expected error for port 0")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want models.PortStatus
	}{
		{"response", nil, models.PortOpen},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, models.PortClosed},
		{"deadline", fmt.Errorf("head: %w", context.DeadlineExceeded), models.PortFiltered},
		{"dial failure", &net.OpError{Op: "dial", Err: errors.New("no route to host")}, models.PortFiltered},
		{"tls after connect", errors.New("tls: first record does not look like a TLS handshake"), models.PortOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestParsePorts(t *testing.T) {
	t.Parallel()

	got, err := ParsePorts("22, 80,8000-8002")
	if err != nil {
		t.Fatal(err)
	}
	want := []int{22, 80, 8000, 8001, 8002}
	if len(got) != len(want) {
		t.Fatalf("ParsePorts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParsePorts = %v, want %v", got, want)
		}
	}

	for _, bad := range []string{"http", "0", "90-80", "1-70000"} {
		if _, err := ParsePorts(bad); err == nil {
			t.Errorf("ParsePorts(%q) should fail", bad)
		}
	}
}

func TestServiceName(t *testing.T) {
	t.Parallel()

	if ServiceName(443) != "HTTPS" || ServiceName(12345) != "Unknown" {
		t.Fatal("unexpected service names")
	}
}
