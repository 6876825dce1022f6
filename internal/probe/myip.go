package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultIPEndpoints are tried in order to discover the caller's public address
var DefaultIPEndpoints = []string{
	"https://api.ipify.org?format=json",
	"https://ipapi.co/ip/",
	"https://ident.me",
	"https://httpbin.org/ip",
	"https://api.ip.sb/ip",
}

// CurrentIP returns the caller's public address using the first endpoint that
// answers with something that parses as an IP.
func CurrentIP(ctx context.Context, client *http.Client, endpoints []string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if len(endpoints) == 0 {
		endpoints = DefaultIPEndpoints
	}

	var lastErr error
	for _, endpoint := range endpoints {
		ip, err := fetchIP(ctx, client, endpoint)
		if err == nil {
			return ip, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no endpoint answered")
	}
	return "", fmt.Errorf("discovering public ip: %w", lastErr)
}

func fetchIP(ctx context.Context, client *http.Client, endpoint string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("http status %d", resp.StatusCode)
	}

	trimmed := strings.TrimSpace(string(body))

	// JSON answers ({"ip": ...} or httpbin's {"origin": ...}) and plaintext are both accepted
	if strings.HasPrefix(trimmed, "{") {
		var raw map[string]any
		if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
			return "", err
		}
		trimmed = pickString(raw, "ip", "origin", "query")
		// httpbin may return "a, b" behind proxies
		trimmed, _, _ = strings.Cut(trimmed, ",")
		trimmed = strings.TrimSpace(trimmed)
	}

	if net.ParseIP(trimmed) == nil {
		return "", fmt.Errorf("%s: unexpected response %q", endpoint, trimmed)
	}
	return trimmed, nil
}
