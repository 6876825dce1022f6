package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hakim/netdiag/internal/models"
)

// NotifyConfig configures where to send completion notifications.
type NotifyConfig struct {
	WebhookURL string // if empty, no notifications
	Client     *http.Client
}

// categorySummary is one line of the webhook payload.
type categorySummary struct {
	Category    models.Category    `json:"category"`
	IP          string             `json:"ip,omitempty"`
	RiskScore   int                `json:"risk_score"`
	ThreatLevel models.ThreatLevel `json:"threat_level"`
	DataSource  models.DataSource  `json:"data_source"`
	Explanation string             `json:"explanation"`
}

// completionPayload is the JSON body posted to the webhook endpoint.
type completionPayload struct {
	Subject        string            `json:"subject"`
	SessionID      string            `json:"session_id"`
	Status         string            `json:"status"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
	Results        []categorySummary `json:"results"`
	Errors         map[string]string `json:"errors"`
}

// SendCompletion posts a JSON payload to the webhook URL with session results.
// Returns nil if WebhookURL is empty (no-op). Non-fatal: errors are returned
// but callers should treat them as warnings.
func (n *NotifyConfig) SendCompletion(result *SessionResult) error {
	if n == nil || n.WebhookURL == "" {
		return nil
	}

	payload := completionPayload{
		Subject:        result.Subject,
		SessionID:      result.SessionID,
		Status:         result.Status,
		ElapsedSeconds: result.Elapsed.Seconds(),
		Results:        make([]categorySummary, 0, len(result.Results)),
		Errors:         result.Errors,
	}
	for _, r := range result.Results {
		payload.Results = append(payload.Results, categorySummary{
			Category:    r.Category,
			IP:          r.IP,
			RiskScore:   r.RiskScore,
			ThreatLevel: r.ThreatLevel,
			DataSource:  r.DataSource,
			Explanation: r.Explanation,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshaling payload: %w", err)
	}

	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Post(n.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: posting to %s: %w", n.WebhookURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned non-2xx status %d", resp.StatusCode)
	}

	return nil
}
