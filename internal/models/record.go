package models

import (
	"time"

	"github.com/google/uuid"
)

// DetectionRecord is a persisted detection result
type DetectionRecord struct {
	ID         string           `json:"id"`
	Subject    string           `json:"subject"`
	Category   Category         `json:"category"`
	SessionID  string           `json:"session_id,omitempty"`
	DetectedAt time.Time        `json:"detected_at"`
	Result     *DetectionResult `json:"result"`
}

// NewDetectionRecord wraps a result in a record with a fresh ID.
// DNS-leak results have no subject IP, so they are indexed under "local".
func NewDetectionRecord(sessionID string, result *DetectionResult) *DetectionRecord {
	return &DetectionRecord{
		ID:         uuid.New().String(),
		Subject:    SubjectKey(result.IP),
		Category:   result.Category,
		SessionID:  sessionID,
		DetectedAt: time.Now(),
		Result:     result,
	}
}

// SubjectKey normalizes a subject for indexing
func SubjectKey(ip string) string {
	if ip == "" {
		return "local"
	}
	return ip
}

// SessionMeta summarises one multi-category detection run
type SessionMeta struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Categories  []Category `json:"categories"`
	RecordIDs   []string   `json:"record_ids,omitempty"`
}

// NewSession creates session metadata with a fresh ID
func NewSession(subject string, categories []Category) *SessionMeta {
	return &SessionMeta{
		ID:         uuid.New().String(),
		Subject:    SubjectKey(subject),
		StartedAt:  time.Now(),
		Categories: categories,
		RecordIDs:  []string{},
	}
}
