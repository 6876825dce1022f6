package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/hakim/netdiag/internal/logging"
	"github.com/hakim/netdiag/internal/models"
)

// Detector runs one detection category. *detect.Engine satisfies it.
type Detector interface {
	Detect(ctx context.Context, category models.Category, ip string) (*models.DetectionResult, error)
}

// StoreInterface is the minimal bbolt contract required by the orchestrator.
// Using an interface keeps the package testable without a real database.
type StoreInterface interface {
	SaveDetection(rec *models.DetectionRecord) error
	SaveSession(meta *models.SessionMeta) error
	CompleteSession(id string, recordIDs []string) error
}

// SessionConfig controls how RunSession behaves for a single run.
type SessionConfig struct {
	// Subject is the IP being checked. Empty means the caller's own address.
	Subject string

	// Categories is the allow-list of categories to run.
	// Empty means "run every category".
	Categories []models.Category

	// Skip is a list of categories to exclude, applied after Categories filtering.
	Skip []models.Category

	// Scope restricts which subjects may be checked.
	Scope *ScopeConfig

	// Timeout caps the total wall-clock time for the session.
	// Zero means no timeout beyond the caller's context.
	Timeout time.Duration

	// OnCategoryStart is called immediately before each category executes.
	OnCategoryStart func(category models.Category)

	// OnCategoryDone is called after each category returns (or panics).
	OnCategoryDone func(category models.Category, result *models.DetectionResult, err error, elapsed time.Duration)

	Logger *slog.Logger
}

// SessionResult summarises what happened after RunSession returns.
type SessionResult struct {
	// Subject is the address that was checked ("local" for the caller).
	Subject string `json:"subject"`

	// SessionID is the bbolt record ID created for this run.
	SessionID string `json:"session_id"`

	// Session is the persisted session metadata.
	Session *models.SessionMeta `json:"session"`

	// Results holds one result per category that produced one, in
	// dns-leak, purity, privacy order.
	Results []*models.DetectionResult `json:"results"`

	// Errors maps category to error message for every category that failed.
	Errors map[string]string `json:"errors"`

	// Elapsed is the total wall time of the session.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Status is "complete" when every selected category produced a result,
	// "partial" otherwise.
	Status string `json:"status"`
}

// RunSession runs the selected categories concurrently against one subject
// and persists every result.
//
// Crash isolation:
//   Each category is wrapped in a deferred recover so a panicking detector is
//   recorded as an error and the remaining categories still complete.
//
// The session record is created before the first category and completed with
// the IDs of the stored detections once all categories have returned.
func RunSession(ctx context.Context, cfg SessionConfig, detector Detector, store StoreInterface) (*SessionResult, error) {
	logger := logging.OrDefault(cfg.Logger)

	// ── 1. Validate required inputs ───────────────────────────────────────────
	if detector == nil {
		return nil, fmt.Errorf("session: detector must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("session: store must not be nil")
	}
	// An empty subject means the caller's own address, which scope does not govern
	if cfg.Subject != "" {
		if err := cfg.Scope.ValidateIP(cfg.Subject); err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
	}

	// ── 2. Apply category filtering ───────────────────────────────────────────
	selected := filterCategories(models.Categories, cfg.Categories, cfg.Skip)
	if len(selected) == 0 {
		return nil, fmt.Errorf("session: no categories remain after filtering")
	}

	// ── 3. Apply optional timeout ─────────────────────────────────────────────
	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	// ── 4. Create the session record ──────────────────────────────────────────
	meta := models.NewSession(cfg.Subject, selected)
	if err := store.SaveSession(meta); err != nil {
		return nil, fmt.Errorf("session: saving initial session record: %w", err)
	}
	logger.Info("session started", "session", meta.ID, "subject", meta.Subject, "categories", len(selected))

	// ── 5. Run categories concurrently ────────────────────────────────────────
	result := &SessionResult{
		Subject:   meta.Subject,
		SessionID: meta.ID,
		Session:   meta,
		Errors:    make(map[string]string),
	}

	var (
		mu      sync.Mutex
		byCat   = make(map[models.Category]*models.DetectionResult, len(selected))
		records []string
		wg      conc.WaitGroup
	)
	start := time.Now()

	for _, category := range selected {
		category := category // per-iteration copy (go 1.21 loop semantics)
		wg.Go(func() {
			if cfg.OnCategoryStart != nil {
				cfg.OnCategoryStart(category)
			}

			catStart := time.Now()
			res, err := runCategoryIsolated(runCtx, detector, category, cfg.Subject)
			elapsed := time.Since(catStart)

			var recordID string
			if err == nil {
				rec := models.NewDetectionRecord(meta.ID, res)
				if saveErr := store.SaveDetection(rec); saveErr != nil {
					// Non-fatal: the detection completed, only history is lost.
					logger.Warn("could not persist detection", "category", category, "error", saveErr)
				} else {
					recordID = rec.ID
				}
			}

			mu.Lock()
			if err != nil {
				result.Errors[string(category)] = err.Error()
			} else {
				byCat[category] = res
			}
			if recordID != "" {
				records = append(records, recordID)
			}
			mu.Unlock()

			if cfg.OnCategoryDone != nil {
				cfg.OnCategoryDone(category, res, err, elapsed)
			}
		})
	}
	wg.Wait()

	result.Elapsed = time.Since(start)
	for _, category := range selected {
		if r, ok := byCat[category]; ok {
			result.Results = append(result.Results, r)
		}
	}

	// Use the address the detectors actually checked when the caller gave none
	if cfg.Subject == "" {
		for _, r := range result.Results {
			if r.IP != "" && r.IP != models.Unknown {
				result.Subject = r.IP
				break
			}
		}
	}

	// ── 6. Determine final status and persist ─────────────────────────────────
	result.Status = "complete"
	if len(result.Errors) > 0 {
		result.Status = "partial"
	}

	if err := store.CompleteSession(meta.ID, records); err != nil {
		logger.Warn("could not complete session record", "session", meta.ID, "error", err)
	}
	now := time.Now()
	meta.CompletedAt = &now
	meta.RecordIDs = append(meta.RecordIDs, records...)

	logger.Info("session finished", "session", meta.ID, "status", result.Status,
		"elapsed", result.Elapsed.Round(time.Millisecond))

	return result, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// filterCategories applies the allow-list and deny-list to all, preserving
// the canonical order.
func filterCategories(all, allow, skip []models.Category) []models.Category {
	allowSet := toSet(allow)
	skipSet := toSet(skip)

	var out []models.Category
	for _, c := range all {
		// If an allow-list is provided, only include categories in it.
		if len(allowSet) > 0 && !allowSet[c] {
			continue
		}
		if skipSet[c] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// runCategoryIsolated runs a single category inside a deferred recover so
// that a panic in detector code is caught and returned as an error rather
// than crashing the process.
func runCategoryIsolated(ctx context.Context, d Detector, category models.Category, subject string) (res *models.DetectionResult, retErr error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			retErr = fmt.Errorf("category %q panicked: %v", category, r)
		}
	}()

	res, err := d.Detect(ctx, category, subject)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("category %q returned no result", category)
	}
	return res, nil
}

// toSet converts a category slice into a boolean lookup map.
// An empty slice produces an empty (not nil) map.
func toSet(categories []models.Category) map[models.Category]bool {
	m := make(map[models.Category]bool, len(categories))
	for _, c := range categories {
		m[c] = true
	}
	return m
}
