package storage

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/hakim/netdiag/internal/models"
	"go.etcd.io/bbolt"
)

// SaveDetection persists a detection record and indexes it under its subject
func (s *Store) SaveDetection(rec *models.DetectionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		detections := tx.Bucket([]byte(bucketDetections))
		if err := detections.Put([]byte(rec.ID), data); err != nil {
			return err
		}

		return appendIndex(tx.Bucket([]byte(bucketDetectionIndex)), rec.Subject, rec.ID)
	})
}

// GetDetection retrieves a detection record by ID. A missing record is (nil, nil).
func (s *Store) GetDetection(id string) (*models.DetectionRecord, error) {
	var rec *models.DetectionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketDetections)).Get([]byte(id))
		if data == nil {
			return nil
		}

		rec = &models.DetectionRecord{}
		return json.Unmarshal(data, rec)
	})

	return rec, err
}

// ListDetections returns the records for subject, newest first. An empty
// category matches every category.
func (s *Store) ListDetections(subject string, category models.Category) ([]*models.DetectionRecord, error) {
	var records []*models.DetectionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		ids, err := readIndex(tx.Bucket([]byte(bucketDetectionIndex)), models.SubjectKey(subject))
		if err != nil {
			return err
		}

		detections := tx.Bucket([]byte(bucketDetections))
		for _, id := range ids {
			data := detections.Get([]byte(id))
			if data == nil {
				continue
			}
			var rec models.DetectionRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			if category != "" && rec.Category != category {
				continue
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DetectedAt.After(records[j].DetectedAt)
	})
	return records, nil
}

// GetLatestDetection retrieves the most recent record for subject and category
func (s *Store) GetLatestDetection(subject string, category models.Category) (*models.DetectionRecord, error) {
	records, err := s.ListDetections(subject, category)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Subjects lists every subject with stored detections
func (s *Store) Subjects() ([]string, error) {
	var subjects []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketDetectionIndex)).ForEach(func(k, _ []byte) error {
			subjects = append(subjects, string(k))
			return nil
		})
	})
	return subjects, err
}

// SaveSession persists session metadata
func (s *Store) SaveSession(meta *models.SessionMeta) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(bucketSessions)).Put([]byte(meta.ID), data); err != nil {
			return err
		}
		return appendIndex(tx.Bucket([]byte(bucketSessionIndex)), meta.Subject, meta.ID)
	})
}

// GetSession retrieves session metadata by ID. A missing session is (nil, nil).
func (s *Store) GetSession(id string) (*models.SessionMeta, error) {
	var meta *models.SessionMeta

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketSessions)).Get([]byte(id))
		if data == nil {
			return nil
		}
		meta = &models.SessionMeta{}
		return json.Unmarshal(data, meta)
	})

	return meta, err
}

// ListSessions returns the sessions for subject, newest first
func (s *Store) ListSessions(subject string) ([]*models.SessionMeta, error) {
	var sessions []*models.SessionMeta

	err := s.db.View(func(tx *bbolt.Tx) error {
		ids, err := readIndex(tx.Bucket([]byte(bucketSessionIndex)), models.SubjectKey(subject))
		if err != nil {
			return err
		}
		bucket := tx.Bucket([]byte(bucketSessions))
		for _, id := range ids {
			data := bucket.Get([]byte(id))
			if data == nil {
				continue
			}
			var meta models.SessionMeta
			if err := json.Unmarshal(data, &meta); err != nil {
				return err
			}
			sessions = append(sessions, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

// CompleteSession stamps CompletedAt and records the detection IDs
func (s *Store) CompleteSession(id string, recordIDs []string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket([]byte(bucketSessions))

		data := sessions.Get([]byte(id))
		if data == nil {
			return nil // Not found, no-op
		}

		var meta models.SessionMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}

		meta.RecordIDs = append(meta.RecordIDs, recordIDs...)
		if meta.CompletedAt == nil {
			now := time.Now()
			meta.CompletedAt = &now
		}

		updated, err := json.Marshal(&meta)
		if err != nil {
			return err
		}
		return sessions.Put([]byte(id), updated)
	})
}

// appendIndex adds id to the JSON list stored under key, once
func appendIndex(index *bbolt.Bucket, key, id string) error {
	ids, err := readIndex(index, key)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)

	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return index.Put([]byte(key), data)
}

func readIndex(index *bbolt.Bucket, key string) ([]string, error) {
	data := index.Get([]byte(key))
	if data == nil {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
