package storage

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketDetections     = "detections"
	bucketDetectionIndex = "detection_index"
	bucketSessions       = "sessions"
	bucketSessionIndex   = "session_index"
)

// Store wraps a bbolt database for detection history
type Store struct {
	db *bbolt.DB
}

// NewStore opens a bbolt database at the given path and initializes required buckets
func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketDetections, bucketDetectionIndex, bucketSessions, bucketSessionIndex} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the bbolt database
func (s *Store) Close() error {
	return s.db.Close()
}
