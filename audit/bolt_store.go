package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
)

var (
	insecureBucket = []byte("insecure-reports")
	secureBucket   = []byte("secure-reports")
)

// BoltStore implements Store on an embedded bbolt database. Reports are
// keyed by the bucket sequence, so iteration order is arrival order.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{insecureBucket, secureBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveInsecure persists r.
func (s *BoltStore) SaveInsecure(_ context.Context, r *InsecureReport) error {
	return s.put(insecureBucket, r)
}

// SaveSecure persists r.
func (s *BoltStore) SaveSecure(_ context.Context, r *SecureReport) error {
	return s.put(secureBucket, r)
}

// ListInsecure returns all raw value reports.
func (s *BoltStore) ListInsecure(context.Context) ([]*InsecureReport, error) {
	var out []*InsecureReport
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(insecureBucket).ForEach(func(_, v []byte) error {
			var r InsecureReport
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, &r)
			return nil
		})
	})
	return out, err
}

// ListSecure returns all masked value reports.
func (s *BoltStore) ListSecure(context.Context) ([]*SecureReport, error) {
	var out []*SecureReport
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(secureBucket).ForEach(func(_, v []byte) error {
			var r SecureReport
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, &r)
			return nil
		})
	})
	return out, err
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) put(bucket []byte, report any) error {
	buf, err := json.Marshal(report)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, buf)
	})
}
