package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketClientState = []byte("client_state")

type bboltKV struct {
	db *bolt.DB
}

func NewBboltKV(path string) (KV, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketClientState)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &bboltKV{db: db}, nil
}

func (s *bboltKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, errKeyRequired
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClientState)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		// bbolt values are only valid for the life of the transaction.
		out = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *bboltKV) Put(_ context.Context, key string, value []byte) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errKeyRequired
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClientState)
		if b == nil {
			return errors.New("client state bucket missing")
		}
		return b.Put([]byte(key), value)
	})
}

func (s *bboltKV) Delete(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errKeyRequired
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClientState)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *bboltKV) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
