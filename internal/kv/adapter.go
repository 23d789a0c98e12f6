// Package kv provides the durable key/value storage the analysis store persists into.
package kv

import (
	"errors"
	"fmt"
	"io"

	"secondhand-price/internal/config"
)

// ErrNotFound is returned by Get when the key has never been written
var ErrNotFound = errors.New("key not found")

// Adapter is a durable string key/value store
type Adapter interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open creates the adapter selected by cfg.StorageBackend.
// The returned closer releases the backend's resources.
func Open(cfg *config.Config) (Adapter, io.Closer, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return NewMemory(), nopCloser{}, nil
	case config.BackendFile:
		f, err := NewFile(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return f, nopCloser{}, nil
	case config.BackendSQLite:
		s, err := NewSQLite(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.BackendRedis:
		r, err := NewRedis(RedisOptions{
			Addr:      cfg.RedisAddr(),
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
