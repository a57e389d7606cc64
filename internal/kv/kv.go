// Package kv is the durable local key/value store: like-milestone
// watermarks, theme preference and registered push tokens. It survives
// restarts and is scoped to this installation.
package kv

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// Store wraps a Badger database.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the store at path. An empty path opens an
// in-memory database, which is what tests use.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	} else {
		opts.SyncWrites = true
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if logger != nil {
		logger.Info("Badger key/value store opened", "path", path, "in_memory", path == "")
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value at key. The bool is false when the key is absent.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value at key.
func (s *Store) Set(key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

// GetInt returns an integer value. Unparseable values read as absent.
func (s *Store) GetInt(key string) (int, bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("ignoring malformed integer value", "key", key, "value", raw)
		}
		return 0, false, nil
	}
	return n, true, nil
}

// SetInt stores an integer value.
func (s *Store) SetInt(key string, n int) error {
	return s.Set(key, strconv.Itoa(n))
}
