// Package storage holds the key-value backends the cart persists its products to.
package storage

import (
	"context"
	"errors"
)

var ErrInvalidKey = errors.New("storage: key must not be empty")

// Item is one result of MultiGet. Found is false when the key has no value.
type Item struct {
	Key   string
	Value string
	Found bool
}

// KeyValueStore is a flat string key-value store, one record per key.
type KeyValueStore interface {
	// GetAllKeys returns every key held by the store.
	GetAllKeys(ctx context.Context) ([]string, error)

	// MultiGet returns one Item per requested key, in the order of keys.
	MultiGet(ctx context.Context, keys []string) ([]Item, error)

	// SetItem writes value under key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// MultiRemove deletes all keys.
	MultiRemove(ctx context.Context, keys []string) error
}

func validateKeys(keys ...string) error {
	for _, key := range keys {
		if key == "" {
			return ErrInvalidKey
		}
	}
	return nil
}
