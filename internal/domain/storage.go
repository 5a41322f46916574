package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned by key-value stores when a key is absent
var ErrNotFound = errors.New("not found")

// KeyValueStore is the raw persistence surface behind session storage
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Pinger is implemented by stores that can report their health
type Pinger interface {
	Ping(ctx context.Context) error
}
