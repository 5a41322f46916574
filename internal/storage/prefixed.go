package storage

import (
	"context"

	"github.com/Rrens/support-chat/internal/domain"
)

// Prefixed scopes every key of the wrapped store under a namespace, so one
// backing store can hold many clients' local storage side by side.
type Prefixed struct {
	kv     domain.KeyValueStore
	prefix string
}

// NewPrefixed wraps kv so all keys are stored as prefix+key
func NewPrefixed(kv domain.KeyValueStore, prefix string) *Prefixed {
	return &Prefixed{kv: kv, prefix: prefix}
}

func (p *Prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.kv.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.kv.Set(ctx, p.prefix+key, value)
}

func (p *Prefixed) Remove(ctx context.Context, key string) error {
	return p.kv.Remove(ctx, p.prefix+key)
}
