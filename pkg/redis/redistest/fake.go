// Package redistest provides an in-memory redis.Client for tests.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/saaga0h/doorpi/pkg/redis"
)

// Fake is an in-memory redis.Client. TTLs are recorded but never expire keys.
// Setting Err makes every call fail with it.
type Fake struct {
	mu      sync.Mutex
	Strings map[string]string
	Hashes  map[string]map[string]string
	TTLs    map[string]time.Duration
	Err     error
}

var _ redis.Client = (*Fake)(nil)

// New returns an empty Fake
func New() *Fake {
	return &Fake{
		Strings: make(map[string]string),
		Hashes:  make(map[string]map[string]string),
		TTLs:    make(map[string]time.Duration),
	}
}

func (f *Fake) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Strings[key] = fmt.Sprint(value)
	if ttl > 0 {
		f.TTLs[key] = ttl
	}
	return nil
}

func (f *Fake) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	v, ok := f.Strings[key]
	if !ok {
		return "", fmt.Errorf("key %s: %w", key, redis.ErrKeyNotFound)
	}
	return v, nil
}

func (f *Fake) HSet(ctx context.Context, key string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	h, ok := f.Hashes[key]
	if !ok {
		h = make(map[string]string)
		f.Hashes[key] = h
	}
	for k, v := range fields {
		h[k] = fmt.Sprint(v)
	}
	return nil
}

func (f *Fake) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	h, ok := f.Hashes[key]
	if !ok || len(h) == 0 {
		return nil, fmt.Errorf("hash %s: %w", key, redis.ErrKeyNotFound)
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.TTLs[key] = ttl
	return nil
}

func (f *Fake) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for _, k := range keys {
		delete(f.Strings, k)
		delete(f.Hashes, k)
		delete(f.TTLs, k)
	}
	return nil
}

func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Err
}

func (f *Fake) Close() error {
	return nil
}
