package cache

import (
	"context"
	"sync"
	"time"
)

type Memory struct {
	mu  sync.RWMutex
	now func() time.Time
	m   map[string]entry
}

type entry struct {
	val []byte
	exp time.Time
}

func NewMemory() *Memory {
	return &Memory{
		now: time.Now,
		m:   make(map[string]entry),
	}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !now.Before(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}

	return e.val, true, nil
}

func (c *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	cp := make([]byte, len(val))
	copy(cp, val)

	c.mu.Lock()
	c.m[key] = entry{val: cp, exp: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *Memory) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.m, k)
	}
	c.mu.Unlock()
	return nil
}
