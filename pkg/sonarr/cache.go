// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sonarr

import (
	"sync"
	"time"
)

// schemaCache memoizes one profile-schema lookup for a bounded time.
// Consumers tolerate results up to one TTL window old.
type schemaCache[T any] struct {
	ttl time.Duration

	mu        sync.Mutex
	value     T
	fetchedAt time.Time
	now       func() time.Time
}

func newSchemaCache[T any](ttl time.Duration) *schemaCache[T] {
	return &schemaCache[T]{
		ttl: ttl,
		now: time.Now,
	}
}

func (c *schemaCache[T]) get(fetch func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.value, nil
	}

	value, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}

	c.value = value
	c.fetchedAt = c.now()
	return value, nil
}
