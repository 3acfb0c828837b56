// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerRunsOnce(t *testing.T) {
	t.Parallel()

	d := New(20 * time.Millisecond)
	defer d.Stop()

	var executed atomic.Int64
	d.Do(func() { executed.Add(1) })

	require.Eventually(t, func() bool {
		return executed.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, d.Pending())
}

func TestDebouncerCoalesces(t *testing.T) {
	t.Parallel()

	d := New(50 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	var executed []int

	for i := 0; i < 5; i++ {
		val := i
		d.Do(func() {
			mu.Lock()
			executed = append(executed, val)
			mu.Unlock()
		})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(executed) > 0
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{4}, executed, "only the last submission runs")
}

func TestDebouncerStopFlushesPending(t *testing.T) {
	t.Parallel()

	d := New(time.Hour)

	var executed atomic.Int64
	d.Do(func() { executed.Add(1) })

	d.Stop()
	assert.Equal(t, int64(1), executed.Load())

	// stopped debouncers execute immediately
	d.Do(func() { executed.Add(1) })
	assert.Equal(t, int64(2), executed.Load())

	d.Stop()
}
