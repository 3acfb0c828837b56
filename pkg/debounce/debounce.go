// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package debounce coalesces bursts of calls into one trailing
// execution: editors rewrite files several times per save, and only the
// last state matters.
package debounce

import (
	"sync"
	"time"
)

type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending func()
	stopped bool
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Do schedules fn to run once the delay has elapsed without further
// calls. Each call replaces the previously scheduled function. After
// Stop, fn runs immediately.
func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()

	if d.stopped {
		d.mu.Unlock()
		fn()
		return
	}

	d.pending = fn
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fire)
	} else {
		d.timer.Reset(d.delay)
	}

	d.mu.Unlock()
}

// Pending reports whether an execution is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Stop cancels the timer and runs any still-pending function.
func (d *Debouncer) Stop() {
	d.mu.Lock()

	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	fn := d.pending
	d.pending = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}
