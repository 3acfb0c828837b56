// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify(t *testing.T) {
	t.Parallel()

	var gotOld, gotNew atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOld.Store(r.URL.Query().Get("old"))
		gotNew.Store(r.URL.Query().Get("new"))
	}))
	t.Cleanup(server.Close)

	notifier := NewNotifier(Config{Endpoint: server.URL})
	require.NotNil(t, notifier)

	err := notifier.Notify(context.Background(), "aaa", "bbb")
	require.NoError(t, err)
	assert.Equal(t, "aaa", gotOld.Load())
	assert.Equal(t, "bbb", gotNew.Load())
}

func TestNotifyRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
	}))
	t.Cleanup(server.Close)

	notifier := NewNotifier(Config{Endpoint: server.URL})
	require.NoError(t, notifier.Notify(context.Background(), "old", "new"))
	assert.Equal(t, int64(3), calls.Load())
}

func TestNewNotifierDisabled(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewNotifier(Config{}))

	var disabled *Notifier
	assert.NoError(t, disabled.Notify(context.Background(), "a", "b"))
}
