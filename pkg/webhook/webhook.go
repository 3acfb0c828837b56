// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package webhook notifies an external endpoint when a source's torrent
// identity changes. Delivery is best effort: failures are logged by the
// caller, never surfaced to the reconciliation path.
package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

// Notifier delivers hash-change notifications as GET requests with old
// and new query parameters, retrying transient failures a few times.
type Notifier struct {
	endpoint   string
	httpClient *http.Client
	userAgent  string
}

// Config holds the options for constructing a Notifier.
type Config struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
}

// NewNotifier returns nil when no endpoint is configured, which callers
// treat as "webhook disabled".
func NewNotifier(cfg Config) *Notifier {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "pickpockett"
	}

	return &Notifier{
		endpoint:   endpoint,
		httpClient: httpClient,
		userAgent:  ua,
	}
}

// Notify delivers one hash transition. Safe on a nil receiver.
func (n *Notifier) Notify(ctx context.Context, oldHash, newHash string) error {
	if n == nil {
		return nil
	}

	params := url.Values{}
	params.Set("old", oldHash)
	params.Set("new", newHash)

	reqURL := n.endpoint
	if strings.Contains(reqURL, "?") {
		reqURL += "&" + params.Encode()
	} else {
		reqURL += "?" + params.Encode()
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", n.userAgent)

			resp, err := n.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("webhook endpoint returned %s", resp.Status)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}
