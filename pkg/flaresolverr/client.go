// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package flaresolverr is a minimal client for a FlareSolverr instance,
// the browser-backed proxy that solves anti-bot challenges.
package flaresolverr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/autobrr/pickpockett/pkg/cookies"
)

const defaultTimeoutMillis = 60000

// Config holds the options for constructing a Client.
type Config struct {
	Host string
	// TimeoutMillis is the maxTimeout budget passed to the solver.
	TimeoutMillis int
	HTTPClient    *http.Client
	UserAgent     string
}

// Client talks to one FlareSolverr instance. The first Solve call creates
// a server-side browser session which is reused until Destroy releases
// it; callers own that lifecycle and must call Destroy when done.
type Client struct {
	host       string
	timeout    int
	httpClient *http.Client
	userAgent  string

	mu      sync.Mutex
	session string
}

// Solution is the solver's rendered view of the target page.
type Solution struct {
	Cookies   cookies.Jar
	Response  string
	UserAgent string
}

type namedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type commandRequest struct {
	Command    string        `json:"cmd"`
	URL        string        `json:"url,omitempty"`
	Session    string        `json:"session,omitempty"`
	MaxTimeout int           `json:"maxTimeout,omitempty"`
	Cookies    []namedCookie `json:"cookies,omitempty"`
}

type commandResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		Cookies   []namedCookie `json:"cookies"`
		Response  string        `json:"response"`
		UserAgent string        `json:"userAgent"`
	} `json:"solution"`
}

// NewClient constructs a new Client using the provided configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.TimeoutMillis
	if timeout <= 0 {
		timeout = defaultTimeoutMillis
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// The solver may sit on the full challenge wait, so the HTTP
		// timeout has to outlast the maxTimeout budget.
		httpClient = &http.Client{Timeout: time.Duration(timeout)*time.Millisecond + 10*time.Second}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "pickpockett"
	}

	return &Client{
		host:       cfg.Host,
		timeout:    timeout,
		httpClient: httpClient,
		userAgent:  ua,
	}
}

// Solve renders url through the solver, sending the current cookie set.
func (c *Client) Solve(ctx context.Context, targetURL string, jar cookies.Jar) (*Solution, error) {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	reqCookies := make([]namedCookie, 0, len(jar))
	for name, value := range jar {
		reqCookies = append(reqCookies, namedCookie{Name: name, Value: value})
	}

	resp, err := c.post(ctx, commandRequest{
		Command:    "request.get",
		URL:        targetURL,
		Session:    session,
		MaxTimeout: c.timeout,
		Cookies:    reqCookies,
	})
	if err != nil {
		return nil, err
	}

	solved := make(cookies.Jar, len(resp.Solution.Cookies))
	for _, ck := range resp.Solution.Cookies {
		solved[ck.Name] = ck.Value
	}

	return &Solution{
		Cookies:   solved,
		Response:  resp.Solution.Response,
		UserAgent: resp.Solution.UserAgent,
	}, nil
}

// Destroy releases the server-side session. Safe to call when no session
// was ever created, and after an earlier Destroy.
func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.session = ""
	c.mu.Unlock()

	if session == "" {
		return nil
	}

	_, err := c.post(ctx, commandRequest{
		Command: "sessions.destroy",
		Session: session,
	})
	return err
}

func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != "" {
		return c.session, nil
	}

	session := strconv.FormatInt(time.Now().UnixNano(), 10)
	_, err := c.post(ctx, commandRequest{
		Command:    "sessions.create",
		Session:    session,
		MaxTimeout: c.timeout,
	})
	if err != nil {
		return "", err
	}

	c.session = session
	return session, nil
}

func (c *Client) post(ctx context.Context, cmd commandRequest) (*commandResponse, error) {
	endpoint, err := url.JoinPath(c.host, "v1")
	if err != nil {
		return nil, fmt.Errorf("flaresolverr host %q: %w", c.host, err)
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flaresolverr %s: unexpected status %s", cmd.Command, resp.Status)
	}

	var decoded commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("flaresolverr %s: decode response: %w", cmd.Command, err)
	}

	if decoded.Status != "" && decoded.Status != "ok" {
		return nil, fmt.Errorf("flaresolverr %s: %s", cmd.Command, decoded.Message)
	}

	return &decoded, nil
}
