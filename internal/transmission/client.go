// Package transmission is a minimal client for the Transmission daemon RPC.
// It fetches what the host displays and satisfies poller.Fetcher.
package transmission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/trgui-ng/trgui/internal/models"
)

// SessionHeader carries the CSRF token the daemon hands out with a 409.
const SessionHeader = "X-Transmission-Session-Id"

const (
	defaultUserAgent = "trgui/1"
	requestTimeout   = 10 * time.Second
)

var torrentFields = []string{
	"id", "name", "status", "percentDone", "rateDownload", "rateUpload", "error", "errorString",
}

// ErrUnauthorized is returned when the daemon rejects the credentials.
var ErrUnauthorized = errors.New("transmission rejected credentials")

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one or more Transmission daemons. The endpoint and
// credentials come from the config passed to each call.
type Client struct {
	http      HTTPDoer
	userAgent string

	mu        sync.Mutex
	sessionID string
}

// NewClient builds a Client. A nil doer uses an http.Client with a timeout.
func NewClient(doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: requestTimeout}
	}
	return &Client{http: doer, userAgent: defaultUserAgent}
}

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

// Poll fetches the torrent list and session statistics.
func (c *Client) Poll(ctx context.Context, cfg models.PollerConfig) (*models.PollResult, error) {
	torrents, err := c.Torrents(ctx, cfg)
	if err != nil {
		return nil, err
	}
	stats, err := c.SessionStats(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &models.PollResult{Torrents: torrents, Stats: *stats}, nil
}

// Torrents runs torrent-get.
func (c *Client) Torrents(ctx context.Context, cfg models.PollerConfig) ([]models.Torrent, error) {
	var payload struct {
		Torrents []models.Torrent `json:"torrents"`
	}
	args := map[string]any{"fields": torrentFields}
	if err := c.call(ctx, cfg, "torrent-get", args, &payload); err != nil {
		return nil, err
	}
	return payload.Torrents, nil
}

// SessionStats runs session-stats.
func (c *Client) SessionStats(ctx context.Context, cfg models.PollerConfig) (*models.SessionStats, error) {
	var stats models.SessionStats
	if err := c.call(ctx, cfg, "session-stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) call(ctx context.Context, cfg models.PollerConfig, method string, args any, dest any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	resp, err := c.post(ctx, cfg, body)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	// The first request of a session, or one after the daemon restarted,
	// is answered with 409 and a fresh session id.
	if resp.StatusCode == http.StatusConflict {
		id := resp.Header.Get(SessionHeader)
		drain(resp)
		if id == "" {
			return fmt.Errorf("%s: daemon returned 409 without a session id", method)
		}
		c.setSessionID(id)
		if resp, err = c.post(ctx, cfg, body); err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", method, ErrUnauthorized)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s: daemon returned status %d", method, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if envelope.Result != "success" {
		return fmt.Errorf("%s: %s", method, envelope.Result)
	}
	if dest == nil || len(envelope.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Arguments, dest); err != nil {
		return fmt.Errorf("decode %s arguments: %w", method, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, cfg models.PollerConfig, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if id := c.getSessionID(); id != "" {
		req.Header.Set(SessionHeader, id)
	}
	if cfg.Username != "" || cfg.Password != "" {
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

func (c *Client) getSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
