// Package github provides a resilient GitHub REST v3 client plus the
// webhook signature verifier
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nitpick/internal/core/gitsafe"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/logger"
)

const (
	baseURLDefault   = "https://api.github.com"
	defaultTimeout   = 30 * time.Second
	defaultUA        = "nitpick-review-bot"
	defaultMaxRetry  = 5
	defaultRetryBase = 500 * time.Millisecond

	acceptJSON = "application/vnd.github+json"
	acceptDiff = "application/vnd.github.diff"
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Retry config for transient and rate limited responses
	MaxRetries int
	RetryBase  time.Duration
}

// Client is a minimal GitHub REST client with per-installation auth,
// retries, and rate limit handling
type Client struct {
	http   *http.Client
	opts   Options
	tokens TokenSource
	log    logger.Logger
	now    func() time.Time
	sleep  func(time.Duration)
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options, tokens TokenSource) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:   &http.Client{Timeout: o.Timeout},
		opts:   o,
		tokens: tokens,
		log:    *logger.Named("github"),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Do issues a request with auth headers, retries, and rate limit handling
func (c *Client) Do(ctx context.Context, method, path, accept string, installationID int64, body []byte) (*http.Response, error) {
	url := c.opts.BaseURL + path
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "github new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", accept)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.tokens != nil {
			tok, err := c.tokens.Token(ctx, installationID)
			if err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnauthorized, "github token mint failed")
			}
			if tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if !c.shouldRetry(attempts) {
				return nil, perr.Wrapf(err, perr.ErrorCodeUpstream, "github do failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("github transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		// Always log lightweight response metadata
		rem, reset, retryAfter := parseRateHeaders(resp.Header)
		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Int("rate_remaining", rem).
			Time("rate_reset", reset).
			Int("retry_after_s", retryAfter).
			Msg("github http response")

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			return resp, nil
		case http.StatusTooManyRequests, http.StatusForbidden:
			// Respect Retry-After and X-RateLimit-Reset when present
			wait := computeWait(rem, reset, retryAfter, c.now())
			if wait <= 0 {
				wait = c.backoff(attempts)
			}
			if !c.shouldRetry(attempts) {
				_ = drainAndClose(resp.Body)
				return nil, perr.Newf(perr.ErrorCodeTooManyRequests, "github rate limited")
			}
			c.log.Warn().Dur("sleep", wait).Msg("github rate limited backing off")
			_ = drainAndClose(resp.Body)
			c.sleep(wait)
			attempts++
			continue
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusInternalServerError:
			if !c.shouldRetry(attempts) {
				_ = drainAndClose(resp.Body)
				return nil, perr.Newf(perr.ErrorCodeUpstream, "github transient server error")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("github transient error retrying")
			_ = drainAndClose(resp.Body)
			c.sleep(back)
			attempts++
			continue
		default:
			// read a small tail for diagnostics then return
			tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return nil, perr.Newf(perr.ErrorCodeUpstream,
				"github unexpected status %d body %s", resp.StatusCode, gitsafe.Scrub(string(tail)))
		}
	}
}

// FetchDiff returns the unified diff for a pull request
func (c *Client) FetchDiff(ctx context.Context, repoFullName string, prNumber int, installationID int64) (string, error) {
	path := fmt.Sprintf("/repos/%s/pulls/%d", repoFullName, prNumber)
	resp, err := c.Do(ctx, http.MethodGet, path, acceptDiff, installationID, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUpstream, "github diff read failed")
	}
	return string(b), nil
}

// ReviewComment is one inline comment bound to a file and line
type ReviewComment struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Body string `json:"body"`
}

// ReviewRequest is the payload for creating a pull request review
type ReviewRequest struct {
	CommitID string          `json:"commit_id"`
	Body     string          `json:"body"`
	Event    string          `json:"event"`
	Comments []ReviewComment `json:"comments,omitempty"`
}

// PostReview publishes a review on a pull request
func (c *Client) PostReview(ctx context.Context, repoFullName string, prNumber int, installationID int64, rr ReviewRequest) error {
	payload, err := json.Marshal(rr)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "github review marshal failed")
	}
	path := fmt.Sprintf("/repos/%s/pulls/%d/reviews", repoFullName, prNumber)
	resp, err := c.Do(ctx, http.MethodPost, path, acceptJSON, installationID, payload)
	if err != nil {
		return err
	}
	return drainAndClose(resp.Body)
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase
	// simple exponential with cap
	ms := int64(d / time.Millisecond)
	ms = ms << uint(attempt)
	ceil := int64(30 * time.Second / time.Millisecond)
	if ms > ceil {
		ms = ceil
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
}
