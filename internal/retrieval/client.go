// Package retrieval issues page requests the way a browser population would:
// every request carries a randomly chosen identity, article fetches are paced
// with a random delay, and throttling responses are retried a bounded number
// of times.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/0x0BSoD/newsSync/internal/model"
)

const maxBodySize = 10 << 20

var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError reports a response code that is not retried.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// DefaultHeaders are sent with every request unless a feed profile overrides them.
var DefaultHeaders = model.HeaderProfile{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Connection":      "keep-alive",
}

// Pacing is the uniform range of the delay inserted before each article fetch.
type Pacing struct {
	Min time.Duration
	Max time.Duration
}

func (p Pacing) Next() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + rand.N(p.Max-p.Min)
}

type AttemptObserver interface {
	ObserveFetchAttempt(outcome string)
}

type Response struct {
	StatusCode int
	Body       []byte
	URL        string
}

type Options struct {
	Timeout    time.Duration
	Policy     Policy
	Pacing     Pacing
	UserAgents []string
	Observer   AttemptObserver
}

type Client struct {
	http     *http.Client
	policy   Policy
	pacing   Pacing
	agents   []string
	observer AttemptObserver
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy.MaxAttempts = 1
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultUserAgents
	}

	return &Client{
		http:     NewHTTPClient(opts.Timeout, opts.UserAgents),
		policy:   opts.Policy,
		pacing:   opts.Pacing,
		agents:   opts.UserAgents,
		observer: opts.Observer,
	}
}

// NewHTTPClient returns a client whose requests get a random identity and the
// default headers when the caller has not set them.
func NewHTTPClient(timeout time.Duration, agents []string) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: identityTransport{base: http.DefaultTransport, agents: agents},
	}
}

// HTTPClient exposes the identity-rotating client for callers that do their own
// response handling, such as feed parsers.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Fetch waits a paced delay and then GETs url, retrying throttled attempts.
// A nil error always comes with a 2xx response.
func (c *Client) Fetch(ctx context.Context, url string, profile model.HeaderProfile) (*Response, error) {
	if err := sleep(ctx, c.pacing.Next()); err != nil {
		return nil, err
	}
	return c.Get(ctx, url, profile)
}

// Get runs the attempt loop without the pacing delay.
func (c *Client) Get(ctx context.Context, url string, profile model.HeaderProfile) (*Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := c.attempt(ctx, url, profile)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		state := c.policy.classify(ctx, status, err)
		if c.observer != nil {
			c.observer.ObserveFetchAttempt(state.String())
		}

		switch state {
		case outcomeSuccess:
			return resp, nil
		case outcomeTerminal:
			if err != nil {
				return nil, fmt.Errorf("get %s: %w", url, err)
			}
			return nil, &StatusError{Code: status, URL: url}
		}

		reason := lo.Ternary(err != nil, fmt.Sprint(err), http.StatusText(status))
		if attempt >= c.policy.MaxAttempts {
			return nil, fmt.Errorf("%w after %d attempts for %s: %s", ErrRetriesExhausted, attempt, url, reason)
		}

		delay := c.policy.Delay(attempt)
		slog.Warn("retrying fetch", "url", url, "attempt", attempt, "status", status, "reason", reason, "delay", delay)

		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) attempt(ctx context.Context, url string, profile model.HeaderProfile) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	for k, v := range DefaultHeaders.Merge(profile) {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", pickAgent(c.agents))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: resp.StatusCode, Body: body, URL: url}, nil
}

func pickAgent(agents []string) string {
	return agents[rand.IntN(len(agents))]
}

type identityTransport struct {
	base   http.RoundTripper
	agents []string
}

func (t identityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", pickAgent(t.agents))
	}
	for k, v := range DefaultHeaders {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}
