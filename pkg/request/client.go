package request

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"groundtrack/pkg/cache"
	"groundtrack/pkg/tracker"
	"groundtrack/pkg/version"
)

var (
	defaultUserAgent = fmt.Sprintf("groundtrack/%s (+https://github.com/groundtrack/groundtrack)", version.Version)
)

// Options tunes the client. Zero fields take the defaults from DefaultOptions.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// SafetyGap is the pause after each request to the same upstream.
	SafetyGap time.Duration
	UserAgent string
}

// DefaultOptions returns the options used by New.
func DefaultOptions() Options {
	return Options{
		Timeout:     60 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		SafetyGap:   100 * time.Millisecond,
		UserAgent:   defaultUserAgent,
	}
}

// Client handles HTTP requests with queuing, caching, and tracking.
type Client struct {
	httpClient *http.Client
	cache      cache.Cacher
	tracker    *tracker.Tracker
	backoff    *Backoff
	opts       Options

	// Queues per upstream (domain)
	queues map[string]chan job
	mu     sync.Mutex // Protects queues map
}

// job represents a queued request.
type job struct {
	req      *http.Request
	headers  map[string]string
	cacheKey string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client with default options.
func New(c cache.Cacher, t *tracker.Tracker) *Client {
	return NewWithOptions(c, t, DefaultOptions())
}

// NewWithOptions creates a new Client.
func NewWithOptions(c cache.Cacher, t *tracker.Tracker, opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = def.MaxDelay
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if t == nil {
		t = tracker.New()
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		cache:      c,
		tracker:    t,
		backoff:    NewBackoff(opts.BaseDelay, opts.MaxDelay),
		opts:       opts,
		queues:     make(map[string]chan job),
	}
}

// Tracker returns the usage tracker.
func (c *Client) Tracker() *tracker.Tracker {
	return c.tracker
}

// Get performs a GET request with queuing and caching if key is provided.
func (c *Client) Get(ctx context.Context, u, cacheKey string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil, cacheKey)
}

// GetWithHeaders performs a GET request with custom headers and optional caching.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string, cacheKey string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	upstream := normalizeUpstream(parsedURL.Host)

	// 1. Check Cache (Only if key is provided)
	if cacheKey != "" {
		if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
			c.tracker.Record(upstream, tracker.CacheHit)
			slog.Debug("Cache Hit", "upstream", upstream, "key", cacheKey)
			return val, nil
		}
		c.tracker.Record(upstream, tracker.CacheMiss)
		slog.Debug("Cache Miss", "upstream", upstream, "key", cacheKey)
	}

	// 2. Enqueue Request
	req, err := http.NewRequestWithContext(ctx, "GET", u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respChan := make(chan jobResult, 1)
	j := job{req: req, headers: headers, cacheKey: cacheKey, respChan: respChan}

	c.dispatch(upstream, j)

	// 3. Wait for Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

// normalizeUpstream groups hosts that share a rate limit under one queue.
func normalizeUpstream(host string) string {
	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	if strings.HasSuffix(host, ".n2yo.com") || host == "n2yo.com" {
		return "n2yo"
	}
	if strings.HasSuffix(host, ".celestrak.org") || host == "celestrak.org" || host == "celestrak.com" {
		return "celestrak"
	}
	if host == "unpkg.com" || host == "cdn.jsdelivr.net" || host == "raw.githubusercontent.com" {
		return "cdn"
	}
	return host
}

// dispatch sends the job to the upstream's queue, creating the queue/worker if needed.
func (c *Client) dispatch(upstream string, j job) {
	c.mu.Lock()
	q, ok := c.queues[upstream]
	if !ok {
		q = make(chan job, 100)
		c.queues[upstream] = q
		go c.worker(upstream, q)
	}
	c.mu.Unlock()

	// We block here if the queue is full, effectively throttling the caller
	select {
	case q <- j:
	case <-j.req.Context().Done():
		// Caller gave up before we could even enqueue
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for a specific upstream sequentially.
func (c *Client) worker(upstream string, q <-chan job) {
	for j := range q {
		if j.req.Context().Err() != nil {
			slog.Warn("Job dropped from queue (context expired)", "upstream", upstream, "error", j.req.Context().Err())
			j.respChan <- jobResult{err: j.req.Context().Err()}
			continue
		}

		uaMatch := false
		for k, v := range j.headers {
			j.req.Header.Set(k, v)
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				uaMatch = true
			}
		}
		if !uaMatch {
			j.req.Header.Set("User-Agent", c.opts.UserAgent)
		}

		if err := c.backoff.Wait(j.req.Context(), upstream); err != nil {
			j.respChan <- jobResult{err: err}
			continue
		}
		body, err := c.executeWithBackoff(j.req)

		if err == nil {
			c.backoff.Succeed(upstream)
			c.tracker.Record(upstream, tracker.Fetched)
			if j.cacheKey != "" {
				if err := c.cache.SetCache(context.Background(), j.cacheKey, body); err != nil {
					slog.Error("Failed to cache response", "url", redact(j.req.URL), "error", err)
				}
			}
		} else {
			c.backoff.Fail(upstream)
			c.tracker.Record(upstream, tracker.Failed)
		}

		j.respChan <- jobResult{body: body, err: err}

		if c.opts.SafetyGap > 0 {
			time.Sleep(c.opts.SafetyGap)
		}
	}
}

// executeWithBackoff attempts the request with exponential backoff on retryable errors.
func (c *Client) executeWithBackoff(req *http.Request) ([]byte, error) {
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}

		slog.Debug("Network Request", "host", req.URL.Host, "path", redactPath(req.URL.Path), "attempt", attempt+1)
		resp, err := c.httpClient.Do(req)

		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}

			slog.Warn("Request failed, retrying", "url", redact(req.URL), "attempt", attempt+1, "error", err)
			if !c.sleep(req, attempt) {
				return nil, req.Context().Err()
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode < 600) {
			resp.Body.Close()
			slog.Warn("API Backoff", "status", resp.StatusCode, "url", redact(req.URL), "attempt", attempt+1)
			if !c.sleep(req, attempt) {
				return nil, req.Context().Err()
			}
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}

	return nil, ErrMaxRetries
}

func (c *Client) sleep(req *http.Request, attempt int) bool {
	d := time.Duration(math.Pow(2, float64(attempt))) * c.opts.BaseDelay
	select {
	case <-time.After(d):
		return true
	case <-req.Context().Done():
		return false
	}
}

// redact hides API keys carried in the URL before it is logged.
func redact(u *url.URL) string {
	c := *u
	c.Path = redactPath(c.Path)
	q := c.Query()
	for k := range q {
		if strings.EqualFold(k, "apikey") {
			q.Set(k, "***")
		}
	}
	c.RawQuery = q.Encode()
	return c.String()
}

func redactPath(p string) string {
	if i := strings.Index(p, "&apiKey="); i >= 0 {
		return p[:i] + "&apiKey=***"
	}
	return p
}
