package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds one request attempt end to end.
	DefaultTimeout = 5 * time.Minute
	// DefaultMaxBodyBytes caps a response body read; larger bodies fail
	// the request permanently.
	DefaultMaxBodyBytes = 30 << 20
	// DefaultMaxRetries is the number of additional attempts after the
	// first one.
	DefaultMaxRetries = 3
	// maxConns is the global concurrency ceiling of the shared pool.
	maxConns = 100

	readChunkSize = 64 << 10
)

// ClientConfig tunes the retrying HTTP client. Zero values take defaults.
type ClientConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxRetries   int
	// BackoffUnit scales the 2^attempt-1 delay; one second in production,
	// shrunk in tests.
	BackoffUnit time.Duration
}

// Client executes single requests with retry and backoff. All pipeline
// workers share one Client and therefore one connection pool.
type Client struct {
	http         *http.Client
	maxBodyBytes int64
	maxRetries   int
	backoffUnit  time.Duration
	// sem caps in-flight requests across all hosts; the transport's
	// per-host limit alone lets many shops exceed the pool ceiling.
	sem    chan struct{}
	logger *slog.Logger
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffUnit == 0 {
		cfg.BackoffUnit = time.Second
	}
	transport := &http.Transport{
		MaxConnsPerHost:     maxConns,
		MaxIdleConnsPerHost: 10,
	}
	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		maxBodyBytes: cfg.MaxBodyBytes,
		maxRetries:   cfg.MaxRetries,
		backoffUnit:  cfg.BackoffUnit,
		sem:          make(chan struct{}, maxConns),
		logger:       logger,
	}
}

// Request describes one page to fetch. OnResponse receives the body on
// success; it runs on the worker goroutine that fetched the page.
type Request struct {
	URL        string
	Method     string
	Headers    map[string]string
	Cookies    map[string]string
	Body       []byte
	OnResponse func(ctx context.Context, body []byte) error
}

// Do performs the request, retrying retryable failures with a
// 2^attempt-1 delay before each attempt (0s, 1s, 3s, 7s, ...). The last
// error is surfaced once retries are exhausted.
func (c *Client) Do(ctx context.Context, req *Request) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if delay := (1<<attempt - 1) * int64(c.backoffUnit); delay > 0 {
			c.logger.Warn("retrying request",
				"url", req.URL,
				"attempt", attempt,
				"delay", time.Duration(delay),
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(delay)):
			}
		}

		body, err := c.do(ctx, req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) do(ctx context.Context, req *Request) ([]byte, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: k, Value: v})
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyDialErr(req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &StatusError{URL: req.URL, StatusCode: resp.StatusCode}
	}

	return c.readCapped(resp.Body, req.URL)
}

// readCapped reads the body incrementally and fails once the cap is
// exceeded instead of buffering an unbounded response.
func (c *Client) readCapped(r io.Reader, url string) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if int64(buf.Len()) > c.maxBodyBytes {
				return nil, &TooLargeError{URL: url, MaxBytes: c.maxBodyBytes}
			}
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, classifyDialErr(url, err)
		}
	}
}
