package fetch

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// StatusError is an HTTP response outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.StatusCode >= 500 {
		return fmt.Sprintf("%d server error for url: %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%d client error for url: %s", e.StatusCode, e.URL)
}

// TimeoutError wraps a connection or read timeout.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("timeout for url %s: %v", e.URL, e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// ConnError wraps a failed or reset connection.
type ConnError struct {
	URL   string
	Err   error
	Reset bool
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connection error for url %s: %v", e.URL, e.Err)
}
func (e *ConnError) Unwrap() error { return e.Err }

// TooLargeError reports a response body exceeding the configured cap.
// Never retried.
type TooLargeError struct {
	URL      string
	MaxBytes int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("maximum body size %d exceeded for url %s", e.MaxBytes, e.URL)
}

// FatalError aborts the whole pipeline run: producer and sibling workers
// are cancelled and unfinished requests abandoned.
type FatalError struct {
	URL string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("pipeline worker failed on url %s: %v", e.URL, e.Err)
}
func (e *FatalError) Unwrap() error { return e.Err }

// RequestError ties a permanent per-request failure to its URL in the
// aggregated batch error list.
type RequestError struct {
	URL string
	Err error
}

func (e *RequestError) Error() string { return fmt.Sprintf("request %s: %v", e.URL, e.Err) }
func (e *RequestError) Unwrap() error { return e.Err }

// 502 Bad Gateway, 503 Service Unavailable, 504 Gateway Timeout.
var retryStatuses = map[int]struct{}{502: {}, 503: {}, 504: {}}

// retryable reports whether the request may be attempted again: connection
// timeouts, connection resets and a small set of 5xx statuses. Everything
// else fails immediately.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		_, ok := retryStatuses[se.StatusCode]
		return ok
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	var ce *ConnError
	if errors.As(err, &ce) {
		return ce.Reset
	}
	return false
}

// classifyDialErr maps a transport-level error onto the taxonomy.
func classifyDialErr(url string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{URL: url, Err: err}
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ConnError{URL: url, Err: err, Reset: true}
	}
	return &ConnError{URL: url, Err: err}
}
