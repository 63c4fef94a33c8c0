package transport

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kubesight/kubesight/internal/observability"
)

// Wrapper decorates a RoundTripper. It has the shape client-go expects in
// rest.Config.WrapTransport.
type Wrapper func(http.RoundTripper) http.RoundTripper

// Chain composes wrappers so that the first one is outermost.
func Chain(wrappers ...Wrapper) Wrapper {
	return func(rt http.RoundTripper) http.RoundTripper {
		for i := len(wrappers) - 1; i >= 0; i-- {
			rt = wrappers[i](rt)
		}
		return rt
	}
}

// Instrument returns the standard wrapper stack for orchestration API
// clients: metrics, then debug logging, then read-only retries.
func Instrument(logger *slog.Logger, metrics *observability.Metrics, maxRetries int) Wrapper {
	return Chain(
		func(next http.RoundTripper) http.RoundTripper { return WithMetrics(metrics, next) },
		func(next http.RoundTripper) http.RoundTripper { return WithLogging(logger, next) },
		func(next http.RoundTripper) http.RoundTripper { return WithRetry(maxRetries, next) },
	)
}

// metricsTransport records request counts and latency per method.
type metricsTransport struct {
	metrics *observability.Metrics
	next    http.RoundTripper
}

// WithMetrics wraps a RoundTripper with request counters and a latency histogram.
// A nil metrics returns next unchanged.
func WithMetrics(metrics *observability.Metrics, next http.RoundTripper) http.RoundTripper {
	if metrics == nil {
		return next
	}
	return &metricsTransport{metrics: metrics, next: next}
}

func (m *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := m.next.RoundTrip(req)
	m.metrics.APIRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	m.metrics.APIRequestsTotal.WithLabelValues(req.Method, statusClass(resp, err)).Inc()
	return resp, err
}

func statusClass(resp *http.Response, err error) string {
	if err != nil || resp == nil {
		return "error"
	}
	return strconv.Itoa(resp.StatusCode/100) + "xx"
}

// loggingTransport logs request method/URL and response status.
type loggingTransport struct {
	logger *slog.Logger
	next   http.RoundTripper
}

// WithLogging wraps a RoundTripper with request/response logging at debug level.
// Failures are logged at warn.
func WithLogging(logger *slog.Logger, next http.RoundTripper) http.RoundTripper {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingTransport{logger: logger, next: next}
}

func (l *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := l.next.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		l.logger.Warn("API request failed",
			"method", req.Method,
			"url", req.URL.String(),
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return resp, err
	}

	l.logger.Debug("API request completed",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
	)
	return resp, nil
}

// retryTransport retries idempotent reads on 5xx, 429 and network errors
// with exponential backoff. Writes are never retried.
type retryTransport struct {
	maxRetries int
	baseDelay  time.Duration
	next       http.RoundTripper
}

// WithRetry wraps a RoundTripper with retry logic for transient read errors.
func WithRetry(maxRetries int, next http.RoundTripper) http.RoundTripper {
	return withRetryDelay(maxRetries, 250*time.Millisecond, next)
}

func withRetryDelay(maxRetries int, base time.Duration, next http.RoundTripper) http.RoundTripper {
	if maxRetries <= 0 {
		return next
	}
	return &retryTransport{maxRetries: maxRetries, baseDelay: base, next: next}
}

func (r *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return r.next.RoundTrip(req)
	}

	var resp *http.Response
	var err error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err = r.next.RoundTrip(req)
		retryable := err != nil || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || attempt == r.maxRetries {
			return resp, err
		}

		delay := r.baseDelay << attempt
		if err == nil {
			if ra := retryAfter(resp); ra > 0 {
				delay = ra
			}
			drainAndClose(resp.Body)
		}

		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return resp, err
}

// retryAfter reads a Retry-After header expressed in seconds.
func retryAfter(resp *http.Response) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// drainAndClose reads remaining body bytes and closes, preventing connection leaks.
func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	body.Close()
}
