// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/metrics"
)

// Version is reported in the User-Agent header.
var Version = "1.x.x"

// DefaultRetryStatusCodes are the statuses that trigger a retry.
var DefaultRetryStatusCodes = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

const (
	// DefaultMaxRetries gives six attempts in total.
	DefaultMaxRetries = 5
	DefaultTimeout    = 20 * time.Second

	// maxResponseSize caps how much of a vendor response is buffered.
	maxResponseSize = 32 << 20
)

// Doer performs a vendor request. *Client and *BreakerClient implement it.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request describes one logical vendor call. Zero values take the client
// defaults.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	Timeout time.Duration

	// MaxRetries overrides the client default when positive.
	// NoRetry disables retries entirely.
	MaxRetries int
	NoRetry    bool

	// BackoffBase overrides the client backoff base when positive.
	BackoffBase time.Duration

	AllowedCodes    []string
	DisallowedCodes []string

	// NoRedirects returns 3xx responses instead of following them.
	NoRedirects bool
}

// Response is a fully buffered vendor response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Config holds the transport policy for a Client.
type Config struct {
	Timeout          time.Duration
	MaxRetries       int
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	RetryStatusCodes []int

	// RequestsPerSecond enables a token bucket limiter when positive.
	RequestsPerSecond float64
	Burst             int

	// Transport is used for all requests; nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// Client performs HTTP requests with retry, backoff and status validation.
// It is stateless apart from the optional rate limiter and safe for
// concurrent use.
type Client struct {
	cfg        Config
	http       *http.Client
	noRedirect *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// New creates a Client. Unset fields in cfg take package defaults.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 45 * time.Second
	}
	if cfg.RetryStatusCodes == nil {
		cfg.RetryStatusCodes = DefaultRetryStatusCodes
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Transport: transport},
		noRedirect: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: "Palace Circulation/" + Version,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// Do performs req, retrying retryable statuses, timeouts and network errors
// with jittered exponential backoff, then validates the final status.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	host := hostOf(req.URL)
	base := c.cfg.BackoffBase
	if req.BackoffBase > 0 {
		base = req.BackoffBase
	}

	attempts := 1
	if !req.NoRetry {
		if req.MaxRetries > 0 {
			attempts += req.MaxRetries
		} else {
			attempts += c.cfg.MaxRetries
		}
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.once(ctx, method, host, req)
		last := attempt >= attempts

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if last {
				return nil, err
			}
		case c.retryable(resp.StatusCode) && !last:
			err = fmt.Errorf("status %d", resp.StatusCode)
		default:
			if perr := ProcessResponse(req.URL, resp, req.AllowedCodes, req.DisallowedCodes); perr != nil {
				return nil, perr
			}
			return resp, nil
		}

		delay := Backoff(attempt, base, c.cfg.BackoffMax)
		if resp != nil {
			if d, ok := retryAfter(resp.Header); ok && d <= c.cfg.BackoffMax {
				delay = d
			}
		}
		metrics.RecordVendorRetry(host)
		logging.Ctx(ctx).Warn().
			Str("url", req.URL).
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("delay", delay).
			Msg("Vendor request failed, retrying")
		if werr := wait(ctx, delay); werr != nil {
			return nil, werr
		}
	}
}

// once performs a single attempt without retries.
func (c *Client) once(ctx context.Context, method, host string, req *Request) (*Response, error) {
	if c.limiter != nil {
		if r := c.limiter.Reserve(); r.Delay() > 0 {
			metrics.VendorRateLimitWaits.WithLabelValues(host).Inc()
			if err := wait(ctx, r.Delay()); err != nil {
				r.Cancel()
				return nil, err
			}
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, req.URL, body)
	if err != nil {
		return nil, &RequestNetworkError{RemoteIntegrationError: NewRemoteIntegrationError(req.URL, err.Error(), ""), Err: err}
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	client := c.http
	if req.NoRedirects {
		client = c.noRedirect
	}

	start := time.Now()
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, req.URL, host, method, err, time.Since(start))
	}
	defer httpResp.Body.Close()

	data, err := readBody(httpResp.Body, maxResponseSize)
	elapsed := time.Since(start)
	if err != nil {
		return nil, transportError(ctx, req.URL, host, method, err, elapsed)
	}

	metrics.RecordVendorRequest(host, method, httpResp.StatusCode, "", elapsed)
	logging.Ctx(ctx).Debug().
		Str("method", method).
		Str("url", req.URL).
		Int("status", httpResp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("Vendor request completed")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		URL:        req.URL,
	}, nil
}

func (c *Client) retryable(code int) bool {
	for _, rc := range c.cfg.RetryStatusCodes {
		if rc == code {
			return true
		}
	}
	return false
}

// transportError classifies a failed attempt as a timeout or a network
// error. A cancelled parent context is never reported as a timeout.
func transportError(ctx context.Context, rawURL, host, method string, err error, elapsed time.Duration) error {
	remote := NewRemoteIntegrationError(rawURL, err.Error(), "")
	if isTimeout(err) && ctx.Err() == nil {
		metrics.RecordVendorRequest(host, method, 0, "timeout", elapsed)
		return &RequestTimedOutError{RemoteIntegrationError: remote, Err: err}
	}
	metrics.RecordVendorRequest(host, method, 0, "network", elapsed)
	return &RequestNetworkError{RemoteIntegrationError: remote, Err: err}
}

// retryAfter parses a Retry-After header given in seconds (RFC 6585).
func retryAfter(h http.Header) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
