// Package backend is the console's client for the ride backend's HTTP/JSON
// API. Calls carry the browser's backend session cookies and the incoming
// request's context.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phillip-england/transitops/internal/logger"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// BreakerFailures is the number of consecutive transport failures that
	// opens the breaker. Zero means 5.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open. Zero means 15s.
	BreakerCooldown time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 8 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 15 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A browser that went away is not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			recordBreakerStateChange(name, from, to)
			logger.Warn("backend circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		breaker:    breaker,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Session binds c to the cookies the browser presented for the backend.
type Session struct {
	client  *Client
	cookies []*http.Cookie
}

func (c *Client) Session(cookies []*http.Cookie) *Session {
	return &Session{client: c, cookies: cookies}
}

// Anonymous is a session without cookies (login).
func (c *Client) Anonymous() *Session {
	return &Session{client: c}
}

type call struct {
	action   string
	fallback string
	method   string
	path     string
	query    url.Values
	body     any
	// loginErrors restricts the error envelope to the "error" field.
	loginErrors bool
}

// send performs one request through the breaker. The caller owns the
// response body on success; non-2xx answers are returned as the response
// too, so callers can choose how to read them.
func (s *Session) send(ctx context.Context, c call) (*http.Response, error) {
	target := s.client.baseURL + c.path
	if len(c.query) > 0 {
		target += "?" + c.query.Encode()
	}

	var body io.Reader
	if c.body != nil {
		encoded, err := json.Marshal(c.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.action, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.action, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for _, cookie := range s.cookies {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	start := time.Now()
	result, err := s.client.breaker.Execute(func() (interface{}, error) {
		return s.client.httpClient.Do(req)
	})
	requestDuration.WithLabelValues(c.action).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			requestsTotal.WithLabelValues(c.action, "cancelled").Inc()
			return nil, ctxErr
		}
		requestsTotal.WithLabelValues(c.action, "unreachable").Inc()
		logger.Warn("backend unreachable",
			zap.String("action", c.action),
			zap.String("method", c.method),
			zap.String("path", c.path),
			zap.Error(err),
		)
		return nil, &unreachableError{cause: err}
	}

	resp := result.(*http.Response)
	requestsTotal.WithLabelValues(c.action, outcome(resp.StatusCode)).Inc()
	return resp, nil
}

// doJSON sends c and decodes a 2xx JSON answer into out (when non-nil).
func (s *Session) doJSON(ctx context.Context, c call, out any) error {
	resp, err := s.send(ctx, c)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(c.action, c.fallback, resp.StatusCode, resp.Body, !c.loginErrors)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	// A 2xx answer with an unreadable body still counts as success; the
	// caller sees zero values.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("backend response not decodable",
			zap.String("action", c.action),
			zap.Error(err),
		)
	}
	return nil
}

func outcome(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "ok"
	}
}
