package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// Response is the tri-state result of a single Get: a transport error leaves
// StatusCode zero and Err set; an HTTP-level error leaves Err empty and the
// non-2xx status for the caller to classify.
type Response struct {
	StatusCode int
	Body       []byte
	Err        string
	Duration   time.Duration
}

// OK reports whether a response was received and its status indicates success.
func (r Response) OK() bool {
	return r.Err == "" && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs single GET requests with bounded retries and a circuit
// breaker. Retries apply to transport-level failures only; HTTP error status
// codes are returned as-is for the caller to classify. Errors never escape
// as Go errors — callers read the Response envelope.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	backoff    time.Duration
	breaker    *gobreaker.CircuitBreaker
	sleep      func(time.Duration)
}

// NewClient builds a fetch client. Attempt n of a retried request waits
// (1+n)*backoff before the next try. The breaker is sized so it only opens
// after several consecutive cycles' worth of transport failures.
func NewClient(httpClient *http.Client, name, userAgent string, maxRetries int, backoff time.Duration) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 12
		},
	})

	return &Client{
		http:       httpClient,
		userAgent:  userAgent,
		maxRetries: maxRetries,
		backoff:    backoff,
		breaker:    cb,
		sleep:      time.Sleep,
	}
}

// Get requests url with params, retrying transport failures up to
// maxRetries times. The returned Duration covers all attempts.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) Response {
	start := time.Now()
	var lastErr string

	full := rawURL
	if len(params) > 0 {
		full = fmt.Sprintf("%s?%s", rawURL, params.Encode())
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return Response{Err: ctx.Err().Error(), Duration: time.Since(start)}
		}

		slog.Debug("GET", "url", rawURL, "attempt", attempt+1)

		status, body, err := c.do(ctx, full)
		if err == nil {
			return Response{StatusCode: status, Body: body, Duration: time.Since(start)}
		}

		lastErr = err.Error()
		slog.Warn("request error",
			"url", rawURL, "attempt", attempt+1, "attempts", c.maxRetries+1, "error", lastErr)

		// An open breaker will not recover within this cycle's budget.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt < c.maxRetries {
			c.sleep(time.Duration(1+attempt) * c.backoff)
		}
	}

	duration := time.Since(start)
	slog.Error("request failed", "url", rawURL, "duration", duration, "error", lastErr)
	return Response{Err: lastErr, Duration: duration}
}

// do performs one attempt. Only transport-level failures count against the
// breaker; any received response is a success at this layer.
func (c *Client) do(ctx context.Context, fullURL string) (int, []byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}
		return Response{StatusCode: resp.StatusCode, Body: body}, nil
	})
	if err != nil {
		return 0, nil, err
	}

	resp, ok := result.(Response)
	if !ok {
		return 0, nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp.StatusCode, resp.Body, nil
}
