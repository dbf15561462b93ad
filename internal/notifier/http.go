package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxRetries = 3
	defaultRetryBase  = time.Second
	maxRetryAfter     = 30 * time.Second
)

// APIError is a non-2xx response from a chat API.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s status: %d, body: %s", e.Service, e.StatusCode, e.Body)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// poster sends JSON payloads with client-side throttling and bounded retries
// on 429 and 5xx responses.
type poster struct {
	service    string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
}

func newPoster(service string, timeout time.Duration, limiter *rate.Limiter) *poster {
	return &poster{
		service:    service,
		client:     &http.Client{Timeout: timeout},
		limiter:    limiter,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
	}
}

// postJSON returns the response body of the first 2xx response.
func (p *poster) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.service, err)
	}

	for attempt := 0; ; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, resp, err := p.do(ctx, endpoint, payloadBytes)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		apiErr := &APIError{Service: p.service, StatusCode: resp.StatusCode, Body: string(body)}
		if !apiErr.retryable() || attempt >= p.maxRetries {
			return nil, apiErr
		}

		wait := p.retryDelay(resp, attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (p *poster) do(ctx context.Context, endpoint string, payload []byte) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s request: %w", p.service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("%s read body: %w", p.service, err)
	}
	return body, resp, nil
}

// retryDelay honours Retry-After (seconds) when present, otherwise backs off exponentially.
func (p *poster) retryDelay(resp *http.Response, attempt int) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return min(time.Duration(secs*float64(time.Second)), maxRetryAfter)
		}
	}
	return p.retryBase * time.Duration(1<<attempt)
}
