package bitbucket

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// fetch issues one logical GET and returns the response body. It acquires
// the rate gate before every request, classifies the response, waits out
// 429 responses (lowering the gate's rate without consuming the retry
// budget), and retries transient failures with exponential backoff capped
// by both attempt count and total elapsed time.
func (c *Client) fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	start := time.Now()
	endpoint := endpointLabel(rawURL)

	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	attempt := 1
	backoff := c.config.InitialBackoff
	var lastErr error

	for {
		if err := c.gate.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		req, err := c.newRequest(ctx, rawURL, params)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Msg("Request failed")
			lastErr = &APIError{Class: ErrorClassNetwork, Message: "connection failure", Err: err}
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
				lastErr = &APIError{Class: ErrorClassNetwork, Message: "read response body", Err: readErr}
			} else {
				requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

				if resp.StatusCode >= 200 && resp.StatusCode < 300 {
					return body, nil
				}

				class := classifyStatus(resp.StatusCode)
				errorsTotal.WithLabelValues(string(class)).Inc()

				switch class {
				case ErrorClassAuth:
					c.logger.Error().Str("endpoint", endpoint).Msg("Authentication failed")
					return nil, &APIError{
						StatusCode: resp.StatusCode,
						Class:      ErrorClassAuth,
						Message:    resp.Status,
						Hint:       "verify BITBUCKET_USERNAME and that the app password in BITBUCKET_APP_PASSWORD grants repository read access",
					}

				case ErrorClassRateLimit:
					wait := retryAfter(resp.Header, c.config.RateLimitWait)
					newRate := c.gate.Lower()
					rateLimitWaitsTotal.Inc()
					c.logger.Warn().
						Str("endpoint", endpoint).
						Dur("wait", wait).
						Float64("rate", newRate).
						Msg("Rate limited by server, waiting before retry")
					if err := sleepCtx(ctx, wait); err != nil {
						return nil, err
					}
					// Mandatory wait served; retry without consuming the
					// transient budget.
					continue

				case ErrorClassClient:
					return nil, &APIError{
						StatusCode: resp.StatusCode,
						Class:      ErrorClassClient,
						Message:    resp.Status,
					}

				default: // 5xx
					c.logger.Warn().
						Str("endpoint", endpoint).
						Int("status", resp.StatusCode).
						Int("attempt", attempt).
						Msg("Server error")
					lastErr = &APIError{
						StatusCode: resp.StatusCode,
						Class:      ErrorClassServer,
						Message:    resp.Status,
					}
				}
			}
		}

		// Transient failure path.
		if attempt >= c.config.MaxAttempts {
			retryExhaustedTotal.WithLabelValues(string(errClass(lastErr))).Inc()
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempt, lastErr)
		}
		if time.Since(start) > c.config.MaxElapsed {
			retryExhaustedTotal.WithLabelValues(string(errClass(lastErr))).Inc()
			return nil, fmt.Errorf("%w after %v: %v", ErrRetryExhausted, time.Since(start).Round(time.Second), lastErr)
		}

		retriesTotal.WithLabelValues(string(errClass(lastErr))).Inc()

		// ±20% jitter, as elsewhere in the backoff stack.
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying after backoff")

		if err := sleepCtx(ctx, jitter); err != nil {
			return nil, err
		}

		backoff *= 2
		attempt++
	}
}

// newRequest builds a GET request with Basic auth. A fresh request is
// built per attempt.
func (c *Client) newRequest(ctx context.Context, rawURL string, params url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if len(params) > 0 {
		q := req.URL.Query()
		for name, values := range params {
			for _, v := range values {
				q.Add(name, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	req.SetBasicAuth(c.config.Username, c.config.AppPassword)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// retryAfter reads the server's wait hint from a 429 response.
func retryAfter(headers http.Header, fallback time.Duration) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// sleepCtx sleeps for d unless the context expires first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-time.After(d):
		return nil
	}
}

// errClass extracts the error class for metric labels.
func errClass(err error) ErrorClass {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Class
	}
	return ErrorClassNetwork
}

// endpointLabel strips the query from a URL for use as a metric label.
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}
