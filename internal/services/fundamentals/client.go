package fundamentals

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	xhttp "FactorLab/pkg/http"
)

// client is the HTTP base for the fundamentals service.
type client struct {
	baseURL string
	http    *xhttp.Client
}

func newClient(baseURL, apiKey string, timeout time.Duration, extra ...xhttp.ClientOption) *client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts := []xhttp.ClientOption{xhttp.WithTimeout(timeout), xhttp.WithHeader("Accept", "application/json")}
	if apiKey != "" {
		opts = append(opts, xhttp.WithHeader("X-API-Key", apiKey))
	}
	opts = append(opts, extra...)
	return &client{baseURL: baseURL, http: xhttp.NewClient(opts...)}
}

// getJSON fetches path under baseURL and decodes JSON into dest.
func (c *client) getJSON(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if c.http == nil || c.baseURL == "" {
		return fmt.Errorf("fundamentals client not initialized")
	}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      http.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: query,
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

// getJSONWithRetry retries transient failures with linear backoff. 4xx responses are not
// retried.
func (c *client) getJSONWithRetry(ctx context.Context, path string, query map[string][]string, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return c.getJSON(ctx, path, query, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = c.getJSON(ctx, path, query, dest)
		if err == nil || !retryable(err) {
			return err
		}
		if i == attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}
