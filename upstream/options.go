package upstream

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// WithTimeout bounds every upstream request, 0 keeps the transport default of no timeout.
func WithTimeout(timeout time.Duration) func(*Client) error {
	return func(client *Client) error {
		if timeout < 0 {
			return fmt.Errorf("negative upstream timeout %s", timeout)
		}
		client.HTTPClient.Timeout = timeout
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) func(*Client) error {
	return func(client *Client) error {
		if httpClient == nil {
			return errors.New("nil http client")
		}
		client.HTTPClient = httpClient
		return nil
	}
}

// WithUserAgent sets the User-Agent sent upstream.
func WithUserAgent(userAgent string) func(*Client) error {
	return func(client *Client) error {
		client.UserAgent = userAgent
		return nil
	}
}

// WithMaxBodySize bounds the buffered upstream body, 0 disables the bound.
func WithMaxBodySize(size int64) func(*Client) error {
	return func(client *Client) error {
		if size < 0 {
			return fmt.Errorf("negative max body size %d", size)
		}
		client.MaxBodySize = size
		return nil
	}
}

// WithLogger sets the client logger, a nil logger discards output.
func WithLogger(logger *slog.Logger) func(*Client) error {
	return func(client *Client) error {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		client.Logger = logger
		return nil
	}
}
