// internal/common/http/client.go
package http

import (
	"net"
	"net/http"
	"time"
)

// Client wraps a pooled *http.Client shared by all requests to one upstream.
// One pool exists per upstream (EHR, inference), created at process start and
// reused for the process lifetime.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client with the default transport and a hard timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewPooledClient creates a client with an explicit connection pool. Pool
// exhaustion makes new calls queue on the dialer until the per-call context
// deadline fires.
func NewPooledClient(timeout time.Duration, maxIdleConns int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: maxIdleConns,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// CloseIdleConnections releases pooled connections at process shutdown.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
