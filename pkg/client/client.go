package client

import (
	"net/http"
	"time"

	"github.com/ashpect/cacheproxy/pkg/config"
)

const defaultClientTimeout = 30 * time.Second

// ClientOption configures the http.Client used to reach the origin
type ClientOption func(*http.Client)

// WithTimeout bounds a whole origin fetch, body included. Zero means no limit.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *http.Client) {
		c.Timeout = timeout
	}
}

func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *http.Client) {
		c.Transport = transport
	}
}

func NewClient(opts ...ClientOption) *http.Client {
	client := &http.Client{
		Timeout:   defaultClientTimeout,
		Transport: http.DefaultTransport,
	}

	for _, opt := range opts {
		opt(client)
	}
	return client
}

// FromConfig builds the origin client described by cfg. The client owns a
// private transport so its connection pool is not shared with other users
// of http.DefaultTransport.
func FromConfig(cfg config.ClientCfg) *http.Client {
	transport := NewTransport(
		WithMaxIdleConns(cfg.MaxIdleConns),
		WithMaxIdleConnsPerHost(cfg.MaxIdleConnsPerHost),
		WithIdleConnTimeout(cfg.IdleConnTimeout.Duration),
		WithoutCompression(),
	)
	return NewClient(
		WithTimeout(cfg.Timeout.Duration),
		WithTransport(transport),
	)
}
