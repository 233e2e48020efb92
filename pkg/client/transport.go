package client

import (
	"net/http"
	"time"
)

// TransportOption tunes the connection pool to the origin.
type TransportOption func(*http.Transport)

func WithMaxIdleConns(maxIdleConns int) TransportOption {
	return func(t *http.Transport) {
		t.MaxIdleConns = maxIdleConns
	}
}

func WithMaxIdleConnsPerHost(maxIdleConnsPerHost int) TransportOption {
	return func(t *http.Transport) {
		t.MaxIdleConnsPerHost = maxIdleConnsPerHost
	}
}

// WithoutCompression stops the transport from adding Accept-Encoding to
// origin requests, so the origin sees a bare GET and the cached body is
// exactly what it sent.
func WithoutCompression() TransportOption {
	return func(t *http.Transport) {
		t.DisableCompression = true
	}
}

func WithIdleConnTimeout(timeout time.Duration) TransportOption {
	return func(t *http.Transport) {
		t.IdleConnTimeout = timeout
	}
}

// NewTransport starts from a clone of http.DefaultTransport, keeping its
// proxy, dial and TLS handshake settings, then applies opts.
func NewTransport(opts ...TransportOption) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	for _, opt := range opts {
		opt(transport)
	}
	return transport
}
