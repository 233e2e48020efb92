package forward

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ashpect/cacheproxy/pkg/logger"
)

// PreviewBytes is how much of a fetched body is logged.
const PreviewBytes = 256

// ErrForward marks every failure to obtain a body from the origin.
var ErrForward = errors.New("forward to origin failed")

// ForwardError carries the URL that was fetched and the underlying cause.
type ForwardError struct {
	URL string
	Err error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("%v: GET %s: %v", ErrForward, e.URL, e.Err)
}

func (e *ForwardError) Unwrap() error {
	return e.Err
}

func (e *ForwardError) Is(target error) bool {
	return target == ErrForward
}

// Response is what the proxy keeps from an origin reply. Headers are not
// forwarded, so only the status (for logging and the cache policy) and the
// body survive.
type Response struct {
	Status int
	Body   []byte
}

// Success reports whether the origin answered with a 2xx status.
func (r Response) Success() bool {
	return r.Status >= 200 && r.Status < 300
}

// Forwarder fetches paths from a single origin.
type Forwarder struct {
	origin string
	client *http.Client
	log    zerolog.Logger
}

type ForwarderOption func(*Forwarder)

func WithClient(client *http.Client) ForwarderOption {
	return func(f *Forwarder) {
		f.client = client
	}
}

func WithLogger(log zerolog.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.log = log
	}
}

// New creates a Forwarder for origin. The origin is used verbatim as the
// URL prefix, so it should not end with a slash.
func New(origin string, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		origin: origin,
		client: http.DefaultClient,
		log:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Origin returns the configured origin base URL.
func (f *Forwarder) Origin() string {
	return f.origin
}

// URL returns the origin URL for path: plain concatenation, no escaping.
func (f *Forwarder) URL(path string) string {
	return f.origin + path
}

// Fetch issues a GET for origin+path and reads the whole body, whatever the
// status. Only transport failures are errors.
func (f *Forwarder) Fetch(ctx context.Context, path string) (Response, error) {
	url := f.URL(path)
	f.log.Debug().Str("url", url).Msg("Requesting content from origin")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.log.Error().Err(err).Str("url", url).Msg("Could not build origin request")
		return Response{}, &ForwardError{URL: url, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Error().Err(err).Str("url", url).Msg("Origin request failed")
		return Response{}, &ForwardError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.log.Error().Err(err).Str("url", url).Int("status", resp.StatusCode).Msg("Could not read origin body")
		return Response{}, &ForwardError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	f.log.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("Origin responded")
	f.log.Trace().Str("url", url).Str("body", logger.Preview(body, PreviewBytes)).Msg("Origin body")

	return Response{Status: resp.StatusCode, Body: body}, nil
}
