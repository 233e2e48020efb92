package proxy

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/ashpect/cacheproxy/pkg/cache"
	"github.com/ashpect/cacheproxy/pkg/forward"
	"github.com/ashpect/cacheproxy/pkg/request"
)

// Fetcher retrieves a path from the origin.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (forward.Response, error)
}

// Handler serves one client connection at a time per call: parse the
// request line, answer from the cache or the origin, close.
type Handler struct {
	cache       cache.Cache[string, []byte]
	fetcher     Fetcher
	cacheErrors bool
	log         zerolog.Logger
	stats       Stats
}

type HandlerOption func(*Handler)

// WithCacheErrors controls whether bodies of non-2xx origin replies are
// stored. They are always served.
func WithCacheErrors(cacheErrors bool) HandlerOption {
	return func(h *Handler) {
		h.cacheErrors = cacheErrors
	}
}

func WithLogger(log zerolog.Logger) HandlerOption {
	return func(h *Handler) {
		h.log = log
	}
}

func NewHandler(c cache.Cache[string, []byte], fetcher Fetcher, opts ...HandlerOption) *Handler {
	h := &Handler{
		cache:       c,
		fetcher:     fetcher,
		cacheErrors: true,
		log:         zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stats returns the handler's counters.
func (h *Handler) Stats() StatsSnapshot {
	return h.stats.Snapshot()
}

// ServeConn handles a single request on conn and closes it.
func (h *Handler) ServeConn(ctx context.Context, conn io.ReadWriteCloser) {
	defer conn.Close()
	h.stats.requests.Add(1)

	req, err := request.Parse(conn)
	log := h.log.With().Str("path", req.Path).Logger()

	cacheable := false
	switch {
	case errors.Is(err, request.ErrUnparsable):
		h.stats.unparsable.Add(1)
		log.Warn().Err(err).Msg("Bypassing cache for unparsable request")
	case !req.Cacheable():
		log.Warn().Str("target", req.Target).Msg("Bypassing cache for empty path")
	default:
		cacheable = true
		log.Debug().Str("method", req.Method).Msg("Parsed request")
		for _, p := range req.Query {
			log.Trace().Str("key", p.Key).Str("value", p.Value).Msg("Query parameter")
		}
	}

	if cacheable {
		if body, ok := h.cache.Get(req.Path); ok {
			h.stats.hits.Add(1)
			log.Debug().Int("bytes", len(body)).Msg("Cache hit")
			h.respond(log, conn, body, CacheHit)
			return
		}
	}

	resp, err := h.fetcher.Fetch(ctx, req.Path)
	if err != nil {
		h.stats.forwardFailures.Add(1)
		log.Error().Err(err).Msg("Could not get response from origin")
		if err := writeError(conn); err != nil {
			h.stats.writeFailures.Add(1)
			log.Error().Err(err).Msg("Could not write error response")
		}
		return
	}
	h.stats.misses.Add(1)

	if cacheable && h.storable(resp) {
		h.cache.Set(req.Path, resp.Body)
		log.Trace().Int("status", resp.Status).Msg("Cache write")
	} else {
		log.Debug().Int("status", resp.Status).Bool("cacheable", cacheable).Msg("Response not stored")
	}
	h.respond(log, conn, resp.Body, CacheMiss)
}

func (h *Handler) storable(resp forward.Response) bool {
	return h.cacheErrors || resp.Success()
}

func (h *Handler) respond(log zerolog.Logger, w io.Writer, body []byte, status CacheStatus) {
	if err := writeResponse(w, body, status); err != nil {
		h.stats.writeFailures.Add(1)
		log.Error().Err(err).Str("cache", status.String()).Msg("Could not write response to client")
		return
	}
	log.Debug().Str("cache", status.String()).Int("bytes", len(body)).Msg("Sent response to client")
}
