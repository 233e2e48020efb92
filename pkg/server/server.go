package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = 1 * time.Second
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server closed")

// BindError is returned when the listening socket cannot be created.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// ConnHandler serves a single accepted connection and closes it.
type ConnHandler interface {
	ServeConn(ctx context.Context, conn io.ReadWriteCloser)
}

// Server accepts TCP connections and runs each on its own goroutine, with
// an optional cap on how many run at once.
type Server struct {
	handler     ConnHandler
	maxConns    int
	readTimeout time.Duration
	log         zerolog.Logger

	slots       chan struct{}
	done        chan struct{}
	inShutdown  atomic.Bool
	connCtx     context.Context
	cancelConns context.CancelFunc
	conns       sync.WaitGroup
	active      atomic.Int64

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
}

type ServerOption func(*Server)

// WithMaxConns caps concurrently served connections. When all slots are
// busy the server stops accepting until one frees. Zero means unbounded.
func WithMaxConns(n int) ServerOption {
	return func(s *Server) {
		if n < 0 {
			panic("max conns must be >= 0")
		}
		s.maxConns = n
	}
}

// WithReadTimeout sets a deadline for reading the request after accept.
// Zero means none.
func WithReadTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.readTimeout = timeout
	}
}

func WithLogger(log zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

func New(handler ConnHandler, opts ...ServerOption) *Server {
	s := &Server{
		handler:   handler,
		log:       zerolog.Nop(),
		done:      make(chan struct{}),
		listeners: make(map[net.Listener]struct{}),
	}
	s.connCtx, s.cancelConns = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(s)
	}
	if s.maxConns > 0 {
		s.slots = make(chan struct{}, s.maxConns)
	}
	return s
}

// Listen binds a TCP listener on addr.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	return ln, nil
}

// ListenAndServe binds addr and serves it. A bind failure is returned as a
// *BindError before any connection is accepted.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := Listen(addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Active returns the number of connections currently being served.
func (s *Server) Active() int {
	return int(s.active.Load())
}

// Serve accepts connections on ln until Shutdown is called or the listener
// fails permanently. Accept errors are logged and retried with backoff.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln) {
		ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	s.log.Info().Str("addr", ln.Addr().String()).Int("maxConns", s.maxConns).Msg("Accepting connections")

	var delay time.Duration
	for {
		if !s.acquire() {
			return ErrServerClosed
		}

		conn, err := ln.Accept()
		if err != nil {
			s.release()
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			s.log.Error().Err(err).Dur("retry", delay).Msg("Accept failed")
			select {
			case <-time.After(delay):
			case <-s.done:
				return ErrServerClosed
			}
			continue
		}
		delay = 0

		if !s.startConn() {
			conn.Close()
			s.release()
			return ErrServerClosed
		}
		go s.serveConn(conn)
	}
}

// startConn registers a connection unless shutdown already began, so that
// Shutdown never waits on a group that is still growing.
func (s *Server) startConn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inShutdown.Load() {
		return false
	}
	s.conns.Add(1)
	s.active.Add(1)
	return true
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.conns.Done()
	defer s.release()
	defer s.active.Add(-1)

	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	log.Trace().Msg("Accepted connection")

	if s.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			log.Warn().Err(err).Msg("Could not set read deadline")
		}
	}
	s.handler.ServeConn(s.connCtx, conn)
	log.Trace().Msg("Connection done")
}

// acquire blocks until a connection slot is free. It returns false if the
// server shut down while waiting.
func (s *Server) acquire() bool {
	if s.slots == nil {
		return !s.inShutdown.Load()
	}
	select {
	case s.slots <- struct{}{}:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) release() {
	if s.slots != nil {
		<-s.slots
	}
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inShutdown.Load() {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

// Shutdown stops accepting, then waits for in-flight connections. If ctx
// ends first, their origin fetches are cancelled and ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.inShutdown.Swap(true) {
		s.mu.Unlock()
		return s.wait(ctx)
	}
	close(s.done)
	var err error
	for ln := range s.listeners {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	s.mu.Unlock()

	s.log.Info().Int("active", s.Active()).Msg("Shutting down, waiting for connections")
	if werr := s.wait(ctx); werr != nil {
		return werr
	}
	return err
}

func (s *Server) wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.cancelConns()
		return nil
	case <-ctx.Done():
		s.cancelConns()
		return ctx.Err()
	}
}
