package forward

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("world"))
	})
	r.Get("/echo-query", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.RawQuery))
	})
	r.Get("/headers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("X-Client")))
	})
	r.Get("/binary", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0xff, 0x00, 0xfe})
	})
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such page"))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Success(t *testing.T) {
	origin := newOrigin(t)
	var logs bytes.Buffer
	f := New(origin.URL, WithClient(origin.Client()), WithLogger(zerolog.New(&logs).Level(zerolog.TraceLevel)))

	resp, err := f.Fetch(context.Background(), "/hello")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.Success())
	assert.Equal(t, "world", string(resp.Body))

	assert.Contains(t, logs.String(), `"url":"`+origin.URL+`/hello"`)
	assert.Contains(t, logs.String(), `"status":200`)
	assert.Contains(t, logs.String(), `"body":"world"`)
}

func TestFetch_NonSuccessStatusStillReturnsBody(t *testing.T) {
	origin := newOrigin(t)
	f := New(origin.URL)

	resp, err := f.Fetch(context.Background(), "/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.False(t, resp.Success())
	assert.Equal(t, "no such page", string(resp.Body))
}

func TestFetch_BinaryBodyPreview(t *testing.T) {
	origin := newOrigin(t)
	var logs bytes.Buffer
	f := New(origin.URL, WithLogger(zerolog.New(&logs).Level(zerolog.TraceLevel)))

	resp, err := f.Fetch(context.Background(), "/binary")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0x00, 0xfe}, resp.Body)
	assert.Contains(t, logs.String(), "non-UTF-8 body (3 bytes): ff00fe")
}

func TestFetch_SendsNoClientHeaders(t *testing.T) {
	origin := newOrigin(t)
	f := New(origin.URL)

	resp, err := f.Fetch(context.Background(), "/headers")
	require.NoError(t, err)
	assert.Empty(t, resp.Body)
}

func TestFetch_PathIsConcatenated(t *testing.T) {
	f := New("http://origin.test/api")
	assert.Equal(t, "http://origin.test/api/v1/items", f.URL("/v1/items"))
	assert.Equal(t, "http://origin.test/api", f.URL(""))
	assert.Equal(t, "http://origin.test/api", f.Origin())
}

func TestFetch_OriginUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	f := New("http://" + addr)
	resp, err := f.Fetch(context.Background(), "/hello")
	require.Error(t, err)
	assert.Equal(t, Response{}, resp)

	assert.ErrorIs(t, err, ErrForward)
	var fwdErr *ForwardError
	require.True(t, errors.As(err, &fwdErr))
	assert.Equal(t, "http://"+addr+"/hello", fwdErr.URL)
	assert.NotNil(t, fwdErr.Unwrap())
}

func TestFetch_BadURL(t *testing.T) {
	f := New("http://bad host")
	_, err := f.Fetch(context.Background(), "/x")
	assert.ErrorIs(t, err, ErrForward)
}

func TestFetch_ContextCancelled(t *testing.T) {
	origin := newOrigin(t)
	f := New(origin.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, "/slow")
	assert.ErrorIs(t, err, ErrForward)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
