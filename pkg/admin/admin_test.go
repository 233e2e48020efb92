package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashpect/cacheproxy/pkg/cache"
	"github.com/ashpect/cacheproxy/pkg/proxy"
)

type fixedStats proxy.StatsSnapshot

func (s fixedStats) Stats() proxy.StatsSnapshot {
	return proxy.StatsSnapshot(s)
}

func newTestRouter() (http.Handler, cache.Cache[string, []byte]) {
	c := cache.NewBytes()
	c.Set("/b", []byte("payload b"))
	c.Set("/a/nested", []byte("payload a"))
	stats := fixedStats{Requests: 3, Hits: 1, Misses: 2}
	return NewRouter(c, stats, zerolog.Nop()), c
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter()
	rr := serve(h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestStats(t *testing.T) {
	h, _ := newTestRouter()
	rr := serve(h, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got map[string]uint64
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, uint64(3), got["requests"])
	assert.Equal(t, uint64(1), got["hits"])
	assert.Equal(t, uint64(2), got["misses"])
	assert.Equal(t, uint64(2), got["entries"])
}

func TestListKeys(t *testing.T) {
	h, _ := newTestRouter()
	rr := serve(h, http.MethodGet, "/cache")
	require.Equal(t, http.StatusOK, rr.Code)

	var keys []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &keys))
	assert.Equal(t, []string{"/a/nested", "/b"}, keys)
}

func TestListKeys_Empty(t *testing.T) {
	h := NewRouter(cache.NewBytes(), fixedStats{}, zerolog.Nop())
	rr := serve(h, http.MethodGet, "/cache")
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestGetEntry(t *testing.T) {
	h, _ := newTestRouter()

	rr := serve(h, http.MethodGet, "/cache/a/nested")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "payload a", rr.Body.String())

	rr = serve(h, http.MethodGet, "/cache/missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteEntry(t *testing.T) {
	h, c := newTestRouter()

	rr := serve(h, http.MethodDelete, "/cache/b")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	_, ok := c.Get("/b")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}
