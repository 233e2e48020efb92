package admin

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ashpect/cacheproxy/pkg/cache"
	"github.com/ashpect/cacheproxy/pkg/proxy"
)

// StatsSource exposes handler counters.
type StatsSource interface {
	Stats() proxy.StatsSnapshot
}

// Stats is the /stats payload.
type Stats struct {
	proxy.StatsSnapshot
	Entries int `json:"entries"`
}

type api struct {
	cache cache.Cache[string, []byte]
	stats StatsSource
	log   zerolog.Logger
}

// NewRouter returns the management API for the proxy's cache and counters.
// Cache paths are addressed by appending them to /cache, e.g. GET
// /cache/hello for the entry "/hello".
func NewRouter(c cache.Cache[string, []byte], stats StatsSource, log zerolog.Logger) http.Handler {
	a := &api{cache: c, stats: stats, log: log}

	r := chi.NewRouter()
	r.Get("/healthz", a.health)
	r.Get("/stats", a.getStats)
	r.Get("/cache", a.listKeys)
	r.Get("/cache/*", a.getEntry)
	r.Delete("/cache/*", a.deleteEntry)
	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func (a *api) getStats(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, Stats{
		StatsSnapshot: a.stats.Stats(),
		Entries:       a.cache.Len(),
	})
}

func (a *api) listKeys(w http.ResponseWriter, r *http.Request) {
	keys := a.cache.Keys()
	if keys == nil {
		keys = []string{}
	}
	sort.Strings(keys)
	a.writeJSON(w, keys)
}

func (a *api) getEntry(w http.ResponseWriter, r *http.Request) {
	key := "/" + chi.URLParam(r, "*")
	body, ok := a.cache.Get(key)
	if !ok {
		http.Error(w, "not cached", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(body); err != nil {
		a.log.Error().Err(err).Str("key", key).Msg("Could not write cached body")
	}
}

func (a *api) deleteEntry(w http.ResponseWriter, r *http.Request) {
	key := "/" + chi.URLParam(r, "*")
	a.cache.Delete(key)
	a.log.Info().Str("key", key).Msg("Purged cache entry")
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error().Err(err).Msg("Could not encode response")
	}
}
