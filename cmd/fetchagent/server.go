package main

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/ambiyansyah-risyal/fetchagent"
	"github.com/ambiyansyah-risyal/fetchagent/cache"
)

// newRouter exposes metrics and the agent cache for inspection. Cache keys
// contain slashes, so they travel path-escaped.
func newRouter(store *cache.Store, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, fetchagent.GetVersionInfo())
	})

	r.Route("/cache", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			data, err := store.Serialize()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(data))
		})
		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			store.Clear()
			log.Info().Msg("Cache cleared")
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/keys", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, store.Keys())
		})
		r.Get("/{key}", func(w http.ResponseWriter, r *http.Request) {
			key, ok := cacheKey(w, r)
			if !ok {
				return
			}
			value, found := store.Get(key)
			if !found {
				http.Error(w, "not cached", http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, value)
		})
		r.Delete("/{key}", func(w http.ResponseWriter, r *http.Request) {
			key, ok := cacheKey(w, r)
			if !ok {
				return
			}
			store.Delete(key)
			log.Info().Str("key", key).Msg("Cache entry deleted")
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func cacheKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return "", false
	}
	return key, true
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
