package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// ReadyFunc reports whether the daemon currently serves a consistent artifact pair
type ReadyFunc func() bool

// NewRouter exposes /metrics and /health
func NewRouter(c *Collector, ready ReadyFunc) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", c.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", healthHandler(ready)).Methods(http.MethodGet)
	return router
}

// NewServer creates the HTTP server for the metrics endpoint. The caller
// starts it and registers its shutdown.
func NewServer(addr string, c *Collector, ready ReadyFunc) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewRouter(c, ready),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func healthHandler(ready ReadyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if ready != nil && !ready() {
			status = "not ready"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
