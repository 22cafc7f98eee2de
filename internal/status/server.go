// Package status serves the reconciliation state over HTTP: a health probe,
// a JSON snapshot and Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the status HTTP server.
type Server struct {
	srv      *http.Server
	log      zerolog.Logger
	registry *prometheus.Registry
}

// NewServer builds the server and registers the scene collector plus the
// Go runtime collectors on a private registry.
func NewServer(addr string, src SnapshotSource, log zerolog.Logger) (*Server, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		NewCollector(src),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(src, reg),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log:      log,
		registry: reg,
	}, nil
}

// NewRouter wires the status routes.
func NewRouter(src SnapshotSource, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, src.Snapshot())
	}).Methods(http.MethodGet)
	r.HandleFunc("/trackables/{id:-?[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trackable id"})
			return
		}
		for _, t := range src.Snapshot().Trackables {
			if t.ID == id {
				writeJSON(w, http.StatusOK, t)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "trackable not found"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Start listens in the background. The returned address is the bound one.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return "", err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Status server stopped")
		}
	}()
	s.log.Info().Str("address", ln.Addr().String()).Msg("Status server listening")
	return ln.Addr().String(), nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
