package statusapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/byuccl/coast/internal/model"
	"github.com/byuccl/coast/internal/telemetry"
)

// Snapshot is the campaign-state summary GET /status returns, produced
// by whatever orchestrator is driving the campaign (internal/campaign's
// Campaign satisfies Provider structurally).
type Snapshot struct {
	State          string  `json:"state"`
	InjectionsDone int     `json:"injections_done"`
	MaxInjections  int     `json:"max_injections"`
	ErrorsSeen     int     `json:"errors_seen"`
	ErrorTarget    int     `json:"error_target"`
	BoundsUpper    float64 `json:"bounds_upper"`
	BoundsLower    float64 `json:"bounds_lower"`
}

// Provider is implemented by the campaign orchestrator to report its
// live state for GET /status.
type Provider interface {
	Snapshot() Snapshot
}

// Server is the campaign status/metrics/feed HTTP+websocket server
// (spec.md's logging-sink interface is out of scope; this is the
// supplemented production side of structured status, not a mandated
// sink).
type Server struct {
	router   *mux.Router
	hub      *Hub
	metrics  *telemetry.Metrics
	provider Provider
	logger   *slog.Logger
}

// NewServer wires the mux router, CORS middleware, and route table.
// metrics may be nil, in which case no /metrics route is registered.
func NewServer(provider Provider, metrics *telemetry.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:   mux.NewRouter(),
		hub:      NewHub(logger),
		metrics:  metrics,
		provider: provider,
		logger:   logger,
	}
	s.router.Use(corsMiddleware)
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/feed", s.handleFeed)
	if metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")
	}
	return s
}

// Handler returns the server's http.Handler for use with http.Server
// or httptest, matching the teacher's pattern of returning the mux
// router rather than calling ListenAndServe itself.
func (s *Server) Handler() http.Handler { return s.router }

// Broadcast publishes log to every connected /feed subscriber as a
// JSON-encoded InjectionLog, called once per published result.
func (s *Server) Broadcast(log model.InjectionLog) {
	payload, err := json.Marshal(log)
	if err != nil {
		s.logger.Warn("statusapi: failed to marshal feed payload", "error", err)
		return
	}
	s.hub.Broadcast(payload)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.provider.Snapshot()); err != nil {
		s.logger.Warn("statusapi: failed to encode status", "error", err)
	}
}
