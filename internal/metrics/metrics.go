// Package metrics exposes the node's Prometheus counters and gauges and
// the small HTTP surface (/healthz, /metrics) that serves them. This is
// a purely observational side channel: no client-facing behavior from
// the wire protocol depends on it, and it binds a separate port from
// the client-facing TCP listener.
package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge the request plane updates
// (including the gossip-peer gauge, read from the snapshot), registered against their own registry so multiple
// nodes can run in the same test process without colliding on the
// default global registry.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
	ForwardsTotal *prometheus.CounterVec
	GossipPeers   prometheus.Gauge
	StorageKeys   prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers a fresh metric set.
func New() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kava_requests_total",
			Help: "Total number of dispatched client commands.",
		}, []string{"command", "outcome"}),
		ForwardsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kava_forwards_total",
			Help: "Total number of commands forwarded to a peer.",
		}, []string{"outcome"}),
		GossipPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kava_gossip_peers",
			Help: "Current number of entries in the membership snapshot.",
		}),
		StorageKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kava_storage_keys",
			Help: "Current number of keys in the local store.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.RequestsTotal, m.ForwardsTotal, m.GossipPeers, m.StorageKeys)
	return m
}

// Server serves /healthz and /metrics on its own listener.
type Server struct {
	addr string
	m    *Metrics
}

// NewServer builds a metrics HTTP server bound to addr ("host:port").
func NewServer(addr string, m *Metrics) *Server {
	return &Server{addr: addr, m: m}
}

// Router builds the mux.Router exposing the metrics surface.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.m.registry, promhttp.HandlerOpts{})).Methods("GET")
	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ListenAndServe binds addr and serves until the process exits or the
// listener errors.
func (s *Server) ListenAndServe() error {
	return http.ListenAndServe(s.addr, s.Router())
}
