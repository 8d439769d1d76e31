package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values for the datagram counters.
const (
	channelChat      = "chat"
	channelDiscovery = "discovery"

	outcomeMessage   = "message"
	outcomeProbe     = "probe"
	outcomeIgnored   = "ignored"
	outcomeMalformed = "malformed"
	outcomeShort     = "short"
	outcomeAuthFail  = "auth_failed"

	resultOK    = "ok"
	resultError = "error"
)

// Metrics holds the node's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Received *prometheus.CounterVec
	Sent     *prometheus.CounterVec
	Peers    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lanchat",
			Name:      "datagrams_received_total",
			Help:      "Datagrams received, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		Sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lanchat",
			Name:      "datagrams_sent_total",
			Help:      "Datagrams sent, by channel and result.",
		}, []string{"channel", "result"}),
		Peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lanchat",
			Name:      "peers_discovered",
			Help:      "Number of distinct peers in the discovered set.",
		}),
	}
	m.Registry.MustRegister(m.Received, m.Sent, m.Peers)
	return m
}

// received counts one inbound datagram.
func (m *Metrics) received(channel, outcome string) {
	m.Received.WithLabelValues(channel, outcome).Inc()
}

// sent counts one outbound datagram as ok or error.
func (m *Metrics) sent(channel string, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	m.Sent.WithLabelValues(channel, result).Inc()
}

// serveMetrics exposes /metrics on addr until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, m *Metrics, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		// Not fatal: the chat keeps running without /metrics.
		logger.Warn("Metrics endpoint stopped", "err", err)
	}
	return nil
}
