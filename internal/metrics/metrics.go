// Package metrics exposes an optional, loopback-only Prometheus endpoint
// for connection/request counters. It never touches the request
// dispatcher's vhost resolution path: it is served from its own
// listener, not a route the main event loop recognizes.
package metrics

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the counters the server updates as it runs.
type Registry struct {
	Connections *prometheus.CounterVec
	Requests    *prometheus.CounterVec
	BytesSent   prometheus.Counter

	registry *prometheus.Registry
}

// NewRegistry constructs a Registry with all counters registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	connections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "httpserver_connections_total",
		Help: "Total number of accepted client connections.",
	}, []string{"outcome"})

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "httpserver_requests_total",
		Help: "Total number of dispatched requests by method and status.",
	}, []string{"method", "status"})

	bytesSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "httpserver_bytes_sent_total",
		Help: "Total bytes written to client sockets.",
	})

	reg.MustRegister(connections, requests, bytesSent)

	return &Registry{
		Connections: connections,
		Requests:    requests,
		BytesSent:   bytesSent,
		registry:    reg,
	}
}

// Serve starts a loopback-only HTTP listener exposing /metrics, and
// blocks until ctx is done or the listener fails.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return &net.AddrError{Err: "metrics address is not a loopback address", Addr: addr}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
