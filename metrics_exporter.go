package main

import (
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PrometheusExporter exposes the process metrics on the configured
// listen address.
type PrometheusExporter struct {
	Path   string // e.g. "/metrics"
	Listen string // e.g. ":2550"
}

// Start begins the HTTP server to serve Prometheus metrics.
func (e *PrometheusExporter) Start() error {
	mux := http.NewServeMux()
	mux.Handle(e.Path, promhttp.Handler())
	return http.ListenAndServe(e.Listen, mux)
}

// startMetricsExporter runs the exporter in the background when
// METRICS_LISTEN is set. Master and workers are separate processes, so
// worker i serves on the configured port plus i+1.
func startMetricsExporter(cfg Config) {
	if cfg.MetricsListen == "" {
		return
	}
	listen := cfg.MetricsListen
	if cfg.WorkerIndex >= 0 {
		host, port, err := net.SplitHostPort(listen)
		if err != nil {
			log.WithFields(log.Fields{"listen": listen, "error": err}).Error("Invalid METRICS_LISTEN")
			return
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			log.WithFields(log.Fields{"listen": listen, "error": err}).Error("Invalid METRICS_LISTEN port")
			return
		}
		listen = net.JoinHostPort(host, strconv.Itoa(p+cfg.WorkerIndex+1))
	}
	exporter := &PrometheusExporter{Path: "/metrics", Listen: listen}
	go func() {
		if err := exporter.Start(); err != nil {
			log.WithFields(log.Fields{
				"listen": listen,
				"error":  err,
			}).Error("Metrics exporter stopped")
		}
	}()
	log.WithFields(log.Fields{"listen": listen}).Info("Metrics exporter started")
}
