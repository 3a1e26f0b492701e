package smpp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricOpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smpp_open_connections",
		Help: "Number of currently open client connections",
	})
	metricBoundConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smpp_bound_connections",
		Help: "Number of currently bound client connections",
	})
	metricPDUsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smpp_pdus_received_total",
		Help: "PDUs received from clients by command",
	}, []string{"command"})
	metricSubmits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smpp_submits_total",
		Help: "Processed submit_sm commands by terminal delivery status",
	}, []string{"status"})
	metricReceipts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smpp_receipts_emitted_total",
		Help: "Delivery receipts synthesized for submitted messages",
	})
	metricBusPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smpp_bus_published_total",
		Help: "Receipt bus messages published",
	})
	metricBusDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smpp_bus_delivered_total",
		Help: "Receipt bus messages received and handled",
	})
	metricBusDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smpp_bus_dropped_total",
		Help: "Receipt bus messages dropped on slow subscribers",
	})
)
