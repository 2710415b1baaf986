package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StorageOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamvault",
		Subsystem: "storage",
		Name:      "operations_total",
		Help:      "Total storage operations",
	}, []string{"operation"})

	StorageKeysTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamvault",
		Subsystem: "storage",
		Name:      "keys_total",
		Help:      "Total keys in storage",
	})

	SnapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamvault",
		Subsystem: "snapshot",
		Name:      "total",
		Help:      "Snapshots written, by target and result",
	}, []string{"target", "result"})

	SnapshotDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "streamvault",
		Subsystem: "snapshot",
		Name:      "duration_seconds",
		Help:      "Time to serialize and write a snapshot",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 15),
	}, []string{"target"})

	SnapshotSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "streamvault",
		Subsystem: "snapshot",
		Name:      "size_bytes",
		Help:      "Size of last snapshot in bytes",
	}, []string{"target"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamvault",
		Subsystem: "notify",
		Name:      "total",
		Help:      "Listener deliveries, by result",
	}, []string{"result"})

	NotifyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamvault",
		Subsystem: "notify",
		Name:      "queue_depth",
		Help:      "Deliveries waiting for a worker",
	})

	ProtocolRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamvault",
		Subsystem: "protocol",
		Name:      "requests_total",
		Help:      "Requests handled, by action and status",
	}, []string{"action", "status"})

	PushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamvault",
		Subsystem: "protocol",
		Name:      "pushes_total",
		Help:      "Change pushes sent to subscribers, by result",
	}, []string{"result"})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamvault",
		Subsystem: "transport",
		Name:      "connections_active",
		Help:      "Open websocket connections",
	})

	SubscribedKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamvault",
		Subsystem: "subscription",
		Name:      "keys",
		Help:      "Keys with at least one subscriber",
	})

	GRPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamvault",
		Subsystem: "grpc",
		Name:      "requests_total",
		Help:      "Total gRPC requests",
	}, []string{"service", "method", "code"})

	GRPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "streamvault",
		Subsystem: "grpc",
		Name:      "request_duration_seconds",
		Help:      "gRPC request duration",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
	}, []string{"service", "method"})
)
