package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "progsync"

	LabelMethod  = "method"
	LabelPath    = "path"
	LabelStatus  = "status"
	LabelKey     = "key"
	LabelOutcome = "outcome"
	LabelKind    = "kind"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)
)

// Authority Metrics
var (
	PlayersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players_online",
			Help:      "Players currently cached by the authority",
		},
	)

	CurrencyCredited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "currency_credited_total",
			Help:      "Total currency credited to players",
		},
	)

	Purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Purchase decisions by upgrade and outcome",
		},
		[]string{LabelKey, LabelOutcome},
	)
)

// Persistence Metrics
var (
	StoreWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_failures_total",
			Help:      "Store writes that failed on an attempt",
		},
	)

	DurabilityWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "durability_warnings_total",
			Help:      "Writes handed to the background persistence worker",
		},
	)

	PendingWrites = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_writes",
			Help:      "Writes waiting to be persisted",
		},
	)
)

// Bus Metrics
var (
	SnapshotsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_published_total",
			Help:      "Events published on the snapshot bus",
		},
		[]string{LabelKind},
	)

	BusSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bus_subscribers",
			Help:      "Active snapshot bus subscriptions",
		},
	)
)

// Network Metrics
var (
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Websocket clients that completed login",
		},
	)

	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Client messages received by type",
		},
		[]string{LabelKind},
	)
)
