package network

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics adapts the teacher's FileTransferMetrics/ProtocolMetrics structs
// (pkg/p2p/protocols/file_transfer.go, pkg/monitoring/metrics.go) into a
// set of prometheus counters/gauges on a private registry plus plain
// in-memory byte and chunk totals readable through Snapshot, matching
// spec.md §3's supplemented "Transfer metrics" item.
// The core only exposes these for an external scraper to collect; it
// never starts an HTTP server itself (spec.md §1 keeps the CLI/HTTP
// surface out of scope).
type Metrics struct {
	registry *prometheus.Registry

	transfersTotal      *prometheus.CounterVec
	bytesTransferred    prometheus.Counter
	chunksTransferred   prometheus.Counter
	activeTransfers     prometheus.Gauge
	connectedPeers      prometheus.Gauge
	handshakeRejections *prometheus.CounterVec

	mu          sync.Mutex
	startedAt   map[string]time.Time
	totalBytes  int64
	totalChunks int64
}

// NewMetrics registers a fresh set of engine counters on a private
// registry; callers that want to merge this into a process-wide registry
// can gather from Registry().
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cipherstream",
			Subsystem: "transfer",
			Name:      "total",
			Help:      "Transfers by terminal outcome.",
		}, []string{"outcome"}),
		bytesTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cipherstream",
			Subsystem: "transfer",
			Name:      "bytes_total",
			Help:      "Total bytes transferred across all transfers.",
		}),
		chunksTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cipherstream",
			Subsystem: "transfer",
			Name:      "chunks_total",
			Help:      "Total chunks transferred across all transfers.",
		}),
		activeTransfers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cipherstream",
			Subsystem: "transfer",
			Name:      "active",
			Help:      "Transfers currently in Pending or InProgress state.",
		}),
		connectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cipherstream",
			Subsystem: "peer",
			Name:      "connected",
			Help:      "Peers currently connected.",
		}),
		handshakeRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cipherstream",
			Subsystem: "admission",
			Name:      "rejections_total",
			Help:      "Handshake rejections by reason.",
		}, []string{"reason"}),
		startedAt: make(map[string]time.Time),
	}
	m.registry.MustRegister(
		m.transfersTotal, m.bytesTransferred, m.chunksTransferred,
		m.activeTransfers, m.connectedPeers, m.handshakeRejections,
	)
	return m
}

// Registry exposes the private prometheus registry for an external
// scrape handler to mount.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) transferStarted(transferID string) {
	m.mu.Lock()
	m.startedAt[transferID] = time.Now()
	m.mu.Unlock()
	m.activeTransfers.Inc()
}

func (m *Metrics) chunkSent(bytes int) {
	m.chunksTransferred.Inc()
	m.bytesTransferred.Add(float64(bytes))
	atomic.AddInt64(&m.totalChunks, 1)
	atomic.AddInt64(&m.totalBytes, int64(bytes))
}

func (m *Metrics) transferTerminal(transferID, outcome string) {
	m.transfersTotal.WithLabelValues(outcome).Inc()
	m.activeTransfers.Dec()
	m.mu.Lock()
	delete(m.startedAt, transferID)
	m.mu.Unlock()
}

func (m *Metrics) handshakeRejected(reason string) {
	m.handshakeRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) peerConnected()    { m.connectedPeers.Inc() }
func (m *Metrics) peerDisconnected() { m.connectedPeers.Dec() }

// Snapshot is a point-in-time, non-prometheus view of the running byte
// and chunk totals.
type Snapshot struct {
	BytesTransferred  int64
	ChunksTransferred int64
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		BytesTransferred:  atomic.LoadInt64(&m.totalBytes),
		ChunksTransferred: atomic.LoadInt64(&m.totalChunks),
	}
}
