// Package metrics exposes Prometheus metrics for capture streams and
// keeps a local stats cache for the status API.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uvchost",
		Subsystem: "stream",
		Name:      "frames_total",
		Help:      "Completed frames delivered to the application",
	}, []string{"device"})

	frameBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uvchost",
		Subsystem: "stream",
		Name:      "frame_bytes_total",
		Help:      "Total bytes of delivered frame payload",
	}, []string{"device"})

	overflowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uvchost",
		Subsystem: "stream",
		Name:      "overflows_total",
		Help:      "Frames discarded because they exceeded the buffer size",
	}, []string{"device"})

	underflowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uvchost",
		Subsystem: "stream",
		Name:      "underflows_total",
		Help:      "Frames dropped because no free buffer was available",
	}, []string{"device"})

	transferErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uvchost",
		Subsystem: "stream",
		Name:      "transfer_errors_total",
		Help:      "Failed bulk/isochronous transfers",
	}, []string{"device"})

	disconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uvchost",
		Subsystem: "stream",
		Name:      "disconnects_total",
		Help:      "Device disconnects observed while streaming",
	}, []string{"device"})

	lastFrameBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "uvchost",
		Subsystem: "stream",
		Name:      "last_frame_bytes",
		Help:      "Size of the most recently delivered frame",
	}, []string{"device"})

	// Local cache for the /status endpoint.
	statsCache   = make(map[string]*StreamStats)
	statsCacheMu sync.RWMutex
)

// StreamStats holds current counter values for one device.
type StreamStats struct {
	Frames         uint64
	Bytes          uint64
	Overflows      uint64
	Underflows     uint64
	TransferErrors uint64
	Disconnects    uint64
	LastFrameBytes int
}

// RecordFrame counts one delivered frame.
func RecordFrame(device string, bytes int) {
	framesTotal.WithLabelValues(device).Inc()
	frameBytesTotal.WithLabelValues(device).Add(float64(bytes))
	lastFrameBytes.WithLabelValues(device).Set(float64(bytes))
	updateStats(device, func(s *StreamStats) {
		s.Frames++
		s.Bytes += uint64(bytes)
		s.LastFrameBytes = bytes
	})
}

// RecordOverflow counts a frame discarded for exceeding capacity.
func RecordOverflow(device string) {
	overflowsTotal.WithLabelValues(device).Inc()
	updateStats(device, func(s *StreamStats) { s.Overflows++ })
}

// RecordUnderflow counts a frame dropped with no buffer free.
func RecordUnderflow(device string) {
	underflowsTotal.WithLabelValues(device).Inc()
	updateStats(device, func(s *StreamStats) { s.Underflows++ })
}

// RecordTransferError counts a failed transfer.
func RecordTransferError(device string) {
	transferErrorsTotal.WithLabelValues(device).Inc()
	updateStats(device, func(s *StreamStats) { s.TransferErrors++ })
}

// RecordDisconnect counts a device disconnect.
func RecordDisconnect(device string) {
	disconnectsTotal.WithLabelValues(device).Inc()
	updateStats(device, func(s *StreamStats) { s.Disconnects++ })
}

// DeleteStats removes all metrics for a device.
func DeleteStats(device string) {
	framesTotal.DeleteLabelValues(device)
	frameBytesTotal.DeleteLabelValues(device)
	overflowsTotal.DeleteLabelValues(device)
	underflowsTotal.DeleteLabelValues(device)
	transferErrorsTotal.DeleteLabelValues(device)
	disconnectsTotal.DeleteLabelValues(device)
	lastFrameBytes.DeleteLabelValues(device)

	statsCacheMu.Lock()
	delete(statsCache, device)
	statsCacheMu.Unlock()
}

// GetStats returns a copy of the cached stats for a device, or nil.
func GetStats(device string) *StreamStats {
	statsCacheMu.RLock()
	defer statsCacheMu.RUnlock()
	s, ok := statsCache[device]
	if !ok {
		return nil
	}
	out := *s
	return &out
}

// GetAllStats returns a copy of the cache keyed by device.
func GetAllStats() map[string]StreamStats {
	statsCacheMu.RLock()
	defer statsCacheMu.RUnlock()
	out := make(map[string]StreamStats, len(statsCache))
	for device, s := range statsCache {
		out[device] = *s
	}
	return out
}

func updateStats(device string, fn func(*StreamStats)) {
	statsCacheMu.Lock()
	defer statsCacheMu.Unlock()
	s, ok := statsCache[device]
	if !ok {
		s = &StreamStats{}
		statsCache[device] = s
	}
	fn(s)
}

// HTTPHandler returns the Prometheus scrape handler covering all
// promauto-registered metrics.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
