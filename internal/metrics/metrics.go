// Package metrics exposes replay server counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxelreplay.ai/internal/sim/playback"
)

const namespace = "voxelreplay"

// Metrics owns a private registry so several servers (and tests) can live
// in one process.
type Metrics struct {
	reg *prometheus.Registry

	seeks       *prometheus.CounterVec
	opsPerSeek  prometheus.Histogram
	seekSeconds prometheus.Histogram
	rebuilt     prometheus.Counter
	faces       *prometheus.GaugeVec
	sessions    prometheus.Gauge
	dropped     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		seeks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seeks_total",
			Help:      "Completed seeks by direction.",
		}, []string{"direction"}),
		opsPerSeek: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "seek_ops",
			Help:      "Operations applied per seek across all layers.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		seekSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "seek_duration_seconds",
			Help:      "Wall time spent applying a seek and rebuilding meshes.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		rebuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_rebuilt_total",
			Help:      "Chunk mesh rebuilds.",
		}),
		faces: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_faces",
			Help:      "Faces currently emitted by terrain meshes.",
		}, []string{"class"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewer_sessions",
			Help:      "Connected viewer sessions.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewer_frames_dropped_total",
			Help:      "Frames not delivered because a viewer queue was full.",
		}),
	}
	m.reg.MustRegister(
		m.seeks, m.opsPerSeek, m.seekSeconds, m.rebuilt, m.faces, m.sessions, m.dropped,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveSeek records one completed seek.
func (m *Metrics) ObserveSeek(f playback.Frame) {
	dir := "forward"
	if !f.Forward() {
		dir = "backward"
	}
	m.seeks.WithLabelValues(dir).Inc()
	m.opsPerSeek.Observe(float64(f.Ops))
	m.seekSeconds.Observe(f.Duration.Seconds())
	m.rebuilt.Add(float64(f.Chunks))
}

func (m *Metrics) SetLiveFaces(terrain, water int) {
	m.faces.WithLabelValues("terrain").Set(float64(terrain))
	m.faces.WithLabelValues("water").Set(float64(water))
}

func (m *Metrics) SessionOpened() { m.sessions.Inc() }
func (m *Metrics) SessionClosed() { m.sessions.Dec() }
func (m *Metrics) FrameDropped()  { m.dropped.Inc() }

// GaugeFunc registers a gauge sampled at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
