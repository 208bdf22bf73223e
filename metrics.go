package main

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the Prometheus collectors this daemon exposes: stream
// counts, per-frame processing cost, and the RNN's voice-activity output.
type Metrics struct {
	activeStreams     prometheus.Gauge
	framesProcessed   *prometheus.CounterVec
	frameProcessTime  prometheus.Histogram
	vadProbability    prometheus.Histogram
	streamsOpened     prometheus.Counter
	streamsClosed     *prometheus.CounterVec
	pushgatewayLastOK prometheus.Gauge
}

// NewMetrics registers every collector against the default registry via
// promauto.
func NewMetrics() *Metrics {
	return &Metrics{
		activeStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rnnoise_active_streams",
			Help: "Number of denoising streams currently open",
		}),
		framesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rnnoise_frames_processed_total",
				Help: "Total number of 10ms frames denoised",
			},
			[]string{"transport"},
		),
		frameProcessTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rnnoise_frame_process_seconds",
			Help:    "Wall-clock time to denoise a single 10ms frame",
			Buckets: prometheus.ExponentialBuckets(1e-6, 2, 16),
		}),
		vadProbability: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rnnoise_vad_probability",
			Help:    "Distribution of per-frame voice-activity probability",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		streamsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rnnoise_streams_opened_total",
			Help: "Total number of streams opened",
		}),
		streamsClosed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rnnoise_streams_closed_total",
				Help: "Total number of streams closed, by reason",
			},
			[]string{"reason"},
		),
		pushgatewayLastOK: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rnnoise_pushgateway_last_success_timestamp",
			Help: "Unix timestamp of the last successful Pushgateway push",
		}),
	}
}

// RecordFrame updates the per-frame counters after ProcessFrame returns.
func (m *Metrics) RecordFrame(transport string, elapsed time.Duration, vadProb float32) {
	m.framesProcessed.WithLabelValues(transport).Inc()
	m.frameProcessTime.Observe(elapsed.Seconds())
	m.vadProbability.Observe(float64(vadProb))
}

// StreamOpened/StreamClosed track session lifecycle for activeStreams.
func (m *Metrics) StreamOpened() {
	m.streamsOpened.Inc()
	m.activeStreams.Inc()
}

func (m *Metrics) StreamClosed(reason string) {
	m.streamsClosed.WithLabelValues(reason).Inc()
	m.activeStreams.Dec()
}

// startPushgatewayLoop periodically pushes the default registry to a
// Prometheus Pushgateway on a background goroutine.
func (m *Metrics) startPushgatewayLoop(cfg PrometheusConfig) {
	if !cfg.PushEnabled {
		return
	}
	interval := time.Duration(cfg.PushInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	pusher := push.New(cfg.PushGateway, cfg.JobName).Gatherer(prometheus.DefaultGatherer)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if err := pusher.Push(); err != nil {
				log.Printf("metrics: pushgateway push failed: %v", err)
				continue
			}
			m.pushgatewayLastOK.Set(float64(time.Now().Unix()))
		}
	}()
}
