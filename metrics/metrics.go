// Package metrics holds the Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the counters and gauges exposed at /metrics.
type Metrics struct {
	SegmentsSaved          prometheus.Counter
	BytesSaved             prometheus.Counter
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	SegmentsExpired        prometheus.Counter
	LiveSegments           prometheus.Gauge
}

// New creates and registers the metric set on a fresh registry and returns
// both, so tests can build isolated instances.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		SegmentsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicescribe_segments_saved_total",
			Help: "Total number of audio segments written to the transient store",
		}),
		BytesSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicescribe_segment_bytes_saved_total",
			Help: "Total audio bytes written to the transient store",
		}),
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicescribe_transcription_requests_total",
			Help: "Total transcription requests received",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicescribe_transcription_successes_total",
			Help: "Total transcriptions that returned text",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicescribe_transcription_failures_total",
			Help: "Total transcriptions that failed",
		}),
		SegmentsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicescribe_segments_expired_total",
			Help: "Total segments deleted after their retention window",
		}),
		LiveSegments: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicescribe_live_segments",
			Help: "Segment records that have not yet been deleted",
		}),
	}
	return m, reg
}
