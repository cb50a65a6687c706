package detector

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ironsheep/frcnn-detect/internal/imaging"
	"github.com/ironsheep/frcnn-detect/internal/inference"
)

// Stage names used as the "stage" label of the duration histogram.
const (
	StagePreprocess = "preprocess"
	StageTensor     = "tensor"
	StageInference  = "inference"
	StageDecode     = "decode"
	StageRender     = "render"
)

// Metrics contains the Prometheus metrics of the detection pipeline.
type Metrics struct {
	Requests      *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Detections    *prometheus.CounterVec
	InFlight      prometheus.Gauge
}

// NewMetrics creates the pipeline metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frcnn_requests_total",
				Help: "Total number of detection requests partitioned by processor and outcome.",
			},
			[]string{"processor", "outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frcnn_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"stage"},
		),
		Detections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frcnn_detections_total",
				Help: "Total number of objects detected partitioned by label.",
			},
			[]string{"label"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "frcnn_requests_in_flight",
				Help: "Number of detection requests currently running.",
			},
		),
	}

	if reg != nil {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Requests.Describe(ch)
	m.StageDuration.Describe(ch)
	m.Detections.Describe(ch)
	ch <- m.InFlight.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Requests.Collect(ch)
	m.StageDuration.Collect(ch)
	m.Detections.Collect(ch)
	ch <- m.InFlight
}

func (m *Metrics) observe(r *Result) {
	t := r.Timings
	m.StageDuration.WithLabelValues(StagePreprocess).Observe(t.Preprocess.Seconds())
	m.StageDuration.WithLabelValues(StageTensor).Observe(t.Tensor.Seconds())
	m.StageDuration.WithLabelValues(StageInference).Observe(t.Inference.Seconds())
	m.StageDuration.WithLabelValues(StageDecode).Observe(t.Decode.Seconds())
	m.StageDuration.WithLabelValues(StageRender).Observe(t.Render.Seconds())

	for _, d := range r.Detections {
		m.Detections.WithLabelValues(d.Label).Inc()
	}
}

// outcome is the "outcome" label for a finished request.
func outcome(err error) string {
	var (
		decodeErr *imaging.DecodeError
		engineErr *inference.Error
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &decodeErr):
		return "decode_error"
	case errors.As(err, &engineErr):
		return "inference_error"
	default:
		return "error"
	}
}
