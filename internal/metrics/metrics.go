package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "diabetes"

// Metrics owns its registry so that each server (and each test) gets an
// independent set of collectors.
type Metrics struct {
	registry *prometheus.Registry

	predictions      *prometheus.CounterVec
	predictionErrors prometheus.Counter
	scalerFallbacks  prometheus.Counter
	validationErrors prometheus.Counter
	latency          prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Successful predictions by predicted label.",
		}, []string{"label"}),
		predictionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Predictions that failed inside the model.",
		}),
		scalerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scaler_fallbacks_total",
			Help:      "Requests where the scaler failed and raw features were used.",
		}),
		validationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Prediction requests rejected before reaching the model.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent building features and running the model.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.predictions,
		m.predictionErrors,
		m.scalerFallbacks,
		m.validationErrors,
		m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObservePrediction(label int, elapsed time.Duration) {
	m.predictions.WithLabelValues(strconv.Itoa(label)).Inc()
	m.latency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePredictionError(elapsed time.Duration) {
	m.predictionErrors.Inc()
	m.latency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveScalerFallback() {
	m.scalerFallbacks.Inc()
}

func (m *Metrics) ObserveValidationError() {
	m.validationErrors.Inc()
}
