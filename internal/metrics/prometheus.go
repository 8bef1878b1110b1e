package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus collectors for the voice client.
type Metrics struct {
	registry *prometheus.Registry

	// Remote assistant calls
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Chat round trips
	RoundTrips        *prometheus.CounterVec
	RoundTripDuration prometheus.Histogram

	// Reply playback
	Playbacks *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vozchat_remote_requests_total",
			Help: "Remote assistant requests by operation and outcome",
		}, []string{"op", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vozchat_remote_request_duration_seconds",
			Help:    "Remote assistant request latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		RoundTrips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vozchat_round_trips_total",
			Help: "Utterance round trips by outcome",
		}, []string{"outcome"}),
		RoundTripDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vozchat_round_trip_duration_seconds",
			Help:    "Time from releasing the record control to settling back in idle",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32},
		}),
		Playbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vozchat_playbacks_total",
			Help: "Reply audio playback attempts by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveRequest(op string, outcome string, elapsed time.Duration) {
	m.Requests.WithLabelValues(op, outcome).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRoundTrip(outcome string, elapsed time.Duration) {
	m.RoundTrips.WithLabelValues(outcome).Inc()
	m.RoundTripDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePlayback(outcome string) {
	m.Playbacks.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer gives tests and embedders access to the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
