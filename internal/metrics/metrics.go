package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/not-nullexception/render-thumbnails/config"
	"github.com/not-nullexception/render-thumbnails/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Transform and file outcomes used as the status label
const (
	StatusRendered = "rendered"
	StatusCached   = "cached"
	StatusError    = "error"
	StatusFailed   = "failed"

	StatusProcessed    = "processed"
	StatusNotFound     = "not_found"
	StatusLookupFailed = "lookup_failed"
)

var (
	// TransformsTotal counts transform attempts by outcome
	TransformsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_thumbnails_transforms_total",
			Help: "The total number of thumbnail transforms attempted",
		},
		[]string{"status"},
	)

	// TransformDuration measures the duration of a single transform
	TransformDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_thumbnails_transform_duration_seconds",
			Help:    "The duration of thumbnail transforms in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // From 10ms to ~40s
		},
		[]string{"status"},
	)

	// FilesTotal counts files visited by outcome
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_thumbnails_files_total",
			Help: "The total number of files visited",
		},
		[]string{"status"},
	)

	// PagesTotal counts repository pages fetched during a full scan
	PagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_thumbnails_pages_total",
			Help: "The total number of file name pages fetched",
		},
	)

	// LastRunTimestamp is set when a run completes
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_thumbnails_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		},
	)
)

// RecordTransform records the outcome and time taken by one transform
func RecordTransform(ctx context.Context, status string, startTime time.Time) {
	duration := time.Since(startTime).Seconds()
	TransformDuration.WithLabelValues(status).Observe(duration)
	TransformsTotal.WithLabelValues(status).Inc()

	reqLogger := logger.FromContext(ctx)

	reqLogger.Debug().
		Str("status", status).
		Float64("duration_seconds", duration).
		Msg("Recorded transform")
}

// RecordFile records the outcome for one file
func RecordFile(status string) {
	FilesTotal.WithLabelValues(status).Inc()
}

// RecordPage counts one fetched page
func RecordPage() {
	PagesTotal.Inc()
}

// Push sends the collected metrics to the configured Pushgateway. It is a
// no-op when no gateway is configured.
func Push(ctx context.Context, cfg *config.MetricsConfig) error {
	log := logger.GetLogger("metrics")
	if cfg.Pushgateway == "" {
		log.Debug().Msg("Pushgateway not configured, skipping push")
		return nil
	}

	LastRunTimestamp.SetToCurrentTime()

	err := push.New(cfg.Pushgateway, cfg.Job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("error pushing metrics: %w", err)
	}

	log.Info().Str("gateway", cfg.Pushgateway).Str("job", cfg.Job).Msg("Metrics pushed")
	return nil
}
