// Package telemetry exposes Prometheus metrics for the harvest pipeline.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	pagesScrapedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_pages_scraped_total",
			Help: "Listing pages fetched, labeled by source type and outcome.",
		},
		[]string{"source_type", "outcome"},
	)

	recordsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_records_extracted_total",
			Help: "Product records extracted, labeled by source type.",
		},
		[]string{"source_type"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_downloads_total",
			Help: "Document downloads, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	downloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_download_bytes_total",
			Help: "Bytes written by the download engine.",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_uploads_total",
			Help: "Object storage uploads, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	rateLimitDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_rate_limit_delay_seconds",
			Help:    "Delay introduced by the download rate limiter.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
)

// IncPageScraped counts one page fetch attempt.
func IncPageScraped(sourceType, outcome string) {
	pagesScrapedTotal.WithLabelValues(sourceType, outcome).Inc()
}

// AddRecordsExtracted counts extracted records for a source type.
func AddRecordsExtracted(sourceType string, n int) {
	if n > 0 {
		recordsExtractedTotal.WithLabelValues(sourceType).Add(float64(n))
	}
}

// IncDownload counts one finished download task.
func IncDownload(outcome string) {
	downloadsTotal.WithLabelValues(outcome).Inc()
}

// AddDownloadBytes counts bytes streamed to disk.
func AddDownloadBytes(n int64) {
	if n > 0 {
		downloadBytesTotal.Add(float64(n))
	}
}

// IncUpload counts one object storage upload attempt.
func IncUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records time spent waiting on the token bucket.
func ObserveRateLimitDelay(d time.Duration) {
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// Serve runs a /metrics endpoint until the context finishes. Addr may be
// empty, in which case Serve returns immediately.
func Serve(ctx context.Context, addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
