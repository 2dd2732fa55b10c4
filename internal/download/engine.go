// Package download implements the bounded-concurrency, rate-limited
// file transfer engine.
package download

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/openinsure/irdai-harvester/internal/harvest"
	"github.com/openinsure/irdai-harvester/internal/telemetry"
)

// Config controls Engine behavior.
type Config struct {
	MaxConcurrency int
	// RateLimit caps aggregate transfer start rate in operations per
	// second. Zero means unlimited. The token is acquired before every
	// attempt, retries included.
	RateLimit      float64
	RetryAttempts  int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	UserAgent      string
	// InsecureSkipVerify disables TLS verification for the portal's
	// defective certificate chain.
	InsecureSkipVerify bool
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 10
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Minute
	}
	return c
}

// Engine executes download batches. A single bad task never aborts a
// batch; every failure is captured as a result.
type Engine struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
}

// NewEngine constructs an Engine with a shared HTTP client and a token
// bucket sized from cfg.RateLimit.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	cfg = cfg.withDefaults()

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxConcurrency * 2,
		MaxIdleConnsPerHost: cfg.MaxConcurrency,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, // #nosec G402 -- portal certificate defect
	}

	return &Engine{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
		logger:  logger,
	}
}

// Batch downloads every task under the concurrency and rate caps,
// returning exactly one result per task, in input order.
func (e *Engine) Batch(ctx context.Context, tasks []harvest.DownloadTask) []harvest.DownloadResult {
	results := make([]harvest.DownloadResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = e.Download(gctx, task)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Download runs one task with per-attempt rate limiting and linear
// backoff on transient failures.
func (e *Engine) Download(ctx context.Context, task harvest.DownloadTask) harvest.DownloadResult {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.RetryAttempts; attempt++ {
		if err := e.waitForToken(ctx); err != nil {
			return e.failure(task, err)
		}

		bytesWritten, err := e.transfer(ctx, task)
		if err == nil {
			telemetry.IncDownload("ok")
			telemetry.AddDownloadBytes(bytesWritten)
			return harvest.DownloadResult{
				URL:           task.URL,
				CorrelationID: task.CorrelationID,
				Success:       true,
				Path:          task.Destination,
				Bytes:         bytesWritten,
			}
		}
		lastErr = err

		if !isTransient(err) || attempt == e.cfg.RetryAttempts {
			break
		}
		e.logger.Debug("retrying download",
			zap.String("url", task.URL),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if err := sleepCtx(ctx, e.cfg.RetryDelay*time.Duration(attempt)); err != nil {
			return e.failure(task, err)
		}
	}
	return e.failure(task, lastErr)
}

func (e *Engine) failure(task harvest.DownloadTask, err error) harvest.DownloadResult {
	if err == nil {
		err = errors.New("max retries exceeded")
	}
	telemetry.IncDownload("error")
	return harvest.DownloadResult{
		URL:           task.URL,
		CorrelationID: task.CorrelationID,
		Path:          task.Destination,
		Err:           err.Error(),
	}
}

func (e *Engine) waitForToken(ctx context.Context) error {
	start := time.Now()
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		telemetry.ObserveRateLimitDelay(waited)
	}
	return nil
}

// transfer streams the response body to the destination. Partial writes
// on failure are not cleaned up; a failed result's destination must
// never be trusted.
func (e *Engine) transfer(ctx context.Context, task harvest.DownloadTask) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, &harvest.TransportError{URL: task.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &harvest.TransportError{URL: task.URL, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(task.Destination), 0o750); err != nil {
		return 0, &harvest.StorageError{Op: "mkdir", Key: task.Destination, Err: err}
	}
	out, err := os.Create(task.Destination) // #nosec G304 -- destination derived from the schema path template
	if err != nil {
		return 0, &harvest.StorageError{Op: "create", Key: task.Destination, Err: err}
	}

	written, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		return written, &harvest.TransportError{URL: task.URL, Err: err}
	}
	if closeErr != nil {
		return written, &harvest.StorageError{Op: "close", Key: task.Destination, Err: closeErr}
	}
	return written, nil
}

// isTransient reports whether the error deserves a retry: network and
// HTTP failures do, malformed destinations and canceled contexts do not.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if harvest.IsTransport(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
