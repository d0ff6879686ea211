package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/draftly/server/internal/shared/config"
	"github.com/draftly/server/internal/shared/metrics"
)

// Gateway fronts the external generation models with per-call timeouts,
// bounded retries and circuit breakers. Each model endpoint gets its own
// breaker so a raster outage does not trip the vector path.
type Gateway struct {
	raster ImageGenerator
	vector VectorGenerator

	rasterBreaker *gobreaker.CircuitBreaker[[]Image]
	vectorBreaker *gobreaker.CircuitBreaker[string]

	rasterModel string
	vectorModel string

	callTimeout  time.Duration
	maxRetries   int
	retryBackoff time.Duration

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a gateway over the configured model clients.
func New(cfg *config.ModelsConfig, m *metrics.Metrics, logger *zap.Logger) *Gateway {
	return NewWithClients(cfg, NewRasterClient(&cfg.Raster), NewVectorClient(&cfg.Vector), m, logger)
}

// NewWithClients creates a gateway with explicit clients. Tests use this to
// substitute fake generators.
func NewWithClients(cfg *config.ModelsConfig, raster ImageGenerator, vector VectorGenerator, m *metrics.Metrics, logger *zap.Logger) *Gateway {
	return &Gateway{
		raster:        raster,
		vector:        vector,
		rasterBreaker: gobreaker.NewCircuitBreaker[[]Image](breakerSettings("raster", cfg.BreakerTimeout)),
		vectorBreaker: gobreaker.NewCircuitBreaker[string](breakerSettings("vector", cfg.BreakerTimeout)),
		rasterModel:   cfg.Raster.Model,
		vectorModel:   cfg.Vector.Model,
		callTimeout:   cfg.CallTimeout,
		maxRetries:    cfg.MaxRetries,
		retryBackoff:  cfg.RetryBackoff,
		metrics:       m,
		logger:        logger,
	}
}

func breakerSettings(name string, timeout time.Duration) gobreaker.Settings {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// GenerateImages produces the raster batch for a prompt.
func (g *Gateway) GenerateImages(ctx context.Context, prompt, size string) ([]Image, error) {
	return attempt(ctx, g, g.rasterModel, func(callCtx context.Context) ([]Image, error) {
		return g.rasterBreaker.Execute(func() ([]Image, error) {
			return g.raster.GenerateImages(callCtx, prompt, size)
		})
	})
}

// GenerateVector produces the SVG document for a prompt grounded on the
// raster batch.
func (g *Gateway) GenerateVector(ctx context.Context, prompt, designType, size string, imageURLs []string) (string, error) {
	return attempt(ctx, g, g.vectorModel, func(callCtx context.Context) (string, error) {
		return g.vectorBreaker.Execute(func() (string, error) {
			return g.vector.GenerateVector(callCtx, prompt, designType, size, imageURLs)
		})
	})
}

// attempt runs one model call with timeout, retry and metric recording.
// Only transient failures are retried; bad requests, quota and content
// policy rejections surface to the caller immediately.
func attempt[T any](ctx context.Context, g *Gateway, model string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for try := 0; try <= g.maxRetries; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				return zero, newModelError(model, KindTransient, ctx.Err())
			case <-time.After(g.retryBackoff * time.Duration(try)):
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if g.callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.callTimeout)
		}

		start := time.Now()
		result, err := call(callCtx)
		if cancel != nil {
			cancel()
		}
		g.recordCall(model, err, time.Since(start))

		if err == nil {
			return result, nil
		}
		lastErr = normalizeError(model, err)

		merr, ok := AsModelError(lastErr)
		if !ok || !merr.Retryable() {
			return zero, lastErr
		}
		g.logger.Warn("model call failed, retrying",
			zap.String("model", model),
			zap.Int("attempt", try+1),
			zap.Error(err),
		)
	}

	return zero, lastErr
}

// normalizeError maps breaker rejections onto the transient error kind so
// callers see a uniform taxonomy.
func normalizeError(model string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return newModelError(model, KindTransient, err)
	}
	if _, ok := AsModelError(err); ok {
		return err
	}
	return newModelError(model, KindTransient, err)
}

func (g *Gateway) recordCall(model string, err error, duration time.Duration) {
	if g.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		if merr, ok := AsModelError(err); ok {
			status = string(merr.Kind)
		}
	}
	g.metrics.RecordModelCall(model, status, duration)
}
