package ens

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ReliabilityOptions: настройки обертки вокруг RPC
type ReliabilityOptions struct {
	CallTimeout   time.Duration
	Attempts      uint
	RetryDelay    time.Duration // Базовая задержка backoff
	RateLimit     float64
	RateBurst     int
	CBMaxRequests uint32
	CBInterval    time.Duration
	CBTimeout     time.Duration

	// OnStateChange дергается вместе с логом при смене состояния breaker (метрика)
	OnStateChange func(name string, from, to gobreaker.State)
}

// ReliableResolver оборачивает TextResolver: rate limiter -> circuit breaker -> retry с таймаутом.
// Ретраятся только временные сбои (Unavailable/Timeout); NotFound и пустые записи уходят сразу.
type ReliableResolver struct {
	next    TextResolver
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	opts    ReliabilityOptions
	logger  *zap.Logger
}

func NewReliableResolver(next TextResolver, opts ReliabilityOptions, logger *zap.Logger) *ReliableResolver {
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}

	logger = logger.Named("ens-reliability")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ens-rpc",
		MaxRequests: opts.CBMaxRequests,
		Interval:    opts.CBInterval,
		Timeout:     opts.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// Семантические ответы (нет записи, нет резолвера): не отказ RPC
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if opts.OnStateChange != nil {
				opts.OnStateChange(name, from, to)
			}
		},
	})

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &ReliableResolver{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(limit, burst),
		opts:    opts,
		logger:  logger,
	}
}

func (w *ReliableResolver) Text(ctx context.Context, name, key string) (string, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return "", &ResolutionError{Kind: KindUnavailable, Name: name, Err: err}
	}

	var (
		text    string
		lastErr error
	)

	// 2. Circuit Breaker
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.opts.Attempts),
			retry.Delay(w.opts.RetryDelay),
			retry.RetryIf(IsTransient),
			retry.DelayType(retry.BackOffDelay),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.opts.CallTimeout)
			defer cancel()

			var callErr error
			text, callErr = w.next.Text(tCtx, name, key)
			lastErr = callErr
			return callErr
		})
		if retryErr != nil && lastErr != nil {
			// Отдаем наверх исходную типизированную ошибку, а не агрегат ретраев
			return nil, lastErr
		}
		return nil, retryErr
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &ResolutionError{Kind: KindUnavailable, Name: name, Err: err}
		}
		if IsTransient(err) {
			w.logger.Warn("text record fetch failed",
				zap.String("name", name), zap.String("key", key), zap.Error(err))
		}
		return "", err
	}

	return text, nil
}
