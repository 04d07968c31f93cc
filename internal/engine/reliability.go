package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/zkspend-gateway/internal/connectors"
	"github.com/xela07ax/zkspend-gateway/internal/domain"
)

// ExecutorOptions: настройки обертки вокруг платежного провайдера
type ExecutorOptions struct {
	CallTimeout   time.Duration
	Attempts      uint
	RateLimit     float64
	RateBurst     int
	CBMaxRequests uint32
	CBInterval    time.Duration
	CBTimeout     time.Duration

	OnStateChange func(name string, from, to gobreaker.State)
}

// ReliableExecutor: rate limiter -> circuit breaker -> retry.
// Повторяется только ThrottleError: провайдер отказал до исполнения,
// любой другой сбой может означать уже ушедший платеж.
type ReliableExecutor struct {
	next    PaymentExecutor
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	opts    ExecutorOptions
}

func NewReliableExecutor(next PaymentExecutor, opts ExecutorOptions, logger *zap.Logger) *ReliableExecutor {
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	logger = logger.Named("executor-reliability")

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payment-executor",
		MaxRequests: opts.CBMaxRequests,
		Interval:    opts.CBInterval,
		Timeout:     opts.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд: открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
		// Отмена запроса клиентом не говорит о здоровье провайдера
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
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

	return &ReliableExecutor{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(limit, burst),
		opts:    opts,
	}
}

func (w *ReliableExecutor) Execute(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return domain.PaymentResult{}, fmt.Errorf("rate limit exceeded: %w", err)
	}

	var result domain.PaymentResult

	// 2. Circuit Breaker
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.opts.Attempts),
			retry.RetryIf(isThrottle),
			// Провайдер сам говорит, сколько ждать (Retry-After)
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				var tErr *connectors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.opts.CallTimeout)
			defer cancel()

			var callErr error
			result, callErr = w.next.Execute(tCtx, req)
			return callErr
		})
		return nil, retryErr
	})
	if err != nil {
		return domain.PaymentResult{}, err
	}
	return result, nil
}

func isThrottle(err error) bool {
	var tErr *connectors.ThrottleError
	return errors.As(err, &tErr)
}
