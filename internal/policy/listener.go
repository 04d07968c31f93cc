package policy

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/zkspend-gateway/internal/ens"
	"github.com/xela07ax/zkspend-gateway/internal/infra"
	"go.uber.org/zap"
)

// StartInvalidationListener: "живучая" подписка на канал инвалидации.
// Блокирует до отмены ctx; запускать в отдельной горутине.
func (r *Resolver) StartInvalidationListener(ctx context.Context, rdb *redis.Client) {
	logger := r.logger.With(zap.String("chan", infra.RedisChanPolicyInvalidate))

	for {
		pubsub := rdb.Subscribe(ctx, infra.RedisChanPolicyInvalidate)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to subscribe", zap.Error(err))
			if !sleepCtx(ctx, 5*time.Second) {
				return
			}
			continue
		}

		// Пока нас не было, сигналы могли потеряться: начинаем с чистого L1
		r.ClearCache()

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				r.handleInvalidation(msg.Payload, logger)
			}
		}

		pubsub.Close()
		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func (r *Resolver) handleInvalidation(payload string, logger *zap.Logger) {
	payload = strings.TrimSpace(payload)
	switch payload {
	case "":
		logger.Error("invalid invalidation signal", zap.String("payload", payload))
	case "*":
		r.ClearCache()
		logger.Info("policy cache cleared by signal")
	default:
		normalized, err := ens.Normalize(payload)
		if err != nil {
			logger.Error("invalid invalidation signal", zap.String("payload", payload), zap.Error(err))
			return
		}
		// Только L1: L2 чистит тот, кто публикует сигнал
		r.cache.Invalidate(normalized)
		logger.Info("policy invalidated by signal", zap.String("name", normalized))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
