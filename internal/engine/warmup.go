package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/zkspend-gateway/internal/infra"
)

const warmupLockTTL = 30 * time.Second

// WarmupPolicies заранее резолвит политики из конфига, чтобы первый платеж
// не ждал ENS. rdb может быть nil (одиночный инстанс без L2).
// Возвращает число прогретых политик; битые имена только логируются.
func WarmupPolicies(
	ctx context.Context,
	rdb *redis.Client,
	resolver PolicyResolver,
	names []string,
	logger *zap.Logger,
) int {
	if len(names) == 0 {
		return 0
	}
	logger = logger.Named("warmup")

	// Распределенная блокировка (SetNX), чтобы в ENS шел только один инстанс.
	// Остальные получат политики из L2 при первом запросе.
	if rdb != nil {
		ok, err := rdb.SetNX(ctx, infra.RedisKeyPolicyWarmupLock, "processing", warmupLockTTL).Result()
		if err != nil {
			logger.Warn("could not acquire warm-up lock, proceeding without it", zap.Error(err))
		} else if !ok {
			logger.Info("policy warm-up is performed by another instance")
			return 0
		}
	}

	warmed := 0
	for _, name := range names {
		p, err := resolver.ResolvePolicy(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return warmed
			}
			logger.Warn("policy warm-up failed", zap.String("name", name), zap.Error(err))
			continue
		}
		warmed++
		logger.Debug("policy warmed",
			zap.String("name", p.SourceName),
			zap.String("version", p.Version),
			zap.String("max_spend", p.MaxSpend.String()),
		)
	}

	logger.Info("policy warm-up finished", zap.Int("warmed", warmed), zap.Int("total", len(names)))
	return warmed
}
