package cli

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/xela07ax/zkspend-gateway/internal/ens"
	"github.com/xela07ax/zkspend-gateway/internal/infra"
	"github.com/xela07ax/zkspend-gateway/internal/policy"
	"github.com/xela07ax/zkspend-gateway/internal/prover"
)

// app: конфиг и логгер, общие для всех команд
type app struct {
	cfg    *infra.Config
	logger *zap.Logger
}

func loadApp() (*app, error) {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// redis возвращает nil, если L2 не настроен
func (a *app) redis() *redis.Client {
	if a.cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
}

// resolver собирает цепочку ethclient -> ens.Client -> ReliableResolver -> policy.Resolver.
// Возвращаемый close закрывает RPC-соединение.
func (a *app) resolver(
	ctx context.Context,
	rdb *redis.Client,
	onBreaker func(name string, from, to gobreaker.State),
) (*policy.Resolver, func(), error) {
	ec := a.cfg.ENS
	if !common.IsHexAddress(ec.RegistryAddress) {
		return nil, nil, fmt.Errorf("ens: invalid registry address %q", ec.RegistryAddress)
	}

	eth, err := ethclient.DialContext(ctx, ec.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("ens: dial %s: %w", ec.RPCURL, err)
	}

	client := ens.NewClient(eth, common.HexToAddress(ec.RegistryAddress), a.logger)
	reliable := ens.NewReliableResolver(client, ens.ReliabilityOptions{
		CallTimeout:   ec.CallTimeout,
		Attempts:      ec.RetryAttempts,
		RetryDelay:    ec.RetryDelay,
		RateLimit:     ec.RateLimit,
		RateBurst:     ec.RateBurst,
		CBMaxRequests: ec.CBMaxRequests,
		CBInterval:    ec.CBInterval,
		CBTimeout:     ec.CBTimeout,
		OnStateChange: onBreaker,
	}, a.logger)

	opts := []policy.Option{policy.WithKeys(policy.Keys{
		MaxSpend:       a.cfg.Policy.MaxSpendKey,
		AllowedActions: a.cfg.Policy.AllowedActionsKey,
		Version:        a.cfg.Policy.VersionKey,
	})}
	if rdb != nil {
		opts = append(opts, policy.WithStore(policy.NewRedisStore(rdb)))
	}

	r := policy.NewResolver(reliable, policy.NewCache(a.cfg.Policy.CacheTTL, nil), a.logger, opts...)
	return r, eth.Close, nil
}

func (a *app) artifacts() *prover.Artifacts {
	return prover.NewArtifacts(prover.ArtifactPaths{
		Circuit:      a.cfg.Prover.CircuitPath,
		ProvingKey:   a.cfg.Prover.ProvingKeyPath,
		VerifyingKey: a.cfg.Prover.VerifyingKeyPath,
	}, a.logger)
}

func (a *app) proverOptions() prover.Options {
	return prover.Options{
		Strict:      a.cfg.Prover.Strict,
		Concurrency: int64(a.cfg.Prover.Concurrency),
	}
}

// invalidator чистит L1/L2 локально и рассылает сигнал остальным инстансам
type invalidator struct {
	resolver *policy.Resolver
	rdb      *redis.Client
}

func (i invalidator) Invalidate(ctx context.Context, name string) error {
	if err := i.resolver.Invalidate(ctx, name); err != nil {
		return err
	}
	if i.rdb == nil {
		return nil
	}
	normalized, err := ens.Normalize(name)
	if err != nil {
		return err
	}
	return policy.PublishInvalidation(ctx, i.rdb, normalized)
}
