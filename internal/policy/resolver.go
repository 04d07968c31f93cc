package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"github.com/xela07ax/zkspend-gateway/internal/ens"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -destination=mocks/mock_text_resolver.go -package=mocks github.com/xela07ax/zkspend-gateway/internal/ens TextResolver

// Resolver собирает политику из текстовых записей ENS и держит ее в кэше.
// Порядок: L1 (RAM) -> L2 (Redis, опционально) -> ENS.
type Resolver struct {
	fetcher ens.TextResolver
	cache   *Cache
	store   Store
	keys    Keys
	logger  *zap.Logger
}

type Option func(*Resolver)

// WithStore подключает L2-кэш
func WithStore(s Store) Option {
	return func(r *Resolver) { r.store = s }
}

func WithKeys(k Keys) Option {
	return func(r *Resolver) { r.keys = k }
}

func NewResolver(fetcher ens.TextResolver, cache *Cache, logger *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		cache:   cache,
		keys:    DefaultKeys(),
		logger:  logger.Named("policy-resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolvePolicy возвращает политику для ENS-имени.
// Ошибки: *PolicyError (записи нет/битая), *ens.ResolutionError (имя не резолвится / сеть).
func (r *Resolver) ResolvePolicy(ctx context.Context, name string) (domain.Policy, error) {
	// 1. Нормализация
	normalized, err := ens.Normalize(name)
	if err != nil {
		return domain.Policy{}, &ens.ResolutionError{Kind: ens.KindNotFound, Name: name, Err: err}
	}

	// 2. L1
	if p, ok := r.cache.Get(normalized); ok {
		r.logger.Debug("policy cache hit", zap.String("name", normalized))
		return p, nil
	}

	// 2.5 L2: ошибки Redis не фатальны, идем в ENS
	if r.store != nil {
		p, expiresAt, ok, err := r.store.Load(ctx, normalized)
		if err != nil {
			r.logger.Warn("policy L2 load failed", zap.String("name", normalized), zap.Error(err))
		} else if ok && r.cache.Now().Before(expiresAt) {
			r.cache.PutUntil(p, expiresAt)
			r.logger.Debug("policy L2 hit", zap.String("name", normalized))
			return p.Clone(), nil
		}
	}

	// 3. Параллельно тянем три записи
	raw, err := r.fetch(ctx, normalized)
	if err != nil {
		return domain.Policy{}, err
	}

	// 4-5. Парсинг и отпечаток
	p, err := BuildPolicy(normalized, r.keys, raw, r.cache.Now())
	if err != nil {
		r.logger.Warn("policy rejected", zap.String("name", normalized), zap.Error(err))
		return domain.Policy{}, err
	}

	// 6. Кэш
	expiresAt := r.cache.Put(p)
	if r.store != nil {
		if err := r.store.Save(ctx, p, expiresAt); err != nil {
			r.logger.Warn("policy L2 save failed", zap.String("name", normalized), zap.Error(err))
		}
	}

	r.logger.Info("policy resolved",
		zap.String("name", normalized),
		zap.String("max_spend", p.MaxSpend.String()),
		zap.Strings("allowed_actions", p.AllowedActions),
		zap.String("version", p.Version),
		zap.String("fingerprint", p.Fingerprint),
	)
	return p, nil
}

type fetchResult struct {
	value string
	err   error
}

// fetch переживает частичные отказы: упавшая запись считается отсутствующей.
// Если же отсутствует обязательная запись и причина: сбой резолвинга,
// отдаем ResolutionError, чтобы не выдать сетевую проблему за "политика не настроена".
func (r *Resolver) fetch(ctx context.Context, name string) (RawRecords, error) {
	keys := []string{r.keys.MaxSpend, r.keys.AllowedActions, r.keys.Version}
	results := make([]fetchResult, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			v, err := r.fetcher.Text(gctx, name, key)
			results[i] = fetchResult{value: v, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return RawRecords{}, fmt.Errorf("policy %s: %w", name, err)
	}

	for i, res := range results {
		if res.err != nil && !errors.Is(res.err, ens.ErrRecordNotSet) {
			r.logger.Warn("text record fetch failed",
				zap.String("name", name), zap.String("key", keys[i]), zap.Error(res.err))
		}
	}

	// Обязательные записи: maxSpend, allowedActions
	for _, res := range results[:2] {
		if res.value != "" {
			continue
		}
		var rErr *ens.ResolutionError
		if errors.As(res.err, &rErr) {
			return RawRecords{}, rErr
		}
	}

	return RawRecords{
		MaxSpend:       results[0].value,
		AllowedActions: results[1].value,
		Version:        results[2].value,
	}, nil
}

// Invalidate сбрасывает одну запись в L1 и L2.
func (r *Resolver) Invalidate(ctx context.Context, name string) error {
	normalized, err := ens.Normalize(name)
	if err != nil {
		return err
	}
	r.cache.Invalidate(normalized)
	if r.store != nil {
		return r.store.Delete(ctx, normalized)
	}
	return nil
}

// ClearCache сбрасывает L1 (изоляция тестов, сигнал "*").
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}
