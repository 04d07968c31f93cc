package connectors

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"go.uber.org/zap"
)

// ErrProviderBusy: причина ThrottleError у симулятора
var ErrProviderBusy = errors.New("payment provider busy")

// SimulatorOptions: поведение симулированного платежного провайдера
type SimulatorOptions struct {
	MinLatency time.Duration
	MaxLatency time.Duration
	// ThrottleRate: доля запросов, отклоненных с ThrottleError [0..1]
	ThrottleRate float64
	RetryAfter   time.Duration
}

// PaymentSimulator имитирует исполнение платежа: задержка, хэш транзакции,
// иногда отказ "повторите позже". Ончейн-взаимодействия нет.
type PaymentSimulator struct {
	opts   SimulatorOptions
	logger *zap.Logger
}

func NewPaymentSimulator(opts SimulatorOptions, logger *zap.Logger) *PaymentSimulator {
	if opts.MaxLatency < opts.MinLatency {
		opts.MaxLatency = opts.MinLatency
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 100 * time.Millisecond
	}
	return &PaymentSimulator{
		opts:   opts,
		logger: logger.Named("payment-simulator"),
	}
}

func (s *PaymentSimulator) Execute(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	latency := s.opts.MinLatency
	if spread := s.opts.MaxLatency - s.opts.MinLatency; spread > 0 {
		latency += time.Duration(mrand.Int64N(int64(spread)))
	}

	select {
	case <-time.After(latency):
		// Имитация работы
	case <-ctx.Done():
		return domain.PaymentResult{}, ctx.Err()
	}

	if s.opts.ThrottleRate > 0 && mrand.Float64() < s.opts.ThrottleRate {
		return domain.PaymentResult{}, &ThrottleError{RetryAfter: s.opts.RetryAfter, Cause: ErrProviderBusy}
	}

	// Невалидный получатель: провайдер принял запрос, но платеж не прошел
	if !common.IsHexAddress(req.Recipient) {
		s.logger.Info("payment failed: invalid recipient", zap.String("recipient", req.Recipient))
		return domain.PaymentResult{Success: false, Status: domain.PaymentFailed}, nil
	}

	hash, err := randomTxHash()
	if err != nil {
		return domain.PaymentResult{}, err
	}

	s.logger.Debug("payment simulated",
		zap.String("recipient", req.Recipient),
		zap.String("tx_hash", hash),
		zap.Duration("latency", latency),
	)
	return domain.PaymentResult{Success: true, TransactionHash: hash, Status: domain.PaymentConfirmed}, nil
}

func randomTxHash() (string, error) {
	var b [common.HashLength]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("tx hash: %w", err)
	}
	return common.BytesToHash(b[:]).Hex(), nil
}
