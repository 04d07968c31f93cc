package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xela07ax/zkspend-gateway/internal/audit"
	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"github.com/xela07ax/zkspend-gateway/internal/ens"
	"github.com/xela07ax/zkspend-gateway/internal/infra/auth"
	"github.com/xela07ax/zkspend-gateway/internal/policy"
)

type PolicyResolver interface {
	ResolvePolicy(ctx context.Context, name string) (domain.Policy, error)
}

type ProofGenerator interface {
	GenerateProof(ctx context.Context, req domain.ProofInputs) (*domain.ZKProof, error)
}

type ProofVerifier interface {
	Verify(ctx context.Context, proof *domain.ZKProof) (domain.VerificationResult, error)
	VerifyWithSignals(ctx context.Context, proof *domain.ZKProof) (domain.VerificationResult, error)
}

// PaymentExecutor: исполнитель платежа (симулятор, за ним ReliableExecutor)
type PaymentExecutor interface {
	Execute(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error)
}

// Gateway собирает пайплайн шлюза: политика из ENS -> проверка -> доказательство -> платеж.
// Сумма платежа наружу (аудит, логи) не уходит, вместо нее commitment.
type Gateway struct {
	policies PolicyResolver
	prover   ProofGenerator
	verifier ProofVerifier
	executor PaymentExecutor
	auditor  audit.Auditor
	metrics  *Metrics
	logger   *zap.Logger
}

func NewGateway(
	policies PolicyResolver,
	prover ProofGenerator,
	verifier ProofVerifier,
	executor PaymentExecutor,
	auditor audit.Auditor,
	metrics *Metrics,
	logger *zap.Logger,
) *Gateway {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Gateway{
		policies: policies,
		prover:   prover,
		verifier: verifier,
		executor: executor,
		auditor:  auditor,
		metrics:  metrics,
		logger:   logger.Named("gateway"),
	}
}

// Policy отдает текущую политику имени (через кэш резолвера)
func (g *Gateway) Policy(ctx context.Context, name string) (domain.Policy, error) {
	start := time.Now()
	p, err := g.policies.ResolvePolicy(ctx, name)
	g.observe("policy", start, err)
	return p, err
}

// Prove доказывает, что amount укладывается в лимит политики name.
// Превышение лимита отклоняется до генерации.
func (g *Gateway) Prove(ctx context.Context, amount decimal.Decimal, name string) (resp *domain.ProofResponse, err error) {
	start := time.Now()
	event := g.newEvent(ctx, audit.OpProve, name)
	defer func() { g.finish(audit.OpProve, start, &event, err) }()

	p, err := g.policies.ResolvePolicy(ctx, name)
	if err != nil {
		return nil, err
	}
	event.PolicyName, event.PolicyVersion, event.Fingerprint = p.SourceName, p.Version, p.Fingerprint

	if err := checkLimit(p, amount); err != nil {
		return nil, err
	}

	proof, err := g.generate(ctx, p, amount)
	if err != nil {
		return nil, err
	}
	event.ProofKind, event.Commitment = string(proof.Kind), proof.Commitment

	return &domain.ProofResponse{Proof: proof, Policy: p.Summary()}, nil
}

// ProcessPayment выполняет полный цикл: действие и лимит проверяются по политике,
// затем строится доказательство и только после этого вызывается исполнитель.
func (g *Gateway) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (resp *domain.PaymentResponse, err error) {
	start := time.Now()
	event := g.newEvent(ctx, audit.OpPayment, req.PolicyName)
	event.Recipient = req.Recipient
	defer func() { g.finish(audit.OpPayment, start, &event, err) }()

	if strings.TrimSpace(req.Action) == "" {
		req.Action = domain.DefaultAction
	}

	p, err := g.policies.ResolvePolicy(ctx, req.PolicyName)
	if err != nil {
		return nil, err
	}
	event.PolicyName, event.PolicyVersion, event.Fingerprint = p.SourceName, p.Version, p.Fingerprint

	if !policy.IsActionAllowed(p, req.Action) {
		return nil, &domain.ComplianceError{
			Reason:   domain.ReasonActionNotAllowed,
			Amount:   req.Amount,
			MaxSpend: p.MaxSpend,
			Action:   req.Action,
		}
	}
	if err := checkLimit(p, req.Amount); err != nil {
		return nil, err
	}

	proof, err := g.generate(ctx, p, req.Amount)
	if err != nil {
		return nil, err
	}
	event.ProofKind, event.Commitment = string(proof.Kind), proof.Commitment

	result, err := g.executor.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("payment execution: %w", err)
	}
	event.TxHash = result.TransactionHash
	if !result.Success {
		// Провайдер отклонил платеж: это ответ, а не сбой шлюза
		event.Status = audit.StatusFailed
		event.Error = "payment " + string(result.Status)
	}

	return &domain.PaymentResponse{Payment: result, Proof: proof, Policy: p.Summary()}, nil
}

// Verify проверяет доказательство. withSignals дополнительно раскрывает
// commitment и флаг валидности из публичных сигналов.
func (g *Gateway) Verify(ctx context.Context, proof *domain.ZKProof, withSignals bool) (res domain.VerificationResult, err error) {
	start := time.Now()
	event := g.newEvent(ctx, audit.OpVerify, "")
	defer func() { g.finish(audit.OpVerify, start, &event, err) }()

	if proof == nil {
		return domain.VerificationResult{}, errors.New("verify: proof is required")
	}
	event.ProofKind, event.Commitment = string(proof.Kind), proof.Commitment

	if withSignals {
		res, err = g.verifier.VerifyWithSignals(ctx, proof)
	} else {
		res, err = g.verifier.Verify(ctx, proof)
	}
	if err != nil {
		return res, err
	}
	if !res.Valid {
		event.Status = audit.StatusRejected
		event.Error = res.Error
	}
	return res, nil
}

func (g *Gateway) generate(ctx context.Context, p domain.Policy, amount decimal.Decimal) (*domain.ZKProof, error) {
	start := time.Now()
	proof, err := g.prover.GenerateProof(ctx, domain.ProofInputs{
		Amount:      amount,
		MaxSpend:    p.MaxSpend,
		Fingerprint: p.Fingerprint,
	})
	if err != nil {
		return nil, err
	}

	kind := string(proof.Kind)
	g.metrics.ProofsTotal.WithLabelValues(kind).Inc()
	g.metrics.ProofDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if proof.IsMock() {
		g.logger.Warn("mock proof issued",
			zap.String("trace_id", TraceIDFrom(ctx)),
			zap.String("policy", p.SourceName),
			zap.String("reason", proof.MockReason),
		)
	}
	return proof, nil
}

func checkLimit(p domain.Policy, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &domain.ComplianceError{Reason: domain.ReasonNegativeAmount, Amount: amount, MaxSpend: p.MaxSpend}
	}
	if !policy.IsAmountWithinLimit(p, amount) {
		return &domain.ComplianceError{Reason: domain.ReasonLimitExceeded, Amount: amount, MaxSpend: p.MaxSpend}
	}
	return nil
}

func (g *Gateway) newEvent(ctx context.Context, op, policyName string) audit.AuditEvent {
	return audit.AuditEvent{
		ID:         uuid.New().String(),
		TraceID:    TraceIDFrom(ctx),
		AgentID:    auth.AgentIDFrom(ctx),
		Operation:  op,
		PolicyName: policyName,
		Timestamp:  time.Now(),
	}
}

// finish закрывает событие аудита и пишет метрики операции
func (g *Gateway) finish(op string, start time.Time, event *audit.AuditEvent, err error) {
	event.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		event.Status, _ = classify(err)
		event.Error = err.Error()
	} else if event.Status == "" {
		event.Status = audit.StatusSuccess
	}

	g.auditor.Log(*event)
	g.observe(strings.ToLower(op), start, err)

	if err != nil {
		g.logger.Info("request rejected",
			zap.String("trace_id", event.TraceID),
			zap.String("operation", op),
			zap.String("policy", event.PolicyName),
			zap.String("status", event.Status),
			zap.Error(err),
		)
	}
}

func (g *Gateway) observe(op string, start time.Time, err error) {
	status := audit.StatusSuccess
	if err != nil {
		var errType string
		status, errType = classify(err)
		g.metrics.ErrorTotal.WithLabelValues(errType).Inc()
	}
	g.metrics.TotalRequests.WithLabelValues(op, status).Inc()
	g.metrics.RequestDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// classify раскладывает ошибку на статус аудита и тип для метрики
func classify(err error) (status, errType string) {
	var (
		cErr *domain.ComplianceError
		pErr *policy.PolicyError
		rErr *ens.ResolutionError
	)
	switch {
	case errors.As(err, &cErr):
		return audit.StatusRejected, "compliance_" + strings.ToLower(string(cErr.Reason))
	case errors.As(err, &pErr):
		return audit.StatusPolicyError, "policy"
	case errors.As(err, &rErr):
		return audit.StatusPolicyError, "resolution_" + strings.ToLower(string(rErr.Kind))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return audit.StatusFailed, "canceled"
	default:
		return audit.StatusFailed, "internal"
	}
}
