package prover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	"github.com/shopspring/decimal"
	"github.com/xela07ax/zkspend-gateway/internal/circuit"
	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Options: режимы работы генератора и верификатора
type Options struct {
	// Strict запрещает заглушки: нет артефактов или Prove упал, возвращаем ошибку.
	Strict bool
	// Concurrency ограничивает число одновременных Groth16 Prove (CPU-bound).
	Concurrency int64
	// Now: источник времени для GeneratedAt
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Generator строит доказательства соответствия суммы политике.
type Generator struct {
	artifacts *Artifacts
	opts      Options
	sem       *semaphore.Weighted
	logger    *zap.Logger
}

func NewGenerator(artifacts *Artifacts, opts Options, logger *zap.Logger) *Generator {
	opts = opts.withDefaults()
	return &Generator{
		artifacts: artifacts,
		opts:      opts,
		sem:       semaphore.NewWeighted(opts.Concurrency),
		logger:    logger.Named("prover"),
	}
}

// scaledInputs: входы схемы в целочисленном виде
type scaledInputs struct {
	amount      *big.Int
	maxSpend    *big.Int
	fingerprint *big.Int
	commitment  *big.Int
}

// ComputeCommitment: Poseidon2(scale(amount), fingerprint), то же значение,
// что схема выдает первым публичным сигналом.
func (g *Generator) ComputeCommitment(amount decimal.Decimal, fingerprint string) (string, error) {
	scaled, err := circuit.Scale(amount)
	if err != nil {
		return "", scaleError(err, domain.ProofInputs{Amount: amount})
	}
	fp, err := circuit.ParseFieldElement(fingerprint)
	if err != nil {
		return "", fmt.Errorf("prover: fingerprint: %w", err)
	}
	c, err := circuit.Commitment(scaled, fp)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// GenerateProof строит доказательство amount <= maxSpend.
// Без артефактов (или при сбое Prove) отдает заглушку с Kind=mock, если не включен Strict.
func (g *Generator) GenerateProof(ctx context.Context, req domain.ProofInputs) (*domain.ZKProof, error) {
	in, err := prepare(req)
	if err != nil {
		return nil, err
	}

	if !g.artifacts.ProvingAvailable() {
		if g.opts.Strict {
			return nil, ErrArtifactsMissing
		}
		g.logger.Warn("circuit artifacts not found, generating mock proof",
			zap.String("circuit", g.artifacts.Paths().Circuit))
		return g.mock(req, in, "circuit artifacts not found")
	}

	proof, err := g.prove(ctx, in)
	if err == nil {
		return proof, nil
	}
	if ctx.Err() != nil || g.opts.Strict {
		return nil, err
	}

	g.logger.Error("proof generation failed, falling back to mock", zap.Error(err))
	return g.mock(req, in, err.Error())
}

func (g *Generator) prove(ctx context.Context, in scaledInputs) (*domain.ZKProof, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	cs, pk, err := g.artifacts.ProvingSet()
	if err != nil {
		return nil, err
	}

	full, err := frontend.NewWitness(
		circuit.Assignment(in.amount, in.maxSpend, in.fingerprint, in.commitment),
		circuit.Curve.ScalarField(),
	)
	if err != nil {
		return nil, fmt.Errorf("prover: build witness: %w", err)
	}

	start := time.Now()
	proof, err := groth16.Prove(cs, pk, full)
	if err != nil {
		return nil, fmt.Errorf("prover: groth16 prove: %w", err)
	}
	g.logger.Debug("groth16 proof generated", zap.Duration("took", time.Since(start)))

	public, err := full.Public()
	if err != nil {
		return nil, fmt.Errorf("prover: public witness: %w", err)
	}
	signals, err := publicSignals(public)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("prover: serialize proof: %w", err)
	}

	return &domain.ZKProof{
		Kind:          domain.ProofKindReal,
		ProofData:     buf.Bytes(),
		PublicSignals: signals,
		Commitment:    signals[domain.SignalCommitment],
		Verified:      g.selfVerify(proof, public),
		GeneratedAt:   g.opts.Now().UTC(),
	}, nil
}

// selfVerify проверяет только что созданное доказательство; отсутствие vk не фатально.
func (g *Generator) selfVerify(proof groth16.Proof, public witness.Witness) bool {
	if !g.artifacts.VerifyingAvailable() {
		return false
	}
	vk, err := g.artifacts.VerifyingKey()
	if err != nil {
		g.logger.Warn("self-verification skipped", zap.Error(err))
		return false
	}
	if err := groth16.Verify(proof, vk, public); err != nil {
		g.logger.Error("freshly generated proof failed verification", zap.Error(err))
		return false
	}
	return true
}

func (g *Generator) mock(req domain.ProofInputs, in scaledInputs, reason string) (*domain.ZKProof, error) {
	if in.amount.Cmp(in.maxSpend) > 0 {
		return nil, &domain.ComplianceError{
			Reason:   domain.ReasonLimitExceeded,
			Amount:   req.Amount,
			MaxSpend: req.MaxSpend,
		}
	}

	signals := signalStrings(in.commitment, big.NewInt(1), in.maxSpend, in.fingerprint)
	return &domain.ZKProof{
		Kind:          domain.ProofKindMock,
		MockReason:    reason,
		ProofData:     mockProofData(signals),
		PublicSignals: signals,
		Commitment:    signals[domain.SignalCommitment],
		Verified:      true,
		GeneratedAt:   g.opts.Now().UTC(),
	}, nil
}

func prepare(req domain.ProofInputs) (scaledInputs, error) {
	amount, err := circuit.Scale(req.Amount)
	if err != nil {
		return scaledInputs{}, scaleError(err, req)
	}
	maxSpend, err := circuit.Scale(req.MaxSpend)
	if err != nil {
		return scaledInputs{}, fmt.Errorf("prover: max spend %s: %w", req.MaxSpend, err)
	}
	fingerprint, err := circuit.ParseFieldElement(req.Fingerprint)
	if err != nil {
		return scaledInputs{}, fmt.Errorf("prover: fingerprint: %w", err)
	}
	commitment, err := circuit.Commitment(amount, fingerprint)
	if err != nil {
		return scaledInputs{}, err
	}
	return scaledInputs{amount: amount, maxSpend: maxSpend, fingerprint: fingerprint, commitment: commitment}, nil
}

func scaleError(err error, req domain.ProofInputs) error {
	switch {
	case errors.Is(err, circuit.ErrNegativeAmount):
		return &domain.ComplianceError{Reason: domain.ReasonNegativeAmount, Amount: req.Amount, MaxSpend: req.MaxSpend}
	case errors.Is(err, circuit.ErrOutOfRange):
		return &domain.ComplianceError{Reason: domain.ReasonAmountOutOfRange, Amount: req.Amount, MaxSpend: req.MaxSpend}
	default:
		return err
	}
}

func publicSignals(public witness.Witness) ([]string, error) {
	vec, ok := public.Vector().(fr.Vector)
	if !ok {
		return nil, fmt.Errorf("prover: unexpected public witness type %T", public.Vector())
	}
	if len(vec) != domain.PublicSignalCount {
		return nil, fmt.Errorf("prover: expected %d public signals, got %d", domain.PublicSignalCount, len(vec))
	}

	out := make([]string, len(vec))
	for i := range vec {
		out[i] = vec[i].BigInt(new(big.Int)).String()
	}
	return out, nil
}
