package prover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/xela07ax/zkspend-gateway/internal/circuit"
	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"go.uber.org/zap"
)

// ErrMalformedProof: доказательство нельзя даже разобрать.
// Криптографическое отклонение ошибкой не является: это Valid=false.
var ErrMalformedProof = errors.New("prover: malformed proof")

// Verifier проверяет доказательства против ключа верификации.
type Verifier struct {
	artifacts *Artifacts
	strict    bool
	logger    *zap.Logger
}

func NewVerifier(artifacts *Artifacts, opts Options, logger *zap.Logger) *Verifier {
	return &Verifier{
		artifacts: artifacts,
		strict:    opts.Strict,
		logger:    logger.Named("verifier"),
	}
}

// Verify: true только если доказательство проходит проверку для своих публичных сигналов.
//
// Два исхода отказа различаются. Если байты доказательства не декодируются
// (обрезаны, точки вне кривой) или сигналы не разбираются, возвращается ошибка
// ErrMalformedProof, а не Valid=false (в HTTP это 400). Valid=false означает
// корректно разобранное доказательство, которое не прошло проверку пары.
func (v *Verifier) Verify(ctx context.Context, proof *domain.ZKProof) (domain.VerificationResult, error) {
	signals, err := parseSignals(proof)
	if err != nil {
		return domain.VerificationResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.VerificationResult{}, err
	}

	if proof.Commitment != "" && proof.Commitment != proof.PublicSignals[domain.SignalCommitment] {
		return reject(proof.Kind, "commitment does not match public signal"), nil
	}

	if proof.IsMock() || (proof.Kind == "" && isMockProofData(proof.ProofData)) {
		return v.verifyMock(proof), nil
	}
	return v.verifyReal(proof, signals)
}

// VerifyWithSignals дополнительно раскрывает commitment и флаг isValid.
func (v *Verifier) VerifyWithSignals(ctx context.Context, proof *domain.ZKProof) (domain.VerificationResult, error) {
	res, err := v.Verify(ctx, proof)
	if err != nil {
		return res, err
	}
	isValid := proof.PublicSignals[domain.SignalIsValid] == "1"
	res.Commitment = proof.PublicSignals[domain.SignalCommitment]
	res.IsValid = &isValid
	return res, nil
}

func (v *Verifier) verifyMock(proof *domain.ZKProof) domain.VerificationResult {
	if v.strict {
		return reject(domain.ProofKindMock, "mock proofs are not accepted in strict mode")
	}
	if proof.PublicSignals[domain.SignalIsValid] != "1" {
		return reject(domain.ProofKindMock, "isValid signal is not set")
	}
	if !bytes.Equal(proof.ProofData, mockProofData(proof.PublicSignals)) {
		return reject(domain.ProofKindMock, "mock proof does not match its public signals")
	}
	return domain.VerificationResult{Valid: true, Kind: domain.ProofKindMock}
}

func (v *Verifier) verifyReal(proof *domain.ZKProof, signals [domain.PublicSignalCount]*big.Int) (domain.VerificationResult, error) {
	vk, err := v.artifacts.VerifyingKey()
	if err != nil {
		return domain.VerificationResult{}, err
	}

	p := groth16.NewProof(circuit.Curve)
	if _, err := p.ReadFrom(bytes.NewReader(proof.ProofData)); err != nil {
		return domain.VerificationResult{}, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}

	public, err := frontend.NewWitness(circuit.PublicAssignment(signals), circuit.Curve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("%w: public witness: %v", ErrMalformedProof, err)
	}

	if err := groth16.Verify(p, vk, public); err != nil {
		v.logger.Info("proof rejected", zap.Error(err))
		return reject(domain.ProofKindReal, err.Error()), nil
	}
	return domain.VerificationResult{Valid: true, Kind: domain.ProofKindReal}, nil
}

func parseSignals(proof *domain.ZKProof) ([domain.PublicSignalCount]*big.Int, error) {
	var out [domain.PublicSignalCount]*big.Int
	if proof == nil {
		return out, fmt.Errorf("%w: nil proof", ErrMalformedProof)
	}
	if len(proof.ProofData) == 0 {
		return out, fmt.Errorf("%w: empty proof data", ErrMalformedProof)
	}
	if len(proof.PublicSignals) != domain.PublicSignalCount {
		return out, fmt.Errorf("%w: expected %d public signals, got %d",
			ErrMalformedProof, domain.PublicSignalCount, len(proof.PublicSignals))
	}
	for i, s := range proof.PublicSignals {
		val, err := circuit.ParseFieldElement(s)
		if err != nil {
			return out, fmt.Errorf("%w: signal %d: %v", ErrMalformedProof, i, err)
		}
		out[i] = val
	}
	return out, nil
}

func reject(kind domain.ProofKind, reason string) domain.VerificationResult {
	return domain.VerificationResult{Valid: false, Kind: kind, Error: reason}
}
