package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProofKind различает настоящее Groth16-доказательство и заглушку.
type ProofKind string

const (
	ProofKindReal ProofKind = "real"
	ProofKindMock ProofKind = "mock" // Артефакты схемы недоступны, криптографии нет
)

// Позиции публичных сигналов схемы (порядок объявления public-полей в схеме).
const (
	SignalCommitment = iota
	SignalIsValid
	SignalMaxSpend
	SignalFingerprint

	PublicSignalCount
)

// ProofInputs: входы схемы. Amount приватный, остальное публичное.
type ProofInputs struct {
	Amount      decimal.Decimal `json:"amount"`
	MaxSpend    decimal.Decimal `json:"maxSpend"`
	Fingerprint string          `json:"fingerprint"`
}

// ZKProof: результат генерации. Kind входит в контракт, вызывающий
// всегда знает, какой путь отработал.
type ZKProof struct {
	Kind       ProofKind `json:"kind"`
	MockReason string    `json:"mockReason,omitempty"`

	// ProofData: сериализованный groth16.Proof (BN254) либо синтетические байты заглушки.
	ProofData     []byte    `json:"proofData"`
	PublicSignals []string  `json:"publicSignals"`
	Commitment    string    `json:"commitment"`
	Verified      bool      `json:"verified"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

func (p *ZKProof) IsMock() bool {
	return p != nil && p.Kind == ProofKindMock
}

// VerificationResult: ответ верификатора. Отклонение доказательства
// это нормальный исход (Valid=false), а не ошибка.
type VerificationResult struct {
	Valid bool      `json:"valid"`
	Kind  ProofKind `json:"kind,omitempty"`
	Error string    `json:"error,omitempty"`

	// Заполняются только VerifyWithSignals
	Commitment string `json:"commitment,omitempty"`
	IsValid    *bool  `json:"isValid,omitempty"`
}

// ProofResponse: форма ответа на запрос доказательства.
type ProofResponse struct {
	Proof  *ZKProof      `json:"proof"`
	Policy PolicySummary `json:"policy"`
}
