package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PaymentStatus: статус симулированного платежа
type PaymentStatus string

const (
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRejected  PaymentStatus = "REJECTED"
)

// DefaultAction проверяется, если агент не указал действие явно.
const DefaultAction = "payment"

type PaymentRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Recipient  string          `json:"recipient"`
	Memo       string          `json:"memo,omitempty"`
	Action     string          `json:"action,omitempty"`
	PolicyName string          `json:"policyName"`
}

type PaymentResult struct {
	Success         bool          `json:"success"`
	TransactionHash string        `json:"transactionHash,omitempty"`
	Status          PaymentStatus `json:"status"`
}

// PaymentResponse собирает результат всего пайплайна: политика, доказательство, платеж.
type PaymentResponse struct {
	Payment PaymentResult `json:"payment"`
	Proof   *ZKProof      `json:"proof"`
	Policy  PolicySummary `json:"policy"`
}

// ComplianceReason: почему запрос отклонен до генерации доказательства
type ComplianceReason string

const (
	ReasonLimitExceeded    ComplianceReason = "POLICY_LIMIT_EXCEEDED"
	ReasonActionNotAllowed ComplianceReason = "ACTION_NOT_ALLOWED"
	ReasonNegativeAmount   ComplianceReason = "NEGATIVE_AMOUNT"
	ReasonAmountOutOfRange ComplianceReason = "AMOUNT_OUT_OF_RANGE"
)

// ComplianceError: запрос нарушает политику. Это отказ, а не сбой генерации.
type ComplianceError struct {
	Reason   ComplianceReason
	Amount   decimal.Decimal
	MaxSpend decimal.Decimal
	Action   string
}

func (e *ComplianceError) Error() string {
	switch e.Reason {
	case ReasonLimitExceeded:
		return fmt.Sprintf("compliance: amount %s exceeds policy max spend %s", e.Amount, e.MaxSpend)
	case ReasonActionNotAllowed:
		return fmt.Sprintf("compliance: action %q is not allowed by policy", e.Action)
	case ReasonNegativeAmount:
		return fmt.Sprintf("compliance: amount %s must be non-negative", e.Amount)
	case ReasonAmountOutOfRange:
		return fmt.Sprintf("compliance: amount %s does not fit the 64-bit fixed-point range", e.Amount)
	default:
		return "compliance: " + string(e.Reason)
	}
}
