package audit

import "time"

// Операции шлюза, попадающие в журнал
const (
	OpProve   = "PROVE"
	OpPayment = "PAYMENT"
	OpVerify  = "VERIFY"
)

// Итоговые статусы события
const (
	StatusSuccess     = "SUCCESS"
	StatusRejected    = "REJECTED"     // ComplianceError
	StatusPolicyError = "POLICY_ERROR" // PolicyError / ResolutionError
	StatusFailed      = "FAILED"
)

// AuditEvent: запись журнала доказательств. Приватная сумма сюда не попадает:
// вместо нее хранится commitment.
type AuditEvent struct {
	ID        string `json:"id"`       // UUID события
	TraceID   string `json:"trace_id"` // Сквозной ID запроса
	AgentID   string `json:"agent_id"` // Из токена, если auth включен
	Operation string `json:"operation"`

	// Политика, под которую строилось доказательство
	PolicyName    string `json:"policy_name"`
	PolicyVersion string `json:"policy_version"`
	Fingerprint   string `json:"fingerprint"`

	// Доказательство
	ProofKind  string `json:"proof_kind"` // "real" / "mock"
	Commitment string `json:"commitment"`

	// Платеж
	Recipient string `json:"recipient,omitempty"`
	TxHash    string `json:"tx_hash,omitempty"`

	// Результат
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}
