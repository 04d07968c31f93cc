package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPolicyVersion подставляется, если текстовая запись версии не задана.
const DefaultPolicyVersion = "1.0"

// Policy: политика расходов агента, собранная из текстовых записей ENS.
// Создается только резолвером и никогда не мутирует на месте: кэш отдает копии.
type Policy struct {
	SourceName     string          `json:"sourceName"` // Нормализованное ENS-имя
	MaxSpend       decimal.Decimal `json:"maxSpend"`
	AllowedActions []string        `json:"allowedActions"` // lower-case, непустой список
	Version        string          `json:"version"`
	FetchedAt      time.Time       `json:"fetchedAt"`

	// Fingerprint: детерминированный отпечаток (maxSpend, sorted(actions), version),
	// используется как публичный вход схемы.
	Fingerprint string `json:"fingerprint"`
}

// Clone возвращает независимую копию (срез действий не разделяется).
func (p Policy) Clone() Policy {
	cp := p
	cp.AllowedActions = append([]string(nil), p.AllowedActions...)
	return cp
}

// PolicySummary: подмножество политики, которое отдается вместе с доказательством.
type PolicySummary struct {
	SourceName  string          `json:"sourceName"`
	MaxSpend    decimal.Decimal `json:"maxSpend"`
	Fingerprint string          `json:"fingerprint"`
}

func (p Policy) Summary() PolicySummary {
	return PolicySummary{
		SourceName:  p.SourceName,
		MaxSpend:    p.MaxSpend,
		Fingerprint: p.Fingerprint,
	}
}
