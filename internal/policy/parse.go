package policy

import (
	"encoding/json"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/xela07ax/zkspend-gateway/internal/domain"
)

// Keys: имена текстовых записей ENS, из которых собирается политика
type Keys struct {
	MaxSpend       string
	AllowedActions string
	Version        string
}

func DefaultKeys() Keys {
	return Keys{
		MaxSpend:       "agent.maxSpend",
		AllowedActions: "agent.allowedActions",
		Version:        "agent.policyVersion",
	}
}

// RawRecords: сырые значения записей. Пустая строка = запись отсутствует.
type RawRecords struct {
	MaxSpend       string
	AllowedActions string
	Version        string
}

// BuildPolicy валидирует сырые записи и считает отпечаток.
func BuildPolicy(name string, keys Keys, raw RawRecords, fetchedAt time.Time) (domain.Policy, error) {
	maxSpend, err := parseMaxSpend(name, keys.MaxSpend, raw.MaxSpend)
	if err != nil {
		return domain.Policy{}, err
	}

	actions, err := parseAllowedActions(name, keys.AllowedActions, raw.AllowedActions)
	if err != nil {
		return domain.Policy{}, err
	}

	version := strings.TrimSpace(raw.Version)
	if version == "" {
		version = domain.DefaultPolicyVersion
	}

	return domain.Policy{
		SourceName:     name,
		MaxSpend:       maxSpend,
		AllowedActions: actions,
		Version:        version,
		FetchedAt:      fetchedAt,
		Fingerprint:    Fingerprint(maxSpend, actions, version),
	}, nil
}

func parseMaxSpend(name, key, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, &PolicyError{Code: CodeMissingMaxSpend, Name: name, Key: key}
	}

	// NewFromString не принимает NaN/Infinity: это тоже INVALID
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		return decimal.Decimal{}, &PolicyError{Code: CodeInvalidMaxSpend, Name: name, Key: key, Value: raw}
	}
	return v, nil
}

func parseAllowedActions(name, key, raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &PolicyError{Code: CodeMissingAllowedActions, Name: name, Key: key}
	}

	var actions []string
	for _, part := range strings.Split(raw, ",") {
		a := strings.ToLower(strings.TrimSpace(part))
		if a == "" {
			continue
		}
		actions = append(actions, a)
	}

	if len(actions) == 0 {
		return nil, &PolicyError{Code: CodeEmptyAllowedActions, Name: name, Key: key, Value: raw}
	}
	return actions, nil
}

// canonicalPolicy: порядок полей фиксирован, json.Marshal сериализует в порядке объявления
type canonicalPolicy struct {
	MaxSpend       string   `json:"maxSpend"`
	AllowedActions []string `json:"allowedActions"`
	Version        string   `json:"version"`
}

// Fingerprint = keccak256(canonical JSON) mod r(BN254), десятичной строкой.
// Не зависит от порядка actions; результат всегда валидный элемент поля схемы.
func Fingerprint(maxSpend decimal.Decimal, actions []string, version string) string {
	sorted := append([]string(nil), actions...)
	sort.Strings(sorted)

	payload, _ := json.Marshal(canonicalPolicy{
		MaxSpend:       maxSpend.String(),
		AllowedActions: sorted,
		Version:        version,
	})

	digest := new(big.Int).SetBytes(crypto.Keccak256(payload))
	return digest.Mod(digest, fr.Modulus()).String()
}

// IsActionAllowed: регистронезависимая проверка членства
func IsActionAllowed(p domain.Policy, action string) bool {
	action = strings.ToLower(strings.TrimSpace(action))
	for _, a := range p.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

// IsAmountWithinLimit: 0 <= amount <= maxSpend
func IsAmountWithinLimit(p domain.Policy, amount decimal.Decimal) bool {
	return !amount.IsNegative() && amount.LessThanOrEqual(p.MaxSpend)
}
