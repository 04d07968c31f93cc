package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// Scopes, которые проверяет HTTP-слой шлюза
const (
	ScopeProofsWrite     = "proofs:write"
	ScopeProofsVerify    = "proofs:verify"
	ScopePaymentsExecute = "payments:execute"
	ScopePoliciesRead    = "policies:read"
	ScopePoliciesAdmin   = "policies:admin" // Сброс кэша политик
)

// CustomClaims: claims RS256-токена агента.
type CustomClaims struct {
	AgentID string          `json:"agent_id"`
	Scopes  map[string]bool `json:"scopes"` // "proofs:write": true
	jwt.RegisteredClaims
}

func (c *CustomClaims) HasScope(scope string) bool {
	return c != nil && c.Scopes[scope]
}
