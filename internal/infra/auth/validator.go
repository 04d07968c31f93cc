package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/zkspend-gateway/internal/domain"
)

// Значения iss/aud по умолчанию: токены выпускает `zkgate token`, принимает шлюз
const (
	DefaultIssuer   = "zkgate"
	DefaultAudience = "zkspend-gateway"
)

var (
	ErrMissingAgent    = errors.New("token has no agent_id")
	ErrSubjectMismatch = errors.New("token subject does not match agent_id")
	ErrNoScopes        = errors.New("token grants no scopes")
)

// ValidatorOptions: чего шлюз ждет от токена агента
type ValidatorOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration // Допуск на рассинхрон часов для exp/iat
}

// AgentValidator проверяет RS256-токены агентов: подпись, срок, iss/aud
// и то, что токен вообще дает агенту какие-то права в шлюзе.
type AgentValidator struct {
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

func NewAgentValidator(pubKey *rsa.PublicKey, opts ValidatorOptions) *AgentValidator {
	if opts.Issuer == "" {
		opts.Issuer = DefaultIssuer
	}
	if opts.Audience == "" {
		opts.Audience = DefaultAudience
	}
	return &AgentValidator{
		publicKey: pubKey,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithIssuer(opts.Issuer),
			jwt.WithAudience(opts.Audience),
			jwt.WithLeeway(opts.Leeway),
		),
	}
}

// VerifyToken реализует auth.TokenValidator. Принимает значение заголовка
// Authorization как есть, с префиксом "Bearer " или без.
func (v *AgentValidator) VerifyToken(tokenStr string) (*domain.CustomClaims, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))

	claims := &domain.CustomClaims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims.AgentID == "" {
		return nil, ErrMissingAgent
	}
	if claims.Subject != "" && claims.Subject != claims.AgentID {
		return nil, ErrSubjectMismatch
	}
	if !grantsAny(claims) {
		return nil, ErrNoScopes
	}
	return claims, nil
}

func grantsAny(c *domain.CustomClaims) bool {
	for _, granted := range c.Scopes {
		if granted {
			return true
		}
	}
	return false
}

// ParseRSAPublicKey превращает []byte в объект для проверки подписи
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}

// TokenRequest: параметры выпускаемого токена агента
type TokenRequest struct {
	AgentID  string
	Scopes   []string
	TTL      time.Duration
	Issuer   string // По умолчанию DefaultIssuer
	Audience string // По умолчанию DefaultAudience
}

// IssueToken подписывает токен агента (CLI `zkgate token`, тесты).
func IssueToken(key *rsa.PrivateKey, req TokenRequest) (string, error) {
	if req.AgentID == "" {
		return "", ErrMissingAgent
	}
	if req.Issuer == "" {
		req.Issuer = DefaultIssuer
	}
	if req.Audience == "" {
		req.Audience = DefaultAudience
	}

	now := time.Now()
	claims := &domain.CustomClaims{
		AgentID: req.AgentID,
		Scopes:  make(map[string]bool, len(req.Scopes)),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    req.Issuer,
			Subject:   req.AgentID,
			Audience:  jwt.ClaimStrings{req.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(req.TTL)),
		},
	}
	for _, s := range req.Scopes {
		claims.Scopes[s] = true
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}

// ParseRSAPrivateKey превращает []byte в ключ подписи
func ParseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("private key data is empty")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}
