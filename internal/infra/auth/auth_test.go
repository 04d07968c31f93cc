package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"go.uber.org/zap"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestVerifyToken(t *testing.T) {
	key := newKey(t)
	v := NewAgentValidator(&key.PublicKey, ValidatorOptions{})

	token, err := IssueToken(key, TokenRequest{AgentID: "agent-7", Scopes: []string{domain.ScopeProofsWrite}, TTL: time.Hour})
	require.NoError(t, err)

	claims, err := v.VerifyToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "agent-7", claims.AgentID)
	assert.True(t, claims.HasScope(domain.ScopeProofsWrite))
	assert.False(t, claims.HasScope(domain.ScopePaymentsExecute))

	t.Run("foreign key", func(t *testing.T) {
		other := NewAgentValidator(&newKey(t).PublicKey, ValidatorOptions{})
		_, err := other.VerifyToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := IssueToken(key, TokenRequest{AgentID: "agent-7", Scopes: []string{domain.ScopeProofsWrite}, TTL: -time.Minute})
		require.NoError(t, err)
		_, err = v.VerifyToken(expired)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.VerifyToken("Bearer not.a.token")
		assert.Error(t, err)
	})
}

func signClaims(t *testing.T, key *rsa.PrivateKey, claims *domain.CustomClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestAgentValidatorClaims(t *testing.T) {
	key := newKey(t)
	v := NewAgentValidator(&key.PublicKey, ValidatorOptions{Audience: "gateway-eu", Issuer: "ops"})
	scopes := []string{domain.ScopeProofsWrite}

	t.Run("matching issuer and audience", func(t *testing.T) {
		token, err := IssueToken(key, TokenRequest{AgentID: "agent-1", Scopes: scopes, TTL: time.Hour, Issuer: "ops", Audience: "gateway-eu"})
		require.NoError(t, err)
		_, err = v.VerifyToken(token)
		assert.NoError(t, err)
	})

	t.Run("default audience is foreign here", func(t *testing.T) {
		token, err := IssueToken(key, TokenRequest{AgentID: "agent-1", Scopes: scopes, TTL: time.Hour, Issuer: "ops"})
		require.NoError(t, err)
		_, err = v.VerifyToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := IssueToken(key, TokenRequest{AgentID: "agent-1", Scopes: scopes, TTL: time.Hour, Audience: "gateway-eu"})
		require.NoError(t, err)
		_, err = v.VerifyToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("no granted scopes", func(t *testing.T) {
		token, err := IssueToken(key, TokenRequest{AgentID: "agent-1", TTL: time.Hour, Issuer: "ops", Audience: "gateway-eu"})
		require.NoError(t, err)
		_, err = v.VerifyToken(token)
		assert.ErrorIs(t, err, ErrNoScopes)
	})

	base := func() *domain.CustomClaims {
		return &domain.CustomClaims{
			AgentID: "agent-1",
			Scopes:  map[string]bool{domain.ScopeProofsWrite: true},
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "ops",
				Subject:   "agent-1",
				Audience:  jwt.ClaimStrings{"gateway-eu"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}

	t.Run("subject differs from agent", func(t *testing.T) {
		c := base()
		c.Subject = "agent-2"
		_, err := v.VerifyToken(signClaims(t, key, c))
		assert.ErrorIs(t, err, ErrSubjectMismatch)
	})

	t.Run("missing agent id", func(t *testing.T) {
		c := base()
		c.AgentID, c.Subject = "", ""
		_, err := v.VerifyToken(signClaims(t, key, c))
		assert.ErrorIs(t, err, ErrMissingAgent)
	})

	t.Run("missing expiry", func(t *testing.T) {
		c := base()
		c.ExpiresAt = nil
		_, err := v.VerifyToken(signClaims(t, key, c))
		assert.Error(t, err)
	})

	t.Run("hmac token is refused", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, base()).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = v.VerifyToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("issuing without agent fails", func(t *testing.T) {
		_, err := IssueToken(key, TokenRequest{Scopes: scopes, TTL: time.Hour})
		assert.ErrorIs(t, err, ErrMissingAgent)
	})
}

func TestMiddleware(t *testing.T) {
	key := newKey(t)
	v := NewAgentValidator(&key.PublicKey, ValidatorOptions{})

	var seenAgent string
	handler := NewMiddleware(v, zap.NewNop())(
		RequireScope(domain.ScopePaymentsExecute)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenAgent = AgentIDFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			}),
		),
	)

	call := func(authHeader string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/payments", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer junk"))

	noScope, err := IssueToken(key, TokenRequest{AgentID: "agent-1", Scopes: []string{domain.ScopeProofsWrite}, TTL: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, call("Bearer "+noScope))

	ok, err := IssueToken(key, TokenRequest{AgentID: "agent-2", Scopes: []string{domain.ScopePaymentsExecute}, TTL: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, call("Bearer "+ok))
	assert.Equal(t, "agent-2", seenAgent)
}

func TestRequireScopeWithoutAuth(t *testing.T) {
	handler := RequireScope(domain.ScopeProofsWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/proofs", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
