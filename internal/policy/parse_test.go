package policy

import (
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/zkspend-gateway/internal/circuit"
	"github.com/xela07ax/zkspend-gateway/internal/domain"
)

func TestBuildPolicy(t *testing.T) {
	keys := DefaultKeys()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid records", func(t *testing.T) {
		p, err := BuildPolicy("agent.eth", keys, RawRecords{
			MaxSpend:       " 100.50 ",
			AllowedActions: "payment, Transfer ,,swap",
			Version:        "2.0",
		}, now)
		require.NoError(t, err)

		assert.Equal(t, "agent.eth", p.SourceName)
		assert.True(t, p.MaxSpend.Equal(decimal.RequireFromString("100.5")))
		assert.Equal(t, []string{"payment", "transfer", "swap"}, p.AllowedActions)
		assert.Equal(t, "2.0", p.Version)
		assert.Equal(t, now, p.FetchedAt)
		assert.NotEmpty(t, p.Fingerprint)
	})

	t.Run("version defaults", func(t *testing.T) {
		p, err := BuildPolicy("agent.eth", keys, RawRecords{MaxSpend: "1", AllowedActions: "payment"}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultPolicyVersion, p.Version)
	})

	errCases := []struct {
		name string
		raw  RawRecords
		code ErrorCode
	}{
		{"missing max spend", RawRecords{AllowedActions: "payment"}, CodeMissingMaxSpend},
		{"blank max spend", RawRecords{MaxSpend: "   ", AllowedActions: "payment"}, CodeMissingMaxSpend},
		{"non-numeric max spend", RawRecords{MaxSpend: "abc", AllowedActions: "payment"}, CodeInvalidMaxSpend},
		{"negative max spend", RawRecords{MaxSpend: "-5", AllowedActions: "payment"}, CodeInvalidMaxSpend},
		{"infinite max spend", RawRecords{MaxSpend: "Infinity", AllowedActions: "payment"}, CodeInvalidMaxSpend},
		{"missing actions", RawRecords{MaxSpend: "100"}, CodeMissingAllowedActions},
		{"only commas", RawRecords{MaxSpend: "100", AllowedActions: " , ,"}, CodeEmptyAllowedActions},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildPolicy("agent.eth", keys, tc.raw, now)
			var pErr *PolicyError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, tc.code, pErr.Code)
			assert.Equal(t, "agent.eth", pErr.Name)
		})
	}
}

func TestFingerprint(t *testing.T) {
	max := decimal.RequireFromString("100")

	a := Fingerprint(max, []string{"payment", "transfer"}, "1.0")
	b := Fingerprint(max, []string{"transfer", "payment"}, "1.0")
	assert.Equal(t, a, b, "action order must not matter")

	assert.NotEqual(t, a, Fingerprint(max, []string{"payment"}, "1.0"))
	assert.NotEqual(t, a, Fingerprint(max, []string{"payment", "transfer"}, "2.0"))
	assert.NotEqual(t, a, Fingerprint(decimal.RequireFromString("101"), []string{"payment", "transfer"}, "1.0"))

	v, err := circuit.ParseFieldElement(a)
	require.NoError(t, err)
	assert.Negative(t, v.Cmp(fr.Modulus()))
}

func TestPolicyChecks(t *testing.T) {
	p := domain.Policy{
		MaxSpend:       decimal.RequireFromString("100"),
		AllowedActions: []string{"payment", "transfer"},
	}

	assert.True(t, IsActionAllowed(p, "payment"))
	assert.True(t, IsActionAllowed(p, " PAYMENT "))
	assert.False(t, IsActionAllowed(p, "swap"))
	assert.False(t, IsActionAllowed(p, ""))

	assert.True(t, IsAmountWithinLimit(p, decimal.RequireFromString("50")))
	assert.True(t, IsAmountWithinLimit(p, decimal.RequireFromString("100")))
	assert.True(t, IsAmountWithinLimit(p, decimal.Zero))
	assert.False(t, IsAmountWithinLimit(p, decimal.RequireFromString("100.000001")))
	assert.False(t, IsAmountWithinLimit(p, decimal.RequireFromString("-1")))
}
