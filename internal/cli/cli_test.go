package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/zkspend-gateway/internal/prover"
)

func TestDecodeProof(t *testing.T) {
	bare := `{"kind":"mock","proofData":"AQI=","publicSignals":["1","1","2","3"],"commitment":"1"}`
	p, err := decodeProof([]byte(bare))
	require.NoError(t, err)
	assert.Equal(t, "1", p.Commitment)
	assert.Equal(t, []byte{1, 2}, p.ProofData)

	wrapped := `{"proof":` + bare + `,"policy":{"sourceName":"agent.eth","maxSpend":"100","fingerprint":"3"}}`
	p, err = decodeProof([]byte(wrapped))
	require.NoError(t, err)
	assert.Len(t, p.PublicSignals, 4)

	_, err = decodeProof([]byte(`not json`))
	assert.ErrorIs(t, err, prover.ErrMalformedProof)
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "setup", "prove", "verify", "token", "policy", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
