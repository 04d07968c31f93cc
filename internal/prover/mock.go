package prover

import (
	"bytes"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// mockProofPrefix отличает синтетические байты от сериализованного groth16.Proof.
var mockProofPrefix = []byte("zkspend-mock-v1:")

// mockProofData детерминированно привязывает байты заглушки к ее публичным сигналам:
// подмена любого сигнала ломает проверку, но криптографической стойкости тут нет.
func mockProofData(signals []string) []byte {
	digest := crypto.Keccak256([]byte(strings.Join(signals, ",")))
	out := make([]byte, 0, len(mockProofPrefix)+len(digest))
	out = append(out, mockProofPrefix...)
	return append(out, digest...)
}

func isMockProofData(data []byte) bool {
	return bytes.HasPrefix(data, mockProofPrefix)
}

func signalStrings(values ...*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}
