package circuit

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

var ErrNotFieldElement = errors.New("circuit: value is not a BN254 scalar field element")

// Commitment считает Poseidon2(amount, fingerprint) вне схемы с теми же параметрами,
// что и ComplianceCircuit. amount: уже масштабированная сумма.
func Commitment(amount, fingerprint *big.Int) (*big.Int, error) {
	h := poseidon2.NewMerkleDamgardHasher()
	for _, v := range []*big.Int{amount, fingerprint} {
		if !IsFieldElement(v) {
			return nil, fmt.Errorf("%w: %v", ErrNotFieldElement, v)
		}
		var e fr.Element
		e.SetBigInt(v)
		b := e.Bytes()
		h.Write(b[:])
	}

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out.BigInt(new(big.Int)), nil
}

// IsFieldElement: 0 <= v < r
func IsFieldElement(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(fr.Modulus()) < 0
}

// ParseFieldElement разбирает десятичную строку публичного сигнала.
func ParseFieldElement(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("circuit: %q is not a decimal integer", s)
	}
	if !IsFieldElement(v) {
		return nil, fmt.Errorf("%w: %s", ErrNotFieldElement, s)
	}
	return v, nil
}
