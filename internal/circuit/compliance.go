// Package circuit описывает схему соответствия политике расходов:
// приватная сумма, публичный лимит и отпечаток политики.
//
// Схема доказывает две вещи:
//  1. amount <= maxSpend как беззнаковое сравнение на 64 битах;
//  2. Commitment = Poseidon2(amount, fingerprint).
//
// IsValid дополнительно зафиксирован в 1, поэтому само существование
// доказательства и есть подтверждение соответствия.
package circuit

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"
)

// NbBits: разрядность сравнения и range-check'ов
const NbBits = 64

// Параметры Poseidon2 для BN254, те же, что у нативного хешера gnark-crypto
// (bn254/fr/poseidon2): ширина 2, 6 полных и 50 частичных раундов.
const (
	poseidonWidth         = 2
	poseidonFullRounds    = 6
	poseidonPartialRounds = 50
)

// Curve: кривая для Groth16
var Curve = ecc.BN254

// ComplianceCircuit: порядок public-полей задает порядок публичных сигналов:
// Commitment, IsValid, MaxSpend, Fingerprint.
type ComplianceCircuit struct {
	// Public outputs
	Commitment frontend.Variable `gnark:",public"`
	IsValid    frontend.Variable `gnark:",public"`

	// Public inputs
	MaxSpend    frontend.Variable `gnark:",public"`
	Fingerprint frontend.Variable `gnark:",public"`

	// Private
	Amount frontend.Variable
}

func (c *ComplianceCircuit) Define(api frontend.API) error {
	// --- 1. Range checks: без них сравнение можно обойти переполнением по модулю r ---
	api.ToBinary(c.Amount, NbBits)
	api.ToBinary(c.MaxSpend, NbBits)

	// --- 2. amount <= maxSpend ---
	// d = maxSpend - amount + 2^n лежит в [1, 2^(n+1)); старший бит d равен 1 ровно при amount <= maxSpend.
	offset := new(big.Int).Lsh(big.NewInt(1), NbBits)
	d := api.Add(api.Sub(c.MaxSpend, c.Amount), offset)
	dBits := api.ToBinary(d, NbBits+1)
	le := dBits[NbBits]

	api.AssertIsEqual(c.IsValid, le)
	api.AssertIsEqual(c.IsValid, 1)

	// --- 3. Commitment ---
	sum, err := commitmentHash(api, c.Amount, c.Fingerprint)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.Commitment, sum)

	return nil
}

// commitmentHash: Merkle-Damgard над перестановкой Poseidon2 с нулевым IV,
// совпадает с Commitment вне схемы.
func commitmentHash(api frontend.API, values ...frontend.Variable) (frontend.Variable, error) {
	perm, err := poseidon2.NewPoseidon2FromParameters(api, poseidonWidth, poseidonFullRounds, poseidonPartialRounds)
	if err != nil {
		return nil, fmt.Errorf("circuit: poseidon2 permutation: %w", err)
	}
	hasher := hash.NewMerkleDamgardHasher(api, perm, 0)
	hasher.Write(values...)
	return hasher.Sum(), nil
}

// Compile собирает R1CS схемы над BN254.
func Compile() (constraint.ConstraintSystem, error) {
	cs, err := frontend.Compile(Curve.ScalarField(), r1cs.NewBuilder, &ComplianceCircuit{})
	if err != nil {
		return nil, fmt.Errorf("circuit: compile: %w", err)
	}
	return cs, nil
}

// Assignment: полный witness. IsValid всегда 1, иначе схема невыполнима.
func Assignment(amount, maxSpend, fingerprint, commitment *big.Int) *ComplianceCircuit {
	return &ComplianceCircuit{
		Commitment:  commitment,
		IsValid:     1,
		MaxSpend:    maxSpend,
		Fingerprint: fingerprint,
		Amount:      amount,
	}
}

// PublicAssignment строит публичную часть witness из сигналов в порядке схемы.
func PublicAssignment(signals [4]*big.Int) *ComplianceCircuit {
	return &ComplianceCircuit{
		Commitment:  signals[0],
		IsValid:     signals[1],
		MaxSpend:    signals[2],
		Fingerprint: signals[3],
		Amount:      0,
	}
}
