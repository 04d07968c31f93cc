package prover

import (
	"fmt"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/xela07ax/zkspend-gateway/internal/circuit"
	"go.uber.org/zap"
)

// Setup: одиночный (не MPC) trusted setup для разработки:
// компилирует схему, генерирует пару ключей и пишет три артефакта.
// Токсичные отходы остаются в памяти этого процесса: для прода не годится.
func Setup(paths ArtifactPaths, logger *zap.Logger) error {
	logger = logger.Named("setup")
	start := time.Now()

	cs, err := circuit.Compile()
	if err != nil {
		return err
	}
	logger.Info("circuit compiled",
		zap.Int("constraints", cs.GetNbConstraints()),
		zap.Int("public_vars", cs.GetNbPublicVariables()),
	)

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("prover: groth16 setup: %w", err)
	}

	if err := writeArtifact(paths.Circuit, cs); err != nil {
		return err
	}
	if err := writeArtifact(paths.ProvingKey, pk); err != nil {
		return err
	}
	if err := writeArtifact(paths.VerifyingKey, vk); err != nil {
		return err
	}

	logger.Info("artifacts written",
		zap.String("circuit", paths.Circuit),
		zap.String("proving_key", paths.ProvingKey),
		zap.String("verifying_key", paths.VerifyingKey),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
