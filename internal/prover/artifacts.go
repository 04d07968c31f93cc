package prover

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/xela07ax/zkspend-gateway/internal/circuit"
	"go.uber.org/zap"
)

// ErrArtifactsMissing: нет скомпилированной схемы или ключей на диске.
var ErrArtifactsMissing = errors.New("prover: circuit artifacts not found")

// ArtifactPaths: где лежат результаты trusted setup
type ArtifactPaths struct {
	Circuit      string
	ProvingKey   string
	VerifyingKey string
}

// Artifacts лениво читает R1CS и ключи при первом обращении и держит их в памяти
// до конца жизни процесса. Загруженный набор публикуется атомарно и дальше
// читается без блокировок. Мьютекс держит только загрузка с диска.
// Неудачная загрузка не запоминается: артефакты можно положить позже (zkgate setup).
type Artifacts struct {
	paths  ArtifactPaths
	logger *zap.Logger

	loadMu    sync.Mutex
	proving   atomic.Pointer[provingSet]
	verifying atomic.Pointer[verifyingSet]
}

type provingSet struct {
	cs constraint.ConstraintSystem
	pk groth16.ProvingKey
}

type verifyingSet struct {
	vk groth16.VerifyingKey
}

func NewArtifacts(paths ArtifactPaths, logger *zap.Logger) *Artifacts {
	return &Artifacts{
		paths:  paths,
		logger: logger.Named("artifacts"),
	}
}

func (a *Artifacts) Paths() ArtifactPaths { return a.paths }

// ProvingAvailable: есть ли на диске (или уже в памяти) все для Prove.
func (a *Artifacts) ProvingAvailable() bool {
	return a.proving.Load() != nil || (fileExists(a.paths.Circuit) && fileExists(a.paths.ProvingKey))
}

// VerifyingAvailable: есть ли ключ верификации.
func (a *Artifacts) VerifyingAvailable() bool {
	return a.verifying.Load() != nil || fileExists(a.paths.VerifyingKey)
}

// ProvingSet возвращает R1CS и proving key, загружая их при первом вызове.
func (a *Artifacts) ProvingSet() (constraint.ConstraintSystem, groth16.ProvingKey, error) {
	if set := a.proving.Load(); set != nil {
		return set.cs, set.pk, nil
	}

	a.loadMu.Lock()
	defer a.loadMu.Unlock()
	// Пока ждали мьютекс, набор мог загрузить соседний вызов
	if set := a.proving.Load(); set != nil {
		return set.cs, set.pk, nil
	}

	cs := groth16.NewCS(circuit.Curve)
	if err := readArtifact(a.paths.Circuit, cs); err != nil {
		return nil, nil, err
	}
	pk := groth16.NewProvingKey(circuit.Curve)
	if err := readArtifact(a.paths.ProvingKey, pk); err != nil {
		return nil, nil, err
	}

	a.proving.Store(&provingSet{cs: cs, pk: pk})
	a.logger.Info("proving artifacts loaded",
		zap.String("circuit", a.paths.Circuit),
		zap.String("proving_key", a.paths.ProvingKey),
		zap.Int("constraints", cs.GetNbConstraints()),
	)
	return cs, pk, nil
}

// VerifyingKey возвращает ключ верификации, загружая его при первом вызове.
func (a *Artifacts) VerifyingKey() (groth16.VerifyingKey, error) {
	if set := a.verifying.Load(); set != nil {
		return set.vk, nil
	}

	a.loadMu.Lock()
	defer a.loadMu.Unlock()
	if set := a.verifying.Load(); set != nil {
		return set.vk, nil
	}

	vk := groth16.NewVerifyingKey(circuit.Curve)
	if err := readArtifact(a.paths.VerifyingKey, vk); err != nil {
		return nil, err
	}
	a.verifying.Store(&verifyingSet{vk: vk})
	a.logger.Info("verifying key loaded", zap.String("path", a.paths.VerifyingKey))
	return vk, nil
}

func readArtifact(path string, dst io.ReaderFrom) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrArtifactsMissing, path)
	}
	if err != nil {
		return fmt.Errorf("prover: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := dst.ReadFrom(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("prover: decode %s: %w", path, err)
	}
	return nil
}

func writeArtifact(path string, src io.WriterTo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prover: mkdir for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("prover: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := src.WriteTo(w); err != nil {
		return fmt.Errorf("prover: write %s: %w", path, err)
	}
	return w.Flush()
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
