package prover

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestArtifactsSharedAfterLoad(t *testing.T) {
	artifacts := NewArtifacts(realPaths, zap.NewNop())

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		pks  = make(map[any]struct{})
		vks  = make(map[any]struct{})
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, pk, err := artifacts.ProvingSet()
			vk, vErr := artifacts.VerifyingKey()

			mu.Lock()
			defer mu.Unlock()
			if err != nil || vErr != nil {
				errs = append(errs, err, vErr)
				return
			}
			pks[pk] = struct{}{}
			vks[vk] = struct{}{}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	// Все вызовы получают один и тот же загруженный экземпляр
	assert.Len(t, pks, 1)
	assert.Len(t, vks, 1)
	assert.True(t, artifacts.ProvingAvailable())
	assert.True(t, artifacts.VerifyingAvailable())
}

func TestArtifactsAppearAfterMiss(t *testing.T) {
	paths := pathsIn(t.TempDir())
	artifacts := NewArtifacts(paths, zap.NewNop())

	_, _, err := artifacts.ProvingSet()
	require.ErrorIs(t, err, ErrArtifactsMissing)
	_, err = artifacts.VerifyingKey()
	require.ErrorIs(t, err, ErrArtifactsMissing)
	assert.False(t, artifacts.ProvingAvailable())

	copyFile(t, realPaths.Circuit, paths.Circuit)
	copyFile(t, realPaths.ProvingKey, paths.ProvingKey)
	copyFile(t, realPaths.VerifyingKey, paths.VerifyingKey)

	cs, pk, err := artifacts.ProvingSet()
	require.NoError(t, err)
	assert.NotNil(t, cs)
	assert.NotNil(t, pk)

	vk, err := artifacts.VerifyingKey()
	require.NoError(t, err)
	assert.NotNil(t, vk)
}

func copyFile(t *testing.T, from, to string) {
	t.Helper()
	data, err := os.ReadFile(from)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(to, data, 0o644))
}
