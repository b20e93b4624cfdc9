package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalrepo "FactorLab/internal/repository"
	"FactorLab/pkg/config"
	"FactorLab/pkg/logger"
)

func testConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func TestInitializeApp_StandaloneConfig(t *testing.T) {
	cfg := testConfig(t, "environment: test\nstrategies:\n  file: testdata/missing.yaml\nlogger:\n  level: error\n")
	app, err := InitializeApp(cfg)
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestProvideSignalStore(t *testing.T) {
	cfg := testConfig(t, "environment: test\n")
	_, ok := ProvideSignalStore(cfg, nil, logger.Nop()).(*internalrepo.MemorySignalStore)
	assert.True(t, ok)

	cfg = testConfig(t, "environment: test\nsignal:\n  persist: false\n")
	assert.Nil(t, ProvideSignalStore(cfg, nil, logger.Nop()))
}

func TestProvideOptionalComponentsDisabled(t *testing.T) {
	cfg := testConfig(t, "environment: test\n")

	producer, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	assert.Nil(t, producer)
	assert.Nil(t, ProvideSignalPublisher(cfg, producer))
	assert.Nil(t, ProvideFundamentals(cfg, nil, logger.Nop()))

	sched, err := ProvideScheduler(cfg, nil, nil, logger.Nop())
	require.NoError(t, err)
	assert.Nil(t, sched)

	q, err := ProvideJobQueue(cfg, nil, nil, logger.Nop())
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestProvideStrategyStore_MissingFileIsEmpty(t *testing.T) {
	cfg := testConfig(t, "environment: test\nstrategies:\n  file: testdata/missing.yaml\n")
	store, err := ProvideStrategyStore(cfg, logger.Nop())
	require.NoError(t, err)
	active, err := store.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}
