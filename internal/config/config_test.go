package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentforge/internal/config"
)

func TestLoadAppliesDefaultsWhenNoFilePresent(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 100_000, cfg.Budget.MaxTokens)
	assert.Equal(t, 5*time.Minute, cfg.Budget.MaxWallClock)
	assert.Equal(t, "agentforge.process", cfg.Temporal.TaskQueue)
}

func TestLoadReadsFileAndExpandsEnvRefs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  default:
    provider: anthropic
    model: claude-sonnet-4
    api_key: ${TEST_AGENTFORGE_KEY}
temporal:
  task_queue: custom.queue
`), 0o600))
	t.Setenv("TEST_AGENTFORGE_KEY", "secret-value")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom.queue", cfg.Temporal.TaskQueue)
	assert.Equal(t, "secret-value", cfg.Models["default"].APIKey)
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()
	t.Setenv("AGENTFORGE_TEMPORAL_TASK_QUEUE", "from-env.queue")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env.queue", cfg.Temporal.TaskQueue)
}

func TestBudgetConfigConvertsToProcessBudget(t *testing.T) {
	b := config.BudgetConfig{MaxTokens: 10, MaxWallClock: time.Second, MaxActions: 3}
	budget := b.Budget()
	assert.Equal(t, 10, budget.MaxTokens)
	assert.Equal(t, time.Second, budget.MaxWallClock)
	assert.Equal(t, 3, budget.MaxActions)
}
