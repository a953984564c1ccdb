package agentswarm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/agentswarm/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Baseline(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, agent.RescueFlush, cfg.RescueStrategy)
	assert.Equal(t, 25, cfg.KeepMessages)
	assert.Equal(t, 15*time.Second, cfg.ToolWatchdog)
	assert.NotEmpty(t, cfg.ProcessID)
	assert.NotEmpty(t, cfg.EmptyOutputPlaceholders)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"rescue_strategy: recomplete\nkeep_messages: 7\nstorage_search_pool: 11\n",
	), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, agent.RescueRecomplete, cfg.RescueStrategy)
	assert.Equal(t, 7, cfg.KeepMessages)
	assert.Equal(t, 11, cfg.StorageSearchPool)
	// Untouched keys keep their defaults.
	assert.Equal(t, agent.DefaultFlushPrompt, cfg.RescueFlushPrompt)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultTransform_StripsTagsAndTrims(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AgentDisallowedTags = []string{"think"}

	out, err := cfg.defaultTransform(context.Background(), "  <think>hidden</think> visible  ", "c1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "hidden visible", out)
}

func TestDefaultTransform_DisallowedSymbolEmptiesOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AgentDisallowedSymbols = []string{"\x00"}

	out, err := cfg.defaultTransform(context.Background(), "bad\x00output", "c1", "a1")
	require.NoError(t, err)
	assert.Empty(t, out)
}
