package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 10, cfg.Conversation.MaxContextMessages)
	require.Equal(t, 90, cfg.Metrics.RetentionDays)
	require.Len(t, cfg.Escalation.Keywords, 5)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Budget.MaxInput, cfg.Budget.MaxInput)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
conversation:
  max_context_messages: 20
llm:
  model: test-model
escalation:
  length_threshold: 4
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 20, cfg.Conversation.MaxContextMessages)
	require.Equal(t, "test-model", cfg.LLM.Model)
	require.Equal(t, 4, cfg.Escalation.LengthThreshold)
	// Untouched sections keep defaults
	require.Equal(t, 500, cfg.LLM.MaxTokens)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DESKBOT_API_KEY", "sk-test")
	t.Setenv("DESKBOT_MAX_CONTEXT_MESSAGES", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.LLM.APIKey)
	require.Equal(t, 7, cfg.Conversation.MaxContextMessages)
}

func TestValidateRejectsBadBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget.ResponseReserve = cfg.Budget.MaxInput
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Conversation.MaxContextMessages = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LLM.Timeout = "banana"
	require.Error(t, cfg.Validate())
}
