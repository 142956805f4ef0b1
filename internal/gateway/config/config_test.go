package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structai/internal/llm"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "APP_ENV", "LLM_PROVIDER", "GEMINI_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY",
		"HISTORY_BACKEND", "HISTORY_PATH", "ARTIFACT_MINIO_ENDPOINT", "ARTIFACT_S3_ENDPOINT",
		"ARTIFACT_S3_ACCESS_KEY", "ARTIFACT_S3_SECRET_KEY", "MINIO_ROOT_USER", "MINIO_ROOT_PASSWORD",
		"CHAT_NARRATE", "LLM_RPS", "LLM_MAX_ATTEMPTS", "CHAT_SESSION_IDLE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, llm.ProviderFake, cfg.LLM.Provider)
	assert.Equal(t, 1, cfg.LLM.MaxAttempts)
	assert.Equal(t, "file", cfg.History.Backend)
	assert.False(t, cfg.Audio.CanUseS3())
	assert.False(t, cfg.Chat.Narrate)
	assert.Equal(t, 2*time.Hour, cfg.Chat.SessionIdle)
}

func TestLoad_EnvAndFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("HISTORY_BACKEND", "SQLite")
	t.Setenv("CHAT_NARRATE", "true")
	t.Setenv("LLM_RPS", "2.5")
	t.Setenv("ARTIFACT_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_ROOT_USER", "u")
	t.Setenv("MINIO_ROOT_PASSWORD", "p")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, llm.ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, 2.5, cfg.LLM.RPS)
	assert.Equal(t, "sqlite", cfg.History.Backend)
	assert.True(t, cfg.Chat.Narrate)
	assert.True(t, cfg.Audio.CanUseS3())
	assert.False(t, cfg.Audio.UseSSL)

	cfg, err = Load([]string{"-llm", "fake"})
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderFake, cfg.LLM.Provider)
}

func TestLoadLLM_OpenRouterKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk")
	o := LoadLLM()
	assert.Equal(t, llm.ProviderOpenRouter, o.Provider)
	assert.Equal(t, "sk", o.OpenAI.APIKey)
}
