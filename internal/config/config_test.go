package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelscan/backend/internal/llm/openaichat"
)

var configKeys = []string{
	"PORT", "APP_ENV", "UPLOAD_MAX_BYTES", "CORS_ALLOWED_ORIGINS",
	"AI_PROVIDER", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "ARK_MODEL", "Model",
	"ARK_BASE_URL", "ARK_REGION", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"AI_VISION_MODEL", "AI_TEMPERATURE", "ARK_TEMPERATURE", "AI_TOP_P", "ARK_TOP_P",
	"AI_MAX_TOKENS", "ARK_MAX_TOKENS", "AI_TIMEOUT",
	"SPEECH_PROVIDER", "SPEECH_TIMEOUT", "SPEECH_TTS_SPEED", "SPEECH_OPENAI_API_KEY",
	"SPEECH_OPENAI_BASE_URL", "SPEECH_OPENAI_MODEL", "SPEECH_APP_ID", "SPEECH_ACCESS_TOKEN",
	"SPEECH_API_KEY", "SPEECH_REGION", "SPEECH_TTS_VOICE",
	"SESSION_TTL", "SESSION_SWEEP_INTERVAL", "SESSION_SLIDING_TTL",
}

// clearEnv blanks every variable Load reads so the host environment does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.False(t, cfg.Server.IsProduction())
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Empty(t, cfg.Server.AllowedOrigins)

	assert.Equal(t, ProviderArk, cfg.AI.Provider)
	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, 45*time.Second, cfg.AI.Timeout)

	assert.Equal(t, ProviderOpenAI, cfg.Speech.Provider)
	assert.False(t, cfg.Speech.Enabled)
	assert.Equal(t, "alloy", cfg.Speech.DefaultVoice)
	assert.Equal(t, float32(1.0), cfg.Speech.Speed)
	assert.Equal(t, 30*time.Second, cfg.Speech.Timeout)

	assert.Equal(t, 15*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Session.SweepInterval)
	assert.False(t, cfg.Session.Sliding)
}

func TestLoadServerOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("UPLOAD_MAX_BYTES", "2048")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.Server.IsProduction())
	assert.Equal(t, int64(2048), cfg.Server.MaxUploadBytes)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                "80 80",
		"UPLOAD_MAX_BYTES":    "-1",
		"AI_PROVIDER":         "claude",
		"AI_TIMEOUT":          "soon",
		"SPEECH_PROVIDER":     "espeak",
		"SESSION_TTL":         "0",
		"SESSION_SLIDING_TTL": "sometimes",
		"ARK_MAX_TOKENS":      "many",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseDurationEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv("SESSION_TTL", "90")
	d, err := parseDurationEnv("SESSION_TTL", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	t.Setenv("SESSION_TTL", "2m30s")
	d, err = parseDurationEnv("SESSION_TTL", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 150*time.Second, d)

	t.Setenv("SESSION_TTL", "")
	d, err = parseDurationEnv("SESSION_TTL", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)
}

func TestAIConfigLegacyArkKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("Model", "doubao-vision")
	t.Setenv("ARK_TEMPERATURE", "0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, "doubao-vision", cfg.AI.ChatModelName())
	assert.Equal(t, "doubao-vision", cfg.AI.VisionModelName())
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.2, *cfg.AI.Temperature, 1e-9)
}

func TestOpenAIProviderBuildsAdapter(t *testing.T) {
	clearEnv(t)
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AI_VISION_MODEL", "gpt-4o")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.AI.Enabled())
	assert.Equal(t, "gpt-4o-mini", cfg.AI.ChatModelName())
	assert.Equal(t, "gpt-4o", cfg.AI.VisionModelName())

	chatModel, err := cfg.AI.NewChatModel(context.Background(), cfg.AI.VisionModelName())
	require.NoError(t, err)
	assert.IsType(t, &openaichat.ChatModel{}, chatModel)

	// 语音默认复用对话密钥
	assert.True(t, cfg.Speech.Enabled)
	assert.Equal(t, "sk-test", cfg.Speech.OpenAIAPIKey)
}

func TestNewChatModelRequiresCredentials(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	_, err = cfg.AI.NewChatModel(context.Background(), "")
	assert.Error(t, err)
}

func TestVolcengineSpeechConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPEECH_PROVIDER", "volcengine")
	t.Setenv("SPEECH_APP_ID", "app")
	t.Setenv("SPEECH_API_KEY", "token")
	t.Setenv("SPEECH_TIMEOUT", "10s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Speech.Enabled)

	model := cfg.Speech.ToModel()
	assert.Equal(t, "volcengine", model.Provider)
	assert.Equal(t, "app", model.AppID)
	assert.Equal(t, "token", model.AccessToken)
	assert.Equal(t, 10*time.Second, model.Timeout)
}
