package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/labelscan/backend/internal/llm/openaichat"
	speechmodel "github.com/labelscan/backend/internal/model/speech"
)

const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"

	defaultMaxUploadBytes int64 = 10 << 20
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Speech  SpeechConfig
	Session SessionConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Speech: speech, Session: session}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	Env            string
	MaxUploadBytes int64
	AllowedOrigins []string
}

// IsProduction 生产环境下错误响应不附带诊断信息。
func (c ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// loadServerConfig 解析服务器监听地址与上传限制。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	addr := port
	if !strings.Contains(port, ":") {
		addr = ":" + port
	}

	maxUpload := defaultMaxUploadBytes
	if override, err := parseOptionalIntEnv("UPLOAD_MAX_BYTES"); err != nil {
		return ServerConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid UPLOAD_MAX_BYTES value %d: must be positive", *override)
		}
		maxUpload = int64(*override)
	}

	return ServerConfig{
		Addr:           addr,
		Env:            getEnvOrDefault("APP_ENV", "development"),
		MaxUploadBytes: maxUpload,
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string

	// Ark 配置
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	// OpenAI 配置
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// VisionModel 用于标签识别，留空时与对话模型相同
	VisionModel string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// Enabled 表示是否提供了所选提供方必需的密钥与模型。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey != "" && c.OpenAIModel != ""
	default:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	}
}

// ChatModelName 返回对话使用的模型名。
func (c AIConfig) ChatModelName() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIModel
	}
	return c.Model
}

// VisionModelName 返回标签识别使用的模型名。
func (c AIConfig) VisionModelName() string {
	if c.VisionModel != "" {
		return c.VisionModel
	}
	return c.ChatModelName()
}

// NewChatModel 使用配置创建一个模型实例，modelName 为空时使用对话模型。
func (c AIConfig) NewChatModel(ctx context.Context, modelName string) (model.ChatModel, error) {
	if !c.Enabled() {
		if c.Provider == ProviderOpenAI {
			return nil, fmt.Errorf("OpenAI 凭证或模型配置缺失，需要 OPENAI_API_KEY + OPENAI_MODEL")
		}
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}
	if modelName == "" {
		modelName = c.ChatModelName()
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	if c.Provider == ProviderOpenAI {
		chatModel, err := openaichat.New(openaichat.Config{
			APIKey:      c.OpenAIAPIKey,
			BaseURL:     c.OpenAIBaseURL,
			Model:       modelName,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
		if err != nil {
			return nil, err
		}
		return chatModel, nil
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       modelName,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderArk))
	if provider != ProviderArk && provider != ProviderOpenAI {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q: want ark or openai", provider)
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE", "ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P", "ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS", "ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("AI_TIMEOUT", 45*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:      provider,
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         getEnvOrDefault("ARK_MODEL", strings.TrimSpace(os.Getenv("Model"))),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		VisionModel:   strings.TrimSpace(os.Getenv("AI_VISION_MODEL")),
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
		Timeout:       timeout,
	}, nil
}

// SpeechConfig 描述语音服务相关配置
type SpeechConfig struct {
	Provider string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	AppID       string
	AccessToken string
	Region      string

	DefaultVoice string
	Speed        float32
	Timeout      time.Duration
	Enabled      bool
}

// ToModel 转换为语音服务使用的配置结构
func (c SpeechConfig) ToModel() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		Provider:      c.Provider,
		OpenAIAPIKey:  c.OpenAIAPIKey,
		OpenAIBaseURL: c.OpenAIBaseURL,
		OpenAIModel:   c.OpenAIModel,
		AppID:         c.AppID,
		AccessToken:   c.AccessToken,
		Region:        c.Region,
		DefaultVoice:  c.DefaultVoice,
		Speed:         c.Speed,
		Timeout:       c.Timeout,
	}
}

func loadSpeechConfig() (SpeechConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("SPEECH_PROVIDER", ProviderOpenAI))
	if provider != ProviderOpenAI && provider != "volcengine" {
		return SpeechConfig{}, fmt.Errorf("invalid SPEECH_PROVIDER value %q: want openai or volcengine", provider)
	}

	timeout, err := parseDurationEnv("SPEECH_TIMEOUT", 30*time.Second)
	if err != nil {
		return SpeechConfig{}, err
	}

	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0) // 默认1.0倍速
	if speed != nil {
		ttsSpeed = *speed
	}

	// 语音默认复用 OpenAI 对话的密钥
	openAIKey := getEnvOrDefault("SPEECH_OPENAI_API_KEY", strings.TrimSpace(os.Getenv("OPENAI_API_KEY")))
	openAIBaseURL := getEnvOrDefault("SPEECH_OPENAI_BASE_URL", strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")))

	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))
	accessToken := getEnvOrDefault("SPEECH_ACCESS_TOKEN", strings.TrimSpace(os.Getenv("SPEECH_API_KEY")))

	var enabled bool
	if provider == ProviderOpenAI {
		enabled = openAIKey != ""
	} else {
		enabled = appID != "" && accessToken != ""
	}

	return SpeechConfig{
		Provider:      provider,
		OpenAIAPIKey:  openAIKey,
		OpenAIBaseURL: openAIBaseURL,
		OpenAIModel:   getEnvOrDefault("SPEECH_OPENAI_MODEL", "tts-1"),
		AppID:         appID,
		AccessToken:   accessToken,
		Region:        getEnvOrDefault("SPEECH_REGION", "cn-beijing"),
		DefaultVoice:  getEnvOrDefault("SPEECH_TTS_VOICE", "alloy"),
		Speed:         ttsSpeed,
		Timeout:       timeout,
		Enabled:       enabled,
	}, nil
}

// SessionConfig 描述会话存储的过期策略
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Sliding       bool
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", 15*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}

	sweep, err := parseDurationEnv("SESSION_SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}

	sliding, err := parseBoolEnv("SESSION_SLIDING_TTL", false)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{TTL: ttl, SweepInterval: sweep, Sliding: sliding}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv 返回第一个非空的环境变量，用于兼容旧变量名。
func lookupEnv(keys ...string) (string, string) {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return key, value
		}
	}
	return "", ""
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

// parseDurationEnv 接受 Go duration 字符串，纯数字按秒处理。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(keys ...string) (*float64, error) {
	key, value := lookupEnv(keys...)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(keys ...string) (*int, error) {
	key, value := lookupEnv(keys...)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	_, value := lookupEnv(key)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
