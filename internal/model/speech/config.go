package speech

import "time"

// SpeechConfig 语音合成服务配置
type SpeechConfig struct {
	// Provider 选择合成后端：openai 或 volcengine
	Provider string `json:"provider"`

	// OpenAI 配置
	OpenAIAPIKey  string `json:"-"`
	OpenAIBaseURL string `json:"openaiBaseUrl,omitempty"`
	OpenAIModel   string `json:"openaiModel,omitempty"`

	// Volcengine 配置
	AppID       string `json:"appId,omitempty"`
	AccessToken string `json:"-"`
	Region      string `json:"region,omitempty"`

	DefaultVoice string        `json:"defaultVoice"`
	Speed        float32       `json:"speed"` // 语速倍率 0.25-4.0
	Timeout      time.Duration `json:"timeout"`
}
