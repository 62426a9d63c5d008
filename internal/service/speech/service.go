package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/labelscan/backend/internal/model/speech"
)

const (
	ProviderOpenAI     = "openai"
	ProviderVolcengine = "volcengine"

	// DefaultTimeout bounds a single synthesis call.
	DefaultTimeout = 30 * time.Second
	// MaxTextLength 单次合成允许的最大字符数。
	MaxTextLength = 4096
)

var (
	ErrEmptyText    = errors.New("text is required")
	ErrTextTooLong  = fmt.Errorf("text exceeds %d characters", MaxTextLength)
	ErrInvalidVoice = errors.New("unsupported voice")
	ErrEmptyAudio   = errors.New("synthesis returned no audio")
)

// SynthesisError wraps a failed outbound synthesis call.
type SynthesisError struct {
	Provider string
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s speech synthesis failed: %v", e.Provider, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Synthesizer is one text-to-speech backend. Requests reaching it are already validated.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Service 语音服务核心业务逻辑
type Service struct {
	config   *speech.SpeechConfig
	provider Synthesizer
}

// NewService 根据配置选择合成后端并创建语音服务实例
func NewService(config *speech.SpeechConfig) (*Service, error) {
	if config == nil {
		return nil, errors.New("speech config is required")
	}

	var provider Synthesizer
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "", ProviderOpenAI:
		client, err := NewOpenAITTSClient(config)
		if err != nil {
			return nil, err
		}
		provider = client
	case ProviderVolcengine:
		provider = NewVolcengineTTSClient(config)
	default:
		return nil, fmt.Errorf("unknown speech provider %q", config.Provider)
	}

	return NewServiceWithProvider(config, provider), nil
}

// NewServiceWithProvider wires a custom backend, mainly for tests and tools.
func NewServiceWithProvider(config *speech.SpeechConfig, provider Synthesizer) *Service {
	if config == nil {
		config = &speech.SpeechConfig{}
	}
	return &Service{config: config, provider: provider}
}

// ProviderName returns the active backend name.
func (s *Service) ProviderName() string {
	if s == nil || s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// SynthesizeSpeech 文字转语音，返回可直接播放的 MP3 数据。
// 文本为空或声音不在支持列表中时直接返回校验错误，不发起外部调用。
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if len([]rune(req.Text)) > MaxTextLength {
		return nil, ErrTextTooLong
	}

	voice := NormalizeVoice(req.Voice)
	if voice == "" {
		voice = NormalizeVoice(s.config.DefaultVoice)
	}
	if voice == "" {
		voice = DefaultVoice
	}
	if !IsSupportedVoice(voice) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVoice, req.Voice)
	}

	speed := req.Speed
	if speed <= 0 {
		speed = s.config.Speed
	}

	outbound := &speech.TTSRequest{
		Text:   strings.TrimSpace(req.Text),
		Voice:  voice,
		Speed:  speed,
		Format: "mp3",
	}

	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	resp, err := s.provider.Synthesize(callCtx, outbound)
	if err != nil {
		log.Printf("[speech] %s synthesis failed after %s: %v", s.provider.Name(), time.Since(started).Round(time.Millisecond), err)
		return nil, &SynthesisError{Provider: s.provider.Name(), Err: err}
	}
	if resp == nil || len(resp.AudioData) == 0 {
		return nil, &SynthesisError{Provider: s.provider.Name(), Err: ErrEmptyAudio}
	}

	resp.Format = "mp3"
	resp.ContentType = "audio/mpeg"
	resp.Voice = voice
	resp.Provider = s.provider.Name()
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now().UTC()
	}

	log.Printf("[speech] synthesized %d bytes with %s/%s in %s", len(resp.AudioData), resp.Provider, voice, time.Since(started).Round(time.Millisecond))
	return resp, nil
}
