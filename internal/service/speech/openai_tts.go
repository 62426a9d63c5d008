package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/labelscan/backend/internal/model/speech"
)

// OpenAITTSClient synthesizes speech with the OpenAI audio API.
type OpenAITTSClient struct {
	client *openai.Client
	model  openai.SpeechModel
}

// NewOpenAITTSClient creates a client from the OpenAI section of config.
func NewOpenAITTSClient(config *speech.SpeechConfig) (*OpenAITTSClient, error) {
	apiKey := strings.TrimSpace(config.OpenAIAPIKey)
	if apiKey == "" {
		return nil, errors.New("openai speech api key is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.OpenAIBaseURL != "" {
		clientConfig.BaseURL = config.OpenAIBaseURL
	}

	ttsModel := openai.SpeechModel(strings.TrimSpace(config.OpenAIModel))
	if ttsModel == "" {
		ttsModel = openai.TTSModel1
	}

	return &OpenAITTSClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  ttsModel,
	}, nil
}

// Name implements Synthesizer.
func (c *OpenAITTSClient) Name() string {
	return ProviderOpenAI
}

// Synthesize implements Synthesizer.
func (c *OpenAITTSClient) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	speechReq := openai.CreateSpeechRequest{
		Model:          c.model,
		Input:          req.Text,
		Voice:          openai.SpeechVoice(req.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}
	if req.Speed > 0 {
		speechReq.Speed = float64(req.Speed)
	}

	raw, err := c.client.CreateSpeech(ctx, speechReq)
	if err != nil {
		return nil, fmt.Errorf("openai create speech: %w", err)
	}
	defer raw.Close()

	audio, err := io.ReadAll(raw)
	if err != nil {
		return nil, fmt.Errorf("read openai speech body: %w", err)
	}

	return &speech.TTSResponse{
		AudioData: audio,
		Format:    "mp3",
		CreatedAt: time.Now().UTC(),
	}, nil
}
