package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	speechmodel "github.com/labelscan/backend/internal/model/speech"
)

type fakeSynthesizer struct {
	calls int
	last  *speechmodel.TTSRequest
	audio []byte
	err   error
	block bool
}

func (f *fakeSynthesizer) Name() string { return "fake" }

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	f.calls++
	f.last = req
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.TTSResponse{AudioData: f.audio}, nil
}

func TestSynthesizeSpeechValidatesBeforeCalling(t *testing.T) {
	fake := &fakeSynthesizer{audio: []byte("mp3")}
	svc := NewServiceWithProvider(&speechmodel.SpeechConfig{}, fake)
	ctx := context.Background()

	_, err := svc.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{Text: "hello", Voice: "invalid"})
	assert.ErrorIs(t, err, ErrInvalidVoice)

	_, err = svc.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{Text: "   ", Voice: VoiceAlloy})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = svc.SynthesizeSpeech(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = svc.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{Text: strings.Repeat("a", MaxTextLength+1)})
	assert.ErrorIs(t, err, ErrTextTooLong)

	assert.Zero(t, fake.calls)
}

func TestSynthesizeSpeechDefaultsAndNormalizes(t *testing.T) {
	fake := &fakeSynthesizer{audio: []byte("mp3-bytes")}
	svc := NewServiceWithProvider(&speechmodel.SpeechConfig{Speed: 1.1}, fake)

	resp, err := svc.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: "  Choco Bar  "})
	require.NoError(t, err)

	assert.Equal(t, VoiceAlloy, fake.last.Voice)
	assert.Equal(t, "Choco Bar", fake.last.Text)
	assert.Equal(t, float32(1.1), fake.last.Speed)
	assert.Equal(t, "audio/mpeg", resp.ContentType)
	assert.Equal(t, "fake", resp.Provider)
	assert.Equal(t, []byte("mp3-bytes"), resp.AudioData)

	_, err = svc.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: "hi", Voice: " Shimmer"})
	require.NoError(t, err)
	assert.Equal(t, VoiceShimmer, fake.last.Voice)
}

func TestSynthesizeSpeechWrapsProviderFailures(t *testing.T) {
	boom := errors.New("503 from upstream")
	svc := NewServiceWithProvider(nil, &fakeSynthesizer{err: boom})

	_, err := svc.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: "hi"})
	var synthErr *SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.Equal(t, "fake", synthErr.Provider)
	assert.ErrorIs(t, err, boom)

	svc = NewServiceWithProvider(nil, &fakeSynthesizer{})
	_, err = svc.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: "hi"})
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestSynthesizeSpeechTimeout(t *testing.T) {
	svc := NewServiceWithProvider(&speechmodel.SpeechConfig{Timeout: 20 * time.Millisecond}, &fakeSynthesizer{block: true})

	_, err := svc.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewServiceSelectsProvider(t *testing.T) {
	svc, err := NewService(&speechmodel.SpeechConfig{Provider: "volcengine"})
	require.NoError(t, err)
	assert.Equal(t, ProviderVolcengine, svc.ProviderName())

	svc, err = NewService(&speechmodel.SpeechConfig{OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, svc.ProviderName())

	_, err = NewService(&speechmodel.SpeechConfig{Provider: "openai"})
	assert.Error(t, err, "openai provider needs an api key")

	_, err = NewService(&speechmodel.SpeechConfig{Provider: "polly"})
	assert.Error(t, err)
}

func TestOpenAITTSClientAgainstServer(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	client, err := NewOpenAITTSClient(&speechmodel.SpeechConfig{OpenAIAPIKey: "sk-test", OpenAIBaseURL: srv.URL})
	require.NoError(t, err)

	svc := NewServiceWithProvider(&speechmodel.SpeechConfig{}, client)
	resp, err := svc.SynthesizeSpeech(context.Background(), &speechmodel.TTSRequest{Text: "Contains milk.", Voice: VoiceNova})
	require.NoError(t, err)

	assert.Equal(t, []byte("ID3fake"), resp.AudioData)
	assert.Contains(t, body, `"voice":"nova"`)
	assert.Contains(t, body, `"model":"tts-1"`)
	assert.Contains(t, body, `"response_format":"mp3"`)
}
