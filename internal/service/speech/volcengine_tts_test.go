package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	speechmodel "github.com/labelscan/backend/internal/model/speech"
)

func TestVolcengineSpeakerMapping(t *testing.T) {
	for _, voice := range SupportedVoices() {
		if VolcengineSpeaker(voice) == "" {
			t.Fatalf("voice %s has no volcengine speaker", voice)
		}
	}
	if got := VolcengineSpeaker("Nova "); got != "en_female_skye_emo_v2_mars_bigtts" {
		t.Fatalf("VolcengineSpeaker(Nova) = %s", got)
	}
	if got := VolcengineSpeaker("robot"); got != "" {
		t.Fatalf("unexpected speaker for unknown voice: %s", got)
	}
}

func TestResolveTTSResourceCandidates(t *testing.T) {
	tests := []struct {
		name    string
		speaker string
		want    []string
	}{
		{name: "empty speaker", speaker: "", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
		{name: "mega clone speaker", speaker: "S_clone_speaker", want: []string{"volc.megatts.default"}},
		{name: "bigtts speaker", speaker: "en_female_amy_jupiter_bigtts", want: []string{"seed-tts-2.0", "volc.service_type.10029"}},
		{name: "legacy 1.0 speaker", speaker: "en_male_organizer", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
	}

	for _, tt := range tests {
		got := resolveTTSResourceCandidates(tt.speaker)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resolveTTSResourceCandidates(%q) = %v, want %v", tt.name, tt.speaker, got, tt.want)
		}
	}
}

func TestResolveTTSSpeakerCandidates(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		fallback string
		want     []string
	}{
		{name: "request and fallback", request: "en_male_glen_emo_v2_mars_bigtts", fallback: volcengineFallbackSpeaker, want: []string{"en_male_glen_emo_v2_mars_bigtts", volcengineFallbackSpeaker}},
		{name: "request empty", request: "", fallback: volcengineFallbackSpeaker, want: []string{volcengineFallbackSpeaker}},
		{name: "duplicates ignored", request: "EN_voice", fallback: "en_voice", want: []string{"EN_voice"}},
	}

	for _, tt := range tests {
		got := resolveTTSSpeakerCandidates(tt.request, tt.fallback)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resolveTTSSpeakerCandidates(%q, %q) = %v, want %v", tt.name, tt.request, tt.fallback, got, tt.want)
		}
	}
}

func TestIsResourceMismatchError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "unrelated error", err: fmt.Errorf("some other error"), want: false},
		{name: "mismatch substring", err: fmt.Errorf("TTS error: {\"error\":\"resource ID is mismatched with speaker related resource\"}"), want: true},
	}

	for _, tc := range cases {
		if got := isResourceMismatchError(tc.err); got != tc.want {
			t.Errorf("%s: isResourceMismatchError(%v) = %v, want %v", tc.name, tc.err, got, tc.want)
		}
	}
}

func TestResolveCredentials(t *testing.T) {
	if _, _, err := resolveCredentials(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, _, err := resolveCredentials(&speechmodel.SpeechConfig{AppID: "app"}); err == nil {
		t.Fatal("expected error for missing token")
	}
	appID, token, err := resolveCredentials(&speechmodel.SpeechConfig{AppID: " app ", AccessToken: " tok "})
	if err != nil || appID != "app" || token != "tok" {
		t.Fatalf("resolveCredentials = %q, %q, %v", appID, token, err)
	}
}

// newFakeVolcengineServer answers every TTS request with two audio frames and a finish frame.
func newFakeVolcengineServer(t *testing.T, gotRequest chan<- volcengineTTSRequest) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-App-Key") != "app" || r.Header.Get("X-Api-Access-Key") != "token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade err: %v", err)
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read err: %v", err)
			return
		}
		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			t.Errorf("decode err: %v", err)
			return
		}
		var req volcengineTTSRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			t.Errorf("unmarshal err: %v", err)
			return
		}
		gotRequest <- req

		audioFrame := &Message{
			Header:  NewHeader(AudioOnlyServerResponse, PositiveSequenceNumber, NoSerialization, NoCompression),
			Payload: []byte("ID3-part-1|"),
		}
		audioFrame.Sequence = 1
		frame, _ := EncodeMessage(audioFrame)
		_ = conn.WriteMessage(websocket.BinaryMessage, frame)

		body, _ := json.Marshal(map[string]any{
			"reqid":    "req-42",
			"code":     3000,
			"sequence": -2,
			"data":     base64.StdEncoding.EncodeToString([]byte("part-2")),
		})
		final := &Message{
			Header:  NewHeader(FullServerResponse, NoSequenceNumber, JSONSerialization, NoCompression),
			Payload: body,
		}
		frame, _ = EncodeMessage(final)
		_ = conn.WriteMessage(websocket.BinaryMessage, frame)
	}))
}

func TestVolcengineSynthesizeAgainstFakeServer(t *testing.T) {
	gotRequest := make(chan volcengineTTSRequest, 1)
	srv := newFakeVolcengineServer(t, gotRequest)
	defer srv.Close()

	client := NewVolcengineTTSClient(&speechmodel.SpeechConfig{AppID: "app", AccessToken: "token"})
	client.url = "ws" + strings.TrimPrefix(srv.URL, "http")

	resp, err := client.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "Choco Bar contains milk.", Voice: VoiceEcho, Speed: 1.2})
	if err != nil {
		t.Fatalf("Synthesize err: %v", err)
	}
	if string(resp.AudioData) != "ID3-part-1|part-2" {
		t.Fatalf("unexpected audio %q", resp.AudioData)
	}
	if resp.RequestID != "req-42" {
		t.Fatalf("unexpected request id %s", resp.RequestID)
	}

	req := <-gotRequest
	if req.ReqParams.Speaker != "en_male_glen_emo_v2_mars_bigtts" {
		t.Fatalf("unexpected speaker %s", req.ReqParams.Speaker)
	}
	if req.ReqParams.Text != "Choco Bar contains milk." || req.ReqParams.AudioParams.Format != "mp3" {
		t.Fatalf("unexpected request params %+v", req.ReqParams)
	}
	if req.ReqParams.AudioParams.SpeedRatio != 1.2 {
		t.Fatalf("unexpected speed ratio %v", req.ReqParams.AudioParams.SpeedRatio)
	}
}

func TestVolcengineSynthesizeMissingCredentials(t *testing.T) {
	client := NewVolcengineTTSClient(&speechmodel.SpeechConfig{})
	if _, err := client.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "hi", Voice: VoiceAlloy}); err == nil {
		t.Fatal("expected credentials error")
	}
}
