package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/labelscan/backend/internal/model/speech"
)

const (
	volcengineTTSURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"
	// volcengineFallbackSpeaker 映射的音色不可用时的兜底音色
	volcengineFallbackSpeaker = "en_female_amy_jupiter_bigtts"
)

// VolcengineTTSClient 火山引擎TTS WebSocket客户端
type VolcengineTTSClient struct {
	config *speech.SpeechConfig
	dialer *websocket.Dialer
	url    string
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

type volcengineTTSRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string                   `json:"speaker"`
		Text        string                   `json:"text"`
		AudioParams volcengineTTSAudioParams `json:"audio_params"`
		Language    string                   `json:"language,omitempty"`
	} `json:"req_params"`
}

type volcengineTTSAudioParams struct {
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	SpeedRatio float32 `json:"speed_ratio,omitempty"`
}

// NewVolcengineTTSClient 创建火山引擎TTS客户端
func NewVolcengineTTSClient(config *speech.SpeechConfig) *VolcengineTTSClient {
	return &VolcengineTTSClient{
		config: config,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
		},
		url: volcengineTTSURL,
	}
}

// Name implements Synthesizer.
func (c *VolcengineTTSClient) Name() string {
	return ProviderVolcengine
}

// Synthesize 使用WebSocket协议进行语音合成。音色或资源不匹配时依次尝试候选组合。
func (c *VolcengineTTSClient) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	appKey, accessKey, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	speakers := resolveTTSSpeakerCandidates(VolcengineSpeaker(req.Voice), volcengineFallbackSpeaker)
	var lastMismatch error

	for speakerIdx, speaker := range speakers {
		var mismatchErr error

		for resourceIdx, resourceID := range resolveTTSResourceCandidates(speaker) {
			resp, attemptErr := c.synthesizeWithResource(ctx, req, appKey, accessKey, speaker, resourceID)
			if attemptErr == nil {
				if resourceIdx > 0 {
					log.Printf("[speech] volcengine speaker %s succeeded with fallback resource %s", speaker, resourceID)
				}
				if speakerIdx > 0 {
					log.Printf("[speech] volcengine fallback speaker %s succeeded", speaker)
				}
				return resp, nil
			}

			if isResourceMismatchError(attemptErr) {
				log.Printf("[speech] volcengine speaker %s resource %s mismatch: %v", speaker, resourceID, attemptErr)
				mismatchErr = attemptErr
				continue
			}

			return nil, attemptErr
		}

		if mismatchErr != nil {
			lastMismatch = mismatchErr
		}
	}

	if lastMismatch != nil {
		return nil, lastMismatch
	}
	return nil, fmt.Errorf("no compatible resource id for speakers %v", speakers)
}

func (c *VolcengineTTSClient) synthesizeWithResource(ctx context.Context, req *speech.TTSRequest, appKey, accessKey, speaker, resourceID string) (*speech.TTSResponse, error) {
	connectID := uuid.New().String()

	header := http.Header{}
	header.Set("X-Api-App-Key", appKey)
	header.Set("X-Api-Access-Key", accessKey)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	payload, err := json.Marshal(buildTTSRequest(req, speaker, connectID))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	frame, err := EncodeMessage(CreateFullClientRequest(payload, NoCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS message: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			body, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("TTS error message decode failed: %w", err)
			}
			return nil, fmt.Errorf("TTS error %d: %s", msg.ErrorCode, string(body))

		case AudioOnlyServerResponse:
			chunk, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress audio chunk: %w", err)
			}
			audio.Write(chunk)
			if msg.IsLastPacket() {
				return finishTTS(&audio, reqID, connectID, duration)
			}

		case FullServerResponse:
			body, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress TTS response payload: %w", err)
			}

			var serverResp ttsServerMessage
			if len(body) > 0 {
				if err := json.Unmarshal(body, &serverResp); err != nil {
					log.Printf("[speech] volcengine: unparseable response payload: %v", err)
				} else {
					if serverResp.Code != 0 && serverResp.Code != 3000 {
						return nil, fmt.Errorf("TTS API error %d: %s", serverResp.Code, serverResp.Message)
					}
					if serverResp.ReqID != "" {
						reqID = serverResp.ReqID
					}
					if parsed, err := parseDuration(serverResp.Addition.Duration); err == nil && parsed > 0 {
						duration = parsed
					}
					if serverResp.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(serverResp.Data)
						if err != nil {
							return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
						}
						audio.Write(chunk)
					}
				}
			}

			finishedByEvent := msg.Header.MessageFlags == WithEvent && msg.EventType == EventTypeSessionFinished
			if finishedByEvent || msg.IsLastPacket() || serverResp.Sequence < 0 {
				return finishTTS(&audio, reqID, connectID, duration)
			}

		default:
			log.Printf("[speech] volcengine: unexpected message type %d", msg.Header.MessageType)
		}
	}
}

func finishTTS(audio *bytes.Buffer, reqID, connectID string, duration int64) (*speech.TTSResponse, error) {
	if audio.Len() == 0 {
		return nil, ErrEmptyAudio
	}
	if reqID == "" {
		reqID = connectID
	}
	return &speech.TTSResponse{
		AudioData: audio.Bytes(),
		Format:    "mp3",
		Duration:  duration,
		RequestID: reqID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// buildTTSRequest 构建符合火山引擎API格式的TTS请求
func buildTTSRequest(req *speech.TTSRequest, speaker, uid string) *volcengineTTSRequest {
	ttsReq := &volcengineTTSRequest{}
	ttsReq.User.UID = uid
	ttsReq.ReqParams.Speaker = speaker
	ttsReq.ReqParams.Text = req.Text
	ttsReq.ReqParams.Language = "en"
	ttsReq.ReqParams.AudioParams.Format = "mp3"
	ttsReq.ReqParams.AudioParams.SampleRate = 24000

	if req.Speed > 0 && req.Speed != 1.0 {
		ttsReq.ReqParams.AudioParams.SpeedRatio = req.Speed
	}
	return ttsReq
}

// resolveCredentials 返回规范化后的 AppID 与 AccessToken，缺失时给出明确错误。
func resolveCredentials(cfg *speech.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("火山引擎语音配置未初始化")
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if appID == "" || token == "" {
		return "", "", fmt.Errorf("火山引擎语音配置缺少 AppID 或 AccessToken")
	}
	return appID, token, nil
}

func resolveTTSResourceCandidates(speaker string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)

	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return []string{defaultResource, seedResource}
	}
	if strings.HasPrefix(speaker, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(speaker)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "jupiter", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}
	return []string{defaultResource, seedResource}
}

// resolveTTSSpeakerCandidates 返回去重后的候选音色，请求的音色优先。
func resolveTTSSpeakerCandidates(requested, fallback string) []string {
	var candidates []string
	for _, s := range []string{requested, fallback} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		duplicate := false
		for _, existing := range candidates {
			if strings.EqualFold(existing, s) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			candidates = append(candidates, s)
		}
	}
	return candidates
}

func isResourceMismatchError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}

// parseDuration 解析时长字符串（毫秒）
func parseDuration(durationStr string) (int64, error) {
	if durationStr == "" {
		return 0, nil
	}
	return strconv.ParseInt(durationStr, 10, 64)
}
