package speech

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/labelscan/backend/internal/model/speech"
	speechsvc "github.com/labelscan/backend/internal/service/speech"
	"github.com/labelscan/backend/pkg/utils"
)

// 合成请求体大小上限，文本本身受 MaxTextLength 约束
const maxRequestBytes = 64 << 10

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc     SpeechService
	exposeDetails bool
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// New 创建语音处理器
func New(speechSvc SpeechService, exposeDetails bool) *Handler {
	return &Handler{speechSvc: speechSvc, exposeDetails: exposeDetails}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/tts", h.handleSynthesize)
}

// handleSynthesize 处理文本转语音请求，成功时直接返回 MP3 音频
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var payload ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondFailure(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := h.speechSvc.SynthesizeSpeech(r.Context(), &speech.TTSRequest{
		Text:  payload.Text,
		Voice: payload.Voice,
	})
	if err != nil {
		switch {
		case errors.Is(err, speechsvc.ErrEmptyText), errors.Is(err, speechsvc.ErrTextTooLong):
			utils.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, speechsvc.ErrInvalidVoice):
			utils.RespondFailure(w, http.StatusBadRequest, "unsupported voice",
				"supported voices: "+strings.Join(speechsvc.SupportedVoices(), ", "))
		default:
			log.Printf("[speech] TTS error: %v", err)
			h.respondFailure(w, http.StatusInternalServerError, "speech synthesis failed", err)
		}
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.Header().Set("Content-Disposition", "inline; filename=speech.mp3")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		log.Printf("[speech] failed to write audio response: %v", err)
	}
}

func (h *Handler) respondFailure(w http.ResponseWriter, status int, message string, err error) {
	details := ""
	if h.exposeDetails && err != nil {
		details = err.Error()
	}
	utils.RespondFailure(w, status, message, details)
}
