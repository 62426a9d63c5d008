package scan

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/labelscan/backend/internal/model/label"
	scanservice "github.com/labelscan/backend/internal/service/scan"
	"github.com/labelscan/backend/internal/service/vision"
	"github.com/labelscan/backend/pkg/utils"
)

// DefaultMaxUploadBytes 上传图片大小上限
const DefaultMaxUploadBytes int64 = 10 << 20

// SessionHeader carries the session id on chat requests.
const SessionHeader = "X-Session-ID"

// multipart 表单除文件外的额外开销
const formOverheadBytes int64 = 1 << 20

// 问答请求体大小上限
const maxChatBodyBytes int64 = 64 << 10

// ScanService 抽象标签分析编排逻辑，便于测试替换
type ScanService interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (*scanservice.AnalyzeResult, error)
	Chat(ctx context.Context, input scanservice.ChatInput) (*scanservice.ChatResult, error)
}

// Options 控制处理器行为
type Options struct {
	MaxUploadBytes int64
	// ExposeErrorDetails 为 true 时在错误响应中附带诊断信息
	ExposeErrorDetails bool
}

// Handler 标签分析与问答的HTTP处理器
type Handler struct {
	svc  ScanService
	opts Options
}

type analyzeResponse struct {
	Success     bool            `json:"success"`
	SessionID   string          `json:"sessionId"`
	Summary     string          `json:"summary"`
	HasAnalysis bool            `json:"hasAnalysis"`
	Analysis    *label.Analysis `json:"analysis"`
}

type chatRequest struct {
	Message    string `json:"message"`
	IsFollowUp bool   `json:"isFollowUp"`
}

type chatResponse struct {
	Success    bool   `json:"success"`
	Response   string `json:"response"`
	IsFollowUp bool   `json:"isFollowUp"`
}

// New 创建处理器
func New(svc ScanService, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{svc: svc, opts: opts}
}

// RegisterRoutes 注册分析与问答路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/analyze", h.handleAnalyze)
	r.Post("/chat", h.handleChat)
}

// handleAnalyze 接收标签图片，返回会话ID与初始摘要
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes+formOverheadBytes)

	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondFailure(w, http.StatusRequestEntityTooLarge, "image exceeds the upload size limit", err)
			return
		}
		h.respondFailure(w, http.StatusBadRequest, "failed to parse multipart form", err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.opts.MaxUploadBytes+1))
	if err != nil {
		h.respondFailure(w, http.StatusBadRequest, "failed to read image", err)
		return
	}
	if int64(len(data)) > h.opts.MaxUploadBytes {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "image exceeds the upload size limit")
		return
	}
	if len(data) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "image file is empty")
		return
	}

	mimeType := resolveUploadType(data, header.Header.Get("Content-Type"))
	if mimeType == "" {
		utils.RespondError(w, http.StatusBadRequest, "unsupported image type, use JPEG, PNG, GIF or WEBP")
		return
	}

	result, err := h.svc.Analyze(r.Context(), data, mimeType)
	if err != nil {
		h.respondAnalyzeError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, analyzeResponse{
		Success:     true,
		SessionID:   result.SessionID,
		Summary:     result.Summary,
		HasAnalysis: result.Analysis != nil,
		Analysis:    result.Analysis,
	})
}

// handleChat 基于已有会话生成摘要或回答追问
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, SessionHeader+" header is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "request body is too large")
			return
		}
		h.respondFailure(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.svc.Chat(r.Context(), scanservice.ChatInput{
		SessionID:  sessionID,
		Message:    payload.Message,
		IsFollowUp: payload.IsFollowUp,
	})
	if err != nil {
		switch {
		case errors.Is(err, scanservice.ErrSessionIDRequired), errors.Is(err, scanservice.ErrQuestionRequired):
			utils.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, scanservice.ErrSessionNotFound):
			utils.RespondError(w, http.StatusNotFound, "session not found or expired, please scan the label again")
		default:
			log.Printf("[scan] chat failed session=%s: %v", sessionID, err)
			h.respondFailure(w, http.StatusInternalServerError, "failed to generate response", err)
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{
		Success:    true,
		Response:   result.Response,
		IsFollowUp: result.IsFollowUp,
	})
}

func (h *Handler) respondAnalyzeError(w http.ResponseWriter, err error) {
	var analysisErr *vision.AnalysisError
	if !errors.As(err, &analysisErr) {
		log.Printf("[scan] analyze failed: %v", err)
		h.respondFailure(w, http.StatusInternalServerError, "failed to analyze image", err)
		return
	}

	switch analysisErr.Kind {
	case vision.KindInvalidInput:
		utils.RespondFailure(w, http.StatusBadRequest, "invalid image", analysisErr.Message)
	case vision.KindUnreadable:
		// 属于预期结果，原因直接返回给用户
		utils.RespondFailure(w, http.StatusUnprocessableEntity, "could not read a food label in this image", analysisErr.Message)
	default:
		log.Printf("[scan] analyze upstream failure: %v", err)
		h.respondFailure(w, http.StatusBadGateway, "label analysis service failed", err)
	}
}

func (h *Handler) respondFailure(w http.ResponseWriter, status int, message string, err error) {
	details := ""
	if h.opts.ExposeErrorDetails && err != nil {
		details = err.Error()
	}
	utils.RespondFailure(w, status, message, details)
}

func resolveUploadType(data []byte, declared string) string {
	if detected := vision.DetectMIMEType(data); vision.IsAllowedMIMEType(detected) {
		return detected
	}
	if vision.IsAllowedMIMEType(declared) {
		return vision.NormalizeMIMEType(declared)
	}
	return ""
}
