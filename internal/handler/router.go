package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/labelscan/backend/internal/handler/scan"
	"github.com/labelscan/backend/internal/handler/speech"
	middlewarePkg "github.com/labelscan/backend/internal/middleware"
	"github.com/labelscan/backend/pkg/utils"
)

// SessionCounter reports live sessions and their lifetime for the health endpoint.
type SessionCounter interface {
	Len() int
	TTL() time.Duration
}

// Dependencies 路由所需的服务，Speech 为空时 /api/tts 返回 503
type Dependencies struct {
	Scan     scan.ScanService
	Speech   speech.SpeechService
	Sessions SessionCounter

	MaxUploadBytes     int64
	AllowedOrigins     []string
	ExposeErrorDetails bool
	// AIProvider 与 SpeechProvider 仅用于健康检查展示
	AIProvider     string
	SpeechProvider string
}

type healthResponse struct {
	Status     string `json:"status"`
	Sessions   int    `json:"sessions"`
	SessionTTL int64  `json:"sessionTtlSeconds"`
	AI         string `json:"ai"`
	Speech     string `json:"speech"`
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middlewarePkg.Recoverer(deps.ExposeErrorDetails))
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			resp := healthResponse{
				Status: "ok",
				AI:     providerStatus(deps.Scan != nil, deps.AIProvider),
				Speech: providerStatus(deps.Speech != nil, deps.SpeechProvider),
			}
			if deps.Sessions != nil {
				resp.Sessions = deps.Sessions.Len()
				resp.SessionTTL = int64(deps.Sessions.TTL() / time.Second)
			}
			utils.RespondJSON(w, http.StatusOK, resp)
		})

		if deps.Scan != nil {
			scan.New(deps.Scan, scan.Options{
				MaxUploadBytes:     deps.MaxUploadBytes,
				ExposeErrorDetails: deps.ExposeErrorDetails,
			}).RegisterRoutes(api)
		} else {
			unavailable := func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "label analysis is not configured")
			}
			api.Post("/analyze", unavailable)
			api.Post("/chat", unavailable)
		}

		if deps.Speech != nil {
			speech.New(deps.Speech, deps.ExposeErrorDetails).RegisterRoutes(api)
		} else {
			api.Post("/tts", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "speech synthesis is not configured")
			})
		}
	})

	return r
}

func providerStatus(enabled bool, provider string) string {
	if !enabled {
		return "disabled"
	}
	if provider == "" {
		return "enabled"
	}
	return provider
}
