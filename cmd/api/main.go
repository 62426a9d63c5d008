package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/labelscan/backend/internal/config"
	"github.com/labelscan/backend/internal/handler"
	"github.com/labelscan/backend/internal/service/ai"
	"github.com/labelscan/backend/internal/service/scan"
	"github.com/labelscan/backend/internal/service/session"
	"github.com/labelscan/backend/internal/service/speech"
	"github.com/labelscan/backend/internal/service/vision"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store := session.NewStore(session.Options{
		TTL:           cfg.Session.TTL,
		SweepInterval: cfg.Session.SweepInterval,
		Sliding:       cfg.Session.Sliding,
	})

	deps := handler.Dependencies{
		Sessions:           store,
		MaxUploadBytes:     cfg.Server.MaxUploadBytes,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		ExposeErrorDetails: !cfg.Server.IsProduction(),
	}

	// Initialize label analysis and conversation
	if cfg.AI.Enabled() {
		scanService, err := newScanService(ctx, cfg.AI, store)
		if err != nil {
			log.Printf("warning: failed to initialize AI services: %v", err)
			log.Println("continuing without label analysis - 请检查模型相关环境变量")
		} else {
			deps.Scan = scanService
			deps.AIProvider = cfg.AI.Provider
			log.Printf("AI services initialized (provider=%s vision=%s chat=%s)", cfg.AI.Provider, cfg.AI.VisionModelName(), cfg.AI.ChatModelName())
		}
	} else {
		log.Printf("%s 凭证未配置，跳过 AI 功能初始化", cfg.AI.Provider)
	}

	// Initialize Speech service
	if cfg.Speech.Enabled {
		speechService, err := speech.NewService(cfg.Speech.ToModel())
		if err != nil {
			log.Printf("warning: failed to initialize speech service: %v", err)
		} else {
			deps.Speech = speechService
			deps.SpeechProvider = speechService.ProviderName()
			log.Printf("Speech service initialized (provider=%s)", speechService.ProviderName())
		}
	} else {
		log.Println("语音服务凭证未配置，跳过语音功能初始化")
	}

	router := handler.NewRouter(deps)

	if err := run(ctx, cfg.Server, router, store); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newScanService(ctx context.Context, aiCfg config.AIConfig, store *session.Store) (*scan.Service, error) {
	visionModel, err := aiCfg.NewChatModel(ctx, aiCfg.VisionModelName())
	if err != nil {
		return nil, err
	}
	analyzer, err := vision.NewAnalyzer(visionModel, vision.Options{Timeout: aiCfg.Timeout})
	if err != nil {
		return nil, err
	}

	chatModel := visionModel
	if aiCfg.ChatModelName() != aiCfg.VisionModelName() {
		if chatModel, err = aiCfg.NewChatModel(ctx, aiCfg.ChatModelName()); err != nil {
			return nil, err
		}
	}
	conversation, err := ai.NewService(ctx, chatModel, aiCfg.Timeout)
	if err != nil {
		return nil, err
	}

	return scan.NewService(analyzer, conversation, store), nil
}

// run serves HTTP and sweeps expired sessions until ctx is cancelled.
func run(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, store *session.Store) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("label scan backend listening on %s (env=%s)", serverCfg.Addr, serverCfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return store.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
