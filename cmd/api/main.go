package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pixelmagic/internal/http/handlers"
	httpapi "pixelmagic/internal/http/httpapi"
	"pixelmagic/internal/infra"
	"pixelmagic/internal/providers/genai"
	"pixelmagic/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	editorLogger := infra.Component(logger, "genai")
	editor, err := genai.NewClient(ctx, genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &editorLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create gemini client")
	}

	sessionLogger := infra.Component(logger, "session")
	history := handlers.HistoryLogger(infra.Component(logger, "history"))
	sessions := session.NewManager(func() *session.Controller {
		return session.NewController(editor, session.ControllerOptions{
			History: history,
			Logger:  &sessionLogger,
		})
	}, session.ManagerOptions{
		IdleTimeout:   cfg.SessionIdleTimeout,
		SweepInterval: session.DefaultSweepInterval,
		MaxSessions:   cfg.MaxSessions,
	})
	defer sessions.Close()

	app, err := handlers.NewApp(sessions, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build handlers")
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:            infra.Component(logger, "http"),
		SecureCookies:     !cfg.IsDevelopment(),
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		EditRatePerMinute: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("model", cfg.GeminiModel).Msgf("PixelMagic listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
