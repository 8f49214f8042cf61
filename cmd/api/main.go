package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/identity"
	"server/internal/infra"
	"server/internal/providers/clipdrop"
	"server/internal/providers/cloudinary"
	"server/internal/providers/llm"
	"server/internal/workflow"
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
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	idClient, err := identity.NewClient(identity.Options{
		JWTSecret:  cfg.JWTSecret,
		BaseURL:    cfg.IdentityBaseURL,
		ServiceKey: cfg.IdentityServiceKey,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("identity client")
	}

	textClient, err := llm.NewClient(llm.Options{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("llm client")
	}

	imageClient, err := clipdrop.NewClient(clipdrop.Options{
		APIKey:  cfg.ClipDropAPIKey,
		BaseURL: cfg.ClipDropBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("clipdrop client")
	}

	storeClient, err := cloudinary.NewClient(cloudinary.Options{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("cloudinary client")
	}

	creations := repo.NewCreationRepository(infra.NewSQLRunner(dbpool, logger))

	service := workflow.NewService(workflow.Options{
		Text:           textClient,
		Images:         imageClient,
		Store:          storeClient,
		Repo:           creations,
		Usage:          idClient,
		Logger:         logger,
		FreeLimit:      cfg.FreeUsageLimit,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	app := handlers.NewApp(service, logger, cfg.AppEnv)

	router := httpapi.NewRouter(httpapi.Options{
		App:             app,
		Auth:            idClient,
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
