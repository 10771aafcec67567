package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"

	"github.com/liftline-crm/liftline/internal/app"
	"github.com/liftline-crm/liftline/internal/documents"
	"github.com/liftline-crm/liftline/internal/observability"
	"github.com/liftline-crm/liftline/internal/platform/cache"
	"github.com/liftline-crm/liftline/internal/platform/db"
	"github.com/liftline-crm/liftline/internal/quotes"
	"github.com/liftline-crm/liftline/internal/rasterize"
	"github.com/liftline-crm/liftline/internal/render"
	"github.com/liftline-crm/liftline/internal/templates"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Rendering works without the cache; only iframe caching and the
		// repair queue degrade.
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	templateRepo := templates.NewRepository(pool)
	templateService := templates.NewService(templateRepo)
	templateHandler := templates.NewHandler(logger, templateService)
	resolver := templates.NewResolver(templateRepo, cfg.DefaultTemplateID, logger)
	repairer := templates.NewRepairer(templateRepo, logger)

	quotesRepo := quotes.NewRepository(pool)

	locale, err := language.Parse(cfg.DocumentLocale)
	if err != nil {
		locale = language.English
	}
	builder := render.NewContextBuilder(render.CompanyProfile{
		Name:    cfg.CompanyName,
		Address: cfg.CompanyAddress,
		Phone:   cfg.CompanyPhone,
		Email:   cfg.CompanyEmail,
	}, locale)
	engine := render.NewEngine(logger)
	rasterizer := rasterize.NewClient(cfg.GotenbergURL, logger)

	documentService := documents.NewService(resolver, quotesRepo, builder, engine, rasterizer, logger)
	renderCache := documents.NewRenderCache(redisClient, cfg.RenderCacheTTL)

	var taskClient *asynq.Client
	if redisClient != nil {
		taskClient = asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Warn("asynq close", slog.Any("error", err))
			}
		}()
	}

	documentsHandler := documents.NewHandler(
		logger,
		documentService,
		templateRepo,
		repairer,
		rasterizer,
		renderCache,
		taskClient,
		metrics,
	)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		TemplateHandler:  templateHandler,
		DocumentsHandler: documentsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("document service listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
