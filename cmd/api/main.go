package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/config"
	"github.com/noah-isme/gema-risk-api/internal/database"
	"github.com/noah-isme/gema-risk-api/internal/handler"
	"github.com/noah-isme/gema-risk-api/internal/middleware"
	"github.com/noah-isme/gema-risk-api/internal/models"
	"github.com/noah-isme/gema-risk-api/internal/repository"
	"github.com/noah-isme/gema-risk-api/internal/risk"
	"github.com/noah-isme/gema-risk-api/internal/router"
	"github.com/noah-isme/gema-risk-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectRoster(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Student{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, cohort cache and fan-out disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, alert fan-out limited to redis")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	rosterRepo := repository.NewRosterRepository(db)

	sessionService := service.NewSessionService(cfg.SessionIdleTTL, logger)
	rosterService := service.NewRosterService(rosterRepo, cfg.RosterMaxUploadMB, logger)
	broadcaster := service.NewAlertBroadcaster(redisClient, cfg.EventChannel, natsConn, logger)
	evaluationService := service.NewEvaluationService(rosterService, risk.NewEngine(), redisClient, cfg.EvaluationCacheTTL, cfg.MinimumHigh, broadcaster, logger)
	mailer := service.NewSMTPMailer(cfg.SMTP, logger)
	advisorService := service.NewAdvisorService(evaluationService, mailer, broadcaster, validate, cfg.SMTP.Domain, logger)
	alertFeedService := service.NewAlertFeedService(evaluationService, validate, logger)
	reportService := service.NewReportService(evaluationService, validate, logger)

	broadcaster.Start(rootCtx)
	go sessionService.Run(rootCtx)

	if !cfg.SMTP.Configured() {
		logger.Info().Msg("smtp not configured, notifications are recorded without email delivery")
	}

	var identity fiber.Handler
	var rosterGuards []fiber.Handler
	if cfg.JWTSecret != "" {
		identity = middleware.AdvisorIdentity(cfg.JWTSecret)
		rosterGuards = append(rosterGuards, middleware.RequireRole("coordinator", "admin"))
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.RosterMaxUploadMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		Sessions:           sessionService,
		SessionHandler:     handler.NewSessionHandler(sessionService, cfg.SessionIdleTTL, logger),
		EvaluationHandler:  handler.NewEvaluationHandler(sessionService, evaluationService, logger),
		StudentHandler:     handler.NewStudentHandler(sessionService, advisorService, logger, middleware.RateLimit("notify", 10, time.Minute)),
		AlertHandler:       handler.NewAlertHandler(sessionService, alertFeedService, advisorService, broadcaster, logger, cfg.StreamKeepAlive),
		ReportHandler:      handler.NewReportHandler(sessionService, reportService, logger),
		RosterHandler:      handler.NewRosterHandler(rosterService, logger, rosterGuards...),
		IdentityMiddleware: identity,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Msg("risk api listening")
	waitForShutdown(rootCtx, app, logger)
}

func waitForShutdown(rootCtx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-rootCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
