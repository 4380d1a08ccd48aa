package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/dreamers/incubation-portal/internal/config"
	"github.com/dreamers/incubation-portal/internal/database"
	"github.com/dreamers/incubation-portal/internal/handler"
	"github.com/dreamers/incubation-portal/internal/jobs"
	"github.com/dreamers/incubation-portal/internal/logger"
	"github.com/dreamers/incubation-portal/internal/mail"
	"github.com/dreamers/incubation-portal/internal/middleware"
	"github.com/dreamers/incubation-portal/internal/queue"
	"github.com/dreamers/incubation-portal/internal/repository"
	"github.com/dreamers/incubation-portal/internal/router"
	"github.com/dreamers/incubation-portal/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database open")
	}
	defer db.Close()

	if cfg.DBMigrate {
		v, err := database.Migrate(db)
		if err != nil {
			log.WithError(err).Fatal("database migrate")
		}
		log.WithField("version", v).Info("schema up to date")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Repositories ----
	coupons := repository.NewCouponRepo(db)
	apps := repository.NewApplicationRepo(db)
	centres := repository.NewCentreRepo(db)
	approvalTokens := repository.NewApprovalTokenRepo(db)
	admins := repository.NewAdminRepo(db)
	refresh := repository.NewRefreshTokenRepo(db)

	bootstrapAdmin(ctx, cfg, admins, log)

	// ---- Messaging ----
	publisher := queue.NewPublisher(cfg.RabbitURL, log)
	mailer := mail.NewSMTPMailer(cfg.SMTP, cfg.PublicBaseURL, log)
	consumer := queue.NewConsumer(cfg.RabbitURL, mailer, log)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("consumer stopped")
		}
	}()

	// ---- Services ----
	validator := service.NewCouponValidator(coupons, log.WithField("component", "coupons"))
	resolver := service.NewApprovalResolver(apps, publisher, cfg.ApprovalTokenTTL, log.WithField("component", "approvals"))
	intake := service.NewApplicationService(apps, apps, coupons, centres, resolver, publisher, log.WithField("component", "applications"))

	// ---- Jobs ----
	sweeper := jobs.NewTokenSweeper(approvalTokens, refresh, cfg.TokenRetention, log.WithField("component", "sweeper"))
	sched, err := sweeper.Schedule(cfg.SweepSchedule)
	if err != nil {
		log.WithError(err).Fatal("token sweeper")
	}
	sched.Start()
	defer sched.Stop()

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID(), middleware.RequestLog(log), echomw.Recover(), middleware.Metrics())

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	limit := middleware.RateLimit(config.LoadRateLimitConfig(), rdb, log)

	centreHandler := handler.NewCentreHandler(centres)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, admins, refresh), cfg.JWTSecret)
	router.RegisterPublic(e, router.Public{
		Coupons:      handler.NewCouponHandler(validator),
		Approvals:    handler.NewApprovalHandler(resolver),
		Applications: handler.NewApplicationHandler(intake),
		Centres:      centreHandler,
	}, limit)
	router.RegisterAdmin(e, router.Admin{
		Applications: handler.NewAdminApplicationHandler(intake, resolver),
		Coupons:      handler.NewAdminCouponHandler(coupons, validator),
		Centres:      centreHandler,
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
}

// bootstrapAdmin creates the configured dashboard admin once.
func bootstrapAdmin(ctx context.Context, cfg config.Config, admins *repository.AdminRepo, log *logrus.Logger) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return
	}
	id, err := admins.Create(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		log.WithField("email", cfg.AdminEmail).Debug("bootstrap admin exists")
	case err != nil:
		log.WithError(err).Error("bootstrap admin")
	default:
		log.WithFields(logrus.Fields{"email": cfg.AdminEmail, "admin_id": id}).Info("bootstrap admin created")
	}
}
