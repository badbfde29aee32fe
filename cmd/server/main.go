package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminhandler "admission/internal/admin/handler"
	adminservice "admission/internal/admin/service"
	adminstore "admission/internal/admin/store"
	"admission/internal/audit"
	"admission/internal/blob"
	"admission/internal/jwttoken"
	"admission/internal/notify"
	"admission/internal/platform/config"
	"admission/internal/platform/httpserver"
	"admission/internal/platform/logger"
	"admission/internal/platform/metrics"
	"admission/internal/platform/middleware"
	platformredis "admission/internal/platform/redis"
	reghandler "admission/internal/registration/handler"
	"admission/internal/registration/sequence"
	regservice "admission/internal/registration/service"
	regstore "admission/internal/registration/store"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	// Stores: postgres when a DSN is configured, in-memory otherwise so the
	// service still runs for local development and demos.
	var (
		registrations regstore.Store
		admins        adminstore.Store
	)
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(context.Background()); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		registrations = regstore.NewPostgres(db)
		admins = adminstore.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		registrations = regstore.NewInMemory()
		admins = adminstore.NewInMemory()
		log.Warn("no postgres DSN configured, using in-memory stores")
	}

	// Sequence allocation prefers redis so concurrent instances never hand
	// out the same registration number.
	var allocator sequence.Allocator = sequence.NewInMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		allocator = sequence.NewRedis(redisClient.Client)
		log.Info("using redis sequence allocator")
	}

	blobs, err := blob.NewFS(cfg.Upload.Dir)
	if err != nil {
		log.Error("failed to prepare upload directory", "dir", cfg.Upload.Dir, "error", err)
		os.Exit(1)
	}

	// Audit pipeline: always keep recent events in memory for the
	// dashboard; add the Kafka sink when brokers are configured.
	auditLog := audit.NewMemoryStore(500)
	sinks := []audit.Sink{auditLog}
	if len(cfg.Audit.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(context.Background(), cfg.Audit.Brokers, cfg.Audit.Topic)
		if err != nil {
			log.Error("kafka audit sink unavailable", "brokers", cfg.Audit.Brokers, "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("audit events flowing to kafka", "topic", cfg.Audit.Topic)
	}
	publisher := audit.NewPublisher(sinks, log)
	publisher.Start()

	// Notification channels are opt-in per channel.
	var channels []notify.Channel
	if cfg.Notifications.Email.Enabled {
		channels = append(channels, notify.NewEmail(cfg.Notifications.Email))
	}
	if cfg.Notifications.SMS.Enabled {
		channels = append(channels, notify.NewSMS(cfg.Notifications.SMS))
	}
	dispatcher := notify.NewDispatcher(channels, cfg.Notifications.QueueSize, log,
		notify.WithStatusStore(registrations),
		notify.WithMetrics(m),
	)
	dispatcher.Start()

	tokens := jwttoken.New(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.TokenTTL)

	regSvc := regservice.New(registrations, allocator, blobs, log,
		regservice.WithNotifier(dispatcher),
		regservice.WithAuditor(publisher),
		regservice.WithMetrics(m),
	)
	adminSvc := adminservice.New(admins, tokens, log,
		adminservice.WithAuditor(publisher),
	)

	if err := seedSuperAdmin(context.Background(), admins, log); err != nil {
		log.Error("failed to seed initial admin", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Latency(m))

	reghandler.New(regSvc, cfg.Upload, log).Register(router)
	adminhandler.New(adminSvc, regSvc, middleware.RequireAdmin(tokens, adminSvc, log), log,
		adminhandler.WithAuditLog(auditLog),
		adminhandler.WithReminderAge(cfg.ReminderAge),
	).Register(router)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting admission service", "addr", cfg.Server.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// Drain background workers after the server stops accepting requests
	// so in-flight notifications and audit events still land.
	dispatcher.Stop()
	publisher.Stop()
}

func seedSuperAdmin(ctx context.Context, admins adminstore.Store, log *slog.Logger) error {
	username := os.Getenv("ADMISSION_SEED_ADMIN_USER")
	password := os.Getenv("ADMISSION_SEED_ADMIN_PASS")
	if username == "" || password == "" {
		return nil
	}
	return adminstore.Seed(ctx, admins, username, password, log)
}
