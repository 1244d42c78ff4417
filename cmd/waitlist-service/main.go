package main

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"qms/waitlist-service/internal/captcha"
	"qms/waitlist-service/internal/config"
	"qms/waitlist-service/internal/events"
	"qms/waitlist-service/internal/httpapi"
	"qms/waitlist-service/internal/notify"
	"qms/waitlist-service/internal/store/postgres"
	"qms/waitlist-service/internal/telemetry"
	"qms/waitlist-service/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTracing := telemetry.Setup("waitlist-service")
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)

	verifier := captcha.New(captcha.Options{
		Provider:  cfg.CaptchaProvider,
		Secret:    cfg.CaptchaSecret,
		VerifyURL: cfg.CaptchaVerifyURL,
		Timeout:   cfg.CaptchaTimeout,
	})

	provider, err := notify.NewProvider(ctx, notify.Config{
		Kind:                cfg.PushProvider,
		WebhookURL:          cfg.PushWebhookURL,
		WebhookToken:        cfg.PushWebhookToken,
		FirebaseCredentials: cfg.FirebaseCredentials,
		AMQPURL:             cfg.AMQPURL,
		AMQPQueue:           cfg.AMQPQueue,
	})
	if err != nil {
		log.Fatalf("push provider: %v", err)
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}
	notifier := notify.NewNotifier(provider)

	var broker events.Broker = events.NewHub()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis connect: %v", err)
		}
		broker = events.NewRedisBroker(rdb, cfg.RedisChannel)
	}

	handler := httpapi.NewHandler(store, verifier, notifier, broker, httpapi.Options{
		AdminPassword:          cfg.AdminPassword,
		AdminPasswordHash:      cfg.AdminPasswordHash,
		CheckInInterval:        cfg.CheckInInterval,
		HistorySampleSize:      cfg.HistorySampleSize,
		DefaultWaitPerPosition: cfg.DefaultWaitPerPosition,
		StatsWindow:            cfg.StatsWindow,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:   cfg.RateLimitPerMinute,
		IPBurst:       cfg.RateLimitBurst,
		JoinPerMinute: cfg.JoinRateLimitPerMinute,
		JoinBurst:     cfg.JoinRateLimitBurst,
	})
	if cfg.AdminPassword == "" && cfg.AdminPasswordHash == "" {
		log.Printf("admin password not configured, admin endpoints are disabled")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(httpapi.CORS(cfg.CORSAllowedOrigin, limiter.Middleware(handler.Routes()))), "waitlist-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Printf("waitlist-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	checkins := worker.New(store, notifier, broker, worker.Config{
		CheckInInterval: cfg.CheckInInterval,
		ReminderLead:    cfg.CheckInReminderLead,
		Grace:           cfg.CheckInGrace,
		BatchSize:       cfg.WorkerBatchSize,
	})
	go worker.Start(ctx, cfg.WorkerInterval, checkins)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
