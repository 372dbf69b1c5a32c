// Package main запускает HTTP-сервер игровой комнаты.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/playhouse/internal/billing"
	"github.com/mmeshcher/playhouse/internal/config"
	"github.com/mmeshcher/playhouse/internal/handler"
	"github.com/mmeshcher/playhouse/internal/metrics"
	"github.com/mmeshcher/playhouse/internal/middleware"
	"github.com/mmeshcher/playhouse/internal/printagent"
	"github.com/mmeshcher/playhouse/internal/printer"
	"github.com/mmeshcher/playhouse/internal/repository"
	"github.com/mmeshcher/playhouse/internal/scanguard"
	"github.com/mmeshcher/playhouse/internal/service"
	"github.com/mmeshcher/playhouse/internal/tracing"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint)
	if err != nil {
		sugar.Fatalw("tracing initialization error", "error", err.Error())
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			sugar.Warnw("tracing shutdown error", "error", err.Error())
		}
	}()

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	m := metrics.New()
	engine := billing.NewEngine(cfg.Billing())

	var receiptPrinter printer.Printer
	if cfg.PrintAgentAddress != "" {
		receiptPrinter = printagent.NewClient(cfg.PrintAgentAddress, cfg.ReceiptTitle)
		sugar.Infow("receipts go to print agent", "addr", cfg.PrintAgentAddress)
	} else {
		receiptPrinter = printer.NewSpool(cfg.ReceiptDir, cfg.PrintCommand, printer.Renderer{
			Title:    cfg.ReceiptTitle,
			Location: cfg.Location(),
		})
		sugar.Infow("receipts go to spool directory", "dir", cfg.ReceiptDir, "command", cfg.PrintCommand)
	}
	queue := printer.NewQueue(receiptPrinter, cfg.PrintQueueSize, logger.Named("printer"), m)

	opts := []service.Option{
		service.WithPrinter(receiptPrinter),
		service.WithPublisher(queue),
		service.WithMetrics(m),
		service.WithLogger(logger.Named("service")),
		service.WithLocation(cfg.Location()),
	}

	if cfg.RedisURL != "" {
		redisClient, err := newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer redisClient.Close()

		opts = append(opts, service.WithScanGuard(scanguard.NewRedisGuard(redisClient, cfg.ScanCooldown)))
		sugar.Infow("scan guard enabled", "cooldown", cfg.ScanCooldown)
	}

	svc := service.NewService(repo, engine, opts...)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		sugar.Warn("JWT_SECRET is empty, staff endpoints accept only tokens issued by this process")
	}
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter(handler.RouterOptions{
		AllowedOrigins: cfg.FrontendURLs,
		Metrics:        m,
	})

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           otelhttp.NewHandler(r, tracing.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Печать чеков в фоне
	g.Go(func() error {
		return queue.Run(ctx)
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting playhouse server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
