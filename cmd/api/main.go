// Package main — точка входа Payment API.
// Принимает запросы на авторизацию платежей, ведёт event-sourced state machine
// до терминальной фазы и публикует уведомления о переходах через outbox.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/payment-system/internal/adapters/gateway"
	"example.com/payment-system/internal/adapters/sandbox"
	"example.com/payment-system/internal/api"
	"example.com/payment-system/internal/featureflag"
	"example.com/payment-system/internal/orchestrator"
	"example.com/payment-system/internal/outcome"
	"example.com/payment-system/internal/repository"
	"example.com/payment-system/pkg/circuitbreaker"
	"example.com/payment-system/pkg/config"
	dbpkg "example.com/payment-system/pkg/db"
	"example.com/payment-system/pkg/healthcheck"
	"example.com/payment-system/pkg/kafka"
	"example.com/payment-system/pkg/logger"
	"example.com/payment-system/pkg/metrics"
	"example.com/payment-system/pkg/outbox"
	"example.com/payment-system/pkg/tracing"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})

	// Создаём логгер с контекстом сервиса
	log := logger.With().Str("service", "payment-api").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Str("addr", cfg.HTTP.Addr()).
		Msg("Запуск Payment API")

	// === Observability: Tracing ===

	// Инициализируем distributed tracing (Jaeger)
	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "payment-api",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Инициализация зависимостей ===

	// MySQL — журнал событий платежей и таблица outbox
	db, err := dbpkg.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	// Redis — фичефлаги и read model попыток авторизации
	rdb := dbpkg.ConnectRedis(cfg.Redis)
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Fatal().Err(err).Msg("Не удалось подключиться к Redis")
	}
	cancelPing()
	log.Info().Str("addr", cfg.Redis.Addr()).Msg("Подключено к Redis")

	// === Observability: Metrics ===

	readinessCheck := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, db) },
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, rdb) },
	)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "payment-api",
			metrics.WithReadinessCheck(readinessCheck))
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Kafka + Outbox ===

	kafkaProducer, err := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Kafka producer")
	}
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka producer")
		}
	}()

	outboxRepo := outbox.NewOutboxRepository(db, "payment")
	outboxWorker := outbox.NewOutboxWorker(outboxRepo, kafkaProducer, outbox.WorkerConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxRetries:   cfg.Outbox.MaxAttempts,
	}, "api")

	workerCtx, stopWorker := context.WithCancel(context.Background())
	go outboxWorker.Run(workerCtx)

	// === Сборка оркестратора ===

	store := repository.NewPaymentStore(db)
	flags := featureflag.New(rdb)
	attempts := outcome.NewAttemptRecorder(rdb)

	risk, routing, gw := buildExternalServices(cfg)

	orch := orchestrator.New(store, risk, routing, gw, flags, attempts)

	// === Настройка роутера ===

	router := api.NewRouter(api.RouterConfig{
		Orchestrator:   orch,
		Attempts:       attempts,
		ReadinessCheck: readinessCheck,
		Debug:          cfg.IsDevelopment(),
	})

	// === HTTP сервер ===

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr()).Msg("HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// === Graceful Shutdown ===

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка при остановке сервера")
	}

	// Останавливаем Outbox Worker
	stopWorker()

	// Останавливаем Metrics Server (если был запущен)
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
	}

	// Останавливаем Tracing
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	// Закрываем подключение к MySQL
	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	log.Info().Msg("Payment API остановлен")
}

// buildExternalServices собирает клиентов фрод-оценки, маршрутизации и шлюза.
// В sandbox-режиме используются встроенные детерминированные реализации,
// шлюз в любом режиме оборачивается в circuit breaker.
func buildExternalServices(cfg *config.Config) (
	orchestrator.RiskAssessmentService,
	orchestrator.RoutingService,
	orchestrator.AuthorizationGateway,
) {
	if !cfg.Gateway.Sandbox {
		// Клиенты реальных провайдеров подключаются здесь.
		// Пока поддерживается только sandbox-режим.
		logger.Warn().Msg("GATEWAY_SANDBOX=false не поддерживается, используется sandbox")
	}

	breaker := circuitbreaker.New("authorization-gateway")
	gw := gateway.NewResilient(sandbox.NewGateway(), breaker)

	return sandbox.NewRiskService(), sandbox.NewRoutingService(), gw
}
