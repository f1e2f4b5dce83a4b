package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"github.com/thipowin/ThipoSelf/internal/commands"
	"github.com/thipowin/ThipoSelf/internal/commenter"
	"github.com/thipowin/ThipoSelf/internal/control"
	"github.com/thipowin/ThipoSelf/internal/dedup"
	"github.com/thipowin/ThipoSelf/internal/engine"
	"github.com/thipowin/ThipoSelf/internal/sinks"
	"github.com/thipowin/ThipoSelf/internal/store"
	"github.com/thipowin/ThipoSelf/internal/telegram"
	"github.com/thipowin/ThipoSelf/pkg/config"
	"github.com/thipowin/ThipoSelf/pkg/kafka"
	"github.com/thipowin/ThipoSelf/pkg/logging"
	"github.com/thipowin/ThipoSelf/pkg/monitoring"
	"github.com/thipowin/ThipoSelf/pkg/redis"
	"github.com/thipowin/ThipoSelf/pkg/server"
	"github.com/thipowin/ThipoSelf/pkg/version"
)

const serviceName = "thipoself"

func main() {
	logger := logging.NewLoggerWithService(serviceName)
	config.LoadEnv(logger)

	logger.WithField("version", version.String()).Info("Starting ThipoSelf auto-commenter")

	// run owns every deferred Close; exit only after it has returned.
	if err := run(logger); err != nil {
		logger.WithError(err).Error("ThipoSelf stopped with error")
		os.Exit(1)
	}
	logger.Info("ThipoSelf stopped")
}

func run(logger logging.Logger) error {
	// Required config
	appID := config.RequireEnvInt("API_ID")
	appHash := config.RequireEnv("API_HASH")
	phone := config.GetEnv("PHONE", "")
	password := config.GetEnv("TWO_STEP_PASSWORD", "")
	sessionFile := config.GetEnv("SESSION_FILE", "session.json")

	channelsFile := config.GetEnv("CHANNELS_FILE", "channels.json")
	wordsFile := config.GetEnv("WORDS_FILE", "words.json")
	httpPort := config.GetEnv("THIPOSELF_PORT", "18090")
	controlToken := config.GetEnv("CONTROL_TOKEN", "")
	redisURL := config.GetEnv("REDIS_URL", "")
	kafkaBrokers := config.GetEnvList("KAFKA_BROKERS")
	reportsTopic := config.GetEnv("KAFKA_REPORTS_TOPIC", "thipoself_reports")

	loc, err := time.LoadLocation(config.GetEnv("REPORT_TIMEZONE", "Asia/Tehran"))
	if err != nil {
		return fmt.Errorf("invalid REPORT_TIMEZONE: %w", err)
	}

	policy := commenter.DefaultPolicy()
	policy.MaxAttempts = config.GetEnvInt("DELIVERY_MAX_ATTEMPTS", policy.MaxAttempts)
	if policy.MaxAttempts > commenter.MaxAttemptsCeiling {
		logger.WithField("requested", policy.MaxAttempts).Warnf("DELIVERY_MAX_ATTEMPTS capped at %d", commenter.MaxAttemptsCeiling)
	}
	policy.MaxRateLimitWait = config.GetEnvDuration("MAX_RATE_LIMIT_WAIT", 0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistent lists
	channels, err := store.Load[int64](channelsFile)
	if err != nil {
		return fmt.Errorf("load channel list: %w", err)
	}
	words, err := store.Load[string](wordsFile)
	if err != nil {
		return fmt.Errorf("load word list: %w", err)
	}
	state := engine.New(config.GetEnvBool("ENGINE_ACTIVE", false))

	logger.WithFields(logging.Fields{
		"channels":      channels.Len(),
		"channels_file": channels.Path(),
		"words":         words.Len(),
		"words_file":    words.Path(),
		"active":        state.Active(),
	}).Info("Configuration loaded")

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker(serviceName, version.Version)
	metricsCollector := monitoring.NewMetricsCollector(serviceName, version.Version, version.GitCommit)
	metrics := commenter.NewMetrics(metricsCollector)

	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"API_HASH":     appHash,
		"SESSION_FILE": sessionFile,
	}))

	// Duplicate-update guard: shared in Redis when configured, in-process otherwise
	var guard commenter.ClaimGuard
	if redisURL != "" {
		redisCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		redisClient, err := redis.NewClientFromURL(redisCtx, redisURL)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to Redis; using in-memory duplicate guard")
		} else {
			defer func() { _ = redisClient.Close() }()
			guard = dedup.NewRedisGuard(redisClient, serviceName+":post:", dedup.DefaultTTL)
			healthChecker.AddCheck("redis", monitoring.PingHealthCheck("redis", redis.Pinger{Client: redisClient}, true))
		}
	}
	if guard == nil {
		memGuard, err := dedup.NewMemoryGuard(4096)
		if err != nil {
			return fmt.Errorf("create duplicate guard: %w", err)
		}
		guard = memGuard
	}

	// Telegram session
	tgClient := telegram.NewClient(telegram.Config{
		AppID:       appID,
		AppHash:     appHash,
		Phone:       phone,
		Password:    password,
		SessionFile: sessionFile,
	}, logger, logging.NewBackendLogger(serviceName))
	backend := tgClient.Backend()
	healthChecker.AddCheck("telegram", monitoring.PingHealthCheck("telegram", tgClient, false))

	// Report sinks: Saved Messages always, Kafka when configured
	reportSinks := []commenter.Sink{telegram.NewSelfSink(backend)}
	if len(kafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafkaBrokers, serviceName, logger)
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer func() { _ = producer.Close() }()
		reportSinks = append(reportSinks, sinks.WithBreaker(
			sinks.NewKafkaSink(producer, reportsTopic),
			sinks.DefaultBreakerConfig("kafka", logger),
		))
		healthChecker.AddCheck("kafka", monitoring.PingHealthCheck("kafka", producer, true))
	}

	orchestrator := commenter.NewOrchestrator(commenter.Config{
		Engine:    state,
		Channels:  channels,
		Words:     words,
		Namer:     backend,
		Resolver:  commenter.NewResolver(backend, logger),
		Deliverer: commenter.NewDeliverer(backend, policy, logger, metrics),
		Reporter:  commenter.NewReporter(loc, logger, metrics, reportSinks...),
		Guard:     guard,
		Logger:    logger,
		Metrics:   metrics,
	})

	dispatcher := commands.New(commands.Config{
		Channels: channels,
		Words:    words,
		Engine:   state,
		Namer:    backend,
		Pinger:   backend,
		Logger:   logger,
	})
	logger.WithField("checks", healthChecker.CheckNames()).Debug("Health checks registered")

	g, gctx := errgroup.WithContext(ctx)
	router := telegram.NewRouter(gctx, orchestrator, dispatcher, backend, backend.Peers(), logger)

	// HTTP: /health, /metrics and the engine switch
	httpRouter := server.SetupServiceRouter(logger, serviceName, healthChecker, metricsCollector)
	control.Register(httpRouter, control.Dependencies{
		Engine:   state,
		Channels: channels,
		Words:    words,
		Logger:   logger,
		Token:    controlToken,
	})

	g.Go(func() error {
		return tgClient.Run(gctx, router)
	})
	g.Go(func() error {
		return server.Run(gctx, server.DefaultConfig(serviceName, httpPort), httpRouter, logger)
	})

	err = g.Wait()
	orchestrator.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
