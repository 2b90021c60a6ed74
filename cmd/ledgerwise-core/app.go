package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerwise/ledgerwise-core/internal/adapters/driven/ai"
	"github.com/ledgerwise/ledgerwise-core/internal/adapters/driven/auth"
	"github.com/ledgerwise/ledgerwise-core/internal/adapters/driven/memory"
	"github.com/ledgerwise/ledgerwise-core/internal/adapters/driven/postgres"
	redisadapter "github.com/ledgerwise/ledgerwise-core/internal/adapters/driven/redis"
	"github.com/ledgerwise/ledgerwise-core/internal/adapters/driving/http"
	"github.com/ledgerwise/ledgerwise-core/internal/config"
	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driving"
	"github.com/ledgerwise/ledgerwise-core/internal/core/services"
	"github.com/ledgerwise/ledgerwise-core/internal/observability"
	"github.com/ledgerwise/ledgerwise-core/internal/postprocessors"
	"github.com/ledgerwise/ledgerwise-core/internal/runtime"
)

// app holds the wired process components
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *postgres.DB
	redisClient *redis.Client
	tracing     *observability.TracerProvider

	services     *runtime.Services
	sessionStore driven.SessionStore
	index        *services.IndexManager
	auth         driving.AuthService
	chat         driving.ChatService
}

// newApp loads configuration and connects every backend
func newApp(ctx context.Context, envFile string) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	a.tracing = tp

	// ===== PostgreSQL =====
	dbConfig := postgres.DefaultConfig(cfg.DatabaseURL)
	dbConfig.MaxOpenConns = cfg.DBMaxOpenConns
	dbConfig.MaxIdleConns = cfg.DBMaxIdleConns
	db, err := postgres.Connect(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	a.logger.Info("postgres connected and schema initialized")

	// ===== Redis (optional) =====
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		a.redisClient = redis.NewClient(opts)
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.logger.Info("redis connected")
	}

	// ===== Session store =====
	if cfg.SessionBackend == config.SessionBackendRedis {
		a.sessionStore = redisadapter.NewSessionStore(a.redisClient)
	} else {
		a.sessionStore = postgres.NewSessionStore(db)
	}
	a.logger.Info("session store selected", "backend", cfg.SessionBackend)

	// ===== AI gateway =====
	a.services = runtime.NewServices(domain.NewRuntimeConfig(cfg.SessionBackend))
	settings := cfg.AISettings()
	factory := ai.NewFactory(settings.RateLimit)

	embedder, err := factory.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return fmt.Errorf("create embedding service: %w", err)
	}
	if err := a.services.ValidateAndSetEmbedding(ctx, embedder); err != nil {
		// the reconnect-gateway job retries on every maintenance cycle
		a.logger.Warn("embedding service unavailable", "error", err)
	}

	llm, err := factory.CreateLLMService(&settings.LLM)
	if err != nil {
		return fmt.Errorf("create llm service: %w", err)
	}
	if err := a.services.ValidateAndSetLLM(ctx, llm); err != nil {
		a.logger.Warn("llm service unavailable", "error", err)
	}

	a.services.SetGatewayFactory(runtime.GatewayFactory{
		Embedding: func() (driven.EmbeddingService, error) {
			return factory.CreateEmbeddingService(&settings.Embedding)
		},
		LLM: func() (driven.LLMService, error) {
			return factory.CreateLLMService(&settings.LLM)
		},
	})

	rc := a.services.Config()
	a.logger.Info("runtime capabilities",
		"embedding", rc.EmbeddingAvailable(),
		"llm", rc.LLMAvailable(),
		"tracing", tp.Enabled(),
	)

	// ===== Core services =====
	pipeline := postprocessors.DefaultPipeline(postprocessors.ChunkConfig{
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.ChunkOverlap,
	})
	a.index = services.NewIndexManager(
		postgres.NewRecordSource(db),
		a.services,
		services.NewDocumentBuilder(pipeline),
		services.IndexConfig{
			RecordLimit:    cfg.RecordLimit,
			EmbedBatchSize: cfg.EmbedBatchSize,
			CacheSize:      cfg.IndexCacheSize,
			CacheTTL:       cfg.IndexTTL,
			BuildTimeout:   cfg.BuildTimeout,
			Logger:         a.logger,
		},
	)

	conversations := memory.NewConversationStore(memory.ConversationStoreConfig{
		MaxConversations: cfg.ConversationCacheSize,
		TTL:              cfg.ConversationTTL,
	})
	a.chat = services.NewChatService(a.index, conversations, a.services, services.ChatConfig{
		TopK:         cfg.TopK,
		HistoryLimit: cfg.HistoryLimit,
		TurnTimeout:  cfg.TurnTimeout,
		Logger:       a.logger,
	})

	a.auth = services.NewAuthService(
		postgres.NewUserStore(db),
		a.sessionStore,
		auth.NewAdapter(cfg.JWTSecret),
		services.AuthConfig{TokenTTL: cfg.TokenTTL, Logger: a.logger},
	)

	return nil
}

// Close releases backends in reverse order of creation
func (a *app) Close() {
	if a.services != nil {
		_ = a.services.Close()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("tracing shutdown failed", "error", err)
		}
	}
}

// maintenanceLock prefers redis and falls back to postgres advisory locks
func (a *app) maintenanceLock() driven.DistributedLock {
	if a.redisClient != nil {
		return redisadapter.NewLock(a.redisClient)
	}
	return postgres.NewAdvisoryLock(a.db)
}

func runServe(ctx context.Context, envFile string) error {
	a, err := newApp(ctx, envFile)
	if err != nil {
		return err
	}
	defer a.Close()

	// ===== Maintenance =====
	jobs := []services.MaintenanceJob{
		services.GatewayRecoveryJob(a.services, a.logger),
		services.IndexStatsJob(a.index, a.logger),
	}
	if purger, ok := a.sessionStore.(driven.ExpiredSessionPurger); ok {
		jobs = append(jobs, services.SessionSweepJob(purger, a.logger))
	}
	scheduler := services.NewScheduler(services.SchedulerConfig{
		Jobs:     jobs,
		Lock:     a.maintenanceLock(),
		Logger:   a.logger,
		Interval: a.cfg.MaintenanceInterval,
	})
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Stop()

	// ===== Record-change subscriber =====
	var redisPinger http.Pinger
	if a.redisClient != nil {
		bus := redisadapter.NewRecordBus(a.redisClient, redisadapter.RecordBusConfig{Logger: a.logger})
		redisPinger = bus
		go func() {
			if err := bus.Subscribe(ctx, services.RefreshOnRecordChange(a.index, a.logger)); err != nil {
				a.logger.Error("record change subscriber stopped", "error", err)
			}
		}()
	} else {
		a.logger.Info("redis not configured, record changes are picked up on index expiry or explicit refresh")
	}

	// ===== HTTP =====
	httpCfg := http.DefaultConfig()
	httpCfg.Host = a.cfg.Host
	httpCfg.Port = a.cfg.Port
	httpCfg.Version = version
	httpCfg.MaxBodyBytes = a.cfg.MaxBodyBytes
	httpCfg.AllowedOrigins = a.cfg.AllowedOrigins
	httpCfg.Logger = a.logger
	if floor := a.cfg.TurnTimeout + 10*time.Second; httpCfg.WriteTimeout < floor {
		httpCfg.WriteTimeout = floor
	}

	server := http.NewServer(httpCfg, http.Deps{
		Auth:     a.auth,
		Chat:     a.chat,
		Index:    a.index,
		Services: a.services,
		DB:       a.db,
		Redis:    redisPinger,
	})

	return server.Start(ctx)
}

func runReindex(ctx context.Context, envFile, userID string, out io.Writer) error {
	if userID == "" {
		return errors.New("--user is required")
	}

	a, err := newApp(ctx, envFile)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	n, err := a.index.Warm(ctx, userID)
	if err != nil {
		return fmt.Errorf("reindex %s: %w", userID, err)
	}
	fmt.Fprintf(out, "indexed %d documents for user %s in %s\n", n, userID, time.Since(start).Round(time.Millisecond))
	return nil
}
