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

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/broadcast"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/chat"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/infrastructure/postgres"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/infrastructure/rabbitmq"
	rediscache "github.com/baechuer/real-time-ressys/services/delivery-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/logger"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/security"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/service"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/transport/rest"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/transport/ws"
)

type stores struct {
	bookings domain.BookingRepository
	chats    domain.ChatRepository
	users    domain.UserDirectory
	pg       *postgres.Repository
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	// logger reads LOG_LEVEL / LOG_FORMAT from env
	_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	_ = os.Setenv("LOG_FORMAT", cfg.LogFormat)
	logger.Init()
	log := logger.Logger.With().Str("env", cfg.AppEnv).Logger()
	al := audit.New(logger.Logger)

	// Root ctx with signal cancellation
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Store ----
	st, err := openStores(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store init failed")
	}
	defer st.close()
	log.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	readiness := map[string]rest.Pinger{}
	if st.pg != nil {
		readiness["postgres"] = st.pg.Ping
	}

	// ---- Redis (optional) ----
	users := st.users
	var limiter rest.Limiter
	if cfg.RedisAddr != "" {
		cache := rediscache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer func() { _ = cache.Close() }()

		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		if err := cache.Ping(pingCtx); err != nil {
			// both users of redis fail open, so keep going
			log.Warn().Err(err).Msg("redis ping failed (continuing)")
		} else {
			log.Info().Msg("redis connected")
		}
		cancel()

		users = rediscache.NewCachedDirectory(cache, st.users, cfg.CacheUserTTL)
		limiter = cache
		readiness["redis"] = cache.Ping
	}

	// ---- Broadcast bus ----
	bus := broadcast.NewBus(broadcast.WithObserver(func(rc broadcast.Receipt) {
		metrics.ObservePublish(broadcast.Kind(rc.Group), rc.Delivered, rc.Dropped)
	}))

	// ---- Application services ----
	bookings := service.NewBookingService(st.bookings, users, bus, service.SystemClock{}, al)
	chatSvc := service.NewChatService(st.bookings, chat.NewRegistry(st.chats, cfg.ChatMaxLen), users, bus, al)

	// ---- Outbox worker (outbound booking.* events) ----
	if cfg.OutboxEnabled && st.pg != nil && cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("rabbitmq publisher init failed")
		}
		defer func() { _ = pub.Close() }()

		st.pg.StartOutboxWorker(rootCtx, pub, al)
		log.Info().Str("exchange", cfg.RabbitExchange).Msg("outbox worker started")
	} else {
		log.Info().Msg("outbox worker disabled")
	}

	// ---- JWT verifier ----
	verifier := security.NewHS256Verifier(cfg.JWTSecret)

	// ---- Live channel ----
	live := ws.NewHandler(chatSvc, bus, verifier, al, ws.Options{
		SendBuffer:     cfg.WSSendBuffer,
		AllowedOrigins: cfg.WSAllowedOrigins,
		ExpectedIssuer: cfg.JWTIssuer,
	})

	// ---- Router ----
	deps := rest.RouterDeps{
		Handler:   rest.NewHandler(bookings, chatSvc),
		Live:      live,
		Health:    rest.NewHealthHandler(readiness),
		Verifier:  verifier,
		JWTIssuer: cfg.JWTIssuer,
		Limiter:   limiter,
	}
	if cfg.RLEnabled {
		deps.RateLimit = &rest.RateLimitOptions{Limit: cfg.RLLimit, Window: cfg.RLWindow}
	}

	// ---- HTTP server ----
	// no read/write timeouts: live connections are long-lived and manage their own deadlines
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           rest.NewRouter(deps),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server crash
	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	// Graceful shutdown. Shutdown does not track hijacked live connections.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Int("sessions", live.CloseAll()).Msg("live sessions closed")
	log.Info().Msg("shutdown complete")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		seed, err := memory.ParseUsers(cfg.MemoryUsers)
		if err != nil {
			return nil, err
		}
		return &stores{
			bookings: memory.NewBookingRepo(),
			chats:    memory.NewChatRepo(),
			users:    memory.NewUserDirectory(seed...),
			close:    func() {},
		}, nil
	case config.StoreDriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		repo := postgres.New(pool)
		return &stores{
			bookings: repo,
			chats:    repo,
			users:    repo,
			pg:       repo,
			close:    pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
