package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ychleo102615/hanahuda-server/internal/app"
	"github.com/ychleo102615/hanahuda-server/internal/bot"
	"github.com/ychleo102615/hanahuda-server/internal/config"
	"github.com/ychleo102615/hanahuda-server/internal/ports/postgres"
	"github.com/ychleo102615/hanahuda-server/internal/ports/redisstore"
	"github.com/ychleo102615/hanahuda-server/internal/ports/ws"
)

const botThinkDelay = 700 * time.Millisecond

func main() {
	_ = godotenv.Load()

	cfg := config.LoadFromEnv()
	log := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	deps := app.ServiceDeps{
		Store:   app.NewGameStore(),
		Bus:     app.NewInternalBus(log),
		Players: app.NewPlayerBus(log),
		Timers:  app.NewTimerService(log),
		Limiter: app.NewRateLimiter(cfg.RateLimitWindow(), cfg.RateLimitBudget),
	}

	var sessions app.SessionStore = app.NewMemorySessionStore()

	if cfg.PostgresDSN != "" {
		db, err := sqlx.Connect("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer db.Close()
		if err := runMigrations(cfg); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
		deps.Repo = postgres.NewGameRepo(db)
		deps.Logs = postgres.NewLogRepo(db)
		deps.Stats = postgres.NewStatsRepo(db)
		deps.Identities = postgres.NewPlayerRepo(db)
		log.Info().Msg("durable repositories enabled")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis connect failed")
		}
		defer rdb.Close()
		sessions = redisstore.NewSessionStore(rdb)
		log.Info().Msg("redis session store enabled")
	}

	pool := app.NewMatchmakingPool()
	registry := app.NewRegistry(log, deps.Bus)
	deps.Matchmaker = app.NewMatchmaker(log, cfg, pool, registry, deps.Bus, deps.Players, deps.Store)

	service := app.NewService(log, cfg, deps)
	orchestrator := bot.NewOrchestrator(log, deps.Bus, deps.Players, service, bot.NewGreedyBrain(), botThinkDelay)
	defer orchestrator.Stop()

	var handoff *app.HandoffIssuer
	if cfg.HandoffSecret != "" {
		handoff = app.NewHandoffIssuer(cfg.HandoffSecret)
	}

	manager := ws.NewManager(log, deps.Players, service)
	gateway := ws.NewGateway(log, sessions, handoff, manager, service)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gateway.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Str("env", cfg.Env).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := deps.Limiter.RunJanitor(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		registry.Stop()
		deps.Timers.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	var out = os.Stderr
	logger := zerolog.New(out).With().Timestamp().Logger()
	if !cfg.Production() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsDir, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
