package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"faceoff-match-service/internal/app"
	"faceoff-match-service/internal/config"
	"faceoff-match-service/internal/content"
	"faceoff-match-service/internal/infra/memory"
	pginfra "faceoff-match-service/internal/infra/postgres"
	redisinfra "faceoff-match-service/internal/infra/redis"
	"faceoff-match-service/internal/judge"
	"faceoff-match-service/internal/phase"
	transport "faceoff-match-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the match server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader content.Provider = content.NewDefaultProvider()
	if pool != nil {
		pools, err := pginfra.NewQuestionPoolLoader(pool).LoadPools(ctx)
		if err != nil {
			return err
		}
		if len(pools) > 0 {
			loader = content.NewStaticProvider(pools)
		}
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var provider content.Provider
	if redisClient != nil {
		provider = redisinfra.NewQuestionRepository(redisClient, loader, contentTTL)
	} else {
		provider = memory.NewQuestionRepository(loader, contentTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	var store app.MatchStore
	if pool != nil {
		store = pginfra.NewMatchStore(pool)
	} else {
		store = memory.NewMatchStore()
	}

	judgeTimeout := config.TTLDuration(cfg.Judge.Timeout, 10*time.Second)
	oracle := judge.NewBounded(judge.NewHeuristic(), judgeTimeout)

	registry := phase.DefaultRegistry()
	ledger := app.NewScoreLedger(store, oracle, log)
	service := app.NewMatchService(sessions, store, provider, registry, ledger, log)

	gateway := transport.NewGateway(log)
	wsHandler := transport.NewWSHandler(service, gateway, log)
	api := transport.NewAPI(service, gateway, log)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.Routes(api, wsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting match service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
