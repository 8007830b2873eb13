package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"faceoff-match-service/internal/app"
	"faceoff-match-service/internal/content"
	"faceoff-match-service/internal/domain"
	pginfra "faceoff-match-service/internal/infra/postgres"
	pgmigrations "faceoff-match-service/internal/infra/postgres/migrations"
	redisinfra "faceoff-match-service/internal/infra/redis"
	"faceoff-match-service/internal/judge"
	"faceoff-match-service/internal/phase"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

func TestMatchEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedPools(t, ctx, pgURL, samplePools())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	pools, err := pginfra.NewQuestionPoolLoader(pool).LoadPools(ctx)
	if err != nil {
		t.Fatalf("load pools: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	provider := redisinfra.NewQuestionRepository(redisClient, content.NewStaticProvider(pools), 5*time.Minute)
	sessions := redisinfra.NewSessionStore(redisClient, 5*time.Minute)
	store := pginfra.NewMatchStore(pool)

	registry := phase.NewRegistry(
		[]string{"quickfire"},
		phase.New("quickfire", 1),
		phase.New(phase.SuddenDeath, 1),
	)
	ledger := app.NewScoreLedger(store, judge.NewHeuristic(), zap.NewNop())
	service := app.NewMatchService(sessions, store, provider, registry, ledger, zap.NewNop())

	session, alice, err := service.CreateSession(ctx, "Alice")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	code := session.Code()
	_, bob, _, err := service.JoinSession(ctx, code, "Bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	match, _, err := service.StartMatch(ctx, code, alice.ID, domain.MatchTypeStandard, domain.MatchConfig{Seed: 7})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := service.HandleSubmission(ctx, code, alice.ID, "quickfire", 0, domain.Answer{OptionID: "q1b"}); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	events, err := service.HandleSubmission(ctx, code, bob.ID, "quickfire", 0, domain.Answer{OptionID: "q1a"})
	if err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	var winner string
	for _, ev := range events {
		if ev.Type == domain.EventMatchComplete {
			winner = ev.Payload.(domain.MatchCompletePayload).WinnerID
		}
	}
	if winner != alice.ID {
		t.Fatalf("expected alice to win, got %q", winner)
	}

	// The winner and the merged ledger must survive in postgres.
	persisted, err := store.GetMatch(ctx, match.ID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if persisted.CompletedAt == nil || persisted.WinnerID != alice.ID {
		t.Fatalf("match not finalized in store: %+v", persisted)
	}
	if persisted.Scores[alice.ID] != 5 || persisted.Scores[bob.ID] != 0 {
		t.Fatalf("persisted scores wrong: %+v", persisted.Scores)
	}

	state, err := store.ReadState(ctx, match.ID)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if _, done := state.PhaseContribution("quickfire"); !done {
		t.Fatalf("phase contribution marker missing: %+v", state)
	}

	subs, err := store.ListSubmissions(ctx, match.ID)
	if err != nil {
		t.Fatalf("list submissions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 persisted submissions, got %d", len(subs))
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "match", "POSTGRES_PASSWORD": "matchpass", "POSTGRES_DB": "matchdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://match:matchpass@%s:%s/matchdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedPools(t *testing.T, ctx context.Context, dsn string, pools map[string][]domain.Question) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for phaseName, questions := range pools {
		data, err := json.Marshal(questions)
		if err != nil {
			t.Fatalf("marshal pool: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO question_pools (phase, data) VALUES (?, ?::jsonb) ON CONFLICT (phase) DO UPDATE SET data=EXCLUDED.data`, phaseName, string(data)); err != nil {
			t.Fatalf("insert pool: %v", err)
		}
	}
}

func samplePools() map[string][]domain.Question {
	return map[string][]domain.Question{
		"quickfire": {
			{ID: "q1", Prompt: "Pick the right one", Options: []domain.Option{
				{ID: "q1a", Text: "Wrong"},
				{ID: "q1b", Text: "Right", Correct: true},
			}},
		},
		phase.SuddenDeath: {
			{ID: "sd1", Prompt: "Explain the race", Keywords: []string{"stale"}},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
