package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap/zaptest"

	"vocab-quest-service/internal/app"
	"vocab-quest-service/internal/domain"
	"vocab-quest-service/internal/infra/postgres"
	pgmigrations "vocab-quest-service/internal/infra/postgres/migrations"
	infraredis "vocab-quest-service/internal/infra/redis"
)

func TestQuestFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := postgres.NewCatalogLoader(pool)
	if err := loader.SaveSession(ctx, sampleSession()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	service := app.NewQuestService(app.Stores{
		Catalog:     infraredis.NewCatalogRepository(redisClient, loader, 5*time.Minute),
		Words:       postgres.NewWordStateStore(pool),
		Ledger:      postgres.NewLedger(pool),
		Completions: postgres.NewCompletionStore(pool),
		Attempts:    infraredis.NewAttemptStore(redisClient, 5*time.Minute),
		Activity:    postgres.NewActivityRecorder(pool),
	}, app.WithLogger(zaptest.NewLogger(t)))

	if _, err := service.SubmitQuestAnswer(ctx, "u1", "s-1", "w1", true, time.Time{}); err != nil {
		t.Fatalf("answer w1: %v", err)
	}
	if _, err := service.SubmitQuestAnswer(ctx, "u1", "s-1", "w2", false, time.Time{}); err != nil {
		t.Fatalf("answer w2: %v", err)
	}

	blocked, err := service.RequestSessionCompletion(ctx, "u1", "s-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if blocked.Status != domain.CompletionBlocked || len(blocked.MistakeWordIDs) != 1 {
		t.Fatalf("expected blocked on w2, got %+v", blocked)
	}

	if _, err := service.SubmitQuestAnswer(ctx, "u1", "s-1", "w2", true, time.Time{}); err != nil {
		t.Fatalf("retry w2: %v", err)
	}
	done, err := service.RequestSessionCompletion(ctx, "u1", "s-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.CompletionCompleted || done.BonusXP != 50 {
		t.Fatalf("expected completion with bonus, got %+v", done)
	}
	// 10 + 2 + 10 + 50
	if done.Balance.XPTotal != 72 {
		t.Fatalf("expected 72 xp, got %d", done.Balance.XPTotal)
	}

	state, err := service.WordState(ctx, "u1", "w2")
	if err != nil {
		t.Fatalf("word state: %v", err)
	}
	if state.Repetitions != 1 || state.Lapses != 1 {
		t.Fatalf("unexpected w2 state %+v", state)
	}
}

func TestGuestMergeEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := postgres.NewCatalogLoader(pool)
	if err := loader.SaveSession(ctx, sampleSession()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	sessions, err := loader.LoadSessions(ctx)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("load sessions: %v %+v", err, sessions)
	}

	words := postgres.NewWordStateStore(pool)
	ledger := postgres.NewLedger(pool)
	service := app.NewQuestService(app.Stores{
		Catalog:     staticCatalog(sessions),
		Words:       words,
		Ledger:      ledger,
		Completions: postgres.NewCompletionStore(pool),
		Activity:    postgres.NewActivityRecorder(pool),
	}, app.WithLogger(zaptest.NewLogger(t)))

	snapshot := domain.GuestProgressSnapshot{
		SessionNumber: 1,
		XPEarned:      9999,
		Words: []domain.GuestWord{
			{WordID: "w1", Term: "apple", IsCorrect: true},
			{WordID: "w2", Term: "pear", IsCorrect: false},
			{WordID: "w3", Term: "plum", IsCorrect: true},
		},
		CorrectCount: 2,
		TotalCount:   3,
	}

	const callers = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := service.MergeGuestProgress(ctx, "guest-7", snapshot)
			if err != nil {
				t.Errorf("merge: %v", err)
				return
			}
			if !result.AlreadyMerged {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if applied != 1 {
		t.Fatalf("expected exactly one applied merge, got %d", applied)
	}

	balance, err := ledger.Balance(ctx, "guest-7")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	// clamped to 2*10 + 1*2 + 50
	if balance.XPTotal != 72 {
		t.Fatalf("expected 72 xp, got %d", balance.XPTotal)
	}

	due, err := words.Due(ctx, "guest-7", time.Now().Add(48*time.Hour), 0)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("expected 3 seeded words due within two days, got %d", len(due))
	}
	if n, err := words.CountDue(ctx, "guest-7", time.Now().Add(48*time.Hour)); err != nil || n != 3 {
		t.Fatalf("expected count of 3 due words, got %d (%v)", n, err)
	}
}

type staticCatalog []domain.QuestSession

func (c staticCatalog) SessionByNumber(_ context.Context, number int) (domain.QuestSession, error) {
	for _, q := range c {
		if q.Number == number {
			return q, nil
		}
	}
	return domain.QuestSession{}, domain.ErrSessionNotFound
}

func (c staticCatalog) Session(_ context.Context, id string) (domain.QuestSession, error) {
	for _, q := range c {
		if q.ID == id {
			return q, nil
		}
	}
	return domain.QuestSession{}, domain.ErrSessionNotFound
}

func (c staticCatalog) Sessions(context.Context) ([]domain.QuestSession, error) {
	return c, nil
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quest", "POSTGRES_PASSWORD": "questpass", "POSTGRES_DB": "questdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
	dsn := fmt.Sprintf("postgres://quest:questpass@%s:%s/questdb?sslmode=disable", host, port.Port())
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

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
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
}

func sampleSession() domain.QuestSession {
	return domain.QuestSession{
		ID:     "s-1",
		Number: 1,
		Title:  "Fruit",
		Words: []domain.WordRef{
			{ID: "w1", Term: "apple"},
			{ID: "w2", Term: "pear"},
			{ID: "w3", Term: "plum"},
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
