package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
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

	"pharma-quiz-service/internal/app"
	"pharma-quiz-service/internal/domain"
	infrapg "pharma-quiz-service/internal/infra/postgres"
	pgmigrations "pharma-quiz-service/internal/infra/postgres/migrations"
	infraredis "pharma-quiz-service/internal/infra/redis"
	"pharma-quiz-service/internal/pkg/logger"
)

func TestQuizLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := infrapg.NewPortalStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	bundles := infraredis.NewQuizCache(redisClient, store, 5*time.Minute)
	attempts := infraredis.NewAttemptStore(redisClient, 5*time.Minute)
	service := app.NewPortalService(store, bundles, attempts, nil, logger.NewNop())

	quiz, err := service.CreateQuiz(ctx, domain.RoleInstructor,
		app.QuizDraft{Title: "Mid-Term Pharmacology", DurationMinutes: 45, Program: domain.ProgramBachelor},
		[]app.QuestionDraft{
			{Text: "Which of the following is a beta-blocker?", Options: []string{"Atenolol", "Lisinopril", "Amlodipine", "Furosemide"}, CorrectAnswer: 0},
			{Text: "What is the standard dosage unit for insulin?", Options: []string{"mg", "ml", "Units", "grams"}, CorrectAnswer: 2},
		})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	questions, err := service.QuizQuestions(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("quiz questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}

	// Alice answers both correctly, Bob only the first.
	aliceAnswers := map[string]int{questions[0].ID: questions[0].CorrectAnswer, questions[1].ID: questions[1].CorrectAnswer}
	alice, err := service.SubmitQuiz(ctx, quiz.ID, aliceAnswers, "u1", "Alice")
	if err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	bob, err := service.SubmitQuiz(ctx, quiz.ID, map[string]int{questions[0].ID: questions[0].CorrectAnswer}, "u2", "Bob")
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	if alice.Percentage != 100 || bob.Percentage != 50 {
		t.Fatalf("unexpected percentages: alice=%d bob=%d", alice.Percentage, bob.Percentage)
	}

	// Pending results stay off the leaderboard.
	lb, err := service.Leaderboard(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Groups) != 0 {
		t.Fatalf("expected empty leaderboard before publishing, got %+v", lb.Groups)
	}

	for _, id := range []string{alice.ID, bob.ID} {
		if err := service.PublishResult(ctx, domain.RoleAdmin, id); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}

	lb, err = service.Leaderboard(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Groups) != 2 || lb.Groups[0].Entries[0].StudentID != "u1" || lb.Groups[0].Rank != 1 {
		t.Fatalf("expected alice leading, got %+v", lb.Groups)
	}

	results, err := service.ResultsForStudent(ctx, "u2")
	if err != nil {
		t.Fatalf("bob results: %v", err)
	}
	if len(results) != 1 || results[0].Status != domain.ResultStatusPublished || results[0].QuizTitle != quiz.Title {
		t.Fatalf("unexpected bob results: %+v", results)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
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

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "portal", "POSTGRES_PASSWORD": "portalpass", "POSTGRES_DB": "portaldb"},
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
	dsn := fmt.Sprintf("postgres://portal:portalpass@%s:%s/portaldb?sslmode=disable", host, port.Port())
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
