package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/events"
	"classroom-quiz-service/internal/infra/postgres"
	pgmigrations "classroom-quiz-service/internal/infra/postgres/migrations"
	infraredis "classroom-quiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"golang.org/x/sync/errgroup"
)

func TestQuizAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()
	pools := infraredis.NewPoolRepository(redisClient, store, 5*time.Minute, nil)
	index := infraredis.NewAdminIndex(redisClient)

	hub := events.NewHub()
	defer hub.Close()
	indexer := events.NewIndexer(hub, index, nil)
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go indexer.Run(runCtx)

	catalog := app.NewCatalogService(store, pools, hub, nil)
	if _, err := catalog.ValidClasses(ctx); err != nil {
		t.Fatalf("seed classes: %v", err)
	}
	if err := catalog.SetQuizTime(ctx, "BCA-I", 900); err != nil {
		t.Fatalf("set quiz time: %v", err)
	}
	if _, err := catalog.ImportContestants(ctx, []app.ContestantInput{
		{USN: "TY25BCA007", Name: "Asha Rao", ClassName: "BCA-I", QuizCode: "AI-2025", QuizPassword: "p@ss1"},
	}); err != nil {
		t.Fatalf("import contestants: %v", err)
	}
	answers := make(map[string]string)
	for i := 0; i < 6; i++ {
		q, err := catalog.AddQuestion(ctx, app.QuestionInput{
			ClassName:     "BCA-I",
			QuizCode:      "AI-2025",
			QuestionText:  fmt.Sprintf("Question %d", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "B",
		})
		if err != nil {
			t.Fatalf("add question: %v", err)
		}
		answers[q.ID] = q.CorrectAnswer
	}

	service := app.NewQuizService(store, pools, hub, nil)
	payload, err := service.RandomQuiz(ctx, "TY25BCA007", "AI-2025", "p@ss1")
	if err != nil {
		t.Fatalf("random quiz: %v", err)
	}
	if len(payload.Questions) != 5 || payload.QuizTime != 900 {
		t.Fatalf("unexpected payload: %d questions, quizTime %d", len(payload.Questions), payload.QuizTime)
	}
	responses := make(map[string]string)
	for _, q := range payload.Questions {
		responses[q.ID] = answers[q.ID]
	}

	var succeeded, rejected atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			submission, err := service.Submit(ctx, "TY25BCA007", responses)
			switch {
			case err == nil:
				succeeded.Add(1)
				if submission.Score != 5 || submission.TotalQuestions != 5 {
					return fmt.Errorf("unexpected score %d/%d", submission.Score, submission.TotalQuestions)
				}
			case errors.Is(err, domain.ErrAlreadyAttempted):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if succeeded.Load() != 1 || rejected.Load() != 7 {
		t.Fatalf("expected 1 success and 7 rejections, got %d and %d", succeeded.Load(), rejected.Load())
	}

	contestant, err := store.FindContestant(ctx, "TY25BCA007")
	if err != nil {
		t.Fatalf("find contestant: %v", err)
	}
	if len(contestant.Results) != 1 {
		t.Fatalf("expected one embedded attempt, got %d", len(contestant.Results))
	}
	results, err := catalog.ListResults(ctx, []string{"BCA-I"})
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != 1 || results[0].AttemptID != contestant.Results[0].ID {
		t.Fatalf("expected one result linked to the attempt, got %+v", results)
	}

	if _, err := service.RandomQuiz(ctx, "TY25BCA007", "AI-2025", "p@ss1"); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already attempted, got %v", err)
	}

	waitForRefs(t, index, "BCA-I", domain.KindResults, 1)
	waitForRefs(t, index, "BCA-I", domain.KindQuestions, 6)
	waitForRefs(t, index, "BCA-I", domain.KindContestants, 1)

	if err := catalog.UpdateCredentials(ctx, "ty25bca007", "", "n3w"); err != nil {
		t.Fatalf("update credentials: %v", err)
	}
	contestant, err = store.FindContestant(ctx, "TY25BCA007")
	if err != nil || contestant.QuizCode != "AI-2025" || contestant.QuizPassword != "n3w" || len(contestant.Results) != 1 {
		t.Fatalf("credential update must only change the password: %+v %v", contestant, err)
	}
	if err := catalog.UpdateCredentials(ctx, "TY25BCA999", "", "x"); !errors.Is(err, domain.ErrContestantNotFound) {
		t.Fatalf("expected contestant not found, got %v", err)
	}

	overview, err := catalog.Overview(ctx, nil)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if want := (domain.Overview{TotalClasses: 3, TotalContestants: 1, TotalQuestions: 6, TotalResults: 1}); overview != want {
		t.Fatalf("expected %+v, got %+v", want, overview)
	}

	if _, err := catalog.DeleteResult(ctx, results[0].ID); err != nil {
		t.Fatalf("delete result: %v", err)
	}
	contestant, err = store.FindContestant(ctx, "TY25BCA007")
	if err != nil || !contestant.Attempted() {
		t.Fatalf("contestant must stay completed after result deletion: %+v %v", contestant, err)
	}
}

func waitForRefs(t *testing.T, index *infraredis.AdminIndex, className, kind string, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		refs, err := index.Refs(context.Background(), className, kind)
		if err == nil && len(refs) == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d %s refs for %s, got %v (err %v)", want, kind, className, refs, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
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

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
