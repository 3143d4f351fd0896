package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"pharma-quiz-service/internal/app"
	"pharma-quiz-service/internal/config"
	"pharma-quiz-service/internal/domain"
	"pharma-quiz-service/internal/infra/memory"
	pgstore "pharma-quiz-service/internal/infra/postgres"
	redisinfra "pharma-quiz-service/internal/infra/redis"
	"pharma-quiz-service/internal/notify"
	"pharma-quiz-service/internal/pkg/logger"
	transport "pharma-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the portal quiz server",
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

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		log.Info("migrations applied")
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
	redisTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)

	var store app.Store
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewPortalStore(pool)
	} else {
		memStore := memory.NewPortalStore(config.Duration(cfg.Store.Latency, 0))
		seedPortal(ctx, memStore)
		store = memStore
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var bundles app.BundleRepository
	if redisClient != nil {
		bundles = redisinfra.NewQuizCache(redisClient, store, quizTTL)
	} else {
		bundles = memory.NewQuizCache(store, quizTTL)
	}

	var attempts app.AttemptRepository
	if redisClient != nil {
		attempts = redisinfra.NewAttemptStore(redisClient, redisTTL)
	} else {
		attempts = memory.NewAttemptStore()
	}

	var notifier notify.Publisher = notify.NopPublisher{}
	if cfg.AMQP.URL != "" {
		amqpPub, err := notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		notifier = amqpPub
	}
	defer notifier.Close()

	service := app.NewPortalService(store, bundles, attempts, notifier, log)
	router := transport.NewRouter(service, transport.NewAttemptHandler(service, log))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting portal quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
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

// seedPortal loads demo content into the in-memory store; swap for the
// Postgres-backed store in production.
func seedPortal(ctx context.Context, store *memory.PortalStore) {
	quizID := "midterm-pharmacology"
	_ = store.CreateQuiz(ctx, domain.QuizBundle{
		Quiz: domain.Quiz{
			ID:              quizID,
			Title:           "Mid-Term Pharmacology",
			DurationMinutes: 45,
			Program:         domain.ProgramBachelor,
			Status:          domain.QuizStatusPublished,
			QuestionCount:   2,
		},
		Questions: []domain.Question{
			{
				ID:            quizID + "_q0",
				Text:          "Which of the following is a beta-blocker?",
				Options:       []string{"Atenolol", "Lisinopril", "Amlodipine", "Furosemide"},
				CorrectAnswer: 0,
				Explanation:   "Atenolol is a selective beta-1 blocker used to treat hypertension.",
			},
			{
				ID:            quizID + "_q1",
				Text:          "What is the standard dosage unit for insulin?",
				Options:       []string{"mg", "ml", "Units", "grams"},
				CorrectAnswer: 2,
				Explanation:   "Insulin is dosed in International Units.",
			},
		},
	})
	_ = store.CreatePracticeSet(ctx, domain.PracticeSet{
		ID:        "cardio-drugs",
		Title:     "Cardiovascular Drugs",
		Topic:     "Pharmacology",
		Program:   domain.ProgramBachelor,
		CreatedBy: "seed",
		Questions: []domain.Question{
			{
				ID:            "cardio-drugs_q0",
				Text:          "Digoxin is primarily used for?",
				Options:       []string{"Hypertension", "Heart Failure", "Diabetes", "Asthma"},
				CorrectAnswer: 1,
				Explanation:   "Digoxin increases myocardial contractility.",
			},
		},
	})
}
