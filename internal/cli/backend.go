package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/postgres"
	redisinfra "quiz-attempt-service/internal/infra/redis"
)

// backend bundles the stores picked from configuration.
type backend struct {
	catalog  app.QuizCatalog
	attempts app.AttemptStore
	events   app.EventLog
	close    func()
}

// openBackend selects stores: Postgres when configured, otherwise memory
// seeded with a sample quiz. Without Postgres, attempts and events move to
// Redis when it is configured. Quiz reads always go through a cache.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, error) {
	redisTTL, err := config.Duration(cfg.Redis.TTL, 24*time.Hour)
	if err != nil {
		return backend{}, fmt.Errorf("redis.ttl: %w", err)
	}
	quizTTL, err := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	if err != nil {
		return backend{}, fmt.Errorf("quiz.ttl: %w", err)
	}

	var closers []func()
	b := backend{close: func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			b.close()
			return backend{}, fmt.Errorf("connect redis: %w", err)
		}
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return backend{}, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
	}

	var catalog app.QuizCatalog
	switch {
	case pool != nil:
		catalog = postgres.NewQuizStore(pool)
		b.attempts = postgres.NewAttemptStore(pool)
		b.events = postgres.NewEventLog(pool)
		logger.Info("using postgres stores")
	case redisClient != nil:
		catalog = memory.NewQuizStore(sampleQuizzes()...)
		b.attempts = redisinfra.NewAttemptStore(redisClient, redisTTL)
		b.events = redisinfra.NewEventLog(redisClient, redisTTL)
		logger.Info("using in-memory quizzes with redis attempts", zap.String("redis", cfg.Redis.Addr))
	default:
		catalog = memory.NewQuizStore(sampleQuizzes()...)
		b.attempts = memory.NewAttemptStore()
		b.events = memory.NewEventLog()
		logger.Info("using in-memory stores")
	}

	if redisClient != nil {
		b.catalog = redisinfra.NewQuizCache(redisClient, catalog, quizTTL)
	} else {
		b.catalog = memory.NewQuizCache(catalog, quizTTL)
	}
	return b, nil
}

// sampleQuizzes seeds the in-memory catalog so the service is usable without a database.
func sampleQuizzes() []domain.Quiz {
	now := time.Now().UTC()
	return []domain.Quiz{
		{
			ID:               "quiz-1",
			Title:            "General knowledge",
			Description:      "A short warm-up quiz.",
			TimeLimitSeconds: 300,
			Published:        true,
			CreatedAt:        now,
			UpdatedAt:        now,
			Questions: []domain.Question{
				{
					ID:            "q1",
					QuizID:        "quiz-1",
					Prompt:        "What is 2 + 2?",
					Type:          domain.QuestionMultipleChoice,
					Options:       []string{"3", "4", "5"},
					CorrectAnswer: "1",
					Order:         0,
				},
				{
					ID:            "q2",
					QuizID:        "quiz-1",
					Prompt:        "What is the capital of France?",
					Type:          domain.QuestionShortAnswer,
					CorrectAnswer: "Paris",
					Order:         1,
				},
			},
		},
	}
}
