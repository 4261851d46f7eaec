package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

var _ app.QuizCatalog = (*QuizCache)(nil)

// fillScript caches a loaded quiz only if the quiz generation still matches
// the one read before loading, so a write on any instance wins over a slow load.
var fillScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// QuizCache caches full quizzes in Redis and falls back to the backing
// catalog on a miss. Quizzes are stored as JSON under quiz:{quizID}; the
// counter quiz:{quizID}:gen is bumped on every write. A ttl <= 0 disables
// caching.
type QuizCache struct {
	app.QuizCatalog

	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuizCache(client *redis.Client, backing app.QuizCatalog, ttl time.Duration) *QuizCache {
	return &QuizCache{
		QuizCatalog: backing,
		client:      client,
		ttl:         ttl,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := c.cached(ctx, quizID); ok {
			return quiz, nil
		}

		gen, genErr := c.client.Get(ctx, c.genKey(quizID)).Result()
		if isNil(genErr) {
			gen, genErr = "0", nil
		}

		quiz, err := c.QuizCatalog.GetQuizWithQuestions(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if c.ttl <= 0 || genErr != nil {
			return quiz, nil
		}

		if data, err := json.Marshal(quiz); err == nil {
			// best-effort: a failed write only costs a reload
			_ = fillScript.Run(ctx, c.client,
				[]string{c.key(quizID), c.genKey(quizID)},
				gen, data, c.ttlWithJitter().Milliseconds(),
			).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCache) GetQuizWithoutAnswers(ctx context.Context, quizID string) (domain.QuizWithoutAnswers, error) {
	quiz, err := c.GetQuizWithQuestions(ctx, quizID)
	if err != nil {
		return domain.QuizWithoutAnswers{}, err
	}
	return quiz.WithoutAnswers(), nil
}

func (c *QuizCache) UpdateQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := c.QuizCatalog.UpdateQuiz(ctx, quiz); err != nil {
		return err
	}
	return c.Invalidate(ctx, quiz.ID)
}

func (c *QuizCache) DeleteQuiz(ctx context.Context, quizID string) error {
	if err := c.QuizCatalog.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	return c.Invalidate(ctx, quizID)
}

func (c *QuizCache) ReplaceQuestions(ctx context.Context, quizID string, questions []domain.Question) error {
	if err := c.QuizCatalog.ReplaceQuestions(ctx, quizID, questions); err != nil {
		return err
	}
	return c.Invalidate(ctx, quizID)
}

// Invalidate removes the cached copy of a quiz and bumps its generation so
// loads already in flight on any instance do not cache what they read.
func (c *QuizCache) Invalidate(ctx context.Context, quizID string) error {
	defer c.sf.Forget(quizID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(quizID))
		pipe.Del(ctx, c.key(quizID))
		return nil
	})
	return err
}

func (c *QuizCache) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	data, err := c.client.Get(ctx, c.key(quizID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (c *QuizCache) key(quizID string) string {
	return "quiz:" + quizID
}

func (c *QuizCache) genKey(quizID string) string {
	return "quiz:" + quizID + ":gen"
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
